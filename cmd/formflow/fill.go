package main

import (
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	appservices "github.com/formflow-dev/formflow/internal/application/services"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/services"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

var fillCmd = &cobra.Command{
	Use:   "fill",
	Short: "Fill a form interactively in the terminal",
	Long: `Fill loads a layout and walks through its pages as an interactive
terminal form. Every answer is written through the binding engine, so
repeating groups materialize rows and validation runs exactly as in
the hosted runtime. Blocking issues are listed at the end.`,
	RunE: runFill,
}

func init() {
	fillCmd.Flags().StringVar(&validateOpts.layoutPath, "layout", "", "layout file (YAML or JSON)")
	fillCmd.Flags().StringVar(&validateOpts.schemaPath, "schema", "", "data-model JSON Schema file")
	fillCmd.Flags().StringVar(&validateOpts.dataPath, "data", "", "prefill data file")
	_ = fillCmd.MarkFlagRequired("layout")
	rootCmd.AddCommand(fillCmd)
}

func runFill(cmd *cobra.Command, _ []string) error {
	session, layout, err := buildOfflineSession(cmd.Context())
	if err != nil {
		return err
	}

	eval := services.NewExpressionEvaluator()
	for _, page := range layout.Pages {
		if pageHidden(eval, session, page) {
			continue
		}
		fmt.Printf("-- %s --\n", page.ID)
		for _, componentID := range page.ComponentIDs {
			component, ok := layout.Component(componentID)
			if !ok || component.GroupID != "" {
				continue
			}
			if err := fillComponent(session, layout, component, values.BindingPath{}); err != nil {
				return err
			}
		}
	}

	blocking := session.BlockingIssues(services.WholeForm)
	if len(blocking) == 0 {
		fmt.Println("Form complete, ready to submit.")
		return nil
	}

	fmt.Printf("%d blocking issue(s):\n", len(blocking))
	for _, issue := range blocking {
		fmt.Printf("  %s  %s  %s\n", issue.Severity, issue.Path, issue.Message)
	}
	return fmt.Errorf("form has blocking issues")
}

// pageHidden evaluates a page's visibility expression. Hidden pages
// are skipped for prompting only; their validation issues still gate
// completion.
func pageHidden(eval *services.ExpressionEvaluator, session *appservices.Session, page entities.Page) bool {
	if page.HiddenExpr == "" {
		return false
	}
	hidden, err := eval.EvalBool(page.HiddenExpr, services.Flatten(session.Model()))
	if err != nil {
		return false
	}
	return hidden
}

// Prompting goes through these hooks so the walk over a layout can be
// exercised without a terminal.
var (
	promptInput = func(title string, value *string) error {
		return huh.NewInput().Title(title).Value(value).Run()
	}
	promptConfirm = func(title string, value *bool) error {
		return huh.NewConfirm().Title(title).Value(value).Run()
	}
)

// fillComponent prompts for one component. rowPath is the concrete row
// the component lives in, zero for top-level components.
func fillComponent(session *appservices.Session, layout *entities.Layout, component *entities.Component, rowPath values.BindingPath) error {
	if component.Group != nil {
		return fillGroup(session, layout, component, rowPath)
	}

	binding := component.SimpleBinding()
	if binding.IsZero() {
		return nil
	}
	concrete, err := concreteBinding(binding, rowPath)
	if err != nil {
		return err
	}

	var answer string
	if current, ok := session.Value(concrete); ok {
		if s, isStr := current.(string); isStr {
			answer = s
		}
	}

	title := component.ID
	if component.Required {
		title += " *"
	}
	if err := promptInput(title, &answer); err != nil {
		return err
	}
	if answer == "" && !component.Required {
		return nil
	}
	return session.SetValue(concrete, answer)
}

// fillGroup fills a repeating group: rows that already exist
// (prefilled data, minimum-row materialization) are visited first,
// then an "add a row" loop appends and fills further rows.
func fillGroup(session *appservices.Session, layout *entities.Layout, group *entities.Component, rowPath values.BindingPath) error {
	groupPath, err := concreteBinding(group.GroupBinding(), rowPath)
	if err != nil {
		return err
	}

	for i := range session.Rows(groupPath) {
		if err := fillRow(session, layout, group, groupPath, i); err != nil {
			return err
		}
	}

	for {
		count := len(session.Rows(groupPath))
		if group.Group.MaxCount > 0 && count >= group.Group.MaxCount {
			break
		}

		addMore := false
		prompt := fmt.Sprintf("Add a row to %s? (%d so far)", group.ID, count)
		if err := promptConfirm(prompt, &addMore); err != nil {
			return err
		}
		if !addMore {
			break
		}

		if _, err := session.AddRow(groupPath, nil); err != nil {
			return err
		}
		if err := fillRow(session, layout, group, groupPath, count); err != nil {
			return err
		}
	}
	return nil
}

// fillRow prompts for every child of one group row. Soft-removed rows
// are skipped.
func fillRow(session *appservices.Session, layout *entities.Layout, group *entities.Component, groupPath values.BindingPath, index int) error {
	rows := session.Rows(groupPath)
	if index < len(rows) && rows[index].Removed {
		return nil
	}
	for _, childID := range group.Group.Children {
		child, ok := layout.Component(childID)
		if !ok {
			continue
		}
		if err := fillComponent(session, layout, child, groupPath.Row(index)); err != nil {
			return err
		}
	}
	return nil
}

// concreteBinding projects a declared binding under a concrete row.
func concreteBinding(declared, rowPath values.BindingPath) (values.BindingPath, error) {
	if rowPath.IsZero() {
		return declared, nil
	}
	return services.Concretize(declared, rowPath)
}
