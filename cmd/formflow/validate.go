package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/formflow-dev/formflow/internal/application/ports"
	appservices "github.com/formflow-dev/formflow/internal/application/services"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	infraconfig "github.com/formflow-dev/formflow/internal/infrastructure/config"
	"github.com/formflow-dev/formflow/internal/infrastructure/output"
	"github.com/formflow-dev/formflow/internal/infrastructure/persistence/memory"
	"github.com/formflow-dev/formflow/internal/infrastructure/validation"
)

var validateOpts struct {
	layoutPath string
	schemaPath string
	dataPath   string
	format     string
	outputPath string
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a data file against a form layout and schema",
	Long: `Validate loads a form layout, its data-model JSON Schema, and a data
file, runs the full client-side validation pass (schema and component
rules, including repeating-group row constraints), and reports the
aggregated issues.`,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&validateOpts.layoutPath, "layout", "", "layout file (YAML or JSON)")
	validateCmd.Flags().StringVar(&validateOpts.schemaPath, "schema", "", "data-model JSON Schema file")
	validateCmd.Flags().StringVar(&validateOpts.dataPath, "data", "", "data file to validate")
	validateCmd.Flags().StringVar(&validateOpts.format, "format", "table", "output format: table, json, yaml, sarif")
	validateCmd.Flags().StringVar(&validateOpts.outputPath, "output", "", "output file path (default: stdout)")
	_ = validateCmd.MarkFlagRequired("layout")
	_ = validateCmd.MarkFlagRequired("data")
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	session, layout, err := buildOfflineSession(cmd.Context())
	if err != nil {
		return err
	}

	report := &ports.ValidationReport{
		FormID:     layout.ID,
		Issues:     session.AllIssues(),
		CanSubmit:  session.CanSubmit(),
		DataPath:   validateOpts.dataPath,
		LayoutPath: validateOpts.layoutPath,
	}

	writer := os.Stdout
	if validateOpts.outputPath != "" {
		f, err := os.Create(validateOpts.outputPath)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		writer = f
	}

	formatter, err := output.NewFormatterFactory().Create(validateOpts.format, writer, ports.FormatterOptions{Indent: 2})
	if err != nil {
		return err
	}
	if err := formatter.Format(report); err != nil {
		return err
	}

	if !report.CanSubmit {
		return fmt.Errorf("validation found blocking issues")
	}
	return nil
}

// buildOfflineSession assembles a session over an in-memory backend
// seeded from the data file, shared by validate and fill.
func buildOfflineSession(ctx context.Context) (*appservices.Session, *entities.Layout, error) {
	loader := infraconfig.NewLayoutLoader()
	layout, bindingErrs, err := loader.Load(validateOpts.layoutPath)
	if err != nil {
		return nil, nil, err
	}
	for _, berr := range bindingErrs {
		slog.Warn("binding problem", "error", berr)
	}

	var schemaValidator ports.SchemaValidator
	if validateOpts.schemaPath != "" {
		schemaBytes, err := os.ReadFile(validateOpts.schemaPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading schema: %w", err)
		}
		schemaValidator, err = validation.NewSchemaValidator(schemaBytes)
		if err != nil {
			return nil, nil, err
		}
	}

	model := entities.DataModel{}
	if validateOpts.dataPath != "" {
		data, err := os.ReadFile(validateOpts.dataPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading data file: %w", err)
		}
		model, err = entities.ParseDataModel(data)
		if err != nil {
			return nil, nil, err
		}
	}

	session, err := appservices.NewSession(ctx, appservices.Deps{
		Layout:  layout,
		Backend: memory.NewBackend(model),
		Schema:  schemaValidator,
		Policy: appservices.Policy{
			BlockWarningsOnSubmit: viper.GetBool("submission.block_warnings_on_submit"),
			ValidationDebounce:    viper.GetDuration("validation.debounce"),
		},
		Logger: slog.Default(),
	})
	if err != nil {
		return nil, nil, err
	}
	return session, layout, nil
}
