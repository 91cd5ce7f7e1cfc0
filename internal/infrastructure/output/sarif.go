package output

import (
	"fmt"
	"io"

	"github.com/owenrumney/go-sarif/v3/pkg/report/v210/sarif"

	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
	"github.com/formflow-dev/formflow/internal/version"
)

// SARIFFormatter formats validation reports as SARIF 2.1.0 JSON for
// CI pipelines that validate prefilled data files. Issue codes map to
// SARIF rules and individual findings to results, located by binding
// path within the data file.
type SARIFFormatter struct {
	writer io.Writer
}

// NewSARIFFormatter creates a new SARIF formatter.
func NewSARIFFormatter(writer io.Writer) *SARIFFormatter {
	return &SARIFFormatter{writer: writer}
}

// Format writes the validation report as SARIF 2.1.0 JSON.
func (f *SARIFFormatter) Format(report *ports.ValidationReport) error {
	sarifReport := sarif.NewReport()

	run := sarif.NewRunWithInformationURI("formflow", "https://formflow.dev")
	buildVersion := version.Get().Version
	run.Tool.Driver.Version = &buildVersion

	addRules(run, report.Issues)
	addResults(run, report)

	sarifReport.AddRun(run)

	if err := sarifReport.Write(f.writer); err != nil {
		return fmt.Errorf("failed to write SARIF output: %w", err)
	}
	_, err := f.writer.Write([]byte("\n"))
	return err
}

// addRules registers one SARIF rule per distinct issue code.
func addRules(run *sarif.Run, issues []entities.Issue) {
	seen := make(map[string]bool)
	for _, issue := range issues {
		code := ruleID(issue)
		if seen[code] {
			continue
		}
		seen[code] = true

		message := issue.Message
		rule := sarif.NewReportingDescriptor().WithID(code)
		rule.WithShortDescription(&sarif.MultiformatMessageString{Text: &message})
		rule.WithDefaultConfiguration(&sarif.ReportingConfiguration{
			Level: severityToLevel(issue.Severity),
		})
		run.Tool.Driver.AddRule(rule)
	}
}

// addResults converts issues to SARIF results.
func addResults(run *sarif.Run, report *ports.ValidationReport) {
	for _, issue := range report.Issues {
		result := sarif.NewRuleResult(ruleID(issue))
		result.Level = severityToLevel(issue.Severity)

		message := issue.Message
		if path := issue.Path.String(); path != "" {
			message = fmt.Sprintf("%s: %s", path, issue.Message)
		}
		result.WithMessage(sarif.NewTextMessage(message))

		if report.DataPath != "" {
			location := sarif.NewLocation().WithPhysicalLocation(
				sarif.NewPhysicalLocation().WithArtifactLocation(
					sarif.NewSimpleArtifactLocation(report.DataPath),
				),
			)
			result.AddLocation(location)
		}

		run.AddResult(result)
	}
}

func ruleID(issue entities.Issue) string {
	if issue.Code != "" {
		return issue.Code
	}
	return issue.Source.String()
}

func severityToLevel(severity values.Severity) string {
	switch {
	case severity.Equals(values.SevError):
		return "error"
	case severity.Equals(values.SevWarning):
		return "warning"
	default:
		return "note"
	}
}
