package output

import (
	"fmt"
	"io"

	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorBlue   = "\033[34m"
	colorBold   = "\033[1m"
)

// TableFormatter formats validation reports as a human-readable table.
type TableFormatter struct {
	writer      io.Writer
	EnableColor bool
}

// NewTableFormatter creates a new table formatter.
func NewTableFormatter(w io.Writer) *TableFormatter {
	return &TableFormatter{
		writer:      w,
		EnableColor: true, // Default to true, caller can disable
	}
}

// colorize returns the string wrapped in ANSI color codes if enabled.
func (f *TableFormatter) colorize(text, code string) string {
	if !f.EnableColor {
		return text
	}
	return code + text + colorReset
}

// Format writes the validation report as a table.
//
//nolint:errcheck // Table formatting errors are non-critical (best-effort terminal output)
func (f *TableFormatter) Format(report *ports.ValidationReport) error {
	fmt.Fprintf(f.writer, "%s\n", f.colorize("Form: "+report.FormID, colorBold))

	if len(report.Issues) == 0 {
		fmt.Fprintf(f.writer, "%s\n", f.colorize("No validation issues", colorGreen))
	}

	for _, issue := range report.Issues {
		severity := issue.Severity.String()
		switch {
		case issue.Severity.Equals(values.SevError):
			severity = f.colorize(severity, colorRed)
		case issue.Severity.Equals(values.SevWarning):
			severity = f.colorize(severity, colorYellow)
		default:
			severity = f.colorize(severity, colorBlue)
		}

		path := issue.Path.String()
		if path == "" {
			path = "(form)"
		}
		fmt.Fprintf(f.writer, "  %-8s  %-40s  %s", severity, path, issue.Message)
		if issue.Code != "" {
			fmt.Fprintf(f.writer, "  [%s]", issue.Code)
		}
		fmt.Fprintln(f.writer)
	}

	verdict := f.colorize("submission blocked", colorRed)
	if report.CanSubmit {
		verdict = f.colorize("ready to submit", colorGreen)
	}
	fmt.Fprintf(f.writer, "\n%d issue(s), %s\n", len(report.Issues), verdict)
	return nil
}
