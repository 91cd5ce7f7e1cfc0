package output

import (
	"io"

	"github.com/goccy/go-yaml"

	"github.com/formflow-dev/formflow/internal/application/ports"
)

// YAMLFormatter formats validation reports as YAML.
type YAMLFormatter struct {
	writer io.Writer
}

// NewYAMLFormatter creates a new YAML formatter.
func NewYAMLFormatter(w io.Writer) *YAMLFormatter {
	return &YAMLFormatter{writer: w}
}

// Format writes the validation report as YAML.
func (f *YAMLFormatter) Format(report *ports.ValidationReport) error {
	encoder := yaml.NewEncoder(f.writer, yaml.Indent(2))

	if err := encoder.Encode(report); err != nil {
		return err
	}

	return encoder.Close()
}
