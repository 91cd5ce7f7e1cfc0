// Package ports defines interfaces for infrastructure dependencies.
// These are the "ports" in hexagonal architecture - abstractions that
// the application layer depends on but doesn't implement.
package ports

import (
	"context"
	"io"

	"github.com/formflow-dev/formflow/internal/application/dto"
	"github.com/formflow-dev/formflow/internal/domain/entities"
)

// FormBackend is the platform's form-instance API as consumed by the
// session: model fetch, save with calculation corrections, and the
// task-scoped validation endpoint.
type FormBackend interface {
	// FetchModel retrieves the current data model for the instance.
	FetchModel(ctx context.Context) (entities.DataModel, error)

	// Save sends the full nested model. The three response shapes are
	// discriminated in the SaveResult; transport failures are errors.
	Save(ctx context.Context, model entities.DataModel) (*dto.SaveResult, error)

	// FetchValidations returns the backend validation issues for the
	// current task. A previously reported path absent from the
	// response means the issue is resolved.
	FetchValidations(ctx context.Context) ([]entities.Issue, error)
}

// LayoutLoader loads and structurally validates a form layout.
type LayoutLoader interface {
	Load(path string) (*entities.Layout, []error, error)
}

// SchemaValidator is the ClientSchema validation source: it validates
// the nested model against the form's JSON Schema and maps each
// finding to a binding path.
type SchemaValidator interface {
	Validate(model entities.DataModel) ([]entities.Issue, error)
}

// ValidationReport is what the output formatters render.
type ValidationReport struct {
	FormID     string           `json:"formId"`
	Issues     []entities.Issue `json:"issues"`
	CanSubmit  bool             `json:"canSubmit"`
	DataPath   string           `json:"dataPath,omitempty"`
	LayoutPath string           `json:"layoutPath,omitempty"`
}

// OutputFormatter renders a validation report to a writer.
type OutputFormatter interface {
	Format(report *ValidationReport) error
}

// FormatterOptions configures formatter creation.
type FormatterOptions struct {
	Indent int
}

// OutputFormatterFactory creates formatters by name.
type OutputFormatterFactory interface {
	Create(format string, writer io.Writer, options FormatterOptions) (OutputFormatter, error)
	SupportedFormats() []string
}
