// Package validation provides the ClientSchema validation source: the
// form's data-model JSON Schema compiled once and evaluated locally
// against the nested model.
package validation

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"

	apperrors "github.com/formflow-dev/formflow/internal/application/errors"
	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Ensure interface compliance
var _ ports.SchemaValidator = (*SchemaValidator)(nil)

// SchemaValidator validates a data model against a compiled JSON
// Schema and maps every finding to a binding path. It is stateless
// after construction and safe for repeated validation passes.
type SchemaValidator struct {
	schema *jsonschema.Schema
}

// NewSchemaValidator compiles a JSON Schema document (draft 2020-12).
func NewSchemaValidator(schemaBytes []byte) (*SchemaValidator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020

	if err := compiler.AddResource("schema.json", bytes.NewReader(schemaBytes)); err != nil {
		return nil, apperrors.NewSchemaError("schema.json", err.Error())
	}

	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return nil, apperrors.NewSchemaError("schema.json", err.Error())
	}

	return &SchemaValidator{schema: schema}, nil
}

// Validate runs schema validation and returns one issue per failing
// leaf location. A valid model returns an empty list; only a schema
// evaluation breakdown is an error.
func (v *SchemaValidator) Validate(model entities.DataModel) ([]entities.Issue, error) {
	err := v.schema.Validate(map[string]any(model))
	if err == nil {
		return nil, nil
	}

	validationErr, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	var issues []entities.Issue
	collectLeaves(validationErr, func(leaf *jsonschema.ValidationError) {
		path, perr := instanceLocationToBinding(leaf.InstanceLocation)
		if perr != nil || path.IsZero() {
			// Root-level or unmappable findings have no field to
			// attach to; they surface through the summary instead.
			return
		}
		issues = append(issues, entities.Issue{
			Path:     path,
			Source:   values.SourceClientSchema,
			Severity: values.SevError,
			Message:  leaf.Message,
			Code:     keywordOf(leaf.KeywordLocation),
		})
	})

	return issues, nil
}

// collectLeaves walks the validation error tree and visits the leaf
// causes, which carry the most precise instance locations.
func collectLeaves(err *jsonschema.ValidationError, visit func(*jsonschema.ValidationError)) {
	if len(err.Causes) == 0 {
		visit(err)
		return
	}
	for _, cause := range err.Causes {
		collectLeaves(cause, visit)
	}
}

// instanceLocationToBinding converts a JSON Pointer instance location
// ("/mainGroup/0/comments") into binding syntax
// ("mainGroup[0].comments"). Numeric tokens become array indexes.
func instanceLocationToBinding(location string) (values.BindingPath, error) {
	trimmed := strings.TrimPrefix(location, "/")
	if trimmed == "" {
		return values.BindingPath{}, nil
	}

	var sb strings.Builder
	for _, token := range strings.Split(trimmed, "/") {
		token = strings.ReplaceAll(strings.ReplaceAll(token, "~1", "/"), "~0", "~")
		if idx, err := strconv.Atoi(token); err == nil && sb.Len() > 0 {
			sb.WriteString("[" + strconv.Itoa(idx) + "]")
			continue
		}
		if sb.Len() > 0 {
			sb.WriteString(".")
		}
		sb.WriteString(token)
	}

	return values.ParseBinding(sb.String())
}

// keywordOf extracts the failing keyword from a keyword location
// ("/properties/comments/minLength" -> "minLength").
func keywordOf(keywordLocation string) string {
	parts := strings.Split(keywordLocation, "/")
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}
