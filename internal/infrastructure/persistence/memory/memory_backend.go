// Package memory provides an in-memory implementation of the
// FormBackend port. Useful for testing, the interactive fill command,
// and offline layout authoring.
package memory

import (
	"context"
	"sync"

	"github.com/formflow-dev/formflow/internal/application/dto"
	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
)

// Ensure interface compliance
var _ ports.FormBackend = (*Backend)(nil)

// Backend is an in-memory form backend. It stores one model, returns
// a configurable set of validation issues, and can simulate the
// changed-by-calculation save response.
type Backend struct {
	mu sync.RWMutex

	model  entities.DataModel
	issues []entities.Issue

	// Corrections, when set, is returned once as a changed-fields
	// save response and then cleared, simulating a server-side
	// calculation pass.
	corrections map[string]any
}

// NewBackend creates an in-memory backend seeded with a model.
func NewBackend(model entities.DataModel) *Backend {
	if model == nil {
		model = entities.DataModel{}
	}
	return &Backend{model: model}
}

// SetIssues configures the validation issues FetchValidations returns.
func (b *Backend) SetIssues(issues []entities.Issue) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.issues = issues
}

// SetCorrections configures a one-shot changed-fields save response.
func (b *Backend) SetCorrections(corrections map[string]any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.corrections = corrections
}

// FetchModel returns a deep copy of the stored model.
func (b *Backend) FetchModel(_ context.Context) (entities.DataModel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.model.Clone(), nil
}

// Save stores the model, or returns the pending corrections instead.
func (b *Backend) Save(_ context.Context, model entities.DataModel) (*dto.SaveResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.corrections != nil {
		changed := b.corrections
		b.corrections = nil
		return &dto.SaveResult{Outcome: dto.SaveChangedFields, ChangedFields: changed}, nil
	}

	b.model = model.Clone()
	return &dto.SaveResult{Outcome: dto.SaveAccepted, Model: b.model.Clone()}, nil
}

// FetchValidations returns the configured issues.
func (b *Backend) FetchValidations(_ context.Context) ([]entities.Issue, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]entities.Issue, len(b.issues))
	copy(out, b.issues)
	return out, nil
}
