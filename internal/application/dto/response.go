// Package dto contains data transfer objects exchanged between the
// application layer and the backend adapters.
package dto

import (
	"github.com/formflow-dev/formflow/internal/domain/entities"
)

// SaveOutcome discriminates the save endpoint's response shapes.
type SaveOutcome int

const (
	// SaveAccepted: the server stored the model and returned it,
	// possibly corrected.
	SaveAccepted SaveOutcome = iota
	// SaveChangedFields: the server ran calculations and returned a
	// flat map of corrected fields (the 303 contract).
	SaveChangedFields
	// SaveRejected: the server rejected the payload with a list of
	// validation issues.
	SaveRejected
)

// SaveResult is the parsed response of one save request.
type SaveResult struct {
	Outcome SaveOutcome

	// Model is the server's model snapshot (SaveAccepted only).
	Model entities.DataModel

	// ChangedFields maps flat binding paths to new values
	// (SaveChangedFields only). Empty on a 303 means the client must
	// re-fetch the whole model.
	ChangedFields map[string]any

	// Issues carries the rejection issues (SaveRejected only).
	Issues []entities.Issue
}
