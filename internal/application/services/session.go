// Package services contains application services orchestrating the
// domain: the form Session and its validation and autosave cycles.
package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/formflow-dev/formflow/internal/application/dto"
	"github.com/formflow-dev/formflow/internal/application/ports"
	"github.com/formflow-dev/formflow/internal/domain/entities"
	"github.com/formflow-dev/formflow/internal/domain/services"
	"github.com/formflow-dev/formflow/internal/domain/values"
)

// Policy is the per-deployment gating configuration.
type Policy struct {
	// BlockWarningsOnSubmit makes warnings block final submission.
	BlockWarningsOnSubmit bool
	// ValidationDebounce is the quiet period after an edit before a
	// backend validation refresh fires. Zero disables the timer;
	// refreshes then only happen explicitly.
	ValidationDebounce time.Duration
}

// Deps wires a session's collaborators.
type Deps struct {
	Layout  *entities.Layout
	Backend ports.FormBackend
	Schema  ports.SchemaValidator
	Policy  Policy
	Logger  *slog.Logger
}

// Session owns one form-filling run: the data model, the aggregated
// validation state, and the pending-request bookkeeping. All mutation
// goes through Session methods; the mutex serializes UI edits and
// async completions onto one logical timeline, and replace-by-source
// plus per-path sequence numbers keep reordered completions safe.
type Session struct {
	mu sync.Mutex

	layout *entities.Layout
	model  entities.DataModel
	state  *services.ValidationState
	mat    *services.Materializer
	gate   *services.Gate
	eval   *services.ExpressionEvaluator
	rules  *services.RuleValidator

	backend ports.FormBackend
	schema  ports.SchemaValidator
	policy  Policy
	logger  *slog.Logger

	// editSeq increments on every local edit of a flat path. A save or
	// correction response only writes a field whose sequence has not
	// moved since the request was issued: last-writer-wins by edit
	// time, not response-arrival time.
	editSeq map[string]uint64

	// One outstanding save per autosave cycle; a save requested while
	// one is in flight runs after it settles.
	saveInFlight bool
	savePending  bool

	// Backend validation refreshes are guarded by request sequence
	// numbers: a superseded response is discarded once a newer one has
	// been applied.
	refreshSeq    uint64
	refreshesDone uint64

	// Paths previously issued per local source, so a new pass can
	// clear what it no longer reports.
	schemaPaths map[string]values.BindingPath
	rulePaths   map[string]values.BindingPath

	debounce map[string]*time.Timer
}

// NewSession starts a session: the initial model and the current
// backend validations are fetched concurrently, minimum rows are
// materialized, and a first client validation pass runs.
func NewSession(ctx context.Context, deps Deps) (*Session, error) {
	if deps.Layout == nil || deps.Backend == nil {
		return nil, fmt.Errorf("session requires a layout and a backend")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		layout:      deps.Layout,
		state:       services.NewValidationState(),
		mat:         services.NewMaterializer(deps.Layout),
		eval:        services.NewExpressionEvaluator(),
		backend:     deps.Backend,
		schema:      deps.Schema,
		policy:      deps.Policy,
		logger:      logger,
		editSeq:     make(map[string]uint64),
		schemaPaths: make(map[string]values.BindingPath),
		rulePaths:   make(map[string]values.BindingPath),
		debounce:    make(map[string]*time.Timer),
	}
	s.gate = services.NewGate(deps.Layout, s.mat)
	s.rules = services.NewRuleValidator(deps.Layout, s.eval, s.mat, logger)

	var (
		model         entities.DataModel
		backendIssues []entities.Issue
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		model, err = s.backend.FetchModel(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		backendIssues, err = s.backend.FetchValidations(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	if model == nil {
		model = entities.DataModel{}
	}
	s.model = model

	if err := s.mat.EnsureMinimumRows(s.model); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}
	s.runClientValidationLocked()
	s.applyBackendIssuesLocked(backendIssues)

	return s, nil
}

// Model returns a deep copy of the current data model.
func (s *Session) Model() entities.DataModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.model.Clone()
}

// Value reads the current value at a binding path; absent reads as
// (nil, false).
func (s *Session) Value(path values.BindingPath) (any, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	loc := services.Resolve(s.model, path)
	return loc.Value, loc.Exists
}

// Rows lists the live rows of a repeating group, in model order.
func (s *Session) Rows(groupPath values.BindingPath) []services.Row {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mat.Rows(s.model, groupPath)
}

// SetValue applies a local edit and re-runs client validation. Each
// edit bumps the path's sequence number, which protects the value from
// regressions by late save responses.
func (s *Session) SetValue(path values.BindingPath, value any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := services.SetValue(s.model, path, value); err != nil {
		return err
	}
	s.editSeq[path.String()]++
	s.runClientValidationLocked()
	s.scheduleRefreshLocked(path)
	return nil
}

// AddRow appends a row to a repeating group. Materialization,
// including nested minimum-row population, completes before the
// validation pass observes the new paths.
func (s *Session) AddRow(groupPath values.BindingPath, seed map[string]any) (services.Row, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row, err := s.mat.AddRow(s.model, groupPath, seed)
	if err != nil {
		return services.Row{}, err
	}
	s.runClientValidationLocked()
	return row, nil
}

// RemoveRow removes a row. Hard removal prunes the row's validation
// issues and shifts later rows' issue paths down; soft removal only
// suppresses them so UndoRemove can restore the prior context.
func (s *Session) RemoveRow(groupPath values.BindingPath, rowID values.RowID, mode services.RemoveMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	index, err := s.mat.RemoveRow(s.model, groupPath, rowID, mode)
	if err != nil {
		return err
	}
	if mode == services.RemoveHard {
		s.state.PruneRow(groupPath, index)
	} else {
		s.state.SuppressRow(groupPath, index)
	}
	s.runClientValidationLocked()
	return nil
}

// UndoRemove reverses a soft removal without re-running row
// initialization or re-validating the restored paths.
func (s *Session) UndoRemove(groupPath values.BindingPath, rowID values.RowID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, row := range s.mat.Rows(s.model, groupPath) {
		if row.ID.Equals(rowID) {
			if err := s.mat.UndoRemove(groupPath, rowID); err != nil {
				return err
			}
			s.state.UnsuppressRow(groupPath, i)
			return nil
		}
	}
	return fmt.Errorf("group %s: no row with ID %s", groupPath, rowID)
}

// IssuesFor returns the aggregated issues for a path, in stable
// source order.
func (s *Session) IssuesFor(path values.BindingPath) []entities.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.IssuesFor(path)
}

// CanAdvance evaluates the navigation gate for a page scope.
func (s *Session) CanAdvance(scope services.Scope) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.CanAdvance(s.state, s.model, scope, services.BlockErrors)
}

// CanSubmit evaluates the final-submission gate under the deployment
// policy.
func (s *Session) CanSubmit() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.CanAdvance(s.state, s.model, services.WholeForm, s.submitThreshold())
}

// BlockingIssues returns the ordered issue list driving the error
// summary for a scope.
func (s *Session) BlockingIssues(scope services.Scope) []entities.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	threshold := services.BlockErrors
	if scope == services.WholeForm {
		threshold = s.submitThreshold()
	}
	return s.gate.BlockingIssues(s.state, s.model, scope, threshold)
}

// AllIssues returns every visible issue plus row-constraint
// violations, in the stable error-summary order.
func (s *Session) AllIssues() []entities.Issue {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gate.AllIssues(s.state, s.model)
}

// RunClientValidation re-runs the local sources (ClientSchema and
// CustomRule) against the current model.
func (s *Session) RunClientValidation() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runClientValidationLocked()
}

// Save runs one save cycle. At most one request is outstanding; a Save
// arriving while one is in flight is coalesced into a follow-up cycle,
// preserving a known prior server state for correction merging. A
// transport failure keeps the validation state untouched and is
// retried at the next user-triggered save, never on a timer.
func (s *Session) Save(ctx context.Context) error {
	s.mu.Lock()
	if s.saveInFlight {
		s.savePending = true
		s.mu.Unlock()
		return nil
	}
	s.saveInFlight = true

	for {
		// Soft-removed rows stay in the live model for undo but are
		// stripped from the outgoing payload.
		snapshot := s.mat.SubmissionModel(s.model)
		seqSnapshot := s.snapshotSeqLocked()
		s.mu.Unlock()

		result, err := s.backend.Save(ctx, snapshot)

		s.mu.Lock()
		if err != nil {
			s.saveInFlight = false
			s.savePending = false
			s.markBackendStaleLocked()
			s.mu.Unlock()
			return fmt.Errorf("saving model: %w", err)
		}

		if err := s.applySaveResultLocked(ctx, result, seqSnapshot); err != nil {
			s.saveInFlight = false
			s.savePending = false
			s.mu.Unlock()
			return err
		}

		if !s.savePending {
			s.saveInFlight = false
			s.mu.Unlock()
			return nil
		}
		s.savePending = false
	}
}

// RefreshBackendValidations fetches the task's backend validations and
// replaces the Backend source slot. Responses are sequence-guarded: a
// response superseded by an already-applied newer one is discarded, so
// stale issues cannot resurrect. Paths absent from the response are
// treated as resolved and pruned from the Backend slot.
func (s *Session) RefreshBackendValidations(ctx context.Context) error {
	s.mu.Lock()
	s.refreshSeq++
	seq := s.refreshSeq
	s.mu.Unlock()

	issues, err := s.backend.FetchValidations(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()

	if err != nil {
		s.markBackendStaleLocked()
		return fmt.Errorf("refreshing backend validations: %w", err)
	}
	if seq < s.refreshesDone {
		return nil
	}
	s.refreshesDone = seq

	s.applyBackendIssuesLocked(issues)
	return nil
}

// --- internals, caller holds s.mu ---

func (s *Session) submitThreshold() services.Threshold {
	if s.policy.BlockWarningsOnSubmit {
		return services.BlockErrorsAndWarnings
	}
	return services.BlockErrors
}

func (s *Session) snapshotSeqLocked() map[string]uint64 {
	out := make(map[string]uint64, len(s.editSeq))
	for k, v := range s.editSeq {
		out[k] = v
	}
	return out
}

// runClientValidationLocked re-derives the ClientSchema and CustomRule
// slots. Paths a source no longer reports are cleared; paths whose
// component became hidden are pruned; paths that became visible again
// are re-admitted before their fresh issues land.
func (s *Session) runClientValidationLocked() {
	result := s.rules.Validate(s.model)

	for _, hidden := range result.Hidden {
		s.state.PrunePath(hidden)
		delete(s.rulePaths, hidden.String())
		delete(s.schemaPaths, hidden.String())
	}

	newRulePaths := make(map[string]values.BindingPath, len(result.CheckedPaths))
	for _, path := range result.CheckedPaths {
		s.state.MarkVisible(path)
		s.state.SetIssues(path, values.SourceCustomRule, result.CheckedIssues[path.String()])
		newRulePaths[path.String()] = path
	}
	for key, path := range s.rulePaths {
		if _, still := newRulePaths[key]; still {
			continue
		}
		if s.state.IsSuppressed(path) {
			// Soft-removed row; its issues stay stored for undo.
			newRulePaths[key] = path
			continue
		}
		s.state.SetIssues(path, values.SourceCustomRule, nil)
	}
	s.rulePaths = newRulePaths

	if s.schema == nil {
		return
	}
	issues, err := s.schema.Validate(s.model)
	if err != nil {
		// Schema validation failing to run is a session defect, not a
		// user error; prior schema issues stay in place.
		s.logger.Error("client schema validation failed", "error", err)
		return
	}

	hiddenSet := make(map[string]bool, len(result.Hidden))
	for _, h := range result.Hidden {
		hiddenSet[h.String()] = true
	}

	grouped := make(map[string][]entities.Issue)
	paths := make(map[string]values.BindingPath)
	for _, issue := range issues {
		key := issue.Path.String()
		if hiddenSet[key] {
			continue
		}
		grouped[key] = append(grouped[key], issue)
		paths[key] = issue.Path
	}
	for key, path := range paths {
		s.state.SetIssues(path, values.SourceClientSchema, grouped[key])
	}
	for key, path := range s.schemaPaths {
		if _, still := paths[key]; still {
			continue
		}
		if s.state.IsSuppressed(path) {
			paths[key] = path
			continue
		}
		s.state.SetIssues(path, values.SourceClientSchema, nil)
	}
	s.schemaPaths = paths
}

// applyBackendIssuesLocked replaces the Backend slot wholesale: paths
// the server no longer reports are pruned from that slot only.
func (s *Session) applyBackendIssuesLocked(issues []entities.Issue) {
	grouped := make(map[string][]entities.Issue)
	paths := make(map[string]values.BindingPath)
	for _, issue := range issues {
		issue.Source = values.SourceBackend
		key := issue.Path.String()
		grouped[key] = append(grouped[key], issue)
		paths[key] = issue.Path
	}

	for _, prev := range s.state.BackendPaths() {
		if _, still := paths[prev.String()]; !still {
			s.state.SetIssues(prev, values.SourceBackend, nil)
		}
	}
	for key, path := range paths {
		s.state.SetIssues(path, values.SourceBackend, grouped[key])
	}
}

func (s *Session) markBackendStaleLocked() {
	for _, path := range s.state.BackendPaths() {
		s.state.MarkStale(path, values.SourceBackend)
	}
}

// applySaveResultLocked folds a save response into the session.
func (s *Session) applySaveResultLocked(ctx context.Context, result *dto.SaveResult, seqSnapshot map[string]uint64) error {
	switch result.Outcome {
	case dto.SaveAccepted:
		// The echo of a stripped payload does not align with local
		// row indexes; keep the local model while removals are
		// pending so UndoRemove still has the data.
		if result.Model != nil && !s.mat.HasSoftRemoved() {
			s.adoptServerModelLocked(result.Model, seqSnapshot)
		}
		return nil

	case dto.SaveChangedFields:
		if len(result.ChangedFields) == 0 {
			// Conflict without correction data: recover by re-fetching
			// the whole model.
			s.mu.Unlock()
			fresh, err := s.backend.FetchModel(ctx)
			s.mu.Lock()
			if err != nil {
				return fmt.Errorf("re-fetching model after conflict: %w", err)
			}
			s.adoptServerModelLocked(fresh, seqSnapshot)
			return nil
		}
		return s.mergeServerCorrectionLocked(result.ChangedFields, seqSnapshot)

	case dto.SaveRejected:
		s.applyBackendIssuesLocked(result.Issues)
		return nil

	default:
		return fmt.Errorf("unknown save outcome %d", result.Outcome)
	}
}

// mergeServerCorrectionLocked applies changed-by-calculation field
// writes. The corrected fields skip the local dirty/re-validate
// cascade (they are already server-validated, and their Backend issues
// were replaced by this same response cycle), but visibility and row
// materialization are re-evaluated because corrections can toggle
// expressions elsewhere.
func (s *Session) mergeServerCorrectionLocked(changed map[string]any, seqSnapshot map[string]uint64) error {
	for flatKey, value := range changed {
		if s.editSeq[flatKey] != seqSnapshot[flatKey] {
			// Edited locally after the save left; the newer local
			// value wins.
			continue
		}
		path, err := values.ParseBinding(flatKey)
		if err != nil {
			s.logger.Warn("ignoring malformed changed field", "field", flatKey, "error", err)
			continue
		}
		if err := services.SetValue(s.model, path, value); err != nil {
			s.logger.Warn("could not apply changed field", "field", flatKey, "error", err)
		}
	}

	if err := s.mat.EnsureMinimumRows(s.model); err != nil {
		return err
	}
	s.reevaluateVisibilityLocked()
	return nil
}

// adoptServerModelLocked replaces the model with a server snapshot,
// keeping any field the user edited after the request was issued.
func (s *Session) adoptServerModelLocked(server entities.DataModel, seqSnapshot map[string]uint64) {
	serverFlat := services.Flatten(server)
	localFlat := services.Flatten(s.model)

	merged := make(services.FlatMap, len(serverFlat))
	for key, value := range serverFlat {
		merged[key] = value
	}
	for key, value := range localFlat {
		if s.editSeq[key] != seqSnapshot[key] {
			merged[key] = value
		}
	}

	model, err := services.Unflatten(merged)
	if err != nil {
		s.logger.Error("could not adopt server model", "error", err)
		return
	}
	s.model = model
	if err := s.mat.EnsureMinimumRows(s.model); err != nil {
		s.logger.Error("minimum-row population failed after adopt", "error", err)
	}
	s.runClientValidationLocked()
}

// reevaluateVisibilityLocked recomputes component visibility and
// prunes issues for paths that went hidden, without re-validating
// visible fields.
func (s *Session) reevaluateVisibilityLocked() {
	result := s.rules.Validate(s.model)
	for _, hidden := range result.Hidden {
		s.state.PrunePath(hidden)
		delete(s.rulePaths, hidden.String())
		delete(s.schemaPaths, hidden.String())
	}
	for _, path := range result.CheckedPaths {
		s.state.MarkVisible(path)
	}
}

// scheduleRefreshLocked debounces a backend validation refresh for an
// edited path: a subsequent edit cancels the pending timer and
// restarts it.
func (s *Session) scheduleRefreshLocked(path values.BindingPath) {
	if s.policy.ValidationDebounce <= 0 {
		return
	}
	key := path.String()
	if timer, ok := s.debounce[key]; ok {
		timer.Stop()
	}
	var timer *time.Timer
	timer = time.AfterFunc(s.policy.ValidationDebounce, func() {
		s.mu.Lock()
		// Only drop the entry if it is still ours; a later edit may
		// have replaced it with a fresh timer.
		if s.debounce[key] == timer {
			delete(s.debounce, key)
		}
		s.mu.Unlock()
		if err := s.RefreshBackendValidations(context.Background()); err != nil {
			s.logger.Warn("debounced validation refresh failed", "path", key, "error", err)
		}
	})
	s.debounce[key] = timer
}
