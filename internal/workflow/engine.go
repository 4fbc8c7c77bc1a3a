package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"github.com/surveyops/review-api/internal/models"
)

// Capabilities consulted on the role oracle. One capability per reviewer
// role, plus the admin capability that bypasses every role gate.
const (
	CapabilityReviewAsInterviewer = "review_as_interviewer"
	CapabilityReviewAsSupervisor  = "review_as_supervisor"
	CapabilityReviewAsExaminer    = "review_as_examiner"
	CapabilityManageWorkflow      = "manage_review_workflow"
)

// CapabilityForRole maps a reviewer role to the capability gating its actions.
func CapabilityForRole(role string) string {
	switch role {
	case models.RoleInterviewer:
		return CapabilityReviewAsInterviewer
	case models.RoleSupervisor:
		return CapabilityReviewAsSupervisor
	case models.RoleExaminer:
		return CapabilityReviewAsExaminer
	case models.RoleAdmin:
		return CapabilityManageWorkflow
	default:
		return ""
	}
}

// RecordStore is the persistence boundary the engine mutates records through.
//
// Get resolves a record by identifier; a missing record yields
// ErrInvalidRecord. Mutate runs fn against the current record under a
// per-record exclusive lock and, in the same transaction, appends the audit
// entries fn returns. If fn errors, nothing is written and the error is
// returned verbatim.
type RecordStore interface {
	Get(ctx context.Context, id string) (models.ReviewRecord, error)
	Mutate(ctx context.Context, id string, fn func(record *models.ReviewRecord) ([]models.AuditEntry, error)) error
}

// RoleOracle answers capability and assignment questions about users.
// UserForRole returns 0 with no error when no user holds the role.
type RoleOracle interface {
	HasCapability(ctx context.Context, userID uint, capability string) (bool, error)
	UserForRole(ctx context.Context, role string) (uint, error)
}

// TransitionEvent describes a completed workflow transition. It is handed to
// observers after the status change has been persisted.
type TransitionEvent struct {
	RecordID  string `json:"record_id"`
	Action    Action `json:"action"`
	OldStatus State  `json:"old_status"`
	NewStatus State  `json:"new_status"`
	UserID    uint   `json:"user_id"`
}

// Observer receives transition-completed events. Observers run synchronously
// after persistence; a failing observer never rolls the transition back.
type Observer func(event TransitionEvent)

// Config carries the tunable parameters of the engine.
type Config struct {
	// SamplingPercentage is the share of supervisor-approved records the
	// sampling gate finalizes without examiner review. Valid range 1-100.
	SamplingPercentage int
}

// Validate checks the configured sampling percentage.
func (c Config) Validate() error {
	if c.SamplingPercentage < 1 || c.SamplingPercentage > 100 {
		return fmt.Errorf("sampling percentage must be between 1 and 100, got %d", c.SamplingPercentage)
	}
	return nil
}

// Engine validates and executes workflow transitions.
type Engine struct {
	store   RecordStore
	roles   RoleOracle
	sampler Sampler
	cfg     Config
	logger  zerolog.Logger
	now     func() time.Time

	mu        sync.RWMutex
	observers []Observer
}

// NewEngine constructs the workflow engine. A nil sampler falls back to the
// per-call re-seeded uniform sampler.
func NewEngine(store RecordStore, roles RoleOracle, sampler Sampler, cfg Config, logger zerolog.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if sampler == nil {
		sampler = NewUniformSampler()
	}

	return &Engine{
		store:   store,
		roles:   roles,
		sampler: sampler,
		cfg:     cfg,
		logger:  logger.With().Str("component", "workflow_engine").Logger(),
		now:     time.Now,
	}, nil
}

// OnTransitionCompleted registers an observer for completed transitions.
func (e *Engine) OnTransitionCompleted(observer Observer) {
	if observer == nil {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.observers = append(e.observers, observer)
}

// ValidateTransition checks whether the user may execute the action on the
// record right now. It never mutates anything.
func (e *Engine) ValidateTransition(ctx context.Context, recordID string, action Action, userID uint) error {
	record, err := e.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			return ErrInvalidRecord
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	definition, ok := TransitionOf(action)
	if !ok {
		return ErrInvalidAction
	}

	if !definition.validFrom(State(record.Status)) {
		return ErrInvalidTransition
	}

	return e.checkPermission(ctx, userID, definition.RequiredRole)
}

// TransitionStatus executes the action on the record. The status update, the
// audit entries, the assignee recomputation and the completion stamp are
// persisted atomically per record; on any failure nothing is written.
func (e *Engine) TransitionStatus(ctx context.Context, recordID string, action Action, userID uint, notes string) error {
	if err := e.ValidateTransition(ctx, recordID, action, userID); err != nil {
		return err
	}

	definition, _ := TransitionOf(action)
	if definition.RequiresNote && strings.TrimSpace(notes) == "" {
		return ErrMissingNotes
	}

	var event TransitionEvent
	err := e.store.Mutate(ctx, recordID, func(record *models.ReviewRecord) ([]models.AuditEntry, error) {
		// From-state is re-checked under the row lock so concurrent
		// transitions on the same record cannot interleave.
		oldStatus := State(record.Status)
		if !definition.validFrom(oldStatus) {
			return nil, ErrInvalidTransition
		}

		newStatus, entries, err := e.resolveDestination(definition, oldStatus, userID)
		if err != nil {
			return nil, err
		}

		record.Status = string(newStatus)

		assignee, err := e.assigneeFor(ctx, newStatus)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
		}
		record.AssignedUserID = assignee

		if IsTerminal(newStatus) && record.CompletionDate == nil {
			completed := e.now()
			record.CompletionDate = &completed
		}

		entries = append(entries, models.AuditEntry{
			UserID:   userID,
			Action:   models.AuditActionStatusChange,
			OldValue: string(oldStatus),
			NewValue: string(newStatus),
			Notes:    strings.TrimSpace(notes),
		})

		event = TransitionEvent{
			RecordID:  recordID,
			Action:    action,
			OldStatus: oldStatus,
			NewStatus: newStatus,
			UserID:    userID,
		}

		return entries, nil
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	e.logger.Info().
		Str("record_id", event.RecordID).
		Str("action", string(event.Action)).
		Str("old_status", string(event.OldStatus)).
		Str("new_status", string(event.NewStatus)).
		Uint("user_id", event.UserID).
		Msg("workflow transition completed")

	e.notify(event)

	return nil
}

// ApplySamplingGate runs the sampling transition on a supervisor-approved
// record. Equivalent to TransitionStatus with the apply_sampling action;
// exposed separately so the gate can be exercised directly.
func (e *Engine) ApplySamplingGate(ctx context.Context, recordID string, userID uint, notes string) error {
	return e.TransitionStatus(ctx, recordID, ActionApplySampling, userID, notes)
}

// AvailableActions returns the transitions valid from the record's current
// state that the user is permitted to execute. The result never includes an
// action ValidateTransition would reject for the same user and record.
func (e *Engine) AvailableActions(ctx context.Context, recordID string, userID uint) (map[Action]TransitionDefinition, error) {
	record, err := e.store.Get(ctx, recordID)
	if err != nil {
		if errors.Is(err, ErrInvalidRecord) {
			return nil, ErrInvalidRecord
		}
		return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	current := State(record.Status)
	available := make(map[Action]TransitionDefinition)
	for action, definition := range transitionTable {
		if !definition.validFrom(current) {
			continue
		}
		if err := e.checkPermission(ctx, userID, definition.RequiredRole); err != nil {
			if errors.Is(err, ErrInsufficientPermissions) {
				continue
			}
			return nil, err
		}
		available[action] = definition
	}

	return available, nil
}

// EditData replaces the record's raw answer payload. Non-admin users may
// only edit while their role owns the current state; administrators may edit
// any record, including finalized ones.
func (e *Engine) EditData(ctx context.Context, recordID string, userID uint, data map[string]interface{}) error {
	admin, err := e.hasCapability(ctx, userID, CapabilityManageWorkflow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	err = e.store.Mutate(ctx, recordID, func(record *models.ReviewRecord) ([]models.AuditEntry, error) {
		current := State(record.Status)
		if !admin {
			if IsTerminal(current) {
				return nil, ErrInsufficientPermissions
			}
			allowed, err := e.holdsStateRole(ctx, userID, current)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrPersistence, err)
			}
			if !allowed {
				return nil, ErrInsufficientPermissions
			}
		}

		record.Data = datatypes.JSONMap(data)

		return []models.AuditEntry{{
			UserID:   userID,
			Action:   models.AuditActionDataEdit,
			NewValue: record.Status,
		}}, nil
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return nil
}

// ReassignUser hands the record to another user. Admin only; the automatic
// per-state assignment still overrides it on the next transition.
func (e *Engine) ReassignUser(ctx context.Context, recordID string, userID, assigneeID uint) error {
	admin, err := e.hasCapability(ctx, userID, CapabilityManageWorkflow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !admin {
		return ErrInsufficientPermissions
	}

	err = e.store.Mutate(ctx, recordID, func(record *models.ReviewRecord) ([]models.AuditEntry, error) {
		if IsTerminal(State(record.Status)) {
			return nil, ErrInvalidTransition
		}

		previous := record.AssignedUserID
		record.AssignedUserID = assigneeID

		return []models.AuditEntry{{
			UserID:   userID,
			Action:   models.AuditActionUserAssignment,
			OldValue: fmt.Sprintf("%d", previous),
			NewValue: fmt.Sprintf("%d", assigneeID),
		}}, nil
	})
	if err != nil {
		if isDomainError(err) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}

	return nil
}

// resolveDestination picks the destination state for the transition. For the
// sampling action the destination depends on a fresh uniform draw; a
// sampling audit entry records the chosen destination so the outcome stays
// auditable after the fact.
func (e *Engine) resolveDestination(definition TransitionDefinition, current State, userID uint) (State, []models.AuditEntry, error) {
	if !definition.IsSampling {
		return definition.To[0], nil, nil
	}

	draw := e.sampler.Draw()
	destination := StatePendingExaminer
	if draw < float64(e.cfg.SamplingPercentage) {
		destination = StateFinalizedBySampling
	}

	e.logger.Debug().
		Float64("draw", draw).
		Int("percentage", e.cfg.SamplingPercentage).
		Str("destination", string(destination)).
		Msg("sampling gate draw")

	entry := models.AuditEntry{
		UserID:   userID,
		Action:   models.AuditActionSampling,
		OldValue: string(current),
		NewValue: string(destination),
	}

	return destination, []models.AuditEntry{entry}, nil
}

func (e *Engine) assigneeFor(ctx context.Context, state State) (uint, error) {
	role := assigneeRoleFor(state)
	if role == "" {
		return 0, nil
	}
	return e.roles.UserForRole(ctx, role)
}

// checkPermission passes when the user holds the capability for the required
// role, or the admin capability.
func (e *Engine) checkPermission(ctx context.Context, userID uint, requiredRole string) error {
	admin, err := e.hasCapability(ctx, userID, CapabilityManageWorkflow)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if admin {
		return nil
	}

	capability := CapabilityForRole(requiredRole)
	if capability == "" {
		return ErrInsufficientPermissions
	}

	allowed, err := e.hasCapability(ctx, userID, capability)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	if !allowed {
		return ErrInsufficientPermissions
	}

	return nil
}

func (e *Engine) hasCapability(ctx context.Context, userID uint, capability string) (bool, error) {
	if userID == 0 {
		return false, nil
	}
	return e.roles.HasCapability(ctx, userID, capability)
}

func (e *Engine) holdsStateRole(ctx context.Context, userID uint, state State) (bool, error) {
	definition, ok := StateOf(state)
	if !ok {
		return false, nil
	}
	for _, role := range definition.AllowedRoles {
		allowed, err := e.hasCapability(ctx, userID, CapabilityForRole(role))
		if err != nil {
			return false, err
		}
		if allowed {
			return true, nil
		}
	}
	return false, nil
}

func (e *Engine) notify(event TransitionEvent) {
	e.mu.RLock()
	observers := make([]Observer, len(e.observers))
	copy(observers, e.observers)
	e.mu.RUnlock()

	for _, observer := range observers {
		e.runObserver(observer, event)
	}
}

// runObserver isolates observer panics: the persisted status change is
// authoritative, observers are best-effort.
func (e *Engine) runObserver(observer Observer, event TransitionEvent) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error().
				Interface("panic", r).
				Str("record_id", event.RecordID).
				Msg("transition observer panicked")
		}
	}()
	observer(event)
}

func isDomainError(err error) bool {
	return errors.Is(err, ErrInvalidRecord) ||
		errors.Is(err, ErrInvalidAction) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrInsufficientPermissions) ||
		errors.Is(err, ErrMissingNotes) ||
		errors.Is(err, ErrPersistence)
}
