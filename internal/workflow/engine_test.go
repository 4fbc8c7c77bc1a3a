package workflow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/surveyops/review-api/internal/models"
)

type fakeRecordStore struct {
	records map[string]models.ReviewRecord
	trail   map[string][]models.AuditEntry
	failGet error
	failMut error
}

func newFakeRecordStore(records ...models.ReviewRecord) *fakeRecordStore {
	store := &fakeRecordStore{
		records: make(map[string]models.ReviewRecord),
		trail:   make(map[string][]models.AuditEntry),
	}
	for _, record := range records {
		store.records[record.ID] = record
	}
	return store
}

func (f *fakeRecordStore) Get(_ context.Context, id string) (models.ReviewRecord, error) {
	if f.failGet != nil {
		return models.ReviewRecord{}, f.failGet
	}
	record, ok := f.records[id]
	if !ok {
		return models.ReviewRecord{}, ErrInvalidRecord
	}
	return record, nil
}

func (f *fakeRecordStore) Mutate(_ context.Context, id string, fn func(*models.ReviewRecord) ([]models.AuditEntry, error)) error {
	if f.failMut != nil {
		return f.failMut
	}
	record, ok := f.records[id]
	if !ok {
		return ErrInvalidRecord
	}

	entries, err := fn(&record)
	if err != nil {
		return err
	}

	f.records[id] = record
	for _, entry := range entries {
		entry.RecordID = id
		entry.CreatedAt = time.Now()
		f.trail[id] = append(f.trail[id], entry)
	}
	return nil
}

type fakeRoleOracle struct {
	roles map[uint]string
}

func (f *fakeRoleOracle) HasCapability(_ context.Context, userID uint, capability string) (bool, error) {
	role, ok := f.roles[userID]
	if !ok {
		return false, nil
	}
	return CapabilityForRole(role) == capability, nil
}

func (f *fakeRoleOracle) UserForRole(_ context.Context, role string) (uint, error) {
	var found uint
	for id, r := range f.roles {
		if r == role && (found == 0 || id < found) {
			found = id
		}
	}
	return found, nil
}

type fixedSampler struct{ value float64 }

func (f fixedSampler) Draw() float64 { return f.value }

const (
	interviewerID = uint(1)
	supervisorID  = uint(2)
	examinerID    = uint(3)
	adminID       = uint(9)
)

func testOracle() *fakeRoleOracle {
	return &fakeRoleOracle{roles: map[uint]string{
		interviewerID: models.RoleInterviewer,
		supervisorID:  models.RoleSupervisor,
		examinerID:    models.RoleExaminer,
		adminID:       models.RoleAdmin,
	}}
}

func testRecord(id string, status State) models.ReviewRecord {
	return models.ReviewRecord{
		ID:         id,
		SurveyID:   "svy-1",
		ResponseID: "rsp-" + id,
		Status:     string(status),
		CreatedAt:  time.Now().Add(-time.Hour),
	}
}

func newTestEngine(t *testing.T, store RecordStore, sampler Sampler, percentage int) *Engine {
	t.Helper()
	engine, err := NewEngine(store, testOracle(), sampler, Config{SamplingPercentage: percentage}, zerolog.New(io.Discard))
	require.NoError(t, err)
	return engine
}

func TestNewEngineRejectsInvalidSamplingPercentage(t *testing.T) {
	for _, percentage := range []int{0, -5, 101} {
		_, err := NewEngine(newFakeRecordStore(), testOracle(), nil, Config{SamplingPercentage: percentage}, zerolog.New(io.Discard))
		require.Error(t, err, "percentage %d", percentage)
	}
}

func TestValidateTransitionUnknownRecord(t *testing.T) {
	engine := newTestEngine(t, newFakeRecordStore(), nil, 30)

	err := engine.ValidateTransition(context.Background(), "missing", ActionApproveToSupervisor, interviewerID)
	require.ErrorIs(t, err, ErrInvalidRecord)
}

func TestValidateTransitionUnknownAction(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	engine := newTestEngine(t, store, nil, 30)

	err := engine.ValidateTransition(context.Background(), "r1", Action("promote_to_ceo"), interviewerID)
	require.ErrorIs(t, err, ErrInvalidAction)
}

func TestValidateTransitionRejectsActionsNotValidFromState(t *testing.T) {
	for state, stateDef := range States() {
		valid := make(map[Action]struct{}, len(stateDef.Actions))
		for _, action := range stateDef.Actions {
			valid[action] = struct{}{}
		}

		store := newFakeRecordStore(testRecord("r1", state))
		engine := newTestEngine(t, store, nil, 30)

		for action := range Transitions() {
			if _, ok := valid[action]; ok {
				continue
			}
			err := engine.ValidateTransition(context.Background(), "r1", action, adminID)
			require.ErrorIs(t, err, ErrInvalidTransition, "state %s action %s", state, action)
		}
	}
}

func TestValidateTransitionRoleGate(t *testing.T) {
	store := newFakeRecordStore(
		testRecord("a", StatePendingInterviewer),
		testRecord("b", StatePendingSupervisor),
	)
	engine := newTestEngine(t, store, nil, 30)
	ctx := context.Background()

	require.NoError(t, engine.ValidateTransition(ctx, "a", ActionApproveToSupervisor, interviewerID))

	err := engine.ValidateTransition(ctx, "b", ActionApproveToExaminer, interviewerID)
	require.ErrorIs(t, err, ErrInsufficientPermissions)
}

func TestValidateTransitionAdminBypassesRoleGateOnly(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)
	ctx := context.Background()

	require.NoError(t, engine.ValidateTransition(ctx, "r1", ActionApproveToExaminer, adminID))

	// The from-state constraint still applies to administrators.
	err := engine.ValidateTransition(ctx, "r1", ActionFinalApproval, adminID)
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransitionStatusApproveToSupervisor(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	engine := newTestEngine(t, store, nil, 30)

	require.NoError(t, engine.TransitionStatus(context.Background(), "r1", ActionApproveToSupervisor, interviewerID, ""))

	record := store.records["r1"]
	require.Equal(t, string(StatePendingSupervisor), record.Status)
	require.Equal(t, supervisorID, record.AssignedUserID)
	require.Nil(t, record.CompletionDate)

	trail := store.trail["r1"]
	require.Len(t, trail, 1)
	require.Equal(t, models.AuditActionStatusChange, trail[0].Action)
	require.Equal(t, string(StatePendingInterviewer), trail[0].OldValue)
	require.Equal(t, string(StatePendingSupervisor), trail[0].NewValue)
	require.Equal(t, interviewerID, trail[0].UserID)
}

func TestTransitionStatusMissingNotes(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)

	err := engine.TransitionStatus(context.Background(), "r1", ActionRejectToInterviewer, supervisorID, "   ")
	require.ErrorIs(t, err, ErrMissingNotes)

	require.Equal(t, string(StatePendingSupervisor), store.records["r1"].Status)
	require.Empty(t, store.trail["r1"])
}

func TestTransitionStatusRejectRecordsNotes(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)

	require.NoError(t, engine.TransitionStatus(context.Background(), "r1", ActionRejectToInterviewer, supervisorID, "answers incomplete"))

	record := store.records["r1"]
	require.Equal(t, string(StateRejectedBySupervisor), record.Status)
	require.Equal(t, interviewerID, record.AssignedUserID)

	trail := store.trail["r1"]
	require.Len(t, trail, 1)
	require.Equal(t, "answers incomplete", trail[0].Notes)
}

func TestTransitionStatusFinalApproval(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingExaminer))
	engine := newTestEngine(t, store, nil, 30)
	ctx := context.Background()

	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionFinalApproval, examinerID, ""))

	record := store.records["r1"]
	require.Equal(t, string(StateFinalized), record.Status)
	require.NotNil(t, record.CompletionDate)
	require.Zero(t, record.AssignedUserID)

	completed := *record.CompletionDate

	// Terminal state: every further transition fails and the completion
	// date never moves.
	for action := range Transitions() {
		err := engine.TransitionStatus(ctx, "r1", action, adminID, "note")
		require.ErrorIs(t, err, ErrInvalidTransition, "action %s", action)
	}
	require.Equal(t, completed, *store.records["r1"].CompletionDate)
	require.Len(t, store.trail["r1"], 1)
}

func TestTransitionStatusPersistenceFailure(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	engine := newTestEngine(t, store, nil, 30)
	store.failMut = errors.New("connection reset")

	err := engine.TransitionStatus(context.Background(), "r1", ActionApproveToSupervisor, interviewerID, "")
	require.ErrorIs(t, err, ErrPersistence)
	require.Equal(t, string(StatePendingInterviewer), store.records["r1"].Status)
	require.Empty(t, store.trail["r1"])
}

func TestApplySamplingGateFinalizes(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, fixedSampler{value: 10}, 30)

	require.NoError(t, engine.ApplySamplingGate(context.Background(), "r1", supervisorID, ""))

	record := store.records["r1"]
	require.Equal(t, string(StateFinalizedBySampling), record.Status)
	require.NotNil(t, record.CompletionDate)

	// The sampling draw adds its own audit entry next to the status change.
	trail := store.trail["r1"]
	require.Len(t, trail, 2)
	require.Equal(t, models.AuditActionSampling, trail[0].Action)
	require.Equal(t, string(StateFinalizedBySampling), trail[0].NewValue)
	require.Equal(t, models.AuditActionStatusChange, trail[1].Action)
}

func TestApplySamplingGateRoutesToExaminer(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, fixedSampler{value: 30}, 30)

	// A draw equal to the percentage falls outside the finalize band.
	require.NoError(t, engine.ApplySamplingGate(context.Background(), "r1", supervisorID, ""))

	record := store.records["r1"]
	require.Equal(t, string(StatePendingExaminer), record.Status)
	require.Equal(t, examinerID, record.AssignedUserID)
	require.Nil(t, record.CompletionDate)

	trail := store.trail["r1"]
	require.Len(t, trail, 2)
	require.Equal(t, models.AuditActionSampling, trail[0].Action)
	require.Equal(t, string(StatePendingExaminer), trail[0].NewValue)
}

func TestApplySamplingGateInvalidFromState(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	engine := newTestEngine(t, store, fixedSampler{value: 10}, 30)

	err := engine.ApplySamplingGate(context.Background(), "r1", supervisorID, "")
	require.ErrorIs(t, err, ErrInvalidTransition)
}

func TestAvailableActionsMatchesValidation(t *testing.T) {
	ctx := context.Background()
	users := []uint{interviewerID, supervisorID, examinerID, adminID, uint(77)}

	for state := range States() {
		store := newFakeRecordStore(testRecord("r1", state))
		engine := newTestEngine(t, store, nil, 30)

		for _, userID := range users {
			available, err := engine.AvailableActions(ctx, "r1", userID)
			require.NoError(t, err)

			for action := range Transitions() {
				validateErr := engine.ValidateTransition(ctx, "r1", action, userID)
				_, offered := available[action]
				require.Equal(t, validateErr == nil, offered,
					"state %s action %s user %d", state, action, userID)
			}
		}
	}
}

func TestAvailableActionsIdempotentReads(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)
	ctx := context.Background()

	first, err := engine.AvailableActions(ctx, "r1", supervisorID)
	require.NoError(t, err)
	second, err := engine.AvailableActions(ctx, "r1", supervisorID)
	require.NoError(t, err)
	require.Equal(t, first, second)

	require.Len(t, first, 3)
	require.Contains(t, first, ActionApproveToExaminer)
	require.Contains(t, first, ActionRejectToInterviewer)
	require.Contains(t, first, ActionApplySampling)
}

func TestTransitionObserversReceiveEvent(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	engine := newTestEngine(t, store, nil, 30)

	var events []TransitionEvent
	engine.OnTransitionCompleted(func(event TransitionEvent) {
		events = append(events, event)
	})
	// A panicking observer must not fail the transition.
	engine.OnTransitionCompleted(func(TransitionEvent) {
		panic("observer exploded")
	})

	require.NoError(t, engine.TransitionStatus(context.Background(), "r1", ActionApproveToSupervisor, interviewerID, ""))

	require.Len(t, events, 1)
	require.Equal(t, TransitionEvent{
		RecordID:  "r1",
		Action:    ActionApproveToSupervisor,
		OldStatus: StatePendingInterviewer,
		NewStatus: StatePendingSupervisor,
		UserID:    interviewerID,
	}, events[0])
	require.Equal(t, string(StatePendingSupervisor), store.records["r1"].Status)
}

func TestEditDataRoleRules(t *testing.T) {
	ctx := context.Background()
	payload := map[string]interface{}{"q1": "updated"}

	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)

	// The supervisor owns pending_supervisor and may edit.
	require.NoError(t, engine.EditData(ctx, "r1", supervisorID, payload))
	require.Len(t, store.trail["r1"], 1)
	require.Equal(t, models.AuditActionDataEdit, store.trail["r1"][0].Action)

	// The examiner does not own the state.
	err := engine.EditData(ctx, "r1", examinerID, payload)
	require.ErrorIs(t, err, ErrInsufficientPermissions)

	// Finalized records are read-only to everyone except administrators.
	finalized := testRecord("r2", StateFinalized)
	now := time.Now()
	finalized.CompletionDate = &now
	store = newFakeRecordStore(finalized)
	engine = newTestEngine(t, store, nil, 30)

	err = engine.EditData(ctx, "r2", examinerID, payload)
	require.ErrorIs(t, err, ErrInsufficientPermissions)
	require.NoError(t, engine.EditData(ctx, "r2", adminID, payload))
}

func TestReassignUserAdminOnly(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingSupervisor))
	engine := newTestEngine(t, store, nil, 30)
	ctx := context.Background()

	err := engine.ReassignUser(ctx, "r1", supervisorID, examinerID)
	require.ErrorIs(t, err, ErrInsufficientPermissions)

	require.NoError(t, engine.ReassignUser(ctx, "r1", adminID, examinerID))
	require.Equal(t, examinerID, store.records["r1"].AssignedUserID)

	trail := store.trail["r1"]
	require.Len(t, trail, 1)
	require.Equal(t, models.AuditActionUserAssignment, trail[0].Action)
	require.Equal(t, fmt.Sprintf("%d", examinerID), trail[0].NewValue)
}

func TestFullReviewCycle(t *testing.T) {
	store := newFakeRecordStore(testRecord("r1", StatePendingInterviewer))
	// Route past the gate deterministically so the record reaches the examiner.
	engine := newTestEngine(t, store, fixedSampler{value: 99}, 30)
	ctx := context.Background()

	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionApproveToSupervisor, interviewerID, ""))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionRejectToInterviewer, supervisorID, "missing consent answer"))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionResubmitToSupervisor, interviewerID, ""))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionApplySampling, supervisorID, ""))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionRejectToSupervisor, examinerID, "outlier values"))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionResubmitToExaminer, supervisorID, ""))
	require.NoError(t, engine.TransitionStatus(ctx, "r1", ActionFinalApproval, examinerID, ""))

	record := store.records["r1"]
	require.Equal(t, string(StateFinalized), record.Status)
	require.NotNil(t, record.CompletionDate)

	// Seven status changes plus one sampling entry.
	trail := store.trail["r1"]
	require.Len(t, trail, 8)
	statusChanges := 0
	for _, entry := range trail {
		if entry.Action == models.AuditActionStatusChange {
			statusChanges++
		}
	}
	require.Equal(t, 7, statusChanges)
}
