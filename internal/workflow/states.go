package workflow

import "github.com/surveyops/review-api/internal/models"

// State identifies a stage of the review workflow.
type State string

// Workflow states. A record always holds exactly one of these.
const (
	StatePendingInterviewer   State = "pending_interviewer"
	StatePendingSupervisor    State = "pending_supervisor"
	StatePendingExaminer      State = "pending_examiner"
	StateRejectedBySupervisor State = "rejected_by_supervisor"
	StateRejectedByExaminer   State = "rejected_by_examiner"
	StateFinalized            State = "finalized"
	StateFinalizedBySampling  State = "finalized_by_sampling"
)

// Action identifies a named transition between workflow states.
type Action string

// Workflow actions. Every status change goes through one of these.
const (
	ActionApproveToSupervisor  Action = "approve_to_supervisor"
	ActionApproveToExaminer    Action = "approve_to_examiner"
	ActionRejectToInterviewer  Action = "reject_to_interviewer"
	ActionRejectToSupervisor   Action = "reject_to_supervisor"
	ActionResubmitToSupervisor Action = "resubmit_to_supervisor"
	ActionResubmitToExaminer   Action = "resubmit_to_examiner"
	ActionApplySampling        Action = "apply_sampling"
	ActionFinalApproval        Action = "final_approval"
)

// StateDefinition describes one workflow state for presentation layers.
// Color is a presentation tag only and carries no workflow meaning.
type StateDefinition struct {
	Label        string   `json:"label"`
	Color        string   `json:"color"`
	AllowedRoles []string `json:"allowed_roles"`
	Actions      []Action `json:"actions"`
	NextStates   []State  `json:"next_states"`
	IsFinal      bool     `json:"is_final"`
}

// TransitionDefinition describes one named transition.
type TransitionDefinition struct {
	Label        string  `json:"label"`
	From         []State `json:"from"`
	To           []State `json:"to"`
	RequiredRole string  `json:"required_role"`
	RequiresNote bool    `json:"requires_note"`
	IsSampling   bool    `json:"is_sampling"`
}

var stateTable = map[State]StateDefinition{
	StatePendingInterviewer: {
		Label:        "Pending Interviewer Review",
		Color:        "#f0ad4e",
		AllowedRoles: []string{models.RoleInterviewer},
		Actions:      []Action{ActionApproveToSupervisor},
		NextStates:   []State{StatePendingSupervisor},
	},
	StatePendingSupervisor: {
		Label:        "Pending Supervisor Review",
		Color:        "#5bc0de",
		AllowedRoles: []string{models.RoleSupervisor},
		Actions:      []Action{ActionApproveToExaminer, ActionRejectToInterviewer, ActionApplySampling},
		NextStates:   []State{StatePendingExaminer, StateRejectedBySupervisor, StateFinalizedBySampling},
	},
	StatePendingExaminer: {
		Label:        "Pending Examiner Review",
		Color:        "#337ab7",
		AllowedRoles: []string{models.RoleExaminer},
		Actions:      []Action{ActionFinalApproval, ActionRejectToSupervisor},
		NextStates:   []State{StateFinalized, StateRejectedByExaminer},
	},
	StateRejectedBySupervisor: {
		Label:        "Rejected by Supervisor",
		Color:        "#d9534f",
		AllowedRoles: []string{models.RoleInterviewer},
		Actions:      []Action{ActionResubmitToSupervisor},
		NextStates:   []State{StatePendingSupervisor},
	},
	StateRejectedByExaminer: {
		Label:        "Rejected by Examiner",
		Color:        "#d9534f",
		AllowedRoles: []string{models.RoleSupervisor},
		Actions:      []Action{ActionResubmitToExaminer},
		NextStates:   []State{StatePendingExaminer},
	},
	StateFinalized: {
		Label:   "Finalized",
		Color:   "#5cb85c",
		IsFinal: true,
	},
	StateFinalizedBySampling: {
		Label:   "Finalized by Sampling",
		Color:   "#5cb85c",
		IsFinal: true,
	},
}

var transitionTable = map[Action]TransitionDefinition{
	ActionApproveToSupervisor: {
		Label:        "Approve to Supervisor",
		From:         []State{StatePendingInterviewer},
		To:           []State{StatePendingSupervisor},
		RequiredRole: models.RoleInterviewer,
	},
	ActionApproveToExaminer: {
		Label:        "Approve to Examiner",
		From:         []State{StatePendingSupervisor},
		To:           []State{StatePendingExaminer},
		RequiredRole: models.RoleSupervisor,
	},
	ActionRejectToInterviewer: {
		Label:        "Reject to Interviewer",
		From:         []State{StatePendingSupervisor},
		To:           []State{StateRejectedBySupervisor},
		RequiredRole: models.RoleSupervisor,
		RequiresNote: true,
	},
	ActionRejectToSupervisor: {
		Label:        "Reject to Supervisor",
		From:         []State{StatePendingExaminer},
		To:           []State{StateRejectedByExaminer},
		RequiredRole: models.RoleExaminer,
		RequiresNote: true,
	},
	ActionResubmitToSupervisor: {
		Label:        "Resubmit to Supervisor",
		From:         []State{StateRejectedBySupervisor},
		To:           []State{StatePendingSupervisor},
		RequiredRole: models.RoleInterviewer,
	},
	ActionResubmitToExaminer: {
		Label:        "Resubmit to Examiner",
		From:         []State{StateRejectedByExaminer},
		To:           []State{StatePendingExaminer},
		RequiredRole: models.RoleSupervisor,
	},
	ActionApplySampling: {
		Label:        "Apply Sampling",
		From:         []State{StatePendingSupervisor},
		To:           []State{StateFinalizedBySampling, StatePendingExaminer},
		RequiredRole: models.RoleSupervisor,
		IsSampling:   true,
	},
	ActionFinalApproval: {
		Label:        "Final Approval",
		From:         []State{StatePendingExaminer},
		To:           []State{StateFinalized},
		RequiredRole: models.RoleExaminer,
	},
}

// States returns the full state table keyed by state.
func States() map[State]StateDefinition {
	out := make(map[State]StateDefinition, len(stateTable))
	for key, def := range stateTable {
		out[key] = def
	}
	return out
}

// Transitions returns the full transition table keyed by action.
func Transitions() map[Action]TransitionDefinition {
	out := make(map[Action]TransitionDefinition, len(transitionTable))
	for key, def := range transitionTable {
		out[key] = def
	}
	return out
}

// StateOf looks up a state definition.
func StateOf(state State) (StateDefinition, bool) {
	def, ok := stateTable[state]
	return def, ok
}

// TransitionOf looks up a transition definition.
func TransitionOf(action Action) (TransitionDefinition, bool) {
	def, ok := transitionTable[action]
	return def, ok
}

// IsValidState reports whether the given status string names a workflow state.
func IsValidState(status string) bool {
	_, ok := stateTable[State(status)]
	return ok
}

// IsTerminal reports whether the state admits no further transitions.
func IsTerminal(state State) bool {
	def, ok := stateTable[state]
	return ok && def.IsFinal
}

func (d TransitionDefinition) validFrom(state State) bool {
	for _, from := range d.From {
		if from == state {
			return true
		}
	}
	return false
}

// assigneeRoleFor maps a state to the role responsible for acting on it.
// Terminal states have no assignee.
func assigneeRoleFor(state State) string {
	def, ok := stateTable[state]
	if !ok || def.IsFinal || len(def.AllowedRoles) == 0 {
		return ""
	}
	return def.AllowedRoles[0]
}
