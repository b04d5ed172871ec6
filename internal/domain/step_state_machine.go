package domain

import (
	"fmt"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
)

// StepTransition represents an action that can change a step state
type StepTransition string

const (
	// TransitionUnlock opens a locked step for the applicant
	TransitionUnlock StepTransition = "Unlock"
	// TransitionSubmit records an applicant submission (also resubmission
	// out of NEEDS_REVISION)
	TransitionSubmit StepTransition = "Submit"
	// TransitionApprove is the terminal positive review outcome
	TransitionApprove StepTransition = "Approve"
	// TransitionRequestRevision sends a submitted step back to the applicant
	TransitionRequestRevision StepTransition = "RequestRevision"
	// TransitionRejectFinal is the terminal negative review outcome
	TransitionRejectFinal StepTransition = "RejectFinal"
	// TransitionRelock closes an unlocked step again (downstream re-gating)
	TransitionRelock StepTransition = "Relock"
)

// StepStateMachine enforces valid status transitions for application step
// states. Invalid transitions return an error (fail-fast approach). Manual
// admin overrides bypass the machine on purpose; everything else goes
// through it.
type StepStateMachine struct {
	// transitions maps (current status, transition) -> next status
	transitions map[stateTransitionKey]models.StepStatus
}

type stateTransitionKey struct {
	status     models.StepStatus
	transition StepTransition
}

// NewStepStateMachine creates a new state machine with the step lifecycle rules.
// Status diagram:
//
//	[Locked] ◄──Relock──┐
//	    │               │
//	  Unlock            │
//	    ▼               │
//	[Unlocked]──────────┘
//	    │
//	  Submit
//	    ▼
//	[Submitted] ◄──Submit── [NeedsRevision]
//	    │      \        ▲
//	 Approve    \   RequestRevision
//	    │        \      │
//	    ▼         ──────┘
//	[Approved]    and RejectFinal ──► [RejectedFinal]
//
// Approved and RejectedFinal are terminal.
func NewStepStateMachine() *StepStateMachine {
	sm := &StepStateMachine{
		transitions: make(map[stateTransitionKey]models.StepStatus),
	}

	sm.addTransition(models.StepStatusLocked, TransitionUnlock, models.StepStatusUnlocked)
	sm.addTransition(models.StepStatusUnlocked, TransitionSubmit, models.StepStatusSubmitted)
	sm.addTransition(models.StepStatusUnlocked, TransitionRelock, models.StepStatusLocked)
	sm.addTransition(models.StepStatusSubmitted, TransitionApprove, models.StepStatusApproved)
	sm.addTransition(models.StepStatusSubmitted, TransitionRequestRevision, models.StepStatusNeedsRevision)
	sm.addTransition(models.StepStatusSubmitted, TransitionRejectFinal, models.StepStatusRejectedFinal)
	sm.addTransition(models.StepStatusNeedsRevision, TransitionSubmit, models.StepStatusSubmitted)

	return sm
}

func (sm *StepStateMachine) addTransition(from models.StepStatus, via StepTransition, to models.StepStatus) {
	key := stateTransitionKey{status: from, transition: via}
	sm.transitions[key] = to
}

// Transition attempts to transition from the current status using the given
// action. Returns the new status or an error if the transition is invalid.
func (sm *StepStateMachine) Transition(current models.StepStatus, action StepTransition) (models.StepStatus, error) {
	key := stateTransitionKey{status: current, transition: action}
	next, ok := sm.transitions[key]
	if !ok {
		return current, fmt.Errorf("invalid step transition: cannot %s from %s", action, current)
	}
	return next, nil
}

// CanTransition checks if a transition is valid without performing it.
func (sm *StepStateMachine) CanTransition(current models.StepStatus, action StepTransition) bool {
	key := stateTransitionKey{status: current, transition: action}
	_, ok := sm.transitions[key]
	return ok
}

// IsTerminal returns true if the status admits no further transitions.
func (sm *StepStateMachine) IsTerminal(status models.StepStatus) bool {
	return status == models.StepStatusApproved || status == models.StepStatusRejectedFinal
}

// PolicyAllowsUnlock evaluates a step's unlock policy. prev is the previous
// step's state in ascending index order, nil when the step is first. Unknown
// policies never auto-unlock.
func PolicyAllowsUnlock(step *models.WorkflowStep, prev *models.ApplicationStepState, app *models.Application, now time.Time) bool {
	switch step.UnlockPolicy {
	case models.UnlockAutoAfterPrevSubmitted:
		return prev == nil ||
			prev.Status == models.StepStatusSubmitted ||
			prev.Status == models.StepStatusApproved
	case models.UnlockAfterPrevApproved:
		return prev == nil || prev.Status == models.StepStatusApproved
	case models.UnlockDateBased:
		return step.UnlockAt != nil && !now.Before(*step.UnlockAt)
	case models.UnlockAfterDecisionAccepted:
		return app != nil && app.DecisionIsPublishedAccepted()
	case models.UnlockAdminManual:
		return false
	default:
		return false
	}
}

// GatePermitsUnlock applies the strict-gating overlay: a gated step cannot
// unlock while the previous step is neither submitted nor approved, no
// matter what the policy says. AND-combined with the policy, never OR.
func GatePermitsUnlock(step *models.WorkflowStep, prev *models.ApplicationStepState) bool {
	if !step.StrictGating || prev == nil {
		return true
	}
	return prev.Status == models.StepStatusSubmitted || prev.Status == models.StepStatusApproved
}

// ShouldUnlock decides whether a LOCKED step is eligible to unlock right now.
func ShouldUnlock(step *models.WorkflowStep, prev *models.ApplicationStepState, app *models.Application, now time.Time) bool {
	return PolicyAllowsUnlock(step, prev, app, now) && GatePermitsUnlock(step, prev)
}

// InitialStatus computes the status a freshly created step state starts in.
// Only the first step may start unlocked; it is evaluated with no previous
// state, so the prev-dependent policies come up unlocked and DATE_BASED
// checks the clock immediately.
func InitialStatus(step *models.WorkflowStep, app *models.Application, now time.Time) models.StepStatus {
	if step.StepIndex == 0 && ShouldUnlock(step, nil, app, now) {
		return models.StepStatusUnlocked
	}
	return models.StepStatusLocked
}

// PolicyDependsOnPrev reports whether a policy's unlock decision reads the
// previous step's status. Used when deciding which downstream steps to
// re-lock after a step falls back into NEEDS_REVISION.
func PolicyDependsOnPrev(policy models.UnlockPolicy) bool {
	return policy == models.UnlockAutoAfterPrevSubmitted || policy == models.UnlockAfterPrevApproved
}
