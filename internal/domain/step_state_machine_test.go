package domain

import (
	"testing"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stretchr/testify/assert"
)

func TestStepStateMachine_ValidTransitions(t *testing.T) {
	sm := NewStepStateMachine()

	tests := []struct {
		name        string
		from        models.StepStatus
		action      StepTransition
		expectedTo  models.StepStatus
		shouldError bool
	}{
		// Valid transitions
		{"Locked -> Unlocked via Unlock", models.StepStatusLocked, TransitionUnlock, models.StepStatusUnlocked, false},
		{"Unlocked -> Submitted via Submit", models.StepStatusUnlocked, TransitionSubmit, models.StepStatusSubmitted, false},
		{"Unlocked -> Locked via Relock", models.StepStatusUnlocked, TransitionRelock, models.StepStatusLocked, false},
		{"Submitted -> Approved via Approve", models.StepStatusSubmitted, TransitionApprove, models.StepStatusApproved, false},
		{"Submitted -> NeedsRevision via RequestRevision", models.StepStatusSubmitted, TransitionRequestRevision, models.StepStatusNeedsRevision, false},
		{"Submitted -> RejectedFinal via RejectFinal", models.StepStatusSubmitted, TransitionRejectFinal, models.StepStatusRejectedFinal, false},
		{"NeedsRevision -> Submitted via Submit", models.StepStatusNeedsRevision, TransitionSubmit, models.StepStatusSubmitted, false},

		// Invalid transitions
		{"Locked -> Submitted (must unlock first)", models.StepStatusLocked, TransitionSubmit, models.StepStatusLocked, true},
		{"Submitted -> Submitted (no double submit)", models.StepStatusSubmitted, TransitionSubmit, models.StepStatusSubmitted, true},
		{"Approved is terminal", models.StepStatusApproved, TransitionSubmit, models.StepStatusApproved, true},
		{"RejectedFinal is terminal", models.StepStatusRejectedFinal, TransitionUnlock, models.StepStatusRejectedFinal, true},
		{"NeedsRevision cannot approve without resubmission", models.StepStatusNeedsRevision, TransitionApprove, models.StepStatusNeedsRevision, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			newStatus, err := sm.Transition(tc.from, tc.action)

			if tc.shouldError {
				assert.Error(t, err)
				assert.Equal(t, tc.from, newStatus, "Status should not change on invalid transition")
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectedTo, newStatus)
			}
		})
	}
}

func TestStepStateMachine_IsTerminal(t *testing.T) {
	sm := NewStepStateMachine()

	assert.True(t, sm.IsTerminal(models.StepStatusApproved))
	assert.True(t, sm.IsTerminal(models.StepStatusRejectedFinal))
	assert.False(t, sm.IsTerminal(models.StepStatusLocked))
	assert.False(t, sm.IsTerminal(models.StepStatusNeedsRevision))
}

func stepWithPolicy(policy models.UnlockPolicy, index int) *models.WorkflowStep {
	return &models.WorkflowStep{ID: "step", StepIndex: index, UnlockPolicy: policy}
}

func stateWithStatus(status models.StepStatus) *models.ApplicationStepState {
	return &models.ApplicationStepState{StepID: "prev", Status: status}
}

func TestPolicyAllowsUnlock(t *testing.T) {
	now := time.Now().UTC()
	app := &models.Application{DecisionStatus: models.DecisionNone}

	tests := []struct {
		name     string
		policy   models.UnlockPolicy
		prev     *models.ApplicationStepState
		expected bool
	}{
		{"auto: no previous step", models.UnlockAutoAfterPrevSubmitted, nil, true},
		{"auto: prev submitted", models.UnlockAutoAfterPrevSubmitted, stateWithStatus(models.StepStatusSubmitted), true},
		{"auto: prev approved", models.UnlockAutoAfterPrevSubmitted, stateWithStatus(models.StepStatusApproved), true},
		{"auto: prev unlocked only", models.UnlockAutoAfterPrevSubmitted, stateWithStatus(models.StepStatusUnlocked), false},
		{"auto: prev needs revision", models.UnlockAutoAfterPrevSubmitted, stateWithStatus(models.StepStatusNeedsRevision), false},
		{"approved-gate: prev submitted is not enough", models.UnlockAfterPrevApproved, stateWithStatus(models.StepStatusSubmitted), false},
		{"approved-gate: prev approved", models.UnlockAfterPrevApproved, stateWithStatus(models.StepStatusApproved), true},
		{"approved-gate: no previous step", models.UnlockAfterPrevApproved, nil, true},
		{"manual never auto-unlocks", models.UnlockAdminManual, stateWithStatus(models.StepStatusApproved), false},
		{"unknown policy never unlocks", models.UnlockPolicy("SOMETHING_NEW"), stateWithStatus(models.StepStatusApproved), false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			step := stepWithPolicy(tc.policy, 1)
			assert.Equal(t, tc.expected, PolicyAllowsUnlock(step, tc.prev, app, now))
		})
	}
}

func TestPolicyAllowsUnlock_DateBased(t *testing.T) {
	now := time.Now().UTC()
	app := &models.Application{}

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := stepWithPolicy(models.UnlockDateBased, 1)
	due.UnlockAt = &past
	assert.True(t, PolicyAllowsUnlock(due, nil, app, now))

	notDue := stepWithPolicy(models.UnlockDateBased, 1)
	notDue.UnlockAt = &future
	assert.False(t, PolicyAllowsUnlock(notDue, nil, app, now))

	// Exactly at the unlock instant counts as unlocked
	atInstant := stepWithPolicy(models.UnlockDateBased, 1)
	atInstant.UnlockAt = &now
	assert.True(t, PolicyAllowsUnlock(atInstant, nil, app, now))

	// Misconfigured date policy with no time never unlocks
	missing := stepWithPolicy(models.UnlockDateBased, 1)
	assert.False(t, PolicyAllowsUnlock(missing, nil, app, now))
}

func TestPolicyAllowsUnlock_DecisionGated(t *testing.T) {
	now := time.Now().UTC()
	step := stepWithPolicy(models.UnlockAfterDecisionAccepted, 3)

	// Accepted but unpublished stays locked
	app := &models.Application{DecisionStatus: models.DecisionAccepted}
	assert.False(t, PolicyAllowsUnlock(step, nil, app, now))

	// Published acceptance unlocks
	published := now
	app.DecisionPublishedAt = &published
	assert.True(t, PolicyAllowsUnlock(step, nil, app, now))

	// Published rejection does not
	rejected := &models.Application{DecisionStatus: models.DecisionRejected, DecisionPublishedAt: &published}
	assert.False(t, PolicyAllowsUnlock(step, nil, rejected, now))
}

func TestGatePermitsUnlock(t *testing.T) {
	gated := &models.WorkflowStep{StrictGating: true, UnlockPolicy: models.UnlockAutoAfterPrevSubmitted}
	open := &models.WorkflowStep{StrictGating: false}

	assert.True(t, GatePermitsUnlock(gated, nil), "first step has nothing to gate on")
	assert.True(t, GatePermitsUnlock(gated, stateWithStatus(models.StepStatusSubmitted)))
	assert.True(t, GatePermitsUnlock(gated, stateWithStatus(models.StepStatusApproved)))
	assert.False(t, GatePermitsUnlock(gated, stateWithStatus(models.StepStatusNeedsRevision)))
	assert.False(t, GatePermitsUnlock(gated, stateWithStatus(models.StepStatusUnlocked)))
	assert.True(t, GatePermitsUnlock(open, stateWithStatus(models.StepStatusLocked)))
}

func TestShouldUnlock_StrictGatingSuppressesPolicy(t *testing.T) {
	now := time.Now().UTC()
	app := &models.Application{}

	// DATE_BASED policy says yes, but strict gating on a needs-revision
	// previous step wins.
	past := now.Add(-time.Hour)
	step := &models.WorkflowStep{
		StepIndex:    2,
		UnlockPolicy: models.UnlockDateBased,
		UnlockAt:     &past,
		StrictGating: true,
	}
	assert.False(t, ShouldUnlock(step, stateWithStatus(models.StepStatusNeedsRevision), app, now))
	assert.True(t, ShouldUnlock(step, stateWithStatus(models.StepStatusApproved), app, now))
}

func TestInitialStatus(t *testing.T) {
	now := time.Now().UTC()
	app := &models.Application{}

	assert.Equal(t, models.StepStatusUnlocked, InitialStatus(stepWithPolicy(models.UnlockAutoAfterPrevSubmitted, 0), app, now))
	assert.Equal(t, models.StepStatusUnlocked, InitialStatus(stepWithPolicy(models.UnlockAfterPrevApproved, 0), app, now))
	assert.Equal(t, models.StepStatusLocked, InitialStatus(stepWithPolicy(models.UnlockAdminManual, 0), app, now))
	assert.Equal(t, models.StepStatusLocked, InitialStatus(stepWithPolicy(models.UnlockAfterDecisionAccepted, 0), app, now))

	// Non-first steps always start locked
	assert.Equal(t, models.StepStatusLocked, InitialStatus(stepWithPolicy(models.UnlockAutoAfterPrevSubmitted, 1), app, now))

	// DATE_BASED checks the clock immediately
	past := now.Add(-time.Minute)
	dated := stepWithPolicy(models.UnlockDateBased, 0)
	dated.UnlockAt = &past
	assert.Equal(t, models.StepStatusUnlocked, InitialStatus(dated, app, now))
}

func TestPolicyDependsOnPrev(t *testing.T) {
	assert.True(t, PolicyDependsOnPrev(models.UnlockAutoAfterPrevSubmitted))
	assert.True(t, PolicyDependsOnPrev(models.UnlockAfterPrevApproved))
	assert.False(t, PolicyDependsOnPrev(models.UnlockDateBased))
	assert.False(t, PolicyDependsOnPrev(models.UnlockAdminManual))
	assert.False(t, PolicyDependsOnPrev(models.UnlockAfterDecisionAccepted))
}
