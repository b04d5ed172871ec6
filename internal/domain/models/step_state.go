package models

import "time"

// StepStatus is the per-application status of one workflow step.
type StepStatus string

const (
	StepStatusLocked        StepStatus = "LOCKED"
	StepStatusUnlocked      StepStatus = "UNLOCKED"
	StepStatusSubmitted     StepStatus = "SUBMITTED"
	StepStatusNeedsRevision StepStatus = "NEEDS_REVISION"
	StepStatusApproved      StepStatus = "APPROVED"
	StepStatusRejectedFinal StepStatus = "REJECTED_FINAL"
)

// ApplicationStepState is one row per application x workflow step. Status is
// owned by the step state machine; other components request transitions
// through it rather than writing status directly.
type ApplicationStepState struct {
	ApplicationID             string     `json:"application_id"`
	StepID                    string     `json:"step_id"`
	Status                    StepStatus `json:"status"`
	CurrentDraftID            *string    `json:"current_draft_id,omitempty"`
	LatestSubmissionVersionID *string    `json:"latest_submission_version_id,omitempty"`
	RevisionCycleCount        int        `json:"revision_cycle_count"`
	UnlockedAt                *time.Time `json:"unlocked_at,omitempty"`
	LastActivityAt            time.Time  `json:"last_activity_at"`
}

// IsSettled reports whether the step holds applicant-visible progress that a
// recomputation pass must not disturb. Settled steps never re-lock via
// policy.
func (s *ApplicationStepState) IsSettled() bool {
	switch s.Status {
	case StepStatusSubmitted, StepStatusApproved, StepStatusNeedsRevision:
		return true
	}
	return false
}
