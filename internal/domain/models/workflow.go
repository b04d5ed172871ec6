package models

import "time"

// UnlockPolicy decides when a step transitions LOCKED -> UNLOCKED absent a
// manual override.
type UnlockPolicy string

const (
	// UnlockAutoAfterPrevSubmitted unlocks once the previous step is
	// submitted or approved (or there is no previous step).
	UnlockAutoAfterPrevSubmitted UnlockPolicy = "AUTO_AFTER_PREV_SUBMITTED"
	// UnlockAfterPrevApproved unlocks only once the previous step is approved.
	UnlockAfterPrevApproved UnlockPolicy = "AFTER_PREV_APPROVED"
	// UnlockDateBased unlocks once the configured unlock time has passed.
	UnlockDateBased UnlockPolicy = "DATE_BASED"
	// UnlockAfterDecisionAccepted unlocks once the application's decision is
	// ACCEPTED and published.
	UnlockAfterDecisionAccepted UnlockPolicy = "AFTER_DECISION_ACCEPTED"
	// UnlockAdminManual never auto-unlocks; only a manual unlock action does.
	UnlockAdminManual UnlockPolicy = "ADMIN_MANUAL"
)

// RejectBehavior controls what a REJECT review outcome does to the step.
type RejectBehavior string

const (
	// RejectFinal makes the rejection terminal and locks all later steps.
	RejectFinal RejectBehavior = "FINAL"
	// RejectResubmitAllowed sends the step back to NEEDS_REVISION.
	RejectResubmitAllowed RejectBehavior = "RESUBMIT_ALLOWED"
)

// StepCategory distinguishes form-backed steps from purely informational ones.
type StepCategory string

const (
	StepCategoryForm     StepCategory = "FORM"
	StepCategoryInfoOnly StepCategory = "INFO_ONLY"
)

// WorkflowStep is one ordered stage of an event's application workflow.
// Authored by staff, read-only to the state engine.
type WorkflowStep struct {
	ID                 string         `json:"id"`
	EventID            string         `json:"event_id"`
	StepIndex          int            `json:"step_index"`
	Title              string         `json:"title"`
	Category           StepCategory   `json:"category"`
	UnlockPolicy       UnlockPolicy   `json:"unlock_policy"`
	UnlockAt           *time.Time     `json:"unlock_at,omitempty"` // DATE_BASED only
	StrictGating       bool           `json:"strict_gating"`
	ReviewRequired     bool           `json:"review_required"`
	RejectBehavior     RejectBehavior `json:"reject_behavior"`
	DeadlineAt         *time.Time     `json:"deadline_at,omitempty"`
	FormVersionID      *string        `json:"form_version_id,omitempty"`
	IsConfirmationStep bool           `json:"is_confirmation_step"`
	CreatedDate        time.Time      `json:"created_date"`
	LastModifiedDate   time.Time      `json:"last_modified_date"`
}

// HasForm reports whether the step collects answers at all. A nil form
// version on an INFO_ONLY step means the step is acknowledged, not filled in.
func (s *WorkflowStep) HasForm() bool {
	return s.FormVersionID != nil && *s.FormVersionID != ""
}
