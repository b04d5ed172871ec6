package models

import "time"

// DecisionStatus is the event-level outcome for an application.
type DecisionStatus string

const (
	DecisionNone       DecisionStatus = "NONE"
	DecisionAccepted   DecisionStatus = "ACCEPTED"
	DecisionWaitlisted DecisionStatus = "WAITLISTED"
	DecisionRejected   DecisionStatus = "REJECTED"
)

// Application is the parent aggregate for an applicant's progress through an
// event's workflow. A nil DecisionPublishedAt means the decision is a draft
// and invisible to the applicant (and to AFTER_DECISION_ACCEPTED unlocks).
type Application struct {
	ID                  string         `json:"id"`
	EventID             string         `json:"event_id"`
	ApplicantID         string         `json:"applicant_id"`
	DecisionStatus      DecisionStatus `json:"decision_status"`
	DecisionPublishedAt *time.Time     `json:"decision_published_at,omitempty"`
	CreatedDate         time.Time      `json:"created_date"`
	LastModifiedDate    time.Time      `json:"last_modified_date"`
}

// DecisionIsPublishedAccepted reports whether the application may pass an
// AFTER_DECISION_ACCEPTED gate.
func (a *Application) DecisionIsPublishedAccepted() bool {
	return a.DecisionStatus == DecisionAccepted && a.DecisionPublishedAt != nil
}
