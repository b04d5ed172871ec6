package models

import "time"

// AnswerMap holds a step's answers keyed by field key. Values are whatever
// JSON decoding produced (string, float64, bool, []any, map[string]any).
type AnswerMap map[string]any

// Clone returns a shallow copy. Nested values are shared; callers that
// mutate nested structures must deep-copy themselves.
func (m AnswerMap) Clone() AnswerMap {
	out := make(AnswerMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

// StepSubmissionVersion is an immutable, append-only snapshot of a step's
// answers. VersionNumber is contiguous starting at 1 per (application, step)
// and is assigned inside the same transaction that updates step state.
type StepSubmissionVersion struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	StepID        string    `json:"step_id"`
	FormVersionID *string   `json:"form_version_id,omitempty"`
	VersionNumber int       `json:"version_number"`
	Answers       AnswerMap `json:"answers_snapshot"`
	SubmittedBy   string    `json:"submitted_by"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// PatchOp is a single operation in an admin change patch. Only "replace" is
// applied; other verbs are ignored for forward compatibility.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// AdminChangePatch is a staff-authored overlay on one submission version.
// Active patches apply in creation order; later patches win per field.
type AdminChangePatch struct {
	ID                  string    `json:"id"`
	ApplicationID       string    `json:"application_id"`
	StepID              string    `json:"step_id"`
	SubmissionVersionID string    `json:"submission_version_id"`
	Ops                 []PatchOp `json:"ops"`
	IsActive            bool      `json:"is_active"`
	CreatedDate         time.Time `json:"created_date"`
}

// InfoRequestStatus is the lifecycle state of a needs-info request.
type InfoRequestStatus string

const (
	InfoRequestOpen     InfoRequestStatus = "OPEN"
	InfoRequestResolved InfoRequestStatus = "RESOLVED"
	InfoRequestCanceled InfoRequestStatus = "CANCELED"
)

// NeedsInfoRequest is a reviewer-issued request for the applicant to revise
// answers. An empty TargetFieldIDs list means the whole step is open for
// revision.
type NeedsInfoRequest struct {
	ID                  string            `json:"id"`
	ApplicationID       string            `json:"application_id"`
	StepID              string            `json:"step_id"`
	SubmissionVersionID string            `json:"submission_version_id"`
	TargetFieldIDs      []string          `json:"target_field_ids"`
	Message             string            `json:"message"`
	Status              InfoRequestStatus `json:"status"`
	DeadlineAt          *time.Time        `json:"deadline_at,omitempty"`
	CreatedDate         time.Time         `json:"created_date"`
	ResolvedAt          *time.Time        `json:"resolved_at,omitempty"`
}

// IsTargeted reports whether the request restricts edits to specific fields.
func (r *NeedsInfoRequest) IsTargeted() bool {
	return len(r.TargetFieldIDs) > 0
}

// StepDraft is applicant work-in-progress that has not been versioned yet.
type StepDraft struct {
	ID            string    `json:"id"`
	ApplicationID string    `json:"application_id"`
	StepID        string    `json:"step_id"`
	Answers       AnswerMap `json:"answers"`
	UpdatedDate   time.Time `json:"updated_date"`
}
