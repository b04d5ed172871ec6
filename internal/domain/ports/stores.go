package ports

import (
	"context"
	"database/sql"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
)

// TxRunner runs a unit of work in a database transaction. Implementations
// pass the open *sql.Tx to fn; test fakes pass nil, which the stores treat
// as "no transaction".
type TxRunner interface {
	WithTransaction(fn func(tx *sql.Tx) error) error
	WithRetry(fn func(tx *sql.Tx) error, maxRetries int) error
}

// WorkflowStepStore reads and writes workflow step configuration.
type WorkflowStepStore interface {
	Insert(ctx context.Context, tx *sql.Tx, step *models.WorkflowStep) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.WorkflowStep, error)
	ListByEvent(ctx context.Context, tx *sql.Tx, eventID string) ([]*models.WorkflowStep, error)
}

// ApplicationStore reads and writes the application aggregate.
type ApplicationStore interface {
	Insert(ctx context.Context, tx *sql.Tx, app *models.Application) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.Application, error)
	FindByEventAndApplicant(ctx context.Context, tx *sql.Tx, eventID, applicantID string) (*models.Application, error)
	ListIDsByEvent(ctx context.Context, eventID string) ([]string, error)
	SetDecision(ctx context.Context, tx *sql.Tx, applicationID string, decision models.DecisionStatus) error
	ListPublishable(ctx context.Context, eventID string, ids []string) ([]*models.Application, error)
	MarkPublished(ctx context.Context, tx *sql.Tx, applicationID string, at time.Time) error
}

// StepStateStore reads and writes per-application step states.
type StepStateStore interface {
	InsertBatch(ctx context.Context, tx *sql.Tx, states []*models.ApplicationStepState) error
	ListByApplication(ctx context.Context, tx *sql.Tx, applicationID string) ([]*models.ApplicationStepState, error)
	Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.ApplicationStepState, error)
	BatchUnlock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error
	BatchLock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error
	Update(ctx context.Context, tx *sql.Tx, st *models.ApplicationStepState) error
}

// SubmissionStore appends and reads immutable submission versions.
type SubmissionStore interface {
	Insert(ctx context.Context, tx *sql.Tx, v *models.StepSubmissionVersion) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.StepSubmissionVersion, error)
	FindLatest(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepSubmissionVersion, error)
	ListByStep(ctx context.Context, applicationID, stepID string) ([]*models.StepSubmissionVersion, error)
}

// PatchStore reads and writes admin change patches.
type PatchStore interface {
	Insert(ctx context.Context, tx *sql.Tx, patch *models.AdminChangePatch) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.AdminChangePatch, error)
	ListActiveByVersion(ctx context.Context, tx *sql.Tx, submissionVersionID string) ([]*models.AdminChangePatch, error)
	Deactivate(ctx context.Context, tx *sql.Tx, id string) error
}

// InfoRequestStore reads and writes needs-info requests.
type InfoRequestStore interface {
	Insert(ctx context.Context, tx *sql.Tx, req *models.NeedsInfoRequest) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.NeedsInfoRequest, error)
	ListOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string) ([]*models.NeedsInfoRequest, error)
	CloseOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string, to models.InfoRequestStatus, at time.Time) error
	Cancel(ctx context.Context, tx *sql.Tx, id string, at time.Time) error
}

// DraftStore reads and writes applicant work-in-progress drafts.
type DraftStore interface {
	Upsert(ctx context.Context, tx *sql.Tx, applicationID, stepID string, answers models.AnswerMap) error
	Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepDraft, error)
	Delete(ctx context.Context, tx *sql.Tx, applicationID, stepID string) error
}

// FormStore reads and writes published form versions.
type FormStore interface {
	Insert(ctx context.Context, tx *sql.Tx, form *models.FormVersion) error
	FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.FormVersion, error)
}
