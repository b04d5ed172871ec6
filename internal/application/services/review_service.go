package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/stagedoor/backend/internal/domain"
	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/domain/ports"
	"github.com/stagedoor/backend/pkg/errors"
	"github.com/stagedoor/backend/pkg/utils"
)

// ReviewService processes staff review outcomes on submitted steps: approve,
// reject, and field-targeted needs-info requests.
type ReviewService struct {
	apps        ports.ApplicationStore
	steps       ports.WorkflowStepStore
	states      ports.StepStateStore
	submissions ports.SubmissionStore
	patches     ports.PatchStore
	requests    ports.InfoRequestStore
	forms       *FormService
	workflow    *WorkflowService
	files       ports.FileVerifier
	attendance  ports.AttendanceRecorder
	machine     *domain.StepStateMachine
	tx          ports.TxRunner
	now         func() time.Time
}

// NewReviewService creates a new ReviewService
func NewReviewService(
	apps ports.ApplicationStore,
	steps ports.WorkflowStepStore,
	states ports.StepStateStore,
	submissions ports.SubmissionStore,
	patches ports.PatchStore,
	requests ports.InfoRequestStore,
	forms *FormService,
	workflow *WorkflowService,
	files ports.FileVerifier,
	attendance ports.AttendanceRecorder,
	tx ports.TxRunner,
) *ReviewService {
	return &ReviewService{
		apps:        apps,
		steps:       steps,
		states:      states,
		submissions: submissions,
		patches:     patches,
		requests:    requests,
		forms:       forms,
		workflow:    workflow,
		files:       files,
		attendance:  attendance,
		machine:     domain.NewStepStateMachine(),
		tx:          tx,
		now:         time.Now,
	}
}

// Approve settles a submitted step positively. File answers must all be
// verified first; open needs-info requests are superseded. Approving the
// confirmation step records attendance.
func (r *ReviewService) Approve(ctx context.Context, applicationID, stepID string, user *models.UserSession) error {
	app, step, err := r.load(ctx, applicationID, stepID)
	if err != nil {
		return err
	}

	if err := r.checkFilesVerified(ctx, applicationID, step); err != nil {
		return err
	}

	err = r.tx.WithRetry(func(tx *sql.Tx) error {
		st, err := r.requireStatus(ctx, tx, applicationID, stepID, domain.TransitionApprove)
		if err != nil {
			return err
		}

		now := r.now()
		st.Status, _ = r.machine.Transition(st.Status, domain.TransitionApprove)
		st.LastActivityAt = now
		if err := r.states.Update(ctx, tx, st); err != nil {
			return err
		}

		// Approval supersedes whatever the reviewer previously asked for.
		if err := r.requests.CloseOpenByStep(ctx, tx, applicationID, stepID, models.InfoRequestCanceled, now); err != nil {
			return err
		}

		_, err = r.workflow.RecomputeStepStates(ctx, tx, app)
		return err
	}, 3)
	if err != nil {
		return err
	}

	if step.IsConfirmationStep {
		// Best effort: a failed attendance write never undoes the approval.
		if err := r.attendance.RecordAttendance(ctx, applicationID, r.now()); err != nil {
			log.Printf("⚠️ Attendance record failed for application %s: %v", applicationID, err)
		}
	}

	log.Printf("✅ Approved step %s for application %s (by %s)", stepID, applicationID, user.ID)
	return nil
}

// Reject settles a submitted step negatively. The step's RejectBehavior
// decides between a terminal rejection, which also locks the application's
// later steps, and a revision round identical to a whole-step needs-info
// request.
func (r *ReviewService) Reject(ctx context.Context, applicationID, stepID, message string, user *models.UserSession) error {
	app, step, err := r.load(ctx, applicationID, stepID)
	if err != nil {
		return err
	}

	if step.RejectBehavior == models.RejectResubmitAllowed {
		return r.requestRevision(ctx, app, step, nil, message, nil)
	}

	err = r.tx.WithRetry(func(tx *sql.Tx) error {
		st, err := r.requireStatus(ctx, tx, applicationID, stepID, domain.TransitionRejectFinal)
		if err != nil {
			return err
		}

		now := r.now()
		st.Status, _ = r.machine.Transition(st.Status, domain.TransitionRejectFinal)
		st.LastActivityAt = now
		if err := r.states.Update(ctx, tx, st); err != nil {
			return err
		}
		if err := r.requests.CloseOpenByStep(ctx, tx, applicationID, stepID, models.InfoRequestCanceled, now); err != nil {
			return err
		}
		return r.workflow.LockDownstream(ctx, tx, app, step.StepIndex)
	}, 3)
	if err != nil {
		return err
	}

	log.Printf("⛔ Finally rejected step %s for application %s (by %s)", stepID, applicationID, user.ID)
	return nil
}

// RequestInfoInput carries a reviewer's needs-info request. Empty
// TargetFieldIDs opens the whole step for revision.
type RequestInfoInput struct {
	ApplicationID  string
	StepID         string
	TargetFieldIDs []string
	Message        string
	DeadlineAt     *time.Time
}

// RequestInfo sends a submitted step back to the applicant. Target field ids
// must exist on the step's form; they are stored canonicalized.
func (r *ReviewService) RequestInfo(ctx context.Context, in RequestInfoInput, user *models.UserSession) (*models.NeedsInfoRequest, error) {
	app, step, err := r.load(ctx, in.ApplicationID, in.StepID)
	if err != nil {
		return nil, err
	}

	targets := in.TargetFieldIDs
	if len(targets) > 0 {
		if !step.HasForm() {
			return nil, errors.NewValidationError("target_field_ids", "step has no form to target")
		}
		_, graph, err := r.forms.Get(ctx, *step.FormVersionID)
		if err != nil {
			return nil, err
		}
		known := make(map[string]bool)
		for _, f := range graph.Fields() {
			known[f.ID] = true
		}
		canonical := make([]string, 0, len(targets))
		for _, ref := range targets {
			id := graph.Canonical(ref)
			if !known[id] {
				return nil, errors.NewValidationError("target_field_ids",
					fmt.Sprintf("unknown field %q", ref))
			}
			canonical = append(canonical, id)
		}
		targets = canonical
	}

	var request *models.NeedsInfoRequest
	err = r.requestRevisionCapture(ctx, app, step, targets, in.Message, in.DeadlineAt, &request)
	if err != nil {
		return nil, err
	}
	return request, nil
}

// CancelRequest withdraws an open needs-info request without touching the
// step's status.
func (r *ReviewService) CancelRequest(ctx context.Context, requestID string) error {
	req, err := r.requests.FindByID(ctx, nil, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return errors.NewNotFoundError("needs-info request", requestID)
	}
	if req.Status != models.InfoRequestOpen {
		return errors.NewConflictError("needs-info request", "request is not open", "")
	}
	return r.requests.Cancel(ctx, nil, requestID, r.now())
}

// ListOpenRequests returns the open requests on one step.
func (r *ReviewService) ListOpenRequests(ctx context.Context, applicationID, stepID string) ([]*models.NeedsInfoRequest, error) {
	return r.requests.ListOpenByStep(ctx, nil, applicationID, stepID)
}

func (r *ReviewService) requestRevision(ctx context.Context, app *models.Application, step *models.WorkflowStep, targets []string, message string, deadline *time.Time) error {
	return r.requestRevisionCapture(ctx, app, step, targets, message, deadline, nil)
}

// requestRevisionCapture runs the shared NEEDS_REVISION transition: create
// the request row, bump the revision cycle counter and relock the downstream
// steps that depended on this one.
func (r *ReviewService) requestRevisionCapture(ctx context.Context, app *models.Application, step *models.WorkflowStep, targets []string, message string, deadline *time.Time, out **models.NeedsInfoRequest) error {
	err := r.tx.WithRetry(func(tx *sql.Tx) error {
		st, err := r.requireStatus(ctx, tx, app.ID, step.ID, domain.TransitionRequestRevision)
		if err != nil {
			return err
		}

		versionID := ""
		if st.LatestSubmissionVersionID != nil {
			versionID = *st.LatestSubmissionVersionID
		}

		now := r.now()
		request := &models.NeedsInfoRequest{
			ID:                  utils.GenerateID(),
			ApplicationID:       app.ID,
			StepID:              step.ID,
			SubmissionVersionID: versionID,
			TargetFieldIDs:      targets,
			Message:             message,
			Status:              models.InfoRequestOpen,
			DeadlineAt:          deadline,
		}
		if err := r.requests.Insert(ctx, tx, request); err != nil {
			return err
		}
		if out != nil {
			*out = request
		}

		st.Status, _ = r.machine.Transition(st.Status, domain.TransitionRequestRevision)
		st.RevisionCycleCount++
		st.LastActivityAt = now
		if err := r.states.Update(ctx, tx, st); err != nil {
			return err
		}

		return r.workflow.RelockDownstream(ctx, tx, app, step.StepIndex)
	}, 3)
	if err != nil {
		return err
	}

	log.Printf("📝 Requested revision on step %s for application %s (targets=%d)",
		step.ID, app.ID, len(targets))
	return nil
}

// checkFilesVerified blocks approval while any file referenced by the step's
// effective answers is unverified.
func (r *ReviewService) checkFilesVerified(ctx context.Context, applicationID string, step *models.WorkflowStep) error {
	if !step.HasForm() {
		return nil
	}

	st, err := r.states.Find(ctx, nil, applicationID, step.ID)
	if err != nil {
		return err
	}
	if st == nil || st.LatestSubmissionVersionID == nil {
		return nil
	}
	version, err := r.submissions.FindByID(ctx, nil, *st.LatestSubmissionVersionID)
	if err != nil || version == nil {
		return err
	}
	patches, err := r.patches.ListActiveByVersion(ctx, nil, version.ID)
	if err != nil {
		return err
	}
	form, _, err := r.forms.Get(ctx, *step.FormVersionID)
	if err != nil {
		return err
	}

	effective := domain.ComputeEffectiveAnswers(version.Answers, patches)
	fileIDs := r.forms.FileRefs(form, effective)
	if len(fileIDs) == 0 {
		return nil
	}

	unverified, err := r.files.UnverifiedFiles(ctx, fileIDs)
	if err != nil {
		return fmt.Errorf("file verification check failed: %w", err)
	}
	if len(unverified) > 0 {
		return errors.NewBadRequestError(
			fmt.Sprintf("cannot approve: unverified files %s", strings.Join(unverified, ", ")))
	}
	return nil
}

// requireStatus loads the state row and verifies the requested transition is
// legal from its current status.
func (r *ReviewService) requireStatus(ctx context.Context, tx *sql.Tx, applicationID, stepID string, action domain.StepTransition) (*models.ApplicationStepState, error) {
	st, err := r.states.Find(ctx, tx, applicationID, stepID)
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, errors.NewNotFoundError("step state", stepID)
	}
	if !r.machine.CanTransition(st.Status, action) {
		return nil, errors.NewConflictError("step state",
			fmt.Sprintf("cannot %s a %s step", action, st.Status), "")
	}
	return st, nil
}

func (r *ReviewService) load(ctx context.Context, applicationID, stepID string) (*models.Application, *models.WorkflowStep, error) {
	app, err := r.apps.FindByID(ctx, nil, applicationID)
	if err != nil {
		return nil, nil, err
	}
	if app == nil {
		return nil, nil, errors.NewNotFoundError("application", applicationID)
	}
	step, err := r.steps.FindByID(ctx, nil, stepID)
	if err != nil {
		return nil, nil, err
	}
	if step == nil {
		return nil, nil, errors.NewNotFoundError("workflow step", stepID)
	}
	return app, step, nil
}
