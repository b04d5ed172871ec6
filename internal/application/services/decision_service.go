package services

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/internal/domain/ports"
	"github.com/stagedoor/backend/pkg/constants"
	"github.com/stagedoor/backend/pkg/errors"
)

// DecisionService stores draft decisions and publishes them to applicants in
// bounded-parallel batches.
type DecisionService struct {
	apps     ports.ApplicationStore
	workflow *WorkflowService
	notifier ports.Notifier
	tx       ports.TxRunner
	now      func() time.Time
}

// NewDecisionService creates a new DecisionService
func NewDecisionService(apps ports.ApplicationStore, workflow *WorkflowService, notifier ports.Notifier, tx ports.TxRunner) *DecisionService {
	return &DecisionService{
		apps:     apps,
		workflow: workflow,
		notifier: notifier,
		tx:       tx,
		now:      time.Now,
	}
}

var validDecisions = map[models.DecisionStatus]bool{
	models.DecisionAccepted:   true,
	models.DecisionWaitlisted: true,
	models.DecisionRejected:   true,
}

// SetDecision stores a draft decision. Drafts are invisible to applicants
// and freely revisable until published; a published decision is immutable.
func (s *DecisionService) SetDecision(ctx context.Context, applicationID string, decision models.DecisionStatus) error {
	if !validDecisions[decision] {
		return errors.NewValidationError("decision", fmt.Sprintf("unknown decision %q", decision))
	}

	app, err := s.apps.FindByID(ctx, nil, applicationID)
	if err != nil {
		return err
	}
	if app == nil {
		return errors.NewNotFoundError("application", applicationID)
	}
	if app.DecisionPublishedAt != nil {
		return errors.NewConflictError("decision", "decision is already published", "")
	}

	if err := s.apps.SetDecision(ctx, nil, applicationID, decision); err != nil {
		return err
	}
	log.Printf("⚖️ Draft decision %s set on application %s", decision, applicationID)
	return nil
}

// PublishFailure reports one application the fan-out could not publish.
type PublishFailure struct {
	ApplicationID string `json:"application_id"`
	Error         string `json:"error"`
}

// PublishReport summarizes a publication run.
type PublishReport struct {
	Published int              `json:"published"`
	Failed    []PublishFailure `json:"failed,omitempty"`
}

// PublishDecisions publishes the event's draft decisions, optionally limited
// to an explicit application id list. Applications are processed in batches
// of constants.DecisionPublishBatchSize with one goroutine per application
// inside a batch; one failure never aborts the run, it lands in the report.
// Publication stamps the timestamp, notifies the applicant and recomputes the
// application so AFTER_DECISION_ACCEPTED steps open immediately.
func (s *DecisionService) PublishDecisions(ctx context.Context, eventID string, applicationIDs []string) (*PublishReport, error) {
	apps, err := s.apps.ListPublishable(ctx, eventID, applicationIDs)
	if err != nil {
		return nil, err
	}

	report := &PublishReport{}
	var mu sync.Mutex

	for start := 0; start < len(apps); start += constants.DecisionPublishBatchSize {
		end := start + constants.DecisionPublishBatchSize
		if end > len(apps) {
			end = len(apps)
		}

		var wg sync.WaitGroup
		for _, app := range apps[start:end] {
			wg.Add(1)
			go func(app *models.Application) {
				defer wg.Done()
				err := s.publishOne(ctx, app)
				mu.Lock()
				defer mu.Unlock()
				if err != nil {
					report.Failed = append(report.Failed, PublishFailure{
						ApplicationID: app.ID,
						Error:         err.Error(),
					})
					return
				}
				report.Published++
			}(app)
		}
		wg.Wait()
	}

	log.Printf("📣 Published %d decisions for event %s (%d failed)",
		report.Published, eventID, len(report.Failed))
	return report, nil
}

func (s *DecisionService) publishOne(ctx context.Context, app *models.Application) error {
	now := s.now()
	err := s.tx.WithRetry(func(tx *sql.Tx) error {
		return s.apps.MarkPublished(ctx, tx, app.ID, now)
	}, 3)
	if err != nil {
		return err
	}
	app.DecisionPublishedAt = &now

	if err := s.notifier.Notify(ctx, app.ApplicantID, "decision_published",
		"Your application decision is ready",
		"The decision for your application is now available."); err != nil {
		// The decision is out; a lost notification is logged, not fatal.
		log.Printf("⚠️ Decision notification failed for application %s: %v", app.ID, err)
	}

	return s.workflow.RecomputeApplication(ctx, app.ID)
}
