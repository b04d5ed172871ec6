package services

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
)

// fakeStore is an in-memory implementation of every store interface the
// services consume. A single mutex makes it safe under the publish fan-out's
// goroutines; write counters let tests assert that a no-op pass writes
// nothing.
type fakeStore struct {
	mu sync.Mutex

	steps       map[string]*models.WorkflowStep
	apps        map[string]*models.Application
	states      map[string]*models.ApplicationStepState
	submissions map[string]*models.StepSubmissionVersion
	patches     map[string]*models.AdminChangePatch
	requests    map[string]*models.NeedsInfoRequest
	drafts      map[string]*models.StepDraft
	forms       map[string]*models.FormVersion

	unlockWrites int
	lockWrites   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		steps:       make(map[string]*models.WorkflowStep),
		apps:        make(map[string]*models.Application),
		states:      make(map[string]*models.ApplicationStepState),
		submissions: make(map[string]*models.StepSubmissionVersion),
		patches:     make(map[string]*models.AdminChangePatch),
		requests:    make(map[string]*models.NeedsInfoRequest),
		drafts:      make(map[string]*models.StepDraft),
		forms:       make(map[string]*models.FormVersion),
	}
}

func stateKey(applicationID, stepID string) string {
	return applicationID + "|" + stepID
}

// stepIndex is called with the mutex already held.
func (f *fakeStore) stepIndex(stepID string) int {
	if step, ok := f.steps[stepID]; ok {
		return step.StepIndex
	}
	return 0
}

// WorkflowStepStore (implemented by fakeStore directly; the other store
// interfaces collide on Insert/FindByID, so thin wrapper types below expose
// one interface each over the shared state).

func (f *fakeStore) Insert(ctx context.Context, tx *sql.Tx, step *models.WorkflowStep) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.steps[step.ID] = step
	return nil
}

func (f *fakeStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.WorkflowStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.steps[id], nil
}

func (f *fakeStore) ListByEvent(ctx context.Context, tx *sql.Tx, eventID string) ([]*models.WorkflowStep, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var steps []*models.WorkflowStep
	for _, s := range f.steps {
		if s.EventID == eventID {
			steps = append(steps, s)
		}
	}
	sort.Slice(steps, func(i, j int) bool { return steps[i].StepIndex < steps[j].StepIndex })
	return steps, nil
}

type fakeAppStore struct{ *fakeStore }

func (f fakeAppStore) Insert(ctx context.Context, tx *sql.Tx, app *models.Application) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.apps[app.ID] = app
	return nil
}

func (f fakeAppStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apps[id], nil
}

func (f fakeAppStore) FindByEventAndApplicant(ctx context.Context, tx *sql.Tx, eventID, applicantID string) (*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, app := range f.apps {
		if app.EventID == eventID && app.ApplicantID == applicantID {
			return app, nil
		}
	}
	return nil, nil
}

func (f fakeAppStore) ListIDsByEvent(ctx context.Context, eventID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for _, app := range f.apps {
		if app.EventID == eventID {
			ids = append(ids, app.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (f fakeAppStore) SetDecision(ctx context.Context, tx *sql.Tx, applicationID string, decision models.DecisionStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[applicationID]
	if !ok {
		return fmt.Errorf("application %s not found", applicationID)
	}
	app.DecisionStatus = decision
	return nil
}

func (f fakeAppStore) ListPublishable(ctx context.Context, eventID string, ids []string) ([]*models.Application, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	requested := make(map[string]bool, len(ids))
	for _, id := range ids {
		requested[id] = true
	}
	var apps []*models.Application
	for _, app := range f.apps {
		if app.EventID != eventID || app.DecisionStatus == models.DecisionNone || app.DecisionPublishedAt != nil {
			continue
		}
		if len(ids) > 0 && !requested[app.ID] {
			continue
		}
		apps = append(apps, app)
	}
	sort.Slice(apps, func(i, j int) bool { return apps[i].ID < apps[j].ID })
	return apps, nil
}

func (f fakeAppStore) MarkPublished(ctx context.Context, tx *sql.Tx, applicationID string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	app, ok := f.apps[applicationID]
	if !ok {
		return fmt.Errorf("application %s not found", applicationID)
	}
	app.DecisionPublishedAt = &at
	return nil
}

type fakeStateStore struct{ *fakeStore }

func (f fakeStateStore) InsertBatch(ctx context.Context, tx *sql.Tx, states []*models.ApplicationStepState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, st := range states {
		f.states[stateKey(st.ApplicationID, st.StepID)] = st
	}
	return nil
}

func (f fakeStateStore) ListByApplication(ctx context.Context, tx *sql.Tx, applicationID string) ([]*models.ApplicationStepState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var states []*models.ApplicationStepState
	for _, st := range f.states {
		if st.ApplicationID == applicationID {
			states = append(states, st)
		}
	}
	sort.Slice(states, func(i, j int) bool {
		return f.stepIndex(states[i].StepID) < f.stepIndex(states[j].StepID)
	})
	return states, nil
}

func (f fakeStateStore) Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.ApplicationStepState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.states[stateKey(applicationID, stepID)], nil
}

func (f fakeStateStore) BatchUnlock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unlockWrites++
	for _, id := range stepIDs {
		st := f.states[stateKey(applicationID, id)]
		st.Status = models.StepStatusUnlocked
		st.UnlockedAt = &at
		st.LastActivityAt = at
	}
	return nil
}

func (f fakeStateStore) BatchLock(ctx context.Context, tx *sql.Tx, applicationID string, stepIDs []string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(stepIDs) > 0 {
		f.lockWrites++
	}
	for _, id := range stepIDs {
		st := f.states[stateKey(applicationID, id)]
		st.Status = models.StepStatusLocked
		st.UnlockedAt = nil
		st.LastActivityAt = at
	}
	return nil
}

func (f fakeStateStore) Update(ctx context.Context, tx *sql.Tx, st *models.ApplicationStepState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states[stateKey(st.ApplicationID, st.StepID)] = st
	return nil
}

type fakeSubmissionStore struct{ *fakeStore }

func (f fakeSubmissionStore) Insert(ctx context.Context, tx *sql.Tx, v *models.StepSubmissionVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submissions[v.ID] = v
	return nil
}

func (f fakeSubmissionStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.StepSubmissionVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.submissions[id], nil
}

func (f fakeSubmissionStore) FindLatest(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepSubmissionVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *models.StepSubmissionVersion
	for _, v := range f.submissions {
		if v.ApplicationID != applicationID || v.StepID != stepID {
			continue
		}
		if latest == nil || v.VersionNumber > latest.VersionNumber {
			latest = v
		}
	}
	return latest, nil
}

func (f fakeSubmissionStore) ListByStep(ctx context.Context, applicationID, stepID string) ([]*models.StepSubmissionVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var versions []*models.StepSubmissionVersion
	for _, v := range f.submissions {
		if v.ApplicationID == applicationID && v.StepID == stepID {
			versions = append(versions, v)
		}
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i].VersionNumber < versions[j].VersionNumber })
	return versions, nil
}

type fakePatchStore struct{ *fakeStore }

func (f fakePatchStore) Insert(ctx context.Context, tx *sql.Tx, patch *models.AdminChangePatch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if patch.CreatedDate.IsZero() {
		patch.CreatedDate = time.Now()
	}
	f.patches[patch.ID] = patch
	return nil
}

func (f fakePatchStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.AdminChangePatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.patches[id], nil
}

func (f fakePatchStore) ListActiveByVersion(ctx context.Context, tx *sql.Tx, submissionVersionID string) ([]*models.AdminChangePatch, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var patches []*models.AdminChangePatch
	for _, p := range f.patches {
		if p.SubmissionVersionID == submissionVersionID && p.IsActive {
			patches = append(patches, p)
		}
	}
	sort.Slice(patches, func(i, j int) bool {
		if patches[i].CreatedDate.Equal(patches[j].CreatedDate) {
			return patches[i].ID < patches[j].ID
		}
		return patches[i].CreatedDate.Before(patches[j].CreatedDate)
	})
	return patches, nil
}

func (f fakePatchStore) Deactivate(ctx context.Context, tx *sql.Tx, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p, ok := f.patches[id]; ok {
		p.IsActive = false
	}
	return nil
}

type fakeRequestStore struct{ *fakeStore }

func (f fakeRequestStore) Insert(ctx context.Context, tx *sql.Tx, req *models.NeedsInfoRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if req.CreatedDate.IsZero() {
		req.CreatedDate = time.Now()
	}
	f.requests[req.ID] = req
	return nil
}

func (f fakeRequestStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.NeedsInfoRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[id], nil
}

func (f fakeRequestStore) ListOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string) ([]*models.NeedsInfoRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var reqs []*models.NeedsInfoRequest
	for _, r := range f.requests {
		if r.ApplicationID == applicationID && r.StepID == stepID && r.Status == models.InfoRequestOpen {
			reqs = append(reqs, r)
		}
	}
	sort.Slice(reqs, func(i, j int) bool { return reqs[i].CreatedDate.Before(reqs[j].CreatedDate) })
	return reqs, nil
}

func (f fakeRequestStore) CloseOpenByStep(ctx context.Context, tx *sql.Tx, applicationID, stepID string, to models.InfoRequestStatus, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.requests {
		if r.ApplicationID == applicationID && r.StepID == stepID && r.Status == models.InfoRequestOpen {
			r.Status = to
			r.ResolvedAt = &at
		}
	}
	return nil
}

func (f fakeRequestStore) Cancel(ctx context.Context, tx *sql.Tx, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if r, ok := f.requests[id]; ok && r.Status == models.InfoRequestOpen {
		r.Status = models.InfoRequestCanceled
		r.ResolvedAt = &at
	}
	return nil
}

type fakeDraftStore struct{ *fakeStore }

func (f fakeDraftStore) Upsert(ctx context.Context, tx *sql.Tx, applicationID, stepID string, answers models.AnswerMap) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.drafts[stateKey(applicationID, stepID)] = &models.StepDraft{
		ID:            stateKey(applicationID, stepID),
		ApplicationID: applicationID,
		StepID:        stepID,
		Answers:       answers,
		UpdatedDate:   time.Now(),
	}
	return nil
}

func (f fakeDraftStore) Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepDraft, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.drafts[stateKey(applicationID, stepID)], nil
}

func (f fakeDraftStore) Delete(ctx context.Context, tx *sql.Tx, applicationID, stepID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.drafts, stateKey(applicationID, stepID))
	return nil
}

type fakeFormStore struct{ *fakeStore }

func (f fakeFormStore) Insert(ctx context.Context, tx *sql.Tx, form *models.FormVersion) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forms[form.ID] = form
	return nil
}

func (f fakeFormStore) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.FormVersion, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.forms[id], nil
}

// fakeTxRunner runs the unit of work directly; the stores treat a nil tx as
// "no transaction".
type fakeTxRunner struct{}

func (fakeTxRunner) WithTransaction(fn func(tx *sql.Tx) error) error {
	return fn(nil)
}

func (fakeTxRunner) WithRetry(fn func(tx *sql.Tx) error, maxRetries int) error {
	return fn(nil)
}

// fakeNotifier records deliveries.
type fakeNotifier struct {
	mu       sync.Mutex
	notified []string
	fail     map[string]bool
}

func (n *fakeNotifier) Notify(ctx context.Context, userID, notificationType, title, body string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail[userID] {
		return fmt.Errorf("delivery to %s failed", userID)
	}
	n.notified = append(n.notified, userID)
	return nil
}

// fakeFileVerifier reports the configured ids as unverified.
type fakeFileVerifier struct {
	unverified map[string]bool
}

func (v *fakeFileVerifier) UnverifiedFiles(ctx context.Context, fileIDs []string) ([]string, error) {
	var out []string
	for _, id := range fileIDs {
		if v.unverified[id] {
			out = append(out, id)
		}
	}
	return out, nil
}

// fakeAttendance records calls.
type fakeAttendance struct {
	recorded []string
}

func (a *fakeAttendance) RecordAttendance(ctx context.Context, applicationID string, at time.Time) error {
	a.recorded = append(a.recorded, applicationID)
	return nil
}
