package services

import (
	"time"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/expression"
)

// testEnv wires every service against one shared in-memory fakeStore.
type testEnv struct {
	store       *fakeStore
	notifier    *fakeNotifier
	verifier    *fakeFileVerifier
	attendance  *fakeAttendance
	forms       *FormService
	workflow    *WorkflowService
	apps        *ApplicationService
	submissions *SubmissionService
	reviews     *ReviewService
	decisions   *DecisionService
	now         time.Time
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	tx := fakeTxRunner{}
	env := &testEnv{
		store:      store,
		notifier:   &fakeNotifier{fail: map[string]bool{}},
		verifier:   &fakeFileVerifier{unverified: map[string]bool{}},
		attendance: &fakeAttendance{},
		now:        time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}

	env.forms = NewFormService(fakeFormStore{store}, expression.NewEngine())
	env.workflow = NewWorkflowService(store, fakeStateStore{store}, fakeAppStore{store}, tx)
	env.workflow.now = func() time.Time { return env.now }

	env.apps = NewApplicationService(fakeAppStore{store}, fakeStateStore{store}, store, env.workflow, tx)
	env.apps.now = env.workflow.now

	env.submissions = NewSubmissionService(
		fakeAppStore{store}, store, fakeStateStore{store}, fakeSubmissionStore{store},
		fakePatchStore{store}, fakeRequestStore{store}, fakeDraftStore{store},
		env.forms, env.workflow, tx,
	)
	env.submissions.now = env.workflow.now

	env.reviews = NewReviewService(
		fakeAppStore{store}, store, fakeStateStore{store}, fakeSubmissionStore{store},
		fakePatchStore{store}, fakeRequestStore{store},
		env.forms, env.workflow, env.verifier, env.attendance, tx,
	)
	env.reviews.now = env.workflow.now

	env.decisions = NewDecisionService(fakeAppStore{store}, env.workflow, env.notifier, tx)
	env.decisions.now = env.workflow.now

	return env
}

func (e *testEnv) addStep(step *models.WorkflowStep) *models.WorkflowStep {
	if step.Category == "" {
		step.Category = models.StepCategoryForm
	}
	if step.RejectBehavior == "" {
		step.RejectBehavior = models.RejectFinal
	}
	e.store.steps[step.ID] = step
	return step
}

func (e *testEnv) addApplication(app *models.Application) *models.Application {
	if app.DecisionStatus == "" {
		app.DecisionStatus = models.DecisionNone
	}
	e.store.apps[app.ID] = app
	return app
}

func (e *testEnv) setState(applicationID, stepID string, status models.StepStatus) *models.ApplicationStepState {
	st := &models.ApplicationStepState{
		ApplicationID:  applicationID,
		StepID:         stepID,
		Status:         status,
		LastActivityAt: e.now,
	}
	e.store.states[stateKey(applicationID, stepID)] = st
	return st
}

func (e *testEnv) state(applicationID, stepID string) *models.ApplicationStepState {
	return e.store.states[stateKey(applicationID, stepID)]
}

func (e *testEnv) addForm(id string, fields ...models.FormField) *models.FormVersion {
	form := &models.FormVersion{
		ID:      id,
		EventID: "ev-1",
		Definition: &models.FormDefinition{
			Sections: []models.FormSection{{Title: "Main", Fields: fields}},
		},
	}
	e.store.forms[id] = form
	return form
}

func strp(s string) *string { return &s }

func applicant() *models.UserSession {
	return &models.UserSession{ID: "user-1", Name: "Ada", Email: "ada@example.com"}
}

func staff() *models.UserSession {
	return &models.UserSession{ID: "staff-1", Name: "Grace", Email: "grace@example.com", IsStaff: true}
}
