package services

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/errors"
)

func decisionEnv(t *testing.T, appCount int) *testEnv {
	t.Helper()
	env := newTestEnv()
	env.addStep(&models.WorkflowStep{
		ID: "s0", EventID: "ev-1", StepIndex: 0, Title: "Confirm attendance",
		UnlockPolicy: models.UnlockAfterDecisionAccepted, IsConfirmationStep: true,
		Category: models.StepCategoryInfoOnly,
	})
	for i := 0; i < appCount; i++ {
		id := fmt.Sprintf("app-%d", i)
		env.addApplication(&models.Application{
			ID: id, EventID: "ev-1", ApplicantID: fmt.Sprintf("user-%d", i),
		})
		env.setState(id, "s0", models.StepStatusLocked)
	}
	return env
}

func TestSetDecisionValidatesAndStaysDraft(t *testing.T) {
	env := decisionEnv(t, 1)
	ctx := context.Background()

	err := env.decisions.SetDecision(ctx, "app-0", "MAYBE")
	assert.True(t, errors.IsValidation(err))

	require.NoError(t, env.decisions.SetDecision(ctx, "app-0", models.DecisionAccepted))
	app := env.store.apps["app-0"]
	assert.Equal(t, models.DecisionAccepted, app.DecisionStatus)
	assert.Nil(t, app.DecisionPublishedAt)

	// A draft can be revised freely.
	require.NoError(t, env.decisions.SetDecision(ctx, "app-0", models.DecisionWaitlisted))
}

func TestPublishDecisionsFanOut(t *testing.T) {
	// More applications than one batch to exercise the batch loop.
	env := decisionEnv(t, 60)
	ctx := context.Background()

	for i := 0; i < 60; i++ {
		decision := models.DecisionAccepted
		if i%3 == 0 {
			decision = models.DecisionRejected
		}
		require.NoError(t, env.decisions.SetDecision(ctx, fmt.Sprintf("app-%d", i), decision))
	}
	// One delivery fails; the run must not abort.
	env.notifier.fail["user-7"] = true

	report, err := env.decisions.PublishDecisions(ctx, "ev-1", nil)
	require.NoError(t, err)

	// A failed notification does not fail the publication itself.
	assert.Equal(t, 60, report.Published)
	assert.Empty(t, report.Failed)
	assert.Len(t, env.notifier.notified, 59)

	for i := 0; i < 60; i++ {
		app := env.store.apps[fmt.Sprintf("app-%d", i)]
		require.NotNil(t, app.DecisionPublishedAt, "app-%d should be published", i)

		// Publication opened the decision-gated step for accepted
		// applications only.
		want := models.StepStatusLocked
		if app.DecisionStatus == models.DecisionAccepted {
			want = models.StepStatusUnlocked
		}
		assert.Equal(t, want, env.state(app.ID, "s0").Status)
	}
}

func TestPublishDecisionsHonorsExplicitIDList(t *testing.T) {
	env := decisionEnv(t, 3)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, env.decisions.SetDecision(ctx, fmt.Sprintf("app-%d", i), models.DecisionAccepted))
	}

	report, err := env.decisions.PublishDecisions(ctx, "ev-1", []string{"app-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, report.Published)

	assert.NotNil(t, env.store.apps["app-1"].DecisionPublishedAt)
	assert.Nil(t, env.store.apps["app-0"].DecisionPublishedAt)
	assert.Nil(t, env.store.apps["app-2"].DecisionPublishedAt)
}

func TestPublishSkipsUndecidedAndAlreadyPublished(t *testing.T) {
	env := decisionEnv(t, 2)
	ctx := context.Background()

	require.NoError(t, env.decisions.SetDecision(ctx, "app-0", models.DecisionAccepted))
	// app-1 stays NONE.

	report, err := env.decisions.PublishDecisions(ctx, "ev-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Published)

	// A second run finds nothing left to publish.
	report, err = env.decisions.PublishDecisions(ctx, "ev-1", nil)
	require.NoError(t, err)
	assert.Equal(t, 0, report.Published)
}

func TestSetDecisionAfterPublishConflicts(t *testing.T) {
	env := decisionEnv(t, 1)
	ctx := context.Background()

	require.NoError(t, env.decisions.SetDecision(ctx, "app-0", models.DecisionAccepted))
	_, err := env.decisions.PublishDecisions(ctx, "ev-1", nil)
	require.NoError(t, err)

	err = env.decisions.SetDecision(ctx, "app-0", models.DecisionRejected)
	assert.True(t, errors.IsConflict(err))
}
