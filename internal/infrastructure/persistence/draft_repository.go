package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
	"github.com/stagedoor/backend/pkg/utils"
)

// DraftRepository handles database operations for applicant step drafts
type DraftRepository struct {
	db *sql.DB
}

// NewDraftRepository creates a new DraftRepository
func NewDraftRepository(db *sql.DB) *DraftRepository {
	return &DraftRepository{db: db}
}

// Upsert saves the working answers for a step, replacing any previous draft
func (r *DraftRepository) Upsert(ctx context.Context, tx *sql.Tx, applicationID, stepID string, answers models.AnswerMap) error {
	answersJSON, err := marshalJSON(answers)
	if err != nil {
		return fmt.Errorf("failed to encode draft answers: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, application_id, step_id, answers, updated_date)
		VALUES (?, ?, ?, ?, NOW())
		ON DUPLICATE KEY UPDATE answers = VALUES(answers), updated_date = NOW()`,
		constants.TableStepDraft)

	_, err = pick(r.db, tx).ExecContext(ctx, query, utils.GenerateID(), applicationID, stepID, answersJSON)
	return err
}

// Find retrieves the draft for a step; nil, nil when absent
func (r *DraftRepository) Find(ctx context.Context, tx *sql.Tx, applicationID, stepID string) (*models.StepDraft, error) {
	query := fmt.Sprintf(`
		SELECT id, application_id, step_id, answers, updated_date FROM %s
		WHERE application_id = ? AND step_id = ? LIMIT 1`,
		constants.TableStepDraft)

	var draft models.StepDraft
	var answersJSON []byte
	var updatedRaw any
	err := pick(r.db, tx).QueryRowContext(ctx, query, applicationID, stepID).Scan(
		&draft.ID, &draft.ApplicationID, &draft.StepID, &answersJSON, &updatedRaw)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	draft.UpdatedDate = parseTime(updatedRaw)
	if len(answersJSON) > 0 {
		if err := json.Unmarshal(answersJSON, &draft.Answers); err != nil {
			return nil, fmt.Errorf("failed to decode draft answers for %s: %w", draft.ID, err)
		}
	}
	return &draft, nil
}

// Delete removes the draft after its answers become a submission version
func (r *DraftRepository) Delete(ctx context.Context, tx *sql.Tx, applicationID, stepID string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE application_id = ? AND step_id = ?",
		constants.TableStepDraft)
	_, err := pick(r.db, tx).ExecContext(ctx, query, applicationID, stepID)
	return err
}
