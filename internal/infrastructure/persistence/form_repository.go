package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/stagedoor/backend/internal/domain/models"
	"github.com/stagedoor/backend/pkg/constants"
)

// FormRepository handles database operations for published form versions
type FormRepository struct {
	db *sql.DB
}

// NewFormRepository creates a new FormRepository
func NewFormRepository(db *sql.DB) *FormRepository {
	return &FormRepository{db: db}
}

// Insert stores a published form version. Versions are immutable once written.
func (r *FormRepository) Insert(ctx context.Context, tx *sql.Tx, form *models.FormVersion) error {
	defJSON, err := marshalJSON(form.Definition)
	if err != nil {
		return fmt.Errorf("failed to encode form definition: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, event_id, definition)
		VALUES (?, ?, ?)`,
		constants.TableFormVersion)

	_, err = pick(r.db, tx).ExecContext(ctx, query, form.ID, form.EventID, defJSON)
	return err
}

// FindByID retrieves a form version with its parsed definition; nil, nil when absent
func (r *FormRepository) FindByID(ctx context.Context, tx *sql.Tx, id string) (*models.FormVersion, error) {
	query := fmt.Sprintf("SELECT id, event_id, definition FROM %s WHERE id = ? LIMIT 1",
		constants.TableFormVersion)

	var form models.FormVersion
	var defJSON []byte
	err := pick(r.db, tx).QueryRowContext(ctx, query, id).Scan(&form.ID, &form.EventID, &defJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if len(defJSON) > 0 {
		var def models.FormDefinition
		if err := json.Unmarshal(defJSON, &def); err != nil {
			return nil, fmt.Errorf("failed to decode form definition for %s: %w", form.ID, err)
		}
		form.Definition = &def
	}
	return &form, nil
}
