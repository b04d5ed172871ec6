package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/stagedoor/backend/pkg/constants"
)

// FileRepository handles database operations for uploaded file records
type FileRepository struct {
	db *sql.DB
}

// NewFileRepository creates a new FileRepository
func NewFileRepository(db *sql.DB) *FileRepository {
	return &FileRepository{db: db}
}

// ListUnverified returns the subset of the given file ids that are either
// missing or not yet verified. An empty result means every file checks out.
func (r *FileRepository) ListUnverified(ctx context.Context, tx *sql.Tx, fileIDs []string) ([]string, error) {
	if len(fileIDs) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(fileIDs)), ",")
	query := fmt.Sprintf("SELECT id FROM %s WHERE verified = 1 AND id IN (%s)",
		constants.TableUploadedFile, placeholders)

	args := make([]any, len(fileIDs))
	for i, id := range fileIDs {
		args[i] = id
	}

	rows, err := pick(r.db, tx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	verified := make(map[string]bool, len(fileIDs))
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		verified[id] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var unverified []string
	for _, id := range fileIDs {
		if !verified[id] {
			unverified = append(unverified, id)
		}
	}
	return unverified, nil
}

// MarkVerified flags a file record as verified
func (r *FileRepository) MarkVerified(ctx context.Context, tx *sql.Tx, fileID string) error {
	query := fmt.Sprintf("UPDATE %s SET verified = 1 WHERE id = ?", constants.TableUploadedFile)
	_, err := pick(r.db, tx).ExecContext(ctx, query, fileID)
	return err
}
