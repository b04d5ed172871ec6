package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"
)

// Scannable abstracts *sql.Row and *sql.Rows for shared scan helpers
type Scannable interface {
	Scan(dest ...any) error
}

// runner is the common surface of *sql.DB and *sql.Tx. Repository methods
// take an explicit tx argument; nil means "no transaction".
type runner interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func pick(db *sql.DB, tx *sql.Tx) runner {
	if tx != nil {
		return tx
	}
	return db
}

// parseTime tolerates the driver returning DATETIME as time.Time or raw bytes
func parseTime(val any) time.Time {
	if val == nil {
		return time.Time{}
	}
	switch v := val.(type) {
	case time.Time:
		return v
	case []uint8:
		str := string(v)
		if t, err := time.Parse("2006-01-02 15:04:05", str); err == nil {
			return t
		}
		if t, err := time.Parse(time.RFC3339, str); err == nil {
			return t
		}
	}
	return time.Time{}
}

// nullableTime converts a *time.Time to a driver value
func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return *t
}

// timePtr converts sql.NullTime back to the model shape
func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

// stringPtr converts sql.NullString back to the model shape
func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}

// marshalJSON encodes a value for a JSON column; nil maps encode as {}
func marshalJSON(v any) (string, error) {
	if v == nil {
		return "{}", nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
