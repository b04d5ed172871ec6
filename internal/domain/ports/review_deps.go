package ports

import (
	"context"
	"time"
)

// FileVerifier checks that uploaded files referenced by a submission have
// passed verification. Approve refuses to settle a step while any referenced
// file is unverified.
type FileVerifier interface {
	// UnverifiedFiles returns the subset of fileIDs that are missing or not
	// yet verified. Empty means all clear.
	UnverifiedFiles(ctx context.Context, fileIDs []string) ([]string, error)
}

// Notifier delivers a message to one user. The decision publication fan-out
// calls it once per applicant; failures are reported per application, never
// aborting the batch.
type Notifier interface {
	Notify(ctx context.Context, userID, notificationType, title, body string) error
}

// AttendanceRecorder marks an application as attending. Recording is
// idempotent; approving the confirmation step twice leaves one record.
type AttendanceRecorder interface {
	RecordAttendance(ctx context.Context, applicationID string, at time.Time) error
}
