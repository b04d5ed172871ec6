package bootstrap

import (
	"fmt"
	"log"

	"github.com/stagedoor/backend/internal/infrastructure/database"
	"github.com/stagedoor/backend/pkg/constants"
)

// tableDDL maps table name to its CREATE TABLE body. Statements are
// idempotent (IF NOT EXISTS) so startup is safe against an existing database.
var tableDDL = []struct {
	name string
	body string
}{
	{constants.TableUser, `
		id VARCHAR(36) PRIMARY KEY,
		name VARCHAR(255) NOT NULL,
		email VARCHAR(255) NOT NULL,
		password_hash VARCHAR(255) NOT NULL,
		is_staff TINYINT(1) NOT NULL DEFAULT 0,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uk_users_email (email)`},

	{constants.TableFormVersion, `
		id VARCHAR(36) PRIMARY KEY,
		event_id VARCHAR(36) NOT NULL,
		definition JSON NOT NULL,
		KEY idx_form_versions_event (event_id)`},

	{constants.TableWorkflowStep, `
		id VARCHAR(36) PRIMARY KEY,
		event_id VARCHAR(36) NOT NULL,
		step_index INT NOT NULL,
		title VARCHAR(255) NOT NULL,
		category VARCHAR(32) NOT NULL,
		unlock_policy VARCHAR(32) NOT NULL,
		unlock_at DATETIME NULL,
		strict_gating TINYINT(1) NOT NULL DEFAULT 0,
		review_required TINYINT(1) NOT NULL DEFAULT 1,
		reject_behavior VARCHAR(32) NOT NULL,
		deadline_at DATETIME NULL,
		form_version_id VARCHAR(36) NULL,
		is_confirmation_step TINYINT(1) NOT NULL DEFAULT 0,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_modified_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uk_workflow_steps_event_index (event_id, step_index),
		KEY idx_workflow_steps_unlock (unlock_policy, unlock_at)`},

	{constants.TableApplication, `
		id VARCHAR(36) PRIMARY KEY,
		event_id VARCHAR(36) NOT NULL,
		applicant_id VARCHAR(36) NOT NULL,
		decision_status VARCHAR(32) NOT NULL,
		decision_published_at DATETIME NULL,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		last_modified_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uk_applications_event_applicant (event_id, applicant_id)`},

	{constants.TableStepState, `
		application_id VARCHAR(36) NOT NULL,
		step_id VARCHAR(36) NOT NULL,
		status VARCHAR(32) NOT NULL,
		current_draft_id VARCHAR(36) NULL,
		latest_submission_version_id VARCHAR(36) NULL,
		revision_cycle_count INT NOT NULL DEFAULT 0,
		unlocked_at DATETIME NULL,
		last_activity_at DATETIME NOT NULL,
		PRIMARY KEY (application_id, step_id)`},

	{constants.TableSubmissionVersion, `
		id VARCHAR(36) PRIMARY KEY,
		application_id VARCHAR(36) NOT NULL,
		step_id VARCHAR(36) NOT NULL,
		form_version_id VARCHAR(36) NULL,
		version_number INT NOT NULL,
		answers_snapshot JSON NOT NULL,
		submitted_by VARCHAR(36) NOT NULL,
		submitted_at DATETIME NOT NULL,
		UNIQUE KEY uk_submissions_step_version (application_id, step_id, version_number)`},

	{constants.TableChangePatch, `
		id VARCHAR(36) PRIMARY KEY,
		application_id VARCHAR(36) NOT NULL,
		step_id VARCHAR(36) NOT NULL,
		submission_version_id VARCHAR(36) NOT NULL,
		ops JSON NOT NULL,
		is_active TINYINT(1) NOT NULL DEFAULT 1,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_patches_version (submission_version_id, is_active)`},

	{constants.TableInfoRequest, `
		id VARCHAR(36) PRIMARY KEY,
		application_id VARCHAR(36) NOT NULL,
		step_id VARCHAR(36) NOT NULL,
		submission_version_id VARCHAR(36) NULL,
		target_field_ids JSON NULL,
		message TEXT,
		status VARCHAR(16) NOT NULL,
		deadline_at DATETIME NULL,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		resolved_at DATETIME NULL,
		KEY idx_info_requests_step (application_id, step_id, status)`},

	{constants.TableStepDraft, `
		id VARCHAR(36) PRIMARY KEY,
		application_id VARCHAR(36) NOT NULL,
		step_id VARCHAR(36) NOT NULL,
		answers JSON NOT NULL,
		updated_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		UNIQUE KEY uk_drafts_step (application_id, step_id)`},

	{constants.TableNotification, `
		id VARCHAR(36) PRIMARY KEY,
		user_id VARCHAR(36) NOT NULL,
		type VARCHAR(64) NOT NULL,
		title VARCHAR(255) NOT NULL,
		body TEXT,
		is_read TINYINT(1) NOT NULL DEFAULT 0,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		KEY idx_notifications_user (user_id, created_date)`},

	{constants.TableAttendanceRecord, `
		id VARCHAR(36) PRIMARY KEY,
		application_id VARCHAR(36) NOT NULL,
		confirmed_at DATETIME NOT NULL,
		UNIQUE KEY uk_attendance_application (application_id)`},

	{constants.TableUploadedFile, `
		id VARCHAR(36) PRIMARY KEY,
		uploaded_by VARCHAR(36) NOT NULL,
		file_name VARCHAR(512) NOT NULL,
		verified TINYINT(1) NOT NULL DEFAULT 0,
		created_date DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP`},
}

// InitializeSchema creates all tables the engine needs
func InitializeSchema(db *database.Connection) error {
	log.Println("🔧 Initializing database schema...")

	for _, t := range tableDDL {
		stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", t.name, t.body)
		if _, err := db.DB().Exec(stmt); err != nil {
			return fmt.Errorf("create table %s: %w", t.name, err)
		}
	}

	log.Printf("✅ Schema ready (%d tables)", len(tableDDL))
	return nil
}
