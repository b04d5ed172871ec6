package constants

// Table names for all persisted collections. Repositories build their SQL
// off these so a rename stays a one-line change.
const (
	TableWorkflowStep      = "workflow_steps"
	TableApplication       = "applications"
	TableStepState         = "application_step_states"
	TableSubmissionVersion = "step_submission_versions"
	TableChangePatch       = "admin_change_patches"
	TableInfoRequest       = "needs_info_requests"
	TableFormVersion       = "form_versions"
	TableStepDraft         = "step_drafts"
	TableUser              = "users"
	TableNotification      = "notifications"
	TableAttendanceRecord  = "attendance_records"
	TableUploadedFile      = "uploaded_files"
)
