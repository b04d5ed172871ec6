package services

import (
	"context"
	"time"

	"github.com/stagedoor/backend/internal/infrastructure/database"
	"github.com/stagedoor/backend/internal/infrastructure/persistence"
	"github.com/stagedoor/backend/pkg/expression"
)

// ServiceManager orchestrates all services with dependency injection
type ServiceManager struct {
	db *database.Connection

	TxManager    *persistence.TransactionManager
	Auth         *AuthService
	Forms        *FormService
	Workflow     *WorkflowService
	Applications *ApplicationService
	Submissions  *SubmissionService
	Reviews      *ReviewService
	Decisions    *DecisionService
	Notification *NotificationService
	Scheduler    *SchedulerService

	// Repositories with direct handler access
	Files *persistence.FileRepository
}

// NewServiceManager creates a new service manager with all dependencies wired
func NewServiceManager(db *database.Connection) *ServiceManager {
	sm := &ServiceManager{db: db}

	sm.TxManager = persistence.NewTransactionManager(db)

	stepRepo := persistence.NewWorkflowStepRepository(db.DB())
	appRepo := persistence.NewApplicationRepository(db.DB())
	stateRepo := persistence.NewStepStateRepository(db.DB())
	submissionRepo := persistence.NewSubmissionRepository(db.DB())
	patchRepo := persistence.NewPatchRepository(db.DB())
	requestRepo := persistence.NewInfoRequestRepository(db.DB())
	draftRepo := persistence.NewDraftRepository(db.DB())
	formRepo := persistence.NewFormRepository(db.DB())
	userRepo := persistence.NewUserRepository(db.DB())
	notificationRepo := persistence.NewNotificationRepository(db.DB())
	attendanceRepo := persistence.NewAttendanceRepository(db.DB())
	sm.Files = persistence.NewFileRepository(db.DB())

	sm.Auth = NewAuthService(userRepo)
	sm.Forms = NewFormService(formRepo, expression.NewEngine())
	sm.Workflow = NewWorkflowService(stepRepo, stateRepo, appRepo, sm.TxManager)
	sm.Applications = NewApplicationService(appRepo, stateRepo, stepRepo, sm.Workflow, sm.TxManager)
	sm.Submissions = NewSubmissionService(
		appRepo, stepRepo, stateRepo, submissionRepo, patchRepo, requestRepo, draftRepo,
		sm.Forms, sm.Workflow, sm.TxManager,
	)
	sm.Notification = NewNotificationService(notificationRepo)
	sm.Reviews = NewReviewService(
		appRepo, stepRepo, stateRepo, submissionRepo, patchRepo, requestRepo,
		sm.Forms, sm.Workflow,
		&fileVerifierAdapter{files: sm.Files},
		&attendanceAdapter{attendance: attendanceRepo},
		sm.TxManager,
	)
	sm.Decisions = NewDecisionService(appRepo, sm.Workflow, sm.Notification, sm.TxManager)
	sm.Scheduler = NewSchedulerService(stepRepo, sm.Workflow)

	return sm
}

// fileVerifierAdapter backs ports.FileVerifier with the uploaded-files table.
type fileVerifierAdapter struct {
	files *persistence.FileRepository
}

func (a *fileVerifierAdapter) UnverifiedFiles(ctx context.Context, fileIDs []string) ([]string, error) {
	return a.files.ListUnverified(ctx, nil, fileIDs)
}

// attendanceAdapter backs ports.AttendanceRecorder with the attendance table.
type attendanceAdapter struct {
	attendance *persistence.AttendanceRepository
}

func (a *attendanceAdapter) RecordAttendance(ctx context.Context, applicationID string, at time.Time) error {
	return a.attendance.EnsureRecord(ctx, nil, applicationID, at)
}
