package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/stagedoor/backend/internal/application/services"
	"github.com/stagedoor/backend/internal/bootstrap"
	"github.com/stagedoor/backend/internal/infrastructure/database"
	"github.com/stagedoor/backend/internal/interfaces/middleware"
	"github.com/stagedoor/backend/internal/interfaces/rest"
)

func main() {
	// .env is optional; deployed environments inject real env vars
	if err := godotenv.Load(); err == nil {
		log.Println("📦 Loaded .env")
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = "3001"
	}

	// Initialize database connection
	db, err := database.GetInstance()
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	log.Println("✅ Database connection established")

	if err := bootstrap.InitializeSchema(db); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	if err := bootstrap.InitializeSystemData(db); err != nil {
		log.Fatalf("Failed to initialize system data: %v", err)
	}

	// Initialize service manager
	svcMgr := services.NewServiceManager(db)
	log.Println("🔧 Service manager initialized")

	// Create Gin router
	router := gin.Default()
	router.Use(middleware.Cors())

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status": "ok",
			"server": "golang",
		})
	})

	// Initialize handlers
	authHandler := rest.NewAuthHandler(svcMgr)
	workflowHandler := rest.NewWorkflowHandler(svcMgr)
	applicationHandler := rest.NewApplicationHandler(svcMgr)
	reviewHandler := rest.NewReviewHandler(svcMgr)
	decisionHandler := rest.NewDecisionHandler(svcMgr)
	formHandler := rest.NewFormHandler(svcMgr)
	fileHandler := rest.NewFileHandler(svcMgr)
	notificationHandler := rest.NewNotificationHandler(svcMgr)

	// Initialize middleware
	requireAuth := middleware.RequireAuth()
	requireStaff := middleware.RequireStaff()

	// API routes
	api := router.Group("/api")
	{
		// Public auth routes
		auth := api.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/register", authHandler.Register)
			auth.GET("/me", requireAuth, authHandler.GetMe)
		}

		// Event configuration (staff only)
		events := api.Group("/events")
		events.Use(requireAuth)
		{
			events.POST("/:eventId/steps", requireStaff, workflowHandler.CreateStep)
			events.GET("/:eventId/steps", workflowHandler.ListSteps)
			events.POST("/:eventId/recompute", requireStaff, workflowHandler.RecomputeEvent)
			events.POST("/:eventId/forms", requireStaff, formHandler.Publish)
			events.POST("/:eventId/decisions/publish", requireStaff, decisionHandler.PublishDecisions)

			// Applicants start their application here
			events.POST("/:eventId/applications", applicationHandler.Create)
		}

		// Forms
		forms := api.Group("/forms")
		forms.Use(requireAuth)
		{
			forms.GET("/:formId", formHandler.Get)
		}

		// Application progress and step operations
		applications := api.Group("/applications")
		applications.Use(requireAuth)
		{
			applications.GET("/:id", applicationHandler.Get)
			applications.PUT("/:id/decision", requireStaff, decisionHandler.SetDecision)

			applications.GET("/:id/steps/:stepId/draft", applicationHandler.GetDraft)
			applications.PUT("/:id/steps/:stepId/draft", applicationHandler.SaveDraft)
			applications.POST("/:id/steps/:stepId/submit", applicationHandler.Submit)
			applications.GET("/:id/steps/:stepId/versions", applicationHandler.ListVersions)
			applications.GET("/:id/steps/:stepId/answers", applicationHandler.GetEffectiveAnswers)

			// Review operations (staff only)
			applications.POST("/:id/steps/:stepId/approve", requireStaff, reviewHandler.Approve)
			applications.POST("/:id/steps/:stepId/reject", requireStaff, reviewHandler.Reject)
			applications.POST("/:id/steps/:stepId/request-info", requireStaff, reviewHandler.RequestInfo)
			applications.GET("/:id/steps/:stepId/requests", requireStaff, reviewHandler.ListOpenRequests)
			applications.POST("/:id/steps/:stepId/patches", requireStaff, reviewHandler.CreatePatch)

			// Manual step overrides (staff only)
			applications.POST("/:id/steps/:stepId/unlock", requireStaff, workflowHandler.UnlockStep)
			applications.POST("/:id/steps/:stepId/lock", requireStaff, workflowHandler.LockStep)
			applications.POST("/:id/steps/lock", requireStaff, workflowHandler.BulkLock)
		}

		// Needs-info requests and patches addressed by their own id
		requests := api.Group("/requests")
		requests.Use(requireAuth, requireStaff)
		{
			requests.POST("/:requestId/cancel", reviewHandler.CancelRequest)
		}

		patches := api.Group("/patches")
		patches.Use(requireAuth, requireStaff)
		{
			patches.POST("/:patchId/deactivate", reviewHandler.DeactivatePatch)
		}

		// File verification (staff only)
		files := api.Group("/files")
		files.Use(requireAuth, requireStaff)
		{
			files.POST("/:fileId/verify", fileHandler.VerifyFile)
		}

		// Notifications
		notifications := api.Group("/notifications")
		notifications.Use(requireAuth)
		{
			notifications.GET("/", notificationHandler.GetNotifications)
		}
	}

	// Start the date-based unlock sweep
	if err := svcMgr.Scheduler.Start(); err != nil {
		log.Fatalf("Failed to start scheduler: %v", err)
	}

	log.Printf("🚀 Server listening on http://localhost:%s", port)

	srv := &http.Server{
		Addr:    "0.0.0.0:" + port,
		Handler: router,
	}

	// Start server in a goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	svcMgr.Scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown: ", err)
	}

	log.Println("Server exiting")
}
