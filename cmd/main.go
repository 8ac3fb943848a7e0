package main

import (
	"context"
	"net/http"
	_ "time/tzdata"

	"github.com/gorilla/mux"
	cron "github.com/robfig/cron/v3"
	"github.com/rs/cors"

	"github.com/refcheckai/refcheck-backend/internal/app"
	"github.com/refcheckai/refcheck-backend/internal/config"
	"github.com/refcheckai/refcheck-backend/internal/controllers"
	"github.com/refcheckai/refcheck-backend/internal/middleware"
	"github.com/refcheckai/refcheck-backend/internal/repositories"
	"github.com/refcheckai/refcheck-backend/internal/routes"
	"github.com/refcheckai/refcheck-backend/internal/services"
	"github.com/refcheckai/refcheck-backend/internal/utils"
	"github.com/refcheckai/refcheck-backend/internal/utils/vapi"
)

func main() {
	utils.InitLogger("refcheck-backend")
	cfg := config.LoadConfig()

	application, err := app.NewApp(cfg)
	if err != nil {
		utils.Logger.Fatal("Failed to initialize refcheck-backend:", err)
	}
	defer application.Close()

	userRepo := repositories.NewUserRepository(application.DB, cfg.DBEncryptionKey)
	candidateRepo := repositories.NewCandidateRepository(application.DB)
	jobRepo := repositories.NewJobRepository(application.DB)
	refRepo := repositories.NewReferenceRepository(application.DB)
	auditRepo := repositories.NewAuditLogRepository(application.DB)

	vapiClient, err := vapi.NewClient(cfg.VapiBaseURL, 3, 0)
	if err != nil {
		utils.Logger.Fatal("Failed to build Vapi client:", err)
	}
	callService := services.NewVapiCallService(vapiClient, cfg.VapiWebhookSecret)
	smsService := services.NewTwilioSMSService()
	analysisService := services.NewOpenAIAnalysisService(cfg.OpenAIAPIKey)
	notificationService := services.NewNotificationService(
		cfg.SendgridAPIKey,
		cfg.SendgridFromEmail,
		cfg.SendgridFromName,
		cfg.SendgridSandboxMode,
	)

	outreachService := services.NewOutreachService(
		refRepo,
		candidateRepo,
		jobRepo,
		userRepo,
		auditRepo,
		callService,
		smsService,
		analysisService,
		analysisService,
		notificationService,
	)
	candidateService := services.NewCandidateService(
		candidateRepo,
		jobRepo,
		refRepo,
		userRepo,
		auditRepo,
		services.NewTwilioPhoneVerifier(),
	)
	settingsService := services.NewSettingsService(userRepo)
	reconciliationService := services.NewReconciliationService(
		refRepo,
		candidateRepo,
		userRepo,
		callService,
		outreachService,
	)

	healthController := controllers.NewHealthController(application)
	candidatesController := controllers.NewCandidatesController(candidateService)
	referencesController := controllers.NewReferencesController(candidateService, outreachService)
	outreachController := controllers.NewOutreachController(outreachService, candidateService)
	settingsController := controllers.NewSettingsController(settingsService)
	vapiWebhookController := controllers.NewVapiWebhookController(callService, outreachService)
	smsWebhookController := controllers.NewSMSWebhookController(
		refRepo, candidateRepo, userRepo, outreachService, cfg.AppUrl+routes.WebhooksSMS,
	)

	router := mux.NewRouter()

	// Public
	router.HandleFunc(routes.Health, healthController.HealthCheckHandler).Methods(http.MethodGet)
	router.HandleFunc(routes.WebhooksVapi, vapiWebhookController.HandleWebhook).Methods(http.MethodPost)
	router.HandleFunc(routes.WebhooksSMS, smsWebhookController.HandleInboundSMS).Methods(http.MethodPost)

	secured := router.NewRoute().Subrouter()
	secured.Use(middleware.AuthMiddleware(cfg.RSAPublicKey))

	secured.HandleFunc(routes.CandidatesBase, candidatesController.CreateCandidateHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.CandidatesBase, candidatesController.ListCandidatesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.CandidateByID, candidatesController.GetCandidateHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.CandidateByID, candidatesController.UpdateCandidateHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.CandidateByID, candidatesController.ArchiveCandidateHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.CandidateJobs, candidatesController.CreateJobHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.CandidateJobs, candidatesController.ListJobsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.CandidateReferences, candidatesController.CreateReferenceHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.CandidateReferences, candidatesController.ListReferencesHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.CandidateOutreach, outreachController.StartOutreachHandler).Methods(http.MethodPost)

	secured.HandleFunc(routes.ReferenceByID, referencesController.GetReferenceHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.ReferenceByID, referencesController.UpdateReferenceHandler).Methods(http.MethodPatch)
	secured.HandleFunc(routes.ReferenceByID, referencesController.DeleteReferenceHandler).Methods(http.MethodDelete)
	secured.HandleFunc(routes.ReferenceSchedule, referencesController.ScheduleReferenceHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.ReferenceRetry, referencesController.RetryReferenceHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.ReferenceSendSMS, referencesController.SendFollowUpSMSHandler).Methods(http.MethodPost)
	secured.HandleFunc(routes.ReferenceCallStatus, outreachController.CallStatusHandler).Methods(http.MethodGet)

	secured.HandleFunc(routes.Settings, settingsController.GetSettingsHandler).Methods(http.MethodGet)
	secured.HandleFunc(routes.Settings, settingsController.UpdateSettingsHandler).Methods(http.MethodPatch)

	c := cron.New()
	_, cronErr := c.AddFunc("@every 2m", func() {
		reconciliationService.ReconcileStaleCalls(context.Background())
	})
	if cronErr != nil {
		utils.Logger.WithError(cronErr).Fatal("Failed to schedule stale-call reconciliation cron")
	}
	c.Start()

	co := cors.New(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Authorization", "Content-Type"},
		AllowCredentials: true,
	})

	utils.Logger.Infof("Starting %s on port: %s", cfg.AppName, cfg.AppPort)
	if err := http.ListenAndServe(":"+cfg.AppPort, co.Handler(router)); err != nil {
		utils.Logger.Fatal("refcheck-backend failed to start:", err)
	}
}
