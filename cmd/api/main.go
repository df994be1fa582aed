package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yourusername/placement-api/internal/config"
	"github.com/yourusername/placement-api/internal/domain/entity"
	"github.com/yourusername/placement-api/internal/handler"
	"github.com/yourusername/placement-api/internal/middleware"
	pgRepo "github.com/yourusername/placement-api/internal/repository/postgres"
	redisRepo "github.com/yourusername/placement-api/internal/repository/redis"
	"github.com/yourusername/placement-api/internal/service"
	"github.com/yourusername/placement-api/internal/service/outbox"
	"github.com/yourusername/placement-api/internal/service/placement"
	ws "github.com/yourusername/placement-api/internal/websocket"
	"github.com/yourusername/placement-api/pkg/auth"
	"github.com/yourusername/placement-api/pkg/database"
	"github.com/yourusername/placement-api/pkg/logger"
	"github.com/yourusername/placement-api/pkg/monitoring"
	"github.com/yourusername/placement-api/pkg/tracing"
)

const (
	wsTicketTTL  = time.Minute
	poolStatsTTL = 5 * time.Minute
)

func main() {
	// .env не обязателен: в Docker переменные приходят из окружения
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		zap.L().Fatal("failed to load config", zap.Error(err))
	}

	log := logger.New(cfg.Log, cfg.Server.Mode)
	defer log.Sync()
	log.Info("[Main] config loaded", zap.String("path", configPath), zap.String("mode", cfg.Server.Mode))

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer(cfg.Tracing.ServiceName, cfg.Tracing.JaegerEndpoint)
		if err != nil {
			log.Warn("[Main] tracing disabled: exporter init failed", zap.Error(err))
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(ctx); err != nil {
					log.Warn("[Main] tracer shutdown failed", zap.Error(err))
				}
			}()
		}
	}
	monitoring.Init()

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString(), cfg.Server.Mode == "debug")
	if err != nil {
		log.Fatal("[Main] failed to connect to database", zap.Error(err))
	}
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath, log); err != nil {
		log.Fatal("[Main] failed to migrate database", zap.Error(err))
	}

	redisClient, err := database.NewUniversalRedisClient(cfg.Redis, log)
	if err != nil {
		log.Fatal("[Main] failed to connect to Redis", zap.Error(err))
	}
	defer redisClient.Close()

	// Репозитории
	assessmentRepo := pgRepo.NewAssessmentRepo(db)
	sectionRepo := pgRepo.NewSectionRepo(db)
	questionRepo := pgRepo.NewQuestionRepo(db)
	studentRepo := pgRepo.NewStudentRepo(db)
	certificateRepo := pgRepo.NewCertificateRepo(db)
	outboxRepo := pgRepo.NewOutboxRepo(db)
	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Fatal("[Main] failed to initialize CacheRepo", zap.Error(err))
	}

	// Движок тестирования
	placementConfig := placement.DefaultConfig()
	if level, err := entity.ParseCEFRLevel(cfg.Placement.DefaultTargetLevel); err == nil {
		placementConfig.DefaultTargetLevel = level
	} else {
		log.Warn("[Main] invalid default target level, using A2", zap.String("level", cfg.Placement.DefaultTargetLevel))
	}
	if cfg.Placement.DefaultQuestionsLimit > 0 {
		placementConfig.DefaultQuestionsLimit = cfg.Placement.DefaultQuestionsLimit
	}
	placementConfig.DefaultTimeLimitMin = cfg.Placement.DefaultTimeLimitMin

	engine := placement.NewEngine(placement.DefaultLevelConfig(), &placement.Dependencies{
		QuestionRepo: questionRepo,
		Logger:       log,
	})
	locker := service.NewRedisLocker(cacheRepo, cfg.Placement.LockTTL, cfg.Placement.LockWait, log)

	// Сервисы
	assessmentService := service.NewAssessmentService(assessmentRepo, engine, placementConfig, outboxRepo, locker, log)
	sectionService := service.NewSectionService(assessmentRepo, sectionRepo, engine, placement.NewResultAggregator(), outboxRepo, locker, log)
	profileService := service.NewProfileService(studentRepo, log)
	poolService := service.NewQuestionPoolService(questionRepo, cacheRepo, poolStatsTTL, log)

	storage, err := service.NewStorageProvider(cfg.Storage)
	if err != nil {
		log.Fatal("[Main] failed to initialize storage", zap.String("provider", cfg.Storage.Provider), zap.Error(err))
	}
	certificateService := service.NewCertificateService(assessmentRepo, studentRepo, certificateRepo, storage, log)

	var mailer service.EmailService = service.NewNoopEmailService(log)
	if cfg.Email.Enabled {
		resendMailer, err := service.NewResendEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		if err != nil {
			log.Fatal("[Main] failed to initialize email service", zap.Error(err))
		}
		mailer = resendMailer
	}

	// WebSocket
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wsHub := ws.NewHub(log)
	go wsHub.Run(ctx)
	wsManager := ws.NewManager(wsHub, log)

	notificationService := service.NewNotificationService(studentRepo, mailer, wsManager, log)

	// Outbox
	outboxConfig := outbox.DefaultConfig()
	if cfg.Outbox.PollInterval > 0 {
		outboxConfig.PollInterval = cfg.Outbox.PollInterval
	}
	outboxConfig.BatchSize = cfg.Outbox.BatchSize
	outboxConfig.MaxAttempts = cfg.Outbox.MaxAttempts
	if cfg.Outbox.LeaseTimeout > 0 {
		outboxConfig.LeaseTimeout = cfg.Outbox.LeaseTimeout
	}

	dispatcher := outbox.NewDispatcher(outboxRepo, outboxConfig, log)
	dispatcher.Register(entity.EventAssessmentAssigned, notificationService.HandleAssessmentAssigned)
	dispatcher.Register(entity.EventProfileLevelUpdate, profileService.HandleLevelUpdate)
	dispatcher.Register(entity.EventCertificateRequest, certificateService.HandleCertificateRequest)
	dispatcher.Register(entity.EventResultsReady, notificationService.HandleResultsReady)
	dispatcher.Register(entity.EventAIScoringRequested, service.AIScoringHandler(service.NewLoggingAIScoringRequester(log)))
	go dispatcher.Run(ctx)

	// Аутентификация
	jwtService, err := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.Issuer, wsTicketTTL, log)
	if err != nil {
		log.Fatal("[Main] failed to initialize JWT service", zap.Error(err))
	}
	authMiddleware := middleware.NewAuthMiddleware(jwtService, log)
	rateLimiter := middleware.NewRateLimiter(redisClient, log)

	// Обработчики
	assessmentHandler := handler.NewAssessmentHandler(assessmentService, log)
	sectionHandler := handler.NewSectionHandler(sectionService, log)
	profileHandler := handler.NewProfileHandler(profileService, certificateService, log)
	adminHandler := handler.NewAdminHandler(assessmentService, poolService, log)
	wsHandler := handler.NewWSHandler(wsHub, wsManager, jwtService, cfg.Server.AllowedOrigins, log)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(monitoring.MetricsMiddleware())
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	// Production: не доверять прокси-заголовкам
	trustedProxies := []string{"127.0.0.1", "::1"}
	if cfg.Server.Mode == "release" {
		trustedProxies = nil
	}
	if err := router.SetTrustedProxies(trustedProxies); err != nil {
		log.Warn("[Main] failed to set trusted proxies", zap.Error(err))
	}

	router.Use(cors.New(corsConfig(cfg.Server.AllowedOrigins)))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "ws_clients": wsHub.ClientCount()})
	})
	router.GET("/metrics", monitoring.PrometheusHandler())
	router.GET("/ws", wsHandler.HandleConnection)

	answerLimit := rateLimiter.Limit(middleware.AnswerRateLimitConfig(cfg.Placement.AnswerRateLimit))

	api := router.Group("/api")
	api.Use(authMiddleware.RequireAuth())
	{
		api.POST("/ws/ticket", wsHandler.IssueTicket)

		api.POST("/assessments", authMiddleware.RequireStaff(), assessmentHandler.Assign)

		assessments := api.Group("/assessments/:id")
		assessments.Use(middleware.ExtractUintParam("id", "assessmentID"))
		{
			assessments.GET("", assessmentHandler.Get)
			assessments.POST("/start", assessmentHandler.Start)
			assessments.GET("/next", assessmentHandler.NextItem)
			assessments.POST("/answers", answerLimit, assessmentHandler.SubmitAnswer)
			assessments.POST("/complete", assessmentHandler.Complete)
			assessments.POST("/violations", assessmentHandler.RecordViolation)
			assessments.GET("/certificate", profileHandler.GetCertificate)
		}

		sections := api.Group("/sections/:id")
		sections.Use(middleware.ExtractUintParam("id", "sectionID"))
		{
			sections.POST("/start", sectionHandler.Start())
			sections.GET("/next", sectionHandler.NextItem)
			sections.POST("/answers", answerLimit, sectionHandler.SubmitAnswer)
			sections.POST("/complete", sectionHandler.Complete())
			sections.POST("/skip", sectionHandler.Skip())
			sections.POST("/ai-score", sectionHandler.ApplyAIScore())
			sections.POST("/review", authMiddleware.RequireStaff(), sectionHandler.ApplyTeacherReview())
		}

		students := api.Group("/students/:id")
		students.Use(middleware.ExtractUintParam("id", "studentID"))
		{
			students.GET("/assessments", assessmentHandler.ListForStudent)
			students.GET("/levels", profileHandler.GetLevels)
		}

		admin := api.Group("/admin")
		admin.Use(authMiddleware.RequireStaff())
		{
			admin.GET("/assessments/export", adminHandler.ExportResults)
			admin.GET("/questions/stats", adminHandler.PoolStats)
		}
	}

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Info("[Main] starting server", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("[Main] server failed", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("[Main] shutting down server")

	// Останавливаем диспетчер и хаб
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("[Main] server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("[Main] server exited properly")
}

// corsConfig собирает настройки CORS. "*" разрешает любой origin без credentials.
func corsConfig(origins []string) cors.Config {
	c := cors.Config{
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders: []string{"Content-Length", "Content-Disposition", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		MaxAge:        12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			c.AllowAllOrigins = true
			return c
		}
	}
	c.AllowOrigins = origins
	c.AllowCredentials = true
	return c
}
