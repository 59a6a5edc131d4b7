// Package main runs the study session HTTP server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/studyhive/backend/config"
	"github.com/studyhive/backend/internal/achievements"
	"github.com/studyhive/backend/internal/auth"
	"github.com/studyhive/backend/internal/competitions"
	"github.com/studyhive/backend/internal/content"
	"github.com/studyhive/backend/internal/middleware"
	"github.com/studyhive/backend/internal/notifications"
	"github.com/studyhive/backend/internal/quiz"
	"github.com/studyhive/backend/internal/rooms"
	"github.com/studyhive/backend/internal/sessions"
	"github.com/studyhive/backend/internal/sweeper"
	"github.com/studyhive/backend/pkg/database"
	"github.com/studyhive/backend/pkg/queue"
	"github.com/studyhive/backend/pkg/redis"
	"github.com/studyhive/backend/pkg/response"
	"github.com/studyhive/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	var s3Client *storage.S3
	if cfg.AWS.Region != "" {
		s3Cfg := storage.S3Config{
			Region:               cfg.AWS.Region,
			AccessKeyID:          cfg.AWS.AccessKeyID,
			SecretAccessKey:      cfg.AWS.SecretAccessKey,
			FilesBucket:          cfg.AWS.FilesBucket,
			PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
		}
		s3Client, err = storage.NewS3(ctx, s3Cfg, logger)
		if err != nil {
			logger.Warn("file sharing disabled", zap.Error(err))
		}
	}

	clock := clockwork.NewRealClock()

	// Question generation: LLM-backed when a key is configured, otherwise the
	// built-in question bank.
	var generator content.Generator
	if cfg.AI.APIKey != "" {
		generator = content.NewChatGenerator(cfg.AI.APIKey, cfg.AI.APIURL, cfg.AI.Model)
	} else {
		logger.Warn("no AI key configured, using built-in question bank")
		generator = content.NewBankGenerator(time.Now().UnixNano())
	}
	opponent := content.NewOpponentModel(time.Now().UnixNano(), cfg.Session.BotAccuracyPct)

	// Session core
	sessionRepo := sessions.NewRepository(pool)
	sessionSvc := sessions.NewService(sessionRepo, clock, logger, sessions.Options{
		TTL:                 time.Duration(cfg.Session.TTLHours) * time.Hour,
		ListLimit:           cfg.Session.ListLimit,
		DefaultTimerSeconds: cfg.Session.DefaultTimerSecs,
		CodeLength:          cfg.Session.CodeLength,
		MaxCodeRetries:      cfg.Session.MaxCodeRetries,
	})

	jobQueue := queue.NewQueue(rdb.Client, logger)
	quizSvc := quiz.NewService(sessionSvc, jobQueue, logger)
	competitionSvc := competitions.NewService(sessionSvc, quizSvc, generator, opponent, logger, cfg.Session.CompetitionSize)

	roomHandler := rooms.NewHandler(sessionSvc, quizSvc, generator, s3Client, logger)
	competitionHandler := competitions.NewHandler(competitionSvc, sessionSvc, quizSvc, logger)

	// Accounts and progress
	jwtService := auth.NewJWTService(cfg.JWT.Secret, cfg.JWT.ExpireHours)
	authRepo := auth.NewRepository(pool)
	authHandler := auth.NewHandler(authRepo, jwtService, logger)
	notificationHandler := notifications.NewHandler(notifications.NewRepository(pool), logger)
	achievementHandler := achievements.NewHandler(achievements.NewRepository(pool), logger)

	// Expiry sweeper
	sweep := sweeper.New(sessionRepo, clock, logger, cfg.Session.SweepSpec)
	if err := sweep.Start(); err != nil {
		logger.Fatal("sweeper", zap.Error(err))
	}
	defer sweep.Stop()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/register", authHandler.Register)
	}

	// Rooms and competitions are identity-based (anonymous UUIDs), no JWT.
	roomGroup := router.Group("/rooms")
	{
		roomGroup.POST("", roomHandler.Create)
		roomGroup.GET("", roomHandler.List)
		roomGroup.GET("/:code", roomHandler.Get)
		roomGroup.POST("/:code/join", roomHandler.Join)
		roomGroup.POST("/:code/leave", roomHandler.Leave)
		roomGroup.POST("/:code/ready", roomHandler.ToggleReady)
		roomGroup.POST("/:code/timer", roomHandler.Timer)
		roomGroup.POST("/:code/quiz/start", roomHandler.StartQuiz)
		roomGroup.POST("/:code/quiz/answer", roomHandler.SubmitAnswer)
		roomGroup.POST("/:code/quiz/advance", roomHandler.AdvanceQuiz)
		roomGroup.POST("/:code/content", roomHandler.UpdateContent)
		roomGroup.POST("/:code/chat", roomHandler.Chat)
		roomGroup.POST("/:code/files", roomHandler.UploadFile)
		roomGroup.GET("/:code/files/:fileId/url", roomHandler.FileURL)
		roomGroup.DELETE("/:code", roomHandler.Delete)
	}

	compGroup := router.Group("/competitions")
	{
		compGroup.POST("", competitionHandler.Create)
		compGroup.GET("", competitionHandler.List)
		compGroup.POST("/automatch", competitionHandler.AutoMatch)
		compGroup.GET("/:code", competitionHandler.Get)
		compGroup.POST("/:code/join", competitionHandler.Join)
		compGroup.POST("/:code/answer", competitionHandler.SubmitAnswer)
		compGroup.POST("/:code/complete", competitionHandler.Complete)
		compGroup.DELETE("/:code", competitionHandler.Delete)
	}

	router.GET("/notifications", notificationHandler.List)
	router.POST("/notifications/:id/read", notificationHandler.MarkRead)
	router.GET("/achievements", achievementHandler.List)

	// Protected API (JWT required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		api.GET("/users", middleware.RequireRole("admin"), authHandler.List)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
