package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"classtrack/internal/attendance"
	"classtrack/internal/config"
	"classtrack/internal/enrollment"
	"classtrack/internal/faceclient"
	"classtrack/internal/httpapi"
	"classtrack/internal/logging"
	"classtrack/internal/observability"
	"classtrack/internal/queue"
	"classtrack/internal/settings"
	"classtrack/internal/store"
	"classtrack/internal/student"
	"classtrack/internal/subject"
	"classtrack/internal/user"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logg.Closer()
	log := logg.Base

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "classtrack-api")
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer flushSentry()

	if cfg.Env == "production" || cfg.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := run(cfg, log); err != nil {
		log.Fatal("api server failed", zap.Error(err))
	}
}

func run(cfg config.App, log *zap.Logger) error {
	db, err := store.NewDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	defer db.Close()

	redisClient := store.NewRedis(cfg.RedisAddr)

	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "classtrack:train")
	}

	userRepo := user.NewRepository(db.Client)
	studentRepo := student.NewRepository(db.Client)
	subjectRepo := subject.NewRepository(db.Client)
	enrollRepo := enrollment.NewRepository(db.Client)
	attRepo := attendance.NewRepository(db.Client)
	settingsStore := settings.NewStore(db.Client)

	users := user.NewService(userRepo, cfg.JWTIssuer, cfg.JWTSigningKey, cfg.AccessTTL)
	students := student.NewService(studentRepo, userRepo, jobs, cfg.FramesDir, log)
	enrollments := enrollment.NewService(enrollRepo, subjectRepo, userRepo)
	marks := attendance.NewService(attRepo, enrollRepo, settingsStore, cfg.Location)
	faces := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)

	srv := &httpapi.Server{
		Users:         users,
		UserRepo:      userRepo,
		Students:      students,
		StudentRepo:   studentRepo,
		Subjects:      subjectRepo,
		Enrollments:   enrollments,
		Attendance:    marks,
		AttRepo:       attRepo,
		Settings:      settingsStore,
		Faces:         faces,
		Log:           log,
		JWTSigningKey: cfg.JWTSigningKey,
		JWTIssuer:     cfg.JWTIssuer,
		UploadDir:     cfg.UploadDir,
		RateLimit:     cfg.RateLimitPerMin,
		Health: func(c *gin.Context) {
			redisHealthy := redisClient.Healthy(c.Request.Context())
			dbHealthy := db.Client.PingContext(c.Request.Context()) == nil
			status := http.StatusOK
			if !redisHealthy || !dbHealthy {
				status = http.StatusServiceUnavailable
			}
			c.JSON(status, gin.H{"status": "ok", "redis": redisHealthy, "db": dbHealthy})
		},
	}

	httpSrv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      srv.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info("starting server", zap.String("port", cfg.HTTPPort))
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("server error", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete.
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.Warn("server forced shutdown", zap.Error(err))
	}
	log.Info("server exited")
	return nil
}
