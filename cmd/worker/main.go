package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"classtrack/internal/config"
	"classtrack/internal/faceclient"
	"classtrack/internal/logging"
	"classtrack/internal/media"
	"classtrack/internal/metrics"
	"classtrack/internal/observability"
	"classtrack/internal/queue"
	"classtrack/internal/store"
)

// The worker consumes training jobs: it converts the registration video,
// extracts frames and asks the recognition service to train a face model.
func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	logg, err := logging.Init(cfg.LogLevel, cfg.Env)
	if err != nil {
		panic(err)
	}
	defer logg.Closer()
	log := logg.Base

	flushSentry, err := observability.InitSentry(cfg.SentryDSN, cfg.Env, "classtrack-worker")
	if err != nil {
		log.Warn("sentry init failed", zap.Error(err))
	}
	defer flushSentry()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Info("shutdown signal received")
		cancel()
	}()

	redisClient := store.NewRedis(cfg.RedisAddr)
	var jobs queue.Queue
	if cfg.QueueBackend == "memory" {
		jobs = queue.NewInMemory(64)
	} else {
		jobs = queue.NewRedisQueue(redisClient.Client, "classtrack:train")
	}

	face := faceclient.New(cfg.FaceServiceURL, cfg.FaceSkip)
	if !cfg.FaceSkip {
		if err := face.Health(ctx); err != nil {
			log.Warn("face service not available, will retry per job", zap.Error(err))
		} else {
			log.Info("face service connected")
		}
	}

	messages, err := jobs.Consume(ctx)
	if err != nil {
		log.Fatal("queue consume init failed", zap.Error(err))
	}

	log.Info("worker started, waiting for training jobs")
	for job := range messages {
		process(ctx, log, face, cfg.FramesDir, job)
		time.Sleep(10 * time.Millisecond)
	}
	log.Info("worker stopped")
}

func process(ctx context.Context, log *zap.Logger, face *faceclient.Client, framesDir string, job queue.TrainJob) {
	jlog := log.With(zap.String("student_id", job.StudentID))
	jlog.Info("processing training job", zap.String("video", job.VideoPath))

	videoPath, err := media.ConvertToMP4(ctx, job.VideoPath)
	if err != nil {
		jlog.Error("video conversion failed", zap.Error(err))
		observability.CaptureErr(err)
		metrics.TrainJobs.WithLabelValues("convert_failed").Inc()
		return
	}

	frames, err := media.ExtractFrames(ctx, videoPath, job.StudentID, framesDir)
	if err != nil {
		jlog.Error("frame extraction failed", zap.Error(err))
		observability.CaptureErr(err)
		metrics.TrainJobs.WithLabelValues("extract_failed").Inc()
		return
	}

	if err := face.Train(ctx, job.StudentID, frames); err != nil {
		jlog.Error("model training failed", zap.Error(err))
		observability.CaptureErr(err)
		metrics.TrainJobs.WithLabelValues("train_failed").Inc()
		return
	}

	metrics.TrainJobs.WithLabelValues("ok").Inc()
	jlog.Info("training job completed", zap.String("frames_dir", frames))
}
