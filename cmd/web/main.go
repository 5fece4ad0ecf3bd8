package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/loukt/video-transcript-explorer/internal/analysis"
	"github.com/loukt/video-transcript-explorer/internal/blob"
	"github.com/loukt/video-transcript-explorer/internal/config"
	"github.com/loukt/video-transcript-explorer/internal/docstore"
	"github.com/loukt/video-transcript-explorer/internal/handlers"
	"github.com/loukt/video-transcript-explorer/internal/lifecycle"
	"github.com/loukt/video-transcript-explorer/internal/logging"
	"github.com/loukt/video-transcript-explorer/internal/notify"
	"github.com/loukt/video-transcript-explorer/internal/probe"
	"github.com/loukt/video-transcript-explorer/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger, logCloser := logging.New(logging.Options{
		Level:      cfg.LogLevel,
		File:       cfg.LogFile,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		MaxAgeDays: cfg.LogMaxAgeDays,
		Compress:   cfg.LogCompress,
	})
	defer logCloser.Close()
	slog.SetDefault(logger)

	if err := run(cfg, logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	policy, err := lifecycle.ParsePolicy(cfg.ProcessingPolicy)
	if err != nil {
		return err
	}

	local := blob.NewLocalUploader(filepath.Join(cfg.UploadsDir, "media"), logger)
	var uploader, fallback blob.Uploader = local, nil
	if cfg.BlobBackend == "s3" {
		s3Uploader, err := blob.NewS3Uploader(ctx, cfg.S3BucketName, cfg.AWSRegion, logger)
		if err != nil {
			return err
		}
		uploader, fallback = s3Uploader, local
	}

	docs, err := docstore.Open(ctx, docstore.Config{
		Backend:         cfg.DocstoreBackend,
		MongoURI:        cfg.MongoURI,
		MongoDatabase:   cfg.MongoDatabase,
		MongoCollection: cfg.MongoCollection,
		DynamoDBTable:   cfg.DynamoDBTable,
		AWSRegion:       cfg.AWSRegion,
		PostgresDSN:     cfg.PostgresDSN,
		SQLitePath:      cfg.SQLitePath,
	}, logger)
	if err != nil {
		return fmt.Errorf("open docstore: %w", err)
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer closeCancel()
		if err := docs.Close(closeCtx); err != nil {
			logger.Warn("docstore close failed", "error", err)
		}
	}()

	hub := notify.NewHub(logger)
	notifiers := notify.Fanout{notify.NewLog(logger), hub}
	if cfg.SQSQueueURL != "" {
		queue, err := notify.NewSQS(ctx, cfg.SQSQueueURL, cfg.AWSRegion, logger)
		if err != nil {
			return err
		}
		notifiers = append(notifiers, queue)
	}

	ctrl, err := lifecycle.New(store.New(), lifecycle.Options{
		Policy: policy,
		Poll: lifecycle.PollConfig{
			Interval:    cfg.PollInterval(),
			MaxAttempts: cfg.PollMaxAttempts,
			Timeout:     cfg.ProcessingTimeout(),
			MaxRetries:  cfg.PollMaxRetries,
			MaxBackoff:  time.Minute,
		},
		Uploader: uploader,
		Fallback: fallback,
		Analyzer: analysis.NewClient(analysis.Config{
			Endpoint:   cfg.AnalysisEndpoint,
			APIKey:     cfg.AnalysisAPIKey,
			AnalyzerID: cfg.AnalysisAnalyzerID,
			APIVersion: cfg.AnalysisAPIVersion,
		}, nil, logger),
		Documents: docs,
		Notifier:  notifiers,
		Progress:  hub,
	}, logger)
	if err != nil {
		return err
	}

	app := handlers.NewApp(logger, ctrl, hub, probe.NewService(logger, cfg.FFProbeBin), handlers.Options{
		UploadsDir:     cfg.UploadsDir,
		MaxUploadBytes: cfg.MaxUploadBytes,
		BaseContext:    ctx,
	})
	app.StartCleanupLoop(ctx, cfg.CleanupInterval(), cfg.UploadTTL())

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           app.Router(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       10 * time.Minute,
		WriteTimeout:      10 * time.Minute,
		IdleTimeout:       120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server started", "addr", cfg.Addr, "policy", policy, "blob_backend", cfg.BlobBackend, "docstore", cfg.DocstoreBackend)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigCh:
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return err
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		_ = srv.Close()
	}

	// In-flight uploads observe the cancellation and settle in a terminal state.
	cancel()
	app.Wait()
	logger.Info("server stopped")
	return nil
}
