package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipdex/clipdex/internal/api"
	"github.com/clipdex/clipdex/internal/catalog"
	"github.com/clipdex/clipdex/internal/cloud"
	"github.com/clipdex/clipdex/internal/config"
	"github.com/clipdex/clipdex/internal/db"
	"github.com/clipdex/clipdex/internal/embed"
	"github.com/clipdex/clipdex/internal/ffmpeg"
	"github.com/clipdex/clipdex/internal/logging"
	"github.com/clipdex/clipdex/internal/media"
	"github.com/clipdex/clipdex/internal/pipeline"
	"github.com/clipdex/clipdex/internal/segment"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("fatal error: %v", err)
	}
}

func run() error {
	videoPath := flag.String("video", "", "path to the source video to segment and index")
	embedVideo := flag.Bool("embed", false, "also compute a whole-video embedding for the source")
	serve := flag.Bool("serve", false, "keep the status API running after the video is processed")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("clipdex %s (built %s, commit %s)\n", config.Version, config.BuildTime, config.GitCommit)
		return nil
	}
	if *videoPath == "" && !*serve {
		return errors.New("nothing to do: pass -video or -serve")
	}

	startTime := time.Now()

	cfg, err := config.New()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if err := os.MkdirAll(cfg.DataDir(), 0755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	logger := logging.NewLogger(cfg.LogLevel())
	logger.Info("starting clipdex", "version", config.Version, "data_dir", cfg.DataDir())

	database, err := db.New(cfg.DBPath(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	repo := catalog.NewRepository(database.Conn())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	var pipe *pipeline.Pipeline
	var events api.EventSource
	if *videoPath != "" {
		if cfg.APIKey() == "" {
			return fmt.Errorf("%s is required to index videos", config.EnvAPIKey)
		}
		client := cloud.NewHTTPClient(cfg.BaseURL(), cfg.APIKey(), cfg.HTTPTimeout(), logger)
		pipe = pipeline.New(client, pipeline.Config{
			IndexID:        cfg.IndexID(),
			IndexName:      cfg.IndexName(),
			ModelName:      cfg.ModelName(),
			PollInterval:   cfg.PollInterval(),
			RetryBaseDelay: cfg.RetryBaseDelay(),
			RetryMaxDelay:  cfg.RetryMaxDelay(),
		}, logger)
		events = pipe
	}

	apiServer := api.NewServer(api.ServerConfig{
		Port:       cfg.Port(),
		Token:      cfg.APIToken(),
		Repository: repo,
		Events:     events,
		Logger:     logger,
		StartTime:  startTime,
		Version:    config.Version,
	})
	go func() {
		if err := apiServer.Start(); err != nil {
			logger.Error("HTTP server error", "error", err)
		}
	}()

	var runErr error
	if *videoPath != "" {
		runErr = processVideo(ctx, cfg, repo, pipe, *videoPath, logger)

		if runErr == nil && *embedVideo {
			client := cloud.NewHTTPClient(cfg.BaseURL(), cfg.APIKey(), cfg.HTTPTimeout(), logger)
			embedder := embed.New(client, logger)
			if vec, err := embedder.EmbedVideo(ctx, *videoPath); err != nil {
				logger.Error("embedding failed", "error", err)
			} else {
				logger.Info("embedding computed", "dimensions", len(vec), "model", embedder.ModelName)
			}
		}
	}

	if *serve && runErr == nil {
		logger.Info("serving status API", "addr", apiServer.Addr())
		<-ctx.Done()
	}

	logger.Info("initiating graceful shutdown")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.DefaultShutdownGrace)
	defer shutdownCancel()
	if err := apiServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("failed to shutdown HTTP server", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}

func processVideo(ctx context.Context, cfg config.Config, repo catalog.Repository, pipe *pipeline.Pipeline, videoPath string, logger *slog.Logger) error {
	asset, err := media.Load(videoPath)
	if err != nil {
		return fmt.Errorf("cannot load video: %w", err)
	}

	policy, err := segment.ParsePolicy(cfg.LastClipPolicy())
	if err != nil {
		return err
	}
	opts := segment.Options{
		ClipDuration:    float64(cfg.ClipDuration()),
		Policy:          policy,
		IncludeOriginal: cfg.IncludeOriginal(),
	}

	segmenter := segment.NewSegmenter(ffmpeg.NewRunner(logger), logger)
	clips, err := segmenter.Split(ctx, asset.Path, opts)
	if err != nil {
		return fmt.Errorf("segmentation failed: %w", err)
	}
	logger.Info("segmentation complete", "clips", len(clips))

	result, err := pipe.Run(ctx, clips)
	if err != nil {
		return fmt.Errorf("indexing failed: %w", err)
	}

	run, err := catalog.RecordRun(ctx, repo, asset.Path, opts, result)
	if err != nil {
		logger.Error("failed to record run", "error", err)
	} else {
		logger.Info("run recorded",
			"run_id", run.ID,
			"indexed", run.IndexedCount,
			"dropped", run.DroppedCount,
		)
	}

	if len(result.Assets) == 0 && len(result.Dropped) > 0 {
		return fmt.Errorf("no clips were indexed (%d dropped)", len(result.Dropped))
	}
	return nil
}
