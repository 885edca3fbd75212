package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/clipforge/clipforge/internal/analysis"
	"github.com/clipforge/clipforge/internal/config"
	internalhttp "github.com/clipforge/clipforge/internal/http"
	"github.com/clipforge/clipforge/internal/http/handlers"
	"github.com/clipforge/clipforge/internal/jobs"
	"github.com/clipforge/clipforge/internal/media/downloader"
	"github.com/clipforge/clipforge/internal/media/ffmpeg"
	"github.com/clipforge/clipforge/internal/reframe"
	"github.com/clipforge/clipforge/internal/scheduler"
	"github.com/clipforge/clipforge/internal/service/progress"
	"github.com/clipforge/clipforge/internal/startup"
	"github.com/clipforge/clipforge/internal/transcribe"
	"github.com/clipforge/clipforge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the clipforge server",
	Long: `Start the clipforge HTTP server and API.

The server provides:
- REST API for analyzing videos and cutting highlight clips
- SSE progress streams for jobs and batches
- Finished clip downloads at /output/{filename}
- OpenAPI documentation at /docs`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	// Flag overrides apply after config.Load so priority stays:
	// flag > env var > config file > default.
	serveCmd.Flags().String("host", "0.0.0.0", "Host to bind to")
	serveCmd.Flags().Int("port", 8080, "Port to listen on")
	serveCmd.Flags().String("data-dir", "./data", "Base directory for output and temp files")
}

func runServe(cmd *cobra.Command, args []string) error {
	logger := slog.Default()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cmd.Flags().Changed("host") {
		cfg.Server.Host, _ = cmd.Flags().GetString("host")
	}
	if cmd.Flags().Changed("port") {
		cfg.Server.Port, _ = cmd.Flags().GetInt("port")
	}
	if cmd.Flags().Changed("data-dir") {
		cfg.Storage.BaseDir, _ = cmd.Flags().GetString("data-dir")
	}

	if err := os.MkdirAll(cfg.Storage.OutputPath(), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.MkdirAll(cfg.Storage.TempPath(), 0o755); err != nil {
		return fmt.Errorf("creating temp directory: %w", err)
	}

	// Remove job working dirs left behind by a previous run.
	if removed, err := startup.CleanupOrphanedJobDirs(logger, cfg.Storage.TempPath()); err != nil {
		logger.Warn("cleaning orphaned job dirs failed", "error", err)
	} else if removed > 0 {
		logger.Info("cleaned orphaned job dirs on startup", "removed", removed)
	}

	dl, err := downloader.New(cfg.Tools, cfg.Storage.TempPath(), logger)
	if err != nil {
		return fmt.Errorf("initializing downloader: %w", err)
	}

	runner, err := ffmpeg.NewRunner(cfg.Tools, logger)
	if err != nil {
		return fmt.Errorf("initializing transcoder: %w", err)
	}

	analyzer := analysis.NewAnalyzer(dl, dl, ffmpeg.NewAnalyzer(runner), analysis.AnalyzerConfig{
		WindowMs:        cfg.Analysis.WindowMs,
		SmoothingWindow: cfg.Analysis.SmoothingWindow,
		MaxComments:     cfg.Analysis.MaxComments,
	}, logger)

	detectDefaults := analysis.DetectOptions{
		TopN:               cfg.Analysis.TopN,
		MinDurationS:       cfg.Analysis.MinDurationS,
		MaxDurationS:       cfg.Analysis.MaxDurationS,
		MinGapS:            cfg.Analysis.MinGapS,
		IntensityThreshold: cfg.Analysis.IntensityThreshold,
	}

	hub := progress.NewHub(logger)
	hub.Start()
	defer hub.Stop()

	// The whisper binary and model are only resolved when the first clip
	// needs a transcription; a failed load is remembered, not retried.
	models := transcribe.NewRegistry[transcribe.Transcriber]()
	transcriber := transcribe.LazyTranscriber(models, cfg.Tools.WhisperModel, func() (transcribe.Transcriber, error) {
		return transcribe.NewWhisper(cfg.Tools, logger)
	})

	orch := jobs.New(jobs.Options{
		Media:       dl,
		FFmpeg:      runner,
		Reframer:    reframe.NewAnalyzer(logger),
		Transcriber: transcriber,
		Translator:  transcribe.UnavailableTranslator(),
		Synthesizer: transcribe.UnavailableSynthesizer(),
		Hub:         hub,
		Jobs:        cfg.Jobs,
		Storage:     cfg.Storage,
		Logger:      logger,
	})
	batch := jobs.NewBatchRunner(analyzer, orch, hub, detectDefaults, logger)

	sweeper := scheduler.New(cfg.Storage, logger)
	if err := sweeper.Start(); err != nil {
		return fmt.Errorf("starting retention sweeper: %w", err)
	}
	defer sweeper.Stop()

	server := internalhttp.NewServer(cfg.Server, logger, version.Version)

	handlers.NewAnalyzeHandler(analyzer, detectDefaults, logger).Register(server.API())
	handlers.NewSubtitlesHandler(dl, cfg.Jobs.SubtitleTimeout, logger).Register(server.API())
	handlers.NewJobsHandler(orch, hub, logger).Register(server.API())
	handlers.NewBatchHandler(batch, logger).Register(server.API())
	handlers.NewHealthHandler(version.Version, dl, runner).Register(server.API())
	handlers.NewSystemHandler(orch).Register(server.API())

	handlers.NewProgressHandler(hub, logger).RegisterSSE(server.Router())
	handlers.NewOutputHandler(cfg.Storage.OutputPath(), logger).RegisterRoutes(server.Router())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		logger.Info("received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	logger.Info("starting clipforge server",
		slog.String("host", cfg.Server.Host),
		slog.Int("port", cfg.Server.Port),
		slog.String("version", version.Version),
	)

	return server.ListenAndServe(ctx)
}
