package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/kozaktomas/face-attendance/internal/attendance"
	"github.com/kozaktomas/face-attendance/internal/capture"
	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/cooldown"
	"github.com/kozaktomas/face-attendance/internal/encoder"
	"github.com/kozaktomas/face-attendance/internal/facematch"
	"github.com/kozaktomas/face-attendance/internal/pipeline"
	"github.com/kozaktomas/face-attendance/internal/web"
	"github.com/kozaktomas/face-attendance/internal/web/handlers"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Recognize faces from the capture source and record attendance",
	Long: `Read frames from CAPTURE_SOURCE, match every detected face against the
registered population and record attendance for recognized people.

The process stops on SIGINT/SIGTERM or when a directory source is exhausted.
Send SIGHUP to reset the cooldown so everyone can be recorded again.

Examples:
  # Use the configuration from .env
  face-attendance run

  # Replay a directory of frames once
  face-attendance run --source ./frames --stride 1

  # Second camera of a comma-separated CAPTURE_SOURCE, with the control API
  face-attendance run --camera-index 1 --control-port 8090`,
	RunE: runRun,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("source", "", "Frame directory or snapshot URL (overrides CAPTURE_SOURCE)")
	runCmd.Flags().Int("camera-index", 0, "Index into a comma-separated CAPTURE_SOURCE (overrides CAMERA_INDEX)")
	runCmd.Flags().Int("stride", 0, "Process 1 of every N frames (overrides FRAME_STRIDE)")
	runCmd.Flags().Int("control-port", 0, "Serve the control API on this port (overrides CONTROL_PORT)")
}

// applyRunFlags copies explicitly set flags over the environment configuration.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("source") {
		cfg.Capture.Source = mustGetString(cmd, "source")
	}
	if cmd.Flags().Changed("camera-index") {
		cfg.Capture.CameraIndex = mustGetInt(cmd, "camera-index")
	}
	if cmd.Flags().Changed("stride") {
		cfg.Capture.Stride = mustGetInt(cmd, "stride")
	}
	if cmd.Flags().Changed("control-port") {
		cfg.Control.Port = mustGetInt(cmd, "control-port")
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	applyRunFlags(cmd, cfg)
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	logger, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeBackend(backend, logger)

	pop, err := openPopulation(ctx, cfg, backend, logger)
	if err != nil {
		return err
	}
	if len(pop.KnownIdentities()) == 0 {
		logger.Warn("population is empty, every face will be reported as unknown")
	}

	var svcOpts []attendance.Option
	if cfg.Attendance.LogDir != "" {
		svcOpts = append(svcOpts, attendance.WithMirror(attendance.NewCSVLog(cfg.Attendance.LogDir)))
	}
	recorder := attendance.NewService(backend.Attendance, cfg.Attendance.DuplicateWindow,
		logger.Named("attendance"), svcOpts...)

	var spool *attendance.Spool
	if cfg.Attendance.SpoolPath != "" {
		spool, err = attendance.OpenSpool(cfg.Attendance.SpoolPath)
		if err != nil {
			return err
		}
		defer spool.Close()
	} else {
		logger.Warn("RETRY_SPOOL_PATH not set, events failing to reach the database will be lost")
	}

	enc := encoder.NewClient(cfg.Encoder.URL, cfg.Encoder.DetectionModel)
	if err := enc.Ping(ctx); err != nil {
		logger.Warn("face encoder not reachable yet", zap.String("url", cfg.Encoder.URL), zap.Error(err))
	}

	locator, err := cfg.Capture.SelectedSource()
	if err != nil {
		return err
	}
	source, err := capture.Open(ctx, locator, capture.Options{
		Width:    cfg.Capture.FrameWidth,
		Height:   cfg.Capture.FrameHeight,
		Loop:     cfg.Capture.Loop,
		Interval: cfg.Capture.Interval,
	})
	if err != nil {
		return fmt.Errorf("failed to open capture source: %w", err)
	}
	defer source.Close()

	var engineOpts []facematch.Option
	if cfg.Recognition.ANNIndex {
		engineOpts = append(engineOpts, facematch.WithCandidateLimit(constants.ANNCandidates))
	}
	guard := cooldown.New(cfg.Recognition.Cooldown)

	deps := pipeline.Deps{
		Source:     source,
		Detector:   enc,
		Engine:     facematch.NewEngine(cfg.Recognition.Tolerance, engineOpts...),
		Population: pop,
		Guard:      guard,
		Recorder:   recorder,
	}
	if spool != nil {
		deps.Spool = spool
	}
	p := pipeline.New(deps, pipeline.Config{
		Stride:          cfg.Capture.Stride,
		Scale:           cfg.Capture.Scale,
		ConfidenceFloor: cfg.Recognition.ConfidenceFloor,
		DuplicateWindow: cfg.Attendance.DuplicateWindow,
	}, logger.Named("pipeline"))

	scheduler, err := startJobs(ctx, cfg, p, spool, recorder, logger)
	if err != nil {
		return err
	}
	defer scheduler.Stop()

	go resetOnHangup(ctx, guard, logger)

	if cfg.Control.Port > 0 {
		srv := web.NewServer(handlers.Deps{
			Pipeline:   p,
			Population: pop,
			Cooldown:   guard,
			Attendance: backend.Attendance,
			Logger:     logger.Named("control"),
		}, cfg.Control.Host, cfg.Control.Port)
		go func() {
			if err := srv.Start(); err != nil {
				logger.Error("control server failed", zap.Error(err))
				stop()
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), constants.ShutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn("control server shutdown", zap.Error(err))
			}
		}()
	}

	runErr := p.Run(ctx)
	logStats(logger, "final pipeline stats", p.Stats())

	if spool != nil {
		drainCtx, cancel := context.WithTimeout(context.Background(), constants.FinalDrainTimeout)
		drainSpool(drainCtx, spool, recorder, logger)
		cancel()
	}
	return runErr
}

// startJobs schedules the spool retry and the periodic stats log.
func startJobs(
	ctx context.Context, cfg *config.Config, p *pipeline.Pipeline,
	spool *attendance.Spool, recorder *attendance.Service, logger *zap.Logger,
) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.Local)
	s.SingletonModeAll()

	if spool != nil {
		if _, err := s.Every(cfg.Attendance.RetryInterval).Do(func() {
			drainSpool(ctx, spool, recorder, logger)
		}); err != nil {
			return nil, fmt.Errorf("scheduling spool retry: %w", err)
		}
	}
	if _, err := s.Every(cfg.Attendance.StatsInterval).WaitForSchedule().Do(func() {
		logStats(logger, "pipeline stats", p.Stats())
	}); err != nil {
		return nil, fmt.Errorf("scheduling stats log: %w", err)
	}

	s.StartAsync()
	return s, nil
}

// drainSpool replays spooled events into the durable store.
func drainSpool(ctx context.Context, spool *attendance.Spool, recorder *attendance.Service, logger *zap.Logger) {
	res, err := spool.Drain(ctx, recorder.Replay)
	if err != nil {
		logger.Warn("spool retry incomplete",
			zap.Int("replayed", res.Replayed),
			zap.Int("remaining", res.Remaining),
			zap.Error(err))
		return
	}
	if res.Replayed > 0 || res.Duplicates > 0 {
		logger.Info("spooled attendance replayed",
			zap.Int("replayed", res.Replayed),
			zap.Int("duplicates", res.Duplicates))
	}
}

// resetOnHangup clears the cooldown guard on every SIGHUP until ctx is done.
func resetOnHangup(ctx context.Context, guard *cooldown.Guard, logger *zap.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			n := guard.Len()
			guard.Reset()
			logger.Info("cooldown reset", zap.Int("cleared", n))
		}
	}
}

func logStats(logger *zap.Logger, msg string, s pipeline.Stats) {
	logger.Info(msg,
		zap.Int64("frames_read", s.FramesRead),
		zap.Int64("frames_processed", s.FramesProcessed),
		zap.Int64("frames_failed", s.FramesFailed),
		zap.Int64("faces", s.Faces),
		zap.Int64("recorded", s.Recorded),
		zap.Int64("duplicate", s.Duplicate),
		zap.Int64("suppressed", s.Suppressed),
		zap.Int64("unknown", s.Unknown),
		zap.Int64("below_floor", s.BelowFloor),
		zap.Int64("failed", s.Failed),
		zap.Int64("spooled", s.Spooled),
		zap.Int64("lost", s.Lost))
}
