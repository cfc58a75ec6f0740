package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/luma/internal/config"
	"github.com/roach88/luma/internal/journal"
	"github.com/roach88/luma/internal/program"
	"github.com/roach88/luma/internal/runtime"
	"github.com/roach88/luma/internal/server"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	Config   string
	Programs string
	Scene    string
	Memory   string
	Database string
	Serve    string
	Fast     bool // don't pace frames to scene time

	// Options are appended to the loop options (for testing).
	Options []runtime.Option
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run programs against a scripted scene",
		Long: `Run the frame loop over the programs in a directory.

Frames come from a scene file standing in for the camera. Each frame the
fact store is rebuilt from the programs whose markers are visible plus the
resident programs. Flags override the configuration file.

Example:
  luma run --programs ./programs --scene ./scene.yaml
  luma run --config luma.cue --scene ./scene.yaml --db ./journal.db --serve :8080`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoop(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Config, "config", "", "configuration file (.cue, .yaml)")
	cmd.Flags().StringVar(&opts.Programs, "programs", "", "programs directory")
	cmd.Flags().StringVar(&opts.Scene, "scene", "", "scene file (required)")
	cmd.Flags().StringVar(&opts.Memory, "memory", "", "directory for saved memories")
	cmd.Flags().StringVar(&opts.Database, "db", "", "path to the SQLite frame journal")
	cmd.Flags().StringVar(&opts.Serve, "serve", "", "address for the inspection server")
	cmd.Flags().BoolVar(&opts.Fast, "fast", false, "run frames back to back instead of at scene time")
	_ = cmd.MarkFlagRequired("scene")

	return cmd
}

// resolveConfig loads the configuration file, if any, and applies flags.
func resolveConfig(opts *RunOptions, cmd *cobra.Command) (config.Config, error) {
	cfg := config.Default()
	if opts.Config != "" {
		loaded, err := config.Load(opts.Config)
		if err != nil {
			return config.Config{}, err
		}
		cfg = loaded
	}
	flags := cmd.Flags()
	if flags.Changed("programs") {
		cfg.Programs = opts.Programs
	}
	if flags.Changed("memory") {
		cfg.Memory = opts.Memory
	}
	if flags.Changed("db") {
		cfg.Journal = opts.Database
	}
	if flags.Changed("serve") {
		cfg.Serve = opts.Serve
	}
	return cfg, nil
}

func runLoop(opts *RunOptions, cmd *cobra.Command) error {
	formatter := newFormatter(opts.RootOptions, cmd.OutOrStdout(), cmd.ErrOrStderr())

	cfg, err := resolveConfig(opts, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	logger := formatter.Logger(cfg.Level())

	loaded, err := LoadPrograms(cfg.Programs)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load programs", err)
	}
	if len(loaded.Invalid) > 0 {
		for _, e := range loaded.Invalid {
			logger.Error("invalid program", "error", e)
		}
		return NewExitError(ExitFailure, fmt.Sprintf("%d program validation error(s)", len(loaded.Invalid)))
	}
	logger.Info("programs loaded", "dir", cfg.Programs, "count", len(loaded.Definitions))

	scene, err := runtime.LoadScene(opts.Scene)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load scene", err)
	}
	frames, err := scene.Expand(time.Now())
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid scene", err)
	}

	loopOpts := append(cfg.LoopOptions(), runtime.WithLogger(logger))
	var j *journal.Journal
	if cfg.Journal != "" {
		j, err = journal.Open(cmd.Context(), cfg.Journal)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		defer func() {
			if closeErr := j.Close(); closeErr != nil {
				logger.Error("error closing journal", "error", closeErr)
			}
		}()
		logger.Info("journal ready", "path", cfg.Journal, "session", j.Session())
		loopOpts = append(loopOpts, runtime.WithRecorder(j))
	}
	loopOpts = append(loopOpts, opts.Options...)
	loop := runtime.NewLoop(program.Programs(loaded.Definitions), loopOpts...)

	// Setup signal handling for graceful shutdown
	// Use command's context if available (for testing), otherwise create one
	parentCtx := cmd.Context()
	if parentCtx == nil {
		parentCtx = context.Background()
	}
	ctx, cancel := context.WithCancel(parentCtx)
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan) // Prevent signal handler leak

	go func() {
		select {
		case sig := <-sigChan:
			logger.Info("received signal, shutting down", "signal", sig)
			cancel()
		case <-ctx.Done():
			// Parent context cancelled (e.g., from test)
		}
	}()

	if cfg.Serve != "" {
		var srvOpts []server.Option
		srvOpts = append(srvOpts, server.WithLogger(logger))
		if j != nil {
			srvOpts = append(srvOpts, server.WithJournal(j))
		}
		srv := &http.Server{
			Addr:              cfg.Serve,
			Handler:           server.New(loop, Version, srvOpts...),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			logger.Info("inspection server listening", "addr", cfg.Serve)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("inspection server failed", "error", err)
			}
		}()
		defer shutdownServer(srv, logger)
	}

	if !formatter.JSON() {
		fmt.Fprintf(formatter.Writer, "Running %d program(s) over %d frame(s)...\n", len(loaded.Definitions), len(frames))
	}
	err = loop.Run(ctx, runtime.NewSceneSource(frames, !opts.Fast))
	if err != nil && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return WrapExitError(ExitFailure, "frame loop error", err)
	}

	return reportRun(formatter, loop.Latest())
}

func shutdownServer(srv *http.Server, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Warn("inspection server shutdown", "error", err)
	}
}

// RunSummary is the result of a run.
type RunSummary struct {
	Frames int64    `json:"frames"`
	Facts  int      `json:"facts"`
	Rules  int      `json:"rules"`
	Errors []string `json:"errors"`
}

func reportRun(f *OutputFormatter, last *runtime.Snapshot) error {
	summary := RunSummary{Errors: []string{}}
	if last != nil {
		summary.Frames = last.Seq
		summary.Facts = last.Counts.Facts
		summary.Rules = last.Counts.Rules
		if last.Errors != nil {
			summary.Errors = last.Errors
		}
	}
	if f.JSON() {
		return f.Success(summary)
	}

	w := f.Writer
	fmt.Fprintf(w, "Stopped after %d frame(s): %d fact(s), %d rule(s) in the last frame\n",
		summary.Frames, summary.Facts, summary.Rules)
	for _, e := range summary.Errors {
		fmt.Fprintf(w, "  ! %s\n", e)
	}
	return nil
}
