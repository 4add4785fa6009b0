package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/vulntor/jobkit/cmd/jobd/internal/manifest"
	"github.com/vulntor/jobkit/pkg/event"
	"github.com/vulntor/jobkit/pkg/hook"
	"github.com/vulntor/jobkit/pkg/jobs"
	"github.com/vulntor/jobkit/pkg/store"
	"github.com/vulntor/jobkit/pkg/work"
)

// shutdownSlack is added on top of the configured grace period when
// bounding the final Shutdown call, so the controller's own grace timer
// always fires first.
const shutdownSlack = 5 * time.Second

func newRunCommand() *cobra.Command {
	var (
		manifestPath string
		oneshot      bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the job daemon",
		Long: `Starts the job controller and runs until interrupted. With --manifest,
the listed jobs are enqueued at startup; with --oneshot, the daemon exits
once every manifest job has reached a terminal state.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDaemon(cmd, manifestPath, oneshot)
		},
	}

	cmd.Flags().StringVarP(&manifestPath, "manifest", "m", "", "YAML manifest of jobs to enqueue at startup")
	cmd.Flags().BoolVar(&oneshot, "oneshot", false, "Exit once all manifest jobs finish")

	return cmd
}

func runDaemon(cmd *cobra.Command, manifestPath string, oneshot bool) error {
	cfg := cfgManager.Get()
	logger := log.With().Str("command", "run").Logger()

	if oneshot && manifestPath == "" {
		return fmt.Errorf("--oneshot requires --manifest")
	}

	// Build all manifest executors before starting anything, so a bad
	// manifest fails fast with nothing to tear down.
	var execs []jobs.Executor
	if manifestPath != "" {
		entries, err := manifest.Load(manifestPath)
		if err != nil {
			return err
		}
		execs = make([]jobs.Executor, 0, len(entries))
		for _, entry := range entries {
			id := entry.ID
			if id == "" {
				id = uuid.NewString()
			}
			exec, err := work.New(entry.Kind, id, entry.Params)
			if err != nil {
				return err
			}
			execs = append(execs, exec)
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var st store.Store
	if !cfg.Store.Disabled {
		local, err := store.NewLocalStore(cfg.Store.Dir)
		if err != nil {
			return fmt.Errorf("open job store: %w", err)
		}
		if err := local.Initialize(ctx); err != nil {
			return fmt.Errorf("initialize job store: %w", err)
		}
		st = local
		logger.Info().Str("store_dir", cfg.Store.Dir).Msg("Job store ready")
	} else {
		logger.Info().Msg("Job store disabled for this run")
	}

	hooks := hook.NewManager()
	if st != nil {
		hooks.Register("store-close", func(ctx context.Context) {
			if err := st.Close(); err != nil {
				logger.Warn().Err(err).Msg("Failed to close job store")
			}
		})
	}

	events := event.NewManager()
	stream, cancelStream := events.Stream(jobs.Topic, 128)

	ctrl := jobs.NewController(jobs.Options{
		Concurrency:   cfg.Jobs.Concurrency,
		ShutdownGrace: cfg.Jobs.ShutdownGrace,
		Store:         st,
		Events:        events,
	})
	logger.Info().
		Int("concurrency", cfg.Jobs.Concurrency).
		Dur("shutdown_grace", cfg.Jobs.ShutdownGrace).
		Msg("Job controller started")

	watched := make(map[string]bool, len(execs))
	for _, exec := range execs {
		if err := ctrl.Enqueue(exec); err != nil {
			logger.Error().Err(err).Str("job_id", exec.ID()).Msg("Failed to enqueue manifest job")
			continue
		}
		watched[exec.ID()] = false
		logger.Info().Str("job_id", exec.ID()).Msg("Enqueued manifest job")
	}

	// Closed by the event pump once every watched job is terminal. Stays
	// nil outside oneshot mode so the select below never fires on it.
	var jobsDone chan struct{}
	if oneshot {
		jobsDone = make(chan struct{})
		if len(watched) == 0 {
			close(jobsDone)
		}
	}

	var g errgroup.Group

	g.Go(func() error {
		remaining := len(watched)
		for ev := range stream {
			payload, ok := ev.Data.(jobs.Event)
			if !ok {
				continue
			}
			logLifecycle(logger, payload)

			if jobsDone == nil || !payload.Kind.Terminal() {
				continue
			}
			if done, tracked := watched[payload.JobID]; tracked && !done {
				watched[payload.JobID] = true
				if remaining--; remaining == 0 {
					close(jobsDone)
				}
			}
		}
		return nil
	})

	g.Go(func() error {
		select {
		case <-ctx.Done():
			logger.Info().Msg("Interrupt received, shutting down")
		case <-jobsDone:
			logger.Info().Msg("All manifest jobs finished, shutting down")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Jobs.ShutdownGrace+shutdownSlack)
		defer cancel()
		err := ctrl.Shutdown(shutdownCtx)

		cancelStream()
		events.Close()
		hooks.Trigger(context.Background(), "store-close")

		if err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	})

	return g.Wait()
}

func logLifecycle(logger zerolog.Logger, ev jobs.Event) {
	line := logger.With().Str("job_id", ev.JobID).Logger()
	switch ev.Kind {
	case jobs.EventStarted:
		line.Info().Msg("Job started")
	case jobs.EventProgress:
		line.Debug().
			Int("current", ev.Current).
			Int("total", ev.Total).
			Str("message", ev.Message).
			Msg("Job progress")
	case jobs.EventCompleted:
		line.Info().Msg("Job completed")
	case jobs.EventFailed:
		line.Warn().Str("error", ev.Message).Msg("Job failed")
	case jobs.EventCancelled:
		line.Info().Msg("Job cancelled")
	}
}
