// Command mmm runs marketing-mix-model training jobs: once with `run`, or on
// a cron schedule with `schedule`. All configuration comes from environment
// variables plus the job config document in object storage.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ivana-meshed/mmm-app-sub006/pkg/config"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/engine"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/logging"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/metadatastore"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/pipeline"
	"github.com/ivana-meshed/mmm-app-sub006/pkg/storage"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:     "mmm",
		Short:   "Marketing-mix-model training and budget-forecast pipeline",
		Version: version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Optional .env for local development; real deployments set the
			// environment directly.
			_ = godotenv.Load()
		},
	}

	root.AddCommand(newRunCmd())
	root.AddCommand(newScheduleCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Execute one training job and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			return app.runner.Run(ctx)
		},
	}
}

func newScheduleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run training jobs on a cron schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signalContext()
			defer cancel()

			app, err := buildApp(ctx)
			if err != nil {
				return err
			}
			defer app.close()

			c := cron.New()
			_, err = c.AddFunc(app.settings.ScheduleSpec, func() {
				app.log.Info("scheduled run starting",
					logging.String("schedule", app.settings.ScheduleSpec))
				if err := app.runner.Run(ctx); err != nil {
					app.log.Error("scheduled run failed", logging.Err(err))
				}
			})
			if err != nil {
				return fmt.Errorf("invalid SCHEDULE_SPEC %q: %w", app.settings.ScheduleSpec, err)
			}

			c.Start()
			app.log.Info("scheduler started",
				logging.String("schedule", app.settings.ScheduleSpec))

			<-ctx.Done()
			stopCtx := c.Stop()
			// Let an in-flight cron callback finish before tearing down.
			select {
			case <-stopCtx.Done():
			case <-time.After(30 * time.Second):
			}
			app.log.Info("scheduler stopped")
			return nil
		},
	}
}

// app bundles the long-lived dependencies built once at startup.
type app struct {
	settings *config.Settings
	log      logging.Logger
	store    metadatastore.JobStore
	runner   *pipeline.Runner
}

func buildApp(ctx context.Context) (*app, error) {
	settings, err := config.LoadSettings()
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}

	log, err := logging.New(settings.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	objects, err := buildObjectStore(ctx, settings)
	if err != nil {
		return nil, err
	}

	store, err := metadatastore.NewSQLiteStore(settings.MetadataDBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open metadata store: %w", err)
	}

	eng := engine.NewHTTPEngine(settings.EngineURL,
		time.Duration(settings.EngineTimeoutSecs)*time.Second)

	runner := pipeline.NewRunner(settings, objects, store, eng, eng, log)

	log.Info("application initialized",
		logging.String("environment", settings.Environment),
		logging.String("storage_backend", settings.StorageBackend),
		logging.String("engine_url", settings.EngineURL))

	return &app{
		settings: settings,
		log:      log,
		store:    store,
		runner:   runner,
	}, nil
}

func buildObjectStore(ctx context.Context, settings *config.Settings) (storage.ObjectStore, error) {
	switch settings.StorageBackend {
	case "s3":
		objects, err := storage.NewS3Store(ctx, settings.S3Bucket)
		if err != nil {
			return nil, fmt.Errorf("failed to create S3 store: %w", err)
		}
		return objects, nil
	default:
		objects, err := storage.NewFilesystemStore(settings.StorageBasePath)
		if err != nil {
			return nil, fmt.Errorf("failed to create filesystem store: %w", err)
		}
		return objects, nil
	}
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		a.log.Warn("failed to close metadata store", logging.Err(err))
	}
	_ = a.log.Sync()
}

// signalContext returns a context cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
