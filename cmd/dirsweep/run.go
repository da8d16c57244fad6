package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"dirsweep/internal/api"
	"dirsweep/internal/config"
	"dirsweep/internal/database"
	"dirsweep/internal/logging"
	"dirsweep/internal/metrics"
	"dirsweep/internal/scheduler"
)

type runFlags struct {
	configPath string
	once       bool
	dryRun     bool
	noMetrics  bool
}

func newRunCmd() *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Sweep configured targets on a schedule",
		Long: `run loads a YAML configuration and sweeps every target once at startup,
then again every interval_minutes or when POST /trigger is received on the
metrics server.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), f)
		},
	}

	cmd.Flags().StringVarP(&f.configPath, "config", "c", "/etc/dirsweep/config.yaml", "Path to configuration file")
	cmd.Flags().BoolVar(&f.once, "once", false, "Sweep once and exit (no loop)")
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Count what would be deleted without deleting")
	cmd.Flags().BoolVar(&f.noMetrics, "no-metrics", false, "Do not start the metrics server")
	return cmd
}

func runDaemon(ctx context.Context, f *runFlags) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load(f.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.NewWithConfig(cfg)
	logger.WithFields(logrus.Fields{
		"config":  f.configPath,
		"targets": cfg.TargetPaths(),
		"dry_run": f.dryRun,
	}).Info("dirsweep starting")

	metrics.Init()

	// Initialize database for sweep history
	var db *database.SweepDB
	if cfg.DatabasePath != "" {
		logger.WithField("path", cfg.DatabasePath).Info("opening sweep database")
		db, err = database.NewSweepDB(cfg.DatabasePath)
		if err != nil {
			return fmt.Errorf("open database: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logger.WithError(err).Error("failed to close database")
			}
		}()
	}

	if !f.once && !f.noMetrics {
		startMonitoring(cfg, db, logger)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			metrics.Shutdown(shutdownCtx, logger)
		}()
	}

	if !f.once && cfg.API.Port > 0 {
		stop, err := startAPI(cfg, db, logger)
		if err != nil {
			return err
		}
		defer stop()
	}

	if f.once {
		summary, err := scheduler.RunOnceWithDB(ctx, cfg, f.dryRun, logger, db)
		if err != nil {
			return err
		}
		logger.WithField("bytes", summary.Total().Bytes).Info("sweep completed successfully")
		return nil
	}

	err = scheduler.Run(ctx, cfg, f.dryRun, logger, db)
	if errors.Is(err, context.Canceled) {
		logger.Info("dirsweep stopped")
		return nil
	}
	return err
}

// startMonitoring serves /metrics, /health and /trigger and starts the
// periodic component checks behind /health
func startMonitoring(cfg *config.Config, db *database.SweepDB, logger *logrus.Logger) {
	hc := metrics.NewHealthChecker(30 * time.Second)
	if db != nil {
		hc.RegisterComponent("database", db.Ping, 5*time.Second)
	}
	hc.RegisterComponent("targets", func() error {
		return checkTargetParents(cfg)
	}, 5*time.Second)
	hc.Start()
	metrics.SetHealthChecker(hc)

	metrics.StartServer(cfg.PrometheusAddress(), logger)
}

// startAPI serves the sweep API and streams every sweep result to its
// event clients. The returned func stops both.
func startAPI(cfg *config.Config, db *database.SweepDB, logger *logrus.Logger) (func(), error) {
	opts := api.Options{
		DB:        db,
		RateLimit: rate.Limit(cfg.API.RateLimit),
		RateBurst: cfg.API.RateBurst,
		Logger:    logger,
	}
	if cfg.API.JWTSecretFile != "" {
		secret, err := api.LoadSecret(cfg.API.JWTSecretFile)
		if err != nil {
			return nil, err
		}
		if opts.Tokens, err = api.NewTokenManager(secret, 24*time.Hour); err != nil {
			return nil, err
		}
	} else {
		logger.Warn("api.jwt_secret_file is not set; the sweep api is unauthenticated")
	}

	server := api.NewServer(opts)
	scheduler.SetResultNotifier(server.Hub().PublishResult)

	go func() {
		if err := server.ListenAndServe(cfg.APIAddress()); err != nil {
			logger.WithError(err).Error("api server error")
			metrics.ErrorsTotal.Inc()
		}
	}()

	return func() {
		scheduler.SetResultNotifier(nil)
		ctx, cancel := context.WithTimeout(context.Background(), api.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil {
			logger.WithError(err).Warn("api server shutdown error")
		}
	}, nil
}

// checkTargetParents fails when the directory holding a target is unreachable
func checkTargetParents(cfg *config.Config) error {
	var errs []error
	for _, p := range cfg.TargetPaths() {
		if _, err := os.Stat(filepath.Dir(p)); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
