package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/carebase/carebase/internal/config"
	"github.com/carebase/carebase/internal/domain/merge"
	"github.com/carebase/carebase/internal/domain/patient"
	"github.com/carebase/carebase/internal/platform/auth"
	"github.com/carebase/carebase/internal/platform/db"
	"github.com/carebase/carebase/internal/platform/middleware"
	"github.com/carebase/carebase/internal/platform/settings"
	"github.com/carebase/carebase/internal/platform/tasks"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "carebase-server",
		Short: "Patient identity merge and reconciliation server",
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(sweepCmd())
	rootCmd.AddCommand(maintainCmd())
	rootCmd.AddCommand(mergeCmd())
	rootCmd.AddCommand(coverageCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return logger
}

// bootstrap loads config, connects the pool and wires the merge components
// shared by every subcommand.
type app struct {
	cfg        *config.Config
	log        zerolog.Logger
	pool       *pgxpool.Pool
	merger     *merge.Merger
	scanner    *merge.Scanner
	maintainer *merge.Maintainer
	records    merge.RecordRepository
}

func bootstrap(ctx context.Context) (*app, error) {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	patients := patient.NewRepoPG(pool)
	pads := patient.NewAdditionalDataRepoPG(pool)
	records := merge.NewRecordRepoPG(pool)
	settingsProvider := settings.NewPGProvider(pool, cfg.MergePopulatedRecords)

	reconciler := merge.NewReconciler(pads, settingsProvider, logger)
	merger := merge.NewMerger(db.TxRunner(pool), patients, pads, records, reconciler, logger)
	scanner := merge.NewScanner(db.TxRunner(pool), pads, reconciler, cfg.SweepBatchSize, logger)
	maintainer := merge.NewMaintainer(db.TxRunner(pool), records, reconciler, logger)

	return &app{
		cfg:        cfg,
		log:        logger,
		pool:       pool,
		merger:     merger,
		scanner:    scanner,
		maintainer: maintainer,
		records:    records,
	}, nil
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the API server and background maintenance",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func sweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Reconcile duplicate additional-data records once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			totals, err := a.scanner.Sweep(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("patients: %d  deleted: %d  unmergeable: %d  errors: %d\n",
				totals.Patients, totals.Deleted, totals.Unmergeable, totals.Errors)
			return nil
		},
	}
}

func maintainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "maintain",
		Short: "Run one merge maintenance pass and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			counts, err := a.maintainer.Run(ctx)
			if err != nil {
				return err
			}
			if len(counts) == 0 {
				fmt.Println("no stragglers found")
				return nil
			}
			for name, n := range counts {
				fmt.Printf("%s: %d\n", name, n)
			}
			return nil
		},
	}
}

func mergeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "merge",
		Short: "Merge one patient identity into another",
		RunE: func(cmd *cobra.Command, args []string) error {
			keepStr, _ := cmd.Flags().GetString("keep")
			unwantedStr, _ := cmd.Flags().GetString("unwanted")

			keepID, err := uuid.Parse(keepStr)
			if err != nil {
				return fmt.Errorf("--keep must be a patient id: %w", err)
			}
			unwantedID, err := uuid.Parse(unwantedStr)
			if err != nil {
				return fmt.Errorf("--unwanted must be a patient id: %w", err)
			}

			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			result, err := a.merger.Merge(ctx, keepID, unwantedID)
			if err != nil {
				return err
			}
			for name, n := range result.Updates {
				fmt.Printf("%s: %d\n", name, n)
			}
			return nil
		},
	}
	cmd.Flags().String("keep", "", "Patient id that survives the merge")
	cmd.Flags().String("unwanted", "", "Patient id to merge away")
	cmd.MarkFlagRequired("keep")
	cmd.MarkFlagRequired("unwanted")
	return cmd
}

func coverageCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "coverage",
		Short: "Check that every patient-linked table has a merge strategy",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.pool.Close()

			tables, err := a.records.PatientLinkedTables(ctx)
			if err != nil {
				return err
			}
			missing := merge.MissingCoverage(tables)
			if len(missing) == 0 {
				fmt.Printf("all %d patient-linked tables covered\n", len(tables))
				return nil
			}
			for _, t := range missing {
				fmt.Printf("missing merge strategy: %s\n", t)
			}
			return fmt.Errorf("%d patient-linked table(s) without merge coverage", len(missing))
		},
	}
}

func runServer() error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer a.pool.Close()
	a.log.Info().Msg("connected to database")

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(a.log))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(a.log))

	if a.cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			SigningKey: []byte(a.cfg.AuthSigningKey),
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})

	apiV1 := e.Group("/api/v1")
	mergeHandler := merge.NewHandler(a.merger, a.scanner, a.maintainer, a.records, a.log)
	mergeHandler.RegisterRoutes(apiV1)

	// Background reconciliation and straggler repair
	runner := tasks.NewRunner(a.log)
	runner.Add(tasks.Task{
		Name:     "additional-data-sweep",
		Interval: a.cfg.SweepInterval,
		Run: func(ctx context.Context) error {
			_, err := a.scanner.Sweep(ctx)
			return err
		},
	})
	runner.Add(tasks.Task{
		Name:     "merge-maintenance",
		Interval: a.cfg.MaintenanceInterval,
		Jitter:   a.cfg.MaintenanceJitter,
		Run: func(ctx context.Context) error {
			_, err := a.maintainer.Run(ctx)
			return err
		},
	})
	runner.Start(ctx)

	go func() {
		addr := ":" + a.cfg.Port
		a.log.Info().Str("addr", addr).Msg("starting server")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			a.log.Fatal().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()

	a.log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		a.log.Error().Err(err).Msg("server shutdown failed")
	}
	runner.Wait()
	a.log.Info().Msg("server stopped")
	return nil
}
