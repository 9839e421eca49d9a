package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/felixsiegmeier/redcap-mcs/internal/config"
	"github.com/felixsiegmeier/redcap-mcs/internal/domain/aggregation"
	"github.com/felixsiegmeier/redcap-mcs/internal/domain/study"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/auth"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/db"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/middleware"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/mlife"
	"github.com/felixsiegmeier/redcap-mcs/internal/platform/redcap"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "redcap-mcs",
		Short: "Chart-export parser and daily record builder for the MCS registry",
	}

	rootCmd.AddCommand(parseCmd())
	rootCmd.AddCommand(aggregateCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if os.Getenv("ENV") == "development" || os.Getenv("ENV") == "" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	}
	return logger
}

func parseCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "parse <export-file>",
		Short: "Parse a chart export and summarize the recovered events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			logger := newLogger()
			table, patientName, err := mlife.NewPipeline(logger).Run(string(raw))
			if err != nil {
				return err
			}

			type daySummary struct {
				Day    string `json:"day"`
				Events int    `json:"events"`
			}
			summary := struct {
				PatientName string       `json:"patient_name,omitempty"`
				Events      int          `json:"events"`
				Days        []daySummary `json:"days"`
			}{
				PatientName: patientName,
				Events:      table.Len(),
			}
			for _, day := range table.Days() {
				summary.Days = append(summary.Days, daySummary{
					Day:    day.Format("2006-01-02"),
					Events: table.OnDay(day).Len(),
				})
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(summary)
		},
	}
	return cmd
}

func aggregateCmd() *cobra.Command {
	var (
		recordID     string
		arm          string
		strategy     string
		nearestTime  string
		weightKg     float64
		decimalComma bool
	)

	cmd := &cobra.Command{
		Use:   "aggregate <export-file>",
		Short: "Parse an export and print the daily records as REDCap fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}

			parsedArm := aggregation.Arm(arm)
			if parsedArm != aggregation.ArmECLS && parsedArm != aggregation.ArmImpella {
				return fmt.Errorf("unknown arm %q", arm)
			}

			aggCtx := aggregation.Context{
				Strategy: aggregation.Strategy(strategy),
				WeightKg: weightKg,
			}
			if nearestTime != "" {
				ref, err := aggregation.ParseClock(nearestTime)
				if err != nil {
					return err
				}
				aggCtx.Reference = ref
				aggCtx.HasReference = true
			}
			if aggCtx.Strategy == aggregation.StrategyNearest && !aggCtx.HasReference {
				return fmt.Errorf("--nearest-time is required for the nearest strategy")
			}

			logger := newLogger()
			table, _, err := mlife.NewPipeline(logger).Run(string(raw))
			if err != nil {
				return err
			}

			engine := aggregation.NewEngine(table, logger)
			builder := aggregation.NewBuilder(engine, recordID, parsedArm, aggCtx, aggregation.NewBolusFilter(), logger)

			var payloads []map[string]string
			for _, built := range builder.BuildAll() {
				fields, err := redcap.Format(built.Payload, redcap.Options{DecimalComma: decimalComma})
				if err != nil {
					return err
				}
				payloads = append(payloads, fields)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(payloads)
		},
	}

	cmd.Flags().StringVar(&recordID, "record-id", "", "registry record id")
	cmd.Flags().StringVar(&arm, "arm", string(aggregation.ArmECLS), "study arm (ecls_arm_2 or impella_arm_2)")
	cmd.Flags().StringVar(&strategy, "strategy", string(aggregation.StrategyMedian), "aggregation strategy (median, mean, first, last, nearest)")
	cmd.Flags().StringVar(&nearestTime, "nearest-time", "", "reference clock time HH:MM for the nearest strategy")
	cmd.Flags().Float64Var(&weightKg, "weight", 0, "patient weight in kg (0 = resolve from the export)")
	cmd.Flags().BoolVar(&decimalComma, "decimal-comma", false, "render decimals with a comma")
	cmd.MarkFlagRequired("record-id")

	return cmd
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			count, err := migrator.Up(ctx)
			if err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}

			fmt.Printf("Applied %d migration(s).\n", count)
			return nil
		},
	}
	cmd.AddCommand(upCmd)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			ctx := context.Background()
			pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
			if err != nil {
				return err
			}
			defer pool.Close()

			migrator := db.NewMigrator(pool, cfg.MigrationsDir)
			statuses, err := migrator.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to get migration status: %w", err)
			}

			fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
			for _, s := range statuses {
				status := "pending"
				appliedAt := ""
				if s.Applied {
					status = "applied"
					if s.AppliedAt != nil {
						appliedAt = s.AppliedAt.Format("2006-01-02 15:04:05")
					}
				}
				fmt.Printf("%-10d %-40s %-10s %s\n", s.Version, s.Name, status, appliedAt)
			}
			return nil
		},
	}
	cmd.AddCommand(statusCmd)

	return cmd
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the registry API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func runServer() error {
	logger := newLogger()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid configuration")
	}

	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	logger.Info().Msg("connected to database")

	requestTimeout, err := time.ParseDuration(cfg.RequestTimeout)
	if err != nil {
		logger.Fatal().Err(err).Str("value", cfg.RequestTimeout).Msg("invalid REQUEST_TIMEOUT")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true

	e.Use(middleware.Recovery(logger))
	e.Use(middleware.RequestID())
	e.Use(middleware.Logger(logger))
	e.Use(middleware.BodyLimit(cfg.BodyLimit))
	e.Use(middleware.RequestTimeout(requestTimeout))
	e.Use(echomw.CORSWithConfig(echomw.CORSConfig{
		AllowOrigins: cfg.CORSOrigins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete},
		AllowHeaders: []string{"Authorization", "Content-Type", "X-Request-ID"},
	}))

	if cfg.IsDev() {
		e.Use(auth.DevAuthMiddleware())
	} else {
		e.Use(auth.JWTMiddleware(auth.JWTConfig{
			Issuer:     cfg.AuthIssuer,
			SigningKey: []byte(cfg.AuthSecret),
		}))
	}

	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": "0.1.0",
		})
	})
	e.GET("/health/db", db.HealthHandler(pool))

	apiV1 := e.Group("/api/v1")

	importRepo := study.NewImportRepo(pool)
	recordRepo := study.NewRecordRepo(pool)
	svc := study.NewService(importRepo, recordRepo, study.Defaults{
		Strategy:     aggregation.Strategy(cfg.DefaultStrategy),
		NearestTime:  cfg.NearestTime,
		BolusMarkers: cfg.BolusMarkers,
		DecimalComma: cfg.DecimalComma,
	}, logger)
	study.NewHandler(svc).RegisterRoutes(apiV1)

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Msg("server listening")
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server stopped")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		return err
	}
	logger.Info().Msg("server shut down")
	return nil
}
