package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/ayurclinic/clinic/internal/config"
	"github.com/ayurclinic/clinic/internal/platform/audit"
	"github.com/ayurclinic/clinic/internal/platform/db"
)

// errTampered makes `audit verify` exit non-zero without printing a second error.
var errTampered = errors.New("audit chain integrity check failed")

func main() {
	rootCmd := &cobra.Command{
		Use:           "clinic-server",
		Short:         "Clinic API server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(auditCmd())
	rootCmd.AddCommand(seedCmd())

	if err := rootCmd.Execute(); err != nil {
		if !errors.Is(err, errTampered) {
			fmt.Fprintln(os.Stderr, "error:", err)
		}
		os.Exit(1)
	}
}

func newLogger() zerolog.Logger {
	if os.Getenv("ENV") == "" || os.Getenv("ENV") == "development" {
		return zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Logger()
	}
	return zerolog.New(os.Stdout).With().Timestamp().Logger()
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the clinic API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer()
		},
	}
}

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo clinic (skipped when an admin already exists)",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cfg.StoreDriver == config.StoreDriverMemory {
				return fmt.Errorf("seeding the memory store from the CLI has no effect; set SEED_DEMO_DATA=true for serve instead")
			}
			ctx := context.Background()
			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.seeder.Run(ctx)
			if err != nil {
				return err
			}
			return printJSON(res)
		},
	}
}

func migrateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
	}

	// migrate up
	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				count, err := db.NewMigrator(pool, dir).Up(ctx)
				if err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Printf("Applied %d migration(s) successfully.\n", count)
				return nil
			})
		},
	}
	upCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(upCmd)

	// migrate status
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show migration status",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, _ := cmd.Flags().GetString("dir")
			return withPool(func(ctx context.Context, pool *pgxpool.Pool) error {
				statuses, err := db.NewMigrator(pool, dir).Status(ctx)
				if err != nil {
					return fmt.Errorf("failed to get migration status: %w", err)
				}
				fmt.Printf("%-10s %-40s %-10s %s\n", "VERSION", "NAME", "STATUS", "APPLIED AT")
				fmt.Println("---------- ---------------------------------------- ---------- --------------------")
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
			})
		},
	}
	statusCmd.Flags().String("dir", "./migrations", "Path to migrations directory")
	cmd.AddCommand(statusCmd)

	return cmd
}

func auditCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Inspect and maintain the audit chain",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "verify",
		Short: "Verify the audit chain; exits 1 when tampered",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withAuditLog(func(ctx context.Context, log *audit.Log) error {
				report, err := log.VerifyIntegrity(ctx)
				if err != nil {
					return err
				}
				if err := printJSON(report); err != nil {
					return err
				}
				if !report.Valid {
					return errTampered
				}
				return nil
			})
		},
	})

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete every audit entry and restart the chain",
		RunE: func(cmd *cobra.Command, args []string) error {
			confirm, _ := cmd.Flags().GetBool("confirm")
			if !confirm {
				return fmt.Errorf("refusing to reset the audit log without --confirm")
			}
			return withAuditLog(func(ctx context.Context, log *audit.Log) error {
				discarded := log.Len()
				if err := log.Reset(ctx); err != nil {
					return err
				}
				fmt.Printf("Audit log reset; %d entries discarded.\n", discarded)
				return nil
			})
		},
	}
	resetCmd.Flags().Bool("confirm", false, "Confirm the destructive reset")
	cmd.AddCommand(resetCmd)

	return cmd
}

func withPool(fn func(ctx context.Context, pool *pgxpool.Pool) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.StoreDriver != config.StoreDriverPostgres {
		return fmt.Errorf("this command requires STORE_DRIVER=%s", config.StoreDriverPostgres)
	}
	ctx := context.Background()
	pool, err := db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
	if err != nil {
		return err
	}
	defer pool.Close()
	return fn(ctx, pool)
}

func withAuditLog(fn func(ctx context.Context, log *audit.Log) error) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.ResolvedAuditStore() == config.AuditStoreMemory {
		return fmt.Errorf("the memory audit store only lives inside a running server")
	}
	ctx := context.Background()

	var pool *pgxpool.Pool
	if cfg.ResolvedAuditStore() == config.AuditStorePostgres {
		pool, err = db.NewPool(ctx, cfg.DatabaseURL, cfg.DBMaxConns, cfg.DBMinConns)
		if err != nil {
			return err
		}
		defer pool.Close()
	}
	store, closeStore, err := openAuditStore(cfg, pool)
	if err != nil {
		return err
	}
	defer closeStore()

	log, err := audit.NewLog(ctx, store)
	if err != nil {
		return err
	}
	log.SetLogger(newLogger())
	return fn(ctx, log)
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func runServer() error {
	// Logger
	logger := newLogger()

	// Config
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load config")
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}
	defer a.Close()

	if cfg.SeedDemoData {
		if _, err := a.seeder.Run(ctx); err != nil {
			logger.Error().Err(err).Msg("demo data seeding failed")
		}
	}

	// Graceful shutdown
	go func() {
		addr := ":" + cfg.Port
		logger.Info().Str("addr", addr).Bool("tls", cfg.TLSEnabled).Msg("starting server")
		var err error
		if cfg.TLSEnabled {
			err = a.echo.StartTLS(addr, cfg.TLSCertFile, cfg.TLSKeyFile)
		} else {
			err = a.echo.Start(addr)
		}
		if err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.echo.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server shutdown failed")
		return err
	}
	logger.Info().Msg("server stopped")
	return nil
}
