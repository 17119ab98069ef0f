package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"turnos/internal/auth"
	"turnos/internal/config"
	"turnos/internal/database"
	"turnos/internal/httpserver"
	"turnos/internal/logger"
	"turnos/internal/ratelimit"
	"turnos/internal/services/account"
	"turnos/internal/services/audit"
	"turnos/internal/services/receipt"
	"turnos/internal/services/ticket"
)

func main() {
	rootCmd := &cobra.Command{
		Use:           "turnos",
		Short:         "Municipal ticket service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.AddCommand(serveCmd(), migrateCmd(), regenerateCmd())

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// bootstrap loads config, opens the database and brings the schema up to date.
func bootstrap() (*config.Config, *zap.SugaredLogger, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, nil, err
	}
	lg := logger.New(cfg.LogLevel)
	db, err := database.Open(cfg, lg)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("db connect: %w", err)
	}
	if err := database.Migrate(db); err != nil {
		return nil, nil, nil, fmt.Errorf("automigrate: %w", err)
	}
	if err := database.SeedAdmin(db, lg, cfg); err != nil {
		return nil, nil, nil, fmt.Errorf("seed admin: %w", err)
	}
	return cfg, lg, db, nil
}

func ticketService(cfg *config.Config, db *gorm.DB) *ticket.Service {
	return ticket.NewService(db, receipt.NewGenerator(cfg.ReceiptDir, cfg.ReceiptURLPrefix),
		ticket.Options{StrictReferenceUpdates: cfg.StrictReferenceUpdates})
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, lg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer lg.Sync()
			if cfg.JWTSecret == "" {
				return errors.New("JWT_SECRET is empty")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			signer := auth.NewSigner(cfg.JWTSecret, cfg.JWTExpiresIn)
			deps := httpserver.Deps{
				DB:               db,
				Log:              lg,
				Signer:           signer,
				Tickets:          ticketService(cfg, db),
				Accounts:         account.NewService(db, signer),
				ReceiptDir:       cfg.ReceiptDir,
				ReceiptURLPrefix: cfg.ReceiptURLPrefix,
				TrustProxy:       cfg.TrustProxy,
			}
			if cfg.RedisURL != "" {
				client, err := ratelimit.NewClient(ctx, cfg.RedisURL)
				if err != nil {
					return err
				}
				defer client.Close()
				deps.Limiter = ratelimit.NewRedisLimiter(client, cfg.RateLimitPerMinute, time.Minute)
				lg.Infow("rate limiting enabled", "per_minute", cfg.RateLimitPerMinute)
			}

			srv := &http.Server{
				Addr:              ":" + cfg.HTTPPort,
				Handler:           httpserver.NewRouter(deps),
				ReadHeaderTimeout: 10 * time.Second,
			}
			errc := make(chan error, 1)
			go func() {
				lg.Infow("listening", "port", cfg.HTTPPort, "driver", cfg.DBDriver)
				errc <- srv.ListenAndServe()
			}()

			select {
			case err := <-errc:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}
			lg.Infow("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update tables and seed the default admin",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, lg, _, err := bootstrap()
			if err != nil {
				return err
			}
			defer lg.Sync()
			lg.Infow("migration complete")
			return nil
		},
	}
}

func regenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "regenerate-receipts [ticket ids...]",
		Short: "Re-render receipt PDFs (all tickets when no ids are given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ids := make([]uint, 0, len(args))
			for _, a := range args {
				id, err := strconv.ParseUint(a, 10, 64)
				if err != nil || id == 0 {
					return fmt.Errorf("invalid ticket id %q", a)
				}
				ids = append(ids, uint(id))
			}
			cfg, lg, db, err := bootstrap()
			if err != nil {
				return err
			}
			defer lg.Sync()

			res, err := ticketService(cfg, db).RegenerateReceipts(cmd.Context(), ids)
			if err != nil {
				return err
			}
			err = audit.Record(cmd.Context(), db, nil, audit.ActionReceiptsReissued,
				map[string]any{"count": len(res.URLs), "missing": res.Missing})
			if err != nil {
				lg.Warnw("audit write failed", "error", err, "action", audit.ActionReceiptsReissued)
			}
			for _, u := range res.URLs {
				fmt.Fprintln(cmd.OutOrStdout(), u)
			}
			if len(res.Missing) > 0 {
				lg.Warnw("tickets not found", "ids", res.Missing)
			}
			lg.Infow("receipts regenerated", "count", len(res.URLs))
			return nil
		},
	}
}
