package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/audit"
	"github.com/ziadkadry99/shardgate/internal/server"
	"github.com/ziadkadry99/shardgate/internal/sessions"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Connect every configured shard and serve interactions",
	Long: `Discovers the gateway, connects the configured shards in identify buckets,
dispatches interactions to the built-in commands and serves shard status
over HTTP until interrupted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer logger.Sync()

		database, err := openDatabase(cfg)
		if err != nil {
			return err
		}
		defer database.Close()

		bot, auditStore, sessionStore, err := newBot(cfg, database, logger)
		if err != nil {
			return err
		}

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if cfg.Status.Enabled {
			srv := server.New(server.Config{Port: cfg.Status.Port, AllowAll: cfg.Status.AllowAll}, database, logger,
				bot.RegisterRoutes,
				func(r chi.Router) { audit.RegisterRoutes(r, auditStore) },
				func(r chi.Router) { sessions.RegisterRoutes(r, sessionStore) },
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("status server stopped", zap.Error(err))
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
		}

		logger.Info("shardgate starting",
			zap.String("version", Version),
			zap.String("database", database.Path()),
			zap.Strings("intents", cfg.Intents),
		)
		if err := bot.Run(ctx); err != nil {
			return fmt.Errorf("gateway: %w", err)
		}
		logger.Info("shardgate stopped")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(runCmd)
}
