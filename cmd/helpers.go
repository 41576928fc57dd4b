package cmd

import (
	"fmt"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/ziadkadry99/shardgate/internal/audit"
	"github.com/ziadkadry99/shardgate/internal/bots"
	"github.com/ziadkadry99/shardgate/internal/config"
	"github.com/ziadkadry99/shardgate/internal/db"
	"github.com/ziadkadry99/shardgate/internal/logging"
	"github.com/ziadkadry99/shardgate/internal/sessions"
)

// loadConfig loads and validates the config, providing a user-friendly error.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w\nRun `shardgate init` to create a config file", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", cfgFile, err)
	}
	return cfg, nil
}

// newLogger builds the process logger from the log section and --verbose.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Log.Level, string(cfg.Log.Format), verbose)
}

// openDatabase opens the sqlite database under data_dir.
func openDatabase(cfg *config.Config) (*db.DB, error) {
	path := filepath.Join(cfg.DataDir, "shardgate.db")
	database, err := db.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening database %s: %w", path, err)
	}
	return database, nil
}

// newBot builds a bot with sqlite-backed sessions and audit trail and the
// built-in commands registered.
func newBot(cfg *config.Config, database *db.DB, logger *zap.Logger) (*bots.Bot, *audit.Store, *sessions.Store, error) {
	auditStore := audit.NewStore(database)
	sessionStore := sessions.NewStore(database)
	bot := bots.New(cfg, logger,
		bots.WithSessionStore(sessionStore),
		bots.WithAuditor(auditStore),
	)
	if err := bot.RegisterBuiltins(); err != nil {
		return nil, nil, nil, fmt.Errorf("registering built-in commands: %w", err)
	}
	return bot, auditStore, sessionStore, nil
}
