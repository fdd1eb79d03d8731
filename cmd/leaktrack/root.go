package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/tbourn/leaktrack-backend/internal/config"
	"github.com/tbourn/leaktrack-backend/internal/repo"
	"github.com/tbourn/leaktrack-backend/internal/sysutil"
)

// app carries what PersistentPreRunE prepares for the subcommands.
type app struct {
	envFile string
	cfg     config.Config
}

func newRootCommand() *cobra.Command {
	a := &app{}

	rootCmd := &cobra.Command{
		Use:           "leaktrack",
		Short:         "Machine leakage inspection and repair tracker",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&a.envFile, "env-file", ".env", "dotenv file loaded before reading the environment (missing file is ignored)")

	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return a.initialize()
	}

	rootCmd.AddCommand(
		setupServeCommand(a),
		setupMigrateCommand(a),
		setupOverviewCommand(a),
		setupExportCommand(a),
		setupTokenCommand(a),
	)
	return rootCmd
}

// initialize loads the environment and configuration and installs the
// global logger. It runs before every subcommand.
func (a *app) initialize() error {
	if a.envFile != "" {
		// Existing variables win over the file.
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", a.envFile, err)
		}
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	a.cfg = cfg

	sysutil.SetupLogger(os.Stderr, cfg.LogLevel, cfg.LogPretty)
	gin.SetMode(cfg.GinMode)
	return nil
}

// openDB connects using the configured driver and applies migrations.
func (a *app) openDB() (*gorm.DB, error) {
	db, err := repo.Open(repo.Options{
		Driver:  a.cfg.DB.Driver,
		Path:    a.cfg.DB.Path,
		DSN:     a.cfg.DB.DSN,
		Tracing: a.cfg.OTEL.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := repo.AutoMigrate(db); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	log.Debug().Str("driver", sysutil.FirstNonEmpty(a.cfg.DB.Driver, repo.DriverSQLite)).Msg("database ready")
	return db, nil
}

func closeDB(db *gorm.DB) {
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
}
