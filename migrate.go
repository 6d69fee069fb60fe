package main

import (
	"fmt"

	"github.com/amirphl/Orochi-Mail/models"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, logger, err := bootstrap()
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	db, err := initializeDatabase(cfg.Database, logger)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	schema := models.Schema()
	if err := db.WithContext(cmd.Context()).AutoMigrate(schema...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}

	logger.Info("Migrations completed successfully", zap.Int("tables", len(schema)))
	return nil
}
