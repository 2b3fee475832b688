// Package db provides functions to initialize and manage the SQLite database for pxedeck.
package db

import (
	"context"
	"log/slog"
	"path/filepath"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func InitDB(dataDir string) (*gorm.DB, error) {
	slog.Debug("Initializing database", "data_dir", dataDir)
	dbPath := filepath.Join(dataDir, "pxedeck.db")

	// Set GORM log level based on application log level
	gormLogLevel := getGormLogLevel()

	db, err := InitDatabase(DBConfig{
		Path:     dbPath,
		LogLevel: gormLogLevel,
	})
	if err != nil {
		return nil, err
	}

	slog.Debug("Database initialized successfully", "path", dbPath)
	return db, nil
}

// getGormLogLevel maps application log level to corresponding GORM log level
func getGormLogLevel() logger.LogLevel {
	ctx := slog.Default()

	if ctx.Enabled(context.TODO(), slog.LevelDebug) {
		return logger.Info // Show SQL queries only when debug logging is enabled
	} else if ctx.Enabled(context.TODO(), slog.LevelInfo) {
		return logger.Warn
	} else if ctx.Enabled(context.TODO(), slog.LevelWarn) {
		return logger.Warn
	} else if ctx.Enabled(context.TODO(), slog.LevelError) {
		return logger.Error
	} else {
		return logger.Silent
	}
}
