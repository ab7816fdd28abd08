package database

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var C *gorm.DB

func NewGorm() error {
	dbPath := viper.GetString("database.path")
	if dbPath == "" {
		dbPath = "boorud.db"
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return fmt.Errorf("unable to create database directory: %v", err)
	}

	// WAL keeps the download-queue reader from blocking the sync writer.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON", dbPath)

	var err error
	C, err = gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})

	return err
}
