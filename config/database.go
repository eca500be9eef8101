package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/schema"
)

const SearchLimit = 10

var (
	db *gorm.DB
)

func GetDB() *gorm.DB {
	return db
}

func init() {
	// Load env from .env
	godotenv.Load()
}

// ConnectDatabase opens the embedded local store and sets the global DB.
// The store lives on the device; every offline write lands here first and
// the change log table is the only path out to the remote store.
func ConnectDatabase() {
	dbPath := strings.TrimSpace(os.Getenv("POS_DB_PATH"))
	if dbPath == "" {
		dataDir := strings.TrimSpace(os.Getenv("POS_DATA_DIR"))
		if dataDir == "" {
			dataDir = "."
		}
		dbPath = filepath.Join(dataDir, "garayi.db")
	}

	// WAL keeps cashier writes from blocking on the sync worker's reads.
	// busy_timeout covers the remaining write/write contention window.
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=%d&_foreign_keys=on",
		dbPath,
		intFromEnv("POS_DB_BUSY_TIMEOUT_MS", 5000),
	)

	var err error
	db, err = gorm.Open(sqlite.Open(dsn), initConfig())
	if err != nil {
		log.Fatalf("failed to open local store at %s: %v", dbPath, err)
	}

	if sqlDB, derr := db.DB(); derr == nil && sqlDB != nil {
		// SQLite allows one writer; a small pool is enough for the UI
		// surface plus the single sync worker.
		sqlDB.SetMaxOpenConns(intFromEnv("POS_DB_MAX_OPEN_CONNS", 4))
		sqlDB.SetMaxIdleConns(intFromEnv("POS_DB_MAX_IDLE_CONNS", 2))
		sqlDB.SetConnMaxLifetime(time.Duration(intFromEnv("POS_DB_CONN_MAX_LIFETIME_SECONDS", 0)) * time.Second)
	}

	log.Printf("opened local store at %s", dbPath)
}

func intFromEnv(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func initConfig() *gorm.Config {
	return &gorm.Config{
		Logger:         initLog(),
		NamingStrategy: initNamingStrategy(),
	}
}

func initLog() logger.Interface {
	newLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			Colorful:      false,
			LogLevel:      logger.Error,
			SlowThreshold: time.Second,
		},
	)
	return newLogger
}

func initNamingStrategy() *schema.NamingStrategy {
	return &schema.NamingStrategy{
		SingularTable: false,
		TablePrefix:   "",
	}
}
