package config

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var DB *gorm.DB

// OpenDatabase opens a gorm connection, choosing the driver from the URL:
// postgres:// and postgresql:// use PostgreSQL; sqlite://, file: and :memory: use SQLite.
func OpenDatabase(databaseURL string) (*gorm.DB, error) {
	dialector, err := dialectorFor(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

// ConnectDatabase opens the database and installs it as the shared instance
func ConnectDatabase(databaseURL string) error {
	db, err := OpenDatabase(databaseURL)
	if err != nil {
		return err
	}
	DB = db
	zap.L().Info("database connection established", zap.String("driver", db.Dialector.Name()))
	return nil
}

func dialectorFor(databaseURL string) (gorm.Dialector, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("DATABASE_URL is required")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(strings.TrimPrefix(databaseURL, "sqlite://")), nil
	case strings.HasPrefix(databaseURL, "file:"), databaseURL == ":memory:":
		return sqlite.Open(databaseURL), nil
	}
	return nil, fmt.Errorf("unsupported DATABASE_URL scheme: %q", redact(databaseURL))
}

// redact hides credentials in a connection string
func redact(databaseURL string) string {
	scheme, rest, ok := strings.Cut(databaseURL, "://")
	if !ok {
		return databaseURL
	}
	if at := strings.LastIndex(rest, "@"); at >= 0 {
		return scheme + "://***" + rest[at:]
	}
	return databaseURL
}

// GetDB returns the database instance
func GetDB() *gorm.DB {
	return DB
}

// SetDB sets the database instance (primarily for testing)
func SetDB(db *gorm.DB) {
	DB = db
}
