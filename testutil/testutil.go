package testutil

import (
	"os"
	"testing"
	"time"

	"github.com/sgp-fichas/fichas-api/config"
	"github.com/sgp-fichas/fichas-api/models"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	TestSecret   = "test-secret-with-enough-bytes-for-hs256"
	TestIssuer   = "fichas-api"
	TestAudience = "fichas-clients"
)

// RequireTestEnvironment ensures that tests are running in the test environment.
// This prevents accidental execution of tests against production or development databases.
func RequireTestEnvironment(t *testing.T) {
	t.Helper()

	env := os.Getenv("GO_ENV")
	if env != "test" {
		t.Fatalf("SAFETY CHECK FAILED: Tests must run with GO_ENV=test to prevent data loss. Current GO_ENV=%q. Set GO_ENV=test before running tests.", env)
	}
}

// TestConfig returns a configuration suitable for in-process tests
func TestConfig() *config.Config {
	return &config.Config{
		DatabaseURL:   ":memory:",
		Port:          "0",
		GoEnv:         "test",
		LogLevel:      "debug",
		JWTSecret:     TestSecret,
		JWTIssuer:     TestIssuer,
		JWTAudience:   TestAudience,
		WSHeartbeat:   time.Hour,
		WSSendTimeout: time.Second,
	}
}

// SetupTestDB opens a migrated in-memory sqlite database and installs it as config.DB
func SetupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

	// one connection, or every new one would see a fresh empty database
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("Failed to get database instance: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.Order{}); err != nil {
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	t.Cleanup(func() {
		config.SetDB(nil)
		sqlDB.Close()
	})
	return db
}
