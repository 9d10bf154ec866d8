// Package testing holds fixtures shared by package tests.
package testing

import (
	"bytes"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"gorm.io/gorm"

	"medid-server-go/internal/platform/config"
	"medid-server-go/internal/platform/logging"
	"medid-server-go/internal/platform/storage"
)

var dbSeq atomic.Int64

// SetupTestConfig returns defaults tightened the way the test profile does.
func SetupTestConfig(t *testing.T) *config.Config {
	t.Helper()

	cfg := config.DefaultConfig()
	cfg.Environment = "test"
	cfg.Server.IP = "127.0.0.1"
	cfg.Log.Level = "DEBUG"
	cfg.Log.Dir = ""
	cfg.Storage.DSN = ""
	cfg.Vision.Timeout = 5 * time.Second
	cfg.Timeouts.VisionAnalysis = 5 * time.Second
	return cfg
}

// SetupTestLogger returns a console-only logger writing into the returned buffer.
func SetupTestLogger(t *testing.T) (*logging.Logger, *bytes.Buffer) {
	t.Helper()

	var buf bytes.Buffer
	logger, err := logging.New(logging.Config{Level: "DEBUG", Console: &buf})
	if err != nil {
		t.Fatalf("failed to create test logger: %v", err)
	}
	t.Cleanup(func() { _ = logger.Close() })
	return logger, &buf
}

// OpenTestDB opens a migrated in-memory sqlite database private to the test.
func OpenTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:test-%d-%d?mode=memory&cache=shared", time.Now().UnixNano(), dbSeq.Add(1))
	db, err := storage.Open(storage.Config{DSN: dsn})
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() { _ = storage.Close(db) })
	return db
}

func AssertNoError(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func AssertError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected error but got nil")
	}
}

func AssertEqual(t *testing.T, expected, actual interface{}) {
	t.Helper()
	if expected != actual {
		t.Fatalf("expected %v, got %v", expected, actual)
	}
}
