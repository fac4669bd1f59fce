package services

import (
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/mediagen/backend/internal/models"
	"gorm.io/gorm"
)

func setupAuditTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := db.AutoMigrate(&models.AuditLog{}); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}
	return db
}

func TestAuditClosePersistsQueuedEntries(t *testing.T) {
	db := setupAuditTestDB(t)
	audit := NewAuditService(db)

	audit.LogAsync(AuditEntry{Action: "auth.login", ResourceType: "session", IPAddress: "203.0.113.1"})
	audit.Close()

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 1 {
		t.Fatalf("expected 1 audit row after close, got %d", count)
	}
}

func TestAuditLogAfterCloseIsDropped(t *testing.T) {
	db := setupAuditTestDB(t)
	audit := NewAuditService(db)
	audit.Close()

	audit.LogAsync(AuditEntry{Action: "media.delete", ResourceType: "media"})
	audit.Close()

	var count int64
	db.Model(&models.AuditLog{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no audit rows after close, got %d", count)
	}
}
