// Package dbtest opens throwaway sqlite databases shaped like the production
// schema for package tests.
package dbtest

import (
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/comparteride/circles-backend/pkg/db/models"
)

// AllModels lists every table the services touch.
func AllModels() []any {
	return []any{
		&models.User{},
		&models.Profile{},
		&models.Circle{},
		&models.Membership{},
		&models.Invitation{},
		&models.Ride{},
		&models.RidePassenger{},
		&models.Rating{},
		&models.OutboxEvent{},
		&models.OutboxDLQ{},
	}
}

// Open returns an in-memory database with the full schema migrated. The pool
// is capped at one connection so concurrent transactions queue instead of
// failing with "database table is locked"; code under test must therefore
// only use the tx handle inside a transaction.
func Open(t testing.TB) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := conn.AutoMigrate(AllModels()...); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	return conn
}
