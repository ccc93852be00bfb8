package cmd

import (
	"context"
	"testing"

	"parking_control/internal/config"
)

func TestOpenDatabaseSQLite(t *testing.T) {
	db, err := openDatabase(&config.Config{DBDriver: config.DriverSQLite, SQLitePath: ":memory:"})
	if err != nil {
		t.Fatalf("openDatabase: %v", err)
	}
	defer db.Close()

	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	// migrations are idempotent
	if err := db.Migrate(context.Background()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if db.ParkingSpots == nil || db.Users == nil {
		t.Fatal("repositories not wired")
	}
}

func TestOpenDatabaseUnknownDriver(t *testing.T) {
	if _, err := openDatabase(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func TestCommands(t *testing.T) {
	serve := NewServeCmd()
	if serve.Use != "serve" || serve.Flags().Lookup("port") == nil {
		t.Errorf("serve command misconfigured")
	}
	if NewMigrateCmd().Use != "migrate" {
		t.Errorf("migrate command misconfigured")
	}
}
