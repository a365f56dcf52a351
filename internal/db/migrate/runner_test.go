package migrate

import (
	"strings"
	"testing"
)

func TestRun_EmptyDSN(t *testing.T) {
	err := Run("", "up")
	if err == nil {
		t.Fatal("Run with empty DSN should return error")
	}
	if !strings.Contains(err.Error(), "DATABASE_URL is not set") {
		t.Errorf("error message = %q, should mention DATABASE_URL", err.Error())
	}
}

func TestRun_InvalidDirection(t *testing.T) {
	for _, direction := range []string{"", "invalid", "UP", "Down", "sideways"} {
		t.Run(direction, func(t *testing.T) {
			err := Run("postgres://localhost/test", direction)
			if err == nil {
				t.Fatalf("Run with direction %q should return error", direction)
			}
			if !strings.Contains(err.Error(), "direction must be up or down") {
				t.Errorf("error message = %q, should mention direction", err.Error())
			}
		})
	}
}

func TestWithMigrationsTable(t *testing.T) {
	got, err := withMigrationsTable("postgres://localhost/test?sslmode=disable")
	if err != nil {
		t.Fatalf("withMigrationsTable: %v", err)
	}
	if !strings.Contains(got, "x-migrations-table=mtp_schema_migrations") {
		t.Errorf("DSN = %q, should set x-migrations-table", got)
	}
	if !strings.Contains(got, "sslmode=disable") {
		t.Errorf("DSN = %q, should keep existing params", got)
	}

	got, err = withMigrationsTable("postgres://localhost/test?x-migrations-table=custom")
	if err != nil {
		t.Fatalf("withMigrationsTable: %v", err)
	}
	if !strings.Contains(got, "x-migrations-table=custom") {
		t.Errorf("DSN = %q, should keep an explicit table name", got)
	}
}

func TestRun_InvalidDSN(t *testing.T) {
	for _, dsn := range []string{"invalid-dsn", "://localhost/test", "postgres://"} {
		t.Run(dsn, func(t *testing.T) {
			if err := Run(dsn, "up"); err == nil {
				t.Errorf("Run with invalid DSN %q should return error", dsn)
			}
		})
	}
}
