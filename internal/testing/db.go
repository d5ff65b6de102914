// Package testing provides shared helpers for module tests: schema-migrated
// throwaway databases and a small deterministic market fixture.
package testing

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/aristath/stockroom/internal/database"
)

// NewTestDB creates a file-backed SQLite database with the named embedded
// schema applied. The file lives under t.TempDir() and the connection closes
// automatically when the test finishes.
//
// Schema names: market_data, news, features, agents, multiplayer.
// Unknown names yield an empty database.
func NewTestDB(t *testing.T, name string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", name))

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database %s: %v", name, err)
		}
	})

	if err := db.Migrate(); err != nil {
		t.Fatalf("Failed to migrate test database %s: %v", name, err)
	}

	return db
}

// NewTestDBWithSchema creates a test database and applies a custom schema
// string instead of an embedded one.
func NewTestDBWithSchema(t *testing.T, name, schema string) *database.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), fmt.Sprintf("%s.db", name))

	db, err := database.New(database.Config{
		Path:    path,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	if err != nil {
		t.Fatalf("Failed to create test database %s: %v", name, err)
	}

	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Logf("Warning: failed to close test database %s: %v", name, err)
		}
	})

	if schema != "" {
		if _, err := db.Conn().Exec(schema); err != nil {
			t.Fatalf("Failed to execute custom schema for test database %s: %v", name, err)
		}
	}

	return db
}
