package store

import (
	"database/sql"
	"testing"

	"github.com/cairnhealth/cairn/internal/database"
)

func setupDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
