package testutil

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/JonnyJiang123/smart-sql/pkg/core"
	_ "modernc.org/sqlite"
)

// NewUsersDB creates a file-backed sqlite database with a users table
// holding n rows and returns a connection pointing at it.
func NewUsersDB(t testing.TB, n int) *core.Connection {
	t.Helper()

	path := filepath.Join(t.TempDir(), "users.db")
	db, err := sql.Open("sqlite", "file:"+path)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	defer db.Close()

	stmts := []string{
		`CREATE TABLE users (
			id INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT,
			score REAL
		)`,
		`CREATE INDEX idx_users_email ON users(email)`,
	}
	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("failed to create schema: %v", err)
		}
	}

	tx, err := db.Begin()
	if err != nil {
		t.Fatalf("failed to begin: %v", err)
	}
	for i := 1; i <= n; i++ {
		var email any
		if i%10 != 0 {
			email = fmt.Sprintf("user%d@example.com", i)
		}
		if _, err := tx.Exec(`INSERT INTO users (id, name, email, score) VALUES (?, ?, ?, ?)`,
			i, fmt.Sprintf("user%d", i), email, float64(i)/2); err != nil {
			t.Fatalf("failed to insert: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("failed to commit: %v", err)
	}

	return &core.Connection{
		ID:       1,
		Name:     "local",
		Kind:     core.BackendSQLite,
		FilePath: path,
		Active:   true,
	}
}
