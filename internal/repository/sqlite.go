package repository

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/opensource-finance/receipts/internal/domain"
	_ "modernc.org/sqlite"
)

// sqlitePragmas are applied to every connection of the pool.
var sqlitePragmas = []string{
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"busy_timeout(5000)",
}

// sqliteDSN builds a modernc.org/sqlite connection string for path.
func sqliteDSN(path string) string {
	if path == "" {
		path = "./receipts.db"
	}
	params := make([]string, len(sqlitePragmas))
	for i, p := range sqlitePragmas {
		params[i] = "_pragma=" + p
	}
	return "file:" + path + "?" + strings.Join(params, "&")
}

// openSQLite opens the pure Go SQLite driver (no CGO).
func openSQLite(cfg domain.RepositoryConfig) (*sql.DB, error) {
	if dir := filepath.Dir(cfg.SQLitePath); cfg.SQLitePath != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", sqliteDSN(cfg.SQLitePath))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	return db, nil
}
