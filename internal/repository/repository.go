// Package repository provides processed receipt stores.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/opensource-finance/receipts/internal/domain"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// New creates a repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "", "memory":
		return NewMemory(), nil
	case "bolt":
		return NewBolt(cfg.BoltPath)
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres", "pgx":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
		newID:  uuid.NewString,
	}

	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

// insertAttempts bounds retries after an id collision.
const insertAttempts = 3

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
	newID  func() string
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// Insert stores a scored receipt under a freshly generated id.
func (r *SQLRepository) Insert(ctx context.Context, result domain.ScoringResult, receipt domain.Receipt) (string, error) {
	ledger, err := json.Marshal(ledgerOrEmpty(result.Ledger))
	if err != nil {
		return "", fmt.Errorf("failed to encode ledger: %w", err)
	}
	body, err := json.Marshal(receipt)
	if err != nil {
		return "", fmt.Errorf("failed to encode receipt: %w", err)
	}

	query := r.rebind(`
		INSERT INTO processed_receipts (id, points_awarded, ledger, receipt, processed_at)
		VALUES (?, ?, ?, ?, ?)
	`)
	processedAt := time.Now().UTC()

	for attempt := 1; ; attempt++ {
		id := r.newID()
		_, err = r.db.ExecContext(ctx, query,
			id, result.PointsAwarded, string(ledger), string(body), processedAt,
		)
		if err == nil {
			return id, nil
		}
		if !isDuplicateKey(err) || attempt == insertAttempts {
			return "", fmt.Errorf("failed to insert receipt: %w", err)
		}
		slog.Warn("receipt id collision, retrying", "id", id, "attempt", attempt)
	}
}

// Lookup retrieves a processed receipt by id.
func (r *SQLRepository) Lookup(ctx context.Context, id string) (*domain.ProcessedReceipt, error) {
	query := `
		SELECT id, points_awarded, ledger, receipt, processed_at
		FROM processed_receipts
		WHERE id = ?
	`

	var p domain.ProcessedReceipt
	var ledger, body string

	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&p.ID, &p.PointsAwarded, &ledger, &body, &p.ProcessedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, &domain.NotFoundError{ID: id}
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(ledger), &p.Ledger); err != nil {
		return nil, fmt.Errorf("failed to parse ledger for %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(body), &p.Receipt); err != nil {
		return nil, fmt.Errorf("failed to parse receipt for %s: %w", id, err)
	}

	return &p, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" && r.driver != "pgx" {
		return query
	}

	var result []byte
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			result = append(result, '$')
			result = strconv.AppendInt(result, int64(n), 10)
			n++
		} else {
			result = append(result, query[i])
		}
	}
	return string(result)
}

// isDuplicateKey reports whether err is a primary key violation from either
// supported driver.
func isDuplicateKey(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == pqUniqueViolation
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pqUniqueViolation
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		// Extended result codes keep the primary code in the low byte.
		return liteErr.Code()&0xff == sqlite3.SQLITE_CONSTRAINT
	}
	return false
}

func ledgerOrEmpty(ledger []domain.LedgerEntry) []domain.LedgerEntry {
	if ledger == nil {
		return []domain.LedgerEntry{}
	}
	return ledger
}
