package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/receipts/internal/domain"
	"go.etcd.io/bbolt"
)

var boltBucket = []byte("processed_receipts")

// BoltRepository stores processed receipts as JSON documents in a single
// bbolt bucket keyed by id. bbolt serialises writers, so the id check and
// the put happen in one transaction.
type BoltRepository struct {
	db    *bbolt.DB
	newID func() string
}

// NewBolt opens (or creates) the bbolt file at path.
func NewBolt(path string) (*BoltRepository, error) {
	if path == "" {
		path = "./receipts.bolt"
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := bbolt.Open(path, 0600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open bolt database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(boltBucket)
		return err
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create bucket: %w", err)
	}

	return &BoltRepository{db: db, newID: uuid.NewString}, nil
}

// Insert stores the scored receipt under a fresh id.
func (b *BoltRepository) Insert(ctx context.Context, result domain.ScoringResult, receipt domain.Receipt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := domain.ProcessedReceipt{
		PointsAwarded: result.PointsAwarded,
		Ledger:        ledgerOrEmpty(result.Ledger),
		Receipt:       receipt,
		ProcessedAt:   time.Now().UTC(),
	}

	err := b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(boltBucket)

		stored.ID = b.newID()
		for attempt := 1; bucket.Get([]byte(stored.ID)) != nil; attempt++ {
			if attempt == insertAttempts {
				return fmt.Errorf("no free id after %d attempts", attempt)
			}
			stored.ID = b.newID()
		}

		data, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("failed to encode receipt: %w", err)
		}
		return bucket.Put([]byte(stored.ID), data)
	})
	if err != nil {
		return "", fmt.Errorf("failed to insert receipt: %w", err)
	}
	return stored.ID, nil
}

// Lookup decodes the stored document for id.
func (b *BoltRepository) Lookup(ctx context.Context, id string) (*domain.ProcessedReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var stored *domain.ProcessedReceipt
	err := b.db.View(func(tx *bbolt.Tx) error {
		data := tx.Bucket(boltBucket).Get([]byte(id))
		if data == nil {
			return &domain.NotFoundError{ID: id}
		}
		// data is only valid inside the transaction; Unmarshal copies it.
		return json.Unmarshal(data, &stored)
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// Ping reports whether the database file is still open.
func (b *BoltRepository) Ping(ctx context.Context) error {
	return b.db.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(boltBucket) == nil {
			return fmt.Errorf("bucket %s missing", boltBucket)
		}
		return nil
	})
}

func (b *BoltRepository) Close() error {
	return b.db.Close()
}
