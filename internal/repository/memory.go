package repository

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/receipts/internal/domain"
)

// MemoryRepository keeps processed receipts in a map for the life of the process.
type MemoryRepository struct {
	mu       sync.RWMutex
	receipts map[string]*domain.ProcessedReceipt
}

// NewMemory creates an empty in-memory repository.
func NewMemory() *MemoryRepository {
	return &MemoryRepository{
		receipts: make(map[string]*domain.ProcessedReceipt),
	}
}

// Insert stores a deep copy of the receipt and its score under a new uuid.
func (m *MemoryRepository) Insert(ctx context.Context, result domain.ScoringResult, receipt domain.Receipt) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	stored := &domain.ProcessedReceipt{
		PointsAwarded: result.PointsAwarded,
		Ledger:        append([]domain.LedgerEntry{}, result.Ledger...),
		Receipt:       receipt.Clone(),
		ProcessedAt:   time.Now().UTC(),
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	for _, taken := m.receipts[id]; taken; _, taken = m.receipts[id] {
		id = uuid.New().String()
	}
	stored.ID = id
	m.receipts[id] = stored

	return id, nil
}

// Lookup returns a copy of the stored receipt.
func (m *MemoryRepository) Lookup(ctx context.Context, id string) (*domain.ProcessedReceipt, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	stored, ok := m.receipts[id]
	m.mu.RUnlock()

	if !ok {
		return nil, &domain.NotFoundError{ID: id}
	}
	return stored.Clone(), nil
}

// Len returns the number of stored receipts.
func (m *MemoryRepository) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.receipts)
}

// Ping always succeeds.
func (m *MemoryRepository) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op.
func (m *MemoryRepository) Close() error {
	return nil
}
