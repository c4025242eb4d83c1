package repository

// Schema definitions for the receipts database.
// Compatible with both SQLite and PostgreSQL.

const schemaProcessedReceipts = `
CREATE TABLE IF NOT EXISTS processed_receipts (
    id TEXT PRIMARY KEY,
    points_awarded BIGINT NOT NULL,
    ledger TEXT NOT NULL,
    receipt TEXT NOT NULL,
    processed_at TIMESTAMP NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_processed_receipts_processed_at ON processed_receipts(processed_at);
`

// AllSchemas returns all schema statements in order.
func AllSchemas() []string {
	return []string{
		schemaProcessedReceipts,
	}
}
