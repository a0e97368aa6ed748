package services

import (
	"context"
	"time"

	"github.com/pesatrack/backend/internal/models"
	"github.com/shopspring/decimal"
)

// TransactionStore is the record store the ingestion pipeline reads and writes.
// Lookups return (nil, nil) when nothing matches. Every write is visible to the next read.
type TransactionStore interface {
	GetByMessageHash(ctx context.Context, userID, hash string) (*models.Transaction, error)
	GetByProviderReference(ctx context.Context, userID, reference string) (*models.Transaction, error)
	// QueryRecent returns the user's transactions with exactly amount that occurred in [from, to]
	QueryRecent(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]models.Transaction, error)
	InsertTransaction(ctx context.Context, tx *models.Transaction) (string, error)
	InsertDuplicateLog(ctx context.Context, entry *models.DuplicateLogEntry) error
	InsertImportSession(ctx context.Context, session *models.ImportSession) error
	GetImportSession(ctx context.Context, userID, sessionID string) (*models.ImportSession, error)
	DuplicateStats(ctx context.Context, userID string, since time.Time) (*models.DuplicateStats, error)
}

// CategoryProvider lists a user's categories in matching order, "Other" included
type CategoryProvider interface {
	ListCategories(ctx context.Context, userID string) ([]models.Category, error)
}
