package services

import (
	"context"
	"time"

	"github.com/pesatrack/backend/internal/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) GetByMessageHash(ctx context.Context, userID, hash string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, hash)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) GetByProviderReference(ctx context.Context, userID, reference string) (*models.Transaction, error) {
	args := m.Called(ctx, userID, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) QueryRecent(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	args := m.Called(ctx, userID, amount, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Transaction), args.Error(1)
}

func (m *MockTransactionStore) InsertTransaction(ctx context.Context, tx *models.Transaction) (string, error) {
	args := m.Called(ctx, tx)
	return args.String(0), args.Error(1)
}

func (m *MockTransactionStore) InsertDuplicateLog(ctx context.Context, entry *models.DuplicateLogEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}

func (m *MockTransactionStore) InsertImportSession(ctx context.Context, session *models.ImportSession) error {
	args := m.Called(ctx, session)
	return args.Error(0)
}

func (m *MockTransactionStore) GetImportSession(ctx context.Context, userID, sessionID string) (*models.ImportSession, error) {
	args := m.Called(ctx, userID, sessionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ImportSession), args.Error(1)
}

func (m *MockTransactionStore) DuplicateStats(ctx context.Context, userID string, since time.Time) (*models.DuplicateStats, error) {
	args := m.Called(ctx, userID, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.DuplicateStats), args.Error(1)
}

type MockCategoryProvider struct {
	mock.Mock
}

func (m *MockCategoryProvider) ListCategories(ctx context.Context, userID string) ([]models.Category, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Category), args.Error(1)
}
