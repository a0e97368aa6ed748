package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/pesatrack/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestImportService(t *testing.T, store TransactionStore) *ImportService {
	t.Helper()
	return NewImportService(store, StaticCategories(defaultCategories(t)), nil, testIngestConfig(), zerolog.Nop())
}

func assertSessionTotals(t *testing.T, session *models.ImportSession) {
	t.Helper()
	assert.Equal(t, session.TotalMessages, session.SuccessfulImports+session.DuplicatesFound+session.ParsingErrors)
	assert.Len(t, session.TransactionsCreated, session.SuccessfulImports)
}

func TestImportService_ImportBatch(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := newTestImportService(t, store)

	messages := []string{receivedSMS, sentSMS, paybillSMS, tillSMS, withdrawalSMS, airtimeSMS, balanceSMS}
	session, err := service.ImportBatch(ctx, testUserID, messages, nil)
	require.NoError(t, err)

	assert.Equal(t, 7, session.TotalMessages)
	assert.Equal(t, 7, session.SuccessfulImports)
	assert.Zero(t, session.DuplicatesFound)
	assert.Zero(t, session.ParsingErrors)
	assert.Empty(t, session.Errors)
	assertSessionTotals(t, session)

	stored := store.Transactions()
	require.Len(t, stored, 7)
	assert.Equal(t, "cat-income", stored[0].CategoryID)
	assert.Equal(t, models.DirectionIncome, stored[0].Direction)
	assert.Equal(t, "cat-bills", stored[2].CategoryID)
	assert.Equal(t, "cat-other", stored[6].CategoryID)
	for i, tx := range stored {
		assert.Equal(t, session.TransactionsCreated[i], tx.ID)
		assert.Equal(t, session.SessionID, tx.ImportSessionID)
		assert.Equal(t, models.SourceSMS, tx.Source)
	}

	persisted, err := service.GetSession(ctx, testUserID, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, session.SuccessfulImports, persisted.SuccessfulImports)
}

func TestImportService_DuplicateWithinBatch(t *testing.T) {
	store := NewMemoryStore()
	service := newTestImportService(t, store)

	session, err := service.ImportBatch(context.Background(), testUserID, []string{receivedSMS, receivedSMS}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, session.SuccessfulImports)
	assert.Equal(t, 1, session.DuplicatesFound)
	assertSessionTotals(t, session)

	logs := store.DuplicateLogs()
	require.Len(t, logs, 1)
	assert.Equal(t, session.TransactionsCreated[0], logs[0].OriginalTransactionID)
	assert.Equal(t, session.SessionID, logs[0].ImportSessionID)
	assert.Contains(t, logs[0].Signals, models.SignalHash)
	assert.Contains(t, logs[0].Signals, models.SignalProviderID)
	assert.Equal(t, models.ActionRejected, logs[0].Action)
}

func TestImportService_ReimportIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := newTestImportService(t, store)
	messages := []string{receivedSMS, sentSMS, paybillSMS}

	first, err := service.ImportBatch(ctx, testUserID, messages, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, first.SuccessfulImports)

	second, err := service.ImportBatch(ctx, testUserID, messages, nil)
	require.NoError(t, err)
	assert.Zero(t, second.SuccessfulImports)
	assert.Equal(t, 3, second.DuplicatesFound)
	assert.Empty(t, second.TransactionsCreated)
	assert.Len(t, store.Transactions(), 3)

	// another user importing the same messages is unaffected
	other, err := service.ImportBatch(ctx, "user-456", messages, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, other.SuccessfulImports)
}

func TestImportService_PartialFailure(t *testing.T) {
	store := NewMemoryStore()
	service := newTestImportService(t, store)

	session, err := service.ImportBatch(context.Background(), testUserID, []string{sentSMS, notMpesaSMS, "", tillSMS}, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, session.SuccessfulImports)
	assert.Equal(t, 2, session.ParsingErrors)
	assertSessionTotals(t, session)
	require.Len(t, session.Errors, 2)
	assert.Contains(t, session.Errors[0], "message 2")
	assert.Contains(t, session.Errors[1], "message 3")
}

func TestImportService_EmptyBatch(t *testing.T) {
	service := newTestImportService(t, NewMemoryStore())

	session, err := service.ImportBatch(context.Background(), testUserID, nil, nil)
	require.NoError(t, err)
	assert.Zero(t, session.TotalMessages)
	assert.NotNil(t, session.TransactionsCreated)
	assert.NotNil(t, session.Errors)
}

func TestImportService_ErrorListIsCapped(t *testing.T) {
	cfg := testIngestConfig()
	cfg.MaxSessionErrors = 2
	service := NewImportService(NewMemoryStore(), StaticCategories(defaultCategories(t)), nil, cfg, zerolog.Nop())

	session, err := service.ImportBatch(context.Background(), testUserID, []string{"a", "b", "c", "d"}, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, session.ParsingErrors)
	assert.Len(t, session.Errors, 2)
	assertSessionTotals(t, session)
}

func TestImportService_ConfigurationErrors(t *testing.T) {
	ctx := context.Background()

	t.Run("no categories", func(t *testing.T) {
		store := NewMemoryStore()
		service := NewImportService(store, StaticCategories(nil), nil, testIngestConfig(), zerolog.Nop())

		session, err := service.ImportBatch(ctx, testUserID, []string{sentSMS}, nil)
		assert.Nil(t, session)
		var cfgErr *ConfigurationError
		require.True(t, errors.As(err, &cfgErr))
		assert.ErrorIs(t, err, ErrNoCategories)
		assert.Empty(t, store.Transactions())
	})

	t.Run("missing fallback category", func(t *testing.T) {
		store := NewMemoryStore()
		categories := StaticCategories{{ID: "cat-food", Name: "Food", Keywords: models.StringList{"food"}}}
		service := NewImportService(store, categories, nil, testIngestConfig(), zerolog.Nop())

		_, err := service.ImportBatch(ctx, testUserID, []string{sentSMS}, nil)
		assert.ErrorIs(t, err, ErrNoFallbackCategory)
		assert.Empty(t, store.Transactions())
	})

	t.Run("category provider failure is a store error", func(t *testing.T) {
		dbDown := errors.New("db down")
		provider := new(MockCategoryProvider)
		provider.On("ListCategories", mock.Anything, testUserID).Return(nil, dbDown)
		store := NewMemoryStore()
		service := NewImportService(store, provider, nil, testIngestConfig(), zerolog.Nop())

		session, err := service.ImportBatch(ctx, testUserID, []string{sentSMS}, nil)
		assert.Nil(t, session)
		assert.ErrorIs(t, err, dbDown)
		var cfgErr *ConfigurationError
		assert.False(t, errors.As(err, &cfgErr))
		assert.Empty(t, store.Transactions())
	})
}

func TestImportService_StoreFailureIsIsolated(t *testing.T) {
	store := new(MockTransactionStore)
	store.On("GetByMessageHash", mock.Anything, testUserID, mock.Anything).Return(nil, nil)
	store.On("GetByProviderReference", mock.Anything, testUserID, mock.Anything).Return(nil, nil)
	store.On("QueryRecent", mock.Anything, testUserID, mock.Anything, mock.Anything, mock.Anything).
		Return([]models.Transaction{}, nil)
	store.On("InsertTransaction", mock.Anything, mock.MatchedBy(func(tx *models.Transaction) bool {
		return tx.ProviderReference == "TJ3CF6GKC8"
	})).Return("", errors.New("connection reset")).Once()
	store.On("InsertTransaction", mock.Anything, mock.Anything).Return("tx-ok", nil)
	store.On("InsertImportSession", mock.Anything, mock.Anything).Return(errors.New("sessions table missing"))

	service := newTestImportService(t, store)
	session, err := service.ImportBatch(context.Background(), testUserID, []string{sentSMS, tillSMS}, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, session.SuccessfulImports)
	assert.Equal(t, 1, session.ParsingErrors)
	assert.Equal(t, models.StringList{"tx-ok"}, session.TransactionsCreated)
	assert.Contains(t, session.Errors[0], "connection reset")
	assertSessionTotals(t, session)
	store.AssertExpectations(t)
}

func TestImportService_CancelledBatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	store := NewMemoryStore()
	service := newTestImportService(t, store)

	session, err := service.ImportBatch(ctx, testUserID, []string{sentSMS, tillSMS}, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, session.ParsingErrors)
	assertSessionTotals(t, session)
	assert.Empty(t, store.Transactions())

	_, err = store.GetImportSession(context.Background(), testUserID, session.SessionID)
	assert.NoError(t, err)
}

func TestImportService_FallbackTimestamp(t *testing.T) {
	store := NewMemoryStore()
	service := newTestImportService(t, store)
	fallback := time.Date(2025, 1, 1, 9, 0, 0, 0, time.UTC)
	noDate := "TJ3CF6GKC8 Confirmed. Ksh500.00 sent to JOHN DOE 0712345678. New M-PESA balance is Ksh1,234.56."

	_, err := service.ImportBatch(context.Background(), testUserID, []string{noDate}, &fallback)
	require.NoError(t, err)

	stored := store.Transactions()
	require.Len(t, stored, 1)
	assert.True(t, fallback.Equal(stored[0].OccurredAt))
	assert.Equal(t, "fallback", stored[0].MpesaDetails["timestamp_source"])
}

func TestImportService_AllowImport(t *testing.T) {
	ctx := context.Background()
	cfg := testIngestConfig()
	key := "sms_import_rate:" + testUserID

	t.Run("under limit", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()
		service := NewImportService(NewMemoryStore(), StaticCategories(nil), rdb, cfg, zerolog.Nop())

		redisMock.ExpectGet(key).RedisNil()
		redisMock.ExpectIncr(key).SetVal(1)
		redisMock.ExpectExpire(key, cfg.ImportRateWindow).SetVal(true)

		assert.NoError(t, service.AllowImport(ctx, testUserID))
		assert.NoError(t, redisMock.ExpectationsWereMet())
	})

	t.Run("over limit", func(t *testing.T) {
		rdb, redisMock := redismock.NewClientMock()
		service := NewImportService(NewMemoryStore(), StaticCategories(nil), rdb, cfg, zerolog.Nop())

		redisMock.ExpectGet(key).SetVal("30")

		assert.ErrorIs(t, service.AllowImport(ctx, testUserID), ErrRateLimited)
	})

	t.Run("without redis", func(t *testing.T) {
		service := newTestImportService(t, NewMemoryStore())
		assert.NoError(t, service.AllowImport(ctx, testUserID))
	})
}

func TestImportService_DuplicateStats(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	service := newTestImportService(t, store)

	_, err := service.ImportBatch(ctx, testUserID, []string{sentSMS, sentSMS, tillSMS}, nil)
	require.NoError(t, err)

	stats, err := service.DuplicateStats(ctx, testUserID, 0)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.DuplicatesBlocked)
	assert.Equal(t, 2, stats.SMSTransactions)
	require.NotEmpty(t, stats.CommonDuplicateReasons)
}
