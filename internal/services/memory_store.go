package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pesatrack/backend/internal/models"
	"github.com/shopspring/decimal"
)

// MemoryStore is an in-process TransactionStore for the CLI and tests.
// Values are copied in and out so callers never share state with the store.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions []models.Transaction
	byHash       map[string]int
	duplicates   []models.DuplicateLogEntry
	sessions     map[string]models.ImportSession
}

var _ TransactionStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byHash:   make(map[string]int),
		sessions: make(map[string]models.ImportSession),
	}
}

func memoryHashKey(userID, hash string) string {
	return userID + "\x00" + hash
}

func (s *MemoryStore) GetByMessageHash(_ context.Context, userID, hash string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.byHash[memoryHashKey(userID, hash)]
	if !ok {
		return nil, nil
	}
	tx := s.transactions[i]
	return &tx, nil
}

func (s *MemoryStore) GetByProviderReference(_ context.Context, userID, reference string) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.ProviderReference != "" && tx.ProviderReference == reference {
			return &tx, nil
		}
	}
	return nil, nil
}

func (s *MemoryStore) QueryRecent(_ context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []models.Transaction
	for i := len(s.transactions) - 1; i >= 0 && len(out) < recentCandidateLimit; i-- {
		tx := s.transactions[i]
		if tx.UserID != userID || !tx.Amount.Equal(amount) {
			continue
		}
		if tx.OccurredAt.Before(from) || tx.OccurredAt.After(to) {
			continue
		}
		out = append(out, tx)
	}
	return out, nil
}

func (s *MemoryStore) InsertTransaction(_ context.Context, tx *models.Transaction) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := memoryHashKey(tx.UserID, tx.MessageHash)
	if tx.MessageHash != "" {
		if _, exists := s.byHash[key]; exists {
			return "", ErrDuplicateHash
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	s.transactions = append(s.transactions, *tx)
	if tx.MessageHash != "" {
		s.byHash[key] = len(s.transactions) - 1
	}
	return tx.ID, nil
}

func (s *MemoryStore) InsertDuplicateLog(_ context.Context, entry *models.DuplicateLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	cp := *entry
	cp.Signals = append([]models.DuplicateSignal(nil), entry.Signals...)
	s.duplicates = append(s.duplicates, cp)
	return nil
}

func (s *MemoryStore) InsertImportSession(_ context.Context, session *models.ImportSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.sessions[session.SessionID] = copySession(session)
	return nil
}

func (s *MemoryStore) GetImportSession(_ context.Context, userID, sessionID string) (*models.ImportSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, ok := s.sessions[sessionID]
	if !ok || session.UserID != userID {
		return nil, ErrSessionNotFound
	}
	cp := copySession(&session)
	return &cp, nil
}

func (s *MemoryStore) DuplicateStats(_ context.Context, userID string, since time.Time) (*models.DuplicateStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &models.DuplicateStats{}
	counts := make(map[models.DuplicateSignal]int)
	for _, d := range s.duplicates {
		if d.UserID != userID || d.DetectedAt.Before(since) {
			continue
		}
		stats.DuplicatesBlocked++
		for _, sig := range d.Signals {
			counts[sig]++
		}
	}
	for _, tx := range s.transactions {
		if tx.UserID == userID && tx.Source == models.SourceSMS && !tx.CreatedAt.Before(since) {
			stats.SMSTransactions++
		}
	}
	stats.CommonDuplicateReasons = rankReasons(counts)
	stats.DuplicateRate = duplicateRate(stats.DuplicatesBlocked, stats.SMSTransactions)
	return stats, nil
}

// DuplicateLogs returns a copy of every duplicate log entry written so far
func (s *MemoryStore) DuplicateLogs() []models.DuplicateLogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.DuplicateLogEntry(nil), s.duplicates...)
}

// Transactions returns a copy of every stored transaction in insertion order
func (s *MemoryStore) Transactions() []models.Transaction {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]models.Transaction(nil), s.transactions...)
}

func copySession(session *models.ImportSession) models.ImportSession {
	cp := *session
	cp.TransactionsCreated = append(models.StringList{}, session.TransactionsCreated...)
	cp.Errors = append(models.StringList{}, session.Errors...)
	return cp
}

// StaticCategories serves the same category list to every user
type StaticCategories []models.Category

var _ CategoryProvider = StaticCategories(nil)

func (c StaticCategories) ListCategories(_ context.Context, _ string) ([]models.Category, error) {
	return append([]models.Category(nil), c...), nil
}
