package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/pesatrack/backend/internal/models"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, amount, direction, category_id, description, counterparty,
	provider_reference, message_hash, balance_after, transaction_cost, occurred_at, source,
	parse_confidence, mpesa_details, import_session_id, created_at`

// recentCandidateLimit caps the rows the similarity check compares against
const recentCandidateLimit = 50

// PostgresStore persists transactions, duplicate logs and import sessions. When a Redis
// client is present, message hashes of inserted rows are indexed there for fast lookups.
type PostgresStore struct {
	db      *sql.DB
	redis   *redis.Client
	hashTTL time.Duration
	log     zerolog.Logger
}

var _ TransactionStore = (*PostgresStore)(nil)

func NewPostgresStore(db *sql.DB, rdb *redis.Client, hashTTL time.Duration, log zerolog.Logger) *PostgresStore {
	return &PostgresStore{
		db:      db,
		redis:   rdb,
		hashTTL: hashTTL,
		log:     log.With().Str("component", "transaction_store").Logger(),
	}
}

func hashIndexKey(userID, hash string) string {
	return fmt.Sprintf("sms:hash:%s:%s", userID, hash)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx      models.Transaction
		balance decimal.NullDecimal
		cost    decimal.NullDecimal
		session sql.NullString
	)
	err := row.Scan(
		&tx.ID, &tx.UserID, &tx.Amount, &tx.Direction, &tx.CategoryID, &tx.Description, &tx.Counterparty,
		&tx.ProviderReference, &tx.MessageHash, &balance, &cost, &tx.OccurredAt, &tx.Source,
		&tx.ParseConfidence, &tx.MpesaDetails, &session, &tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if balance.Valid {
		tx.BalanceAfter = &balance.Decimal
	}
	if cost.Valid {
		tx.TransactionCost = &cost.Decimal
	}
	tx.ImportSessionID = session.String
	return &tx, nil
}

func (s *PostgresStore) queryOne(ctx context.Context, query string, args ...any) (*models.Transaction, error) {
	tx, err := scanTransaction(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return tx, nil
}

func (s *PostgresStore) GetByMessageHash(ctx context.Context, userID, hash string) (*models.Transaction, error) {
	if s.redis != nil {
		id, err := s.redis.Get(ctx, hashIndexKey(userID, hash)).Result()
		switch {
		case err == nil:
			return &models.Transaction{ID: id, UserID: userID, MessageHash: hash}, nil
		case err != redis.Nil:
			s.log.Warn().Err(err).Msg("hash index lookup failed, falling back to database")
		}
	}

	tx, err := s.queryOne(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND message_hash = $2 LIMIT 1",
		userID, hash)
	if err != nil {
		return nil, fmt.Errorf("failed to look up message hash: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) GetByProviderReference(ctx context.Context, userID, reference string) (*models.Transaction, error) {
	tx, err := s.queryOne(ctx,
		"SELECT "+transactionColumns+" FROM transactions WHERE user_id = $1 AND provider_reference = $2 LIMIT 1",
		userID, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to look up provider reference: %w", err)
	}
	return tx, nil
}

func (s *PostgresStore) QueryRecent(ctx context.Context, userID string, amount decimal.Decimal, from, to time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+transactionColumns+` FROM transactions
		WHERE user_id = $1 AND amount = $2 AND occurred_at BETWEEN $3 AND $4
		ORDER BY occurred_at DESC LIMIT $5`,
		userID, amount, from, to, recentCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		out = append(out, *tx)
	}
	return out, rows.Err()
}

func (s *PostgresStore) InsertTransaction(ctx context.Context, tx *models.Transaction) (string, error) {
	if tx.ID == "" {
		tx.ID = uuid.New().String()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = time.Now()
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO transactions ("+transactionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)`,
		tx.ID, tx.UserID, tx.Amount, tx.Direction, tx.CategoryID, tx.Description, tx.Counterparty,
		tx.ProviderReference, tx.MessageHash, tx.BalanceAfter, tx.TransactionCost, tx.OccurredAt, tx.Source,
		tx.ParseConfidence, tx.MpesaDetails, nullString(tx.ImportSessionID), tx.CreatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return "", ErrDuplicateHash
		}
		return "", fmt.Errorf("failed to insert transaction: %w", err)
	}

	if s.redis != nil && tx.MessageHash != "" {
		if err := s.redis.Set(ctx, hashIndexKey(tx.UserID, tx.MessageHash), tx.ID, s.hashTTL).Err(); err != nil {
			s.log.Warn().Err(err).Str("transaction_id", tx.ID).Msg("failed to index message hash")
		}
	}
	return tx.ID, nil
}

func (s *PostgresStore) InsertDuplicateLog(ctx context.Context, entry *models.DuplicateLogEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}

	signals := make(models.StringList, 0, len(entry.Signals))
	for _, sig := range entry.Signals {
		signals = append(signals, string(sig))
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO duplicate_logs (id, user_id, import_session_id, original_transaction_id, message_hash,
		provider_reference, signals, confidence, action_taken, detected_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		entry.ID, entry.UserID, nullString(entry.ImportSessionID), nullString(entry.OriginalTransactionID),
		entry.MessageHash, entry.ProviderReference, signals, entry.Confidence, entry.Action, entry.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert duplicate log: %w", err)
	}
	return nil
}

func (s *PostgresStore) InsertImportSession(ctx context.Context, session *models.ImportSession) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sms_import_logs (id, user_id, total_messages, successful_imports, duplicates_found,
		parsing_errors, transactions_created, errors, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		session.SessionID, session.UserID, session.TotalMessages, session.SuccessfulImports,
		session.DuplicatesFound, session.ParsingErrors, session.TransactionsCreated, session.Errors, session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert import session: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetImportSession(ctx context.Context, userID, sessionID string) (*models.ImportSession, error) {
	var session models.ImportSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, total_messages, successful_imports, duplicates_found, parsing_errors,
		transactions_created, errors, created_at
		FROM sms_import_logs WHERE id = $1 AND user_id = $2`,
		sessionID, userID,
	).Scan(&session.SessionID, &session.UserID, &session.TotalMessages, &session.SuccessfulImports,
		&session.DuplicatesFound, &session.ParsingErrors, &session.TransactionsCreated, &session.Errors, &session.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get import session: %w", err)
	}
	if session.TransactionsCreated == nil {
		session.TransactionsCreated = models.StringList{}
	}
	if session.Errors == nil {
		session.Errors = models.StringList{}
	}
	return &session, nil
}

func (s *PostgresStore) DuplicateStats(ctx context.Context, userID string, since time.Time) (*models.DuplicateStats, error) {
	stats := &models.DuplicateStats{CommonDuplicateReasons: []models.DuplicateReasonCount{}}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM duplicate_logs WHERE user_id = $1 AND detected_at >= $2",
		userID, since,
	).Scan(&stats.DuplicatesBlocked)
	if err != nil {
		return nil, fmt.Errorf("failed to count duplicates: %w", err)
	}

	err = s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM transactions WHERE user_id = $1 AND source = $2 AND created_at >= $3",
		userID, models.SourceSMS, since,
	).Scan(&stats.SMSTransactions)
	if err != nil {
		return nil, fmt.Errorf("failed to count sms transactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT signals FROM duplicate_logs WHERE user_id = $1 AND detected_at >= $2",
		userID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate signals: %w", err)
	}
	defer rows.Close()

	counts := make(map[models.DuplicateSignal]int)
	for rows.Next() {
		var signals models.StringList
		if err := rows.Scan(&signals); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate signals: %w", err)
		}
		for _, sig := range signals {
			counts[models.DuplicateSignal(sig)]++
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.CommonDuplicateReasons = rankReasons(counts)
	stats.DuplicateRate = duplicateRate(stats.DuplicatesBlocked, stats.SMSTransactions)
	return stats, nil
}

// duplicateRate is the share of duplicates among all sms messages seen, as a percentage
func duplicateRate(duplicates, imported int) float64 {
	total := duplicates + imported
	if total == 0 {
		return 0
	}
	return float64(duplicates) / float64(total) * 100
}

func rankReasons(counts map[models.DuplicateSignal]int) []models.DuplicateReasonCount {
	out := make([]models.DuplicateReasonCount, 0, len(counts))
	for sig, n := range counts {
		out = append(out, models.DuplicateReasonCount{Signal: sig, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Signal < out[j].Signal
	})
	return out
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
