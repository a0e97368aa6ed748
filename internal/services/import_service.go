package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/pesatrack/backend/internal/audit"
	"github.com/pesatrack/backend/internal/config"
	"github.com/pesatrack/backend/internal/models"
	"github.com/pesatrack/backend/internal/mpesa"
	"github.com/rs/zerolog"
)

// ImportService runs a batch of raw messages through parse, duplicate check, categorize
// and persist. One message failing never affects the others.
type ImportService struct {
	store      TransactionStore
	categories CategoryProvider
	parser     *mpesa.Parser
	detector   *DuplicateDetector
	redis      *redis.Client
	audit      *audit.AuditLogger
	config     *config.IngestConfig
	log        zerolog.Logger
	now        func() time.Time
}

func NewImportService(store TransactionStore, categories CategoryProvider, rdb *redis.Client, cfg *config.IngestConfig, log zerolog.Logger) *ImportService {
	auditLogger := audit.NewAuditLogger(log)
	return &ImportService{
		store:      store,
		categories: categories,
		parser:     mpesa.NewParser(mpesa.WithLocation(cfg.Location())),
		detector:   NewDuplicateDetector(store, cfg, auditLogger, log),
		redis:      rdb,
		audit:      auditLogger,
		config:     cfg,
		log:        log.With().Str("component", "import_service").Logger(),
		now:        time.Now,
	}
}

// ParseMessage runs the parser alone, without touching the store
func (s *ImportService) ParseMessage(raw string, fallback *time.Time) (*models.ParsedTransaction, error) {
	return s.parser.Parse(raw, fallback)
}

// ImportBatch processes messages in order and returns the persisted session. Only a failed
// category lookup or a ConfigurationError aborts the batch, before any message is touched.
// Cancelling ctx stops the batch between messages; the rest are recorded as failed.
func (s *ImportService) ImportBatch(ctx context.Context, userID string, messages []string, fallback *time.Time) (*models.ImportSession, error) {
	categories, err := s.categories.ListCategories(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load categories: %w", err)
	}
	categorizer, err := NewCategorizer(categories)
	if err != nil {
		return nil, err
	}

	session := &models.ImportSession{
		SessionID:           uuid.New().String(),
		UserID:              userID,
		TotalMessages:       len(messages),
		TransactionsCreated: models.StringList{},
		Errors:              models.StringList{},
		CreatedAt:           s.now(),
	}

	// a message that has started runs to completion even if the caller goes away
	work := context.WithoutCancel(ctx)
	for i, raw := range messages {
		if ctx.Err() != nil {
			s.recordFailure(session, i, "import cancelled")
			continue
		}

		outcome, id, reason := s.processMessage(work, session.SessionID, userID, raw, fallback, categorizer)
		switch outcome {
		case models.OutcomePersisted:
			session.SuccessfulImports++
			session.TransactionsCreated = append(session.TransactionsCreated, id)
		case models.OutcomeRejectedDuplicate:
			session.DuplicatesFound++
		default:
			s.recordFailure(session, i, reason)
		}
	}

	if err := s.store.InsertImportSession(work, session); err != nil {
		s.log.Error().Err(err).Str("session_id", session.SessionID).Msg("failed to persist import session")
		s.audit.LogError(userID, session.SessionID, err)
	} else {
		s.audit.LogImportSession(session)
	}

	s.log.Info().
		Str("user_id", userID).
		Str("session_id", session.SessionID).
		Int("total", session.TotalMessages).
		Int("imported", session.SuccessfulImports).
		Int("duplicates", session.DuplicatesFound).
		Int("errors", session.ParsingErrors).
		Msg("sms import completed")
	return session, nil
}

func (s *ImportService) processMessage(ctx context.Context, sessionID, userID, raw string, fallback *time.Time, categorizer *Categorizer) (models.MessageOutcome, string, string) {
	parsed, err := s.parser.Parse(raw, fallback)
	if err != nil {
		return models.OutcomeFailed, "", err.Error()
	}

	verdict, err := s.detector.CheckInSession(ctx, sessionID, parsed, raw, userID)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("duplicate check failed")
		return models.OutcomeFailed, "", fmt.Sprintf("duplicate check failed: %v", err)
	}
	if verdict.IsDuplicate {
		return models.OutcomeRejectedDuplicate, "", ""
	}

	categoryID := categorizer.Categorize(parsed.CategoryHint)
	tx := models.NewTransactionFromParsed(userID, categoryID, sessionID, parsed)
	id, err := s.store.InsertTransaction(ctx, tx)
	if err != nil {
		s.log.Error().Err(err).Str("session_id", sessionID).Msg("failed to persist transaction")
		if errors.Is(err, ErrDuplicateHash) {
			return models.OutcomeFailed, "", "transaction already recorded"
		}
		return models.OutcomeFailed, "", fmt.Sprintf("failed to save transaction: %v", err)
	}
	return models.OutcomePersisted, id, ""
}

// recordFailure counts a failed message; the error list is capped, the counter is not
func (s *ImportService) recordFailure(session *models.ImportSession, index int, reason string) {
	session.ParsingErrors++
	if len(session.Errors) < s.config.MaxSessionErrors {
		session.Errors = append(session.Errors, fmt.Sprintf("message %d: %s", index+1, reason))
	}
}

func (s *ImportService) GetSession(ctx context.Context, userID, sessionID string) (*models.ImportSession, error) {
	return s.store.GetImportSession(ctx, userID, sessionID)
}

// DuplicateStats summarizes duplicate detection over the last days days
func (s *ImportService) DuplicateStats(ctx context.Context, userID string, days int) (*models.DuplicateStats, error) {
	if days <= 0 {
		days = 30
	}
	return s.store.DuplicateStats(ctx, userID, s.now().AddDate(0, 0, -days))
}

// AllowImport enforces the per-user import rate limit. It is a no-op without Redis.
func (s *ImportService) AllowImport(ctx context.Context, userID string) error {
	if s.redis == nil || s.config.ImportRateLimit <= 0 {
		return nil
	}

	key := fmt.Sprintf("sms_import_rate:%s", userID)
	count, err := s.redis.Get(ctx, key).Int()
	if err != nil && err != redis.Nil {
		s.log.Warn().Err(err).Msg("rate limit lookup failed, allowing import")
		return nil
	}
	if count >= s.config.ImportRateLimit {
		return ErrRateLimited
	}

	pipe := s.redis.Pipeline()
	pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, s.config.ImportRateWindow)
	if _, err := pipe.Exec(ctx); err != nil {
		s.log.Warn().Err(err).Msg("failed to update rate limit counter")
	}
	return nil
}
