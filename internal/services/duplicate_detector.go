package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pesatrack/backend/internal/audit"
	"github.com/pesatrack/backend/internal/config"
	"github.com/pesatrack/backend/internal/models"
	"github.com/pesatrack/backend/internal/mpesa"
	"github.com/rs/zerolog"
)

// Similarity score weights; the maximum score is 0.95
const (
	amountWeight       = 0.4
	counterpartyWeight = 0.35
	timeWeight         = 0.2

	counterpartyMatchThreshold = 0.5
	minSimilarityCriteria      = 2
)

// DuplicateDetector decides whether a parsed message was already recorded for the user.
// Three signals are evaluated independently: exact message hash, provider reference and a
// weighted similarity score against recent transactions of the same amount.
type DuplicateDetector struct {
	store  TransactionStore
	audit  *audit.AuditLogger
	config *config.IngestConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewDuplicateDetector(store TransactionStore, cfg *config.IngestConfig, auditLogger *audit.AuditLogger, log zerolog.Logger) *DuplicateDetector {
	return &DuplicateDetector{
		store:  store,
		audit:  auditLogger,
		config: cfg,
		log:    log.With().Str("component", "duplicate_detector").Logger(),
		now:    time.Now,
	}
}

// Check evaluates parsed outside of any import session
func (d *DuplicateDetector) Check(ctx context.Context, parsed *models.ParsedTransaction, rawText, userID string) (*models.DuplicateVerdict, error) {
	return d.CheckInSession(ctx, "", parsed, rawText, userID)
}

// CheckInSession evaluates parsed and, when it is a duplicate, writes a DuplicateLogEntry
// tagged with sessionID before returning. Store failures are returned as errors.
func (d *DuplicateDetector) CheckInSession(ctx context.Context, sessionID string, parsed *models.ParsedTransaction, rawText, userID string) (*models.DuplicateVerdict, error) {
	hash := mpesa.HashMessage(rawText)
	verdict := &models.DuplicateVerdict{MatchedSignals: []models.DuplicateSignal{}}

	byHash, err := d.store.GetByMessageHash(ctx, userID, hash)
	if err != nil {
		return nil, err
	}
	if byHash != nil {
		verdict.Record(models.SignalHash, 1.0, byHash.ID)
	}

	if parsed.ProviderReference != "" {
		byRef, err := d.store.GetByProviderReference(ctx, userID, parsed.ProviderReference)
		if err != nil {
			return nil, err
		}
		if byRef != nil {
			verdict.Record(models.SignalProviderID, 1.0, byRef.ID)
		}
	}

	candidates, err := d.store.QueryRecent(ctx, userID, parsed.Amount,
		parsed.OccurredAt.Add(-d.config.SimilarityWindow), parsed.OccurredAt.Add(d.config.SimilarityWindow))
	if err != nil {
		return nil, err
	}
	var best *models.Transaction
	bestCriteria := 0
	for i := range candidates {
		c := &candidates[i]
		if parsed.ProviderReference != "" && c.ProviderReference != "" && parsed.ProviderReference != c.ProviderReference {
			continue
		}
		score, criteria := d.similarity(parsed, c)
		if best == nil || score > verdict.SimilarityScore {
			best, bestCriteria = c, criteria
			verdict.SimilarityScore = score
		}
	}
	if best != nil && verdict.SimilarityScore > d.config.SimilarityThreshold && bestCriteria >= minSimilarityCriteria {
		verdict.Record(models.SignalSimilarity, verdict.SimilarityScore, best.ID)
	}

	verdict.IsDuplicate = len(verdict.MatchedSignals) > 0
	if !verdict.IsDuplicate {
		return verdict, nil
	}

	entry := &models.DuplicateLogEntry{
		ID:                    uuid.New().String(),
		UserID:                userID,
		ImportSessionID:       sessionID,
		OriginalTransactionID: verdict.CandidateOriginalID,
		MessageHash:           hash,
		ProviderReference:     parsed.ProviderReference,
		Signals:               verdict.MatchedSignals,
		Confidence:            verdict.Confidence,
		Action:                models.ActionRejected,
		DetectedAt:            d.now(),
	}
	if err := d.store.InsertDuplicateLog(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to record duplicate: %w", err)
	}
	if d.audit != nil {
		d.audit.LogDuplicate(entry)
	}

	d.log.Debug().
		Str("user_id", userID).
		Str("original_id", verdict.CandidateOriginalID).
		Interface("signals", verdict.MatchedSignals).
		Float64("confidence", verdict.Confidence).
		Msg("duplicate message detected")
	return verdict, nil
}

// similarity scores candidate against parsed and counts the sub-criteria that matched
func (d *DuplicateDetector) similarity(parsed *models.ParsedTransaction, candidate *models.Transaction) (float64, int) {
	score := 0.0
	criteria := 0

	if parsed.Amount.Equal(candidate.Amount) {
		score += amountWeight
		criteria++
	}

	a, b := parsed.Counterparty, candidate.Counterparty
	if a == "" || b == "" {
		a, b = parsed.Description, candidate.Description
	}
	cp := counterpartySimilarity(a, b)
	score += counterpartyWeight * cp
	if cp >= counterpartyMatchThreshold {
		criteria++
	}

	delta := parsed.OccurredAt.Sub(candidate.OccurredAt)
	if delta < 0 {
		delta = -delta
	}
	if d.config.SimilarityWindow > 0 && delta < d.config.SimilarityWindow {
		score += timeWeight * (1 - float64(delta)/float64(d.config.SimilarityWindow))
	}
	if delta <= d.config.SimilarityProximity {
		criteria++
	}

	return score, criteria
}

// counterpartySimilarity is 1 for equal or contained names, else the Jaccard index of their words
func counterpartySimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	if a == b || strings.Contains(a, b) || strings.Contains(b, a) {
		return 1
	}

	wordsA := make(map[string]struct{})
	for _, w := range strings.Fields(a) {
		wordsA[w] = struct{}{}
	}
	wordsB := make(map[string]struct{})
	for _, w := range strings.Fields(b) {
		wordsB[w] = struct{}{}
	}

	shared := 0
	for w := range wordsA {
		if _, ok := wordsB[w]; ok {
			shared++
		}
	}
	union := len(wordsA) + len(wordsB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
