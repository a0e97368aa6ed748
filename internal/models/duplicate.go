package models

import "time"

// DuplicateSignal names one independent duplicate check
type DuplicateSignal string

const (
	SignalHash       DuplicateSignal = "hash"
	SignalProviderID DuplicateSignal = "provider_id"
	SignalSimilarity DuplicateSignal = "similarity"
)

// DuplicateAction is what the importer did with a detected duplicate
type DuplicateAction string

const (
	ActionRejected DuplicateAction = "rejected"
	ActionMerged   DuplicateAction = "merged"
	ActionFlagged  DuplicateAction = "flagged"
)

// DuplicateVerdict is the result of one duplicate check. It is never persisted.
type DuplicateVerdict struct {
	IsDuplicate         bool              `json:"is_duplicate"`
	Confidence          float64           `json:"confidence"`
	MatchedSignals      []DuplicateSignal `json:"matched_signals"`
	CandidateOriginalID string            `json:"candidate_original_id,omitempty"`
	SimilarityScore     float64           `json:"similarity_score"`
}

// HasSignal reports whether s fired during the check
func (v *DuplicateVerdict) HasSignal(s DuplicateSignal) bool {
	for _, m := range v.MatchedSignals {
		if m == s {
			return true
		}
	}
	return false
}

// DuplicateLogEntry is the append-only audit row written for every detected duplicate
type DuplicateLogEntry struct {
	ID                    string            `json:"id" db:"id"`
	UserID                string            `json:"user_id" db:"user_id"`
	ImportSessionID       string            `json:"import_session_id,omitempty" db:"import_session_id"`
	OriginalTransactionID string            `json:"original_transaction_id,omitempty" db:"original_transaction_id"`
	MessageHash           string            `json:"message_hash" db:"message_hash"`
	ProviderReference     string            `json:"mpesa_transaction_id,omitempty" db:"provider_reference"`
	Signals               []DuplicateSignal `json:"signals" db:"signals"`
	Confidence            float64           `json:"confidence" db:"confidence"`
	Action                DuplicateAction   `json:"action_taken" db:"action_taken"`
	DetectedAt            time.Time         `json:"detected_at" db:"detected_at"`
}

// DuplicateReasonCount is one row of the common-reasons breakdown
type DuplicateReasonCount struct {
	Signal DuplicateSignal `json:"signal"`
	Count  int             `json:"count"`
}

// DuplicateStats summarizes duplicate detection for a user over a period
type DuplicateStats struct {
	DuplicatesBlocked      int                    `json:"duplicates_blocked"`
	SMSTransactions        int                    `json:"sms_transactions_processed"`
	DuplicateRate          float64                `json:"duplicate_rate"`
	CommonDuplicateReasons []DuplicateReasonCount `json:"common_duplicate_reasons"`
}

// Record adds a fired signal. Confidence keeps the strongest signal and the first
// signal to fire names the original.
func (v *DuplicateVerdict) Record(s DuplicateSignal, confidence float64, originalID string) {
	v.MatchedSignals = append(v.MatchedSignals, s)
	if confidence > v.Confidence {
		v.Confidence = confidence
	}
	if v.CandidateOriginalID == "" {
		v.CandidateOriginalID = originalID
	}
}
