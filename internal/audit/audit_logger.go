package audit

import (
	"time"

	"github.com/pesatrack/backend/internal/models"
	"github.com/rs/zerolog"
)

type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id,omitempty"`
	Status    string    `json:"status"`
	Details   any       `json:"details"`
}

// AuditLogger writes one structured line per business event under the "audit" component
type AuditLogger struct {
	log zerolog.Logger
}

func NewAuditLogger(log zerolog.Logger) *AuditLogger {
	return &AuditLogger{log: log.With().Str("component", "audit").Logger()}
}

func (a *AuditLogger) LogDuplicate(entry *models.DuplicateLogEntry) {
	a.write(AuditEvent{
		Timestamp: entry.DetectedAt,
		EventType: "DUPLICATE_REJECTED",
		UserID:    entry.UserID,
		SessionID: entry.ImportSessionID,
		Status:    string(entry.Action),
		Details: map[string]any{
			"original_transaction_id": entry.OriginalTransactionID,
			"message_hash":            entry.MessageHash,
			"signals":                 entry.Signals,
			"confidence":              entry.Confidence,
		},
	})
}

func (a *AuditLogger) LogImportSession(session *models.ImportSession) {
	a.write(AuditEvent{
		Timestamp: session.CreatedAt,
		EventType: "IMPORT_SESSION",
		UserID:    session.UserID,
		SessionID: session.SessionID,
		Status:    "COMPLETED",
		Details: map[string]int{
			"total_messages":     session.TotalMessages,
			"successful_imports": session.SuccessfulImports,
			"duplicates_found":   session.DuplicatesFound,
			"parsing_errors":     session.ParsingErrors,
		},
	})
}

func (a *AuditLogger) LogError(userID, sessionID string, err error) {
	a.write(AuditEvent{
		Timestamp: time.Now(),
		EventType: "ERROR",
		UserID:    userID,
		SessionID: sessionID,
		Status:    "FAILED",
		Details:   map[string]string{"error": err.Error()},
	})
}

func (a *AuditLogger) write(event AuditEvent) {
	a.log.Info().
		Str("event_type", event.EventType).
		Str("user_id", event.UserID).
		Str("session_id", event.SessionID).
		Str("status", event.Status).
		Time("event_time", event.Timestamp).
		Interface("details", event.Details).
		Msg("AUDIT")
}
