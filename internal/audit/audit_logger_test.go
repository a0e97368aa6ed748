package audit

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/pesatrack/backend/internal/logger"
	"github.com/pesatrack/backend/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &out))
	return out
}

func TestAuditLogger_LogDuplicate(t *testing.T) {
	buf := &bytes.Buffer{}
	a := NewAuditLogger(logger.NewWithWriter(buf))

	a.LogDuplicate(&models.DuplicateLogEntry{
		UserID:                "user-1",
		ImportSessionID:       "session-1",
		OriginalTransactionID: "tx-1",
		MessageHash:           "abc",
		Signals:               []models.DuplicateSignal{models.SignalHash},
		Confidence:            1,
		Action:                models.ActionRejected,
		DetectedAt:            time.Now(),
	})

	line := decodeLine(t, buf)
	assert.Equal(t, "DUPLICATE_REJECTED", line["event_type"])
	assert.Equal(t, "audit", line["component"])
	assert.Equal(t, "rejected", line["status"])
	details := line["details"].(map[string]any)
	assert.Equal(t, "tx-1", details["original_transaction_id"])
}

func TestAuditLogger_LogImportSession(t *testing.T) {
	buf := &bytes.Buffer{}
	a := NewAuditLogger(logger.NewWithWriter(buf))

	a.LogImportSession(&models.ImportSession{SessionID: "s-1", UserID: "u-1", TotalMessages: 3, SuccessfulImports: 2, ParsingErrors: 1})

	line := decodeLine(t, buf)
	assert.Equal(t, "IMPORT_SESSION", line["event_type"])
	details := line["details"].(map[string]any)
	assert.Equal(t, float64(3), details["total_messages"])
}

func TestAuditLogger_LogError(t *testing.T) {
	buf := &bytes.Buffer{}
	a := NewAuditLogger(logger.NewWithWriter(buf))

	a.LogError("u-1", "s-1", errors.New("store unavailable"))

	line := decodeLine(t, buf)
	assert.Equal(t, "FAILED", line["status"])
	assert.Contains(t, buf.String(), "store unavailable")
}
