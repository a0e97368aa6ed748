package services

import (
	"testing"
	"time"

	"github.com/pesatrack/backend/internal/config"
	"github.com/pesatrack/backend/internal/models"
	"github.com/stretchr/testify/require"
)

const (
	testUserID = "user-123"

	receivedSMS   = "TJ3CF6GKC7 Confirmed.You have received Ksh100.00 from Equity Bulk Account 300600 on 3/10/25 at 10:55 PM New M-PESA balance is Ksh111.86."
	sentSMS       = "TJ3CF6GKC8 Confirmed. Ksh500.00 sent to JOHN DOE 0712345678 on 3/10/25 at 11:00 AM. New M-PESA balance is Ksh1,234.56. Transaction cost, Ksh7.00."
	paybillSMS    = "TJ3CF6GKC9 Confirmed. Ksh1,000.00 sent to KPLC PREPAID for account 37100000000 on 4/10/25 at 9:15 AM New M-PESA balance is Ksh234.56. Transaction cost, Ksh0.00."
	tillSMS       = "TJ3CF6GKD2 Confirmed. Ksh250.00 paid to NAIVAS SUPERMARKET. on 5/10/25 at 6:30 PM.New M-PESA balance is Ksh750.00. Transaction cost, Ksh0.00."
	withdrawalSMS = "TJ3CF6GKD1 Confirmed.on 6/10/25 at 2:00 PMWithdraw Ksh2,000.00 from 123456 - JOHN AGENT New M-PESA balance is Ksh3,000.00. Transaction cost, Ksh29.00."
	airtimeSMS    = "TJ3CF6GKD4 confirmed.You bought Ksh100.00 of airtime on 7/10/25 at 8:00 AM.New M-PESA balance is Ksh500.00. Transaction cost, Ksh0.00."
	balanceSMS    = "TJ3CF6GKD3 Confirmed. Your account balance was: M-PESA Account : Ksh1,234.56 on 8/10/25 at 10:00 AM. Transaction cost, Ksh0.00."
	notMpesaSMS   = "Hello, are we meeting today?"
)

func testIngestConfig() *config.IngestConfig {
	return &config.IngestConfig{
		SimilarityThreshold: 0.8,
		SimilarityWindow:    24 * time.Hour,
		SimilarityProximity: 10 * time.Minute,
		MaxBatchSize:        100,
		MaxSessionErrors:    100,
		ImportRateLimit:     30,
		ImportRateWindow:    time.Hour,
		HashIndexTTL:        time.Hour,
		TimezoneOffsetHours: 3,
		CategoryCacheTTL:    time.Minute,
	}
}

func defaultCategories(t *testing.T) []models.Category {
	t.Helper()
	categories, err := config.LoadDefaultCategories()
	require.NoError(t, err)
	return categories
}
