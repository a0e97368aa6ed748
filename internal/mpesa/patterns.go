package mpesa

import (
	"regexp"
	"strings"

	"github.com/pesatrack/backend/internal/models"
)

// Shared field patterns. Messages are whitespace-normalized before matching.
var (
	// TJ3CF6GKC7 Confirmed.
	referencePattern = regexp.MustCompile(`\b([A-Z0-9]{10,12})\s+(?i:confirmed)`)
	// on 3/10/25 at 10:55 PM
	dateTimePattern = regexp.MustCompile(`(?i)\bon\s+(\d{1,2})/(\d{1,2})/(\d{2}|\d{4})\s+at\s+(\d{1,2}):(\d{2})\s*([AP]M)`)
	// New M-PESA balance is Ksh111.86
	balancePattern = regexp.MustCompile(`(?i)balance\s+is\s+Ksh\s?([\d,]+(?:\.\d+)?)`)
	// Transaction cost, Ksh7.00
	costPattern = regexp.MustCompile(`(?i)transaction\s+cost,?\s*Ksh\s?([\d,]+(?:\.\d+)?)`)

	// generic extractor
	anyAmountPattern    = regexp.MustCompile(`(?i)\b(?:Ksh|KES)\.?\s?([\d,]+(?:\.\d+)?)`)
	anyReferencePattern = regexp.MustCompile(`\b([A-Z0-9]{10,12})\b`)
)

// field is an optional field a template expects to find
type field int

const (
	fieldCounterparty field = iota
	fieldReference
	fieldBalance
	fieldDateTime
)

// extraction is what a template pulls out of a message before the shared fields are added
type extraction struct {
	amount        string
	counterparty  string
	accountNumber string
}

// template recognizes one message shape
type template struct {
	txType    models.TransactionType
	direction models.Direction
	// all keywords must be present in the lowercased message
	triggers []string
	// optional fields the template normally yields; each missing one lowers confidence
	expects []field
	// keywords added to the category hint; empty for merchant payments
	hintKeywords string
	extract      func(text string) (extraction, bool)
}

func (t template) triggered(lower string) bool {
	for _, kw := range t.triggers {
		if !strings.Contains(lower, kw) {
			return false
		}
	}
	return true
}

// Pattern-specific expressions
var (
	paybillAmount       = regexp.MustCompile(`(?i)Ksh\s?([\d,]+(?:\.\d+)?)\s+sent\s+to`)
	paybillCounterparty = regexp.MustCompile(`(?i)sent\s+to\s+(.+?)\s+for\s+account\s+(\S+?)\.?(?:\s|$)`)

	tillAmount       = regexp.MustCompile(`(?i)Ksh\s?([\d,]+(?:\.\d+)?)\s+paid\s+to`)
	tillCounterparty = regexp.MustCompile(`(?i)paid\s+to\s+(.+?)\.?(?:\s+on\s+\d{1,2}/|\s*New\s+M-PESA|$)`)

	withdrawAmount       = regexp.MustCompile(`(?i)withdraw\s*Ksh\s?([\d,]+(?:\.\d+)?)`)
	withdrawCounterparty = regexp.MustCompile(`(?i)withdraw\s*Ksh\s?[\d,]+(?:\.\d+)?\s+from\s+(.+?)\.?(?:\s*New\s+M-PESA|\s+on\s+\d{1,2}/|$)`)

	airtimeAmount    = regexp.MustCompile(`(?i)bought\s+Ksh\s?([\d,]+(?:\.\d+)?)\s+of\s+airtime`)
	airtimeRecipient = regexp.MustCompile(`(?i)of\s+airtime\s+for\s+(\+?\d{9,13})`)

	accountBalance = regexp.MustCompile(`(?i)M-PESA\s+Account\s*:?\s*Ksh\s?([\d,]+(?:\.\d+)?)`)

	sentAmount       = regexp.MustCompile(`(?i)Ksh\s?([\d,]+(?:\.\d+)?)\s+sent\s+to`)
	sentCounterparty = regexp.MustCompile(`(?i)sent\s+to\s+(.+?)\.?(?:\s+on\s+\d{1,2}/|\s*New\s+M-PESA|$)`)

	receivedAmount       = regexp.MustCompile(`(?i)received\s+Ksh\s?([\d,]+(?:\.\d+)?)\s+from`)
	receivedCounterparty = regexp.MustCompile(`(?i)received\s+Ksh\s?[\d,]+(?:\.\d+)?\s+from\s+(.+?)\.?(?:\s+on\s+\d{1,2}/|\s*New\s+M-PESA|$)`)
)

// templates in priority order: specific shapes first so they win over sent/received.
var templates = []template{
	{
		txType:    models.TypePaybill,
		direction: models.DirectionExpense,
		triggers:  []string{"sent to", "for account"},
		expects:   []field{fieldCounterparty, fieldReference, fieldBalance, fieldDateTime},
		extract: func(text string) (extraction, bool) {
			m := paybillAmount.FindStringSubmatch(text)
			if m == nil {
				return extraction{}, false
			}
			ex := extraction{amount: m[1]}
			if c := paybillCounterparty.FindStringSubmatch(text); c != nil {
				ex.counterparty = c[1]
				ex.accountNumber = c[2]
			}
			return ex, true
		},
	},
	{
		txType:    models.TypeTill,
		direction: models.DirectionExpense,
		triggers:  []string{"paid to"},
		expects:   []field{fieldCounterparty, fieldReference, fieldBalance, fieldDateTime},
		extract:   simpleExtractor(tillAmount, tillCounterparty),
	},
	{
		txType:       models.TypeWithdrawal,
		direction:    models.DirectionExpense,
		triggers:     []string{"withdraw"},
		expects:      []field{fieldCounterparty, fieldReference, fieldBalance, fieldDateTime},
		hintKeywords: "withdrawal cash agent",
		extract:      simpleExtractor(withdrawAmount, withdrawCounterparty),
	},
	{
		txType:       models.TypeAirtime,
		direction:    models.DirectionExpense,
		triggers:     []string{"bought", "airtime"},
		expects:      []field{fieldReference, fieldBalance, fieldDateTime},
		hintKeywords: "airtime",
		extract:      simpleExtractor(airtimeAmount, airtimeRecipient),
	},
	{
		txType:       models.TypeBalance,
		direction:    models.DirectionExpense,
		triggers:     []string{"balance was"},
		expects:      []field{fieldReference, fieldBalance, fieldDateTime},
		hintKeywords: "balance enquiry",
		extract: func(text string) (extraction, bool) {
			m := costPattern.FindStringSubmatch(text)
			if m == nil {
				return extraction{}, false
			}
			return extraction{amount: m[1]}, true
		},
	},
	{
		txType:       models.TypeSent,
		direction:    models.DirectionExpense,
		triggers:     []string{"sent to"},
		expects:      []field{fieldCounterparty, fieldReference, fieldBalance, fieldDateTime},
		hintKeywords: "send money transfer",
		extract:      simpleExtractor(sentAmount, sentCounterparty),
	},
	{
		txType:       models.TypeReceived,
		direction:    models.DirectionIncome,
		triggers:     []string{"received", "from"},
		expects:      []field{fieldCounterparty, fieldReference, fieldBalance, fieldDateTime},
		hintKeywords: "received income",
		extract:      simpleExtractor(receivedAmount, receivedCounterparty),
	},
}

func simpleExtractor(amount, counterparty *regexp.Regexp) func(string) (extraction, bool) {
	return func(text string) (extraction, bool) {
		m := amount.FindStringSubmatch(text)
		if m == nil {
			return extraction{}, false
		}
		ex := extraction{amount: m[1]}
		if c := counterparty.FindStringSubmatch(text); c != nil {
			ex.counterparty = c[1]
		}
		return ex, true
	}
}

// balanceFor picks the post-transaction balance; balance enquiries report it differently.
func balanceFor(txType models.TransactionType, text string) string {
	if txType == models.TypeBalance {
		if m := accountBalance.FindStringSubmatch(text); m != nil {
			return m[1]
		}
	}
	if m := balancePattern.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	return ""
}
