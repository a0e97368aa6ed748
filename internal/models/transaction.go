package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Direction tells whether money left or entered the user's wallet.
// Amounts are always non-negative; the sign lives here.
type Direction string

const (
	DirectionExpense Direction = "expense"
	DirectionIncome  Direction = "income"
)

// TransactionType is the message template that produced a transaction
type TransactionType string

const (
	TypePaybill    TransactionType = "paybill"
	TypeTill       TransactionType = "till"
	TypeWithdrawal TransactionType = "withdrawal"
	TypeAirtime    TransactionType = "airtime"
	TypeBalance    TransactionType = "balance"
	TypeSent       TransactionType = "sent"
	TypeReceived   TransactionType = "received"
	TypeGeneric    TransactionType = "generic"
)

// TimestampSource records where OccurredAt came from
type TimestampSource string

const (
	TimestampFromMessage   TimestampSource = "message"
	TimestampFromFallback  TimestampSource = "fallback"
	TimestampFromIngestion TimestampSource = "ingestion"
)

const (
	SourceSMS    = "sms"
	SourceManual = "manual"
)

// ParsedTransaction is the parser output for one raw SMS. It is read-only once built.
type ParsedTransaction struct {
	Type              TransactionType  `json:"transaction_type"`
	Amount            decimal.Decimal  `json:"amount"`
	Direction         Direction        `json:"direction"`
	Counterparty      string           `json:"counterparty,omitempty"`
	AccountNumber     string           `json:"account_number,omitempty"`
	ProviderReference string           `json:"provider_reference,omitempty"`
	BalanceAfter      *decimal.Decimal `json:"balance_after,omitempty"`
	TransactionCost   *decimal.Decimal `json:"transaction_cost,omitempty"`
	OccurredAt        time.Time        `json:"occurred_at"`
	OccurredAtSource  TimestampSource  `json:"occurred_at_source"`
	Description       string           `json:"description"`
	CategoryHint      string           `json:"category_hint"`
	Confidence        float64          `json:"confidence"`
	MessageHash       string           `json:"message_hash"`
}

// Transaction is a persisted, categorized transaction record
type Transaction struct {
	ID                string           `json:"id" db:"id"`
	UserID            string           `json:"user_id" db:"user_id"`
	Amount            decimal.Decimal  `json:"amount" db:"amount"`
	Direction         Direction        `json:"type" db:"direction"`
	CategoryID        string           `json:"category_id" db:"category_id"`
	Description       string           `json:"description" db:"description"`
	Counterparty      string           `json:"counterparty,omitempty" db:"counterparty"`
	ProviderReference string           `json:"mpesa_transaction_id,omitempty" db:"provider_reference"`
	MessageHash       string           `json:"message_hash,omitempty" db:"message_hash"`
	BalanceAfter      *decimal.Decimal `json:"balance_after,omitempty" db:"balance_after"`
	TransactionCost   *decimal.Decimal `json:"transaction_cost,omitempty" db:"transaction_cost"`
	OccurredAt        time.Time        `json:"date" db:"occurred_at"`
	Source            string           `json:"source" db:"source"`
	ParseConfidence   float64          `json:"parse_confidence" db:"parse_confidence"`
	MpesaDetails      Metadata         `json:"mpesa_details,omitempty" db:"mpesa_details"`
	ImportSessionID   string           `json:"import_session_id,omitempty" db:"import_session_id"`
	CreatedAt         time.Time        `json:"created_at" db:"created_at"`
}

// NewTransactionFromParsed builds the record persisted for a non-duplicate parsed message
func NewTransactionFromParsed(userID, categoryID, sessionID string, p *ParsedTransaction) *Transaction {
	details := Metadata{
		"transaction_type": string(p.Type),
		"timestamp_source": string(p.OccurredAtSource),
	}
	if p.AccountNumber != "" {
		details["account_number"] = p.AccountNumber
	}
	if p.Counterparty != "" {
		details["recipient"] = p.Counterparty
	}

	return &Transaction{
		UserID:            userID,
		Amount:            p.Amount,
		Direction:         p.Direction,
		CategoryID:        categoryID,
		Description:       p.Description,
		Counterparty:      p.Counterparty,
		ProviderReference: p.ProviderReference,
		MessageHash:       p.MessageHash,
		BalanceAfter:      p.BalanceAfter,
		TransactionCost:   p.TransactionCost,
		OccurredAt:        p.OccurredAt,
		Source:            SourceSMS,
		ParseConfidence:   p.Confidence,
		MpesaDetails:      details,
		ImportSessionID:   sessionID,
	}
}
