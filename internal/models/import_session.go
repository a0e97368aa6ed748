package models

import "time"

// ImportSession aggregates the outcome of one batch import. It is built up while the batch
// runs and persisted once, after the last message.
type ImportSession struct {
	SessionID           string     `json:"session_id" db:"id"`
	UserID              string     `json:"-" db:"user_id"`
	TotalMessages       int        `json:"total_messages" db:"total_messages"`
	SuccessfulImports   int        `json:"successful_imports" db:"successful_imports"`
	DuplicatesFound     int        `json:"duplicates_found" db:"duplicates_found"`
	ParsingErrors       int        `json:"parsing_errors" db:"parsing_errors"`
	TransactionsCreated StringList `json:"transactions_created" db:"transactions_created"`
	Errors              StringList `json:"errors" db:"errors"`
	CreatedAt           time.Time  `json:"created_at" db:"created_at"`
}

// MessageOutcome is the terminal state of one message in a batch
type MessageOutcome string

const (
	OutcomePersisted         MessageOutcome = "persisted"
	OutcomeRejectedDuplicate MessageOutcome = "rejected_duplicate"
	OutcomeFailed            MessageOutcome = "failed"
)
