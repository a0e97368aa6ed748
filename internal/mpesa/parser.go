// Package mpesa turns M-Pesa notification messages into structured transactions.
//
// A message is matched against an ordered list of templates (paybill, till, withdrawal,
// airtime, balance enquiry, sent, received). The first template whose trigger keywords are
// all present and which yields an amount wins. When no template applies a generic extractor
// looks for any currency amount; if there is none the message is rejected with a ParseError.
package mpesa

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/pesatrack/backend/internal/models"
	"github.com/shopspring/decimal"
)

const (
	fullConfidence      = 1.0
	missingFieldPenalty = 0.2
	genericConfidence   = 0.3
)

// ParseError is returned when a message cannot be turned into a transaction
type ParseError struct {
	Reason string
	Input  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("unable to parse message: %s", e.Reason)
}

// Parser extracts transactions from raw SMS text. It holds no mutable state and is safe
// for concurrent use.
type Parser struct {
	location *time.Location
	now      func() time.Time
}

// Option configures a Parser
type Option func(*Parser)

// WithLocation sets the zone in-message timestamps are interpreted in
func WithLocation(loc *time.Location) Option {
	return func(p *Parser) {
		if loc != nil {
			p.location = loc
		}
	}
}

// WithClock overrides the ingestion wall clock
func WithClock(now func() time.Time) Option {
	return func(p *Parser) {
		if now != nil {
			p.now = now
		}
	}
}

// EastAfricaTime is the zone M-Pesa stamps its messages in
var EastAfricaTime = time.FixedZone("EAT", 3*60*60)

func NewParser(opts ...Option) *Parser {
	p := &Parser{
		location: EastAfricaTime,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse extracts a transaction from raw. The timestamp comes from the message when it has a
// valid date clause, else from fallback, else from the ingestion clock.
func (p *Parser) Parse(raw string, fallback *time.Time) (*models.ParsedTransaction, error) {
	text := NormalizeWhitespace(raw)
	if text == "" {
		return nil, &ParseError{Reason: "empty message", Input: text}
	}
	lower := strings.ToLower(text)

	for _, t := range templates {
		if !t.triggered(lower) {
			continue
		}
		ex, ok := t.extract(text)
		if !ok {
			continue
		}
		amount, err := parseAmount(ex.amount)
		if err != nil {
			continue
		}
		return p.build(raw, text, t, ex, amount, fallback), nil
	}

	return p.parseGeneric(raw, text, lower, fallback)
}

func (p *Parser) build(raw, text string, t template, ex extraction, amount decimal.Decimal, fallback *time.Time) *models.ParsedTransaction {
	tx := &models.ParsedTransaction{
		Type:          t.txType,
		Amount:        amount,
		Direction:     t.direction,
		Counterparty:  cleanCounterparty(ex.counterparty),
		AccountNumber: strings.TrimRight(ex.accountNumber, ".,"),
		MessageHash:   HashMessage(raw),
	}

	if m := referencePattern.FindStringSubmatch(text); m != nil {
		tx.ProviderReference = m[1]
	}
	if b := balanceFor(t.txType, text); b != "" {
		if bal, err := parseAmount(b); err == nil {
			tx.BalanceAfter = &bal
		}
	}
	if m := costPattern.FindStringSubmatch(text); m != nil && t.txType != models.TypeBalance {
		if cost, err := parseAmount(m[1]); err == nil {
			tx.TransactionCost = &cost
		}
	}

	fromMessage := p.resolveTimestamp(tx, text, fallback)

	missing := 0
	for _, f := range t.expects {
		switch f {
		case fieldCounterparty:
			if tx.Counterparty == "" {
				missing++
			}
		case fieldReference:
			if tx.ProviderReference == "" {
				missing++
			}
		case fieldBalance:
			if tx.BalanceAfter == nil {
				missing++
			}
		case fieldDateTime:
			if !fromMessage {
				missing++
			}
		}
	}
	tx.Confidence = fullConfidence - missingFieldPenalty*float64(missing)
	if tx.Confidence < genericConfidence {
		tx.Confidence = genericConfidence
	}

	tx.Description = describe(t.txType, tx.Counterparty)
	tx.CategoryHint = strings.TrimSpace(tx.Counterparty + " " + t.hintKeywords)
	return tx
}

func (p *Parser) parseGeneric(raw, text, lower string, fallback *time.Time) (*models.ParsedTransaction, error) {
	m := anyAmountPattern.FindStringSubmatch(text)
	if m == nil {
		return nil, &ParseError{Reason: "no recognizable M-Pesa amount", Input: text}
	}
	amount, err := parseAmount(m[1])
	if err != nil {
		return nil, &ParseError{Reason: fmt.Sprintf("invalid amount %q", m[1]), Input: text}
	}

	tx := &models.ParsedTransaction{
		Type:        models.TypeGeneric,
		Amount:      amount,
		Direction:   models.DirectionExpense,
		MessageHash: HashMessage(raw),
		Confidence:  genericConfidence,
	}
	if strings.Contains(lower, "received") {
		tx.Direction = models.DirectionIncome
	}
	for _, ref := range anyReferencePattern.FindAllStringSubmatch(text, -1) {
		if looksLikeReference(ref[1]) {
			tx.ProviderReference = ref[1]
			break
		}
	}
	if b := balanceFor(models.TypeGeneric, text); b != "" {
		if bal, err := parseAmount(b); err == nil {
			tx.BalanceAfter = &bal
		}
	}
	p.resolveTimestamp(tx, text, fallback)

	tx.Description = describe(models.TypeGeneric, "")
	tx.CategoryHint = text
	return tx, nil
}

// resolveTimestamp applies message > fallback > ingestion precedence and reports whether
// the message carried its own timestamp.
func (p *Parser) resolveTimestamp(tx *models.ParsedTransaction, text string, fallback *time.Time) bool {
	if ts, ok := p.extractDateTime(text); ok {
		tx.OccurredAt = ts
		tx.OccurredAtSource = models.TimestampFromMessage
		return true
	}
	if fallback != nil && !fallback.IsZero() {
		tx.OccurredAt = *fallback
		tx.OccurredAtSource = models.TimestampFromFallback
		return false
	}
	tx.OccurredAt = p.now()
	tx.OccurredAtSource = models.TimestampFromIngestion
	return false
}

// extractDateTime reads "on D/M/YY at H:MM AM|PM"
func (p *Parser) extractDateTime(text string) (time.Time, bool) {
	m := dateTimePattern.FindStringSubmatch(text)
	if m == nil {
		return time.Time{}, false
	}
	day, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	year, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])

	if len(m[3]) == 2 {
		year += 2000
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || hour < 1 || hour > 12 || minute > 59 {
		return time.Time{}, false
	}
	if strings.EqualFold(m[6], "PM") && hour != 12 {
		hour += 12
	} else if strings.EqualFold(m[6], "AM") && hour == 12 {
		hour = 0
	}

	ts := time.Date(year, time.Month(month), day, hour, minute, 0, 0, p.location)
	// time.Date normalizes 31/2 into March; treat that as unparsable
	if ts.Day() != day || int(ts.Month()) != month {
		return time.Time{}, false
	}
	return ts, true
}

// NormalizeWhitespace trims and collapses every run of whitespace to one space
func NormalizeWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// HashMessage returns the hex SHA-256 of the whitespace-normalized message
func HashMessage(raw string) string {
	sum := sha256.Sum256([]byte(NormalizeWhitespace(raw)))
	return hex.EncodeToString(sum[:])
}

// parseAmount converts "1,234.56" to a decimal
func parseAmount(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	s = strings.TrimSuffix(s, ".")
	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, fmt.Errorf("negative amount %s", s)
	}
	return d, nil
}

func cleanCounterparty(s string) string {
	return strings.TrimSpace(strings.TrimRight(NormalizeWhitespace(s), ".,;:"))
}

// looksLikeReference requires both letters and digits so plain numbers and words are skipped
func looksLikeReference(s string) bool {
	var letters, digits bool
	for _, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits = true
		case unicode.IsLetter(r):
			letters = true
		}
	}
	return letters && digits
}

func describe(t models.TransactionType, counterparty string) string {
	var d string
	switch t {
	case models.TypePaybill:
		d = "M-Pesa paybill payment to"
	case models.TypeTill:
		d = "M-Pesa till payment to"
	case models.TypeWithdrawal:
		d = "M-Pesa cash withdrawal from"
	case models.TypeAirtime:
		d = "M-Pesa airtime purchase"
		if counterparty != "" {
			d += " for"
		}
	case models.TypeBalance:
		return "M-Pesa balance enquiry"
	case models.TypeSent:
		d = "M-Pesa transfer to"
	case models.TypeReceived:
		d = "M-Pesa payment received from"
	default:
		return "M-Pesa transaction"
	}
	if counterparty == "" {
		return strings.TrimSuffix(strings.TrimSuffix(strings.TrimSuffix(d, " to"), " from"), " for")
	}
	return d + " " + counterparty
}
