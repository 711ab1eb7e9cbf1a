package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
)

type CompletionStatus string

const (
	CompletionPending  CompletionStatus = "pending"
	CompletionCredited CompletionStatus = "credited"
	CompletionReversed CompletionStatus = "reversed"
)

// OfferCompletion is one user-initiated offer attempt. Its ID is the
// caller-supplied click ID handed to the network at offer start, which makes
// it both the tracking key echoed back in postbacks and the idempotency key
// for crediting. Rows are never deleted; only the ledger engine mutates them.
type OfferCompletion struct {
	ID                    string           `gorm:"column:id;primaryKey"`
	UserID                string           `gorm:"column:user_id;index"`
	OfferID               string           `gorm:"column:offer_id;index:idx_completion_fallback"`
	Provider              string           `gorm:"column:provider"`
	Payout                int64            `gorm:"column:payout"`
	Status                CompletionStatus `gorm:"column:status;index:idx_completion_fallback"`
	ExternalTransactionID string           `gorm:"column:external_transaction_id"`
	Metadata              datatypes.JSON   `gorm:"column:metadata"`
	CreatedAt             time.Time        `gorm:"column:created_at"`
	CompletedAt           *time.Time       `gorm:"column:completed_at"`
	CreditedAt            *time.Time       `gorm:"column:credited_at"`
	ReversedAt            *time.Time       `gorm:"column:reversed_at"`
}

func (OfferCompletion) TableName() string { return "offer_completions" }

type TransactionType string

const (
	TypeCredit TransactionType = "credit"
	TypeDebit  TransactionType = "debit"
)

const (
	SourceOfferwall = "offerwall"
	SourceAdWatch   = "ad_watch"
)

// Transaction is an append-only ledger entry. Entries are hash-chained per
// user so the ledger can be audited against tampering, and the unique
// (type, source, source_id) index backstops duplicate appends from replayed
// postbacks.
type Transaction struct {
	ID              string          `gorm:"column:id;primaryKey"`
	UserID          string          `gorm:"column:user_id;index"`
	Type            TransactionType `gorm:"column:type;uniqueIndex:uq_tx_source"`
	Amount          int64           `gorm:"column:amount"`
	Source          string          `gorm:"column:source;uniqueIndex:uq_tx_source"`
	SourceID        string          `gorm:"column:source_id;uniqueIndex:uq_tx_source"`
	Status          string          `gorm:"column:status"`
	TransactionCode string          `gorm:"column:transaction_code"`
	PreviousHash    string          `gorm:"column:previous_hash"`
	Hash            string          `gorm:"column:hash"`
	Metadata        datatypes.JSON  `gorm:"column:metadata"`
	CreatedAt       time.Time       `gorm:"column:created_at"`
}

func (Transaction) TableName() string { return "transactions" }

func (t *Transaction) HashFields() map[string]string {
	return map[string]string{
		"id":         t.ID,
		"user_id":    t.UserID,
		"type":       string(t.Type),
		"amount":     fmt.Sprintf("%d", t.Amount),
		"source":     t.Source,
		"source_id":  t.SourceID,
		"created_at": t.CreatedAt.UTC().Format(time.RFC3339Nano),

		"previous_hash": t.PreviousHash,
	}
}

func (t *Transaction) GenerateHash() string {
	fields := t.HashFields()
	var keys []string
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, fields[k]))
	}

	joined := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(joined))
	return hex.EncodeToString(hash[:])
}

// Balance is the denormalized points total per user. It is only ever
// mutated inside the ledger engine's transactions so it reconciles to the
// transaction ledger sum.
type Balance struct {
	ID            string    `gorm:"column:id;primaryKey"`
	UserID        string    `gorm:"column:user_id;uniqueIndex"`
	Points        int64     `gorm:"column:points"`
	TotalEarnings int64     `gorm:"column:total_earnings"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (Balance) TableName() string { return "balances" }
