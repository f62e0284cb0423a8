package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type EntryKind string

const (
	KindPayment    EntryKind = "payment"
	KindAssessment EntryKind = "assessment"
)

// LedgerEntry represents a single signed fee record for a student account
type LedgerEntry struct {
	ID            string          `json:"id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"` // positive = payment received, negative = fee assessed
	Note          string          `json:"note,omitempty"`
	AttachmentRef string          `json:"attachment_ref,omitempty"` // opaque proof reference, never resolved here
	CreatedAt     time.Time       `json:"created_at"`
	Sequence      int64           `json:"sequence"` // account version produced by appending this entry
	DeletedAt     *time.Time      `json:"deleted_at,omitempty"`
}

func (e LedgerEntry) Deleted() bool {
	return e.DeletedAt != nil
}

func (e LedgerEntry) Kind() EntryKind {
	if e.Amount.IsNegative() {
		return KindAssessment
	}
	return KindPayment
}
