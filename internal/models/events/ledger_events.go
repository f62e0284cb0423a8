package events

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	TopicEntryRecorded   = "ledger.entry_recorded"
	TopicEntryReversed   = "ledger.entry_reversed"
	TopicBaselineUpdated = "ledger.baseline_updated"
	TopicAccountRepaired = "ledger.account_repaired"
	TopicBatchAssessed   = "ledger.batch_assessed"
)

type EntryRecorded struct {
	EntryID    string          `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type EntryReversed struct {
	EntryID    string          `json:"entry_id"`
	AccountID  string          `json:"account_id"`
	Amount     decimal.Decimal `json:"amount"`
	Paid       decimal.Decimal `json:"paid"`
	Due        decimal.Decimal `json:"due"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type BaselineUpdated struct {
	AccountID  string          `json:"account_id"`
	TotalFees  decimal.Decimal `json:"total_fees"`
	Due        decimal.Decimal `json:"due"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type AccountRepaired struct {
	AccountID  string          `json:"account_id"`
	Paid       decimal.Decimal `json:"paid"`
	Drift      decimal.Decimal `json:"drift"`
	Version    int64           `json:"version"`
	OccurredAt time.Time       `json:"occurred_at"`
}

type BatchAssessed struct {
	RunID      string          `json:"run_id"`
	BatchID    string          `json:"batch_id"`
	Amount     decimal.Decimal `json:"amount"`
	Note       string          `json:"note,omitempty"`
	Succeeded  int             `json:"succeeded"`
	Failed     int             `json:"failed"`
	OccurredAt time.Time       `json:"occurred_at"`
}
