package models

import "github.com/shopspring/decimal"

// BatchAssessmentRequest adds the same fee to every member of a batch.
// Amount is the positive magnitude; each member receives an entry of -Amount.
type BatchAssessmentRequest struct {
	BatchID string          `json:"batch_id"`
	Amount  decimal.Decimal `json:"amount"`
	Note    string          `json:"note,omitempty"`
}

type BatchFailure struct {
	AccountID string `json:"account_id"`
	Reason    string `json:"reason"` // error kind, e.g. not_found
	Message   string `json:"message"`
	Err       error  `json:"-"`
}

type BatchResult struct {
	RunID     string         `json:"run_id"`
	BatchID   string         `json:"batch_id"`
	Succeeded []string       `json:"succeeded"`
	Failed    []BatchFailure `json:"failed"`
}

// BatchSummary mirrors the per-class fee overview: totals across the batch snapshot.
type BatchSummary struct {
	BatchID   string          `json:"batch_id"`
	Students  int             `json:"students"`
	TotalFees decimal.Decimal `json:"total_fees"`
	Collected decimal.Decimal `json:"collected"`
	Due       decimal.Decimal `json:"due"`
}
