package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is the per-student aggregate. Paid is a cache of the sum of all
// non-deleted entries and may be rebuilt from the entry log at any time.
type Account struct {
	AccountID string          `json:"account_id"`
	TotalFees decimal.Decimal `json:"total_fees"`
	Paid      decimal.Decimal `json:"paid"`
	Version   int64           `json:"version"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount returns the zero-valued aggregate of an account that has never been written.
func NewAccount(accountID string) Account {
	return Account{
		AccountID: accountID,
		TotalFees: decimal.Zero,
		Paid:      decimal.Zero,
	}
}

func (a Account) Due() decimal.Decimal {
	return a.TotalFees.Sub(a.Paid)
}

// AccountState is the read model handed to statement and reminder consumers.
type AccountState struct {
	AccountID string          `json:"account_id"`
	TotalFees decimal.Decimal `json:"total_fees"`
	Paid      decimal.Decimal `json:"paid"`
	Due       decimal.Decimal `json:"due"`
	Version   int64           `json:"version"`
}

// Statement is an account state plus its active entries, newest first,
// both read as of the same version.
type Statement struct {
	State   AccountState  `json:"state"`
	Entries []LedgerEntry `json:"entries"`
}
