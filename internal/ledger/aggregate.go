package ledger

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/sheikh-saqib/tuition-fee-ledger/internal/models"
)

// SumActive is the authoritative paid total: the sum of every non-deleted entry.
func SumActive(entries []models.LedgerEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		if e.Deleted() {
			continue
		}
		total = total.Add(e.Amount)
	}
	return total
}

// Drift is how far the cached paid total is from the entry log. Zero means consistent.
func Drift(acc models.Account, entries []models.LedgerEntry) decimal.Decimal {
	return acc.Paid.Sub(SumActive(entries))
}

func StateOf(acc models.Account) models.AccountState {
	return models.AccountState{
		AccountID: acc.AccountID,
		TotalFees: acc.TotalFees,
		Paid:      acc.Paid,
		Due:       acc.Due(),
		Version:   acc.Version,
	}
}

// HistoryNewestFirst drops deleted entries and orders the rest by creation
// time descending; entries created at the same instant keep insertion order,
// latest first.
func HistoryNewestFirst(entries []models.LedgerEntry) []models.LedgerEntry {
	history := make([]models.LedgerEntry, 0, len(entries))
	for _, e := range entries {
		if !e.Deleted() {
			history = append(history, e)
		}
	}
	sort.SliceStable(history, func(i, j int) bool {
		a, b := history[i], history[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.Sequence > b.Sequence
	})
	return history
}
