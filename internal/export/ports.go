// Package export defines the outbound port for mirroring ledger entries
// to an external spreadsheet.
package export

import (
	"context"
	"time"
)

// LedgerEntry is the flattened, display-ready form of a transaction.
type LedgerEntry struct {
	TransactionID string
	GroupID       string
	GroupName     string
	Description   string
	Amount        float64
	PayerName     string
	CreatedAt     time.Time
}

// Kind renders the entry's direction for the export row.
func (e LedgerEntry) Kind() string {
	if e.Amount < 0 {
		return "income"
	}
	return "expense"
}

// LedgerWriter appends an entry and returns an opaque reference to the
// written row.
type LedgerWriter interface {
	Append(ctx context.Context, entry LedgerEntry) (ref string, err error)
}
