// Package expense defines the expense record value type shared by the
// protocol codec and the storage engine.
package expense

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/moussakabalan/multi-user-expense-tracker/internal/model/customerr"
)

// Record is one expense entry. Records are immutable once constructed and
// carry no identifier: a record is distinguished only by its position in a
// user's ledger and its field values.
type Record struct {
	Amount   decimal.Decimal `json:"amount"`
	Category string          `json:"category"`
	Date     Date            `json:"date"`
	Note     string          `json:"note"`
}

// Validate checks the ledger invariants: a strictly positive amount and a
// non-empty category. Amounts are decimals, so NaN and infinities cannot be
// represented and are rejected upstream at parse time.
func (r Record) Validate() error {
	if r.Amount.Sign() <= 0 {
		return &customerr.ValidationError{Field: "amount", Reason: "must be positive"}
	}
	if strings.TrimSpace(r.Category) == "" {
		return &customerr.ValidationError{Field: "category", Reason: "must not be empty"}
	}
	if r.Date.IsZero() {
		return &customerr.ValidationError{Field: "date", Reason: "must be set"}
	}
	return nil
}

// Equal compares records by value. Amounts compare numerically, so 42.50
// and 42.5 are the same amount regardless of how they were parsed.
func (r Record) Equal(other Record) bool {
	return r.Amount.Equal(other.Amount) &&
		r.Category == other.Category &&
		r.Date.Equal(other.Date) &&
		r.Note == other.Note
}

// DisplayAmount renders the amount with exactly two fractional digits for
// human-facing output. The stored value keeps full precision.
func (r Record) DisplayAmount() string {
	return r.Amount.StringFixed(2)
}
