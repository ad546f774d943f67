// Package homebank writes stored entries in the HomeBank CSV import format.
//
// Each row is date;payment;info;payee;memo;amount;category;tags with a two digit year
// date, no header and '.' as decimal separator.
package homebank

import (
	"encoding/csv"
	"io"
	"strconv"

	"github.com/bcaldwell/homeparser/pkg/ledger"
)

const (
	DateFormat = "06-01-02"

	// payment codes run from 0 (none) to 10 (FI fee)
	maxPayment = 10
)

// Write writes one row per entry. Entry types that are not a payment code are written as 0.
func Write(w io.Writer, entries []ledger.Entry) error {
	cw := csv.NewWriter(w)
	cw.Comma = ';'

	for _, e := range entries {
		row := []string{
			e.Date.Format(DateFormat),
			strconv.Itoa(Payment(e.Type)),
			"",
			e.Payee,
			e.Description,
			strconv.FormatFloat(e.Sum, 'f', -1, 64),
			"",
			"",
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// Payment maps a stored type to a HomeBank payment code.
func Payment(entryType string) int {
	code, err := strconv.Atoi(entryType)
	if err != nil || code < 0 || code > maxPayment {
		return 0
	}
	return code
}
