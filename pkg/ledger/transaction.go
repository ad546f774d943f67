package ledger

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/uptrace/bun"
)

const DefaultTable = "entries"

// Transaction is one parsed ledger line.
type Transaction struct {
	Parser      string
	Date        time.Time
	Account     string
	Type        string
	Payee       string
	Description string
	Amount      decimal.Decimal
	// Raw is the line exactly as read, line terminator included
	Raw         string
	Fingerprint string
}

// Entry is the stored form of a Transaction. (date, hash) identifies an entry.
type Entry struct {
	bun.BaseModel `bun:"table:entries"`

	ID          int64     `bun:"id,pk,autoincrement"`
	DateParsed  time.Time `bun:"date_parsed,type:timestamp,nullzero,notnull,default:current_timestamp"`
	Date        time.Time `bun:"date,type:timestamp,notnull"`
	Parser      string    `bun:"parser,type:varchar,notnull"`
	Account     string    `bun:"account,type:varchar,nullzero"`
	Type        string    `bun:"type,type:varchar,nullzero"`
	Payee       string    `bun:"payee,type:varchar,nullzero"`
	Description string    `bun:"description,type:varchar,nullzero"`
	Sum         float64   `bun:"sum,type:float8,notnull"`
	Orig        string    `bun:"orig,type:varchar,notnull"`
	Hash        string    `bun:"hash,type:varchar(40),notnull"`
}

func NewEntry(t Transaction) *Entry {
	return &Entry{
		Date:        t.Date,
		Parser:      t.Parser,
		Account:     t.Account,
		Type:        t.Type,
		Payee:       t.Payee,
		Description: t.Description,
		Sum:         t.Amount.InexactFloat64(),
		Orig:        t.Raw,
		Hash:        t.Fingerprint,
	}
}
