package lineparser

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/bcaldwell/homeparser/pkg/fieldmap"
	"github.com/bcaldwell/homeparser/pkg/fingerprint"
	"github.com/bcaldwell/homeparser/pkg/ledger"
)

var (
	// ErrSkip is returned for lines that carry no transaction: the header line and blank lines.
	ErrSkip = errors.New("line skipped")
	// ErrParse matches every *ParseError.
	ErrParse = errors.New("line could not be parsed")
)

var quoted = regexp.MustCompile(`^(['"])(.*)(['"])$`)

type ParseError struct {
	Role fieldmap.Role
	Text string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Role == "" {
		return fmt.Sprintf("%v: %q", e.Err, e.Text)
	}
	return fmt.Sprintf("failed to parse %s %q: %v", e.Role, e.Text, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// ParseLine maps one raw line to a transaction according to cfg. raw is kept verbatim on
// the result and is what the fingerprint is computed from. When cfg has type rules the
// type field holds the matched payment code.
func ParseLine(raw string, cfg *fieldmap.Config, isFirstLine bool) (ledger.Transaction, error) {
	if cfg.Header && isFirstLine {
		return ledger.Transaction{}, ErrSkip
	}

	line := strings.TrimRight(raw, "\r\n")
	if strings.TrimSpace(line) == "" {
		return ledger.Transaction{}, ErrSkip
	}

	fields := strings.Split(line, cfg.Separator)
	if len(fields) < cfg.MinFields() {
		return ledger.Transaction{}, &ParseError{
			Text: line,
			Err:  fmt.Errorf("expected at least %d fields, got %d", cfg.MinFields(), len(fields)),
		}
	}

	for i, f := range fields {
		fields[i] = unquote(f)
	}

	field := func(role fieldmap.Role) string {
		column, ok := cfg.Column(role)
		if !ok || column.Number >= len(fields) {
			return ""
		}
		return fields[column.Number]
	}

	t := ledger.Transaction{
		Parser:      cfg.Name,
		Account:     field(fieldmap.RoleAccount),
		Type:        field(fieldmap.RoleType),
		Payee:       field(fieldmap.RolePayee),
		Description: field(fieldmap.RoleDesc),
		Raw:         raw,
		Fingerprint: fingerprint.Sum(raw),
	}

	if code, ok := cfg.TypeCode(t.Type); ok {
		t.Type = strconv.Itoa(code)
	}

	dateColumn, _ := cfg.Column(fieldmap.RoleDate)
	dateText := field(fieldmap.RoleDate)

	date, err := cfg.Locale.ParseDate(dateText, dateColumn.Format, cfg.Location())
	if err != nil {
		return ledger.Transaction{}, &ParseError{Role: fieldmap.RoleDate, Text: dateText, Err: err}
	}
	t.Date = date

	sumText := field(fieldmap.RoleSum)

	t.Amount, err = cfg.Locale.ParseAmount(sumText)
	if err != nil {
		return ledger.Transaction{}, &ParseError{Role: fieldmap.RoleSum, Text: sumText, Err: err}
	}

	return t, nil
}

// unquote strips one layer of matching single or double quotes.
func unquote(field string) string {
	m := quoted.FindStringSubmatch(field)
	if m == nil || m[1] != m[3] {
		return field
	}
	return m[2]
}
