package fieldmap

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/itchyny/timefmt-go"
	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
)

// Locale holds the number and date conventions of one field mapping. It is passed to the
// parser explicitly so files with different locales can be parsed at the same time.
type Locale struct {
	tag     language.Tag
	decimal string
	group   []string
	months  []monthName
}

type monthName struct {
	local   string
	english string
}

type localeInfo struct {
	tag     language.Tag
	decimal string
	group   []string
	// long and short month names, lower case
	months [][]string
}

var (
	commaGroup = []string{","}
	dotGroup   = []string{"."}
	spaceGroup = []string{" ", "\u00a0", "\u202f"}
	swissGroup = []string{"'", "’"}
)

var englishMonths = []string{
	"January", "February", "March", "April", "May", "June",
	"July", "August", "September", "October", "November", "December",
}

var localeTable = []localeInfo{
	{tag: language.English, decimal: ".", group: commaGroup},
	{tag: language.German, decimal: ",", group: dotGroup, months: germanMonths},
	{tag: language.MustParse("de-CH"), decimal: ".", group: swissGroup, months: germanMonths},
	{tag: language.French, decimal: ",", group: spaceGroup, months: frenchMonths},
	{tag: language.Spanish, decimal: ",", group: dotGroup, months: spanishMonths},
	{tag: language.Italian, decimal: ",", group: dotGroup, months: italianMonths},
	{tag: language.Dutch, decimal: ",", group: dotGroup, months: dutchMonths},
	{tag: language.Portuguese, decimal: ",", group: dotGroup, months: portugueseMonths},
	{tag: language.Danish, decimal: ",", group: dotGroup},
	{tag: language.Russian, decimal: ",", group: spaceGroup},
	{tag: language.Ukrainian, decimal: ",", group: spaceGroup},
	{tag: language.Polish, decimal: ",", group: spaceGroup},
	{tag: language.Czech, decimal: ",", group: spaceGroup},
	{tag: language.Swedish, decimal: ",", group: spaceGroup},
	{tag: language.Finnish, decimal: ",", group: spaceGroup},
	{tag: language.Norwegian, decimal: ",", group: spaceGroup},
	{tag: language.Japanese, decimal: ".", group: commaGroup},
	{tag: language.Chinese, decimal: ".", group: commaGroup},
}

var localeMatcher = func() language.Matcher {
	tags := make([]language.Tag, len(localeTable))
	for i, l := range localeTable {
		tags[i] = l.tag
	}
	return language.NewMatcher(tags)
}()

// ResolveLocale accepts POSIX (de_DE.UTF-8) and BCP 47 (de-DE) identifiers. C and POSIX
// select plain dot decimals without grouping.
func ResolveLocale(id string) (Locale, error) {
	name := id
	if i := strings.IndexAny(name, ".@"); i >= 0 {
		name = name[:i]
	}

	switch strings.ToUpper(name) {
	case "C", "POSIX":
		return Locale{tag: language.Und, decimal: "."}, nil
	}

	tag, err := language.Parse(strings.ReplaceAll(name, "_", "-"))
	if err != nil {
		return Locale{}, fmt.Errorf("unsupported locale %q: %w", id, err)
	}

	_, index, confidence := localeMatcher.Match(tag)
	if confidence == language.No {
		return Locale{}, fmt.Errorf("unsupported locale %q", id)
	}

	info := localeTable[index]

	l := Locale{
		tag:     tag,
		decimal: info.decimal,
		group:   info.group,
	}

	for i, names := range info.months {
		for _, n := range names {
			l.months = append(l.months, monthName{local: n, english: englishMonths[i]})
		}
	}

	// longest first so "januar" wins over "jan"
	sort.SliceStable(l.months, func(i, j int) bool {
		return len(l.months[i].local) > len(l.months[j].local)
	})

	return l, nil
}

// Tag is the language the locale id resolved to, und for C and POSIX.
func (l Locale) Tag() language.Tag {
	return l.tag
}

func (l Locale) DecimalSeparator() string {
	return l.decimal
}

// ParseAmount reads a number written with the locale's grouping and decimal separators.
func (l Locale) ParseAmount(text string) (decimal.Decimal, error) {
	s := strings.TrimSpace(text)
	s = strings.Replace(s, "\u2212", "-", 1)
	s = strings.TrimPrefix(s, "+")

	for _, g := range l.group {
		s = strings.ReplaceAll(s, g, "")
	}

	if l.decimal != "" && l.decimal != "." {
		s = strings.Replace(s, l.decimal, ".", 1)
	}

	if s == "" {
		return decimal.Zero, fmt.Errorf("empty amount")
	}

	return decimal.NewFromString(s)
}

// ParseDate reads text with a strptime style format. Localized month names are accepted
// for locales that define them.
func (l Locale) ParseDate(text, format string, loc *time.Location) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}

	if len(l.months) > 0 {
		text = l.normalizeMonths(text)
		format = strings.NewReplacer("%b", "%B", "%h", "%B").Replace(format)
	}

	return timefmt.ParseInLocation(text, format, loc)
}

// normalizeMonths swaps the first localized month name in text for the full English one.
func (l Locale) normalizeMonths(text string) string {
	lower := strings.ToLower(text)
	if len(lower) != len(text) {
		return text
	}

	for _, m := range l.months {
		if i := strings.Index(lower, m.local); i >= 0 {
			return text[:i] + m.english + text[i+len(m.local):]
		}
	}

	return text
}

var germanMonths = [][]string{
	{"januar", "jan"},
	{"februar", "feb"},
	{"märz", "mär", "mrz"},
	{"april", "apr"},
	{"mai"},
	{"juni", "jun"},
	{"juli", "jul"},
	{"august", "aug"},
	{"september", "sept", "sep"},
	{"oktober", "okt"},
	{"november", "nov"},
	{"dezember", "dez"},
}

var frenchMonths = [][]string{
	{"janvier", "janv.", "janv"},
	{"février", "févr.", "févr"},
	{"mars"},
	{"avril", "avr.", "avr"},
	{"mai"},
	{"juin"},
	{"juillet", "juil.", "juil"},
	{"août"},
	{"septembre", "sept.", "sept"},
	{"octobre", "oct.", "oct"},
	{"novembre", "nov.", "nov"},
	{"décembre", "déc.", "déc"},
}

var spanishMonths = [][]string{
	{"enero", "ene"},
	{"febrero", "feb"},
	{"marzo", "mar"},
	{"abril", "abr"},
	{"mayo", "may"},
	{"junio", "jun"},
	{"julio", "jul"},
	{"agosto", "ago"},
	{"septiembre", "sept", "sep"},
	{"octubre", "oct"},
	{"noviembre", "nov"},
	{"diciembre", "dic"},
}

var italianMonths = [][]string{
	{"gennaio", "gen"},
	{"febbraio", "feb"},
	{"marzo", "mar"},
	{"aprile", "apr"},
	{"maggio", "mag"},
	{"giugno", "giu"},
	{"luglio", "lug"},
	{"agosto", "ago"},
	{"settembre", "set"},
	{"ottobre", "ott"},
	{"novembre", "nov"},
	{"dicembre", "dic"},
}

var dutchMonths = [][]string{
	{"januari", "jan"},
	{"februari", "feb"},
	{"maart", "mrt"},
	{"april", "apr"},
	{"mei"},
	{"juni", "jun"},
	{"juli", "jul"},
	{"augustus", "aug"},
	{"september", "sep"},
	{"oktober", "okt"},
	{"november", "nov"},
	{"december", "dec"},
}

var portugueseMonths = [][]string{
	{"janeiro", "jan"},
	{"fevereiro", "fev"},
	{"março", "mar"},
	{"abril", "abr"},
	{"maio", "mai"},
	{"junho", "jun"},
	{"julho", "jul"},
	{"agosto", "ago"},
	{"setembro", "set"},
	{"outubro", "out"},
	{"novembro", "nov"},
	{"dezembro", "dez"},
}
