package fieldmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/ghodss/yaml"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/ianaindex"
)

// Filename is the name of the field mapping file expected in every watched folder.
// It describes the sibling files and is never parsed as data itself.
const Filename = "config.yml"

const DefaultDateFormat = "%Y-%m-%d"

// DefaultLocale is used when a field mapping names no locale.
const DefaultLocale = "C"

type Role string

const (
	RoleDate    Role = "date"
	RoleAccount Role = "account"
	RoleType    Role = "type"
	RolePayee   Role = "payee"
	RoleDesc    Role = "desc"
	RoleSum     Role = "sum"
)

var knownRoles = map[Role]bool{
	RoleDate:    true,
	RoleAccount: true,
	RoleType:    true,
	RolePayee:   true,
	RoleDesc:    true,
	RoleSum:     true,
}

// RequiredRoles must be mapped by every config and present on every parsed line.
var RequiredRoles = []Role{RoleDate, RoleSum}

// Column points a role at a zero based field index. Format is only used by the date role.
type Column struct {
	Number int    `json:"number"`
	Format string `json:"format,omitempty"`
}

// UnmarshalJSON accepts either a bare index (`sum: 3`) or an object (`date: {number: 0, format: "%d.%m.%Y"}`).
func (c *Column) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		return errors.New("column is empty")
	}

	var n int
	if err := json.Unmarshal(b, &n); err == nil {
		*c = Column{Number: n}
		return nil
	}

	var raw struct {
		Number *int   `json:"number"`
		Format string `json:"format"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("column must be an index or {number, format}: %s", string(b))
	}

	if raw.Number == nil {
		return fmt.Errorf("column %s has no number", string(b))
	}

	*c = Column{Number: *raw.Number, Format: raw.Format}
	return nil
}

// TypeRule maps raw type text matching Match to a numeric payment code.
type TypeRule struct {
	Match string `json:"match"`
	Code  int    `json:"code"`
}

type typeMatcher struct {
	re   *regexp.Regexp
	code int
}

type fileConfig struct {
	Name         string          `json:"name"`
	Locale       string          `json:"locale"`
	Separator    string          `json:"separator"`
	Header       bool            `json:"header"`
	Encoding     string          `json:"encoding"`
	Timezone     string          `json:"timezone"`
	InverseOrder bool            `json:"inverseOrder"`
	Types        []TypeRule      `json:"types"`
	Fields       map[Role]Column `json:"fields"`
}

// Config is a validated field mapping for one folder.
type Config struct {
	Name      string
	Separator string
	Header    bool
	Locale    Locale
	Fields    map[Role]Column

	// InverseOrder marks exports listing the newest line first. Their lines are stored
	// bottom up so entries are written oldest first.
	InverseOrder bool

	// Encoding is nil for utf-8 input.
	Encoding encoding.Encoding

	location  *time.Location
	minFields int
	types     []typeMatcher
}

// ConfigLoadError is returned for every failure to produce a Config: missing file,
// malformed yaml, invalid mapping or unsupported locale.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("failed to load field mapping %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// ConfigPath returns the field mapping path governing files in dir.
func ConfigPath(dir string) string {
	return filepath.Join(dir, Filename)
}

// Load reads and validates the field mapping at path. A mapping without a name is named
// after its directory.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}

	c, err := parse(raw, filepath.Base(filepath.Dir(path)))
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}

	return c, nil
}

// Parse validates a yaml document. Load should be preferred, it wraps errors with the file
// path and supplies the default name.
func Parse(raw []byte) (*Config, error) {
	return parse(raw, "")
}

func parse(raw []byte, defaultName string) (*Config, error) {
	var fc fileConfig
	if err := yaml.Unmarshal(raw, &fc); err != nil {
		return nil, fmt.Errorf("malformed yaml: %w", err)
	}

	if strings.TrimSpace(fc.Name) == "" {
		fc.Name = defaultName
	}

	if fc.Locale == "" {
		fc.Locale = DefaultLocale
	}

	return fc.validate()
}

func (fc fileConfig) validate() (*Config, error) {
	if strings.TrimSpace(fc.Name) == "" {
		return nil, errors.New("name is required")
	}

	if fc.Separator == "" {
		return nil, errors.New("separator is required")
	}

	locale, err := ResolveLocale(fc.Locale)
	if err != nil {
		return nil, err
	}

	c := &Config{
		Name:         fc.Name,
		Separator:    fc.Separator,
		Header:       fc.Header,
		Locale:       locale,
		Fields:       make(map[Role]Column, len(fc.Fields)),
		InverseOrder: fc.InverseOrder,
		location:     time.UTC,
	}

	for i, rule := range fc.Types {
		re, err := regexp.Compile(rule.Match)
		if err != nil {
			return nil, fmt.Errorf("types[%d]: invalid match %q: %w", i, rule.Match, err)
		}

		c.types = append(c.types, typeMatcher{re: re, code: rule.Code})
	}

	for role, column := range fc.Fields {
		if !knownRoles[role] {
			return nil, fmt.Errorf("unknown field %q", role)
		}

		if column.Number < 0 {
			return nil, fmt.Errorf("field %s has negative column %d", role, column.Number)
		}

		if role == RoleDate && column.Format == "" {
			column.Format = DefaultDateFormat
		}

		c.Fields[role] = column
	}

	for _, role := range RequiredRoles {
		column, ok := c.Fields[role]
		if !ok {
			return nil, fmt.Errorf("field %s is required", role)
		}

		c.minFields = max(c.minFields, column.Number+1)
	}

	if fc.Timezone != "" {
		c.location, err = time.LoadLocation(fc.Timezone)
		if err != nil {
			return nil, fmt.Errorf("unknown timezone %q: %w", fc.Timezone, err)
		}
	}

	c.Encoding, err = lookupEncoding(fc.Encoding)
	if err != nil {
		return nil, err
	}

	return c, nil
}

func lookupEncoding(name string) (encoding.Encoding, error) {
	switch strings.ToLower(name) {
	case "", "utf-8", "utf8":
		return nil, nil
	}

	enc, err := ianaindex.IANA.Encoding(name)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}

	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}

	return enc, nil
}

// Column returns the column mapped to role.
func (c *Config) Column(role Role) (Column, bool) {
	column, ok := c.Fields[role]
	return column, ok
}

// MinFields is the number of fields a line needs for every required role to resolve.
func (c *Config) MinFields() int {
	return c.minFields
}

// TypeCode returns the code of the first type rule matching text. ok is false when the
// mapping has no type rules; text matching no rule gets code 0.
func (c *Config) TypeCode(text string) (code int, ok bool) {
	if len(c.types) == 0 {
		return 0, false
	}

	for _, t := range c.types {
		if t.re.MatchString(text) {
			return t.code, true
		}
	}

	return 0, true
}

// Location is the time zone parsed dates are placed in.
func (c *Config) Location() *time.Location {
	if c.location == nil {
		return time.UTC
	}
	return c.location
}
