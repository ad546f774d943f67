package ingest

import (
	"github.com/google/uuid"

	"github.com/bcaldwell/homeparser/pkg/ledger"
)

type Status int

const (
	// Ignored files are directories, vanished or temporary files and the field mapping itself.
	Ignored Status = iota
	NoConfig
	ConfigInvalid
	ReadFailed
	StoreFailed
	Ingested
)

var statusNames = map[Status]string{
	Ignored:       "ignored",
	NoConfig:      "no_config",
	ConfigInvalid: "config_invalid",
	ReadFailed:    "read_failed",
	StoreFailed:   "store_failed",
	Ingested:      "ingested",
}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown"
}

// Outcome describes one Ingest call.
type Outcome struct {
	RunID  uuid.UUID
	Path   string
	Status Status
	// Parser is the name of the field mapping used, empty when none was loaded.
	Parser string

	// Lines counts every line read, Parsed the ones that produced a transaction and
	// Failed the ones rejected with a parse error. Skipped header and blank lines are
	// only in Lines.
	Lines  int
	Parsed int
	Failed int
	Result ledger.WriteResult

	Err error
}
