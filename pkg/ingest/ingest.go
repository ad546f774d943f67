package ingest

import (
	"bufio"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/google/uuid"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/fieldmap"
	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/lineparser"
)

// GatewayOpener returns a gateway owned by a single Ingest call. It must not fail: an
// unreachable store is expressed as an unavailable gateway.
type GatewayOpener func(ctx context.Context) *ledger.Gateway

// Reporter receives every outcome once Ingest is done with it.
type Reporter interface {
	Report(ctx context.Context, o Outcome)
}

type Ingester struct {
	open     GatewayOpener
	reporter Reporter
}

// New returns an Ingester. reporter may be nil.
func New(open GatewayOpener, reporter Reporter) *Ingester {
	return &Ingester{open: open, reporter: reporter}
}

// Ingest parses path with the field mapping of its directory and stores the result.
// Every failure is reported through the outcome, nothing here is fatal to the caller.
func (i *Ingester) Ingest(ctx context.Context, path string) Outcome {
	o := i.ingest(ctx, path)

	if i.reporter != nil {
		i.reporter.Report(ctx, o)
	}

	return o
}

func (i *Ingester) ingest(ctx context.Context, path string) Outcome {
	o := Outcome{RunID: uuid.New(), Path: path, Status: Ignored}

	if ignored(path) {
		klog.V(4).Infof("[%s] ignoring %s", o.RunID, path)
		return o
	}

	configPath := fieldmap.ConfigPath(filepath.Dir(path))
	if _, err := os.Stat(configPath); errors.Is(err, fs.ErrNotExist) {
		klog.Warningf("[%s] no %s found for %s, skipping", o.RunID, fieldmap.Filename, path)
		o.Status = NoConfig
		return o
	}

	cfg, err := fieldmap.Load(configPath)
	if err != nil {
		klog.Errorf("[%s] %v", o.RunID, err)
		o.Status = ConfigInvalid
		o.Err = err
		return o
	}

	o.Parser = cfg.Name
	klog.Infof("[%s] processing %q with parser %q (locale %s)", o.RunID, path, cfg.Name, cfg.Locale.Tag())

	gateway := i.open(ctx)
	defer func() {
		if err := gateway.Close(); err != nil {
			klog.Warningf("[%s] failed to close DB connection: %v", o.RunID, err)
		}
	}()

	transactions, err := i.parseFile(path, cfg, &o)
	if err != nil {
		klog.Errorf("[%s] failed to read %s: %v", o.RunID, path, err)
		o.Status = ReadFailed
		o.Err = err
		return o
	}

	if cfg.InverseOrder {
		slices.Reverse(transactions)
	}

	o.Result, err = gateway.Write(ctx, transactions)
	if err != nil {
		klog.Errorf("[%s] failed to store %s: %v", o.RunID, path, err)
		o.Status = StoreFailed
		o.Err = err
		return o
	}

	o.Status = Ingested
	klog.Infof("[%s] %s: %d lines, %d entries added, %d already existed, %d failed to parse",
		o.RunID, path, o.Lines, o.Result.Accepted, o.Result.Skipped, o.Failed)

	return o
}

func (i *Ingester) parseFile(path string, cfg *fieldmap.Config, o *Outcome) ([]ledger.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var r io.Reader = f
	if cfg.Encoding != nil {
		r = cfg.Encoding.NewDecoder().Reader(f)
	}

	var transactions []ledger.Transaction
	reader := bufio.NewReader(r)

	for {
		line, readErr := reader.ReadString('\n')
		if readErr != nil && !errors.Is(readErr, io.EOF) {
			return nil, readErr
		}

		if line != "" {
			o.Lines++

			t, err := lineparser.ParseLine(strings.ToValidUTF8(line, ""), cfg, o.Lines == 1)
			switch {
			case err == nil:
				o.Parsed++
				transactions = append(transactions, t)
			case errors.Is(err, lineparser.ErrSkip):
			default:
				o.Failed++
				klog.Warningf("[%s] %s:%d: %v", o.RunID, path, o.Lines, err)
			}
		}

		if readErr != nil {
			return transactions, nil
		}
	}
}

// Scan ingests every regular file below root. Entries that cannot be read are logged and
// skipped, only an unreadable root or a cancelled ctx fail the scan.
func (i *Ingester) Scan(ctx context.Context, root string) ([]Outcome, error) {
	var outcomes []Outcome

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == root {
				return err
			}

			klog.Warningf("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if path != root && hidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() {
			return nil
		}

		outcomes = append(outcomes, i.Ingest(ctx, path))
		return nil
	})

	return outcomes, err
}

func ignored(path string) bool {
	name := filepath.Base(path)
	if name == fieldmap.Filename || hidden(name) || temporary(name) {
		return true
	}

	info, err := os.Stat(path)
	return err != nil || !info.Mode().IsRegular()
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}

var temporarySuffixes = []string{"~", ".tmp", ".swp", ".part", ".crdownload"}

func temporary(name string) bool {
	if strings.HasPrefix(name, "~$") {
		return true
	}

	for _, suffix := range temporarySuffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}

	return false
}
