package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcaldwell/homeparser/pkg/fieldmap"
	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/ledger/ledgertest"
)

const acmeConfig = `
name: acme
locale: en_US.UTF-8
separator: ","
header: true
fields:
  date:
    number: 0
    format: "%Y-%m-%d"
  sum: 3
  payee: 1
`

type recorder struct {
	mu       sync.Mutex
	outcomes []Outcome
}

func (r *recorder) Report(_ context.Context, o Outcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

type fixture struct {
	store    *ledgertest.MemStore
	opened   int
	ingester *Ingester
	reports  *recorder
}

func newFixture() *fixture {
	f := &fixture{store: ledgertest.NewMemStore(), reports: &recorder{}}
	f.ingester = New(func(context.Context) *ledger.Gateway {
		f.opened++
		return ledger.NewGateway(f.store)
	}, f.reports)
	return f
}

func writeFile(t *testing.T, dir, name, contents string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))
	return path
}

func TestIngestEndToEnd(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "january.csv", "header\n2024-01-01,ACME,,42.50")

	first := f.ingester.Ingest(context.Background(), path)
	require.NoError(t, first.Err)
	assert.Equal(t, Ingested, first.Status)
	assert.Equal(t, "acme", first.Parser)
	assert.Equal(t, ledger.WriteResult{Accepted: 1, Skipped: 0}, first.Result)
	assert.Equal(t, 2, first.Lines)
	assert.Equal(t, 1, first.Parsed)
	assert.Equal(t, 0, first.Failed)

	second := f.ingester.Ingest(context.Background(), path)
	assert.Equal(t, Ingested, second.Status)
	assert.Equal(t, ledger.WriteResult{Accepted: 0, Skipped: 1}, second.Result)
	assert.NotEqual(t, first.RunID, second.RunID)

	entries := f.store.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, "2024-01-01,ACME,,42.50", entries[0].Orig)
	assert.Equal(t, "ACME", entries[0].Payee)
	assert.Equal(t, 42.5, entries[0].Sum)
	assert.True(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Equal(entries[0].Date))

	assert.Equal(t, 2, f.opened)
	assert.Equal(t, 2, f.store.Closes())
	assert.Len(t, f.reports.outcomes, 2)
}

func TestIngestIsIdempotent(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "export.csv", "date,payee,desc,sum\n"+
		"2024-01-01,ACME,,42.50\n"+
		"2024-01-02,Corner Shop,milk,-2.10\n"+
		"2024-01-03,Landlord,rent,-900\n")

	first := f.ingester.Ingest(context.Background(), path)
	require.Equal(t, 3, first.Result.Accepted)

	second := f.ingester.Ingest(context.Background(), path)
	assert.Equal(t, ledger.WriteResult{Skipped: first.Result.Accepted}, second.Result)
	assert.Len(t, f.store.Entries(), 3)
}

func TestIngestAppendedLinesOnly(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "export.csv", "header\n2024-01-01,ACME,,42.50\n")

	f.ingester.Ingest(context.Background(), path)

	writeFile(t, dir, "export.csv", "header\n2024-01-01,ACME,,42.50\n2024-01-05,ACME,,1.00\n")
	o := f.ingester.Ingest(context.Background(), path)

	assert.Equal(t, ledger.WriteResult{Accepted: 1, Skipped: 1}, o.Result)
}

func TestIngestSameBytesDifferentDates(t *testing.T) {
	f := newFixture()
	root := t.TempDir()
	line := "03/04/2024,ACME,,10.00\n"

	writeFile(t, root, filepath.Join("us", fieldmap.Filename), `
name: us
locale: en_US
separator: ","
fields: {date: {number: 0, format: "%m/%d/%Y"}, sum: 3}
`)
	writeFile(t, root, filepath.Join("eu", fieldmap.Filename), `
name: eu
locale: en_GB
separator: ","
fields: {date: {number: 0, format: "%d/%m/%Y"}, sum: 3}
`)
	us := writeFile(t, root, filepath.Join("us", "a.csv"), line)
	eu := writeFile(t, root, filepath.Join("eu", "a.csv"), line)

	assert.Equal(t, 1, f.ingester.Ingest(context.Background(), us).Result.Accepted)
	assert.Equal(t, 1, f.ingester.Ingest(context.Background(), eu).Result.Accepted)

	entries := f.store.Entries()
	require.Len(t, entries, 2)
	assert.Equal(t, entries[0].Hash, entries[1].Hash)
	assert.False(t, entries[0].Date.Equal(entries[1].Date))
}

func TestIngestParseErrorsDoNotAbortFile(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "mixed.csv", "header\n"+
		"2024-01-01,ACME,,42.50\n"+
		"not a date,ACME,,1.00\n"+
		"\n"+
		"2024-01-02,ACME,,abc\n"+
		"2024-01-03,ACME\n"+
		"2024-01-04,ACME,,7\n")

	o := f.ingester.Ingest(context.Background(), path)

	assert.Equal(t, Ingested, o.Status)
	assert.Equal(t, 7, o.Lines)
	assert.Equal(t, 2, o.Parsed)
	assert.Equal(t, 3, o.Failed)
	assert.Equal(t, ledger.WriteResult{Accepted: 2}, o.Result)
}

func TestIngestDropsInvalidUTF8(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "broken.csv", "header\n2024-01-01,AC\xffME,,1.00\n")

	o := f.ingester.Ingest(context.Background(), path)
	require.Equal(t, 1, o.Result.Accepted)
	assert.Equal(t, "ACME", f.store.Entries()[0].Payee)
}

func TestIngestDecodesConfiguredCharset(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, `
name: legacy
locale: de_DE
separator: ";"
encoding: ISO-8859-1
fields: {date: {number: 0, format: "%d.%m.%Y"}, payee: 1, sum: 2}
`)
	path := writeFile(t, dir, "latin1.csv", "01.02.2024;M\xfcller;-5,00\n")

	o := f.ingester.Ingest(context.Background(), path)
	require.Equal(t, 1, o.Result.Accepted)
	assert.Equal(t, "Müller", f.store.Entries()[0].Payee)
}

func TestIngestIgnored(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	config := writeFile(t, dir, fieldmap.Filename, acmeConfig)
	writeFile(t, dir, "sub/.keep", "")

	for _, path := range []string{
		config,
		dir,
		filepath.Join(dir, "sub"),
		filepath.Join(dir, "vanished.csv"),
		writeFile(t, dir, ".hidden.csv", "2024-01-01,ACME,,1\n"),
		writeFile(t, dir, "download.csv.part", "2024-01-01,ACME,,1\n"),
		writeFile(t, dir, "edit.csv~", "2024-01-01,ACME,,1\n"),
	} {
		o := f.ingester.Ingest(context.Background(), path)
		assert.Equal(t, Ignored, o.Status, path)
	}

	assert.Equal(t, 0, f.opened)
	assert.Empty(t, f.store.Entries())
}

func TestIngestNoConfig(t *testing.T) {
	f := newFixture()
	path := writeFile(t, t.TempDir(), "orphan.csv", "2024-01-01,ACME,,1\n")

	o := f.ingester.Ingest(context.Background(), path)

	assert.Equal(t, NoConfig, o.Status)
	assert.Equal(t, 0, f.opened)
}

func TestIngestInvalidConfig(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, "name: broken\nseparator: ','\nlocale: C\nfields: {payee: 1}\n")
	path := writeFile(t, dir, "a.csv", "2024-01-01,ACME,,1\n")

	o := f.ingester.Ingest(context.Background(), path)

	assert.Equal(t, ConfigInvalid, o.Status)
	var loadErr *fieldmap.ConfigLoadError
	assert.True(t, errors.As(o.Err, &loadErr))
	assert.Equal(t, 0, f.opened)
}

func TestIngestStoreFailure(t *testing.T) {
	f := newFixture()
	f.store.InsertErr = errors.New("connection reset by peer")
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "a.csv", "header\n2024-01-01,ACME,,1\n")

	o := f.ingester.Ingest(context.Background(), path)

	assert.Equal(t, StoreFailed, o.Status)
	assert.ErrorIs(t, o.Err, f.store.InsertErr)
	assert.Equal(t, ledger.WriteResult{}, o.Result)
	assert.Equal(t, 1, f.store.Closes())
}

func TestIngestUnavailableStore(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, acmeConfig)
	path := writeFile(t, dir, "a.csv", "header\n2024-01-01,ACME,,1\n")

	ingester := New(func(context.Context) *ledger.Gateway { return ledger.NewGateway(nil) }, nil)
	o := ingester.Ingest(context.Background(), path)

	assert.Equal(t, Ingested, o.Status)
	assert.NoError(t, o.Err)
	assert.Equal(t, 1, o.Parsed)
	assert.Equal(t, ledger.WriteResult{}, o.Result)
}

func TestScan(t *testing.T) {
	f := newFixture()
	root := t.TempDir()
	writeFile(t, root, filepath.Join("acme", fieldmap.Filename), acmeConfig)
	writeFile(t, root, filepath.Join("acme", "2024-01.csv"), "header\n2024-01-01,ACME,,1\n")
	writeFile(t, root, filepath.Join("acme", "2024-02.csv"), "header\n2024-02-01,ACME,,2\n")
	writeFile(t, root, filepath.Join("unmapped", "x.csv"), "2024-01-01,ACME,,1\n")
	writeFile(t, root, filepath.Join(".git", "HEAD"), "ref: refs/heads/main\n")

	outcomes, err := f.ingester.Scan(context.Background(), root)
	require.NoError(t, err)

	statuses := map[Status]int{}
	for _, o := range outcomes {
		statuses[o.Status]++
	}

	assert.Equal(t, map[Status]int{Ignored: 1, Ingested: 2, NoConfig: 1}, statuses)
	assert.Len(t, f.store.Entries(), 2)

	outcomes, err = f.ingester.Scan(context.Background(), root)
	require.NoError(t, err)
	for _, o := range outcomes {
		assert.Equal(t, 0, o.Result.Accepted, o.Path)
	}
}

func TestScanCancelled(t *testing.T) {
	f := newFixture()
	root := t.TempDir()
	writeFile(t, root, "a.csv", "x\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.ingester.Scan(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStatusString(t *testing.T) {
	assert.Equal(t, "ingested", Ingested.String())
	assert.Equal(t, "no_config", NoConfig.String())
	assert.Equal(t, "unknown", Status(42).String())
}

func TestIngestMinimalConfig(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, `{separator: ",", header: true, fields: {date: {number: 0, format: "%Y-%m-%d"}, sum: 3, payee: 1}}`)
	path := writeFile(t, dir, "export.csv", "header\n2024-01-01,ACME,,42.50")

	first := f.ingester.Ingest(context.Background(), path)
	require.NoError(t, first.Err)
	assert.Equal(t, Ingested, first.Status)
	assert.Equal(t, filepath.Base(dir), first.Parser)
	assert.Equal(t, ledger.WriteResult{Accepted: 1, Skipped: 0}, first.Result)

	second := f.ingester.Ingest(context.Background(), path)
	require.NoError(t, second.Err)
	assert.Equal(t, ledger.WriteResult{Accepted: 0, Skipped: 1}, second.Result)
}

func TestIngestInverseOrder(t *testing.T) {
	f := newFixture()
	dir := t.TempDir()
	writeFile(t, dir, fieldmap.Filename, `
name: newest-first
separator: ";"
inverseOrder: true
fields: {date: 0, payee: 1, sum: 2}
`)
	path := writeFile(t, dir, "a.csv", "2024-01-03;C;3\n2024-01-02;B;2\n2024-01-01;A;1\n")

	o := f.ingester.Ingest(context.Background(), path)
	require.Equal(t, 3, o.Result.Accepted)

	var payees []string
	for _, e := range f.store.Entries() {
		payees = append(payees, e.Payee)
	}
	assert.Equal(t, []string{"A", "B", "C"}, payees)
}

func TestScanSkipsUnreadableDirectories(t *testing.T) {
	f := newFixture()
	root := t.TempDir()
	writeFile(t, root, filepath.Join("acme", fieldmap.Filename), acmeConfig)
	writeFile(t, root, filepath.Join("acme", "a.csv"), "header\n2024-01-01,ACME,,1\n")
	writeFile(t, root, filepath.Join("locked", fieldmap.Filename), acmeConfig)
	writeFile(t, root, filepath.Join("locked", "b.csv"), "header\n2024-01-02,ACME,,2\n")
	writeFile(t, root, filepath.Join("zeta", fieldmap.Filename), acmeConfig)
	writeFile(t, root, filepath.Join("zeta", "c.csv"), "header\n2024-01-03,ACME,,3\n")

	locked := filepath.Join(root, "locked")
	require.NoError(t, os.Chmod(locked, 0))
	t.Cleanup(func() { os.Chmod(locked, 0o755) })

	outcomes, err := f.ingester.Scan(context.Background(), root)
	require.NoError(t, err)

	ingested := map[string]bool{}
	for _, o := range outcomes {
		if o.Status == Ingested {
			ingested[filepath.Base(o.Path)] = true
		}
	}

	assert.True(t, ingested["a.csv"])
	assert.True(t, ingested["c.csv"])
	if os.Geteuid() != 0 {
		assert.False(t, ingested["b.csv"])
	}
}

func TestScanMissingRoot(t *testing.T) {
	f := newFixture()

	_, err := f.ingester.Scan(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}
