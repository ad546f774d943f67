package cmd

import (
	"context"
	"fmt"
	"io"

	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/influxstats"
	"github.com/bcaldwell/homeparser/pkg/ingest"
	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/postgresutils"
)

func openGateway(ctx context.Context) *ledger.Gateway {
	return ledger.Open(ctx, postgresutils.CreatePostgresClient, config.CurrentSqlConfig().Table)
}

// newIngester wires the ingester to postgres and, when configured, influx. The returned
// func releases the metrics client.
func newIngester() (*ingest.Ingester, func()) {
	var reporter ingest.Reporter
	cleanup := func() {}

	r, err := influxstats.NewReporter(config.CurrentInfluxSecrets(), config.CurrentInfluxConfig().Database)
	if err != nil {
		klog.Warningf("metrics disabled: %v", err)
	} else if r != nil {
		reporter = r
		cleanup = func() { r.Close() }
	}

	return ingest.New(openGateway, reporter), cleanup
}

func printOutcome(w io.Writer, o ingest.Outcome) {
	switch o.Status {
	case ingest.Ingested:
		fmt.Fprintf(w, "%s: %s, parser %s, %d added, %d already existed, %d failed to parse\n",
			o.Path, o.Status, o.Parser, o.Result.Accepted, o.Result.Skipped, o.Failed)
	case ingest.Ignored, ingest.NoConfig:
		fmt.Fprintf(w, "%s: %s\n", o.Path, o.Status)
	default:
		fmt.Fprintf(w, "%s: %s: %v\n", o.Path, o.Status, o.Err)
	}
}
