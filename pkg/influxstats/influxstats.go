// Package influxstats records ingestion outcomes in InfluxDB.
package influxstats

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	influxdb "github.com/influxdata/influxdb/client/v2"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
	"github.com/bcaldwell/homeparser/pkg/ingest"
)

const Measurement = "ingest"

type Reporter struct {
	client   influxdb.Client
	database string
}

func CreateInfluxClient(secrets *config.InfluxSecrets) (influxdb.Client, error) {
	return influxdb.NewHTTPClient(influxdb.HTTPConfig{
		Addr:     secrets.InfluxEndpoint,
		Username: secrets.InfluxUsername,
		Password: secrets.InfluxPassword,
	})
}

// NewReporter returns nil when metrics are not configured.
func NewReporter(secrets *config.InfluxSecrets, database string) (*Reporter, error) {
	if secrets.InfluxEndpoint == "" || database == "" {
		return nil, nil
	}

	client, err := CreateInfluxClient(secrets)
	if err != nil {
		return nil, fmt.Errorf("failed to create influx client: %w", err)
	}

	if err := CreateDatabase(client, database); err != nil {
		klog.Warningf("failed to create influx database %s: %v", database, err)
	}

	return &Reporter{client: client, database: database}, nil
}

func CreateDatabase(influxClient influxdb.Client, name string) error {
	name = strings.Split(name, " ")[0]

	q := influxdb.NewQuery(fmt.Sprintf("CREATE DATABASE %s", name), "", "")
	response, err := influxClient.Query(q)
	if err != nil {
		return err
	}
	return response.Error()
}

// Point converts an outcome to the point written by Report.
func Point(o ingest.Outcome, at time.Time) (*influxdb.Point, error) {
	tags := map[string]string{
		"status": o.Status.String(),
		"dir":    filepath.Dir(o.Path),
	}
	if o.Parser != "" {
		tags["parser"] = o.Parser
	}

	fields := map[string]interface{}{
		"lines":    o.Lines,
		"parsed":   o.Parsed,
		"failed":   o.Failed,
		"accepted": o.Result.Accepted,
		"skipped":  o.Result.Skipped,
	}

	return influxdb.NewPoint(Measurement, tags, fields, at)
}

// Report writes one point. Ignored files are not recorded.
func (r *Reporter) Report(_ context.Context, o ingest.Outcome) {
	if o.Status == ingest.Ignored {
		return
	}

	bp, err := influxdb.NewBatchPoints(influxdb.BatchPointsConfig{Database: r.database})
	if err != nil {
		klog.Warningf("failed to create influx batch: %v", err)
		return
	}

	pt, err := Point(o, time.Now())
	if err != nil {
		klog.Warningf("failed to create influx point: %v", err)
		return
	}
	bp.AddPoint(pt)

	if err := r.client.Write(bp); err != nil {
		klog.Warningf("[%s] failed to write metrics: %v", o.RunID, err)
	}
}

func (r *Reporter) Close() error {
	return r.client.Close()
}
