package config

import (
	"fmt"
	"time"
)

type Config struct {
	Watch  WatchConfig  `json:"watch"`
	SQL    SQLConfig    `json:"sql"`
	Influx InfluxConfig `json:"influx"`
}

type WatchConfig struct {
	// Path is the root directory watched for new exports
	Path    string `json:"path"`
	Workers int    `json:"workers"`
	// Debounce is a go duration, e.g. 500ms
	Debounce string `json:"debounce"`
	// RescanSchedule is a cron spec for full rescans of Path, empty disables them
	RescanSchedule string `json:"rescanSchedule"`
}

func (w WatchConfig) DebounceDuration() (time.Duration, error) {
	d, err := time.ParseDuration(w.Debounce)
	if err != nil {
		return 0, fmt.Errorf("invalid watch.debounce %q: %w", w.Debounce, err)
	}
	return d, nil
}

type SQLConfig struct {
	Table    string `json:"table"`
	Database string `json:"database"`
	// CreateDatabase creates Database on startup when missing
	CreateDatabase bool `json:"createDatabase"`
}

type InfluxConfig struct {
	// Database receives ingestion metrics, empty disables them
	Database string `json:"database"`
}

type Secrets struct {
	SQL    SqlSecrets    `json:"sql"`
	Influx InfluxSecrets `json:"influx"`

	// Altternative to the SQL struct, designed to be used with heroku env variable
	DatabaseURL string `json:"databaseUrl" env:"DATABASE_URL"`
}

type SqlSecrets struct {
	SqlHost     string `json:"host" env:"DB_HOST"`
	SqlDatabase string `json:"database" env:"DB_NAME"`
	SqlUsername string `json:"username" env:"DB_USER"`
	SqlPassword string `json:"password" env:"DB_PASSWORD"`
}

type InfluxSecrets struct {
	InfluxEndpoint string `json:"endpoint" env:"INFLUX_ENDPOINT"`
	InfluxUsername string `json:"username" env:"INFLUX_USERNAME"`
	InfluxPassword string `json:"password" env:"INFLUX_PASSWORD"`
}
