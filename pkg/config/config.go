package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/ghodss/yaml"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/ledger"
	"github.com/bcaldwell/homeparser/pkg/watcher"
)

const (
	ConfigEnvVar = "HOMEPARSER_CONFIG"
	EjsonKeyEnv  = "HOMEPARSER_EJSON_SECRET_KEY"

	DefaultDatabase = "homeparser"
)

var config Config
var secrets Secrets

func ReadConfig(configEnvVar, configFile, secretsFile string) error {
	_, err := readConfig(configEnvVar, configFile)
	if err != nil {
		return err
	}

	_, err = readSecrets(secretsFile)
	if err != nil {
		return err
	}
	return nil
}

func CurrentConfig() *Config {
	return &config
}

func CurrentSecrets() *Secrets {
	return &secrets
}

func CurrentWatchConfig() *WatchConfig {
	return &config.Watch
}

func CurrentSqlConfig() *SQLConfig {
	return &config.SQL
}

func CurrentInfluxConfig() *InfluxConfig {
	return &config.Influx
}

func CurrentSqlSecrets() *SqlSecrets {
	return &secrets.SQL
}

func CurrentInfluxSecrets() *InfluxSecrets {
	return &secrets.Influx
}

func defaultConfig() Config {
	return Config{
		Watch: WatchConfig{
			Path:     ".",
			Workers:  watcher.DefaultWorkers,
			Debounce: watcher.DefaultDebounce.String(),
		},
		SQL: SQLConfig{
			Table:    ledger.DefaultTable,
			Database: DefaultDatabase,
		},
	}
}

func readConfig(envName, filename string) (*Config, error) {
	var raw []byte
	var err error

	config = defaultConfig()

	rawEnv := os.Getenv(envName)
	if rawEnv != "" {
		klog.Infof("Reading config from environment variable %s", envName)
		raw = []byte(rawEnv)
	} else {
		raw, err = os.ReadFile(filename)
		if errors.Is(err, fs.ErrNotExist) {
			klog.Warningf("config file %s not found, using defaults", filename)
			return &config, nil
		}
		if err != nil {
			return nil, err
		}
	}

	if err = yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if _, err = config.Watch.DebounceDuration(); err != nil {
		return nil, err
	}

	return &config, nil
}

// DatabaseName is the database entries are written to: DB_NAME when set, sql.database otherwise.
func DatabaseName() string {
	if secrets.SQL.SqlDatabase != "" {
		return secrets.SQL.SqlDatabase
	}
	return config.SQL.Database
}
