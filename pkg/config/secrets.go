package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"

	"dario.cat/mergo"
	"github.com/Shopify/ejson"
	"github.com/caarlos0/env/v6"
	"k8s.io/klog"
)

const (
	DefaultSqlHost = "localhost"
	ejsonKeyDir    = "/opt/ejson/keys"

	SectionSQL    = "sql"
	SectionInflux = "influx"
)

// SecretsError reports secrets that are present but unusable, per section.
type SecretsError struct {
	Section string
	Err     error
}

func (e *SecretsError) Error() string {
	return fmt.Sprintf("invalid %s secrets: %v", e.Section, e.Err)
}

func (e *SecretsError) Unwrap() error {
	return e.Err
}

// readSecrets merges the environment over the ejson file. A missing file is fine, a file
// that cannot be decrypted is not.
func readSecrets(filename string) (*Secrets, error) {
	s, err := readEnvSecrets()
	if err != nil {
		return nil, fmt.Errorf("failed to parse env secrets: %w", err)
	}

	fileSecrets, err := readEjsonSecrets(filename)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		klog.V(2).Infof("no secrets file at %s, using environment only", filename)
	case err != nil:
		return nil, fmt.Errorf("failed to read secrets file %s: %w", filename, err)
	default:
		if err := mergo.Merge(s, *fileSecrets); err != nil {
			return nil, fmt.Errorf("failed to merge secrets: %w", err)
		}
	}

	if s.SQL.SqlHost == "" {
		s.SQL.SqlHost = DefaultSqlHost
	}

	if err := s.validate(); err != nil {
		return nil, err
	}

	secrets = *s
	return &secrets, nil
}

func readEjsonSecrets(filename string) (*Secrets, error) {
	if _, err := os.Stat(filename); err != nil {
		return nil, err
	}

	var key []byte
	if keyFile := os.Getenv(EjsonKeyEnv); keyFile != "" {
		var err error
		key, err = os.ReadFile(keyFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %v", EjsonKeyEnv, err)
		}
	}

	raw, err := ejson.DecryptFile(filename, ejsonKeyDir, string(key))
	if err != nil {
		return nil, err
	}

	s := Secrets{}
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func readEnvSecrets() (*Secrets, error) {
	s := Secrets{}
	err := env.Parse(&s)
	return &s, err
}

func (s *Secrets) validate() error {
	if s.DatabaseURL != "" {
		u, err := url.Parse(s.DatabaseURL)
		if err != nil {
			return &SecretsError{Section: SectionSQL, Err: fmt.Errorf("DATABASE_URL: %w", err)}
		}
		if u.Scheme != "postgres" && u.Scheme != "postgresql" {
			return &SecretsError{Section: SectionSQL, Err: fmt.Errorf("DATABASE_URL has scheme %q, want postgres", u.Scheme)}
		}
	}

	influx := s.Influx
	if influx.InfluxEndpoint == "" {
		if influx.InfluxUsername != "" || influx.InfluxPassword != "" {
			return &SecretsError{Section: SectionInflux, Err: errors.New("credentials set without an endpoint")}
		}
		return nil
	}

	u, err := url.Parse(influx.InfluxEndpoint)
	if err != nil {
		return &SecretsError{Section: SectionInflux, Err: fmt.Errorf("endpoint: %w", err)}
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &SecretsError{Section: SectionInflux, Err: fmt.Errorf("endpoint %q is not an http url", influx.InfluxEndpoint)}
	}

	return nil
}
