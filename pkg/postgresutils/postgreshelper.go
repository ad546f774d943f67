package postgresutils

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"k8s.io/klog"

	"github.com/bcaldwell/homeparser/pkg/config"
)

// CreatePostgresClient connects to the entries database. The returned error is the ping
// error, the db is returned either way so callers can close it.
func CreatePostgresClient(ctx context.Context) (*bun.DB, error) {
	var pgconn *pgdriver.Connector

	// bypass creating of db if database_url is set because we are likely running in heroku then
	if config.CurrentSecrets().DatabaseURL == "" {
		dbname := config.DatabaseName()

		if config.CurrentSqlConfig().CreateDatabase {
			err := ensureDBExistsInPostgres(ctx, dbname)
			if err != nil {
				return nil, err
			}
		}

		pgconn = newConnector(dbname)
	} else {
		// this panics if its invalid
		pgconn = pgdriver.NewConnector(pgdriver.WithDSN(config.CurrentSecrets().DatabaseURL))
	}

	db := sql.OpenDB(pgconn)
	err := db.PingContext(ctx)

	return bun.NewDB(db, pgdialect.New()), err
}

func newConnector(dbname string) *pgdriver.Connector {
	return pgdriver.NewConnector(
		pgdriver.WithAddr(hostWithPort(config.CurrentSqlSecrets().SqlHost)),
		pgdriver.WithInsecure(true),
		pgdriver.WithUser(config.CurrentSqlSecrets().SqlUsername),
		pgdriver.WithPassword(config.CurrentSqlSecrets().SqlPassword),
		pgdriver.WithDatabase(dbname),
	)
}

// slightly silly logic to add port if missing
func hostWithPort(host string) string {
	if !strings.Contains(host, ":") {
		host += ":5432"
	}
	return host
}

func ensureDBExistsInPostgres(ctx context.Context, dbname string) error {
	db := bun.NewDB(sql.OpenDB(newConnector("postgres")), pgdialect.New())
	defer db.Close()

	exists, err := db.NewSelect().
		TableExpr("pg_database").
		ColumnExpr("datname").
		Where("datname = ?", dbname).
		Exists(ctx)
	if err != nil {
		return fmt.Errorf("failed to get list of databases: %w", err)
	}

	if !exists {
		klog.Infof("Creating database %s in postgres database", dbname)
		_, err := db.ExecContext(ctx, "CREATE DATABASE ?", bun.Ident(dbname))
		if err != nil {
			return fmt.Errorf("failed to create database %s: %w", dbname, err)
		}
	}

	return nil
}
