package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/XSAM/otelsql"
	_ "github.com/jackc/pgx/v5/stdlib"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"

	"docvault/internal/config"
	"docvault/internal/logging"
)

// sqlOpen is swapped in tests.
var sqlOpen = sql.Open

const pingTimeout = 5 * time.Second

var errIncompleteConfig = errors.New("database config needs host, port, user and name")

// BuildPostgresDSN renders c as a postgres:// URL, e.g.
// postgres://vault:secret@db:5432/docvault?sslmode=disable.
func BuildPostgresDSN(c config.DatabaseConfig) (string, error) {
	for _, v := range []string{c.Host, c.Port, c.User, c.Name} {
		if v == "" {
			return "", errIncompleteConfig
		}
	}

	user := url.User(c.User)
	if c.Password != "" {
		user = url.UserPassword(c.User, c.Password)
	}
	params := url.Values{}
	if c.SSLMode != "" {
		params.Set("sslmode", c.SSLMode)
	}

	dsn := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     net.JoinHostPort(c.Host, c.Port),
		Path:     c.Name,
		RawQuery: params.Encode(),
	}
	return dsn.String(), nil
}

// NewPostgres opens the document index database through the pgx stdlib driver
// wrapped by otelsql, applies pooling settings and verifies connectivity.
func NewPostgres(ctx context.Context, c config.DatabaseConfig, log *logging.Logger) (*sql.DB, error) {
	if log == nil {
		log = logging.Discard()
	}
	dsn, err := BuildPostgresDSN(c)
	if err != nil {
		return nil, err
	}

	driver, err := otelsql.Register("pgx",
		otelsql.WithAttributes(semconv.DBSystemPostgreSQL),
		otelsql.WithSQLCommenter(true),
	)
	if err != nil {
		return nil, fmt.Errorf("register traced driver: %w", err)
	}

	db, err := sqlOpen(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	applyPool(db, c)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		log.Error("db_connect_failed", logging.Fields{"db_host": c.Host, "error": err})
		return nil, fmt.Errorf("db ping: %w", err)
	}

	log.Info("db_connected", logging.Fields{
		"db_host":        c.Host,
		"db_name":        c.Name,
		"max_open_conns": c.MaxOpenConns,
	})
	return db, nil
}

// applyPool leaves the database/sql defaults in place for unset values.
func applyPool(db *sql.DB, c config.DatabaseConfig) {
	if n := c.MaxOpenConns; n > 0 {
		db.SetMaxOpenConns(n)
	}
	if n := c.MaxIdleConns; n > 0 {
		db.SetMaxIdleConns(n)
	}
	if s := c.ConnMaxLifetimeSec; s > 0 {
		db.SetConnMaxLifetime(time.Duration(s) * time.Second)
	}
}
