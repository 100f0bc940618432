// Package storage provisions per-feed schemas and the stores the loader
// writes them through. PostgreSQL is the primary backend; SQLite and MySQL
// are supported through database/sql.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "modernc.org/sqlite"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// ErrUnknownDriver is returned for a database driver other than postgres,
// sqlite or mysql.
var ErrUnknownDriver = errors.New("unknown database driver")

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
	DriverMySQL    = "mysql"
)

// FlushMode selects how the Postgres store writes batches.
type FlushMode string

const (
	// FlushCopy streams batches with COPY FROM STDIN in text format.
	FlushCopy FlushMode = "copy"
	// FlushInsert sends batches as pipelined INSERT statements.
	FlushInsert FlushMode = "insert"
)

// Config configures a Provisioner.
type Config struct {
	Driver         string
	URL            string
	FlushMode      FlushMode
	ConnectTimeout time.Duration

	// Pool settings, Postgres only.
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
}

// Provisioner opens the database once and hands out one Store per feed
// schema. It implements core.Connector.
type Provisioner struct {
	cfg     Config
	dialect core.Dialect
	pool    *pgxpool.Pool
	db      *sql.DB
	// attachDir holds the SQLite files of feed schemas; empty for in-memory.
	attachDir string
}

// New opens the database described by cfg and verifies the connection.
func New(ctx context.Context, cfg Config) (*Provisioner, error) {
	if cfg.FlushMode == "" {
		cfg.FlushMode = FlushCopy
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, cfg.ConnectTimeout)
	defer cancel()

	p := &Provisioner{cfg: cfg}
	switch cfg.Driver {
	case DriverPostgres, "postgresql", "pgx":
		if cfg.FlushMode != FlushCopy && cfg.FlushMode != FlushInsert {
			return nil, fmt.Errorf("unknown flush mode %q", cfg.FlushMode)
		}
		poolConfig, err := pgxpool.ParseConfig(cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("parse database URL: %w", err)
		}
		if cfg.MaxConns > 0 {
			poolConfig.MaxConns = cfg.MaxConns
		}
		if cfg.MinConns > 0 {
			poolConfig.MinConns = cfg.MinConns
		}
		if cfg.MaxConnLifetime > 0 {
			poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
		}
		if cfg.MaxConnIdleTime > 0 {
			poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
		}
		pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
		if err != nil {
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		p.pool = pool
		p.dialect = PostgresDialect{}

	case DriverSQLite:
		db, err := sql.Open("sqlite", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		if isMemory(cfg.URL) {
			// Every connection to :memory: is a separate database.
			db.SetMaxOpenConns(1)
		} else {
			p.attachDir = filepath.Dir(sqlitePath(cfg.URL))
		}
		p.db = db
		p.dialect = SQLiteDialect{}

	case DriverMySQL:
		db, err := sql.Open("mysql", cfg.URL)
		if err != nil {
			return nil, fmt.Errorf("open mysql: %w", err)
		}
		p.db = db
		p.dialect = MySQLDialect{}

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownDriver, cfg.Driver)
	}

	if err := p.Ping(ctx); err != nil {
		p.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return p, nil
}

func isMemory(dsn string) bool {
	return dsn == ":memory:" || strings.Contains(dsn, "mode=memory")
}

// sqlitePath strips the file: scheme and query parameters from a DSN.
func sqlitePath(dsn string) string {
	dsn = strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(dsn, '?'); i >= 0 {
		dsn = dsn[:i]
	}
	if u, err := url.PathUnescape(dsn); err == nil {
		return u
	}
	return dsn
}

// Dialect returns the SQL dialect of the database.
func (p *Provisioner) Dialect() core.Dialect {
	return p.dialect
}

// Ping verifies the database is reachable.
func (p *Provisioner) Ping(ctx context.Context) error {
	if p.pool != nil {
		return p.pool.Ping(ctx)
	}
	return p.db.PingContext(ctx)
}

// Close closes the database.
func (p *Provisioner) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
	if p.db != nil {
		p.db.Close()
	}
}

// Connect creates schema if needed and returns a Store bound to it over a
// dedicated connection.
func (p *Provisioner) Connect(ctx context.Context, schema string) (core.Store, error) {
	schema = SanitizeSchemaName(schema)
	ctx, cancel := context.WithTimeout(ctx, p.cfg.ConnectTimeout)
	defer cancel()

	if p.pool != nil {
		return connectPostgres(ctx, p.pool, schema, p.cfg.FlushMode)
	}

	conn, err := p.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	var setup []string
	switch p.dialect.(type) {
	case SQLiteDialect:
		file := ":memory:"
		if p.attachDir != "" {
			file = filepath.Join(p.attachDir, schema+".db")
		}
		setup = []string{fmt.Sprintf("ATTACH DATABASE '%s' AS %s",
			strings.ReplaceAll(file, "'", "''"), p.dialect.QuoteIdent(schema))}
	case MySQLDialect:
		setup = []string{
			"CREATE DATABASE IF NOT EXISTS " + p.dialect.QuoteIdent(schema),
			"USE " + p.dialect.QuoteIdent(schema),
		}
	}
	for _, stmt := range setup {
		if _, err := conn.ExecContext(ctx, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return newSQLStore(conn, p.dialect, schema), nil
}

// SanitizeSchemaName maps name to a lower-case identifier of letters,
// digits and underscores that does not start with a digit, at most 63 bytes.
func SanitizeSchemaName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	s := b.String()
	if s == "" || (s[0] >= '0' && s[0] <= '9') {
		s = "_" + s
	}
	if len(s) > 63 {
		s = s[:63]
	}
	return s
}
