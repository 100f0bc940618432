package storage

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// postgresStore writes a feed schema over one pooled connection. The
// transaction is opened lazily by the first statement after a commit.
type postgresStore struct {
	conn    *pgxpool.Conn
	schema  string
	mode    FlushMode
	dialect PostgresDialect
	tx      pgx.Tx
}

func connectPostgres(ctx context.Context, pool *pgxpool.Pool, schema string, mode FlushMode) (*postgresStore, error) {
	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	s := &postgresStore{conn: conn, schema: schema, mode: mode}

	quoted := s.dialect.QuoteIdent(schema)
	for _, stmt := range []string{
		"CREATE SCHEMA IF NOT EXISTS " + quoted,
		"SET search_path TO " + quoted,
	} {
		if _, err := conn.Exec(ctx, stmt); err != nil {
			conn.Release()
			return nil, fmt.Errorf("create schema %s: %w", schema, err)
		}
	}
	return s, nil
}

func (s *postgresStore) Dialect() core.Dialect { return s.dialect }
func (s *postgresStore) Schema() string        { return s.schema }

func (s *postgresStore) begin(ctx context.Context) (pgx.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *postgresStore) Exec(ctx context.Context, sql string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = tx.Exec(ctx, sql)
	return err
}

func (s *postgresStore) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	if s.mode == FlushInsert {
		return s.insertRows(ctx, tx, table, columns, rows)
	}
	return s.copyRows(ctx, tx, table, columns, rows)
}

func (s *postgresStore) columnList(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.dialect.QuoteIdent(c)
	}
	return strings.Join(quoted, ", ")
}

// copyRows streams rows in COPY text format.
func (s *postgresStore) copyRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) error {
	var buf bytes.Buffer
	for _, row := range rows {
		for i, v := range row {
			if i > 0 {
				buf.WriteByte('\t')
			}
			if err := appendCopyText(&buf, v); err != nil {
				return fmt.Errorf("%s.%s: %w", table, columns[i], err)
			}
		}
		buf.WriteByte('\n')
	}

	sql := fmt.Sprintf("COPY %s (%s) FROM STDIN", s.dialect.Qualify(s.schema, table), s.columnList(columns))
	if _, err := tx.Conn().PgConn().CopyFrom(ctx, &buf, sql); err != nil {
		return fmt.Errorf("copy into %s: %w", table, err)
	}
	return nil
}

// insertRows sends one INSERT per row in a single batch round trip.
func (s *postgresStore) insertRows(ctx context.Context, tx pgx.Tx, table string, columns []string, rows [][]any) error {
	placeholders := make([]string, len(columns))
	for i := range placeholders {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	sql := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		s.dialect.Qualify(s.schema, table), s.columnList(columns), strings.Join(placeholders, ", "))

	batch := &pgx.Batch{}
	for _, row := range rows {
		args := make([]any, len(row))
		for i, v := range row {
			args[i] = bindValue(v, false)
		}
		batch.Queue(sql, args...)
	}

	br := tx.SendBatch(ctx, batch)
	for range rows {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return br.Close()
}

func (s *postgresStore) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit(ctx)
}

func (s *postgresStore) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback(ctx)
}

// Close rolls back any open transaction and returns the connection to the
// pool with its default search path.
func (s *postgresStore) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.Rollback(ctx)
	if _, resetErr := s.conn.Exec(ctx, "RESET search_path"); resetErr != nil && err == nil {
		err = resetErr
	}
	s.conn.Release()
	s.conn = nil
	return err
}
