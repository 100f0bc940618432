package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// maxBindParams keeps multi-row INSERTs under SQLite's default limit of
// bound parameters per statement.
const maxBindParams = 999

// sqlStore writes a feed schema through database/sql over a pinned
// connection, for SQLite and MySQL.
type sqlStore struct {
	conn    *sql.Conn
	dialect core.Dialect
	schema  string
	tx      *sql.Tx
}

func newSQLStore(conn *sql.Conn, d core.Dialect, schema string) *sqlStore {
	return &sqlStore{conn: conn, dialect: d, schema: schema}
}

func (s *sqlStore) Dialect() core.Dialect { return s.dialect }
func (s *sqlStore) Schema() string        { return s.schema }

func (s *sqlStore) begin(ctx context.Context) (*sql.Tx, error) {
	if s.tx != nil {
		return s.tx, nil
	}
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	s.tx = tx
	return tx, nil
}

func (s *sqlStore) Exec(ctx context.Context, query string) error {
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, query)
	return err
}

// CopyRows inserts rows with multi-row INSERT statements.
func (s *sqlStore) CopyRows(ctx context.Context, table string, columns []string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	tx, err := s.begin(ctx)
	if err != nil {
		return err
	}

	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = s.dialect.QuoteIdent(c)
	}
	prefix := fmt.Sprintf("INSERT INTO %s (%s) VALUES ",
		s.dialect.Qualify(s.schema, table), strings.Join(quoted, ", "))
	tuple := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"

	perStmt := max(1, maxBindParams/len(columns))
	for start := 0; start < len(rows); start += perStmt {
		chunk := rows[start:min(start+perStmt, len(rows))]

		tuples := make([]string, len(chunk))
		args := make([]any, 0, len(chunk)*len(columns))
		for i, row := range chunk {
			tuples[i] = tuple
			for _, v := range row {
				args = append(args, bindValue(v, true))
			}
		}
		if _, err := tx.ExecContext(ctx, prefix+strings.Join(tuples, ", "), args...); err != nil {
			return fmt.Errorf("insert into %s: %w", table, err)
		}
	}
	return nil
}

func (s *sqlStore) Commit(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Commit()
}

func (s *sqlStore) Rollback(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	return tx.Rollback()
}

// Close rolls back any open transaction and releases the connection. An
// attached SQLite schema is detached first.
func (s *sqlStore) Close(ctx context.Context) error {
	if s.conn == nil {
		return nil
	}
	err := s.Rollback(ctx)
	if _, ok := s.dialect.(SQLiteDialect); ok {
		if _, detachErr := s.conn.ExecContext(ctx, "DETACH DATABASE "+s.dialect.QuoteIdent(s.schema)); detachErr != nil && err == nil {
			err = detachErr
		}
	}
	if closeErr := s.conn.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	s.conn = nil
	return err
}
