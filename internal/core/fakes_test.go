package core

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

type fakeDialect struct{}

func (fakeDialect) Name() string { return "fake" }

func (fakeDialect) QuoteIdent(name string) string { return `"` + name + `"` }
func (d fakeDialect) Qualify(schema, table string) string {
	return d.QuoteIdent(schema) + "." + d.QuoteIdent(table)
}

func (fakeDialect) ColumnType(t SQLType) string { return t.String() }

func (d fakeDialect) CreateIndex(schema, table, column string, _ SQLType) string {
	return fmt.Sprintf("CREATE INDEX %s ON %s (%s)", table+"_"+column+"_idx", d.Qualify(schema, table), d.QuoteIdent(column))
}

// fakeStore keeps committed rows per table and records every statement.
type fakeStore struct {
	mu        sync.Mutex
	schema    string
	execs     []string
	rows      map[string][][]any
	pending   map[string][][]any
	copyCalls map[string]int
	failCopy  map[string]error
	commits   int
	rollbacks int
	closed    bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		schema:    "feed_test",
		rows:      make(map[string][][]any),
		pending:   make(map[string][][]any),
		copyCalls: make(map[string]int),
		failCopy:  make(map[string]error),
	}
}

func (s *fakeStore) Dialect() Dialect { return fakeDialect{} }
func (s *fakeStore) Schema() string   { return s.schema }

func (s *fakeStore) Exec(_ context.Context, sql string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.execs = append(s.execs, sql)
	return nil
}

func (s *fakeStore) CopyRows(_ context.Context, table string, _ []string, rows [][]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failCopy[table]; err != nil {
		return err
	}
	s.copyCalls[table]++
	for _, r := range rows {
		s.pending[table] = append(s.pending[table], append([]any(nil), r...))
	}
	return nil
}

func (s *fakeStore) Commit(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	for table, rows := range s.pending {
		s.rows[table] = append(s.rows[table], rows...)
	}
	s.pending = make(map[string][][]any)
	return nil
}

func (s *fakeStore) Rollback(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	s.pending = make(map[string][][]any)
	return nil
}

func (s *fakeStore) Close(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *fakeStore) tableRows(table string) [][]any {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rows[table]
}

func (s *fakeStore) execsContaining(substr string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []string
	for _, e := range s.execs {
		if strings.Contains(e, substr) {
			out = append(out, e)
		}
	}
	return out
}

// memFeed serves rows from memory. Rows are given without line numbers;
// lines are numbered from 2 as if following a header.
type memFeed struct {
	tables map[string][][]string
	closed bool
}

func (f *memFeed) Rows(t *Table) (RowSource, error) {
	rows, ok := f.tables[t.Name()]
	if !ok {
		return nil, ErrTableNotFound
	}
	numbered := make([][]string, len(rows))
	for i, r := range rows {
		numbered[i] = append([]string{strconv.Itoa(i + 2)}, r...)
	}
	return &memSource{rows: numbered}, nil
}

func (f *memFeed) Close() error {
	f.closed = true
	return nil
}

type memSource struct {
	rows [][]string
	pos  int
}

func (s *memSource) Next() ([]string, error) {
	if s.pos >= len(s.rows) {
		return nil, io.EOF
	}
	s.pos++
	return s.rows[s.pos-1], nil
}

func (s *memSource) Close() error { return nil }
