package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// ErrorsTable is the table holding every error found in a feed.
const ErrorsTable = "errors"

var errorColumns = []string{
	"error_id", "error_type", "priority", "entity_type", "line_number",
	"entity_id", "field_name", "bad_value", "context_key", "context_value",
}

// DefaultRetainedErrors is how many errors an ErrorStorage keeps in memory for
// reporting when no limit is configured.
const DefaultRetainedErrors = 1000

// ErrorStorage assigns ids to feed errors, counts them by type and writes
// them to the errors table in batches. Ids are sequential per storage, so
// every load numbers its errors from zero.
type ErrorStorage struct {
	store     Store
	batchSize int
	retain    int

	mu       sync.Mutex
	nextID   int
	pending  [][]any
	counts   map[ErrorType]int
	retained []Error
}

// NewErrorStorage creates an ErrorStorage writing to store. A nil store keeps
// counts and retained errors only. A non-positive retain keeps
// DefaultRetainedErrors.
func NewErrorStorage(store Store, batchSize, retain int) *ErrorStorage {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if retain <= 0 {
		retain = DefaultRetainedErrors
	}
	return &ErrorStorage{
		store:     store,
		batchSize: batchSize,
		retain:    retain,
		counts:    make(map[ErrorType]int),
	}
}

// CreateTable creates the errors table in the store's schema and commits it.
func (s *ErrorStorage) CreateTable(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	d := s.store.Dialect()
	text := d.ColumnType(SQLText)
	integer := d.ColumnType(SQLInteger)

	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(d.Qualify(s.store.Schema(), ErrorsTable))
	b.WriteString(" (")
	for i, col := range errorColumns {
		if i > 0 {
			b.WriteString(", ")
		}
		typ := text
		if col == "error_id" || col == "line_number" {
			typ = integer
		}
		b.WriteString(d.QuoteIdent(col) + " " + typ)
	}
	b.WriteString(")")

	if err := s.store.Exec(ctx, b.String()); err != nil {
		return fmt.Errorf("create errors table: %w", err)
	}
	if err := s.store.Commit(ctx); err != nil {
		return fmt.Errorf("commit errors table: %w", err)
	}
	return nil
}

// RegisterError records a single error of type t against ent.
func (s *ErrorStorage) RegisterError(ent Entity, t ErrorType, badValue string) {
	s.StoreError(NewError(t, badValue).ForEntity(ent))
}

// StoreErrors records every error of errs.
func (s *ErrorStorage) StoreErrors(errs ErrorSet) {
	for _, e := range errs.Errors() {
		s.StoreError(e)
	}
}

// StoreError records e, assigning it the next error id.
func (s *ErrorStorage) StoreError(e Error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := s.nextID
	s.nextID++
	s.counts[e.Type]++
	if len(s.retained) < s.retain {
		s.retained = append(s.retained, e)
	}
	if s.store == nil {
		return
	}
	s.pending = append(s.pending, []any{
		int32(id),
		string(e.Type),
		string(e.Type.Priority()),
		copyText(e.Table),
		int32(e.Line),
		copyText(e.EntityID),
		copyText(e.Field),
		copyText(e.BadValue),
		copyText(e.Key),
		copyText(e.Value),
	})
}

// copyText converts s to COPY text form, dropping empty strings to NULL.
func copyText(s string) any {
	if s == "" {
		return nil
	}
	return CleanString(s).Value
}

// ErrorMark is the state of an ErrorStorage at some point of a load.
type ErrorMark struct {
	nextID   int
	counts   map[ErrorType]int
	retained int
	pending  [][]any
}

// Mark captures the current state. Errors still pending at the mark were not
// yet written, so Reset queues them again.
func (s *ErrorStorage) Mark() ErrorMark {
	s.mu.Lock()
	defer s.mu.Unlock()
	m := ErrorMark{
		nextID:   s.nextID,
		counts:   make(map[ErrorType]int, len(s.counts)),
		retained: len(s.retained),
		pending:  append([][]any(nil), s.pending...),
	}
	for t, n := range s.counts {
		m.counts[t] = n
	}
	return m
}

// Reset forgets every error recorded since m was taken. It is used when the
// transaction those errors were flushed into has been rolled back.
func (s *ErrorStorage) Reset(m ErrorMark) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = m.nextID
	s.counts = make(map[ErrorType]int, len(m.counts))
	for t, n := range m.counts {
		s.counts[t] = n
	}
	if m.retained < len(s.retained) {
		s.retained = s.retained[:m.retained]
	}
	s.pending = append([][]any(nil), m.pending...)
}

// Full reports whether enough errors are buffered to warrant a flush.
func (s *ErrorStorage) Full() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.pending) >= s.batchSize
}

// Flush writes buffered errors inside the store's current transaction.
func (s *ErrorStorage) Flush(ctx context.Context) error {
	s.mu.Lock()
	rows := s.pending
	s.pending = nil
	s.mu.Unlock()

	if s.store == nil || len(rows) == 0 {
		return nil
	}
	if err := s.store.CopyRows(ctx, ErrorsTable, errorColumns, rows); err != nil {
		return fmt.Errorf("store %d errors: %w", len(rows), err)
	}
	return nil
}

// Count returns the number of errors recorded.
func (s *ErrorStorage) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nextID
}

// CountByType returns a snapshot of the error counts per type.
func (s *ErrorStorage) CountByType() map[ErrorType]int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[ErrorType]int, len(s.counts))
	for t, n := range s.counts {
		out[t] = n
	}
	return out
}

// Retained returns the first errors recorded, up to the retention limit.
func (s *ErrorStorage) Retained() []Error {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Error, len(s.retained))
	copy(out, s.retained)
	return out
}
