// Package core provides the typed field-validation and batched-loading engine
// for GTFS feeds. This package has no transport dependencies and can be used by
// any frontend.
package core

import (
	"context"
	"errors"
)

// ErrUnsupported is returned when an operation is invoked on a field type that
// structurally cannot support it.
var ErrUnsupported = errors.New("operation not supported by field type")

// ErrTableNotFound is returned by a Feed when the file for a table is absent.
var ErrTableNotFound = errors.New("table not found in feed")

// SQLNull is the NULL marker of the Postgres COPY text format.
const SQLNull = `\N`

// Absent is the value a row carries for a column its file does not have, and
// what a LineContext returns for a field beyond the end of a physical row. A
// NUL byte cannot be stored in a text column, so no real cell is lost to it;
// a literal \N cell is an ordinary value.
const Absent = "\x00"

// Requirement describes whether a column must carry a value.
type Requirement int

const (
	Required Requirement = iota
	Optional
	RequirementConditional
)

func (r Requirement) String() string {
	switch r {
	case Required:
		return "REQUIRED"
	case Optional:
		return "OPTIONAL"
	case RequirementConditional:
		return "CONDITIONALLY_REQUIRED"
	default:
		return "UNKNOWN"
	}
}

// SQLType identifies the storage type of a column independent of the backend.
type SQLType int

const (
	SQLText SQLType = iota
	SQLInteger
	SQLSmallInt
	SQLDouble
	SQLTextArray
)

func (t SQLType) String() string {
	switch t {
	case SQLText:
		return "text"
	case SQLInteger:
		return "integer"
	case SQLSmallInt:
		return "smallint"
	case SQLDouble:
		return "double"
	case SQLTextArray:
		return "text[]"
	default:
		return "unknown"
	}
}

// Dialect renders backend-specific SQL fragments.
type Dialect interface {
	Name() string
	QuoteIdent(name string) string
	// Qualify returns the schema-qualified, quoted name of a table.
	Qualify(schema, table string) string
	ColumnType(t SQLType) string
	CreateIndex(schema, table, column string, t SQLType) string
}

// Store is the schema-scoped storage a Loader writes to. A Store serves a
// single feed load and is not safe for concurrent use.
//
// String values handed to CopyRows are in Postgres COPY text form (see
// CleanString). Stores that bind parameters directly must unescape them.
type Store interface {
	Dialect() Dialect
	Schema() string
	// Exec runs a statement inside the current transaction, opening one if needed.
	Exec(ctx context.Context, sql string) error
	// CopyRows writes rows into table. Each row holds values in the order of columns.
	CopyRows(ctx context.Context, table string, columns []string, rows [][]any) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
	Close(ctx context.Context) error
}

// Connector opens a Store scoped to a feed-specific schema.
type Connector interface {
	Connect(ctx context.Context, schema string) (Store, error)
}

// Statement receives the positional parameters bound for one row.
type Statement interface {
	SetParameter(index int, value any)
	SetNull(index int)
}

// RowParams is the Statement used by the Loader. Slot 0 holds the csv line
// number; field i is bound at slot i+1.
type RowParams []any

// SetParameter implements Statement.
func (p RowParams) SetParameter(index int, value any) {
	p[index] = value
}

// SetNull implements Statement.
func (p RowParams) SetNull(index int) {
	p[index] = nil
}

// Entity identifies the row (or table) an error is attributed to.
type Entity interface {
	TableName() string
	LineNumber() int
	EntityID() string
}

// LoadPhase indicates the current stage of a table load.
type LoadPhase string

const (
	PhaseIdle     LoadPhase = "idle"
	PhaseReading  LoadPhase = "reading"
	PhaseBinding  LoadPhase = "binding"
	PhaseFlushing LoadPhase = "flushing"
	PhaseClosed   LoadPhase = "closed"
	PhaseFailed   LoadPhase = "failed"
)
