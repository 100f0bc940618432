package core

import (
	"fmt"
	"strings"
)

// LineNumberColumn is the leading column of every loaded table.
const LineNumberColumn = "csv_line"

// Table is the ordered, immutable schema of one feed file. Builder methods
// may only be called while the schema is being declared.
type Table struct {
	name            string
	fields          []Field
	byName          map[string]int
	keyField        string
	uniqueKey       bool
	required        bool
	extended        bool
	providesKeysFor *Table
}

// NewTable declares a table. The first field is the key field unless
// WithKey says otherwise. It panics on duplicate field names.
func NewTable(name string, fields ...Field) *Table {
	t := &Table{
		name:      name,
		fields:    fields,
		byName:    make(map[string]int, len(fields)),
		uniqueKey: true,
	}
	for i, f := range fields {
		if _, dup := t.byName[f.Name()]; dup {
			panic(fmt.Sprintf("table %s: duplicate field %s", name, f.Name()))
		}
		t.byName[f.Name()] = i
	}
	if len(fields) > 0 {
		t.keyField = fields[0].Name()
	}
	return t
}

// WithKey sets the field identifying an entity and returns t. It panics if
// the table has no such field.
func (t *Table) WithKey(name string) *Table {
	if _, ok := t.byName[name]; !ok {
		panic(fmt.Sprintf("table %s: unknown key field %s", t.name, name))
	}
	t.keyField = name
	return t
}

// ReferencesSelf makes field a foreign key to the table's own key, as with
// stops.parent_station. Values are checked against the keys read so far.
func (t *Table) ReferencesSelf(field string) *Table {
	i, ok := t.byName[field]
	if !ok {
		panic(fmt.Sprintf("table %s: unknown field %s", t.name, field))
	}
	t.fields[i].base().foreign = t
	return t
}

// NonUniqueKey allows several rows to share a key value, as in stop_times.
func (t *Table) NonUniqueKey() *Table {
	t.uniqueKey = false
	return t
}

// RequiredInFeed marks the table's file as mandatory.
func (t *Table) RequiredInFeed() *Table {
	t.required = true
	return t
}

// Extended marks the table as outside the core GTFS tables.
func (t *Table) Extended() *Table {
	t.extended = true
	return t
}

// ProvidesKeysFor makes this table's key values satisfy references to other,
// e.g. calendar_dates service ids satisfy references to calendar.
func (t *Table) ProvidesKeysFor(other *Table) *Table {
	t.providesKeysFor = other
	return t
}

func (t *Table) Name() string            { return t.name }
func (t *Table) KeyField() string        { return t.keyField }
func (t *Table) Fields() []Field         { return t.fields }
func (t *Table) HasUniqueKey() bool      { return t.uniqueKey }
func (t *Table) IsRequired() bool        { return t.required }
func (t *Table) IsExtended() bool        { return t.extended }
func (t *Table) KeysProvidedFor() *Table { return t.providesKeysFor }

// FileName is the name of the table's file inside a feed.
func (t *Table) FileName() string { return t.name + ".txt" }

// FieldIndex returns the position of the named field.
func (t *Table) FieldIndex(name string) (int, bool) {
	i, ok := t.byName[name]
	return i, ok
}

// Field returns the named field.
func (t *Table) Field(name string) (Field, bool) {
	i, ok := t.byName[name]
	if !ok {
		return nil, false
	}
	return t.fields[i], true
}

// ColumnNames returns the stored column names, starting with LineNumberColumn.
func (t *Table) ColumnNames() []string {
	cols := make([]string, 0, len(t.fields)+1)
	cols = append(cols, LineNumberColumn)
	for _, f := range t.fields {
		cols = append(cols, f.Name())
	}
	return cols
}

// CreateSQL returns the DDL creating the table in schema.
func (t *Table) CreateSQL(d Dialect, schema string) string {
	var b strings.Builder
	b.WriteString("CREATE TABLE IF NOT EXISTS ")
	b.WriteString(d.Qualify(schema, t.name))
	b.WriteString(" (")
	b.WriteString(d.QuoteIdent(LineNumberColumn))
	b.WriteString(" ")
	b.WriteString(d.ColumnType(SQLInteger))
	for _, f := range t.fields {
		b.WriteString(", ")
		b.WriteString(SQLDeclaration(f, d))
	}
	b.WriteString(")")
	return b.String()
}

// IndexSQL returns the statements indexing the fields marked for indexing.
func (t *Table) IndexSQL(d Dialect, schema string) []string {
	var stmts []string
	for _, f := range t.fields {
		if f.ShouldBeIndexed() {
			stmts = append(stmts, d.CreateIndex(schema, t.name, f.Name(), f.SQLType()))
		}
	}
	return stmts
}
