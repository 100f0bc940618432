package core

import "strconv"

// LineContext gives field-by-name access to one parsed row. It refers to the
// row slice supplied by the RowSource rather than copying it. Slot 0 of the
// row holds the line number; the field at index i lives in slot i+1.
type LineContext struct {
	table *Table
	row   []string
	line  int
}

// NewLineContext wraps row for table. A malformed line number reads as 0.
func NewLineContext(table *Table, row []string) *LineContext {
	line := 0
	if len(row) > 0 {
		if n, err := strconv.Atoi(row[0]); err == nil {
			line = n
		}
	}
	return &LineContext{table: table, row: row, line: line}
}

// ValueAt returns the raw value of the field at index, or Absent when the
// row is too short to hold it.
func (c *LineContext) ValueAt(index int) string {
	slot := index + 1
	if slot >= len(c.row) {
		return Absent
	}
	return c.row[slot]
}

// ValueForRow returns the raw value of the named field, or Absent when the
// table has no such field or the row does not reach it.
func (c *LineContext) ValueForRow(name string) string {
	i, ok := c.table.FieldIndex(name)
	if !ok {
		return Absent
	}
	return c.ValueAt(i)
}

// TableName implements Entity.
func (c *LineContext) TableName() string { return c.table.Name() }

// LineNumber implements Entity.
func (c *LineContext) LineNumber() int { return c.line }

// EntityID implements Entity. It is the row's key field value, or empty when
// the key is absent.
func (c *LineContext) EntityID() string {
	v := c.ValueForRow(c.table.KeyField())
	if v == Absent {
		return ""
	}
	return v
}

// tableEntity attributes errors that are not tied to a parsed row.
type tableEntity struct {
	table string
	line  int
	id    string
}

func (e tableEntity) TableName() string { return e.table }
func (e tableEntity) LineNumber() int   { return e.line }
func (e tableEntity) EntityID() string  { return e.id }

// TableEntity returns an Entity for table-level errors of t.
func TableEntity(t *Table) Entity {
	return tableEntity{table: t.Name()}
}
