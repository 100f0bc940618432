package core

// conditional.go evaluates cross-field rules for conditionally required fields.
//
// A rule belongs to its governing field. Row-level rules run only when the
// governing field carries a value in that row. The row-count rule is deferred
// until the whole table has been read. Every rule of a field is evaluated; a
// failure never hides the remaining rules.

import (
	"strconv"
	"strings"
)

// ConditionalCheck is the kind of rule a ConditionalRequirement applies.
type ConditionalCheck int

const (
	// FieldNotEmpty requires a companion field to carry a value.
	FieldNotEmpty ConditionalCheck = iota
	// FieldInRange requires a companion field's numeric value within [Min, Max].
	FieldInRange
	// ForeignFieldValueMatch requires the governing value to appear in a
	// column of an already loaded table.
	ForeignFieldValueMatch
	// RowCountGreaterThanOne requires the governing field in every row once
	// the table holds more than one row.
	RowCountGreaterThanOne
)

func (c ConditionalCheck) String() string {
	switch c {
	case FieldNotEmpty:
		return "FIELD_NOT_EMPTY"
	case FieldInRange:
		return "FIELD_IN_RANGE"
	case ForeignFieldValueMatch:
		return "FOREIGN_FIELD_VALUE_MATCH"
	case RowCountGreaterThanOne:
		return "ROW_COUNT_GREATER_THAN_ONE"
	default:
		return "UNKNOWN"
	}
}

// ConditionalRequirement is one rule attached to a governing field.
type ConditionalRequirement struct {
	Check ConditionalCheck
	// Field names the companion field for FieldNotEmpty and FieldInRange.
	Field    string
	Min, Max float64
	// Table and Column name the referenced column for ForeignFieldValueMatch.
	Table  string
	Column string
}

func RequireNotEmpty(companion string) ConditionalRequirement {
	return ConditionalRequirement{Check: FieldNotEmpty, Field: companion}
}

func RequireInRange(companion string, min, max float64) ConditionalRequirement {
	return ConditionalRequirement{Check: FieldInRange, Field: companion, Min: min, Max: max}
}

func RequireForeignValue(table, column string) ConditionalRequirement {
	return ConditionalRequirement{Check: ForeignFieldValueMatch, Table: table, Column: column}
}

func RequireWhenMultipleRows() ConditionalRequirement {
	return ConditionalRequirement{Check: RowCountGreaterThanOne}
}

// target describes what the rule points at, for error context.
func (r ConditionalRequirement) target() string {
	switch r.Check {
	case FieldInRange:
		return r.Field + "[" + formatBound(r.Min) + "," + formatBound(r.Max) + "]"
	case ForeignFieldValueMatch:
		return r.Table + "." + r.Column
	case RowCountGreaterThanOne:
		return "row_count>1"
	default:
		return r.Field
	}
}

func formatBound(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (r ConditionalRequirement) failure(governing Field, badValue string) Error {
	return NewError(ConditionallyRequired, badValue).
		ForField(governing.Name()).
		WithContext(r.Check.String(), r.target())
}

// ConditionEvaluator applies conditional rules for one feed load.
type ConditionEvaluator struct {
	refs *ReferenceTracker
	// pending holds rows missing a governing value under a row-count rule.
	pending map[string][]pendingRow
}

type pendingRow struct {
	entity tableEntity
	field  Field
	rule   ConditionalRequirement
}

func NewConditionEvaluator(refs *ReferenceTracker) *ConditionEvaluator {
	return &ConditionEvaluator{refs: refs, pending: make(map[string][]pendingRow)}
}

// EvaluateRow checks the rules of governing against the current row. Errors
// are attributed to the row.
func (e *ConditionEvaluator) EvaluateRow(line *LineContext, governing Field) ErrorSet {
	var errs ErrorSet
	if !governing.IsConditionallyRequired() {
		return errs
	}
	value := line.ValueForRow(governing.Name())
	present := hasValue(value)

	for _, rule := range governing.Conditions() {
		if rule.Check == RowCountGreaterThanOne {
			if !present {
				table := line.TableName()
				e.pending[table] = append(e.pending[table], pendingRow{
					entity: tableEntity{table: table, line: line.LineNumber(), id: line.EntityID()},
					field:  governing,
					rule:   rule,
				})
			}
			continue
		}
		if !present {
			continue
		}
		if err, failed := e.checkRow(line, governing, value, rule); failed {
			errs.Add(err.ForEntity(line))
		}
	}
	return errs
}

func (e *ConditionEvaluator) checkRow(line *LineContext, governing Field, value string, rule ConditionalRequirement) (Error, bool) {
	switch rule.Check {
	case FieldNotEmpty:
		companion := line.ValueForRow(rule.Field)
		return rule.failure(governing, value), !hasValue(companion)
	case FieldInRange:
		companion := line.ValueForRow(rule.Field)
		v, err := strconv.ParseFloat(strings.TrimSpace(companion), 64)
		inRange := err == nil && v >= rule.Min && v <= rule.Max
		if companion == Absent {
			companion = ""
		}
		return rule.failure(governing, companion), !inRange
	case ForeignFieldValueMatch:
		return rule.failure(governing, value), !e.refs.HasValue(rule.Table, rule.Column, value)
	default:
		return Error{}, false
	}
}

// EvaluateTable runs deferred rules once table has been fully read.
func (e *ConditionEvaluator) EvaluateTable(table string, rowCount int) ErrorSet {
	var errs ErrorSet
	rows := e.pending[table]
	delete(e.pending, table)
	if rowCount <= 1 {
		return errs
	}
	for _, p := range rows {
		errs.Add(p.rule.failure(p.field, "").ForEntity(p.entity))
	}
	return errs
}

// Discard drops the deferred rows of table without evaluating them.
func (e *ConditionEvaluator) Discard(table string) {
	delete(e.pending, table)
}

// TrackReferencedColumns registers with refs every column named by a
// foreign value-match rule in tables.
func TrackReferencedColumns(refs *ReferenceTracker, tables []*Table) {
	for _, t := range tables {
		for _, f := range t.Fields() {
			for _, rule := range f.Conditions() {
				if rule.Check == ForeignFieldValueMatch {
					refs.Track(rule.Table, rule.Column)
				}
			}
		}
	}
}

func hasValue(raw string) bool {
	return raw != "" && raw != Absent
}
