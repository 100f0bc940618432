package core

// field.go defines the closed family of typed columns.
//
// A Field validates raw text from a feed, converts it to its storage form and
// binds it onto a Statement. Shared behavior (requirement level, emptiness,
// foreign references, indexing, conditional rules) lives in fieldBase; each
// variant only knows how to parse and convert its own type.

// Field is a typed column of a Table.
type Field interface {
	Name() string
	Requirement() Requirement
	IsRequired() bool
	// ForeignTable returns the table this field references, or nil.
	ForeignTable() *Table
	IsForeignReference() bool
	ShouldBeIndexed() bool
	EmptyValuePermitted() bool
	IsConditionallyRequired() bool
	Conditions() []ConditionalRequirement
	SQLType() SQLType

	// ValidateAndConvert checks a non-null raw value and returns its cleaned
	// storage form. It returns ErrUnsupported for types that cannot produce a
	// single string form.
	ValidateAndConvert(raw string) (ValidationResult[string], error)

	// Bind validates raw and sets the parameter at index. Empty or absent
	// values are handled here; invalid values are bound as NULL.
	Bind(stmt Statement, index int, raw string) ErrorSet

	base() *fieldBase
}

// FieldOption configures a field at schema-construction time.
type FieldOption func(*fieldBase)

// ForeignKey marks the field as referencing the key of table t.
func ForeignKey(t *Table) FieldOption {
	return func(f *fieldBase) {
		f.foreign = t
	}
}

// Indexed requests an index on the column once its table is loaded.
func Indexed() FieldOption {
	return func(f *fieldBase) {
		f.indexed = true
	}
}

// PermitEmptyValue allows an empty value in a required field. The empty
// string reaches storage as-is instead of NULL.
func PermitEmptyValue() FieldOption {
	return func(f *fieldBase) {
		f.permitEmpty = true
	}
}

// RequireConditions marks the field as conditionally required and attaches
// the rules evaluated whenever it carries a value.
func RequireConditions(rules ...ConditionalRequirement) FieldOption {
	return func(f *fieldBase) {
		f.requirement = RequirementConditional
		f.conditions = append(f.conditions, rules...)
	}
}

type fieldBase struct {
	name        string
	requirement Requirement
	sqlType     SQLType
	foreign     *Table
	indexed     bool
	permitEmpty bool
	conditions  []ConditionalRequirement
}

func newFieldBase(name string, req Requirement, t SQLType, opts []FieldOption) fieldBase {
	b := fieldBase{name: name, requirement: req, sqlType: t}
	for _, opt := range opts {
		opt(&b)
	}
	return b
}

func (f *fieldBase) base() *fieldBase                     { return f }
func (f *fieldBase) Name() string                         { return f.name }
func (f *fieldBase) Requirement() Requirement             { return f.requirement }
func (f *fieldBase) IsRequired() bool                     { return f.requirement == Required }
func (f *fieldBase) ForeignTable() *Table                 { return f.foreign }
func (f *fieldBase) IsForeignReference() bool             { return f.foreign != nil }
func (f *fieldBase) ShouldBeIndexed() bool                { return f.indexed }
func (f *fieldBase) EmptyValuePermitted() bool            { return f.permitEmpty }
func (f *fieldBase) Conditions() []ConditionalRequirement { return f.conditions }
func (f *fieldBase) SQLType() SQLType                     { return f.sqlType }

// IsConditionallyRequired reports whether the field carries conditional rules.
func (f *fieldBase) IsConditionallyRequired() bool {
	return f.requirement == RequirementConditional && len(f.conditions) > 0
}

// bindEmpty binds absent and empty values. It reports whether raw was handled.
func (f *fieldBase) bindEmpty(stmt Statement, index int, raw string) (ErrorSet, bool) {
	var errs ErrorSet
	if raw != "" && raw != Absent {
		return errs, false
	}
	if f.requirement == Required && !(f.permitEmpty && raw == "") {
		errs.Add(NewError(MissingField, "").ForField(f.name))
	}
	if raw == "" && f.permitEmpty && f.sqlType == SQLText {
		stmt.SetParameter(index, "")
	} else {
		stmt.SetNull(index)
	}
	return errs, true
}

// convertFunc returns the storage-ready string and the typed value to bind.
type convertFunc func(raw string) (ValidationResult[string], any)

func (f *fieldBase) bindWith(stmt Statement, index int, raw string, convert convertFunc) ErrorSet {
	if errs, done := f.bindEmpty(stmt, index, raw); done {
		return errs
	}
	result, value := convert(raw)
	if result.Valid {
		stmt.SetParameter(index, value)
	} else {
		stmt.SetNull(index)
	}
	return attribute(result.Errors, f.name)
}

func attribute(errs ErrorSet, field string) ErrorSet {
	var out ErrorSet
	for _, e := range errs.Errors() {
		out.Add(e.ForField(field))
	}
	return out
}

// SQLDeclaration returns the column definition of f for dialect d.
func SQLDeclaration(f Field, d Dialect) string {
	return d.QuoteIdent(f.Name()) + " " + d.ColumnType(f.SQLType())
}
