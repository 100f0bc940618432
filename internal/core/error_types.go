package core

import (
	"fmt"
	"sort"
)

// Priority ranks how much an error type affects the usability of a feed.
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// ErrorType is the kind of problem found in a feed.
type ErrorType string

const (
	// Parse and type errors.
	NumberParsing  ErrorType = "NUMBER_PARSING"
	DateFormat     ErrorType = "DATE_FORMAT"
	TimeFormat     ErrorType = "TIME_FORMAT"
	ColorFormat    ErrorType = "COLOR_FORMAT"
	LanguageFormat ErrorType = "LANGUAGE_FORMAT"
	URLFormat      ErrorType = "URL_FORMAT"
	EmailFormat    ErrorType = "EMAIL_FORMAT"
	CurrencyCode   ErrorType = "CURRENCY_UNKNOWN"
	TimezoneName   ErrorType = "TIMEZONE_UNKNOWN"

	// Range errors.
	NumberTooSmall ErrorType = "NUMBER_TOO_SMALL"
	NumberTooLarge ErrorType = "NUMBER_TOO_LARGE"
	DateRange      ErrorType = "DATE_RANGE"

	IllegalFieldValue     ErrorType = "ILLEGAL_FIELD_VALUE"
	MissingField          ErrorType = "MISSING_FIELD"
	MissingColumn         ErrorType = "MISSING_COLUMN"
	MissingTable          ErrorType = "MISSING_TABLE"
	ConditionallyRequired ErrorType = "CONDITIONALLY_REQUIRED"
	ReferentialIntegrity  ErrorType = "REFERENTIAL_INTEGRITY"
	DuplicateID           ErrorType = "DUPLICATE_ID"
	TableLoadFailure      ErrorType = "TABLE_LOAD_FAILURE"
)

type errorTypeInfo struct {
	priority Priority
	message  string
}

var errorTypes = map[ErrorType]errorTypeInfo{
	NumberParsing:         {PriorityMedium, "Unable to parse number from value."},
	DateFormat:            {PriorityMedium, "Date does not match GTFS YYYYMMDD date format."},
	TimeFormat:            {PriorityMedium, "Time does not match GTFS HH:MM:SS time format."},
	ColorFormat:           {PriorityMedium, "Color should be specified with six-character hexadecimal notation."},
	LanguageFormat:        {PriorityLow, "Language should be specified with a valid BCP47 tag."},
	URLFormat:             {PriorityLow, "URL format should be <scheme>://<authority><path>?<query>#<fragment>."},
	EmailFormat:           {PriorityLow, "Email address is not valid."},
	CurrencyCode:          {PriorityMedium, "Currency code is not a known ISO 4217 code."},
	TimezoneName:          {PriorityMedium, "Time zone is not a known IANA time zone name."},
	NumberTooSmall:        {PriorityMedium, "Number was below the allowed range."},
	NumberTooLarge:        {PriorityMedium, "Number was above the allowed range."},
	DateRange:             {PriorityMedium, "Date should be between the years 2000 and 2100."},
	IllegalFieldValue:     {PriorityMedium, "Fields may not contain tabs, carriage returns or new lines."},
	MissingField:          {PriorityMedium, "A required field was missing or empty in a particular row."},
	MissingColumn:         {PriorityMedium, "A required column was missing from a table."},
	MissingTable:          {PriorityHigh, "This table is required by the GTFS specification but is missing."},
	ConditionallyRequired: {PriorityHigh, "A conditionally required field was missing in a particular row."},
	ReferentialIntegrity:  {PriorityHigh, "This line references an ID that does not exist in the target table."},
	DuplicateID:           {PriorityHigh, "More than one entity in a table has the same ID."},
	TableLoadFailure:      {PriorityHigh, "The table could not be loaded."},
}

// Priority returns the severity class of the error type.
func (t ErrorType) Priority() Priority {
	if info, ok := errorTypes[t]; ok {
		return info.priority
	}
	return PriorityLow
}

// Message returns the human-readable description of the error type.
func (t ErrorType) Message() string {
	if info, ok := errorTypes[t]; ok {
		return info.message
	}
	return string(t)
}

// Error is a single problem found while loading a feed. Errors are values and
// are comparable, so identical problems collapse inside an ErrorSet.
type Error struct {
	Type     ErrorType
	Table    string
	Line     int
	EntityID string
	Field    string
	BadValue string
	// Key and Value carry extra context, e.g. the conditional check that failed.
	Key   string
	Value string
}

// NewError creates an error of the given type carrying the offending value.
func NewError(t ErrorType, badValue string) Error {
	return Error{Type: t, BadValue: badValue}
}

// ForField returns a copy of e attributed to the named field.
func (e Error) ForField(name string) Error {
	e.Field = name
	return e
}

// ForEntity returns a copy of e attributed to the entity's table, line and id.
func (e Error) ForEntity(ent Entity) Error {
	e.Table = ent.TableName()
	e.Line = ent.LineNumber()
	e.EntityID = ent.EntityID()
	return e
}

// WithContext returns a copy of e carrying a key/value pair.
func (e Error) WithContext(key, value string) Error {
	e.Key = key
	e.Value = value
	return e
}

func (e Error) String() string {
	s := fmt.Sprintf("%s %s:%d", e.Type, e.Table, e.Line)
	if e.Field != "" {
		s += " field=" + e.Field
	}
	if e.BadValue != "" {
		s += fmt.Sprintf(" value=%q", e.BadValue)
	}
	if e.Key != "" {
		s += fmt.Sprintf(" %s=%s", e.Key, e.Value)
	}
	return s
}

// ErrorSet is an insertion-ordered set of errors. The zero value is ready to use.
type ErrorSet struct {
	items map[Error]struct{}
	order []Error
}

// Add inserts e and reports whether it was not already present.
func (s *ErrorSet) Add(e Error) bool {
	if s.items == nil {
		s.items = make(map[Error]struct{})
	}
	if _, ok := s.items[e]; ok {
		return false
	}
	s.items[e] = struct{}{}
	s.order = append(s.order, e)
	return true
}

// AddAll inserts every error of other.
func (s *ErrorSet) AddAll(other ErrorSet) {
	for _, e := range other.order {
		s.Add(e)
	}
}

// Len returns the number of distinct errors.
func (s ErrorSet) Len() int {
	return len(s.order)
}

// Empty reports whether the set holds no errors.
func (s ErrorSet) Empty() bool {
	return len(s.order) == 0
}

// Errors returns the errors in insertion order. The slice must not be modified.
func (s ErrorSet) Errors() []Error {
	return s.order
}

// Has reports whether any error of type t is present.
func (s ErrorSet) Has(t ErrorType) bool {
	return s.Count(t) > 0
}

// Count returns the number of errors of type t.
func (s ErrorSet) Count(t ErrorType) int {
	n := 0
	for _, e := range s.order {
		if e.Type == t {
			n++
		}
	}
	return n
}

// Sorted returns the errors ordered by line, then type, then field.
func (s ErrorSet) Sorted() []Error {
	out := make([]Error, len(s.order))
	copy(out, s.order)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		if a.Type != b.Type {
			return a.Type < b.Type
		}
		return a.Field < b.Field
	})
	return out
}

// ValidationResult pairs a converted value with the errors found producing it.
// Valid is false when the value could not be produced and must be stored as NULL.
type ValidationResult[T any] struct {
	Value  T
	Valid  bool
	Errors ErrorSet
}

func validResult[T any](v T) ValidationResult[T] {
	return ValidationResult[T]{Value: v, Valid: true}
}

func invalidResult[T any](e Error) ValidationResult[T] {
	var r ValidationResult[T]
	r.Errors.Add(e)
	return r
}
