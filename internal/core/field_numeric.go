package core

import (
	"errors"
	"math"
	"strconv"
	"strings"
)

// A value that fails to parse is bound as NULL and no range check runs. A
// parsed value outside its bounds is reported and still stored.

// IntegerField is a 32-bit integer with inclusive bounds.
type IntegerField struct {
	fieldBase
	min, max int64
}

// NewIntegerField creates an integer column accepting the full int32 range.
func NewIntegerField(name string, req Requirement, opts ...FieldOption) *IntegerField {
	return NewBoundedIntegerField(name, req, math.MinInt32, math.MaxInt32, opts...)
}

// NewBoundedIntegerField creates an integer column accepting [min, max].
func NewBoundedIntegerField(name string, req Requirement, min, max int32, opts ...FieldOption) *IntegerField {
	return &IntegerField{
		fieldBase: newFieldBase(name, req, SQLInteger, opts),
		min:       int64(min),
		max:       int64(max),
	}
}

func (f *IntegerField) convert(raw string) (ValidationResult[string], any) {
	n, result := parseBoundedInt(raw, f.min, f.max)
	if n < math.MinInt32 || n > math.MaxInt32 {
		result.Valid = false
	}
	return result, int32(n)
}

// ValidateAndConvert implements Field.
func (f *IntegerField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result, _ := f.convert(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *IntegerField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}

// ShortField is a 16-bit integer with inclusive bounds, used for enumerations.
type ShortField struct {
	fieldBase
	min, max int64
}

// NewShortField creates a smallint column accepting [min, max].
func NewShortField(name string, req Requirement, min, max int16, opts ...FieldOption) *ShortField {
	return &ShortField{
		fieldBase: newFieldBase(name, req, SQLSmallInt, opts),
		min:       int64(min),
		max:       int64(max),
	}
}

func (f *ShortField) convert(raw string) (ValidationResult[string], any) {
	n, result := parseBoundedInt(raw, f.min, f.max)
	if n < math.MinInt16 || n > math.MaxInt16 {
		result.Valid = false
	}
	return result, int16(n)
}

// ValidateAndConvert implements Field.
func (f *ShortField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result, _ := f.convert(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *ShortField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}

// parseBoundedInt parses a base-10 integer. Values that overflow int64 are
// reported as out of range rather than unparseable.
func parseBoundedInt(raw string, min, max int64) (int64, ValidationResult[string]) {
	s := strings.TrimSpace(raw)
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		if !errors.Is(err, strconv.ErrRange) {
			return 0, invalidResult[string](NewError(NumberParsing, raw))
		}
		if strings.HasPrefix(s, "-") {
			return 0, invalidResult[string](NewError(NumberTooSmall, raw))
		}
		return 0, invalidResult[string](NewError(NumberTooLarge, raw))
	}
	result := validResult(strconv.FormatInt(n, 10))
	switch {
	case n < min:
		result.Errors.Add(NewError(NumberTooSmall, raw))
	case n > max:
		result.Errors.Add(NewError(NumberTooLarge, raw))
	}
	return n, result
}

// DoubleField is a 64-bit float with inclusive bounds, e.g. a coordinate.
type DoubleField struct {
	fieldBase
	min, max float64
}

// NewDoubleField creates a double column accepting [min, max].
func NewDoubleField(name string, req Requirement, min, max float64, opts ...FieldOption) *DoubleField {
	return &DoubleField{
		fieldBase: newFieldBase(name, req, SQLDouble, opts),
		min:       min,
		max:       max,
	}
}

func (f *DoubleField) convert(raw string) (ValidationResult[string], any) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return invalidResult[string](NewError(NumberParsing, raw)), nil
	}
	result := validResult(strconv.FormatFloat(v, 'f', -1, 64))
	switch {
	case v < f.min:
		result.Errors.Add(NewError(NumberTooSmall, raw))
	case v > f.max:
		result.Errors.Add(NewError(NumberTooLarge, raw))
	}
	return result, v
}

// ValidateAndConvert implements Field.
func (f *DoubleField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result, _ := f.convert(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *DoubleField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}
