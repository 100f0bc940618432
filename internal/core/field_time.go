package core

import (
	"strconv"
	"strings"
	"time"
)

const (
	gtfsDateLayout = "20060102"
	minDateYear    = 2000
	maxDateYear    = 2100
)

// DateField holds a service date in YYYYMMDD form.
type DateField struct {
	fieldBase
}

func NewDateField(name string, req Requirement, opts ...FieldOption) *DateField {
	return &DateField{newFieldBase(name, req, SQLText, opts)}
}

func (f *DateField) convert(raw string) (ValidationResult[string], any) {
	result := validateDate(raw)
	return result, result.Value
}

// ValidateAndConvert implements Field.
func (f *DateField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result := validateDate(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *DateField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}

// validateDate accepts exactly eight digits forming a real calendar date.
// Dates outside the supported years are reported but kept.
func validateDate(raw string) ValidationResult[string] {
	s := strings.TrimSpace(raw)
	if len(s) != len(gtfsDateLayout) {
		return invalidResult[string](NewError(DateFormat, raw))
	}
	d, err := time.Parse(gtfsDateLayout, s)
	if err != nil {
		return invalidResult[string](NewError(DateFormat, raw))
	}
	result := validResult(s)
	if d.Year() < minDateYear || d.Year() > maxDateYear {
		result.Errors.Add(NewError(DateRange, raw))
	}
	return result
}

// DateListField holds a comma separated list of dates, stored as an array.
// It has no single string form, so ValidateAndConvert is unsupported.
type DateListField struct {
	fieldBase
}

func NewDateListField(name string, req Requirement, opts ...FieldOption) *DateListField {
	return &DateListField{newFieldBase(name, req, SQLTextArray, opts)}
}

// ValidateAndConvert implements Field. It always fails with ErrUnsupported.
func (f *DateListField) ValidateAndConvert(string) (ValidationResult[string], error) {
	return ValidationResult[string]{}, ErrUnsupported
}

// Bind implements Field. Invalid dates are reported and dropped from the list.
func (f *DateListField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, func(raw string) (ValidationResult[string], any) {
		var result ValidationResult[string]
		dates := make([]string, 0, strings.Count(raw, ",")+1)
		for _, part := range strings.Split(raw, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			d := validateDate(part)
			result.Errors.AddAll(d.Errors)
			if d.Valid {
				dates = append(dates, d.Value)
			}
		}
		result.Value = strings.Join(dates, ",")
		result.Valid = len(dates) > 0
		return result, dates
	})
}

// TimeField holds a time of day in H:MM:SS form, stored as seconds since
// midnight. Hours may exceed 23 for trips running past midnight.
type TimeField struct {
	fieldBase
}

func NewTimeField(name string, req Requirement, opts ...FieldOption) *TimeField {
	return &TimeField{newFieldBase(name, req, SQLInteger, opts)}
}

func (f *TimeField) convert(raw string) (ValidationResult[string], any) {
	secs, ok := parseGTFSTime(raw)
	if !ok {
		return invalidResult[string](NewError(TimeFormat, raw)), nil
	}
	return validResult(strconv.Itoa(int(secs))), secs
}

// ValidateAndConvert implements Field.
func (f *TimeField) ValidateAndConvert(raw string) (ValidationResult[string], error) {
	result, _ := f.convert(raw)
	result.Errors = attribute(result.Errors, f.name)
	return result, nil
}

// Bind implements Field.
func (f *TimeField) Bind(stmt Statement, index int, raw string) ErrorSet {
	return f.bindWith(stmt, index, raw, f.convert)
}

func parseGTFSTime(raw string) (int32, bool) {
	parts := strings.Split(strings.TrimSpace(raw), ":")
	if len(parts) != 3 {
		return 0, false
	}
	var fields [3]int
	for i, p := range parts {
		if p == "" || (i == 0 && len(p) > 3) || (i > 0 && len(p) != 2) {
			return 0, false
		}
		n := 0
		for _, c := range p {
			if c < '0' || c > '9' {
				return 0, false
			}
			n = n*10 + int(c-'0')
		}
		fields[i] = n
	}
	h, m, s := fields[0], fields[1], fields[2]
	if m > 59 || s > 59 {
		return 0, false
	}
	return int32(h*3600 + m*60 + s), true
}
