// Package schema declares additional feed tables in YAML. A declaration is
// validated, then compiled to core tables that load after the standard GTFS
// tables:
//
//	tables:
//	  - name: fare_media
//	    extended: true
//	    fields:
//	      - name: fare_media_id
//	        type: string
//	        requirement: required
//	      - name: fare_media_type
//	        type: short
//	        min: 0
//	        max: 4
package schema

import (
	"fmt"
	"io"
	"math"
	"os"
	"regexp"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// FieldType names a field type in a declaration.
type FieldType string

const (
	FieldString   FieldType = "string"
	FieldInteger  FieldType = "integer"
	FieldShort    FieldType = "short"
	FieldDouble   FieldType = "double"
	FieldDate     FieldType = "date"
	FieldDateList FieldType = "date_list"
	FieldTime     FieldType = "time"
	FieldColor    FieldType = "color"
	FieldLanguage FieldType = "language"
	FieldURL      FieldType = "url"
	FieldEmail    FieldType = "email"
	FieldCurrency FieldType = "currency"
	FieldTimezone FieldType = "timezone"
)

// File is the top level of a schema file.
type File struct {
	Tables []TableSpec `yaml:"tables" validate:"required,min=1,dive"`
}

// TableSpec declares one table. The key defaults to the first field.
type TableSpec struct {
	Name      string      `yaml:"name" validate:"required,identifier"`
	Key       string      `yaml:"key"`
	UniqueKey *bool       `yaml:"unique_key"`
	Required  bool        `yaml:"required"`
	Extended  bool        `yaml:"extended"`
	Fields    []FieldSpec `yaml:"fields" validate:"required,min=1,dive"`
}

// FieldSpec declares one field. Min and Max apply to numeric types and
// default to the range of the storage type.
type FieldSpec struct {
	Name        string          `yaml:"name" validate:"required,identifier"`
	Type        FieldType       `yaml:"type" validate:"required,oneof=string integer short double date date_list time color language url email currency timezone"`
	Requirement string          `yaml:"requirement" validate:"omitempty,oneof=required optional"`
	Min         *float64        `yaml:"min"`
	Max         *float64        `yaml:"max"`
	ForeignKey  string          `yaml:"foreign_key"`
	Indexed     bool            `yaml:"indexed"`
	PermitEmpty bool            `yaml:"permit_empty"`
	Conditions  []ConditionSpec `yaml:"conditions" validate:"dive"`
}

// ConditionSpec declares a conditional requirement on a field.
type ConditionSpec struct {
	Check  string  `yaml:"check" validate:"required,oneof=field_not_empty field_in_range foreign_field_value_match row_count_greater_than_one"`
	Field  string  `yaml:"field" validate:"required_if=Check field_not_empty,required_if=Check field_in_range"`
	Min    float64 `yaml:"min"`
	Max    float64 `yaml:"max" validate:"gtefield=Min"`
	Table  string  `yaml:"table" validate:"required_if=Check foreign_field_value_match"`
	Column string  `yaml:"column" validate:"required_if=Check foreign_field_value_match"`
}

var (
	validate     = newValidator()
	identifierRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)
)

// newValidator adds the identifier tag for table and column names.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("identifier", func(fl validator.FieldLevel) bool {
		return identifierRe.MatchString(fl.Field().String())
	})
	return v
}

// Parse decodes and validates a schema file. Unknown keys are rejected.
func Parse(r io.Reader) (*File, error) {
	var f File
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		if err == io.EOF {
			return nil, fmt.Errorf("parse schema: empty document")
		}
		return nil, fmt.Errorf("parse schema: %w", err)
	}
	if err := validate.Struct(f); err != nil {
		return nil, fmt.Errorf("invalid schema: %w", err)
	}
	return &f, nil
}

// Load reads the schema file at path and compiles its tables. Foreign keys
// may name registered tables or tables declared earlier in the file.
func Load(path string) ([]*core.Table, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	f, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tables, err := f.Compile(core.Get)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return tables, nil
}

// Compile builds the declared tables in order. lookup resolves tables that
// are not declared in the file.
func (f *File) Compile(lookup func(name string) (*core.Table, bool)) ([]*core.Table, error) {
	declared := make(map[string]*core.Table, len(f.Tables))
	resolve := func(name string) (*core.Table, bool) {
		if t, ok := declared[name]; ok {
			return t, true
		}
		return lookup(name)
	}

	tables := make([]*core.Table, 0, len(f.Tables))
	for _, spec := range f.Tables {
		if _, exists := resolve(spec.Name); exists {
			return nil, fmt.Errorf("table %s is already defined", spec.Name)
		}
		t, err := spec.compile(resolve)
		if err != nil {
			return nil, fmt.Errorf("table %s: %w", spec.Name, err)
		}
		declared[spec.Name] = t
		tables = append(tables, t)
	}
	return tables, nil
}

func (s TableSpec) compile(resolve func(string) (*core.Table, bool)) (*core.Table, error) {
	seen := make(map[string]bool, len(s.Fields))
	fields := make([]core.Field, 0, len(s.Fields))
	for _, fs := range s.Fields {
		if seen[fs.Name] {
			return nil, fmt.Errorf("duplicate field %s", fs.Name)
		}
		seen[fs.Name] = true

		field, err := fs.compile(resolve)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", fs.Name, err)
		}
		fields = append(fields, field)
	}

	t := core.NewTable(s.Name, fields...)
	if s.Key != "" {
		if !seen[s.Key] {
			return nil, fmt.Errorf("key %s is not a field", s.Key)
		}
		t.WithKey(s.Key)
	}
	if s.UniqueKey != nil && !*s.UniqueKey {
		t.NonUniqueKey()
	}
	if s.Required {
		t.RequiredInFeed()
	}
	if s.Extended {
		t.Extended()
	}
	return t, nil
}

func (fs FieldSpec) compile(resolve func(string) (*core.Table, bool)) (core.Field, error) {
	req := core.Optional
	if fs.Requirement == "required" {
		req = core.Required
	}

	var opts []core.FieldOption
	if fs.ForeignKey != "" {
		ref, ok := resolve(fs.ForeignKey)
		if !ok {
			return nil, fmt.Errorf("foreign key to unknown table %s", fs.ForeignKey)
		}
		opts = append(opts, core.ForeignKey(ref))
	}
	if fs.Indexed {
		opts = append(opts, core.Indexed())
	}
	if fs.PermitEmpty {
		opts = append(opts, core.PermitEmptyValue())
	}
	if len(fs.Conditions) > 0 {
		rules := make([]core.ConditionalRequirement, len(fs.Conditions))
		for i, c := range fs.Conditions {
			rules[i] = c.rule()
		}
		opts = append(opts, core.RequireConditions(rules...))
	}

	switch fs.Type {
	case FieldInteger:
		lo, hi, err := fs.bounds(math.MinInt32, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		return core.NewBoundedIntegerField(fs.Name, req, int32(lo), int32(hi), opts...), nil
	case FieldShort:
		lo, hi, err := fs.bounds(math.MinInt16, math.MaxInt16)
		if err != nil {
			return nil, err
		}
		return core.NewShortField(fs.Name, req, int16(lo), int16(hi), opts...), nil
	case FieldDouble:
		lo, hi, err := fs.bounds(-math.MaxFloat64, math.MaxFloat64)
		if err != nil {
			return nil, err
		}
		return core.NewDoubleField(fs.Name, req, lo, hi, opts...), nil
	case FieldDate:
		return core.NewDateField(fs.Name, req, opts...), nil
	case FieldDateList:
		return core.NewDateListField(fs.Name, req, opts...), nil
	case FieldTime:
		return core.NewTimeField(fs.Name, req, opts...), nil
	case FieldColor:
		return core.NewColorField(fs.Name, req, opts...), nil
	case FieldLanguage:
		return core.NewLanguageField(fs.Name, req, opts...), nil
	case FieldURL:
		return core.NewURLField(fs.Name, req, opts...), nil
	case FieldEmail:
		return core.NewEmailField(fs.Name, req, opts...), nil
	case FieldCurrency:
		return core.NewCurrencyField(fs.Name, req, opts...), nil
	case FieldTimezone:
		return core.NewTimezoneField(fs.Name, req, opts...), nil
	default:
		return core.NewStringField(fs.Name, req, opts...), nil
	}
}

// bounds applies the declared range within [lo, hi].
func (fs FieldSpec) bounds(lo, hi float64) (float64, float64, error) {
	from, to := lo, hi
	if fs.Min != nil {
		from = *fs.Min
	}
	if fs.Max != nil {
		to = *fs.Max
	}
	if from < lo || to > hi {
		return 0, 0, fmt.Errorf("range [%g, %g] exceeds %s storage", from, to, fs.Type)
	}
	if from > to {
		return 0, 0, fmt.Errorf("min %g is greater than max %g", from, to)
	}
	return from, to, nil
}

func (c ConditionSpec) rule() core.ConditionalRequirement {
	switch c.Check {
	case "field_in_range":
		return core.RequireInRange(c.Field, c.Min, c.Max)
	case "foreign_field_value_match":
		return core.RequireForeignValue(c.Table, c.Column)
	case "row_count_greater_than_one":
		return core.RequireWhenMultipleRows()
	default:
		return core.RequireNotEmpty(c.Field)
	}
}
