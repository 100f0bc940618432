package core

import (
	"errors"
	"testing"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func typesOf(errs ErrorSet) []ErrorType {
	var out []ErrorType
	for _, e := range errs.Errors() {
		out = append(out, e.Type)
	}
	return out
}

func TestIntegerFieldBind(t *testing.T) {
	f := NewBoundedIntegerField("headway_secs", Required, 0, 86400)

	tests := []struct {
		name      string
		raw       string
		wantValue any
		wantErrs  []ErrorType
	}{
		{name: "in range", raw: "600", wantValue: int32(600)},
		{name: "lower bound", raw: "0", wantValue: int32(0)},
		{name: "below range keeps value", raw: "-5", wantValue: int32(-5), wantErrs: []ErrorType{NumberTooSmall}},
		{name: "above range keeps value", raw: "90000", wantValue: int32(90000), wantErrs: []ErrorType{NumberTooLarge}},
		{name: "unparseable binds null", raw: "ten", wantValue: nil, wantErrs: []ErrorType{NumberParsing}},
		{name: "decimal is not an integer", raw: "1.5", wantValue: nil, wantErrs: []ErrorType{NumberParsing}},
		{name: "overflow binds null", raw: "99999999999999999999", wantValue: nil, wantErrs: []ErrorType{NumberTooLarge}},
		{name: "beyond int32 binds null", raw: "3000000000", wantValue: nil, wantErrs: []ErrorType{NumberTooLarge}},
		{name: "empty required", raw: "", wantValue: nil, wantErrs: []ErrorType{MissingField}},
		{name: "absent required", raw: Absent, wantValue: nil, wantErrs: []ErrorType{MissingField}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := RowParams{int32(2), "sentinel"}
			errs := f.Bind(params, 1, tt.raw)
			assert.Equal(t, tt.wantValue, params[1])
			assert.Equal(t, tt.wantErrs, typesOf(errs))
			for _, e := range errs.Errors() {
				assert.Equal(t, "headway_secs", e.Field)
			}
		})
	}
}

func TestShortFieldBind(t *testing.T) {
	f := NewShortField("route_type", Required, 0, 7)

	params := make(RowParams, 2)
	errs := f.Bind(params, 1, "3")
	assert.True(t, errs.Empty())
	assert.Equal(t, int16(3), params[1])

	errs = f.Bind(params, 1, "70000")
	assert.Equal(t, []ErrorType{NumberTooLarge}, typesOf(errs))
	assert.Nil(t, params[1])
}

func TestDoubleFieldValidateAndConvert(t *testing.T) {
	f := NewDoubleField("stop_lat", Required, -90, 90)

	tests := []struct {
		raw       string
		wantValid bool
		wantValue string
		wantErrs  []ErrorType
	}{
		{raw: "40.7128", wantValid: true, wantValue: "40.7128"},
		{raw: " -33.5 ", wantValid: true, wantValue: "-33.5"},
		{raw: "95", wantValid: true, wantValue: "95", wantErrs: []ErrorType{NumberTooLarge}},
		{raw: "-91", wantValid: true, wantValue: "-91", wantErrs: []ErrorType{NumberTooSmall}},
		{raw: "north", wantErrs: []ErrorType{NumberParsing}},
		{raw: "NaN", wantErrs: []ErrorType{NumberParsing}},
		{raw: "1,5", wantErrs: []ErrorType{NumberParsing}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := f.ValidateAndConvert(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantValue, got.Value)
			assert.Equal(t, tt.wantErrs, typesOf(got.Errors))
		})
	}
}

func TestStringFieldBind(t *testing.T) {
	t.Run("cleaned value is stored with errors", func(t *testing.T) {
		f := NewStringField("stop_name", Optional)
		params := make(RowParams, 2)
		errs := f.Bind(params, 1, "Main\tSt")
		assert.Equal(t, "Main St", params[1])
		assert.Equal(t, []ErrorType{IllegalFieldValue}, typesOf(errs))
	})

	t.Run("optional empty binds null without error", func(t *testing.T) {
		f := NewStringField("stop_desc", Optional)
		params := RowParams{nil, "x"}
		errs := f.Bind(params, 1, "")
		assert.True(t, errs.Empty())
		assert.Nil(t, params[1])
	})

	t.Run("permitted empty binds empty string", func(t *testing.T) {
		f := NewStringField("route_short_name", Required, PermitEmptyValue())
		params := RowParams{nil, "x"}
		errs := f.Bind(params, 1, "")
		assert.True(t, errs.Empty())
		assert.Equal(t, "", params[1])
	})

	t.Run("permitted empty still reports an absent value", func(t *testing.T) {
		f := NewStringField("route_short_name", Required, PermitEmptyValue())
		params := RowParams{nil, "x"}
		errs := f.Bind(params, 1, Absent)
		assert.Equal(t, []ErrorType{MissingField}, typesOf(errs))
		assert.Nil(t, params[1])
	})

	t.Run("literal null marker is a value", func(t *testing.T) {
		f := NewStringField("stop_name", Required)
		params := make(RowParams, 2)
		errs := f.Bind(params, 1, `\N`)
		assert.True(t, errs.Empty())
		assert.Equal(t, `\\N`, params[1])
	})
}

func TestTextFieldFormats(t *testing.T) {
	tests := []struct {
		name      string
		field     Field
		raw       string
		wantValid bool
		wantErr   ErrorType
	}{
		{name: "color", field: NewColorField("route_color", Optional), raw: "00FFaa", wantValid: true},
		{name: "color with hash", field: NewColorField("route_color", Optional), raw: "#00FFAA", wantErr: ColorFormat},
		{name: "color too short", field: NewColorField("route_color", Optional), raw: "FFF", wantErr: ColorFormat},
		{name: "language", field: NewLanguageField("feed_lang", Required), raw: "en-US", wantValid: true},
		{name: "bad language", field: NewLanguageField("feed_lang", Required), raw: "english!", wantErr: LanguageFormat},
		{name: "url", field: NewURLField("agency_url", Required), raw: "https://example.com/transit", wantValid: true},
		{name: "bad url", field: NewURLField("agency_url", Required), raw: "example", wantErr: URLFormat},
		{name: "email", field: NewEmailField("agency_email", Optional), raw: "info@example.com", wantValid: true},
		{name: "bad email", field: NewEmailField("agency_email", Optional), raw: "info-at-example", wantErr: EmailFormat},
		{name: "currency", field: NewCurrencyField("currency_type", Required), raw: "EUR", wantValid: true},
		{name: "bad currency", field: NewCurrencyField("currency_type", Required), raw: "XYZW", wantErr: CurrencyCode},
		{name: "timezone", field: NewTimezoneField("agency_timezone", Required), raw: "America/New_York", wantValid: true},
		{name: "bad timezone", field: NewTimezoneField("agency_timezone", Required), raw: "Mars/Olympus", wantErr: TimezoneName},
		{name: "local is not a zone", field: NewTimezoneField("agency_timezone", Required), raw: "Local", wantErr: TimezoneName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.field.ValidateAndConvert(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, got.Valid)
			if tt.wantValid {
				assert.True(t, got.Errors.Empty(), got.Errors.Errors())
				return
			}
			require.Equal(t, 1, got.Errors.Len())
			assert.Equal(t, tt.wantErr, got.Errors.Errors()[0].Type)
			assert.Equal(t, tt.field.Name(), got.Errors.Errors()[0].Field)
		})
	}
}

func TestDateField(t *testing.T) {
	f := NewDateField("start_date", Required)

	tests := []struct {
		raw       string
		wantValid bool
		wantErrs  []ErrorType
	}{
		{raw: "20240131", wantValid: true},
		{raw: "20240230", wantErrs: []ErrorType{DateFormat}},
		{raw: "2024-01-31", wantErrs: []ErrorType{DateFormat}},
		{raw: "240131", wantErrs: []ErrorType{DateFormat}},
		{raw: "19991231", wantValid: true, wantErrs: []ErrorType{DateRange}},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := f.ValidateAndConvert(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.wantValid, got.Valid)
			assert.Equal(t, tt.wantErrs, typesOf(got.Errors))
		})
	}
}

func TestDateListField(t *testing.T) {
	f := NewDateListField("dates", Optional)

	_, err := f.ValidateAndConvert("20240101")
	assert.True(t, errors.Is(err, ErrUnsupported))

	params := make(RowParams, 2)
	errs := f.Bind(params, 1, "20240101, 20240102,bad")
	assert.Equal(t, []string{"20240101", "20240102"}, params[1])
	assert.Equal(t, []ErrorType{DateFormat}, typesOf(errs))
	assert.Equal(t, SQLTextArray, f.SQLType())
}

func TestTimeField(t *testing.T) {
	f := NewTimeField("arrival_time", Optional)

	tests := []struct {
		raw       string
		wantValue any
		wantErr   bool
	}{
		{raw: "08:30:00", wantValue: int32(30600)},
		{raw: "8:30:00", wantValue: int32(30600)},
		{raw: "25:10:05", wantValue: int32(90605)},
		{raw: "08:61:00", wantErr: true},
		{raw: "08:30", wantErr: true},
		{raw: "8h30", wantErr: true},
		{raw: "-1:00:00", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			params := make(RowParams, 2)
			errs := f.Bind(params, 1, tt.raw)
			if tt.wantErr {
				assert.Equal(t, []ErrorType{TimeFormat}, typesOf(errs))
				assert.Nil(t, params[1])
				return
			}
			assert.True(t, errs.Empty())
			assert.Equal(t, tt.wantValue, params[1])
		})
	}
}

func TestFieldOptions(t *testing.T) {
	agency := NewTable("agency", NewStringField("agency_id", Optional))
	f := NewStringField("agency_id", Optional, ForeignKey(agency), Indexed())

	assert.True(t, f.IsForeignReference())
	assert.Same(t, agency, f.ForeignTable())
	assert.True(t, f.ShouldBeIndexed())
	assert.False(t, f.IsConditionallyRequired())

	c := NewStringField("origin_id", Optional, RequireConditions(RequireForeignValue("stops", "zone_id")))
	assert.True(t, c.IsConditionallyRequired())
	assert.Equal(t, RequirementConditional, c.Requirement())
	assert.False(t, c.IsRequired())
	require.Len(t, c.Conditions(), 1)
	assert.Equal(t, ForeignFieldValueMatch, c.Conditions()[0].Check)
}
