package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorSet(t *testing.T) {
	var set ErrorSet
	assert.True(t, set.Empty())

	stop := tableEntity{table: "stops", line: 3, id: "S1"}
	e1 := NewError(NumberParsing, "abc").ForField("stop_lat").ForEntity(stop)
	e2 := NewError(MissingField, "").ForField("stop_lon").ForEntity(stop)

	assert.True(t, set.Add(e1))
	assert.False(t, set.Add(e1), "identical errors collapse")
	assert.True(t, set.Add(e2))
	assert.Equal(t, 2, set.Len())
	assert.True(t, set.Has(MissingField))
	assert.Equal(t, 1, set.Count(NumberParsing))
	assert.Equal(t, []Error{e1, e2}, set.Errors())

	var other ErrorSet
	other.Add(NewError(DuplicateID, "S1").ForEntity(tableEntity{table: "stops", line: 2, id: "S1"}))
	other.Add(e1)
	set.AddAll(other)
	assert.Equal(t, 3, set.Len())

	sorted := set.Sorted()
	assert.Equal(t, 2, sorted[0].Line)
	assert.Equal(t, MissingField, sorted[1].Type)
	assert.Equal(t, NumberParsing, sorted[2].Type)
}

func TestErrorTypeCatalog(t *testing.T) {
	assert.Equal(t, PriorityHigh, ReferentialIntegrity.Priority())
	assert.Equal(t, PriorityMedium, NumberParsing.Priority())
	assert.Equal(t, PriorityLow, ErrorType("SOMETHING_NEW").Priority())
	assert.NotEmpty(t, MissingColumn.Message())
	assert.Equal(t, "SOMETHING_NEW", ErrorType("SOMETHING_NEW").Message())
}

func TestErrorString(t *testing.T) {
	e := NewError(ConditionallyRequired, "2").
		ForField("transfer_type").
		ForEntity(tableEntity{table: "transfers", line: 4}).
		WithContext("FIELD_NOT_EMPTY", "transfer_duration")
	assert.Equal(t,
		`CONDITIONALLY_REQUIRED transfers:4 field=transfer_type value="2" FIELD_NOT_EMPTY=transfer_duration`,
		e.String())
}
