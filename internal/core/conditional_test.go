package core

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func transfersTable() *Table {
	return NewTable("transfers",
		NewStringField("from_stop_id", Required),
		NewStringField("to_stop_id", Required),
		NewShortField("transfer_type", Optional, 0, 3,
			RequireConditions(RequireNotEmpty("transfer_duration"))),
		NewIntegerField("transfer_duration", Optional),
		NewIntegerField("min_transfer_time", Optional,
			RequireConditions(RequireInRange("transfer_type", 2, 2))),
	).NonUniqueKey()
}

func TestConditionEvaluator_FieldNotEmpty(t *testing.T) {
	table := transfersTable()
	governing, _ := table.Field("transfer_type")
	eval := NewConditionEvaluator(NewReferenceTracker())

	tests := []struct {
		name       string
		row        []string
		wantErrors int
	}{
		{name: "governing present companion empty", row: []string{"4", "A", "B", "2", "", ""}, wantErrors: 1},
		{name: "governing present companion absent", row: []string{"4", "A", "B", "2"}, wantErrors: 1},
		{name: "governing present companion present", row: []string{"4", "A", "B", "2", "120", ""}, wantErrors: 0},
		{name: "governing empty", row: []string{"4", "A", "B", "", "", ""}, wantErrors: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := eval.EvaluateRow(NewLineContext(table, tt.row), governing)
			require.Equal(t, tt.wantErrors, errs.Len())
			for _, e := range errs.Errors() {
				assert.Equal(t, ConditionallyRequired, e.Type)
				assert.Equal(t, "transfer_type", e.Field)
				assert.Equal(t, "FIELD_NOT_EMPTY", e.Key)
				assert.Equal(t, "transfer_duration", e.Value)
				assert.Equal(t, 4, e.Line)
				assert.Equal(t, "transfers", e.Table)
			}
		})
	}
}

func TestConditionEvaluator_FieldInRange(t *testing.T) {
	table := transfersTable()
	governing, _ := table.Field("min_transfer_time")
	eval := NewConditionEvaluator(NewReferenceTracker())

	tests := []struct {
		name      string
		row       []string
		wantError bool
	}{
		{name: "companion in range", row: []string{"2", "A", "B", "2", "", "180"}},
		{name: "companion out of range", row: []string{"2", "A", "B", "1", "", "180"}, wantError: true},
		{name: "companion empty", row: []string{"2", "A", "B", "", "", "180"}, wantError: true},
		{name: "governing empty skips rule", row: []string{"2", "A", "B", "0", "", ""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			errs := eval.EvaluateRow(NewLineContext(table, tt.row), governing)
			if !tt.wantError {
				assert.True(t, errs.Empty())
				return
			}
			require.Equal(t, 1, errs.Len())
			assert.Equal(t, "FIELD_IN_RANGE", errs.Errors()[0].Key)
			assert.Equal(t, "transfer_type[2,2]", errs.Errors()[0].Value)
		})
	}
}

func TestConditionEvaluator_ForeignValueMatch(t *testing.T) {
	fareRules := NewTable("fare_rules",
		NewStringField("fare_id", Required),
		NewStringField("origin_id", Optional,
			RequireConditions(RequireForeignValue("stops", "zone_id"))),
	).NonUniqueKey()
	governing, _ := fareRules.Field("origin_id")

	refs := NewReferenceTracker()
	TrackReferencedColumns(refs, []*Table{fareRules})
	assert.True(t, refs.IsTracked("stops", "zone_id"))
	refs.AddValue("stops", "zone_id", "Z1")

	eval := NewConditionEvaluator(refs)

	errs := eval.EvaluateRow(NewLineContext(fareRules, []string{"2", "F1", "Z1"}), governing)
	assert.True(t, errs.Empty())

	errs = eval.EvaluateRow(NewLineContext(fareRules, []string{"3", "F1", "Z9"}), governing)
	require.Equal(t, 1, errs.Len())
	e := errs.Errors()[0]
	assert.Equal(t, "Z9", e.BadValue)
	assert.Equal(t, "stops.zone_id", e.Value)
	assert.Equal(t, "F1", e.EntityID)
}

func TestConditionEvaluator_NoShortCircuit(t *testing.T) {
	table := NewTable("pathways",
		NewStringField("pathway_id", Required),
		NewIntegerField("stair_count", Optional, RequireConditions(
			RequireNotEmpty("length"),
			RequireInRange("pathway_mode", 2, 2),
		)),
		NewDoubleField("length", Optional, 0, 1e6),
		NewShortField("pathway_mode", Required, 1, 7),
	)
	governing, _ := table.Field("stair_count")
	eval := NewConditionEvaluator(NewReferenceTracker())

	errs := eval.EvaluateRow(NewLineContext(table, []string{"2", "P1", "12", "", "1"}), governing)
	require.Equal(t, 2, errs.Len())
	assert.Equal(t, "FIELD_NOT_EMPTY", errs.Errors()[0].Key)
	assert.Equal(t, "FIELD_IN_RANGE", errs.Errors()[1].Key)
}

func TestConditionEvaluator_RowCount(t *testing.T) {
	agency := NewTable("agency",
		NewStringField("agency_id", Optional, RequireConditions(RequireWhenMultipleRows())),
		NewStringField("agency_name", Required),
	)
	governing, _ := agency.Field("agency_id")

	t.Run("single row is exempt", func(t *testing.T) {
		eval := NewConditionEvaluator(NewReferenceTracker())
		errs := eval.EvaluateRow(NewLineContext(agency, []string{"2", "", "Metro"}), governing)
		assert.True(t, errs.Empty())
		assert.True(t, eval.EvaluateTable("agency", 1).Empty())
	})

	t.Run("multiple rows require the field", func(t *testing.T) {
		eval := NewConditionEvaluator(NewReferenceTracker())
		eval.EvaluateRow(NewLineContext(agency, []string{"2", "", "Metro"}), governing)
		eval.EvaluateRow(NewLineContext(agency, []string{"3", "BUS", "Bus Co"}), governing)
		eval.EvaluateRow(NewLineContext(agency, []string{"4", "", "Rail Co"}), governing)

		errs := eval.EvaluateTable("agency", 3)
		require.Equal(t, 2, errs.Len())
		assert.Equal(t, 2, errs.Errors()[0].Line)
		assert.Equal(t, 4, errs.Errors()[1].Line)
		assert.Equal(t, "ROW_COUNT_GREATER_THAN_ONE", errs.Errors()[0].Key)

		assert.True(t, eval.EvaluateTable("agency", 3).Empty(), "pending rows are consumed")
	})
	t.Run("discarded rows are never reported", func(t *testing.T) {
		eval := NewConditionEvaluator(NewReferenceTracker())
		eval.EvaluateRow(NewLineContext(agency, []string{"2", "", "Metro"}), governing)
		eval.EvaluateRow(NewLineContext(agency, []string{"3", "", "Rail Co"}), governing)

		eval.Discard("agency")
		assert.True(t, eval.EvaluateTable("agency", 2).Empty())
	})
}
