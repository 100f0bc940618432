package core

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testSchema struct {
	agency, stops, routes, transfers *Table
}

func (s testSchema) all() []*Table {
	return []*Table{s.agency, s.stops, s.routes, s.transfers}
}

func newTestSchema() testSchema {
	agency := NewTable("agency",
		NewStringField("agency_id", Optional, RequireConditions(RequireWhenMultipleRows())),
		NewStringField("agency_name", Required),
		NewURLField("agency_url", Required),
		NewTimezoneField("agency_timezone", Required),
	).RequiredInFeed()
	stops := NewTable("stops",
		NewStringField("stop_id", Required),
		NewStringField("stop_name", Optional),
		NewDoubleField("stop_lat", Required, -90, 90),
		NewDoubleField("stop_lon", Required, -180, 180),
		NewStringField("zone_id", Optional, Indexed()),
	).RequiredInFeed()
	routes := NewTable("routes",
		NewStringField("route_id", Required),
		NewStringField("agency_id", Optional, ForeignKey(agency)),
		NewShortField("route_type", Required, 0, 12),
	).RequiredInFeed()
	transfers := NewTable("transfers",
		NewStringField("from_stop_id", Required, ForeignKey(stops)),
		NewStringField("to_stop_id", Required, ForeignKey(stops)),
		NewShortField("transfer_type", Optional, 0, 3,
			RequireConditions(RequireNotEmpty("transfer_duration"))),
		NewIntegerField("transfer_duration", Optional),
	).NonUniqueKey()
	return testSchema{agency, stops, routes, transfers}
}

func validFeed() *memFeed {
	return &memFeed{tables: map[string][][]string{
		"agency": {{"MTA", "Metro", "https://metro.example", "UTC"}},
		"stops": {
			{"S1", "First", "40.1", "-73.9", "Z1"},
			{"S2", "Second", "40.2", "-73.8", "Z1"},
		},
		"routes": {{"R1", "MTA", "3"}},
	}}
}

func countErrors(errs []Error, typ ErrorType) int {
	n := 0
	for _, e := range errs {
		if e.Type == typ {
			n++
		}
	}
	return n
}

func TestLoadFeed_Valid(t *testing.T) {
	schema := newTestSchema()
	store := newFakeStore()
	loader := NewLoader(store, LoaderConfig{})

	result, err := loader.LoadFeed(context.Background(), "load-1", validFeed(), schema.all())
	require.NoError(t, err)

	assert.Equal(t, "feed_test", result.SchemaName)
	assert.Equal(t, 0, result.ErrorCount)
	assert.Empty(t, result.FatalException)
	assert.Equal(t, 1, result.Tables["agency"].RowCount)
	assert.Equal(t, 2, result.Tables["stops"].RowCount)
	assert.Equal(t, 1, result.Tables["routes"].RowCount)
	assert.True(t, result.Tables["transfers"].Missing)
	assert.Equal(t, 0, result.Tables["transfers"].ErrorCount)
	assert.Equal(t, 4, result.RowCount())
	assert.False(t, result.HasExtendedData())

	stops := store.tableRows("stops")
	require.Len(t, stops, 2)
	assert.Equal(t, []any{int32(2), "S1", "First", 40.1, -73.9, "Z1"}, stops[0])

	assert.Len(t, store.execsContaining("CREATE TABLE IF NOT EXISTS"), 4)
	assert.Len(t, store.execsContaining("CREATE INDEX stops_zone_id_idx"), 1)
	assert.Equal(t, PhaseClosed, loader.Phase())
}

func TestLoadFeed_RowErrorsDoNotDropRows(t *testing.T) {
	schema := newTestSchema()
	store := newFakeStore()
	feed := validFeed()
	feed.tables["stops"] = [][]string{
		{"S1", "First", "40.1", "-73.9", ""},
		{"S2", "Second", "abc", "-73.8", ""},
		{"S3", "Third", "95", "-73.7", ""},
	}

	result, err := NewLoader(store, LoaderConfig{}).LoadFeed(context.Background(), "load-2", feed, schema.all())
	require.NoError(t, err)

	tr := result.Tables["stops"]
	assert.Equal(t, 3, tr.RowCount)
	assert.Equal(t, 2, tr.ErrorRowCount)
	assert.Equal(t, 1, result.ErrorCountByType[NumberParsing])
	assert.Equal(t, 1, result.ErrorCountByType[NumberTooLarge])

	rows := store.tableRows("stops")
	require.Len(t, rows, 3)
	assert.Nil(t, rows[1][3], "unparseable latitude is stored as NULL")
	assert.Equal(t, 95.0, rows[2][3], "out of range latitude is stored")
	assert.Nil(t, rows[0][5], "empty optional zone is NULL")

	stored := store.tableRows(ErrorsTable)
	assert.Len(t, stored, result.ErrorCount)
}

func TestLoadFeed_IntegerColumnErrors(t *testing.T) {
	tests := []struct {
		name      string
		lat       string
		wantValue any
		wantErr   ErrorType
	}{
		{name: "in range", lat: "45", wantValue: int32(45)},
		{name: "not a number", lat: "abc", wantValue: nil, wantErr: NumberParsing},
		{name: "out of range", lat: "95", wantValue: int32(95), wantErr: NumberTooLarge},
		{name: "past int32", lat: "3000000000", wantValue: nil, wantErr: NumberTooLarge},
	}

	stops := NewTable("stops",
		NewStringField("stop_id", Required),
		NewBoundedIntegerField("stop_lat", Required, -90, 90),
	)
	var rows [][]string
	for i, tt := range tests {
		rows = append(rows, []string{"S" + string(rune('1'+i)), tt.lat})
	}
	feed := &memFeed{tables: map[string][][]string{"stops": rows}}
	store := newFakeStore()

	loader := NewLoader(store, LoaderConfig{})
	result, err := loader.LoadFeed(context.Background(), "load-int", feed, []*Table{stops})
	require.NoError(t, err)

	tr := result.Tables["stops"]
	assert.Equal(t, len(tests), tr.RowCount)
	assert.Equal(t, 3, tr.ErrorRowCount)

	stored := store.tableRows("stops")
	require.Len(t, stored, len(tests))
	errs := loader.Errors().Retained()
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantValue, stored[i][2])
			var got []ErrorType
			for _, e := range errs {
				if e.Line == i+2 {
					assert.Equal(t, "stop_lat", e.Field)
					got = append(got, e.Type)
				}
			}
			if tt.wantErr == "" {
				assert.Empty(t, got)
				return
			}
			assert.Equal(t, []ErrorType{tt.wantErr}, got)
		})
	}
}

func TestLoadFeed_KeysAndReferences(t *testing.T) {
	schema := newTestSchema()
	store := newFakeStore()
	feed := validFeed()
	feed.tables["stops"] = append(feed.tables["stops"], []string{"S1", "Dup", "40.3", "-73.7", ""})
	feed.tables["routes"] = [][]string{
		{"R1", "MTA", "3"},
		{"R2", "NOPE", "3"},
		{"R3", "", "3"},
	}
	feed.tables["transfers"] = [][]string{
		{"S1", "S2", "2", "120"},
		{"S1", "S9", "", ""},
		{"S1", "S2", "2", ""},
	}

	loader := NewLoader(store, LoaderConfig{})
	result, err := loader.LoadFeed(context.Background(), "load-3", feed, schema.all())
	require.NoError(t, err)

	errs := loader.Errors().Retained()
	assert.Equal(t, 1, countErrors(errs, DuplicateID))
	assert.Equal(t, 2, countErrors(errs, ReferentialIntegrity))
	assert.Equal(t, 1, countErrors(errs, ConditionallyRequired))
	assert.Equal(t, 0, countErrors(errs, MissingField))
	assert.Equal(t, 3, result.Tables["transfers"].RowCount)

	for _, e := range errs {
		switch e.Type {
		case DuplicateID:
			assert.Equal(t, "stops", e.Table)
			assert.Equal(t, 4, e.Line)
			assert.Equal(t, "S1", e.BadValue)
		case ConditionallyRequired:
			assert.Equal(t, "transfers", e.Table)
			assert.Equal(t, 4, e.Line)
			assert.Equal(t, "transfer_type", e.Field)
		}
	}
}

func TestLoadFeed_AgencyIDRequiredWithSeveralAgencies(t *testing.T) {
	schema := newTestSchema()
	feed := validFeed()
	feed.tables["agency"] = [][]string{
		{"", "", "https://metro.example", "UTC"},
		{"", "Rail", "https://rail.example", "UTC"},
		{"BUS", "Bus Co", "https://bus.example", "UTC"},
	}
	feed.tables["routes"] = [][]string{{"R1", "", "3"}}

	loader := NewLoader(newFakeStore(), LoaderConfig{})
	result, err := loader.LoadFeed(context.Background(), "load-4", feed, schema.all())
	require.NoError(t, err)
	assert.Equal(t, 2, result.ErrorCountByType[ConditionallyRequired])
	assert.Equal(t, 1, result.ErrorCountByType[MissingField])

	tr := result.Tables["agency"]
	assert.Equal(t, 3, tr.RowCount)
	assert.Equal(t, 2, tr.ErrorRowCount, "a line with several errors counts once")
	assert.Equal(t, 3, tr.ErrorCount)
}

func TestLoadFeed_MissingRequiredTable(t *testing.T) {
	schema := newTestSchema()
	feed := validFeed()
	delete(feed.tables, "routes")

	loader := NewLoader(newFakeStore(), LoaderConfig{})
	result, err := loader.LoadFeed(context.Background(), "load-5", feed, schema.all())
	require.NoError(t, err)

	assert.True(t, result.Tables["routes"].Missing)
	assert.Equal(t, 1, result.ErrorCountByType[MissingTable])
	errs := loader.Errors().Retained()
	require.Len(t, errs, 1)
	assert.Equal(t, "routes", errs[0].Table)
	assert.Equal(t, "routes.txt", errs[0].BadValue)
}

func TestLoadFeed_ShortRowsReadAsAbsent(t *testing.T) {
	schema := newTestSchema()
	store := newFakeStore()
	feed := validFeed()
	feed.tables["stops"] = [][]string{{"S1", "First", "40.1"}}

	loader := NewLoader(store, LoaderConfig{})
	_, err := loader.LoadFeed(context.Background(), "load-6", feed, schema.all())
	require.NoError(t, err)

	errs := loader.Errors().Retained()
	require.Len(t, errs, 1)
	assert.Equal(t, MissingField, errs[0].Type)
	assert.Equal(t, "stop_lon", errs[0].Field)
	rows := store.tableRows("stops")
	require.Len(t, rows, 1)
	assert.Nil(t, rows[0][4])
	assert.Nil(t, rows[0][5])
}

func TestLoadTable_FlushesInBatches(t *testing.T) {
	schema := newTestSchema()
	store := newFakeStore()
	feed := &memFeed{tables: map[string][][]string{"stops": {
		{"S1", "", "1", "1", ""},
		{"S2", "", "1", "1", ""},
		{"S3", "", "1", "1", ""},
		{"S4", "", "1", "1", ""},
		{"S5", "", "1", "1", ""},
	}}}
	src, err := feed.Rows(schema.stops)
	require.NoError(t, err)

	loader := NewLoader(store, LoaderConfig{BatchSize: 2})
	tr, err := loader.LoadTable(context.Background(), schema.stops, src)
	require.NoError(t, err)

	assert.Equal(t, 5, tr.RowCount)
	assert.Equal(t, 3, store.copyCalls["stops"])
	assert.Len(t, store.tableRows("stops"), 5)
	assert.Equal(t, 1, store.commits)
}

func TestLoadFeed_TableFailure(t *testing.T) {
	t.Run("aborts the feed by default", func(t *testing.T) {
		schema := newTestSchema()
		store := newFakeStore()
		store.failCopy["stops"] = errors.New("connection reset by peer")

		result, err := NewLoader(store, LoaderConfig{}).LoadFeed(context.Background(), "load-7", validFeed(), schema.all())
		require.Error(t, err)
		require.NotNil(t, result)

		var tableErr *TableLoadError
		require.ErrorAs(t, err, &tableErr)
		assert.Equal(t, "stops", tableErr.Table)
		assert.Equal(t, PhaseFlushing, tableErr.Phase)

		assert.NotEmpty(t, result.FatalException)
		assert.True(t, result.Tables["stops"].Failed())
		assert.Equal(t, "DB005", result.Tables["stops"].FatalCode)
		assert.NotContains(t, result.Tables, "routes")
		assert.Len(t, store.tableRows("agency"), 1, "committed tables survive")
		assert.Empty(t, store.tableRows("stops"))
		assert.Equal(t, 1, store.rollbacks)
	})

	t.Run("continues when configured", func(t *testing.T) {
		schema := newTestSchema()
		store := newFakeStore()
		store.failCopy["stops"] = errors.New("disk full")
		feed := validFeed()
		feed.tables["stops"] = append(feed.tables["stops"], []string{"S3", "Third", "abc", "-73.7", ""})
		feed.tables["transfers"] = [][]string{{"S1", "S2", "", ""}}

		loader := NewLoader(store, LoaderConfig{ContinueOnTableFailure: true})
		result, err := loader.LoadFeed(context.Background(), "load-8", feed, schema.all())
		require.NoError(t, err)
		assert.NotEmpty(t, result.FatalException)
		assert.True(t, result.Tables["stops"].Failed())
		assert.Equal(t, 1, result.Tables["stops"].ErrorRowCount)
		assert.Equal(t, 1, result.Tables["routes"].RowCount)

		assert.Equal(t, 0, loader.refs.KeyCount("stops"), "keys of the failed table are forgotten")
		assert.Zero(t, result.ErrorCountByType[NumberParsing])
		assert.Equal(t, 2, result.ErrorCountByType[ReferentialIntegrity])
		assert.Equal(t, 2, result.ErrorCount)

		stored := store.tableRows(ErrorsTable)
		require.Len(t, stored, result.ErrorCount)
		for _, row := range stored {
			assert.Equal(t, "transfers", row[3])
			assert.Equal(t, string(ReferentialIntegrity), row[1])
		}
		assert.Equal(t, int32(0), stored[0][0], "ids restart after the rolled back table")
	})
}

func TestLoadFeed_Cancelled(t *testing.T) {
	schema := newTestSchema()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewLoader(newFakeStore(), LoaderConfig{}).LoadFeed(ctx, "load-9", validFeed(), schema.all())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	require.NotNil(t, result)
	assert.Equal(t, "LOAD001", result.Tables["agency"].FatalCode)
}

func TestLoadFeed_ExtendedData(t *testing.T) {
	levels := NewTable("levels",
		NewStringField("level_id", Required),
		NewDoubleField("level_index", Required, -1000, 1000),
	).Extended()
	feed := &memFeed{tables: map[string][][]string{"levels": {{"L1", "0"}}}}

	result, err := NewLoader(newFakeStore(), LoaderConfig{}).LoadFeed(context.Background(), "load-10", feed, []*Table{levels})
	require.NoError(t, err)
	assert.True(t, result.HasExtendedData())
}
