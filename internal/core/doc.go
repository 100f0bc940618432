// Package core validates GTFS feed rows field by field and loads them into a
// relational store in batches.
//
// It holds the domain logic only. Reading CSV files lives in csvsource,
// database access in storage, and the HTTP surface in web; core talks to
// them through [Feed], [RowSource], [Store] and [Connector].
//
// # Tables and fields
//
// A [Table] is an ordered list of [Field] values. Each field is one of a
// closed set of variants (string, integer, short, double, date, date list,
// time, color, language, URL, email, currency, timezone) sharing a
// requirement level and the options [ForeignKey], [Indexed],
// [PermitEmptyValue] and [RequireConditions]:
//
//	stops := core.NewTable("stops",
//	    core.NewStringField("stop_id", core.Required),
//	    core.NewDoubleField("stop_lat", core.Required, -90, 90),
//	    core.NewStringField("zone_id", core.Optional, core.Indexed()),
//	).RequiredInFeed()
//	core.Register(stops)
//
// Tables load in registration order, so a table is registered after every
// table it references.
//
// # Values and errors
//
// Bad data is never a Go error. [Field.ValidateAndConvert] returns a
// [ValidationResult] pairing the cleaned value with an [ErrorSet];
// [Field.Bind] stores the typed value (or NULL) into a row's parameters and
// returns the errors. Go errors are reserved for storage failures and
// programmer mistakes such as [ErrUnsupported].
//
// # Loading
//
// A [Loader] walks each table through Idle, Reading, Binding, Flushing and
// Closed. Rows are validated in file order, conditional rules run after the
// row's fields are bound, and batches are written with [Store.CopyRows].
// Each table commits on its own; a storage failure rolls the table back and
// ends in Failed, reported as a [TableLoadError]. Every error found is
// written to the feed's errors table by an [ErrorStorage].
//
// [Service] runs loads in the background, one schema and one connection per
// load, bounded by a [LoadLimiter].
//
// # Error codes
//
// [MapError] turns storage and load failures into a [UserMessage] with a
// stable code (DB001-DB011, FEED001-FEED004, LOAD001-LOAD004, TBL001).
package core
