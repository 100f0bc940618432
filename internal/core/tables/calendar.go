package tables

import "github.com/JonMunkholm/gtfsload/internal/core"

// calendar_dates may define services on its own, so its service ids count as
// calendar keys for trips.service_id.
func registerCalendars() {
	calendar := core.NewTable("calendar",
		core.NewStringField("service_id", req),
		flag("monday", req),
		flag("tuesday", req),
		flag("wednesday", req),
		flag("thursday", req),
		flag("friday", req),
		flag("saturday", req),
		flag("sunday", req),
		core.NewDateField("start_date", req),
		core.NewDateField("end_date", req),
	)
	core.Register(calendar)

	core.Register(core.NewTable("calendar_dates",
		core.NewStringField("service_id", req, core.Indexed()),
		core.NewDateField("date", req),
		core.NewShortField("exception_type", req, 1, 2),
	).NonUniqueKey().ProvidesKeysFor(calendar))
}

func registerFrequencies() {
	core.Register(core.NewTable("frequencies",
		core.NewStringField("trip_id", req, core.ForeignKey(mustGet("trips"))),
		core.NewTimeField("start_time", req),
		core.NewTimeField("end_time", req),
		core.NewBoundedIntegerField("headway_secs", req, 1, maxInt32),
		flag("exact_times", opt),
	).NonUniqueKey())
}
