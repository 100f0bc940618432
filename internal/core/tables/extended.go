package tables

import "github.com/JonMunkholm/gtfsload/internal/core"

// registerExtended registers the tables whose presence marks a feed as
// carrying extended data.
func registerExtended() {
	core.Register(core.NewTable("levels",
		core.NewStringField("level_id", req),
		core.NewDoubleField("level_index", req, -maxFloat, maxFloat),
		core.NewStringField("level_name", opt),
	).Extended())

	stops := mustGet("stops")
	core.Register(core.NewTable("pathways",
		core.NewStringField("pathway_id", req),
		core.NewStringField("from_stop_id", req, core.ForeignKey(stops)),
		core.NewStringField("to_stop_id", req, core.ForeignKey(stops)),
		core.NewShortField("pathway_mode", req, 1, 7),
		flag("is_bidirectional", req),
		core.NewDoubleField("length", opt, 0, maxFloat),
		core.NewBoundedIntegerField("traversal_time", opt, 1, maxInt32),
		// Only stairs (mode 2) have a stair count.
		core.NewIntegerField("stair_count", opt,
			core.RequireConditions(core.RequireInRange("pathway_mode", 2, 2))),
		core.NewDoubleField("max_slope", opt, -maxFloat, maxFloat),
		core.NewDoubleField("min_width", opt, 0, maxFloat),
		core.NewStringField("signposted_as", opt),
		core.NewStringField("reversed_signposted_as", opt),
	).Extended())

	core.Register(core.NewTable("translations",
		core.NewStringField("table_name", req),
		core.NewStringField("field_name", req),
		core.NewLanguageField("language", req),
		core.NewStringField("translation", req),
		core.NewStringField("record_id", opt),
		core.NewStringField("record_sub_id", opt,
			core.RequireConditions(core.RequireNotEmpty("record_id"))),
		core.NewStringField("field_value", opt),
	).NonUniqueKey().Extended())

	core.Register(core.NewTable("attributions",
		core.NewStringField("attribution_id", opt),
		core.NewStringField("agency_id", opt, core.ForeignKey(mustGet("agency"))),
		core.NewStringField("route_id", opt, core.ForeignKey(mustGet("routes"))),
		core.NewStringField("trip_id", opt, core.ForeignKey(mustGet("trips"))),
		core.NewStringField("organization_name", req),
		flag("is_producer", opt),
		flag("is_operator", opt),
		flag("is_authority", opt),
		core.NewURLField("attribution_url", opt),
		core.NewEmailField("attribution_email", opt),
		core.NewStringField("attribution_phone", opt),
	).Extended())
}
