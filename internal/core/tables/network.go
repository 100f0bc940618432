package tables

import "github.com/JonMunkholm/gtfsload/internal/core"

func registerRoutes() {
	core.Register(core.NewTable("routes",
		core.NewStringField("route_id", req),
		core.NewStringField("agency_id", opt, core.ForeignKey(mustGet("agency"))),
		core.NewStringField("route_short_name", req, core.PermitEmptyValue()),
		core.NewStringField("route_long_name", req, core.PermitEmptyValue()),
		core.NewStringField("route_desc", opt),
		core.NewShortField("route_type", req, 0, 1702),
		core.NewURLField("route_url", opt),
		core.NewColorField("route_color", opt),
		core.NewColorField("route_text_color", opt),
		core.NewBoundedIntegerField("route_sort_order", opt, 0, maxInt32),
		core.NewShortField("continuous_pickup", opt, 0, 3),
		core.NewShortField("continuous_drop_off", opt, 0, 3),
		core.NewStringField("network_id", opt),
	).RequiredInFeed())
}

func registerShapes() {
	core.Register(core.NewTable("shapes",
		core.NewStringField("shape_id", req, core.Indexed()),
		core.NewDoubleField("shape_pt_lat", req, -90, 90),
		core.NewDoubleField("shape_pt_lon", req, -180, 180),
		core.NewBoundedIntegerField("shape_pt_sequence", req, 0, maxInt32),
		core.NewDoubleField("shape_dist_traveled", opt, 0, maxFloat),
	).NonUniqueKey())
}

// parent_station may reference a stop defined earlier in the same file.
func registerStops() {
	core.Register(core.NewTable("stops",
		core.NewStringField("stop_id", req),
		core.NewStringField("stop_code", opt),
		core.NewStringField("stop_name", opt),
		core.NewStringField("tts_stop_name", opt),
		core.NewStringField("stop_desc", opt),
		core.NewDoubleField("stop_lat", opt, -90, 90),
		core.NewDoubleField("stop_lon", opt, -180, 180),
		core.NewStringField("zone_id", opt, core.Indexed()),
		core.NewURLField("stop_url", opt),
		core.NewShortField("location_type", opt, 0, 4),
		core.NewStringField("parent_station", opt),
		core.NewTimezoneField("stop_timezone", opt),
		core.NewShortField("wheelchair_boarding", opt, 0, 2),
		core.NewStringField("level_id", opt),
		core.NewStringField("platform_code", opt),
	).ReferencesSelf("parent_station").RequiredInFeed())
}

func registerTrips() {
	core.Register(core.NewTable("trips",
		core.NewStringField("route_id", req, core.ForeignKey(mustGet("routes"))),
		core.NewStringField("service_id", req, core.ForeignKey(mustGet("calendar"))),
		core.NewStringField("trip_id", req),
		core.NewStringField("trip_headsign", opt),
		core.NewStringField("trip_short_name", opt),
		core.NewShortField("direction_id", opt, 0, 1),
		core.NewStringField("block_id", opt, core.Indexed()),
		core.NewStringField("shape_id", opt, core.ForeignKey(mustGet("shapes"))),
		core.NewShortField("wheelchair_accessible", opt, 0, 2),
		core.NewShortField("bikes_allowed", opt, 0, 2),
	).WithKey("trip_id").RequiredInFeed())
}

// A stop time carries both arrival and departure or neither.
func registerStopTimes() {
	core.Register(core.NewTable("stop_times",
		core.NewStringField("trip_id", req, core.ForeignKey(mustGet("trips")), core.Indexed()),
		core.NewTimeField("arrival_time", opt, core.RequireConditions(core.RequireNotEmpty("departure_time"))),
		core.NewTimeField("departure_time", opt, core.RequireConditions(core.RequireNotEmpty("arrival_time"))),
		core.NewStringField("stop_id", req, core.ForeignKey(mustGet("stops")), core.Indexed()),
		core.NewBoundedIntegerField("stop_sequence", req, 0, maxInt32),
		core.NewStringField("stop_headsign", opt),
		core.NewShortField("pickup_type", opt, 0, 3),
		core.NewShortField("drop_off_type", opt, 0, 3),
		core.NewShortField("continuous_pickup", opt, 0, 3),
		core.NewShortField("continuous_drop_off", opt, 0, 3),
		core.NewDoubleField("shape_dist_traveled", opt, 0, maxFloat),
		flag("timepoint", opt),
	).NonUniqueKey().RequiredInFeed())
}
