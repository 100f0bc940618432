package tables

import "github.com/JonMunkholm/gtfsload/internal/core"

func registerFareAttributes() {
	core.Register(core.NewTable("fare_attributes",
		core.NewStringField("fare_id", req),
		core.NewDoubleField("price", req, 0, maxFloat),
		core.NewCurrencyField("currency_type", req),
		core.NewShortField("payment_method", req, 0, 1),
		// Empty means unlimited transfers.
		core.NewShortField("transfers", req, 0, 5, core.PermitEmptyValue()),
		core.NewStringField("agency_id", opt, core.ForeignKey(mustGet("agency"))),
		core.NewBoundedIntegerField("transfer_duration", opt, 0, maxInt32),
	))
}

// Zone ids are not keys of stops, so fare rule zones are matched against the
// zone_id values seen in stops.
func registerFareRules() {
	zone := core.RequireConditions(core.RequireForeignValue("stops", "zone_id"))
	core.Register(core.NewTable("fare_rules",
		core.NewStringField("fare_id", req, core.ForeignKey(mustGet("fare_attributes"))),
		core.NewStringField("route_id", opt, core.ForeignKey(mustGet("routes"))),
		core.NewStringField("origin_id", opt, zone),
		core.NewStringField("destination_id", opt, zone),
		core.NewStringField("contains_id", opt, zone),
	).NonUniqueKey())
}

func registerTransfers() {
	stops := mustGet("stops")
	routes := mustGet("routes")
	core.Register(core.NewTable("transfers",
		core.NewStringField("from_stop_id", req, core.ForeignKey(stops)),
		core.NewStringField("to_stop_id", req, core.ForeignKey(stops)),
		core.NewStringField("from_route_id", opt, core.ForeignKey(routes)),
		core.NewStringField("to_route_id", opt, core.ForeignKey(routes)),
		core.NewStringField("from_trip_id", opt),
		core.NewStringField("to_trip_id", opt),
		core.NewShortField("transfer_type", req, 0, 5, core.PermitEmptyValue()),
		core.NewBoundedIntegerField("min_transfer_time", opt, 0, maxInt32,
			core.RequireConditions(core.RequireInRange("transfer_type", 2, 2))),
	).NonUniqueKey())
}
