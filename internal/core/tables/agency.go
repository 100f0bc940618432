package tables

import "github.com/JonMunkholm/gtfsload/internal/core"

func registerAgencies() {
	core.Register(core.NewTable("agency",
		core.NewStringField("agency_id", opt, core.RequireConditions(core.RequireWhenMultipleRows())),
		core.NewStringField("agency_name", req),
		core.NewURLField("agency_url", req),
		core.NewTimezoneField("agency_timezone", req),
		core.NewLanguageField("agency_lang", opt),
		core.NewStringField("agency_phone", opt),
		core.NewURLField("agency_fare_url", opt),
		core.NewEmailField("agency_email", opt),
	).RequiredInFeed())
}

func registerFeedInfo() {
	core.Register(core.NewTable("feed_info",
		core.NewStringField("feed_publisher_name", req),
		core.NewURLField("feed_publisher_url", req),
		core.NewLanguageField("feed_lang", req),
		core.NewLanguageField("default_lang", opt),
		core.NewDateField("feed_start_date", opt),
		core.NewDateField("feed_end_date", opt),
		core.NewStringField("feed_version", opt),
		core.NewEmailField("feed_contact_email", opt),
		core.NewURLField("feed_contact_url", opt),
	).NonUniqueKey())
}
