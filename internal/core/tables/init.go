// Package tables registers the standard GTFS tables with the core registry.
// Import this package to ensure all tables are registered.
package tables

import (
	"math"

	"github.com/JonMunkholm/gtfsload/internal/core"
)

// Registration order is load order: a table is registered after every table
// it references.
func init() {
	registerAgencies()
	registerCalendars()
	registerFareAttributes()
	registerFeedInfo()
	registerRoutes()
	registerShapes()
	registerStops()
	registerFareRules()
	registerTransfers()
	registerTrips()
	registerFrequencies()
	registerStopTimes()
	registerExtended()
}

const (
	maxInt32 = math.MaxInt32
	maxFloat = math.MaxFloat64
)

const (
	req = core.Required
	opt = core.Optional
)

func mustGet(name string) *core.Table {
	t, ok := core.Get(name)
	if !ok {
		panic("tables: " + name + " is not registered")
	}
	return t
}

// flag is a 0/1 column such as calendar weekdays.
func flag(name string, r core.Requirement) core.Field {
	return core.NewShortField(name, r, 0, 1)
}
