package club

import (
	"time"
	_ "time/tzdata" // The club's calendar zone must resolve on hosts without zoneinfo.
)

// Eastern is the club's canonical calendar zone.
var Eastern = mustLoadLocation("America/New_York")

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic(err)
	}
	return loc
}
