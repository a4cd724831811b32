package models

import (
	"time"
	_ "time/tzdata" // schedules must parse on hosts without a zoneinfo database
)

// Provider names. They double as canonical channel ID prefixes.
const (
	ProviderMTS = "mts"
	ProviderSBB = "sbb"
	ProviderSK  = "sk"
)

// Timezone of every upstream schedule.
const Timezone = "Europe/Belgrade"

var location = mustLoadLocation(Timezone)

// Location returns the schedule timezone.
func Location() *time.Location { return location }

func mustLoadLocation(name string) *time.Location {
	loc, err := time.LoadLocation(name)
	if err != nil {
		panic("models: load location " + name + ": " + err.Error())
	}
	return loc
}
