// Package dates derives the calendar-day dimension covering a schedule.
package dates

import (
	"errors"
	"time"

	"github.com/voyagen/epgvault/internal/models"
)

// DefaultSampleSize is the number of leading channels inspected when sampleSize <= 0.
const DefaultSampleSize = 20

// ErrNoShows is returned when the sampled channels carry no shows.
var ErrNoShows = errors.New("dates: no shows in sample")

// Range returns the earliest and latest show start among the first
// sampleSize channels. Channels past the sample are not inspected, so their
// shows can fall outside the range.
func Range(channels []models.Channel, sampleSize int) (minStart, maxStart time.Time, err error) {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	if len(channels) > sampleSize {
		channels = channels[:sampleSize]
	}
	found := false
	for _, ch := range channels {
		for _, s := range ch.Shows {
			if !found || s.Start.Before(minStart) {
				minStart = s.Start
			}
			if !found || s.Start.After(maxStart) {
				maxStart = s.Start
			}
			found = true
		}
	}
	if !found {
		return time.Time{}, time.Time{}, ErrNoShows
	}
	return minStart, maxStart, nil
}

// Build emits one Date per schedule-timezone calendar day from the day of the
// earliest sampled show start through the day of the latest, ascending.
func Build(channels []models.Channel, sampleSize int) ([]models.Date, error) {
	minStart, maxStart, err := Range(channels, sampleSize)
	if err != nil {
		return nil, err
	}
	return Days(minStart, maxStart), nil
}

// Days returns the rows for every calendar day in [day(from), day(to)+1).
// Days are stepped by calendar date, so DST transitions neither repeat nor
// skip a day.
func Days(from, to time.Time) []models.Date {
	loc := models.Location()
	first := midnight(from.In(loc))
	last := midnight(to.In(loc))

	var out []models.Date
	for i := 0; ; i++ {
		day := time.Date(first.Year(), first.Month(), first.Day()+i, 0, 0, 0, 0, loc)
		if day.After(last) {
			break
		}
		out = append(out, models.NewDate(day))
	}
	return out
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
