package fetcher

import (
	"fmt"
	"time"

	"github.com/voyagen/epgvault/internal/models"
)

// LocalLayout is the wall-clock format used by upstream schedules.
const LocalLayout = "2006-01-02 15:04:05"

// ParseLocal parses a Belgrade wall-clock timestamp. Upstream writes hour
// "24" for the first hour of a broadcast day; it is read as "00" on the same
// written date, the date digits are already the intended calendar day.
func ParseLocal(s string) (time.Time, error) {
	if len(s) >= 13 && s[11:13] == "24" {
		s = s[:11] + "00" + s[13:]
	}
	t, err := time.ParseInLocation(LocalLayout, s, models.Location())
	if err != nil {
		return time.Time{}, fmt.Errorf("parse datetime %q: %w", s, err)
	}
	return t, nil
}

// FromUnixMillis converts an epoch-milliseconds value to a Belgrade instant.
func FromUnixMillis(ms int64) time.Time {
	return time.UnixMilli(ms).In(models.Location())
}
