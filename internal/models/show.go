package models

import "time"

// Show is a single scheduled programme. Start/End and StartTS/EndTS come from
// the same parse and always describe the same instants.
type Show struct {
	Title       string    `json:"title" bson:"title"`
	Category    string    `json:"category" bson:"category"`
	Description string    `json:"description" bson:"description"`
	Start       time.Time `json:"start_dt" bson:"start_dt"`
	End         time.Time `json:"end_dt" bson:"end_dt"`
	StartTS     int64     `json:"start_ts" bson:"start_ts"`
	EndTS       int64     `json:"end_ts" bson:"end_ts"`
	Duration    float64   `json:"duration" bson:"duration"` // minutes
	Poster      string    `json:"poster" bson:"poster"`
	OID         int64     `json:"oid" bson:"oid"`                // owning channel, native id space
	ChannelID   string    `json:"channel_id" bson:"channel_id"` // owning channel, canonical id
}

// NewShow builds a Show from parsed instants, deriving the Unix timestamps and
// the duration in minutes.
func NewShow(title, category, description string, start, end time.Time, poster string, oid int64) Show {
	return Show{
		Title:       title,
		Category:    category,
		Description: description,
		Start:       start,
		End:         end,
		StartTS:     start.Unix(),
		EndTS:       end.Unix(),
		Duration:    DurationMinutes(start, end),
		Poster:      poster,
		OID:         oid,
	}
}

// DurationMinutes returns |end - start| in minutes.
func DurationMinutes(start, end time.Time) float64 {
	d := end.Sub(start)
	if d < 0 {
		d = -d
	}
	return d.Minutes()
}
