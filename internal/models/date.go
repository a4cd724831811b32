package models

import "time"

// Date is one calendar-day row of the date dimension.
type Date struct {
	DateTZ    time.Time `json:"date_tz" bson:"date_tz"` // local midnight
	Timestamp int64     `json:"timestamp" bson:"timestamp"`
	Weekday   string    `json:"weekday" bson:"weekday"`
	Month     string    `json:"month" bson:"month"`
	Day       int       `json:"day" bson:"day"`
}

// NewDate builds the dimension row for the day starting at midnight.
func NewDate(midnight time.Time) Date {
	return Date{
		DateTZ:    midnight,
		Timestamp: midnight.Unix(),
		Weekday:   midnight.Weekday().String(),
		Month:     midnight.Month().String(),
		Day:       midnight.Day(),
	}
}
