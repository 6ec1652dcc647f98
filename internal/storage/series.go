package storage

import "time"

// DailyPoint is one day-bucketed (date, value) observation, the common
// shape EventStore and MentionStore return their time-series queries in
// for C15's correlation engine to consume.
type DailyPoint struct {
	Date  time.Time
	Value float64
}
