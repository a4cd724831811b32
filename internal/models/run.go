package models

import "time"

// Run phases, in the order a successful run passes through them.
// A run whose latest phase is RunPhaseChannels was interrupted between the
// channel and date replacements.
const (
	RunPhaseStarted   = "started"
	RunPhaseChannels  = "channels_replaced"
	RunPhaseCompleted = "completed"
	RunPhaseFailed    = "failed"
)

// Run is the watermark written around each store replacement.
type Run struct {
	ID         string     `json:"id" bson:"_id"`
	StartedAt  time.Time  `json:"started_at" bson:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" bson:"finished_at,omitempty"`
	Phase      string     `json:"phase" bson:"phase"`
	Channels   int        `json:"channels" bson:"channels"`
	Dates      int        `json:"dates" bson:"dates"`
	Error      string     `json:"error,omitempty" bson:"error,omitempty"`
}

// Partial reports whether the run stopped after replacing channels but before
// replacing dates.
func (r Run) Partial() bool {
	return r.Phase == RunPhaseChannels || (r.Phase == RunPhaseFailed && r.Channels > 0 && r.Dates == 0)
}
