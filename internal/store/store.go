// Package store persists the guide. Every run replaces the channel and date
// collections wholesale; runs are kept as a watermark history.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/voyagen/epgvault/internal/models"
)

//go:generate mockgen -source=store.go -destination=mocks/mock_store.go -package=mocks

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Kind names a replaceable collection.
type Kind string

const (
	KindChannels Kind = "channels"
	KindDates    Kind = "dates"
)

// Validate rejects unknown kinds.
func (k Kind) Validate() error {
	switch k {
	case KindChannels, KindDates:
		return nil
	}
	return fmt.Errorf("unknown kind %q", string(k))
}

// Store is the persistence collaborator of the pipeline and the read API.
type Store interface {
	// Drop discards every record of kind. Runs are never dropped.
	Drop(ctx context.Context, kind Kind) error
	// InsertChannels bulk-inserts channels with their shows and returns the number of channels written.
	InsertChannels(ctx context.Context, channels []models.Channel) (int, error)
	// InsertDates bulk-inserts date rows and returns the number written.
	InsertDates(ctx context.Context, dates []models.Date) (int, error)
	// Count returns the number of records of kind.
	Count(ctx context.Context, kind Kind) (int64, error)

	// SaveRun inserts or replaces the run watermark with run.ID.
	SaveRun(ctx context.Context, run models.Run) error
	// LatestRun returns the most recently started run, or ErrNotFound.
	LatestRun(ctx context.Context) (*models.Run, error)

	// ListChannels returns channels matching filter in insertion order, without shows.
	ListChannels(ctx context.Context, filter ChannelFilter) ([]models.Channel, error)
	// GetChannel returns one channel with its shows in schedule order, or ErrNotFound.
	GetChannel(ctx context.Context, id string) (*models.Channel, error)
	// ListDates returns the date rows ordered by timestamp.
	ListDates(ctx context.Context) ([]models.Date, error)

	Close(ctx context.Context) error
}

// ChannelFilter holds optional filters for listing channels.
type ChannelFilter struct {
	Provider string
	Category string // exact label match
	Limit    int    // default 100, max 500
	Offset   int
}

const (
	defaultLimit = 100
	maxLimit     = 500
)

// Normalize clamps Limit and Offset.
func (f ChannelFilter) Normalize() ChannelFilter {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	return f
}

// localize moves every instant of ch into the schedule timezone. Drivers hand
// back UTC.
func localize(ch *models.Channel) {
	loc := models.Location()
	for i := range ch.Shows {
		ch.Shows[i].Start = ch.Shows[i].Start.In(loc)
		ch.Shows[i].End = ch.Shows[i].End.In(loc)
	}
}

func localizeDate(d *models.Date) {
	d.DateTZ = d.DateTZ.In(models.Location())
}

var (
	_ Store = (*Postgres)(nil)
	_ Store = (*Mongo)(nil)
	_ Store = (*CachedStore)(nil)
)
