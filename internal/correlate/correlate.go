// Package correlate attaches parsed shows to the raw channel records they
// belong to and emits canonical channels.
package correlate

import (
	"errors"
	"fmt"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/models"
)

// ChannelParser is the channel half of a provider parser.
type ChannelParser interface {
	// NativeID returns the provider's identifier of a raw channel record.
	NativeID(raw fetcher.Record) (int64, error)
	// ParseChannel builds the canonical channel from raw and the shows that belong to it.
	ParseChannel(raw fetcher.Record, shows []models.Show) (models.Channel, error)
}

// Options tunes correlation for one provider.
type Options struct {
	// DropEmpty omits channels that have no matching shows.
	DropEmpty bool
}

// Stats counts what happened to the raw channel records.
type Stats struct {
	Duplicates int
	Dropped    int
	Failed     int
	// Orphans is the number of shows whose key matched no emitted channel.
	Orphans int
}

// Channels matches shows to raws by native identifier. Shows keep their parse
// order, raws their input order; a repeated native identifier keeps the first
// raw. Records that fail to parse are skipped and reported in err, which is
// nil when every record parsed.
func Channels(raws []fetcher.Record, shows []models.Show, parser ChannelParser, opts Options) ([]models.Channel, Stats, error) {
	byOID := make(map[int64][]models.Show)
	for _, s := range shows {
		byOID[s.OID] = append(byOID[s.OID], s)
	}

	var (
		stats   Stats
		errs    []error
		claimed = make(map[int64]bool, len(raws))
		out     = make([]models.Channel, 0, len(raws))
	)
	for i, raw := range raws {
		oid, err := parser.NativeID(raw)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("channel %d: %w", i, err))
			continue
		}
		if claimed[oid] {
			stats.Duplicates++
			continue
		}
		claimed[oid] = true

		matched := byOID[oid]
		if len(matched) == 0 && opts.DropEmpty {
			stats.Dropped++
			continue
		}
		ch, err := parser.ParseChannel(raw, matched)
		if err != nil {
			stats.Failed++
			errs = append(errs, fmt.Errorf("channel %d (%d): %w", i, oid, err))
			continue
		}
		for j := range ch.Shows {
			ch.Shows[j].ChannelID = ch.ID
		}
		out = append(out, ch)
	}

	emitted := make(map[int64]bool, len(out))
	for _, ch := range out {
		emitted[ch.OID] = true
	}
	for oid, group := range byOID {
		if !emitted[oid] {
			stats.Orphans += len(group)
		}
	}
	return out, stats, errors.Join(errs...)
}
