// Package provider defines the fetch/parse capability pair every upstream
// implements and the generic scrape that turns one provider's raw payloads
// into canonical channels.
package provider

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voyagen/epgvault/internal/correlate"
	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/models"
)

// ErrAuth marks a credential exchange failure. Adapters wrap it so callers
// can tell a starved provider from an empty one.
var ErrAuth = errors.New("provider auth failed")

// Payload is everything an adapter fetched in one run.
type Payload struct {
	Channels []fetcher.Record
	Shows    []fetcher.Record
	// Failures are sub-requests that failed and were degraded to empty results.
	Failures []error
}

// Adapter talks to one upstream API. Fetch returns an error only when the
// whole provider is unusable (e.g. ErrAuth); single sub-request failures go
// into Payload.Failures.
type Adapter interface {
	Fetch(ctx context.Context) (Payload, error)
}

// Parser maps raw records into canonical entities.
type Parser interface {
	correlate.ChannelParser
	ParseShow(raw fetcher.Record) (models.Show, error)
}

// Provider is one configured upstream.
type Provider struct {
	Name      string
	Adapter   Adapter
	Parser    Parser
	DropEmpty bool
}

// Counts summarises one provider's scrape per stage.
type Counts struct {
	RawChannels   int `json:"raw_channels"`
	RawShows      int `json:"raw_shows"`
	Shows         int `json:"shows"`
	ShowErrors    int `json:"show_errors"`
	Channels      int `json:"channels"`
	ChannelErrors int `json:"channel_errors"`
	Duplicates    int `json:"duplicates"`
	Dropped       int `json:"dropped"`
	Orphans       int `json:"orphans"`
	FetchFailures int `json:"fetch_failures"`
}

// Result is the outcome of Scrape. A Result with no channels and no failures
// is an empty but successful scrape.
type Result struct {
	Provider string
	Channels []models.Channel
	Counts   Counts
	Failures []error
}

// Scrape fetches, parses and correlates one provider.
func (p Provider) Scrape(ctx context.Context) (Result, error) {
	log := logctx.From(ctx).With(slog.String("provider", p.Name))
	res := Result{Provider: p.Name}

	payload, err := p.Adapter.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("%s: fetch: %w", p.Name, err)
	}
	res.Failures = append(res.Failures, payload.Failures...)
	res.Counts.FetchFailures = len(payload.Failures)
	res.Counts.RawChannels = len(payload.Channels)
	res.Counts.RawShows = len(payload.Shows)
	log.Info("stage_done", slog.String("stage", "fetch"),
		slog.Int("channels", len(payload.Channels)),
		slog.Int("shows", len(payload.Shows)),
		slog.Int("failures", len(payload.Failures)))

	shows := make([]models.Show, 0, len(payload.Shows))
	for i, raw := range payload.Shows {
		s, err := p.Parser.ParseShow(raw)
		if err != nil {
			res.Counts.ShowErrors++
			log.Debug("show_parse_failed", slog.Int("index", i), slog.Any("err", err))
			continue
		}
		shows = append(shows, s)
	}
	res.Counts.Shows = len(shows)
	if res.Counts.ShowErrors > 0 {
		res.Failures = append(res.Failures, fmt.Errorf("%s: %d show records failed to parse", p.Name, res.Counts.ShowErrors))
	}
	log.Info("stage_done", slog.String("stage", "parse"),
		slog.Int("shows", len(shows)),
		slog.Int("errors", res.Counts.ShowErrors))

	channels, stats, err := correlate.Channels(payload.Channels, shows, p.Parser, correlate.Options{DropEmpty: p.DropEmpty})
	if err != nil {
		log.Warn("channel_parse_failed", slog.Int("count", stats.Failed), slog.Any("err", err))
		res.Failures = append(res.Failures, err)
	}
	res.Channels = channels
	res.Counts.Channels = len(channels)
	res.Counts.ChannelErrors = stats.Failed
	res.Counts.Duplicates = stats.Duplicates
	res.Counts.Dropped = stats.Dropped
	res.Counts.Orphans = stats.Orphans
	log.Info("stage_done", slog.String("stage", "correlate"),
		slog.Int("channels", len(channels)),
		slog.Int("duplicates", stats.Duplicates),
		slog.Int("dropped", stats.Dropped),
		slog.Int("orphan_shows", stats.Orphans))
	return res, nil
}

// ChannelID returns the canonical channel identifier: the provider name
// prefixed to the native id, unique after concatenating providers.
func ChannelID(provider string, oid int64) string {
	return fmt.Sprintf("%s-%d", provider, oid)
}

// ShowCount returns the number of shows attached across res.Channels.
func (r Result) ShowCount() int {
	n := 0
	for _, ch := range r.Channels {
		n += len(ch.Shows)
	}
	return n
}
