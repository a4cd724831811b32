package mts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/provider"
)

const (
	// AdultCategoryID is skipped entirely.
	AdultCategoryID = "6d747321322334355f5f5f5f5f5f5f5f6ad6"
	// PromoChannelName is a pseudo-channel carrying promotional loops.
	PromoChannelName = "iris TV promo"
)

// Adapter crawls every (category, date) page sequentially.
type Adapter struct {
	client *Client
}

// NewAdapter returns an Adapter using client.
func NewAdapter(client *Client) *Adapter {
	return &Adapter{client: client}
}

// Fetch crawls the guide. A channel record is emitted once, on the first page
// it appears on, tagged with that page's category text. Its items are taken
// once per date, since the same channel repeats under several categories.
func (a *Adapter) Fetch(ctx context.Context) (provider.Payload, error) {
	log := logctx.From(ctx).With(slog.String("provider", "mts"))
	var p provider.Payload

	categories, err := a.client.FetchCategories(ctx)
	if err != nil {
		log.Error("fetch_failed", slog.String("op", "categories"), slog.Any("err", err))
		p.Failures = append(p.Failures, err)
	}
	dates, err := a.client.FetchDates(ctx)
	if err != nil {
		log.Error("fetch_failed", slog.String("op", "dates"), slog.Any("err", err))
		p.Failures = append(p.Failures, err)
	}
	log.Debug("index_fetched", slog.Int("categories", len(categories)), slog.Int("dates", len(dates)))

	var (
		seen  = make(map[string]bool)
		taken = make(map[string]bool)
		pages int
	)
	for _, cat := range categories {
		catID := cat.OptString("id")
		if catID == AdultCategoryID {
			continue
		}
		catText := cat.OptString("text")
		for _, d := range dates {
			date := d.OptString("value")
			channels, err := a.client.FetchProgram(ctx, catID, date)
			if err != nil {
				if ctx.Err() != nil {
					return p, ctx.Err()
				}
				log.Warn("fetch_failed", slog.String("op", "program"),
					slog.String("category", catID), slog.String("date", date), slog.Any("err", err))
				p.Failures = append(p.Failures, err)
				continue
			}
			pages++
			for _, ch := range channels {
				if strings.TrimSpace(ch.OptString("name")) == PromoChannelName {
					continue
				}
				id := ch.OptString("id")
				if !seen[id] {
					seen[id] = true
					p.Channels = append(p.Channels, fetcher.Record{
						"id":       ch["id"],
						"name":     ch["name"],
						"image":    ch["image"],
						"category": catText,
					})
				}
				key := id + "|" + date
				if taken[key] {
					continue
				}
				items, err := ch.Records("items")
				if err != nil {
					p.Failures = append(p.Failures, fmt.Errorf("channel %s items on %s: %w", id, date, err))
					continue
				}
				taken[key] = true
				p.Shows = append(p.Shows, items...)
			}
		}
	}
	log.Info("crawl_done", slog.Int("pages", pages),
		slog.Int("channels", len(p.Channels)), slog.Int("shows", len(p.Shows)))
	return p, nil
}
