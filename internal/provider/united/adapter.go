package united

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/voyagen/epgvault/internal/logctx"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
)

// Identifier is a community/language pair that scopes a channel list.
type Identifier struct {
	Community string
	Language  string
}

// Window returns the EPG query bounds for now: start of the day seven days
// back to the last second of the day five days ahead, in schedule time.
func Window(now time.Time) (from, to time.Time) {
	loc := models.Location()
	n := now.In(loc)
	from = time.Date(n.Year(), n.Month(), n.Day()-7, 0, 0, 0, 0, loc)
	to = time.Date(n.Year(), n.Month(), n.Day()+5, 23, 59, 59, 0, loc)
	return from, to
}

// Adapter fetches channels per identifier and their events in one batch each.
type Adapter struct {
	name        string
	client      *Client
	identifiers []Identifier
	now         func() time.Time
}

// NewAdapter returns an Adapter over identifiers, in order.
func NewAdapter(name string, client *Client, identifiers []Identifier) *Adapter {
	return &Adapter{name: name, client: client, identifiers: identifiers, now: time.Now}
}

// Fetch acquires the token first; without it nothing else is requested and
// ErrAuth is returned. Channel ids whose events were already fetched under an
// earlier identifier are not queried again.
func (a *Adapter) Fetch(ctx context.Context) (provider.Payload, error) {
	log := logctx.From(ctx).With(slog.String("provider", a.name))
	var p provider.Payload

	if _, err := a.client.Token(ctx); err != nil {
		log.Error("auth_failed", slog.Any("err", err))
		return p, err
	}

	from, to := Window(a.now())
	queried := make(map[string]bool)
	for _, id := range a.identifiers {
		ilog := log.With(slog.String("community", id.Community), slog.String("language", id.Language))

		channels, err := a.client.FetchChannels(ctx, id.Community, id.Language)
		if err != nil {
			if stop := a.fatal(ctx, err); stop != nil {
				ilog.Error("fetch_aborted", slog.String("op", "channels"), slog.Any("err", err))
				return p, stop
			}
			ilog.Warn("fetch_failed", slog.String("op", "channels"), slog.Any("err", err))
			p.Failures = append(p.Failures, err)
			continue
		}
		p.Channels = append(p.Channels, channels...)

		var cids []string
		for _, ch := range channels {
			cid := ch.OptString("id")
			if cid == "" || queried[cid] {
				continue
			}
			cids = append(cids, cid)
		}
		ilog.Debug("channels_fetched", slog.Int("channels", len(channels)), slog.Int("new", len(cids)))
		if len(cids) == 0 {
			continue
		}

		events, err := a.client.FetchEPG(ctx, cids, id.Community, id.Language, from, to)
		if err != nil {
			if stop := a.fatal(ctx, err); stop != nil {
				ilog.Error("fetch_aborted", slog.String("op", "epg"), slog.Any("err", err))
				return p, stop
			}
			ilog.Warn("fetch_failed", slog.String("op", "epg"), slog.Any("err", err))
			p.Failures = append(p.Failures, err)
			continue
		}
		for _, cid := range cids {
			queried[cid] = true
		}
		p.Shows = append(p.Shows, events...)
		ilog.Debug("epg_fetched", slog.Int("events", len(events)))
	}
	return p, nil
}

// fatal returns the error that should end the fetch: a lost token or a
// cancelled context. Anything else is a soft failure.
func (a *Adapter) fatal(ctx context.Context, err error) error {
	if errors.Is(err, ErrAuth) {
		return err
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}
