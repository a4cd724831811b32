package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/models"
)

type fakeAdapter struct {
	payload Payload
	err     error
}

func (f fakeAdapter) Fetch(context.Context) (Payload, error) { return f.payload, f.err }

type fakeParser struct{}

func (fakeParser) NativeID(raw fetcher.Record) (int64, error) { return raw.Int64("id") }

func (fakeParser) ParseChannel(raw fetcher.Record, shows []models.Show) (models.Channel, error) {
	oid, err := raw.Int64("id")
	if err != nil {
		return models.Channel{}, err
	}
	return models.Channel{ID: ChannelID("fake", oid), OID: oid, Provider: "fake", Name: raw.OptString("name"), Shows: shows}, nil
}

func (fakeParser) ParseShow(raw fetcher.Record) (models.Show, error) {
	title, err := raw.String("title")
	if err != nil {
		return models.Show{}, err
	}
	oid, err := raw.Int64("ch")
	if err != nil {
		return models.Show{}, err
	}
	start := time.Date(2024, 1, 5, 20, 0, 0, 0, models.Location())
	return models.NewShow(title, "", "", start, start.Add(time.Hour), "", oid), nil
}

func TestScrape(t *testing.T) {
	p := Provider{
		Name: "fake",
		Adapter: fakeAdapter{payload: Payload{
			Channels: []fetcher.Record{{"id": int64(1), "name": "A"}, {"id": int64(2), "name": "B"}, {"id": int64(1), "name": "A again"}},
			Shows:    []fetcher.Record{{"title": "x", "ch": int64(1)}, {"ch": int64(1)}, {"title": "y", "ch": int64(2)}},
			Failures: []error{errors.New("page 3 timed out")},
		}},
		Parser: fakeParser{},
	}

	res, err := p.Scrape(context.Background())
	require.NoError(t, err)
	require.Equal(t, "fake", res.Provider)
	require.Len(t, res.Channels, 2)
	require.Equal(t, "fake-1", res.Channels[0].ID)
	require.Equal(t, "fake-1", res.Channels[0].Shows[0].ChannelID)
	require.Equal(t, 2, res.ShowCount())

	require.Equal(t, Counts{
		RawChannels:   3,
		RawShows:      3,
		Shows:         2,
		ShowErrors:    1,
		Channels:      2,
		Duplicates:    1,
		FetchFailures: 1,
	}, res.Counts)
	require.Len(t, res.Failures, 2)
}

func TestScrape_AdapterErrorIsSurfaced(t *testing.T) {
	p := Provider{
		Name:    "fake",
		Adapter: fakeAdapter{err: ErrAuth},
		Parser:  fakeParser{},
	}
	res, err := p.Scrape(context.Background())
	require.ErrorIs(t, err, ErrAuth)
	require.Empty(t, res.Channels)
}

func TestChannelID(t *testing.T) {
	require.Equal(t, "mts-42", ChannelID(models.ProviderMTS, 42))
	require.NotEqual(t, ChannelID(models.ProviderSBB, 42), ChannelID(models.ProviderSK, 42))
}
