package mts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/httpclient"
	"github.com/voyagen/epgvault/internal/models"
)

const placeholder = "https://static.example/placeholder.png"

type upstream struct {
	mu        sync.Mutex
	requested []string
}

func (u *upstream) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	write := func(w http.ResponseWriter, v any) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(v)
	}
	mux.HandleFunc("/categories", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		write(w, []map[string]any{
			{"id": "news", "text": "Informativni"},
			{"id": AdultCategoryID, "text": "Adult"},
			{"id": "edu", "text": "Obrazovno / Dokumentarni"},
		})
	})
	mux.HandleFunc("/dates", func(w http.ResponseWriter, r *http.Request) {
		write(w, []map[string]any{
			{"value": "2024-01-05", "text": "Pet"},
			{"value": "2024-01-06", "text": "Sub"},
		})
	})
	mux.HandleFunc("/program", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "tv", q.Get("channel-type"))
		cat, date := q.Get("category"), q.Get("date")
		u.mu.Lock()
		u.requested = append(u.requested, cat+"/"+date)
		u.mu.Unlock()

		if cat == "edu" && date == "2024-01-06" {
			http.Error(w, "boom", http.StatusBadGateway)
			return
		}
		item := func(title string, ch int) map[string]any {
			return map[string]any{
				"title":      title,
				"category":   "Vesti",
				"full_start": date + " 20:00:00",
				"full_end":   date + " 21:00:00",
				"image":      "/img/" + title + ".jpg",
				"id_channel": ch,
			}
		}
		channels := []map[string]any{
			{"id": 1, "name": "RTS 1", "image": "/img/rts1.png", "items": []any{item("dnevnik-"+date, 1)}},
			{"id": 99, "name": "iris TV promo", "image": "", "items": []any{item("promo", 99)}},
		}
		if cat == "edu" {
			channels = append(channels, map[string]any{
				"id": "2", "name": " Nauka ", "image": "", "items": []any{item("svemir", 2)},
			})
		}
		write(w, map[string]any{"channels": channels})
	})
	return mux
}

func TestAdapter_Fetch(t *testing.T) {
	up := &upstream{}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()

	a := NewAdapter(NewClient(httpclient.New(httpclient.Options{}), srv.URL))
	p, err := a.Fetch(context.Background())
	require.NoError(t, err)

	for _, r := range up.requested {
		require.NotContains(t, r, AdultCategoryID)
	}
	require.Len(t, up.requested, 4)
	require.Len(t, p.Failures, 1)

	require.Len(t, p.Channels, 2)
	require.Equal(t, "RTS 1", p.Channels[0]["name"])
	require.Equal(t, "Informativni", p.Channels[0]["category"])
	require.Equal(t, "Obrazovno / Dokumentarni", p.Channels[1]["category"])

	var titles []string
	for _, s := range p.Shows {
		titles = append(titles, s.OptString("title"))
	}
	require.ElementsMatch(t, []string{"dnevnik-2024-01-05", "dnevnik-2024-01-06", "svemir"}, titles)
}

func TestProvider_Scrape(t *testing.T) {
	up := &upstream{}
	srv := httptest.NewServer(up.handler(t))
	defer srv.Close()

	prov := New(httpclient.New(httpclient.Options{}), srv.URL, placeholder)
	res, err := prov.Scrape(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Channels, 2)

	rts := res.Channels[0]
	require.Equal(t, "mts-1", rts.ID)
	require.Equal(t, "https://mts.rs/img/rts1.png", rts.Logo)
	require.Equal(t, []string{"Informativni"}, rts.Category)
	require.Len(t, rts.Shows, 2)
	for _, s := range rts.Shows {
		require.Equal(t, "mts-1", s.ChannelID)
		require.Equal(t, float64(60), s.Duration)
	}

	nauka := res.Channels[1]
	require.Equal(t, "Nauka", nauka.Name)
	require.Equal(t, placeholder, nauka.Logo)
	require.Equal(t, []string{"Obrazovni", "Dokumentarni"}, nauka.Category)
	require.Len(t, nauka.Shows, 1)
}

func TestParser_ParseShow(t *testing.T) {
	p := Parser{ImageBase: DefaultImageBase, DefaultImage: placeholder}

	s, err := p.ParseShow(fetcher.Record{
		"title":      "Film",
		"category":   "Film",
		"full_start": "2024-01-05 23:30:00",
		"full_end":   "2024-01-05 24:45:00",
		"id_channel": json.Number("12"),
	})
	require.NoError(t, err)
	loc := models.Location()
	require.True(t, s.Start.Equal(time.Date(2024, 1, 5, 23, 30, 0, 0, loc)))
	require.True(t, s.End.Equal(time.Date(2024, 1, 5, 0, 45, 0, 0, loc)))
	require.Equal(t, s.Start.Unix(), s.StartTS)
	require.Equal(t, s.End.Unix(), s.EndTS)
	require.InDelta(t, s.End.Sub(s.Start).Abs().Minutes(), s.Duration, 1e-9)
	require.Greater(t, s.Duration, 0.0)
	require.Equal(t, placeholder, s.Poster)
	require.Equal(t, int64(12), s.OID)
	require.Empty(t, s.Description)
}

func TestParser_ParseShow_MissingRequired(t *testing.T) {
	p := Parser{ImageBase: DefaultImageBase, DefaultImage: placeholder}
	base := fetcher.Record{
		"title":      "x",
		"full_start": "2024-01-05 10:00:00",
		"full_end":   "2024-01-05 11:00:00",
		"id_channel": "3",
	}
	for _, key := range []string{"title", "full_start", "full_end", "id_channel"} {
		t.Run(key, func(t *testing.T) {
			rec := fetcher.Record{}
			for k, v := range base {
				if k != key {
					rec[k] = v
				}
			}
			_, err := p.ParseShow(rec)
			require.ErrorIs(t, err, fetcher.ErrMissingKey)
		})
	}
}

func TestParser_ParseChannel(t *testing.T) {
	p := Parser{ImageBase: DefaultImageBase, DefaultImage: placeholder}

	_, err := p.ParseChannel(fetcher.Record{"id": "5", "name": "   "}, nil)
	require.Error(t, err)

	ch, err := p.ParseChannel(fetcher.Record{
		"id":       "5",
		"name":     "Arena Sport 1",
		"image":    "https://cdn.mts.rs/a1.png",
		"category": "Sportski / Regionalni (Kolažni)",
	}, nil)
	require.NoError(t, err)
	require.Equal(t, "mts-5", ch.ID)
	require.Equal(t, models.ProviderMTS, ch.Provider)
	require.Equal(t, "https://cdn.mts.rs/a1.png", ch.Logo)
	require.Equal(t, []string{"Sportski", "Regionalni"}, ch.Category)
}
