// Package mts scrapes the public mts.rs EPG endpoints. The guide is only
// exposed per (category, date) page, so a run crosses both lists.
package mts

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/httpclient"
)

const (
	DefaultBaseURL   = "https://mts.rs/oec/epg"
	DefaultImageBase = "https://mts.rs"
)

// Client issues the raw mts.rs requests.
type Client struct {
	http    *httpclient.Client
	baseURL string
}

// NewClient returns a Client rooted at baseURL.
func NewClient(hc *httpclient.Client, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{http: hc, baseURL: strings.TrimRight(baseURL, "/")}
}

func (c *Client) get(ctx context.Context, path string, q url.Values, dst any) error {
	return c.http.JSON(ctx, httpclient.Request{
		Method: http.MethodGet,
		URL:    c.baseURL + path,
		Query:  q,
		Header: http.Header{
			"Accept":           {"application/json"},
			"X-Requested-With": {"XMLHttpRequest"},
		},
	}, dst)
}

// FetchCategories returns the category list, each record {id, text}.
func (c *Client) FetchCategories(ctx context.Context) ([]fetcher.Record, error) {
	var raw []any
	if err := c.get(ctx, "/categories", nil, &raw); err != nil {
		return nil, fmt.Errorf("FetchCategories: %w", err)
	}
	recs, err := fetcher.AsRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("FetchCategories: %w", err)
	}
	return recs, nil
}

// FetchDates returns the schedule dates, each record {value, text} with
// value formatted YYYY-MM-DD.
func (c *Client) FetchDates(ctx context.Context) ([]fetcher.Record, error) {
	var raw []any
	if err := c.get(ctx, "/dates", nil, &raw); err != nil {
		return nil, fmt.Errorf("FetchDates: %w", err)
	}
	recs, err := fetcher.AsRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("FetchDates: %w", err)
	}
	return recs, nil
}

// FetchProgram returns the TV channels of one (category, date) page. Each
// channel record carries its shows under "items".
func (c *Client) FetchProgram(ctx context.Context, category, date string) ([]fetcher.Record, error) {
	q := url.Values{
		"channel-type": {"tv"},
		"category":     {category},
		"date":         {date},
	}
	var page fetcher.Record
	if err := c.get(ctx, "/program", q, &page); err != nil {
		return nil, fmt.Errorf("FetchProgram %s/%s: %w", category, date, err)
	}
	chans, err := page.Records("channels")
	if err != nil {
		return nil, fmt.Errorf("FetchProgram %s/%s: %w", category, date, err)
	}
	return chans, nil
}
