// Package united scrapes the United Cloud public EPG API used by the SBB
// family of operators. Every call needs a bearer token from an OAuth2
// client-credentials exchange.
package united

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/httpclient"
	"github.com/voyagen/epgvault/internal/provider"
)

const (
	DefaultBaseURL  = "https://api-web.ug-be.cdn.united.cloud"
	DefaultImageURL = "https://images-web.ug-be.cdn.united.cloud"

	// tokenSlack is subtracted from expires_in so a token is never used at the edge of its lifetime.
	tokenSlack = 60 * time.Second
)

// ErrAuth is returned when the token exchange fails. No authenticated call is
// issued without a token.
var ErrAuth = fmt.Errorf("united: %w", provider.ErrAuth)

type token struct {
	value   string
	expires time.Time // zero: valid for the client's lifetime
}

func (t *token) valid(now time.Time) bool {
	return t != nil && t.value != "" && (t.expires.IsZero() || now.Before(t.expires))
}

// Client issues United Cloud requests and owns the bearer token of one
// credential. The token is acquired lazily and cached until it expires.
type Client struct {
	http    *httpclient.Client
	baseURL string
	basic   string
	now     func() time.Time

	mu  sync.Mutex
	tok *token
}

// NewClient returns a Client for the Basic credential basic.
func NewClient(hc *httpclient.Client, baseURL, basic string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		http:    hc,
		baseURL: strings.TrimRight(baseURL, "/"),
		basic:   basic,
		now:     time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

// Token returns the cached bearer token, exchanging the Basic credential for
// a new one when absent or expired.
func (c *Client) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tok.valid(c.now()) {
		return c.tok.value, nil
	}
	if c.basic == "" {
		return "", fmt.Errorf("%w: no basic credential configured", ErrAuth)
	}
	var resp tokenResponse
	err := c.http.JSON(ctx, httpclient.Request{
		Method: http.MethodPost,
		URL:    c.baseURL + "/oauth/token",
		Query:  url.Values{"grant_type": {"client_credentials"}},
		Header: http.Header{
			"Accept":        {"application/json"},
			"Authorization": {"Basic " + c.basic},
		},
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrAuth, err)
	}
	if resp.AccessToken == "" {
		return "", fmt.Errorf("%w: empty access_token", ErrAuth)
	}
	t := &token{value: resp.AccessToken}
	if resp.ExpiresIn > 0 {
		lifetime := time.Duration(resp.ExpiresIn) * time.Second
		t.expires = c.now().Add(lifetime - min(tokenSlack, lifetime/2))
	}
	c.tok = t
	return t.value, nil
}

// Invalidate drops the cached token.
func (c *Client) Invalidate() {
	c.mu.Lock()
	c.tok = nil
	c.mu.Unlock()
}

// get performs an authenticated GET. A 401 invalidates the token, which is
// re-acquired once before the call is retried once.
func (c *Client) get(ctx context.Context, path string, q url.Values, extra http.Header, dst any) error {
	do := func() error {
		tok, err := c.Token(ctx)
		if err != nil {
			return err
		}
		h := http.Header{
			"Accept":        {"application/json"},
			"Authorization": {"Bearer " + tok},
		}
		for k, v := range extra {
			h[k] = v
		}
		return c.http.JSON(ctx, httpclient.Request{Method: http.MethodGet, URL: c.baseURL + path, Query: q, Header: h}, dst)
	}
	err := do()
	var se *httpclient.StatusError
	if errors.As(err, &se) && se.Code == http.StatusUnauthorized {
		c.Invalidate()
		err = do()
	}
	return err
}

// FetchChannels returns the channel list of one community/language pair.
func (c *Client) FetchChannels(ctx context.Context, community, language string) ([]fetcher.Record, error) {
	q := url.Values{
		"imageSize":           {"S"},
		"communityIdentifier": {community},
		"languageId":          {language},
	}
	var raw []any
	if err := c.get(ctx, "/v2/public/channels", q, nil, &raw); err != nil {
		return nil, fmt.Errorf("FetchChannels %s/%s: %w", community, language, err)
	}
	recs, err := fetcher.AsRecords(raw)
	if err != nil {
		return nil, fmt.Errorf("FetchChannels %s/%s: %w", community, language, err)
	}
	return recs, nil
}

// FetchEPG returns the events of channelIDs within [from, to] in one batched
// call. Events are returned grouped in the order of channelIDs.
func (c *Client) FetchEPG(ctx context.Context, channelIDs []string, community, language string, from, to time.Time) ([]fetcher.Record, error) {
	q := url.Values{
		"cid":                 {strings.Join(channelIDs, ",")},
		"fromTime":            {strconv.FormatInt(from.Unix(), 10)},
		"toTime":              {strconv.FormatInt(to.Unix(), 10)},
		"communityIdentifier": {community},
		"languageId":          {language},
	}
	h := http.Header{"X-Ucp-Time-Format": {"timestamp"}}
	var byChannel map[string]any
	if err := c.get(ctx, "/v1/public/events/epg", q, h, &byChannel); err != nil {
		return nil, fmt.Errorf("FetchEPG %s/%s: %w", community, language, err)
	}

	order := make([]string, 0, len(byChannel))
	listed := make(map[string]bool, len(channelIDs))
	for _, id := range channelIDs {
		listed[id] = true
		if _, ok := byChannel[id]; ok {
			order = append(order, id)
		}
	}
	var rest []string
	for id := range byChannel {
		if !listed[id] {
			rest = append(rest, id)
		}
	}
	sort.Strings(rest)
	order = append(order, rest...)

	var events []fetcher.Record
	for _, id := range order {
		if byChannel[id] == nil {
			continue
		}
		recs, err := fetcher.AsRecords(byChannel[id])
		if err != nil {
			return nil, fmt.Errorf("FetchEPG channel %s: %w", id, err)
		}
		events = append(events, recs...)
	}
	return events, nil
}
