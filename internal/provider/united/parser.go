package united

import (
	"fmt"
	"strings"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
)

// Image variant preferences. Event image 1 is the landscape still, channel
// image 0 the logo.
const (
	posterIndex = 1
	logoIndex   = 0
)

// Parser maps United Cloud records into canonical entities of one provider.
type Parser struct {
	Provider     string
	ImageBase    string
	DefaultImage string
}

// NativeID returns the channel's numeric id.
func (p Parser) NativeID(raw fetcher.Record) (int64, error) {
	return raw.Int64("id")
}

// ParseShow parses one event. title, startTime, endTime (epoch milliseconds)
// and channelId are required.
func (p Parser) ParseShow(raw fetcher.Record) (models.Show, error) {
	title, err := raw.String("title")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	startMS, err := raw.Int64("startTime")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	endMS, err := raw.Int64("endTime")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	oid, err := raw.Int64("channelId")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	names, err := names(raw, "categories")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	category := ""
	if len(names) > 0 {
		category = fetcher.CanonicalCategory(names[0])
	}
	paths, err := imagePaths(raw)
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	return models.NewShow(
		strings.TrimSpace(title),
		category,
		strings.TrimSpace(raw.OptString("shortDescription")),
		fetcher.FromUnixMillis(startMS),
		fetcher.FromUnixMillis(endMS),
		fetcher.PickImage(p.ImageBase, paths, posterIndex, p.DefaultImage),
		oid,
	), nil
}

// ParseChannel builds a channel of p.Provider.
func (p Parser) ParseChannel(raw fetcher.Record, shows []models.Show) (models.Channel, error) {
	oid, err := raw.Int64("id")
	if err != nil {
		return models.Channel{}, fmt.Errorf("ParseChannel: %w", err)
	}
	name, err := raw.String("name")
	if err != nil {
		return models.Channel{}, fmt.Errorf("ParseChannel: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return models.Channel{}, fmt.Errorf("ParseChannel %d: empty name: %w", oid, fetcher.ErrMissingKey)
	}
	paths, err := imagePaths(raw)
	if err != nil {
		return models.Channel{}, fmt.Errorf("ParseChannel %d: %w", oid, err)
	}
	cats, err := names(raw, "categories")
	if err != nil {
		return models.Channel{}, fmt.Errorf("ParseChannel %d: %w", oid, err)
	}
	return models.Channel{
		ID:       provider.ChannelID(p.Provider, oid),
		OID:      oid,
		Provider: p.Provider,
		Name:     name,
		Logo:     fetcher.PickImage(p.ImageBase, paths, logoIndex, p.DefaultImage),
		Category: fetcher.NormalizeCategories(strings.Join(cats, "/")),
		Shows:    shows,
	}, nil
}

// names collects the "name" of each object in the list at key.
func names(raw fetcher.Record, key string) ([]string, error) {
	items, err := raw.Records(key)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		if n := strings.TrimSpace(it.OptString("name")); n != "" {
			out = append(out, n)
		}
	}
	return out, nil
}

// imagePaths keeps empty paths so variant indexes stay aligned.
func imagePaths(raw fetcher.Record) ([]string, error) {
	items, err := raw.Records("images")
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.OptString("path"))
	}
	return out, nil
}
