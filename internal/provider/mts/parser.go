package mts

import (
	"fmt"
	"strings"
	"time"

	"github.com/voyagen/epgvault/internal/fetcher"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
)

// Parser maps mts.rs records into canonical entities.
type Parser struct {
	ImageBase    string
	DefaultImage string
}

// NativeID returns the channel's numeric id.
func (p Parser) NativeID(raw fetcher.Record) (int64, error) {
	return raw.Int64("id")
}

// ParseShow parses one programme item. title, full_start, full_end and
// id_channel are required.
func (p Parser) ParseShow(raw fetcher.Record) (models.Show, error) {
	title, err := raw.String("title")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	start, err := parseTime(raw, "full_start")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	end, err := parseTime(raw, "full_end")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	oid, err := raw.Int64("id_channel")
	if err != nil {
		return models.Show{}, fmt.Errorf("ParseShow: %w", err)
	}
	poster := fetcher.ResolveImage(p.ImageBase, raw.OptString("image"), p.DefaultImage)
	return models.NewShow(
		strings.TrimSpace(title),
		strings.TrimSpace(raw.OptString("category")),
		strings.TrimSpace(raw.OptString("description")),
		start, end, poster, oid,
	), nil
}

// ParseChannel builds a channel from a crawl record tagged with its category text.
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
	return models.Channel{
		ID:       provider.ChannelID(models.ProviderMTS, oid),
		OID:      oid,
		Provider: models.ProviderMTS,
		Name:     name,
		Logo:     fetcher.ResolveImage(p.ImageBase, raw.OptString("image"), p.DefaultImage),
		Category: fetcher.NormalizeCategories(raw.OptString("category")),
		Shows:    shows,
	}, nil
}

func parseTime(raw fetcher.Record, key string) (time.Time, error) {
	s, err := raw.String(key)
	if err != nil {
		return time.Time{}, err
	}
	return fetcher.ParseLocal(s)
}
