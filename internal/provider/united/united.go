package united

import (
	"github.com/voyagen/epgvault/internal/httpclient"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
)

// SBBIdentifiers are the communities served by the sbb provider.
var SBBIdentifiers = []Identifier{
	{"sk_rs", "404"},
	{"sk_hr", "181"},
	{"sk_si", "386"},
	{"n1_rs", "404"},
	{"n1_hr", "181"},
	{"nova_rs", "404"},
}

// SKIdentifiers are the communities served by the sk provider.
var SKIdentifiers = []Identifier{
	{"sk_rs", "404"},
}

// Options configures a United Cloud provider.
type Options struct {
	BaseURL      string
	ImageURL     string
	BasicToken   string
	DefaultImage string
}

// New returns the provider name over identifiers. Each call owns its own
// Client and therefore its own token.
func New(name string, hc *httpclient.Client, identifiers []Identifier, opts Options) provider.Provider {
	imageBase := opts.ImageURL
	if imageBase == "" {
		imageBase = DefaultImageURL
	}
	client := NewClient(hc, opts.BaseURL, opts.BasicToken)
	return provider.Provider{
		Name:    name,
		Adapter: NewAdapter(name, client, identifiers),
		Parser:  Parser{Provider: name, ImageBase: imageBase, DefaultImage: opts.DefaultImage},
	}
}

// NewSBB returns the sbb preset.
func NewSBB(hc *httpclient.Client, opts Options) provider.Provider {
	return New(models.ProviderSBB, hc, SBBIdentifiers, opts)
}

// NewSK returns the sk preset.
func NewSK(hc *httpclient.Client, opts Options) provider.Provider {
	return New(models.ProviderSK, hc, SKIdentifiers, opts)
}
