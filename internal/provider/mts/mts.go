package mts

import (
	"github.com/voyagen/epgvault/internal/httpclient"
	"github.com/voyagen/epgvault/internal/models"
	"github.com/voyagen/epgvault/internal/provider"
)

// New returns the mts provider reading from baseURL. Missing images resolve
// to defaultImage.
func New(hc *httpclient.Client, baseURL, defaultImage string) provider.Provider {
	return provider.Provider{
		Name:    models.ProviderMTS,
		Adapter: NewAdapter(NewClient(hc, baseURL)),
		Parser:  Parser{ImageBase: DefaultImageBase, DefaultImage: defaultImage},
	}
}
