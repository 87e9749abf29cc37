package models

import "strings"

// Provider identifies one upstream listing source.
type Provider string

const (
	ProviderPropertyDrive Provider = "propertydrive" // internal 4PM/WordPress feed
	ProviderMyHome        Provider = "myhome"
	ProviderAcquaint      Provider = "acquaint_crm"
	ProviderDaft          Provider = "daft"
)

// CanonicalOrder is the fixed evaluation order for providers within a field.
var CanonicalOrder = []Provider{
	ProviderPropertyDrive,
	ProviderMyHome,
	ProviderAcquaint,
	ProviderDaft,
}

// ExternalProviders are the providers fetched over the network.
var ExternalProviders = []Provider{
	ProviderMyHome,
	ProviderAcquaint,
	ProviderDaft,
}

var providerTitles = map[Provider]string{
	ProviderPropertyDrive: "FindAHome",
	ProviderMyHome:        "MyHome",
	ProviderAcquaint:      "Acquaint",
	ProviderDaft:          "Daft",
}

var providerAliases = map[string]Provider{
	"propertydrive": ProviderPropertyDrive,
	"wordpress":     ProviderPropertyDrive,
	"4pm":           ProviderPropertyDrive,
	"fourpm":        ProviderPropertyDrive,
	"findahome":     ProviderPropertyDrive,
	"myhome":        ProviderMyHome,
	"acquaint":      ProviderAcquaint,
	"acquaint_crm":  ProviderAcquaint,
	"daft":          ProviderDaft,
}

// ParseProvider maps a primary-source token to a provider.
func ParseProvider(token string) (Provider, bool) {
	p, ok := providerAliases[strings.ToLower(strings.TrimSpace(token))]
	return p, ok
}

// Title is the operator-facing name of the provider.
func (p Provider) Title() string {
	if t, ok := providerTitles[p]; ok {
		return t
	}
	return string(p)
}
