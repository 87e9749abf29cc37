package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/clbanning/mxj/v2"

	"propsync/config"
	"propsync/identity"
	"propsync/models"
)

const (
	defaultAcquaintFeed = "https://www.acquaintcrm.co.uk/datafeeds/standardxml"
	acquaintFeedTTL     = 5 * time.Minute
)

// AcquaintFetcher reads the agency's full XML datafeed and picks one property.
// Feeds are held briefly so a bulk sync downloads each agency feed once.
type AcquaintFetcher struct {
	endpoint string
	client   *http.Client
	ttl      time.Duration
	now      func() time.Time

	mu    sync.Mutex
	feeds map[string]*acquaintFeed
}

type acquaintFeed struct {
	properties []models.Tree
	fetchedAt  time.Time
}

func NewAcquaintFetcher(cfg *config.ProviderConfig, client *http.Client) *AcquaintFetcher {
	return &AcquaintFetcher{
		endpoint: strings.TrimRight(cfg.Endpoint("feed", defaultAcquaintFeed), "/"),
		client:   clientOrDefault(client),
		ttl:      acquaintFeedTTL,
		now:      time.Now,
		feeds:    make(map[string]*acquaintFeed),
	}
}

func (f *AcquaintFetcher) Provider() models.Provider {
	return models.ProviderAcquaint
}

func (f *AcquaintFetcher) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	if credential == "" {
		return nil, unavailable(models.ProviderAcquaint, 0, "no credential", nil)
	}

	properties, err := f.ListAll(ctx, credential)
	if err != nil {
		return nil, err
	}

	want := identity.AcquaintID(externalID, credential)
	for _, prop := range properties {
		if identity.AcquaintID(textOf(prop["id"]), credential) == want {
			return prop, nil
		}
	}
	return nil, notFound(models.ProviderAcquaint, 0)
}

// ListAll returns every property element of the agency feed.
func (f *AcquaintFetcher) ListAll(ctx context.Context, sitePrefix string) ([]models.Tree, error) {
	f.mu.Lock()
	cached := f.feeds[sitePrefix]
	f.mu.Unlock()
	if cached != nil && f.now().Sub(cached.fetchedAt) < f.ttl {
		return cached.properties, nil
	}

	endpoint := fmt.Sprintf("%s/%s-0.xml", f.endpoint, sitePrefix)
	status, body, err := get(ctx, f.client, models.ProviderAcquaint, endpoint, nil)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, unavailable(models.ProviderAcquaint, status, fmt.Sprintf("HTTP %d", status), nil)
	}

	properties, err := parseAcquaintFeed(body)
	if err != nil {
		return nil, unavailable(models.ProviderAcquaint, status, err.Error(), err)
	}

	f.mu.Lock()
	f.feeds[sitePrefix] = &acquaintFeed{properties: properties, fetchedAt: f.now()}
	f.mu.Unlock()
	return properties, nil
}

func parseAcquaintFeed(body []byte) ([]models.Tree, error) {
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, fmt.Errorf("empty feed")
	}
	m, err := mxj.NewMapXml(body)
	if err != nil {
		return nil, fmt.Errorf("decode xml: %w", err)
	}
	values, err := m.ValuesForPath("data.properties.property")
	if err != nil {
		return nil, fmt.Errorf("walk feed: %w", err)
	}

	properties := make([]models.Tree, 0, len(values))
	for _, v := range values {
		if prop, ok := v.(map[string]interface{}); ok {
			for _, path := range acquaintListPaths {
				forceList(prop, path)
			}
			properties = append(properties, models.Tree(prop))
		}
	}
	return properties, nil
}

// Repeated feed elements. mxj decodes a single occurrence as a bare value,
// so these are always normalized to lists.
var acquaintListPaths = []string{
	"pictures.picture",
	"floorplans.floorplan",
	"features.feature",
	"brochures.brochure",
}

// forceList wraps the element at a dot path in a list when it is not one already.
func forceList(node map[string]interface{}, path string) {
	keys := strings.Split(path, ".")
	for _, key := range keys[:len(keys)-1] {
		child, ok := node[key].(map[string]interface{})
		if !ok {
			return
		}
		node = child
	}
	last := keys[len(keys)-1]
	v, ok := node[last]
	if !ok || v == nil {
		return
	}
	if _, isList := v.([]interface{}); !isList {
		node[last] = []interface{}{v}
	}
}

// textOf reads an element's text whether or not it carried attributes.
func textOf(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case map[string]interface{}:
		if s, ok := t["#text"].(string); ok {
			return strings.TrimSpace(s)
		}
	case []interface{}:
		if len(t) > 0 {
			return textOf(t[0])
		}
	}
	return ""
}
