package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"propsync/config"
	"propsync/models"
)

const defaultMyHomeGateway = "https://api.stefanmars.nl/api/myhome"

type MyHomeFetcher struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewMyHomeFetcher(cfg *config.ProviderConfig, client *http.Client, token string) *MyHomeFetcher {
	return &MyHomeFetcher{
		endpoint: cfg.Endpoint("gateway", defaultMyHomeGateway),
		token:    token,
		client:   clientOrDefault(client),
	}
}

func (f *MyHomeFetcher) Provider() models.Provider {
	return models.ProviderMyHome
}

// Fetch returns the listing. The gateway answers 404 or 500 for unknown ids and
// wraps the listing in a top-level Property object.
func (f *MyHomeFetcher) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	if credential == "" {
		return nil, unavailable(models.ProviderMyHome, 0, "no credential", nil)
	}

	q := url.Values{}
	q.Set("key", credential)
	q.Set("id", externalID)
	endpoint := fmt.Sprintf("%s?%s", f.endpoint, q.Encode())

	status, body, err := get(ctx, f.client, models.ProviderMyHome, endpoint, map[string]string{"token": f.token})
	if err != nil {
		return nil, err
	}
	switch {
	case status == http.StatusNotFound || status == http.StatusInternalServerError:
		return nil, notFound(models.ProviderMyHome, status)
	case status < 200 || status > 299:
		return nil, unavailable(models.ProviderMyHome, status, fmt.Sprintf("HTTP %d: %s", status, snippet(body)), nil)
	}

	tree, err := decodeTree(models.ProviderMyHome, status, body)
	if err != nil {
		return nil, err
	}
	if inner, ok := tree["Property"].(map[string]any); ok && len(inner) > 0 {
		return models.Tree(inner), nil
	}
	return tree, nil
}
