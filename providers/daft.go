package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"propsync/config"
	"propsync/models"
)

const defaultDaftGateway = "https://api.stefanmars.nl/api/daft"

type DaftFetcher struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewDaftFetcher(cfg *config.ProviderConfig, client *http.Client, token string) *DaftFetcher {
	return &DaftFetcher{
		endpoint: cfg.Endpoint("gateway", defaultDaftGateway),
		token:    token,
		client:   clientOrDefault(client),
	}
}

func (f *DaftFetcher) Provider() models.Provider {
	return models.ProviderDaft
}

func (f *DaftFetcher) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	if credential == "" {
		return nil, unavailable(models.ProviderDaft, 0, "no credential", nil)
	}

	q := url.Values{}
	q.Set("key", credential)
	q.Set("id", externalID)
	endpoint := fmt.Sprintf("%s?%s", f.endpoint, q.Encode())

	status, body, err := get(ctx, f.client, models.ProviderDaft, endpoint, map[string]string{"token": f.token})
	if err != nil {
		return nil, err
	}
	if status == http.StatusNotFound {
		return nil, notFound(models.ProviderDaft, status)
	}
	if status < 200 || status > 299 {
		return nil, unavailable(models.ProviderDaft, status, fmt.Sprintf("HTTP %d: %s", status, snippet(body)), nil)
	}
	return decodeTree(models.ProviderDaft, status, body)
}
