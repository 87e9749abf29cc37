package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"propsync/config"
	"propsync/models"
)

const defaultPropertyDriveFeed = "https://api.stefanmars.nl/api/properties"

// PropertyDriveFetcher reads the agency's internal WordPress feed. The feed is
// keyed by the agency unique key and returns every listing at once.
type PropertyDriveFetcher struct {
	endpoint string
	token    string
	client   *http.Client
}

func NewPropertyDriveFetcher(cfg *config.ProviderConfig, client *http.Client, token string) *PropertyDriveFetcher {
	return &PropertyDriveFetcher{
		endpoint: cfg.Endpoint("properties", defaultPropertyDriveFeed),
		token:    token,
		client:   clientOrDefault(client),
	}
}

func (f *PropertyDriveFetcher) Provider() models.Provider {
	return models.ProviderPropertyDrive
}

func (f *PropertyDriveFetcher) Fetch(ctx context.Context, credential, externalID string) (models.Tree, error) {
	all, err := f.ListAll(ctx, credential)
	if err != nil {
		return nil, err
	}
	for _, item := range all {
		if ListReff(item) == strings.TrimSpace(externalID) {
			return item, nil
		}
	}
	return nil, notFound(models.ProviderPropertyDrive, 0)
}

// ListAll returns every listing in the agency feed. Non-object elements are skipped.
func (f *PropertyDriveFetcher) ListAll(ctx context.Context, uniqueKey string) ([]models.Tree, error) {
	if uniqueKey == "" {
		return nil, unavailable(models.ProviderPropertyDrive, 0, "no unique key", nil)
	}

	headers := map[string]string{"token": f.token, "key": uniqueKey}
	status, body, err := get(ctx, f.client, models.ProviderPropertyDrive, f.endpoint, headers)
	if err != nil {
		return nil, err
	}
	if status < 200 || status > 299 {
		return nil, unavailable(models.ProviderPropertyDrive, status, fmt.Sprintf("HTTP %d: %s", status, snippet(body)), nil)
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, unavailable(models.ProviderPropertyDrive, status, "invalid response", err)
	}

	items := make([]models.Tree, 0, len(raw))
	for _, r := range raw {
		tree, err := models.ParseTree(r)
		if err != nil {
			continue
		}
		items = append(items, tree)
	}
	return items, nil
}

// ListReff reads the feed's listing reference, which may be a string or number.
func ListReff(item models.Tree) string {
	v, ok := item["ListReff"]
	if !ok || v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return fmt.Sprintf("%.0f", t)
	}
	return strings.TrimSpace(fmt.Sprint(v))
}
