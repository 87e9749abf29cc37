// Package providers fetches a single property's raw record from each upstream source.
package providers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"propsync/config"
	"propsync/models"
)

// ErrNotFound means the provider answered but does not know the property.
var ErrNotFound = errors.New("property not found")

// UnavailableError marks a provider as unusable for one request. It is never fatal.
type UnavailableError struct {
	Provider models.Provider
	Reason   string
	Status   int
	Err      error
}

func (e *UnavailableError) Error() string {
	msg := fmt.Sprintf("%s unavailable: %s", e.Provider, e.Reason)
	if e.Status != 0 {
		msg += fmt.Sprintf(" (status %d)", e.Status)
	}
	return msg
}

func (e *UnavailableError) Unwrap() error {
	return e.Err
}

func unavailable(p models.Provider, status int, reason string, err error) *UnavailableError {
	return &UnavailableError{Provider: p, Reason: reason, Status: status, Err: err}
}

func notFound(p models.Provider, status int) *UnavailableError {
	return &UnavailableError{Provider: p, Reason: "not found", Status: status, Err: ErrNotFound}
}

// Reason extracts a short diagnostic from any fetch error.
func Reason(err error) string {
	var ue *UnavailableError
	if errors.As(err, &ue) {
		return ue.Error()
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	return err.Error()
}

type Fetcher interface {
	Provider() models.Provider
	Fetch(ctx context.Context, credential, externalID string) (models.Tree, error)
}

// NewFetcher builds the fetcher for a provider, nil for unknown providers.
func NewFetcher(p models.Provider, cfg *config.ProviderConfig, client *http.Client, token string) Fetcher {
	switch p {
	case models.ProviderDaft:
		return NewDaftFetcher(cfg, client, token)
	case models.ProviderMyHome:
		return NewMyHomeFetcher(cfg, client, token)
	case models.ProviderAcquaint:
		return NewAcquaintFetcher(cfg, client)
	case models.ProviderPropertyDrive:
		return NewPropertyDriveFetcher(cfg, client, token)
	default:
		return nil
	}
}

// NewFetchers builds guarded fetchers for every external provider.
func NewFetchers(cfg *config.Config, client *http.Client) map[models.Provider]Fetcher {
	fetchers := make(map[models.Provider]Fetcher, len(models.ExternalProviders))
	for _, p := range models.ExternalProviders {
		pcfg := cfg.Provider(string(p))
		f := NewFetcher(p, pcfg, client, cfg.APIToken)
		if f == nil {
			continue
		}
		fetchers[p] = NewGuarded(f, pcfg)
	}
	return fetchers
}

const maxBodyBytes = 32 << 20

// get issues a GET and returns the status and body. Transport errors and
// context cancellation come back as UnavailableError.
func get(ctx context.Context, client *http.Client, p models.Provider, url string, headers map[string]string) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, nil, unavailable(p, 0, "build request", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return 0, nil, unavailable(p, 0, "timeout", ctx.Err())
		}
		return 0, nil, unavailable(p, 0, "request failed", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return resp.StatusCode, nil, unavailable(p, resp.StatusCode, "read body", err)
	}
	return resp.StatusCode, body, nil
}

// decodeTree validates a JSON body: empty, "", null, {} and malformed bodies are unavailable.
func decodeTree(p models.Provider, status int, body []byte) (models.Tree, error) {
	trimmed := bytes.TrimSpace(body)
	switch string(trimmed) {
	case "", `""`, "null":
		return nil, unavailable(p, status, "empty response", nil)
	}
	tree, err := models.ParseTree(trimmed)
	if err != nil {
		return nil, unavailable(p, status, err.Error(), err)
	}
	return tree, nil
}

func clientOrDefault(client *http.Client) *http.Client {
	if client != nil {
		return client
	}
	return &http.Client{Timeout: 30 * time.Second}
}

func snippet(body []byte) string {
	s := string(bytes.TrimSpace(body))
	if len(s) > 100 {
		s = s[:100]
	}
	return s
}
