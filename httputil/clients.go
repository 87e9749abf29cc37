package httputil

import (
	"crypto/tls"
	"log"
	"net/http"
	"net/url"
	"time"

	"propsync/config"
)

type Clients struct {
	Scraping *http.Client // proxied when configured, for daft.ie pages
	API      *http.Client // direct, for provider gateways and feeds
}

// NewClients builds the HTTP clients. Per-request deadlines come from the
// caller's context, the client timeouts are an upper bound.
func NewClients(proxyCfg *config.ProxyConfig, apiTimeout time.Duration) *Clients {
	transport := &http.Transport{
		ForceAttemptHTTP2: false,
		TLSNextProto:      make(map[string]func(string, *tls.Conn) http.RoundTripper),
	}
	if proxyCfg != nil && proxyCfg.URL != "" {
		proxyURL, err := url.Parse(proxyCfg.URL)
		if err != nil {
			log.Printf("Warning: invalid PROXY_URL, scraping without proxy: %v", err)
		} else {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	scraping := &http.Client{
		Timeout:   30 * time.Second,
		Transport: transport,
	}

	if apiTimeout <= 0 {
		apiTimeout = 30 * time.Second
	}

	return &Clients{
		Scraping: scraping,
		API:      &http.Client{Timeout: apiTimeout * 2},
	}
}
