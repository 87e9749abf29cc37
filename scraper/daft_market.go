package scraper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"propsync/config"
	"propsync/identity"
	"propsync/models"
	"propsync/reconcile"
)

const (
	defaultDaftSearchURL   = "https://www.daft.ie"
	defaultMaxPages        = 10
	defaultPageSize        = 20
	incrementalSellerLimit = 5
	incrementalDelay       = 2 * time.Second
)

var errNoNextData = errors.New("no __NEXT_DATA__ script")

// MarketStore persists scraped Daft sellers and listings.
type MarketStore interface {
	UpsertDaftSeller(seller *models.DaftSeller) error
	UpsertDaftListing(l *models.DaftListing) (isNew, changed bool, err error)
	OldestDaftSellers(limit int) ([]models.DaftSeller, error)
	TouchDaftSeller(daftID string) error
	InsertMarketScrapeLog(r *models.MarketScrapeResult) error
}

// DaftMarketScraper walks Daft search result pages per location and records
// every listing and the agency advertising it.
type DaftMarketScraper struct {
	cfg     *config.ProviderConfig
	client  *http.Client
	store   MarketStore
	baseURL string
	sleep   func(ctx context.Context, d time.Duration) error

	// OnListing is called with "added", "updated" or "unchanged".
	OnListing func(result string)
}

func NewDaftMarketScraper(cfg *config.ProviderConfig, client *http.Client, store MarketStore) *DaftMarketScraper {
	if cfg == nil {
		cfg = &config.ProviderConfig{ID: string(models.ProviderDaft)}
	}
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &DaftMarketScraper{
		cfg:     cfg,
		client:  client,
		store:   store,
		baseURL: strings.TrimRight(cfg.Endpoint("search", defaultDaftSearchURL), "/"),
		sleep:   sleepCtx,
	}
}

type locationResult struct {
	listings int
	added    int
	updated  int
}

// Run performs a full scrape of every configured location, or an incremental
// pass that only rotates the least recently checked sellers.
func (s *DaftMarketScraper) Run(ctx context.Context, mode string) (*models.MarketScrapeResult, error) {
	start := time.Now()
	result := &models.MarketScrapeResult{Mode: mode}

	var err error
	if mode == "incremental" {
		err = s.runIncremental(ctx, result)
	} else {
		result.Mode = "full"
		err = s.runFull(ctx, result)
	}
	result.Duration = time.Since(start)
	result.CompletedAt = time.Now()

	if logErr := s.store.InsertMarketScrapeLog(result); logErr != nil {
		log.Printf("Warning: failed to write daft scrape log: %v", logErr)
	}
	return result, err
}

func (s *DaftMarketScraper) runFull(ctx context.Context, result *models.MarketScrapeResult) error {
	locations := s.cfg.Locations
	if len(locations) == 0 {
		return fmt.Errorf("no daft locations configured")
	}

	sellers := make(map[string]bool)
	pacer := NewPacer(
		time.Duration(s.cfg.LocationDelayMS)*time.Millisecond,
		s.cfg.LocationPauseEvery,
		time.Duration(s.cfg.LocationPauseMS)*time.Millisecond,
	)
	pacer.sleep = s.sleep

	log.Printf("Daft market: full scrape of %d locations", len(locations))
	for i, location := range locations {
		lr, err := s.ScrapeLocation(ctx, location, sellers)
		result.Listings += lr.listings
		result.Added += lr.added
		result.Updated += lr.updated
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			result.Errors++
			log.Printf("Daft market [%d/%d] %s: %v", i+1, len(locations), location, err)
		} else {
			log.Printf("Daft market [%d/%d] %s: %d listings (%d new, %d updated)",
				i+1, len(locations), location, lr.listings, lr.added, lr.updated)
		}

		if err := pacer.Wait(ctx); err != nil {
			return err
		}
	}
	result.Sellers = len(sellers)

	log.Printf("Daft market: %d listings, %d sellers, %d errors", result.Listings, result.Sellers, result.Errors)
	return nil
}

func (s *DaftMarketScraper) runIncremental(ctx context.Context, result *models.MarketScrapeResult) error {
	sellers, err := s.store.OldestDaftSellers(incrementalSellerLimit)
	if err != nil {
		return fmt.Errorf("oldest sellers: %w", err)
	}
	if len(sellers) == 0 {
		log.Println("Daft market: no sellers yet, run a full scrape first")
		return nil
	}

	for i, seller := range sellers {
		log.Printf("Daft market [%d/%d] checking %s", i+1, len(sellers), seller.Name)
		if err := s.store.TouchDaftSeller(seller.DaftID); err != nil {
			result.Errors++
			log.Printf("Warning: failed to touch seller %s: %v", seller.DaftID, err)
			continue
		}
		result.Sellers++
		if err := s.sleep(ctx, incrementalDelay); err != nil {
			return err
		}
	}
	return nil
}

// ScrapeLocation pages through one location until a page is empty, fails or
// the page limit is reached. Only a failing first page is an error.
func (s *DaftMarketScraper) ScrapeLocation(ctx context.Context, location string, sellers map[string]bool) (locationResult, error) {
	var lr locationResult

	maxPages := s.cfg.MaxPages
	if maxPages <= 0 {
		maxPages = defaultMaxPages
	}
	pageSize := s.cfg.PageSize
	if pageSize <= 0 {
		pageSize = defaultPageSize
	}
	listingType := s.cfg.ListingType
	if listingType == "" {
		listingType = "sale"
	}

	for page := 0; page < maxPages; page++ {
		url := fmt.Sprintf("%s/property-for-%s/%s?offset=%d", s.baseURL, listingType, location, page*pageSize)

		html, err := s.fetchPage(ctx, url)
		if err != nil {
			if page == 0 {
				return lr, err
			}
			break
		}

		listings, pageSellers, err := ParseSearchPage(html)
		if err != nil {
			if page == 0 {
				return lr, err
			}
			break
		}
		if len(listings) == 0 {
			break
		}

		for _, seller := range pageSellers {
			if sellers[seller.DaftID] {
				continue
			}
			if err := s.store.UpsertDaftSeller(&seller); err != nil {
				log.Printf("Warning: failed to upsert daft seller %s: %v", seller.DaftID, err)
				continue
			}
			sellers[seller.DaftID] = true
		}

		now := time.Now()
		for i := range listings {
			l := &listings[i]
			l.Location = location
			l.LastScrapedAt = now
			l.Fingerprint = identity.Fingerprint(l)

			isNew, changed, err := s.store.UpsertDaftListing(l)
			if err != nil {
				log.Printf("Warning: failed to store daft listing %s: %v", l.DaftID, err)
				continue
			}
			lr.listings++
			switch {
			case isNew:
				lr.added++
				s.observe("added")
			case changed:
				lr.updated++
				s.observe("updated")
			default:
				s.observe("unchanged")
			}
		}

		if err := s.sleep(ctx, time.Duration(s.cfg.PageDelayMS)*time.Millisecond); err != nil {
			return lr, err
		}
	}
	return lr, nil
}

func (s *DaftMarketScraper) observe(result string) {
	if s.OnListing != nil {
		s.OnListing(result)
	}
}

func (s *DaftMarketScraper) fetchPage(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-IE,en;q=0.9")
	req.Header.Set("Cache-Control", "no-cache")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch %s: status %d", url, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ParseSearchPage extracts listings and their sellers from the Next.js data
// embedded in a Daft search page.
func ParseSearchPage(html []byte) ([]models.DaftListing, []models.DaftSeller, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, nil, fmt.Errorf("parse html: %w", err)
	}

	script := doc.Find("script#__NEXT_DATA__").First()
	if script.Length() == 0 {
		return nil, nil, errNoNextData
	}

	var data struct {
		Props struct {
			PageProps struct {
				Listings []map[string]any `json:"listings"`
			} `json:"pageProps"`
		} `json:"props"`
	}
	if err := json.Unmarshal([]byte(script.Text()), &data); err != nil {
		return nil, nil, fmt.Errorf("decode __NEXT_DATA__: %w", err)
	}

	var listings []models.DaftListing
	var sellers []models.DaftSeller
	for _, entry := range data.Props.PageProps.Listings {
		l, seller, ok := parseDaftListing(entry)
		if !ok {
			continue
		}
		listings = append(listings, l)
		if seller != nil {
			sellers = append(sellers, *seller)
		}
	}
	return listings, sellers, nil
}

// parseDaftListing reads one search result, which is either the listing
// itself or a wrapper holding it under "listing".
func parseDaftListing(entry map[string]any) (models.DaftListing, *models.DaftSeller, bool) {
	item := entry
	if inner, ok := entry["listing"].(map[string]any); ok {
		item = inner
	}

	var l models.DaftListing
	l.DaftID = text(item, "id")
	if l.DaftID == "" {
		return l, nil, false
	}
	l.Title = text(item, "title")
	l.Price = text(item, "price")
	l.Address = text(item, "address")
	if l.Address == "" {
		l.Address = l.Title
	}
	l.PropertyType = text(item, "propertyType")
	l.Bedrooms = text(item, "numBedrooms")
	l.Bathrooms = text(item, "numBathrooms")
	l.BERRating = text(item, "ber.rating")
	l.PublishDate = text(item, "publishDate")

	if images, ok := reconcile.Resolve(item, "media.images"); ok {
		if list, ok := images.([]any); ok {
			for _, img := range list {
				if url := imageURL(img); url != "" {
					l.Images = append(l.Images, url)
				}
			}
		}
	}

	if lat, ok := number(item, "point.coordinates.1"); ok {
		l.Latitude = &lat
	}
	if lng, ok := number(item, "point.coordinates.0"); ok {
		l.Longitude = &lng
	}

	if raw, err := json.Marshal(entry); err == nil {
		l.RawData = raw
	}

	var seller *models.DaftSeller
	if sellerNode, ok := item["seller"].(map[string]any); ok {
		id := text(sellerNode, "id")
		if id == "" {
			id = text(sellerNode, "sellerId")
		}
		if id != "" {
			name := text(sellerNode, "name")
			if name == "" {
				name = "Unknown Agency"
			}
			seller = &models.DaftSeller{
				DaftID:  id,
				Name:    name,
				Phone:   text(sellerNode, "phone"),
				Email:   text(sellerNode, "email"),
				Website: text(sellerNode, "website"),
				LogoURL: text(sellerNode, "logo"),
			}
			l.SellerID = id
		}
	}
	return l, seller, true
}

func text(node map[string]any, path string) string {
	v, ok := reconcile.Resolve(node, path)
	if !ok || !reconcile.IsPresent(v) {
		return ""
	}
	return strings.TrimSpace(reconcile.Stringify(v))
}

func number(node map[string]any, path string) (float64, bool) {
	v, ok := reconcile.Resolve(node, path)
	if !ok {
		return 0, false
	}
	f, ok := v.(float64)
	return f, ok
}

func imageURL(img any) string {
	switch t := img.(type) {
	case string:
		return t
	case map[string]any:
		for _, key := range []string{"url", "size720x480", "size600x600"} {
			if s, ok := t[key].(string); ok && s != "" {
				return s
			}
		}
	}
	return ""
}
