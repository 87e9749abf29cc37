package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"propsync/config"
	"propsync/models"
	"propsync/reconcile"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

type capture struct {
	mu  sync.Mutex
	req *http.Request
}

func (c *capture) last() *http.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.req
}

func serve(t *testing.T, status int, body []byte) (*httptest.Server, *capture) {
	t.Helper()
	c := &capture{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		c.req = r.Clone(context.Background())
		c.mu.Unlock()
		w.WriteHeader(status)
		w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv, c
}

func providerCfg(id, key, endpoint string) *config.ProviderConfig {
	return &config.ProviderConfig{ID: id, Endpoints: map[string]string{key: endpoint}}
}

func assertUnavailable(t *testing.T, err error, status int) *UnavailableError {
	t.Helper()
	var ue *UnavailableError
	if !errors.As(err, &ue) {
		t.Fatalf("expected UnavailableError, got %v", err)
	}
	if ue.Status != status {
		t.Fatalf("expected status %d, got %d", status, ue.Status)
	}
	return ue
}

func TestDaftFetcher_Success(t *testing.T) {
	srv, req := serve(t, http.StatusOK, loadFixture(t, "daft_listing.json"))
	f := NewDaftFetcher(providerCfg("daft", "gateway", srv.URL+"/api/daft"), srv.Client(), "tok")

	tree, err := f.Fetch(context.Background(), "daft-key", "4521")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if tree["startDate"] != "2024-02-02T10:00:00Z" {
		t.Fatalf("unexpected startDate %v", tree["startDate"])
	}
	r := req.last()
	if r.URL.Query().Get("key") != "daft-key" || r.URL.Query().Get("id") != "4521" {
		t.Fatalf("unexpected query %s", r.URL.RawQuery)
	}
	if r.Header.Get("token") != "tok" {
		t.Fatalf("expected token header, got %q", r.Header.Get("token"))
	}
}

func TestDaftFetcher_EmptyBodies(t *testing.T) {
	for _, body := range []string{"", "   ", `""`, "null", "{}", "[1,2]", "{not json"} {
		srv, _ := serve(t, http.StatusOK, []byte(body))
		f := NewDaftFetcher(providerCfg("daft", "gateway", srv.URL), srv.Client(), "tok")

		_, err := f.Fetch(context.Background(), "daft-key", "4521")
		if err == nil {
			t.Fatalf("expected body %q to be unavailable", body)
		}
		assertUnavailable(t, err, http.StatusOK)
	}
}

func TestDaftFetcher_HTTPError(t *testing.T) {
	srv, _ := serve(t, http.StatusBadGateway, []byte("upstream down"))
	f := NewDaftFetcher(providerCfg("daft", "gateway", srv.URL), srv.Client(), "tok")

	_, err := f.Fetch(context.Background(), "daft-key", "4521")
	ue := assertUnavailable(t, err, http.StatusBadGateway)
	if errors.Is(ue, ErrNotFound) {
		t.Fatalf("502 should not be not-found")
	}
}

func TestDaftFetcher_NoCredential(t *testing.T) {
	f := NewDaftFetcher(nil, nil, "tok")
	if _, err := f.Fetch(context.Background(), "", "4521"); err == nil {
		t.Fatalf("expected error without credential")
	}
}

func TestMyHomeFetcher_UnwrapsProperty(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, loadFixture(t, "myhome_listing.json"))
	f := NewMyHomeFetcher(providerCfg("myhome", "gateway", srv.URL), srv.Client(), "tok")

	tree, err := f.Fetch(context.Background(), "mh-key", "4521")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if tree["PriceAsString"] != "€305,000" {
		t.Fatalf("expected unwrapped property, got %v", tree)
	}
	photos, ok := tree["Photos"].([]any)
	if !ok || len(photos) != 3 {
		t.Fatalf("expected 3 photos, got %v", tree["Photos"])
	}
}

func TestMyHomeFetcher_NotFound(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		srv, _ := serve(t, status, []byte(`{"error":"Failed to fetch from MyHome API"}`))
		f := NewMyHomeFetcher(providerCfg("myhome", "gateway", srv.URL), srv.Client(), "tok")

		_, err := f.Fetch(context.Background(), "mh-key", "9999")
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("status %d: expected ErrNotFound, got %v", status, err)
		}
	}
}

func TestAcquaintFetcher_FindsProperty(t *testing.T) {
	feed := loadFixture(t, "acquaint_feed.xml")
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.URL.Path != "/feeds/GAL-0.xml" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write(feed)
	}))
	defer srv.Close()

	f := NewAcquaintFetcher(providerCfg("acquaint_crm", "feed", srv.URL+"/feeds/"), srv.Client())

	tree, err := f.Fetch(context.Background(), "GAL", "4521")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if tree["price"] != "300000" {
		t.Fatalf("unexpected price %v", tree["price"])
	}
	pics, ok := tree["pictures"].(map[string]interface{})
	if !ok {
		t.Fatalf("expected pictures element, got %T", tree["pictures"])
	}
	if list, ok := pics["picture"].([]interface{}); !ok || len(list) != 2 {
		t.Fatalf("expected 2 pictures, got %v", pics["picture"])
	}

	tree, err = f.Fetch(context.Background(), "GAL", "GAL4600")
	if err != nil {
		t.Fatalf("fetch with attribute id failed: %v", err)
	}
	if tree["bedrooms"] != "4" {
		t.Fatalf("unexpected bedrooms %v", tree["bedrooms"])
	}

	if _, err := f.Fetch(context.Background(), "GAL", "1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if n := atomic.LoadInt32(&hits); n != 1 {
		t.Fatalf("expected feed to be downloaded once, got %d", n)
	}
}

func TestParseAcquaintFeed_SinglePictureIsList(t *testing.T) {
	properties, err := parseAcquaintFeed(loadFixture(t, "acquaint_feed_single_picture.xml"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if len(properties) != 3 {
		t.Fatalf("expected 3 properties, got %d", len(properties))
	}

	daftImages := []any{"https://daft/1.jpg"}
	for _, prop := range properties[:2] {
		pics, ok := reconcile.Resolve(prop, "pictures.picture")
		if !ok {
			t.Fatalf("%v: pictures not resolved", prop["id"])
		}
		list, ok := pics.([]any)
		if !ok || len(list) != 1 {
			t.Fatalf("%v: expected a one-picture list, got %T %v", prop["id"], pics, pics)
		}
		if !reconcile.AreEqual("Pictures", pics, daftImages) {
			t.Fatalf("%v: one acquaint picture should equal one daft image", prop["id"])
		}
	}

	if _, ok := reconcile.Resolve(properties[2], "pictures.picture"); ok {
		t.Fatal("expected no pictures for a listing without the element")
	}
}

func TestAcquaintFetcher_FeedExpires(t *testing.T) {
	feed := loadFixture(t, "acquaint_feed.xml")
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.Write(feed)
	}))
	defer srv.Close()

	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	f := NewAcquaintFetcher(providerCfg("acquaint_crm", "feed", srv.URL), srv.Client())
	f.now = func() time.Time { return now }

	f.ListAll(context.Background(), "GAL")
	now = now.Add(10 * time.Minute)
	f.ListAll(context.Background(), "GAL")
	if n := atomic.LoadInt32(&hits); n != 2 {
		t.Fatalf("expected expired feed to be downloaded again, got %d hits", n)
	}
}

func TestAcquaintFetcher_BadFeed(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, []byte("<data><properties"))
	f := NewAcquaintFetcher(providerCfg("acquaint_crm", "feed", srv.URL), srv.Client())

	_, err := f.Fetch(context.Background(), "GAL", "4521")
	assertUnavailable(t, err, http.StatusOK)
}

func TestPropertyDriveFetcher_ListAll(t *testing.T) {
	srv, req := serve(t, http.StatusOK, loadFixture(t, "propertydrive_feed.json"))
	f := NewPropertyDriveFetcher(providerCfg("propertydrive", "properties", srv.URL), srv.Client(), "tok")

	items, err := f.ListAll(context.Background(), "galway-homes")
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(items))
	}
	if r := req.last(); r.Header.Get("key") != "galway-homes" || r.Header.Get("token") != "tok" {
		t.Fatalf("unexpected headers %v", r.Header)
	}
	if ListReff(items[1]) != "4600" {
		t.Fatalf("expected numeric ListReff 4600, got %q", ListReff(items[1]))
	}

	tree, err := f.Fetch(context.Background(), "galway-homes", "GAL4521")
	if err != nil {
		t.Fatalf("fetch failed: %v", err)
	}
	if tree["Price"] != "300000" {
		t.Fatalf("unexpected price %v", tree["Price"])
	}
}

func TestPropertyDriveFetcher_InvalidResponse(t *testing.T) {
	srv, _ := serve(t, http.StatusOK, []byte(`{"error":"bad key"}`))
	f := NewPropertyDriveFetcher(providerCfg("propertydrive", "properties", srv.URL), srv.Client(), "tok")

	_, err := f.ListAll(context.Background(), "galway-homes")
	assertUnavailable(t, err, http.StatusOK)
}

func TestFetch_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	f := NewDaftFetcher(providerCfg("daft", "gateway", srv.URL), srv.Client(), "tok")
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := f.Fetch(ctx, "daft-key", "4521")
	ue := assertUnavailable(t, err, 0)
	if ue.Reason != "timeout" {
		t.Fatalf("expected timeout reason, got %q", ue.Reason)
	}
	if Reason(err) == "" {
		t.Fatalf("expected a diagnostic reason")
	}
}

func TestNewFetchers(t *testing.T) {
	cfg := &config.Config{Providers: map[string]*config.ProviderConfig{}}
	fetchers := NewFetchers(cfg, nil)
	for _, p := range models.ExternalProviders {
		if fetchers[p] == nil {
			t.Fatalf("missing fetcher for %s", p)
		}
		if fetchers[p].Provider() != p {
			t.Fatalf("fetcher for %s reports %s", p, fetchers[p].Provider())
		}
	}
	if _, ok := fetchers[models.ProviderPropertyDrive]; ok {
		t.Fatalf("internal feed is not an external fetcher")
	}
}
