package discogs

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"discosync/internal/ratelimit"
	"discosync/internal/shared"
)

// fakeLimiter never blocks, so multi-call tests run without real waits.
type fakeLimiter struct {
	observed []int
}

func (f *fakeLimiter) Wait(context.Context) error { return nil }
func (f *fakeLimiter) Observe(remaining int)      { f.observed = append(f.observed, remaining) }
func (f *fakeLimiter) Remaining() int             { return -1 }
func (f *fakeLimiter) Interval() time.Duration    { return 0 }

func testClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClientWithBase(srv.URL, "test-token", &fakeLimiter{}, nil)
	c.sleep = func(time.Duration) {}
	return c
}

func TestAuthHeader(t *testing.T) {
	var gotAuth, gotAgent string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		fmt.Fprint(w, `{"id": 1, "username": "rust"}`)
	}))

	if _, err := c.Identity(context.Background()); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if gotAuth != "Discogs token=test-token" {
		t.Errorf("unexpected auth header %q", gotAuth)
	}
	if gotAgent != userAgent {
		t.Errorf("unexpected user agent %q", gotAgent)
	}
}

func TestSearch(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/database/search" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("artist"); got != "Radiohead" {
			t.Errorf("unexpected artist param %q", got)
		}
		fmt.Fprint(w, `{
			"pagination": {"page": 1, "pages": 1},
			"results": [
				{"id": 100, "type": "master", "title": "Radiohead - OK Computer", "year": "1997", "format": ["Vinyl", "LP"], "country": "UK"},
				{"id": 7890, "type": "release", "master_id": 100, "title": "Radiohead - OK Computer", "year": 2017}
			]
		}`)
	}))

	hits, err := c.Search(context.Background(), SearchQuery{Artist: "Radiohead", Title: "OK Computer", Type: "master"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}

	master := hits[0]
	if master.MasterID != 100 || master.ReleaseID != 0 {
		t.Errorf("master hit ids wrong: %+v", master)
	}
	if master.Artist != "Radiohead" || master.Title != "OK Computer" {
		t.Errorf("title split wrong: %+v", master)
	}
	if master.Year != 1997 {
		t.Errorf("string year not parsed: %+v", master)
	}

	release := hits[1]
	if release.ReleaseID != 7890 || release.MasterID != 100 {
		t.Errorf("release hit ids wrong: %+v", release)
	}
	if release.Year != 2017 {
		t.Errorf("numeric year not parsed: %+v", release)
	}
}

func TestRetries(t *testing.T) {
	t.Run("Transient Then Success", func(t *testing.T) {
		var calls atomic.Int32
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) < 3 {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			fmt.Fprint(w, `{"id": 100, "main_release": 7890}`)
		}))

		id, err := c.MainRelease(context.Background(), 100)
		if err != nil {
			t.Fatalf("expected recovery on third attempt: %v", err)
		}
		if id != 7890 {
			t.Errorf("main release = %d, want 7890", id)
		}
		if calls.Load() != 3 {
			t.Errorf("expected 3 calls, got %d", calls.Load())
		}
	})

	t.Run("Exhausted", func(t *testing.T) {
		var calls atomic.Int32
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
		}))

		_, err := c.MainRelease(context.Background(), 100)
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Fatalf("expected ErrServiceUnavailable, got %v", err)
		}
		if calls.Load() != maxAttempts {
			t.Errorf("expected %d calls, got %d", maxAttempts, calls.Load())
		}
	})

	t.Run("Permanent Failure Not Retried", func(t *testing.T) {
		var calls atomic.Int32
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls.Add(1)
			w.WriteHeader(http.StatusNotFound)
		}))

		_, err := c.Release(context.Background(), 1)
		if !errors.Is(err, shared.ErrNotFound) {
			t.Fatalf("expected ErrNotFound, got %v", err)
		}
		if calls.Load() != 1 {
			t.Errorf("404 must not retry, got %d calls", calls.Load())
		}
	})

	t.Run("Unauthorized", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}))
		_, err := c.Identity(context.Background())
		if !errors.Is(err, shared.ErrAuthFailed) {
			t.Fatalf("expected ErrAuthFailed, got %v", err)
		}
	})
}

func TestQuotaHeaderFeedsLimiter(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set(RatelimitHeader, "2")
		fmt.Fprint(w, `{"id": 1, "username": "rust"}`)
	}))
	defer srv.Close()

	// Real limiter here: a single call verifies the header feeds through.
	c := NewClientWithBase(srv.URL, "test-token", ratelimit.New(), nil)
	c.sleep = func(time.Duration) {}

	if _, err := c.Identity(context.Background()); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if c.Limiter().Remaining() != 2 {
		t.Errorf("limiter remaining = %d, want 2", c.Limiter().Remaining())
	}
	if c.Limiter().Interval() != ratelimit.PauseInterval {
		t.Errorf("limiter interval = %v, want pause", c.Limiter().Interval())
	}
}

func TestMissingQuotaHeaderLeavesLimiter(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"id": 1, "username": "rust"}`)
	}))

	if _, err := c.Identity(context.Background()); err != nil {
		t.Fatalf("identity: %v", err)
	}
	if observed := c.limiter.(*fakeLimiter).observed; len(observed) != 0 {
		t.Errorf("missing header must not feed the limiter, got %v", observed)
	}
}

func TestWantlistPagination(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/identity":
			fmt.Fprint(w, `{"id": 1, "username": "rust"}`)
		case "/users/rust/wants":
			page := r.URL.Query().Get("page")
			fmt.Fprintf(w, `{
				"pagination": {"page": %s, "pages": 2},
				"wants": [{
					"id": %s00,
					"notes": "page %s",
					"basic_information": {
						"id": %s00,
						"master_id": 9,
						"title": "Untrue",
						"year": 2007,
						"artists": [{"name": "Burial"}],
						"formats": [{"name": "Vinyl"}]
					}
				}]
			}`, page, page, page, page)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	items, err := c.Wantlist(context.Background())
	if err != nil {
		t.Fatalf("wantlist: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("expected items from both pages, got %d", len(items))
	}
	if items[0].ReleaseID != 100 || items[1].ReleaseID != 200 {
		t.Errorf("page order wrong: %+v", items)
	}
	if items[0].Artist != "Burial" || items[0].Format != "Vinyl" {
		t.Errorf("basic information not mapped: %+v", items[0])
	}
}

func TestCollectionRoundTrip(t *testing.T) {
	var deleted string
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/oauth/identity":
			fmt.Fprint(w, `{"id": 1, "username": "rust"}`)
		case r.URL.Path == "/users/rust/collection/folders/0/releases":
			fmt.Fprint(w, `{
				"pagination": {"page": 1, "pages": 1},
				"releases": [{
					"instance_id": 555,
					"folder_id": 1,
					"basic_information": {"id": 7890, "master_id": 100, "title": "OK Computer", "artists": [{"name": "Radiohead"}]}
				}]
			}`)
		case r.Method == http.MethodPost:
			fmt.Fprint(w, `{"instance_id": 556}`)
		case r.Method == http.MethodDelete:
			deleted = r.URL.Path
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	}))

	ctx := context.Background()

	items, err := c.CollectionItems(ctx, 0)
	if err != nil {
		t.Fatalf("collection: %v", err)
	}
	if len(items) != 1 || items[0].InstanceID != 555 || items[0].ReleaseID != 7890 {
		t.Fatalf("collection items wrong: %+v", items)
	}

	instanceID, err := c.AddToFolder(ctx, 1, 7890)
	if err != nil {
		t.Fatalf("add to folder: %v", err)
	}
	if instanceID != 556 {
		t.Errorf("instance id = %d, want 556", instanceID)
	}

	if err := c.DeleteInstance(ctx, 1, 7890, 555); err != nil {
		t.Fatalf("delete instance: %v", err)
	}
	if deleted != "/users/rust/collection/folders/1/releases/7890/instances/555" {
		t.Errorf("unexpected delete path %q", deleted)
	}
}

func TestMarketplaceStats(t *testing.T) {
	t.Run("With Listings", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("curr_abbr"); got != "USD" {
				t.Errorf("unexpected currency param %q", got)
			}
			fmt.Fprint(w, `{"num_for_sale": 12, "lowest_price": {"value": 24.99, "currency": "USD"}}`)
		}))

		stats, err := c.MarketplaceStats(context.Background(), 7890, "USD")
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.NumForSale != 12 {
			t.Errorf("num for sale = %d", stats.NumForSale)
		}
		if lowest := stats.Lowest(); lowest == nil || *lowest != 24.99 {
			t.Errorf("lowest = %v", lowest)
		}
	})

	t.Run("Nothing For Sale", func(t *testing.T) {
		c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `{"num_for_sale": 0, "lowest_price": null}`)
		}))

		stats, err := c.MarketplaceStats(context.Background(), 7890, "")
		if err != nil {
			t.Fatalf("stats: %v", err)
		}
		if stats.Lowest() != nil {
			t.Error("expected nil lowest price")
		}
	})
}

func TestPriceSuggestions(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{
			"Mint (M)": {"currency": "USD", "value": 50.0},
			"Very Good (VG)": {"currency": "USD", "value": 18.5}
		}`)
	}))

	prices, err := c.PriceSuggestions(context.Background(), 7890)
	if err != nil {
		t.Fatalf("suggestions: %v", err)
	}
	if prices["Mint (M)"] != 50.0 || prices["Very Good (VG)"] != 18.5 {
		t.Errorf("suggestions wrong: %v", prices)
	}
}

func TestMasterVersionsPagination(t *testing.T) {
	c := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		page := r.URL.Query().Get("page")
		fmt.Fprintf(w, `{
			"pagination": {"page": %s, "pages": 2},
			"versions": [{"id": %s1, "format": "LP, Album", "major_formats": ["Vinyl"], "country": "US", "released": "1997"}]
		}`, page, page)
	}))

	versions, err := c.MasterVersions(context.Background(), 100)
	if err != nil {
		t.Fatalf("versions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("expected 2 versions, got %d", len(versions))
	}
	if versions[0].ID != 11 || versions[1].ID != 21 {
		t.Errorf("version ids wrong: %+v", versions)
	}
	if !versions[0].MatchesFormat("Vinyl") {
		t.Error("version should match Vinyl")
	}
	if versions[0].MatchesFormat("CD") {
		t.Error("version should not match CD")
	}
	if int(versions[0].Released) != 1997 {
		t.Errorf("released year not parsed: %v", versions[0].Released)
	}
}
