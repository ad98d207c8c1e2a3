// package discogs is a typed client for the Discogs REST API. Every call is
// serialized through an injected rate limiter, retried on transient failures,
// and feeds the server's quota header back into the limiter.
package discogs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"time"

	"github.com/charmbracelet/log"

	"discosync/internal/models"
	"discosync/internal/parsers"
	"discosync/internal/ratelimit"
	"discosync/internal/shared"
)

const (
	BaseURL   = "https://api.discogs.com"
	userAgent = "discosync/1.0"

	// RatelimitHeader carries the server's count of calls left in the window.
	RatelimitHeader = "X-Discogs-Ratelimit-Remaining"

	maxAttempts = 3
	retryDelay  = 5 * time.Second
	perPage     = 50
)

// RateLimiter throttles outbound calls and absorbs the server's quota signal.
type RateLimiter interface {
	Wait(ctx context.Context) error
	Observe(remaining int)
	Remaining() int
	Interval() time.Duration
}

// Client issues authenticated Discogs API calls.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	limiter RateLimiter
	log     *log.Logger

	// sleep is swappable so retry tests run without real delays.
	sleep func(time.Duration)

	username string
}

// NewClient builds a Client against the production API.
func NewClient(token string, limiter RateLimiter, logger *log.Logger) *Client {
	return NewClientWithBase(BaseURL, token, limiter, logger)
}

// NewClientWithBase builds a Client against an explicit base URL.
func NewClientWithBase(baseURL, token string, limiter RateLimiter, logger *log.Logger) *Client {
	if limiter == nil {
		limiter = ratelimit.New()
	}
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Client{
		baseURL: baseURL,
		token:   token,
		http:    &http.Client{Timeout: 30 * time.Second},
		limiter: limiter,
		log:     logger,
		sleep:   time.Sleep,
	}
}

// Limiter exposes the client's limiter for quota reporting.
func (c *Client) Limiter() RateLimiter {
	return c.limiter
}

// transientError marks a failure worth retrying: network errors, 5xx, and 429.
type transientError struct {
	err error
}

func (e *transientError) Error() string { return e.err.Error() }
func (e *transientError) Unwrap() error { return e.err }

// do runs one API call through the limiter with retries, decoding the
// response body into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, out any) error {
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			c.log.Debug("retrying request", "method", method, "path", path, "attempt", attempt)
			c.sleep(retryDelay)
		}
		err := c.once(ctx, method, path, query, out)
		if err == nil {
			return nil
		}
		var te *transientError
		if !errors.As(err, &te) {
			return err
		}
		lastErr = te.err
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
	return fmt.Errorf("%w: %s %s failed after %d attempts: %v",
		shared.ErrServiceUnavailable, method, path, maxAttempts, lastErr)
}

func (c *Client) once(ctx context.Context, method, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, nil)
	if err != nil {
		return fmt.Errorf("%w: building request: %v", shared.ErrAPIRequest, err)
	}
	req.Header.Set("User-Agent", userAgent)
	if c.token != "" {
		req.Header.Set("Authorization", "Discogs token="+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &transientError{err: err}
	}
	defer resp.Body.Close()

	if raw := resp.Header.Get(RatelimitHeader); raw != "" {
		if remaining, err := strconv.Atoi(raw); err == nil {
			c.limiter.Observe(remaining)
		}
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return &transientError{err: fmt.Errorf("%w: %s %s", shared.ErrRateLimited, method, path)}
	case resp.StatusCode >= 500:
		return &transientError{err: fmt.Errorf("status %d from %s %s", resp.StatusCode, method, path)}
	case resp.StatusCode == http.StatusUnauthorized:
		return fmt.Errorf("%w: status 401 from %s %s", shared.ErrAuthFailed, method, path)
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, method, path)
	case resp.StatusCode >= 400:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: status %d from %s %s: %s",
			shared.ErrAPIRequest, resp.StatusCode, method, path, body)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decoding %s %s response: %v", shared.ErrAPIRequest, method, path, err)
	}
	return nil
}

// SearchQuery is one database search request. Zero-valued fields are omitted.
type SearchQuery struct {
	Artist  string
	Title   string
	Query   string
	Type    string
	Format  string
	Year    int
	PerPage int
}

// Search runs a database search and returns the first page of parsed hits.
func (c *Client) Search(ctx context.Context, q SearchQuery) ([]Hit, error) {
	values := url.Values{}
	if q.Artist != "" {
		values.Set("artist", q.Artist)
	}
	if q.Title != "" {
		values.Set("release_title", q.Title)
	}
	if q.Query != "" {
		values.Set("q", q.Query)
	}
	if q.Type != "" {
		values.Set("type", q.Type)
	}
	if q.Format != "" {
		values.Set("format", q.Format)
	}
	if q.Year > 0 {
		values.Set("year", strconv.Itoa(q.Year))
	}
	limit := q.PerPage
	if limit <= 0 {
		limit = perPage
	}
	values.Set("per_page", strconv.Itoa(limit))

	var resp searchResponse
	if err := c.do(ctx, http.MethodGet, "/database/search", values, &resp); err != nil {
		return nil, err
	}
	hits := make([]Hit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hits = append(hits, r.toHit())
	}
	return hits, nil
}

// MainRelease returns the canonical release id of a master.
func (c *Client) MainRelease(ctx context.Context, masterID int) (int, error) {
	var resp masterResponse
	path := fmt.Sprintf("/masters/%d", masterID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.MainRelease, nil
}

// MasterVersions returns every pressing listed under a master, walking all
// pages.
func (c *Client) MasterVersions(ctx context.Context, masterID int) ([]Version, error) {
	var versions []Version
	for page := 1; ; page++ {
		values := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
		var resp versionsResponse
		path := fmt.Sprintf("/masters/%d/versions", masterID)
		if err := c.do(ctx, http.MethodGet, path, values, &resp); err != nil {
			return nil, err
		}
		versions = append(versions, resp.Versions...)
		if page >= resp.Pagination.Pages {
			break
		}
	}
	return versions, nil
}

// Release fetches the full record of one release.
func (c *Client) Release(ctx context.Context, releaseID int) (*Release, error) {
	var resp Release
	path := fmt.Sprintf("/releases/%d", releaseID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// MarketplaceStats fetches listing counts and the lowest price for a release
// in the given currency.
func (c *Client) MarketplaceStats(ctx context.Context, releaseID int, currency string) (*Stats, error) {
	values := url.Values{}
	if currency != "" {
		values.Set("curr_abbr", currency)
	}
	var resp Stats
	path := fmt.Sprintf("/marketplace/stats/%d", releaseID)
	if err := c.do(ctx, http.MethodGet, path, values, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// PriceSuggestions fetches the per-condition suggested prices for a release.
// Sellers without access get an empty map, not an error.
func (c *Client) PriceSuggestions(ctx context.Context, releaseID int) (map[string]float64, error) {
	var resp suggestionsResponse
	path := fmt.Sprintf("/marketplace/price_suggestions/%d", releaseID)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toMap(), nil
}

// Identity returns the account the token belongs to.
func (c *Client) Identity(ctx context.Context) (*User, error) {
	var resp User
	if err := c.do(ctx, http.MethodGet, "/oauth/identity", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// user returns the authenticated username, resolving it once per client.
func (c *Client) user(ctx context.Context) (string, error) {
	if c.username != "" {
		return c.username, nil
	}
	identity, err := c.Identity(ctx)
	if err != nil {
		return "", err
	}
	c.username = identity.Username
	return c.username, nil
}

// Wantlist fetches the full remote wantlist, walking all pages.
func (c *Client) Wantlist(ctx context.Context) ([]models.WantlistItem, error) {
	username, err := c.user(ctx)
	if err != nil {
		return nil, err
	}
	var items []models.WantlistItem
	for page := 1; ; page++ {
		values := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
		var resp wantsResponse
		path := fmt.Sprintf("/users/%s/wants", url.PathEscape(username))
		if err := c.do(ctx, http.MethodGet, path, values, &resp); err != nil {
			return nil, err
		}
		for _, w := range resp.Wants {
			items = append(items, models.WantlistItem{
				ReleaseID: w.BasicInformation.ID,
				MasterID:  w.BasicInformation.MasterID,
				Artist:    parsers.JoinArtists(w.BasicInformation.Artists),
				Title:     w.BasicInformation.Title,
				Year:      int(w.BasicInformation.Year),
				Format:    w.BasicInformation.formatName(),
				Notes:     w.Notes,
			})
		}
		if page >= resp.Pagination.Pages {
			break
		}
	}
	return items, nil
}

// AddWant puts a release on the wantlist. Adding an already-wanted release
// succeeds and changes nothing.
func (c *Client) AddWant(ctx context.Context, releaseID int) error {
	username, err := c.user(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)
	return c.do(ctx, http.MethodPut, path, nil, nil)
}

// DeleteWant removes a release from the wantlist.
func (c *Client) DeleteWant(ctx context.Context, releaseID int) error {
	username, err := c.user(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/users/%s/wants/%d", url.PathEscape(username), releaseID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}

// CollectionItems fetches every instance in the given folder, walking all
// pages. Folder 0 is the server's "all folders" view.
func (c *Client) CollectionItems(ctx context.Context, folderID int) ([]models.CollectionItem, error) {
	username, err := c.user(ctx)
	if err != nil {
		return nil, err
	}
	var items []models.CollectionItem
	for page := 1; ; page++ {
		values := url.Values{
			"page":     {strconv.Itoa(page)},
			"per_page": {strconv.Itoa(perPage)},
		}
		var resp collectionResponse
		path := fmt.Sprintf("/users/%s/collection/folders/%d/releases", url.PathEscape(username), folderID)
		if err := c.do(ctx, http.MethodGet, path, values, &resp); err != nil {
			return nil, err
		}
		for _, r := range resp.Releases {
			items = append(items, models.CollectionItem{
				InstanceID: r.InstanceID,
				FolderID:   r.FolderID,
				ReleaseID:  r.BasicInformation.ID,
				MasterID:   r.BasicInformation.MasterID,
				Artist:     parsers.JoinArtists(r.BasicInformation.Artists),
				Title:      r.BasicInformation.Title,
				Year:       int(r.BasicInformation.Year),
				Format:     r.BasicInformation.formatName(),
			})
		}
		if page >= resp.Pagination.Pages {
			break
		}
	}
	return items, nil
}

// AddToFolder adds a release instance to a collection folder and returns the
// new instance id. Each call creates a fresh instance, so duplicates are the
// caller's decision.
func (c *Client) AddToFolder(ctx context.Context, folderID, releaseID int) (int, error) {
	username, err := c.user(ctx)
	if err != nil {
		return 0, err
	}
	var resp instanceResponse
	path := fmt.Sprintf("/users/%s/collection/folders/%d/releases/%d",
		url.PathEscape(username), folderID, releaseID)
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return 0, err
	}
	return resp.InstanceID, nil
}

// DeleteInstance removes one collection instance.
func (c *Client) DeleteInstance(ctx context.Context, folderID, releaseID, instanceID int) error {
	username, err := c.user(ctx)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/users/%s/collection/folders/%d/releases/%d/instances/%d",
		url.PathEscape(username), folderID, releaseID, instanceID)
	return c.do(ctx, http.MethodDelete, path, nil, nil)
}
