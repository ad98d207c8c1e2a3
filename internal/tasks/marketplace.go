package tasks

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"

	"discosync/internal/cache"
	"discosync/internal/discogs"
	"discosync/internal/models"
	"discosync/internal/parsers"
	"discosync/internal/repositories"
	"discosync/internal/shared"
)

const (
	defaultCurrency   = "USD"
	defaultMaxResults = 5
)

// MarketplaceQuery describes one marketplace lookup. An explicit ReleaseID or
// MasterID bypasses resolution; otherwise Record is resolved first.
type MarketplaceQuery struct {
	Record     models.InputRecord
	ReleaseID  int
	MasterID   int
	Country    string
	Currency   string
	MaxResults int
	// Details additionally fetches price suggestions, label, and community
	// counts per result. Detail-less cache entries stay valid for plain reads.
	Details bool
}

// MarketplaceEngine answers marketplace price queries with two cache layers
// in front of the API: a short-TTL result store and a persistent resolution
// store that skips re-searching queries seen before.
type MarketplaceEngine struct {
	client      Catalog
	resolver    Resolver
	store       *cache.Store
	resolutions *repositories.ResolutionRepository
	threshold   float64
	log         *log.Logger
}

// NewMarketplaceEngine creates a MarketplaceEngine. Both stores may be nil,
// which disables the corresponding layer.
func NewMarketplaceEngine(client Catalog, resolver Resolver, store *cache.Store, resolutions *repositories.ResolutionRepository, threshold float64, logger *log.Logger) *MarketplaceEngine {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &MarketplaceEngine{
		client:      client,
		resolver:    resolver,
		store:       store,
		resolutions: resolutions,
		threshold:   threshold,
		log:         logger,
	}
}

// Lookup answers a marketplace query, cheapest result first.
func (m *MarketplaceEngine) Lookup(ctx context.Context, q MarketplaceQuery, progress chan<- ProgressUpdate) ([]models.MarketplaceResult, error) {
	if q.Currency == "" {
		q.Currency = defaultCurrency
	}
	if q.MaxResults <= 0 {
		q.MaxResults = defaultMaxResults
	}

	kind, id, err := m.identify(ctx, q, progress)
	if err != nil {
		return nil, err
	}

	key := cache.MarketplaceKey(kind, id,
		parsers.NormalizeFormat(q.Record.Format), q.Country, q.Currency, strconv.Itoa(q.MaxResults))

	if results, ok := m.readCached(key, q.Details); ok {
		return results, nil
	}

	// A base-layer hit satisfies a details request after enrichment, without
	// refetching stats.
	if q.Details && m.store != nil {
		var base []models.MarketplaceResult
		if m.store.Read(key, &base) {
			m.enrich(ctx, base, progress)
			m.store.Write(cache.DetailsKey(key), base)
			return base, nil
		}
	}

	results, err := m.fetch(ctx, kind, id, q, progress)
	if err != nil {
		return nil, err
	}

	if m.store != nil {
		m.store.Write(key, stripDetails(results))
		if q.Details {
			m.store.Write(cache.DetailsKey(key), results)
		}
	}
	return results, nil
}

// readCached serves a lookup from the cache layers. A details entry also
// satisfies a detail-less read.
func (m *MarketplaceEngine) readCached(key string, details bool) ([]models.MarketplaceResult, bool) {
	if m.store == nil {
		return nil, false
	}
	var results []models.MarketplaceResult
	if details {
		if m.store.Read(cache.DetailsKey(key), &results) {
			return results, true
		}
		return nil, false
	}
	if m.store.Read(key, &results) {
		return results, true
	}
	if m.store.Read(cache.DetailsKey(key), &results) {
		return results, true
	}
	return nil, false
}

// identify maps the query to a catalog identifier, consulting the resolution
// store before searching.
func (m *MarketplaceEngine) identify(ctx context.Context, q MarketplaceQuery, progress chan<- ProgressUpdate) (kind string, id int, err error) {
	if q.ReleaseID > 0 {
		return "release", q.ReleaseID, nil
	}
	if q.MasterID > 0 {
		return "master", q.MasterID, nil
	}

	if m.resolutions != nil {
		stored, err := m.resolutions.Get(q.Record.Artist, q.Record.Album, m.threshold)
		if err != nil {
			m.log.Warn("resolution store read failed", "err", err)
		} else if stored != nil {
			if stored.MasterID > 0 {
				return "master", stored.MasterID, nil
			}
			return "release", stored.ReleaseID, nil
		}
	}

	sendProgress(progress, lookupUpdate(1, 1, fmt.Sprintf("Resolving %s...", q.Record.DisplayName())))
	target := m.resolver.Resolve(ctx, q.Record)
	if !target.Matched {
		return "", 0, fmt.Errorf("%w: %s: %s", shared.ErrNoMatch, q.Record.DisplayName(), target.Err)
	}

	if m.resolutions != nil {
		err := m.resolutions.Put(repositories.Resolution{
			Artist:    q.Record.Artist,
			Album:     q.Record.Album,
			Threshold: m.threshold,
			MasterID:  target.MasterID,
			ReleaseID: target.ReleaseID,
			Score:     target.Score,
		})
		if err != nil {
			m.log.Warn("resolution store write failed", "err", err)
		}
	}

	if target.MasterID > 0 {
		return "master", target.MasterID, nil
	}
	return "release", target.ReleaseID, nil
}

// fetch pulls stats from the API for every candidate version.
func (m *MarketplaceEngine) fetch(ctx context.Context, kind string, id int, q MarketplaceQuery, progress chan<- ProgressUpdate) ([]models.MarketplaceResult, error) {
	var results []models.MarketplaceResult

	switch kind {
	case "release":
		result, err := m.fetchRelease(ctx, id, q)
		if err != nil {
			return nil, err
		}
		results = []models.MarketplaceResult{*result}

	default:
		versions, err := m.client.MasterVersions(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("fetching versions of master %d: %w", id, err)
		}
		candidates := filterVersions(versions, q.Record.Format, q.Country, q.MaxResults)
		if len(candidates) == 0 {
			return nil, fmt.Errorf("%w: no versions of master %d match the filters", shared.ErrNotFound, id)
		}

		for i, v := range candidates {
			sendProgress(progress, lookupUpdate(i+1, len(candidates),
				fmt.Sprintf("[%d/%d] Fetching listings for release %d...", i+1, len(candidates), v.ID)))

			stats, err := m.client.MarketplaceStats(ctx, v.ID, q.Currency)
			if err != nil {
				m.log.Warn("skipping version: stats fetch failed", "release_id", v.ID, "err", err)
				continue
			}
			format := v.Format
			if len(v.MajorFormats) > 0 {
				format = v.MajorFormats[0]
			}
			results = append(results, models.MarketplaceResult{
				MasterID:    id,
				ReleaseID:   v.ID,
				Title:       v.Title,
				Artist:      q.Record.Artist,
				Format:      format,
				Country:     v.Country,
				Year:        int(v.Released),
				NumForSale:  stats.NumForSale,
				LowestPrice: stats.Lowest(),
				Currency:    q.Currency,
			})
		}
	}

	if len(results) == 0 {
		return nil, fmt.Errorf("%w: no listings found", shared.ErrNotFound)
	}

	if q.Details {
		m.enrich(ctx, results, progress)
	}
	sortByPrice(results)
	return results, nil
}

// fetchRelease builds the result for a single known release.
func (m *MarketplaceEngine) fetchRelease(ctx context.Context, releaseID int, q MarketplaceQuery) (*models.MarketplaceResult, error) {
	release, err := m.client.Release(ctx, releaseID)
	if err != nil {
		return nil, fmt.Errorf("fetching release %d: %w", releaseID, err)
	}
	stats, err := m.client.MarketplaceStats(ctx, releaseID, q.Currency)
	if err != nil {
		return nil, fmt.Errorf("fetching stats for release %d: %w", releaseID, err)
	}

	return &models.MarketplaceResult{
		MasterID:    release.MasterID,
		ReleaseID:   release.ID,
		Title:       release.Title,
		Artist:      release.ArtistName(),
		Format:      release.FormatName(),
		Country:     release.Country,
		Year:        int(release.Year),
		NumForSale:  stats.NumForSale,
		LowestPrice: stats.Lowest(),
		Currency:    q.Currency,
	}, nil
}

// enrich adds the detail layer to results in place. Details are best effort:
// a failed fetch leaves the result without them.
func (m *MarketplaceEngine) enrich(ctx context.Context, results []models.MarketplaceResult, progress chan<- ProgressUpdate) {
	for i := range results {
		sendProgress(progress, lookupUpdate(i+1, len(results),
			fmt.Sprintf("[%d/%d] Fetching details for release %d...", i+1, len(results), results[i].ReleaseID)))

		release, err := m.client.Release(ctx, results[i].ReleaseID)
		if err != nil {
			m.log.Warn("details fetch failed", "release_id", results[i].ReleaseID, "err", err)
		} else {
			results[i].Label, results[i].CatNo = release.Label()
			results[i].FormatDetails = release.FormatDetails()
			results[i].CommunityHave = release.Community.Have
			results[i].CommunityWant = release.Community.Want
		}

		// Price suggestions are unavailable to non-seller accounts; a failure
		// is not worth surfacing.
		if suggestions, err := m.client.PriceSuggestions(ctx, results[i].ReleaseID); err == nil {
			results[i].PriceSuggestions = suggestions
		}
	}
}

// filterVersions applies format and country filters and caps the candidate
// list, preserving the catalog's order.
func filterVersions(versions []discogs.Version, format, country string, limit int) []discogs.Version {
	want := parsers.NormalizeFormat(format)
	var out []discogs.Version
	for _, v := range versions {
		if want != "" && !v.MatchesFormat(want) {
			continue
		}
		if country != "" && !strings.EqualFold(v.Country, country) {
			continue
		}
		out = append(out, v)
		if len(out) == limit {
			break
		}
	}
	return out
}

// sortByPrice orders results cheapest first, unpriced last, preserving the
// incoming order within ties.
func sortByPrice(results []models.MarketplaceResult) {
	sort.SliceStable(results, func(i, j int) bool {
		a, b := results[i].LowestPrice, results[j].LowestPrice
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// stripDetails returns a copy of results without the detail layer, for the
// base cache entry.
func stripDetails(results []models.MarketplaceResult) []models.MarketplaceResult {
	out := make([]models.MarketplaceResult, len(results))
	copy(out, results)
	for i := range out {
		out[i].PriceSuggestions = nil
		out[i].Label = ""
		out[i].CatNo = ""
		out[i].FormatDetails = ""
		out[i].CommunityHave = 0
		out[i].CommunityWant = 0
	}
	return out
}
