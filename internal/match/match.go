// package match resolves free-form artist/album descriptions to concrete
// catalog identifiers with multi-pass searching and fuzzy scoring.
package match

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"
	"github.com/charmbracelet/log"

	"discosync/internal/discogs"
	"discosync/internal/models"
	"discosync/internal/parsers"
	"discosync/internal/shared"
)

// Scoring weights. Artist and title similarity carry the match; year and
// format act as tie-breaking confirmations.
const (
	artistWeight = 0.4
	titleWeight  = 0.4
	yearWeight   = 0.1
	formatWeight = 0.1
)

// PresenceThreshold is the similarity floor for treating two items as the
// same record during reconciliation. Independent of the configurable
// resolution threshold.
const PresenceThreshold = 0.85

// Searcher is the slice of the catalog client the engine needs.
type Searcher interface {
	Search(ctx context.Context, q discogs.SearchQuery) ([]discogs.Hit, error)
	MainRelease(ctx context.Context, masterID int) (int, error)
	MasterVersions(ctx context.Context, masterID int) ([]discogs.Version, error)
}

// Engine resolves input records against the catalog.
type Engine struct {
	client    Searcher
	threshold float64
	log       *log.Logger
}

// NewEngine creates an Engine that accepts candidates scoring at or above
// threshold.
func NewEngine(client Searcher, threshold float64, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Engine{client: client, threshold: threshold, log: logger}
}

// Similarity returns the Jaro-Winkler similarity of two strings after
// lowercasing and trimming. Either side being empty scores 0.
func Similarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))
	if a == "" || b == "" {
		return 0
	}
	return strutil.Similarity(a, b, metrics.NewJaroWinkler())
}

// Score rates a search hit against an input record on a 0..1 scale.
func Score(record models.InputRecord, hit discogs.Hit) float64 {
	score := artistWeight*Similarity(record.Artist, hit.Artist) +
		titleWeight*Similarity(record.Album, hit.Title)

	if record.Year > 0 && record.Year == hit.Year {
		score += yearWeight
	}
	if record.Format != "" && hitHasFormat(hit, record.Format) {
		score += formatWeight
	}
	return score
}

func hitHasFormat(hit discogs.Hit, format string) bool {
	want := strings.ToLower(parsers.NormalizeFormat(format))
	for _, f := range hit.Formats {
		if strings.Contains(strings.ToLower(f), want) {
			return true
		}
	}
	return false
}

// Resolve maps one input record to a concrete release. Search passes run from
// most to least specific and stop at the first pass that produces a candidate
// at or above the threshold; ties keep the first-seen candidate.
func (e *Engine) Resolve(ctx context.Context, record models.InputRecord) models.ResolvedTarget {
	target := models.ResolvedTarget{Record: record}

	best := models.MatchCandidate{Score: -1}
	seen := false
	for _, query := range e.passes(record) {
		hits, err := e.client.Search(ctx, query)
		if err != nil {
			target.Err = err.Error()
			return target
		}
		for _, hit := range hits {
			seen = true
			score := Score(record, hit)
			if score > best.Score {
				best = models.MatchCandidate{
					ReleaseID: hit.ReleaseID,
					MasterID:  hit.MasterID,
					Artist:    hit.Artist,
					Title:     hit.Title,
					Year:      hit.Year,
					Score:     score,
				}
			}
		}
		if best.Score >= e.threshold {
			break
		}
	}

	if !seen {
		target.Err = "no search results"
		return target
	}
	if best.Score < e.threshold {
		target.Err = fmt.Sprintf("no match above threshold %.2f (best %.2f: %s - %s)",
			e.threshold, best.Score, best.Artist, best.Title)
		return target
	}

	releaseID := best.ReleaseID
	if releaseID == 0 {
		id, err := e.client.MainRelease(ctx, best.MasterID)
		if err != nil {
			target.Err = fmt.Sprintf("resolving main release of master %d: %v", best.MasterID, err)
			return target
		}
		releaseID = id
	}

	e.log.Debug("resolved record",
		"record", record.DisplayName(), "release_id", releaseID, "score", best.Score)

	target.ReleaseID = releaseID
	target.MasterID = best.MasterID
	target.Artist = best.Artist
	target.Title = best.Title
	target.Year = best.Year
	target.Format = record.Format
	target.Score = best.Score
	target.Matched = true
	return target
}

// ResolveAll resolves every record in order. Per-record failures are captured
// in the returned targets, never aborting the batch.
func (e *Engine) ResolveAll(ctx context.Context, records []models.InputRecord) []models.ResolvedTarget {
	targets := make([]models.ResolvedTarget, 0, len(records))
	for _, record := range records {
		if ctx.Err() != nil {
			t := models.ResolvedTarget{Record: record, Err: ctx.Err().Error()}
			targets = append(targets, t)
			continue
		}
		targets = append(targets, e.Resolve(ctx, record))
	}
	return targets
}

// passes builds the search-pass ladder for a record: structured grouping-level
// search with every known field, the same without format/year, then a
// free-text release-level search.
func (e *Engine) passes(record models.InputRecord) []discogs.SearchQuery {
	queries := []discogs.SearchQuery{}

	structured := discogs.SearchQuery{
		Artist: record.Artist,
		Title:  record.Album,
		Type:   "master",
		Format: record.Format,
		Year:   record.Year,
	}
	if record.Format != "" || record.Year > 0 {
		queries = append(queries, structured)
	}

	queries = append(queries, discogs.SearchQuery{
		Artist: record.Artist,
		Title:  record.Album,
		Type:   "master",
	})

	queries = append(queries, discogs.SearchQuery{
		Query: record.Artist + " " + record.Album,
		Type:  "release",
	})

	return queries
}

// ResolveRelease picks the release to use for a master: the version matching
// the requested format when one is given, the main release otherwise.
func (e *Engine) ResolveRelease(ctx context.Context, masterID int, format string) (int, error) {
	if format == "" {
		return e.client.MainRelease(ctx, masterID)
	}
	versions, err := e.client.MasterVersions(ctx, masterID)
	if err != nil {
		return 0, err
	}
	want := parsers.NormalizeFormat(format)
	for _, v := range versions {
		if v.MatchesFormat(want) {
			return v.ID, nil
		}
	}
	return 0, fmt.Errorf("%w: no version of master %d matches format %q", shared.ErrNoMatch, masterID, format)
}
