// package tasks orchestrates wantlist and collection reconciliation runs.
//
// The core abstraction is Engine, which resolves input records against the
// catalog, diffs them against the remote account state, and applies the
// resulting actions. Operations emit progress updates via channels for
// non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"os"

	"github.com/charmbracelet/log"

	"discosync/internal/cache"
	"discosync/internal/discogs"
	"discosync/internal/match"
	"discosync/internal/models"
)

// Cache slot names for account lists.
const (
	wantlistSlot   = "wantlist"
	collectionSlot = "collection"
)

// Catalog is the slice of the API client the engines consume.
type Catalog interface {
	Wantlist(ctx context.Context) ([]models.WantlistItem, error)
	AddWant(ctx context.Context, releaseID int) error
	DeleteWant(ctx context.Context, releaseID int) error
	CollectionItems(ctx context.Context, folderID int) ([]models.CollectionItem, error)
	AddToFolder(ctx context.Context, folderID, releaseID int) (int, error)
	DeleteInstance(ctx context.Context, folderID, releaseID, instanceID int) error
	Release(ctx context.Context, releaseID int) (*discogs.Release, error)
	MasterVersions(ctx context.Context, masterID int) ([]discogs.Version, error)
	MarketplaceStats(ctx context.Context, releaseID int, currency string) (*discogs.Stats, error)
	PriceSuggestions(ctx context.Context, releaseID int) (map[string]float64, error)
}

// Resolver maps input records to catalog identifiers.
type Resolver interface {
	Resolve(ctx context.Context, record models.InputRecord) models.ResolvedTarget
	ResolveAll(ctx context.Context, records []models.InputRecord) []models.ResolvedTarget
	ResolveRelease(ctx context.Context, masterID int, format string) (int, error)
}

// SyncOptions tune one reconciliation run.
type SyncOptions struct {
	// DryRun reports the planned actions without mutating the account.
	DryRun bool
	// RemoveExtras deletes remote items no input record accounts for.
	RemoveExtras bool
	// AllowDuplicates adds collection instances even when the release is
	// already present. Ignored for wantlists, which are set-like.
	AllowDuplicates bool
	// FolderID is the collection folder mutations go to.
	FolderID int
}

// TargetSpec identifies one release for a single-item operation: an explicit
// release id, a master id optionally narrowed by the record's format, or a
// record resolved by search.
type TargetSpec struct {
	Record    models.InputRecord
	ReleaseID int
	MasterID  int
}

// Engine reconciles parsed input records against the remote account.
type Engine struct {
	client   Catalog
	resolver Resolver
	lists    *cache.Store
	log      *log.Logger
}

// NewEngine creates an Engine. The lists store may be nil to disable caching
// of list reads.
func NewEngine(client Catalog, resolver Resolver, lists *cache.Store, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(os.Stderr)
	}
	return &Engine{client: client, resolver: resolver, lists: lists, log: logger}
}

// Presence tiers, strongest first. A target and a remote item are the same
// record when any tier matches.
const (
	TierRelease = "release"
	TierMaster  = "master"
	TierFuzzy   = "fuzzy"
)

// matchItem reports whether a resolved target and a remote item refer to the
// same record, and through which tier.
func matchItem(target models.ResolvedTarget, releaseID, masterID int, artist, title string) (string, bool) {
	if target.ReleaseID != 0 && target.ReleaseID == releaseID {
		return TierRelease, true
	}
	if target.MasterID != 0 && target.MasterID == masterID {
		return TierMaster, true
	}
	if match.Similarity(target.Artist, artist) >= match.PresenceThreshold &&
		match.Similarity(target.Title, title) >= match.PresenceThreshold {
		return TierFuzzy, true
	}
	return "", false
}

// resolveSpec turns a spec into a resolved target. Explicit identifiers skip
// searching and scoring entirely.
func (e *Engine) resolveSpec(ctx context.Context, spec TargetSpec) models.ResolvedTarget {
	target := models.ResolvedTarget{
		Record:   spec.Record,
		Artist:   spec.Record.Artist,
		Title:    spec.Record.Album,
		MasterID: spec.MasterID,
	}
	switch {
	case spec.ReleaseID != 0:
		target.ReleaseID = spec.ReleaseID
		target.Matched = true
	case spec.MasterID != 0:
		releaseID, err := e.resolver.ResolveRelease(ctx, spec.MasterID, spec.Record.Format)
		if err != nil {
			target.Err = err.Error()
			return target
		}
		target.ReleaseID = releaseID
		target.Matched = true
	default:
		return e.resolver.Resolve(ctx, spec.Record)
	}
	return target
}

// invalidate drops a cached list slot after a successful mutation.
func (e *Engine) invalidate(slot string) {
	if e.lists != nil {
		e.lists.Invalidate(slot)
	}
}

// resolveErrors records error actions for every unmatched target and returns
// the matched remainder.
func resolveErrors(report *models.SyncReport, targets []models.ResolvedTarget) []models.ResolvedTarget {
	matched := make([]models.ResolvedTarget, 0, len(targets))
	for i := range targets {
		t := targets[i]
		if t.Matched {
			matched = append(matched, t)
			continue
		}
		report.Record(models.SyncAction{
			Kind:   models.ActionError,
			Record: &targets[i].Record,
			Err:    t.Err,
		})
	}
	return matched
}
