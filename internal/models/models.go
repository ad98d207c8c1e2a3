package models

// ActionKind classifies the outcome of reconciling a single target or extra item.
type ActionKind string

const (
	ActionAdd    ActionKind = "add"
	ActionRemove ActionKind = "remove"
	ActionSkip   ActionKind = "skip"
	ActionError  ActionKind = "error"
)

// InputRecord is one user-requested target parsed from a CSV or JSON input file.
// Immutable once parsed; Notes is pass-through only and never inspected by sync logic.
type InputRecord struct {
	Artist string `json:"artist"`
	Album  string `json:"album"`
	Format string `json:"format,omitempty"`
	Year   int    `json:"year,omitempty"`
	Notes  string `json:"notes,omitempty"`
	Line   int    `json:"-"`
}

// DisplayName returns "Artist - Album" for log and report output.
func (r InputRecord) DisplayName() string {
	return r.Artist + " - " + r.Album
}

// MatchCandidate is a single scored search hit. Produced transiently by the
// match engine; never persisted.
type MatchCandidate struct {
	ReleaseID int
	MasterID  int
	Artist    string
	Title     string
	Format    string
	Year      int
	Score     float64
}

// ResolvedTarget pairs an InputRecord with its resolution outcome: either a
// concrete release (Matched true) or a failure reason in Err.
type ResolvedTarget struct {
	Record    InputRecord
	ReleaseID int
	MasterID  int
	Artist    string
	Title     string
	Year      int
	Format    string
	Score     float64
	Matched   bool
	Err       string
}

// WantlistItem is an entry in the user's wantlist. Wantlists are set-like:
// a release appears at most once.
type WantlistItem struct {
	ReleaseID int    `json:"release_id"`
	MasterID  int    `json:"master_id,omitempty"`
	Title     string `json:"title,omitempty"`
	Artist    string `json:"artist,omitempty"`
	Format    string `json:"format,omitempty"`
	Year      int    `json:"year,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

// CollectionItem is an entry in the user's collection. Collections are
// multiset-like: the same release may appear under several instance IDs.
type CollectionItem struct {
	InstanceID int    `json:"instance_id"`
	ReleaseID  int    `json:"release_id"`
	MasterID   int    `json:"master_id,omitempty"`
	FolderID   int    `json:"folder_id"`
	Title      string `json:"title,omitempty"`
	Artist     string `json:"artist,omitempty"`
	Format     string `json:"format,omitempty"`
	Year       int    `json:"year,omitempty"`
}

// MarketplaceResult holds marketplace stats for a single release version.
// PriceSuggestions is the expensive detail layer and is only populated when
// requested; cache entries without it remain valid for detail-less reads.
type MarketplaceResult struct {
	MasterID         int                `json:"master_id,omitempty"`
	ReleaseID        int                `json:"release_id"`
	Title            string             `json:"title,omitempty"`
	Artist           string             `json:"artist,omitempty"`
	Format           string             `json:"format,omitempty"`
	Country          string             `json:"country,omitempty"`
	Year             int                `json:"year,omitempty"`
	NumForSale       int                `json:"num_for_sale"`
	LowestPrice      *float64           `json:"lowest_price,omitempty"`
	Currency         string             `json:"currency"`
	PriceSuggestions map[string]float64 `json:"price_suggestions,omitempty"`
	Label            string             `json:"label,omitempty"`
	CatNo            string             `json:"catno,omitempty"`
	FormatDetails    string             `json:"format_details,omitempty"`
	CommunityHave    int                `json:"community_have,omitempty"`
	CommunityWant    int                `json:"community_want,omitempty"`
}

// SyncAction records one outcome of a sync run. Immutable once emitted.
// InstanceID and FolderID are set only for collection instances.
type SyncAction struct {
	Kind       ActionKind   `json:"action"`
	Record     *InputRecord `json:"-"`
	ReleaseID  int          `json:"release_id,omitempty"`
	MasterID   int          `json:"master_id,omitempty"`
	InstanceID int          `json:"instance_id,omitempty"`
	FolderID   int          `json:"folder_id,omitempty"`
	Title      string       `json:"title,omitempty"`
	Artist     string       `json:"artist,omitempty"`
	Reason     string       `json:"reason,omitempty"`
	Err        string       `json:"error,omitempty"`
}

// DisplayArtist returns the action's artist, falling back to the originating record.
func (a SyncAction) DisplayArtist() string {
	if a.Artist != "" {
		return a.Artist
	}
	if a.Record != nil {
		return a.Record.Artist
	}
	return ""
}

// DisplayTitle returns the action's title, falling back to the originating record's album.
func (a SyncAction) DisplayTitle() string {
	if a.Title != "" {
		return a.Title
	}
	if a.Record != nil {
		return a.Record.Album
	}
	return ""
}

// SyncReport aggregates the actions of one sync run. Counters are maintained
// by Record; the report is not mutated after the run finishes.
type SyncReport struct {
	RunID      string       `json:"run_id,omitempty"`
	TotalInput int          `json:"total_input"`
	Added      int          `json:"added"`
	Removed    int          `json:"removed"`
	Skipped    int          `json:"skipped"`
	Errors     int          `json:"errors"`
	Actions    []SyncAction `json:"actions"`
}

// NewSyncReport creates a report for a run over total input records.
func NewSyncReport(runID string, total int) *SyncReport {
	return &SyncReport{RunID: runID, TotalInput: total}
}

// Record appends an action and updates the matching counter.
func (r *SyncReport) Record(a SyncAction) {
	r.Actions = append(r.Actions, a)
	switch a.Kind {
	case ActionAdd:
		r.Added++
	case ActionRemove:
		r.Removed++
	case ActionSkip:
		r.Skipped++
	case ActionError:
		r.Errors++
	}
}

// Success reports whether the run completed without per-item errors.
func (r *SyncReport) Success() bool { return r.Errors == 0 }

// ExitCode derives the process exit code: 0 on full success, 1 on partial
// success (some actions processed alongside errors), 2 on total failure.
func (r *SyncReport) ExitCode() int {
	if r.Errors == 0 {
		return 0
	}
	if r.Added > 0 || r.Removed > 0 || r.Skipped > 0 {
		return 1
	}
	return 2
}
