package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Resolution is one stored mapping from a query to catalog identifiers.
type Resolution struct {
	Artist     string
	Album      string
	Threshold  float64
	MasterID   int
	ReleaseID  int
	Score      float64
	ResolvedAt time.Time
}

// ResolutionRepository persists resolved queries keyed by (artist, album,
// threshold). Keys are case-insensitive: the same query at a different
// threshold is a different entry, since a looser threshold can resolve to a
// different record.
type ResolutionRepository struct {
	db *sql.DB
}

// NewResolutionRepository creates a ResolutionRepository with the given
// database connection.
func NewResolutionRepository(db *sql.DB) *ResolutionRepository {
	return &ResolutionRepository{db: db}
}

func key(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Get retrieves a stored resolution. Returns nil without error when no entry
// exists.
func (r *ResolutionRepository) Get(artist, album string, threshold float64) (*Resolution, error) {
	query := `
		SELECT artist, album, threshold, master_id, release_id, score, resolved_at
		FROM resolutions
		WHERE artist = ? AND album = ? AND threshold = ?
	`

	var res Resolution
	err := r.db.QueryRow(query, key(artist), key(album), threshold).Scan(
		&res.Artist,
		&res.Album,
		&res.Threshold,
		&res.MasterID,
		&res.ReleaseID,
		&res.Score,
		&res.ResolvedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read resolution: %w", err)
	}
	return &res, nil
}

// Put stores a resolution, replacing any previous entry for the same key.
func (r *ResolutionRepository) Put(res Resolution) error {
	query := `
		INSERT INTO resolutions (artist, album, threshold, master_id, release_id, score, resolved_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (artist, album, threshold) DO UPDATE SET
			master_id = excluded.master_id,
			release_id = excluded.release_id,
			score = excluded.score,
			resolved_at = excluded.resolved_at
	`

	resolvedAt := res.ResolvedAt
	if resolvedAt.IsZero() {
		resolvedAt = time.Now().UTC()
	}

	_, err := r.db.Exec(query,
		key(res.Artist),
		key(res.Album),
		res.Threshold,
		res.MasterID,
		res.ReleaseID,
		res.Score,
		resolvedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to store resolution: %w", err)
	}
	return nil
}

// Clear removes every stored resolution and returns the number deleted.
func (r *ResolutionRepository) Clear() (int, error) {
	result, err := r.db.Exec("DELETE FROM resolutions")
	if err != nil {
		return 0, fmt.Errorf("failed to clear resolutions: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	return int(n), nil
}
