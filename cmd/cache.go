package main

import (
	"context"

	"github.com/urfave/cli/v3"
)

// CacheClean removes expired entries from both cache stores.
func (r *Runner) CacheClean(ctx context.Context, cmd *cli.Command) error {
	r.ensureStores()
	removed := r.lists.CleanExpired() + r.marketStore.CleanExpired()
	return r.writePlain("Removed %d expired cache entries\n", removed)
}

// CachePurge removes all cache entries and, unless kept, the stored resolutions.
func (r *Runner) CachePurge(ctx context.Context, cmd *cli.Command) error {
	r.ensureStores()
	removed := r.lists.Purge() + r.marketStore.Purge()
	if err := r.writePlain("Removed %d cache entries\n", removed); err != nil {
		return err
	}

	if cmd.Bool("keep-resolutions") {
		return nil
	}
	r.ensureResolutions()
	if r.resolutions == nil {
		return nil
	}
	cleared, err := r.resolutions.Clear()
	if err != nil {
		return err
	}
	return r.writePlain("Cleared %d stored resolutions\n", cleared)
}
