package tasks

import (
	"context"
	"fmt"

	"discosync/internal/models"
	"discosync/internal/shared"
)

// SyncWantlist reconciles the input records against the remote wantlist.
// Per-item failures are recorded as error actions; the returned error is
// reserved for failures that abort the whole run.
func (e *Engine) SyncWantlist(ctx context.Context, records []models.InputRecord, opts SyncOptions, progress chan<- ProgressUpdate) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), len(records))

	targets := make([]models.ResolvedTarget, 0, len(records))
	for i, record := range records {
		sendProgress(progress, resolvingUpdate(i+1, len(records), record))
		targets = append(targets, e.resolver.Resolve(ctx, record))
	}
	matched := resolveErrors(report, targets)

	sendProgress(progress, fetchRemoteUpdate("wantlist"))
	remote, err := e.client.Wantlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching wantlist: %v", shared.ErrSync, err)
	}

	sendProgress(progress, reconcileUpdate(len(matched), len(remote)))
	var plan []models.SyncAction
	for i := range matched {
		plan = append(plan, planWant(&matched[i], remote))
	}

	if opts.RemoveExtras {
		if report.Errors > 0 {
			e.log.Warn("skipping extras removal: some records failed to resolve",
				"failed", report.Errors)
		} else {
			plan = append(plan, planWantExtras(matched, remote)...)
		}
	}

	e.apply(ctx, report, plan, opts.DryRun, wantlistSlot, progress,
		func(ctx context.Context, a models.SyncAction) error {
			if a.Kind == models.ActionAdd {
				return e.client.AddWant(ctx, a.ReleaseID)
			}
			return e.client.DeleteWant(ctx, a.ReleaseID)
		})
	return report, nil
}

// planWant decides the add-side action for one resolved target.
func planWant(target *models.ResolvedTarget, remote []models.WantlistItem) models.SyncAction {
	action := models.SyncAction{
		Record:    &target.Record,
		ReleaseID: target.ReleaseID,
		MasterID:  target.MasterID,
		Artist:    target.Artist,
		Title:     target.Title,
	}
	if _, tier, present := findWant(*target, remote); present {
		action.Kind = models.ActionSkip
		action.Reason = fmt.Sprintf("already in wantlist (%s match)", tier)
	} else {
		action.Kind = models.ActionAdd
	}
	return action
}

// findWant locates a target in the remote wantlist, returning the item that
// matched and the tier it matched on.
func findWant(target models.ResolvedTarget, remote []models.WantlistItem) (*models.WantlistItem, string, bool) {
	for i := range remote {
		item := &remote[i]
		if tier, ok := matchItem(target, item.ReleaseID, item.MasterID, item.Artist, item.Title); ok {
			return item, tier, true
		}
	}
	return nil, "", false
}

// planWantExtras plans removals for remote items no target accounts for.
func planWantExtras(targets []models.ResolvedTarget, remote []models.WantlistItem) []models.SyncAction {
	var plan []models.SyncAction
	for _, item := range remote {
		accounted := false
		for _, target := range targets {
			if _, ok := matchItem(target, item.ReleaseID, item.MasterID, item.Artist, item.Title); ok {
				accounted = true
				break
			}
		}
		if !accounted {
			plan = append(plan, models.SyncAction{
				Kind:      models.ActionRemove,
				ReleaseID: item.ReleaseID,
				MasterID:  item.MasterID,
				Artist:    item.Artist,
				Title:     item.Title,
				Reason:    "not in input file",
			})
		}
	}
	return plan
}

// apply executes a plan. Dry runs record the planned actions untouched;
// otherwise add/remove actions run their mutation and failures are recorded
// as error actions in place. The cache slot is invalidated after the first
// successful mutation.
func (e *Engine) apply(ctx context.Context, report *models.SyncReport, plan []models.SyncAction, dryRun bool, slot string, progress chan<- ProgressUpdate, mutate func(context.Context, models.SyncAction) error) {
	mutated := false
	for i, action := range plan {
		sendProgress(progress, applyUpdate(i+1, len(plan), action))

		if dryRun || action.Kind == models.ActionSkip {
			if dryRun && action.Kind != models.ActionSkip {
				action.Reason = "dry run"
			}
			report.Record(action)
			continue
		}

		if err := mutate(ctx, action); err != nil {
			e.log.Error("action failed",
				"action", action.Kind, "release_id", action.ReleaseID, "err", err)
			action.Kind = models.ActionError
			action.Err = err.Error()
			report.Record(action)
			continue
		}
		mutated = true
		report.Record(action)
	}
	if mutated {
		e.invalidate(slot)
	}
}

// AddWant resolves a single target and puts it on the wantlist, skipping
// targets that are already present.
func (e *Engine) AddWant(ctx context.Context, spec TargetSpec, dryRun bool) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), 1)

	target := e.resolveSpec(ctx, spec)
	matched := resolveErrors(report, []models.ResolvedTarget{target})
	if len(matched) == 0 {
		return report, nil
	}

	remote, err := e.client.Wantlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching wantlist: %v", shared.ErrSync, err)
	}

	e.apply(ctx, report, []models.SyncAction{planWant(&matched[0], remote)}, dryRun, wantlistSlot, nil,
		func(ctx context.Context, a models.SyncAction) error {
			return e.client.AddWant(ctx, a.ReleaseID)
		})
	return report, nil
}

// RemoveWant resolves a single target and removes it from the wantlist.
// Removing an absent target is a skip, not an error.
func (e *Engine) RemoveWant(ctx context.Context, spec TargetSpec, dryRun bool) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), 1)

	target := e.resolveSpec(ctx, spec)
	if !target.Matched {
		report.Record(models.SyncAction{Kind: models.ActionError, Record: &spec.Record, Err: target.Err})
		return report, nil
	}

	remote, err := e.client.Wantlist(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching wantlist: %v", shared.ErrSync, err)
	}

	action := models.SyncAction{
		Record:    &spec.Record,
		ReleaseID: target.ReleaseID,
		MasterID:  target.MasterID,
		Artist:    target.Artist,
		Title:     target.Title,
	}
	item, _, present := findWant(target, remote)
	if !present {
		action.Kind = models.ActionSkip
		action.Reason = "not in wantlist"
		report.Record(action)
		return report, nil
	}

	// The list may hold a different pressing matched through the master or
	// fuzzy tier; delete the release that is actually on it.
	action.Kind = models.ActionRemove
	action.ReleaseID = item.ReleaseID
	action.MasterID = item.MasterID
	e.apply(ctx, report, []models.SyncAction{action}, dryRun, wantlistSlot, nil,
		func(ctx context.Context, a models.SyncAction) error {
			return e.client.DeleteWant(ctx, a.ReleaseID)
		})
	return report, nil
}

// ListWantlist returns the wantlist, served from cache when fresh. The second
// return reports whether the cache satisfied the read.
func (e *Engine) ListWantlist(ctx context.Context, refresh bool) ([]models.WantlistItem, bool, error) {
	var items []models.WantlistItem
	if !refresh && e.lists != nil && e.lists.Read(wantlistSlot, &items) {
		return items, true, nil
	}

	items, err := e.client.Wantlist(ctx)
	if err != nil {
		return nil, false, err
	}
	if e.lists != nil {
		e.lists.Write(wantlistSlot, items)
	}
	return items, false, nil
}
