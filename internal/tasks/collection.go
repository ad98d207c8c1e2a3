package tasks

import (
	"context"
	"fmt"

	"discosync/internal/models"
	"discosync/internal/shared"
)

// readFolder is the folder collection reads go through: the server-side view
// spanning every folder. Mutations target the folder from SyncOptions.
const readFolder = 0

// SyncCollection reconciles the input records against the remote collection.
// Collections are multisets, so presence means at least one instance matches;
// AllowDuplicates forces adds regardless.
func (e *Engine) SyncCollection(ctx context.Context, records []models.InputRecord, opts SyncOptions, progress chan<- ProgressUpdate) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), len(records))

	targets := make([]models.ResolvedTarget, 0, len(records))
	for i, record := range records {
		sendProgress(progress, resolvingUpdate(i+1, len(records), record))
		targets = append(targets, e.resolver.Resolve(ctx, record))
	}
	matched := resolveErrors(report, targets)

	sendProgress(progress, fetchRemoteUpdate("collection"))
	remote, err := e.client.CollectionItems(ctx, readFolder)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching collection: %v", shared.ErrSync, err)
	}

	sendProgress(progress, reconcileUpdate(len(matched), len(remote)))
	var plan []models.SyncAction
	for i := range matched {
		plan = append(plan, planInstance(&matched[i], remote, opts))
	}

	if opts.RemoveExtras {
		if report.Errors > 0 {
			e.log.Warn("skipping extras removal: some records failed to resolve",
				"failed", report.Errors)
		} else {
			plan = append(plan, planCollectionExtras(matched, remote)...)
		}
	}

	e.apply(ctx, report, plan, opts.DryRun, collectionSlot, progress,
		func(ctx context.Context, a models.SyncAction) error {
			if a.Kind == models.ActionAdd {
				_, err := e.client.AddToFolder(ctx, a.FolderID, a.ReleaseID)
				return err
			}
			return e.client.DeleteInstance(ctx, a.FolderID, a.ReleaseID, a.InstanceID)
		})
	return report, nil
}

// planInstance decides the add-side action for one resolved target.
func planInstance(target *models.ResolvedTarget, remote []models.CollectionItem, opts SyncOptions) models.SyncAction {
	action := models.SyncAction{
		Record:    &target.Record,
		ReleaseID: target.ReleaseID,
		MasterID:  target.MasterID,
		FolderID:  opts.FolderID,
		Artist:    target.Artist,
		Title:     target.Title,
	}
	tier, present := findInstance(*target, remote)
	switch {
	case present && !opts.AllowDuplicates:
		action.Kind = models.ActionSkip
		action.Reason = fmt.Sprintf("already in collection (%s match)", tier)
	case present:
		action.Kind = models.ActionAdd
		action.Reason = "duplicate requested"
	default:
		action.Kind = models.ActionAdd
	}
	return action
}

// findInstance locates a target among the remote collection instances.
func findInstance(target models.ResolvedTarget, remote []models.CollectionItem) (string, bool) {
	for _, item := range remote {
		if tier, ok := matchItem(target, item.ReleaseID, item.MasterID, item.Artist, item.Title); ok {
			return tier, true
		}
	}
	return "", false
}

// planCollectionExtras plans one removal per unaccounted remote instance.
func planCollectionExtras(targets []models.ResolvedTarget, remote []models.CollectionItem) []models.SyncAction {
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
				Kind:       models.ActionRemove,
				ReleaseID:  item.ReleaseID,
				MasterID:   item.MasterID,
				InstanceID: item.InstanceID,
				FolderID:   item.FolderID,
				Artist:     item.Artist,
				Title:      item.Title,
				Reason:     "not in input file",
			})
		}
	}
	return plan
}

// AddToCollection resolves a single target and adds an instance to the folder.
func (e *Engine) AddToCollection(ctx context.Context, spec TargetSpec, opts SyncOptions) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), 1)

	target := e.resolveSpec(ctx, spec)
	matched := resolveErrors(report, []models.ResolvedTarget{target})
	if len(matched) == 0 {
		return report, nil
	}

	remote, err := e.client.CollectionItems(ctx, readFolder)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching collection: %v", shared.ErrSync, err)
	}

	e.apply(ctx, report, []models.SyncAction{planInstance(&matched[0], remote, opts)}, opts.DryRun, collectionSlot, nil,
		func(ctx context.Context, a models.SyncAction) error {
			_, err := e.client.AddToFolder(ctx, a.FolderID, a.ReleaseID)
			return err
		})
	return report, nil
}

// RemoveFromCollection resolves a single target and removes every matching
// instance from the collection. Removing an absent target is a skip.
func (e *Engine) RemoveFromCollection(ctx context.Context, spec TargetSpec, dryRun bool) (*models.SyncReport, error) {
	report := models.NewSyncReport(shared.GenerateID(), 1)

	target := e.resolveSpec(ctx, spec)
	if !target.Matched {
		report.Record(models.SyncAction{Kind: models.ActionError, Record: &spec.Record, Err: target.Err})
		return report, nil
	}

	remote, err := e.client.CollectionItems(ctx, readFolder)
	if err != nil {
		return nil, fmt.Errorf("%w: fetching collection: %v", shared.ErrSync, err)
	}

	var plan []models.SyncAction
	for _, item := range remote {
		if _, ok := matchItem(target, item.ReleaseID, item.MasterID, item.Artist, item.Title); ok {
			plan = append(plan, models.SyncAction{
				Kind:       models.ActionRemove,
				Record:     &spec.Record,
				ReleaseID:  item.ReleaseID,
				MasterID:   item.MasterID,
				InstanceID: item.InstanceID,
				FolderID:   item.FolderID,
				Artist:     item.Artist,
				Title:      item.Title,
			})
		}
	}
	if len(plan) == 0 {
		report.Record(models.SyncAction{
			Kind:      models.ActionSkip,
			Record:    &spec.Record,
			ReleaseID: target.ReleaseID,
			Artist:    target.Artist,
			Title:     target.Title,
			Reason:    "not in collection",
		})
		return report, nil
	}

	e.apply(ctx, report, plan, dryRun, collectionSlot, nil,
		func(ctx context.Context, a models.SyncAction) error {
			return e.client.DeleteInstance(ctx, a.FolderID, a.ReleaseID, a.InstanceID)
		})
	return report, nil
}

// ListCollection returns the collection, served from cache when fresh. The
// second return reports whether the cache satisfied the read.
func (e *Engine) ListCollection(ctx context.Context, refresh bool) ([]models.CollectionItem, bool, error) {
	var items []models.CollectionItem
	if !refresh && e.lists != nil && e.lists.Read(collectionSlot, &items) {
		return items, true, nil
	}

	items, err := e.client.CollectionItems(ctx, readFolder)
	if err != nil {
		return nil, false, err
	}
	if e.lists != nil {
		e.lists.Write(collectionSlot, items)
	}
	return items, false, nil
}
