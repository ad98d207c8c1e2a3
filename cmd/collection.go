package main

import (
	"context"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"discosync/internal/formatter"
	"discosync/internal/tasks"
)

// collectionOptions assembles sync options from flags, falling back to the
// configured default folder.
func (r *Runner) collectionOptions(cmd *cli.Command) tasks.SyncOptions {
	folder := r.config.Sync.FolderID
	if cmd.IsSet("folder") {
		folder = int(cmd.Int("folder"))
	}
	return tasks.SyncOptions{
		DryRun:          cmd.Bool("dry-run"),
		RemoveExtras:    cmd.Bool("remove-extras"),
		AllowDuplicates: cmd.Bool("allow-duplicates"),
		FolderID:        folder,
	}
}

// CollectionSync reconciles the collection against an input file.
func (r *Runner) CollectionSync(ctx context.Context, cmd *cli.Command) error {
	records, err := r.parseInput(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	opts := r.collectionOptions(cmd)
	progress, stop := r.progressLogger()
	report, err := r.engine.SyncCollection(ctx, records, opts, progress)
	stop()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, opts.DryRun, cmd.Bool("json"))
}

// CollectionAdd resolves a single release and adds an instance to the collection.
func (r *Runner) CollectionAdd(ctx context.Context, cmd *cli.Command) error {
	spec, err := targetFromFlags(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	report, err := r.engine.AddToCollection(ctx, spec, r.collectionOptions(cmd))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, cmd.Bool("dry-run"), cmd.Bool("json"))
}

// CollectionRemove resolves a single release and removes its instances.
func (r *Runner) CollectionRemove(ctx context.Context, cmd *cli.Command) error {
	spec, err := targetFromFlags(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	report, err := r.engine.RemoveFromCollection(ctx, spec, cmd.Bool("dry-run"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, cmd.Bool("dry-run"), cmd.Bool("json"))
}

// CollectionList prints the collection from cache or the API.
func (r *Runner) CollectionList(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	items, fromCache, err := r.engine.ListCollection(ctx, cmd.Bool("refresh"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	filtered := items[:0:0]
	for _, item := range items {
		if matchesListFilters(cmd, item.Artist, item.Title, item.Format, item.Year) {
			filtered = append(filtered, item)
		}
	}
	items = filtered
	if cmd.Bool("sort") {
		sort.Slice(items, func(i, j int) bool {
			a, b := strings.ToLower(items[i].Artist), strings.ToLower(items[j].Artist)
			if a != b {
				return a < b
			}
			return strings.ToLower(items[i].Title) < strings.ToLower(items[j].Title)
		})
	}

	switch {
	case cmd.Bool("json"):
		return r.writeJSON(items)
	case cmd.Bool("csv"):
		data, err := formatter.CollectionToCSV(items)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.RenderCollection(items, fromCache))
	}
}
