package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/urfave/cli/v3"

	"discosync/internal/formatter"
	"discosync/internal/models"
	"discosync/internal/parsers"
	"discosync/internal/shared"
	"discosync/internal/tasks"
)

// parseInput loads and validates the input file named by the command's file
// argument, logging row-level warnings.
func (r *Runner) parseInput(cmd *cli.Command) ([]models.InputRecord, error) {
	path := cmd.StringArg("file")
	if path == "" {
		return nil, fmt.Errorf("%w: input file path", shared.ErrMissingArgument)
	}

	records, rowErrors, err := parsers.ParseFile(path)
	for _, rowErr := range rowErrors {
		r.logger.Warn("skipping invalid row", "line", rowErr.Line, "reason", rowErr.Message)
	}
	if err != nil {
		return nil, err
	}

	r.logger.Info("input parsed", "file", path, "records", len(records), "invalid_rows", len(rowErrors))
	return records, nil
}

// targetFromFlags builds a single-item target from the flag set. An explicit
// release or master id stands in for the artist/album pair.
func targetFromFlags(cmd *cli.Command) (tasks.TargetSpec, error) {
	spec := tasks.TargetSpec{
		Record: models.InputRecord{
			Artist: cmd.String("artist"),
			Album:  cmd.String("album"),
			Format: parsers.NormalizeFormat(cmd.String("format")),
			Year:   int(cmd.Int("year")),
		},
		ReleaseID: int(cmd.Int("release-id")),
		MasterID:  int(cmd.Int("master-id")),
	}
	if spec.ReleaseID == 0 && spec.MasterID == 0 &&
		(spec.Record.Artist == "" || spec.Record.Album == "") {
		return spec, fmt.Errorf("%w: pass --artist and --album, or an explicit id", shared.ErrMissingArgument)
	}
	return spec, nil
}

// matchesListFilters applies the list command's search/format/year filters.
func matchesListFilters(cmd *cli.Command, artist, title, format string, year int) bool {
	if s := cmd.String("search"); s != "" &&
		!strings.Contains(strings.ToLower(artist+" "+title), strings.ToLower(s)) {
		return false
	}
	if f := cmd.String("format"); f != "" &&
		!strings.EqualFold(parsers.NormalizeFormat(f), parsers.NormalizeFormat(format)) {
		return false
	}
	if y := int(cmd.Int("year")); y != 0 && y != year {
		return false
	}
	return true
}

// WantlistSync reconciles the wantlist against an input file.
func (r *Runner) WantlistSync(ctx context.Context, cmd *cli.Command) error {
	records, err := r.parseInput(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	opts := tasks.SyncOptions{
		DryRun:       cmd.Bool("dry-run"),
		RemoveExtras: cmd.Bool("remove-extras"),
	}

	progress, stop := r.progressLogger()
	report, err := r.engine.SyncWantlist(ctx, records, opts, progress)
	stop()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, opts.DryRun, cmd.Bool("json"))
}

// WantlistAdd resolves a single release and adds it to the wantlist.
func (r *Runner) WantlistAdd(ctx context.Context, cmd *cli.Command) error {
	spec, err := targetFromFlags(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	report, err := r.engine.AddWant(ctx, spec, cmd.Bool("dry-run"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, cmd.Bool("dry-run"), cmd.Bool("json"))
}

// WantlistRemove resolves a single release and removes it from the wantlist.
func (r *Runner) WantlistRemove(ctx context.Context, cmd *cli.Command) error {
	spec, err := targetFromFlags(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	report, err := r.engine.RemoveWant(ctx, spec, cmd.Bool("dry-run"))
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return r.writeReport(report, cmd.Bool("dry-run"), cmd.Bool("json"))
}

// WantlistList prints the wantlist from cache or the API.
func (r *Runner) WantlistList(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	items, fromCache, err := r.engine.ListWantlist(ctx, cmd.Bool("refresh"))
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
		data, err := formatter.WantlistToCSV(items)
		if err != nil {
			return err
		}
		return r.writePlain("%s", data)
	default:
		return r.writePlain("%s", formatter.RenderWantlist(items, fromCache))
	}
}
