package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"discosync/internal/formatter"
	"discosync/internal/models"
	"discosync/internal/shared"
	"discosync/internal/tasks"
)

// batchResult pairs an input record with its lookup outcome in batch mode.
type batchResult struct {
	Record  models.InputRecord         `json:"record"`
	Results []models.MarketplaceResult `json:"results,omitempty"`
	Error   string                     `json:"error,omitempty"`
}

func marketplaceQuery(cmd *cli.Command) tasks.MarketplaceQuery {
	query := tasks.MarketplaceQuery{
		ReleaseID:  int(cmd.Int("release-id")),
		MasterID:   int(cmd.Int("master-id")),
		Country:    cmd.String("country"),
		Currency:   cmd.String("currency"),
		MaxResults: int(cmd.Int("limit")),
		Details:    cmd.Bool("details"),
	}
	query.Record.Artist = cmd.String("artist")
	query.Record.Album = cmd.String("album")
	query.Record.Format = cmd.String("format")
	return query
}

// MarketplaceSearch looks up listings and prices, either for a single release
// identified by flags or for every record in an input file.
func (r *Runner) MarketplaceSearch(ctx context.Context, cmd *cli.Command) error {
	if cmd.StringArg("file") != "" {
		return r.marketplaceBatch(ctx, cmd)
	}

	query := marketplaceQuery(cmd)
	if query.ReleaseID == 0 && query.MasterID == 0 &&
		(query.Record.Artist == "" || query.Record.Album == "") {
		err := fmt.Errorf("%w: pass --artist and --album, an explicit id, or an input file", shared.ErrMissingArgument)
		return cli.Exit(err.Error(), 2)
	}

	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	progress, stop := r.progressLogger()
	results, err := r.market.Lookup(ctx, query, progress)
	stop()
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}

	if cmd.Bool("json") {
		return r.writeJSON(results)
	}
	return r.writePlain("%s", formatter.RenderMarketplace(results))
}

// marketplaceBatch runs a lookup per input record. Per-record failures are
// reported alongside the successes, never aborting the batch.
func (r *Runner) marketplaceBatch(ctx context.Context, cmd *cli.Command) error {
	records, err := r.parseInput(cmd)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	if err := r.ensureEngines(cmd); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	progress, stop := r.progressLogger()
	outcomes := make([]batchResult, 0, len(records))
	for _, record := range records {
		query := marketplaceQuery(cmd)
		query.Record = record

		outcome := batchResult{Record: record}
		results, err := r.market.Lookup(ctx, query, progress)
		if err != nil {
			r.logger.Warn("lookup failed", "record", record.DisplayName(), "err", err)
			outcome.Error = err.Error()
		} else {
			outcome.Results = results
		}
		outcomes = append(outcomes, outcome)
	}
	stop()

	if cmd.Bool("json") {
		return r.writeJSON(outcomes)
	}
	for _, outcome := range outcomes {
		if err := r.writePlain("%s\n", outcome.Record.DisplayName()); err != nil {
			return err
		}
		if outcome.Error != "" {
			if err := r.writePlain("  %s\n", outcome.Error); err != nil {
				return err
			}
			continue
		}
		if err := r.writePlain("%s", formatter.RenderMarketplace(outcome.Results)); err != nil {
			return err
		}
	}
	return nil
}
