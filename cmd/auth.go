package main

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"

	"discosync/internal/discogs"
	"discosync/internal/ratelimit"
	"discosync/internal/shared"
)

// AuthLogin validates a personal access token against the API and stores it.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	token := cmd.String("token")
	if token == "" {
		token = r.envToken
	}
	if token == "" {
		return cli.Exit(fmt.Sprintf("%v: pass --token or set DISCOGS_TOKEN", shared.ErrMissingCredentials), 2)
	}

	client := discogs.NewClient(token, ratelimit.New(), r.logger)
	identity, err := client.Identity(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%v: token rejected: %v", shared.ErrAuthFailed, err), 2)
	}

	creds := &shared.Credentials{Token: token, Username: identity.Username}
	if err := shared.SaveCredentials(r.credsPath, creds); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	r.logger.Info("credentials stored", "path", r.credsPath)
	return r.writePlain("✓ Authenticated as %s\n", identity.Username)
}

// AuthStatus reports the authenticated account and the remaining API quota.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	if err := r.ensureClient(); err != nil {
		return cli.Exit(err.Error(), 2)
	}

	identity, err := r.client.Identity(ctx)
	if err != nil {
		return cli.Exit(fmt.Sprintf("%v: %v", shared.ErrAuthFailed, err), 2)
	}

	remaining := r.client.Limiter().Remaining()
	if cmd.Bool("json") {
		return r.writeJSON(map[string]any{
			"username":        identity.Username,
			"id":              identity.ID,
			"quota_remaining": remaining,
		})
	}

	r.writePlain("Authenticated as %s (id %d)\n", identity.Username, identity.ID)
	if remaining >= 0 {
		r.writePlain("API quota remaining: %d\n", remaining)
	}
	return nil
}
