// submodule cmd contains command definitions
package main

import "github.com/urfave/cli/v3"

func thresholdFlag() cli.Flag {
	return &cli.FloatFlag{
		Name:  "threshold",
		Usage: "Minimum match score (0.0-1.0) for release resolution",
	}
}

func dryRunFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:    "dry-run",
		Aliases: []string{"n"},
		Usage:   "Report planned changes without applying them",
	}
}

func jsonFlag() cli.Flag {
	return &cli.BoolFlag{
		Name:  "json",
		Usage: "Output JSON",
	}
}

// recordFlags describe a single release on the command line. Artist and album
// are required unless an explicit identifier flag is given.
func recordFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "artist",
			Aliases: []string{"a"},
			Usage:   "Artist name",
		},
		&cli.StringFlag{
			Name:    "album",
			Aliases: []string{"b"},
			Usage:   "Album title",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Preferred format (Vinyl, CD, Cassette)",
		},
		&cli.IntFlag{
			Name:    "year",
			Aliases: []string{"y"},
			Usage:   "Release year",
		},
		&cli.IntFlag{
			Name:  "release-id",
			Usage: "Exact release ID, skipping resolution",
		},
		&cli.IntFlag{
			Name:  "master-id",
			Usage: "Master ID, resolved to a release (narrowed by --format)",
		},
	}
}

// listFlags are shared by the wantlist and collection list commands.
func listFlags() []cli.Flag {
	return []cli.Flag{
		jsonFlag(),
		&cli.BoolFlag{
			Name:  "csv",
			Usage: "Output CSV",
		},
		&cli.BoolFlag{
			Name:  "refresh",
			Usage: "Bypass the local cache",
		},
		&cli.StringFlag{
			Name:  "search",
			Usage: "Only show items whose artist or title contains this text",
		},
		&cli.StringFlag{
			Name:    "format",
			Aliases: []string{"f"},
			Usage:   "Only show items in this format",
		},
		&cli.IntFlag{
			Name:    "year",
			Aliases: []string{"y"},
			Usage:   "Only show items from this year",
		},
		&cli.BoolFlag{
			Name:  "sort",
			Usage: "Sort by artist, then title",
		},
	}
}

// authCommand handles token storage and identity checks
func authCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Discogs personal access token",
		Commands: []*cli.Command{
			{
				Name:  "login",
				Usage: "Validate and store an access token",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "token",
						Aliases: []string{"t"},
						Usage:   "Personal access token (defaults to DISCOGS_TOKEN)",
					},
				},
				Action: r.AuthLogin,
			},
			{
				Name:   "status",
				Usage:  "Show the authenticated account and remaining API quota",
				Flags:  []cli.Flag{jsonFlag()},
				Action: r.AuthStatus,
			},
		},
	}
}

// whoamiCommand is a shorthand for auth status
func whoamiCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:   "whoami",
		Usage:  "Show the authenticated account",
		Flags:  []cli.Flag{jsonFlag()},
		Action: r.AuthStatus,
	}
}

// wantlistCommand handles wantlist sync and single-item operations
func wantlistCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "wantlist",
		Aliases: []string{"want"},
		Usage:   "Wantlist operations",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Reconcile the wantlist with a CSV or JSON input file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "file",
					},
				},
				Flags: []cli.Flag{
					dryRunFlag(),
					jsonFlag(),
					thresholdFlag(),
					&cli.BoolFlag{
						Name:  "remove-extras",
						Usage: "Remove wantlist items not present in the input file",
					},
				},
				Action: r.WantlistSync,
			},
			{
				Name:   "add",
				Usage:  "Resolve a single release and add it to the wantlist",
				Flags:  append(recordFlags(), dryRunFlag(), jsonFlag(), thresholdFlag()),
				Action: r.WantlistAdd,
			},
			{
				Name:   "remove",
				Usage:  "Resolve a single release and remove it from the wantlist",
				Flags:  append(recordFlags(), dryRunFlag(), jsonFlag(), thresholdFlag()),
				Action: r.WantlistRemove,
			},
			{
				Name:   "list",
				Usage:  "Show the wantlist",
				Flags:  listFlags(),
				Action: r.WantlistList,
			},
		},
	}
}

// collectionCommand handles collection sync and single-item operations
func collectionCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "collection",
		Aliases: []string{"coll"},
		Usage:   "Collection operations",
		Commands: []*cli.Command{
			{
				Name:  "sync",
				Usage: "Reconcile the collection with a CSV or JSON input file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "file",
					},
				},
				Flags: []cli.Flag{
					dryRunFlag(),
					jsonFlag(),
					thresholdFlag(),
					&cli.BoolFlag{
						Name:  "remove-extras",
						Usage: "Remove collection instances not present in the input file",
					},
					&cli.BoolFlag{
						Name:  "allow-duplicates",
						Usage: "Add releases already present in the collection",
					},
					&cli.IntFlag{
						Name:  "folder",
						Usage: "Collection folder for adds (defaults to config)",
					},
				},
				Action: r.CollectionSync,
			},
			{
				Name:  "add",
				Usage: "Resolve a single release and add it to the collection",
				Flags: append(recordFlags(),
					dryRunFlag(), jsonFlag(), thresholdFlag(),
					&cli.BoolFlag{
						Name:  "allow-duplicates",
						Usage: "Add even when the release is already present",
					},
					&cli.IntFlag{
						Name:  "folder",
						Usage: "Collection folder for the add (defaults to config)",
					},
				),
				Action: r.CollectionAdd,
			},
			{
				Name:   "remove",
				Usage:  "Resolve a single release and remove its instances from the collection",
				Flags:  append(recordFlags(), dryRunFlag(), jsonFlag(), thresholdFlag()),
				Action: r.CollectionRemove,
			},
			{
				Name:   "list",
				Usage:  "Show the collection",
				Flags:  listFlags(),
				Action: r.CollectionList,
			},
		},
	}
}

// marketplaceCommand handles price lookups
func marketplaceCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:    "marketplace",
		Aliases: []string{"market"},
		Usage:   "Marketplace price lookups",
		Commands: []*cli.Command{
			{
				Name:  "search",
				Usage: "Look up listings and prices for a release, or a batch from an input file",
				Arguments: []cli.Argument{
					&cli.StringArg{
						Name: "file",
					},
				},
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "artist",
						Aliases: []string{"a"},
						Usage:   "Artist name",
					},
					&cli.StringFlag{
						Name:    "album",
						Aliases: []string{"b"},
						Usage:   "Album title",
					},
					&cli.IntFlag{
						Name:  "release-id",
						Usage: "Exact release ID, skipping resolution",
					},
					&cli.IntFlag{
						Name:  "master-id",
						Usage: "Master ID, skipping resolution",
					},
					&cli.StringFlag{
						Name:    "format",
						Aliases: []string{"f"},
						Usage:   "Limit to a format (Vinyl, CD, Cassette)",
					},
					&cli.StringFlag{
						Name:  "country",
						Usage: "Limit to pressings from a country",
					},
					&cli.StringFlag{
						Name:  "currency",
						Usage: "Price currency",
						Value: "USD",
					},
					&cli.IntFlag{
						Name:  "limit",
						Usage: "Maximum number of versions to price",
						Value: 5,
					},
					&cli.BoolFlag{
						Name:  "details",
						Usage: "Include price suggestions, label, and community counts",
					},
					jsonFlag(),
					thresholdFlag(),
				},
				Action: r.MarketplaceSearch,
			},
		},
	}
}

// cacheCommand handles local cache maintenance
func cacheCommand(r *Runner) *cli.Command {
	return &cli.Command{
		Name:  "cache",
		Usage: "Local cache maintenance",
		Commands: []*cli.Command{
			{
				Name:   "clean",
				Usage:  "Remove expired cache entries",
				Action: r.CacheClean,
			},
			{
				Name:  "purge",
				Usage: "Remove all cache entries and stored resolutions",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "keep-resolutions",
						Usage: "Keep the stored release resolutions",
					},
				},
				Action: r.CachePurge,
			},
		},
	}
}
