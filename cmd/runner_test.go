package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/urfave/cli/v3"

	"discosync/internal/cache"
	"discosync/internal/models"
	"discosync/internal/shared"
	"discosync/internal/tasks"
	tu "discosync/internal/testing"
)

// testApp wires a Runner over mocks into a root command ready for Run.
func testApp(t *testing.T, catalog *tu.MockCatalog, resolver *tu.MockResolver) (*cli.Command, *bytes.Buffer) {
	t.Helper()
	output := &bytes.Buffer{}
	logger := shared.NewLogger(&bytes.Buffer{})
	lists := cache.NewStore(t.TempDir(), time.Hour, logger)

	runner := NewRunner(RunnerOpts{
		Config: shared.DefaultConfig(),
		Logger: logger,
		Output: output,
		Engine: tasks.NewEngine(catalog, resolver, lists, logger),
		Market: tasks.NewMarketplaceEngine(catalog, resolver, nil, nil, 0.7, logger),
	})
	return newApp(runner, logger), output
}

func writeInputFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "records.csv")
	if err := os.WriteFile(path, []byte(contents), 0644); err != nil {
		t.Fatalf("failed to write input file: %v", err)
	}
	return path
}

func TestRunner(t *testing.T) {
	t.Run("NewRunner", func(t *testing.T) {
		t.Run("with all dependencies provided", func(t *testing.T) {
			config := shared.DefaultConfig()
			logger := shared.NewLogger(nil)
			output := &bytes.Buffer{}

			runner := NewRunner(RunnerOpts{
				Config: config,
				Logger: logger,
				Output: output,
			})

			if runner.config != config {
				t.Error("expected config to be set")
			}
			if runner.logger != logger {
				t.Error("expected logger to be set")
			}
			if runner.output != output {
				t.Error("expected output to be set")
			}
		})

		t.Run("with nil config uses defaults", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.config == nil {
				t.Error("expected default config to be set")
			}
			if runner.threshold != runner.config.Sync.Threshold {
				t.Error("expected threshold to come from config")
			}
		})

		t.Run("with nil output uses stdout", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{})

			if runner.output != os.Stdout {
				t.Error("expected output to default to os.Stdout")
			}
		})
	})

	t.Run("register", func(t *testing.T) {
		runner := NewRunner(RunnerOpts{})
		commands := runner.register()

		want := []string{"auth", "whoami", "wantlist", "collection", "marketplace", "cache"}
		if len(commands) != len(want) {
			t.Fatalf("expected %d commands, got %d", len(want), len(commands))
		}
		for i, name := range want {
			if commands[i].Name != name {
				t.Errorf("expected command %q at index %d, got %q", name, i, commands[i].Name)
			}
		}
	})

	t.Run("writePlain", func(t *testing.T) {
		t.Run("writes formatted text", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writePlain("hello %s", "world"); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			if output.String() != "hello world" {
				t.Errorf("expected 'hello world', got %q", output.String())
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writePlain("test")
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
			if !strings.Contains(err.Error(), "failed to write output") {
				t.Errorf("expected write error, got %v", err)
			}
		})
	})

	t.Run("writeJSON", func(t *testing.T) {
		t.Run("writes indented JSON with trailing newline", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			if err := runner.writeJSON(map[string]string{"key": "value"}); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
			result := output.String()
			if !strings.Contains(result, `"key": "value"`) {
				t.Errorf("expected formatted JSON, got %s", result)
			}
			if !strings.HasSuffix(result, "\n") {
				t.Error("expected output to end with newline")
			}
		})

		t.Run("handles write failure", func(t *testing.T) {
			runner := NewRunner(RunnerOpts{Output: &tu.FWriter{}})

			err := runner.writeJSON(map[string]string{"key": "value"})
			if err == nil {
				t.Fatal("expected error from failing writer")
			}
		})
	})

	t.Run("writeReport", func(t *testing.T) {
		t.Run("full success exits zero", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			report := models.NewSyncReport("", 1)
			report.Record(models.SyncAction{Kind: models.ActionAdd, ReleaseID: 1})

			if err := runner.writeReport(report, false, false); err != nil {
				t.Fatalf("expected no error, got %v", err)
			}
		})

		t.Run("partial failure returns exit code 1", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			report := models.NewSyncReport("", 2)
			report.Record(models.SyncAction{Kind: models.ActionAdd, ReleaseID: 1})
			report.Record(models.SyncAction{Kind: models.ActionError, Err: "no search results"})

			err := runner.writeReport(report, false, false)
			coder, ok := err.(cli.ExitCoder)
			if !ok {
				t.Fatalf("expected exit coder, got %v", err)
			}
			if coder.ExitCode() != 1 {
				t.Errorf("expected exit code 1, got %d", coder.ExitCode())
			}
		})

		t.Run("total failure returns exit code 2", func(t *testing.T) {
			output := &bytes.Buffer{}
			runner := NewRunner(RunnerOpts{Output: output})

			report := models.NewSyncReport("", 1)
			report.Record(models.SyncAction{Kind: models.ActionError, Err: "no search results"})

			err := runner.writeReport(report, false, false)
			coder, ok := err.(cli.ExitCoder)
			if !ok {
				t.Fatalf("expected exit coder, got %v", err)
			}
			if coder.ExitCode() != 2 {
				t.Errorf("expected exit code 2, got %d", coder.ExitCode())
			}
		})
	})
}

func TestRootCommand(t *testing.T) {
	t.Run("exit coders return from Run", func(t *testing.T) {
		app, _ := testApp(t, &tu.MockCatalog{}, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{"discosync", "wantlist", "add"})
		if _, ok := err.(cli.ExitCoder); !ok {
			t.Fatalf("expected Run to return the exit coder, got %v", err)
		}
	})

	t.Run("config flag overrides discovery", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "config.toml")
		if err := os.WriteFile(path, []byte("[sync]\nthreshold = 0.9\nfolder_id = 7\n"), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}

		logger := shared.NewLogger(&bytes.Buffer{})
		runner := NewRunner(RunnerOpts{
			Output:      &bytes.Buffer{},
			Logger:      logger,
			Lists:       cache.NewStore(filepath.Join(dir, "cache"), time.Hour, logger),
			MarketStore: cache.NewStore(filepath.Join(dir, "cache", "marketplace"), time.Hour, logger),
		})
		app := newApp(runner, logger)

		err := app.Run(context.Background(), []string{"discosync", "--config", path, "cache", "clean"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if runner.threshold != 0.9 || runner.config.Sync.FolderID != 7 {
			t.Errorf("expected config override, got threshold %v folder %d",
				runner.threshold, runner.config.Sync.FolderID)
		}
	})

	t.Run("unreadable config flag exits 2", func(t *testing.T) {
		logger := shared.NewLogger(&bytes.Buffer{})
		runner := NewRunner(RunnerOpts{Output: &bytes.Buffer{}, Logger: logger})
		app := newApp(runner, logger)

		err := app.Run(context.Background(), []string{
			"discosync", "--config", filepath.Join(t.TempDir(), "missing.toml"), "cache", "clean",
		})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
	})
}

func TestAuthCommands(t *testing.T) {
	authApp := func(t *testing.T) *cli.Command {
		t.Helper()
		logger := shared.NewLogger(&bytes.Buffer{})
		runner := NewRunner(RunnerOpts{
			Output:          &bytes.Buffer{},
			Logger:          logger,
			CredentialsPath: filepath.Join(t.TempDir(), "credentials.json"),
		})
		return newApp(runner, logger)
	}

	t.Run("login without a token exits 2", func(t *testing.T) {
		err := authApp(t).Run(context.Background(), []string{"discosync", "auth", "login"})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
		if !strings.Contains(coder.Error(), "DISCOGS_TOKEN") {
			t.Errorf("expected a token hint, got %q", coder.Error())
		}
	})

	t.Run("status without credentials exits 2", func(t *testing.T) {
		err := authApp(t).Run(context.Background(), []string{"discosync", "auth", "status"})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
	})
}

func TestWantlistCommands(t *testing.T) {
	t.Run("sync adds missing records", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Radiohead", "OK Computer"): {ReleaseID: 7890, MasterID: 100, Artist: "Radiohead", Title: "OK Computer"},
			},
		}
		app, output := testApp(t, catalog, resolver)

		file := writeInputFile(t, "artist,album\nRadiohead,OK Computer\n")
		err := app.Run(context.Background(), []string{"discosync", "wantlist", "sync", file, "--json"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(catalog.AddedWants) != 1 || catalog.AddedWants[0] != 7890 {
			t.Errorf("expected release 7890 added, got %v", catalog.AddedWants)
		}
		if !strings.Contains(output.String(), `"added": 1`) {
			t.Errorf("expected JSON report with one add, got %s", output.String())
		}
	})

	t.Run("sync without input file exits 2", func(t *testing.T) {
		app, _ := testApp(t, &tu.MockCatalog{}, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{"discosync", "wantlist", "sync"})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
	})

	t.Run("sync with unresolvable record exits 1", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Radiohead", "OK Computer"): {ReleaseID: 7890, MasterID: 100},
			},
		}
		app, _ := testApp(t, catalog, resolver)

		file := writeInputFile(t, "artist,album\nRadiohead,OK Computer\nNobody,Nothing\n")
		err := app.Run(context.Background(), []string{"discosync", "wantlist", "sync", file})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 1 {
			t.Errorf("expected exit code 1, got %d", coder.ExitCode())
		}
	})

	t.Run("dry run mutates nothing", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Radiohead", "OK Computer"): {ReleaseID: 7890, MasterID: 100},
			},
		}
		app, output := testApp(t, catalog, resolver)

		file := writeInputFile(t, "artist,album\nRadiohead,OK Computer\n")
		err := app.Run(context.Background(), []string{"discosync", "wantlist", "sync", "--dry-run", file})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}

		if len(catalog.AddedWants) != 0 {
			t.Errorf("expected no mutations, got %v", catalog.AddedWants)
		}
		if !strings.Contains(output.String(), "dry run") {
			t.Errorf("expected dry run banner, got %s", output.String())
		}
	})

	t.Run("add resolves from flags", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Burial", "Untrue"): {ReleaseID: 4242, MasterID: 200},
			},
		}
		app, _ := testApp(t, catalog, resolver)

		err := app.Run(context.Background(), []string{
			"discosync", "wantlist", "add", "--artist", "Burial", "--album", "Untrue",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.AddedWants) != 1 || catalog.AddedWants[0] != 4242 {
			t.Errorf("expected release 4242 added, got %v", catalog.AddedWants)
		}
	})

	t.Run("add by explicit release id needs no artist", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		app, _ := testApp(t, catalog, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{
			"discosync", "wantlist", "add", "--release-id", "31337",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.AddedWants) != 1 || catalog.AddedWants[0] != 31337 {
			t.Errorf("expected release 31337 added, got %v", catalog.AddedWants)
		}
	})

	t.Run("add without identifiers exits 2", func(t *testing.T) {
		app, _ := testApp(t, &tu.MockCatalog{}, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{"discosync", "wantlist", "add"})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
	})

	t.Run("list renders items", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			WantlistItems: []models.WantlistItem{
				{ReleaseID: 7890, Artist: "Radiohead", Title: "OK Computer"},
			},
		}
		app, output := testApp(t, catalog, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{"discosync", "wantlist", "list", "--refresh"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Radiohead - OK Computer") {
			t.Errorf("expected wantlist entry, got %s", output.String())
		}
	})
}

func TestCollectionCommands(t *testing.T) {
	t.Run("sync honors folder flag", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Burial", "Untrue"): {ReleaseID: 4242, MasterID: 200},
			},
		}
		app, _ := testApp(t, catalog, resolver)

		file := writeInputFile(t, "artist,album\nBurial,Untrue\n")
		err := app.Run(context.Background(), []string{
			"discosync", "collection", "sync", "--folder", "3", file,
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.AddedInstances) != 1 || catalog.AddedInstances[0] != [2]int{3, 4242} {
			t.Errorf("expected add to folder 3, got %v", catalog.AddedInstances)
		}
	})

	t.Run("sync defaults folder from config", func(t *testing.T) {
		catalog := &tu.MockCatalog{}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Burial", "Untrue"): {ReleaseID: 4242, MasterID: 200},
			},
		}
		app, _ := testApp(t, catalog, resolver)

		file := writeInputFile(t, "artist,album\nBurial,Untrue\n")
		err := app.Run(context.Background(), []string{"discosync", "collection", "sync", file})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.AddedInstances) != 1 || catalog.AddedInstances[0][0] != shared.DefaultConfig().Sync.FolderID {
			t.Errorf("expected add to the configured folder, got %v", catalog.AddedInstances)
		}
	})

	t.Run("remove deletes matching instances", func(t *testing.T) {
		catalog := &tu.MockCatalog{
			Collection: []models.CollectionItem{
				{InstanceID: 11, ReleaseID: 4242, FolderID: 1, Artist: "Burial", Title: "Untrue"},
			},
		}
		resolver := &tu.MockResolver{
			Targets: map[string]models.ResolvedTarget{
				tu.ResolveKey("Burial", "Untrue"): {ReleaseID: 4242, MasterID: 200},
			},
		}
		app, _ := testApp(t, catalog, resolver)

		err := app.Run(context.Background(), []string{
			"discosync", "collection", "remove", "--artist", "Burial", "--album", "Untrue",
		})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if len(catalog.RemovedInstances) != 1 || catalog.RemovedInstances[0] != [3]int{1, 4242, 11} {
			t.Errorf("expected instance 11 removed, got %v", catalog.RemovedInstances)
		}
	})
}

func TestMarketplaceCommand(t *testing.T) {
	t.Run("requires a record or release id", func(t *testing.T) {
		app, _ := testApp(t, &tu.MockCatalog{}, &tu.MockResolver{})

		err := app.Run(context.Background(), []string{"discosync", "marketplace", "search"})
		coder, ok := err.(cli.ExitCoder)
		if !ok {
			t.Fatalf("expected exit coder, got %v", err)
		}
		if coder.ExitCode() != 2 {
			t.Errorf("expected exit code 2, got %d", coder.ExitCode())
		}
	})
}

// cacheApp builds a Runner over temp-dir stores and wraps it in a root command.
func cacheApp(t *testing.T) (*cli.Command, *cache.Store, *bytes.Buffer, string) {
	t.Helper()
	dir := t.TempDir()
	output := &bytes.Buffer{}
	logger := shared.NewLogger(&bytes.Buffer{})
	lists := cache.NewStore(dir, time.Hour, logger)

	runner := NewRunner(RunnerOpts{
		Output:      output,
		Logger:      logger,
		Lists:       lists,
		MarketStore: cache.NewStore(filepath.Join(dir, "marketplace"), time.Hour, logger),
	})
	return newApp(runner, logger), lists, output, dir
}

func TestCacheCommands(t *testing.T) {
	t.Run("clean removes only expired entries", func(t *testing.T) {
		app, lists, output, dir := cacheApp(t)
		lists.Write("wantlist", []string{"fresh"})

		stale := []byte(`{"cached_at": "` +
			time.Now().Add(-2*time.Hour).UTC().Format(time.RFC3339) +
			`", "items": ["stale"]}`)
		if err := os.WriteFile(filepath.Join(dir, "collection_cache.json"), stale, 0644); err != nil {
			t.Fatalf("failed to seed stale entry: %v", err)
		}

		err := app.Run(context.Background(), []string{"discosync", "cache", "clean"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Removed 1 expired cache entries") {
			t.Errorf("expected one expired entry removed, got %s", output.String())
		}
		if !lists.Read("wantlist", &[]string{}) {
			t.Error("expected fresh entry to survive")
		}
	})

	t.Run("purge removes everything", func(t *testing.T) {
		app, lists, output, _ := cacheApp(t)
		lists.Write("wantlist", []string{"fresh"})
		lists.Write("collection", []string{"fresh"})

		err := app.Run(context.Background(), []string{"discosync", "cache", "purge", "--keep-resolutions"})
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		if !strings.Contains(output.String(), "Removed 2 cache entries") {
			t.Errorf("expected two entries removed, got %s", output.String())
		}
		if lists.Read("wantlist", &[]string{}) {
			t.Error("expected purged entry to miss")
		}
	})
}
