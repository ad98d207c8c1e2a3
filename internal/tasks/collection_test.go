package tasks

import (
	"context"
	"testing"
	"time"

	"discosync/internal/cache"
	"discosync/internal/models"
	mocks "discosync/internal/testing"
)

func TestSyncCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("Adds To Configured Folder", func(t *testing.T) {
		catalog := &mocks.MockCatalog{}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.SyncCollection(ctx, []models.InputRecord{untrue()}, SyncOptions{FolderID: 1}, nil)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if report.Added != 1 {
			t.Errorf("counts wrong: %+v", report)
		}
		if len(catalog.AddedInstances) != 1 || catalog.AddedInstances[0] != [2]int{1, 4242} {
			t.Errorf("expected add to folder 1, got %v", catalog.AddedInstances)
		}
	})

	t.Run("Existing Instance Skips", func(t *testing.T) {
		catalog := &mocks.MockCatalog{
			Collection: []models.CollectionItem{
				{InstanceID: 555, ReleaseID: 4242, FolderID: 1},
			},
		}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.SyncCollection(ctx, []models.InputRecord{untrue()}, SyncOptions{FolderID: 1}, nil)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if report.Skipped != 1 || len(catalog.AddedInstances) != 0 {
			t.Errorf("expected skip for present release: %+v", report)
		}
	})

	t.Run("Allow Duplicates Adds Anyway", func(t *testing.T) {
		catalog := &mocks.MockCatalog{
			Collection: []models.CollectionItem{
				{InstanceID: 555, ReleaseID: 4242, FolderID: 1},
			},
		}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.SyncCollection(ctx, []models.InputRecord{untrue()},
			SyncOptions{FolderID: 1, AllowDuplicates: true}, nil)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if report.Added != 1 || len(catalog.AddedInstances) != 1 {
			t.Errorf("duplicate add should proceed: %+v", report)
		}
		if report.Actions[0].Reason != "duplicate requested" {
			t.Errorf("unexpected reason %q", report.Actions[0].Reason)
		}
	})

	t.Run("Remove Extras Deletes Each Instance", func(t *testing.T) {
		catalog := &mocks.MockCatalog{
			Collection: []models.CollectionItem{
				{InstanceID: 555, ReleaseID: 4242, MasterID: 200, FolderID: 1, Artist: "Burial", Title: "Untrue"},
				{InstanceID: 700, ReleaseID: 9999, FolderID: 1, Artist: "Aphex Twin", Title: "Drukqs"},
				{InstanceID: 701, ReleaseID: 9999, FolderID: 2, Artist: "Aphex Twin", Title: "Drukqs"},
			},
		}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.SyncCollection(ctx, []models.InputRecord{untrue()},
			SyncOptions{FolderID: 1, RemoveExtras: true}, nil)
		if err != nil {
			t.Fatalf("sync: %v", err)
		}
		if report.Removed != 2 {
			t.Errorf("expected both extra instances removed: %+v", report)
		}
		want := [][3]int{{1, 9999, 700}, {2, 9999, 701}}
		if len(catalog.RemovedInstances) != 2 ||
			catalog.RemovedInstances[0] != want[0] || catalog.RemovedInstances[1] != want[1] {
			t.Errorf("removals wrong: %v", catalog.RemovedInstances)
		}
	})
}

func TestAddToCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("Explicit Release ID Adds To Folder", func(t *testing.T) {
		catalog := &mocks.MockCatalog{}
		resolver := testResolver()
		engine := NewEngine(catalog, resolver, nil, nil)

		report, err := engine.AddToCollection(ctx, TargetSpec{ReleaseID: 31337}, SyncOptions{FolderID: 2})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if report.Added != 1 || len(catalog.AddedInstances) != 1 || catalog.AddedInstances[0] != [2]int{2, 31337} {
			t.Errorf("expected release 31337 in folder 2: %v", catalog.AddedInstances)
		}
		if len(resolver.Resolved) != 0 {
			t.Errorf("expected no searches, got %v", resolver.Resolved)
		}
	})

	t.Run("Duplicate Needs The Override", func(t *testing.T) {
		catalog := &mocks.MockCatalog{
			Collection: []models.CollectionItem{{InstanceID: 555, ReleaseID: 4242, FolderID: 1}},
		}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.AddToCollection(ctx, TargetSpec{Record: untrue()}, SyncOptions{FolderID: 1})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if report.Skipped != 1 || len(catalog.AddedInstances) != 0 {
			t.Errorf("expected skip without override: %+v", report)
		}

		report, err = engine.AddToCollection(ctx, TargetSpec{Record: untrue()}, SyncOptions{FolderID: 1, AllowDuplicates: true})
		if err != nil {
			t.Fatalf("add: %v", err)
		}
		if report.Added != 1 || len(catalog.AddedInstances) != 1 {
			t.Errorf("expected duplicate added with override: %+v", report)
		}
	})
}

func TestRemoveFromCollection(t *testing.T) {
	ctx := context.Background()

	t.Run("Removes Every Matching Instance", func(t *testing.T) {
		catalog := &mocks.MockCatalog{
			Collection: []models.CollectionItem{
				{InstanceID: 555, ReleaseID: 4242, FolderID: 1},
				{InstanceID: 556, ReleaseID: 4242, FolderID: 1},
				{InstanceID: 700, ReleaseID: 9999, FolderID: 1},
			},
		}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.RemoveFromCollection(ctx, TargetSpec{Record: untrue()}, false)
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if report.Removed != 2 || len(catalog.RemovedInstances) != 2 {
			t.Errorf("expected both instances removed: %+v", report)
		}
	})

	t.Run("Absent Record Is A Skip", func(t *testing.T) {
		catalog := &mocks.MockCatalog{}
		engine := NewEngine(catalog, testResolver(), nil, nil)

		report, err := engine.RemoveFromCollection(ctx, TargetSpec{Record: untrue()}, false)
		if err != nil {
			t.Fatalf("remove: %v", err)
		}
		if report.Skipped != 1 {
			t.Errorf("expected skip: %+v", report)
		}
	})
}

func TestListCollection(t *testing.T) {
	ctx := context.Background()

	store := cache.NewStore(t.TempDir(), time.Hour, nil)
	catalog := &mocks.MockCatalog{
		Collection: []models.CollectionItem{{InstanceID: 555, ReleaseID: 4242}},
	}
	engine := NewEngine(catalog, testResolver(), store, nil)

	got, fromCache, err := engine.ListCollection(ctx, false)
	if err != nil || fromCache || len(got) != 1 {
		t.Fatalf("first read should hit the API: %v, fromCache=%v, items=%d", err, fromCache, len(got))
	}

	_, fromCache, err = engine.ListCollection(ctx, false)
	if err != nil || !fromCache {
		t.Fatalf("second read should hit the cache: %v, fromCache=%v", err, fromCache)
	}
	if catalog.Calls["CollectionItems"] != 1 {
		t.Errorf("expected a single API call, got %d", catalog.Calls["CollectionItems"])
	}
}
