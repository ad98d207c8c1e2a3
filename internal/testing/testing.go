// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"discosync/internal/discogs"
	"discosync/internal/models"
)

// MockCatalog is a test double for tasks.Catalog. State fields seed the
// remote account; mutation calls are recorded, not applied, so assertions see
// exactly what a run attempted.
type MockCatalog struct {
	WantlistItems []models.WantlistItem
	Collection    []models.CollectionItem
	Releases      map[int]*discogs.Release
	Versions      map[int][]discogs.Version
	Stats         map[int]*discogs.Stats
	Suggestions   map[int]map[string]float64

	AddedWants       []int
	RemovedWants     []int
	AddedInstances   [][2]int // folder, release
	RemovedInstances [][3]int // folder, release, instance

	FailWantlist   error
	FailCollection error
	FailMutations  error

	Calls map[string]int
}

func (m *MockCatalog) record(call string) {
	if m.Calls == nil {
		m.Calls = map[string]int{}
	}
	m.Calls[call]++
}

func (m *MockCatalog) Wantlist(ctx context.Context) ([]models.WantlistItem, error) {
	m.record("Wantlist")
	if m.FailWantlist != nil {
		return nil, m.FailWantlist
	}
	return m.WantlistItems, nil
}

func (m *MockCatalog) AddWant(ctx context.Context, releaseID int) error {
	m.record("AddWant")
	if m.FailMutations != nil {
		return m.FailMutations
	}
	m.AddedWants = append(m.AddedWants, releaseID)
	return nil
}

func (m *MockCatalog) DeleteWant(ctx context.Context, releaseID int) error {
	m.record("DeleteWant")
	if m.FailMutations != nil {
		return m.FailMutations
	}
	m.RemovedWants = append(m.RemovedWants, releaseID)
	return nil
}

func (m *MockCatalog) CollectionItems(ctx context.Context, folderID int) ([]models.CollectionItem, error) {
	m.record("CollectionItems")
	if m.FailCollection != nil {
		return nil, m.FailCollection
	}
	return m.Collection, nil
}

func (m *MockCatalog) AddToFolder(ctx context.Context, folderID, releaseID int) (int, error) {
	m.record("AddToFolder")
	if m.FailMutations != nil {
		return 0, m.FailMutations
	}
	m.AddedInstances = append(m.AddedInstances, [2]int{folderID, releaseID})
	return 1000 + len(m.AddedInstances), nil
}

func (m *MockCatalog) DeleteInstance(ctx context.Context, folderID, releaseID, instanceID int) error {
	m.record("DeleteInstance")
	if m.FailMutations != nil {
		return m.FailMutations
	}
	m.RemovedInstances = append(m.RemovedInstances, [3]int{folderID, releaseID, instanceID})
	return nil
}

func (m *MockCatalog) Release(ctx context.Context, releaseID int) (*discogs.Release, error) {
	m.record("Release")
	if r, ok := m.Releases[releaseID]; ok {
		return r, nil
	}
	return nil, fmt.Errorf("release %d not found", releaseID)
}

func (m *MockCatalog) MasterVersions(ctx context.Context, masterID int) ([]discogs.Version, error) {
	m.record("MasterVersions")
	return m.Versions[masterID], nil
}

func (m *MockCatalog) MarketplaceStats(ctx context.Context, releaseID int, currency string) (*discogs.Stats, error) {
	m.record("MarketplaceStats")
	if s, ok := m.Stats[releaseID]; ok {
		return s, nil
	}
	return nil, fmt.Errorf("stats for release %d not found", releaseID)
}

func (m *MockCatalog) PriceSuggestions(ctx context.Context, releaseID int) (map[string]float64, error) {
	m.record("PriceSuggestions")
	if s, ok := m.Suggestions[releaseID]; ok {
		return s, nil
	}
	return nil, errors.New("price suggestions unavailable")
}

// MockResolver is a test double for tasks.Resolver with canned resolutions
// keyed by "artist|album" (case-insensitive). Unknown records fail to resolve.
type MockResolver struct {
	Targets         map[string]models.ResolvedTarget
	ReleaseByMaster map[int]int
	Resolved        []models.InputRecord
}

// ResolveKey builds the lookup key for a record.
func ResolveKey(artist, album string) string {
	return strings.ToLower(artist) + "|" + strings.ToLower(album)
}

func (m *MockResolver) Resolve(ctx context.Context, record models.InputRecord) models.ResolvedTarget {
	m.Resolved = append(m.Resolved, record)
	if target, ok := m.Targets[ResolveKey(record.Artist, record.Album)]; ok {
		target.Record = record
		target.Matched = true
		return target
	}
	return models.ResolvedTarget{Record: record, Err: "no search results"}
}

func (m *MockResolver) ResolveAll(ctx context.Context, records []models.InputRecord) []models.ResolvedTarget {
	targets := make([]models.ResolvedTarget, 0, len(records))
	for _, record := range records {
		targets = append(targets, m.Resolve(ctx, record))
	}
	return targets
}

func (m *MockResolver) ResolveRelease(ctx context.Context, masterID int, format string) (int, error) {
	if id, ok := m.ReleaseByMaster[masterID]; ok {
		return id, nil
	}
	return 0, fmt.Errorf("master %d not found", masterID)
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}
