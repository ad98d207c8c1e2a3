// Package models defines the data model for the discosync CLI.
//
// Two categories of types:
//
// 1. Input and resolution types: [InputRecord] parsed from user files,
// [MatchCandidate] scored search hits, and [ResolvedTarget] resolution outcomes.
//
// 2. Remote-state and report types: [WantlistItem] and [CollectionItem]
// snapshots of the remote lists, [MarketplaceResult] pricing stats, and the
// [SyncAction]/[SyncReport] pair describing what a sync run did.
//
// A release_id uniquely identifies one pressing. A master_id groups pressings
// of the same work. Collection entries may repeat a release_id across distinct
// instance IDs; wantlist entries may not.
package models
