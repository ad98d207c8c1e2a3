package tasks

import (
	"fmt"

	"discosync/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	ResolveTargets Phase = iota
	FetchRemote
	Reconcile
	Apply
	Lookup
)

func (p Phase) String() string {
	switch p {
	case ResolveTargets:
		return "resolve_targets"
	case FetchRemote:
		return "fetch_remote"
	case Reconcile:
		return "reconcile"
	case Apply:
		return "apply"
	case Lookup:
		return "lookup"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default so progress reporting never stalls a run.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func resolvingUpdate(step, total int, record models.InputRecord) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ResolveTargets,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Resolving %s", step, total, record.DisplayName()),
	}
}

func fetchRemoteUpdate(what string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchRemote,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching current %s...", what),
	}
}

func reconcileUpdate(targets, remote int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Reconcile,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Comparing %d targets against %d remote items...", targets, remote),
	}
}

func applyUpdate(step, total int, action models.SyncAction) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Apply,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s - %s", step, total, action.Kind, action.DisplayArtist(), action.DisplayTitle()),
		Data:    action,
	}
}

func lookupUpdate(step, total int, message string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Lookup,
		Step:    step,
		Total:   total,
		Message: message,
	}
}
