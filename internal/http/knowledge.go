package http

import (
	"context"
)

// CollectionChecker reports whether a knowledge collection exists.
// vectorstore.Store satisfies it.
type CollectionChecker interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
}

// CollectionState describes one knowledge collection in GET /v1/status.
type CollectionState string

const (
	CollectionReady   CollectionState = "ready"
	CollectionMissing CollectionState = "missing"
	CollectionError   CollectionState = "error"
)

// KnowledgeStatus checks each collection.
//
// Returns nil if:
//   - checker is nil
//   - collections is empty
//
// A missing collection usually means `expertd ingest` has not been run; the
// service still answers, from templates only.
func KnowledgeStatus(ctx context.Context, checker CollectionChecker, collections []string) map[string]CollectionState {
	if checker == nil || len(collections) == 0 {
		return nil
	}

	states := make(map[string]CollectionState, len(collections))
	for _, name := range collections {
		ok, err := checker.CollectionExists(ctx, name)
		switch {
		case err != nil:
			states[name] = CollectionError
		case ok:
			states[name] = CollectionReady
		default:
			states[name] = CollectionMissing
		}
	}
	return states
}
