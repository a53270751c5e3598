// Package conversation holds per-conversation memory and the clarification
// state machine.
//
// A Conversation keeps an append-only message list and one consolidated
// EntitySet. Every message's entities are merged into it in arrival order,
// which matters because entities.Merge breaks ties toward the newer value.
// Callers must therefore serialize processing per conversation id; Manager
// provides a per-id lock for that.
//
// Clarification states:
//
//	NORMAL ──original question──▶ PENDING ──matching response──▶ NORMAL
//	   │
//	   └──MarkPendingClarification──▶ CRITICAL_ACTIVE ──any clarification
//	                                  response──▶ NORMAL + reprocessing scheduled
//
// The callback that reprocesses the original question lives in a
// CallbackRegistry. A Conversation stores only the subscription id, so
// invalidating the subscription makes the callback deterministically
// unreachable.
//
// Conversations are cached in a bounded LRU and persisted through a Store
// (in memory or SQLite). Expiry is left to an external sweep that calls
// Store.PurgeInactive.
package conversation
