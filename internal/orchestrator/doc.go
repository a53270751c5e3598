// Package orchestrator answers a farmer's question within a conversation.
//
// # Overview
//
// Every request runs through two tiers, tried in order, each of which fails
// safe:
//
//	primary pipeline → fallback tier → templated fallback
//
// The primary tier hands the question, the last few assistant answers and
// the consolidated entities to a Pipeline. Any error or empty answer falls
// through to the fallback tier.
//
// The fallback tier extracts entities from the message, merges them with the
// conversation's consolidated entities and asks the sufficiency classifier
// whether enough context is known:
//
//	INSUFFICIENT → clarification questions, original question parked
//	SUFFICIENT   → retrieval (optional) → Responder
//
// # Clarification and reprocessing
//
// When clarification is requested the user message is stored as the
// original question and a reprocess callback is registered with the
// conversation manager. The next message flagged as a clarification
// response re-arms the conversation, and the orchestrator fires the callback
// once: it re-runs the fallback tier on the original question enriched with
// the entities learned in between, with clarification disabled.
//
// # Concurrency
//
// Process serializes requests per conversation id through the manager's
// lock. Requests for different conversations run in parallel.
//
// # Failure handling
//
// Process never returns an error. Collaborator failures are logged,
// counted and turned into a fall-through; if nothing produces an answer the
// caller gets a short message in the request language asking to retry.
package orchestrator
