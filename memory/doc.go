// Package memory implements the orchestration engine's three-tier memory
// subsystem: a short-term session ring buffer, a long-term pattern store
// that learns from repeated usage, and a TTL read-through cache in front of
// both, all behind a single Manager façade.
//
// # Tiers
//
// ShortTerm holds the current session's recent turns and executed actions
// in bounded ring buffers, used to ground follow-up questions ("list them
// again", "what about the other compartment").
//
// LongTerm accumulates patterns across sessions: which parameters a user
// tends to supply for a given resource/action pair, merged across requests
// that overlap by at least 70% of their parameter keys, and ranked by a
// blend of frequency and recency for smart suggestions.
//
// The cache tier (Memory interface, RedisMemory/InMemoryStore) fronts both
// with a configurable TTL so repeated identical lookups within a turn don't
// recompute or re-query.
//
// Store persists ShortTerm and LongTerm snapshots as JSON files, one
// writer at a time, using a write-temp-then-rename pattern so a crash
// mid-write never corrupts the file on disk.
package memory
