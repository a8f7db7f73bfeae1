// Package storage provides entry stores for the admission gate.
//
// # Overview
//
// A Backend keeps one counting-window entry per identifier and performs the
// gate's read-check-increment step atomically for that identifier. Two
// implementations are provided:
//
//   - MemoryBackend: sharded in-process map, zero I/O, single-instance scope
//   - RedisBackend: shared counters in Redis, one Lua round trip per check
//
// Both enforce the same fixed-window semantics, so the gate algorithm is
// identical regardless of which backend is configured.
//
// # Atomicity
//
// CheckAndIncrement is the only mutation path. For a given key, concurrent
// callers serialize on that key's entry (memory) or on the Redis script
// (redis); callers with distinct keys do not contend. A full window is never
// consumed by rejected requests: the counter only moves when the request is
// admitted.
//
// # Eviction
//
// Entries for identifiers that stopped sending requests are garbage:
//
//   - MemoryBackend removes them via Sweep, driven by a Sweeper on a cron
//     schedule, and bounds the map with per-shard eviction under pressure.
//   - RedisBackend relies on key TTLs; Sweep is a no-op.
package storage
