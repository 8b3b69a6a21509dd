/*
Package cache is the bounded in-process embedding cache: a fixed-capacity
LRU keyed by (model, input-fingerprint), each entry expiring
after a configurable TTL independent of its position in the eviction order.

# Core type

  - Cache: doubly-linked-list LRU with O(1) Get/Set, guarded by a mutex.

# Operations

  - Get: returns the cached vector and true, or false on miss or expiry.
  - Set: inserts or refreshes an entry, evicting the least-recently-used
    entry when the cache is at capacity.
  - Stats: size, capacity, and cumulative hit/miss counters.
*/
package cache
