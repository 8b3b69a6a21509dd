/*
Package database wraps a pool of SurrealDB connections addressed over a
websocket RPC endpoint.

# Overview

Pool owns up to PoolMaxSize signed-in connections. Checkout validates a
connection with a cheap INFO FOR DB probe before handing it out, discarding
and replacing any connection that fails the probe. Checkout is bounded by
PoolWaitTimeout; dialing a new connection is bounded by PoolCreateTimeout.

# Operations

  - FetchPending: repositories needing embedding, ordered and bounded.
  - UpdateEmbedding: sets the embedding fields on a single row.
  - BatchUpdateEmbeddings: one round trip for N rows, falling back to N
    individual updates on failure so partial success is preserved.
  - Health: a pool-gated probe for the external health endpoint.
*/
package database
