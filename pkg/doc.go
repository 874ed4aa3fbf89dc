// Package pkg groups the public packages of mcpool.
//
// Pool (pkg/pool):
//   - Bounded set of connections to one host:port
//   - Round-robin reuse of idle connections
//   - Blocking acquire with context and optional timeout
//   - Stats counters for monitoring
//
// Client (pkg/client):
//   - memcached://host[:port] URI parsing
//   - Exec for one request/response round trip on a pooled connection
//   - Broken connections are discarded instead of returned to the pool
//   - Cluster routes keys to per-node clients via consistent hashing
//
// Consistent Hashing (pkg/hash):
//   - xxhash-based ring with virtual nodes
//   - Minimal key movement when nodes are added or removed
//
// Configuration (pkg/config):
//   - Defaults, YAML file, .env file and environment variables
//   - Command-line flags for the server
//   - Validation and slog logger construction
package pkg
