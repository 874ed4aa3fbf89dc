// Package mcpool provides a bounded pool of reusable TCP connections to a
// single memcached endpoint, plus a small client and a consistent-hash
// cluster built on top of it.
//
// The pool hands out at most MaxSize connections at once. Callers beyond that
// block until a connection is released, their context ends, or the optional
// acquire timeout fires. Released connections stay warm while the pool holds
// no more than MinSize of them; extra ones are closed on release.
//
// # Architecture Overview
//
//   - pkg/pool: the pool and the leased connection type
//   - pkg/client: memcached:// URI parsing, a per-endpoint Client and a Cluster
//   - pkg/hash: consistent hash ring used by Cluster
//   - pkg/config: client and server configuration from YAML, .env, environment and flags
//   - internal/server: line echo server used as a test endpoint
//   - cmd/server: echo server executable
//   - cmd/poolbench: concurrent load generator that reports pool statistics
//
// # Quick Start
//
// Pool:
//
//	import "github.com/cachemir/mcpool/pkg/pool"
//
//	p, err := pool.New("localhost", 11211, pool.WithMaxSize(4))
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer p.Close()
//
//	conn, err := p.Acquire(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	conn.Write([]byte("version\r\n"))
//	conn.Flush()
//	line, _ := conn.Reader().ReadString('\n')
//	p.Release(conn)
//
// Client:
//
//	import "github.com/cachemir/mcpool/pkg/client"
//
//	c, err := client.New("memcached://localhost:11211")
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer c.Close()
//
//	resp, err := c.Exec(ctx, []byte("get user:123\r\n"), []byte("END\r\n"))
//
// # Configuration
//
// Client settings come from defaults, then a YAML file named by MCPOOL_CONFIG,
// then a .env file, then MCPOOL_* environment variables:
//
//	MCPOOL_URI=memcached://cache1:11211 MCPOOL_MAX_SIZE=20 ./poolbench
//
// The echo server additionally accepts flags:
//
//	./server -port 11211 -host 127.0.0.1
//
// # Errors
//
// Failed dials and broken streams surface as *pool.ConnectError, which
// matches pool.ErrConnect with errors.Is. Timeouts additionally match
// pool.ErrTimeout.
package mcpool
