package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"

	"github.com/cachemir/mcpool/pkg/config"
	"github.com/cachemir/mcpool/pkg/hash"
	"github.com/cachemir/mcpool/pkg/pool"
)

// Cluster spreads keys over several endpoints with a consistent hash ring and
// keeps one pooled Client per endpoint.
//
// Example:
//
//	cfg := config.DefaultClientConfig()
//	cfg.Nodes = []string{"cache1:11211", "cache2:11211"}
//	cl, err := client.NewCluster(cfg)
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer cl.Close()
//
//	resp, err := cl.ExecKey(ctx, "user:1", []byte("get user:1\r\n"), []byte("END\r\n"))
type Cluster struct {
	cfg  *config.ClientConfig
	opts []pool.Option
	ring *hash.Ring

	mu      sync.RWMutex
	clients map[string]*Client
}

// NewCluster creates a Cluster for cfg.Nodes, or for cfg.URI alone when no
// nodes are listed.
func NewCluster(cfg *config.ClientConfig, opts ...pool.Option) (*Cluster, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid client config: %w", err)
	}

	nodes := cfg.Nodes
	if len(nodes) == 0 {
		nodes = []string{cfg.URI}
	}

	cl := &Cluster{
		cfg:     cfg,
		opts:    opts,
		ring:    hash.New(cfg.VirtualNodes),
		clients: make(map[string]*Client),
	}
	for _, node := range nodes {
		if err := cl.AddNode(node); err != nil {
			cl.Close()
			return nil, err
		}
	}
	return cl, nil
}

// AddNode adds an endpoint, given as host:port or memcached:// URI. Keys
// hashing next to it move to it. Adding a known endpoint is a no-op.
func (cl *Cluster) AddNode(address string) error {
	host, port, err := splitAddress(address)
	if err != nil {
		return err
	}
	key := net.JoinHostPort(host, strconv.Itoa(port))

	cl.mu.Lock()
	defer cl.mu.Unlock()

	if _, ok := cl.clients[key]; ok {
		return nil
	}
	c, err := newClient(host, port, cl.cfg, cl.opts)
	if err != nil {
		return err
	}
	cl.clients[key] = c
	cl.ring.AddNode(key)
	return nil
}

// RemoveNode takes an endpoint out of rotation and closes its pool. Callers
// still holding its Client get pool.ErrPoolClosed instead of a new
// connection.
func (cl *Cluster) RemoveNode(address string) error {
	host, port, err := splitAddress(address)
	if err != nil {
		return err
	}
	key := net.JoinHostPort(host, strconv.Itoa(port))

	cl.mu.Lock()
	c, ok := cl.clients[key]
	delete(cl.clients, key)
	cl.ring.RemoveNode(key)
	cl.mu.Unlock()

	if !ok {
		return nil
	}
	return c.Close()
}

// Node returns the Client owning key.
func (cl *Cluster) Node(key string) (*Client, error) {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	addr := cl.ring.GetNode(key)
	if addr == "" {
		return nil, fmt.Errorf("no available nodes")
	}
	c, ok := cl.clients[addr]
	if !ok {
		return nil, fmt.Errorf("no connection pool for node: %s", addr)
	}
	return c, nil
}

// ExecKey runs Exec on the endpoint owning key.
func (cl *Cluster) ExecKey(ctx context.Context, key string, cmd []byte, endSymbols ...[]byte) ([]byte, error) {
	c, err := cl.Node(key)
	if err != nil {
		return nil, err
	}
	return c.Exec(ctx, cmd, endSymbols...)
}

// Nodes returns the endpoints in rotation.
func (cl *Cluster) Nodes() []string {
	return cl.ring.GetNodes()
}

// Stats returns pool counters per endpoint.
func (cl *Cluster) Stats() map[string]pool.Stats {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	stats := make(map[string]pool.Stats, len(cl.clients))
	for addr, c := range cl.clients {
		stats[addr] = c.Stats()
	}
	return stats
}

// Close closes every endpoint's pool.
func (cl *Cluster) Close() error {
	cl.mu.RLock()
	defer cl.mu.RUnlock()

	var errs []error
	for _, c := range cl.clients {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
