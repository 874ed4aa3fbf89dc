// Package hash maps keys to endpoints with a consistent hash ring.
//
// Every endpoint is placed on the ring many times (virtual nodes) so keys
// spread evenly, and adding or removing one endpoint only moves the keys that
// hashed next to it.
//
// Example usage:
//
//	ring := hash.New(150)
//	ring.AddNode("cache1:11211")
//	ring.AddNode("cache2:11211")
//
//	node := ring.GetNode("user:123")
package hash

import (
	"slices"
	"strconv"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// DefaultVirtualNodes is used when New is given a non-positive count.
const DefaultVirtualNodes = 150

// Ring is a consistent hash ring with virtual nodes. It is safe for
// concurrent use.
type Ring struct {
	mu           sync.RWMutex
	owners       map[uint64]string // point -> node
	points       []uint64          // sorted
	nodes        map[string]struct{}
	virtualNodes int
}

// New creates an empty ring placing each node virtualNodes times.
func New(virtualNodes int) *Ring {
	if virtualNodes <= 0 {
		virtualNodes = DefaultVirtualNodes
	}
	return &Ring{
		owners:       make(map[uint64]string),
		nodes:        make(map[string]struct{}),
		virtualNodes: virtualNodes,
	}
}

// AddNode places node on the ring. Adding a known node is a no-op.
func (r *Ring) AddNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; ok {
		return
	}
	r.nodes[node] = struct{}{}

	for i := 0; i < r.virtualNodes; i++ {
		p := point(node, i)
		if _, taken := r.owners[p]; taken {
			continue
		}
		r.owners[p] = node
		r.points = append(r.points, p)
	}
	slices.Sort(r.points)
}

// RemoveNode takes node off the ring. Removing an unknown node is a no-op.
func (r *Ring) RemoveNode(node string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.nodes[node]; !ok {
		return
	}
	delete(r.nodes, node)

	r.points = slices.DeleteFunc(r.points, func(p uint64) bool {
		if r.owners[p] != node {
			return false
		}
		delete(r.owners, p)
		return true
	})
}

// GetNode returns the node owning key, or "" when the ring is empty.
func (r *Ring) GetNode(key string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.points) == 0 {
		return ""
	}

	h := xxhash.Sum64String(key)
	idx, _ := slices.BinarySearch(r.points, h)
	if idx == len(r.points) {
		idx = 0
	}
	return r.owners[r.points[idx]]
}

// GetNodes returns the nodes on the ring, sorted.
func (r *Ring) GetNodes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	nodes := make([]string, 0, len(r.nodes))
	for node := range r.nodes {
		nodes = append(nodes, node)
	}
	slices.Sort(nodes)
	return nodes
}

// Len returns the number of nodes on the ring.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.nodes)
}

func point(node string, replica int) uint64 {
	return xxhash.Sum64String(node + "#" + strconv.Itoa(replica))
}
