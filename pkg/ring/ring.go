// Package ring implements the consistent hash ring used to map keys to servers.
//
// Every server contributes replicas+1 points. A point's position is the first
// 7 hex digits (28 bits) of the md5 digest of "host:port-r", which keeps the
// layout compatible with other clients sharing the same server list.
package ring

import (
	"crypto/md5"
	"errors"
	"fmt"
	"sort"

	"github.com/zhangyunhao116/skipmap"
)

// DefaultReplicas is the replica count used when a negative value is given.
const DefaultReplicas = 128

// MaxPosition is the largest value Position can return.
const MaxPosition = 1<<28 - 1

var ErrEmptyRing = errors.New("ring: no points")

// Point binds a server identity ("host:port") to its dense client index.
type Point struct {
	Identity string
	Index    int
}

// HashRing is immutable after New and safe for concurrent lookups.
type HashRing struct {
	replicas  int
	positions []uint32 // отсортированные позиции
	owners    []int    // owners[i] - индекс клиента для positions[i]
}

// New builds a ring with replicas+1 points per server. Points that land on an
// already taken position overwrite it: the later server wins.
func New(points []Point, replicas int) *HashRing {
	if replicas < 0 {
		replicas = DefaultReplicas
	}

	// позиция -> индекс клиента; Store перезаписывает коллизии
	m := skipmap.New[uint32, int]()
	for _, p := range points {
		for r := 0; r <= replicas; r++ {
			m.Store(Position(fmt.Sprintf("%s-%d", p.Identity, r)), p.Index)
		}
	}

	h := &HashRing{
		replicas:  replicas,
		positions: make([]uint32, 0, m.Len()),
		owners:    make([]int, 0, m.Len()),
	}
	m.Range(func(pos uint32, idx int) bool {
		h.positions = append(h.positions, pos)
		h.owners = append(h.owners, idx)
		return true
	})
	return h
}

// Position returns the 28-bit ring position of s: the first 7 hex digits of
// md5(s) read as a base-16 integer.
func Position(s string) uint32 {
	sum := md5.Sum([]byte(s))
	return uint32(sum[0])<<20 | uint32(sum[1])<<12 | uint32(sum[2])<<4 | uint32(sum[3])>>4
}

// Locate returns the client index owning key.
func (h *HashRing) Locate(key string) (int, error) {
	return h.Owner(Position(key))
}

// Owner returns the client index of the smallest position >= needle.
// A needle above the last position resolves to the last position, which is
// where a bisection over the position list stops.
func (h *HashRing) Owner(needle uint32) (int, error) {
	if len(h.positions) == 0 {
		return 0, ErrEmptyRing
	}
	idx := sort.Search(len(h.positions), func(i int) bool { return h.positions[i] >= needle })
	if idx == len(h.positions) {
		idx = len(h.positions) - 1
	}
	return h.owners[idx], nil
}

// Positions returns a copy of the sorted positions.
func (h *HashRing) Positions() []uint32 {
	out := make([]uint32, len(h.positions))
	copy(out, h.positions)
	return out
}

func (h *HashRing) Len() int { return len(h.positions) }

func (h *HashRing) Replicas() int { return h.replicas }
