package attack

import "github.com/corvidlabs/corvid/internal/core/domain"

// boundedSet is a fixed-capacity set of MACs with FIFO eviction: once
// full, the oldest member is dropped to make room for a new one
// (bounded N, last-wins).
type boundedSet struct {
	cap   int
	order []domain.MAC
	set   map[domain.MAC]struct{}
}

func newBoundedSet(capacity int) *boundedSet {
	return &boundedSet{
		cap: capacity,
		set: make(map[domain.MAC]struct{}),
	}
}

func (b *boundedSet) contains(mac domain.MAC) bool {
	_, ok := b.set[mac]
	return ok
}

func (b *boundedSet) add(mac domain.MAC) {
	if b.contains(mac) {
		return
	}
	if len(b.order) >= b.cap {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.set, oldest)
	}
	b.order = append(b.order, mac)
	b.set[mac] = struct{}{}
}
