package plugin

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Leases hands out one exclusive lease per slug. Operations on different
// slugs never wait on each other.
type Leases struct {
	mu    sync.Mutex
	slots map[string]*leaseSlot
}

type leaseSlot struct {
	sem  *semaphore.Weighted
	refs int
}

// NewLeases creates an empty lease table.
func NewLeases() *Leases {
	return &Leases{slots: make(map[string]*leaseSlot)}
}

// Acquire blocks until the slug's lease is free or ctx is done. The returned
// release func must be called exactly once.
func (l *Leases) Acquire(ctx context.Context, slug string) (release func(), err error) {
	l.mu.Lock()
	slot, ok := l.slots[slug]
	if !ok {
		slot = &leaseSlot{sem: semaphore.NewWeighted(1)}
		l.slots[slug] = slot
	}
	slot.refs++
	l.mu.Unlock()

	if err := slot.sem.Acquire(ctx, 1); err != nil {
		l.unref(slug, slot)
		return nil, err
	}
	var once sync.Once
	return func() {
		once.Do(func() {
			slot.sem.Release(1)
			l.unref(slug, slot)
		})
	}, nil
}

func (l *Leases) unref(slug string, slot *leaseSlot) {
	l.mu.Lock()
	defer l.mu.Unlock()
	slot.refs--
	if slot.refs == 0 {
		delete(l.slots, slug)
	}
}

// Held reports how many slugs currently have a holder or waiter.
func (l *Leases) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.slots)
}
