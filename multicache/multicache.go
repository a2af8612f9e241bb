// Package multicache lets several volley.Cache tiers stand in for one,
// cascading through them on a miss and promoting a found entry back up to
// every faster tier ahead of it.
package multicache

import (
	"fmt"

	"github.com/volleygo/volley"
)

// MultiCache chains Cache tiers ordered from fastest/smallest (first) to
// slowest/largest (last) — e.g. an in-process entry cache in front of the
// on-disk Store. It is a local, single-process fan-out: unlike the backends
// it replaces, no tier here talks to a remote store, so it doesn't
// reintroduce the cross-process cache sharing the pipeline rules out.
type MultiCache struct {
	tiers []volley.Cache
}

// New builds a MultiCache over tiers, ordered fastest first. Returns an
// error if fewer than two tiers are given (one tier is just that tier) or
// any tier is nil.
func New(tiers ...volley.Cache) (*MultiCache, error) {
	if len(tiers) < 2 {
		return nil, fmt.Errorf("multicache: need at least 2 tiers, got %d", len(tiers))
	}
	for i, t := range tiers {
		if t == nil {
			return nil, fmt.Errorf("multicache: tier %d is nil", i)
		}
	}
	return &MultiCache{tiers: tiers}, nil
}

// Get searches each tier in order and promotes a hit found in a slower tier
// back up to every faster tier ahead of it.
func (c *MultiCache) Get(key string) (*volley.CacheEntry, bool) {
	for i, tier := range c.tiers {
		entry, ok := tier.Get(key)
		if !ok {
			continue
		}
		c.promoteToFasterTiers(key, entry, i)
		return entry, true
	}
	return nil, false
}

// Put writes entry to every tier, so a later Get can be satisfied by any of
// them independently of which tier most recently saw a write.
func (c *MultiCache) Put(key string, entry *volley.CacheEntry) error {
	for i, tier := range c.tiers {
		if err := tier.Put(key, entry); err != nil {
			return fmt.Errorf("multicache: tier %d: %w", i, err)
		}
	}
	return nil
}

func (c *MultiCache) Remove(key string) error {
	for i, tier := range c.tiers {
		if err := tier.Remove(key); err != nil {
			return fmt.Errorf("multicache: tier %d: %w", i, err)
		}
	}
	return nil
}

func (c *MultiCache) Invalidate(key string, fullExpire bool) error {
	for i, tier := range c.tiers {
		if err := tier.Invalidate(key, fullExpire); err != nil {
			return fmt.Errorf("multicache: tier %d: %w", i, err)
		}
	}
	return nil
}

func (c *MultiCache) Clear() error {
	for i, tier := range c.tiers {
		if err := tier.Clear(); err != nil {
			return fmt.Errorf("multicache: tier %d: %w", i, err)
		}
	}
	return nil
}

// promoteToFasterTiers best-effort writes entry to every tier faster than
// foundAtTier. A promotion failure doesn't fail the Get that triggered it —
// the entry was still found.
func (c *MultiCache) promoteToFasterTiers(key string, entry *volley.CacheEntry, foundAtTier int) {
	for i := 0; i < foundAtTier; i++ {
		_ = c.tiers[i].Put(key, entry)
	}
}

var _ volley.Cache = (*MultiCache)(nil)
