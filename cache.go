package volley

// Cache is the storage contract the Cache Dispatcher relies on (§4.4). A
// *diskcache.Store satisfies this interface structurally; tests substitute
// an in-memory fake.
type Cache interface {
	Get(key string) (*CacheEntry, bool)
	Put(key string, entry *CacheEntry) error
	Remove(key string) error
	Invalidate(key string, fullExpire bool) error
	Clear() error
}
