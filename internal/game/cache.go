package game

import (
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// cache is a key-value store for assembled question payloads. Questions are
// immutable for the process lifetime, so a payload is built once and reused
// for every client it is served to. Entries do not expire.
type cache struct {
	instance *gocache.Cache
}

func newCache() *cache {
	return &cache{instance: gocache.New(gocache.NoExpiration, 10*time.Minute)}
}

func (c *cache) put(key string, value interface{}) {
	c.instance.Set(key, value, gocache.NoExpiration)
}

// get fetches a value from the cache, returning the value as well as whether
// or not the value was found (semantics similar to map).
func (c *cache) get(key string) (interface{}, bool) {
	return c.instance.Get(key)
}
