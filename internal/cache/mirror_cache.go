package cache

import (
	"fmt"

	"github.com/dgraph-io/ristretto"
)

var _ Cache = (*MirrorCache)(nil)

type MirrorCache struct {
	mainCache *ristretto.Cache
}

func NewMirrorCache() (*MirrorCache, error) {
	mainCache, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,     // number of keys to track frequency of (100k)
		MaxCost:     1 << 26, // maximum cost of cache (~67M)
		BufferItems: 64,      // number of keys per Get buffer
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ristretto cache: %w", err)
	}

	return &MirrorCache{
		mainCache: mainCache,
	}, nil
}

func (mc *MirrorCache) Get(key string) (any, bool) {
	return mc.mainCache.Get(key)
}

// Set waits for the value to pass the admission buffers, so a Get right after a write sees it.
func (mc *MirrorCache) Set(key string, value any, cost int64) bool {
	ok := mc.mainCache.Set(key, value, cost)
	mc.mainCache.Wait()
	return ok
}

func (mc *MirrorCache) Del(key string) {
	mc.mainCache.Del(key)
}

func (mc *MirrorCache) Clear() {
	mc.mainCache.Clear()
}

func (mc *MirrorCache) Close() {
	mc.mainCache.Close()
}
