package cache

import "sync"

var _ Cache = (*MirrorTestCache)(nil)

type MirrorTestCache struct {
	cache map[string]any
	mutex sync.Mutex
}

func NewMirrorTestCache() *MirrorTestCache {
	return &MirrorTestCache{
		cache: make(map[string]any),
	}
}

func (mtc *MirrorTestCache) Get(key string) (any, bool) {
	mtc.mutex.Lock()
	defer mtc.mutex.Unlock()

	val, ok := mtc.cache[key]
	return val, ok
}

func (mtc *MirrorTestCache) Set(key string, value any, _ int64) bool {
	mtc.mutex.Lock()
	defer mtc.mutex.Unlock()

	mtc.cache[key] = value
	return true
}

func (mtc *MirrorTestCache) Del(key string) {
	mtc.mutex.Lock()
	defer mtc.mutex.Unlock()

	delete(mtc.cache, key)
}

func (mtc *MirrorTestCache) Clear() {
	mtc.mutex.Lock()
	defer mtc.mutex.Unlock()

	mtc.cache = make(map[string]any)
}

func (mtc *MirrorTestCache) Len() int {
	mtc.mutex.Lock()
	defer mtc.mutex.Unlock()

	return len(mtc.cache)
}
