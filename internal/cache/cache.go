// Package cache holds the local program mirror.
package cache

type Cache interface {
	Get(key string) (any, bool)
	Set(key string, value any, cost int64) bool
	Del(key string)
	Clear()
}
