package redis

import "strings"

const (
	// KeyPrefix namespaces every key written by this service
	KeyPrefix = "charge:"
	// DefaultTokenKey is the cache key used when none is configured
	DefaultTokenKey = KeyPrefix + "keystone:token"
)

// TokenKey returns the Redis key for a configured cache key.
// Keys already carrying KeyPrefix are used as is.
func TokenKey(key string) string {
	if key == "" {
		return DefaultTokenKey
	}
	if strings.HasPrefix(key, KeyPrefix) {
		return key
	}
	return KeyPrefix + key
}
