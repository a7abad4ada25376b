package config

import (
	"fmt"
)

type CacheKeyStruct struct{}

func NewCacheKeyStruct() *CacheKeyStruct {
	return &CacheKeyStruct{}
}

// IdentityKey returns the Redis hash holding a device's cached identity flags.
func (r *CacheKeyStruct) IdentityKey(deviceID string) string {
	return fmt.Sprintf("portal:%s:identity", deviceID)
}

// ResourceListKey returns the cache key for one fetched list of a resource.
func (r *CacheKeyStruct) ResourceListKey(resource, query string) string {
	return fmt.Sprintf("portal:list:%s:%s", resource, query)
}

// ResourcePrefix returns the prefix shared by every cached list of a resource.
func (r *CacheKeyStruct) ResourcePrefix(resource string) string {
	return fmt.Sprintf("portal:list:%s:", resource)
}

var CacheKey = NewCacheKeyStruct()
