package util

import (
	"math/bits"
	"runtime"
)

// MaxShards caps the shard count of a store.
const MaxShards = 256

// ShardCount normalizes a requested shard count. A non-positive request
// means 2*GOMAXPROCS. The result is a power of two in [1, MaxShards], so
// ShardIndex can mask instead of dividing.
func ShardCount(requested int) int {
	if requested <= 0 {
		requested = 2 * runtime.GOMAXPROCS(0)
	}
	if requested >= MaxShards {
		return MaxShards
	}
	if requested <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(requested-1))
}

// ShardIndex maps a 64-bit hash to one of shards buckets. shards must come
// from ShardCount.
func ShardIndex(hash uint64, shards int) int {
	return int(hash & uint64(shards-1))
}
