// Package util contains internal helpers (hashing, sharding, padding).
//revive:disable:var-naming  // allow 'util' as an internal helpers package name
package util

import (
	"fmt"
	"strconv"
)

// Fnv64a hashes store keys using 64-bit FNV-1a.
// Source strings are the common case; integer keys (used by benchmarks and
// tests) are hashed through their decimal form, and anything else must
// implement fmt.Stringer.
func Fnv64a[K comparable](k K) uint64 {
	switch v := any(k).(type) {
	case string:
		return fnv64a(v)
	case int:
		return fnv64a(strconv.Itoa(v))
	case int64:
		return fnv64a(strconv.FormatInt(v, 10))
	case uint64:
		return fnv64a(strconv.FormatUint(v, 10))
	case fmt.Stringer:
		return fnv64a(v.String())
	default:
		panic(fmt.Sprintf("util.Fnv64a: unsupported key type %T", k))
	}
}

const (
	fnvOffset64 = 1469598103934665603
	fnvPrime64  = 1099511628211
)

func fnv64a(s string) uint64 {
	h := uint64(fnvOffset64)
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}
