package util

import "testing"

func TestShardCount(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 17: 32, 64: 64, 255: 256, 1000: MaxShards}
	for in, want := range cases {
		if got := ShardCount(in); got != want {
			t.Fatalf("ShardCount(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestShardIndex_InRange(t *testing.T) {
	for _, shards := range []int{1, 2, 8, 16} {
		for _, key := range []string{"", "/a", "/a #b", "/very/long/path .x"} {
			idx := ShardIndex(Fnv64a(key), shards)
			if idx < 0 || idx >= shards {
				t.Fatalf("ShardIndex(%q, %d) = %d out of range", key, shards, idx)
			}
		}
	}
}

func TestFnv64a_StableForEqualKeys(t *testing.T) {
	if Fnv64a("/page-a #content") != Fnv64a("/page-a #content") {
		t.Fatal("equal keys must hash equally")
	}
	if Fnv64a("/page-a") == Fnv64a("/page-b") {
		t.Fatal("distinct keys unexpectedly collide")
	}
}

func TestShardCount_Auto(t *testing.T) {
	for _, in := range []int{0, -3} {
		n := ShardCount(in)
		if n < 1 || n > MaxShards || n&(n-1) != 0 {
			t.Fatalf("ShardCount(%d) = %d, want a power of two", in, n)
		}
	}
}
