package cache

import (
	"math/rand"
	"runtime"
	"strconv"
	"sync"
	"testing"
	"time"
)

// A mixed workload of concurrent Put/Lookup/Get on random source keys.
// Should pass under `-race` without detector reports.
func TestRace_Basic(t *testing.T) {
	s := New[string, []byte](Options{Shards: 32})

	workers := 4 * runtime.GOMAXPROCS(0)
	keyspace := 5_000
	deadline := time.Now().Add(500 * time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(workers)
	for w := 0; w < workers; w++ {
		go func(id int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(id)*9973))
			for time.Now().Before(deadline) {
				k := "/page-" + strconv.Itoa(r.Intn(keyspace))
				switch r.Intn(100) {
				case 0, 1, 2, 3, 4, 5, 6, 7, 8, 9: // ~10% - Put
					s.Put(k, []byte("x"), s.Now())
				case 10, 11, 12, 13, 14: // ~5% - Get
					s.Get(k)
				default: // ~85% - Lookup
					s.Lookup(k, time.Duration(r.Intn(10))*time.Millisecond)
				}
			}
		}(w)
	}
	wg.Wait()

	if s.Len() > keyspace {
		t.Fatalf("Len %d exceeds keyspace %d", s.Len(), keyspace)
	}
}
