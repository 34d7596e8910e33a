package loader

import (
	"runtime"
	"sync"
	"weak"

	"golang.org/x/net/html"
)

// instances associates placeholders with their Instance without keeping the
// placeholders alive. When a node is collected its entry is dropped by a
// runtime cleanup; until then a lookup for it still hits.
type instances struct {
	mu sync.Mutex
	m  map[weak.Pointer[html.Node]]Instance
}

func newInstances() *instances {
	return &instances{m: make(map[weak.Pointer[html.Node]]Instance)}
}

func (t *instances) set(el *html.Node, inst Instance) {
	wp := weak.Make(el)
	t.mu.Lock()
	_, seen := t.m[wp]
	t.m[wp] = inst
	t.mu.Unlock()
	if !seen {
		runtime.AddCleanup(el, t.drop, wp)
	}
}

func (t *instances) get(el *html.Node) (Instance, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	inst, ok := t.m[weak.Make(el)]
	return inst, ok
}

func (t *instances) drop(wp weak.Pointer[html.Node]) {
	t.mu.Lock()
	delete(t.m, wp)
	t.mu.Unlock()
}

func (t *instances) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.m)
}
