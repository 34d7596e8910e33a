package loader

import (
	"context"
	"runtime"
	"sync"
	"weak"

	"github.com/IvanBrykalov/sectionloader/dom"
	"golang.org/x/net/html"
)

// State is a placeholder's position in its load lifecycle.
type State int

const (
	// Idle is the initial state: the element carries no state marker.
	Idle State = iota
	// Loading means a load has started.
	Loading
	// Complete means the fragment was inserted.
	Complete
	// Error means the load failed and the fallback message was inserted.
	Error
)

// String returns the marker value stored on the element.
func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Complete:
		return "complete"
	case Error:
		return "error"
	default:
		return "idle"
	}
}

// Terminal reports whether s is Complete or Error.
func (s State) Terminal() bool { return s == Complete || s == Error }

// ParseState maps a marker value back to a State. Unknown or empty values
// read as Idle.
func ParseState(v string) State {
	switch v {
	case "loading":
		return Loading
	case "complete":
		return Complete
	case "error":
		return Error
	default:
		return Idle
	}
}

// next reports whether cur may move to to.
func (s State) next(to State) bool {
	switch s {
	case Idle:
		return to == Loading
	case Loading:
		return to.Terminal()
	default:
		return false
	}
}

// machine records per-element states as attributes and notifies observers.
// mu makes "read state, then subscribe" atomic with respect to transitions.
// Elements are keyed weakly so that registrations never keep a removed
// placeholder alive.
type machine struct {
	mu        sync.Mutex
	listeners map[weak.Pointer[html.Node]][]*listener
	seq       uint64

	// loading holds the elements this machine moved to Loading and that
	// have not yet reached a terminal state.
	loading map[weak.Pointer[html.Node]]struct{}
}

type listener struct {
	id uint64
	fn func(State)
}

func newMachine() *machine {
	return &machine{
		listeners: make(map[weak.Pointer[html.Node]][]*listener),
		loading:   make(map[weak.Pointer[html.Node]]struct{}),
	}
}

// state reads el's current state from its marker attribute.
func (m *machine) state(doc *dom.Document, el *html.Node) State {
	v, _ := doc.Attr(el, AttrState)
	return ParseState(v)
}

// applyLocked writes st if the transition is allowed. m.mu must be held.
func (m *machine) applyLocked(doc *dom.Document, el *html.Node, st State) bool {
	if !m.state(doc, el).next(st) {
		return false
	}
	doc.SetAttr(el, AttrState, st.String())
	wp := weak.Make(el)
	if st == Loading {
		m.loading[wp] = struct{}{}
	} else {
		delete(m.loading, wp)
	}
	return true
}

// set moves el to st, writing the marker, then calls el's listeners
// synchronously in registration order. It returns false, changing nothing,
// if the transition would go backwards or leave a terminal state.
func (m *machine) set(doc *dom.Document, el *html.Node, st State) bool {
	m.mu.Lock()
	ok := m.applyLocked(doc, el, st)
	m.mu.Unlock()
	if ok {
		m.notify(el, st)
	}
	return ok
}

// begin moves el to Loading without calling listeners, so that callers can
// claim elements under their own lock. notify(el, Loading) must follow.
func (m *machine) begin(doc *dom.Document, el *html.Node) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.applyLocked(doc, el, Loading)
}

// notify calls el's current listeners with st, outside m.mu.
func (m *machine) notify(el *html.Node, st State) {
	m.mu.Lock()
	ls := append([]*listener(nil), m.listeners[weak.Make(el)]...)
	m.mu.Unlock()

	for _, l := range ls {
		l.fn(st)
	}
}

// subscribeLocked registers fn for el's future transitions. m.mu must be held.
func (m *machine) subscribeLocked(el *html.Node, fn func(State)) (cancel func()) {
	wp := weak.Make(el)
	m.seq++
	l := &listener{id: m.seq, fn: fn}
	m.listeners[wp] = append(m.listeners[wp], l)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		ls := m.listeners[wp]
		for i, x := range ls {
			if x.id == l.id {
				ls = append(ls[:i:i], ls[i+1:]...)
				break
			}
		}
		if len(ls) == 0 {
			delete(m.listeners, wp)
		} else {
			m.listeners[wp] = ls
		}
	}
}

// subscribe registers fn to be called after each of el's transitions. If
// el is collected while still subscribed, its listeners are dropped.
func (m *machine) subscribe(el *html.Node, fn func(State)) (cancel func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	runtime.AddCleanup(el, m.forget, weak.Make(el))
	return m.subscribeLocked(el, fn)
}

func (m *machine) forget(wp weak.Pointer[html.Node]) {
	m.mu.Lock()
	delete(m.listeners, wp)
	delete(m.loading, wp)
	m.mu.Unlock()
}

// await blocks until el is terminal or ctx is done. An element whose
// non-terminal marker was not written by this machine will never move, so
// await returns foreign=true for it instead of waiting.
func (m *machine) await(ctx context.Context, doc *dom.Document, el *html.Node) (foreign bool, err error) {
	m.mu.Lock()
	if m.state(doc, el).Terminal() {
		m.mu.Unlock()
		return false, nil
	}
	if _, ok := m.loading[weak.Make(el)]; !ok {
		m.mu.Unlock()
		return true, nil
	}
	done := make(chan struct{})
	var once sync.Once
	cancel := m.subscribeLocked(el, func(st State) {
		if st.Terminal() {
			once.Do(func() { close(done) })
		}
	})
	m.mu.Unlock()
	defer cancel()

	select {
	case <-done:
		return false, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

// pending returns the number of elements with registered listeners.
func (m *machine) pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.listeners)
}
