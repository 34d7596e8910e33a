// Package loader is the section-loading coordinator. It finds placeholder
// elements in a dom.Document, fetches a replacement HTML fragment for each,
// splices the fragments in, and reports when every placeholder has resolved.
//
// Design
//
//   - State machine: each placeholder moves Idle → Loading → Complete|Error,
//     recorded as the data-loading-state attribute. Transitions never go
//     backwards. Per-element listeners (Subscribe) are called synchronously
//     in registration order, then the process-wide Emitter.
//
//   - Cache: fetched fragments are kept in a cache.Store keyed by the full
//     source string ("<url> [selector]") and served while younger than the
//     placeholder's cacheDuration (minutes). Entries are detached trees that
//     are cloned on every insertion.
//
//   - De-duplication: concurrent loads of one source share a single fetch
//     through internal/singleflight. The slot is released as soon as the
//     fetch settles, so a failure is retried by the next run.
//
//   - Barrier: Init loads all new placeholders concurrently, then waits for
//     every marked placeholder in the document to be Complete or Error before
//     running the Reloader and emitting afterInit and ready.
//
//   - Settings: defaults ← Options.Global (swappable with SetGlobal) ← the
//     placeholder's data attributes, deep-merged by package settings and kept
//     in a side table that does not keep removed elements alive.
//
// Basic usage
//
//	l, err := loader.New(loader.Options{
//	    Fetcher: &fetch.Client{BaseURL: base},
//	    Emitter: loader.CapitanEmitter{},
//	})
//	doc, _ := dom.Parse(r)
//	err = l.Init(ctx, doc, nil)
//	_ = doc.Render(w)
package loader
