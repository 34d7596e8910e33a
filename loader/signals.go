package loader

import (
	"context"

	"github.com/zoobzio/capitan"
	"golang.org/x/net/html"
)

// Signal names a loader event.
type Signal string

// Loader signals.
const (
	SignalBeforeInit  Signal = "beforeInit"
	SignalAfterInit   Signal = "afterInit"
	SignalReady       Signal = "ready"
	SignalStateChange Signal = "stateChange"
)

// Event is the payload of a signal. Only SignalStateChange fills it in.
type Event struct {
	Element *html.Node
	Source  string
	State   State
}

// Emitter is the process-wide event sink. Emit is called synchronously on
// the goroutine that caused the event.
type Emitter interface {
	Emit(ctx context.Context, sig Signal, ev Event)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ctx context.Context, sig Signal, ev Event)

// Emit calls f.
func (f EmitterFunc) Emit(ctx context.Context, sig Signal, ev Event) { f(ctx, sig, ev) }

// NopEmitter discards every event.
type NopEmitter struct{}

// Emit implements Emitter.
func (NopEmitter) Emit(context.Context, Signal, Event) {}

// Capitan signals mirroring the loader signals.
var (
	// InitStarted is emitted before placeholders are loaded.
	InitStarted = capitan.NewSignal(
		"sectionloader.init.before",
		"Section loader run started",
	)

	// InitFinished is emitted after finalization.
	InitFinished = capitan.NewSignal(
		"sectionloader.init.after",
		"Section loader run finished",
	)

	// Ready is emitted once every placeholder of a run is terminal.
	Ready = capitan.NewSignal(
		"sectionloader.ready",
		"All placeholders resolved",
	)

	// StateChanged is emitted on every placeholder transition.
	StateChanged = capitan.NewSignal(
		"sectionloader.state.changed",
		"Placeholder state transition",
	)
)

// Field keys for capitan events.
var (
	// KeySource is the placeholder's source attribute.
	KeySource = capitan.NewStringKey("source")

	// KeyState is the placeholder's new state.
	KeyState = capitan.NewStringKey("state")
)

// CapitanEmitter forwards loader signals to capitan. Capitan hooks run on
// capitan's own workers, so observers must not assume ordering with the
// loader's goroutines.
type CapitanEmitter struct{}

// Emit implements Emitter.
func (CapitanEmitter) Emit(ctx context.Context, sig Signal, ev Event) {
	switch sig {
	case SignalBeforeInit:
		capitan.Emit(ctx, InitStarted)
	case SignalAfterInit:
		capitan.Emit(ctx, InitFinished)
	case SignalReady:
		capitan.Emit(ctx, Ready)
	case SignalStateChange:
		capitan.Emit(ctx, StateChanged,
			KeySource.Field(ev.Source),
			KeyState.Field(ev.State.String()),
		)
	}
}

var (
	_ Emitter = NopEmitter{}
	_ Emitter = CapitanEmitter{}
)
