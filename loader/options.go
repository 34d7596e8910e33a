package loader

import (
	"time"

	"github.com/IvanBrykalov/sectionloader/cache"
	"github.com/IvanBrykalov/sectionloader/settings"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/rs/zerolog"
	"github.com/zoobzio/clockz"
)

// Markup conventions recognised by the loader.
const (
	// AttrPlugin with value PluginLoad marks an element as a placeholder.
	AttrPlugin = "data-wm-plugin"
	PluginLoad = "load"

	// AttrSource holds "<url> [selector...]"; AttrLegacySource is read when
	// AttrSource is absent or blank.
	AttrSource       = "data-source"
	AttrLegacySource = "data-target"

	// AttrState is the state marker; its absence means Idle.
	AttrState = "data-loading-state"

	// AttrFullWidth is set to "true" on placeholders inside a full-bleed section.
	AttrFullWidth = "data-is-full-width"

	ClassContainer = "wm-load-container"
	ClassSection   = "page-section"
	ClassFullBleed = "background-width--full-bleed"

	// DefaultContainer is fetched when the source names no selector.
	DefaultContainer = "#sections"

	// ErrorMarkup replaces a placeholder's content when its load fails.
	ErrorMarkup = "<p>Error loading content</p>"
)

var (
	discoverSelector  = `[` + AttrPlugin + `="` + PluginLoad + `"]:not([` + AttrState + `])`
	processedSelector = `[` + AttrPlugin + `="` + PluginLoad + `"][` + AttrState + `]`
)

// Options configures a Loader. Zero values are safe;
// sane defaults are applied in New():
//   - nil Reloader => NopReloader
//   - nil Emitter  => NopEmitter
//   - nil Metrics  => NoopMetrics
//   - nil Tracer   => opentracing.NoopTracer
//   - nil Clock    => clockz.RealClock
//   - nil Defaults => settings.Defaults()
type Options struct {
	// Fetcher performs network fetches. Required.
	Fetcher Fetcher

	// Reloader re-runs lifecycle hooks after every run.
	Reloader Reloader

	// Emitter receives beforeInit/afterInit/ready/stateChange.
	Emitter Emitter

	// Defaults is the bottom settings layer; Global sits above it and the
	// placeholder's own attributes on top. Global can be swapped later with
	// SetGlobal.
	Defaults settings.Settings
	Global   settings.Settings

	// FetchTimeout bounds each shared network fetch (0 = no limit beyond
	// the Fetcher's own transport).
	FetchTimeout time.Duration

	// MaxConcurrent caps the number of placeholders loading at once within
	// one run (0 = unlimited).
	MaxConcurrent int

	// CacheShards is passed to the cache store (0 = auto).
	CacheShards int

	// Observability
	Logger       zerolog.Logger
	Metrics      Metrics
	CacheMetrics cache.Metrics
	Tracer       opentracing.Tracer

	// Clock drives cache timestamps and validity (tests use clockz.FakeClock).
	Clock clockz.Clock
}
