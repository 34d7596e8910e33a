// Command fragserve proxies an upstream site and serves its pages with every
// section placeholder already loaded. One Loader is shared by all requests,
// so fragments are fetched once per cache period across the whole site.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/IvanBrykalov/sectionloader/fetch"
	"github.com/IvanBrykalov/sectionloader/internal/logging"
	"github.com/IvanBrykalov/sectionloader/loader"
	pmet "github.com/IvanBrykalov/sectionloader/metrics/prom"
	"github.com/IvanBrykalov/sectionloader/settings"
	opentracing "github.com/opentracing/opentracing-go"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/zoobzio/capitan"
)

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		addr       = flag.String("addr", "", "listen address (overrides server.addr)")
		upstream   = flag.String("upstream", "", "upstream origin (overrides server.upstream)")
	)
	flag.Parse()

	log := logging.New(os.Stderr, logging.ProfileRuntime)

	cfg, err := LoadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("config")
	}
	if *addr != "" {
		cfg.Server.Addr = *addr
	}
	if *upstream != "" {
		cfg.Server.Upstream = *upstream
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal().Err(err).Msg("fragserve")
	}
}

func run(ctx context.Context, cfg Config, log zerolog.Logger) error {
	origin, timeout, err := cfg.Validate()
	if err != nil {
		return err
	}

	metrics := pmet.New(nil, "sectionloader", nil)
	client := &http.Client{Timeout: 30 * time.Second}

	l, err := loader.New(loader.Options{
		Fetcher: &fetch.Client{
			HTTP:    client,
			BaseURL: origin,
			Header:  http.Header{"User-Agent": []string{"fragserve"}},
			Logger:  log,
		},
		Reloader:      lifecycleReloader(log),
		Emitter:       loader.CapitanEmitter{},
		Global:        cfg.Settings,
		FetchTimeout:  timeout,
		MaxConcurrent: cfg.Loader.MaxConcurrent,
		CacheShards:   cfg.Loader.CacheShards,
		Logger:        log,
		Metrics:       metrics,
		CacheMetrics:  metrics,
		Tracer:        opentracing.GlobalTracer(),
	})
	if err != nil {
		return err
	}
	defer capitan.Shutdown()
	observe(log)

	if path := cfg.Loader.SettingsFile; path != "" {
		if err := watchSettings(ctx, l, cfg.Settings, path, log); err != nil {
			return err
		}
	}

	if cfg.Server.MetricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		go func() {
			log.Info().Str("addr", cfg.Server.MetricsAddr).Msg("metrics: serving")
			log.Err(http.ListenAndServe(cfg.Server.MetricsAddr, mux)).Msg("metrics: stopped")
		}()
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           &proxy{upstream: origin, client: client, loader: l, log: log},
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", srv.Addr).Str("upstream", origin.String()).Msg("serving")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	log.Info().Msg("shutting down")
	return srv.Shutdown(shutdownCtx)
}

// watchSettings loads the operator settings file over base and keeps the
// loader's global layer in sync with it.
func watchSettings(ctx context.Context, l *loader.Loader, base settings.Settings, path string, log zerolog.Logger) error {
	s, err := settings.LoadFile(path)
	if err != nil {
		return err
	}
	l.SetGlobal(settings.Merge(base, s))

	return settings.Watch(ctx, path, func(s settings.Settings, err error) {
		if err != nil {
			log.Error().Err(err).Str("path", path).Msg("settings reload failed; keeping previous settings")
			return
		}
		l.SetGlobal(settings.Merge(base, s))
		log.Info().Str("path", path).Dur("cache_duration", l.Global().CacheDuration()).Msg("settings reloaded")
	})
}

// observe logs loader transitions delivered through capitan.
func observe(log zerolog.Logger) {
	capitan.Hook(loader.StateChanged, func(_ context.Context, e *capitan.Event) {
		src, _ := loader.KeySource.From(e)
		st, _ := loader.KeyState.From(e)
		log.Debug().Str("source", src).Str("state", st).Msg("placeholder transition")
	})
	capitan.Hook(loader.Ready, func(context.Context, *capitan.Event) {
		log.Debug().Msg("page ready")
	})
}
