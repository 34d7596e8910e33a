// Command bench runs a synthetic page workload against a Loader and exposes optional pprof/Prometheus endpoints.
package main

import (
	"context"
	"flag"
	"fmt"
	"math/rand"
	"net/http"
	_ "net/http/pprof" // registers /debug/pprof/* on DefaultServeMux
	"os"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/IvanBrykalov/sectionloader/dom"
	"github.com/IvanBrykalov/sectionloader/fetch"
	"github.com/IvanBrykalov/sectionloader/internal/logging"
	"github.com/IvanBrykalov/sectionloader/loader"
	pmet "github.com/IvanBrykalov/sectionloader/metrics/prom"
	"github.com/IvanBrykalov/sectionloader/settings"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/net/html"
)

// counted wraps the Prometheus adapter so the final report can show loader
// totals without scraping.
type counted struct {
	*pmet.Adapter
	fetches, coalesced atomic.Uint64
}

func (c *counted) FetchStarted()   { c.fetches.Add(1); c.Adapter.FetchStarted() }
func (c *counted) FetchCoalesced() { c.coalesced.Add(1); c.Adapter.FetchCoalesced() }

func main() {
	// ---- Flags ----
	var (
		shards = flag.Int("shards", 0, "number of cache shards (0=auto)")

		workers  = flag.Int("workers", 2*runtime.GOMAXPROCS(0), "number of worker goroutines")
		duration = flag.Duration("duration", 10*time.Second, "benchmark duration")
		perPage  = flag.Int("placeholders", 8, "placeholders per generated page")
		limit    = flag.Int("concurrency", 0, "max concurrent loads per page (0=unlimited)")

		pages    = flag.Int("pages", 1_000, "number of distinct remote pages")
		latency  = flag.Duration("latency", 5*time.Millisecond, "simulated fetch latency")
		failPct  = flag.Int("fail", 0, "percentage of sources pointing at missing pages [0..100]")
		cacheMin = flag.Float64("cache_minutes", settings.DefaultCacheMinutes, "cache duration in minutes")

		zipfS = flag.Float64("zipf_s", 1.1, "Zipf s > 1 (skew)")
		zipfV = flag.Float64("zipf_v", 1.0, "Zipf v")
		seed  = flag.Int64("seed", time.Now().UnixNano(), "random seed")

		pprofAddr   = flag.String("pprof", "", "serve pprof at addr (e.g. :6060); empty = disabled")
		metricsAddr = flag.String("http", ":8080", "serve Prometheus metrics at addr")
	)
	flag.Parse()

	log := logging.New(os.Stderr, logging.ProfileRuntime)

	// ---- pprof server (on DefaultServeMux) ----
	if *pprofAddr != "" {
		go func() {
			log.Info().Str("addr", *pprofAddr).Msg("pprof: serving")
			log.Err(http.ListenAndServe(*pprofAddr, nil)).Msg("pprof: stopped")
		}()
	}

	// ---- Prometheus metrics (on DefaultServeMux) ----
	metrics := &counted{Adapter: pmet.New(nil, "sectionloader", nil)}
	http.Handle("/metrics", promhttp.Handler())
	go func() {
		log.Info().Str("addr", *metricsAddr).Msg("metrics: serving")
		log.Err(http.ListenAndServe(*metricsAddr, nil)).Msg("metrics: stopped")
	}()

	// ---- Remote pages ----
	docs := make(map[string]string, *pages)
	for i := 0; i < *pages; i++ {
		docs["/p/"+strconv.Itoa(i)] = remotePage(i)
	}
	remote, err := fetch.NewPages(docs)
	if err != nil {
		log.Fatal().Err(err).Msg("build pages")
	}
	lat := *latency
	fetcher := loader.FetcherFunc(func(ctx context.Context, url, selector string) (*html.Node, error) {
		select {
		case <-time.After(lat):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return remote.Fetch(ctx, url, selector)
	})

	// ---- Build loader ----
	l, err := loader.New(loader.Options{
		Fetcher:       fetcher,
		Global:        settings.Settings{settings.KeyCacheDuration: *cacheMin},
		MaxConcurrent: *limit,
		CacheShards:   *shards,
		Logger:        log.Level(loaderLevel(log.GetLevel())),
		Metrics:       metrics,
		CacheMetrics:  metrics,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("build loader")
	}

	// ---- Snapshot flags for goroutines ----
	pagesMax := uint64(*pages - 1)
	seedBase := *seed
	zipfSVal := *zipfS
	zipfVVal := *zipfV
	failPctVal := *failPct
	perPageN := *perPage
	workersN := *workers
	if workersN <= 0 {
		workersN = 1
	}

	// ---- Load generation ----
	var runs, placeholders, failed, complete uint64
	ctx, cancel := context.WithTimeout(context.Background(), *duration)
	defer cancel()

	start := time.Now()
	var wg sync.WaitGroup
	wg.Add(workersN)
	for w := 0; w < workersN; w++ {
		go func(id int) {
			defer wg.Done()

			// Each worker gets its own RNG + Zipf (rand.Rand is NOT goroutine-safe).
			localR := rand.New(rand.NewSource(seedBase + int64(id)*9973))
			localZipf := rand.NewZipf(localR, zipfSVal, zipfVVal, pagesMax)

			sourceByZipf := func() string {
				if int(localR.Int31n(100)) < failPctVal {
					return "/missing/" + strconv.Itoa(localR.Intn(100))
				}
				src := "/p/" + strconv.FormatUint(localZipf.Uint64(), 10)
				if localR.Intn(2) == 0 {
					src += " #hero"
				}
				return src
			}

			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				var b strings.Builder
				b.WriteString("<html><body>")
				for i := 0; i < perPageN; i++ {
					fmt.Fprintf(&b, `<div data-wm-plugin="load" data-source="%s"></div>`, sourceByZipf())
				}
				b.WriteString("</body></html>")

				doc, err := dom.ParseString(b.String())
				if err != nil {
					log.Fatal().Err(err).Msg("parse page")
				}
				// Runs are allowed to finish after the deadline so every
				// placeholder is counted.
				if err := l.Init(context.WithoutCancel(ctx), doc, nil); err != nil {
					log.Error().Err(err).Msg("init")
					continue
				}

				atomic.AddUint64(&runs, 1)
				for _, el := range doc.Query(`[data-wm-plugin="load"]`) {
					atomic.AddUint64(&placeholders, 1)
					switch l.State(doc, el) {
					case loader.Complete:
						atomic.AddUint64(&complete, 1)
					case loader.Error:
						atomic.AddUint64(&failed, 1)
					}
				}
			}
		}(w)
	}
	wg.Wait()
	elapsed := time.Since(start)

	// ---- Report ----
	runsN := atomic.LoadUint64(&runs)
	placeholdersN := atomic.LoadUint64(&placeholders)
	stats := l.CacheStats()

	fmt.Printf("pages=%d placeholders/page=%d workers=%d latency=%v cache=%.2fm dur=%v seed=%d\n",
		*pages, perPageN, workersN, lat, *cacheMin, elapsed, seedBase)
	fmt.Printf("runs=%d (%.0f runs/s)  placeholders=%d  complete=%d  error=%d\n",
		runsN, float64(runsN)/elapsed.Seconds(), placeholdersN,
		atomic.LoadUint64(&complete), atomic.LoadUint64(&failed))
	fmt.Printf("fetches=%d  coalesced=%d  cache hits=%d  misses=%d  stale=%d  hit-rate=%.2f%%\n",
		metrics.fetches.Load(), metrics.coalesced.Load(),
		stats.Hits, stats.Misses, stats.Stale, stats.HitRate()*100)
}

// remotePage is the markup served for page i.
func remotePage(i int) string {
	return fmt.Sprintf(`<html><body>
<div id="hero"><h1>Page %[1]d</h1></div>
<div id="sections">
  <section class="page-section">%[1]d-a</section>
  <section class="page-section">%[1]d-b</section>
</div>
</body></html>`, i)
}

// loaderLevel silences the loader's per-fragment logging unless the operator
// asked for debug output.
func loaderLevel(l zerolog.Level) zerolog.Level {
	if l < zerolog.WarnLevel {
		return l
	}
	return zerolog.Disabled
}
