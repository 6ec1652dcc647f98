// Package adapter implements C4: the source-adapter contract, the
// discovery registry, and the framework-provided publish helper every
// concrete adapter in internal/adapter/sources shares.
//
// The original platform discovers adapters by scanning a directory for
// files matching `<source>_adapter.py` and instantiating the class that
// matches the naming convention (adapters/registry.py). Go has no
// runtime module scan, so the convention is preserved at the source
// level instead: one file per source under internal/adapter/sources
// named `<source>.go` exporting a `New<Source>Adapter(...) *<Source>Adapter`
// constructor, and discovery becomes an explicit Register call made by
// the daemon's wiring code rather than a filesystem walk. A bad adapter
// still can't abort the process: Register only panics on a duplicate
// source name, a programmer error caught at startup, not at runtime.
package adapter

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/stdin/venezuelawatch/internal/domain"
	verrors "github.com/stdin/venezuelawatch/internal/errors"
)

// RawRecord is one element of a fetch's raw batch, in whatever shape
// the source's wire format uses. transform() picks fields out of it by
// key, matching the original adapters' dict-based raw events.
type RawRecord map[string]any

// TransformFailure records a single raw record transform skipped
// rather than aborting the whole batch: a bad record is skipped and
// logged, not thrown.
type TransformFailure struct {
	Record RawRecord
	Reason string
}

// Source is the C4 contract every concrete adapter implements.
type Source interface {
	// SourceName is the adapter's unique tag, matching one of
	// domain's closed Source enum values.
	SourceName() domain.Source
	// ScheduleFrequency is a cron expression describing how often the
	// daemon's scheduler should trigger this adapter.
	ScheduleFrequency() string
	// DefaultLookbackMinutes is the window size used when no explicit
	// start time is supplied.
	DefaultLookbackMinutes() int

	// Fetch pulls raw records from the external source within the
	// half-open interval [start, end). Errors must be classified via
	// internal/errors: Transient for rate-limit/network/5xx (retryable),
	// Permanent for schema/auth failures (not retryable).
	Fetch(ctx context.Context, start, end time.Time, limit int) ([]RawRecord, error)
	// Transform maps a raw batch to canonical events, skipping bad
	// records instead of failing the batch.
	Transform(raw []RawRecord) ([]domain.Event, []TransformFailure)
	// Validate runs the per-event contract check: required fields plus
	// cross-source duplicate detection.
	Validate(ctx context.Context, e *domain.Event) (bool, string)
}

// Publisher is the narrow port the publish helper enqueues valid
// events through; the concrete implementation is a thin adapter over
// internal/bus publishing to bus.TopicIngest.
type Publisher interface {
	PublishIngest(ctx context.Context, e domain.Event) error
}

// DuplicateChecker backs each adapter's validate-time cross-source
// duplicate detection: by stable source id or URL within a
// source-specific window. A nil checker disables the
// check rather than failing closed, matching gdelt_adapter.py's own
// "continue with insert on duplicate check failure" fallback.
type DuplicateChecker interface {
	SeenWithinWindow(ctx context.Context, source domain.Source, sourceEventID, sourceURL string, window time.Duration) (bool, error)
}

// EntityPrelinker optionally runs the entity pre-link pass before
// publish. Adapters that skip pre-linking leave this nil in PublishOptions.
type EntityPrelinker interface {
	Prelink(ctx context.Context, e *domain.Event) error
}

// PublishResult is the {published, failed, duplicates} count the
// framework-provided publish helper reports. Events Validate rejects with
// reason "duplicate" are counted in Duplicates, not Failed.
type PublishResult struct {
	Published  int
	Failed     int
	Duplicates int
}

// PublishOptions configures the publish helper's optional passes.
type PublishOptions struct {
	Prelinker EntityPrelinker
}

// Publish validates each event and enqueues the valid remainder to the
// ingest topic via pub. It's a shared, framework-provided helper so
// every adapter gets the same validate-then-enqueue behavior rather
// than reimplementing it.
func Publish(ctx context.Context, src Source, events []domain.Event, pub Publisher, opts PublishOptions) PublishResult {
	var result PublishResult
	for i := range events {
		e := events[i]
		ok, reason := src.Validate(ctx, &e)
		if !ok {
			if reason == "duplicate" {
				result.Duplicates++
			} else {
				result.Failed++
			}
			continue
		}
		if opts.Prelinker != nil {
			_ = opts.Prelinker.Prelink(ctx, &e)
		}
		if err := pub.PublishIngest(ctx, e); err != nil {
			result.Failed++
			continue
		}
		result.Published++
	}
	return result
}

// Health is the per-adapter run-health snapshot the registry tracks,
// matching adapters/registry.py's get_health() shape field-for-field.
type Health struct {
	LastRun         time.Time
	LastSuccess     bool
	TotalRuns       int
	SuccessfulRuns  int
	LastEventsCount int
	LastDurationMS  int64
}

// SuccessRate is SuccessfulRuns/TotalRuns, 0 when no runs have happened
// yet (matching the Python registry's `0.0 if total_runs == 0`).
func (h Health) SuccessRate() float64 {
	if h.TotalRuns == 0 {
		return 0
	}
	return float64(h.SuccessfulRuns) / float64(h.TotalRuns)
}

// Registry indexes adapters by source name and tracks their run
// health behind a sync.RWMutex-guarded map with deterministic,
// alphabetical-by-source ordering -- adapters have no priority concept
// to order by.
type Registry struct {
	mu       sync.RWMutex
	adapters map[domain.Source]Source
	health   map[domain.Source]*Health
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[domain.Source]Source),
		health:   make(map[domain.Source]*Health),
	}
}

// Register indexes src by its SourceName. A bad adapter never aborts
// process start; callers that discover one adapter
// failing to construct simply skip the Register call and log it
// themselves, so Register itself only guards against a programmer
// error: two adapters claiming the same source name.
func (r *Registry) Register(src Source) {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := src.SourceName()
	if _, exists := r.adapters[name]; exists {
		panic("adapter: duplicate source name registered: " + string(name))
	}
	r.adapters[name] = src
	r.health[name] = &Health{}
}

// Get returns the adapter registered under name, or (nil, false).
func (r *Registry) Get(name domain.Source) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	src, ok := r.adapters[name]
	return src, ok
}

// All returns every registered adapter, ordered by source name for
// deterministic iteration (scheduling, health dumps).
func (r *Registry) All() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, string(name))
	}
	sort.Strings(names)

	out := make([]Source, 0, len(names))
	for _, name := range names {
		out = append(out, r.adapters[domain.Source(name)])
	}
	return out
}

// RecordRun updates name's health after one fetch/transform/publish
// cycle, mirroring adapters/registry.py's record_run().
func (r *Registry) RecordRun(name domain.Source, success bool, eventsCount int, duration time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.health[name]
	if !ok {
		h = &Health{}
		r.health[name] = h
	}
	h.TotalRuns++
	if success {
		h.SuccessfulRuns++
	}
	h.LastRun = time.Now()
	h.LastSuccess = success
	h.LastEventsCount = eventsCount
	h.LastDurationMS = duration.Milliseconds()
}

// GetHealth returns a copy of name's current health snapshot, zero-valued
// if no run has ever been recorded.
func (r *Registry) GetHealth(name domain.Source) Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if h, ok := r.health[name]; ok {
		return *h
	}
	return Health{}
}

// Run executes one fetch/transform/publish cycle for the named
// adapter and records its health, classifying the outcome through
// internal/errors so the caller's retry/backoff logic can branch on
// Kind without re-deriving it.
func (r *Registry) Run(ctx context.Context, name domain.Source, start, end time.Time, limit int, pub Publisher, opts PublishOptions) (PublishResult, error) {
	src, ok := r.Get(name)
	if !ok {
		return PublishResult{}, verrors.New(verrors.Permanent, "adapter.run", "unknown source: "+string(name))
	}

	began := time.Now()
	raw, err := src.Fetch(ctx, start, end, limit)
	if err != nil {
		r.RecordRun(name, false, 0, time.Since(began))
		return PublishResult{}, err
	}

	events, _ := src.Transform(raw)
	result := Publish(ctx, src, events, pub, opts)
	r.RecordRun(name, result.Failed == 0, result.Published, time.Since(began))
	return result, nil
}
