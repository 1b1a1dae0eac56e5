package metrics

import (
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"
)

type requestLabel struct {
	method string
	path   string
	status string
}

// LookupLabel identifies a GET /gifs resolution by mode and outcome.
type LookupLabel struct {
	Mode    string
	Outcome string
}

// Recorder aggregates in-memory counters for HTTP requests, gif lookups and
// writes, authentication events and session purges. A RWMutex guards all
// maps so handlers and background workers can record concurrently.
type Recorder struct {
	mu              sync.RWMutex
	requestCount    map[requestLabel]uint64
	requestDuration map[requestLabel]time.Duration
	lookups         map[LookupLabel]uint64
	gifWrites       map[string]uint64
	authEvents      map[string]uint64
	purgeRuns       map[string]uint64
}

var (
	defaultMu       sync.RWMutex
	defaultRecorder = New()
)

func New() *Recorder {
	return &Recorder{
		requestCount:    make(map[requestLabel]uint64),
		requestDuration: make(map[requestLabel]time.Duration),
		lookups:         make(map[LookupLabel]uint64),
		gifWrites:       make(map[string]uint64),
		authEvents:      make(map[string]uint64),
		purgeRuns:       make(map[string]uint64),
	}
}

// Default returns the process-wide Recorder used by the package helpers.
func Default() *Recorder {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	return defaultRecorder
}

// SetDefault swaps the process-wide Recorder. A nil recorder is ignored.
func SetDefault(r *Recorder) {
	if r == nil {
		return
	}
	defaultMu.Lock()
	defaultRecorder = r
	defaultMu.Unlock()
}

// ObserveRequest accumulates request count and duration by method,
// normalized path and status code.
func (r *Recorder) ObserveRequest(method, path string, status int, duration time.Duration) {
	label := requestLabel{
		method: strings.ToUpper(method),
		path:   normalizePath(path),
		status: fmt.Sprintf("%d", status),
	}
	r.mu.Lock()
	r.requestCount[label]++
	r.requestDuration[label] += duration
	r.mu.Unlock()
}

// ObserveLookup counts one resolution of the gif query endpoint.
func (r *Recorder) ObserveLookup(mode, outcome string) {
	label := LookupLabel{Mode: normalizeName(mode), Outcome: normalizeName(outcome)}
	r.mu.Lock()
	r.lookups[label]++
	r.mu.Unlock()
}

// ObserveGifWrite counts a successful create, replace, update or delete.
func (r *Recorder) ObserveGifWrite(operation string) {
	r.increment(r.gifWrites, operation)
}

// ObserveAuthEvent counts login, logout and rate limit outcomes.
func (r *Recorder) ObserveAuthEvent(event string) {
	r.increment(r.authEvents, event)
}

// ObserveSessionPurge counts a purge run, split by whether it failed.
func (r *Recorder) ObserveSessionPurge(err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	r.increment(r.purgeRuns, outcome)
}

func (r *Recorder) increment(counter map[string]uint64, name string) {
	key := normalizeName(name)
	r.mu.Lock()
	counter[key]++
	r.mu.Unlock()
}

// LookupCounts returns a copy of the gif lookup counters.
func (r *Recorder) LookupCounts() map[LookupLabel]uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[LookupLabel]uint64, len(r.lookups))
	for label, count := range r.lookups {
		out[label] = count
	}
	return out
}

// AuthEventCount returns the counter for a single auth event.
func (r *Recorder) AuthEventCount(event string) uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.authEvents[normalizeName(event)]
}

// Reset clears every counter. Intended for tests.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.requestCount = make(map[requestLabel]uint64)
	r.requestDuration = make(map[requestLabel]time.Duration)
	r.lookups = make(map[LookupLabel]uint64)
	r.gifWrites = make(map[string]uint64)
	r.authEvents = make(map[string]uint64)
	r.purgeRuns = make(map[string]uint64)
}

func (r *Recorder) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		r.Write(w)
	})
}

// Write renders every counter in the Prometheus text exposition format.
func (r *Recorder) Write(w io.Writer) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	requestLabels := r.sortedRequestLabels()

	fmt.Fprintln(w, "# HELP gifapi_http_requests_total Total number of HTTP requests processed by the API")
	fmt.Fprintln(w, "# TYPE gifapi_http_requests_total counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "gifapi_http_requests_total{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP gifapi_http_request_duration_seconds_sum Cumulative duration of HTTP requests in seconds")
	fmt.Fprintln(w, "# TYPE gifapi_http_request_duration_seconds_sum counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "gifapi_http_request_duration_seconds_sum{method=\"%s\",path=\"%s\",status=\"%s\"} %f\n", label.method, label.path, label.status, r.requestDuration[label].Seconds())
	}

	fmt.Fprintln(w, "# HELP gifapi_http_request_duration_seconds_count Total number of observations for request durations")
	fmt.Fprintln(w, "# TYPE gifapi_http_request_duration_seconds_count counter")
	for _, label := range requestLabels {
		fmt.Fprintf(w, "gifapi_http_request_duration_seconds_count{method=\"%s\",path=\"%s\",status=\"%s\"} %d\n", label.method, label.path, label.status, r.requestCount[label])
	}

	fmt.Fprintln(w, "# HELP gifapi_gif_lookups_total Gif query resolutions by mode and outcome")
	fmt.Fprintln(w, "# TYPE gifapi_gif_lookups_total counter")
	for _, label := range r.sortedLookupLabels() {
		fmt.Fprintf(w, "gifapi_gif_lookups_total{mode=\"%s\",outcome=\"%s\"} %d\n", label.Mode, label.Outcome, r.lookups[label])
	}

	writeCounter(w, "gifapi_gif_writes_total", "Gif writes by operation", "operation", r.gifWrites)
	writeCounter(w, "gifapi_auth_events_total", "Authentication events by type", "event", r.authEvents)
	writeCounter(w, "gifapi_session_purges_total", "Expired session purge runs by outcome", "outcome", r.purgeRuns)
}

func writeCounter(w io.Writer, name, help, labelName string, values map[string]uint64) {
	fmt.Fprintf(w, "# HELP %s %s\n", name, help)
	fmt.Fprintf(w, "# TYPE %s counter\n", name)
	for _, key := range sortedKeys(values) {
		fmt.Fprintf(w, "%s{%s=\"%s\"} %d\n", name, labelName, key, values[key])
	}
}

func (r *Recorder) sortedRequestLabels() []requestLabel {
	labels := make([]requestLabel, 0, len(r.requestCount))
	for label := range r.requestCount {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].method != labels[j].method {
			return labels[i].method < labels[j].method
		}
		if labels[i].path != labels[j].path {
			return labels[i].path < labels[j].path
		}
		return labels[i].status < labels[j].status
	})
	return labels
}

func (r *Recorder) sortedLookupLabels() []LookupLabel {
	labels := make([]LookupLabel, 0, len(r.lookups))
	for label := range r.lookups {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool {
		if labels[i].Mode != labels[j].Mode {
			return labels[i].Mode < labels[j].Mode
		}
		return labels[i].Outcome < labels[j].Outcome
	})
	return labels
}

func sortedKeys(values map[string]uint64) []string {
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// normalizePath collapses identifier segments to ":id" so per-gif routes
// share one label set.
func normalizePath(path string) string {
	if path == "" || path == "/" {
		return "/"
	}
	parts := strings.Split(path, "/")
	for i, part := range parts {
		if part == "" {
			continue
		}
		if looksLikeIdentifier(part) {
			parts[i] = ":id"
		}
	}
	normalized := strings.Join(parts, "/")
	if !strings.HasPrefix(normalized, "/") {
		normalized = "/" + normalized
	}
	if strings.HasSuffix(normalized, "/") && len(normalized) > 1 {
		normalized = strings.TrimSuffix(normalized, "/")
	}
	return normalized
}

// looksLikeIdentifier treats numeric segments and long opaque strings as ids.
func looksLikeIdentifier(segment string) bool {
	if len(segment) >= 16 {
		return true
	}
	for _, r := range segment {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func normalizeName(name string) string {
	trimmed := strings.ToLower(strings.TrimSpace(name))
	if trimmed == "" {
		return "unknown"
	}
	return trimmed
}

// ObserveRequest records a request on the default recorder.
func ObserveRequest(method, path string, status int, duration time.Duration) {
	Default().ObserveRequest(method, path, status, duration)
}

// ObserveLookup records a gif lookup on the default recorder.
func ObserveLookup(mode, outcome string) {
	Default().ObserveLookup(mode, outcome)
}

// ObserveGifWrite records a gif write on the default recorder.
func ObserveGifWrite(operation string) {
	Default().ObserveGifWrite(operation)
}

// ObserveAuthEvent records an auth event on the default recorder.
func ObserveAuthEvent(event string) {
	Default().ObserveAuthEvent(event)
}

// ObserveSessionPurge records a purge run on the default recorder.
func ObserveSessionPurge(err error) {
	Default().ObserveSessionPurge(err)
}

// Handler exposes the default recorder as an HTTP handler.
func Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Default().Handler().ServeHTTP(w, r)
	})
}
