package metrics

import (
	"sort"
	"sync"
	"sync/atomic"

	"google.golang.org/grpc/codes"
)

// Collector collects and aggregates metrics for the application.
type Collector struct {
	// API metrics
	apiRequests sync.Map // map[string]*uint64 - method -> count
	apiErrors   sync.Map // map[string]*uint64 - method -> error count
	apiCodes    sync.Map // map[string]*uint64 - status code -> error count
	apiDuration sync.Map // map[string]*durationValue - method -> total duration in seconds

	// Resolver metrics, keyed by source kind
	reverseQueries sync.Map // map[string]*uint64
	eagerLoads     sync.Map // map[string]*uint64
	eagerPairs     sync.Map // map[string]*uint64
	droppedSources sync.Map // map[string]*uint64
	snapshots      sync.Map // map[string]*uint64

	// Exporter mirrors resolver events into Prometheus (optional)
	exporter *PrometheusExporter
}

// durationValue holds duration with mutex for thread-safe updates.
type durationValue struct {
	mu           sync.Mutex
	totalSeconds float64
}

// ResolverMetrics holds reverse relation resolver metrics for one source kind.
type ResolverMetrics struct {
	ReverseQueries uint64 `json:"reverseQueries"`
	EagerLoads     uint64 `json:"eagerLoads"`
	EagerLoadPairs uint64 `json:"eagerLoadPairs"`
	DroppedSources uint64 `json:"droppedSources"`
	Snapshots      uint64 `json:"snapshots"`
}

// APIMetrics holds API request metrics.
type APIMetrics struct {
	RequestCounts        map[string]uint64  `json:"requests"`
	ErrorCounts          map[string]uint64  `json:"errors"`
	ErrorCodes           map[string]uint64  `json:"errorCodes"` // status code name -> count, all methods
	TotalDurationSeconds map[string]float64 `json:"durationSeconds"`
}

// Stats is a point-in-time copy of everything the collector counted.
type Stats struct {
	API      *APIMetrics                 `json:"api"`
	Resolver map[string]*ResolverMetrics `json:"resolver"` // keyed by source kind
}

// NewCollector creates a new metrics collector.
func NewCollector() *Collector {
	return &Collector{}
}

// SetExporter sets the exporter that resolver events are mirrored to.
func (c *Collector) SetExporter(exporter *PrometheusExporter) {
	c.exporter = exporter
}

// RecordRequest records an API request.
func (c *Collector) RecordRequest(method string) {
	counter := c.getOrCreateCounter(&c.apiRequests, method)
	atomic.AddUint64(counter, 1)
}

// RecordError records a failed API call with its status code.
func (c *Collector) RecordError(method string, code codes.Code) {
	atomic.AddUint64(c.getOrCreateCounter(&c.apiErrors, method), 1)
	atomic.AddUint64(c.getOrCreateCounter(&c.apiCodes, code.String()), 1)
}

// RecordDuration records the duration of an API call in seconds.
func (c *Collector) RecordDuration(method string, durationSeconds float64) {
	val, _ := c.apiDuration.LoadOrStore(method, &durationValue{})
	dv := val.(*durationValue)

	dv.mu.Lock()
	dv.totalSeconds += durationSeconds
	dv.mu.Unlock()
}

// RecordReverseQuery records a reverse element query being built.
func (c *Collector) RecordReverseQuery(kind string) {
	atomic.AddUint64(c.getOrCreateCounter(&c.reverseQueries, kind), 1)
	if c.exporter != nil {
		c.exporter.RecordReverseQuery(kind)
	}
}

// RecordEagerLoad records one eager-loading map built for a batch.
func (c *Collector) RecordEagerLoad(kind string, batchSize, pairs int) {
	atomic.AddUint64(c.getOrCreateCounter(&c.eagerLoads, kind), 1)
	atomic.AddUint64(c.getOrCreateCounter(&c.eagerPairs, kind), uint64(pairs))
	if c.exporter != nil {
		c.exporter.RecordEagerLoad(kind, batchSize, pairs)
	}
}

// RecordDroppedSources records source specifiers that did not resolve to a group.
func (c *Collector) RecordDroppedSources(kind string, n int) {
	if n <= 0 {
		return
	}
	atomic.AddUint64(c.getOrCreateCounter(&c.droppedSources, kind), uint64(n))
	if c.exporter != nil {
		c.exporter.RecordDroppedSources(kind, n)
	}
}

// RecordSnapshot records a pre-save snapshot of previous sources.
func (c *Collector) RecordSnapshot(kind string, size int) {
	atomic.AddUint64(c.getOrCreateCounter(&c.snapshots, kind), 1)
	if c.exporter != nil {
		c.exporter.RecordSnapshot(kind, size)
	}
}

// GetResolverMetrics returns current resolver metrics for a source kind.
func (c *Collector) GetResolverMetrics(kind string) *ResolverMetrics {
	return &ResolverMetrics{
		ReverseQueries: c.loadCounter(&c.reverseQueries, kind),
		EagerLoads:     c.loadCounter(&c.eagerLoads, kind),
		EagerLoadPairs: c.loadCounter(&c.eagerPairs, kind),
		DroppedSources: c.loadCounter(&c.droppedSources, kind),
		Snapshots:      c.loadCounter(&c.snapshots, kind),
	}
}

// GetAPIMetrics returns current API metrics.
func (c *Collector) GetAPIMetrics() *APIMetrics {
	result := &APIMetrics{
		RequestCounts:        make(map[string]uint64),
		ErrorCounts:          make(map[string]uint64),
		ErrorCodes:           make(map[string]uint64),
		TotalDurationSeconds: make(map[string]float64),
	}

	// Collect request counts
	c.apiRequests.Range(func(key, value interface{}) bool {
		method := key.(string)
		count := atomic.LoadUint64(value.(*uint64))
		result.RequestCounts[method] = count
		return true
	})

	// Collect error counts
	c.apiErrors.Range(func(key, value interface{}) bool {
		method := key.(string)
		count := atomic.LoadUint64(value.(*uint64))
		result.ErrorCounts[method] = count
		return true
	})

	c.apiCodes.Range(func(key, value interface{}) bool {
		result.ErrorCodes[key.(string)] = atomic.LoadUint64(value.(*uint64))
		return true
	})

	// Collect duration totals
	c.apiDuration.Range(func(key, value interface{}) bool {
		method := key.(string)
		dv := value.(*durationValue)
		dv.mu.Lock()
		result.TotalDurationSeconds[method] = dv.totalSeconds
		dv.mu.Unlock()
		return true
	})

	return result
}

// Stats returns the API metrics and the resolver metrics of every source kind seen so far.
func (c *Collector) Stats() *Stats {
	stats := &Stats{
		API:      c.GetAPIMetrics(),
		Resolver: make(map[string]*ResolverMetrics),
	}
	for _, kind := range c.kinds() {
		stats.Resolver[kind] = c.GetResolverMetrics(kind)
	}
	return stats
}

// kinds returns the source kinds with at least one resolver event, sorted
func (c *Collector) kinds() []string {
	seen := make(map[string]struct{})
	for _, m := range []*sync.Map{&c.reverseQueries, &c.eagerLoads, &c.droppedSources, &c.snapshots} {
		m.Range(func(key, _ interface{}) bool {
			seen[key.(string)] = struct{}{}
			return true
		})
	}

	kinds := make([]string, 0, len(seen))
	for kind := range seen {
		kinds = append(kinds, kind)
	}
	sort.Strings(kinds)
	return kinds
}

// getOrCreateCounter gets or creates a counter for the given key.
func (c *Collector) getOrCreateCounter(m *sync.Map, key string) *uint64 {
	val, _ := m.LoadOrStore(key, new(uint64))
	return val.(*uint64)
}

func (c *Collector) loadCounter(m *sync.Map, key string) uint64 {
	val, ok := m.Load(key)
	if !ok {
		return 0
	}
	return atomic.LoadUint64(val.(*uint64))
}
