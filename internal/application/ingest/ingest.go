// Package ingest implements telemetry ingest: bounded ring buffers
// of log entries and metric snapshots keyed by submitting client, plus
// the client registry those submissions upsert.
package ingest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/shared"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/telemetry"
)

// LogCapacity and MetricsCapacity are the bounded ring sizes.
const (
	LogCapacity     = 10_000
	MetricsCapacity = 1_000
)

// IDGenerator mints identifiers for freshly ingested records. Pluggable
// so tests can inject deterministic ids.
type IDGenerator interface {
	NewID() string
}

// IDGeneratorFunc adapts a function to an IDGenerator.
type IDGeneratorFunc func() string

// NewID implements IDGenerator.
//
// Returns:
//   - string: the minted id.
func (f IDGeneratorFunc) NewID() string { return f() }

// Counters tracks the ingest-wide totals exposed through /api/stats and
// the Prometheus exporter.
type Counters struct {
	ErrorsTotal            int64 `json:"errors_total"`
	WarningsTotal          int64 `json:"warnings_total"`
	LogsTotal              int64 `json:"logs_total"`
	MetricsTotal           int64 `json:"metrics_total"`
	BroadcastFailuresTotal int64 `json:"broadcast_failures_total"`
}

// Ingest owns the log ring, the metrics-snapshot ring, and the client
// registry those submissions upsert. All mutable state is guarded by a
// single mutex: the hot-path submissions are short critical sections, so
// a single lock is simple and fast enough.
type Ingest struct {
	mu sync.Mutex

	clock shared.Nower
	ids   IDGenerator
	pub   event.Publisher

	logs    *shared.Ring[telemetry.LogEntry]
	metrics *shared.Ring[telemetry.MetricsSnapshot]
	clients map[string]*telemetry.RemoteClient

	counters Counters
}

// Option configures an Ingest at construction time.
type Option func(*Ingest)

// WithClock overrides the time source.
func WithClock(c shared.Nower) Option { return func(i *Ingest) { i.clock = c } }

// WithPublisher wires the broadcaster for log/metrics/client events.
func WithPublisher(p event.Publisher) Option { return func(i *Ingest) { i.pub = p } }

// SetPublisher wires the broadcaster after construction, for the
// bootstrap wiring's circular dependency: the broadcaster itself takes
// this Ingest as its FailureSink at construction time, so the publisher
// side of the relationship can only be completed afterward.
//
// Params:
//   - p: the publisher to wire.
func (i *Ingest) SetPublisher(p event.Publisher) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.pub = p
}

// WithIDGenerator overrides the id minter, for deterministic tests.
func WithIDGenerator(g IDGenerator) Option { return func(i *Ingest) { i.ids = g } }

// New constructs an Ingest with empty rings and client registry.
//
// Params:
//   - opts: construction-time options.
//
// Returns:
//   - *Ingest: the constructed, empty Ingest.
func New(opts ...Option) *Ingest {
	i := &Ingest{
		clock:   shared.DefaultClock,
		ids:     IDGeneratorFunc(defaultNewID),
		logs:    shared.NewRing[telemetry.LogEntry](LogCapacity),
		metrics: shared.NewRing[telemetry.MetricsSnapshot](MetricsCapacity),
		clients: make(map[string]*telemetry.RemoteClient),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// ClientIdentity is the header pair that identifies a submitting client
// on every ingest call.
type ClientIdentity struct {
	ClientID   string
	ClientName string
}

// upsertClientLocked records a submission against the client registry,
// bumping last_seen/status and the requested counter. A submission with
// no client id gets one minted, so an anonymous client still becomes a
// tracked RemoteClient. Callers must hold mu.
//
// Params:
//   - id: the submitting client's identity headers.
//   - now: the current time.
//   - bumpLogs: the amount to add to the client's total log count.
//
// Returns:
//   - string: the client id the submission was recorded under (minted
//     when the headers carried none).
func (i *Ingest) upsertClientLocked(id ClientIdentity, now time.Time, bumpLogs int) string {
	clientID := id.ClientID
	if clientID == "" {
		clientID = i.ids.NewID()
	}
	c, ok := i.clients[clientID]
	if !ok {
		c = &telemetry.RemoteClient{ID: clientID, FirstSeen: now}
		i.clients[clientID] = c
	}
	if id.ClientName != "" {
		c.DisplayName = id.ClientName
	}
	c.LastSeen = now
	c.RefreshStatus(now)
	c.TotalLogs += bumpLogs
	return clientID
}

// IngestLogInput is the decoded shape of one submitted log entry, prior
// to id/received_at assignment.
type IngestLogInput struct {
	WallTimestamp  time.Time
	Level          telemetry.Level
	Label          string
	Message        string
	SourceFile     string
	SourceFunction string
	SourceLine     int
	Metadata       map[string]any
}

// IngestLogs upserts the client, mints an entry per input (single or
// batch), bumps the global level counters, and emits one "log" event
// per entry in submission order so broadcast order matches ingest
// order.
//
// Params:
//   - ctx: the request context (unused, retained for port symmetry).
//   - id: the submitting client's identity headers.
//   - inputs: the decoded log entries to ingest, in submission order.
//
// Returns:
//   - []telemetry.LogEntry: the stored entries, stamped with id/received_at.
func (i *Ingest) IngestLogs(ctx context.Context, id ClientIdentity, inputs []IngestLogInput) []telemetry.LogEntry {
	now := i.clock.Now()

	i.mu.Lock()
	clientID := i.upsertClientLocked(id, now, len(inputs))

	out := make([]telemetry.LogEntry, 0, len(inputs))
	for _, in := range inputs {
		entry := telemetry.LogEntry{
			ID:             i.ids.NewID(),
			ClientID:       clientID,
			ClientName:     id.ClientName,
			WallTimestamp:  in.WallTimestamp,
			ReceivedAt:     now,
			Level:          in.Level,
			Label:          in.Label,
			Message:        in.Message,
			SourceFile:     in.SourceFile,
			SourceFunction: in.SourceFunction,
			SourceLine:     in.SourceLine,
			Metadata:       in.Metadata,
		}
		i.logs.Push(entry)
		switch entry.Level {
		case telemetry.LevelError, telemetry.LevelCritical:
			i.counters.ErrorsTotal++
		case telemetry.LevelWarning:
			i.counters.WarningsTotal++
		}
		i.counters.LogsTotal++
		out = append(out, entry)
	}
	pub := i.pub
	i.mu.Unlock()

	if pub != nil {
		for _, entry := range out {
			pub.Publish(event.New(event.TypeLog, entry, entry.ReceivedAt))
		}
	}
	return out
}

// IngestMetrics records one MetricsSnapshot per call.
//
// Params:
//   - ctx: the request context (unused, retained for port symmetry).
//   - id: the submitting client's identity headers.
//   - snap: the decoded metrics snapshot, prior to id/received_at assignment.
//
// Returns:
//   - telemetry.MetricsSnapshot: the stored snapshot, stamped with id/received_at.
func (i *Ingest) IngestMetrics(ctx context.Context, id ClientIdentity, snap telemetry.MetricsSnapshot) telemetry.MetricsSnapshot {
	now := i.clock.Now()

	i.mu.Lock()
	clientID := i.upsertClientLocked(id, now, 0)

	snap.ID = i.ids.NewID()
	snap.ClientID = clientID
	snap.ReceivedAt = now
	i.metrics.Push(snap)
	i.counters.MetricsTotal++
	pub := i.pub
	i.mu.Unlock()

	if pub != nil {
		pub.Publish(event.New(event.TypeMetrics, snap, now))
	}
	return snap
}

// Heartbeat upserts a client's device info directly (POST
// /api/clients/heartbeat), independent of any log/metric submission.
//
// Params:
//   - id: the submitting client's identity headers.
//   - deviceModel: the client's device model, if provided.
//   - osVersion: the client's OS version, if provided.
//   - appVersion: the client's app version, if provided.
//   - ip: the client's reported IP, if provided.
//
// Returns:
//   - telemetry.RemoteClient: the upserted client record.
func (i *Ingest) Heartbeat(id ClientIdentity, deviceModel, osVersion, appVersion, ip string) telemetry.RemoteClient {
	now := i.clock.Now()
	i.mu.Lock()
	defer i.mu.Unlock()

	clientID := i.upsertClientLocked(id, now, 0)
	c := i.clients[clientID]
	if deviceModel != "" {
		c.DeviceModel = deviceModel
	}
	if osVersion != "" {
		c.OSVersion = osVersion
	}
	if appVersion != "" {
		c.AppVersion = appVersion
	}
	if ip != "" {
		c.IP = ip
	}
	return *c
}

// LogQuery filters and paginates GET /api/logs.
type LogQuery struct {
	Levels   map[telemetry.Level]bool
	Search   string
	ClientID string
	Label    string
	Since    time.Time
	Limit    int
	Offset   int
}

// QueryLogs returns entries newest-first, filtered then paginated.
//
// Params:
//   - q: the filter and pagination parameters.
//
// Returns:
//   - []telemetry.LogEntry: the matching entries, newest first.
func (i *Ingest) QueryLogs(q LogQuery) []telemetry.LogEntry {
	i.mu.Lock()
	items := i.logs.ItemsNewestFirst()
	i.mu.Unlock()

	filtered := items[:0:0]
	search := strings.ToLower(q.Search)
	for _, e := range items {
		if len(q.Levels) > 0 && !q.Levels[e.Level] {
			continue
		}
		if q.ClientID != "" && e.ClientID != q.ClientID {
			continue
		}
		if q.Label != "" && !strings.HasPrefix(e.Label, q.Label) {
			continue
		}
		if !q.Since.IsZero() && e.ReceivedAt.Before(q.Since) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Message), search) && !strings.Contains(strings.ToLower(e.Label), search) {
			continue
		}
		filtered = append(filtered, e)
	}
	return paginate(filtered, q.Offset, q.Limit)
}

// paginate slices items by offset then limit, clamping both to items' bounds.
//
// Params:
//   - items: the full, already-filtered item set.
//   - offset: the number of leading items to skip.
//   - limit: the maximum number of items to return, or 0 for no limit.
//
// Returns:
//   - []T: the paginated slice.
func paginate[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}

// QueryMetrics returns the most recent snapshots, newest-first.
//
// Params:
//   - limit: the maximum number of snapshots to return, or 0 for no limit.
//   - offset: the number of leading snapshots to skip.
//
// Returns:
//   - []telemetry.MetricsSnapshot: the paginated snapshots, newest first.
func (i *Ingest) QueryMetrics(limit, offset int) []telemetry.MetricsSnapshot {
	i.mu.Lock()
	items := i.metrics.ItemsNewestFirst()
	i.mu.Unlock()
	return paginate(items, offset, limit)
}

// MetricsAverages is the derived view GET /api/metrics reports alongside
// the paged snapshots.
type MetricsAverages struct {
	Count                int     `json:"count"`
	AvgEndToEndMedianMS   float64 `json:"avg_end_to_end_median_ms"`
	AvgLLMTTFTMedianMS    float64 `json:"avg_llm_ttft_median_ms"`
	AvgSTTMedianMS        float64 `json:"avg_stt_median_ms"`
	AvgTTSTTFBMedianMS    float64 `json:"avg_tts_ttfb_median_ms"`
	TotalCostUSD          float64 `json:"total_cost_usd"`
}

// Averages computes the derived medians/totals over every retained
// snapshot (not just the current page).
//
// Returns:
//   - MetricsAverages: the aggregate medians/totals.
func (i *Ingest) Averages() MetricsAverages {
	i.mu.Lock()
	items := i.metrics.Items()
	i.mu.Unlock()

	out := MetricsAverages{Count: len(items)}
	if len(items) == 0 {
		return out
	}
	var sumE2E, sumLLM, sumSTT, sumTTS float64
	for _, s := range items {
		sumE2E += s.EndToEndMedianMS
		sumLLM += s.LLMTTFTMedianMS
		sumSTT += s.STTMedianMS
		sumTTS += s.TTSTTFBMedianMS
		out.TotalCostUSD += s.CostUSD
	}
	n := float64(len(items))
	out.AvgEndToEndMedianMS = sumE2E / n
	out.AvgLLMTTFTMedianMS = sumLLM / n
	out.AvgSTTMedianMS = sumSTT / n
	out.AvgTTSTTFBMedianMS = sumTTS / n
	return out
}

// Clients returns every known client, refreshing derived status from
// now, sorted by id for a stable listing.
//
// Returns:
//   - []telemetry.RemoteClient: every known client, sorted by id.
func (i *Ingest) Clients() []telemetry.RemoteClient {
	now := i.clock.Now()
	i.mu.Lock()
	defer i.mu.Unlock()

	out := make([]telemetry.RemoteClient, 0, len(i.clients))
	for _, c := range i.clients {
		c.RefreshStatus(now)
		out = append(out, *c)
	}
	sort.Slice(out, func(a, b int) bool { return out[a].ID < out[b].ID })
	return out
}

// ClearLogs empties the log ring and resets the error/warning counters,
// emitting a logs_cleared event.
func (i *Ingest) ClearLogs() {
	now := i.clock.Now()
	i.mu.Lock()
	i.logs.Clear()
	i.counters.ErrorsTotal = 0
	i.counters.WarningsTotal = 0
	pub := i.pub
	i.mu.Unlock()

	if pub != nil {
		pub.Publish(event.New(event.TypeLogsCleared, nil, now))
	}
}

// Counters returns a snapshot of the running ingest totals.
//
// Returns:
//   - Counters: the current running totals.
func (i *Ingest) Counters() Counters {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.counters
}

// RecordBroadcastFailure increments the broadcast-failure counter,
// called by the broadcaster whenever a peer send fails.
func (i *Ingest) RecordBroadcastFailure() {
	i.mu.Lock()
	i.counters.BroadcastFailuresTotal++
	i.mu.Unlock()
}

var idCounter uint64

// defaultNewID mints a monotonically increasing, process-unique id. A
// production deployment may prefer a UUID; this is a dependency-free
// default sufficient for an in-memory, never-persisted record.
//
// Returns:
//   - string: the minted id.
func defaultNewID() string {
	idCounter++
	return "id-" + time.Now().UTC().Format("20060102T150405.000000000") + "-" + itoa(idCounter)
}

// itoa renders v in base 10 without importing strconv into this file's
// hot ingest path.
//
// Params:
//   - v: the value to render.
//
// Returns:
//   - string: the base-10 rendering of v.
func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}
