// Package bootstrap wires every application service, infrastructure
// adapter, and interface layer into a runnable App: small provider
// functions composed by the injector in wire_gen.go.
package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/aggregator"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/broadcast"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/idle"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/ingest"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/profiles"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/servers"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
	domainconfig "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/config"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/event"
	domainlogging "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/profile"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/domain/resource"
	yamlconfig "github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/config/yaml"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/historystore"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/profilestore"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/process/executor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/hotreload"
	obslogging "github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/observability/logging"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/observability/metrics"
	processunix "github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/probe/process/unix"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/probe/upstream"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/upstream/llm"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/upstream/tts"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/interfaces/httpapi"
)

// defaultTTSBaseURL and defaultLLMBaseURL are the conventional local
// addresses of the voice-tutor fleet's TTS and LLM runtime services,
// overridden by the matching service spec's declared port when a
// service of that kind is present in the daemon's config.
const (
	defaultTTSBaseURL    = "http://localhost:8802"
	defaultLLMBaseURL    = "http://localhost:11434"
	upstreamProbeTimeout = 5 * time.Second
)

// loadConfig reads and validates the YAML config file at path.
//
// Params:
//   - path: the config file path.
//
// Returns:
//   - *domainconfig.Config: the parsed, validated configuration.
//   - error: nil on success, a read/parse/validation error otherwise.
func loadConfig(path string) (*domainconfig.Config, error) {
	loader := yamlconfig.New()
	cfg, err := loader.Load(path)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: loading config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the daemon's root logger, writing under cfg.DataDir
// at the configured minimum level.
//
// Params:
//   - cfg: the loaded configuration.
//
// Returns:
//   - domainlogging.Logger: the constructed logger.
//   - error: nil on success, an I/O error otherwise.
func newLogger(cfg *domainconfig.Config) (domainlogging.Logger, error) {
	return obslogging.NewDaemonLogger(cfg.DataDir, domainlogging.ParseLevel(cfg.LogLevel))
}

// errorLoggerFor adapts logger into the narrow (context, error) callback
// shape several application services accept for reporting internal
// failures.
//
// Params:
//   - logger: the logger errors are written to.
//   - component: the component name attached to every logged error.
//
// Returns:
//   - func(context string, err error): the adapted callback.
func errorLoggerFor(logger domainlogging.Logger, component string) func(context string, err error) {
	return func(ctx string, err error) {
		logger.Error(component, ctx, map[string]any{"error": err.Error()})
	}
}

// baseURLForKind finds the first configured service of the given kind
// and derives its base URL from its declared port, falling back to the
// fleet's conventional default when no such service is configured.
//
// Params:
//   - cfg: the loaded configuration.
//   - kind: the service kind to search for.
//   - fallback: the URL returned when no service of kind is configured.
//
// Returns:
//   - string: the resolved base URL.
func baseURLForKind(cfg *domainconfig.Config, kind, fallback string) string {
	for _, svc := range cfg.Services {
		if svc.Kind == kind && svc.Port != 0 {
			return fmt.Sprintf("http://localhost:%d", svc.Port)
		}
	}
	return fallback
}

// newIngest constructs the log/metrics ingest service.
//
// Returns:
//   - *ingest.Ingest: the constructed ingest service.
func newIngest() *ingest.Ingest {
	return ingest.New()
}

// newBroadcaster completes the ingest/broadcaster circular dependency:
// the broadcaster takes ing as its failure sink at construction time,
// and ing.SetPublisher(bc) is called afterward to complete the cycle.
//
// Params:
//   - ing: the ingest service broadcast failures are recorded against.
//
// Returns:
//   - *broadcast.Broadcaster: the constructed broadcaster.
func newBroadcaster(ing *ingest.Ingest) *broadcast.Broadcaster {
	bc := broadcast.New(broadcast.WithFailureSink(ing))
	ing.SetPublisher(bc)
	return bc
}

// newProcessProbe builds the per-service process probe from the
// configured ports and command names.
//
// Params:
//   - cfg: the loaded configuration.
//
// Returns:
//   - *processunix.Probe: the constructed probe.
func newProcessProbe(cfg *domainconfig.Config) *processunix.Probe {
	ports := make(map[string]int, len(cfg.Services))
	pgrep := make(map[string]string, len(cfg.Services))
	for _, svc := range cfg.Services {
		if svc.Port != 0 {
			ports[svc.ID] = svc.Port
		}
		if len(svc.Command) > 0 {
			pgrep[svc.ID] = svc.Command[0]
		}
	}
	return processunix.New(ports, pgrep)
}

// newMonitor constructs the Monitor over the configured service roster.
//
// Params:
//   - host: the host-level probe.
//   - proc: the per-service process probe.
//   - cfg: the loaded configuration, for the service id list.
//   - pub: the publisher each tick is broadcast to.
//
// Returns:
//   - *monitor.Monitor: the constructed monitor.
func newMonitor(host monitor.HostProbe, proc monitor.ServiceProcessProbe, cfg *domainconfig.Config, pub event.Publisher) *monitor.Monitor {
	serviceIDs := func() []string {
		ids := make([]string, 0, len(cfg.Services))
		for _, svc := range cfg.Services {
			ids = append(ids, svc.ID)
		}
		return ids
	}
	return monitor.New(host, proc, serviceIDs, monitor.WithPublisher(pub))
}

// newMonitorWithFeed builds the Monitor with an aggregatorFeed installed
// as its publisher, so every sampled tick both reaches the aggregator
// and fans out to the broadcaster. The feed's mon field is back-filled
// once the Monitor exists, since tick() (and therefore Publish) never
// fires before Run is started.
//
// Params:
//   - host: the host-level probe.
//   - proc: the per-service process probe.
//   - cfg: the loaded configuration, for the service id list.
//   - agg: the aggregator each tick is folded into.
//   - idleMachine: the idle machine, for the current tier on each tick.
//   - bc: the broadcaster each tick is forwarded to.
//
// Returns:
//   - *monitor.Monitor: the constructed monitor, feeding agg and bc.
func newMonitorWithFeed(host monitor.HostProbe, proc monitor.ServiceProcessProbe, cfg *domainconfig.Config, agg *aggregator.Aggregator, idleMachine *idle.Machine, bc *broadcast.Broadcaster) *monitor.Monitor {
	feed := &aggregatorFeed{next: bc, agg: agg, idle: idleMachine}
	mon := newMonitor(host, proc, cfg, feed)
	feed.mon = mon
	return mon
}

// newAggregator constructs the Aggregator backed by the on-disk history
// store rooted at dataDir.
//
// Params:
//   - ctx: governs the aggregator's initial load of persisted buckets.
//   - dataDir: the directory history is persisted under.
//   - logger: the logger aggregator errors are reported to.
//
// Returns:
//   - *aggregator.Aggregator: the constructed aggregator.
func newAggregator(ctx context.Context, dataDir string, logger domainlogging.Logger) *aggregator.Aggregator {
	store := historystore.New(dataDir)
	return aggregator.New(ctx, store, aggregator.WithErrorLogger(errorLoggerFor(logger, "aggregator")))
}

// aggregatorFeed sits between the monitor and the broadcaster: every
// metrics event is folded into the aggregator (keyed by the idle
// machine's current tier and the monitor's per-service activity) before
// being forwarded on, so the monitor itself never needs to know the
// aggregator exists.
type aggregatorFeed struct {
	next *broadcast.Broadcaster
	agg  *aggregator.Aggregator
	idle *idle.Machine
	mon  *monitor.Monitor
}

// Publish folds a metrics event into the aggregator before forwarding
// it to the wrapped publisher.
//
// Params:
//   - e: the event to fold and forward.
func (f *aggregatorFeed) Publish(e event.Event) {
	if sample, ok := e.Data.(resource.PowerSample); ok {
		current := f.mon.SnapshotCurrent()
		serviceCPU := make(map[string]float64, len(current.Services))
		for id, ps := range current.Services {
			serviceCPU[id] = ps.CPUPct
		}
		f.agg.AddSample(sample, f.idle.CurrentTier(), serviceCPU, f.mon.TotalActivityCount())
	}
	f.next.Publish(e)
}

// newProfiles constructs the profile service over the on-disk custom
// profile store rooted at dataDir.
//
// Params:
//   - ctx: governs the initial custom-profile load.
//   - dataDir: the directory custom profiles are persisted under.
//   - idleSink: the idle machine the active profile is pushed to.
//   - pub: the publisher profile-change events are broadcast to.
//
// Returns:
//   - *profiles.Service: the constructed service.
func newProfiles(ctx context.Context, dataDir string, idleSink profiles.ActiveProfileSink, pub event.Publisher) *profiles.Service {
	store := profilestore.New(dataDir)
	return profiles.New(ctx, store, idleSink, profiles.WithPublisher(pub))
}

// newIdle constructs the idle state machine, wiring its TTS/LLM
// pre-warm and unload callbacks against the configured upstream
// services.
//
// Params:
//   - cfg: the loaded configuration, for the TTS/LLM base URLs.
//   - logger: the logger idle-handler errors are reported to.
//   - pub: the publisher tier transitions are broadcast to.
//
// Returns:
//   - *idle.Machine: the constructed, balanced-profile-active machine.
func newIdle(cfg *domainconfig.Config, logger domainlogging.Logger, pub event.Publisher) *idle.Machine {
	ttsBase := baseURLForKind(cfg, "tts", defaultTTSBaseURL)
	llmBase := baseURLForKind(cfg, "llm", defaultLLMBaseURL)
	ttsClient := tts.New(ttsBase)
	llmClient := llm.New(llmBase)

	initial := profile.Builtins()[profile.BalancedID]
	return idle.New(initial,
		idle.WithPublisher(pub),
		idle.WithErrorLogger(errorLoggerFor(logger, "idle")),
		idle.WithTTSCallbacks(ttsClient, ttsClient),
		idle.WithLLMUnload(llmClient),
	)
}

// newSupervisor constructs the Supervisor over the configured service
// roster, sharing proc as both the health/port resolver and the memory
// accounting probe.
//
// Params:
//   - cfg: the loaded configuration, for the static service specs.
//   - proc: the process probe used for health, ports, and memory usage.
//   - pub: the publisher service_update events are broadcast to.
//
// Returns:
//   - *supervisor.Supervisor: the constructed supervisor.
func newSupervisor(cfg *domainconfig.Config, proc *processunix.Probe, pub event.Publisher) *supervisor.Supervisor {
	return supervisor.New(cfg.Services, executor.New(), proc, proc,
		supervisor.WithPublisher(pub),
		supervisor.WithMemoryUsage(proc),
	)
}

// newServers constructs the empty upstream server registry.
//
// Params:
//   - pub: the publisher server_added/server_deleted events are broadcast to.
//
// Returns:
//   - *servers.Registry: the constructed, empty registry.
func newServers(pub event.Publisher) *servers.Registry {
	return servers.New(upstream.New(upstreamProbeTimeout), servers.WithPublisher(pub))
}

// newHotreload constructs the config-directory watcher.
//
// Params:
//   - logger: the logger watch errors are reported to.
//
// Returns:
//   - *hotreload.Watcher: the constructed watcher.
//   - error: nil on success, a filesystem-watch setup error otherwise.
func newHotreload(logger domainlogging.Logger) (*hotreload.Watcher, error) {
	return hotreload.New(logger)
}

// ingestCountersAdapter satisfies metrics.IngestCounters by copying
// ingest.Counters' fields into metrics.CountersView, keeping the
// Prometheus collector's import surface free of the ingest package.
type ingestCountersAdapter struct{ ing *ingest.Ingest }

// Counters adapts the ingest service's counters into the Prometheus
// collector's view type.
//
// Returns:
//   - metrics.CountersView: the adapted ingest counters.
func (a ingestCountersAdapter) Counters() metrics.CountersView {
	c := a.ing.Counters()
	return metrics.CountersView{
		ErrorsTotal:            c.ErrorsTotal,
		WarningsTotal:          c.WarningsTotal,
		LogsTotal:              c.LogsTotal,
		MetricsTotal:           c.MetricsTotal,
		BroadcastFailuresTotal: c.BroadcastFailuresTotal,
	}
}

// serviceListerAdapter satisfies metrics.ServiceLister by combining the
// supervisor's non-reconciling snapshot with the monitor's latest
// per-service CPU/memory samples.
type serviceListerAdapter struct {
	sup *supervisor.Supervisor
	mon *monitor.Monitor
}

// Snapshot adapts the supervisor's non-reconciling status list, merged
// with the monitor's latest per-service CPU/memory samples, into the
// Prometheus collector's view type.
//
// Returns:
//   - []metrics.ServiceStatusView: every service's status and latest sample.
func (a serviceListerAdapter) Snapshot() []metrics.ServiceStatusView {
	statuses := a.sup.Snapshot()
	current := a.mon.SnapshotCurrent()

	out := make([]metrics.ServiceStatusView, 0, len(statuses))
	for _, st := range statuses {
		view := metrics.ServiceStatusView{ID: st.Spec.ID, Status: st.Runtime.Status}
		if ps, ok := current.Services[st.Spec.ID]; ok {
			view.CPUPct = ps.CPUPct
			view.MemoryMB = ps.MemoryMB
		}
		out = append(out, view)
	}
	return out
}

// newMetricsCollector constructs the Prometheus collector over every
// wired application service it reports on.
//
// Params:
//   - idleMachine: the idle machine, for tier/idle-duration gauges.
//   - ing: the ingest service, for counters.
//   - sup: the supervisor, for per-service status.
//   - mon: the monitor, for per-service samples.
//   - bc: the broadcaster, for connected-peer gauges.
//
// Returns:
//   - *metrics.Collector: the constructed collector.
func newMetricsCollector(idleMachine *idle.Machine, ing *ingest.Ingest, sup *supervisor.Supervisor, mon *monitor.Monitor, bc *broadcast.Broadcaster) *metrics.Collector {
	return metrics.New(idleMachine, ingestCountersAdapter{ing: ing}, serviceListerAdapter{sup: sup, mon: mon}, bc)
}

// newMetricsHandler registers collector with a fresh registry (kept
// private to this daemon, not the global DefaultRegisterer, so tests can
// construct multiple Apps in one process without collector collisions)
// and returns its promhttp handler for mounting at GET /metrics.
//
// Params:
//   - collector: the Prometheus collector to register.
//
// Returns:
//   - http.Handler: the promhttp handler for the collector's registry.
func newMetricsHandler(collector *metrics.Collector) http.Handler {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collector)
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// newHandler assembles the HTTP/WS frontend from every wired
// application service.
//
// Params:
//   - ing: the ingest service.
//   - bc: the broadcaster, for the WebSocket stream.
//   - prof: the profile service.
//   - idleMachine: the idle state machine.
//   - agg: the metrics aggregator.
//   - mon: the resource monitor.
//   - sup: the service supervisor.
//   - srv: the upstream server registry.
//   - logger: the logger request handlers report errors to.
//   - metricsHandler: the mounted GET /metrics handler.
//
// Returns:
//   - http.Handler: the assembled top-level HTTP handler.
func newHandler(
	ing *ingest.Ingest,
	bc *broadcast.Broadcaster,
	prof *profiles.Service,
	idleMachine *idle.Machine,
	agg *aggregator.Aggregator,
	mon *monitor.Monitor,
	sup *supervisor.Supervisor,
	srv *servers.Registry,
	logger domainlogging.Logger,
	metricsHandler http.Handler,
) http.Handler {
	return httpapi.NewHandler(httpapi.Deps{
		Ingest:         ing,
		Broadcast:      bc,
		Profiles:       prof,
		Idle:           idleMachine,
		Aggregator:     agg,
		Monitor:        mon,
		Supervisor:     sup,
		Servers:        srv,
		Logger:         logger,
		MetricsHandler: metricsHandler,
		Started:        time.Now(),
	})
}
