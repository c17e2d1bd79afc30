// Package bootstrap wires every application service, infrastructure
// adapter, and interface layer into a runnable App: a minimal main.go
// delegates startup, signal handling, and graceful shutdown to this
// package's Run.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/aggregator"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/idle"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/monitor"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/profiles"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/servers"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/application/supervisor"
	domainconfig "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/config"
	domainlogging "github.com/bestfriendai/voicelearn-mgmtd/internal/domain/logging"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/hotreload"
	"github.com/bestfriendai/voicelearn-mgmtd/internal/infrastructure/persistence/profilestore"
)

// shutdownGrace bounds how long Run waits for the HTTP server and
// in-flight subsystem shutdown hooks to finish once a signal arrives.
const shutdownGrace = 10 * time.Second

// App is the root object of the dependency graph: every long-running
// subsystem plus the assembled HTTP handler, ready for Run to start and
// stop as a unit.
type App struct {
	Config     *domainconfig.Config
	Logger     domainlogging.Logger
	Idle       *idle.Machine
	Monitor    *monitor.Monitor
	Aggregator *aggregator.Aggregator
	Supervisor *supervisor.Supervisor
	Servers    *servers.Registry
	Profiles   *profiles.Service
	Watcher    *hotreload.Watcher
	Handler    http.Handler

	server *http.Server
}

// NewApp assembles an App from the already-constructed subsystems. It
// performs no I/O itself; Run does.
//
// Params:
//   - cfg: the loaded, validated daemon configuration.
//   - logger: the root structured logger.
//   - idleMachine: the idle state machine.
//   - mon: the resource monitor.
//   - agg: the metrics aggregator.
//   - sup: the service supervisor.
//   - srv: the upstream server registry.
//   - prof: the power-profile service.
//   - watcher: the config hot-reload watcher.
//   - handler: the assembled HTTP/WS handler.
//
// Returns:
//   - *App: the assembled, not-yet-running application.
func NewApp(
	cfg *domainconfig.Config,
	logger domainlogging.Logger,
	idleMachine *idle.Machine,
	mon *monitor.Monitor,
	agg *aggregator.Aggregator,
	sup *supervisor.Supervisor,
	srv *servers.Registry,
	prof *profiles.Service,
	watcher *hotreload.Watcher,
	handler http.Handler,
) *App {
	return &App{
		Config:     cfg,
		Logger:     logger,
		Idle:       idleMachine,
		Monitor:    mon,
		Aggregator: agg,
		Supervisor: sup,
		Servers:    srv,
		Profiles:   prof,
		Watcher:    watcher,
		Handler:    handler,
	}
}

// Run starts every background subsystem and the HTTP server, blocking
// until ctx is cancelled or a termination signal arrives, then shuts
// everything down in reverse dependency order.
//
// Params:
//   - ctx: cancelling ctx begins shutdown.
//
// Returns:
//   - error: nil on a clean shutdown, the HTTP server's error otherwise.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGHUP)
	defer signal.Stop(sigCh)

	a.Supervisor.DetectExisting(ctx)

	a.Monitor.Run(ctx)
	a.Idle.Run(ctx)
	a.Aggregator.Run(ctx)

	if err := a.Watcher.Watch(a.Config.ConfigPath, a.onConfigChanged); err != nil {
		a.Logger.Warn("bootstrap", "hotreload_watch_failed", map[string]any{"error": err.Error()})
	}
	profilesPath := filepath.Join(a.Config.DataDir, profilestore.FileName)
	if err := a.Watcher.Watch(profilesPath, a.onProfilesChanged); err != nil {
		a.Logger.Warn("bootstrap", "hotreload_watch_failed", map[string]any{"path": profilesPath, "error": err.Error()})
	}
	go a.Watcher.Run()

	a.server = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.Config.Host, a.Config.Port),
		Handler: a.Handler,
	}

	serveErr := make(chan error, 1)
	go func() {
		a.Logger.Info("bootstrap", "http_listen", map[string]any{"addr": a.server.Addr})
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case <-ctx.Done():
	case sig := <-sigCh:
		a.handleSignal(ctx, sig, sigCh)
	case err := <-serveErr:
		if err != nil {
			a.shutdown()
			return fmt.Errorf("bootstrap: http server: %w", err)
		}
	}

	return a.shutdown()
}

// handleSignal loops on incoming signals: SIGHUP reloads the live
// service roster, SIGTERM/SIGINT begin the shutdown sequence.
//
// Params:
//   - ctx: cancelling ctx stops the loop.
//   - sig: the signal that woke the caller.
//   - sigCh: the channel further signals are read from.
func (a *App) handleSignal(ctx context.Context, sig os.Signal, sigCh <-chan os.Signal) {
	for {
		switch sig {
		case syscall.SIGHUP:
			a.onConfigChanged()
		case syscall.SIGTERM, syscall.SIGINT:
			return
		}
		select {
		case <-ctx.Done():
			return
		case sig = <-sigCh:
		}
	}
}

// onConfigChanged re-reads the config file on disk and swaps the
// supervisor's service table. The daemon's own host/port bind is fixed
// for the lifetime of one process; a changed command vector takes
// effect on the next manual or auto restart of the affected service,
// never by force-killing a running child. A file that fails to parse
// keeps the previously loaded config in effect.
func (a *App) onConfigChanged() {
	cfg, err := loadConfig(a.Config.ConfigPath)
	if err != nil {
		a.Logger.Warn("bootstrap", "config_reload_invalid", map[string]any{"error": err.Error()})
		return
	}
	a.Supervisor.UpdateSpecs(cfg.Services)
	a.Logger.Info("bootstrap", "config_reloaded", map[string]any{
		"path": a.Config.ConfigPath, "services": len(cfg.Services),
	})
}

// onProfilesChanged re-reads the custom-profile file so hand edits on
// disk become visible without a daemon restart.
func (a *App) onProfilesChanged() {
	if err := a.Profiles.Reload(context.Background()); err != nil {
		a.Logger.Warn("bootstrap", "profiles_reload_failed", map[string]any{"error": err.Error()})
		return
	}
	a.Logger.Info("bootstrap", "profiles_reloaded", nil)
}

func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()

	a.Watcher.Stop()
	a.Idle.Stop()
	a.Monitor.Stop()
	a.Aggregator.Shutdown(ctx)

	var shutdownErr error
	if a.server != nil {
		if err := a.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("bootstrap: http server shutdown: %w", err)
		}
	}

	if err := a.Logger.Close(); err != nil && shutdownErr == nil {
		shutdownErr = fmt.Errorf("bootstrap: logger close: %w", err)
	}

	return shutdownErr
}
