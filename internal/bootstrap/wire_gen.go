// Hand-maintained equivalent of the output `wire gen` produces from
// wire.go's injector: the same provider functions, called in the same
// dependency order. Regenerate with `wire gen ./internal/bootstrap`
// when the provider set changes.

//go:build !wireinject

package bootstrap

import (
	"context"
	"fmt"
)

// InitializeApp builds the full dependency graph described by wire.go's
// injector and returns a ready-to-run App.
//
// Params:
//   - configPath: the path to the YAML configuration file.
//
// Returns:
//   - *App: the fully wired application.
//   - error: nil on success, a construction error otherwise.
func InitializeApp(configPath string) (*App, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building logger: %w", err)
	}

	ctx := context.Background()

	host := newHostProbe()
	proc := newProcessProbe(cfg)

	ing := newIngest()
	bc := newBroadcaster(ing)

	agg := newAggregator(ctx, cfg.DataDir, logger)
	idleMachine := newIdle(cfg, logger, bc)
	mon := newMonitorWithFeed(host, proc, cfg, agg, idleMachine, bc)

	profileSvc := newProfiles(ctx, cfg.DataDir, idleMachine, bc)
	sup := newSupervisor(cfg, proc, bc)
	srv := newServers(bc)

	collector := newMetricsCollector(idleMachine, ing, sup, mon, bc)
	metricsHandler := newMetricsHandler(collector)

	handler := newHandler(ing, bc, profileSvc, idleMachine, agg, mon, sup, srv, logger, metricsHandler)

	watcher, err := newHotreload(logger)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: building hot-reload watcher: %w", err)
	}

	return NewApp(cfg, logger, idleMachine, mon, agg, sup, srv, profileSvc, watcher, handler), nil
}
