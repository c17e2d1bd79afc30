//go:build wireinject

package bootstrap

import (
	"github.com/google/wire"
)

// InitializeApp creates the application with all dependencies wired. This
// function is the injector that Wire generates wire_gen.go's
// implementation for; it never runs itself (the wireinject build tag
// excludes it from normal builds).
//
// Params:
//   - configPath: the path to the YAML configuration file.
//
// Returns:
//   - *App: the fully wired application.
//   - error: any error during dependency construction.
func InitializeApp(configPath string) (*App, error) {
	wire.Build(
		loadConfig,
		newLogger,
		newHostProbe,
		newProcessProbe,
		newIngest,
		newBroadcaster,
		newMonitorWithFeed,
		newAggregator,
		newIdle,
		newProfiles,
		newSupervisor,
		newServers,
		newMetricsCollector,
		newMetricsHandler,
		newHotreload,
		newHandler,
		NewApp,
	)
	return nil, nil
}
