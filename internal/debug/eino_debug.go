// Package debug starts the Eino visual debug server for the analysis graph.
package debug

import (
	"context"
	"fmt"

	"github.com/cloudwego/eino-ext/devops"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/logger"
)

type EinoDebugger struct {
	enabled bool
	port    int
}

func NewEinoDebugger(cfg *config.Config) *EinoDebugger {
	return &EinoDebugger{enabled: cfg.EinoDebugEnabled, port: cfg.EinoDebugPort}
}

// Initialize starts the devops server on its default port (52538). Graphs
// compiled afterwards show up in the Eino debug UI. It is a no-op when
// disabled.
func (d *EinoDebugger) Initialize(ctx context.Context) error {
	if !d.enabled {
		return nil
	}
	log := logger.Component("eino-debug")
	log.Info().Int("port", d.port).Msg("initializing Eino visual debug plugin")

	if err := devops.Init(ctx); err != nil {
		return fmt.Errorf("failed to initialize Eino debug plugin: %w", err)
	}
	log.Info().Str("url", d.GetDebugURL()).Msg("debug server ready")
	return nil
}

func (d *EinoDebugger) IsEnabled() bool {
	return d.enabled
}

func (d *EinoDebugger) GetDebugURL() string {
	if !d.enabled {
		return ""
	}
	return fmt.Sprintf("http://localhost:%d", d.port)
}
