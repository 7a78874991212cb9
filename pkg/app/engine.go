// Package app keeps one live Engine built from the current config and
// rebuilds it when the config file changes.
package app

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/service"
)

// Engine is one generation of the assembled service.
type Engine struct {
	Config  config.Config
	Service *service.Service
	BuiltAt time.Time
	Version uint64
}

var engineSeq atomic.Uint64

// BuildEngine assembles a service for cfg.
func BuildEngine(cfg config.Config) (*Engine, error) {
	svc, err := service.New(context.Background(), cfg)
	if err != nil {
		return nil, err
	}
	return &Engine{
		Config:  cfg,
		Service: svc,
		BuiltAt: time.Now(),
		Version: engineSeq.Add(1),
	}, nil
}

// Close releases the engine's service. It is safe on a nil engine.
func (e *Engine) Close() {
	if e != nil && e.Service != nil {
		e.Service.Close()
	}
}
