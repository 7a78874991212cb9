package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync/atomic"
	"time"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/logger"
)

type EngineBuilder func(config.Config) (*Engine, error)

type Option func(*Runtime)

func WithBuilder(builder EngineBuilder) Option {
	return func(r *Runtime) {
		if builder != nil {
			r.builder = builder
		}
	}
}

// WithNotifier receives engine.reloaded and engine.reload_failed events.
func WithNotifier(fn func(topic, payload string)) Option {
	return func(r *Runtime) {
		r.notify = fn
	}
}

// WithGrace delays closing a replaced engine so in-flight requests finish.
func WithGrace(d time.Duration) Option {
	return func(r *Runtime) { r.grace = d }
}

type Runtime struct {
	cfgMgr *config.Manager
	engine atomic.Pointer[Engine]

	builder EngineBuilder
	notify  func(string, string)
	grace   time.Duration
	cancel  context.CancelFunc
}

func NewRuntime(cfgMgr *config.Manager, opts ...Option) (*Runtime, error) {
	if cfgMgr == nil {
		return nil, errors.New("config manager is required")
	}

	rt := &Runtime{
		cfgMgr:  cfgMgr,
		builder: BuildEngine,
		grace:   30 * time.Second,
	}
	for _, opt := range opts {
		opt(rt)
	}

	if err := rt.reload(cfgMgr.Get()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(context.Background())
	rt.cancel = cancel
	if err := cfgMgr.Watch(ctx, func(cfg config.Config) {
		if err := rt.reload(cfg); err != nil {
			log := logger.Component("runtime")
			log.Error().Err(err).Msg("engine reload failed, keeping the previous engine")
		}
	}); err != nil {
		cancel()
		rt.engine.Swap(nil).Close()
		return nil, err
	}
	return rt, nil
}

func (r *Runtime) Engine() *Engine {
	return r.engine.Load()
}

// Close stops watching the config and closes the current engine.
func (r *Runtime) Close() {
	if r.cancel != nil {
		r.cancel()
	}
	r.engine.Swap(nil).Close()
}

func (r *Runtime) UpdateConfigJSON(jsonStr string) error {
	return r.cfgMgr.UpdateFromJSON(jsonStr)
}

func (r *Runtime) reload(cfg config.Config) error {
	engine, err := r.builder(cfg)
	if err != nil {
		r.notifyFailure(err)
		return err
	}
	old := r.engine.Swap(engine)
	if old != nil {
		if r.grace > 0 {
			time.AfterFunc(r.grace, old.Close)
		} else {
			old.Close()
		}
	}
	log := logger.Component("runtime")
	log.Info().Uint64("version", engine.Version).Msg("engine ready")
	r.notifySuccess(engine)
	return nil
}

func (r *Runtime) notifySuccess(engine *Engine) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]any{
		"version":  engine.Version,
		"built_at": engine.BuiltAt.UTC().Format(time.RFC3339),
	})
	r.notify("engine.reloaded", string(payload))
}

func (r *Runtime) notifyFailure(err error) {
	if r.notify == nil {
		return
	}
	payload, _ := json.Marshal(map[string]string{
		"error": err.Error(),
	})
	r.notify("engine.reload_failed", string(payload))
}
