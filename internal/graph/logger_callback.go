package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cloudwego/eino/callbacks"
	"github.com/cloudwego/eino/schema"
	"github.com/dyike/forexcell/internal/logger"
)

type startKey struct{}

// LoggerCallback logs node starts and ends. When Out is set, progress lines
// are also pushed to it without blocking.
type LoggerCallback struct {
	Out chan string
}

func (cb *LoggerCallback) push(line string) {
	if cb.Out == nil {
		return
	}
	select {
	case cb.Out <- line:
	default:
	}
}

func (cb *LoggerCallback) OnStart(ctx context.Context, info *callbacks.RunInfo, input callbacks.CallbackInput) context.Context {
	if info == nil {
		return ctx
	}
	log := logger.Component("graph")
	log.Debug().Str("node", info.Name).Str("type", info.Type).Msg("node start")
	cb.push(fmt.Sprintf("[start] %s", info.Name))
	return context.WithValue(ctx, startKey{}, time.Now())
}

func (cb *LoggerCallback) OnEnd(ctx context.Context, info *callbacks.RunInfo, output callbacks.CallbackOutput) context.Context {
	if info == nil {
		return ctx
	}
	var took time.Duration
	if start, ok := ctx.Value(startKey{}).(time.Time); ok {
		took = time.Since(start)
	}
	log := logger.Component("graph")
	log.Debug().Str("node", info.Name).Dur("took", took).Msg("node end")
	cb.push(fmt.Sprintf("[done] %s (%s)", info.Name, took.Round(time.Millisecond)))
	return ctx
}

func (cb *LoggerCallback) OnError(ctx context.Context, info *callbacks.RunInfo, err error) context.Context {
	name := ""
	if info != nil {
		name = info.Name
	}
	log := logger.Component("graph")
	log.Error().Err(err).Str("node", name).Msg("node failed")
	cb.push(fmt.Sprintf("[error] %s: %v", name, err))
	return ctx
}

func (cb *LoggerCallback) OnStartWithStreamInput(ctx context.Context, info *callbacks.RunInfo,
	input *schema.StreamReader[callbacks.CallbackInput]) context.Context {
	input.Close()
	return ctx
}

func (cb *LoggerCallback) OnEndWithStreamOutput(ctx context.Context, info *callbacks.RunInfo,
	output *schema.StreamReader[callbacks.CallbackOutput]) context.Context {
	output.Close()
	return ctx
}
