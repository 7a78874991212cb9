// Package service assembles the data providers, agents, tool servers,
// storage and workflow executor from one Config.
package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/cloudwego/eino/components/model"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/config"
	"github.com/dyike/forexcell/internal/agents"
	"github.com/dyike/forexcell/internal/cache"
	"github.com/dyike/forexcell/internal/dataflows"
	"github.com/dyike/forexcell/internal/economic"
	"github.com/dyike/forexcell/internal/graph"
	"github.com/dyike/forexcell/internal/llm"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/servers"
	"github.com/dyike/forexcell/internal/storage"
	"github.com/dyike/forexcell/internal/technical"
	"github.com/dyike/forexcell/internal/workflow"
)

const cacheItems = 4096

type Service struct {
	Config    config.Config
	Cache     *cache.MarketCache
	Fetcher   *dataflows.DataFetcher
	Calendar  *economic.Calendar
	Technical *technical.Analyzer
	Analyzer  *llm.Analyzer
	Agents    *agents.Manager
	Tools     *servers.ToolRegistry
	Servers   *servers.Manager
	Store     *storage.Store

	log zerolog.Logger
}

type options struct {
	noStore    bool
	listenHost string
	client     *llm.Client
	market     agents.MarketData
}

type Option func(*options)

// WithoutStore skips opening the SQLite database.
func WithoutStore() Option { return func(o *options) { o.noStore = true } }

// WithServerListener makes started tool servers listen on host.
func WithServerListener(host string) Option { return func(o *options) { o.listenHost = host } }

// WithLLMClient replaces the client built from the config.
func WithLLMClient(c *llm.Client) Option { return func(o *options) { o.client = c } }

// WithMarketData replaces the data fetcher the agents use.
func WithMarketData(m agents.MarketData) Option { return func(o *options) { o.market = m } }

// New builds every component. A missing LLM key is not an error: the
// analyzers fall back to their rule-based output.
func New(ctx context.Context, cfg config.Config, opts ...Option) (*Service, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	s := &Service{Config: cfg, log: logger.Component("service")}

	if err := cfg.EnsureDirectories(); err != nil {
		return nil, err
	}

	c, err := cache.New(cacheItems, cfg.CacheTTL(), cfg.CacheEnabled)
	if err != nil {
		return nil, err
	}
	s.Cache = c
	s.Fetcher = dataflows.NewDataFetcher(&cfg, c)

	client := o.client
	var chat model.ToolCallingChatModel
	if client == nil {
		cm, name, err := llm.NewChatModel(ctx, &cfg, false)
		switch {
		case errors.Is(err, llm.ErrNotConfigured):
			s.log.Warn().Err(err).Msg("llm disabled, using rule-based analysis")
		case err != nil:
			s.Close()
			return nil, err
		default:
			client = llm.NewClient(cm, name)
			chat = cm
		}
	}
	s.Analyzer = llm.NewAnalyzer(client)

	var calOpts []economic.Option
	var techOpts []technical.Option
	deps := agents.Deps{Analyzer: s.Analyzer, ChatModel: chat}
	if client != nil {
		calOpts = append(calOpts, economic.WithGenerator(client))
		techOpts = append(techOpts, technical.WithNarrator(s.Analyzer))
		deps.Generator = client
	}
	s.Calendar = economic.NewCalendar(dataflows.NewAlphaVantageClient(&cfg), calOpts...)
	s.Technical = technical.NewAnalyzer(techOpts...)

	deps.Calendar = s.Calendar
	deps.Technical = s.Technical
	deps.Headlines = dataflows.NewHeadlineScraper(c)
	deps.Market = s.Fetcher
	if o.market != nil {
		deps.Market = o.market
	}
	s.Agents = agents.NewManager()
	agents.RegisterBuiltins(s.Agents, deps)

	s.Tools = servers.NewToolRegistry()
	skipped, err := s.Tools.RegisterDiscovered(cfg.ServersDir, servers.BuiltinFactories(ctx, s.Agents))
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("register tool servers: %w", err)
	}
	if len(skipped) > 0 {
		s.log.Warn().Strs("skipped", skipped).Msg("tool definitions with unknown server_type")
	}

	var mgrOpts []servers.ManagerOption
	if o.listenHost != "" {
		mgrOpts = append(mgrOpts, servers.WithListener(o.listenHost))
	}
	s.Servers, err = servers.NewManager(s.Tools, cfg.ServerPortStart, cfg.ServerPortEnd, mgrOpts...)
	if err != nil {
		s.Close()
		return nil, err
	}

	if !o.noStore {
		s.Store, err = storage.Open(cfg.DBPath)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open store: %w", err)
		}
	}

	s.log.Info().
		Bool("llm", client != nil).
		Strs("agents", s.Agents.Names()).
		Strs("tools", s.Tools.List()).
		Msg("service ready")
	return s, nil
}

// Executor returns a workflow executor over the service's agents and
// tool servers.
func (s *Service) Executor(opts ...workflow.Option) *workflow.Executor {
	return workflow.New(s.Agents, s.Servers, opts...)
}

// Analyze runs the analysis graph for pair and query.
func (s *Service) Analyze(ctx context.Context, pair, query string) (*graph.AnalysisState, error) {
	return s.AnalyzeWithProgress(ctx, pair, query, nil)
}

// AnalyzeWithProgress is Analyze with node progress lines sent to progress.
// Sends never block and progress is not closed.
func (s *Service) AnalyzeWithProgress(ctx context.Context, pair, query string, progress chan string) (*graph.AnalysisState, error) {
	a, err := graph.NewAnalysis(ctx, s.Agents)
	if err != nil {
		return nil, err
	}
	a.Out = progress
	return a.Run(ctx, pair, query)
}

// Close stops running tool servers and releases the store and cache.
func (s *Service) Close() {
	if s.Servers != nil {
		s.Servers.StopAll()
	}
	if s.Store != nil {
		if err := s.Store.Close(); err != nil {
			s.log.Warn().Err(err).Msg("close store")
		}
	}
	if s.Cache != nil {
		s.Cache.Close()
	}
}
