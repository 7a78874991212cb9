package servers

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
)

type running struct {
	port      int
	tool      Tool
	srv       *http.Server
	startedAt time.Time
}

// Manager starts tool instances on ports taken from a fixed pool.
type Manager struct {
	mu       sync.Mutex
	registry *ToolRegistry
	free     []int
	servers  map[string]*running
	host     string
	log      zerolog.Logger
}

type ManagerOption func(*Manager)

// WithListener serves every started tool over HTTP on host:port.
func WithListener(host string) ManagerOption {
	return func(m *Manager) { m.host = host }
}

// NewManager creates a manager owning ports [start, end].
func NewManager(registry *ToolRegistry, start, end int, opts ...ManagerOption) (*Manager, error) {
	if start <= 0 || end < start {
		return nil, fmt.Errorf("invalid port range %d-%d", start, end)
	}
	m := &Manager{
		registry: registry,
		servers:  make(map[string]*running),
		log:      logger.Component("servers"),
	}
	for p := start; p <= end; p++ {
		m.free = append(m.free, p)
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Start creates the tool instance and returns its port. Starting a running
// server returns the port it already holds.
func (m *Manager) Start(name string, params map[string]any) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if r, ok := m.servers[name]; ok {
		m.log.Debug().Str("server", name).Int("port", r.port).Msg("already running")
		return r.port, nil
	}
	if len(m.free) == 0 {
		return 0, ErrNoPorts
	}
	tool, err := m.registry.Create(name, params)
	if err != nil {
		return 0, err
	}

	port := m.free[0]
	r := &running{port: port, tool: tool, startedAt: time.Now()}
	if m.host != "" {
		srv, err := m.listen(name, tool, port)
		if err != nil {
			return 0, err
		}
		r.srv = srv
	}
	m.free = m.free[1:]
	m.servers[name] = r
	metrics.ServersRunning.Inc()
	m.log.Info().Str("server", name).Int("port", port).Msg("server started")
	return port, nil
}

func (m *Manager) listen(name string, tool Tool, port int) (*http.Server, error) {
	ln, err := net.Listen("tcp", net.JoinHostPort(m.host, strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", name, err)
	}
	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, m.Health(c.Request.Context(), name))
	})
	engine.POST("/call/:method", func(c *gin.Context) {
		var inputs map[string]any
		if err := c.ShouldBindJSON(&inputs); err != nil {
			inputs = map[string]any{}
		}
		out, err := callTool(c.Request.Context(), tool, name, c.Param("method"), inputs)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"result": out})
	})

	srv := &http.Server{Handler: engine, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.log.Error().Err(err).Str("server", name).Msg("serve failed")
		}
	}()
	return srv, nil
}

// Stop shuts the server down and returns its port to the pool. It reports
// whether the server was running.
func (m *Manager) Stop(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stopLocked(name)
}

func (m *Manager) stopLocked(name string) bool {
	r, ok := m.servers[name]
	if !ok {
		return false
	}
	delete(m.servers, name)
	if r.srv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = r.srv.Shutdown(ctx)
		cancel()
	}
	m.free = append(m.free, r.port)
	slices.Sort(m.free)
	metrics.ServersRunning.Dec()
	m.log.Info().Str("server", name).Msg("server stopped")
	return true
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name := range m.servers {
		m.stopLocked(name)
	}
}

func (m *Manager) Running(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.servers[name]
	return ok
}

// Call invokes method on a running server.
func (m *Manager) Call(ctx context.Context, name, method string, inputs map[string]any) (any, error) {
	m.mu.Lock()
	r, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotRunning, name)
	}
	return callTool(ctx, r.tool, name, method, inputs)
}

func callTool(ctx context.Context, tool Tool, name, method string, inputs map[string]any) (any, error) {
	if !slices.Contains(tool.Methods(), method) {
		return nil, fmt.Errorf("%w: %s.%s", ErrUnknownMethod, name, method)
	}
	if inputs == nil {
		inputs = map[string]any{}
	}
	return tool.Call(ctx, method, inputs)
}

// Health reports "stopped", "running", or the tool's own status, with
// "error" when its check fails.
func (m *Manager) Health(ctx context.Context, name string) map[string]any {
	m.mu.Lock()
	r, ok := m.servers[name]
	m.mu.Unlock()
	if !ok {
		return map[string]any{"status": "stopped"}
	}
	hc, ok := r.tool.(HealthChecker)
	if !ok {
		return map[string]any{"status": "running", "port": r.port}
	}
	out, err := hc.HealthCheck(ctx)
	if err != nil {
		return map[string]any{"status": "error", "error": err.Error()}
	}
	if _, ok := out["status"]; !ok {
		out["status"] = "running"
	}
	return out
}

type ServerStatus struct {
	Name      string    `json:"name"`
	Port      int       `json:"port"`
	StartedAt time.Time `json:"started_at"`
}

// Status lists the running servers by name.
func (m *Manager) Status() []ServerStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]ServerStatus, 0, len(m.servers))
	for name, r := range m.servers {
		out = append(out, ServerStatus{Name: name, Port: r.port, StartedAt: r.startedAt})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Registry returns the tool registry the manager creates instances from.
func (m *Manager) Registry() *ToolRegistry { return m.registry }
