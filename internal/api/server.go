// Package api serves the agents, workflows, runs and watchlists over HTTP.
package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/dyike/forexcell/consts"
	"github.com/dyike/forexcell/internal/logger"
	"github.com/dyike/forexcell/internal/metrics"
	"github.com/dyike/forexcell/internal/service"
)

// Response is the envelope of every API reply.
type Response struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

type Server struct {
	R       *gin.Engine
	current func() *service.Service
	log     zerolog.Logger
}

// NewServer wires the router. current returns the live service, so handlers
// follow engine reloads.
func NewServer(current func() *service.Service) *Server {
	gin.SetMode(gin.ReleaseMode)
	g := gin.New()
	s := &Server{R: g, current: current, log: logger.Component("api")}

	g.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Str("ip", c.ClientIP()).
			Dur("latency", time.Since(start)).
			Msg("http_request")
	})
	g.Use(gin.Recovery())

	g.GET("/", s.info)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))

	v1 := g.Group("/api/v1")
	v1.GET("/system/health", s.health)

	v1.GET("/agents", s.listAgents)
	v1.POST("/agents/:name/execute", s.executeAgent)
	v1.POST("/plan", s.plan)
	v1.POST("/analyze", s.analyze)

	v1.GET("/workflows", s.listWorkflows)
	v1.POST("/workflows/run", s.runWorkflow)
	v1.GET("/runs", s.listRuns)
	v1.GET("/runs/:id", s.getRun)
	v1.GET("/reports", s.listReports)

	v1.GET("/servers", s.listServers)
	v1.POST("/servers/:name/start", s.startServer)
	v1.POST("/servers/:name/stop", s.stopServer)

	v1.GET("/watchlists", s.listWatchlists)
	v1.POST("/watchlists", s.createWatchlist)
	v1.GET("/watchlists/:id", s.getWatchlist)
	v1.DELETE("/watchlists/:id", s.deleteWatchlist)
	v1.POST("/watchlists/:id/assets", s.addAsset)
	v1.DELETE("/watchlists/:id/assets", s.removeAsset)

	return s
}

func (s *Server) svc() *service.Service { return s.current() }

func ok(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Code: consts.CodeOK, Msg: "Ok", Data: data})
}

func fail(c *gin.Context, status int, msg string) {
	c.JSON(status, Response{Code: status, Msg: msg})
}

func (s *Server) internalError(c *gin.Context, where string, err error) {
	s.log.Error().Err(err).Str("where", where).Msg("internal_error")
	fail(c, http.StatusInternalServerError, err.Error())
}

func parseLimit(v string, def, min, max int) int {
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < min || n > max {
		return def
	}
	return n
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		fail(c, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
