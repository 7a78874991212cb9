package api

import (
	"errors"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dyike/forexcell/consts"
	"github.com/dyike/forexcell/internal/agents"
	"github.com/dyike/forexcell/internal/servers"
	"github.com/dyike/forexcell/internal/storage"
	"github.com/dyike/forexcell/internal/workflow"
)

func (s *Server) info(c *gin.Context) {
	ok(c, gin.H{
		"name":        consts.AppName,
		"version":     consts.Version,
		"description": consts.Description,
		"docs":        "/api/v1",
	})
}

func (s *Server) health(c *gin.Context) {
	svc := s.svc()
	ok(c, gin.H{
		"status":   "healthy",
		"llm":      svc.Analyzer.Enabled(),
		"agents":   svc.Agents.Names(),
		"servers":  svc.Servers.Status(),
		"store":    svc.Store != nil,
		"time":     time.Now().UTC().Format(time.RFC3339),
		"version":  consts.Version,
		"analyzer": svc.Analyzer.HealthCheck(),
	})
}

type agentItem struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (s *Server) listAgents(c *gin.Context) {
	desc := s.svc().Agents.Descriptions()
	out := make([]agentItem, 0, len(desc))
	for name, d := range desc {
		out = append(out, agentItem{Name: name, Description: d})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	ok(c, out)
}

func (s *Server) executeAgent(c *gin.Context) {
	task := agents.Task{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&task); err != nil {
			fail(c, http.StatusBadRequest, "invalid task: "+err.Error())
			return
		}
	}
	res, err := s.svc().Agents.Execute(c.Request.Context(), c.Param("name"), task)
	if errors.Is(err, agents.ErrUnknownAgent) {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, "executeAgent", err)
		return
	}
	ok(c, res)
}

type planRequest struct {
	Query       string `json:"query"`
	TargetAgent string `json:"target_agent"`
}

func (s *Server) plan(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, "query is required")
		return
	}
	res, err := s.svc().Agents.Execute(c.Request.Context(), agents.PlannerName, agents.Task{
		"query":        req.Query,
		"target_agent": req.TargetAgent,
	})
	if err != nil {
		s.internalError(c, "plan", err)
		return
	}
	ok(c, res)
}

type analyzeRequest struct {
	Pair  string `json:"currency_pair"`
	Query string `json:"query"`
}

func (s *Server) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		fail(c, http.StatusBadRequest, "query is required")
		return
	}
	out, err := s.svc().Analyze(c.Request.Context(), req.Pair, req.Query)
	if err != nil {
		s.internalError(c, "analyze", err)
		return
	}
	ok(c, out)
}

func (s *Server) listWorkflows(c *gin.Context) {
	found, err := workflow.Discover(s.svc().Config.WorkflowsDir)
	if err != nil {
		s.internalError(c, "listWorkflows", err)
		return
	}
	names := make([]string, 0, len(found))
	for name := range found {
		names = append(names, name)
	}
	sort.Strings(names)
	ok(c, names)
}

type runRequest struct {
	Workflow string         `json:"workflow"`
	Params   map[string]any `json:"params"`
}

func (s *Server) runWorkflow(c *gin.Context) {
	var req runRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Workflow) == "" {
		fail(c, http.StatusBadRequest, "workflow is required")
		return
	}
	out, err := s.svc().RunWorkflow(c.Request.Context(), req.Workflow, req.Params, workflow.WithQuiet(true))
	if out == nil {
		fail(c, http.StatusNotFound, err.Error())
		return
	}
	if err != nil {
		c.JSON(http.StatusOK, Response{Code: consts.CodeError, Msg: err.Error(), Data: out})
		return
	}
	ok(c, out)
}

func (s *Server) listRuns(c *gin.Context) {
	store := s.svc().Store
	if store == nil {
		fail(c, http.StatusServiceUnavailable, "storage is disabled")
		return
	}
	runs, err := store.ListRuns(c.Request.Context(), parseLimit(c.Query("limit"), 20, 1, 500))
	if err != nil {
		s.internalError(c, "listRuns", err)
		return
	}
	ok(c, runs)
}

func (s *Server) getRun(c *gin.Context) {
	store := s.svc().Store
	if store == nil {
		fail(c, http.StatusServiceUnavailable, "storage is disabled")
		return
	}
	run, err := store.GetRun(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.internalError(c, "getRun", err)
		return
	}
	if run == nil {
		fail(c, http.StatusNotFound, "run not found")
		return
	}
	ok(c, run)
}

func (s *Server) listReports(c *gin.Context) {
	page, err := s.svc().ListReports(c.Query("cursor"), parseLimit(c.Query("limit"), 50, 1, 200))
	if err != nil {
		s.internalError(c, "listReports", err)
		return
	}
	ok(c, page)
}

func (s *Server) listServers(c *gin.Context) {
	svc := s.svc()
	names := svc.Tools.List()
	out := make([]map[string]any, 0, len(names))
	for _, name := range names {
		h := svc.Servers.Health(c.Request.Context(), name)
		h["name"] = name
		if def, found := svc.Tools.Definition(name); found {
			h["description"] = def.Description
			h["server_type"] = def.Type()
		}
		out = append(out, h)
	}
	ok(c, out)
}

func (s *Server) startServer(c *gin.Context) {
	params := map[string]any{}
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&params); err != nil {
			fail(c, http.StatusBadRequest, "invalid params: "+err.Error())
			return
		}
	}
	port, err := s.svc().Servers.Start(c.Param("name"), params)
	switch {
	case errors.Is(err, servers.ErrUnknownTool):
		fail(c, http.StatusNotFound, err.Error())
	case err != nil:
		s.internalError(c, "startServer", err)
	default:
		ok(c, gin.H{"name": c.Param("name"), "port": port})
	}
}

func (s *Server) stopServer(c *gin.Context) {
	if !s.svc().Servers.Stop(c.Param("name")) {
		fail(c, http.StatusNotFound, servers.ErrServerNotRunning.Error())
		return
	}
	ok(c, gin.H{"name": c.Param("name"), "stopped": true})
}

func (s *Server) store(c *gin.Context) (*storage.Store, bool) {
	store := s.svc().Store
	if store == nil {
		fail(c, http.StatusServiceUnavailable, "storage is disabled")
		return nil, false
	}
	return store, true
}

func (s *Server) listWatchlists(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	userID := c.Query("user_id")
	if userID == "" {
		fail(c, http.StatusBadRequest, "user_id is required")
		return
	}
	lists, err := store.ListWatchlists(c.Request.Context(), userID)
	if err != nil {
		s.internalError(c, "listWatchlists", err)
		return
	}
	ok(c, lists)
}

type createWatchlistRequest struct {
	UserID      string `json:"user_id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

func (s *Server) createWatchlist(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	var req createWatchlistRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" || req.Name == "" {
		fail(c, http.StatusBadRequest, "user_id and name are required")
		return
	}
	w, err := store.CreateWatchlist(c.Request.Context(), req.UserID, req.Name, req.Description, req.IsDefault)
	if errors.Is(err, storage.ErrWatchlistExists) {
		fail(c, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.internalError(c, "createWatchlist", err)
		return
	}
	ok(c, w)
}

func (s *Server) getWatchlist(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	id, valid := parseID(c)
	if !valid {
		return
	}
	w, err := store.GetWatchlist(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "getWatchlist", err)
		return
	}
	if w == nil {
		fail(c, http.StatusNotFound, "watchlist not found")
		return
	}
	ok(c, w)
}

func (s *Server) deleteWatchlist(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	id, valid := parseID(c)
	if !valid {
		return
	}
	deleted, err := store.DeleteWatchlist(c.Request.Context(), id)
	if err != nil {
		s.internalError(c, "deleteWatchlist", err)
		return
	}
	if !deleted {
		fail(c, http.StatusNotFound, "watchlist not found")
		return
	}
	ok(c, gin.H{"deleted": true})
}

type assetRequest struct {
	Ticker string   `json:"ticker"`
	Notes  string   `json:"notes"`
	Tags   []string `json:"tags"`
}

func (s *Server) addAsset(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	id, valid := parseID(c)
	if !valid {
		return
	}
	var req assetRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Ticker) == "" {
		fail(c, http.StatusBadRequest, "ticker is required")
		return
	}
	added, err := store.AddAsset(c.Request.Context(), id, req.Ticker, req.Notes, req.Tags)
	if err != nil {
		s.internalError(c, "addAsset", err)
		return
	}
	ok(c, gin.H{"added": added})
}

// removeAsset takes the ticker as a query parameter since pairs contain "/".
func (s *Server) removeAsset(c *gin.Context) {
	store, found := s.store(c)
	if !found {
		return
	}
	id, valid := parseID(c)
	if !valid {
		return
	}
	ticker := c.Query("ticker")
	if ticker == "" {
		fail(c, http.StatusBadRequest, "ticker is required")
		return
	}
	removed, err := store.RemoveAsset(c.Request.Context(), id, ticker)
	if err != nil {
		s.internalError(c, "removeAsset", err)
		return
	}
	ok(c, gin.H{"removed": removed})
}
