package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/secfunded/stackd/internal/metrics"
	"github.com/secfunded/stackd/internal/store"
	"github.com/secfunded/stackd/internal/supervisor"
)

// Router exposes the supervisor's read-only admin surface:
//
//	GET /healthz  supervisor liveness
//	GET /status   both slots' snapshots and the supervisor state
//	GET /events   recent journal entries (?limit=N)
//	GET /metrics  Prometheus metrics
//
// It is meant to listen on localhost only; there is no mutation and no auth.
type Router struct {
	sup     *supervisor.Supervisor
	journal store.Journal // may be nil
}

func NewRouter(sup *supervisor.Supervisor, journal store.Journal) *Router {
	return &Router{sup: sup, journal: journal}
}

// Handler returns an http.Handler powered by gin that can be mounted in any server/mux.
func (r *Router) Handler() http.Handler {
	g := gin.New()
	g.Use(gin.Recovery())
	g.GET("/healthz", r.handleHealthz)
	g.GET("/status", r.handleStatus)
	g.GET("/events", r.handleEvents)
	g.GET("/metrics", gin.WrapH(metrics.Handler()))
	return g
}

// NewServer starts a standalone HTTP server on addr using this router.
func NewServer(addr string, sup *supervisor.Supervisor, journal store.Journal) *http.Server {
	r := NewRouter(sup, journal)
	server := &http.Server{
		Addr:              addr,
		Handler:           r.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
	go func() { _ = server.ListenAndServe() }()
	return server
}

type errorResp struct {
	Error string `json:"error"`
}

func (r *Router) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "state": r.sup.State().String()})
}

func (r *Router) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, r.sup.Status())
}

func (r *Router) handleEvents(c *gin.Context) {
	if r.journal == nil {
		c.JSON(http.StatusNotFound, errorResp{Error: "journal not configured"})
		return
	}
	limit := 50
	if q := c.Query("limit"); q != "" {
		n, err := strconv.Atoi(q)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, errorResp{Error: "invalid limit"})
			return
		}
		limit = n
	}
	events, err := r.journal.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, errorResp{Error: err.Error()})
		return
	}
	c.JSON(http.StatusOK, events)
}
