// Package api exposes submitted jobs over HTTP for external polling.
// The surface is read-only apart from cancellation; submission happens
// in-process through controller.Submit.
package api

import (
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"

	"LocalMR/internal/controller"
	"LocalMR/internal/logger"
)

// Server tracks job handles and serves their status.
type Server struct {
	log *logger.Logger

	mu   sync.RWMutex
	jobs map[string]*controller.JobHandle
}

// NewServer creates an empty job registry server.
func NewServer(log *logger.Logger) *Server {
	return &Server{
		log:  log,
		jobs: make(map[string]*controller.JobHandle),
	}
}

// Register makes a job visible to pollers.
func (s *Server) Register(h *controller.JobHandle) {
	s.mu.Lock()
	s.jobs[h.ID()] = h
	s.mu.Unlock()
	s.log.Info("api: registered job %s", h.ID())
}

// Router builds the gin routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/jobs", s.listJobs)
	r.GET("/jobs/:id", s.getJob)
	r.GET("/jobs/:id/result", s.getResult)
	r.POST("/jobs/:id/cancel", s.cancelJob)

	return r
}

// Run serves the API on addr, blocking.
func (s *Server) Run(addr string) error {
	s.log.Info("api: listening on %s", addr)
	return s.Router().Run(addr)
}

func (s *Server) lookup(c *gin.Context) (*controller.JobHandle, bool) {
	s.mu.RLock()
	h, ok := s.jobs[c.Param("id")]
	s.mu.RUnlock()
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no such job"})
	}
	return h, ok
}

func (s *Server) listJobs(c *gin.Context) {
	s.mu.RLock()
	ids := make([]string, 0, len(s.jobs))
	for id := range s.jobs {
		ids = append(ids, id)
	}
	s.mu.RUnlock()
	c.JSON(http.StatusOK, gin.H{"jobs": ids})
}

func (s *Server) getJob(c *gin.Context) {
	h, ok := s.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, h.Status())
}

func (s *Server) getResult(c *gin.Context) {
	h, ok := s.lookup(c)
	if !ok {
		return
	}
	outputs, err := h.Result()
	if err != nil {
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"outputs": outputs})
}

func (s *Server) cancelJob(c *gin.Context) {
	h, ok := s.lookup(c)
	if !ok {
		return
	}
	h.Cancel()
	c.JSON(http.StatusAccepted, h.Status())
}
