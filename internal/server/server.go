package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/prospectiq/donorsync-worker/internal/models"
	"github.com/prospectiq/donorsync-worker/internal/service"
)

// Coordinator is the slice of the sync coordinator the routes need.
type Coordinator interface {
	StartSync(ctx context.Context, accountID, provider string) (string, error)
	GetSyncStatus(ctx context.Context, accountID, provider string) ([]models.SyncJob, error)
}

type Server struct {
	coordinator Coordinator
	engine      *gin.Engine
}

func New(coordinator Coordinator) *Server {
	s := &Server{
		coordinator: coordinator,
		engine:      gin.New(),
	}
	s.engine.Use(gin.Recovery())

	s.engine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/api/v1")
	v1.POST("/accounts/:account_id/providers/:provider/sync", s.startSync)
	v1.GET("/accounts/:account_id/providers/:provider/sync", s.getSyncStatus)

	return s
}

// Handler exposes the router for http.Server and tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) startSync(c *gin.Context) {
	accountID := c.Param("account_id")
	providerName := c.Param("provider")

	jobID, err := s.coordinator.StartSync(c.Request.Context(), accountID, providerName)
	if err != nil {
		var tooSoon *service.TooSoonError
		switch {
		case errors.Is(err, service.ErrAlreadyRunning):
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		case errors.As(err, &tooSoon):
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":               err.Error(),
				"retry_after_seconds": int(tooSoon.RetryAfter.Round(time.Second).Seconds()),
			})
		case errors.Is(err, service.ErrNoCredential), errors.Is(err, service.ErrUnknownProvider):
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to start sync"})
		}
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID})
}

type jobSummary struct {
	ID            string     `json:"id"`
	Kind          string     `json:"kind"`
	Status        string     `json:"status"`
	RecordsSynced int        `json:"records_synced"`
	RecordsFailed int        `json:"records_failed"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
	ErrorMessage  *string    `json:"error_message,omitempty"`
}

func (s *Server) getSyncStatus(c *gin.Context) {
	accountID := c.Param("account_id")
	providerName := c.Param("provider")

	jobs, err := s.coordinator.GetSyncStatus(c.Request.Context(), accountID, providerName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to query sync status"})
		return
	}

	summaries := make([]jobSummary, 0, len(jobs))
	for _, job := range jobs {
		summaries = append(summaries, jobSummary{
			ID:            job.ID,
			Kind:          string(job.Kind),
			Status:        string(job.Status),
			RecordsSynced: job.RecordsSynced,
			RecordsFailed: job.RecordsFailed,
			StartedAt:     job.StartedAt,
			CompletedAt:   job.CompletedAt,
			ErrorMessage:  job.ErrorMessage,
		})
	}

	c.JSON(http.StatusOK, gin.H{"jobs": summaries})
}
