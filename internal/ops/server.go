// Package ops serves the maintenance endpoints. The listener binds to
// loopback only; these routes are for operators on the host, not clients.
package ops

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"caseflow_backend/internal/participant"
	"caseflow_backend/platform/logger"
)

// ReadyChecker reports whether startup completed and leadership state.
type ReadyChecker interface {
	IsReady() bool
	IsLeader() bool
}

// RepairStore is the participant repository surface the repair routes use.
type RepairStore interface {
	DuplicateCurrentStatus(ctx context.Context) ([]uuid.UUID, error)
	CloseDuplicateStatuses(ctx context.Context, participantID uuid.UUID) (int64, error)
	UpsertSnapshot(ctx context.Context, p participant.Participant) error
}

// SnapshotFetcher pulls a participant's current state from the registry.
type SnapshotFetcher interface {
	FetchParticipant(ctx context.Context, id uuid.UUID) (participant.Participant, error)
}

type Server struct {
	addr    string
	engine  *gin.Engine
	ready   ReadyChecker
	store   RepairStore
	fetcher SnapshotFetcher
	log     *logger.Logger
}

func NewServer(addr string, ready ReadyChecker, store RepairStore, fetcher SnapshotFetcher, log *logger.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loopbackOnly())

	s := &Server{
		addr:    addr,
		engine:  engine,
		ready:   ready,
		store:   store,
		fetcher: fetcher,
		log:     log,
	}

	engine.GET("/internal/ready", s.handleReady)
	engine.POST("/internal/repair/duplicate-status", s.handleRepairDuplicateStatus)
	engine.POST("/internal/repair/participant/:id", s.handleRepairParticipant)

	return s
}

// Run serves until the context is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.addr,
		Handler: s.engine,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) handleReady(c *gin.Context) {
	if !s.ready.IsReady() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "starting"})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ready",
		"leader": s.ready.IsLeader(),
	})
}

// handleRepairDuplicateStatus closes stray open status rows so every
// participant is back to exactly one current status.
func (s *Server) handleRepairDuplicateStatus(c *gin.Context) {
	ids, err := s.store.DuplicateCurrentStatus(c.Request.Context())
	if err != nil {
		s.log.DatabaseError("repair duplicate status scan", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "scan failed"})
		return
	}

	repaired := 0
	var closed int64
	for _, id := range ids {
		n, err := s.store.CloseDuplicateStatuses(c.Request.Context(), id)
		if err != nil {
			s.log.DatabaseError("repair duplicate status close", err)
			continue
		}
		repaired++
		closed += n
	}

	s.log.Info("duplicate status repair finished", "participants", repaired, "closedRows", closed)
	c.JSON(http.StatusOK, gin.H{
		"participants": repaired,
		"closedRows":   closed,
	})
}

// handleRepairParticipant re-fetches one participant from the registry and
// reapplies the snapshot, for records that missed events while a consumer
// was down.
func (s *Server) handleRepairParticipant(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid participant id"})
		return
	}

	p, err := s.fetcher.FetchParticipant(c.Request.Context(), id)
	if err != nil {
		s.log.Error("participant backfill fetch failed", "participantId", id, "error", err)
		c.JSON(http.StatusBadGateway, gin.H{"error": "registry fetch failed"})
		return
	}

	if err := s.store.UpsertSnapshot(c.Request.Context(), p); err != nil {
		s.log.DatabaseError("participant backfill upsert", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "snapshot write failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"participantId": id, "status": string(p.Status.Type)})
}

func loopbackOnly() gin.HandlerFunc {
	return func(c *gin.Context) {
		host, _, err := net.SplitHostPort(c.Request.RemoteAddr)
		if err != nil {
			host = c.Request.RemoteAddr
		}
		ip := net.ParseIP(host)
		if ip == nil || !ip.IsLoopback() {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "loopback only"})
			return
		}
		c.Next()
	}
}
