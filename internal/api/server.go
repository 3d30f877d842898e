package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/repository"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
	"go.uber.org/zap"
)

// SnapshotStore is the read side of the telemetry store the API serves from.
type SnapshotStore interface {
	ListAllVehicles(ctx context.Context) ([]db.Vehicle, error)
	FindVehicleByRemoteID(ctx context.Context, remoteID string) (*db.Vehicle, error)
	QuerySnapshots(ctx context.Context, kind snapshot.Kind, vehicleID uuid.UUID, rng *repository.TimeRange, page int) ([]db.SnapshotRow, int, error)
}

// Server serves stored snapshots back out.
type Server struct {
	store  SnapshotStore
	token  string
	logger *zap.Logger
}

// NewServer creates the query API server. The bearer token must be set.
func NewServer(store SnapshotStore, token string, logger *zap.Logger) (*Server, error) {
	if token == "" {
		return nil, errors.New("API_TOKEN is required but not set in environment variables")
	}
	return &Server{store: store, token: token, logger: logger}, nil
}

// NewEngine builds the gin engine and registers all routes.
func NewEngine(s *Server) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	authed := r.Group("/", s.RequireAPIToken())
	authed.GET("/vehicles", s.Vehicles)
	authed.GET("/charge", s.Snapshots(snapshot.KindCharge))
	authed.GET("/climate", s.Snapshots(snapshot.KindClimate))
	authed.GET("/drive", s.Snapshots(snapshot.KindDrive))
	authed.GET("/vehicle", s.Snapshots(snapshot.KindVehicle))

	return r
}

func abortError(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}
