package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/db"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/repository"
	"github.com/voltwatch/vehicle-telemetry-worker/internal/snapshot"
	"go.uber.org/zap"
)

// timestampLayout renders stored instants at their millisecond precision.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Vehicles returns the fleet's vehicle metadata.
func (s *Server) Vehicles(c *gin.Context) {
	vehicles, err := s.store.ListAllVehicles(c.Request.Context())
	if err != nil {
		s.logger.Error("failed to list vehicles", zap.Error(err))
		abortError(c, http.StatusInternalServerError, "internal error")
		return
	}

	out := make([]gin.H, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, gin.H{
			"vehicle_id": v.RemoteID,
			"vin":        v.VIN,
			"color":      v.Color,
			"name":       v.Name,
		})
	}
	c.JSON(http.StatusOK, out)
}

// Snapshots serves one snapshot kind with range filtering and pagination.
func (s *Server) Snapshots(kind snapshot.Kind) gin.HandlerFunc {
	return func(c *gin.Context) {
		remoteID := c.Query("vehicle_id")
		if remoteID == "" {
			abortError(c, http.StatusBadRequest, "missing required parameter 'vehicle_id'")
			return
		}

		vehicle, err := s.store.FindVehicleByRemoteID(c.Request.Context(), remoteID)
		if err != nil {
			s.logger.Error("failed to look up vehicle", zap.Error(err))
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}
		if vehicle == nil {
			abortError(c, http.StatusBadRequest, "vehicle not found")
			return
		}

		rng, ok := parseRange(c)
		if !ok {
			return
		}
		page, ok := parsePage(c)
		if !ok {
			return
		}

		rows, total, err := s.store.QuerySnapshots(c.Request.Context(), kind, vehicle.ID, rng, page)
		if err != nil {
			s.logger.Error("failed to query snapshots",
				zap.String("kind", string(kind)), zap.Error(err))
			abortError(c, http.StatusInternalServerError, "internal error")
			return
		}

		items := make([]map[string]interface{}, 0, len(rows))
		for _, row := range rows {
			item, err := serializeRow(row)
			if err != nil {
				s.logger.Error("failed to serialize snapshot", zap.Error(err))
				abortError(c, http.StatusInternalServerError, "internal error")
				return
			}
			items = append(items, item)
		}

		if links := linkHeader(c.Request.URL, page, pageCount(total)); links != "" {
			c.Header("Link", links)
		}
		c.JSON(http.StatusOK, items)
	}
}

// parseRange reads the optional [start, end) filter. The range is active only
// when both bounds are present; an inverted range is rejected, not clamped.
func parseRange(c *gin.Context) (*repository.TimeRange, bool) {
	startParam := c.Query("start")
	endParam := c.Query("end")
	if startParam == "" || endParam == "" {
		return nil, true
	}

	start, err := time.Parse(time.RFC3339, startParam)
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid 'start' timestamp")
		return nil, false
	}
	end, err := time.Parse(time.RFC3339, endParam)
	if err != nil {
		abortError(c, http.StatusBadRequest, "invalid 'end' timestamp")
		return nil, false
	}
	if !end.After(start) {
		abortError(c, http.StatusBadRequest, "invalid range: 'end' must be after 'start'")
		return nil, false
	}
	return &repository.TimeRange{Start: start, End: end}, true
}

func parsePage(c *gin.Context) (int, bool) {
	raw := c.Query("page")
	if raw == "" {
		return 1, true
	}
	page, err := strconv.Atoi(raw)
	if err != nil || page < 1 {
		abortError(c, http.StatusBadRequest, "invalid 'page' parameter")
		return 0, false
	}
	return page, true
}

// serializeRow merges the stored payload with the kind's first-class fields
// re-injected under their original names.
func serializeRow(row db.SnapshotRow) (map[string]interface{}, error) {
	out := map[string]interface{}{}
	if len(row.Data) > 0 {
		if err := json.Unmarshal(row.Data, &out); err != nil {
			return nil, err
		}
	}
	out["timestamp"] = row.Timestamp.UTC().Format(timestampLayout)

	if row.GPSAsOf != nil {
		out["gps_as_of"] = row.GPSAsOf.UTC().Format(timestampLayout)
		out["latitude"] = row.Latitude
		out["longitude"] = row.Longitude
		out["power"] = row.Power
		out["shift_state"] = row.ShiftState
		out["speed"] = row.Speed
	}
	return out, nil
}

func pageCount(total int) int {
	pages := (total + repository.PageSize - 1) / repository.PageSize
	if pages < 1 {
		pages = 1
	}
	return pages
}
