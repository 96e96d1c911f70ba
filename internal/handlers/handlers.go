// Package handlers exposes the vehicle service log over HTTP.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/events"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 1 << 20

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httpx.Error(w, http.StatusBadRequest, "Invalid JSON")
		return false
	}
	return true
}

// storageError answers a failed lookup or write. Unknown and malformed ids
// are both reported as not found.
func storageError(w http.ResponseWriter, logger log.FieldLogger, err error, notFound string) {
	if errors.Is(err, db.ErrNotFound) || errors.Is(err, db.ErrInvalidID) {
		httpx.Error(w, http.StatusNotFound, notFound)
		return
	}
	logger.WithError(err).Error("Storage operation failed")
	httpx.Error(w, http.StatusInternalServerError, "Internal server error")
}

// notify publishes a change event. Failures never fail the request.
func notify(ctx context.Context, publisher events.Publisher, logger log.FieldLogger, event events.Event) {
	if err := publisher.Publish(ctx, event); err != nil {
		logger.WithError(err).WithFields(log.Fields{
			"event":      event.Type,
			"vehicle_id": event.VehicleID,
		}).Warn("Failed to publish change event")
	}
}
