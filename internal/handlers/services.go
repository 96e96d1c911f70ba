package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/analytics"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/events"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

const serviceNotFound = "Service not found"

// ServiceHandler serves service records.
type ServiceHandler struct {
	vehicles  db.VehicleCollection
	services  db.ServiceCollection
	publisher events.Publisher
	logger    log.FieldLogger
}

// NewServiceHandler creates a service handler.
func NewServiceHandler(vehicles db.VehicleCollection, services db.ServiceCollection, publisher events.Publisher, logger log.FieldLogger) *ServiceHandler {
	return &ServiceHandler{vehicles: vehicles, services: services, publisher: publisher, logger: logger}
}

// List returns services newest first, optionally for one vehicle and
// restricted to the visible categories.
func (h *ServiceHandler) List(w http.ResponseWriter, r *http.Request) {
	visibility, err := parseVisibility(r)
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	services, err := h.services.FindServices(r.Context(), r.URL.Query().Get("vehicle_id"))
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, analytics.Filter(services, visibility))
}

// Create records a service for an existing vehicle.
func (h *ServiceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	service, ok := toService(w, req)
	if !ok {
		return
	}
	if _, err := h.vehicles.FindVehicleByID(r.Context(), service.VehicleID); err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}

	created, err := h.services.InsertService(r.Context(), service)
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	h.logger.WithFields(log.Fields{
		"service_id": created.ID.Hex(),
		"vehicle_id": created.VehicleID,
		"tags":       created.Tags.Names(),
	}).Info("Service recorded")
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.ServiceCreated, VehicleID: created.VehicleID, ServiceID: created.ID.Hex()})
	httpx.JSON(w, http.StatusCreated, created)
}

// Get returns one service with its items.
func (h *ServiceHandler) Get(w http.ResponseWriter, r *http.Request) {
	service, err := h.services.FindServiceByID(r.Context(), r.PathValue("id"))
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	httpx.JSON(w, http.StatusOK, service)
}

// Update replaces a service, including its items. The vehicle_id may be
// omitted; when present it must match the stored one.
func (h *ServiceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req models.ServiceRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	existing, err := h.services.FindServiceByID(r.Context(), id)
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	switch req.VehicleID {
	case "":
		req.VehicleID = existing.VehicleID
	case existing.VehicleID:
	default:
		httpx.Error(w, http.StatusBadRequest, models.ErrVehicleChanged.Error())
		return
	}
	service, ok := toService(w, req)
	if !ok {
		return
	}

	updated, err := h.services.UpdateService(r.Context(), id, service)
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.ServiceUpdated, VehicleID: updated.VehicleID, ServiceID: updated.ID.Hex()})
	httpx.JSON(w, http.StatusOK, updated)
}

// Delete removes a service and its items.
func (h *ServiceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	service, err := h.services.FindServiceByID(r.Context(), id)
	if err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	if err := h.services.DeleteService(r.Context(), id); err != nil {
		storageError(w, h.logger, err, serviceNotFound)
		return
	}
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.ServiceDeleted, VehicleID: service.VehicleID, ServiceID: id})
	w.WriteHeader(http.StatusNoContent)
}

func toService(w http.ResponseWriter, req models.ServiceRequest) (models.Service, bool) {
	service, err := req.ToService()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return models.Service{}, false
	}
	return service, true
}

// parseVisibility reads the previous_owner, own and offroad toggles. Absent
// toggles are shown.
func parseVisibility(r *http.Request) (analytics.Visibility, error) {
	v := analytics.ShowAll
	q := r.URL.Query()
	for name, dst := range map[string]*bool{
		"previous_owner": &v.PreviousOwner,
		"own":            &v.Own,
		"offroad":        &v.Offroad,
	} {
		raw := q.Get(name)
		if raw == "" {
			continue
		}
		show, err := strconv.ParseBool(raw)
		if err != nil {
			return v, fmt.Errorf("invalid boolean for %s", name)
		}
		*dst = show
	}
	return v, nil
}

