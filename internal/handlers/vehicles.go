package handlers

import (
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/analytics"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/events"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

const vehicleNotFound = "Vehicle not found"

// VehicleHandler serves vehicles, their history and their statistics.
type VehicleHandler struct {
	vehicles  db.VehicleCollection
	services  db.ServiceCollection
	publisher events.Publisher
	logger    log.FieldLogger
}

// NewVehicleHandler creates a vehicle handler.
func NewVehicleHandler(vehicles db.VehicleCollection, services db.ServiceCollection, publisher events.Publisher, logger log.FieldLogger) *VehicleHandler {
	return &VehicleHandler{vehicles: vehicles, services: services, publisher: publisher, logger: logger}
}

// List returns every vehicle with its service count and latest own service.
func (h *VehicleHandler) List(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.FindVehicles(r.Context())
	if err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}

	summaries := make([]models.VehicleSummary, 0, len(vehicles))
	if len(vehicles) == 0 {
		httpx.JSON(w, http.StatusOK, summaries)
		return
	}
	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		ids = append(ids, v.ID.Hex())
	}
	stats, err := h.services.ServiceStats(r.Context(), ids, models.TagPreviousOwner)
	if err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}

	for _, v := range vehicles {
		s := stats[v.ID.Hex()]
		summaries = append(summaries, models.VehicleSummary{Vehicle: v, ServiceCount: s.Count, LatestService: s.Latest})
	}
	httpx.JSON(w, http.StatusOK, summaries)
}

// Create adds a vehicle.
func (h *VehicleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.VehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vehicle, err := req.ToVehicle()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.vehicles.InsertVehicle(r.Context(), vehicle)
	if err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}
	h.logger.WithFields(log.Fields{"vehicle_id": created.ID.Hex(), "make": created.Make, "model": created.Model}).Info("Vehicle created")
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.VehicleCreated, VehicleID: created.ID.Hex()})
	httpx.JSON(w, http.StatusCreated, created)
}

// Get returns a vehicle with its full service history, newest first.
func (h *VehicleHandler) Get(w http.ResponseWriter, r *http.Request) {
	vehicle, services, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, models.VehicleDetail{Vehicle: *vehicle, Services: services})
}

// Update replaces the editable fields of a vehicle.
func (h *VehicleHandler) Update(w http.ResponseWriter, r *http.Request) {
	var req models.VehicleRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	vehicle, err := req.ToVehicle()
	if err != nil {
		httpx.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.vehicles.UpdateVehicle(r.Context(), r.PathValue("id"), vehicle)
	if err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.VehicleUpdated, VehicleID: updated.ID.Hex()})
	httpx.JSON(w, http.StatusOK, updated)
}

// Delete removes a vehicle together with its services.
func (h *VehicleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := h.vehicles.DeleteVehicle(r.Context(), id); err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return
	}
	h.logger.WithField("vehicle_id", id).Info("Vehicle deleted")
	notify(r.Context(), h.publisher, h.logger, events.Event{Type: events.VehicleDeleted, VehicleID: id})
	w.WriteHeader(http.StatusNoContent)
}

// Analytics returns the maintenance statistics of a vehicle.
func (h *VehicleHandler) Analytics(w http.ResponseWriter, r *http.Request) {
	_, services, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, analytics.Summarize(services))
}

// Costs returns the cost breakdown of a vehicle.
func (h *VehicleHandler) Costs(w http.ResponseWriter, r *http.Request) {
	_, services, ok := h.load(w, r)
	if !ok {
		return
	}
	httpx.JSON(w, http.StatusOK, analytics.Breakdown(services))
}

func (h *VehicleHandler) load(w http.ResponseWriter, r *http.Request) (*models.Vehicle, []models.Service, bool) {
	id := r.PathValue("id")
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), id)
	if err != nil {
		storageError(w, h.logger, err, vehicleNotFound)
		return nil, nil, false
	}
	services, err := h.services.FindServices(r.Context(), id)
	if err != nil && !errors.Is(err, db.ErrNotFound) {
		storageError(w, h.logger, err, vehicleNotFound)
		return nil, nil, false
	}
	if services == nil {
		services = []models.Service{}
	}
	return vehicle, services, true
}
