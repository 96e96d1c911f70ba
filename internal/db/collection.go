package db

import (
	"context"
	"errors"

	"github.com/ukydev/vehicle-service-log/internal/models"
)

var (
	ErrNotFound  = errors.New("not found")
	ErrInvalidID = errors.New("invalid id")
)

// VehicleCollection defines the interface for vehicle data operations.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (models.Vehicle, error)
	FindVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) (*models.Vehicle, error)
	// DeleteVehicle removes the vehicle and every service recorded for it.
	DeleteVehicle(ctx context.Context, id string) error
}

// ServiceCollection defines the interface for service record operations.
// Items are embedded in their service and share its lifecycle.
type ServiceCollection interface {
	InsertService(ctx context.Context, service models.Service) (models.Service, error)
	// FindServices lists services newest first; an empty vehicleID lists all.
	FindServices(ctx context.Context, vehicleID string) ([]models.Service, error)
	FindServiceByID(ctx context.Context, id string) (*models.Service, error)
	UpdateService(ctx context.Context, id string, service models.Service) (*models.Service, error)
	DeleteService(ctx context.Context, id string) error
	// ServiceStats returns the overview of every listed vehicle that has at
	// least one service, keyed by vehicle ID.
	ServiceStats(ctx context.Context, vehicleIDs []string, exclude models.ServiceTag) (map[string]ServiceStats, error)
}

// ServiceStats counts a vehicle's services and holds its newest service
// carrying none of the excluded tags, or nil when there is none.
type ServiceStats struct {
	Count  int64
	Latest *models.Service
}

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}
