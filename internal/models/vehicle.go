package models

import (
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a tracked vehicle.
type Vehicle struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Make        string             `bson:"make" json:"make"`
	Model       string             `bson:"model" json:"model"`
	Year        int                `bson:"year" json:"year"`
	VIN         string             `bson:"vin,omitempty" json:"vin,omitempty"`
	PlateNumber string             `bson:"plate_number,omitempty" json:"plate_number,omitempty"`
	CreatedAt   time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at" json:"updated_at"`
}

// VehicleDetail is a vehicle together with its full service history.
type VehicleDetail struct {
	Vehicle
	Services []Service `json:"services"`
}

// VehicleSummary is the list view of a vehicle.
type VehicleSummary struct {
	Vehicle
	ServiceCount  int64    `json:"service_count"`
	LatestService *Service `json:"latest_service,omitempty"`
}

// VehicleRequest is the create/update payload for a vehicle.
type VehicleRequest struct {
	Make        string `json:"make"`
	Model       string `json:"model"`
	Year        Number `json:"year"`
	VIN         string `json:"vin"`
	PlateNumber string `json:"plate_number"`
}

var (
	ErrMissingVehicleFields = errors.New("make, model, and year are required")
	ErrInvalidYear          = errors.New("year must be between 1886 and 9999")
)

// ToVehicle validates the request and converts it into a Vehicle.
func (r VehicleRequest) ToVehicle() (Vehicle, error) {
	if r.Make == "" || r.Model == "" || r.Year == 0 {
		return Vehicle{}, ErrMissingVehicleFields
	}
	if r.Year < 1886 || r.Year > 9999 {
		return Vehicle{}, ErrInvalidYear
	}
	return Vehicle{
		Make:        r.Make,
		Model:       r.Model,
		Year:        int(r.Year),
		VIN:         r.VIN,
		PlateNumber: r.PlateNumber,
	}, nil
}
