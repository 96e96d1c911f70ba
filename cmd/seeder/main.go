package main

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

//go:embed history.json
var historyJSON []byte

// History is a vehicle together with the services recorded before it
// changed hands.
type History struct {
	Vehicle  models.VehicleRequest   `json:"vehicle"`
	Services []models.ServiceRequest `json:"services"`
}

func loadHistory(data []byte) (History, error) {
	var h History
	if err := json.Unmarshal(data, &h); err != nil {
		return History{}, fmt.Errorf("failed to parse history: %w", err)
	}
	for i := range h.Services {
		h.Services[i].IsPreviousOwner = true
	}
	return h, nil
}

// apiClient posts records to the REST API.
type apiClient struct {
	baseURL   string
	authToken string
	http      *http.Client
}

func newAPIClient(baseURL, authToken string) *apiClient {
	return &apiClient{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		http:      &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *apiClient) authorizedPost(ctx context.Context, path string, payload, out any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("POST %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return fmt.Errorf("POST %s failed with status %d: %s", path, resp.StatusCode, apiErr.Error)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

func (c *apiClient) createVehicle(ctx context.Context, req models.VehicleRequest) (models.Vehicle, error) {
	var vehicle models.Vehicle
	err := c.authorizedPost(ctx, "/vehicles", req, &vehicle)
	return vehicle, err
}

func (c *apiClient) createService(ctx context.Context, req models.ServiceRequest) (models.Service, error) {
	var service models.Service
	err := c.authorizedPost(ctx, "/services", req, &service)
	return service, err
}

// SeedResult summarises a seeding run.
type SeedResult struct {
	VehicleID string
	Services  int
	TotalCost float64
}

// seed creates the vehicle and then each of its services. It stops at the
// first failure.
func seed(ctx context.Context, c *apiClient, h History) (SeedResult, error) {
	vehicle, err := c.createVehicle(ctx, h.Vehicle)
	if err != nil {
		return SeedResult{}, fmt.Errorf("failed to create vehicle: %w", err)
	}
	result := SeedResult{VehicleID: vehicle.ID.Hex()}
	log.WithFields(log.Fields{
		"vehicle_id": result.VehicleID,
		"make":       vehicle.Make,
		"model":      vehicle.Model,
		"plate":      vehicle.PlateNumber,
	}).Info("Created vehicle")

	for _, req := range h.Services {
		req.VehicleID = result.VehicleID
		service, err := c.createService(ctx, req)
		if err != nil {
			return result, fmt.Errorf("failed to create service %q: %w", req.Description, err)
		}
		result.Services++
		result.TotalCost += service.TotalCost()
		log.WithFields(log.Fields{
			"service_id": service.ID.Hex(),
			"date":       service.Date.Format("2006-01-02"),
			"cost":       service.TotalCost(),
		}).Info("Created service")
	}
	return result, nil
}

func main() {
	apiURL := os.Getenv("API_BASE_URL")
	if apiURL == "" {
		apiURL = "http://localhost:8080/api"
	}
	// Optional JWT for protected API
	authToken := os.Getenv("SEED_AUTH_TOKEN")

	history, err := loadHistory(historyJSON)
	if err != nil {
		log.WithError(err).Fatal("Invalid seed data")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.WithFields(log.Fields{"api_url": apiURL, "services": len(history.Services)}).Info("Seeding service history")
	result, err := seed(ctx, newAPIClient(apiURL, authToken), history)
	if err != nil {
		log.WithError(err).WithField("created_services", result.Services).Fatal("Seeding failed. Ensure SEED_AUTH_TOKEN is valid and the API is reachable.")
	}
	log.WithFields(log.Fields{
		"vehicle_id": result.VehicleID,
		"services":   result.Services,
		"total_cost": fmt.Sprintf("%.2f", result.TotalCost),
	}).Info("Seed completed")
}
