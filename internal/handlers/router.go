package handlers

import (
	"context"
	"net/http"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/auth"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/events"
	"github.com/ukydev/vehicle-service-log/internal/httpx"
	"github.com/ukydev/vehicle-service-log/internal/middleware"
	"github.com/ukydev/vehicle-service-log/internal/models"
)

const healthTimeout = 2 * time.Second

// Dependencies are the collaborators the API is built from.
type Dependencies struct {
	Vehicles  db.VehicleCollection
	Services  db.ServiceCollection
	Users     db.UserCollection
	Store     db.Pinger
	Auth      *auth.Service
	Publisher events.Publisher
	RateLimit *middleware.RateLimitMiddleware
	Logger    log.FieldLogger
}

// NewRouter wires every route behind request logging, rate limiting and
// token authentication.
func NewRouter(deps Dependencies) http.Handler {
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	vehicles := NewVehicleHandler(deps.Vehicles, deps.Services, deps.Publisher, deps.Logger)
	services := NewServiceHandler(deps.Vehicles, deps.Services, deps.Publisher, deps.Logger)
	users := NewAuthHandler(deps.Auth, deps.Users, deps.Logger)

	need := middleware.RequirePermission
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", Health(deps.Store))
	mux.HandleFunc("POST /api/auth/login", users.Login)
	mux.HandleFunc("POST /api/auth/register", users.Register)
	mux.HandleFunc("GET /api/auth/profile", users.GetProfile)

	mux.HandleFunc("GET /api/vehicles", need(models.ActionViewVehicles, vehicles.List))
	mux.HandleFunc("POST /api/vehicles", need(models.ActionWriteVehicles, vehicles.Create))
	mux.HandleFunc("GET /api/vehicles/{id}", need(models.ActionViewVehicles, vehicles.Get))
	mux.HandleFunc("PUT /api/vehicles/{id}", need(models.ActionWriteVehicles, vehicles.Update))
	mux.HandleFunc("DELETE /api/vehicles/{id}", need(models.ActionDeleteVehicles, vehicles.Delete))
	mux.HandleFunc("GET /api/vehicles/{id}/analytics", need(models.ActionViewAnalytics, vehicles.Analytics))
	mux.HandleFunc("GET /api/vehicles/{id}/costs", need(models.ActionViewAnalytics, vehicles.Costs))

	mux.HandleFunc("GET /api/services", need(models.ActionViewServices, services.List))
	mux.HandleFunc("POST /api/services", need(models.ActionWriteServices, services.Create))
	mux.HandleFunc("GET /api/services/{id}", need(models.ActionViewServices, services.Get))
	mux.HandleFunc("PUT /api/services/{id}", need(models.ActionWriteServices, services.Update))
	mux.HandleFunc("DELETE /api/services/{id}", need(models.ActionWriteServices, services.Delete))

	var handler http.Handler = middleware.NewAuthMiddleware(deps.Auth).Authenticate(mux)
	if deps.RateLimit != nil {
		handler = deps.RateLimit.RateLimit(handler)
	}
	return middleware.RequestLogger(deps.Logger)(handler)
}

// Health reports whether the store is reachable.
func Health(store db.Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := store.Ping(ctx); err != nil {
			log.WithError(err).Warn("Health check failed")
			httpx.JSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
