package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/ukydev/vehicle-service-log/internal/auth"
	"github.com/ukydev/vehicle-service-log/internal/config"
	"github.com/ukydev/vehicle-service-log/internal/db"
	"github.com/ukydev/vehicle-service-log/internal/events"
	"github.com/ukydev/vehicle-service-log/internal/handlers"
	"github.com/ukydev/vehicle-service-log/internal/middleware"
	"go.mongodb.org/mongo-driver/mongo"
)

const shutdownTimeout = 15 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("Failed to load configuration")
	}
	logger, err := cfg.NewLogger()
	if err != nil {
		log.WithError(err).Fatal("Invalid logging configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.WithError(err).Fatal("Server stopped")
	}
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	client, err := db.ConnectMongo(ctx, cfg.MongoURI, cfg.MongoTimeout)
	if err != nil {
		return err
	}
	defer func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.WithError(err).Warn("Failed to disconnect from MongoDB")
		}
	}()
	logger.WithField("database", cfg.MongoDatabase).Info("Connected to MongoDB")

	database := client.Database(cfg.MongoDatabase)
	if err := db.EnsureIndexes(ctx, database); err != nil {
		return err
	}

	authService, err := auth.NewService(cfg.JWTSecret, cfg.JWTExpiry)
	if err != nil {
		return err
	}

	publisher := newPublisher(cfg, logger)
	defer publisher.Close()

	server := newServer(cfg, handlers.NewRouter(dependencies(client, database, authService, publisher, cfg, logger)))
	return serve(ctx, server, logger)
}

func dependencies(client *mongo.Client, database *mongo.Database, authService *auth.Service, publisher events.Publisher, cfg *config.Config, logger *log.Logger) handlers.Dependencies {
	services := database.Collection(db.ServicesCollection)
	return handlers.Dependencies{
		Vehicles:  &db.MongoVehicleCollection{Collection: database.Collection(db.VehiclesCollection), Services: services},
		Services:  &db.MongoServiceCollection{Collection: services},
		Users:     &db.MongoUserCollection{Collection: database.Collection(db.UsersCollection)},
		Store:     &db.MongoPinger{Client: client},
		Auth:      authService,
		Publisher: publisher,
		RateLimit: middleware.NewRateLimitMiddleware(cfg.RateLimitRequests, cfg.RateLimitWindow).TrustProxyHeaders(cfg.TrustProxyHeaders),
		Logger:    logger,
	}
}

// newPublisher connects to the configured broker. Without one, or when the
// broker is unreachable, change events are dropped.
func newPublisher(cfg *config.Config, logger log.FieldLogger) events.Publisher {
	if !cfg.EventsEnabled() {
		logger.Info("MQTT broker not configured, change events disabled")
		return events.NopPublisher{}
	}
	publisher, err := events.NewMQTTPublisher(cfg.MQTTBroker, cfg.MQTTClientID, cfg.MQTTTopicPrefix)
	if err != nil {
		logger.WithError(err).WithField("broker", cfg.MQTTBroker).Warn("MQTT unavailable, change events disabled")
		return events.NopPublisher{}
	}
	logger.WithField("broker", cfg.MQTTBroker).Info("Publishing change events")
	return publisher
}

func newServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// serve runs server until ctx is cancelled, then drains open requests.
func serve(ctx context.Context, server *http.Server, logger log.FieldLogger) error {
	errCh := make(chan error, 1)
	go func() {
		logger.WithField("addr", server.Addr).Info("HTTP server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
