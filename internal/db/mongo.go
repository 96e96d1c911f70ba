package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/vehicle-service-log/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	VehiclesCollection = "vehicles"
	ServicesCollection = "services"
	UsersCollection    = "users"
)

// ConnectMongo connects to MongoDB and verifies the connection with a ping.
func ConnectMongo(ctx context.Context, uri string, timeout time.Duration) (*mongo.Client, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri).SetServerSelectionTimeout(timeout))
	if err != nil {
		return nil, fmt.Errorf("mongo.Connect error: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo.Ping error: %w", err)
	}
	return client, nil
}

// EnsureIndexes creates the indexes the queries below rely on.
func EnsureIndexes(ctx context.Context, database *mongo.Database) error {
	_, err := database.Collection(ServicesCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "vehicle_id", Value: 1}, {Key: "date", Value: -1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create services index: %w", err)
	}
	_, err = database.Collection(UsersCollection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "username", Value: 1}}, Options: options.Index().SetUnique(true)},
		{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
	})
	if err != nil {
		return fmt.Errorf("failed to create users indexes: %w", err)
	}
	return nil
}

// MongoPinger checks the client connection.
type MongoPinger struct {
	Client *mongo.Client
}

// Ping implements Pinger.
func (p *MongoPinger) Ping(ctx context.Context) error {
	if p.Client == nil {
		return fmt.Errorf("mongo client is nil")
	}
	return p.Client.Ping(ctx, readpref.Primary())
}

func objectID(id string) (primitive.ObjectID, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return primitive.NilObjectID, fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return oid, nil
}

func notFound(err error, what string) error {
	if errors.Is(err, mongo.ErrNoDocuments) {
		return fmt.Errorf("%s %w", what, ErrNotFound)
	}
	return err
}

var newestFirst = bson.D{{Key: "date", Value: -1}, {Key: "_id", Value: -1}}

// MongoVehicleCollection implements VehicleCollection. Services holds the
// collection cascaded on delete.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
	Services   *mongo.Collection
}

// InsertVehicle inserts a vehicle record into the collection.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (models.Vehicle, error) {
	if c.Collection == nil {
		return models.Vehicle{}, fmt.Errorf("mongo collection is nil")
	}
	now := time.Now().UTC()
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if _, err := c.Collection.InsertOne(ctx, vehicle); err != nil {
		return models.Vehicle{}, err
	}
	return vehicle, nil
}

// FindVehicles lists vehicles, most recently created first.
func (c *MongoVehicleCollection) FindVehicles(ctx context.Context) ([]models.Vehicle, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	cursor, err := c.Collection.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	vehicles := []models.Vehicle{}
	if err := cursor.All(ctx, &vehicles); err != nil {
		return nil, err
	}
	return vehicles, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var vehicle models.Vehicle
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&vehicle); err != nil {
		return nil, notFound(err, "vehicle")
	}
	return &vehicle, nil
}

// UpdateVehicle replaces the editable fields of a vehicle.
func (c *MongoVehicleCollection) UpdateVehicle(ctx context.Context, id string, vehicle models.Vehicle) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	update := bson.M{"$set": bson.M{
		"make":         vehicle.Make,
		"model":        vehicle.Model,
		"year":         vehicle.Year,
		"vin":          vehicle.VIN,
		"plate_number": vehicle.PlateNumber,
		"updated_at":   time.Now().UTC(),
	}}
	var updated models.Vehicle
	err = c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		return nil, notFound(err, "vehicle")
	}
	return &updated, nil
}

// DeleteVehicle deletes a vehicle and cascades to its services. Services go
// first so a failure never leaves orphans behind a deleted vehicle.
func (c *MongoVehicleCollection) DeleteVehicle(ctx context.Context, id string) error {
	if c.Collection == nil || c.Services == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Err(); err != nil {
		return notFound(err, "vehicle")
	}
	if _, err := c.Services.DeleteMany(ctx, bson.M{"vehicle_id": id}); err != nil {
		return fmt.Errorf("failed to delete services of vehicle %s: %w", id, err)
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("vehicle %w", ErrNotFound)
	}
	return nil
}

// MongoServiceCollection implements ServiceCollection.
type MongoServiceCollection struct {
	Collection *mongo.Collection
}

// InsertService inserts a service record with its items.
func (c *MongoServiceCollection) InsertService(ctx context.Context, service models.Service) (models.Service, error) {
	if c.Collection == nil {
		return models.Service{}, fmt.Errorf("mongo collection is nil")
	}
	now := time.Now().UTC()
	if service.ID.IsZero() {
		service.ID = primitive.NewObjectID()
	}
	if service.Items == nil {
		service.Items = []models.ServiceItem{}
	}
	service.CreatedAt = now
	service.UpdatedAt = now
	if _, err := c.Collection.InsertOne(ctx, service); err != nil {
		return models.Service{}, err
	}
	return service, nil
}

// FindServices queries service records, newest first.
func (c *MongoServiceCollection) FindServices(ctx context.Context, vehicleID string) ([]models.Service, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	filter := bson.M{}
	if vehicleID != "" {
		filter["vehicle_id"] = vehicleID
	}
	cursor, err := c.Collection.Find(ctx, filter, options.Find().SetSort(newestFirst))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	services := []models.Service{}
	if err := cursor.All(ctx, &services); err != nil {
		return nil, err
	}
	return services, nil
}

// FindServiceByID finds a service record by its ID.
func (c *MongoServiceCollection) FindServiceByID(ctx context.Context, id string) (*models.Service, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	var service models.Service
	if err := c.Collection.FindOne(ctx, bson.M{"_id": oid}).Decode(&service); err != nil {
		return nil, notFound(err, "service")
	}
	return &service, nil
}

// UpdateService replaces a service's fields. Items are replaced as a whole;
// the owning vehicle never changes.
func (c *MongoServiceCollection) UpdateService(ctx context.Context, id string, service models.Service) (*models.Service, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return nil, err
	}
	items := service.Items
	if items == nil {
		items = []models.ServiceItem{}
	}
	update := bson.M{"$set": bson.M{
		"date":        service.Date,
		"mileage":     service.Mileage,
		"description": service.Description,
		"cost":        service.Cost,
		"notes":       service.Notes,
		"tags":        service.Tags,
		"items":       items,
		"updated_at":  time.Now().UTC(),
	}}
	var updated models.Service
	err = c.Collection.FindOneAndUpdate(ctx, bson.M{"_id": oid}, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&updated)
	if err != nil {
		return nil, notFound(err, "service")
	}
	return &updated, nil
}

// DeleteService deletes a service record and its items.
func (c *MongoServiceCollection) DeleteService(ctx context.Context, id string) error {
	if c.Collection == nil {
		return fmt.Errorf("mongo collection is nil")
	}
	oid, err := objectID(id)
	if err != nil {
		return err
	}
	result, err := c.Collection.DeleteOne(ctx, bson.M{"_id": oid})
	if err != nil {
		return err
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("service %w", ErrNotFound)
	}
	return nil
}

// ServiceStats computes the count and newest eligible service of each
// vehicle in one aggregation. Eligible services sort first within a vehicle,
// so the group's first document is the newest eligible one when any exists.
func (c *MongoServiceCollection) ServiceStats(ctx context.Context, vehicleIDs []string, exclude models.ServiceTag) (map[string]ServiceStats, error) {
	if c.Collection == nil {
		return nil, fmt.Errorf("mongo collection is nil")
	}
	stats := make(map[string]ServiceStats, len(vehicleIDs))
	if len(vehicleIDs) == 0 {
		return stats, nil
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"vehicle_id": bson.M{"$in": vehicleIDs}}}},
		{{Key: "$addFields", Value: bson.M{"excluded": anyTagExpr(exclude)}}},
		{{Key: "$sort", Value: bson.D{{Key: "excluded", Value: 1}, {Key: "date", Value: -1}, {Key: "_id", Value: -1}}}},
		{{Key: "$group", Value: bson.M{
			"_id":    "$vehicle_id",
			"count":  bson.M{"$sum": 1},
			"latest": bson.M{"$first": "$$ROOT"},
		}}},
	}
	cursor, err := c.Collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var rows []struct {
		VehicleID string `bson:"_id"`
		Count     int64  `bson:"count"`
		Latest    struct {
			models.Service `bson:",inline"`
			Excluded       bool `bson:"excluded"`
		} `bson:"latest"`
	}
	if err := cursor.All(ctx, &rows); err != nil {
		return nil, err
	}
	for _, row := range rows {
		entry := ServiceStats{Count: row.Count}
		if !row.Latest.Excluded {
			latest := row.Latest.Service
			entry.Latest = &latest
		}
		stats[row.VehicleID] = entry
	}
	return stats, nil
}

// anyTagExpr is an aggregation expression that is true when a service's tags
// share a bit with mask. Bits are tested arithmetically so servers without
// $bitAnd accept it.
func anyTagExpr(mask models.ServiceTag) any {
	checks := bson.A{}
	for bit := models.ServiceTag(1); bit != 0 && bit <= mask; bit <<= 1 {
		if mask&bit == 0 {
			continue
		}
		shifted := bson.M{"$floor": bson.M{"$divide": bson.A{"$tags", int32(bit)}}}
		checks = append(checks, bson.M{"$eq": bson.A{bson.M{"$mod": bson.A{shifted, 2}}, 1}})
	}
	if len(checks) == 0 {
		return bson.M{"$literal": false}
	}
	return bson.M{"$or": checks}
}
