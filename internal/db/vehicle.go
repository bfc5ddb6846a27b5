package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// VehicleCollection defines the vehicle operations used by the service.
type VehicleCollection interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (primitive.ObjectID, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	AdvanceOdometer(ctx context.Context, id string, distance float64) error
	RecordOdometer(ctx context.Context, id string, distance float64) error
}

// MongoVehicleCollection implements VehicleCollection for MongoDB.
type MongoVehicleCollection struct {
	Collection *mongo.Collection
}

// InsertVehicle inserts a vehicle and returns its id.
func (c *MongoVehicleCollection) InsertVehicle(ctx context.Context, vehicle models.Vehicle) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, ErrNilCollection
	}
	if vehicle.ID.IsZero() {
		vehicle.ID = primitive.NewObjectID()
	}
	now := time.Now()
	vehicle.CreatedAt = now
	vehicle.UpdatedAt = now
	if _, err := c.Collection.InsertOne(ctx, vehicle); err != nil {
		return primitive.NilObjectID, err
	}
	return vehicle.ID, nil
}

// ListVehicles returns every vehicle ordered by creation.
func (c *MongoVehicleCollection) ListVehicles(ctx context.Context) ([]models.Vehicle, error) {
	var out []models.Vehicle
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := findAll(ctx, c.Collection, bson.M{}, &out, opts); err != nil {
		return nil, fmt.Errorf("list vehicles: %w", err)
	}
	return out, nil
}

// FindVehicleByID finds a vehicle by its ID.
func (c *MongoVehicleCollection) FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("vehicle %q: %w", id, ErrNotFound)
	}

	var vehicle models.Vehicle
	err = c.Collection.FindOne(ctx, bson.M{"_id": objectID}).Decode(&vehicle)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &vehicle, nil
}

// AdvanceOdometer raises current_distance to distance if it is larger.
// Lower readings are ignored.
func (c *MongoVehicleCollection) AdvanceOdometer(ctx context.Context, id string, distance float64) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("vehicle %q: %w", id, ErrNotFound)
	}

	res, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": objectID},
		bson.M{
			"$max": bson.M{"current_distance": distance},
			"$set": bson.M{"updated_at": time.Now()},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("vehicle %s: %w", id, ErrNotFound)
	}
	return nil
}

// RecordOdometer stores a new reading and rejects one that goes backwards.
func (c *MongoVehicleCollection) RecordOdometer(ctx context.Context, id string, distance float64) error {
	if c.Collection == nil {
		return ErrNilCollection
	}
	if distance < 0 {
		return ErrOdometerRollback
	}
	objectID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("vehicle %q: %w", id, ErrNotFound)
	}

	res, err := c.Collection.UpdateOne(ctx,
		bson.M{"_id": objectID, "current_distance": bson.M{"$lte": distance}},
		bson.M{"$set": bson.M{"current_distance": distance, "updated_at": time.Now()}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount > 0 {
		return nil
	}
	if _, err := c.FindVehicleByID(ctx, id); err != nil {
		return err
	}
	return ErrOdometerRollback
}
