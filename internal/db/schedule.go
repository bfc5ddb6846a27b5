package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoScheduleCollection stores one document per vehicle holding its whole
// program set and a version counter.
type MongoScheduleCollection struct {
	Collection *mongo.Collection
}

// FindSchedule returns the schedule of a vehicle, or an empty one at version 0.
func (c *MongoScheduleCollection) FindSchedule(ctx context.Context, vehicleID string) (*models.MaintenanceSchedule, error) {
	if c.Collection == nil {
		return nil, ErrNilCollection
	}
	var s models.MaintenanceSchedule
	err := c.Collection.FindOne(ctx, bson.M{"_id": vehicleID}).Decode(&s)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return &models.MaintenanceSchedule{VehicleID: vehicleID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find schedule: %w", err)
	}
	return &s, nil
}

// ListSchedules returns every stored schedule.
func (c *MongoScheduleCollection) ListSchedules(ctx context.Context) ([]models.MaintenanceSchedule, error) {
	var out []models.MaintenanceSchedule
	if err := findAll(ctx, c.Collection, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("list schedules: %w", err)
	}
	return out, nil
}

// ReplaceSchedule swaps the program set in a single document update guarded by
// the expected version. A version of 0 creates the document.
func (c *MongoScheduleCollection) ReplaceSchedule(ctx context.Context, vehicleID string, expectedVersion int64, programs []models.ScheduledMaintenance) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	if programs == nil {
		programs = []models.ScheduledMaintenance{}
	}

	filter := bson.M{"_id": vehicleID, "version": expectedVersion}
	update := bson.M{
		"$set": bson.M{"programs": programs, "updated_at": time.Now()},
		"$inc": bson.M{"version": 1},
	}
	opts := options.FindOneAndUpdate().
		SetUpsert(expectedVersion == 0).
		SetReturnDocument(options.After)

	var out models.MaintenanceSchedule
	err := c.Collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&out)
	switch {
	case errors.Is(err, mongo.ErrNoDocuments), mongo.IsDuplicateKeyError(err):
		return 0, fmt.Errorf("schedule %s: %w", vehicleID, ErrVersionConflict)
	case err != nil:
		return 0, fmt.Errorf("replace schedule: %w", err)
	}
	return out.Version, nil
}

// UpdateProgramDistance sets the due-point of the active program of one type.
func (c *MongoScheduleCollection) UpdateProgramDistance(ctx context.Context, vehicleID, maintenanceType string, next float64) (int64, error) {
	if c.Collection == nil {
		return 0, ErrNilCollection
	}
	now := time.Now()
	filter := bson.M{
		"_id": vehicleID,
		"programs": bson.M{"$elemMatch": bson.M{
			"maintenance_type": maintenanceType,
			"is_active":        true,
		}},
	}
	update := bson.M{
		"$set": bson.M{
			"programs.$.next_maintenance_distance": next,
			"programs.$.updated_at":                now,
			"updated_at":                           now,
		},
		"$inc": bson.M{"version": 1},
	}

	var out models.MaintenanceSchedule
	err := c.Collection.FindOneAndUpdate(ctx, filter, update,
		options.FindOneAndUpdate().SetReturnDocument(options.After)).Decode(&out)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, fmt.Errorf("program %s/%s: %w", vehicleID, maintenanceType, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("update program distance: %w", err)
	}
	return out.Version, nil
}
