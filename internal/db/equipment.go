package db

import (
	"context"
	"fmt"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoEquipmentCollection stores equipment items.
type MongoEquipmentCollection struct {
	Collection *mongo.Collection
}

// InsertEquipment inserts an equipment item.
func (c *MongoEquipmentCollection) InsertEquipment(ctx context.Context, e models.Equipment) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, ErrNilCollection
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	e.CreatedAt = time.Now()
	_, err := c.Collection.InsertOne(ctx, e)
	return e.ID, err
}

// ListEquipment returns every equipment item.
func (c *MongoEquipmentCollection) ListEquipment(ctx context.Context) ([]models.Equipment, error) {
	var out []models.Equipment
	if err := findAll(ctx, c.Collection, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("list equipment: %w", err)
	}
	return out, nil
}

// MovementFilter narrows a movement query. Empty fields match everything.
type MovementFilter struct {
	EquipmentID string
	EmployeeID  string
	OpenOnly    bool
}

func (f MovementFilter) query() bson.M {
	filter := bson.M{}
	if f.EquipmentID != "" {
		filter["equipment_id"] = f.EquipmentID
	}
	if f.EmployeeID != "" {
		filter["employee_id"] = f.EmployeeID
	}
	if f.OpenOnly {
		filter["type"] = models.MovementOut
		filter["actual_return_date"] = nil
	}
	return filter
}

// MongoMovementCollection stores equipment check-out and return records.
type MongoMovementCollection struct {
	Collection *mongo.Collection
}

// InsertMovement inserts a movement record.
func (c *MongoMovementCollection) InsertMovement(ctx context.Context, m models.EquipmentMovement) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, ErrNilCollection
	}
	if m.ID.IsZero() {
		m.ID = primitive.NewObjectID()
	}
	m.CreatedAt = time.Now()
	_, err := c.Collection.InsertOne(ctx, m)
	return m.ID, err
}

// ListMovements returns movements matching the filter in creation order.
func (c *MongoMovementCollection) ListMovements(ctx context.Context, f MovementFilter) ([]models.EquipmentMovement, error) {
	var out []models.EquipmentMovement
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	if err := findAll(ctx, c.Collection, f.query(), &out, opts); err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	return out, nil
}

// MongoEmployeeCollection stores employees.
type MongoEmployeeCollection struct {
	Collection *mongo.Collection
}

// InsertEmployee inserts an employee.
func (c *MongoEmployeeCollection) InsertEmployee(ctx context.Context, e models.Employee) (primitive.ObjectID, error) {
	if c.Collection == nil {
		return primitive.NilObjectID, ErrNilCollection
	}
	if e.ID.IsZero() {
		e.ID = primitive.NewObjectID()
	}
	e.CreatedAt = time.Now()
	_, err := c.Collection.InsertOne(ctx, e)
	return e.ID, err
}

// ListEmployees returns every employee.
func (c *MongoEmployeeCollection) ListEmployees(ctx context.Context) ([]models.Employee, error) {
	var out []models.Employee
	if err := findAll(ctx, c.Collection, bson.M{}, &out); err != nil {
		return nil, fmt.Errorf("list employees: %w", err)
	}
	return out, nil
}
