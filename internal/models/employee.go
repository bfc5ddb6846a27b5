package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Employee statuses.
const (
	EmployeeActive   = "active"
	EmployeeVacation = "vacation"
	EmployeeLeave    = "leave"
	EmployeeInactive = "inactive"
)

// Employee represents a staff member who may hold vehicles or equipment.
type Employee struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}
