package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Equipment statuses.
const (
	EquipmentAvailable   = "available"
	EquipmentInUse       = "in_use"
	EquipmentMaintenance = "maintenance"
	EquipmentRetired     = "retired"
)

// Movement types.
const (
	MovementOut    = "out"
	MovementReturn = "return"
)

// Equipment represents a tool or device lent out to employees.
type Equipment struct {
	ID        primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	Name      string             `json:"name" bson:"name"`
	Barcode   string             `json:"barcode" bson:"barcode"`
	Status    string             `json:"status" bson:"status"`
	CreatedAt time.Time          `json:"created_at" bson:"created_at"`
}

// EquipmentMovement records an equipment loan or its return.
type EquipmentMovement struct {
	ID                 primitive.ObjectID `json:"id" bson:"_id,omitempty"`
	EquipmentID        string             `json:"equipment_id" bson:"equipment_id"`
	EmployeeID         string             `json:"employee_id" bson:"employee_id"`
	Type               string             `json:"type" bson:"type"`
	ExpectedReturnDate *time.Time         `json:"expected_return_date,omitempty" bson:"expected_return_date,omitempty"`
	ActualReturnDate   *time.Time         `json:"actual_return_date,omitempty" bson:"actual_return_date,omitempty"`
	CreatedAt          time.Time          `json:"created_at" bson:"created_at"`
}

// OpenLoan reports whether the movement is an outstanding loan with a due date.
func (m EquipmentMovement) OpenLoan() bool {
	return m.Type == MovementOut && m.ActualReturnDate == nil && m.ExpectedReturnDate != nil
}
