package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Vehicle represents a fleet vehicle and the facts the maintenance engine reads from it.
type Vehicle struct {
	ID                            primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Plate                         string             `bson:"plate" json:"plate"`
	Make                          string             `bson:"make" json:"make"`
	Model                         string             `bson:"model" json:"model"`
	Year                          int                `bson:"year" json:"year"`
	CurrentDistance               float64            `bson:"current_distance" json:"current_distance"` // odometer, in kilometers
	ManualNextMaintenanceDistance *float64           `bson:"manual_next_maintenance_distance,omitempty" json:"manual_next_maintenance_distance,omitempty"`
	NextMaintenanceDate           *time.Time         `bson:"next_maintenance_date,omitempty" json:"next_maintenance_date,omitempty"`
	InsuranceExpiry               *time.Time         `bson:"insurance_expiry,omitempty" json:"insurance_expiry,omitempty"`
	LicenseExpiry                 *time.Time         `bson:"license_expiry,omitempty" json:"license_expiry,omitempty"`
	AssignedTo                    *string            `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	CreatedAt                     time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt                     time.Time          `bson:"updated_at" json:"updated_at"`
}

// DisplayName returns the label used in alert titles.
func (v Vehicle) DisplayName() string {
	if v.Plate != "" {
		return v.Plate
	}
	if v.Make != "" || v.Model != "" {
		return v.Make + " " + v.Model
	}
	return v.ID.Hex()
}

// OdometerReading is a distance reading reported by fuel or trip recording.
type OdometerReading struct {
	Distance float64 `json:"distance"`
}
