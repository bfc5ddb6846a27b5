package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ScheduledMaintenance is a preventive maintenance program for one vehicle.
type ScheduledMaintenance struct {
	ID                      primitive.ObjectID `json:"id" bson:"_id"`
	VehicleID               string             `json:"vehicle_id" bson:"vehicle_id"`
	MaintenanceType         string             `json:"maintenance_type" bson:"maintenance_type"` // "oleo", "filtro_ar", "pastilhas_freio", ...
	MaintenanceName         string             `json:"maintenance_name" bson:"maintenance_name"`
	IntervalDistance        float64            `json:"interval_distance" bson:"interval_distance"`               // in kilometers
	NextMaintenanceDistance float64            `json:"next_maintenance_distance" bson:"next_maintenance_distance"` // absolute odometer value
	IsActive                bool               `json:"is_active" bson:"is_active"`
	CreatedAt               time.Time          `json:"created_at" bson:"created_at"`
	UpdatedAt               time.Time          `json:"updated_at" bson:"updated_at"`
}

// MaintenanceSchedule is the whole program set of a vehicle. It is stored as a
// single document so that a replace is atomic and guarded by Version.
type MaintenanceSchedule struct {
	VehicleID string                 `json:"vehicle_id" bson:"_id"`
	Version   int64                  `json:"version" bson:"version"`
	Programs  []ScheduledMaintenance `json:"programs" bson:"programs"`
	UpdatedAt time.Time              `json:"updated_at" bson:"updated_at"`
}

// Active returns the active programs in creation order.
func (s MaintenanceSchedule) Active() []ScheduledMaintenance {
	out := make([]ScheduledMaintenance, 0, len(s.Programs))
	for _, p := range s.Programs {
		if p.IsActive {
			out = append(out, p)
		}
	}
	return out
}

// ProgramInput is one entry of a full-replace request for a vehicle's program set.
type ProgramInput struct {
	MaintenanceType         string   `json:"maintenance_type"`
	MaintenanceName         string   `json:"maintenance_name"`
	IntervalDistance        float64  `json:"interval_distance"`
	NextMaintenanceDistance *float64 `json:"next_maintenance_distance,omitempty"`
	IsActive                bool     `json:"is_active"`
}

// ReplaceProgramsRequest represents a PUT on a vehicle's program set.
type ReplaceProgramsRequest struct {
	Version  int64          `json:"version"`
	Programs []ProgramInput `json:"programs"`
}

// RecordServiceRequest represents a "record a service" action.
type RecordServiceRequest struct {
	CurrentDistance float64  `json:"current_distance"`
	PerformedTypes  []string `json:"performed_types"`
	Mode            string   `json:"mode"` // "specific" or "all"
	Suggest         bool     `json:"suggest"`
}

// RecalculateRequest represents a single-program recalculation.
type RecalculateRequest struct {
	CurrentDistance float64 `json:"current_distance"`
}
