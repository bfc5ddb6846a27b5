package maintenance

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var (
	// ErrInvalidProgram is returned when a program set fails validation.
	ErrInvalidProgram = errors.New("invalid maintenance program")
	// ErrProgramNotFound is returned when no active program has the requested type.
	ErrProgramNotFound = errors.New("maintenance program not found")
)

// ScheduleStore persists the per-vehicle program set.
type ScheduleStore interface {
	// FindSchedule returns the vehicle's schedule, or an empty one at version 0.
	FindSchedule(ctx context.Context, vehicleID string) (*models.MaintenanceSchedule, error)
	// ReplaceSchedule swaps the whole program set if the stored version still
	// equals expectedVersion and returns the new version.
	ReplaceSchedule(ctx context.Context, vehicleID string, expectedVersion int64, programs []models.ScheduledMaintenance) (int64, error)
	// UpdateProgramDistance sets the due-point of the active program of the given type.
	UpdateProgramDistance(ctx context.Context, vehicleID, maintenanceType string, next float64) (int64, error)
}

// VehicleStore is the part of vehicle storage the maintenance engine needs.
type VehicleStore interface {
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	AdvanceOdometer(ctx context.Context, id string, distance float64) error
}

// Registry manages the scheduled maintenance programs of each vehicle.
type Registry struct {
	schedules ScheduleStore
	vehicles  VehicleStore
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewRegistry creates a registry over the given stores.
func NewRegistry(schedules ScheduleStore, vehicles VehicleStore, logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Registry{schedules: schedules, vehicles: vehicles, logger: logger, now: time.Now}
}

// Programs returns the full schedule of a vehicle, inactive programs included.
func (r *Registry) Programs(ctx context.Context, vehicleID string) (*models.MaintenanceSchedule, error) {
	if _, err := r.vehicles.FindVehicleByID(ctx, vehicleID); err != nil {
		return nil, err
	}
	return r.schedules.FindSchedule(ctx, vehicleID)
}

// ActivePrograms returns the vehicle's active programs in creation order.
func (r *Registry) ActivePrograms(ctx context.Context, vehicleID string) ([]models.ScheduledMaintenance, error) {
	s, err := r.schedules.FindSchedule(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	return s.Active(), nil
}

// ReplaceAll replaces every program of the vehicle in one versioned write.
func (r *Registry) ReplaceAll(ctx context.Context, vehicleID string, expectedVersion int64, inputs []models.ProgramInput) (*models.MaintenanceSchedule, error) {
	vehicle, err := r.vehicles.FindVehicleByID(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	current, err := r.schedules.FindSchedule(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: have %d, expected %d", db.ErrVersionConflict, current.Version, expectedVersion)
	}

	programs, err := BuildPrograms(vehicleID, vehicle.CurrentDistance, inputs, current.Programs, r.now())
	if err != nil {
		return nil, err
	}

	version, err := r.schedules.ReplaceSchedule(ctx, vehicleID, expectedVersion, programs)
	if err != nil {
		return nil, fmt.Errorf("replace programs: %w", err)
	}
	r.logger.WithFields(logrus.Fields{
		"vehicle_id": vehicleID,
		"programs":   len(programs),
		"version":    version,
	}).Info("maintenance programs replaced")

	return &models.MaintenanceSchedule{VehicleID: vehicleID, Version: version, Programs: programs, UpdatedAt: r.now()}, nil
}

// Delete removes the program of the given type from the vehicle's set.
func (r *Registry) Delete(ctx context.Context, vehicleID, maintenanceType string, expectedVersion int64) (*models.MaintenanceSchedule, error) {
	current, err := r.schedules.FindSchedule(ctx, vehicleID)
	if err != nil {
		return nil, err
	}
	if current.Version != expectedVersion {
		return nil, fmt.Errorf("%w: have %d, expected %d", db.ErrVersionConflict, current.Version, expectedVersion)
	}

	kept := make([]models.ScheduledMaintenance, 0, len(current.Programs))
	for _, p := range current.Programs {
		if p.MaintenanceType != maintenanceType {
			kept = append(kept, p)
		}
	}
	if len(kept) == len(current.Programs) {
		return nil, fmt.Errorf("%w: %q", ErrProgramNotFound, maintenanceType)
	}

	version, err := r.schedules.ReplaceSchedule(ctx, vehicleID, expectedVersion, kept)
	if err != nil {
		return nil, fmt.Errorf("delete program: %w", err)
	}
	return &models.MaintenanceSchedule{VehicleID: vehicleID, Version: version, Programs: kept, UpdatedAt: r.now()}, nil
}

// BuildPrograms validates a replace request and turns it into stored programs.
// Ids and creation times of existing programs are kept by maintenance type.
func BuildPrograms(vehicleID string, currentDistance float64, inputs []models.ProgramInput, existing []models.ScheduledMaintenance, now time.Time) ([]models.ScheduledMaintenance, error) {
	byType := make(map[string]models.ScheduledMaintenance, len(existing))
	for _, p := range existing {
		byType[p.MaintenanceType] = p
	}

	seen := make(map[string]struct{}, len(inputs))
	out := make([]models.ScheduledMaintenance, 0, len(inputs))
	for i, in := range inputs {
		kind := strings.TrimSpace(in.MaintenanceType)
		if kind == "" {
			return nil, fmt.Errorf("%w: program %d has no maintenance_type", ErrInvalidProgram, i)
		}
		if _, dup := seen[kind]; dup {
			return nil, fmt.Errorf("%w: duplicate maintenance_type %q", ErrInvalidProgram, kind)
		}
		seen[kind] = struct{}{}
		if in.IntervalDistance <= 0 {
			return nil, fmt.Errorf("%w: interval_distance of %q must be positive", ErrInvalidProgram, kind)
		}

		p := models.ScheduledMaintenance{
			ID:               primitive.NewObjectID(),
			VehicleID:        vehicleID,
			MaintenanceType:  kind,
			MaintenanceName:  strings.TrimSpace(in.MaintenanceName),
			IntervalDistance: in.IntervalDistance,
			IsActive:         in.IsActive,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		if prev, ok := byType[kind]; ok {
			p.ID = prev.ID
			p.CreatedAt = prev.CreatedAt
		}
		if p.MaintenanceName == "" {
			p.MaintenanceName = kind
		}

		switch {
		case !in.IsActive:
			p.NextMaintenanceDistance = 0
		case in.NextMaintenanceDistance == nil:
			p.NextMaintenanceDistance = NextDue(currentDistance, in.IntervalDistance)
		case *in.NextMaintenanceDistance < 0:
			return nil, fmt.Errorf("%w: next_maintenance_distance of %q must not be negative", ErrInvalidProgram, kind)
		default:
			p.NextMaintenanceDistance = *in.NextMaintenanceDistance
		}
		out = append(out, p)
	}
	return out, nil
}
