// Package snapshot materializes the read models an alert pass needs.
package snapshot

import (
	"context"
	"fmt"

	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"golang.org/x/sync/errgroup"
)

// Source is the storage the loader reads from.
type Source interface {
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	ListSchedules(ctx context.Context) ([]models.MaintenanceSchedule, error)
	ListEquipment(ctx context.Context) ([]models.Equipment, error)
	ListMovements(ctx context.Context, f db.MovementFilter) ([]models.EquipmentMovement, error)
	ListEmployees(ctx context.Context) ([]models.Employee, error)
}

// Loader fetches every collection concurrently.
type Loader struct {
	src Source
}

// NewLoader creates a loader over src.
func NewLoader(src Source) *Loader {
	return &Loader{src: src}
}

// Load returns a consistent-enough snapshot of the fleet. Any failing read
// cancels the others and fails the load.
func (l *Loader) Load(ctx context.Context) (alerts.Snapshot, error) {
	var (
		snap      alerts.Snapshot
		schedules []models.MaintenanceSchedule
	)
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() (err error) {
		snap.Vehicles, err = l.src.ListVehicles(ctx)
		return err
	})
	g.Go(func() (err error) {
		schedules, err = l.src.ListSchedules(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Equipment, err = l.src.ListEquipment(ctx)
		return err
	})
	g.Go(func() (err error) {
		snap.Movements, err = l.src.ListMovements(ctx, db.MovementFilter{OpenOnly: true})
		return err
	})
	g.Go(func() (err error) {
		snap.Employees, err = l.src.ListEmployees(ctx)
		return err
	})

	if err := g.Wait(); err != nil {
		return alerts.Snapshot{}, fmt.Errorf("load snapshot: %w", err)
	}

	snap.Programs = make(map[string][]models.ScheduledMaintenance, len(schedules))
	for _, s := range schedules {
		snap.Programs[s.VehicleID] = s.Programs
	}
	return snap, nil
}

// StoreSource adapts the MongoDB collections to Source.
type StoreSource struct {
	*db.MongoVehicleCollection
	*db.MongoScheduleCollection
	*db.MongoEquipmentCollection
	*db.MongoMovementCollection
	*db.MongoEmployeeCollection
}

// FromStores builds a Source from the service's stores.
func FromStores(s *db.Stores) StoreSource {
	return StoreSource{
		MongoVehicleCollection:   s.Vehicles,
		MongoScheduleCollection:  s.Schedules,
		MongoEquipmentCollection: s.Equipment,
		MongoMovementCollection:  s.Movements,
		MongoEmployeeCollection:  s.Employees,
	}
}
