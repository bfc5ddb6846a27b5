package maintenance

import (
	"context"
	"fmt"
	"sync"

	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// memStore is an in-memory ScheduleStore and VehicleStore used by the tests.
type memStore struct {
	mu          sync.Mutex
	vehicles    map[string]*models.Vehicle
	schedules   map[string]*models.MaintenanceSchedule
	replaceErr  error
	replaceHits int
}

func newMemStore() *memStore {
	return &memStore{
		vehicles:  map[string]*models.Vehicle{},
		schedules: map[string]*models.MaintenanceSchedule{},
	}
}

func (m *memStore) addVehicle(id string, distance float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.vehicles[id] = &models.Vehicle{Plate: id, CurrentDistance: distance}
}

func (m *memStore) FindVehicleByID(_ context.Context, id string) (*models.Vehicle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return nil, fmt.Errorf("vehicle %s: %w", id, db.ErrNotFound)
	}
	cp := *v
	return &cp, nil
}

func (m *memStore) AdvanceOdometer(_ context.Context, id string, distance float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.vehicles[id]
	if !ok {
		return db.ErrNotFound
	}
	if distance > v.CurrentDistance {
		v.CurrentDistance = distance
	}
	return nil
}

func (m *memStore) FindSchedule(_ context.Context, vehicleID string) (*models.MaintenanceSchedule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[vehicleID]
	if !ok {
		return &models.MaintenanceSchedule{VehicleID: vehicleID}, nil
	}
	cp := *s
	cp.Programs = append([]models.ScheduledMaintenance(nil), s.Programs...)
	return &cp, nil
}

func (m *memStore) ReplaceSchedule(_ context.Context, vehicleID string, expected int64, programs []models.ScheduledMaintenance) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replaceHits++
	if m.replaceErr != nil {
		return 0, m.replaceErr
	}
	var version int64
	if s, ok := m.schedules[vehicleID]; ok {
		version = s.Version
	}
	if version != expected {
		return 0, db.ErrVersionConflict
	}
	m.schedules[vehicleID] = &models.MaintenanceSchedule{
		VehicleID: vehicleID,
		Version:   version + 1,
		Programs:  append([]models.ScheduledMaintenance(nil), programs...),
	}
	return version + 1, nil
}

func (m *memStore) UpdateProgramDistance(_ context.Context, vehicleID, maintenanceType string, next float64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.schedules[vehicleID]
	if !ok {
		return 0, db.ErrNotFound
	}
	for i, p := range s.Programs {
		if p.IsActive && p.MaintenanceType == maintenanceType {
			s.Programs[i].NextMaintenanceDistance = next
			s.Version++
			return s.Version, nil
		}
	}
	return 0, db.ErrNotFound
}

func (m *memStore) seed(vehicleID string, programs ...models.ScheduledMaintenance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range programs {
		programs[i].VehicleID = vehicleID
	}
	m.schedules[vehicleID] = &models.MaintenanceSchedule{VehicleID: vehicleID, Version: 1, Programs: programs}
}

func program(kind string, interval, next float64, active bool) models.ScheduledMaintenance {
	return models.ScheduledMaintenance{
		MaintenanceType:         kind,
		MaintenanceName:         kind,
		IntervalDistance:        interval,
		NextMaintenanceDistance: next,
		IsActive:                active,
	}
}

func ptr(f float64) *float64 { return &f }
