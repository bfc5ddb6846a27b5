package snapshot

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type fakeSource struct {
	vehicles    []models.Vehicle
	schedules   []models.MaintenanceSchedule
	equipment   []models.Equipment
	movements   []models.EquipmentMovement
	employees   []models.Employee
	employeeErr error
	filter      db.MovementFilter
}

func (f *fakeSource) ListVehicles(context.Context) ([]models.Vehicle, error) { return f.vehicles, nil }
func (f *fakeSource) ListSchedules(context.Context) ([]models.MaintenanceSchedule, error) {
	return f.schedules, nil
}
func (f *fakeSource) ListEquipment(context.Context) ([]models.Equipment, error) { return f.equipment, nil }
func (f *fakeSource) ListMovements(_ context.Context, filter db.MovementFilter) ([]models.EquipmentMovement, error) {
	f.filter = filter
	return f.movements, nil
}
func (f *fakeSource) ListEmployees(context.Context) ([]models.Employee, error) {
	return f.employees, f.employeeErr
}

func TestLoader_Load(t *testing.T) {
	v := models.Vehicle{ID: primitive.NewObjectID(), Plate: "ABC1D23"}
	src := &fakeSource{
		vehicles: []models.Vehicle{v},
		schedules: []models.MaintenanceSchedule{{
			VehicleID: v.ID.Hex(),
			Version:   3,
			Programs:  []models.ScheduledMaintenance{{MaintenanceType: "oleo", IsActive: true}},
		}},
		equipment: []models.Equipment{{Name: "Macaco"}},
		movements: []models.EquipmentMovement{{Type: models.MovementOut}},
		employees: []models.Employee{{Name: "Ana"}},
	}

	snap, err := NewLoader(src).Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Vehicles, 1)
	assert.Len(t, snap.Equipment, 1)
	assert.Len(t, snap.Movements, 1)
	assert.Len(t, snap.Employees, 1)
	require.Len(t, snap.Programs[v.ID.Hex()], 1)
	assert.Equal(t, "oleo", snap.Programs[v.ID.Hex()][0].MaintenanceType)
	assert.True(t, src.filter.OpenOnly)
}

func TestLoader_LoadFails(t *testing.T) {
	src := &fakeSource{employeeErr: errors.New("cursor closed")}

	_, err := NewLoader(src).Load(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cursor closed")
}
