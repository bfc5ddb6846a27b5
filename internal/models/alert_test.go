package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityUrgent.Rank(), SeverityWarning.Rank())
	assert.Less(t, SeverityWarning.Rank(), SeverityInfo.Rank())
	assert.Equal(t, 2, Severity("unknown").Rank())
}

func TestMaintenanceSchedule_Active(t *testing.T) {
	s := MaintenanceSchedule{Programs: []ScheduledMaintenance{
		{MaintenanceType: "oleo", IsActive: true},
		{MaintenanceType: "filtro_ar", IsActive: false},
		{MaintenanceType: "pneus", IsActive: true},
	}}
	active := s.Active()
	assert.Len(t, active, 2)
	assert.Equal(t, "oleo", active[0].MaintenanceType)
	assert.Equal(t, "pneus", active[1].MaintenanceType)
}

func TestEquipmentMovement_OpenLoan(t *testing.T) {
	due := time.Now()
	tests := []struct {
		name string
		m    EquipmentMovement
		want bool
	}{
		{"open loan", EquipmentMovement{Type: MovementOut, ExpectedReturnDate: &due}, true},
		{"returned", EquipmentMovement{Type: MovementOut, ExpectedReturnDate: &due, ActualReturnDate: &due}, false},
		{"no due date", EquipmentMovement{Type: MovementOut}, false},
		{"return movement", EquipmentMovement{Type: MovementReturn, ExpectedReturnDate: &due}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.m.OpenLoan())
		})
	}
}

func TestVehicle_DisplayName(t *testing.T) {
	assert.Equal(t, "ABC-1234", Vehicle{Plate: "ABC-1234", Make: "Ford"}.DisplayName())
	assert.Equal(t, "Ford Ranger", Vehicle{Make: "Ford", Model: "Ranger"}.DisplayName())
}
