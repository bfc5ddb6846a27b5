package compliance

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var now = time.Date(2024, 3, 10, 15, 30, 0, 0, time.UTC)

func day(offset int) *time.Time {
	t := time.Date(2024, 3, 10+offset, 8, 0, 0, 0, time.UTC)
	return &t
}

func manual(d float64) *float64 { return &d }

func prog(kind string, next float64, active bool) models.ScheduledMaintenance {
	return models.ScheduledMaintenance{
		MaintenanceType:         kind,
		MaintenanceName:         kind,
		IntervalDistance:        10000,
		NextMaintenanceDistance: next,
		IsActive:                active,
	}
}

func TestDaysUntil(t *testing.T) {
	tests := []struct {
		name string
		date time.Time
		want int
	}{
		{"same day earlier hour", time.Date(2024, 3, 10, 1, 0, 0, 0, time.UTC), 0},
		{"same day later hour", time.Date(2024, 3, 10, 23, 59, 0, 0, time.UTC), 0},
		{"tomorrow early", time.Date(2024, 3, 11, 0, 5, 0, 0, time.UTC), 1},
		{"yesterday late", time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC), -1},
		{"month boundary", time.Date(2024, 4, 1, 12, 0, 0, 0, time.UTC), 22},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(now, tt.date))
		})
	}
}

func TestDaysUntil_ServerWestOfUTC(t *testing.T) {
	saoPaulo := time.FixedZone("BRT", -3*60*60)
	local := time.Date(2026, 10, 17, 10, 0, 0, 0, saoPaulo)
	late := time.Date(2026, 10, 17, 23, 30, 0, 0, saoPaulo)

	tests := []struct {
		name string
		now  time.Time
		date time.Time
		want int
	}{
		{"expiry today stored at UTC midnight", local, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), 0},
		{"expiry tomorrow stored at UTC midnight", local, time.Date(2026, 10, 18, 0, 0, 0, 0, time.UTC), 1},
		{"expiry yesterday stored at UTC midnight", local, time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), -1},
		{"late local evening is still today", late, time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC), 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysUntil(tt.now, tt.date))
		})
	}

	th := config.DefaultThresholds()
	expiry := time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)
	r := Evaluate(models.Vehicle{LicenseExpiry: &expiry}, nil, local, th)
	require.NotNil(t, r.License)
	assert.False(t, r.License.Overdue)
	assert.True(t, r.License.DueSoon)
}

func TestEvaluate_ProgramsWinOverManual(t *testing.T) {
	v := models.Vehicle{CurrentDistance: 49000, ManualNextMaintenanceDistance: manual(49500)}
	programs := []models.ScheduledMaintenance{
		prog("filtro_ar", 60000, true),
		prog("oleo", 50000, true),
		prog("pneus", 10, false),
	}

	r := Evaluate(v, programs, now, config.DefaultThresholds())
	require.Len(t, r.Triggers, 2)
	for _, tr := range r.Triggers {
		assert.Equal(t, SourceProgram, tr.Source)
	}
	require.NotNil(t, r.Nearest)
	assert.Equal(t, "oleo", r.Nearest.MaintenanceType)
	assert.Equal(t, maintenance.StatusWarning, r.Nearest.Status)
	assert.True(t, r.Due())
}

func TestEvaluate_ManualFallback(t *testing.T) {
	v := models.Vehicle{CurrentDistance: 20000, ManualNextMaintenanceDistance: manual(19000)}

	r := Evaluate(v, []models.ScheduledMaintenance{prog("oleo", 1, false)}, now, config.DefaultThresholds())
	require.Len(t, r.Triggers, 1)
	assert.Equal(t, SourceManual, r.Triggers[0].Source)
	assert.Equal(t, maintenance.StatusOverdue, r.Triggers[0].Status)
	assert.Equal(t, -1000.0, r.Triggers[0].Remaining)
}

func TestNearest_TieKeepsCreationOrder(t *testing.T) {
	triggers := []Trigger{
		{MaintenanceType: "a", DueAt: 30000},
		{MaintenanceType: "b", DueAt: 20000},
		{MaintenanceType: "c", DueAt: 20000},
	}
	assert.Equal(t, "b", Nearest(triggers).MaintenanceType)
	assert.Nil(t, Nearest(nil))
}

func TestEvaluate_DateDeadlines(t *testing.T) {
	th := config.DefaultThresholds()

	tests := []struct {
		name    string
		vehicle models.Vehicle
		due     bool
	}{
		{"nothing set", models.Vehicle{}, false},
		{"far service date", models.Vehicle{NextMaintenanceDate: day(30)}, false},
		{"service in a week", models.Vehicle{NextMaintenanceDate: day(7)}, true},
		{"service in eight days", models.Vehicle{NextMaintenanceDate: day(8)}, false},
		{"service yesterday", models.Vehicle{NextMaintenanceDate: day(-1)}, true},
		{"insurance in 30 days", models.Vehicle{InsuranceExpiry: day(30)}, true},
		{"insurance in 31 days", models.Vehicle{InsuranceExpiry: day(31)}, false},
		{"license expired", models.Vehicle{LicenseExpiry: day(-10)}, true},
		{"distance far", models.Vehicle{CurrentDistance: 100, ManualNextMaintenanceDistance: manual(5000)}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := Evaluate(tt.vehicle, nil, now, th)
			assert.Equal(t, tt.due, r.Due())
		})
	}
}

func TestEvaluate_TodayIsDueSoonNotOverdue(t *testing.T) {
	r := Evaluate(models.Vehicle{NextMaintenanceDate: day(0)}, nil, now, config.DefaultThresholds())
	require.NotNil(t, r.NextService)
	assert.Equal(t, 0, r.NextService.Days)
	assert.False(t, r.NextService.Overdue)
	assert.True(t, r.NextService.DueSoon)
}

func TestEvaluator_CustomChain(t *testing.T) {
	e := &Evaluator{Providers: Chain{ManualTrigger{}}, Thresholds: config.DefaultThresholds()}
	v := models.Vehicle{CurrentDistance: 0, ManualNextMaintenanceDistance: manual(500)}

	r := e.Evaluate(v, []models.ScheduledMaintenance{prog("oleo", 100, true)}, now)
	require.Len(t, r.Triggers, 1)
	assert.Equal(t, SourceManual, r.Triggers[0].Source)
}
