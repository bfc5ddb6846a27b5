package alerts

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var now = time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC)

func daysFromNow(n int) *time.Time {
	t := now.AddDate(0, 0, n)
	return &t
}

func newTestAggregator() (*Aggregator, *logtest.Hook) {
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	return NewAggregator(config.DefaultThresholds(), logger, nil), hook
}

func vehicle(plate string, distance float64) models.Vehicle {
	return models.Vehicle{ID: primitive.NewObjectID(), Plate: plate, CurrentDistance: distance}
}

func active(kind string, interval, next float64) models.ScheduledMaintenance {
	return models.ScheduledMaintenance{
		MaintenanceType:         kind,
		MaintenanceName:         kind,
		IntervalDistance:        interval,
		NextMaintenanceDistance: next,
		IsActive:                true,
	}
}

func ids(alerts []models.Alert) []string {
	out := make([]string, len(alerts))
	for i, a := range alerts {
		out[i] = a.ID
	}
	return out
}

func TestAggregate_ProgramWarning(t *testing.T) {
	agg, _ := newTestAggregator()
	v := vehicle("ABC1D23", 49000)
	snap := Snapshot{
		Vehicles: []models.Vehicle{v},
		Programs: map[string][]models.ScheduledMaintenance{
			v.ID.Hex(): {active("oleo", 5000, 50000), active("filtro_ar", 15000, 70000)},
		},
	}

	res := agg.Aggregate(snap, now)
	require.Len(t, res.Alerts, 1)
	a := res.Alerts[0]
	assert.Equal(t, v.ID.Hex()+"-maintenance-oleo", a.ID)
	assert.Equal(t, models.SeverityWarning, a.Severity)
	assert.Equal(t, models.CategoryMaintenance, a.Category)
	assert.Equal(t, v.ID.Hex(), a.VehicleID)
	assert.Contains(t, a.Description, "1000 km left")
}

func TestAggregate_ManualOnlyWithoutPrograms(t *testing.T) {
	agg, _ := newTestAggregator()
	due := 10000.0

	withPrograms := vehicle("P1", 9900)
	withPrograms.ManualNextMaintenanceDistance = &due
	bare := vehicle("P2", 10200)
	bare.ManualNextMaintenanceDistance = &due

	snap := Snapshot{
		Vehicles: []models.Vehicle{withPrograms, bare},
		Programs: map[string][]models.ScheduledMaintenance{
			withPrograms.ID.Hex(): {active("oleo", 10000, 30000)},
		},
	}

	res := agg.Aggregate(snap, now)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, bare.ID.Hex()+"-maintenance-manual", res.Alerts[0].ID)
	assert.Equal(t, models.SeverityUrgent, res.Alerts[0].Severity)
}

func TestAggregate_InsuranceOnly(t *testing.T) {
	agg, _ := newTestAggregator()
	v := vehicle("DOC0001", 1000)
	v.InsuranceExpiry = daysFromNow(10)

	res := agg.Aggregate(Snapshot{Vehicles: []models.Vehicle{v}}, now)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, models.CategoryDocumentation, res.Alerts[0].Category)
	assert.Equal(t, models.SeverityWarning, res.Alerts[0].Severity)
	assert.Equal(t, v.ID.Hex()+"-insurance", res.Alerts[0].ID)
}

func TestAggregate_CalendarAndLicense(t *testing.T) {
	agg, _ := newTestAggregator()
	v := vehicle("CAL0001", 0)
	v.NextMaintenanceDate = daysFromNow(-1)
	v.LicenseExpiry = daysFromNow(45)

	res := agg.Aggregate(Snapshot{Vehicles: []models.Vehicle{v}}, now)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, v.ID.Hex()+"-maintenance-date", res.Alerts[0].ID)
	assert.Equal(t, models.SeverityUrgent, res.Alerts[0].Severity)
	assert.Equal(t, "Scheduled maintenance overdue by 1 day(s)", res.Alerts[0].Title)
}

func TestAggregate_EquipmentLoans(t *testing.T) {
	returned := daysFromNow(-1)

	tests := []struct {
		name     string
		movement models.EquipmentMovement
		want     []models.Severity
	}{
		{"due in three days", models.EquipmentMovement{Type: models.MovementOut, ExpectedReturnDate: daysFromNow(3)}, []models.Severity{models.SeverityWarning}},
		{"due today", models.EquipmentMovement{Type: models.MovementOut, ExpectedReturnDate: daysFromNow(0)}, []models.Severity{models.SeverityWarning}},
		{"due in six days", models.EquipmentMovement{Type: models.MovementOut, ExpectedReturnDate: daysFromNow(6)}, nil},
		{"two days late", models.EquipmentMovement{Type: models.MovementOut, ExpectedReturnDate: daysFromNow(-2)}, []models.Severity{models.SeverityUrgent}},
		{"already returned", models.EquipmentMovement{Type: models.MovementOut, ExpectedReturnDate: daysFromNow(-2), ActualReturnDate: returned}, nil},
		{"no expected date", models.EquipmentMovement{Type: models.MovementOut}, nil},
		{"return record", models.EquipmentMovement{Type: models.MovementReturn, ExpectedReturnDate: daysFromNow(1)}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg, _ := newTestAggregator()
			tt.movement.ID = primitive.NewObjectID()

			res := agg.Aggregate(Snapshot{Movements: []models.EquipmentMovement{tt.movement}}, now)
			var got []models.Severity
			for _, a := range res.Alerts {
				got = append(got, a.Severity)
				assert.Equal(t, tt.movement.ID.Hex()+"-equipment-return", a.ID)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAggregate_LoanDescriptionWithMissingEntities(t *testing.T) {
	agg, _ := newTestAggregator()
	drill := models.Equipment{ID: primitive.NewObjectID(), Name: "Furadeira", Status: models.EquipmentInUse}
	ana := models.Employee{ID: primitive.NewObjectID(), Name: "Ana", Status: models.EmployeeActive}

	known := models.EquipmentMovement{
		ID: primitive.NewObjectID(), EquipmentID: drill.ID.Hex(), EmployeeID: ana.ID.Hex(),
		Type: models.MovementOut, ExpectedReturnDate: daysFromNow(1),
	}
	orphan := models.EquipmentMovement{
		ID: primitive.NewObjectID(), EquipmentID: "gone", EmployeeID: "gone",
		Type: models.MovementOut, ExpectedReturnDate: daysFromNow(1),
	}

	res := agg.Aggregate(Snapshot{
		Equipment: []models.Equipment{drill},
		Employees: []models.Employee{ana},
		Movements: []models.EquipmentMovement{known, orphan},
	}, now)
	require.Len(t, res.Alerts, 2)
	assert.Contains(t, res.Alerts[0].Description, "Furadeira")
	assert.Contains(t, res.Alerts[0].Description, "Ana")
	assert.NotContains(t, res.Alerts[1].Description, "with")
	assert.Empty(t, res.Diagnostics.Failures)
}

func TestAggregate_Summaries(t *testing.T) {
	agg, _ := newTestAggregator()
	snap := Snapshot{
		Equipment: []models.Equipment{
			{ID: primitive.NewObjectID(), Status: models.EquipmentAvailable},
			{ID: primitive.NewObjectID(), Status: models.EquipmentAvailable},
			{ID: primitive.NewObjectID(), Status: models.EquipmentMaintenance},
			{ID: primitive.NewObjectID(), Status: models.EquipmentRetired},
		},
		Employees: []models.Employee{
			{ID: primitive.NewObjectID(), Status: models.EmployeeVacation},
			{ID: primitive.NewObjectID(), Status: models.EmployeeActive},
		},
	}

	res := agg.Aggregate(snap, now)
	assert.Equal(t, []string{
		"summary-equipment-maintenance",
		"summary-equipment-available",
		"summary-employees-vacation",
	}, ids(res.Alerts))
	assert.Contains(t, res.Alerts[1].Description, "2 equipment")
}

func TestAggregate_SortedAndIdempotent(t *testing.T) {
	agg, _ := newTestAggregator()
	a := vehicle("A", 10000)
	a.InsuranceExpiry = daysFromNow(20)
	b := vehicle("B", 31000)
	snap := Snapshot{
		Vehicles: []models.Vehicle{a, b},
		Programs: map[string][]models.ScheduledMaintenance{
			a.ID.Hex(): {active("oleo", 5000, 10500)},
			b.ID.Hex(): {active("oleo", 5000, 30000), active("freios", 20000, 31500)},
		},
		Equipment: []models.Equipment{{ID: primitive.NewObjectID(), Status: models.EquipmentAvailable}},
	}

	first := agg.Aggregate(snap, now)
	second := agg.Aggregate(snap, now)
	assert.Equal(t, ids(first.Alerts), ids(second.Alerts))

	assert.Equal(t, []string{
		b.ID.Hex() + "-maintenance-oleo",
		a.ID.Hex() + "-maintenance-oleo",
		a.ID.Hex() + "-insurance",
		b.ID.Hex() + "-maintenance-freios",
		"summary-equipment-available",
	}, ids(first.Alerts))

	for i := 1; i < len(first.Alerts); i++ {
		assert.LessOrEqual(t, first.Alerts[i-1].Severity.Rank(), first.Alerts[i].Severity.Rank())
	}
}

func TestAggregate_IsolatesBadVehicles(t *testing.T) {
	agg, hook := newTestAggregator()
	broken := vehicle("BROKEN", -5)
	zeroInterval := vehicle("ZERO", 100)
	good := vehicle("GOOD", 5000)

	snap := Snapshot{
		Vehicles: []models.Vehicle{broken, zeroInterval, good},
		Programs: map[string][]models.ScheduledMaintenance{
			zeroInterval.ID.Hex(): {active("oleo", 0, 50)},
			good.ID.Hex():         {active("oleo", 5000, 4000)},
		},
	}

	res := agg.Aggregate(snap, now)
	require.Len(t, res.Alerts, 1)
	assert.Equal(t, good.ID.Hex()+"-maintenance-oleo", res.Alerts[0].ID)

	require.Len(t, res.Diagnostics.Failures, 2)
	assert.Equal(t, "vehicle", res.Diagnostics.Failures[0].Entity)
	assert.Equal(t, broken.ID.Hex(), res.Diagnostics.Failures[0].ID)
	assert.Equal(t, zeroInterval.ID.Hex(), res.Diagnostics.Failures[1].ID)

	var warnings int
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.WarnLevel {
			warnings++
		}
	}
	assert.Equal(t, 2, warnings)
	last := hook.LastEntry()
	require.NotNil(t, last)
	assert.Equal(t, 3, last.Data["vehicles"])
	assert.Equal(t, 2, last.Data["failures"])
}

func TestAggregator_Guard_RecoversPanic(t *testing.T) {
	agg, _ := newTestAggregator()
	var res Result
	agg.guard(&res, "vehicle", "x", func() ([]models.Alert, error) {
		var m map[string]int
		m["boom"]++
		return nil, nil
	})
	require.Len(t, res.Diagnostics.Failures, 1)
	assert.Contains(t, res.Diagnostics.Failures[0].Reason, "panic")
}

func TestAggregate_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	agg := NewAggregator(config.DefaultThresholds(), logrus.New(), NewMetrics(reg))
	v := vehicle("M", 100)
	v.LicenseExpiry = daysFromNow(-3)

	agg.Aggregate(Snapshot{Vehicles: []models.Vehicle{v, vehicle("BAD", -1)}}, now)

	families, err := reg.Gather()
	require.NoError(t, err)
	values := map[string]float64{}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			values[mf.GetName()] += m.GetCounter().GetValue()
		}
	}
	assert.Equal(t, 1.0, values["fleet_alert_passes_total"])
	assert.Equal(t, 1.0, values["fleet_alerts_emitted_total"])
	assert.Equal(t, 1.0, values["fleet_alert_entity_failures_total"])
}

func TestResult_Views(t *testing.T) {
	res := Result{Alerts: []models.Alert{
		{ID: "a", Severity: models.SeverityUrgent},
		{ID: "b", Severity: models.SeverityWarning},
		{ID: "c", Severity: models.SeverityInfo},
	}}
	assert.Len(t, res.Full(), 3)
	assert.Equal(t, []string{"a", "b"}, ids(res.Widget(2)))
	assert.Len(t, res.Widget(0), 3)
	assert.Equal(t, 1, res.CountBySeverity()[models.SeverityInfo])
}
