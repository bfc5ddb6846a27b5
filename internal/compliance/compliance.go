// Package compliance evaluates the distance, calendar and document deadlines
// of a single vehicle.
package compliance

import (
	"math"
	"time"

	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Deadline kinds.
const (
	KindMaintenanceDate = "maintenance_date"
	KindInsurance       = "insurance"
	KindLicense         = "license"
)

// DateCheck is a calendar deadline measured in whole days from today.
type DateCheck struct {
	Kind    string    `json:"kind"`
	Date    time.Time `json:"date"`
	Days    int       `json:"days"`
	Overdue bool      `json:"overdue"`
	DueSoon bool      `json:"due_soon"`
}

// Report is the compliance picture of one vehicle.
type Report struct {
	VehicleID       string     `json:"vehicle_id"`
	CurrentDistance float64    `json:"current_distance"`
	Triggers        []Trigger  `json:"triggers"`
	Nearest         *Trigger   `json:"nearest,omitempty"`
	NextService     *DateCheck `json:"next_service,omitempty"`
	Insurance       *DateCheck `json:"insurance,omitempty"`
	License         *DateCheck `json:"license,omitempty"`

	thresholds config.Thresholds
}

// Due reports whether any deadline is within its window or already past.
func (r Report) Due() bool {
	if r.Nearest != nil && r.Nearest.Remaining <= r.thresholds.DistanceWindow {
		return true
	}
	for _, d := range []*DateCheck{r.NextService, r.Insurance, r.License} {
		if d != nil && (d.Overdue || d.DueSoon) {
			return true
		}
	}
	return false
}

// Evaluator computes reports with a fixed provider chain and thresholds.
type Evaluator struct {
	Providers  Chain
	Thresholds config.Thresholds
}

// NewEvaluator returns an evaluator using programs first and the manual
// due-point as fallback.
func NewEvaluator(th config.Thresholds) *Evaluator {
	return &Evaluator{Providers: DefaultChain(), Thresholds: th}
}

// Evaluate builds the report of one vehicle with the default provider chain.
func Evaluate(v models.Vehicle, programs []models.ScheduledMaintenance, now time.Time, th config.Thresholds) Report {
	return NewEvaluator(th).Evaluate(v, programs, now)
}

// Evaluate builds the report of one vehicle.
func (e *Evaluator) Evaluate(v models.Vehicle, programs []models.ScheduledMaintenance, now time.Time) Report {
	r := Report{
		VehicleID:       v.ID.Hex(),
		CurrentDistance: v.CurrentDistance,
		Triggers:        e.Providers.Triggers(v, programs, e.Thresholds.DistanceWindow),
		thresholds:      e.Thresholds,
	}
	r.Nearest = Nearest(r.Triggers)

	if v.NextMaintenanceDate != nil {
		r.NextService = checkDate(KindMaintenanceDate, *v.NextMaintenanceDate, now, e.Thresholds.MaintenanceDays)
	}
	if v.InsuranceExpiry != nil {
		r.Insurance = checkDate(KindInsurance, *v.InsuranceExpiry, now, e.Thresholds.DocumentDays)
	}
	if v.LicenseExpiry != nil {
		r.License = checkDate(KindLicense, *v.LicenseExpiry, now, e.Thresholds.DocumentDays)
	}
	return r
}

// Nearest returns the trigger with the smallest due distance. Ties keep the
// earlier trigger.
func Nearest(triggers []Trigger) *Trigger {
	var best *Trigger
	for i := range triggers {
		if best == nil || triggers[i].DueAt < best.DueAt {
			best = &triggers[i]
		}
	}
	return best
}

func checkDate(kind string, date, now time.Time, window int) *DateCheck {
	days := DaysUntil(now, date)
	return &DateCheck{
		Kind:    kind,
		Date:    date,
		Days:    days,
		Overdue: days < 0,
		DueSoon: days >= 0 && days <= window,
	}
}

// DaysUntil counts calendar days from now to date. Each value is read as the
// calendar day it names in its own location, so a date-only deadline stored
// at UTC midnight stays on that day wherever the service runs.
func DaysUntil(now, date time.Time) int {
	from := civilDay(now)
	to := civilDay(date)
	return int(math.Round(to.Sub(from).Hours() / 24))
}

// civilDay returns the calendar day of t as UTC midnight.
func civilDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// statusFor classifies a distance due-point.
func statusFor(dueAt, current, window float64) (maintenance.Status, float64) {
	ev := maintenance.EvaluateDueAt(dueAt, current, window)
	return ev.Status, ev.Remaining
}
