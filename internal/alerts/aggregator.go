// Package alerts turns a snapshot of the fleet into a single sorted alert list
// and keeps the per-session notification feed built on top of it.
package alerts

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/compliance"
	"github.com/ukydev/fleet-maintenance/internal/config"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Snapshot is the already-fetched state an aggregation pass reads.
type Snapshot struct {
	Vehicles  []models.Vehicle
	Programs  map[string][]models.ScheduledMaintenance // by vehicle id hex
	Equipment []models.Equipment
	Movements []models.EquipmentMovement
	Employees []models.Employee
}

// Failure records an entity that could not be evaluated.
type Failure struct {
	Entity string `json:"entity"`
	ID     string `json:"id"`
	Reason string `json:"reason"`
}

// Diagnostics summarizes one aggregation pass.
type Diagnostics struct {
	Vehicles  int       `json:"vehicles"`
	Programs  int       `json:"programs"`
	Movements int       `json:"movements"`
	Employees int       `json:"employees"`
	Alerts    int       `json:"alerts"`
	Failures  []Failure `json:"failures,omitempty"`
}

// Result is the output of an aggregation pass.
type Result struct {
	Alerts      []models.Alert `json:"alerts"`
	Diagnostics Diagnostics    `json:"diagnostics"`
}

// Aggregator builds the alert list. It holds no state between passes.
type Aggregator struct {
	thresholds config.Thresholds
	evaluator  *compliance.Evaluator
	logger     logrus.FieldLogger
	metrics    *Metrics
}

// NewAggregator creates an aggregator. metrics may be nil.
func NewAggregator(th config.Thresholds, logger logrus.FieldLogger, metrics *Metrics) *Aggregator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Aggregator{
		thresholds: th,
		evaluator:  compliance.NewEvaluator(th),
		logger:     logger,
		metrics:    metrics,
	}
}

// Aggregate evaluates every entity of the snapshot and returns the alerts
// sorted by severity. A failing entity is skipped and reported in Diagnostics.
func (a *Aggregator) Aggregate(s Snapshot, now time.Time) Result {
	var res Result
	res.Diagnostics = Diagnostics{
		Vehicles:  len(s.Vehicles),
		Movements: len(s.Movements),
		Employees: len(s.Employees),
	}

	for _, v := range s.Vehicles {
		programs := s.Programs[v.ID.Hex()]
		res.Diagnostics.Programs += len(programs)
		a.guard(&res, "vehicle", v.ID.Hex(), func() ([]models.Alert, error) {
			return a.vehicleAlerts(v, programs, now)
		})
	}

	res.Alerts = append(res.Alerts, summaryAlerts(s)...)

	equipment := make(map[string]models.Equipment, len(s.Equipment))
	for _, e := range s.Equipment {
		equipment[e.ID.Hex()] = e
	}
	employees := make(map[string]models.Employee, len(s.Employees))
	for _, e := range s.Employees {
		employees[e.ID.Hex()] = e
	}
	for _, m := range s.Movements {
		a.guard(&res, "movement", m.ID.Hex(), func() ([]models.Alert, error) {
			return a.loanAlert(m, equipment, employees, now), nil
		})
	}

	SortBySeverity(res.Alerts)
	res.Diagnostics.Alerts = len(res.Alerts)

	a.logger.WithFields(logrus.Fields{
		"vehicles":  res.Diagnostics.Vehicles,
		"programs":  res.Diagnostics.Programs,
		"movements": res.Diagnostics.Movements,
		"employees": res.Diagnostics.Employees,
		"alerts":    res.Diagnostics.Alerts,
		"failures":  len(res.Diagnostics.Failures),
	}).Debug("alert aggregation pass")
	a.metrics.observe(&res)
	return res
}

// guard runs one entity's evaluation, turning errors and panics into a
// recorded failure so the rest of the pass continues.
func (a *Aggregator) guard(res *Result, entity, id string, fn func() ([]models.Alert, error)) {
	alerts, err := func() (out []models.Alert, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		f := Failure{Entity: entity, ID: id, Reason: err.Error()}
		res.Diagnostics.Failures = append(res.Diagnostics.Failures, f)
		a.logger.WithFields(logrus.Fields{"entity": entity, "id": id}).WithError(err).Warn("entity skipped during alert aggregation")
		return
	}
	res.Alerts = append(res.Alerts, alerts...)
}

func (a *Aggregator) vehicleAlerts(v models.Vehicle, programs []models.ScheduledMaintenance, now time.Time) ([]models.Alert, error) {
	if v.CurrentDistance < 0 || math.IsNaN(v.CurrentDistance) {
		return nil, fmt.Errorf("invalid odometer reading %v", v.CurrentDistance)
	}
	for _, p := range programs {
		if p.IsActive && p.IntervalDistance <= 0 {
			return nil, fmt.Errorf("program %q has non-positive interval %v", p.MaintenanceType, p.IntervalDistance)
		}
	}

	vid := v.ID.Hex()
	name := v.DisplayName()
	report := a.evaluator.Evaluate(v, programs, now)

	var out []models.Alert
	for _, t := range report.Triggers {
		sev, ok := distanceSeverity(t.Status)
		if !ok {
			continue
		}
		kind, id := KindMaintenance, ProgramAlertID(vid, t.MaintenanceType)
		if t.Source == compliance.SourceManual {
			kind = KindMaintenanceManual
			id = alertID(vid, kind)
		}
		out = append(out, models.Alert{
			ID:          id,
			Kind:        kind,
			Severity:    sev,
			Category:    models.CategoryMaintenance,
			Title:       distanceTitle(t.Status, t.Name),
			Description: distanceDescription(name, t),
			VehicleID:   vid,
		})
	}

	if d := report.NextService; d != nil {
		if sev, ok := dateSeverity(d); ok {
			out = append(out, models.Alert{
				ID:          alertID(vid, KindMaintenanceDate),
				Kind:        KindMaintenanceDate,
				Severity:    sev,
				Category:    models.CategoryMaintenance,
				Title:       dateTitle("Scheduled maintenance", d),
				Description: fmt.Sprintf("%s: maintenance date %s", name, d.Date.Format("2006-01-02")),
				VehicleID:   vid,
			})
		}
	}

	for _, doc := range []struct {
		check *compliance.DateCheck
		kind  string
		label string
	}{
		{report.Insurance, KindInsurance, "Insurance"},
		{report.License, KindLicense, "License"},
	} {
		if doc.check == nil {
			continue
		}
		sev, ok := dateSeverity(doc.check)
		if !ok {
			continue
		}
		out = append(out, models.Alert{
			ID:          alertID(vid, doc.kind),
			Kind:        doc.kind,
			Severity:    sev,
			Category:    models.CategoryDocumentation,
			Title:       dateTitle(doc.label, doc.check),
			Description: fmt.Sprintf("%s: %s expires on %s", name, doc.label, doc.check.Date.Format("2006-01-02")),
			VehicleID:   vid,
		})
	}
	return out, nil
}

func summaryAlerts(s Snapshot) []models.Alert {
	var available, inMaintenance, onVacation int
	for _, e := range s.Equipment {
		switch e.Status {
		case models.EquipmentAvailable:
			available++
		case models.EquipmentMaintenance:
			inMaintenance++
		}
	}
	for _, e := range s.Employees {
		if e.Status == models.EmployeeVacation {
			onVacation++
		}
	}

	var out []models.Alert
	if available > 0 {
		out = append(out, models.Alert{
			ID:          alertID(summarySource, KindEquipmentAvailable),
			Kind:        KindEquipmentAvailable,
			Severity:    models.SeverityInfo,
			Category:    models.CategoryEquipment,
			Title:       "Equipment available",
			Description: fmt.Sprintf("%d equipment item(s) available for use", available),
		})
	}
	if inMaintenance > 0 {
		out = append(out, models.Alert{
			ID:          alertID(summarySource, KindEquipmentMaintenance),
			Kind:        KindEquipmentMaintenance,
			Severity:    models.SeverityWarning,
			Category:    models.CategoryEquipment,
			Title:       "Equipment in maintenance",
			Description: fmt.Sprintf("%d equipment item(s) in maintenance", inMaintenance),
		})
	}
	if onVacation > 0 {
		out = append(out, models.Alert{
			ID:          alertID(summarySource, KindEmployeesVacation),
			Kind:        KindEmployeesVacation,
			Severity:    models.SeverityInfo,
			Category:    models.CategoryPersonnel,
			Title:       "Employees on vacation",
			Description: fmt.Sprintf("%d employee(s) on vacation", onVacation),
		})
	}
	return out
}

func (a *Aggregator) loanAlert(m models.EquipmentMovement, equipment map[string]models.Equipment, employees map[string]models.Employee, now time.Time) []models.Alert {
	if !m.OpenLoan() {
		return nil
	}
	days := compliance.DaysUntil(now, *m.ExpectedReturnDate)

	var sev models.Severity
	var title string
	switch {
	case days < 0:
		sev, title = models.SeverityUrgent, "Equipment return overdue"
	case days <= a.thresholds.LoanDays:
		sev, title = models.SeverityWarning, "Equipment return due soon"
	default:
		return nil
	}

	desc := "Expected return " + m.ExpectedReturnDate.Format("2006-01-02")
	if e, ok := equipment[m.EquipmentID]; ok {
		desc = e.Name + ": " + desc
	}
	if p, ok := employees[m.EmployeeID]; ok {
		desc += " (with " + p.Name + ")"
	}
	return []models.Alert{{
		ID:          alertID(m.ID.Hex(), KindEquipmentReturn),
		Kind:        KindEquipmentReturn,
		Severity:    sev,
		Category:    models.CategoryEquipment,
		Title:       title,
		Description: desc,
	}}
}

// SortBySeverity orders alerts by severity rank, keeping emission order
// within a rank.
func SortBySeverity(alerts []models.Alert) {
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
}

func distanceSeverity(s maintenance.Status) (models.Severity, bool) {
	switch s {
	case maintenance.StatusOverdue:
		return models.SeverityUrgent, true
	case maintenance.StatusWarning:
		return models.SeverityWarning, true
	default:
		return "", false
	}
}

func dateSeverity(d *compliance.DateCheck) (models.Severity, bool) {
	switch {
	case d.Overdue:
		return models.SeverityUrgent, true
	case d.DueSoon:
		return models.SeverityWarning, true
	default:
		return "", false
	}
}

func distanceTitle(s maintenance.Status, name string) string {
	if s == maintenance.StatusOverdue {
		return "Maintenance overdue: " + name
	}
	return "Maintenance due soon: " + name
}

func distanceDescription(vehicle string, t compliance.Trigger) string {
	if t.Remaining <= 0 {
		return fmt.Sprintf("%s is %.0f km past the due point (%.0f km)", vehicle, -t.Remaining, t.DueAt)
	}
	return fmt.Sprintf("%s has %.0f km left until %.0f km", vehicle, t.Remaining, t.DueAt)
}

func dateTitle(label string, d *compliance.DateCheck) string {
	switch {
	case d.Overdue:
		return fmt.Sprintf("%s overdue by %d day(s)", label, -d.Days)
	case d.Days == 0:
		return label + " due today"
	default:
		return fmt.Sprintf("%s due in %d day(s)", label, d.Days)
	}
}
