package compliance

import (
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// Trigger sources.
const (
	SourceProgram = "program"
	SourceManual  = "manual"
)

// Trigger is a distance at which a vehicle needs service.
type Trigger struct {
	Source          string             `json:"source"`
	MaintenanceType string             `json:"maintenance_type,omitempty"`
	Name            string             `json:"name"`
	DueAt           float64            `json:"due_at"`
	Remaining       float64            `json:"remaining"`
	Status          maintenance.Status `json:"status"`
}

// Provider yields the distance triggers of a vehicle.
type Provider interface {
	Triggers(v models.Vehicle, programs []models.ScheduledMaintenance, window float64) []Trigger
}

// Chain asks each provider in order and keeps the first non-empty answer.
type Chain []Provider

// DefaultChain prefers scheduled programs over the vehicle's manual due-point.
func DefaultChain() Chain {
	return Chain{ProgramTriggers{}, ManualTrigger{}}
}

// Triggers implements Provider.
func (c Chain) Triggers(v models.Vehicle, programs []models.ScheduledMaintenance, window float64) []Trigger {
	for _, p := range c {
		if got := p.Triggers(v, programs, window); len(got) > 0 {
			return got
		}
	}
	return nil
}

// ProgramTriggers yields one trigger per active program.
type ProgramTriggers struct{}

// Triggers implements Provider.
func (ProgramTriggers) Triggers(v models.Vehicle, programs []models.ScheduledMaintenance, window float64) []Trigger {
	var out []Trigger
	for _, p := range programs {
		if !p.IsActive {
			continue
		}
		status, remaining := statusFor(p.NextMaintenanceDistance, v.CurrentDistance, window)
		out = append(out, Trigger{
			Source:          SourceProgram,
			MaintenanceType: p.MaintenanceType,
			Name:            p.MaintenanceName,
			DueAt:           p.NextMaintenanceDistance,
			Remaining:       remaining,
			Status:          status,
		})
	}
	return out
}

// ManualTrigger yields the vehicle's single manually set due-point, if any.
type ManualTrigger struct{}

// Triggers implements Provider.
func (ManualTrigger) Triggers(v models.Vehicle, _ []models.ScheduledMaintenance, window float64) []Trigger {
	if v.ManualNextMaintenanceDistance == nil {
		return nil
	}
	due := *v.ManualNextMaintenanceDistance
	status, remaining := statusFor(due, v.CurrentDistance, window)
	return []Trigger{{
		Source:    SourceManual,
		Name:      "Scheduled maintenance",
		DueAt:     due,
		Remaining: remaining,
		Status:    status,
	}}
}
