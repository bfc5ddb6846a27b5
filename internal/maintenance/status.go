// Package maintenance holds the scheduled maintenance registry, the distance
// status evaluator and the recalculation engine.
package maintenance

import "github.com/ukydev/fleet-maintenance/internal/models"

// DefaultWarningWindow is the distance before a due-point that counts as due soon.
const DefaultWarningWindow = 1000.0

// Status of a distance-based program.
type Status string

const (
	StatusOK      Status = "ok"
	StatusWarning Status = "warning"
	StatusOverdue Status = "overdue"
)

// Evaluation is the result of checking one program against an odometer reading.
type Evaluation struct {
	Status    Status  `json:"status"`
	Remaining float64 `json:"remaining"`
}

// Evaluate checks a program against the current odometer using the default window.
func Evaluate(p models.ScheduledMaintenance, currentDistance float64) Evaluation {
	return EvaluateWithin(p, currentDistance, DefaultWarningWindow)
}

// EvaluateWithin checks a program with an explicit warning window.
func EvaluateWithin(p models.ScheduledMaintenance, currentDistance, window float64) Evaluation {
	return EvaluateDueAt(p.NextMaintenanceDistance, currentDistance, window)
}

// EvaluateDueAt classifies a raw due-point. Remaining <= 0 is overdue,
// 0 < remaining <= window is a warning.
func EvaluateDueAt(dueAt, currentDistance, window float64) Evaluation {
	remaining := dueAt - currentDistance
	switch {
	case remaining <= 0:
		return Evaluation{Status: StatusOverdue, Remaining: remaining}
	case remaining <= window:
		return Evaluation{Status: StatusWarning, Remaining: remaining}
	default:
		return Evaluation{Status: StatusOK, Remaining: remaining}
	}
}

// NextDue returns the due-point after a service performed at currentDistance.
// Both recalculation paths go through here.
func NextDue(currentDistance, interval float64) float64 {
	return currentDistance + interval
}
