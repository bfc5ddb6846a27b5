package alerts

import "github.com/ukydev/fleet-maintenance/internal/models"

// Full returns the complete alert list for the alerts screen.
func (r Result) Full() []models.Alert {
	out := make([]models.Alert, len(r.Alerts))
	copy(out, r.Alerts)
	return out
}

// Widget returns the first limit alerts for the notification dropdown.
// A limit of 0 or less returns everything.
func (r Result) Widget(limit int) []models.Alert {
	out := r.Full()
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CountBySeverity returns how many alerts there are of each severity.
func (r Result) CountBySeverity() map[models.Severity]int {
	counts := make(map[models.Severity]int, 3)
	for _, a := range r.Alerts {
		counts[a.Severity]++
	}
	return counts
}
