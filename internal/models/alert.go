package models

import "time"

// Severity of an alert. Lower rank sorts first.
type Severity string

const (
	SeverityUrgent  Severity = "urgent"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Rank returns the sort rank of the severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityUrgent:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// Category groups alerts by the subsystem that produced them.
type Category string

const (
	CategoryMaintenance   Category = "maintenance"
	CategoryDocumentation Category = "documentation"
	CategoryEquipment     Category = "equipment"
	CategoryPersonnel     Category = "personnel"
)

// Alert is a derived notification. It is rebuilt from scratch on every pass;
// ID is deterministic so the same condition always maps to the same alert.
type Alert struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Severity    Severity   `json:"severity"`
	Category    Category   `json:"category"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	VehicleID   string     `json:"vehicle_id,omitempty"`
	Live        bool       `json:"live,omitempty"`
	Read        bool       `json:"read"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
}
