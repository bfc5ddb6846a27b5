package alerts

import "strings"

// Alert kinds. Together with the source entity id they form the alert id.
const (
	KindMaintenance       = "maintenance"
	KindMaintenanceManual = "maintenance-manual"
	KindMaintenanceDate   = "maintenance-date"
	KindInsurance         = "insurance"
	KindLicense           = "license"
	KindEquipmentReturn   = "equipment-return"
	KindLive              = "live"

	KindEquipmentAvailable   = "equipment-available"
	KindEquipmentMaintenance = "equipment-maintenance"
	KindEmployeesVacation    = "employees-vacation"
)

const summarySource = "summary"

// alertID builds the id of an alert from its source entity and kind. Every
// producer goes through here so the same condition always has the same id.
func alertID(source, kind string, qualifiers ...string) string {
	parts := append([]string{source, kind}, qualifiers...)
	return strings.Join(parts, "-")
}

// ProgramAlertID is the id of the distance alert of one program.
func ProgramAlertID(vehicleID, maintenanceType string) string {
	return alertID(vehicleID, KindMaintenance, maintenanceType)
}
