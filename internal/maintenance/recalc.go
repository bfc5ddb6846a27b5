package maintenance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

var (
	// ErrRecalcFailed means the recalculated schedule was not committed.
	// Nothing was written and the operation can be retried.
	ErrRecalcFailed = errors.New("maintenance recalculation failed")
	// ErrInvalidService is returned for malformed service records.
	ErrInvalidService = errors.New("invalid service record")
)

// Mode selects which programs a recorded service resets.
type Mode string

const (
	ModeSpecific Mode = "specific"
	ModeAll      Mode = "all"
)

// ParseMode maps a request value to a Mode. Empty means specific.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case "", ModeSpecific:
		return ModeSpecific, nil
	case ModeAll:
		return ModeAll, nil
	default:
		return "", fmt.Errorf("%w: unknown mode %q", ErrInvalidService, s)
	}
}

// ServiceEvent is a maintenance service performed on a vehicle.
type ServiceEvent struct {
	VehicleID       string
	CurrentDistance float64
	PerformedTypes  []string
	Mode            Mode
	WithSuggestions bool
}

// RecalcResult reports what a recorded service changed.
type RecalcResult struct {
	Updated     []models.ScheduledMaintenance `json:"updated"`
	Untouched   []models.ScheduledMaintenance `json:"untouched"`
	Suggestions []Suggestion                  `json:"suggestions,omitempty"`
	// Unmatched lists performed types with no active program.
	Unmatched []string `json:"unmatched,omitempty"`
	Version   int64    `json:"version"`
}

// Engine recomputes due-points after services.
type Engine struct {
	schedules ScheduleStore
	vehicles  VehicleStore
	logger    logrus.FieldLogger
	now       func() time.Time
}

// NewEngine creates a recalculation engine.
func NewEngine(schedules ScheduleStore, vehicles VehicleStore, logger logrus.FieldLogger) *Engine {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Engine{schedules: schedules, vehicles: vehicles, logger: logger, now: time.Now}
}

// RecalcAfterService resets the due-points of the programs covered by a
// service. The whole program set is written once; on failure nothing changed.
func (e *Engine) RecalcAfterService(ctx context.Context, ev ServiceEvent) (*RecalcResult, error) {
	if ev.CurrentDistance < 0 {
		return nil, fmt.Errorf("%w: current_distance must not be negative", ErrInvalidService)
	}
	if ev.Mode == "" {
		ev.Mode = ModeSpecific
	}
	if _, err := e.vehicles.FindVehicleByID(ctx, ev.VehicleID); err != nil {
		return nil, err
	}

	schedule, err := e.schedules.FindSchedule(ctx, ev.VehicleID)
	if err != nil {
		return nil, err
	}
	active := schedule.Active()
	if len(active) == 0 {
		return &RecalcResult{Version: schedule.Version}, nil
	}
	if ev.Mode == ModeSpecific && len(ev.PerformedTypes) == 0 {
		return nil, fmt.Errorf("%w: specific mode needs at least one performed type", ErrInvalidService)
	}

	performed := make(map[string]struct{}, len(ev.PerformedTypes))
	for _, t := range ev.PerformedTypes {
		performed[t] = struct{}{}
	}

	now := e.now()
	res := &RecalcResult{}
	programs := make([]models.ScheduledMaintenance, len(schedule.Programs))
	copy(programs, schedule.Programs)
	for i, p := range programs {
		if !p.IsActive {
			continue
		}
		_, hit := performed[p.MaintenanceType]
		if ev.Mode == ModeAll || hit {
			p.NextMaintenanceDistance = NextDue(ev.CurrentDistance, p.IntervalDistance)
			p.UpdatedAt = now
			programs[i] = p
			res.Updated = append(res.Updated, p)
			continue
		}
		res.Untouched = append(res.Untouched, p)
	}

	if ev.Mode == ModeSpecific {
		known := make(map[string]struct{}, len(active))
		for _, p := range active {
			known[p.MaintenanceType] = struct{}{}
		}
		for _, t := range ev.PerformedTypes {
			if _, ok := known[t]; !ok && !contains(res.Unmatched, t) {
				res.Unmatched = append(res.Unmatched, t)
			}
		}
	}

	if ev.WithSuggestions && ev.Mode == ModeSpecific {
		res.Suggestions = Suggest(res.Untouched, ev.PerformedTypes)
	}

	if len(res.Updated) == 0 {
		res.Version = schedule.Version
		return res, nil
	}

	version, err := e.schedules.ReplaceSchedule(ctx, ev.VehicleID, schedule.Version, programs)
	if err != nil {
		e.logger.WithError(err).WithField("vehicle_id", ev.VehicleID).Warn("service recalculation not committed")
		return nil, fmt.Errorf("%w: %w", ErrRecalcFailed, err)
	}
	res.Version = version

	if err := e.vehicles.AdvanceOdometer(ctx, ev.VehicleID, ev.CurrentDistance); err != nil {
		e.logger.WithError(err).WithField("vehicle_id", ev.VehicleID).Warn("odometer not advanced after service")
	}

	if fresh, err := e.schedules.FindSchedule(ctx, ev.VehicleID); err == nil {
		res.Version = fresh.Version
	} else {
		e.logger.WithError(err).WithField("vehicle_id", ev.VehicleID).Warn("refetch after recalculation failed")
	}

	e.logger.WithFields(logrus.Fields{
		"vehicle_id": ev.VehicleID,
		"mode":       ev.Mode,
		"distance":   ev.CurrentDistance,
		"updated":    len(res.Updated),
		"untouched":  len(res.Untouched),
	}).Info("service recorded")
	return res, nil
}

// RecalcOne resets the due-point of a single active program.
func (e *Engine) RecalcOne(ctx context.Context, vehicleID, maintenanceType string, currentDistance float64) (*models.ScheduledMaintenance, error) {
	if currentDistance < 0 {
		return nil, fmt.Errorf("%w: current_distance must not be negative", ErrInvalidService)
	}
	schedule, err := e.schedules.FindSchedule(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	var target *models.ScheduledMaintenance
	for _, p := range schedule.Active() {
		if p.MaintenanceType == maintenanceType {
			p := p
			target = &p
			break
		}
	}
	if target == nil {
		return nil, fmt.Errorf("%w: %q", ErrProgramNotFound, maintenanceType)
	}

	next := NextDue(currentDistance, target.IntervalDistance)
	if _, err := e.schedules.UpdateProgramDistance(ctx, vehicleID, maintenanceType, next); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrRecalcFailed, err)
	}
	if err := e.vehicles.AdvanceOdometer(ctx, vehicleID, currentDistance); err != nil {
		e.logger.WithError(err).WithField("vehicle_id", vehicleID).Warn("odometer not advanced after recalculation")
	}

	target.NextMaintenanceDistance = next
	target.UpdatedAt = e.now()
	return target, nil
}
