package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/alerts"
	"github.com/ukydev/fleet-maintenance/internal/compliance"
	"github.com/ukydev/fleet-maintenance/internal/maintenance"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ProgramRegistry manages the program set of a vehicle.
type ProgramRegistry interface {
	Programs(ctx context.Context, vehicleID string) (*models.MaintenanceSchedule, error)
	ReplaceAll(ctx context.Context, vehicleID string, expectedVersion int64, inputs []models.ProgramInput) (*models.MaintenanceSchedule, error)
	Delete(ctx context.Context, vehicleID, maintenanceType string, expectedVersion int64) (*models.MaintenanceSchedule, error)
}

// Recalculator moves due points after a service.
type Recalculator interface {
	RecalcAfterService(ctx context.Context, ev maintenance.ServiceEvent) (*maintenance.RecalcResult, error)
	RecalcOne(ctx context.Context, vehicleID, maintenanceType string, currentDistance float64) (*models.ScheduledMaintenance, error)
}

// SnapshotLoader reads everything an alert pass needs.
type SnapshotLoader interface {
	Load(ctx context.Context) (alerts.Snapshot, error)
}

// VehicleStore is the vehicle access the handlers need.
type VehicleStore interface {
	InsertVehicle(ctx context.Context, vehicle models.Vehicle) (primitive.ObjectID, error)
	ListVehicles(ctx context.Context) ([]models.Vehicle, error)
	FindVehicleByID(ctx context.Context, id string) (*models.Vehicle, error)
	RecordOdometer(ctx context.Context, id string, distance float64) error
}

// FleetHandler serves the maintenance, alert and notification endpoints.
type FleetHandler struct {
	registry   ProgramRegistry
	recalc     Recalculator
	vehicles   VehicleStore
	loader     SnapshotLoader
	aggregator *alerts.Aggregator
	evaluator  *compliance.Evaluator
	feed       *alerts.Feed
	logger     logrus.FieldLogger
	now        func() time.Time
}

// FleetDeps groups the collaborators of a FleetHandler.
type FleetDeps struct {
	Registry   ProgramRegistry
	Recalc     Recalculator
	Vehicles   VehicleStore
	Loader     SnapshotLoader
	Aggregator *alerts.Aggregator
	Evaluator  *compliance.Evaluator
	Feed       *alerts.Feed
	Logger     logrus.FieldLogger
}

// NewFleetHandler creates the handler.
func NewFleetHandler(d FleetDeps) *FleetHandler {
	logger := d.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &FleetHandler{
		registry:   d.Registry,
		recalc:     d.Recalc,
		vehicles:   d.Vehicles,
		loader:     d.Loader,
		aggregator: d.Aggregator,
		evaluator:  d.Evaluator,
		feed:       d.Feed,
		logger:     logger,
		now:        time.Now,
	}
}

// programStatus is one program with its evaluated status.
type programStatus struct {
	models.ScheduledMaintenance
	Status    maintenance.Status `json:"status"`
	Remaining float64            `json:"remaining"`
}

// Alerts returns the aggregated alert list, cut to ?limit= when given.
func (h *FleetHandler) Alerts(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}
	res, err := h.structural(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"alerts":      res.Widget(limit),
		"by_severity": res.CountBySeverity(),
		"failures":    res.Diagnostics.Failures,
	})
}

// parseLimit reads ?limit=, 0 when absent.
func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, fmt.Errorf("negative limit %d", n)
	}
	return n, nil
}

// Notifications returns the caller's notification view.
func (h *FleetHandler) Notifications(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	limit, err := parseLimit(r)
	if err != nil {
		http.Error(w, "Invalid limit", http.StatusBadRequest)
		return
	}

	res, err := h.structural(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	view, err := h.feed.View(r.Context(), session, res.Alerts, limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// MarkRead flags one notification as read for the caller.
func (h *FleetHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.feed.MarkRead)
}

// Dismiss hides one notification for the caller.
func (h *FleetHandler) Dismiss(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, h.feed.Dismiss)
}

// ClearAll dismisses every notification the caller currently sees.
func (h *FleetHandler) ClearAll(w http.ResponseWriter, r *http.Request) {
	session, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	res, err := h.structural(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	n, err := h.feed.ClearAll(r.Context(), session, res.Alerts)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"dismissed": n})
}

func (h *FleetHandler) sessionAction(w http.ResponseWriter, r *http.Request, act func(ctx context.Context, session, id string) error) {
	session, ok := middleware.SessionID(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return
	}
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "Notification id is required", http.StatusBadRequest)
		return
	}
	if err := act(r.Context(), session, id); err != nil {
		writeError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListVehicles returns every vehicle.
func (h *FleetHandler) ListVehicles(w http.ResponseWriter, r *http.Request) {
	vehicles, err := h.vehicles.ListVehicles(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if vehicles == nil {
		vehicles = []models.Vehicle{}
	}
	writeJSON(w, http.StatusOK, vehicles)
}

// CreateVehicle registers a vehicle.
func (h *FleetHandler) CreateVehicle(w http.ResponseWriter, r *http.Request) {
	var v models.Vehicle
	if !decodeBody(w, r, &v) {
		return
	}
	if v.Plate == "" {
		http.Error(w, "plate is required", http.StatusBadRequest)
		return
	}
	if v.CurrentDistance < 0 {
		http.Error(w, "current_distance must not be negative", http.StatusBadRequest)
		return
	}
	id, err := h.vehicles.InsertVehicle(r.Context(), v)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	v.ID = id
	h.logger.WithFields(logrus.Fields{"vehicle_id": id.Hex(), "plate": v.Plate}).Info("vehicle created")
	writeJSON(w, http.StatusCreated, v)
}

// VehicleMaintenance returns the compliance report of one vehicle together
// with the status of each of its programs.
func (h *FleetHandler) VehicleMaintenance(w http.ResponseWriter, r *http.Request) {
	vehicleID := chi.URLParam(r, "id")
	vehicle, err := h.vehicles.FindVehicleByID(r.Context(), vehicleID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	schedule, err := h.registry.Programs(r.Context(), vehicleID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	window := h.evaluator.Thresholds.DistanceWindow
	statuses := make([]programStatus, 0, len(schedule.Programs))
	for _, p := range schedule.Programs {
		ps := programStatus{ScheduledMaintenance: p}
		if p.IsActive {
			ev := maintenance.EvaluateWithin(p, vehicle.CurrentDistance, window)
			ps.Status, ps.Remaining = ev.Status, ev.Remaining
		}
		statuses = append(statuses, ps)
	}
	report := h.evaluator.Evaluate(*vehicle, schedule.Programs, h.now())
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"vehicle":  vehicle,
		"report":   report,
		"due":      report.Due(),
		"programs": statuses,
		"version":  schedule.Version,
	})
}

// GetPrograms returns a vehicle's program set.
func (h *FleetHandler) GetPrograms(w http.ResponseWriter, r *http.Request) {
	schedule, err := h.registry.Programs(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// ReplacePrograms replaces a vehicle's whole program set.
func (h *FleetHandler) ReplacePrograms(w http.ResponseWriter, r *http.Request) {
	var req models.ReplaceProgramsRequest
	if !decodeBody(w, r, &req) {
		return
	}
	schedule, err := h.registry.ReplaceAll(r.Context(), chi.URLParam(r, "id"), req.Version, req.Programs)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// DeleteProgram removes one program. The expected version comes from the
// version query parameter.
func (h *FleetHandler) DeleteProgram(w http.ResponseWriter, r *http.Request) {
	version, err := strconv.ParseInt(r.URL.Query().Get("version"), 10, 64)
	if err != nil {
		http.Error(w, "version query parameter is required", http.StatusBadRequest)
		return
	}
	schedule, err := h.registry.Delete(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "type"), version)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, schedule)
}

// RecordService recalculates the programs covered by a service.
func (h *FleetHandler) RecordService(w http.ResponseWriter, r *http.Request) {
	var req models.RecordServiceRequest
	if !decodeBody(w, r, &req) {
		return
	}
	mode, err := maintenance.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := h.recalc.RecalcAfterService(r.Context(), maintenance.ServiceEvent{
		VehicleID:       chi.URLParam(r, "id"),
		CurrentDistance: req.CurrentDistance,
		PerformedTypes:  req.PerformedTypes,
		Mode:            mode,
		WithSuggestions: req.Suggest,
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// RecalculateProgram recalculates a single program.
func (h *FleetHandler) RecalculateProgram(w http.ResponseWriter, r *http.Request) {
	var req models.RecalculateRequest
	if !decodeBody(w, r, &req) {
		return
	}
	p, err := h.recalc.RecalcOne(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "type"), req.CurrentDistance)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// RecordOdometer stores a fuel or trip distance reading.
func (h *FleetHandler) RecordOdometer(w http.ResponseWriter, r *http.Request) {
	var req models.OdometerReading
	if !decodeBody(w, r, &req) {
		return
	}
	vehicleID := chi.URLParam(r, "id")
	if err := h.vehicles.RecordOdometer(r.Context(), vehicleID, req.Distance); err != nil {
		writeError(w, h.logger, err)
		return
	}
	h.logger.WithFields(logrus.Fields{"vehicle_id": vehicleID, "distance": req.Distance}).Debug("odometer recorded")
	w.WriteHeader(http.StatusNoContent)
}

func (h *FleetHandler) structural(ctx context.Context) (alerts.Result, error) {
	snap, err := h.loader.Load(ctx)
	if err != nil {
		return alerts.Result{}, err
	}
	return h.aggregator.Aggregate(snap, h.now()), nil
}
