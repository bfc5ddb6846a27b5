package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
)

// RouterConfig wires the HTTP surface.
type RouterConfig struct {
	Auth       *AuthHandler
	Fleet      *FleetHandler
	AuthMW     *middleware.AuthMiddleware
	Limiter    middleware.Limiter
	RateLimit  int
	Window     time.Duration
	TrustProxy bool
	Gatherer   prometheus.Gatherer
	Logger     logrus.FieldLogger
}

// NewRouter builds the service router.
func NewRouter(c RouterConfig) http.Handler {
	if c.Logger == nil {
		c.Logger = logrus.StandardLogger()
	}
	r := chi.NewRouter()
	r.Use(middleware.RequestLogger(c.Logger))
	if c.Limiter != nil && c.RateLimit > 0 {
		r.Use(middleware.RateLimit(c.Limiter, c.RateLimit, c.Window, c.TrustProxy, c.Logger))
	}

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if c.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(c.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api", func(r chi.Router) {
		r.Use(c.AuthMW.Authenticate)
		perm := c.AuthMW.RequirePermission

		r.Post("/auth/login", c.Auth.Login)
		r.Post("/auth/register", c.Auth.Register)
		r.Get("/auth/profile", c.Auth.GetProfile)
		r.Put("/auth/profile", c.Auth.UpdateProfile)
		r.Put("/auth/password", c.Auth.ChangePassword)

		r.With(perm(models.ActionViewAlerts)).Get("/alerts", c.Fleet.Alerts)
		r.Route("/notifications", func(r chi.Router) {
			r.Use(perm(models.ActionViewAlerts))
			r.Get("/", c.Fleet.Notifications)
			r.Post("/clear", c.Fleet.ClearAll)
			r.Post("/{id}/read", c.Fleet.MarkRead)
			r.Post("/{id}/dismiss", c.Fleet.Dismiss)
		})

		r.With(perm(models.ActionViewVehicles)).Get("/vehicles", c.Fleet.ListVehicles)
		r.With(perm(models.ActionManageVehicles)).Post("/vehicles", c.Fleet.CreateVehicle)
		r.Route("/vehicles/{id}", func(r chi.Router) {
			r.With(perm(models.ActionViewVehicles)).Get("/maintenance", c.Fleet.VehicleMaintenance)
			r.With(perm(models.ActionViewVehicles)).Get("/programs", c.Fleet.GetPrograms)
			r.With(perm(models.ActionManagePrograms)).Put("/programs", c.Fleet.ReplacePrograms)
			r.With(perm(models.ActionManagePrograms)).Delete("/programs/{type}", c.Fleet.DeleteProgram)
			r.With(perm(models.ActionRecordService)).Post("/programs/{type}/recalculate", c.Fleet.RecalculateProgram)
			r.With(perm(models.ActionRecordService)).Post("/services", c.Fleet.RecordService)
			r.With(perm(models.ActionUpdateOdometer)).Post("/odometer", c.Fleet.RecordOdometer)
		})
	})
	return r
}
