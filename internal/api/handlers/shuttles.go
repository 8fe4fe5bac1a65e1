// Package handlers contains the HTTP handler implementations for the evTrak
// API: the shuttle position-report and snapshot endpoints, and the
// administrative geofence cache endpoints.
package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/manolocortes/evTrak/internal/core"
	"github.com/manolocortes/evTrak/internal/tracking"
	"github.com/manolocortes/evTrak/internal/types"
)

// TrackingServiceInterface is the service contract for the shuttle handler.
// Matches *tracking.Service but is defined locally so tests can inject a
// fake.
type TrackingServiceInterface interface {
	ReportPosition(ctx context.Context, report types.PositionReport) (*tracking.ReportResult, error)
	ListShuttles(ctx context.Context) ([]types.Shuttle, error)
	GetShuttle(ctx context.Context, number int) (*types.Shuttle, error)
}

// ShuttleHandler maps HTTP requests to tracking service methods.
type ShuttleHandler struct {
	service   TrackingServiceInterface
	validator *core.Validator
	logger    *slog.Logger
}

// NewShuttleHandler creates a ShuttleHandler.
func NewShuttleHandler(svc TrackingServiceInterface, val *core.Validator, logger *slog.Logger) *ShuttleHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ShuttleHandler{
		service:   svc,
		validator: val,
		logger:    logger,
	}
}

// RegisterRoutes mounts the shuttle endpoints onto the mux.
func (h *ShuttleHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.HandleList)
	r.Get("/{number}", h.HandleGet)
	r.Put("/", h.HandleReport)
}

// shuttleListResponse is the payload of GET /v1/shuttles.
type shuttleListResponse struct {
	Shuttles []types.Shuttle `json:"shuttles"`
}

// HandleList handles GET /v1/shuttles: a snapshot of the whole fleet, used
// by viewers to seed their state before the live stream takes over.
func (h *ShuttleHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	shuttles, err := h.service.ListShuttles(r.Context())
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if shuttles == nil {
		shuttles = []types.Shuttle{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: shuttleListResponse{Shuttles: shuttles}})
}

// HandleGet handles GET /v1/shuttles/{number}.
func (h *ShuttleHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.Atoi(chi.URLParam(r, "number"))
	if err != nil || number <= 0 {
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationShuttleNumber,
			"shuttle number must be a positive integer", nil))
		return
	}

	shuttle, err := h.service.GetShuttle(r.Context(), number)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: shuttle})
}

// HandleReport handles PUT /v1/shuttles: one device position report. The
// response carries the accepted position and every transition event the
// report fired.
func (h *ShuttleHandler) HandleReport(w http.ResponseWriter, r *http.Request) {
	var report types.PositionReport
	if err := core.DecodeJSON(r, &report); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&report); err != nil {
		core.Error(w, r, err)
		return
	}

	result, err := h.service.ReportPosition(r.Context(), report)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	if result.Events == nil {
		result.Events = []types.TransitionEvent{}
	}
	core.JSON(w, r, http.StatusOK, core.APIResponse{Data: result})
}
