package handlers

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// GeofenceCache is the cache-administration contract. Matches
// *geofence.Cache.
type GeofenceCache interface {
	Invalidate(name string)
	InvalidateAll()
}

// GeofenceHandler exposes administrative invalidation of the geofence
// cache, used after the underlying polygon of a geofence is updated in the
// store. Nothing invalidates the cache automatically; a loaded polygon is
// assumed static until an operator says otherwise.
type GeofenceHandler struct {
	cache  GeofenceCache
	logger *slog.Logger
}

// NewGeofenceHandler creates a GeofenceHandler.
func NewGeofenceHandler(cache GeofenceCache, logger *slog.Logger) *GeofenceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &GeofenceHandler{cache: cache, logger: logger}
}

// RegisterRoutes mounts the geofence admin endpoints onto the mux.
func (h *GeofenceHandler) RegisterRoutes(r chi.Router) {
	r.Delete("/cache", h.HandleInvalidateAll)
	r.Delete("/cache/{name}", h.HandleInvalidate)
}

// HandleInvalidateAll handles DELETE /v1/geofences/cache.
func (h *GeofenceHandler) HandleInvalidateAll(w http.ResponseWriter, r *http.Request) {
	h.cache.InvalidateAll()
	h.logger.Info("geofence cache invalidated")
	w.WriteHeader(http.StatusNoContent)
}

// HandleInvalidate handles DELETE /v1/geofences/cache/{name}. Invalidating
// an unknown or never-loaded name is a no-op and still succeeds.
func (h *GeofenceHandler) HandleInvalidate(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	h.cache.Invalidate(name)
	h.logger.Info("geofence cache entry invalidated", "geofence", name)
	w.WriteHeader(http.StatusNoContent)
}
