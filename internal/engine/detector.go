package engine

import (
	"context"
	"log/slog"

	"github.com/manolocortes/evTrak/internal/geo"
	"github.com/manolocortes/evTrak/internal/metrics"
	"github.com/manolocortes/evTrak/internal/types"
)

// GeofenceResolver resolves a geofence name to its polygon. Satisfied by
// *geofence.Cache. found=false means no geofence exists under the name; a
// non-nil error means the lookup itself failed (store unavailable).
type GeofenceResolver interface {
	GetByName(ctx context.Context, name string) (geo.Polygon, bool, error)
}

// Detector is the transition-detection core. For each position report it
// computes old and new containment against every watched geofence, decides
// which enter/exit events fire, and atomically commits the new entity state.
type Detector struct {
	fences GeofenceResolver
	states StateStore
	locks  shardedLock
	clock  types.Clock
	logger *slog.Logger
}

// NewDetector creates a Detector. A nil clock defaults to the real clock.
func NewDetector(fences GeofenceResolver, states StateStore, clock types.Clock, logger *slog.Logger) *Detector {
	if clock == nil {
		clock = types.RealClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{
		fences: fences,
		states: states,
		clock:  clock,
		logger: logger,
	}
}

// ReportPosition ingests one position report for an entity and returns the
// accepted position plus the transition events it fired, in the order the
// caller enumerated the watched geofence names.
//
// The read-compute-write sequence for one entity id is mutually exclusive
// with any other in-flight report for the same id; reports for different
// entities proceed in parallel.
//
// Per-geofence behavior, evaluated independently for each watched name:
//   - A name that does not resolve (missing, or the store lookup failed)
//     contributes no containment state and no events this cycle. One bad
//     lookup never aborts the report.
//   - With no valid previous position, prior containment is unknown: no
//     event fires, the new containment is recorded silently as the baseline.
//   - Exit fires iff the entity was inside and now is not; enter fires iff
//     it was outside and now is inside.
//
// The new state (position plus containment map) is committed as a single
// atomic replace even when some lookups failed.
func (d *Detector) ReportPosition(ctx context.Context, entityID string, lon, lat float64, watched []string) (types.EntityPosition, []types.TransitionEvent, error) {
	mu := d.locks.forKey(entityID)
	mu.Lock()
	defer mu.Unlock()

	now := d.clock.Now()
	pos := types.EntityPosition{
		EntityID:   entityID,
		Longitude:  lon,
		Latitude:   lat,
		ObservedAt: now,
	}
	newPoint := geo.Point{X: lon, Y: lat}

	// A previous state without a position (or no previous state at all)
	// leaves prior containment unknown for every geofence.
	var prevPoint *geo.Point
	if prev, ok := d.states.Get(entityID); ok && prev.LastPosition != nil {
		prevPoint = &geo.Point{X: prev.LastPosition.Longitude, Y: prev.LastPosition.Latitude}
	}

	var events []types.TransitionEvent
	containment := make(map[string]bool, len(watched))

	for _, name := range watched {
		polygon, found, err := d.fences.GetByName(ctx, name)
		if err != nil {
			// Treat a failed load like not-found for this cycle so one bad
			// geofence never blocks ingestion of the position.
			d.logger.Warn("geofence resolution failed; skipping for this report",
				"geofence", name,
				"entity_id", entityID,
				"error", err,
			)
			continue
		}
		if !found {
			continue
		}

		nowInside := geo.IsInside(polygon, newPoint)
		containment[name] = nowInside

		if prevPoint == nil {
			continue
		}
		wasInside := geo.IsInside(polygon, *prevPoint)

		var kind types.EventKind
		switch {
		case wasInside && !nowInside:
			kind = types.EventExit
		case !wasInside && nowInside:
			kind = types.EventEnter
		default:
			continue
		}

		events = append(events, types.TransitionEvent{
			Kind:         kind,
			GeofenceName: name,
			EntityID:     entityID,
			NewPosition:  pos,
			Timestamp:    now,
		})
		metrics.TransitionEventsTotal.WithLabelValues(string(kind)).Inc()
		d.logger.Info("geofence transition",
			"entity_id", entityID,
			"geofence", name,
			"event", string(kind),
		)
	}

	d.states.Put(entityID, EntityState{
		LastPosition: &pos,
		Containment:  containment,
	})

	return pos, events, nil
}
