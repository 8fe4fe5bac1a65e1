package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/manolocortes/evTrak/internal/geo"
	"github.com/manolocortes/evTrak/internal/geofence"
	"github.com/manolocortes/evTrak/internal/types"
)

// GeofenceRepository provides data access for the geofences table. It
// implements geofence.PolygonSource: the cache calls LookupPolygon once per
// miss and holds the result.
//
// Vertices are stored as a JSONB array of [longitude, latitude] pairs in
// boundary order.
type GeofenceRepository struct {
	db DBTX
}

// NewGeofenceRepository creates a GeofenceRepository backed by the given
// database connection (pool or transaction).
func NewGeofenceRepository(db DBTX) *GeofenceRepository {
	return &GeofenceRepository{db: db}
}

// LookupPolygon loads a geofence's polygon by name. Returns
// geofence.ErrNotFound when no row exists under the name.
func (r *GeofenceRepository) LookupPolygon(ctx context.Context, name string) (geo.Polygon, error) {
	const q = `SELECT vertices FROM geofences WHERE name = $1`

	var raw []byte
	err := r.db.QueryRow(ctx, q, name).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, geofence.ErrNotFound
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStore,
			fmt.Sprintf("loading geofence %q", name), err)
	}

	var pairs [][]float64
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("decoding geofence %q vertices", name), err)
	}

	polygon := make(geo.Polygon, 0, len(pairs))
	for i, pair := range pairs {
		if len(pair) != 2 {
			return nil, types.NewAppError(types.ErrCodeInternalDB,
				fmt.Sprintf("geofence %q vertex %d is not a coordinate pair", name, i), nil)
		}
		polygon = append(polygon, geo.Point{X: pair[0], Y: pair[1]})
	}
	return polygon, nil
}

// Upsert writes or replaces a geofence definition. Used by seeding and
// administrative tooling; the serving path only reads.
func (r *GeofenceRepository) Upsert(ctx context.Context, name string, polygon geo.Polygon) error {
	pairs := make([][]float64, 0, len(polygon))
	for _, p := range polygon {
		pairs = append(pairs, []float64{p.X, p.Y})
	}
	raw, err := json.Marshal(pairs)
	if err != nil {
		return fmt.Errorf("db: marshal geofence %q vertices: %w", name, err)
	}

	const q = `INSERT INTO geofences (name, vertices) VALUES ($1, $2)
		ON CONFLICT (name) DO UPDATE SET vertices = EXCLUDED.vertices`
	if _, err := r.db.Exec(ctx, q, name, raw); err != nil {
		return types.NewAppError(types.ErrCodeInternalDB,
			fmt.Sprintf("upserting geofence %q", name), err)
	}
	return nil
}
