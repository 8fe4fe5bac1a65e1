package db

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/manolocortes/evTrak/internal/types"
)

// shuttleColumns is the standard column set for shuttle queries. Scan order
// in scanShuttle must match.
const shuttleColumns = `shuttle_number, latitude, longitude, available_seats, estimated_arrival, updated_at`

// ShuttleRepository provides data access for the shuttles table.
type ShuttleRepository struct {
	db DBTX
}

// NewShuttleRepository creates a ShuttleRepository backed by the given
// database connection (pool or transaction).
func NewShuttleRepository(db DBTX) *ShuttleRepository {
	return &ShuttleRepository{db: db}
}

// scanShuttle scans a single shuttle row. The columns must match
// shuttleColumns.
func scanShuttle(row pgx.Row) (*types.Shuttle, error) {
	var s types.Shuttle
	err := row.Scan(
		&s.ShuttleNumber,
		&s.Latitude,
		&s.Longitude,
		&s.AvailableSeats,
		&s.EstimatedArrival,
		&s.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// List returns the whole fleet ordered by shuttle number.
func (r *ShuttleRepository) List(ctx context.Context) ([]types.Shuttle, error) {
	q := fmt.Sprintf(`SELECT %s FROM shuttles ORDER BY shuttle_number`, shuttleColumns)

	rows, err := r.db.Query(ctx, q)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "listing shuttles", err)
	}
	defer rows.Close()

	var shuttles []types.Shuttle
	for rows.Next() {
		s, err := scanShuttle(rows)
		if err != nil {
			return nil, types.NewAppError(types.ErrCodeInternalDB, "scanning shuttle row", err)
		}
		shuttles = append(shuttles, *s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "iterating shuttle rows", err)
	}
	return shuttles, nil
}

// GetByNumber returns one shuttle, or a not_found_shuttle AppError.
func (r *ShuttleRepository) GetByNumber(ctx context.Context, number int) (*types.Shuttle, error) {
	q := fmt.Sprintf(`SELECT %s FROM shuttles WHERE shuttle_number = $1`, shuttleColumns)

	s, err := scanShuttle(r.db.QueryRow(ctx, q, number))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.NewAppError(types.ErrCodeNotFoundShuttle,
			fmt.Sprintf("shuttle %d not found", number), err)
	}
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "loading shuttle", err)
	}
	return s, nil
}

// UpsertPosition persists an accepted position report and returns the
// resulting shuttle row. The row is created on a shuttle's first report.
func (r *ShuttleRepository) UpsertPosition(ctx context.Context, report types.PositionReport) (*types.Shuttle, error) {
	q := fmt.Sprintf(`INSERT INTO shuttles (shuttle_number, latitude, longitude, available_seats, estimated_arrival, updated_at)
		VALUES ($1, $2, $3, $4, $5, now())
		ON CONFLICT (shuttle_number) DO UPDATE SET
			latitude          = EXCLUDED.latitude,
			longitude         = EXCLUDED.longitude,
			available_seats   = COALESCE(EXCLUDED.available_seats, shuttles.available_seats),
			estimated_arrival = COALESCE(EXCLUDED.estimated_arrival, shuttles.estimated_arrival),
			updated_at        = now()
		RETURNING %s`, shuttleColumns)

	s, err := scanShuttle(r.db.QueryRow(ctx, q,
		report.ShuttleNumber,
		report.Latitude,
		report.Longitude,
		report.AvailableSeats,
		report.EstimatedArrival,
	))
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeInternalDB, "upserting shuttle position", err)
	}
	return s, nil
}
