package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/manolocortes/evTrak/internal/geo"
	"github.com/manolocortes/evTrak/internal/geofence"
	"github.com/manolocortes/evTrak/internal/types"
)

// --- Mock DBTX ---

type mockDBTX struct {
	mock.Mock
}

func (m *mockDBTX) Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error) {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgconn.CommandTag), args.Error(1)
}

func (m *mockDBTX) Query(ctx context.Context, sql string, arguments ...any) (pgx.Rows, error) {
	args := m.Called(ctx, sql, arguments)
	if r := args.Get(0); r != nil {
		return r.(pgx.Rows), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockDBTX) QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row {
	args := m.Called(ctx, sql, arguments)
	return args.Get(0).(pgx.Row)
}

// --- Mock Row ---

type mockRow struct {
	scanErr error
	scanFn  func(dest ...any) error
}

func (r *mockRow) Scan(dest ...any) error {
	if r.scanFn != nil {
		return r.scanFn(dest...)
	}
	return r.scanErr
}

// --- GeofenceRepository Tests ---

func TestGeofenceRepository_LookupPolygon_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*[]byte) = []byte(`[[123.9130,10.3520],[123.9145,10.3520],[123.9145,10.3545]]`)
			return nil
		},
	}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	polygon, err := repo.LookupPolygon(context.Background(), "SAS")
	require.NoError(t, err)
	require.Len(t, polygon, 3)
	assert.Equal(t, geo.Point{X: 123.9130, Y: 10.3520}, polygon[0])
	assert.Equal(t, geo.Point{X: 123.9145, Y: 10.3545}, polygon[2])
}

func TestGeofenceRepository_LookupPolygon_NotFound(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.LookupPolygon(context.Background(), "Nowhere")
	require.ErrorIs(t, err, geofence.ErrNotFound)
}

func TestGeofenceRepository_LookupPolygon_QueryError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	row := &mockRow{scanErr: errors.New("connection refused")}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := repo.LookupPolygon(context.Background(), "SAS")
	require.Error(t, err)
	require.NotErrorIs(t, err, geofence.ErrNotFound)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeUpstreamStore, appErr.Code)
}

func TestGeofenceRepository_LookupPolygon_MalformedVertices(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `garbage`},
		{"triple instead of pair", `[[1,2,3]]`},
		{"single coordinate", `[[1]]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := &mockRow{
				scanFn: func(dest ...any) error {
					*dest[0].(*[]byte) = []byte(tt.raw)
					return nil
				},
			}
			db.ExpectedCalls = nil
			db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

			_, err := repo.LookupPolygon(context.Background(), "SAS")
			require.Error(t, err)

			var appErr *types.AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
		})
	}
}

func TestGeofenceRepository_Upsert_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	polygon := geo.Polygon{{X: 1, Y: 2}, {X: 3, Y: 4}, {X: 5, Y: 6}}
	err := repo.Upsert(context.Background(), "SAS", polygon)
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestGeofenceRepository_Upsert_DBError(t *testing.T) {
	db := new(mockDBTX)
	repo := NewGeofenceRepository(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.CommandTag{}, errors.New("connection refused"))

	err := repo.Upsert(context.Background(), "SAS", geo.Polygon{{X: 1, Y: 2}})
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeInternalDB, appErr.Code)
}
