// Package tracking wires the transition engine to persistence and the
// distribution channel. Service.ReportPosition is the single ingestion entry
// point used by the inbound position-update handler.
package tracking

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/manolocortes/evTrak/internal/metrics"
	"github.com/manolocortes/evTrak/internal/types"
)

// PositionEngine is the transition-detection contract. Satisfied by
// *engine.Detector; defined locally so tests can substitute a fake.
type PositionEngine interface {
	ReportPosition(ctx context.Context, entityID string, lon, lat float64, watched []string) (types.EntityPosition, []types.TransitionEvent, error)
}

// ShuttleStore is the persistence contract the service needs from the
// shuttles repository.
type ShuttleStore interface {
	List(ctx context.Context) ([]types.Shuttle, error)
	GetByNumber(ctx context.Context, number int) (*types.Shuttle, error)
	UpsertPosition(ctx context.Context, report types.PositionReport) (*types.Shuttle, error)
}

// Publisher places tracker messages on the distribution channel. Satisfied
// by both broadcast.RedisPublisher (multi-process) and broadcast.Hub
// (single-process and tests).
type Publisher interface {
	Publish(ctx context.Context, msg types.TrackerMessage) error
}

// ReportResult is the outcome of one accepted position report.
type ReportResult struct {
	Position types.EntityPosition    `json:"position"`
	Events   []types.TransitionEvent `json:"events"`
	Shuttle  *types.Shuttle          `json:"shuttle"`
}

// Service is the tracking application service.
type Service struct {
	engine    PositionEngine
	shuttles  ShuttleStore
	publisher Publisher
	watched   []string
	logger    *slog.Logger
}

// NewService creates a Service. watched is the deployment-configured set of
// geofence names evaluated on every report.
func NewService(engine PositionEngine, shuttles ShuttleStore, publisher Publisher, watched []string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		engine:    engine,
		shuttles:  shuttles,
		publisher: publisher,
		watched:   watched,
		logger:    logger,
	}
}

// WatchedGeofences returns the configured watched geofence names.
func (s *Service) WatchedGeofences() []string { return s.watched }

// ReportPosition ingests one device report: it runs transition detection,
// persists the accepted position, and publishes the position update plus any
// fired events, in that order.
//
// Persistence failure is a hard error: the caller gets an explicit failure
// and nothing is published. A publish failure, by contrast, is logged and
// absorbed; the report is already accepted and persisted, and a degraded
// distribution channel must not reject ingestion.
func (s *Service) ReportPosition(ctx context.Context, report types.PositionReport) (*ReportResult, error) {
	entityID := strconv.Itoa(report.ShuttleNumber)

	pos, events, err := s.engine.ReportPosition(ctx, entityID, report.Longitude, report.Latitude, s.watched)
	if err != nil {
		return nil, err
	}

	shuttle, err := s.shuttles.UpsertPosition(ctx, report)
	if err != nil {
		return nil, err
	}

	metrics.ReportsTotal.Inc()

	s.publish(ctx, types.NewPositionUpdate(shuttle))
	for _, ev := range events {
		s.publish(ctx, types.NewTransitionMessage(ev, shuttle))
	}

	return &ReportResult{
		Position: pos,
		Events:   events,
		Shuttle:  shuttle,
	}, nil
}

// ListShuttles returns a snapshot of the whole fleet.
func (s *Service) ListShuttles(ctx context.Context) ([]types.Shuttle, error) {
	return s.shuttles.List(ctx)
}

// GetShuttle returns one shuttle by number.
func (s *Service) GetShuttle(ctx context.Context, number int) (*types.Shuttle, error) {
	return s.shuttles.GetByNumber(ctx, number)
}

func (s *Service) publish(ctx context.Context, msg types.TrackerMessage) {
	if err := s.publisher.Publish(ctx, msg); err != nil {
		metrics.PublishFailuresTotal.Inc()
		s.logger.Error("publish failed",
			"type", string(msg.Type),
			"error", err,
		)
	}
}
