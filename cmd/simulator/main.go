// Package main is a fleet simulator for local development. It drives every
// shuttle known to the API around a fixed campus loop, sending one position
// report per shuttle every tick, staggered so the shuttles spread out along
// the route. The reports exercise the full pipeline: ingestion, geofence
// transition detection, and the live broadcast stream.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/manolocortes/evTrak/internal/core"
	"github.com/manolocortes/evTrak/internal/types"
)

type routePoint struct {
	lat float64
	lng float64
}

// campusRoute is the loop the simulated shuttles follow. It passes through
// the default watched geofences so transition events fire on every lap.
var campusRoute = []routePoint{
	{10.35294515637823, 123.91392448412024},
	{10.353097441595814, 123.91398215682702},
	{10.353285558725476, 123.91403072341699},
	{10.353592287189404, 123.9141034806474},
	{10.353697829057515, 123.91401496744434},
	{10.353734767863104, 123.91389426838803},
	{10.353803369975605, 123.91364213997018},
	{10.353858779335216, 123.91347047792193},
	{10.353903634461027, 123.91327467577636},
	{10.353945851106438, 123.91317006901166},
	{10.353985429186107, 123.91304936883945},
	{10.354009175330779, 123.91301986684866},
	{10.354088331475317, 123.91284015798531},
	{10.354233450132568, 123.91257998431274},
	{10.354389123658235, 123.91224738848479},
	{10.35445772506969, 123.91206499974848},
	{10.354539519560394, 123.9118879729296},
	{10.354637575797746, 123.91168313071587},
	{10.354703650474882, 123.91157277923858},
	{10.354871107594711, 123.9114247533095},
	{10.355029463892567, 123.91135629111565},
	{10.355131394170332, 123.91129523098917},
	{10.355202381418199, 123.91123972124656},
	{10.355253346628492, 123.91119901407869},
	{10.355338895350014, 123.91106949124485},
	{10.355411090675082, 123.9108014641178},
	{10.35534355367237, 123.91059717243986},
	{10.355216715725893, 123.9104648852957},
	{10.354971276001315, 123.91033762191677},
	{10.354717599808222, 123.91020868371459},
	{10.354519929757126, 123.91006802417867},
	{10.354094939349643, 123.90984196372261},
	{10.353975203210819, 123.90983647427028},
	{10.353814858659527, 123.90992538357779},
	{10.353672735139462, 123.90999947457247},
	{10.353559765353673, 123.91012913310138},
	{10.353330181577713, 123.91038104064543},
	{10.3532317886897, 123.91062924298873},
	{10.353209923668047, 123.91081076391312},
	{10.353118818876753, 123.91102192085152},
	{10.3529584742818, 123.911207146088},
	{10.35265965018465, 123.9113590304998},
	{10.352302518770694, 123.91144052917436},
	{10.351809959519146, 123.91221252527407},
	{10.351524367499515, 123.91344006174437},
	{10.351719935477215, 123.91362939903424},
	{10.352623274062209, 123.91384398317005},
	{10.352643505497413, 123.9138495651839},
	{10.35288399327097, 123.91391031345759},
	{10.352886914345923, 123.91391475844372},
}

// shuttleState tracks one simulated shuttle's progress along the route.
type shuttleState struct {
	number     int
	routeIndex int
	offset     time.Duration
}

type simulator struct {
	baseURL  string
	interval time.Duration
	client   *http.Client
	shuttles []*shuttleState
	logger   *slog.Logger
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	baseURL := flag.String("api", "http://localhost:8080", "base URL of the tracking API")
	interval := flag.Duration("interval", 2*time.Second, "tick between position reports")
	flag.Parse()

	logger := core.NewLogger("info", "text")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sim := &simulator{
		baseURL:  *baseURL,
		interval: *interval,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   logger,
	}

	if err := sim.initialize(ctx); err != nil {
		return err
	}
	return sim.runLoop(ctx)
}

// initialize fetches the fleet from the API and staggers each shuttle along
// the route so they do not bunch up at the start.
func (s *simulator) initialize(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/v1/shuttles", nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("fetching fleet: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetching fleet: unexpected status %s", resp.Status)
	}

	var envelope struct {
		Data struct {
			Shuttles []types.Shuttle `json:"shuttles"`
		} `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding fleet response: %w", err)
	}
	if len(envelope.Data.Shuttles) == 0 {
		return fmt.Errorf("no shuttles registered; seed the shuttles table first")
	}

	for i, shuttle := range envelope.Data.Shuttles {
		s.shuttles = append(s.shuttles, &shuttleState{
			number:     shuttle.ShuttleNumber,
			routeIndex: (i * len(campusRoute)) / len(envelope.Data.Shuttles),
			offset:     time.Duration(i) * time.Second,
		})
	}

	s.logger.Info("simulator initialized", "shuttles", len(s.shuttles), "route_points", len(campusRoute))
	return nil
}

// runLoop ticks until the context is canceled, advancing every shuttle one
// route point per tick.
func (s *simulator) runLoop(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("simulation running; press Ctrl+C to stop")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("simulation stopped")
			return nil
		case <-ticker.C:
			for _, state := range s.shuttles {
				go func(st *shuttleState) {
					timer := time.NewTimer(st.offset)
					defer timer.Stop()
					select {
					case <-ctx.Done():
					case <-timer.C:
						s.report(ctx, st)
					}
				}(state)
			}
		}
	}
}

// report sends one position update and advances the shuttle along the route.
func (s *simulator) report(ctx context.Context, state *shuttleState) {
	point := campusRoute[state.routeIndex]
	seats := rand.Intn(10) + 1
	eta := "5 mins"

	payload := types.PositionReport{
		ShuttleNumber:    state.number,
		Latitude:         point.lat,
		Longitude:        point.lng,
		AvailableSeats:   &seats,
		EstimatedArrival: &eta,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		s.logger.Error("marshaling report", "shuttle", state.number, "error", err)
		return
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, s.baseURL+"/v1/shuttles", bytes.NewReader(body))
	if err != nil {
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Warn("report failed", "shuttle", state.number, "error", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		s.logger.Warn("report rejected", "shuttle", state.number, "status", resp.Status)
		return
	}

	state.routeIndex = (state.routeIndex + 1) % len(campusRoute)
	s.logger.Info("position sent", "shuttle", state.number, "lat", point.lat, "lng", point.lng)
}
