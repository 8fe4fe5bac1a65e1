package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/manolocortes/evTrak/internal/broadcast"
	"github.com/manolocortes/evTrak/internal/config"
	"github.com/manolocortes/evTrak/internal/types"
)

func newTestGateway(t *testing.T) (*broadcast.Hub, *httptest.Server) {
	t.Helper()

	hub := broadcast.NewHub(8, nil)
	handler := NewHandler(hub, config.GatewayConfig{
		SessionQueueSize: 8,
		WriteTimeout:     2 * time.Second,
		PingInterval:     30 * time.Second,
	}, nil)

	srv := httptest.NewServer(http.HandlerFunc(handler.ServeWS))
	t.Cleanup(srv.Close)
	return hub, srv
}

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	return conn
}

// waitForSessions blocks until the hub has n registered sessions.
func waitForSessions(t *testing.T, hub *broadcast.Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.SessionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d sessions, have %d", n, hub.SessionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestServeWS_SendsWelcomeFrame(t *testing.T) {
	_, srv := newTestGateway(t)
	conn := dial(t, srv, "")

	var welcome welcomeMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	assert.Equal(t, "welcome", welcome.Type)
	assert.NotEmpty(t, welcome.SessionID)
	assert.NotEmpty(t, welcome.Timestamp)
}

func TestServeWS_StreamsHubMessages(t *testing.T) {
	hub, srv := newTestGateway(t)
	conn := dial(t, srv, "")

	var welcome welcomeMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	waitForSessions(t, hub, 1)

	lat, lng := 10.3535, 123.9130
	msg := types.NewPositionUpdate(&types.Shuttle{ShuttleNumber: 7, Latitude: &lat, Longitude: &lng})
	require.NoError(t, hub.Publish(context.Background(), msg))

	var received types.TrackerMessage
	require.NoError(t, conn.ReadJSON(&received))
	assert.Equal(t, types.MessagePositionUpdate, received.Type)
	require.NotNil(t, received.Shuttle)
	assert.Equal(t, 7, received.Shuttle.ShuttleNumber)
}

func TestServeWS_GeofenceQueryFiltersEvents(t *testing.T) {
	hub, srv := newTestGateway(t)
	conn := dial(t, srv, "?geofence=Portal")

	var welcome welcomeMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	waitForSessions(t, hub, 1)

	shuttle := &types.Shuttle{ShuttleNumber: 7}
	ctx := context.Background()

	// An event for another geofence is filtered out; the Portal event and
	// every position update still arrive.
	require.NoError(t, hub.Publish(ctx, types.NewTransitionMessage(
		types.TransitionEvent{Kind: types.EventEnter, GeofenceName: "SAS", EntityID: "7"}, shuttle)))
	require.NoError(t, hub.Publish(ctx, types.NewPositionUpdate(shuttle)))
	require.NoError(t, hub.Publish(ctx, types.NewTransitionMessage(
		types.TransitionEvent{Kind: types.EventExit, GeofenceName: "Portal", EntityID: "7"}, shuttle)))

	var first types.TrackerMessage
	require.NoError(t, conn.ReadJSON(&first))
	assert.Equal(t, types.MessagePositionUpdate, first.Type)

	var second types.TrackerMessage
	require.NoError(t, conn.ReadJSON(&second))
	assert.Equal(t, types.MessageTransitionEvent, second.Type)
	assert.Equal(t, "Portal", second.GeofenceName)
}

func TestServeWS_ClientDisconnectUnregisters(t *testing.T) {
	hub, srv := newTestGateway(t)
	conn := dial(t, srv, "")

	var welcome welcomeMessage
	require.NoError(t, conn.ReadJSON(&welcome))
	waitForSessions(t, hub, 1)

	conn.Close()
	waitForSessions(t, hub, 0)
}
