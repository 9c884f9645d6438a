package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/search"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

func startHub(t *testing.T) (*StreamHub, string) {
	t.Helper()
	hub := NewStreamHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)

	ts := httptest.NewServer(NewServer(Options{Service: &MockService{}, Stream: hub}).Handler())
	t.Cleanup(func() {
		cancel()
		ts.Close()
	})
	return hub, "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

func dial(t *testing.T, hub *StreamHub, url string, want int) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	require.Eventually(t, func() bool { return hub.ClientCount() == want }, time.Second, 10*time.Millisecond)
	return conn
}

func outcome(itemType sources.ItemType, name string, avg float64) jobs.Outcome {
	return jobs.Outcome{
		JobID:      uuid.MustParse("5f0c7c9e-3a52-4a7e-9a7e-2b6d7b8c1e01"),
		Request:    jobs.Request{ItemID: 42, Query: sources.Query{ItemName: name, ItemType: itemType, Dosage: "500mg"}},
		Result:     &search.Result{AveragePrice: &avg, Source: "consultaremedios"},
		Updated:    true,
		FinishedAt: time.Date(2024, 5, 10, 14, 0, 0, 0, time.UTC),
	}
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]interface{}
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

// waitPong sends a ping and waits for the pong, so earlier client messages
// have been handled.
func waitPong(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "ping"}))
	assert.Equal(t, "pong", readJSON(t, conn)["type"])
}

func TestStreamHub_BroadcastsOutcome(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	hub.Publish(outcome(sources.ItemTypeMedicine, "Dipirona", 5.63))

	msg := readJSON(t, conn)
	assert.Equal(t, "price_discovered", msg["type"])
	assert.Equal(t, "5f0c7c9e-3a52-4a7e-9a7e-2b6d7b8c1e01", msg["job_id"])
	assert.Equal(t, float64(42), msg["item_id"])
	assert.Equal(t, "medicine", msg["item_type"])
	assert.Equal(t, "Dipirona", msg["item_name"])
	assert.Equal(t, "500mg", msg["dosage"])
	assert.Equal(t, 5.63, msg["average_price"])
	assert.Equal(t, "consultaremedios", msg["source"])
	assert.Equal(t, true, msg["updated"])
	assert.Equal(t, "2024-05-10T14:00:00Z", msg["timestamp"])
}

func TestStreamHub_SubscriptionFilters(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "subscribe", ItemTypes: []string{"input"}}))
	waitPong(t, conn)

	hub.Publish(outcome(sources.ItemTypeMedicine, "Dipirona", 5.63))
	hub.Publish(outcome(sources.ItemTypeInput, "Luva de procedimento", 32.9))

	// Delivery is ordered, so the first message proves the medicine one was skipped.
	msg := readJSON(t, conn)
	assert.Equal(t, "input", msg["item_type"])
	assert.Equal(t, "Luva de procedimento", msg["item_name"])

	require.NoError(t, conn.WriteJSON(ClientMessage{Type: "unsubscribe", ItemTypes: []string{"*"}}))
	waitPong(t, conn)

	hub.Publish(outcome(sources.ItemTypeInput, "Gaze", 9.9))
	waitPong(t, conn)
}

func TestStreamHub_SkipsOutcomesWithoutPrice(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)

	hub.Publish(jobs.Outcome{Request: jobs.Request{Query: sources.Query{ItemName: "Xarope", ItemType: sources.ItemTypeMedicine}}})
	hub.Publish(outcome(sources.ItemTypeMedicine, "Dipirona", 5.63))

	msg := readJSON(t, conn)
	assert.Equal(t, "Dipirona", msg["item_name"])
}

func TestStreamHub_UnregistersClosedClient(t *testing.T) {
	hub, url := startHub(t)
	conn := dial(t, hub, url, 1)
	dial(t, hub, url, 2)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 10*time.Millisecond)
}

func TestStreamHub_RunStopDisconnects(t *testing.T) {
	hub := NewStreamHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()

	ts := httptest.NewServer(NewServer(Options{Service: &MockService{}, Stream: hub}).Handler())
	defer ts.Close()
	conn := dial(t, hub, "ws"+strings.TrimPrefix(ts.URL, "http")+"/ws", 1)

	cancel()
	<-stopped
	assert.Equal(t, 0, hub.ClientCount())

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err)
}

func TestPriceDiscoveredMessage_JSON(t *testing.T) {
	data, err := json.Marshal(PriceDiscoveredMessage{Type: "price_discovered", ItemType: sources.ItemTypeInput, ItemName: "Gaze"})
	require.NoError(t, err)
	assert.NotContains(t, string(data), "item_id")
	assert.NotContains(t, string(data), "dosage")
}
