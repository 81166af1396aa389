package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yegors/skylanes/internal/flight"
	"github.com/yegors/skylanes/internal/geodesic"
	"github.com/yegors/skylanes/internal/simulation"
	"github.com/yegors/skylanes/pkg/logger"
)

type recordingHandler struct {
	types chan string
}

func (h *recordingHandler) HandleMessage(client *Client, messageType string, data map[string]any) error {
	h.types <- messageType
	if messageType == MessageTypeSnapshotRequest {
		client.SendMessage(&Message{Type: MessageTypeSnapshotResponse, Data: map[string]any{"count": 0}})
	}
	return nil
}

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(s.HandleConnection))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("client never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func TestBroadcastReachesClient(t *testing.T) {
	s := NewServer(logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn := dial(t, s)
	s.Broadcast(&Message{Type: MessageTypeWorldState, Data: map[string]any{"paused": true}})

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeWorldState || msg.Data["paused"] != true {
		t.Errorf("got %+v", msg)
	}
}

func TestIncomingMessagesReachHandler(t *testing.T) {
	s := NewServer(logger.NewNop())
	handler := &recordingHandler{types: make(chan string, 4)}
	s.SetMessageHandler(handler)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	conn := dial(t, s)
	if err := conn.WriteJSON(Message{Type: MessageTypeSnapshotRequest, Data: map[string]any{}}); err != nil {
		t.Fatal(err)
	}

	select {
	case typ := <-handler.types:
		if typ != MessageTypeSnapshotRequest {
			t.Errorf("handler got %q", typ)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("handler never called")
	}

	if msg := readMessage(t, conn); msg.Type != MessageTypeSnapshotResponse {
		t.Errorf("reply type %q", msg.Type)
	}
}

func TestClientFilters(t *testing.T) {
	c := &Client{}
	if !c.MatchesFilters("a", "CRUISING") {
		t.Errorf("client without filters should receive everything")
	}

	c.UpdateFilters(&ClientFilters{
		Phases:           map[string]bool{"CRUISING": false, "LANDED": true},
		SelectedFlightID: "picked",
	})
	tests := []struct {
		id, phase string
		want      bool
	}{
		{"a", "CRUISING", false},
		{"a", "LANDED", true},
		{"a", "ASCENDING", true},
		{"picked", "CRUISING", true},
	}
	for _, tc := range tests {
		if got := c.MatchesFilters(tc.id, tc.phase); got != tc.want {
			t.Errorf("MatchesFilters(%q, %q) = %v, want %v", tc.id, tc.phase, got, tc.want)
		}
	}

	// GetFilters returns a copy
	f := c.GetFilters()
	f.Phases["CRUISING"] = true
	if c.MatchesFilters("a", "CRUISING") {
		t.Errorf("mutating the copy changed the client's filters")
	}
}

func TestSceneFrame(t *testing.T) {
	s := NewServer(logger.NewNop())
	r := NewSceneRenderer(s, nil, time.Second, logger.NewNop())

	if r.frame() != nil {
		t.Fatalf("empty scene produced a frame")
	}

	h := r.Load("b")
	if !h.Ready() || h.Err() != nil {
		t.Fatalf("handle without a loader should be ready")
	}
	r.Update("b", flight.Pose{Altitude: 0.05})
	r.Update("a", flight.Pose{Altitude: 0.02})
	r.EmitTrailSegment(geodesic.Vector3{X: 1}, geodesic.Vector3{Y: -1})

	msg := r.frame()
	if msg == nil || msg.Type != MessageTypeFrame {
		t.Fatalf("frame = %+v", msg)
	}
	flights := msg.Data["flights"].([]FramePose)
	if len(flights) != 2 || flights[0].ID != "a" || flights[1].ID != "b" {
		t.Errorf("flights %+v", flights)
	}
	if trails := msg.Data["trails"].([]flight.TrailSegment); len(trails) != 1 {
		t.Errorf("trails %+v", trails)
	}

	// Trails are only sent once
	msg = r.frame()
	if trails := msg.Data["trails"].([]flight.TrailSegment); len(trails) != 0 {
		t.Errorf("trails resent: %+v", trails)
	}

	r.Release("a")
	r.Hide("b")
	if r.frame() != nil {
		t.Errorf("frame produced after all flights left")
	}
	select {
	case m := <-s.broadcast:
		if m.Type != MessageTypeFlightHidden || m.Data["id"] != "b" {
			t.Errorf("hide broadcast %+v", m)
		}
	default:
		t.Errorf("hide was not broadcast")
	}
}

func TestSceneEventMessages(t *testing.T) {
	s := NewServer(logger.NewNop())
	r := NewSceneRenderer(s, nil, time.Second, logger.NewNop())

	for typ, want := range map[simulation.EventType]string{
		simulation.EventSpawned:    MessageTypeFlightSpawned,
		simulation.EventLegChanged: MessageTypeFlightLegChanged,
		simulation.EventLanded:     MessageTypeFlightLanded,
		simulation.EventRemoved:    MessageTypeFlightRemoved,
	} {
		r.HandleFlightEvent(simulation.Event{
			Type:   typ,
			Flight: flight.Snapshot{ID: "x", Phase: flight.PhaseLanded},
		})
		m := <-s.broadcast
		if m.Type != want || m.Data["id"] != "x" || m.Data["phase"] != "LANDED" {
			t.Errorf("%s: got %+v", typ, m)
		}
	}
}
