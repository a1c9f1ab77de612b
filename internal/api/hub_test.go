package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flyover/pkg/camera"
	"flyover/pkg/model"
	"flyover/pkg/tour"
)

func dial(t *testing.T, h *Hub) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(ts.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 5*time.Millisecond)
	return conn
}

func read(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var m Message
	require.NoError(t, conn.ReadJSON(&m))
	return m
}

func TestHub_NotReadyWithoutMap(t *testing.T) {
	h := NewHub()
	_, err := h.FlyTo(context.Background(), camera.Move{ID: "x"})
	assert.ErrorIs(t, err, camera.ErrNotReady)
}

func TestHub_FlyAndMoveEnd(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	ended, err := h.FlyTo(context.Background(), camera.Move{
		ID: "m1",
		CameraTarget: model.CameraTarget{
			Center:   orb.Point{-81.38, 28.54},
			Zoom:     17.5,
			Pitch:    60,
			Bearing:  -45,
			Duration: 5 * time.Second,
		},
		Curve: 1.42,
	})
	require.NoError(t, err)

	msg := read(t, conn)
	require.Equal(t, MsgFly, msg.Type)
	assert.Equal(t, "m1", msg.ID)
	var f flight
	require.NoError(t, json.Unmarshal(msg.Data, &f))
	assert.Equal(t, int64(5000), f.Duration)
	assert.Equal(t, [2]float64{-81.38, 28.54}, f.Center)
	assert.Equal(t, -45.0, f.Bearing)

	require.NoError(t, conn.WriteJSON(Message{Type: MsgMoveEnd, ID: "other"}))
	require.NoError(t, conn.WriteJSON(Message{Type: MsgMoveEnd, ID: "m1"}))
	select {
	case <-ended:
	case <-time.After(2 * time.Second):
		t.Fatal("moveend did not resolve the move")
	}
}

func TestHub_StopResolvesPending(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)

	ended, err := h.FlyTo(context.Background(), camera.Move{ID: "m1"})
	require.NoError(t, err)
	read(t, conn)

	h.Stop()
	select {
	case <-ended:
	case <-time.After(time.Second):
		t.Fatal("stop did not resolve the move")
	}
	assert.Equal(t, MsgStop, read(t, conn).Type)
}

func TestHub_AbandonedMovesAreDropped(t *testing.T) {
	tests := []struct {
		name     string
		deadline time.Duration // 0 cancels by hand
	}{
		{"caller cancels", 0},
		{"caller deadline", 200 * time.Millisecond},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHub()
			conn := dial(t, h)

			var (
				ctx    context.Context
				cancel context.CancelFunc
			)
			if tt.deadline > 0 {
				ctx, cancel = context.WithTimeout(context.Background(), tt.deadline)
			} else {
				ctx, cancel = context.WithCancel(context.Background())
			}
			defer cancel()

			ended, err := h.FlyTo(ctx, camera.Move{ID: "m1"})
			require.NoError(t, err)
			read(t, conn)
			assert.Equal(t, 1, h.Pending())

			if tt.deadline == 0 {
				cancel()
			}
			require.Eventually(t, func() bool { return h.Pending() == 0 }, time.Second, 5*time.Millisecond)
			select {
			case <-ended:
			default:
				t.Fatal("dropped move left its channel open")
			}

			// A late moveend for the dropped move is ignored.
			require.NoError(t, conn.WriteJSON(Message{Type: MsgMoveEnd, ID: "m1"}))
		})
	}
}

func TestHub_ChoreographerFallbackReleasesMove(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	c := camera.NewChoreographer(h, 10*time.Millisecond)

	done := c.MoveTo(context.Background(), model.CameraTarget{Duration: 10 * time.Millisecond})
	read(t, conn)
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("fallback timer never fired")
	}
	require.Eventually(t, func() bool { return h.Pending() == 0 }, time.Second, 5*time.Millisecond)
}

func TestHub_ProgressReplayedToNewMaps(t *testing.T) {
	h := NewHub()
	h.Publish(tour.New(nil))

	conn := dial(t, h)
	msg := read(t, conn)
	require.Equal(t, MsgProgress, msg.Type)

	var p tour.Progress
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, tour.StateIdle, p.State)

	updates := make(chan *tour.Progress, 1)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx, updates)

	updates <- tour.Start(tour.New(tour.Compile([]model.Location{{ID: "a", Title: "A"}}, "", tour.CompileOptions{})))
	msg = read(t, conn)
	require.NoError(t, json.Unmarshal(msg.Data, &p))
	assert.Equal(t, tour.StatePreparing, p.State)
}

func TestHub_Ping(t *testing.T) {
	h := NewHub()
	conn := dial(t, h)
	require.NoError(t, conn.WriteJSON(Message{Type: MsgPing}))
	assert.Equal(t, MsgPong, read(t, conn).Type)
}
