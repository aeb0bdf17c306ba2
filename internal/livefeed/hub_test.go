package livefeed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"grievance/backend/internal/models"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub(nil)
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	return hub, cancel
}

func receive(t *testing.T, c *Client) (models.FeedEvent, bool) {
	t.Helper()
	select {
	case ev, ok := <-c.send:
		return ev, ok
	case <-time.After(time.Second):
		return models.FeedEvent{}, false
	}
}

func TestHub_DepartmentFiltering(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, cancel := startHub(t)
	roads := NewClient(hub, nil, models.DeptRoads)
	everyone := NewClient(hub, nil, "")
	require.NoError(t, hub.Register(roads))
	require.NoError(t, hub.Register(everyone))

	water := models.FeedEvent{Type: models.EventGrievanceCreated, GrievanceID: "GRV-W", Department: models.DeptWater}
	road := models.FeedEvent{Type: models.EventGrievanceCreated, GrievanceID: "GRV-R", Department: models.DeptRoads}
	require.NoError(t, hub.Publish(context.Background(), water))
	require.NoError(t, hub.Publish(context.Background(), road))

	ev, ok := receive(t, roads)
	require.True(t, ok)
	assert.Equal(t, "GRV-R", ev.GrievanceID, "department admins only see their own department")

	ev, ok = receive(t, everyone)
	require.True(t, ok)
	assert.Equal(t, "GRV-W", ev.GrievanceID)
	ev, ok = receive(t, everyone)
	require.True(t, ok)
	assert.Equal(t, "GRV-R", ev.GrievanceID)

	cancel()
	<-hub.done

	_, ok = <-roads.send
	assert.False(t, ok, "send channel is closed on shutdown")
	assert.ErrorIs(t, hub.Register(NewClient(hub, nil, "")), ErrHubStopped)
	assert.ErrorIs(t, hub.Publish(context.Background(), road), ErrHubStopped)
	hub.Unregister(roads) // must not block
}

func TestHub_UnregisterClosesSend(t *testing.T) {
	defer goleak.VerifyNone(t)

	hub, cancel := startHub(t)
	defer cancel()

	c := NewClient(hub, nil, "")
	require.NoError(t, hub.Register(c))
	hub.Unregister(c)

	_, ok := receive(t, c)
	assert.False(t, ok)

	// A second unregister of the same client is a no-op
	hub.Unregister(c)
}

func TestClient_WebSocketDelivery(t *testing.T) {
	hub, cancel := startHub(t)
	defer cancel()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		c := NewClient(hub, conn, models.DeptRoads)
		if err := hub.Register(c); err != nil {
			conn.Close()
			return
		}
		c.Run()
	}))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	ev := models.FeedEvent{
		Type:        models.EventGrievanceStatusChanged,
		GrievanceID: "GRV-20240101-00000001",
		Department:  models.DeptRoads,
		OldStatus:   models.StatusPending,
		NewStatus:   models.StatusInProcess,
		At:          time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC),
	}

	// Реєстрація асинхронна: повторюємо публікацію, доки повідомлення не прийде
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	received := make(chan []byte, 1)
	go func() {
		_, data, err := conn.ReadMessage()
		if err == nil {
			received <- data
		}
		close(received)
	}()

	var data []byte
	deadline := time.After(2 * time.Second)
loop:
	for {
		require.NoError(t, hub.Publish(context.Background(), ev))
		select {
		case data = <-received:
			break loop
		case <-deadline:
			break loop
		case <-time.After(50 * time.Millisecond):
		}
	}
	require.NotNil(t, data, "no event received over the socket")

	var got models.FeedEvent
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, ev, got)
}
