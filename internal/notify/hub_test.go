package notify

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	ws "github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"calrecur/internal/model"
)

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	a := NewClient(hub, nil)
	b := NewClient(hub, nil)
	hub.Register(a)
	hub.Register(b)
	assert.Equal(t, 2, hub.ClientCount())

	hub.Broadcast(RefreshMessage(model.Run{ID: "r1", Calendars: 1, Events: 3}))

	for _, c := range []*Client{a, b} {
		select {
		case data := <-c.send:
			var msg Message
			require.NoError(t, json.Unmarshal(data, &msg))
			assert.Equal(t, "refresh_done", msg.Type)
			require.NotNil(t, msg.Run)
			assert.Equal(t, "r1", msg.Run.ID)
		default:
			t.Fatal("client did not receive broadcast")
		}
	}

	hub.Unregister(a)
	hub.Unregister(a)
	assert.Equal(t, 1, hub.ClientCount())
	_, open := <-a.send
	assert.False(t, open)
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	hub := NewHub()
	c := NewClient(hub, nil)
	hub.Register(c)

	for range sendBufferSize + 5 {
		hub.Broadcast(Message{Type: "ping"})
	}
	assert.Len(t, c.send, sendBufferSize)
}

func TestRefreshMessageType(t *testing.T) {
	assert.Equal(t, "refresh_done", RefreshMessage(model.Run{ID: "ok"}).Type)
	assert.Equal(t, "refresh_failed", RefreshMessage(model.Run{ID: "bad", Err: "boom"}).Type)
}

func TestHandlerDeliversBroadcast(t *testing.T) {
	hub := NewHub()
	srv := httptest.NewServer(Handler(hub))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := ws.Dial(ctx, srv.URL, nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)
	hub.Broadcast(RefreshMessage(model.Run{ID: "r2", Err: "no calendar could be loaded"}))

	typ, data, err := conn.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, ws.MessageText, typ)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))
	assert.Equal(t, "refresh_failed", msg.Type)
	assert.Equal(t, "r2", msg.Run.ID)

	_ = conn.Close(ws.StatusNormalClosure, "")
	require.Eventually(t, func() bool { return hub.ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}
