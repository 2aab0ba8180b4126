package websocket

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meeting-scheduler/backend/internal/calendarsync"
	"github.com/meeting-scheduler/backend/internal/storage/models"
)

func startHub(t *testing.T) (*Hub, context.CancelFunc) {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub, cancel
}

func receive(t *testing.T, c *Client) map[string]any {
	t.Helper()
	select {
	case data, ok := <-c.Send():
		require.True(t, ok, "client channel closed")
		var msg map[string]any
		require.NoError(t, json.Unmarshal(data, &msg))
		return msg
	case <-time.After(time.Second):
		t.Fatal("no message received")
		return nil
	}
}

func TestHub_RegisterBroadcastUnregister(t *testing.T) {
	hub, _ := startHub(t)

	a := NewClient(hub)
	b := NewClient(hub)
	hub.Register(a)
	hub.Register(b)
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, time.Second, 5*time.Millisecond)

	hub.Broadcast([]byte(`{"type":"notification"}`))
	assert.Equal(t, "notification", receive(t, a)["type"])
	assert.Equal(t, "notification", receive(t, b)["type"])

	hub.Unregister(a)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	_, ok := <-a.Send()
	assert.False(t, ok)
	assert.False(t, a.Reply(NewMessage(TypePong, nil)))
}

func TestHub_ShutdownClosesClients(t *testing.T) {
	hub, cancel := startHub(t)

	c := NewClient(hub)
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	cancel()

	select {
	case _, ok := <-c.Send():
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("client not closed on shutdown")
	}
	assert.Zero(t, hub.ClientCount())

	late := NewClient(hub)
	hub.Register(late)
	_, ok := <-late.Send()
	assert.False(t, ok)

	hub.Unregister(late)
}

func TestClient_Reply(t *testing.T) {
	hub, _ := startHub(t)

	c := NewClient(hub)
	assert.False(t, c.Reply(NewMessage(TypePong, nil)), "unregistered client")

	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	require.True(t, c.Reply(NewMessage(TypePong, nil)))
	assert.Equal(t, "pong", receive(t, c)["type"])
}

func TestEventBroadcaster_MeetingSyncResult(t *testing.T) {
	hub, _ := startHub(t)
	c := NewClient(hub)
	hub.Register(c)
	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, time.Second, 5*time.Millisecond)

	b := NewEventBroadcaster(hub)
	remote := "evt-1"
	syncedAt := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	m := &models.Meeting{ID: "m-1", UserID: "u-1", Title: "Kickoff", RemoteEventID: &remote, SyncedAt: &syncedAt}

	b.MeetingSyncResult(m, calendarsync.ActionSync, calendarsync.OutcomeCreated)
	msg := receive(t, c)
	assert.Equal(t, string(TypeMeetingSynced), msg["type"])
	payload := msg["payload"].(map[string]any)
	assert.Equal(t, "m-1", payload["meeting_id"])
	assert.Equal(t, "created", payload["outcome"])
	assert.Equal(t, "evt-1", payload["remote_event_id"])
	assert.Equal(t, "2025-03-10T09:00:00Z", payload["synced_at"])

	b.MeetingSyncResult(m, calendarsync.ActionDelete, calendarsync.OutcomeCleared)
	msg = receive(t, c)
	assert.Equal(t, string(TypeMeetingUnsynced), msg["type"])
	assert.NotContains(t, msg["payload"], "remote_event_id")

	b.MeetingSyncResult(m, calendarsync.ActionDelete, calendarsync.OutcomeFailed)
	msg = receive(t, c)
	assert.Equal(t, string(TypeMeetingSyncFailed), msg["type"])
	assert.Equal(t, "delete", msg["payload"].(map[string]any)["action"])

	b.MeetingSyncResult(m, calendarsync.ActionSync, calendarsync.OutcomeSkipped)
	b.BroadcastNotification("info", "Calendar", "Sync paused")
	msg = receive(t, c)
	assert.Equal(t, string(TypeNotification), msg["type"], "skipped outcomes are not broadcast")
}
