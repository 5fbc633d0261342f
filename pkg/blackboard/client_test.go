package blackboard

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestClient(t *testing.T) (*Client, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client, mr
}

func eventAt(t EventType, slot int, ts int64) *SeedEvent {
	e := NewSeedEvent(t, slot)
	e.TimestampMs = ts
	return e
}

func TestNewClient(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)

	client, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "line-3")
	require.NoError(t, err)
	assert.Equal(t, "line-3", client.instanceName)
	client.Close()
}

func TestNewClientFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	client, err := NewClientFromURL("redis://"+mr.Addr(), "default")
	require.NoError(t, err)
	defer client.Close()
	assert.NoError(t, client.Ping(context.Background()))

	_, err = NewClientFromURL("not a url", "default")
	assert.Error(t, err)
}

func TestPing(t *testing.T) {
	client, mr := setupTestClient(t)
	assert.NoError(t, client.Ping(context.Background()))

	mr.Close()
	assert.Error(t, client.Ping(context.Background()))
}

func TestRecordSeedEvent(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	e := eventAt(EventTaught, 3, 1000)
	e.X, e.Y, e.Yaw = 1, 2, 0.5
	require.NoError(t, client.RecordSeedEvent(ctx, e))

	members, err := mr.ZMembers(SeedHistoryKey("test-instance"))
	require.NoError(t, err)
	assert.Len(t, members, 1)

	events, err := client.ListSeedEvents(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, e, events[0])
}

func TestRecordSeedEvent_RejectsInvalid(t *testing.T) {
	client, _ := setupTestClient(t)

	e := eventAt(EventTaught, 3, 1000)
	e.ID = "not-a-uuid"
	assert.Error(t, client.RecordSeedEvent(context.Background(), e))
}

func TestRecordSeedEvent_TrimsHistory(t *testing.T) {
	client, mr := setupTestClient(t)
	ctx := context.Background()

	for i := 0; i < HistoryLimit+5; i++ {
		require.NoError(t, client.RecordSeedEvent(ctx, eventAt(EventSeedSet, 0, int64(i+1))))
	}

	members, err := mr.ZMembers(SeedHistoryKey("test-instance"))
	require.NoError(t, err)
	assert.Len(t, members, HistoryLimit)

	events, err := client.ListSeedEvents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, int64(6), events[0].TimestampMs, "oldest entries are dropped first")
}

func TestListSeedEvents_Range(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	for _, ts := range []int64{100, 200, 300, 400} {
		require.NoError(t, client.RecordSeedEvent(ctx, eventAt(EventSeedSet, 1, ts)))
	}

	events, err := client.ListSeedEvents(ctx, 200, 300)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, int64(200), events[0].TimestampMs)
	assert.Equal(t, int64(300), events[1].TimestampMs)

	events, err = client.ListSeedEvents(ctx, 250, 0)
	require.NoError(t, err)
	assert.Len(t, events, 2)
}

func TestCurrentPose(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	_, err := client.GetCurrentPose(ctx)
	assert.True(t, IsNotFound(err))

	want := &CurrentPose{X: 1.25, Y: -3.5, Yaw: 0.1, LocalizationState: 2, UpdatedAtMs: 12345}
	require.NoError(t, client.StoreCurrentPose(ctx, want))

	got, err := client.GetCurrentPose(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestSubscribeSeedEvents(t *testing.T) {
	client, _ := setupTestClient(t)
	ctx := context.Background()

	sub, err := client.SubscribeSeedEvents(ctx)
	require.NoError(t, err)
	defer sub.Close()

	e := eventAt(EventSetFailed, 7, 5000)
	e.Error = "clientLocalizationSetSeed failed (code 3)"
	require.NoError(t, client.RecordSeedEvent(ctx, e))

	select {
	case got := <-sub.Events():
		assert.Equal(t, e, got)
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for seed event")
	}
}

func TestSubscription_CloseIsIdempotent(t *testing.T) {
	client, _ := setupTestClient(t)

	sub, err := client.SubscribeSeedEvents(context.Background())
	require.NoError(t, err)

	assert.NoError(t, sub.Close())
	assert.NoError(t, sub.Close())

	select {
	case _, ok := <-sub.Events():
		assert.False(t, ok, "events channel should be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("events channel was not closed")
	}
}

func TestSubscriptionErrorChannel(t *testing.T) {
	client, mr := setupTestClient(t)

	sub, err := client.SubscribeSeedEvents(context.Background())
	require.NoError(t, err)
	defer sub.Close()

	mr.Publish(SeedEventsChannel("test-instance"), "{not json")

	select {
	case err := <-sub.Errors():
		assert.Contains(t, err.Error(), "failed to unmarshal seed event")
	case <-time.After(2 * time.Second):
		t.Fatal("Timeout waiting for subscription error")
	}
}

func TestInstanceNamespacing(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := NewClient(&redis.Options{Addr: mr.Addr()}, "a")
	require.NoError(t, err)
	defer a.Close()
	b, err := NewClient(&redis.Options{Addr: mr.Addr()}, "b")
	require.NoError(t, err)
	defer b.Close()

	require.NoError(t, a.RecordSeedEvent(ctx, eventAt(EventTaught, 0, 10)))

	events, err := b.ListSeedEvents(ctx, 0, 0)
	require.NoError(t, err)
	assert.Empty(t, events)
}
