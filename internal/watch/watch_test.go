package watch

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/dyluth/locbridge/internal/filter"
	"github.com/dyluth/locbridge/pkg/blackboard"
	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupClient(t *testing.T) *blackboard.Client {
	t.Helper()
	mr := miniredis.RunT(t)
	client, err := blackboard.NewClientFromURL("redis://"+mr.Addr(), "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

func noColor(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

// syncBuffer is a bytes.Buffer safe for one writer and one reader.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func recordAt(t *testing.T, c *blackboard.Client, typ blackboard.EventType, slot int, ts int64) *blackboard.SeedEvent {
	t.Helper()
	e := blackboard.NewSeedEvent(typ, slot)
	e.TimestampMs = ts
	e.X, e.Y, e.Yaw = 1.25, -3.5, 0.125
	require.NoError(t, c.RecordSeedEvent(context.Background(), e))
	return e
}

func TestListEvents_Table(t *testing.T) {
	noColor(t)
	client := setupClient(t)
	recordAt(t, client, blackboard.EventTaught, 3, 1000)
	recordAt(t, client, blackboard.EventSetFailed, 4, 2000)

	var out bytes.Buffer
	err := ListEvents(context.Background(), client, "test-instance", OutputFormatDefault, &filter.Criteria{}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Seed events for instance 'test-instance'")
	assert.Contains(t, text, "taught")
	assert.Contains(t, text, "set_failed")
	assert.Contains(t, text, "2 events found")
}

func TestListEvents_FilteredJSONL(t *testing.T) {
	client := setupClient(t)
	recordAt(t, client, blackboard.EventTaught, 3, 1000)
	want := recordAt(t, client, blackboard.EventSeedSet, 3, 2000)
	recordAt(t, client, blackboard.EventSeedSet, 5, 3000)

	slot := 3
	var out bytes.Buffer
	err := ListEvents(context.Background(), client, "test-instance", OutputFormatJSONL, &filter.Criteria{TypeGlob: "seed_set", Slot: &slot}, &out)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 1)
	var got blackboard.SeedEvent
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	assert.Equal(t, want.ID, got.ID)
}

func TestListEvents_Empty(t *testing.T) {
	client := setupClient(t)
	var out bytes.Buffer
	require.NoError(t, ListEvents(context.Background(), client, "test-instance", OutputFormatDefault, &filter.Criteria{}, &out))
	assert.Equal(t, "No seed events found for instance 'test-instance'\n", out.String())
}

func TestStreamEvents(t *testing.T) {
	noColor(t)
	client := setupClient(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var out, errOut syncBuffer
	done := make(chan error, 1)
	go func() {
		done <- StreamEvents(ctx, client, OutputFormatDefault, &filter.Criteria{FailedOnly: true}, &out, &errOut)
	}()

	// The subscription is confirmed before the banner is printed.
	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Watching seed events")
	}, 2*time.Second, 10*time.Millisecond)

	recordAt(t, client, blackboard.EventTaught, 1, time.Now().UnixMilli())
	rejected := blackboard.NewSeedEvent(blackboard.EventTeachRejected, 2)
	rejected.Error = "pose not localized"
	require.NoError(t, client.RecordSeedEvent(context.Background(), rejected))

	require.Eventually(t, func() bool {
		return strings.Contains(out.String(), "Teach rejected for slot 2: pose not localized")
	}, 2*time.Second, 10*time.Millisecond)
	assert.NotContains(t, out.String(), "Taught slot 1")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("stream did not stop")
	}
}

func TestFormatLine(t *testing.T) {
	noColor(t)

	set := &blackboard.SeedEvent{Type: blackboard.EventSeedSet, Slot: 7, X: 1, Y: 2, Yaw: 0.5, Enforce: true}
	assert.Contains(t, FormatLine(set), "Seed set from slot 7: x=1.000 y=2.000 yaw=0.5000 enforce")

	zero := &blackboard.SeedEvent{Type: blackboard.EventSeedZero, Slot: blackboard.CurrentPoseSlot, X: 4}
	assert.Contains(t, FormatLine(zero), "Current pose: x=4.000")
}

func TestParseOutputFormat(t *testing.T) {
	for in, want := range map[string]OutputFormat{"": OutputFormatDefault, "default": OutputFormatDefault, "json": OutputFormatJSONL, "jsonl": OutputFormatJSONL} {
		got, err := ParseOutputFormat(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseOutputFormat("yaml")
	assert.Error(t, err)
}

func TestFormatDetail(t *testing.T) {
	assert.Equal(t, "-", formatDetail(&blackboard.SeedEvent{Type: blackboard.EventTaught}))
	assert.Equal(t, "enforce uncertain", formatDetail(&blackboard.SeedEvent{Type: blackboard.EventSeedSet, Enforce: true, Uncertain: true}))
	long := strings.Repeat("e", 50)
	assert.Equal(t, strings.Repeat("e", 37)+"...", formatDetail(&blackboard.SeedEvent{Type: blackboard.EventSetFailed, Error: long}))
}
