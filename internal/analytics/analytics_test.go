package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySink struct {
	events []Event
	err    error
}

func (m *memorySink) Write(_ context.Context, ev Event) error {
	m.events = append(m.events, ev)
	return m.err
}

func TestFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/tasks", nil)
	r.Header.Set("X-Platform", "iOS")
	r.Header.Set("X-App-Version", " 1.2.0 ")
	r.Header.Set("X-Session-Id", "sess")
	r.Header.Set("Accept-Language", "en-US")

	env := FromRequest(r)
	assert.Equal(t, Envelope{SessionID: "sess", Platform: "ios", AppVersion: "1.2.0", DeviceLocale: "en-US"}, env)

	r = httptest.NewRequest("POST", "/tasks", nil)
	r.Header.Set("X-Platform", "toaster")
	assert.Equal(t, "unknown", FromRequest(r).Platform)
}

func TestLog_UsesContextUser(t *testing.T) {
	sink := &memorySink{}
	ctx := WithUserID(context.Background(), "alice")

	require.NoError(t, Log(ctx, sink, Envelope{Platform: "web"}, "task_created", map[string]any{"task_id": "m1"}, "key-1"))

	require.Len(t, sink.events, 1)
	ev := sink.events[0]
	assert.Equal(t, "task_created", ev.Name)
	assert.Equal(t, "alice", ev.Envelope.UserID)
	assert.Equal(t, "key-1", ev.SourceEventKey)
	assert.False(t, ev.Time.IsZero())

	var props map[string]any
	require.NoError(t, json.Unmarshal(ev.Properties, &props))
	assert.Equal(t, "m1", props["task_id"])
}

func TestLog_NeverFails(t *testing.T) {
	sink := &memorySink{err: errors.New("db down")}

	assert.NoError(t, Log(context.Background(), sink, Envelope{UserID: "u"}, "x", nil, ""))
	assert.NoError(t, Log(context.Background(), nil, Envelope{UserID: "u"}, "x", nil, ""))

	// No user anywhere: dropped.
	assert.NoError(t, Log(context.Background(), sink, Envelope{}, "x", nil, ""))
	assert.Len(t, sink.events, 1)

	// Unmarshalable props: dropped.
	assert.NoError(t, Log(context.Background(), sink, Envelope{UserID: "u"}, "x", map[string]any{"ch": make(chan int)}, ""))
	assert.Len(t, sink.events, 1)
}

func TestSourceEventKeyFromRequest(t *testing.T) {
	r := httptest.NewRequest("POST", "/", nil)
	assert.Empty(t, SourceEventKeyFromRequest(r))

	r.Header.Set("X-Source-Event-Key", "b")
	assert.Equal(t, "b", SourceEventKeyFromRequest(r))

	r.Header.Set("Idempotency-Key", "a")
	assert.Equal(t, "a", SourceEventKeyFromRequest(r))
}
