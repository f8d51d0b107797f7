package ws

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/protocol"
)

func newDispatchServer(t *testing.T, opts ...Option) *Server {
	t.Helper()
	relay, err := NewServer(opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = relay.Shutdown(context.Background()) })

	var seq int
	relay.handler.newID = func() string {
		seq++
		return fmt.Sprintf("msg-%d", seq)
	}
	relay.handler.now = func() time.Time {
		return time.Date(2026, 1, 2, 3, 4, 5, 6e6, time.UTC)
	}
	return relay
}

func TestHandler_Dispatch(t *testing.T) {
	relay := newDispatchServer(t)
	ctx := context.Background()
	a, b := newTestConn(t, relay.registry), newTestConn(t, relay.registry)

	require.NoError(t, relay.handler.Dispatch(ctx, a, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u1"}`)))
	require.NoError(t, relay.handler.Dispatch(ctx, b, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u2"}`)))
	// 重复加入为空操作
	require.NoError(t, relay.handler.Dispatch(ctx, b, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u2"}`)))
	drain(t, a)
	drain(t, b)

	require.NoError(t, relay.handler.Dispatch(ctx, a, []byte(`{"type":"CHAT_MESSAGE","roomId":"r1","userId":"u1","userName":"Ann","content":"hi"}`)))
	want := protocol.ChatMessage{
		ID:        "msg-1",
		RoomID:    "r1",
		UserID:    "u1",
		UserName:  "Ann",
		Content:   "hi",
		Timestamp: "2026-01-02T03:04:05.006Z",
	}
	assert.Equal(t, []protocol.Outbound{want}, drain(t, a))
	assert.Equal(t, []protocol.Outbound{want}, drain(t, b))

	require.NoError(t, relay.handler.Dispatch(ctx, b, []byte(`{"type":"LEAVE_ROOM","roomId":"r1"}`)))
	assert.Equal(t, []string{"u1"}, relay.Members("r1"))
}

func TestHandler_DispatchErrors(t *testing.T) {
	relay := newDispatchServer(t)
	ctx := context.Background()
	c := newTestConn(t, relay.registry)

	tests := []struct {
		name string
		raw  string
		want *errors.Error
	}{
		{"malformed", `{"type":`, ErrProtocol},
		{"invalid", `{"type":"CHAT_MESSAGE","roomId":"r1","userId":"u1"}`, protocol.ErrInvalidFrame},
		{"unknown", `{"type":"PING"}`, protocol.ErrUnknownType},
		{"leave not joined", `{"type":"LEAVE_ROOM","roomId":"r1"}`, ErrMembership},
		{"chat not joined", `{"type":"CHAT_MESSAGE","roomId":"r1","userId":"u1","content":"x"}`, ErrMembership},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := relay.handler.Dispatch(ctx, c, []byte(tt.raw))
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}

	assert.True(t, isProtocolError(ErrProtocol))
	assert.True(t, isProtocolError(fmt.Errorf("decode: %w", protocol.ErrMalformed)))
	assert.True(t, isProtocolError(protocol.ErrInvalidFrame))
	assert.False(t, isProtocolError(protocol.ErrUnknownType))
	assert.False(t, isProtocolError(ErrMembership))
}

func TestHandler_EchoDisabled(t *testing.T) {
	relay := newDispatchServer(t, WithEchoToSender(false))
	ctx := context.Background()
	a, b := newTestConn(t, relay.registry), newTestConn(t, relay.registry)

	require.NoError(t, relay.handler.Dispatch(ctx, a, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u1"}`)))
	require.NoError(t, relay.handler.Dispatch(ctx, b, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u2"}`)))
	drain(t, a)
	drain(t, b)

	require.NoError(t, relay.handler.Dispatch(ctx, a, []byte(`{"type":"CHAT_MESSAGE","roomId":"r1","userId":"u1","content":"hi"}`)))
	assert.Empty(t, drain(t, a))
	assert.Len(t, drain(t, b), 1)
}

func TestHandler_PublishesEvents(t *testing.T) {
	relay := newDispatchServer(t)
	ctx := context.Background()

	var mu sync.Mutex
	seen := map[EventType]int{}
	for _, typ := range []EventType{EventRoomJoined, EventRoomLeft, EventChatMessage} {
		relay.Subscribe(typ, func(e Event) {
			mu.Lock()
			seen[e.Type]++
			mu.Unlock()
		})
	}

	c := newTestConn(t, relay.registry)
	require.NoError(t, relay.handler.Dispatch(ctx, c, []byte(`{"type":"JOIN_ROOM","roomId":"r1","userId":"u1"}`)))
	require.NoError(t, relay.handler.Dispatch(ctx, c, []byte(`{"type":"CHAT_MESSAGE","roomId":"r1","userId":"u1","content":"hi"}`)))
	require.NoError(t, relay.handler.Dispatch(ctx, c, []byte(`{"type":"LEAVE_ROOM","roomId":"r1"}`)))

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return seen[EventRoomJoined] == 1 && seen[EventChatMessage] == 1 && seen[EventRoomLeft] == 1
	}, time.Second, 10*time.Millisecond)
}
