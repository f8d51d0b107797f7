package ws

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
)

func TestRegistry_RegisterLimit(t *testing.T) {
	table := NewRoomTable(0)
	reg := NewRegistry(2, table)

	a, b := newTestConn(t, reg), newTestConn(t, reg)
	assert.Equal(t, 2, reg.Count())
	assert.True(t, reg.IsAlive(a))

	err := reg.Register(newConn("overflow", nil, 8, time.Second))
	assert.True(t, errors.Is(err, ErrTooManyConnections))
	assert.Equal(t, 2, reg.Count())
	_, ok := reg.Get("overflow")
	assert.False(t, ok)

	err = reg.Register(a)
	assert.Error(t, err, "duplicate id")

	reg.Unregister(b)
	require.NoError(t, reg.Register(newConn("next", nil, 8, time.Second)))
}

func TestRegistry_UnregisterIsIdempotent(t *testing.T) {
	table, reg := newTestTable()
	NewBroadcaster(table, nil, logger.Nop(), true)
	calls := 0
	reg.OnUnregister(func(*Conn, []Change) { calls++ })

	c, peer := newTestConn(t, reg), newTestConn(t, reg)
	_, _, err := table.Join(c, "r1", "u1")
	require.NoError(t, err)
	_, _, err = table.Join(peer, "r1", "u2")
	require.NoError(t, err)
	drain(t, peer)

	var wg sync.WaitGroup
	results := make([][]Change, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = reg.Unregister(c)
		}(i)
	}
	wg.Wait()

	cleaned := 0
	for _, r := range results {
		if r != nil {
			cleaned++
			assert.Len(t, r, 1)
		}
	}
	assert.Equal(t, 1, cleaned)
	assert.Equal(t, 1, calls)

	// 只收到一次离开通知
	assert.Equal(t, []protocol.Outbound{
		protocol.UserLeft{RoomID: "r1", UserID: "u1"},
		protocol.RoomMembersUpdate{RoomID: "r1", Members: []string{"u2"}},
	}, drain(t, peer))

	_, ok := reg.Get(c.ID())
	assert.False(t, ok)
	assert.Equal(t, 1, reg.Count())
	assert.True(t, errors.Is(c.Send([]byte("x")), ErrConnectionClosed))

	select {
	case <-c.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestRegistry_MarkAlive(t *testing.T) {
	_, reg := newTestTable()
	c := newTestConn(t, reg)

	c.alive.Store(false)
	assert.False(t, reg.IsAlive(c))
	reg.MarkAlive(c)
	assert.True(t, reg.IsAlive(c))
	assert.Len(t, reg.Snapshot(), 1)
}
