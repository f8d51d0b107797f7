package ws

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/errors"
)

func TestRoomTable_JoinIsIdempotent(t *testing.T) {
	table, reg := newTestTable()
	var changes []Change
	table.OnChange(func(ch Change) { changes = append(changes, ch) })

	c := newTestConn(t, reg)
	ch, joined, err := table.Join(c, "r1", "u1")
	require.NoError(t, err)
	assert.True(t, joined)
	assert.Equal(t, []string{"u1"}, ch.Members)

	_, joined, err = table.Join(c, "r1", "u1")
	require.NoError(t, err)
	assert.False(t, joined)

	assert.Len(t, changes, 1)
	assert.Equal(t, []string{"u1"}, table.MembersOf("r1"))
	assert.Len(t, table.ConnectionsOf("r1"), 1)
}

func TestRoomTable_MembersAreDistinctUsers(t *testing.T) {
	table, reg := newTestTable()
	tab1, tab2, other := newTestConn(t, reg), newTestConn(t, reg), newTestConn(t, reg)

	for _, j := range []struct {
		c    *Conn
		user string
	}{{tab1, "u1"}, {tab2, "u1"}, {other, "u2"}} {
		_, _, err := table.Join(j.c, "r1", j.user)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"u1", "u2"}, table.MembersOf("r1"))

	// 同一用户的另一标签页仍在房间
	ch, left := table.Leave(tab1, "r1")
	require.True(t, left)
	assert.Equal(t, "u1", ch.UserID)
	assert.Equal(t, []string{"u1", "u2"}, ch.Members)
	assert.Equal(t, []string{"u1", "u2"}, table.MembersOf("r1"))

	table.Leave(tab2, "r1")
	assert.Equal(t, []string{"u2"}, table.MembersOf("r1"))
}

func TestRoomTable_LeaveNotJoinedIsNoop(t *testing.T) {
	table, reg := newTestTable()
	emitted := 0
	table.OnChange(func(Change) { emitted++ })

	c := newTestConn(t, reg)
	_, left := table.Leave(c, "nowhere")
	assert.False(t, left)

	other := newTestConn(t, reg)
	_, _, err := table.Join(other, "r1", "u2")
	require.NoError(t, err)
	_, left = table.Leave(c, "r1")
	assert.False(t, left)

	assert.Equal(t, 1, emitted)
}

func TestRoomTable_LastLeaveDeletesRoom(t *testing.T) {
	table, reg := newTestTable()
	c := newTestConn(t, reg)

	_, _, err := table.Join(c, "r1", "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, table.RoomCount())

	ch, left := table.Leave(c, "r1")
	require.True(t, left)
	assert.True(t, ch.RoomDeleted())
	assert.Equal(t, 0, ch.Rooms)
	assert.Equal(t, 0, table.RoomCount())
	assert.Empty(t, table.MembersOf("r1"))
	assert.Nil(t, table.ConnectionsOf("r1"))
	assert.Empty(t, table.RoomsOf(c))
}

func TestRoomTable_RejectsUnregisteredAndDetached(t *testing.T) {
	table, reg := newTestTable()

	stray := newConn("stray", nil, 8, 0)
	_, _, err := table.Join(stray, "r1", "u1")
	assert.True(t, errors.Is(err, ErrNotRegistered))

	c := newTestConn(t, reg)
	reg.Unregister(c)
	_, _, err = table.Join(c, "r1", "u1")
	assert.True(t, errors.Is(err, ErrConnectionClosed))
	assert.Equal(t, 0, table.RoomCount())
}

func TestRoomTable_DetachLeavesEveryRoom(t *testing.T) {
	table, reg := newTestTable()
	c, peer := newTestConn(t, reg), newTestConn(t, reg)

	for _, id := range []string{"r1", "r2", "r3"} {
		_, _, err := table.Join(c, id, "u1")
		require.NoError(t, err)
	}
	_, _, err := table.Join(peer, "r2", "u2")
	require.NoError(t, err)

	changes := table.Detach(c)
	require.Len(t, changes, 3)
	for i, id := range []string{"r1", "r2", "r3"} {
		assert.Equal(t, id, changes[i].RoomID)
		assert.Equal(t, ChangeLeft, changes[i].Kind)
	}
	assert.Equal(t, []string{"u2"}, changes[1].Members)
	assert.Equal(t, 1, table.RoomCount())
	assert.Empty(t, table.RoomsOf(c))
}

func TestRoomTable_MaxRoomSize(t *testing.T) {
	table := NewRoomTable(2)
	reg := NewRegistry(10, table)

	for i := 0; i < 2; i++ {
		_, _, err := table.Join(newTestConn(t, reg), "r1", fmt.Sprintf("u%d", i))
		require.NoError(t, err)
	}
	_, _, err := table.Join(newTestConn(t, reg), "r1", "u9")
	assert.True(t, errors.Is(err, ErrRoomFull))
	assert.Len(t, table.MembersOf("r1"), 2)
}

func TestRoomTable_ConcurrentMembershipStaysConsistent(t *testing.T) {
	table, reg := newTestTable()

	var mu sync.Mutex
	last := make(map[string][]string)
	table.OnChange(func(ch Change) {
		mu.Lock()
		last[ch.RoomID] = ch.Members
		mu.Unlock()
	})

	conns := make([]*Conn, 40)
	for i := range conns {
		conns[i] = newTestConn(t, reg)
	}

	var wg sync.WaitGroup
	for i, c := range conns {
		wg.Add(1)
		go func(i int, c *Conn) {
			defer wg.Done()
			room := fmt.Sprintf("r%d", i%3)
			user := fmt.Sprintf("u%d", i%7)
			for n := 0; n < 50; n++ {
				_, _, _ = table.Join(c, room, user)
				if n%2 == 0 {
					table.Leave(c, room)
				}
			}
		}(i, c)
	}
	wg.Wait()

	for _, room := range []string{"r0", "r1", "r2"} {
		want := map[string]struct{}{}
		for _, c := range table.ConnectionsOf(room) {
			want[table.userOf(c, room)] = struct{}{}
		}
		got := table.MembersOf(room)
		assert.Len(t, got, len(want))
		for _, u := range got {
			assert.Contains(t, want, u)
		}
		// 最后一次通知的成员列表与当前状态一致
		mu.Lock()
		assert.Equal(t, got, last[room])
		mu.Unlock()
	}
}
