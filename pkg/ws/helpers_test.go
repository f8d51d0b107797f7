package ws

import (
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/protocol"
)

var testConnSeq atomic.Int64

// newTestConn 创建不带底层连接的已注册连接
func newTestConn(t *testing.T, r *Registry) *Conn {
	t.Helper()
	c := newConn(fmt.Sprintf("conn-%d", testConnSeq.Add(1)), nil, 64, time.Second)
	require.NoError(t, r.Register(c))
	return c
}

// drain 取出连接发送队列中已入队的全部帧
func drain(t *testing.T, c *Conn) []protocol.Outbound {
	t.Helper()
	var frames []protocol.Outbound
	for {
		select {
		case data := <-c.send:
			f, err := protocol.DecodeOutbound(data)
			require.NoError(t, err)
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func newTestTable() (*RoomTable, *Registry) {
	table := NewRoomTable(0)
	return table, NewRegistry(100, table)
}

func (t *RoomTable) userOf(c *Conn, roomID string) string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return c.rooms[roomID]
}
