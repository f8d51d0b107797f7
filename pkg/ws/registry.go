package ws

import (
	"sync"
	"sync/atomic"
)

// Registry 连接注册表，持有每条连接的存活标记
type Registry struct {
	conns    sync.Map // connID -> *Conn
	count    atomic.Int64
	maxConns int
	table    *RoomTable

	onUnregister []func(c *Conn, changes []Change)
}

// NewRegistry 创建注册表
func NewRegistry(maxConns int, table *RoomTable) *Registry {
	return &Registry{maxConns: maxConns, table: table}
}

// OnUnregister 注册注销回调，须在开始服务前调用
func (r *Registry) OnUnregister(fn func(c *Conn, changes []Change)) {
	r.onUnregister = append(r.onUnregister, fn)
}

// Register 注册连接
func (r *Registry) Register(c *Conn) error {
	if c.unregistered.Load() {
		return ErrConnectionClosed
	}
	if _, loaded := r.conns.LoadOrStore(c.id, c); loaded {
		return ErrConnectionClosed.WithMessage("ws: duplicate connection id " + c.id)
	}

	if int(r.count.Add(1)) > r.maxConns {
		r.count.Add(-1)
		r.conns.Delete(c.id)
		return ErrTooManyConnections
	}

	c.alive.Store(true)
	c.registered.Store(true)
	return nil
}

// Unregister 注销连接，幂等
// 返回前该连接已从所有房间移除，离开通知已入队
func (r *Registry) Unregister(c *Conn) []Change {
	if !c.registered.Load() || !c.unregistered.CompareAndSwap(false, true) {
		return nil
	}

	changes := r.table.Detach(c)
	r.conns.Delete(c.id)
	r.count.Add(-1)
	c.release()

	for _, fn := range r.onUnregister {
		fn(c, changes)
	}
	return changes
}

// MarkAlive 标记连接存活
func (r *Registry) MarkAlive(c *Conn) {
	c.alive.Store(true)
}

// IsAlive 连接自上次探测后是否有响应
func (r *Registry) IsAlive(c *Conn) bool {
	return c.alive.Load()
}

// Get 获取连接
func (r *Registry) Get(id string) (*Conn, bool) {
	value, ok := r.conns.Load(id)
	if !ok {
		return nil, false
	}
	c, ok := value.(*Conn)
	return c, ok
}

// Count 当前连接数
func (r *Registry) Count() int {
	return int(r.count.Load())
}

// Range 遍历所有连接
func (r *Registry) Range(f func(*Conn) bool) {
	r.conns.Range(func(_, value any) bool {
		c, ok := value.(*Conn)
		if !ok {
			return true
		}
		return f(c)
	})
}

// Snapshot 连接快照
func (r *Registry) Snapshot() []*Conn {
	conns := make([]*Conn, 0, max(r.Count(), 0))
	r.Range(func(c *Conn) bool {
		conns = append(conns, c)
		return true
	})
	return conns
}
