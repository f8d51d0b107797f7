package ws

import (
	"slices"
	"sync"
)

// ChangeKind 成员变更类型
type ChangeKind int

const (
	// ChangeJoined 连接加入房间
	ChangeJoined ChangeKind = iota + 1
	// ChangeLeft 连接离开房间
	ChangeLeft
)

func (k ChangeKind) String() string {
	switch k {
	case ChangeJoined:
		return "joined"
	case ChangeLeft:
		return "left"
	}
	return "unknown"
}

// Change 一次成员变更及变更后的房间快照
type Change struct {
	Kind   ChangeKind
	RoomID string
	UserID string
	Conn   *Conn

	// Members 变更后去重的在线用户列表
	Members []string
	// Recipients 变更后房间内的全部连接
	Recipients []*Conn
	// Rooms 变更后的房间总数
	Rooms int
}

// RoomDeleted 最后一个成员离开导致房间被删除
func (c Change) RoomDeleted() bool {
	return c.Kind == ChangeLeft && len(c.Recipients) == 0
}

type room struct {
	id      string
	members map[*Conn]string // conn -> userID
}

// users 去重后的在线用户，按字典序
func (r *room) users() []string {
	seen := make(map[string]struct{}, len(r.members))
	users := make([]string, 0, len(r.members))
	for _, uid := range r.members {
		if _, ok := seen[uid]; ok {
			continue
		}
		seen[uid] = struct{}{}
		users = append(users, uid)
	}
	slices.Sort(users)
	return users
}

func (r *room) conns() []*Conn {
	conns := make([]*Conn, 0, len(r.members))
	for c := range r.members {
		conns = append(conns, c)
	}
	return conns
}

// RoomTable 房间表
//
// 所有成员变更、房间创建删除以及随后的成员列表推导都在同一把锁内完成，
// 变更回调也在锁内执行，因此同一房间的通知按变更顺序入队。
// 回调只能做非阻塞操作，且不能回调 RoomTable。
type RoomTable struct {
	mu          sync.RWMutex
	rooms       map[string]*room
	maxRoomSize int
	sinks       []func(Change)
}

// NewRoomTable 创建房间表，maxRoomSize 为 0 表示不限
func NewRoomTable(maxRoomSize int) *RoomTable {
	return &RoomTable{
		rooms:       make(map[string]*room),
		maxRoomSize: maxRoomSize,
	}
}

// OnChange 注册变更回调，须在开始服务前调用
func (t *RoomTable) OnChange(fn func(Change)) {
	t.sinks = append(t.sinks, fn)
}

// Join 加入房间
// 同一连接重复加入同一房间为空操作，joined 返回 false
func (t *RoomTable) Join(c *Conn, roomID, userID string) (ch Change, joined bool, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !c.registered.Load() {
		return Change{}, false, ErrNotRegistered
	}
	if c.detached {
		return Change{}, false, ErrConnectionClosed
	}
	if _, ok := c.rooms[roomID]; ok {
		return Change{}, false, nil
	}

	r, ok := t.rooms[roomID]
	if !ok {
		r = &room{id: roomID, members: make(map[*Conn]string)}
	} else if t.maxRoomSize > 0 && len(r.members) >= t.maxRoomSize {
		return Change{}, false, ErrRoomFull
	}
	t.rooms[roomID] = r
	r.members[c] = userID
	c.rooms[roomID] = userID

	ch = Change{
		Kind:       ChangeJoined,
		RoomID:     roomID,
		UserID:     userID,
		Conn:       c,
		Members:    r.users(),
		Recipients: r.conns(),
		Rooms:      len(t.rooms),
	}
	t.emit(ch)
	return ch, true, nil
}

// Leave 离开房间，非成员时为空操作
func (t *RoomTable) Leave(c *Conn, roomID string) (Change, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.leaveLocked(c, roomID)
}

// Detach 将连接移出所有房间并拒绝其后续加入
func (t *RoomTable) Detach(c *Conn) []Change {
	t.mu.Lock()
	defer t.mu.Unlock()

	c.detached = true
	roomIDs := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		roomIDs = append(roomIDs, id)
	}
	slices.Sort(roomIDs)

	changes := make([]Change, 0, len(roomIDs))
	for _, id := range roomIDs {
		if ch, ok := t.leaveLocked(c, id); ok {
			changes = append(changes, ch)
		}
	}
	return changes
}

func (t *RoomTable) leaveLocked(c *Conn, roomID string) (Change, bool) {
	userID, ok := c.rooms[roomID]
	if !ok {
		return Change{}, false
	}
	delete(c.rooms, roomID)

	ch := Change{Kind: ChangeLeft, RoomID: roomID, UserID: userID, Conn: c}
	if r, ok := t.rooms[roomID]; ok {
		delete(r.members, c)
		if len(r.members) == 0 {
			delete(t.rooms, roomID)
		} else {
			ch.Members = r.users()
			ch.Recipients = r.conns()
		}
	}
	ch.Rooms = len(t.rooms)
	t.emit(ch)
	return ch, true
}

func (t *RoomTable) emit(ch Change) {
	for _, fn := range t.sinks {
		fn(ch)
	}
}

// MembersOf 房间内去重后的在线用户，房间不存在时返回空
func (t *RoomTable) MembersOf(roomID string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rooms[roomID]
	if !ok {
		return []string{}
	}
	return r.users()
}

// ConnectionsOf 房间内的全部连接
func (t *RoomTable) ConnectionsOf(roomID string) []*Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rooms[roomID]
	if !ok {
		return nil
	}
	return r.conns()
}

// RoomsOf 连接当前所在的房间
func (t *RoomTable) RoomsOf(c *Conn) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()

	rooms := make([]string, 0, len(c.rooms))
	for id := range c.rooms {
		rooms = append(rooms, id)
	}
	slices.Sort(rooms)
	return rooms
}

// IsMember 连接是否在房间内
func (t *RoomTable) IsMember(c *Conn, roomID string) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := c.rooms[roomID]
	return ok
}

// RoomCount 房间数量
func (t *RoomTable) RoomCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rooms)
}

// withRoom 在读锁内访问房间连接
func (t *RoomTable) withRoom(roomID string, fn func(r *room)) bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	r, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	fn(r)
	return true
}
