package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/orm"
	"gorm.io/gorm"
)

func setupDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := orm.DefaultConfig()
	cfg.Type = orm.SQLite
	cfg.DSN = filepath.Join(t.TempDir(), "store.db")
	cfg.MaxOpenConns = 1
	db, err := orm.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })
	require.NoError(t, Migrate(db))
	return db
}

// fixture 三个用户，alice 创建的 general 房间包含 alice 和 bob
func fixture(t *testing.T) (*Repository, *Room) {
	t.Helper()
	repo := NewRepository(setupDB(t))
	ctx := context.Background()
	for _, u := range []User{{ID: "alice", Name: "Alice"}, {ID: "bob", Name: "Bob"}, {ID: "carol", Name: "Carol"}} {
		require.NoError(t, repo.CreateUser(ctx, &u))
	}
	room, err := repo.CreateRoom(ctx, &Room{Name: "general", CreatedBy: "alice"}, []string{"bob"})
	require.NoError(t, err)
	return repo, room
}

func memberIDs(room *Room) []string {
	ids := make([]string, 0, len(room.Members))
	for _, m := range room.Members {
		ids = append(ids, m.ID)
	}
	return ids
}

func TestCreateRoom_CreatorIsMember(t *testing.T) {
	repo, room := fixture(t)
	assert.NotEmpty(t, room.ID)
	assert.ElementsMatch(t, []string{"alice", "bob"}, memberIDs(room))

	room, err := repo.CreateRoom(context.Background(), &Room{Name: "solo", CreatedBy: "carol"}, []string{"carol", "carol"})
	require.NoError(t, err)
	assert.Equal(t, []string{"carol"}, memberIDs(room))
}

func TestCreateRoom_Errors(t *testing.T) {
	repo, _ := fixture(t)
	ctx := context.Background()

	_, err := repo.CreateRoom(ctx, &Room{Name: "", CreatedBy: "alice"}, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = repo.CreateRoom(ctx, &Room{Name: "x", CreatedBy: "alice"}, []string{"ghost"})
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRoomsOf(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()

	rooms, err := repo.RoomsOf(ctx, "bob")
	require.NoError(t, err)
	require.Len(t, rooms, 1)
	assert.Equal(t, room.ID, rooms[0].ID)

	rooms, err = repo.RoomsOf(ctx, "carol")
	require.NoError(t, err)
	assert.Empty(t, rooms)
	assert.NotNil(t, rooms)
}

func TestUpdateRoom(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	name := "random"

	updated, err := repo.UpdateRoom(ctx, room.ID, RoomUpdate{Name: &name, MemberIDs: []string{"carol"}})
	require.NoError(t, err)
	assert.Equal(t, "random", updated.Name)
	assert.ElementsMatch(t, []string{"alice", "carol"}, memberIDs(updated))

	_, err = repo.UpdateRoom(ctx, "missing", RoomUpdate{Name: &name})
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestMembers_AddRemove(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()

	updated, err := repo.AddMembers(ctx, room.ID, []string{"carol", "bob"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob", "carol"}, memberIDs(updated))

	updated, err = repo.RemoveMember(ctx, room.ID, "bob")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "carol"}, memberIDs(updated))

	_, err = repo.RemoveMember(ctx, room.ID, "alice")
	assert.ErrorIs(t, err, ErrRemoveCreator)
	assert.Equal(t, 400, ErrRemoveCreator.HttpCode)

	_, err = repo.AddMembers(ctx, room.ID, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	users, err := repo.Members(ctx, room.ID)
	require.NoError(t, err)
	assert.Len(t, users, 2)
}

func TestCreateMessage(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()

	msg, err := repo.CreateMessage(ctx, "hello", "bob", room.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	require.NotNil(t, msg.User)
	assert.Equal(t, "Bob", msg.User.Name)

	_, err = repo.CreateMessage(ctx, "hi", "carol", room.ID)
	assert.ErrorIs(t, err, ErrNotMember)
	assert.Equal(t, 403, errorHTTP(err))

	_, err = repo.CreateMessage(ctx, "hi", "bob", "missing")
	assert.ErrorIs(t, err, ErrRoomNotFound)

	_, err = repo.CreateMessage(ctx, "", "bob", room.ID)
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func errorHTTP(err error) int {
	var e *errors.Error
	if errors.As(err, &e) {
		return e.HttpCode
	}
	return 0
}

func TestUpdateDeleteMessage(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	msg, err := repo.CreateMessage(ctx, "hello", "alice", room.ID)
	require.NoError(t, err)

	updated, err := repo.UpdateMessage(ctx, msg.ID, "edited")
	require.NoError(t, err)
	assert.Equal(t, "edited", updated.Content)

	_, err = repo.UpdateMessage(ctx, "missing", "x")
	assert.ErrorIs(t, err, ErrMessageNotFound)

	deleted, err := repo.DeleteMessage(ctx, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, msg.ID, deleted.ID)

	_, err = repo.GetMessage(ctx, msg.ID)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

// insertMessages 直接写入 n 条时间递增的消息，返回按时间倒序的 ID
func insertMessages(t *testing.T, db *gorm.DB, roomID string, n int) []string {
	t.Helper()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ids := make([]string, n)
	for i := range n {
		id := fmt.Sprintf("m%03d", i)
		ts := base.Add(time.Duration(i) * time.Second)
		require.NoError(t, db.Create(&Message{ID: id, Content: id, UserID: "alice", RoomID: roomID, CreatedAt: ts, UpdatedAt: ts}).Error)
		ids[n-1-i] = id
	}
	return ids
}

func TestListMessages_CursorPagination(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	want := insertMessages(t, repo.db, room.ID, 7)

	var got []string
	cursor := ""
	for {
		page, err := repo.ListMessages(ctx, room.ID, 3, cursor)
		require.NoError(t, err)
		for _, m := range page.Messages {
			got = append(got, m.ID)
		}
		if page.NextCursor == "" {
			break
		}
		cursor = page.NextCursor
	}
	assert.Equal(t, want, got)

	_, err := repo.ListMessages(ctx, room.ID, 3, "nope")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestListMessages_Limits(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	insertMessages(t, repo.db, room.ID, 120)

	page, err := repo.ListMessages(ctx, room.ID, 0, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, DefaultPageSize)
	assert.NotEmpty(t, page.NextCursor)

	page, err = repo.ListMessages(ctx, room.ID, 500, "")
	require.NoError(t, err)
	assert.Len(t, page.Messages, MaxPageSize)

	page, err = repo.ListMessages(ctx, "empty-room", 10, "")
	require.NoError(t, err)
	assert.Empty(t, page.Messages)
	assert.Empty(t, page.NextCursor)
}

func TestRecent(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	other, err := repo.CreateRoom(ctx, &Room{Name: "other", CreatedBy: "bob"}, nil)
	require.NoError(t, err)
	_, err = repo.CreateRoom(ctx, &Room{Name: "quiet", CreatedBy: "bob"}, nil)
	require.NoError(t, err)

	insertMessages(t, repo.db, room.ID, 3)
	late := time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.db.Create(&Message{ID: "late", Content: "x", UserID: "bob", RoomID: other.ID, CreatedAt: late, UpdatedAt: late}).Error)

	msgs, err := repo.Recent(ctx, "bob", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "late", msgs[0].ID)
	assert.Equal(t, "m002", msgs[1].ID)
	require.NotNil(t, msgs[0].Room)
	assert.Equal(t, "other", msgs[0].Room.Name)

	msgs, err = repo.Recent(ctx, "bob", 1)
	require.NoError(t, err)
	assert.Len(t, msgs, 1)

	_, err = repo.Recent(ctx, "ghost", 0)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestDeleteRoom_RemovesMessages(t *testing.T) {
	repo, room := fixture(t)
	ctx := context.Background()
	insertMessages(t, repo.db, room.ID, 2)

	deleted, err := repo.DeleteRoom(ctx, room.ID)
	require.NoError(t, err)
	assert.Equal(t, room.ID, deleted.ID)

	var count int64
	require.NoError(t, repo.db.Model(&Message{}).Where("room_id = ?", room.ID).Count(&count).Error)
	assert.Zero(t, count)
	require.NoError(t, repo.db.Model(&RoomMember{}).Where("room_id = ?", room.ID).Count(&count).Error)
	assert.Zero(t, count)

	_, err = repo.GetRoom(ctx, room.ID)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, 50, ClampLimit(0, 50, 100))
	assert.Equal(t, 50, ClampLimit(-3, 50, 100))
	assert.Equal(t, 7, ClampLimit(7, 50, 100))
	assert.Equal(t, 100, ClampLimit(1000, 50, 100))
}
