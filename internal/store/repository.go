package store

import (
	"context"
	stderrors "errors"
	"slices"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPageSize   = 50
	MaxPageSize       = 100
	DefaultRecentSize = 20
)

// MessagePage 一页消息，NextCursor 为空表示没有更早的消息
type MessagePage struct {
	Messages   []Message `json:"messages"`
	NextCursor string    `json:"nextCursor"`
}

// RoomUpdate 房间的部分更新，nil 字段保持不变
type RoomUpdate struct {
	Name        *string
	Description *string
	MemberIDs   []string // 非 nil 时整体替换成员，创建者始终保留
}

// Repository 基于 gorm 的用户、房间、消息存储
type Repository struct {
	db *gorm.DB
}

// NewRepository 创建存储
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func dbError(err error) error {
	return ErrDatabase.WithError(err)
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}

// CreateUser 创建用户，ID 为空时生成 UUID
func (r *Repository) CreateUser(ctx context.Context, u *User) error {
	if u.Name == "" {
		return ErrInvalidArgument.WithMessage("name is required")
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return dbError(err)
	}
	return nil
}

// GetUser 按 ID 查询用户
func (r *Repository) GetUser(ctx context.Context, id string) (*User, error) {
	var u User
	if err := r.db.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, dbError(err)
	}
	return &u, nil
}

// requireUsers 确认所有用户都存在
func (r *Repository) requireUsers(tx *gorm.DB, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	var count int64
	if err := tx.Model(&User{}).Where("id IN ?", ids).Count(&count).Error; err != nil {
		return dbError(err)
	}
	if int(count) != len(ids) {
		return ErrUserNotFound
	}
	return nil
}

func addMembers(tx *gorm.DB, roomID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	rows := make([]RoomMember, 0, len(userIDs))
	for _, id := range userIDs {
		rows = append(rows, RoomMember{RoomID: roomID, UserID: id})
	}
	return tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&rows).Error
}

// uniq 去重并保持首次出现的顺序
func uniq(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id != "" && !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	return out
}

// CreateRoom 创建房间，创建者总是加入成员列表
func (r *Repository) CreateRoom(ctx context.Context, room *Room, memberIDs []string) (*Room, error) {
	if room.Name == "" || room.CreatedBy == "" {
		return nil, ErrInvalidArgument.WithMessage("name and createdBy are required")
	}
	if room.ID == "" {
		room.ID = uuid.NewString()
	}
	members := uniq(append([]string{room.CreatedBy}, memberIDs...))

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := r.requireUsers(tx, members); err != nil {
			return err
		}
		if err := tx.Omit("Members").Create(room).Error; err != nil {
			return dbError(err)
		}
		if err := addMembers(tx, room.ID, members); err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetRoom(ctx, room.ID)
}

// membersByName 成员按名称排序
func membersByName(db *gorm.DB) *gorm.DB {
	return db.Order("name").Order("id")
}

// GetRoom 查询房间及成员
func (r *Repository) GetRoom(ctx context.Context, id string) (*Room, error) {
	var room Room
	if err := r.db.WithContext(ctx).Preload("Members", membersByName).First(&room, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, dbError(err)
	}
	return &room, nil
}

// RoomsOf 返回用户所在的全部房间
func (r *Repository) RoomsOf(ctx context.Context, userID string) ([]Room, error) {
	rooms := []Room{}
	err := r.db.WithContext(ctx).
		Preload("Members", membersByName).
		Where("id IN (?)", r.db.Model(&RoomMember{}).Select("room_id").Where("user_id = ?", userID)).
		Order("created_at").
		Find(&rooms).Error
	if err != nil {
		return nil, dbError(err)
	}
	return rooms, nil
}

// UpdateRoom 更新房间名称、描述或成员
func (r *Repository) UpdateRoom(ctx context.Context, id string, upd RoomUpdate) (*Room, error) {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room Room
		if err := tx.First(&room, "id = ?", id).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return dbError(err)
		}

		fields := map[string]any{}
		if upd.Name != nil {
			if *upd.Name == "" {
				return ErrInvalidArgument.WithMessage("name cannot be empty")
			}
			fields["name"] = *upd.Name
		}
		if upd.Description != nil {
			fields["description"] = *upd.Description
		}
		if len(fields) > 0 {
			if err := tx.Model(&room).Updates(fields).Error; err != nil {
				return dbError(err)
			}
		}

		if upd.MemberIDs != nil {
			members := uniq(append([]string{room.CreatedBy}, upd.MemberIDs...))
			if err := r.requireUsers(tx, members); err != nil {
				return err
			}
			if err := tx.Where("room_id = ?", id).Delete(&RoomMember{}).Error; err != nil {
				return dbError(err)
			}
			if err := addMembers(tx, id, members); err != nil {
				return dbError(err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetRoom(ctx, id)
}

// DeleteRoom 先删除房间消息和成员关系，再删除房间
func (r *Repository) DeleteRoom(ctx context.Context, id string) (*Room, error) {
	room, err := r.GetRoom(ctx, id)
	if err != nil {
		return nil, err
	}
	err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("room_id = ?", id).Delete(&Message{}).Error; err != nil {
			return err
		}
		if err := tx.Where("room_id = ?", id).Delete(&RoomMember{}).Error; err != nil {
			return err
		}
		return tx.Delete(&Room{}, "id = ?", id).Error
	})
	if err != nil {
		return nil, dbError(err)
	}
	return room, nil
}

// Members 返回房间成员
func (r *Repository) Members(ctx context.Context, roomID string) ([]User, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.Members == nil {
		return []User{}, nil
	}
	return room.Members, nil
}

// AddMembers 向房间添加成员，已是成员的忽略
func (r *Repository) AddMembers(ctx context.Context, roomID string, userIDs []string) (*Room, error) {
	userIDs = uniq(userIDs)
	if len(userIDs) == 0 {
		return nil, ErrInvalidArgument.WithMessage("at least one user id is required")
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&Room{}, "id = ?", roomID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return ErrRoomNotFound
			}
			return dbError(err)
		}
		if err := r.requireUsers(tx, userIDs); err != nil {
			return err
		}
		if err := addMembers(tx, roomID, userIDs); err != nil {
			return dbError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return r.GetRoom(ctx, roomID)
}

// RemoveMember 移除房间成员，创建者不能被移除
func (r *Repository) RemoveMember(ctx context.Context, roomID, userID string) (*Room, error) {
	room, err := r.GetRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	if room.CreatedBy == userID {
		return nil, ErrRemoveCreator
	}
	err = r.db.WithContext(ctx).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Delete(&RoomMember{}).Error
	if err != nil {
		return nil, dbError(err)
	}
	return r.GetRoom(ctx, roomID)
}

// IsMember 判断用户是否是房间成员
func (r *Repository) IsMember(ctx context.Context, roomID, userID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&RoomMember{}).
		Where("room_id = ? AND user_id = ?", roomID, userID).
		Count(&count).Error
	if err != nil {
		return false, dbError(err)
	}
	return count > 0, nil
}

// CreateMessage 保存一条消息，发送者必须是房间成员
func (r *Repository) CreateMessage(ctx context.Context, content, userID, roomID string) (*Message, error) {
	if content == "" || userID == "" || roomID == "" {
		return nil, ErrInvalidArgument.WithMessage("content, userId and roomId are required")
	}
	if err := r.db.WithContext(ctx).First(&Room{}, "id = ?", roomID).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRoomNotFound
		}
		return nil, dbError(err)
	}
	ok, err := r.IsMember(ctx, roomID, userID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrNotMember
	}

	ts := now()
	msg := &Message{
		ID:        uuid.NewString(),
		Content:   content,
		UserID:    userID,
		RoomID:    roomID,
		CreatedAt: ts,
		UpdatedAt: ts,
	}
	if err := r.db.WithContext(ctx).Create(msg).Error; err != nil {
		return nil, dbError(err)
	}
	return r.GetMessage(ctx, msg.ID)
}

// GetMessage 按 ID 查询消息
func (r *Repository) GetMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := r.db.WithContext(ctx).Preload("User").First(&msg, "id = ?", id).Error; err != nil {
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrMessageNotFound
		}
		return nil, dbError(err)
	}
	return &msg, nil
}

// UpdateMessage 修改消息内容
func (r *Repository) UpdateMessage(ctx context.Context, id, content string) (*Message, error) {
	if content == "" {
		return nil, ErrInvalidArgument.WithMessage("content is required")
	}
	res := r.db.WithContext(ctx).Model(&Message{}).Where("id = ?", id).
		Updates(map[string]any{"content": content, "updated_at": now()})
	if res.Error != nil {
		return nil, dbError(res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, ErrMessageNotFound
	}
	return r.GetMessage(ctx, id)
}

// DeleteMessage 删除消息并返回被删除的记录
func (r *Repository) DeleteMessage(ctx context.Context, id string) (*Message, error) {
	msg, err := r.GetMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Delete(&Message{}, "id = ?", id).Error; err != nil {
		return nil, dbError(err)
	}
	return msg, nil
}

// ClampLimit 把分页大小限制在 [1, max]，非正数取默认值
func ClampLimit(limit, def, max int) int {
	if limit <= 0 {
		return def
	}
	return min(limit, max)
}

// ListMessages 按时间倒序分页，cursor 为上一页最后一条消息的 ID
func (r *Repository) ListMessages(ctx context.Context, roomID string, limit int, cursor string) (*MessagePage, error) {
	if roomID == "" {
		return nil, ErrInvalidArgument.WithMessage("roomId is required")
	}
	limit = ClampLimit(limit, DefaultPageSize, MaxPageSize)

	q := r.db.WithContext(ctx).Preload("User").Where("room_id = ?", roomID)
	if cursor != "" {
		var last Message
		if err := r.db.WithContext(ctx).First(&last, "id = ? AND room_id = ?", cursor, roomID).Error; err != nil {
			if stderrors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrInvalidArgument.WithMessage("unknown cursor")
			}
			return nil, dbError(err)
		}
		q = q.Where("created_at < ? OR (created_at = ? AND id < ?)", last.CreatedAt, last.CreatedAt, last.ID)
	}

	messages := []Message{}
	if err := q.Order("created_at DESC").Order("id DESC").Limit(limit + 1).Find(&messages).Error; err != nil {
		return nil, dbError(err)
	}

	page := &MessagePage{Messages: messages}
	if len(messages) > limit {
		page.Messages = messages[:limit]
		page.NextCursor = page.Messages[limit-1].ID
	}
	return page, nil
}

// Recent 返回用户所在每个房间的最新一条消息，按时间倒序
func (r *Repository) Recent(ctx context.Context, userID string, limit int) ([]Message, error) {
	if _, err := r.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	limit = ClampLimit(limit, DefaultRecentSize, MaxPageSize)

	var roomIDs []string
	err := r.db.WithContext(ctx).Model(&RoomMember{}).
		Where("user_id = ?", userID).
		Pluck("room_id", &roomIDs).Error
	if err != nil {
		return nil, dbError(err)
	}

	out := []Message{}
	for _, roomID := range roomIDs {
		var msg Message
		err := r.db.WithContext(ctx).Preload("User").Preload("Room").
			Where("room_id = ?", roomID).
			Order("created_at DESC").Order("id DESC").
			Take(&msg).Error
		if stderrors.Is(err, gorm.ErrRecordNotFound) {
			continue
		}
		if err != nil {
			return nil, dbError(err)
		}
		out = append(out, msg)
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
