package store

import (
	"time"

	"gorm.io/gorm"
)

// User 目录中的用户记录
type User struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"size:100;not null" json:"name"`
	Email     string    `gorm:"size:255;index" json:"email"`
	Image     string    `gorm:"size:512" json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (User) TableName() string { return "users" }

// Room 聊天房间，创建者始终是成员
type Room struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Name        string    `gorm:"size:100;not null" json:"name"`
	Description string    `gorm:"size:500" json:"description"`
	CreatedBy   string    `gorm:"size:36;not null;index" json:"createdBy"`
	Members     []User    `gorm:"many2many:room_members" json:"members"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (Room) TableName() string { return "rooms" }

// RoomMember 房间成员关系，作为 Room.Members 的连接表
type RoomMember struct {
	RoomID    string `gorm:"primaryKey;size:36"`
	UserID    string `gorm:"primaryKey;size:36;index"`
	CreatedAt time.Time
}

func (RoomMember) TableName() string { return "room_members" }

// Message 持久化的聊天消息
type Message struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	UserID    string    `gorm:"size:36;not null;index" json:"userId"`
	RoomID    string    `gorm:"size:36;not null;index:idx_messages_room_created,priority:1" json:"roomId"`
	CreatedAt time.Time `gorm:"index:idx_messages_room_created,priority:2" json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Room      *Room     `gorm:"foreignKey:RoomID" json:"room,omitempty"`
}

func (Message) TableName() string { return "messages" }

// Migrate 注册连接表并建表
func Migrate(db *gorm.DB) error {
	if err := db.SetupJoinTable(&Room{}, "Members", &RoomMember{}); err != nil {
		return err
	}
	return db.AutoMigrate(&User{}, &Room{}, &RoomMember{}, &Message{})
}
