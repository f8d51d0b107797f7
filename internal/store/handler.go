package store

import (
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/pkg/logger"
	"go.uber.org/zap"
)

type idReq struct {
	ID string `uri:"id" binding:"required"`
}

type listMessagesReq struct {
	RoomID string `form:"roomId" binding:"required"`
	Limit  int    `form:"limit"`
	Cursor string `form:"cursor"`
}

type recentReq struct {
	UserID string `form:"userId" binding:"required"`
	Limit  int    `form:"limit"`
}

type createMessageReq struct {
	Content string `json:"content" binding:"required"`
	UserID  string `json:"userId" binding:"required"`
	RoomID  string `json:"roomId" binding:"required"`
}

type updateMessageReq struct {
	ID      string `uri:"id"`
	Content string `json:"content" binding:"required"`
}

type roomsReq struct {
	UserID string `form:"userId" binding:"required"`
}

type createRoomReq struct {
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	CreatedBy   string   `json:"createdBy" binding:"required"`
	MemberIDs   []string `json:"memberIds"`
}

type updateRoomReq struct {
	ID          string   `uri:"id"`
	Name        *string  `json:"name"`
	Description *string  `json:"description"`
	MemberIDs   []string `json:"memberIds"`
}

type addMembersReq struct {
	ID      string   `uri:"id"`
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

type removeMemberReq struct {
	ID     string `uri:"id" binding:"required"`
	UserID string `uri:"userId" binding:"required"`
}

type createUserReq struct {
	ID    string `json:"id"`
	Name  string `json:"name" binding:"required"`
	Email string `json:"email"`
	Image string `json:"image"`
}

// Handler 存储服务的 REST 接口
type Handler struct {
	repo *Repository
	log  logger.Logger
}

// NewHandler 创建 REST 处理器
func NewHandler(repo *Repository, log logger.Logger) *Handler {
	if log == nil {
		log = logger.Nop()
	}
	return &Handler{repo: repo, log: log.Named("store")}
}

// Register 在 rg 下注册 /chat、/rooms、/users 路由
func (h *Handler) Register(rg *roomcast.RouterGroup) {
	chat := rg.Group("/chat")
	roomcast.Handle[listMessagesReq, MessagePage](chat.GET, "", h.listMessages)
	roomcast.Handle[recentReq, []Message](chat.GET, "/recent", h.recent)
	roomcast.Handle[idReq, Message](chat.GET, "/:id", h.getMessage)
	roomcast.Handle[createMessageReq, Message](chat.POST, "", h.createMessage)
	roomcast.Handle[updateMessageReq, Message](chat.PUT, "/:id", h.updateMessage)
	roomcast.Handle[idReq, Message](chat.DELETE, "/:id", h.deleteMessage)

	rooms := rg.Group("/rooms")
	roomcast.Handle[roomsReq, []Room](rooms.GET, "", h.listRooms)
	roomcast.Handle[idReq, Room](rooms.GET, "/:id", h.getRoom)
	roomcast.Handle[createRoomReq, Room](rooms.POST, "", h.createRoom)
	roomcast.Handle[updateRoomReq, Room](rooms.PUT, "/:id", h.updateRoom)
	roomcast.Handle[idReq, Room](rooms.DELETE, "/:id", h.deleteRoom)
	roomcast.Handle[idReq, []User](rooms.GET, "/:id/members", h.members)
	roomcast.Handle[addMembersReq, Room](rooms.POST, "/:id/members", h.addMembers)
	roomcast.Handle[removeMemberReq, Room](rooms.DELETE, "/:id/members/:userId", h.removeMember)

	users := rg.Group("/users")
	roomcast.Handle[createUserReq, User](users.POST, "", h.createUser)
	roomcast.Handle[idReq, User](users.GET, "/:id", h.getUser)
}

func (h *Handler) listMessages(c *roomcast.Context, req *listMessagesReq) (*MessagePage, error) {
	return h.repo.ListMessages(c.RequestContext(), req.RoomID, req.Limit, req.Cursor)
}

func (h *Handler) recent(c *roomcast.Context, req *recentReq) (*[]Message, error) {
	msgs, err := h.repo.Recent(c.RequestContext(), req.UserID, req.Limit)
	if err != nil {
		return nil, err
	}
	return &msgs, nil
}

func (h *Handler) getMessage(c *roomcast.Context, req *idReq) (*Message, error) {
	return h.repo.GetMessage(c.RequestContext(), req.ID)
}

func (h *Handler) createMessage(c *roomcast.Context, req *createMessageReq) (*Message, error) {
	ctx := c.RequestContext()
	msg, err := h.repo.CreateMessage(ctx, req.Content, req.UserID, req.RoomID)
	if err != nil {
		return nil, err
	}
	h.log.DebugContext(ctx, "message stored",
		zap.String("message_id", msg.ID),
		zap.String("room_id", msg.RoomID),
		zap.String("user_id", msg.UserID),
	)
	return msg, nil
}

func (h *Handler) updateMessage(c *roomcast.Context, req *updateMessageReq) (*Message, error) {
	return h.repo.UpdateMessage(c.RequestContext(), req.ID, req.Content)
}

func (h *Handler) deleteMessage(c *roomcast.Context, req *idReq) (*Message, error) {
	return h.repo.DeleteMessage(c.RequestContext(), req.ID)
}

func (h *Handler) listRooms(c *roomcast.Context, req *roomsReq) (*[]Room, error) {
	rooms, err := h.repo.RoomsOf(c.RequestContext(), req.UserID)
	if err != nil {
		return nil, err
	}
	return &rooms, nil
}

func (h *Handler) getRoom(c *roomcast.Context, req *idReq) (*Room, error) {
	return h.repo.GetRoom(c.RequestContext(), req.ID)
}

func (h *Handler) createRoom(c *roomcast.Context, req *createRoomReq) (*Room, error) {
	ctx := c.RequestContext()
	room, err := h.repo.CreateRoom(ctx, &Room{
		Name:        req.Name,
		Description: req.Description,
		CreatedBy:   req.CreatedBy,
	}, req.MemberIDs)
	if err != nil {
		return nil, err
	}
	h.log.InfoContext(ctx, "room created", zap.String("room_id", room.ID), zap.String("created_by", room.CreatedBy))
	return room, nil
}

func (h *Handler) updateRoom(c *roomcast.Context, req *updateRoomReq) (*Room, error) {
	return h.repo.UpdateRoom(c.RequestContext(), req.ID, RoomUpdate{
		Name:        req.Name,
		Description: req.Description,
		MemberIDs:   req.MemberIDs,
	})
}

func (h *Handler) deleteRoom(c *roomcast.Context, req *idReq) (*Room, error) {
	ctx := c.RequestContext()
	room, err := h.repo.DeleteRoom(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	h.log.InfoContext(ctx, "room deleted", zap.String("room_id", room.ID))
	return room, nil
}

func (h *Handler) members(c *roomcast.Context, req *idReq) (*[]User, error) {
	users, err := h.repo.Members(c.RequestContext(), req.ID)
	if err != nil {
		return nil, err
	}
	return &users, nil
}

func (h *Handler) addMembers(c *roomcast.Context, req *addMembersReq) (*Room, error) {
	return h.repo.AddMembers(c.RequestContext(), req.ID, req.UserIDs)
}

func (h *Handler) removeMember(c *roomcast.Context, req *removeMemberReq) (*Room, error) {
	return h.repo.RemoveMember(c.RequestContext(), req.ID, req.UserID)
}

func (h *Handler) createUser(c *roomcast.Context, req *createUserReq) (*User, error) {
	u := &User{ID: req.ID, Name: req.Name, Email: req.Email, Image: req.Image}
	if err := h.repo.CreateUser(c.RequestContext(), u); err != nil {
		return nil, err
	}
	return u, nil
}

func (h *Handler) getUser(c *roomcast.Context, req *idReq) (*User, error) {
	return h.repo.GetUser(c.RequestContext(), req.ID)
}
