package store

import (
	"net/http"

	"github.com/tokmz/roomcast/pkg/errors"
)

// 存储服务错误码（5000 段）
var (
	ErrUserNotFound    = errors.New(5001, "user not found", http.StatusNotFound)
	ErrRoomNotFound    = errors.New(5002, "room not found", http.StatusNotFound)
	ErrMessageNotFound = errors.New(5003, "message not found", http.StatusNotFound)
	ErrNotMember       = errors.New(5004, "user is not a member of this room", http.StatusForbidden)
	ErrRemoveCreator   = errors.New(5005, "cannot remove the creator from the room", http.StatusBadRequest)
	ErrInvalidArgument = errors.New(5006, "invalid argument", http.StatusBadRequest)
	ErrDatabase        = errors.New(5007, "database error", http.StatusInternalServerError)
	ErrSeed            = errors.New(5008, "load seed failed", http.StatusInternalServerError)
)
