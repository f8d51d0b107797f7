package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/internal/storeclient"
	"github.com/tokmz/roomcast/pkg/errors"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/protocol"
	"github.com/tokmz/roomcast/pkg/session"
	"go.uber.org/zap"
)

const historySize = 20

var errQuit = errors.New(1100, "quit", 200)

// console 行式终端客户端：以 / 开头的是命令，其余发送到当前房间
type console struct {
	sess *session.Session
	dir  *storeclient.Directory // nil 表示未配置存储服务
	user string
	name string
	log  logger.Logger

	mu      sync.Mutex
	out     io.Writer
	current string
}

func newConsole(sess *session.Session, dir *storeclient.Directory, user, name string, out io.Writer, log logger.Logger) *console {
	c := &console{sess: sess, dir: dir, user: user, name: name, out: out, log: log}
	sess.OnEvent(c.render)
	sess.OnStateChange(func(st session.State) {
		c.printf("* %s\n", st)
	})
	sess.OnGiveUp(func(err error) {
		c.printf("* relay unreachable, type /connect to retry (%v)\n", err)
	})
	return c
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func (c *console) room() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *console) setRoom(id string) {
	c.mu.Lock()
	c.current = id
	c.mu.Unlock()
}

func (c *console) render(f protocol.Outbound) {
	switch m := f.(type) {
	case protocol.Welcome:
		c.printf("* %s\n", m.Message)
	case protocol.UserJoined:
		c.printf("[%s] * %s joined\n", m.RoomID, m.UserID)
	case protocol.UserLeft:
		c.printf("[%s] * %s left\n", m.RoomID, m.UserID)
	case protocol.RoomMembersUpdate:
		c.printf("[%s] * online: %s\n", m.RoomID, strings.Join(m.Members, ", "))
	case protocol.ChatMessage:
		c.printf("[%s] %s: %s\n", m.RoomID, m.UserName, m.Content)
	}
}

// Run 逐行读取 in 直到 EOF、/quit 或 ctx 结束
func (c *console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := c.handle(ctx, line)
			if errors.Is(err, errQuit) {
				return nil
			}
			if err != nil {
				c.printf("! %v\n", err)
			}
		}
	}
}

func (c *console) handle(ctx context.Context, line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	if !strings.HasPrefix(line, "/") {
		return c.say(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line[1:], " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "join":
		return c.join(ctx, arg)
	case "leave":
		return c.leave(arg)
	case "switch":
		return c.switchTo(arg)
	case "rooms":
		return c.rooms(ctx)
	case "members":
		return c.members(ctx, arg)
	case "history":
		return c.history(ctx, arg)
	case "connect":
		return c.sess.Connect(ctx)
	case "status":
		c.printf("* %s, attempts=%d, room=%q\n", c.sess.State(), c.sess.Attempts(), c.room())
		return nil
	case "quit", "exit":
		return errQuit
	case "help":
		c.printf("commands: /join <room> /leave [room] /switch <room> /rooms /members [room] /history [n] /connect /status /quit\n")
		return nil
	}
	return fmt.Errorf("unknown command /%s", cmd)
}

// join 配置了存储服务时先确认房间存在并补齐成员关系
func (c *console) join(ctx context.Context, roomID string) error {
	if roomID == "" {
		return fmt.Errorf("usage: /join <room>")
	}
	if c.dir != nil {
		room, err := c.dir.Room(ctx, roomID)
		if err != nil {
			return err
		}
		member, err := c.dir.IsMember(ctx, roomID, c.user)
		if err != nil {
			return err
		}
		if !member {
			if _, err := c.dir.AddMembers(ctx, roomID, c.user); err != nil {
				return err
			}
		}
		c.printf("* %s: %s\n", room.Name, room.Description)
	}
	if err := c.sess.JoinRoom(roomID, c.user); err != nil {
		return err
	}
	c.setRoom(roomID)
	if c.dir != nil {
		return c.history(ctx, "")
	}
	return nil
}

func (c *console) leave(roomID string) error {
	if roomID == "" {
		roomID = c.room()
	}
	if roomID == "" {
		return fmt.Errorf("not in a room")
	}
	if err := c.sess.LeaveRoom(roomID); err != nil {
		return err
	}
	if c.room() == roomID {
		c.setRoom("")
	}
	return nil
}

func (c *console) switchTo(roomID string) error {
	if _, ok := c.sess.Joined()[roomID]; !ok {
		return fmt.Errorf("not joined to %q", roomID)
	}
	c.setRoom(roomID)
	return nil
}

// say 实时消息走中继，配置了存储服务时再持久化
func (c *console) say(ctx context.Context, content string) error {
	roomID := c.room()
	if roomID == "" {
		return fmt.Errorf("join a room first")
	}
	if err := c.sess.SendMessage(roomID, c.user, c.name, content); err != nil {
		return err
	}
	if c.dir == nil {
		return nil
	}
	if _, err := c.dir.Client().CreateMessage(ctx, storeclient.CreateMessageInput{
		Content: content,
		UserID:  c.user,
		RoomID:  roomID,
	}); err != nil {
		c.log.Warn("persist message failed", zap.String("room_id", roomID), zap.Error(err))
		return err
	}
	return nil
}

func (c *console) rooms(ctx context.Context) error {
	joined := c.sess.Joined()
	if c.dir == nil {
		ids := make([]string, 0, len(joined))
		for id := range joined {
			ids = append(ids, id)
		}
		slices.Sort(ids)
		c.printf("* joined: %s\n", strings.Join(ids, ", "))
		return nil
	}
	rooms, err := c.dir.Client().RoomsOf(ctx, c.user)
	if err != nil {
		return err
	}
	for _, r := range rooms {
		mark := " "
		if _, ok := joined[r.ID]; ok {
			mark = "*"
		}
		c.printf("%s %s  %s\n", mark, r.ID, r.Name)
	}
	return nil
}

func (c *console) members(ctx context.Context, roomID string) error {
	if roomID == "" {
		roomID = c.room()
	}
	if c.dir == nil {
		return fmt.Errorf("store not configured")
	}
	users, err := c.dir.Members(ctx, roomID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(users))
	for _, u := range users {
		names = append(names, u.Name)
	}
	c.printf("[%s] * members: %s\n", roomID, strings.Join(names, ", "))
	return nil
}

// history 打印当前房间最近 n 条消息，按时间正序
func (c *console) history(ctx context.Context, arg string) error {
	if c.dir == nil {
		return fmt.Errorf("store not configured")
	}
	roomID := c.room()
	if roomID == "" {
		return fmt.Errorf("join a room first")
	}
	n := historySize
	if arg != "" {
		v, err := strconv.Atoi(arg)
		if err != nil || v <= 0 {
			return fmt.Errorf("usage: /history [n]")
		}
		n = v
	}
	page, err := c.dir.Client().ListMessages(ctx, roomID, n, "")
	if err != nil {
		return err
	}
	msgs := slices.Clone(page.Messages)
	slices.Reverse(msgs)
	for _, m := range msgs {
		c.printf("[%s] %s: %s\n", roomID, displayName(m), m.Content)
	}
	return nil
}

func displayName(m store.Message) string {
	if m.User != nil && m.User.Name != "" {
		return m.User.Name
	}
	return m.UserID
}
