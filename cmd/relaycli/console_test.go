package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast"
	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/internal/storeclient"
	"github.com/tokmz/roomcast/pkg/cache"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/orm"
	"github.com/tokmz/roomcast/pkg/session"
	"github.com/tokmz/roomcast/pkg/ws"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func (b *syncBuffer) waitFor(t *testing.T, substr string) {
	t.Helper()
	require.Eventually(t, func() bool {
		return strings.Contains(b.String(), substr)
	}, 2*time.Second, 10*time.Millisecond, "waiting for %q in:\n%s", substr, b.String())
}

func startRelay(t *testing.T) string {
	t.Helper()
	relay, err := ws.NewServer(ws.WithAllowAllOrigins(), ws.WithHeartbeatInterval(time.Hour))
	require.NoError(t, err)
	relay.Start()
	ts := httptest.NewServer(relay)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = relay.Shutdown(ctx)
		ts.Close()
	})
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func startStore(t *testing.T) (*store.Repository, string) {
	t.Helper()
	cfg := orm.DefaultConfig()
	cfg.Type = orm.SQLite
	cfg.DSN = filepath.Join(t.TempDir(), "cli.db")
	cfg.MaxOpenConns = 1
	db, err := orm.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = orm.Close(db) })
	require.NoError(t, store.Migrate(db))

	repo := store.NewRepository(db)
	seed, err := store.ParseSeed([]byte(`
users:
  - {id: alice, name: Alice}
  - {id: carol, name: Carol}
rooms:
  - {id: general, name: General, description: everyone, createdBy: alice}
`))
	require.NoError(t, err)
	require.NoError(t, repo.ApplySeed(context.Background(), seed))

	e := roomcast.New(roomcast.WithMode("test"))
	store.NewHandler(repo, nil).Register(e.Group("/api"))
	ts := httptest.NewServer(e.Handler())
	t.Cleanup(ts.Close)
	return repo, ts.URL + "/api"
}

func newTestConsole(t *testing.T, url, user string, dir *storeclient.Directory) (*console, *syncBuffer) {
	t.Helper()
	sess, err := session.New(session.DefaultConfig(), session.WithURL(url))
	require.NoError(t, err)
	t.Cleanup(sess.Disconnect)

	out := &syncBuffer{}
	con := newConsole(sess, dir, user, strings.ToUpper(user[:1])+user[1:], out, logger.Nop())
	require.NoError(t, sess.Connect(context.Background()))
	out.waitFor(t, "Connected to relay with ID: ")
	return con, out
}

func TestConsole_ChatThroughRelay(t *testing.T) {
	url := startRelay(t)
	ctx := context.Background()
	alice, aliceOut := newTestConsole(t, url, "alice", nil)
	bob, bobOut := newTestConsole(t, url, "bob", nil)

	require.NoError(t, alice.handle(ctx, "/join lobby"))
	require.NoError(t, bob.handle(ctx, "/join lobby"))
	aliceOut.waitFor(t, "[lobby] * online: alice, bob")

	require.NoError(t, alice.handle(ctx, "hello bob"))
	bobOut.waitFor(t, "[lobby] Alice: hello bob")

	require.NoError(t, bob.handle(ctx, "/leave"))
	aliceOut.waitFor(t, "[lobby] * bob left")
	assert.Empty(t, bob.room())

	assert.Error(t, bob.handle(ctx, "anyone?"))
	assert.Error(t, bob.handle(ctx, "/switch lobby"))
	assert.Error(t, bob.handle(ctx, "/history"))
	assert.Error(t, bob.handle(ctx, "/bogus"))
	assert.ErrorIs(t, bob.handle(ctx, "/quit"), errQuit)
}

func TestConsole_StoreBackedJoin(t *testing.T) {
	url := startRelay(t)
	repo, api := startStore(t)
	ctx := context.Background()

	c, err := cache.NewWithOptions(cache.WithMemory(cache.DefaultMemoryConfig()))
	require.NoError(t, err)
	dir := storeclient.NewDirectory(storeclient.New(api), c)

	_, err = repo.CreateMessage(ctx, "welcome", "alice", "general")
	require.NoError(t, err)

	carol, out := newTestConsole(t, url, "carol", dir)
	require.NoError(t, carol.handle(ctx, "/join general"))
	out.waitFor(t, "* General: everyone")
	out.waitFor(t, "[general] Alice: welcome")

	ok, err := repo.IsMember(ctx, "general", "carol")
	require.NoError(t, err)
	assert.True(t, ok)

	require.NoError(t, carol.handle(ctx, "hi all"))
	out.waitFor(t, "[general] Carol: hi all")
	page, err := repo.ListMessages(ctx, "general", 10, "")
	require.NoError(t, err)
	require.Len(t, page.Messages, 2)
	assert.Equal(t, "hi all", page.Messages[0].Content)

	require.NoError(t, carol.handle(ctx, "/members"))
	out.waitFor(t, "[general] * members: Alice, Carol")

	require.NoError(t, carol.handle(ctx, "/rooms"))
	out.waitFor(t, "* general  General")

	assert.ErrorIs(t, carol.handle(ctx, "/join nowhere"), store.ErrRoomNotFound)
}

func TestConsole_RunStopsOnQuit(t *testing.T) {
	url := startRelay(t)
	con, out := newTestConsole(t, url, "dave", nil)

	err := con.Run(context.Background(), strings.NewReader("/join lobby\n/status\n/quit\nnever sent\n"))
	require.NoError(t, err)
	out.waitFor(t, `room="lobby"`)
	assert.NotContains(t, out.String(), "never sent")
}

func TestParseFlags(t *testing.T) {
	_, err := parseFlags([]string{"-name", "x"})
	assert.Error(t, err)

	o, err := parseFlags([]string{"-user", "alice", "-rooms", "general, ops,,", "-backoff-base", "1s", "-max-attempts", "2"})
	require.NoError(t, err)
	assert.Equal(t, "alice", o.name)
	assert.Equal(t, []string{"general", "ops"}, o.roomList())
	assert.Equal(t, time.Second, o.backoffBase)
	assert.Equal(t, 2, o.maxAttempts)

	_, err = (&options{cacheDriver: "disk"}).cache()
	assert.Error(t, err)
}
