package main

import (
	"context"
	"net"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tokmz/roomcast/internal/settings"
	"github.com/tokmz/roomcast/internal/store"
	"github.com/tokmz/roomcast/internal/storeclient"
	"github.com/tokmz/roomcast/pkg/logger"
	"github.com/tokmz/roomcast/pkg/request"
)

func testSettings(t *testing.T) *settings.Store {
	t.Helper()
	cfg, conf, err := settings.Load[settings.Store]("../../configs/chatstore.yaml", settings.StoreDefaults(), nil)
	require.NoError(t, err)
	t.Cleanup(conf.Close)
	cfg.Server.Mode = "test"
	cfg.Database.DSN = filepath.Join(t.TempDir(), "chatstore.db")
	cfg.Database.Tracing = false
	cfg.Seed.File = "../../configs/seed.yaml"
	return cfg
}

func TestChatstore_SeedAndServe(t *testing.T) {
	a, err := newApp(context.Background(), testSettings(t), logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)

	ts := httptest.NewServer(a.engine.Handler())
	defer ts.Close()
	client := storeclient.New(ts.URL + "/api")
	ctx := context.Background()

	rooms, err := client.RoomsOf(ctx, "alice")
	require.NoError(t, err)
	assert.Len(t, rooms, 2)

	members, err := client.Members(ctx, "general")
	require.NoError(t, err)
	assert.Len(t, members, 3)

	msg, err := client.CreateMessage(ctx, storeclient.CreateMessageInput{Content: "standup?", UserID: "carol", RoomID: "general"})
	require.NoError(t, err)

	_, err = client.CreateMessage(ctx, storeclient.CreateMessageInput{Content: "hi", UserID: "carol", RoomID: "ops"})
	assert.ErrorIs(t, err, store.ErrNotMember)

	recent, err := client.Recent(ctx, "alice", 0)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, msg.ID, recent[0].ID)
}

func TestChatstore_SeedIsIdempotent(t *testing.T) {
	cfg := testSettings(t)
	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	a.close()

	a, err = newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	t.Cleanup(a.close)

	members, err := a.repo.Members(context.Background(), "ops")
	require.NoError(t, err)
	assert.Len(t, members, 2)
}

func TestChatstore_BadSeed(t *testing.T) {
	cfg := testSettings(t)
	cfg.Seed.File = filepath.Join(t.TempDir(), "missing.yaml")
	_, err := newApp(context.Background(), cfg, logger.Nop())
	assert.ErrorIs(t, err, store.ErrSeed)
}

func TestChatstore_RunStopsOnCancel(t *testing.T) {
	cfg := testSettings(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	cfg.Server.Addr = ln.Addr().String()
	require.NoError(t, ln.Close())

	a, err := newApp(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.run(ctx) }()

	client := storeclient.New("http://"+cfg.Server.Addr+"/api", request.WithRetry(nil))
	require.Eventually(t, func() bool {
		_, err := client.GetUser(context.Background(), "bob")
		return err == nil
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
