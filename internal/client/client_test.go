package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/testr"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
	"github.com/DelicateHug/DMaker-sub000/internal/executor"
	"github.com/DelicateHug/DMaker-sub000/internal/executor/db"
	"github.com/DelicateHug/DMaker-sub000/internal/feature"
	"github.com/DelicateHug/DMaker-sub000/internal/gateway"
	"github.com/DelicateHug/DMaker-sub000/internal/web"
)

// newStack runs a real executor behind the HTTP API
func newStack(t *testing.T, cfg executor.Config) *Client {
	t.Helper()
	database, err := db.Open(t.TempDir() + "/client.db")
	require.NoError(t, err)
	bus := events.NewBus(1000)
	x := executor.New(executor.Deps{DB: database, Bus: bus, Logger: logr.Discard()}, cfg)

	srv := web.New(web.Config{}, web.Deps{Gateway: x, Bus: bus, History: x, Logger: logr.Discard()})
	ts := httptest.NewServer(srv.Handler())

	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
		ts.Close()
		_ = x.Close()
		_ = bus.Close()
		_ = database.Close()
	})

	c, err := New(Config{BaseURL: ts.URL, ReconnectBackoff: 10 * time.Millisecond}, testr.New(t))
	require.NoError(t, err)
	return c
}

func TestNew_RejectsBadURL(t *testing.T) {
	_, err := New(Config{BaseURL: "unix:///tmp/x.sock"}, logr.Discard())
	assert.Error(t, err)
}

func TestClient_Commands(t *testing.T) {
	c := newStack(t, executor.Config{RunDuration: time.Minute, ProgressInterval: time.Minute})
	ctx := context.Background()
	prio := 1

	created, err := c.Create(ctx, "web", feature.Draft{Title: "Login", Description: "form", Priority: &prio})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, feature.StatusBacklog, created.Status)

	summaries, err := c.ListSummaries(ctx, "web", gateway.StatusFilter{ExcludeCompleted: true})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Empty(t, summaries[0].Description)
	assert.Equal(t, 1, summaries[0].EffectivePriority())

	title := "Login v2"
	updated, err := c.Update(ctx, "web", created.ID, feature.Patch{Title: &title})
	require.NoError(t, err)
	assert.Equal(t, "Login v2", updated.Title)

	res, err := c.Start(ctx, "web", created.ID)
	require.NoError(t, err)
	assert.True(t, res.Accepted)

	res, err = c.Start(ctx, "web", created.ID)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.NotEmpty(t, res.Reason)

	require.NoError(t, c.Stop(ctx, "web", created.ID))
	assert.ErrorIs(t, c.Stop(ctx, "web", created.ID), gateway.ErrConflict)

	full, err := c.ListFull(ctx, "web", gateway.StatusFilter{})
	require.NoError(t, err)
	require.Len(t, full, 1)
	assert.Equal(t, "form", full[0].Description)

	require.NoError(t, c.Delete(ctx, "web", created.ID))
	assert.ErrorIs(t, c.Delete(ctx, "web", created.ID), gateway.ErrNotFound)

	_, err = c.Create(ctx, "web", feature.Draft{})
	assert.ErrorIs(t, err, gateway.ErrInvalidInput)

	require.Eventually(t, func() bool {
		history, err := c.History(ctx, "web", 0, 100)
		return err == nil && len(history) > 0 && history[0].Type == string(events.FeatureCreated)
	}, time.Second, 10*time.Millisecond)
}

func TestClient_Subscribe(t *testing.T) {
	c := newStack(t, executor.Config{RunDuration: 30 * time.Millisecond, ProgressInterval: time.Minute})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var got []events.Event
	connected := make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		done <- c.SubscribeWithReconnect(ctx, func(e events.Event) {
			mu.Lock()
			got = append(got, e)
			mu.Unlock()
		}, func() { connected <- struct{}{} })
	}()

	select {
	case <-connected:
	case <-time.After(2 * time.Second):
		t.Fatal("subscriber never connected")
	}

	// the server registers the connection with its hub asynchronously, so
	// keep starting features until one run is observed end to end
	var started []string
	require.Eventually(t, func() bool {
		f, err := c.Create(context.Background(), "web", feature.Draft{Title: "Login"})
		if err != nil {
			return false
		}
		if _, err := c.Start(context.Background(), "web", f.ID); err != nil {
			return false
		}

		mu.Lock()
		defer mu.Unlock()
		started = append(started, f.ID)
		for _, e := range got {
			if e.Type == events.Completed && slices.Contains(started, e.Feature) {
				return true
			}
		}
		return false
	}, 3*time.Second, 50*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Subscribe did not return after cancel")
	}
}

func TestClient_SubscribeReconnects(t *testing.T) {
	var connections atomic.Int32
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		connections.Add(1)
		_ = conn.WriteJSON(events.ToJSONEvent(events.NewEvent(events.Progress, "web", "f1")))
		// drop the connection right away
	}))
	defer ts.Close()

	c, err := New(Config{BaseURL: ts.URL, ReconnectBackoff: 5 * time.Millisecond, MaxReconnectBackoff: 20 * time.Millisecond}, logr.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var received atomic.Int32
	go func() {
		_ = c.Subscribe(ctx, func(events.Event) { received.Add(1) })
	}()

	require.Eventually(t, func() bool {
		return connections.Load() >= 3 && received.Load() >= 2
	}, 3*time.Second, 5*time.Millisecond)
}

func TestClient_SubscribeServerDown(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	c, err := New(Config{BaseURL: url, ReconnectBackoff: 5 * time.Millisecond}, logr.Discard())
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err = c.Subscribe(ctx, func(events.Event) {})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
