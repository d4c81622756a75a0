package web

import (
	"testing"
	"time"

	"github.com/DelicateHug/DMaker-sub000/internal/events"
)

func TestHub_ClientRegistration(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client1 := NewClient("client1")
	hub.Register(client1)
	client2 := NewClient("client2")
	hub.Register(client2)

	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Unregister(client1)
	waitFor(t, func() bool { return hub.Count() == 1 })

	if _, ok := <-client1.events; ok {
		t.Error("unregistered client channel should be closed")
	}
}

func TestHub_Broadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	client := NewClient("c")
	hub.Register(client)
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Broadcast(events.NewEvent(events.Completed, "web", "f1"))

	select {
	case e := <-client.events:
		if e.Type != events.Completed || e.Feature != "f1" {
			t.Errorf("unexpected event: %v", e)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for broadcast")
	}
}

func TestHub_SlowClientDropsEvents(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	slow := NewClient("slow")
	hub.Register(slow)
	waitFor(t, func() bool { return hub.Count() == 1 })

	for i := 0; i < cap(slow.events)+10; i++ {
		hub.Broadcast(events.NewEvent(events.Progress, "web", "f1"))
	}

	// broadcasting never blocks on a full client; the hub keeps serving
	fast := NewClient("fast")
	hub.Register(fast)
	waitFor(t, func() bool { return hub.Count() == 2 })
	waitFor(t, func() bool { return slow.Dropped() >= 10 })
}

func TestHub_ProjectFilter(t *testing.T) {
	hub := NewHub()
	go hub.Run()
	defer hub.Stop()

	web := NewClient("web-only", "web")
	all := NewClient("all")
	hub.Register(web)
	hub.Register(all)
	waitFor(t, func() bool { return hub.Count() == 2 })

	hub.Broadcast(events.NewEvent(events.StartConfirmed, "api", "a1"))
	hub.Broadcast(events.NewEvent(events.StartConfirmed, "web", "w1"))

	select {
	case e := <-web.events:
		if e.Feature != "w1" {
			t.Errorf("filtered client got %s, want w1", e.Feature)
		}
	case <-time.After(time.Second):
		t.Fatal("filtered client received nothing")
	}

	for _, want := range []string{"a1", "w1"} {
		select {
		case e := <-all.events:
			if e.Feature != want {
				t.Errorf("unfiltered client got %s, want %s", e.Feature, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("unfiltered client missing %s", want)
		}
	}
}

func TestClient_Wants(t *testing.T) {
	c := NewClient("c", "web", "api")
	if !c.Wants(events.NewEvent(events.Completed, "web", "f1")) {
		t.Error("expected in-scope event to pass")
	}
	if c.Wants(events.NewEvent(events.Completed, "docs", "f2")) {
		t.Error("expected out-of-scope event to be filtered")
	}
	if !c.Wants(events.Event{Type: events.Completed}) {
		t.Error("expected project-less event to pass")
	}
}

func TestHub_StopClosesClients(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	client := NewClient("c")
	hub.Register(client)
	waitFor(t, func() bool { return hub.Count() == 1 })

	hub.Stop()
	hub.Stop()

	select {
	case _, ok := <-client.events:
		if ok {
			t.Error("expected closed channel after Stop")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}

	// no goroutine is left to receive; these must not block
	hub.Broadcast(events.NewEvent(events.Completed, "web", "f1"))
	if hub.Register(NewClient("late")) {
		t.Error("Register after Stop should report false")
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
