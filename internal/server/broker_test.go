package server

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/ashita-ai/sekkei/internal/service/exploration"
)

// testLogger returns a logger for tests that discards output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestBrokerFanOut(t *testing.T) {
	broker := NewBroker(testLogger())

	// Subscribe two clients.
	ch1 := broker.Subscribe()
	ch2 := broker.Subscribe()

	event := formatSSE("situation", `{"step":"problem_identification"}`)
	broker.broadcast(event)

	// Both should receive it.
	select {
	case got := <-ch1:
		if string(got) != string(event) {
			t.Errorf("ch1: got %q, want %q", got, event)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch1: timed out waiting for event")
	}

	select {
	case got := <-ch2:
		if string(got) != string(event) {
			t.Errorf("ch2: got %q, want %q", got, event)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch2: timed out waiting for event")
	}

	// Unsubscribe ch1, broadcast again; only ch2 should receive.
	broker.Unsubscribe(ch1)
	if n := broker.Subscribers(); n != 1 {
		t.Errorf("subscribers: got %d, want 1", n)
	}
	event2 := formatSSE("reset", `{"step":"init"}`)
	broker.broadcast(event2)

	select {
	case got := <-ch2:
		if string(got) != string(event2) {
			t.Errorf("ch2: got %q, want %q", got, event2)
		}
	case <-time.After(100 * time.Millisecond):
		t.Fatal("ch2: timed out waiting for event after ch1 unsubscribed")
	}

	broker.Unsubscribe(ch2)
}

func TestFormatSSE(t *testing.T) {
	got := string(formatSSE("start", `{"step":"situation_assessment"}`))
	want := "event: start\ndata: {\"step\":\"situation_assessment\"}\n\n"
	if got != want {
		t.Errorf("formatSSE: got %q, want %q", got, want)
	}
}

func TestBrokerSlowSubscriber(t *testing.T) {
	broker := NewBroker(testLogger())

	// Create a slow subscriber (small buffer that we won't read from).
	slow := broker.Subscribe()
	fast := broker.Subscribe()

	// Fill the slow subscriber's buffer.
	for range 65 {
		broker.broadcast(formatSSE("test", "fill"))
	}

	// Fast subscriber should still get events.
	broker.broadcast(formatSSE("test", "after-fill"))

	select {
	case <-fast:
	case <-time.After(100 * time.Millisecond):
		t.Fatal("fast subscriber should receive events even when slow subscriber is blocked")
	}

	broker.Unsubscribe(slow)
	broker.Unsubscribe(fast)
}

func TestBrokerObserveAndStart(t *testing.T) {
	broker := NewBroker(testLogger())
	ch := broker.Subscribe()
	defer broker.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		broker.Start(ctx)
		close(done)
	}()

	broker.Observe(exploration.Change{
		Action: "start",
		State:  exploration.State{Step: exploration.StepSituationAssessment, System: "car_running"},
	})

	select {
	case got := <-ch:
		s := string(got)
		if !strings.HasPrefix(s, "event: start\ndata: ") {
			t.Errorf("unexpected event: %q", s)
		}
		if !strings.Contains(s, `"system":"car_running"`) {
			t.Errorf("event should carry the state: %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for observed change")
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}

func TestBrokerObserveNeverBlocks(t *testing.T) {
	broker := NewBroker(testLogger())

	// Nothing drains the queue; Observe must still return.
	finished := make(chan struct{})
	go func() {
		for range cap(broker.queue) + 10 {
			broker.Observe(exploration.Change{Action: "situation"})
		}
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("Observe blocked on a full queue")
	}
}

func TestBrokerStopClosesSubscribers(t *testing.T) {
	broker := NewBroker(testLogger())
	ch := broker.Subscribe()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		broker.Start(ctx)
		close(done)
	}()
	cancel()

	select {
	case _, ok := <-ch:
		if ok {
			t.Fatal("expected subscriber channel to be closed")
		}
	case <-time.After(time.Second):
		t.Fatal("subscriber channel still open after Start returned")
	}
	<-done

	if n := broker.Subscribers(); n != 0 {
		t.Errorf("subscribers: got %d, want 0", n)
	}
	// Unsubscribe after Close and a second Close must not panic.
	broker.Unsubscribe(ch)
	broker.Close()

	late := broker.Subscribe()
	if _, ok := <-late; ok {
		t.Error("Subscribe after Close should return a closed channel")
	}
	broker.Unsubscribe(late)
}
