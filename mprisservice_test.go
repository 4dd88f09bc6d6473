package main

import (
	"encoding/json"
	"playerbus/internal/mpris"
	"strings"
	"testing"
)

func TestForwardEmitsInitThenUpdates(t *testing.T) {
	t.Parallel()

	service := NewMprisService(nil)

	var events []string
	var generations []uint64
	service.setEmitter(func(eventName string, payload any) {
		events = append(events, eventName)
		generations = append(generations, payload.(mpris.Snapshot).Generation)
	})

	updates := make(chan mpris.Message, 3)
	updates <- mpris.Message{Kind: mpris.MessageInit, Snapshot: mpris.Snapshot{Generation: 1}}
	updates <- mpris.Message{Kind: mpris.MessageUpdate, Snapshot: mpris.Snapshot{Generation: 2}}
	updates <- mpris.Message{Kind: mpris.MessageUpdate, Snapshot: mpris.Snapshot{Generation: 3}}
	close(updates)

	service.forward(updates)

	if len(events) != 3 || events[0] != EventMprisInit || events[1] != EventMprisUpdate || events[2] != EventMprisUpdate {
		t.Fatalf("unexpected events %v", events)
	}
	if generations[2] != 3 {
		t.Fatalf("expected generations in order, got %v", generations)
	}
	if got := service.GetSnapshot().Generation; got != 3 {
		t.Fatalf("expected latest snapshot generation 3, got %d", got)
	}
}

func TestForwardWithoutEmitterKeepsLatest(t *testing.T) {
	t.Parallel()

	service := NewMprisService(nil)
	updates := make(chan mpris.Message, 1)
	updates <- mpris.Message{Kind: mpris.MessageInit, Snapshot: mpris.Snapshot{Generation: 7}}
	close(updates)

	service.forward(updates)

	if got := service.GetSnapshot().Generation; got != 7 {
		t.Fatalf("expected generation 7, got %d", got)
	}
}

func TestGetSnapshotBeforeInitHasEmptyPlayers(t *testing.T) {
	t.Parallel()

	service := NewMprisService(nil)

	body, err := json.Marshal(service.GetSnapshot())
	if err != nil {
		t.Fatalf("marshal snapshot: %v", err)
	}
	if !strings.Contains(string(body), `"players":[]`) {
		t.Fatalf("expected an empty players list, got %s", body)
	}
}
