package mpris

import (
	"context"
	"log/slog"
	"sync"

	"github.com/samber/lo"
)

// PlayerState is one endpoint as seen by a single snapshot generation.
type PlayerState struct {
	Service  string    `json:"service"`
	Metadata *Metadata `json:"metadata,omitempty"`
	Display  string    `json:"display"`
	// Volume is a percentage in [0,100].
	Volume *float64 `json:"volume,omitempty"`

	proxy Player
}

// Snapshot is an immutable view of all reachable players. A new value
// replaces the previous one on every change; it is never mutated.
type Snapshot struct {
	Generation uint64        `json:"generation"`
	Players    []PlayerState `json:"players"`

	bus   Bus
	names []string
}

// Find returns the entry for service, if the snapshot has one.
func (s Snapshot) Find(service string) (PlayerState, bool) {
	return lo.Find(s.Players, func(player PlayerState) bool {
		return player.Service == service
	})
}

// Names returns the identities this snapshot was built from.
func (s Snapshot) Names() []string {
	names := make([]string, len(s.names))
	copy(names, s.names)
	return names
}

// BuildSnapshot queries every named endpoint concurrently and returns the
// entries that could be connected, in input order. Read failures leave the
// corresponding field unknown.
func BuildSnapshot(ctx context.Context, bus Bus, names []string, logger *slog.Logger) Snapshot {
	if logger == nil {
		logger = slog.Default()
	}

	results := make([]*PlayerState, len(names))

	var wg sync.WaitGroup
	for i, name := range names {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = queryPlayer(ctx, bus, name, logger)
		}()
	}
	wg.Wait()

	players := lo.FilterMap(results, func(player *PlayerState, _ int) (PlayerState, bool) {
		if player == nil {
			return PlayerState{}, false
		}
		return *player, true
	})

	return Snapshot{
		Players: players,
		bus:     bus,
		names:   append([]string(nil), names...),
	}
}

func queryPlayer(ctx context.Context, bus Bus, name string, logger *slog.Logger) *PlayerState {
	proxy, err := bus.ConnectPlayer(ctx, name)
	if err != nil {
		logger.Debug("player dropped from snapshot", "service", name, "error", err)
		return nil
	}

	state := &PlayerState{Service: name, proxy: proxy}

	if raw, err := proxy.Metadata(ctx); err == nil {
		metadata := ParseMetadata(raw)
		state.Metadata = &metadata
		state.Display = metadata.String()
	} else {
		logger.Debug("player metadata unavailable", "service", name, "error", err)
	}

	if volume, err := proxy.Volume(ctx); err == nil {
		percent := volume * 100
		state.Volume = &percent
	} else {
		logger.Debug("player volume unavailable", "service", name, "error", err)
	}

	return state
}
