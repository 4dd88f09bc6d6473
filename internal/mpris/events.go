package mpris

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/samber/lo"
)

// Event carries no payload: consumers re-read state instead of trusting it.
type Event int

const (
	EndpointSetChanged Event = iota
	MetadataChanged
	VolumeChanged
)

func (e Event) String() string {
	switch e {
	case EndpointSetChanged:
		return "endpoint-set-changed"
	case MetadataChanged:
		return "metadata-changed"
	case VolumeChanged:
		return "volume-changed"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

type source struct {
	name  string
	event Event
	sub   Subscription
}

// Stream merges named notification sources into one Event channel,
// first available wins. It is built for one endpoint set and discarded
// when that set changes.
type Stream struct {
	events  chan Event
	sources []source
	stop    chan struct{}
	started bool
	once    sync.Once
	wg      sync.WaitGroup
}

func newStream() *Stream {
	return &Stream{
		events: make(chan Event),
		stop:   make(chan struct{}),
	}
}

// Add registers sub under name. Sources must be added before Start.
func (s *Stream) Add(name string, event Event, sub Subscription) {
	if s.started {
		panic("mpris: source added to a started stream")
	}
	s.sources = append(s.sources, source{name: name, event: event, sub: sub})
}

// Inject adds a source that fires event exactly once.
func (s *Stream) Inject(name string, event Event) {
	s.Add(name, event, firedOnce())
}

// Sources lists the registered source names.
func (s *Stream) Sources() []string {
	return lo.Map(s.sources, func(src source, _ int) string { return src.name })
}

// Start begins forwarding. The Events channel is closed once every source
// has ended or the stream is closed.
func (s *Stream) Start() {
	if s.started {
		return
	}
	s.started = true

	for _, src := range s.sources {
		s.wg.Add(1)
		go s.forward(src)
	}

	go func() {
		s.wg.Wait()
		close(s.events)
	}()
}

func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close stops forwarding and closes every source subscription.
func (s *Stream) Close() {
	s.once.Do(func() {
		close(s.stop)
		for _, src := range s.sources {
			_ = src.sub.Close()
		}
		if !s.started {
			close(s.events)
		}
	})
}

func (s *Stream) forward(src source) {
	defer s.wg.Done()

	notifications := src.sub.Notifications()
	for {
		select {
		case <-s.stop:
			return
		case _, ok := <-notifications:
			if !ok {
				return
			}
			select {
			case s.events <- src.event:
			case <-s.stop:
				return
			}
		}
	}
}

// buildEventStream subscribes to endpoint set changes and to the metadata
// and volume notifications of every known endpoint.
func buildEventStream(ctx context.Context, bus Bus, prefix string, known []string, ignored func(string) bool, logger *slog.Logger) (*Stream, error) {
	stream := newStream()

	owners, err := bus.SubscribeNameOwnerChanged(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("subscribe name owner changes: %w", err)
	}
	stream.Add("name-owner", EndpointSetChanged, owners)

	current, err := discoverPlayers(ctx, bus, prefix, ignored)
	if err != nil {
		stream.Close()
		return nil, err
	}
	if !sameNames(current, known) {
		logger.Debug("endpoint set drifted during subscription", "known", known, "current", current)
		stream.Inject("resync", EndpointSetChanged)
	}

	for _, name := range known {
		player, err := bus.ConnectPlayer(ctx, name)
		if err != nil {
			logger.Error("failed to connect player proxy", "service", name, "error", err)
			continue
		}

		if sub, err := player.SubscribeMetadataChanged(ctx); err != nil {
			logger.Warn("metadata notifications unavailable", "service", name, "error", err)
		} else {
			stream.Add(name+"#metadata", MetadataChanged, sub)
		}

		if sub, err := player.SubscribeVolumeChanged(ctx); err != nil {
			logger.Warn("volume notifications unavailable", "service", name, "error", err)
		} else {
			stream.Add(name+"#volume", VolumeChanged, sub)
		}
	}

	stream.Start()
	return stream, nil
}

// discoverPlayers lists bus names in the player namespace, minus ignored ones.
func discoverPlayers(ctx context.Context, bus Bus, prefix string, ignored func(string) bool) ([]string, error) {
	names, err := bus.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover players: %w", err)
	}

	players := lo.Filter(names, func(name string, _ int) bool {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		return ignored == nil || !ignored(name)
	})

	return lo.Uniq(players), nil
}

func sameNames(left []string, right []string) bool {
	if len(left) != len(right) {
		return false
	}

	a := slices.Clone(left)
	b := slices.Clone(right)
	slices.Sort(a)
	slices.Sort(b)
	return slices.Equal(a, b)
}

type onceSubscription struct {
	ch chan struct{}
}

func firedOnce() Subscription {
	ch := make(chan struct{}, 1)
	ch <- struct{}{}
	close(ch)
	return &onceSubscription{ch: ch}
}

func (s *onceSubscription) Notifications() <-chan struct{} {
	return s.ch
}

func (s *onceSubscription) Close() error {
	return nil
}
