package mpris

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
)

const defaultUpdateCapacity = 10

var ErrUnavailable = errors.New("player service is unavailable")

type MessageKind string

const (
	MessageInit   MessageKind = "init"
	MessageUpdate MessageKind = "update"
)

// Message is what subscribers receive: one Init, then Updates.
type Message struct {
	Kind     MessageKind
	Snapshot Snapshot
}

type Status string

const (
	StatusInit   Status = "init"
	StatusActive Status = "active"
	StatusError  Status = "error"
)

type Options struct {
	Dial   Dialer
	Prefix string
	// UpdateCapacity bounds the Updates channel; senders block when full.
	UpdateCapacity int
	// Ignored hides matching identities from discovery.
	Ignored func(name string) bool
	Logger  *slog.Logger
}

// Service discovers players, keeps their snapshot current and executes
// commands. Run drives it; Updates carries the results.
type Service struct {
	dial     Dialer
	prefix   string
	ignored  func(string) bool
	logger   *slog.Logger
	updates  chan Message
	commands chan Command
	refresh  chan struct{}

	status     atomic.Value
	generation uint64
}

func NewService(options Options) *Service {
	capacity := options.UpdateCapacity
	if capacity <= 0 {
		capacity = defaultUpdateCapacity
	}
	prefix := options.Prefix
	if prefix == "" {
		prefix = PlayerNamespacePrefix
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	service := &Service{
		dial:     options.Dial,
		prefix:   prefix,
		ignored:  options.Ignored,
		logger:   logger.With("service", "mpris"),
		updates:  make(chan Message, capacity),
		commands: make(chan Command, capacity),
		refresh:  make(chan struct{}, 1),
	}
	service.status.Store(StatusInit)

	return service
}

func (s *Service) Updates() <-chan Message {
	return s.updates
}

func (s *Service) Status() Status {
	return s.status.Load().(Status)
}

// Send queues command for the driver loop. The result arrives as an Update.
func (s *Service) Send(ctx context.Context, command Command) error {
	if err := command.Validate(); err != nil {
		return err
	}
	if s.Status() == StatusError {
		return ErrUnavailable
	}

	select {
	case s.commands <- command:
	case <-ctx.Done():
		return ctx.Err()
	}

	// The driver may have failed while the command was queued; it drains
	// the queue once in Error.
	if s.Status() == StatusError {
		return ErrUnavailable
	}
	return nil
}

// Refresh asks for a rediscovery pass, as if the endpoint set had changed.
func (s *Service) Refresh() {
	select {
	case s.refresh <- struct{}{}:
	default:
	}
}

type discoveryState interface {
	discoveryState()
}

type stateInit struct{}

type stateActive struct {
	bus      Bus
	names    []string
	snapshot Snapshot
}

type stateError struct{}

func (stateInit) discoveryState()   {}
func (stateActive) discoveryState() {}
func (stateError) discoveryState()  {}

// Run drives the discovery state machine until ctx is done, then closes the
// bus connection and the Updates channel.
func (s *Service) Run(ctx context.Context) {
	defer close(s.updates)

	var state discoveryState = stateInit{}
	for ctx.Err() == nil {
		state = s.step(ctx, state)
	}

	if active, ok := state.(stateActive); ok {
		if err := active.bus.Close(); err != nil {
			s.logger.Debug("closing bus connection failed", "error", err)
		}
	}
}

func (s *Service) step(ctx context.Context, state discoveryState) discoveryState {
	switch current := state.(type) {
	case stateInit:
		return s.initialize(ctx)
	case stateActive:
		return s.listen(ctx, current)
	default:
		s.status.Store(StatusError)
		s.dropCommands(ctx)
		return current
	}
}

// dropCommands discards commands queued for a driver that can no longer run
// them, until ctx is done.
func (s *Service) dropCommands(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case command := <-s.commands:
			s.logger.Warn("command dropped: player service is unavailable", "target", command.Target, "command", command.Kind)
		}
	}
}

func (s *Service) initialize(ctx context.Context) discoveryState {
	if s.dial == nil {
		s.logger.Error("no bus dialer configured")
		return s.fail()
	}

	bus, err := s.dial(ctx)
	if err != nil {
		s.logger.Error("failed to connect to session bus", "error", err)
		return s.fail()
	}

	names, err := discoverPlayers(ctx, bus, s.prefix, s.ignored)
	if err != nil {
		s.logger.Error("failed to initialize player service", "error", err)
		_ = bus.Close()
		return s.fail()
	}

	snapshot := BuildSnapshot(ctx, bus, names, s.logger)
	active := stateActive{bus: bus, names: names, snapshot: s.stamp(snapshot)}
	if !s.publish(ctx, MessageInit, active.snapshot) {
		return active
	}

	s.status.Store(StatusActive)
	s.logger.Info("player service initialized", "players", len(active.snapshot.Players))
	return active
}

func (s *Service) listen(ctx context.Context, state stateActive) discoveryState {
	stream, err := buildEventStream(ctx, state.bus, s.prefix, state.names, s.ignored, s.logger)
	if err != nil {
		s.logger.Error("failed to listen for player events", "error", err)
		_ = state.bus.Close()
		return s.fail()
	}
	defer stream.Close()

	s.logger.Debug("listening for player events", "sources", len(stream.Sources()))

	for {
		select {
		case <-ctx.Done():
			return state
		case <-s.refresh:
			if next, ok := s.rediscover(ctx, state); ok {
				return next
			}
		case command := <-s.commands:
			snapshot := Execute(ctx, state.snapshot, command, s.logger)
			state.snapshot = s.stamp(snapshot)
			if !s.publish(ctx, MessageUpdate, state.snapshot) {
				return state
			}
		case event, ok := <-stream.Events():
			if !ok {
				s.logger.Warn("player event stream ended, resubscribing")
				return state
			}
			s.logger.Debug("player event", "event", event)

			switch event {
			case EndpointSetChanged:
				if next, ok := s.rediscover(ctx, state); ok {
					return next
				}
			case MetadataChanged, VolumeChanged:
				state.snapshot = s.stamp(BuildSnapshot(ctx, state.bus, state.names, s.logger))
				if !s.publish(ctx, MessageUpdate, state.snapshot) {
					return state
				}
			}
		}
	}
}

// rediscover lists endpoints again and publishes a fresh snapshot. On
// failure the caller keeps consuming its current stream.
func (s *Service) rediscover(ctx context.Context, state stateActive) (stateActive, bool) {
	names, err := discoverPlayers(ctx, state.bus, s.prefix, s.ignored)
	if err != nil {
		s.logger.Error("failed to fetch player data", "error", err)
		return state, false
	}

	next := stateActive{
		bus:      state.bus,
		names:    names,
		snapshot: s.stamp(BuildSnapshot(ctx, state.bus, names, s.logger)),
	}
	s.publish(ctx, MessageUpdate, next.snapshot)
	return next, true
}

func (s *Service) fail() discoveryState {
	s.status.Store(StatusError)
	return stateError{}
}

func (s *Service) stamp(snapshot Snapshot) Snapshot {
	s.generation++
	snapshot.Generation = s.generation
	return snapshot
}

func (s *Service) publish(ctx context.Context, kind MessageKind, snapshot Snapshot) bool {
	select {
	case s.updates <- Message{Kind: kind, Snapshot: snapshot}:
		return true
	case <-ctx.Done():
		return false
	}
}
