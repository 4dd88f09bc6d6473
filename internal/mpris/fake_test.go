package mpris

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/godbus/dbus/v5"
)

const testTimeout = 2 * time.Second

var errFakeNoOwner = errors.New("name has no owner")

type fakeBus struct {
	mu                sync.Mutex
	names             []string
	listErr           error
	players           map[string]*fakePlayer
	ownerSubs         []*fakeSubscription
	ownerSubscribeErr func(call int) error
	closed            bool
}

func newFakeBus(players ...*fakePlayer) *fakeBus {
	bus := &fakeBus{players: make(map[string]*fakePlayer)}
	for _, player := range players {
		bus.names = append(bus.names, player.name)
		bus.players[player.name] = player
	}
	bus.names = append(bus.names, "org.freedesktop.Notifications", ":1.7")
	return bus
}

func (b *fakeBus) dialer() Dialer {
	return func(context.Context) (Bus, error) {
		return b, nil
	}
}

func (b *fakeBus) ListNames(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.listErr != nil {
		return nil, b.listErr
	}
	return slices.Clone(b.names), nil
}

func (b *fakeBus) ConnectPlayer(_ context.Context, name string) (Player, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	player, ok := b.players[name]
	if !ok || player.connectErr != nil {
		if ok {
			return nil, player.connectErr
		}
		return nil, fmt.Errorf("resolve owner of %s: %w", name, errFakeNoOwner)
	}
	return player, nil
}

func (b *fakeBus) SubscribeNameOwnerChanged(context.Context, string) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	call := len(b.ownerSubs) + 1
	if b.ownerSubscribeErr != nil {
		if err := b.ownerSubscribeErr(call); err != nil {
			return nil, err
		}
	}

	sub := newFakeSubscription()
	b.ownerSubs = append(b.ownerSubs, sub)
	return sub, nil
}

func (b *fakeBus) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
	return nil
}

func (b *fakeBus) addPlayer(player *fakePlayer) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.names = append(b.names, player.name)
	b.players[player.name] = player
}

func (b *fakeBus) ownerSubscriptions() []*fakeSubscription {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ownerSubs)
}

func (b *fakeBus) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

type fakePlayer struct {
	mu          sync.Mutex
	name        string
	connectErr  error
	metadata    map[string]dbus.Variant
	metadataErr error
	onMetadata  func() error
	volume      float64
	volumeErr   error
	commandErr  error
	calls       []string
	setVolumes  []float64
	metaSubs    []*fakeSubscription
	volumeSubs  []*fakeSubscription
}

func newFakePlayer(suffix string) *fakePlayer {
	return &fakePlayer{name: PlayerNamespacePrefix + suffix, volume: 1}
}

func (p *fakePlayer) withTrack(title string, artists ...string) *fakePlayer {
	p.metadata = map[string]dbus.Variant{
		metadataTitle:  dbus.MakeVariant(title),
		metadataArtist: dbus.MakeVariant(artists),
	}
	return p
}

func (p *fakePlayer) withVolume(volume float64) *fakePlayer {
	p.volume = volume
	return p
}

func (p *fakePlayer) Name() string {
	return p.name
}

func (p *fakePlayer) Metadata(context.Context) (map[string]dbus.Variant, error) {
	if p.onMetadata != nil {
		if err := p.onMetadata(); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.metadataErr != nil {
		return nil, p.metadataErr
	}
	if p.metadata == nil {
		return map[string]dbus.Variant{}, nil
	}
	return p.metadata, nil
}

func (p *fakePlayer) Volume(context.Context) (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.volumeErr != nil {
		return 0, p.volumeErr
	}
	return p.volume, nil
}

func (p *fakePlayer) SetVolume(_ context.Context, volume float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.setVolumes = append(p.setVolumes, volume)
	if p.commandErr != nil {
		return p.commandErr
	}
	p.volume = volume
	return nil
}

func (p *fakePlayer) Previous(context.Context) error {
	return p.record("previous")
}

func (p *fakePlayer) PlayPause(context.Context) error {
	return p.record("play_pause")
}

func (p *fakePlayer) Next(context.Context) error {
	return p.record("next")
}

func (p *fakePlayer) SubscribeMetadataChanged(context.Context) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := newFakeSubscription()
	p.metaSubs = append(p.metaSubs, sub)
	return sub, nil
}

func (p *fakePlayer) SubscribeVolumeChanged(context.Context) (Subscription, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	sub := newFakeSubscription()
	p.volumeSubs = append(p.volumeSubs, sub)
	return sub, nil
}

func (p *fakePlayer) record(call string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, call)
	return p.commandErr
}

func (p *fakePlayer) recordedCalls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *fakePlayer) recordedVolumes() []float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.setVolumes)
}

func (p *fakePlayer) metadataSubscriptions() []*fakeSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.metaSubs)
}

func (p *fakePlayer) volumeSubscriptions() []*fakeSubscription {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.volumeSubs)
}

type fakeSubscription struct {
	ch        chan struct{}
	done      chan struct{}
	closeOnce sync.Once
	endOnce   sync.Once
}

func newFakeSubscription() *fakeSubscription {
	return &fakeSubscription{
		ch:   make(chan struct{}, 8),
		done: make(chan struct{}),
	}
}

func (s *fakeSubscription) Notifications() <-chan struct{} {
	return s.ch
}

func (s *fakeSubscription) Close() error {
	s.closeOnce.Do(func() { close(s.done) })
	return nil
}

func (s *fakeSubscription) fire() {
	select {
	case s.ch <- struct{}{}:
	case <-s.done:
	}
}

// end simulates the connection going away.
func (s *fakeSubscription) end() {
	s.endOnce.Do(func() { close(s.ch) })
}

func (s *fakeSubscription) isClosed() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func startServiceForTest(t *testing.T, options Options) (*Service, context.CancelFunc) {
	t.Helper()

	if options.Logger == nil {
		options.Logger = discardLogger()
	}

	service := NewService(options)
	ctx, cancel := context.WithCancel(context.Background())
	go service.Run(ctx)
	t.Cleanup(cancel)

	return service, cancel
}

func waitMessage(t *testing.T, updates <-chan Message) Message {
	t.Helper()

	select {
	case message, ok := <-updates:
		if !ok {
			t.Fatal("updates channel closed")
		}
		return message
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for message")
	}
	return Message{}
}

func expectNoMessage(t *testing.T, updates <-chan Message, wait time.Duration) {
	t.Helper()

	select {
	case message, ok := <-updates:
		if ok {
			t.Fatalf("unexpected %s message with %d players", message.Kind, len(message.Snapshot.Players))
		}
	case <-time.After(wait):
	}
}

func waitFor(t *testing.T, what string, condition func() bool) {
	t.Helper()

	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func playerNames(snapshot Snapshot) []string {
	names := make([]string, 0, len(snapshot.Players))
	for _, player := range snapshot.Players {
		names = append(names, player.Service)
	}
	return names
}
