package mpris

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
)

const (
	defaultCallTimeout = 3 * time.Second
	signalBufferSize   = 16
)

type sessionBus struct {
	conn    *dbus.Conn
	timeout time.Duration
	logger  *slog.Logger
}

// DialSessionBus returns a Dialer that opens a private session bus
// connection. Every call made through it is bounded by callTimeout.
func DialSessionBus(callTimeout time.Duration, logger *slog.Logger) Dialer {
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}

	return func(ctx context.Context) (Bus, error) {
		conn, err := dbus.ConnectSessionBus(dbus.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("connect session bus: %w", err)
		}
		if names := conn.Names(); len(names) > 0 {
			logger.Debug("session bus connected", "unique_name", names[0])
		}

		return &sessionBus{conn: conn, timeout: callTimeout, logger: logger}, nil
	}
}

func (b *sessionBus) ListNames(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var names []string
	if err := b.conn.BusObject().CallWithContext(ctx, methodListNames, 0).Store(&names); err != nil {
		return nil, fmt.Errorf("list bus names: %w", err)
	}

	return names, nil
}

func (b *sessionBus) ConnectPlayer(ctx context.Context, name string) (Player, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	var owner string
	if err := b.conn.BusObject().CallWithContext(ctx, methodGetNameOwner, 0, name).Store(&owner); err != nil {
		return nil, fmt.Errorf("resolve owner of %s: %w", name, err)
	}

	return &sessionPlayer{
		bus:   b,
		name:  name,
		owner: owner,
		obj:   b.conn.Object(name, playerPath),
	}, nil
}

func (b *sessionBus) SubscribeNameOwnerChanged(ctx context.Context, prefix string) (Subscription, error) {
	return b.subscribe(
		ctx,
		nameOwnerMatch(prefix),
		dbus.WithMatchSender(busName),
		dbus.WithMatchInterface(busInterface),
		dbus.WithMatchMember(memberNameOwnerChanged),
		dbus.WithMatchArg0Namespace(strings.TrimSuffix(prefix, ".")),
	)
}

func (b *sessionBus) Close() error {
	return b.conn.Close()
}

func (b *sessionBus) subscribe(ctx context.Context, match func(*dbus.Signal) bool, options ...dbus.MatchOption) (Subscription, error) {
	ctx, cancel := context.WithTimeout(ctx, b.timeout)
	defer cancel()

	if err := b.conn.AddMatchSignalContext(ctx, options...); err != nil {
		return nil, fmt.Errorf("add match rule: %w", err)
	}

	sub := &signalSubscription{
		bus:           b,
		options:       options,
		signals:       make(chan *dbus.Signal, signalBufferSize),
		notifications: make(chan struct{}, 1),
		done:          make(chan struct{}),
	}
	b.conn.Signal(sub.signals)

	sub.wg.Add(1)
	go sub.run(match)

	return sub, nil
}

type signalSubscription struct {
	bus           *sessionBus
	options       []dbus.MatchOption
	signals       chan *dbus.Signal
	notifications chan struct{}
	done          chan struct{}
	closeOnce     sync.Once
	wg            sync.WaitGroup
}

func (s *signalSubscription) Notifications() <-chan struct{} {
	return s.notifications
}

func (s *signalSubscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		s.bus.conn.RemoveSignal(s.signals)
		s.wg.Wait()

		if !s.bus.conn.Connected() {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), s.bus.timeout)
		defer cancel()
		if removeErr := s.bus.conn.RemoveMatchSignalContext(ctx, s.options...); removeErr != nil {
			err = fmt.Errorf("remove match rule: %w", removeErr)
		}
	})

	return err
}

func (s *signalSubscription) run(match func(*dbus.Signal) bool) {
	defer s.wg.Done()
	defer close(s.notifications)

	for {
		select {
		case <-s.done:
			return
		case signal, ok := <-s.signals:
			if !ok {
				return
			}
			if signal == nil || !match(signal) {
				continue
			}

			// A pending notification already forces a re-read, so
			// coalesce instead of blocking the signal channel.
			select {
			case s.notifications <- struct{}{}:
			default:
			}
		}
	}
}

type sessionPlayer struct {
	bus   *sessionBus
	name  string
	owner string
	obj   dbus.BusObject
}

func (p *sessionPlayer) Name() string {
	return p.name
}

func (p *sessionPlayer) Metadata(ctx context.Context) (map[string]dbus.Variant, error) {
	value, err := p.getProperty(ctx, propertyMetadata)
	if err != nil {
		return nil, err
	}

	metadata, ok := value.Value().(map[string]dbus.Variant)
	if !ok {
		return nil, fmt.Errorf("metadata of %s has signature %s", p.name, value.Signature())
	}

	return metadata, nil
}

func (p *sessionPlayer) Volume(ctx context.Context) (float64, error) {
	value, err := p.getProperty(ctx, propertyVolume)
	if err != nil {
		return 0, err
	}

	volume, ok := value.Value().(float64)
	if !ok {
		return 0, fmt.Errorf("volume of %s has signature %s", p.name, value.Signature())
	}

	return volume, nil
}

func (p *sessionPlayer) SetVolume(ctx context.Context, volume float64) error {
	ctx, cancel := context.WithTimeout(ctx, p.bus.timeout)
	defer cancel()

	call := p.obj.CallWithContext(ctx, methodPropertiesSet, 0, playerInterface, propertyVolume, dbus.MakeVariant(volume))
	if call.Err != nil {
		return fmt.Errorf("set volume of %s: %w", p.name, call.Err)
	}

	return nil
}

func (p *sessionPlayer) Previous(ctx context.Context) error {
	return p.call(ctx, methodPrevious)
}

func (p *sessionPlayer) PlayPause(ctx context.Context) error {
	return p.call(ctx, methodPlayPause)
}

func (p *sessionPlayer) Next(ctx context.Context) error {
	return p.call(ctx, methodNext)
}

func (p *sessionPlayer) SubscribeMetadataChanged(ctx context.Context) (Subscription, error) {
	return p.subscribeProperty(ctx, propertyMetadata)
}

func (p *sessionPlayer) SubscribeVolumeChanged(ctx context.Context) (Subscription, error) {
	return p.subscribeProperty(ctx, propertyVolume)
}

func (p *sessionPlayer) subscribeProperty(ctx context.Context, property string) (Subscription, error) {
	sub, err := p.bus.subscribe(
		ctx,
		propertiesMatch(p.owner, property),
		dbus.WithMatchSender(p.owner),
		dbus.WithMatchObjectPath(playerPath),
		dbus.WithMatchInterface(propertiesInterface),
		dbus.WithMatchMember(memberPropertiesChanged),
		dbus.WithMatchArg(0, playerInterface),
	)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s changes of %s: %w", strings.ToLower(property), p.name, err)
	}

	return sub, nil
}

func (p *sessionPlayer) getProperty(ctx context.Context, property string) (dbus.Variant, error) {
	ctx, cancel := context.WithTimeout(ctx, p.bus.timeout)
	defer cancel()

	var value dbus.Variant
	if err := p.obj.CallWithContext(ctx, methodPropertiesGet, 0, playerInterface, property).Store(&value); err != nil {
		return dbus.Variant{}, fmt.Errorf("read %s of %s: %w", strings.ToLower(property), p.name, err)
	}

	return value, nil
}

func (p *sessionPlayer) call(ctx context.Context, method string) error {
	ctx, cancel := context.WithTimeout(ctx, p.bus.timeout)
	defer cancel()

	if call := p.obj.CallWithContext(ctx, method, 0); call.Err != nil {
		return fmt.Errorf("call %s on %s: %w", method, p.name, call.Err)
	}

	return nil
}

// nameOwnerMatch accepts NameOwnerChanged signals for names under prefix.
func nameOwnerMatch(prefix string) func(*dbus.Signal) bool {
	return func(signal *dbus.Signal) bool {
		if signal.Name != signalNameOwnerChanged || len(signal.Body) == 0 {
			return false
		}
		name, ok := signal.Body[0].(string)
		return ok && strings.HasPrefix(name, prefix)
	}
}

// propertiesMatch accepts PropertiesChanged signals from owner's player
// object that touch property.
func propertiesMatch(owner string, property string) func(*dbus.Signal) bool {
	return func(signal *dbus.Signal) bool {
		if signal.Sender != owner || signal.Path != playerPath || signal.Name != signalPropertiesChanged {
			return false
		}
		return propertyTouched(signal.Body, property)
	}
}

// propertyTouched reports whether a PropertiesChanged body for the player
// interface changed or invalidated property.
func propertyTouched(body []any, property string) bool {
	if len(body) < 2 {
		return false
	}
	if iface, ok := body[0].(string); !ok || iface != playerInterface {
		return false
	}

	if changed, ok := body[1].(map[string]dbus.Variant); ok {
		if _, found := changed[property]; found {
			return true
		}
	}

	if len(body) >= 3 {
		if invalidated, ok := body[2].([]string); ok && slices.Contains(invalidated, property) {
			return true
		}
	}

	return false
}
