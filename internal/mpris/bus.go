package mpris

import (
	"context"

	"github.com/godbus/dbus/v5"
)

// Bus is the slice of the session bus the discovery loop depends on.
type Bus interface {
	ListNames(ctx context.Context) ([]string, error)
	ConnectPlayer(ctx context.Context, name string) (Player, error)
	SubscribeNameOwnerChanged(ctx context.Context, prefix string) (Subscription, error)
	Close() error
}

// Dialer opens a new bus connection.
type Dialer func(ctx context.Context) (Bus, error)

// Player is a typed handle to one endpoint. Handles are immutable and cheap;
// a snapshot generation owns the handles it was built with.
type Player interface {
	Name() string
	Metadata(ctx context.Context) (map[string]dbus.Variant, error)
	// Volume reports the native volume in [0,1].
	Volume(ctx context.Context) (float64, error)
	SetVolume(ctx context.Context, volume float64) error
	Previous(ctx context.Context) error
	PlayPause(ctx context.Context) error
	Next(ctx context.Context) error
	SubscribeMetadataChanged(ctx context.Context) (Subscription, error)
	SubscribeVolumeChanged(ctx context.Context) (Subscription, error)
}

// Subscription delivers one value per observed notification. The channel is
// closed when the underlying connection goes away.
type Subscription interface {
	Notifications() <-chan struct{}
	Close() error
}
