package mpris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
)

var ErrUnknownCommand = errors.New("unknown player command")

type CommandKind string

const (
	CommandPrevious  CommandKind = "prev"
	CommandPlayPause CommandKind = "play_pause"
	CommandNext      CommandKind = "next"
	CommandVolume    CommandKind = "volume"
)

// Command targets one player. Volume is a percentage and is only read for
// CommandVolume.
type Command struct {
	Target string      `json:"target"`
	Kind   CommandKind `json:"kind"`
	Volume float64     `json:"volume,omitempty"`
}

func (c Command) Validate() error {
	switch c.Kind {
	case CommandPrevious, CommandPlayPause, CommandNext:
		return nil
	case CommandVolume:
		if math.IsNaN(c.Volume) {
			return errors.New("volume is not a number")
		}
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, c.Kind)
	}
}

// Execute runs command against the player it targets and returns the
// snapshot to republish. An unknown target leaves snapshot untouched.
// Otherwise the snapshot is rebuilt over the same identities, whether or
// not the player call succeeded.
func Execute(ctx context.Context, snapshot Snapshot, command Command, logger *slog.Logger) Snapshot {
	if logger == nil {
		logger = slog.Default()
	}

	player, ok := snapshot.Find(command.Target)
	if !ok || player.proxy == nil {
		logger.Warn("command ignored: unknown target", "target", command.Target, "command", command.Kind)
		return snapshot
	}

	if err := dispatch(ctx, player.proxy, command); err != nil {
		logger.Error("player command failed", "target", command.Target, "command", command.Kind, "error", err)
	}

	return BuildSnapshot(ctx, snapshot.bus, snapshot.names, logger)
}

func dispatch(ctx context.Context, proxy Player, command Command) error {
	switch command.Kind {
	case CommandPrevious:
		return proxy.Previous(ctx)
	case CommandPlayPause:
		return proxy.PlayPause(ctx)
	case CommandNext:
		return proxy.Next(ctx)
	case CommandVolume:
		return proxy.SetVolume(ctx, clampPercent(command.Volume)/100)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommand, command.Kind)
	}
}

func clampPercent(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 100 {
		return 100
	}
	return value
}
