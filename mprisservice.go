package main

import (
	"context"
	"playerbus/internal/mpris"
	"sync"
	"time"
)

const (
	EventMprisInit   = "mpris:init"
	EventMprisUpdate = "mpris:update"

	commandSendTimeout = 2 * time.Second
)

type Emitter func(eventName string, payload any)

// MprisService keeps the latest snapshot for the frontend and relays the
// player service's messages as events.
type MprisService struct {
	players *mpris.Service

	mu     sync.RWMutex
	latest mpris.Snapshot
	emit   Emitter
}

func NewMprisService(players *mpris.Service) *MprisService {
	return &MprisService{
		players: players,
		latest:  mpris.Snapshot{Players: []mpris.PlayerState{}},
	}
}

func (s *MprisService) setEmitter(emitter Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emitter
}

// forward consumes messages until the updates channel closes.
func (s *MprisService) forward(updates <-chan mpris.Message) {
	for message := range updates {
		s.mu.Lock()
		s.latest = message.Snapshot
		emitter := s.emit
		s.mu.Unlock()

		if emitter == nil {
			continue
		}

		eventName := EventMprisUpdate
		if message.Kind == mpris.MessageInit {
			eventName = EventMprisInit
		}
		emitter(eventName, message.Snapshot)
	}
}

func (s *MprisService) GetSnapshot() mpris.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

func (s *MprisService) Status() mpris.Status {
	return s.players.Status()
}

func (s *MprisService) Previous(target string) error {
	return s.send(mpris.Command{Target: target, Kind: mpris.CommandPrevious})
}

func (s *MprisService) PlayPause(target string) error {
	return s.send(mpris.Command{Target: target, Kind: mpris.CommandPlayPause})
}

func (s *MprisService) Next(target string) error {
	return s.send(mpris.Command{Target: target, Kind: mpris.CommandNext})
}

func (s *MprisService) SetVolume(target string, volume float64) error {
	return s.send(mpris.Command{Target: target, Kind: mpris.CommandVolume, Volume: volume})
}

func (s *MprisService) send(command mpris.Command) error {
	ctx, cancel := context.WithTimeout(context.Background(), commandSendTimeout)
	defer cancel()
	return s.players.Send(ctx, command)
}
