package main

import (
	"context"
	"playerbus/internal/mpris"
	"playerbus/internal/settings"
)

type StartupSnapshot struct {
	Status         mpris.Status             `json:"status"`
	Players        mpris.Snapshot           `json:"players"`
	IgnoredPlayers []settings.IgnoredPlayer `json:"ignoredPlayers"`
}

type BootstrapService struct {
	mpris   *MprisService
	ignored *settings.IgnoredPlayerRepository
}

func NewBootstrapService(mprisService *MprisService, ignored *settings.IgnoredPlayerRepository) *BootstrapService {
	return &BootstrapService{mpris: mprisService, ignored: ignored}
}

func (s *BootstrapService) GetInitialState() (StartupSnapshot, error) {
	ignored, err := s.ignored.List(context.Background())
	if err != nil {
		return StartupSnapshot{}, err
	}

	return StartupSnapshot{
		Status:         s.mpris.Status(),
		Players:        s.mpris.GetSnapshot(),
		IgnoredPlayers: ignored,
	}, nil
}
