package main

import (
	"context"
	"errors"
	"fmt"
	"playerbus/internal/mpris"
	"playerbus/internal/settings"
	"strings"
)

type SettingsService struct {
	ignored *settings.IgnoredPlayerRepository
	players *mpris.Service
	prefix  string
}

func NewSettingsService(ignored *settings.IgnoredPlayerRepository, players *mpris.Service, prefix string) *SettingsService {
	return &SettingsService{ignored: ignored, players: players, prefix: prefix}
}

func (s *SettingsService) ListIgnoredPlayers() ([]settings.IgnoredPlayer, error) {
	return s.ignored.List(context.Background())
}

func (s *SettingsService) IgnorePlayer(name string) (settings.IgnoredPlayer, error) {
	name, err := s.normalizeName(name)
	if err != nil {
		return settings.IgnoredPlayer{}, err
	}

	player, err := s.ignored.Add(context.Background(), name)
	if err != nil {
		return settings.IgnoredPlayer{}, err
	}

	s.players.Refresh()
	return player, nil
}

func (s *SettingsService) UnignorePlayer(name string) error {
	err := s.ignored.Delete(context.Background(), strings.TrimSpace(name))
	if errors.Is(err, settings.ErrIgnoredPlayerNotFound) {
		return fmt.Errorf("player %s is not ignored", name)
	}
	if err != nil {
		return err
	}

	s.players.Refresh()
	return nil
}

func (s *SettingsService) normalizeName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", errors.New("player name is required")
	}
	if !strings.HasPrefix(trimmed, s.prefix) {
		return "", fmt.Errorf("player name must start with %s", s.prefix)
	}

	return trimmed, nil
}
