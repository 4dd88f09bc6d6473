package settings

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var ErrIgnoredPlayerNotFound = errors.New("ignored player not found")

type IgnoredPlayer struct {
	Name      string `json:"name"`
	CreatedAt string `json:"createdAt"`
}

// IgnoredPlayerRepository stores bus names hidden from discovery. IsIgnored
// is served from memory so the discovery loop never touches the database.
type IgnoredPlayerRepository struct {
	db *sql.DB

	mu    sync.RWMutex
	names map[string]struct{}
}

func NewIgnoredPlayerRepository(database *sql.DB) *IgnoredPlayerRepository {
	return &IgnoredPlayerRepository{
		db:    database,
		names: make(map[string]struct{}),
	}
}

// Load fills the in-memory set from the database.
func (r *IgnoredPlayerRepository) Load(ctx context.Context) error {
	players, err := r.List(ctx)
	if err != nil {
		return err
	}

	names := make(map[string]struct{}, len(players))
	for _, player := range players {
		names[player.Name] = struct{}{}
	}

	r.mu.Lock()
	r.names = names
	r.mu.Unlock()
	return nil
}

func (r *IgnoredPlayerRepository) List(ctx context.Context) ([]IgnoredPlayer, error) {
	rows, err := r.db.QueryContext(
		ctx,
		"SELECT name, created_at FROM ignored_players ORDER BY name",
	)
	if err != nil {
		return nil, fmt.Errorf("list ignored players: %w", err)
	}
	defer rows.Close()

	players := make([]IgnoredPlayer, 0)
	for rows.Next() {
		var player IgnoredPlayer
		if err := rows.Scan(&player.Name, &player.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan ignored player row: %w", err)
		}
		players = append(players, player)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ignored player rows: %w", err)
	}

	return players, nil
}

// Add is idempotent: adding a name twice keeps the original row.
func (r *IgnoredPlayerRepository) Add(ctx context.Context, name string) (IgnoredPlayer, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return IgnoredPlayer{}, errors.New("player name is required")
	}

	if _, err := r.db.ExecContext(
		ctx,
		"INSERT INTO ignored_players(name) VALUES (?) ON CONFLICT(name) DO NOTHING",
		name,
	); err != nil {
		return IgnoredPlayer{}, fmt.Errorf("insert ignored player: %w", err)
	}

	r.mu.Lock()
	r.names[name] = struct{}{}
	r.mu.Unlock()

	return r.Get(ctx, name)
}

func (r *IgnoredPlayerRepository) Get(ctx context.Context, name string) (IgnoredPlayer, error) {
	var player IgnoredPlayer
	err := r.db.QueryRowContext(
		ctx,
		"SELECT name, created_at FROM ignored_players WHERE name = ?",
		name,
	).Scan(&player.Name, &player.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return IgnoredPlayer{}, ErrIgnoredPlayerNotFound
		}
		return IgnoredPlayer{}, fmt.Errorf("get ignored player %s: %w", name, err)
	}

	return player, nil
}

func (r *IgnoredPlayerRepository) Delete(ctx context.Context, name string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM ignored_players WHERE name = ?", name)
	if err != nil {
		return fmt.Errorf("delete ignored player %s: %w", name, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("read deleted ignored player count: %w", err)
	}
	if rowsAffected == 0 {
		return ErrIgnoredPlayerNotFound
	}

	r.mu.Lock()
	delete(r.names, name)
	r.mu.Unlock()
	return nil
}

func (r *IgnoredPlayerRepository) IsIgnored(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.names[name]
	return ok
}
