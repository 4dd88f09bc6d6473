package settings

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"playerbus/internal/db"
	"testing"
)

func TestIgnoredPlayersRoundTrip(t *testing.T) {
	t.Parallel()

	repo, _ := newIgnoredRepositoryForTest(t)
	ctx := context.Background()

	added, err := repo.Add(ctx, "  org.mpris.MediaPlayer2.spotify ")
	if err != nil {
		t.Fatalf("add ignored player: %v", err)
	}
	if added.Name != "org.mpris.MediaPlayer2.spotify" || added.CreatedAt == "" {
		t.Fatalf("unexpected ignored player %+v", added)
	}
	if !repo.IsIgnored(added.Name) {
		t.Fatalf("expected %s to be ignored", added.Name)
	}

	if _, err := repo.Add(ctx, added.Name); err != nil {
		t.Fatalf("re-add ignored player: %v", err)
	}
	if _, err := repo.Add(ctx, "org.mpris.MediaPlayer2.firefox"); err != nil {
		t.Fatalf("add second ignored player: %v", err)
	}

	players, err := repo.List(ctx)
	if err != nil {
		t.Fatalf("list ignored players: %v", err)
	}
	if len(players) != 2 || players[0].Name != "org.mpris.MediaPlayer2.firefox" {
		t.Fatalf("expected two players sorted by name, got %+v", players)
	}

	if err := repo.Delete(ctx, added.Name); err != nil {
		t.Fatalf("delete ignored player: %v", err)
	}
	if repo.IsIgnored(added.Name) {
		t.Fatalf("expected %s to be visible again", added.Name)
	}
	if err := repo.Delete(ctx, added.Name); !errors.Is(err, ErrIgnoredPlayerNotFound) {
		t.Fatalf("expected ErrIgnoredPlayerNotFound, got %v", err)
	}
}

func TestIgnoredPlayersLoadFromDatabase(t *testing.T) {
	t.Parallel()

	repo, database := newIgnoredRepositoryForTest(t)
	ctx := context.Background()

	if _, err := repo.Add(ctx, "org.mpris.MediaPlayer2.vlc"); err != nil {
		t.Fatalf("add ignored player: %v", err)
	}

	reopened := NewIgnoredPlayerRepository(database)
	if reopened.IsIgnored("org.mpris.MediaPlayer2.vlc") {
		t.Fatal("expected an empty set before Load")
	}
	if err := reopened.Load(ctx); err != nil {
		t.Fatalf("load ignored players: %v", err)
	}
	if !reopened.IsIgnored("org.mpris.MediaPlayer2.vlc") {
		t.Fatal("expected loaded player to be ignored")
	}
}

func TestIgnoredPlayersRejectsBlankName(t *testing.T) {
	t.Parallel()

	repo, _ := newIgnoredRepositoryForTest(t)
	if _, err := repo.Add(context.Background(), "   "); err == nil {
		t.Fatal("expected blank name to be rejected")
	}
}

func newIgnoredRepositoryForTest(t *testing.T) (*IgnoredPlayerRepository, *sql.DB) {
	t.Helper()

	database, _, err := db.Bootstrap(context.Background(), filepath.Join(t.TempDir(), "settings.db"))
	if err != nil {
		t.Fatalf("bootstrap db: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	return NewIgnoredPlayerRepository(database), database
}
