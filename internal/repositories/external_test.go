package repositories

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
	"golang.org/x/oauth2"
)

func setupMongo(t *testing.T) *MongoStores {
	t.Helper()

	uri := os.Getenv("SETLIST_MONGO_URI")
	if uri == "" {
		t.Skip("SETLIST_MONGO_URI not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := "setlist_test_" + shared.GenerateID()[:8]
	stores, err := NewMongoStores(ctx, uri, name)
	if err != nil {
		t.Fatalf("failed to connect to mongodb: %v", err)
	}

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = stores.client.Database(name).Drop(ctx)
		_ = stores.Close(ctx)
	})
	return stores
}

func TestMongoStores(t *testing.T) {
	stores := setupMongo(t)
	ctx := context.Background()

	user := createUser(t, stores.Users, "alice", "alice@example.com")
	if err := stores.Users.Create(ctx, models.NewUser("bobby", "ALICE@example.com", "x")); !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected ErrConflict on duplicate email, got %v", err)
	}

	p := models.NewPlaylist(user.ID, "Mix", "", false)
	if err := stores.Playlists.Create(ctx, p); err != nil {
		t.Fatalf("Create playlist failed: %v", err)
	}
	if err := stores.Users.AddPlaylistRef(ctx, user.ID, p.ID); err != nil {
		t.Fatalf("AddPlaylistRef failed: %v", err)
	}

	updated, err := stores.Playlists.Mutate(ctx, p.ID, user.ID, func(pl *models.Playlist) error {
		return pl.AddSong(testSong("a"))
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}
	if len(updated.Songs) != 1 {
		t.Errorf("expected 1 song, got %d", len(updated.Songs))
	}

	if _, err := stores.Playlists.Get(ctx, p.ID, "someone-else"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound for other owner, got %v", err)
	}

	if err := stores.Playlists.Delete(ctx, p.ID, user.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if err := stores.Users.RemovePlaylistRef(ctx, user.ID, p.ID); err != nil {
		t.Fatalf("RemovePlaylistRef failed: %v", err)
	}

	got, err := stores.Users.Get(ctx, user.ID)
	if err != nil {
		t.Fatalf("Get user failed: %v", err)
	}
	if len(got.PlaylistIDs) != 0 {
		t.Errorf("expected no refs, got %v", got.PlaylistIDs)
	}

	testTokenStore(t, stores.Tokens)
}

func TestRedisTokenStore(t *testing.T) {
	url := os.Getenv("SETLIST_REDIS_URL")
	if url == "" {
		t.Skip("SETLIST_REDIS_URL not set")
	}

	store, err := NewRedisTokenStore(context.Background(), url)
	if err != nil {
		t.Fatalf("failed to connect to redis: %v", err)
	}
	defer store.Close()

	testTokenStore(t, store)
}

func testTokenStore(t *testing.T, store TokenStore) {
	t.Helper()
	ctx := context.Background()
	userID := "token-user-" + shared.GenerateID()

	if _, err := store.Get(ctx, userID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	if err := store.Save(ctx, userID, &oauth2.Token{AccessToken: "a", RefreshToken: "r", Expiry: time.Now().Add(time.Hour)}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	if err := store.Save(ctx, userID, &oauth2.Token{AccessToken: "b"}); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got, err := store.Get(ctx, userID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got.AccessToken != "b" || got.RefreshToken != "r" {
		t.Errorf("unexpected token %+v", got)
	}

	if err := store.Delete(ctx, userID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
}
