// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"net/http"
	"os"
	"sync"
	"testing"

	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
)

// NewTestDB creates an in-memory SQLite database with migrations applied.
//
// The pool is pinned to one connection: each ":memory:" connection is a separate database.
func NewTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	db.SetMaxOpenConns(1)

	if err := shared.RunMigrations(db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

// FlakyUserStore wraps a [repositories.UserStore] and fails the next N playlist reference writes.
type FlakyUserStore struct {
	repositories.UserStore

	mu        sync.Mutex
	addFails  int
	dropFails int
	Calls     int
}

// NewFlakyUserStore fails the first addFails AddPlaylistRef calls and the first dropFails
// RemovePlaylistRef calls.
func NewFlakyUserStore(inner repositories.UserStore, addFails, dropFails int) *FlakyUserStore {
	return &FlakyUserStore{UserStore: inner, addFails: addFails, dropFails: dropFails}
}

func (f *FlakyUserStore) AddPlaylistRef(ctx context.Context, userID, playlistID string) error {
	f.mu.Lock()
	f.Calls++
	fail := f.addFails > 0
	if fail {
		f.addFails--
	}
	f.mu.Unlock()

	if fail {
		return errors.New("reference write failed")
	}
	return f.UserStore.AddPlaylistRef(ctx, userID, playlistID)
}

func (f *FlakyUserStore) RemovePlaylistRef(ctx context.Context, userID, playlistID string) error {
	f.mu.Lock()
	f.Calls++
	fail := f.dropFails > 0
	if fail {
		f.dropFails--
	}
	f.mu.Unlock()

	if fail {
		return errors.New("reference write failed")
	}
	return f.UserStore.RemovePlaylistRef(ctx, userID, playlistID)
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

var _ io.Writer = (*FWriter)(nil)

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
