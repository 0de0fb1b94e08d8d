package repositories

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"golang.org/x/oauth2"
)

// TokenRepository implements [TokenStore] on SQLite.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Save inserts or replaces the user's token
func (r *TokenRepository) Save(ctx context.Context, userID string, token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("cannot save empty token for user %s", userID)
	}

	query := `
		INSERT INTO spotify_tokens (user_id, access_token, token_type, refresh_token, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			token_type = excluded.token_type,
			refresh_token = CASE WHEN excluded.refresh_token = '' THEN spotify_tokens.refresh_token ELSE excluded.refresh_token END,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`

	var expiry sql.NullTime
	if !token.Expiry.IsZero() {
		expiry = sql.NullTime{Time: token.Expiry.UTC(), Valid: true}
	}

	tokenType := token.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	_, err := r.db.ExecContext(ctx, query, userID, token.AccessToken, tokenType, token.RefreshToken, expiry, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to save spotify token: %w", err)
	}
	return nil
}

// Get retrieves the user's token
func (r *TokenRepository) Get(ctx context.Context, userID string) (*oauth2.Token, error) {
	query := `SELECT access_token, token_type, refresh_token, expiry FROM spotify_tokens WHERE user_id = ?`

	var (
		token  oauth2.Token
		expiry sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, query, userID).Scan(&token.AccessToken, &token.TokenType, &token.RefreshToken, &expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound("spotify token for user", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query spotify token: %w", err)
	}

	if expiry.Valid {
		token.Expiry = expiry.Time
	}
	return &token, nil
}

// Delete removes the user's token. Deleting an absent token is not an error.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM spotify_tokens WHERE user_id = ?`, userID); err != nil {
		return fmt.Errorf("failed to delete spotify token: %w", err)
	}
	return nil
}
