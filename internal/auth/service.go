package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/repositories"
	"github.com/desertthunder/setlist/internal/shared"
)

// RegisterInput is the body of a registration request.
type RegisterInput struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput is the body of a login request.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Result is returned by register and login.
type Result struct {
	Token string            `json:"token"`
	User  models.PublicUser `json:"user"`
}

// Service implements registration, login and bearer token resolution.
type Service struct {
	users  repositories.UserStore
	tokens repositories.TokenStore
	hasher Hasher
	issuer TokenIssuer
	logger *log.Logger
}

// NewService creates an auth service. tokens may be nil, in which case resolved identities
// never carry a Spotify token.
func NewService(users repositories.UserStore, tokens repositories.TokenStore, hasher Hasher, issuer TokenIssuer, logger *log.Logger) *Service {
	return &Service{
		users:  users,
		tokens: tokens,
		hasher: hasher,
		issuer: issuer,
		logger: shared.WithLogger(logger, "component", "auth"),
	}
}

// Register creates an account and returns a token for it.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*Result, error) {
	if err := models.ValidatePassword(in.Password); err != nil {
		return nil, err
	}

	user := models.NewUser(in.Username, in.Email, "")
	if err := user.Validate(); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, user.Username, user.Email)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}
	if exists {
		return nil, fmt.Errorf("%w: user already exists", shared.ErrConflict)
	}

	digest, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}
	user.PasswordHash = digest

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, shared.ErrConflict) {
			return nil, fmt.Errorf("%w: user already exists", shared.ErrConflict)
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}

	s.logger.Info("registered user", "user_id", user.ID, "username", user.Username)
	return s.result(user)
}

// Login verifies credentials. An unknown email and a wrong password fail identically.
func (s *Service) Login(ctx context.Context, in LoginInput) (*Result, error) {
	email := models.NormalizeEmail(in.Email)
	if email == "" || in.Password == "" {
		return nil, shared.ErrInvalidCredentials
	}

	user, err := s.users.FindByEmail(ctx, email)
	if errors.Is(err, shared.ErrNotFound) {
		return nil, shared.ErrInvalidCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}

	if !s.hasher.Verify(in.Password, user.PasswordHash) {
		return nil, shared.ErrInvalidCredentials
	}

	return s.result(user)
}

// ListUsers returns every user in redacted form. The caller must be authenticated.
func (s *Service) ListUsers(ctx context.Context, id models.Identity) ([]models.PublicUser, error) {
	if id.Empty() {
		return nil, shared.ErrUnauthorized
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}

	public := make([]models.PublicUser, 0, len(users))
	for _, u := range users {
		public = append(public, u.Public())
	}
	return public, nil
}

// Resolve turns a raw bearer token into the caller's [models.Identity].
//
// Every failure is reported as [shared.ErrUnauthorized] so the guard cannot leak which check failed.
func (s *Service) Resolve(ctx context.Context, token string) (models.Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return models.Identity{}, fmt.Errorf("%w: missing token", shared.ErrUnauthorized)
	}

	claims, err := s.issuer.Parse(token)
	if err != nil {
		return models.Identity{}, err
	}

	user, err := s.users.Get(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, fmt.Errorf("%w: %v", shared.ErrUnauthorized, err)
	}

	id := models.Identity{UserID: user.ID, Username: user.Username}
	if s.tokens != nil {
		spotify, err := s.tokens.Get(ctx, user.ID)
		switch {
		case err == nil:
			id.Spotify = spotify
		case !errors.Is(err, shared.ErrNotFound):
			s.logger.Warn("failed to load spotify token", "user_id", user.ID, "error", err)
		}
	}

	return id, nil
}

func (s *Service) result(user *models.User) (*Result, error) {
	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrInternal, err)
	}
	return &Result{Token: token, User: user.Public()}, nil
}
