package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jjudge-oj/palette/internal/store"
	"github.com/jjudge-oj/palette/types"
	"golang.org/x/crypto/bcrypt"
)

// UserRepository defines persistence operations for users.
type UserRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (types.User, error)
	GetByEmail(ctx context.Context, email string) (types.User, error)
	Create(ctx context.Context, user types.User) (types.User, error)
}

// AuthService registers and authenticates users and verifies their tokens.
type AuthService struct {
	repo     UserRepository
	tokens   *TokenManager
	log      *slog.Logger
	hashCost int
	// dummyHash is compared against when the email is unknown so that both
	// failure paths cost one bcrypt comparison.
	dummyHash []byte
}

func NewAuthService(repo UserRepository, tokens *TokenManager, log *slog.Logger) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	s := &AuthService{
		repo:     repo,
		tokens:   tokens,
		log:      log,
		hashCost: bcrypt.DefaultCost,
	}
	s.dummyHash, _ = bcrypt.GenerateFromPassword([]byte("palette-dummy-password"), s.hashCost)
	return s
}

// Register creates a user and returns a token for it.
func (s *AuthService) Register(ctx context.Context, email, password string) (string, error) {
	const op = "AuthService.Register"
	log := s.log.With(slog.String("op", op))

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		return "", ErrEmailTaken
	} else if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("%s: check email: %w", op, err)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", fmt.Errorf("%w: %w", ErrInvalidInput, ErrPasswordTooLong)
		}
		return "", fmt.Errorf("%s: hash password: %w", op, err)
	}

	user, err := s.repo.Create(ctx, types.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: string(hashed),
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return "", ErrEmailTaken
		}
		return "", fmt.Errorf("%s: create user: %w", op, err)
	}

	log.Info("user registered", slog.String("user_id", user.ID.String()))

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("%s: issue token: %w", op, err)
	}
	return token, nil
}

// Login verifies the credentials and returns a fresh token.
func (s *AuthService) Login(ctx context.Context, email, password string) (string, error) {
	const op = "AuthService.Login"

	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return "", ErrInvalidCredentials
	}

	user, err := s.repo.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
			return "", ErrInvalidCredentials
		}
		return "", fmt.Errorf("%s: load user: %w", op, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		s.log.Info("login rejected", slog.String("op", op), slog.String("user_id", user.ID.String()))
		return "", ErrInvalidCredentials
	}

	token, err := s.tokens.Issue(user)
	if err != nil {
		return "", fmt.Errorf("%s: issue token: %w", op, err)
	}
	return token, nil
}

// VerifyToken resolves a bearer token into the caller's identity.
func (s *AuthService) VerifyToken(token string) (types.Identity, error) {
	return s.tokens.Verify(token)
}

// Me returns the user record behind an identity.
func (s *AuthService) Me(ctx context.Context, identity types.Identity) (types.User, error) {
	user, err := s.repo.GetByID(ctx, identity.UserID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, err
	}
	return user, nil
}
