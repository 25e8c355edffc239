package auth

import (
	"errors"
	"fmt"

	"liveroom/store"

	"github.com/google/uuid"
)

var (
	ErrInvalidName  = errors.New("name must be 1-50 characters")
	ErrInvalidToken = errors.New("invalid token")
)

// Service is the user directory: it issues opaque bearer tokens at user
// creation and resolves them back to identities on every request.
type Service struct {
	store store.Store
	cache *TokenCache
}

func NewService(store store.Store) *Service {
	return &Service{
		store: store,
		cache: NewTokenCache(),
	}
}

// CreateUser registers a user and returns their bearer token. The token is
// issued exactly once; there is no re-issue or expiry.
func (s *Service) CreateUser(name string, leaderCardID int64) (string, error) {
	name = SanitizeName(name)
	if err := validateName(name); err != nil {
		return "", err
	}

	token := uuid.NewString()
	userID, err := s.store.CreateUser(token, name, leaderCardID)
	if err != nil {
		return "", fmt.Errorf("failed to create user: %w", err)
	}

	s.cache.Put(token, userID)
	return token, nil
}

// GetUserByToken resolves a bearer token to its user. Unknown tokens return
// ErrInvalidToken.
func (s *Service) GetUserByToken(token string) (*store.User, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}

	if userID, ok := s.cache.Get(token); ok {
		user, err := s.store.GetUserByID(userID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			return user, nil
		}
		// Users are never deleted, but don't trust a stale entry.
		s.cache.Delete(token)
	}

	user, err := s.store.GetUserByToken(token)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrInvalidToken
	}

	s.cache.Put(token, user.ID)
	return user, nil
}

// UpdateUser changes the name and leader card of the token's user. Unknown
// tokens fail with ErrInvalidToken rather than silently doing nothing.
func (s *Service) UpdateUser(token, name string, leaderCardID int64) error {
	name = SanitizeName(name)
	if err := validateName(name); err != nil {
		return err
	}

	user, err := s.GetUserByToken(token)
	if err != nil {
		return err
	}

	if err := s.store.UpdateUser(user.ID, name, leaderCardID); err != nil {
		return fmt.Errorf("failed to update user: %w", err)
	}
	return nil
}

func validateName(name string) error {
	if len(name) < 1 || len(name) > 50 {
		return ErrInvalidName
	}
	return nil
}
