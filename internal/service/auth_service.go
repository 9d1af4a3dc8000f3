package service

import (
	"context"
	"crypto/subtle"
	"errors"

	"rider-order-sync/internal/model"
)

var (
	ErrNoSession    = errors.New("no rider session: provide a rider id and token or credentials")
	ErrInvalidToken = errors.New("invalid or expired token")
)

type LoginBackend interface {
	Login(ctx context.Context, email, password string) (*model.Session, error)
}

// AuthService opens the rider's backend session and guards the agent's
// own API with a static token.
type AuthService struct {
	backend  LoginBackend
	apiToken string
}

func NewAuthService(backend LoginBackend, apiToken string) *AuthService {
	return &AuthService{backend: backend, apiToken: apiToken}
}

// Enabled reports whether the local API requires a token.
func (a *AuthService) Enabled() bool {
	return a.apiToken != ""
}

// ValidateToken checks a bearer token presented to the local API.
func (a *AuthService) ValidateToken(token string) error {
	if !a.Enabled() {
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(token), []byte(a.apiToken)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

func (a *AuthService) Login(ctx context.Context, email, password string) (*model.Session, error) {
	return a.backend.Login(ctx, email, password)
}

// EstablishSession uses a configured rider id and token when both are set,
// and logs in with the credentials otherwise.
func (a *AuthService) EstablishSession(ctx context.Context, riderID, token, email, password string) (model.Session, error) {
	s := model.Session{RiderID: riderID, Token: token}
	if s.Valid() {
		return s, nil
	}
	if email == "" || password == "" {
		return model.Session{}, ErrNoSession
	}
	logged, err := a.Login(ctx, email, password)
	if err != nil {
		return model.Session{}, err
	}
	return *logged, nil
}
