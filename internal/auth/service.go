// Package auth verifies phone identities, signs users in and issues session tokens.
package auth

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
	"github.com/victornm/umoja/internal/game"
	"github.com/victornm/umoja/internal/store"
)

type Store interface {
	CreateUser(ctx context.Context, u *domain.User) error
	GetUser(ctx context.Context, id string) (*domain.User, error)
	FindUserByPhone(ctx context.Context, phone string) (*domain.User, error)
	SetUserVerified(ctx context.Context, id string) (*domain.User, error)
	ListProgress(ctx context.Context, userID string) ([]domain.UserProgress, error)
}

type Config struct {
	Store    Store
	Verifier IdentityVerifier
	Tokens   *Tokens
}

type Service struct {
	store    Store
	verifier IdentityVerifier
	tokens   *Tokens
}

func NewService(c Config) *Service {
	return &Service{
		store:    c.Store,
		verifier: c.Verifier,
		tokens:   c.Tokens,
	}
}

type LoginRequest struct {
	IDToken string
}

type LoginResponse struct {
	Token        string
	RefreshToken string
	User         domain.User
	Created      bool
}

// Login verifies an identity token and signs the owner of its phone number in,
// creating the account on first login.
func (s *Service) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	id, err := s.verifier.VerifyIDToken(ctx, req.IDToken)
	if err != nil {
		return nil, errors.New(errors.KindAuthentication, errors.WithCause(err))
	}

	res := &LoginResponse{}

	u, err := s.store.FindUserByPhone(ctx, id.PhoneNumber)
	switch {
	case stderrors.Is(err, store.ErrNotFound):
		u = &domain.User{
			PhoneNumber: id.PhoneNumber,
			Role:        domain.RolePlayer,
			Coins:       game.InitialCoins,
			IsVerified:  true,
		}
		err := s.store.CreateUser(ctx, u)
		if stderrors.Is(err, store.ErrConflict) {
			// A concurrent first login created the account.
			if u, err = s.store.FindUserByPhone(ctx, id.PhoneNumber); err != nil {
				return nil, fmt.Errorf("find user: %w", err)
			}
			break
		}
		if err != nil {
			return nil, fmt.Errorf("create user: %w", err)
		}
		res.Created = true

		slog.InfoContext(ctx, "auth: user created", "user_id", u.ID)
	case err != nil:
		return nil, err
	case !u.IsVerified:
		if u, err = s.store.SetUserVerified(ctx, u.ID); err != nil {
			return nil, fmt.Errorf("verify user: %w", err)
		}
	}

	if res.Token, err = s.tokens.Issue(u); err != nil {
		return nil, err
	}
	if res.RefreshToken, err = s.tokens.IssueRefresh(u); err != nil {
		return nil, err
	}
	res.User = *u

	return res, nil
}

type Profile struct {
	User     domain.User
	Progress []domain.UserProgress
}

func (s *Service) Profile(ctx context.Context, userID string) (*Profile, error) {
	u, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindUserNotFound)
	}
	if err != nil {
		return nil, err
	}

	progress, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	return &Profile{User: *u, Progress: progress}, nil
}

type RefreshRequest struct {
	UserID string
	// RefreshToken is optional. When given it must belong to UserID.
	RefreshToken string
}

// Refresh issues a new access token for a user that still exists.
func (s *Service) Refresh(ctx context.Context, req RefreshRequest) (string, error) {
	if req.RefreshToken != "" {
		c, err := s.tokens.VerifyRefresh(req.RefreshToken)
		if err != nil {
			return "", err
		}
		if c.UserID != req.UserID {
			return "", errors.New(errors.KindInvalidToken)
		}
	}

	u, err := s.store.GetUser(ctx, req.UserID)
	if stderrors.Is(err, store.ErrNotFound) {
		return "", errors.New(errors.KindUserNotFound)
	}
	if err != nil {
		return "", err
	}

	return s.tokens.Issue(u)
}

// Authorize verifies an access token and checks its user still exists and is verified.
func (s *Service) Authorize(ctx context.Context, token string) (*Claims, error) {
	c, err := s.tokens.Verify(token)
	if err != nil {
		return nil, err
	}

	u, err := s.store.GetUser(ctx, c.UserID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindAuthentication,
			errors.WithMessagef("The user associated with this token no longer exists"))
	}
	if err != nil {
		return nil, err
	}
	if !u.IsVerified {
		return nil, errors.New(errors.KindAuthentication, errors.WithMessagef("Account not verified"))
	}

	return c, nil
}
