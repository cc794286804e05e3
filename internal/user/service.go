package user

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"

	"github.com/victornm/umoja/internal/domain"
	"github.com/victornm/umoja/internal/errors"
	"github.com/victornm/umoja/internal/store"
)

type Store interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
	PhoneTaken(ctx context.Context, phone, exceptID string) (bool, error)
	EmailTaken(ctx context.Context, email, exceptID string) (bool, error)
	UpdateUserContact(ctx context.Context, id string, phone, email *string) (*domain.User, error)
	DeleteUser(ctx context.Context, id string) error
	ListProgress(ctx context.Context, userID string) ([]domain.UserProgress, error)
	SessionTotals(ctx context.Context, userID string) (domain.SessionTotals, error)
}

type Config struct {
	Store Store
}

type Service struct {
	store Store
}

func NewService(c Config) *Service {
	return &Service{store: c.Store}
}

func (s *Service) Get(ctx context.Context, userID string) (*domain.User, error) {
	u, err := s.store.GetUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindUserNotFound)
	}
	return u, err
}

// UpdateRequest holds the contact fields to change. Nil fields are left untouched.
type UpdateRequest struct {
	UserID      string
	PhoneNumber *string
	Email       *string
}

func (s *Service) Update(ctx context.Context, req UpdateRequest) (*domain.User, error) {
	if req.PhoneNumber != nil && strings.TrimSpace(*req.PhoneNumber) == "" {
		return nil, errors.New(errors.KindValidation, errors.WithMessagef("Phone number cannot be empty"))
	}
	if req.Email != nil && strings.TrimSpace(*req.Email) == "" {
		return nil, errors.New(errors.KindValidation, errors.WithMessagef("Email cannot be empty"))
	}

	if _, err := s.Get(ctx, req.UserID); err != nil {
		return nil, err
	}

	if req.PhoneNumber != nil {
		taken, err := s.store.PhoneTaken(ctx, *req.PhoneNumber, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("check phone: %w", err)
		}
		if taken {
			return nil, errors.New(errors.KindValidation, errors.WithMessagef("Phone number already exists"))
		}
	}

	if req.Email != nil {
		taken, err := s.store.EmailTaken(ctx, *req.Email, req.UserID)
		if err != nil {
			return nil, fmt.Errorf("check email: %w", err)
		}
		if taken {
			return nil, errors.New(errors.KindValidation, errors.WithMessagef("Email already exists"))
		}
	}

	u, err := s.store.UpdateUserContact(ctx, req.UserID, req.PhoneNumber, req.Email)
	if stderrors.Is(err, store.ErrNotFound) {
		return nil, errors.New(errors.KindUserNotFound)
	}
	return u, err
}

func (s *Service) Progress(ctx context.Context, userID string) ([]domain.UserProgress, error) {
	if _, err := s.Get(ctx, userID); err != nil {
		return nil, err
	}

	return s.store.ListProgress(ctx, userID)
}

type Stats struct {
	User     domain.User
	Progress []domain.UserProgress
	Sessions domain.SessionTotals
}

func (s *Service) Stats(ctx context.Context, userID string) (*Stats, error) {
	u, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	progress, err := s.store.ListProgress(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}

	totals, err := s.store.SessionTotals(ctx, userID)
	if err != nil {
		return nil, err
	}

	return &Stats{User: *u, Progress: progress, Sessions: totals}, nil
}

func (s *Service) Delete(ctx context.Context, userID string) error {
	err := s.store.DeleteUser(ctx, userID)
	if stderrors.Is(err, store.ErrNotFound) {
		return errors.New(errors.KindUserNotFound)
	}
	return err
}
