package service

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"account-service/internal/domain"
	"account-service/internal/repository"
)

// UserService exposes read and delete operations over stored users. Results never carry password hashes.
type UserService interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error)
	Delete(ctx context.Context, id string) (*domain.User, error)
	ListArchived(ctx context.Context) ([]ArchiveEntry, error)
}

type userService struct {
	users   repository.UserRepository
	archive *AccountArchive
	logger  *logrus.Logger
}

// NewUserService builds a UserService. archive may be nil, which disables snapshots of deleted accounts.
func NewUserService(users repository.UserRepository, archive *AccountArchive, logger *logrus.Logger) UserService {
	if logger == nil {
		logger = logrus.New()
	}
	return &userService{
		users:   users,
		archive: archive,
		logger:  logger,
	}
}

func (s *userService) Get(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	user, err := s.users.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return user.Sanitized(), nil
}

func (s *userService) List(ctx context.Context, filter domain.UserFilter) ([]domain.User, error) {
	if filter.MinAge != nil && filter.MaxAge != nil && *filter.MinAge > *filter.MaxAge {
		verr := &domain.ValidationError{}
		verr.Add("minAge", "must not exceed maxAge")
		return nil, verr
	}

	users, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, err
	}

	out := make([]domain.User, len(users))
	for i := range users {
		out[i] = *users[i].Sanitized()
	}
	return out, nil
}

func (s *userService) Delete(ctx context.Context, id string) (*domain.User, error) {
	if id == "" {
		return nil, domain.ErrNotFound
	}
	removed, err := s.users.Delete(ctx, id)
	if err != nil {
		return nil, err
	}
	removed = removed.Sanitized()

	logger := s.logger.WithField("user_id", removed.ID)
	if s.archive != nil {
		location, err := s.archive.Put(ctx, removed)
		if err != nil {
			logger.Warnf("archive deleted user: %v", err)
		} else {
			logger.Infof("deleted user archived to %s", location)
		}
	}
	logger.Info("user deleted")
	return removed, nil
}

func (s *userService) ListArchived(ctx context.Context) ([]ArchiveEntry, error) {
	if s.archive == nil {
		return nil, ErrArchiveDisabled
	}
	entries, err := s.archive.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list archived users: %w", err)
	}
	return entries, nil
}
