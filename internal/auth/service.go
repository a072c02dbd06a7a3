package auth

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/skillforge/skillforge/internal/achievements"
	"github.com/skillforge/skillforge/internal/shared"
)

// BadgeAwarder grants a named badge to a user. Satisfied by the achievements
// service; used for the first-login milestone.
type BadgeAwarder interface {
	Award(ctx context.Context, userID int64, badgeName string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo   Repository
	badges BadgeAwarder
	logger *slog.Logger
}

// NewService constructs a new Service.
func NewService(repo Repository, badges BadgeAwarder, logger *slog.Logger) *Service {
	return &Service{repo: repo, badges: badges, logger: logger}
}

// Authenticate validates email/password credentials. On success the login
// timestamp is recorded and the first-login milestone evaluated; either
// failing is logged but never fails the login itself.
func (s *Service) Authenticate(ctx context.Context, email, password string) (*Account, error) {
	acc, err := s.repo.FindByEmail(ctx, email)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !acc.IsActive {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if err := s.repo.TouchLastLogin(ctx, acc.ID); err != nil {
		s.logger.Warn("touch last login", slog.Int64("user_id", acc.ID), slog.Any("error", err))
	}
	if s.badges != nil {
		if err := s.badges.Award(ctx, acc.ID, achievements.BadgeFirstLogin); err != nil {
			s.logger.Error("first login milestone", slog.Int64("user_id", acc.ID), slog.Any("error", err))
		}
	}
	return acc, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, userID int64, expiresAt time.Time, ip, ua string) error {
	return s.repo.CreateSession(ctx, id, userID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.repo.DeleteSession(ctx, id)
}
