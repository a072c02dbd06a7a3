package users

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/skillforge/skillforge/internal/achievements"
	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/progression"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context) ([]User, error)
	GetUser(ctx context.Context, id int64) (User, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// Profile combines the user account with its progression state and badges.
type Profile struct {
	User        User                 `json:"user"`
	Progression []progression.Record `json:"progression"`
	Badges      []achievements.Award `json:"badges"`
	GlobalLevel int                  `json:"global_level"`
	GlobalXP    int64                `json:"global_xp"`
}

// ProgressionPort reads progression records for profiles.
type ProgressionPort interface {
	ListRecords(ctx context.Context, userID int64) ([]progression.Record, error)
}

// BadgesPort reads held badges for profiles.
type BadgesPort interface {
	ListUserBadges(ctx context.Context, userID int64) ([]achievements.Award, error)
}

// Service handles user business logic.
type Service struct {
	repo     RepositoryPort
	progress ProgressionPort
	badges   BadgesPort
	sink     notify.Sink
	logger   *slog.Logger
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, progress ProgressionPort, badges BadgesPort, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{repo: repo, progress: progress, badges: badges, sink: sink, logger: logger}
}

// ListUsers returns all users.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsers(ctx)
}

// GetUser returns one user.
func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// GetProfile assembles the user's account, progression and badge data.
func (s *Service) GetProfile(ctx context.Context, userID int64) (Profile, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	records, err := s.progress.ListRecords(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	awards, err := s.badges.ListUserBadges(ctx, userID)
	if err != nil {
		return Profile{}, err
	}
	profile := Profile{User: user, Progression: records, Badges: awards, GlobalLevel: 1}
	for _, rec := range records {
		if rec.Category == progression.CategoryGlobal {
			profile.GlobalLevel = rec.Level
			profile.GlobalXP = rec.XP
		}
	}
	return profile, nil
}

// SetActive enables or disables an account. Deactivation emits a
// notification event carrying the admin who acted and the reason.
func (s *Service) SetActive(ctx context.Context, userID int64, active bool, actedBy int64, reason string) error {
	if err := s.repo.SetActive(ctx, userID, active); err != nil {
		return err
	}
	if !active {
		s.sink.Publish(ctx, notify.Event{
			Kind:   notify.KindUserDeactivated,
			UserID: userID,
			Fields: map[string]string{
				"acted_by": strconv.FormatInt(actedBy, 10),
				"reason":   reason,
			},
		})
	}
	return nil
}
