package achievements

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/skillforge/skillforge/internal/entitlements"
	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/progression"
	"github.com/skillforge/skillforge/internal/shared"
)

// RepositoryPort defines data access methods for achievements.
type RepositoryPort interface {
	ListBadges(ctx context.Context) ([]Badge, error)
	GetBadgeByName(ctx context.Context, name string) (Badge, error)
	ListUserBadges(ctx context.Context, userID int64) ([]Award, error)
	HasBadge(ctx context.Context, userID, badgeID int64) (bool, error)
	GrantBadge(ctx context.Context, userID, badgeID int64) (bool, error)
}

// XPAwarder feeds badge XP rewards back into the progression ledger.
// Satisfied by *progression.Service.
type XPAwarder interface {
	AwardXP(ctx context.Context, userID int64, category string, amount int64) (progression.Result, error)
}

// GrantRecorder counts successful badge grants for observability.
type GrantRecorder interface {
	IncBadgeGranted()
}

// Service detects milestone crossings and awards badges exactly once.
type Service struct {
	repo    RepositoryPort
	xp      XPAwarder
	sink    notify.Sink
	metrics GrantRecorder
	logger  *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, xp XPAwarder, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{repo: repo, xp: xp, sink: sink, logger: logger}
}

// SetMetrics wires the optional badge grant counter.
func (s *Service) SetMetrics(metrics GrantRecorder) {
	s.metrics = metrics
}

// ListBadges returns the badge catalog.
func (s *Service) ListBadges(ctx context.Context) ([]Badge, error) {
	return s.repo.ListBadges(ctx)
}

// ListUserBadges returns all badges held by a user.
func (s *Service) ListUserBadges(ctx context.Context, userID int64) ([]Award, error) {
	return s.repo.ListUserBadges(ctx, userID)
}

// EvaluateLevelMilestones awards the level badge when newGlobalLevel exactly
// matches a milestone. The badge's XP reward is credited back through the
// ledger; since the badge can only be granted once, a re-reported level can
// never repeat the reward.
func (s *Service) EvaluateLevelMilestones(ctx context.Context, userID int64, newGlobalLevel int) error {
	if !IsLevelMilestone(newGlobalLevel) {
		return nil
	}
	return s.Award(ctx, userID, LevelBadgeName(newGlobalLevel))
}

// EvaluateRoleGrant awards the membership badge when a premium role is newly
// granted and announces the pro access. Non-premium grants are ignored; role
// removal never revokes held badges.
func (s *Service) EvaluateRoleGrant(ctx context.Context, userID int64, roleName string) error {
	if !entitlements.IsPremiumRole(roleName) {
		return nil
	}
	s.sink.Publish(ctx, notify.Event{
		Kind:   notify.KindProAccessGranted,
		UserID: userID,
		Fields: map[string]string{"role": roleName},
	})
	return s.Award(ctx, userID, BadgeProMember)
}

// EvaluateQuizPasses checks a user's passed-assessment total against the
// champion threshold. Called by the progression service on every recorded
// pass.
func (s *Service) EvaluateQuizPasses(ctx context.Context, userID int64, passes int) error {
	return s.EvaluateCountMilestone(ctx, userID, CounterQuizPasses, passes, QuizChampionThreshold, BadgeQuizChampion)
}

// EvaluateCountMilestone awards badgeName once count reaches threshold.
// Safe to call on every counter change; the award uniqueness makes repeat
// calls no-ops.
func (s *Service) EvaluateCountMilestone(ctx context.Context, userID int64, counter string, count, threshold int, badgeName string) error {
	if count < threshold {
		return nil
	}
	return s.Award(ctx, userID, badgeName)
}

// Award grants badgeName to the user if not already held, publishes a
// badge_earned event and credits the badge's XP reward. All side effects are
// gated on this call having created the award, so retries after a partial
// failure cannot double-award or double-credit.
func (s *Service) Award(ctx context.Context, userID int64, badgeName string) error {
	badge, err := s.repo.GetBadgeByName(ctx, badgeName)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// Catalog gap, not a caller error.
			s.logger.Warn("badge missing from catalog", slog.String("badge", badgeName))
			return nil
		}
		return fmt.Errorf("achievements: load badge: %w", err)
	}

	created, err := s.repo.GrantBadge(ctx, userID, badge.ID)
	if err != nil {
		return fmt.Errorf("achievements: grant badge: %w", err)
	}
	if !created {
		return nil
	}
	if s.metrics != nil {
		s.metrics.IncBadgeGranted()
	}

	s.sink.Publish(ctx, notify.Event{
		Kind:   notify.KindBadgeEarned,
		UserID: userID,
		Fields: map[string]string{
			"badge":  badge.DisplayName,
			"rarity": badge.Rarity,
			"reward": strconv.FormatInt(badge.XPReward, 10),
		},
	})

	if badge.XPReward > 0 && s.xp != nil {
		if _, err := s.xp.AwardXP(ctx, userID, progression.CategoryGlobal, badge.XPReward); err != nil {
			return fmt.Errorf("achievements: credit badge reward: %w", err)
		}
	}
	return nil
}
