package achievements

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/progression"
	"github.com/skillforge/skillforge/internal/shared"
)

type memoryRepo struct {
	mu     sync.Mutex
	badges map[string]Badge
	held   map[[2]int64]bool
}

func newMemoryRepo(badges ...Badge) *memoryRepo {
	repo := &memoryRepo{badges: make(map[string]Badge), held: make(map[[2]int64]bool)}
	for _, b := range badges {
		repo.badges[b.Name] = b
	}
	return repo
}

func (r *memoryRepo) ListBadges(ctx context.Context) ([]Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Badge, 0, len(r.badges))
	for _, b := range r.badges {
		out = append(out, b)
	}
	return out, nil
}

func (r *memoryRepo) GetBadgeByName(ctx context.Context, name string) (Badge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.badges[name]; ok {
		return b, nil
	}
	return Badge{}, shared.ErrNotFound
}

func (r *memoryRepo) ListUserBadges(ctx context.Context, userID int64) ([]Award, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Award
	for key := range r.held {
		if key[0] != userID {
			continue
		}
		for _, b := range r.badges {
			if b.ID == key[1] {
				out = append(out, Award{UserID: userID, BadgeID: b.ID, Badge: b})
			}
		}
	}
	return out, nil
}

func (r *memoryRepo) HasBadge(ctx context.Context, userID, badgeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.held[[2]int64{userID, badgeID}], nil
}

func (r *memoryRepo) GrantBadge(ctx context.Context, userID, badgeID int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := [2]int64{userID, badgeID}
	if r.held[key] {
		return false, nil
	}
	r.held[key] = true
	return true, nil
}

type recordingAwarder struct {
	mu     sync.Mutex
	awards []int64
}

func (a *recordingAwarder) AwardXP(ctx context.Context, userID int64, category string, amount int64) (progression.Result, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.awards = append(a.awards, amount)
	return progression.Result{NewXP: amount, NewLevel: progression.LevelForXP(amount)}, nil
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (s *recordingSink) Publish(ctx context.Context, ev notify.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
}

func (s *recordingSink) kinds() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.events))
	for _, ev := range s.events {
		out = append(out, ev.Kind)
	}
	return out
}

func levelBadge(id int64, level int, reward int64) Badge {
	return Badge{ID: id, Name: LevelBadgeName(level), DisplayName: LevelBadgeName(level), Rarity: RarityRare, XPReward: reward}
}

func TestAwardGrantsOnceAndCreditsReward(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 1, Name: BadgeQuizChampion, DisplayName: "Quiz Champion", Rarity: RarityRare, XPReward: 200})
	xp := &recordingAwarder{}
	sink := &recordingSink{}
	svc := NewService(repo, xp, sink, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.Award(ctx, 1, BadgeQuizChampion))
	require.NoError(t, svc.Award(ctx, 1, BadgeQuizChampion))

	held, err := repo.HasBadge(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, []int64{200}, xp.awards, "reward credited exactly once")
	require.Equal(t, []string{notify.KindBadgeEarned}, sink.kinds())
}

func TestAwardConcurrentGrantsOnce(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 1, Name: BadgeQuizChampion, DisplayName: "Quiz Champion", XPReward: 200})
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())
	ctx := context.Background()

	const workers = 10
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			errs <- svc.Award(ctx, 1, BadgeQuizChampion)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	require.Len(t, xp.awards, 1)
}

func TestAwardMissingBadgeIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())

	require.NoError(t, svc.Award(context.Background(), 1, "does_not_exist"))
	require.Empty(t, xp.awards)
}

func TestAwardZeroRewardSkipsCredit(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 4, Name: BadgeFirstLogin, DisplayName: "First Steps"})
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())

	require.NoError(t, svc.Award(context.Background(), 1, BadgeFirstLogin))
	require.Empty(t, xp.awards)
}

func TestEvaluateLevelMilestones(t *testing.T) {
	repo := newMemoryRepo(levelBadge(1, 5, 50), levelBadge(2, 10, 200))
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())
	ctx := context.Background()

	// Non-milestone levels do nothing.
	require.NoError(t, svc.EvaluateLevelMilestones(ctx, 1, 4))
	require.NoError(t, svc.EvaluateLevelMilestones(ctx, 1, 6))
	held, err := repo.HasBadge(ctx, 1, 1)
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, svc.EvaluateLevelMilestones(ctx, 1, 5))
	held, err = repo.HasBadge(ctx, 1, 1)
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, []int64{50}, xp.awards)

	// A re-reported milestone level cannot double-credit.
	require.NoError(t, svc.EvaluateLevelMilestones(ctx, 1, 5))
	require.Equal(t, []int64{50}, xp.awards)
}

func TestEvaluateRoleGrant(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 3, Name: BadgeProMember, DisplayName: "PRO Member", Rarity: RarityLegendary, XPReward: 100})
	xp := &recordingAwarder{}
	sink := &recordingSink{}
	svc := NewService(repo, xp, sink, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.EvaluateRoleGrant(ctx, 1, "moderator"))
	held, err := repo.HasBadge(ctx, 1, 3)
	require.NoError(t, err)
	require.False(t, held, "non-premium roles carry no badge")

	require.NoError(t, svc.EvaluateRoleGrant(ctx, 1, "dev_pro"))
	held, err = repo.HasBadge(ctx, 1, 3)
	require.NoError(t, err)
	require.True(t, held)
	require.Equal(t, []string{notify.KindProAccessGranted, notify.KindBadgeEarned}, sink.kinds())

	// Granting the other premium role keeps the single badge.
	require.NoError(t, svc.EvaluateRoleGrant(ctx, 1, "gaming_pro"))
	require.Equal(t, []int64{100}, xp.awards)
}

func TestEvaluateCountMilestone(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 5, Name: BadgeQuizChampion, DisplayName: "Quiz Champion", XPReward: 200})
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.EvaluateCountMilestone(ctx, 1, "quiz_passed", 49, QuizChampionThreshold, BadgeQuizChampion))
	held, err := repo.HasBadge(ctx, 1, 5)
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, svc.EvaluateCountMilestone(ctx, 1, "quiz_passed", 50, QuizChampionThreshold, BadgeQuizChampion))
	held, err = repo.HasBadge(ctx, 1, 5)
	require.NoError(t, err)
	require.True(t, held)

	// Counts beyond the threshold stay a no-op.
	require.NoError(t, svc.EvaluateCountMilestone(ctx, 1, "quiz_passed", 51, QuizChampionThreshold, BadgeQuizChampion))
	require.Equal(t, []int64{200}, xp.awards)
}

func TestEvaluateQuizPassesGrantsChampion(t *testing.T) {
	repo := newMemoryRepo(Badge{ID: 5, Name: BadgeQuizChampion, DisplayName: "Quiz Champion", XPReward: 200})
	xp := &recordingAwarder{}
	svc := NewService(repo, xp, nil, slog.Default())
	ctx := context.Background()

	require.NoError(t, svc.EvaluateQuizPasses(ctx, 1, QuizChampionThreshold-1))
	held, err := repo.HasBadge(ctx, 1, 5)
	require.NoError(t, err)
	require.False(t, held)

	require.NoError(t, svc.EvaluateQuizPasses(ctx, 1, QuizChampionThreshold))
	held, err = repo.HasBadge(ctx, 1, 5)
	require.NoError(t, err)
	require.True(t, held)

	require.NoError(t, svc.EvaluateQuizPasses(ctx, 1, QuizChampionThreshold+1))
	require.Equal(t, []int64{200}, xp.awards)
}
