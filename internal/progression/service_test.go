package progression

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/platform/httpx"
)

type memoryRepo struct {
	mu      sync.Mutex
	records map[string]*Record
	users   map[int64]string
	passes  map[int64]int
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		records: make(map[string]*Record),
		users:   make(map[int64]string),
		passes:  make(map[int64]int),
	}
}

func recordKey(userID int64, category string) string {
	return fmt.Sprintf("%d:%s", userID, category)
}

func (r *memoryRepo) AddXP(ctx context.Context, userID int64, category string, amount int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := recordKey(userID, category)
	rec, ok := r.records[key]
	if !ok {
		rec = &Record{UserID: userID, Category: category}
		r.records[key] = rec
	}
	rec.XP += amount
	rec.Level = LevelForXP(rec.XP)
	return rec.XP, nil
}

func (r *memoryRepo) GetRecord(ctx context.Context, userID int64, category string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if rec, ok := r.records[recordKey(userID, category)]; ok {
		return *rec, nil
	}
	return Record{UserID: userID, Category: category, Level: 1}, nil
}

func (r *memoryRepo) ListRecords(ctx context.Context, userID int64) ([]Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Record
	for _, rec := range r.records {
		if rec.UserID == userID {
			out = append(out, *rec)
		}
	}
	return out, nil
}

func (r *memoryRepo) TopEntries(ctx context.Context, category string, limit int) ([]Entry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var entries []Entry
	for _, rec := range r.records {
		if rec.Category != category {
			continue
		}
		entries = append(entries, Entry{
			UserID:   rec.UserID,
			Username: r.users[rec.UserID],
			XP:       rec.XP,
			Level:    rec.Level,
		})
	}
	for i := 0; i < len(entries); i++ {
		for j := i + 1; j < len(entries); j++ {
			if entries[j].XP > entries[i].XP ||
				(entries[j].XP == entries[i].XP && entries[j].UserID < entries[i].UserID) {
				entries[i], entries[j] = entries[j], entries[i]
			}
		}
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (r *memoryRepo) RecordQuizPass(ctx context.Context, userID int64) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.passes[userID]++
	return r.passes[userID], nil
}

func (r *memoryRepo) hasRecord(userID int64, category string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.records[recordKey(userID, category)]
	return ok
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

func (s *recordingSink) byKind(kind string) []notify.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []notify.Event
	for _, ev := range s.events {
		if ev.Kind == kind {
			out = append(out, ev)
		}
	}
	return out
}

type recordingEvaluator struct {
	mu     sync.Mutex
	levels []int
	passes []int
}

func (e *recordingEvaluator) EvaluateLevelMilestones(ctx context.Context, userID int64, newLevel int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.levels = append(e.levels, newLevel)
	return nil
}

func (e *recordingEvaluator) EvaluateQuizPasses(ctx context.Context, userID int64, passes int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.passes = append(e.passes, passes)
	return nil
}

func newTestService(repo *memoryRepo, sink notify.Sink) *Service {
	return NewService(repo, nil, sink, slog.Default())
}

func TestAwardXPCascadesHalfToGlobal(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.AwardXP(ctx, 1, "coding", 75)
	require.NoError(t, err)
	require.EqualValues(t, 75, result.NewXP)

	global, err := svc.GetRecord(ctx, 1, CategoryGlobal)
	require.NoError(t, err)
	require.EqualValues(t, 37, global.XP, "cascade is floor(amount/2)")
}

func TestAwardXPGlobalDoesNotCascade(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.AwardXP(ctx, 1, CategoryGlobal, 100)
	require.NoError(t, err)
	require.EqualValues(t, 100, result.NewXP)

	global, err := svc.GetRecord(ctx, 1, CategoryGlobal)
	require.NoError(t, err)
	require.EqualValues(t, 100, global.XP, "a global award must be applied exactly once")
}

func TestAwardXPSingleXPSkipsGlobalWrite(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	result, err := svc.AwardXP(ctx, 1, "coding", 1)
	require.NoError(t, err)
	require.EqualValues(t, 1, result.NewXP)

	// floor(1/2) is zero, so no global record comes into existence.
	require.False(t, repo.hasRecord(1, CategoryGlobal))
}

func TestAwardXPRejectsNegativeAndEmptyCategory(t *testing.T) {
	svc := newTestService(newMemoryRepo(), nil)
	ctx := context.Background()

	_, err := svc.AwardXP(ctx, 1, "coding", -5)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.AwardXP(ctx, 1, "", 10)
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestAwardXPZeroIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	sink := &recordingSink{}
	svc := newTestService(repo, sink)
	ctx := context.Background()

	result, err := svc.AwardXP(ctx, 1, CategoryGlobal, 0)
	require.NoError(t, err)
	require.EqualValues(t, 0, result.NewXP)
	require.Equal(t, 1, result.NewLevel)
	require.False(t, result.LeveledUp)
	require.Empty(t, sink.byKind(notify.KindLevelUp))
}

func TestAwardXPLevelUpFiresEvaluatorAndEvent(t *testing.T) {
	repo := newMemoryRepo()
	sink := &recordingSink{}
	evaluator := &recordingEvaluator{}
	svc := newTestService(repo, sink)
	svc.SetEvaluator(evaluator)
	ctx := context.Background()

	result, err := svc.AwardXP(ctx, 7, CategoryGlobal, 100)
	require.NoError(t, err)
	require.Equal(t, 2, result.NewLevel)
	require.True(t, result.LeveledUp)

	require.Equal(t, []int{2}, evaluator.levels)
	events := sink.byKind(notify.KindLevelUp)
	require.Len(t, events, 1)
	require.EqualValues(t, 7, events[0].UserID)
	require.Equal(t, "2", events[0].Fields["level"])

	// Pushing past the next boundary levels up again.
	result, err = svc.AwardXP(ctx, 7, CategoryGlobal, 300)
	require.NoError(t, err)
	require.Equal(t, 3, result.NewLevel)
	require.True(t, result.LeveledUp)
	require.Equal(t, []int{2, 3}, evaluator.levels)

	// Staying inside the level fires nothing new.
	result, err = svc.AwardXP(ctx, 7, CategoryGlobal, 50)
	require.NoError(t, err)
	require.Equal(t, 3, result.NewLevel)
	require.False(t, result.LeveledUp)
	require.Equal(t, []int{2, 3}, evaluator.levels)
	require.Len(t, sink.byKind(notify.KindLevelUp), 2)
}

func TestAwardXPCascadeTriggersGlobalLevelUp(t *testing.T) {
	repo := newMemoryRepo()
	sink := &recordingSink{}
	evaluator := &recordingEvaluator{}
	svc := newTestService(repo, sink)
	svc.SetEvaluator(evaluator)
	ctx := context.Background()

	// 200 XP to a category cascades 100 into global, crossing level 2.
	result, err := svc.AwardXP(ctx, 3, "quiz", 200)
	require.NoError(t, err)
	require.EqualValues(t, 200, result.NewXP)

	global, err := svc.GetRecord(ctx, 3, CategoryGlobal)
	require.NoError(t, err)
	require.EqualValues(t, 100, global.XP)
	require.Equal(t, []int{2}, evaluator.levels)
}

func TestSubmitQuizPassAwardsAndCounts(t *testing.T) {
	repo := newMemoryRepo()
	evaluator := &recordingEvaluator{}
	svc := newTestService(repo, nil)
	svc.SetEvaluator(evaluator)
	ctx := context.Background()

	result, err := svc.SubmitQuizPass(ctx, 4, "science", 60)
	require.NoError(t, err)
	require.Equal(t, 1, result.Passes)
	require.EqualValues(t, 60, result.Award.NewXP)

	result, err = svc.SubmitQuizPass(ctx, 4, "science", 60)
	require.NoError(t, err)
	require.Equal(t, 2, result.Passes)
	require.EqualValues(t, 120, result.Award.NewXP)

	// Every pass is reported with its running total.
	require.Equal(t, []int{1, 2}, evaluator.passes)

	// The quiz award cascades into global like any other award.
	global, err := svc.GetRecord(ctx, 4, CategoryGlobal)
	require.NoError(t, err)
	require.EqualValues(t, 60, global.XP)
}

func TestSubmitQuizPassValidation(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.SubmitQuizPass(ctx, 4, "", 60)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.SubmitQuizPass(ctx, 4, "science", -1)
	require.ErrorIs(t, err, httpx.ErrValidation)
	require.Empty(t, repo.passes)
}

func TestConcurrentAwardsLoseNothing(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	const workers = 20
	errs := make(chan error, workers)
	var wg sync.WaitGroup
	wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer wg.Done()
			_, err := svc.AwardXP(ctx, 9, "coding", 10)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	rec, err := svc.GetRecord(ctx, 9, "coding")
	require.NoError(t, err)
	require.EqualValues(t, workers*10, rec.XP)

	global, err := svc.GetRecord(ctx, 9, CategoryGlobal)
	require.NoError(t, err)
	require.EqualValues(t, workers*5, global.XP)
}

func TestLeaderboardRanksAndThresholds(t *testing.T) {
	repo := newMemoryRepo()
	repo.users[1] = "alice"
	repo.users[2] = "bob"
	repo.users[3] = "carol"
	svc := newTestService(repo, nil)
	ctx := context.Background()

	_, err := svc.AwardXP(ctx, 1, CategoryGlobal, 450)
	require.NoError(t, err)
	_, err = svc.AwardXP(ctx, 2, CategoryGlobal, 120)
	require.NoError(t, err)
	_, err = svc.AwardXP(ctx, 3, CategoryGlobal, 120)
	require.NoError(t, err)

	entries, err := svc.Leaderboard(ctx, "", 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)

	require.Equal(t, 1, entries[0].Rank)
	require.Equal(t, "alice", entries[0].Username)
	require.Equal(t, 3, entries[0].Level)
	require.EqualValues(t, 900, entries[0].NextLevelXP)

	// Equal XP breaks ties by user id.
	require.Equal(t, 2, entries[1].Rank)
	require.Equal(t, "bob", entries[1].Username)
	require.Equal(t, 3, entries[2].Rank)
	require.Equal(t, "carol", entries[2].Username)
	require.EqualValues(t, 400, entries[1].NextLevelXP)
}

func TestLeaderboardLimitClamping(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo, nil)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		_, err := svc.AwardXP(ctx, i, CategoryGlobal, i*10)
		require.NoError(t, err)
	}

	entries, err := svc.Leaderboard(ctx, CategoryGlobal, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.EqualValues(t, 5, entries[0].UserID)
}
