package progression

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/singleflight"

	"github.com/skillforge/skillforge/internal/notify"
	"github.com/skillforge/skillforge/internal/platform/cache"
	"github.com/skillforge/skillforge/internal/platform/httpx"
)

const (
	defaultLeaderboardLimit = 100
	maxLeaderboardLimit     = 500
)

// RepositoryPort defines data access methods for progression.
type RepositoryPort interface {
	AddXP(ctx context.Context, userID int64, category string, amount int64) (int64, error)
	GetRecord(ctx context.Context, userID int64, category string) (Record, error)
	ListRecords(ctx context.Context, userID int64) ([]Record, error)
	TopEntries(ctx context.Context, category string, limit int) ([]Entry, error)
	RecordQuizPass(ctx context.Context, userID int64) (int, error)
}

// MilestoneEvaluator consumes progression signals that may cross a badge
// milestone. Implemented by the achievements service.
type MilestoneEvaluator interface {
	EvaluateLevelMilestones(ctx context.Context, userID int64, newLevel int) error
	EvaluateQuizPasses(ctx context.Context, userID int64, passes int) error
}

// XPRecorder counts awarded XP for observability.
type XPRecorder interface {
	AddXPAwarded(category string, amount int64)
}

// Service owns the leveling formula application and the cascade rule.
type Service struct {
	repo      RepositoryPort
	cache     *cache.Versioned
	evaluator MilestoneEvaluator
	sink      notify.Sink
	metrics   XPRecorder
	logger    *slog.Logger
	flight    singleflight.Group
}

// NewService builds a Service instance.
func NewService(repo RepositoryPort, boardCache *cache.Versioned, sink notify.Sink, logger *slog.Logger) *Service {
	if sink == nil {
		sink = notify.NopSink{}
	}
	return &Service{repo: repo, cache: boardCache, sink: sink, logger: logger}
}

// SetEvaluator wires the milestone evaluator. Separate from the constructor
// because the achievements service in turn needs this service for XP reward
// feedback.
func (s *Service) SetEvaluator(evaluator MilestoneEvaluator) {
	s.evaluator = evaluator
}

// SetMetrics wires the optional XP counter.
func (s *Service) SetMetrics(metrics XPRecorder) {
	s.metrics = metrics
}

// AwardXP adds amount to the (user, category) record and applies the cascade
// rule: any non-global award feeds floor(amount/2) into the global category
// as one explicit follow-up step, so the cascade terminates structurally.
// A level-up on the global record triggers milestone evaluation and a
// level_up event. Returns the result of the primary award.
func (s *Service) AwardXP(ctx context.Context, userID int64, category string, amount int64) (Result, error) {
	if amount < 0 {
		return Result{}, fmt.Errorf("%w: xp amount must be non-negative", httpx.ErrValidation)
	}
	if category == "" {
		return Result{}, fmt.Errorf("%w: category required", httpx.ErrValidation)
	}

	result, err := s.award(ctx, userID, category, amount)
	if err != nil {
		return Result{}, err
	}

	if category == CategoryGlobal {
		s.onGlobalResult(ctx, userID, result)
		return result, nil
	}

	// floor(amount/2) can round to nothing; skip the global write then.
	cascade := amount / 2
	if cascade == 0 {
		return result, nil
	}
	globalResult, err := s.award(ctx, userID, CategoryGlobal, cascade)
	if err != nil {
		return Result{}, fmt.Errorf("progression: cascade award: %w", err)
	}
	s.onGlobalResult(ctx, userID, globalResult)
	return result, nil
}

// SubmitQuizPass records one passed assessment, awards its XP to the quiz's
// category (with the usual cascade) and reports the new pass total to the
// milestone evaluator. The pass is counted even when the quiz carries no XP.
func (s *Service) SubmitQuizPass(ctx context.Context, userID int64, category string, amount int64) (PassResult, error) {
	if amount < 0 {
		return PassResult{}, fmt.Errorf("%w: xp amount must be non-negative", httpx.ErrValidation)
	}
	if category == "" {
		return PassResult{}, fmt.Errorf("%w: category required", httpx.ErrValidation)
	}

	passes, err := s.repo.RecordQuizPass(ctx, userID)
	if err != nil {
		return PassResult{}, fmt.Errorf("progression: record quiz pass: %w", err)
	}
	result, err := s.AwardXP(ctx, userID, category, amount)
	if err != nil {
		return PassResult{}, err
	}
	if s.evaluator != nil {
		if err := s.evaluator.EvaluateQuizPasses(ctx, userID, passes); err != nil {
			s.logger.Error("quiz pass milestone evaluation",
				slog.Int64("user_id", userID),
				slog.Int("passes", passes),
				slog.Any("error", err))
		}
	}
	return PassResult{Passes: passes, Award: result}, nil
}

// GetRecord returns one progression record.
func (s *Service) GetRecord(ctx context.Context, userID int64, category string) (Record, error) {
	return s.repo.GetRecord(ctx, userID, category)
}

// ListRecords returns all progression records for a user.
func (s *Service) ListRecords(ctx context.Context, userID int64) ([]Record, error) {
	return s.repo.ListRecords(ctx, userID)
}

// Leaderboard returns the top records for a category with contiguous 1-based
// ranks and the XP threshold for each entry's next level. Results are cached
// until the next award invalidates the leaderboard version; concurrent cache
// misses collapse into one store read.
func (s *Service) Leaderboard(ctx context.Context, category string, limit int) ([]Entry, error) {
	if category == "" {
		category = CategoryGlobal
	}
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	key, err := s.cache.BuildKey(ctx, "leaderboard", category, strconv.Itoa(limit))
	if err != nil {
		key = "leaderboard:" + category + ":" + strconv.Itoa(limit)
	}
	v, err, _ := s.flight.Do(key, func() (interface{}, error) {
		var entries []Entry
		err := s.cache.FetchJSON(ctx, key, &entries, func(ctx context.Context) (interface{}, error) {
			return s.loadBoard(ctx, category, limit)
		})
		return entries, err
	})
	if err != nil {
		return nil, err
	}
	entries, _ := v.([]Entry)
	return entries, nil
}

func (s *Service) loadBoard(ctx context.Context, category string, limit int) ([]Entry, error) {
	entries, err := s.repo.TopEntries(ctx, category, limit)
	if err != nil {
		return nil, err
	}
	for i := range entries {
		entries[i].Rank = i + 1
		entries[i].NextLevelXP = XPThresholdForLevel(entries[i].Level + 1)
	}
	return entries, nil
}

func (s *Service) award(ctx context.Context, userID int64, category string, amount int64) (Result, error) {
	newXP, err := s.repo.AddXP(ctx, userID, category, amount)
	if err != nil {
		return Result{}, fmt.Errorf("progression: add xp: %w", err)
	}
	newLevel := LevelForXP(newXP)
	prevLevel := LevelForXP(newXP - amount)
	result := Result{NewXP: newXP, NewLevel: newLevel, LeveledUp: newLevel > prevLevel}
	if s.metrics != nil {
		s.metrics.AddXPAwarded(category, amount)
	}
	if err := s.cache.Bump(ctx); err != nil {
		s.logger.Warn("leaderboard cache bump", slog.Any("error", err))
	}
	return result, nil
}

// onGlobalResult reacts to the outcome of a global-category award: milestone
// evaluation and the level_up event fire only on a global level-up.
func (s *Service) onGlobalResult(ctx context.Context, userID int64, result Result) {
	if !result.LeveledUp {
		return
	}
	if s.evaluator != nil {
		if err := s.evaluator.EvaluateLevelMilestones(ctx, userID, result.NewLevel); err != nil {
			s.logger.Error("level milestone evaluation",
				slog.Int64("user_id", userID),
				slog.Int("level", result.NewLevel),
				slog.Any("error", err))
		}
	}
	s.sink.Publish(ctx, notify.Event{
		Kind:   notify.KindLevelUp,
		UserID: userID,
		Fields: map[string]string{
			"level": strconv.Itoa(result.NewLevel),
			"xp":    strconv.FormatInt(result.NewXP, 10),
		},
	})
}
