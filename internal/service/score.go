package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

// ScoreService reads and writes best scores and builds leaderboards. The
// upsert-with-max rule itself lives in the store (a conditional native
// upsert); this layer supplies the first-time-player behavior on reads.
type ScoreService struct {
	scores repository.ScoreRepository
	logger *slog.Logger
}

func NewScoreService(scores repository.ScoreRepository, logger *slog.Logger) *ScoreService {
	return &ScoreService{scores: scores, logger: logger}
}

// defaultLeaderboardLimit matches what the game UI shows.
const defaultLeaderboardLimit = 10

// BestScore returns the user's persisted best for the configuration. When
// no row exists the result is synthesized from currentScore (the score of
// the round the player just finished, 0 if absent): the submitted config
// is echoed back and the achieved timestamp is null for a zero score, so
// first-time players get a well-formed "best" without a database row.
func (s *ScoreService) BestScore(ctx context.Context, user *model.User, gameType string, cfg model.GameConfig, currentScore int) (*model.GameScore, error) {
	best, err := s.scores.GetBest(ctx, user.ID, gameType, cfg)
	if err == nil {
		return best, nil
	}
	if !errors.Is(err, apperror.ErrNotFound) {
		return nil, fmt.Errorf("service/score: reading best score: %w", err)
	}

	synthetic := &model.GameScore{
		UserID:     user.ID,
		Username:   user.Username,
		GameType:   gameType,
		Score:      currentScore,
		GameConfig: cfg,
	}
	if currentScore > 0 {
		now := time.Now().UTC()
		synthetic.DateAchieved = &now
	}
	return synthetic, nil
}

// Submit records a finished round. The store keeps the row only if the
// score strictly beats the stored one; the persisted row is returned
// either way, plus whether this was the first submission for the config.
func (s *ScoreService) Submit(ctx context.Context, user *model.User, gameType string, cfg model.GameConfig, points int) (*model.GameScore, bool, error) {
	stored, created, err := s.scores.SubmitBest(ctx, &model.GameScore{
		UserID:     user.ID,
		GameType:   gameType,
		Score:      points,
		GameConfig: cfg,
	})
	if err != nil {
		return nil, false, fmt.Errorf("service/score: submitting score: %w", err)
	}

	s.logger.Info("score submitted",
		slog.String("userID", user.ID),
		slog.String("gameType", gameType),
		slog.Int("score", points),
		slog.Int("best", stored.Score),
		slog.Bool("created", created),
	)

	return stored, created, nil
}

// Leaderboard returns the top scores for one exact configuration. A
// non-positive limit falls back to the default of 10.
func (s *ScoreService) Leaderboard(ctx context.Context, gameType string, cfg model.GameConfig, limit int) ([]model.GameScore, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}

	board, err := s.scores.Leaderboard(ctx, gameType, cfg, limit)
	if err != nil {
		return nil, fmt.Errorf("service/score: reading leaderboard: %w", err)
	}
	return board, nil
}
