package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/rs/xid"
	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/model"
	"github.com/sakif/guitar-games/internal/repository"
)

var _ repository.ScoreRepository = (*DB)(nil)

const scoreColumns = `s.id, s.user_id, u.username, s.game_type, s.score,
	s.date_achieved, s.fret_length, s.start_string, s.end_string`

// GetBest returns the user's persisted best score for the exact
// (game type, config) tuple, or apperror.ErrNotFound.
func (db *DB) GetBest(ctx context.Context, userID, gameType string, cfg model.GameConfig) (*model.GameScore, error) {
	row := db.conn.QueryRowContext(ctx,
		`SELECT `+scoreColumns+`
		 FROM game_scores s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.user_id = ? AND s.game_type = ?
		   AND s.fret_length = ? AND s.start_string = ? AND s.end_string = ?`,
		userID, gameType, cfg.FretLength, cfg.StartString, cfg.EndString,
	)

	score, err := scanScore(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, apperror.NotFound("game score", userID)
		}
		return nil, fmt.Errorf("sqlite: getting best score for user %s: %w", userID, err)
	}
	return score, nil
}

// SubmitBest applies upsert-with-max semantics in a single statement:
// insert the row, or on a config-tuple conflict overwrite score and
// timestamp only when the submission is strictly greater. Concurrent
// submissions for one tuple therefore can't duplicate rows; the smaller
// one is absorbed by the WHERE clause no matter the interleaving.
//
// The persisted row is read back afterwards so callers always receive the
// current state, updated or not. The second return reports whether a new
// row was created.
func (db *DB) SubmitBest(ctx context.Context, score *model.GameScore) (*model.GameScore, bool, error) {
	id := xid.New().String()
	achieved := time.Now().UTC()
	if score.DateAchieved != nil {
		achieved = *score.DateAchieved
	}

	_, err := db.conn.ExecContext(ctx,
		`INSERT INTO game_scores
			(id, user_id, game_type, score, date_achieved, fret_length, start_string, end_string)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, game_type, fret_length, start_string, end_string)
		 DO UPDATE SET
			score = excluded.score,
			date_achieved = excluded.date_achieved
		 WHERE excluded.score > game_scores.score`,
		id,
		score.UserID,
		score.GameType,
		score.Score,
		achieved,
		score.FretLength,
		score.StartString,
		score.EndString,
	)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: submitting score for user %s: %w", score.UserID, err)
	}

	stored, err := db.GetBest(ctx, score.UserID, score.GameType, score.GameConfig)
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: reading back submitted score: %w", err)
	}

	// Our generated ID survived only if the INSERT branch won.
	return stored, stored.ID == id, nil
}

// Leaderboard returns up to limit rows for the exact config, best first,
// ties broken by most recent achievement.
func (db *DB) Leaderboard(ctx context.Context, gameType string, cfg model.GameConfig, limit int) ([]model.GameScore, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT `+scoreColumns+`
		 FROM game_scores s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.game_type = ?
		   AND s.fret_length = ? AND s.start_string = ? AND s.end_string = ?
		 ORDER BY s.score DESC, s.date_achieved DESC
		 LIMIT ?`,
		gameType, cfg.FretLength, cfg.StartString, cfg.EndString, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite: querying leaderboard: %w", err)
	}
	defer rows.Close()

	var scores []model.GameScore
	for rows.Next() {
		score, err := scanScore(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scanning leaderboard row: %w", err)
		}
		scores = append(scores, *score)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating leaderboard: %w", err)
	}

	return scores, nil
}

func scanScore(row scanner) (*model.GameScore, error) {
	var s model.GameScore
	var achieved time.Time

	err := row.Scan(
		&s.ID,
		&s.UserID,
		&s.Username,
		&s.GameType,
		&s.Score,
		&achieved,
		&s.FretLength,
		&s.StartString,
		&s.EndString,
	)
	if err != nil {
		return nil, err
	}

	s.DateAchieved = &achieved
	return &s, nil
}
