package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/sakif/guitar-games/internal/apperror"
	"github.com/sakif/guitar-games/internal/auth"
	"github.com/sakif/guitar-games/internal/model"
)

// ScoreService is the slice of service.ScoreService the handlers call.
type ScoreService interface {
	BestScore(ctx context.Context, user *model.User, gameType string, cfg model.GameConfig, currentScore int) (*model.GameScore, error)
	Submit(ctx context.Context, user *model.User, gameType string, cfg model.GameConfig, points int) (*model.GameScore, bool, error)
	Leaderboard(ctx context.Context, gameType string, cfg model.GameConfig, limit int) ([]model.GameScore, error)
}

type ScoreHandler struct {
	scores ScoreService
	logger *slog.Logger
}

func NewScoreHandler(scores ScoreService, logger *slog.Logger) *ScoreHandler {
	return &ScoreHandler{scores: scores, logger: logger}
}

// HandleGetBest returns the caller's best score for a configuration.
//
// HTTP: GET /api/game-scores?game_type&fret_length&start_string&end_string&current_score
//
// Missing config parameters take the fretboard defaults (12, 6, 1); a
// present but non-integer one is a validation error. current_score is the
// round the player just finished — it feeds the synthetic result for
// configs with no stored row, and a malformed value degrades to 0 rather
// than failing the read.
func (h *ScoreHandler) HandleGetBest(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	gameType := queryDefault(r, "game_type", model.GameFretboard)
	cfg, err := configFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	currentScore := 0
	if raw := r.URL.Query().Get("current_score"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil {
			currentScore = n
		}
	}

	best, err := h.scores.BestScore(r.Context(), user, gameType, cfg, currentScore)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, best)
}

// HandleSubmit records a finished round's score.
//
// HTTP: POST /api/game-scores → 201 on first submission for the config,
// 200 otherwise; both return the persisted row.
//
// The web client sends numeric fields as either JSON numbers or strings,
// so they are decoded through flexInt.
func (h *ScoreHandler) HandleSubmit(w http.ResponseWriter, r *http.Request) {
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		writeError(w, apperror.Unauthorized("valid authentication required"))
		return
	}

	var req struct {
		GameType    string   `json:"game_type"`
		FretLength  *flexInt `json:"fret_length"`
		StartString *flexInt `json:"start_string"`
		EndString   *flexInt `json:"end_string"`
		Score       *flexInt `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var flexErr *flexIntError
		if errors.As(err, &flexErr) {
			writeError(w, apperror.ValidationFailed("", flexErr.Error()))
			return
		}
		writeError(w, apperror.ValidationFailed("", "invalid JSON body"))
		return
	}
	if req.Score == nil {
		writeError(w, apperror.ValidationFailed("score", "score is required"))
		return
	}

	gameType := req.GameType
	if gameType == "" {
		gameType = model.GameFretboard
	}

	cfg := model.DefaultGameConfig()
	if req.FretLength != nil {
		cfg.FretLength = int(*req.FretLength)
	}
	if req.StartString != nil {
		cfg.StartString = int(*req.StartString)
	}
	if req.EndString != nil {
		cfg.EndString = int(*req.EndString)
	}

	stored, created, err := h.scores.Submit(r.Context(), user, gameType, cfg, int(*req.Score))
	if err != nil {
		writeError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, stored)
}

// HandleLeaderboard returns the top scores for one configuration. Public —
// no token needed to browse the rankings.
//
// HTTP: GET /api/leaderboard?game_type&fret_length&start_string&end_string&limit
func (h *ScoreHandler) HandleLeaderboard(w http.ResponseWriter, r *http.Request) {
	gameType := queryDefault(r, "game_type", model.GameFretboard)
	cfg, err := configFromQuery(r)
	if err != nil {
		writeError(w, err)
		return
	}

	limit, err := queryInt(r, "limit", 10)
	if err != nil {
		writeError(w, err)
		return
	}

	board, err := h.scores.Leaderboard(r.Context(), gameType, cfg, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if board == nil {
		board = []model.GameScore{}
	}

	writeJSON(w, http.StatusOK, board)
}

func configFromQuery(r *http.Request) (model.GameConfig, error) {
	fretLength, err := queryInt(r, "fret_length", model.DefaultFretLength)
	if err != nil {
		return model.GameConfig{}, err
	}
	startString, err := queryInt(r, "start_string", model.DefaultStartString)
	if err != nil {
		return model.GameConfig{}, err
	}
	endString, err := queryInt(r, "end_string", model.DefaultEndString)
	if err != nil {
		return model.GameConfig{}, err
	}
	return model.GameConfig{FretLength: fretLength, StartString: startString, EndString: endString}, nil
}

func queryDefault(r *http.Request, name, fallback string) string {
	if v := r.URL.Query().Get(name); v != "" {
		return v
	}
	return fallback
}

func queryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, apperror.ValidationFailed(name, "invalid numeric parameter "+name)
	}
	return n, nil
}

// flexInt decodes from a JSON number or a numeric string ("12" and 12 are
// both accepted).
type flexInt int

type flexIntError struct {
	raw string
}

func (e *flexIntError) Error() string {
	return "invalid integer value " + e.raw
}

func (f *flexInt) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return &flexIntError{raw: string(data)}
	}
	*f = flexInt(n)
	return nil
}
