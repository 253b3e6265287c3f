package model

import "time"

// Game types. Only the fretboard note finder exists today; the column is a
// free string so new games don't need a schema change.
const GameFretboard = "fretboard"

// Default configuration applied when score queries omit parameters: full
// 12-fret span across all six strings.
const (
	DefaultFretLength  = 12
	DefaultStartString = 6
	DefaultEndString   = 1
)

// GameConfig identifies one scoring leaderboard: the fret span practised
// and the string range (6 = low E, 1 = high E).
type GameConfig struct {
	FretLength  int `json:"fret_length"`
	StartString int `json:"start_string"`
	EndString   int `json:"end_string"`
}

// DefaultGameConfig returns the config used when a client sends none.
func DefaultGameConfig() GameConfig {
	return GameConfig{
		FretLength:  DefaultFretLength,
		StartString: DefaultStartString,
		EndString:   DefaultEndString,
	}
}

// GameScore is a user's best score for one (game type, config) tuple.
// There is at most one row per (user, game type, fret length, start string,
// end string) — enforced by a unique index — and Score only ever increases.
//
// DateAchieved is a pointer because the score service synthesizes a result
// with a null timestamp for first-time players with no persisted row.
// Username is filled from a join for leaderboard and summary responses.
type GameScore struct {
	ID           string     `json:"id"`
	UserID       string     `json:"-"`
	Username     string     `json:"username"`
	GameType     string     `json:"game_type"`
	Score        int        `json:"score"`
	DateAchieved *time.Time `json:"date_achieved"`
	GameConfig
}
