package bracket

import (
	"cmp"
	"fmt"
	"slices"
	"time"
)

const (
	GameWinPoints     = 1
	MatchWinBonus     = 3
	ConsolationPoints = 1
)

type PlayerPlace struct {
	PlayerID string `json:"player_id"`
	Place    int    `json:"place"`
	Points   int    `json:"points"`
}

// GameResult is one finished game. GameID identifies the game session and is
// used to reject a result that was already applied.
type GameResult struct {
	GameID string        `json:"game_id"`
	Places []PlayerPlace `json:"places"`
}

type ScoreOutcome struct {
	Finished     bool
	WinnerTeamID int
}

// ApplyGameResult adds one game to the match and decides whether it is over.
func ApplyGameResult(m *Match, result GameResult, now time.Time) (ScoreOutcome, error) {
	switch m.Status {
	case MatchGameReady, MatchGameInProgress:
	case MatchCreated, MatchWaitingForOpponent, MatchGameFinished, MatchFinished, MatchClosed:
		return ScoreOutcome{}, fmt.Errorf("%w: match %s does not accept results while %s", ErrInvalidState, m.ID, m.Status)
	}
	if result.GameID != "" && slices.Contains(m.ProcessedGames, result.GameID) {
		return ScoreOutcome{}, fmt.Errorf("%w: game %s was already applied to match %s", ErrInvalidState, result.GameID, m.ID)
	}
	for _, place := range result.Places {
		if !m.HasPlayer(place.PlayerID) {
			return ScoreOutcome{}, fmt.Errorf("%w: player %s in match %s", ErrNotFound, place.PlayerID, m.ID)
		}
	}

	if m.Status == MatchGameReady {
		if err := m.Transition(MatchGameInProgress, now); err != nil {
			return ScoreOutcome{}, err
		}
	}

	m.CurrentGameCount++
	for _, place := range result.Places {
		entry := m.Entry(place.PlayerID)
		entry.MatchPoints += place.Points
		if place.Place == 1 {
			entry.Score++
			entry.Points += GameWinPoints
		}
	}
	if ti := gameWinner(m, result); ti >= 0 {
		m.Teams[ti].Score++
	}
	m.recomputeTeams()
	if result.GameID != "" {
		m.ProcessedGames = append(m.ProcessedGames, result.GameID)
	}
	if err := m.Transition(MatchGameFinished, now); err != nil {
		return ScoreOutcome{}, err
	}

	order := teamOrder(m.Teams)
	leader := order[0]
	winScore := cmp.Or(m.WinScore, DefaultWinScore)
	maxGames := cmp.Or(m.MaxGameCount, DefaultMaxGameCount)

	switch {
	case m.Teams[leader].Score >= winScore:
		return finishMatch(m, leader, -1, now)
	case m.CurrentGameCount >= maxGames:
		runnerUp := -1
		if len(order) > 1 {
			runnerUp = order[1]
		}
		return finishMatch(m, leader, runnerUp, now)
	default:
		if err := m.Transition(MatchGameReady, now); err != nil {
			return ScoreOutcome{}, err
		}
		m.Deadline = now.Add(FullMatchDeadline)
		return ScoreOutcome{}, nil
	}
}

// gameWinner returns the index of the team holding the best place of the
// game, or -1 when nobody placed. A team wins a game once no matter how many
// of its members share that place; equal places go to the earlier team.
func gameWinner(m *Match, result GameResult) int {
	winner, best := -1, 0
	for ti, team := range m.Teams {
		for _, place := range result.Places {
			if place.Place < 1 || !slices.Contains(team.PlayerIDs(), place.PlayerID) {
				continue
			}
			if winner < 0 || place.Place < best {
				winner, best = ti, place.Place
			}
		}
	}
	return winner
}
