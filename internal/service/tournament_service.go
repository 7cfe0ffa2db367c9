package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/AdamBeresnev/op-tournaments/internal/bracket"
	"github.com/AdamBeresnev/op-tournaments/internal/utils"
	"github.com/google/uuid"
)

type TournamentService struct {
	*core
}

func NewTournamentService(repo Repository, gen *bracket.Generator, opts Options) *TournamentService {
	return &TournamentService{core: newCore(repo, gen, opts)}
}

type CreateTournamentInput struct {
	Name      string
	Phases    []bracket.Phase
	PrizePool int64
}

func (s *TournamentService) CreateTournament(ctx context.Context, input CreateTournamentInput) (*bracket.Tournament, error) {
	name := utils.StringOrNil(input.Name)
	if name == nil {
		return nil, fmt.Errorf("%w: tournament name is empty", bracket.ErrConfigurationInvalid)
	}
	if len(input.Phases) == 0 {
		return nil, fmt.Errorf("%w: tournament needs at least one phase", bracket.ErrConfigurationInvalid)
	}
	seen := make(map[int]bool, len(input.Phases))
	for _, phase := range input.Phases {
		if err := phase.Validate(); err != nil {
			return nil, err
		}
		if seen[phase.ID] {
			return nil, fmt.Errorf("%w: duplicate phase id %d", bracket.ErrConfigurationInvalid, phase.ID)
		}
		seen[phase.ID] = true
	}

	t := &bracket.Tournament{
		ID:             uuid.New(),
		Name:           *name,
		Status:         bracket.TournamentRegistration,
		Phases:         input.Phases,
		CurrentPhaseID: input.Phases[0].ID,
		PrizePool:      input.PrizePool,
		CreatedAt:      s.now().UTC(),
	}
	if err := s.repo.CreateTournament(ctx, t); err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "tournament created", "tournament_id", t.ID, "phases", len(t.Phases))
	return t, nil
}

func (s *TournamentService) GetTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.repo.GetTournament(ctx, id)
}

type RegisterPlayerInput struct {
	PlayerID string
	Nick     string
	PartyID  string
}

func (s *TournamentService) RegisterPlayer(ctx context.Context, tournamentID uuid.UUID, input RegisterPlayerInput) (*bracket.Player, error) {
	var player bracket.Player
	_, err := s.update(ctx, tournamentID, "register_player", func(t *bracket.Tournament) (bool, error) {
		if !t.Status.AcceptsPlayers() {
			return false, fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, t.ID, t.Status)
		}
		player = bracket.Player{
			ID:           input.PlayerID,
			Nick:         utils.OrZero(utils.StringOrNil(input.Nick)),
			PartyID:      input.PartyID,
			Seed:         len(t.Players) + 1,
			RegisteredAt: s.now().UTC(),
		}
		if player.Nick == "" {
			player.Nick = input.PlayerID
		}
		return true, t.AddPlayer(player)
	})
	if err != nil {
		return nil, err
	}
	return &player, nil
}

func (s *TournamentService) StartTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.update(ctx, id, "start_tournament", func(t *bracket.Tournament) (bool, error) {
		if t.Status != bracket.TournamentRegistration {
			return false, fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, t.ID, t.Status)
		}
		t.Status = bracket.TournamentStarted
		t.CurrentPhaseID = t.Phases[0].ID
		return true, nil
	})
}

// CancelTournament stops the tournament and closes every match still open.
func (s *TournamentService) CancelTournament(ctx context.Context, id uuid.UUID) (*bracket.Tournament, error) {
	return s.update(ctx, id, "cancel_tournament", func(t *bracket.Tournament) (bool, error) {
		switch t.Status {
		case bracket.TournamentCanceled:
			return false, nil
		case bracket.TournamentCompleted:
			return false, fmt.Errorf("%w: tournament %s is already completed", bracket.ErrInvalidState, t.ID)
		case bracket.TournamentRegistration, bracket.TournamentStarted:
		}
		now := s.now()
		for i := range t.AllMatches {
			if !t.AllMatches[i].IsOpen() {
				continue
			}
			if err := t.AllMatches[i].Transition(bracket.MatchClosed, now); err != nil {
				return false, err
			}
		}
		t.Status = bracket.TournamentCanceled
		return true, nil
	})
}

// SweepWalkovers resolves every overdue match of an active tournament and
// advances the bracket past them.
func (s *TournamentService) SweepWalkovers(ctx context.Context, id uuid.UUID) ([]bracket.WalkoverOutcome, error) {
	var outcomes []bracket.WalkoverOutcome
	_, err := s.update(ctx, id, "sweep_walkovers", func(t *bracket.Tournament) (bool, error) {
		outcomes = nil
		if !t.Status.IsActive() {
			return false, nil
		}
		now := s.now()
		resolved, err := bracket.ResolveWalkovers(t, now, s.grace)
		if err != nil {
			s.logger.WarnContext(ctx, "some walkovers could not be resolved", "tournament_id", t.ID, "error", err)
		}
		outcomes = resolved
		if len(resolved) == 0 {
			return false, nil
		}
		_, err = s.settle(ctx, t, now)
		return true, err
	})
	if err != nil {
		return nil, err
	}
	for _, o := range outcomes {
		s.metrics.WalkoverResolved(string(o.Resolution))
		s.logger.InfoContext(ctx, "walkover resolved",
			"tournament_id", id, "match_id", o.MatchID, "resolution", o.Resolution, "winner_team_id", o.WinnerTeamID)
	}
	return outcomes, nil
}

// generateCurrentPhase materializes the current phase once. It reports
// bracket.ErrConfigurationInvalid for a phase that cannot be generated.
func (s *TournamentService) generateCurrentPhase(ctx context.Context, id uuid.UUID) error {
	_, err := s.update(ctx, id, "generate_phase", func(t *bracket.Tournament) (bool, error) {
		progress := t.ProgressOf(t.CurrentPhaseID)
		if progress.Generated {
			return false, nil
		}
		players := t.EligiblePlayers(t.CurrentPhaseID)
		if err := s.gen.GeneratePhase(t, t.CurrentPhaseID, players, s.now()); err != nil {
			return false, err
		}
		s.logger.InfoContext(ctx, "phase generated",
			"tournament_id", t.ID, "phase_id", t.CurrentPhaseID, "players", len(players))
		return true, nil
	})
	return err
}

// GetOrCreateActiveMatch returns the open match the player should play next,
// creating or joining one when the bracket allows it.
func (s *TournamentService) GetOrCreateActiveMatch(ctx context.Context, tournamentID uuid.UUID, playerID string) (*bracket.Match, error) {
	if _, err := s.SweepWalkovers(ctx, tournamentID); err != nil {
		if errors.Is(err, bracket.ErrNotFound) {
			return nil, err
		}
		s.logger.WarnContext(ctx, "walkover sweep failed", "tournament_id", tournamentID, "error", err)
	}

	var match *bracket.Match
	err := s.withRetry(ctx, "get_or_create_match", func() error {
		t, err := s.repo.GetTournament(ctx, tournamentID)
		if err != nil {
			return err
		}
		if !t.ProgressOf(t.CurrentPhaseID).Generated && t.Status.IsActive() {
			if err := s.generateCurrentPhase(ctx, t.ID); err != nil {
				if errors.Is(err, bracket.ErrConfigurationInvalid) {
					s.logger.ErrorContext(ctx, "phase generation skipped", "tournament_id", t.ID, "phase_id", t.CurrentPhaseID, "error", err)
				}
				return err
			}
			if t, err = s.repo.GetTournament(ctx, tournamentID); err != nil {
				return err
			}
		}

		switch t.Status {
		case bracket.TournamentCompleted:
			return fmt.Errorf("%w: tournament %s is completed", bracket.ErrNoMatchAvailable, t.ID)
		case bracket.TournamentRegistration, bracket.TournamentCanceled:
			return fmt.Errorf("%w: tournament %s is %s", bracket.ErrInvalidState, t.ID, t.Status)
		case bracket.TournamentStarted:
		}
		player, ok := t.Player(playerID)
		if !ok {
			return fmt.Errorf("%w: player %s in tournament %s", bracket.ErrNotFound, playerID, t.ID)
		}
		phase, err := t.CurrentPhase()
		if err != nil {
			return err
		}

		if m := t.OpenMatchFor(phase.ID, playerID); m != nil {
			match = utils.Ptr(*m)
			return nil
		}

		switch phase.Type {
		case bracket.SingleElimination:
			match, err = s.joinElimination(ctx, t, *phase, *player)
			return err
		case bracket.Groups:
			match, err = s.spectateGroup(t, *phase, playerID)
			return err
		}
		return fmt.Errorf("%w: phase %d has unknown type %q", bracket.ErrConfigurationInvalid, phase.ID, phase.Type)
	})
	if err != nil {
		return nil, err
	}
	return match, nil
}

func (s *TournamentService) joinElimination(ctx context.Context, t *bracket.Tournament, phase bracket.Phase, player bracket.Player) (*bracket.Match, error) {
	progress := t.ProgressOf(phase.ID)
	if progress.Completed {
		return nil, fmt.Errorf("%w: phase %d is decided", bracket.ErrNoMatchAvailable, phase.ID)
	}
	eligible := false
	for _, p := range t.EligiblePlayers(phase.ID) {
		eligible = eligible || p.ID == player.ID
	}
	if !eligible {
		return nil, fmt.Errorf("%w: player %s is not in phase %d", bracket.ErrNoMatchAvailable, player.ID, phase.ID)
	}

	won, eliminated := t.LastWonRound(phase.ID, player.ID)
	if eliminated {
		return nil, fmt.Errorf("%w: player %s was eliminated", bracket.ErrNoMatchAvailable, player.ID)
	}
	target := won + 1
	if phase.RoundCount > 0 && target > phase.RoundCount {
		return nil, fmt.Errorf("%w: player %s finished the last round", bracket.ErrNoMatchAvailable, player.ID)
	}

	capacity := phase.TeamsPerMatch()
	now := s.now()
	if slot := t.OpenSlot(phase.ID, target, capacity); slot != nil {
		return s.repo.ConditionallyUpdateMatch(ctx, t.ID, slot.ID,
			func(m *bracket.Match) error {
				return m.AddTeam(bracket.NewTeam(player), capacity, now)
			},
			func(fresh *bracket.Tournament, m bracket.Match) bool {
				return m.HasCapacity(capacity) && fresh.OpenMatchFor(phase.ID, player.ID) == nil
			})
	}

	m, err := s.gen.NewWaitingMatch(phase, target, bracket.NewTeam(player), now)
	if err != nil {
		return nil, err
	}
	// A slot opened by a concurrent join must be filled rather than left
	// waiting next to this one.
	err = s.repo.AppendMatch(ctx, t.ID, m, func(fresh *bracket.Tournament) bool {
		return fresh.OpenSlot(phase.ID, target, capacity) == nil
	})
	if err != nil {
		return nil, err
	}
	s.logger.InfoContext(ctx, "waiting match opened", "tournament_id", t.ID, "match_id", m.ID, "round", target, "player_id", player.ID)
	return &m, nil
}

// spectateGroup returns another open match of the player's group.
func (s *TournamentService) spectateGroup(t *bracket.Tournament, phase bracket.Phase, playerID string) (*bracket.Match, error) {
	groupID, ok := t.GroupOf(phase.ID, playerID)
	if !ok {
		return nil, fmt.Errorf("%w: player %s has no group in phase %d", bracket.ErrNoMatchAvailable, playerID, phase.ID)
	}
	for _, i := range t.PhaseMatches(phase.ID) {
		m := t.AllMatches[i]
		if m.GroupID == groupID && m.IsOpen() && !m.HasPlayer(playerID) {
			return &m, nil
		}
	}
	return nil, fmt.Errorf("%w: group %d has no open match", bracket.ErrNoMatchAvailable, groupID)
}

func (s *TournamentService) Standings(ctx context.Context, id uuid.UUID) ([]bracket.Standing, error) {
	t, err := s.repo.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	return bracket.Rank(t), nil
}

func (s *TournamentService) GroupStandings(ctx context.Context, id uuid.UUID, phaseID, groupID int) ([]bracket.Standing, error) {
	t, err := s.repo.GetTournament(ctx, id)
	if err != nil {
		return nil, err
	}
	for _, g := range t.PhaseGroups(phaseID) {
		if g.ID == groupID {
			return bracket.RankGroup(t, phaseID, groupID), nil
		}
	}
	return nil, fmt.Errorf("%w: group %d in phase %d", bracket.ErrNotFound, groupID, phaseID)
}

// ActiveTournamentIDs lists the tournaments the periodic sweep should visit.
func (s *TournamentService) ActiveTournamentIDs(ctx context.Context) ([]uuid.UUID, error) {
	active, err := s.repo.ListActiveTournaments(ctx)
	if err != nil {
		return nil, err
	}
	ids := make([]uuid.UUID, len(active))
	for i, t := range active {
		ids[i] = t.ID
	}
	return ids, nil
}
