package appstate

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/xerrors"

	"github.com/nvbf/scoreboard-sync/pkg/transport"
)

// Sync is the slice of the transport the store needs.
type Sync interface {
	Publish(ctx context.Context, path string, value any)
	Subscribe(path string, fn transport.Handler) *transport.Subscription
}

// Store bridges the sync transport to UI-observable state. It holds the
// local copy of every shared path, applies remote updates by whole-document
// replacement, and publishes every local mutation as a complete new
// document. Local state is updated before the publish goes out, so the
// originating console never waits on the network.
type Store struct {
	mu     sync.RWMutex
	syncer Sync
	log    zerolog.Logger

	users       []User
	teams       []Team
	tournaments []Tournament
	liveMatch   *LiveMatch

	subs []*transport.Subscription

	// onChange, when set, is called with the path that changed. UI layers
	// hook their re-render here.
	onChange func(path string)
}

func NewStore(s Sync, logger zerolog.Logger) *Store {
	return &Store{
		syncer: s,
		log:    logger,
		users:  DefaultUsers(),
	}
}

// OnChange registers the UI notification hook. Must be called before Start.
func (st *Store) OnChange(fn func(path string)) { st.onChange = fn }

// Start subscribes to every known path. Incoming documents overwrite local
// state unconditionally: whichever publish reached the relay or datastore
// last wins, and all clients converge to it.
func (st *Store) Start() {
	st.subs = append(st.subs,
		st.syncer.Subscribe(PathUsers, st.applyUsers),
		st.syncer.Subscribe(PathTeams, st.applyTeams),
		st.syncer.Subscribe(PathTournaments, st.applyTournaments),
		st.syncer.Subscribe(PathLiveMatch, st.applyLiveMatch),
	)
}

// Stop detaches the store from the transport.
func (st *Store) Stop() {
	for _, sub := range st.subs {
		sub.Cancel()
	}
	st.subs = nil
}

func (st *Store) applyUsers(doc json.RawMessage) {
	var users []User
	if err := json.Unmarshal(doc, &users); err != nil {
		st.log.Warn().Err(err).Msg("ignoring malformed users document")
		return
	}
	if len(users) == 0 {
		// Self-healing bootstrap: the system is never user-less.
		users = DefaultUsers()
	}
	st.mu.Lock()
	st.users = users
	st.mu.Unlock()
	st.notify(PathUsers)
}

func (st *Store) applyTeams(doc json.RawMessage) {
	var teams []Team
	if err := json.Unmarshal(doc, &teams); err != nil {
		st.log.Warn().Err(err).Msg("ignoring malformed teams document")
		return
	}
	st.mu.Lock()
	st.teams = teams
	st.mu.Unlock()
	st.notify(PathTeams)
}

func (st *Store) applyTournaments(doc json.RawMessage) {
	var tournaments []Tournament
	if err := json.Unmarshal(doc, &tournaments); err != nil {
		st.log.Warn().Err(err).Msg("ignoring malformed tournaments document")
		return
	}
	st.mu.Lock()
	st.tournaments = tournaments
	st.mu.Unlock()
	st.notify(PathTournaments)
}

func (st *Store) applyLiveMatch(doc json.RawMessage) {
	// JSON null means no active match, including after a relay restart
	// wiped the path.
	var match *LiveMatch
	if err := json.Unmarshal(doc, &match); err != nil {
		st.log.Warn().Err(err).Msg("ignoring malformed live match document")
		return
	}
	st.mu.Lock()
	st.liveMatch = match
	st.mu.Unlock()
	st.notify(PathLiveMatch)
}

func (st *Store) notify(path string) {
	if st.onChange != nil {
		st.onChange(path)
	}
}

func (st *Store) Users() []User {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]User(nil), st.users...)
}

func (st *Store) Teams() []Team {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]Team(nil), st.teams...)
}

func (st *Store) Tournaments() []Tournament {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return append([]Tournament(nil), st.tournaments...)
}

// LiveMatch returns a copy of the active match, or nil when none is live.
func (st *Store) LiveMatch() *LiveMatch {
	st.mu.RLock()
	defer st.mu.RUnlock()
	if st.liveMatch == nil {
		return nil
	}
	match := *st.liveMatch
	return &match
}

// AddUser appends a user and publishes the full roster.
func (st *Store) AddUser(ctx context.Context, user User) error {
	st.mu.Lock()
	for _, existing := range st.users {
		if existing.ID == user.ID {
			st.mu.Unlock()
			return xerrors.Errorf("user %q already exists", user.ID)
		}
	}
	st.users = append(st.users, user)
	users := append([]User(nil), st.users...)
	st.mu.Unlock()

	st.notify(PathUsers)
	st.syncer.Publish(ctx, PathUsers, users)
	return nil
}

// AddTeam appends a team and publishes the full roster.
func (st *Store) AddTeam(ctx context.Context, team Team) error {
	st.mu.Lock()
	for _, existing := range st.teams {
		if existing.ID == team.ID {
			st.mu.Unlock()
			return xerrors.Errorf("team %q already exists", team.ID)
		}
	}
	st.teams = append(st.teams, team)
	teams := append([]Team(nil), st.teams...)
	st.mu.Unlock()

	st.notify(PathTeams)
	st.syncer.Publish(ctx, PathTeams, teams)
	return nil
}

// RemoveTeam drops a team and publishes the full roster.
func (st *Store) RemoveTeam(ctx context.Context, teamID string) error {
	st.mu.Lock()
	idx := -1
	for i, existing := range st.teams {
		if existing.ID == teamID {
			idx = i
			break
		}
	}
	if idx < 0 {
		st.mu.Unlock()
		return xerrors.Errorf("team %q not found", teamID)
	}
	st.teams = append(st.teams[:idx], st.teams[idx+1:]...)
	teams := append([]Team(nil), st.teams...)
	st.mu.Unlock()

	st.notify(PathTeams)
	st.syncer.Publish(ctx, PathTeams, teams)
	return nil
}

// UpsertTournament replaces or appends a tournament and publishes the full
// list. Tournaments carry their own team snapshot so readers never depend
// on the teams path having landed first.
func (st *Store) UpsertTournament(ctx context.Context, tournament Tournament) {
	st.mu.Lock()
	replaced := false
	for i, existing := range st.tournaments {
		if existing.ID == tournament.ID {
			st.tournaments[i] = tournament
			replaced = true
			break
		}
	}
	if !replaced {
		st.tournaments = append(st.tournaments, tournament)
	}
	tournaments := append([]Tournament(nil), st.tournaments...)
	st.mu.Unlock()

	st.notify(PathTournaments)
	st.syncer.Publish(ctx, PathTournaments, tournaments)
}

// StartMatch makes the given match the single live match and publishes it.
func (st *Store) StartMatch(ctx context.Context, match LiveMatch) error {
	if len(match.RotationA) != RotationSize || len(match.RotationB) != RotationSize {
		return xerrors.Errorf("a live match needs exactly %d players per rotation", RotationSize)
	}
	if len(match.Sets) == 0 {
		match.Sets = []SetScore{{}}
		match.CurrentSet = 1
	}
	if match.CurrentSet != len(match.Sets) {
		return xerrors.Errorf("current set %d does not point at the last of %d sets", match.CurrentSet, len(match.Sets))
	}
	match.ScoreA = match.Sets[len(match.Sets)-1].Home
	match.ScoreB = match.Sets[len(match.Sets)-1].Away

	st.setAndPublishMatch(ctx, &match)
	return nil
}

// AwardPoint scores a point for the given side in the active set.
func (st *Store) AwardPoint(ctx context.Context, side string) error {
	return st.mutateMatch(ctx, func(match *LiveMatch) error {
		set := &match.Sets[match.CurrentSet-1]
		switch side {
		case SideHome:
			set.Home++
		case SideAway:
			set.Away++
		default:
			return xerrors.Errorf("unknown side %q", side)
		}
		match.ScoreA = set.Home
		match.ScoreB = set.Away
		return nil
	})
}

// FinalizeSet closes the active set and opens the next one. Sets are
// append-only: earlier scoreboards stay in place.
func (st *Store) FinalizeSet(ctx context.Context) error {
	return st.mutateMatch(ctx, func(match *LiveMatch) error {
		match.Sets = append(match.Sets, SetScore{})
		match.CurrentSet = len(match.Sets)
		match.ScoreA = 0
		match.ScoreB = 0
		return nil
	})
}

// SubstitutePlayer swaps a rotation player with a bench player on one
// side. The move is atomic: the published document never shows a player
// in both lists or in neither.
func (st *Store) SubstitutePlayer(ctx context.Context, side, outID, inID string) error {
	return st.mutateMatch(ctx, func(match *LiveMatch) error {
		rotation, bench := &match.RotationA, &match.BenchA
		if side == SideAway {
			rotation, bench = &match.RotationB, &match.BenchB
		}

		outIdx, inIdx := -1, -1
		for i, p := range *rotation {
			if p.ID == outID {
				outIdx = i
				break
			}
		}
		for i, p := range *bench {
			if p.ID == inID {
				inIdx = i
				break
			}
		}
		if outIdx < 0 {
			return xerrors.Errorf("player %q is not on court", outID)
		}
		if inIdx < 0 {
			return xerrors.Errorf("player %q is not on the bench", inID)
		}

		(*rotation)[outIdx], (*bench)[inIdx] = (*bench)[inIdx], (*rotation)[outIdx]
		return nil
	})
}

// GiveCard records a sanction on the live match.
func (st *Store) GiveCard(ctx context.Context, card Card) error {
	return st.mutateMatch(ctx, func(match *LiveMatch) error {
		card.Set = match.CurrentSet
		match.Cards = append(match.Cards, card)
		return nil
	})
}

// EndMatch closes the broadcast by publishing null for the live match.
func (st *Store) EndMatch(ctx context.Context) {
	st.setAndPublishMatch(ctx, nil)
}

// mutateMatch applies fn to a copy of the live match, commits it locally,
// then publishes the complete document.
func (st *Store) mutateMatch(ctx context.Context, fn func(*LiveMatch) error) error {
	st.mu.Lock()
	if st.liveMatch == nil {
		st.mu.Unlock()
		return xerrors.New("no live match")
	}
	// Remote writers can publish any well-formed JSON; never index sets
	// on their say-so.
	if st.liveMatch.CurrentSet < 1 || st.liveMatch.CurrentSet > len(st.liveMatch.Sets) {
		current, total := st.liveMatch.CurrentSet, len(st.liveMatch.Sets)
		st.mu.Unlock()
		return xerrors.Errorf("live match is inconsistent: current set %d of %d", current, total)
	}
	match := cloneMatch(*st.liveMatch)
	if err := fn(&match); err != nil {
		st.mu.Unlock()
		return err
	}
	st.liveMatch = &match
	published := match
	st.mu.Unlock()

	st.notify(PathLiveMatch)
	st.syncer.Publish(ctx, PathLiveMatch, &published)
	return nil
}

func (st *Store) setAndPublishMatch(ctx context.Context, match *LiveMatch) {
	st.mu.Lock()
	st.liveMatch = match
	st.mu.Unlock()

	st.notify(PathLiveMatch)
	st.syncer.Publish(ctx, PathLiveMatch, match)
}

func cloneMatch(match LiveMatch) LiveMatch {
	match.Sets = append([]SetScore(nil), match.Sets...)
	match.RotationA = append([]Player(nil), match.RotationA...)
	match.RotationB = append([]Player(nil), match.RotationB...)
	match.BenchA = append([]Player(nil), match.BenchA...)
	match.BenchB = append([]Player(nil), match.BenchB...)
	match.Cards = append([]Card(nil), match.Cards...)
	return match
}
