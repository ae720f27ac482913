package appstate

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvbf/scoreboard-sync/pkg/transport"
)

// fakeSync stands in for the transport: it records publishes and lets
// tests push remote documents at the store's handlers.
type fakeSync struct {
	mu        sync.Mutex
	published map[string][]json.RawMessage
	handlers  map[string][]transport.Handler
}

func newFakeSync() *fakeSync {
	return &fakeSync{
		published: make(map[string][]json.RawMessage),
		handlers:  make(map[string][]transport.Handler),
	}
}

func (f *fakeSync) Publish(_ context.Context, path string, value any) {
	doc, err := json.Marshal(value)
	if err != nil {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published[path] = append(f.published[path], doc)
}

func (f *fakeSync) Subscribe(path string, fn transport.Handler) *transport.Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[path] = append(f.handlers[path], fn)
	return &transport.Subscription{}
}

func (f *fakeSync) deliver(path, doc string) {
	f.mu.Lock()
	handlers := append([]transport.Handler(nil), f.handlers[path]...)
	f.mu.Unlock()
	for _, fn := range handlers {
		fn(json.RawMessage(doc))
	}
}

func (f *fakeSync) lastPublished(t *testing.T, path string) json.RawMessage {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	docs := f.published[path]
	require.NotEmpty(t, docs, "expected a publish on %s", path)
	return docs[len(docs)-1]
}

func newTestStore(t *testing.T) (*Store, *fakeSync) {
	t.Helper()
	fake := newFakeSync()
	store := NewStore(fake, zerolog.Nop())
	store.Start()
	return store, fake
}

func sixPlayers(prefix string) []Player {
	players := make([]Player, RotationSize)
	for i := range players {
		players[i] = Player{ID: prefix + string(rune('1'+i)), Number: i + 1}
	}
	return players
}

func liveMatchFixture() LiveMatch {
	return LiveMatch{
		MatchID:   "m1",
		TeamA:     Team{ID: "t1", Name: "OSI"},
		TeamB:     Team{ID: "t2", Name: "TVN"},
		RotationA: sixPlayers("a"),
		RotationB: sixPlayers("b"),
		BenchA:    []Player{{ID: "a-sub", Number: 14}},
		BenchB:    []Player{{ID: "b-sub", Number: 15}},
	}
}

func TestUsersFallBackToDefaultAdmins(t *testing.T) {
	store, fake := newTestStore(t)

	fake.deliver(PathUsers, `[]`)

	users := store.Users()
	require.NotEmpty(t, users, "a client must never end up user-less")
	assert.Equal(t, DefaultUsers(), users)
}

func TestRemoteUpdateOverwritesLocalState(t *testing.T) {
	store, fake := newTestStore(t)

	require.NoError(t, store.AddTeam(context.Background(), Team{ID: "t9", Name: "Local"}))

	// A concurrent writer won the race at the relay: its document is the
	// shared truth and replaces ours wholesale.
	fake.deliver(PathTeams, `[{"id":"t1","name":"Remote"}]`)

	teams := store.Teams()
	require.Len(t, teams, 1)
	assert.Equal(t, "Remote", teams[0].Name)
}

func TestReapplyingDocumentIsIdempotent(t *testing.T) {
	store, fake := newTestStore(t)

	doc := `[{"id":"t1","name":"OSI","players":[{"id":"p1","name":"Anna","number":7}]}]`
	fake.deliver(PathTeams, doc)
	first := store.Teams()
	fake.deliver(PathTeams, doc)

	assert.Equal(t, first, store.Teams())
}

func TestMutationIsOptimisticAndPublishesWholeDocument(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.AddTeam(ctx, Team{ID: "t1", Name: "OSI"}))
	require.NoError(t, store.AddTeam(ctx, Team{ID: "t2", Name: "TVN"}))

	// Local state is visible immediately, before any round-trip.
	assert.Len(t, store.Teams(), 2)

	var published []Team
	require.NoError(t, json.Unmarshal(fake.lastPublished(t, PathTeams), &published))
	assert.Len(t, published, 2, "every publish must carry the complete document, not a delta")

	assert.Error(t, store.AddTeam(ctx, Team{ID: "t1", Name: "Duplicate"}))
}

func TestStartMatchValidatesRotations(t *testing.T) {
	store, _ := newTestStore(t)

	match := liveMatchFixture()
	match.RotationA = match.RotationA[:5]
	assert.Error(t, store.StartMatch(context.Background(), match))
	assert.Nil(t, store.LiveMatch())
}

func TestAwardPointKeepsActiveSetInSync(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartMatch(ctx, liveMatchFixture()))
	require.NoError(t, store.AwardPoint(ctx, SideHome))
	require.NoError(t, store.AwardPoint(ctx, SideHome))
	require.NoError(t, store.AwardPoint(ctx, SideAway))

	match := store.LiveMatch()
	require.NotNil(t, match)
	assert.Equal(t, 2, match.ScoreA)
	assert.Equal(t, 1, match.ScoreB)
	require.Equal(t, match.CurrentSet, len(match.Sets))
	assert.Equal(t, SetScore{Home: 2, Away: 1}, match.Sets[match.CurrentSet-1],
		"displayed score must equal the last element of sets")

	var published LiveMatch
	require.NoError(t, json.Unmarshal(fake.lastPublished(t, PathLiveMatch), &published))
	assert.Equal(t, 2, published.ScoreA)

	assert.Error(t, store.AwardPoint(ctx, "LEFT"))
}

func TestFinalizeSetAppendsByIndex(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartMatch(ctx, liveMatchFixture()))
	require.NoError(t, store.AwardPoint(ctx, SideHome))
	require.NoError(t, store.FinalizeSet(ctx))

	match := store.LiveMatch()
	require.NotNil(t, match)
	assert.Equal(t, 2, match.CurrentSet)
	require.Len(t, match.Sets, 2)
	assert.Equal(t, SetScore{Home: 1, Away: 0}, match.Sets[0], "finalized sets are append-only")
	assert.Zero(t, match.ScoreA)
	assert.Zero(t, match.ScoreB)
}

func TestSubstitutionIsAtomic(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartMatch(ctx, liveMatchFixture()))
	require.NoError(t, store.SubstitutePlayer(ctx, SideHome, "a1", "a-sub"))

	match := store.LiveMatch()
	require.NotNil(t, match)
	assert.Len(t, match.RotationA, RotationSize)
	require.Len(t, match.BenchA, 1)
	assert.Equal(t, "a1", match.BenchA[0].ID)

	onCourt := false
	for _, p := range match.RotationA {
		assert.NotEqual(t, "a1", p.ID, "substituted player must not remain on court")
		if p.ID == "a-sub" {
			onCourt = true
		}
	}
	assert.True(t, onCourt)

	// A failed substitution leaves the rotation untouched.
	before := store.LiveMatch()
	assert.Error(t, store.SubstitutePlayer(ctx, SideHome, "nobody", "a1"))
	assert.Equal(t, before, store.LiveMatch())
}

func TestEndMatchPublishesNull(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartMatch(ctx, liveMatchFixture()))
	store.EndMatch(ctx)

	assert.Nil(t, store.LiveMatch())
	assert.JSONEq(t, "null", string(fake.lastPublished(t, PathLiveMatch)))
}

func TestAbsentLiveMatchMeansNoActiveMatch(t *testing.T) {
	store, fake := newTestStore(t)

	// After a relay restart the snapshot has no liveMatch path; the next
	// value a client sees is null, which must not be an error.
	fake.deliver(PathLiveMatch, `{"matchId":"m1","currentSet":1,"sets":[{"home":3,"away":1}],"scoreA":3,"scoreB":1}`)
	require.NotNil(t, store.LiveMatch())

	fake.deliver(PathLiveMatch, `null`)
	assert.Nil(t, store.LiveMatch())

	assert.Error(t, store.AwardPoint(context.Background(), SideHome))
}

func TestInconsistentRemoteMatchIsAnErrorNotACrash(t *testing.T) {
	store, fake := newTestStore(t)
	ctx := context.Background()

	// The relay forwards any well-formed JSON, so a remote document may
	// point currentSet past the sets it actually carries. Mutations must
	// refuse it instead of indexing out of range.
	fake.deliver(PathLiveMatch, `{"matchId":"m1","currentSet":3,"sets":[{"home":0,"away":0}]}`)
	require.NotNil(t, store.LiveMatch())

	assert.Error(t, store.AwardPoint(ctx, SideHome))
	assert.Error(t, store.GiveCard(ctx, Card{PlayerID: "a1", Side: SideHome, Color: "YELLOW"}))

	fake.deliver(PathLiveMatch, `{"matchId":"m1","currentSet":0,"sets":[]}`)
	assert.Error(t, store.AwardPoint(ctx, SideHome))
}

func TestGiveCardTagsActiveSet(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.StartMatch(ctx, liveMatchFixture()))
	require.NoError(t, store.FinalizeSet(ctx))
	require.NoError(t, store.GiveCard(ctx, Card{PlayerID: "b3", Side: SideAway, Color: "YELLOW"}))

	match := store.LiveMatch()
	require.NotNil(t, match)
	require.Len(t, match.Cards, 1)
	assert.Equal(t, 2, match.Cards[0].Set)
}
