package appstate

// Named paths of the shared application state. Every path is written and
// read as one complete replacement document.
const (
	PathUsers       = "users"
	PathTeams       = "teams"
	PathTournaments = "tournaments"
	PathLiveMatch   = "liveMatch"
)

// Team sides as the scoring consoles report them.
const (
	SideHome = "HOME"
	SideAway = "AWAY"
)

// RotationSize is the number of players on court per side while a match
// is live.
const RotationSize = 6

type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Player struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Number   int    `json:"number"`
	Position string `json:"position,omitempty"`
}

type Team struct {
	ID      string   `json:"id"`
	Name    string   `json:"name"`
	Players []Player `json:"players"`
}

type Fixture struct {
	ID         string  `json:"id"`
	Round      int     `json:"round"`
	HomeTeamID string  `json:"homeTeamId"`
	AwayTeamID string  `json:"awayTeamId"`
	Court      *string `json:"court,omitempty"`
	StartTime  *string `json:"startTime,omitempty"`
}

type Tournament struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	StartDate string    `json:"startDate,omitempty"`
	EndDate   string    `json:"endDate,omitempty"`
	Teams     []Team    `json:"teams"`
	Fixtures  []Fixture `json:"fixtures"`
}

type SetScore struct {
	Home int `json:"home"`
	Away int `json:"away"`
}

type Card struct {
	PlayerID string `json:"playerId"`
	Side     string `json:"side"`
	Color    string `json:"color"`
	Set      int    `json:"set"`
}

// LiveMatch is the single currently active match. The active set's
// scoreboard is always the last element of Sets, at index CurrentSet-1;
// ScoreA/ScoreB mirror it for display clients.
type LiveMatch struct {
	MatchID      string     `json:"matchId"`
	TournamentID string     `json:"tournamentId,omitempty"`
	TeamA        Team       `json:"teamA"`
	TeamB        Team       `json:"teamB"`
	ScoreA       int        `json:"scoreA"`
	ScoreB       int        `json:"scoreB"`
	CurrentSet   int        `json:"currentSet"`
	Sets         []SetScore `json:"sets"`
	ServingSide  string     `json:"servingSide,omitempty"`
	RotationA    []Player   `json:"rotationA"`
	RotationB    []Player   `json:"rotationB"`
	BenchA       []Player   `json:"benchA"`
	BenchB       []Player   `json:"benchB"`
	Cards        []Card     `json:"cards,omitempty"`
}

// DefaultUsers is the hard-coded admin roster the users path falls back to
// whenever the remote value is absent or empty, so a deployment is never
// user-less.
func DefaultUsers() []User {
	return []User{
		{ID: "admin", Name: "Administrator", Email: "admin@localhost", Role: "admin"},
	}
}
