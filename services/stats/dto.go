package stats

// RelayStats is the wire shape of the relay usage report.
type RelayStats struct {
	ConnectedClients int            `json:"connectedClients"`
	Paths            []string       `json:"paths"`
	UpdatesByPath    map[string]int `json:"updatesByPath"`
	TotalUpdates     int            `json:"totalUpdates"`
}
