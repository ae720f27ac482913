package stats

import (
	"github.com/gin-gonic/gin"

	"github.com/nvbf/scoreboard-sync/services/relay"
)

// StatsService reports live relay usage: how many consoles are connected
// and how often each shared path is rewritten.
type StatsService struct {
	relay *relay.Relay
}

func NewStatsService(r *relay.Relay) *StatsService {
	return &StatsService{
		relay: r,
	}
}

func (s *StatsService) GetStats(c *gin.Context) (*RelayStats, error) {
	reply := make(chan relay.View, 1)

	select {
	case s.relay.Inbox() <- relay.GetView{Reply: reply}:
	case <-c.Request.Context().Done():
		return nil, c.Request.Context().Err()
	}

	select {
	case view := <-reply:
		totalUpdates := 0
		for _, n := range view.Updates {
			totalUpdates += n
		}
		return &RelayStats{
			ConnectedClients: view.Clients,
			Paths:            view.Paths,
			UpdatesByPath:    view.Updates,
			TotalUpdates:     totalUpdates,
		}, nil
	case <-c.Request.Context().Done():
		return nil, c.Request.Context().Err()
	}
}
