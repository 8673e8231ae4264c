// workers/connectivity_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"ladder-match-system/services"
)

// PollConnectivity re-scans in-progress matches for players whose
// live-connection signal dropped after the match started. The tracking
// records themselves are resolved by the scheduler's due-check sweep.
func PollConnectivity(ctx context.Context, shadowBans *services.ShadowBanService, interval time.Duration) {
	log.Printf("🔁 Starting connectivity poller (every %s)…", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			shadowBans.ScanActiveMatches()
		case <-ctx.Done():
			log.Println("⏹️ Connectivity poller stopped")
			return
		}
	}
}
