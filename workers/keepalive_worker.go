// workers/keepalive_worker.go
package workers

import (
	"context"
	"log"
	"time"

	"badminton-data-system/services"
)

// KeepaliveWorker re-logs-in on a fixed interval to keep the upstream session
// warm, regardless of how fresh the current credential looks. The sync engine
// still performs its own login before every cycle; this worker only covers
// the long gaps between cycles.
type KeepaliveWorker struct {
	auth     *services.AuthService
	interval time.Duration
}

func NewKeepaliveWorker(auth *services.AuthService) *KeepaliveWorker {
	return &KeepaliveWorker{
		auth:     auth,
		interval: 2 * time.Hour,
	}
}

func (w *KeepaliveWorker) Start(ctx context.Context) {
	log.Println("🔁 Starting token keepalive worker…")
	go w.run(ctx)
}

func (w *KeepaliveWorker) run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			log.Println("💓 [AUTH] keepalive check...")
			if err := w.auth.Login(ctx); err != nil {
				// Next tick (or the next sync cycle) retries; nothing else
				// to do here.
				log.Printf("⚠️ Keepalive login failed: %v", err)
			}
		case <-ctx.Done():
			log.Println("⏹️ Token keepalive worker stopped")
			return
		}
	}
}
