package services

import (
	"context"
	"log"
	"time"

	"badminton-data-system/models"
)

// DiscoveryService finds completed tournaments for the configured region.
type DiscoveryService struct {
	client      *UpstreamClient
	sportsID    int
	province    string
	city        string
	recencyDays int
}

func NewDiscoveryService(client *UpstreamClient, sportsID int, province, city string, recencyDays int) *DiscoveryService {
	return &DiscoveryService{
		client:      client,
		sportsID:    sportsID,
		province:    province,
		city:        city,
		recencyDays: recencyDays,
	}
}

// ListRecentTournaments returns completed tournaments whose end date falls
// within the recency window. Upstream's own status filter is unreliable, so
// the window is re-checked client-side against end_game_time, falling back to
// start_date. Fails soft: any error yields an empty list and a warning; the
// caller decides what empty means.
func (d *DiscoveryService) ListRecentTournaments(ctx context.Context) []models.Tournament {
	log.Printf("🔎 [DISCOVER] fetching tournament list (%s %s)...", d.province, d.city)

	list, err := d.client.GameList(ctx, d.sportsID, d.province, d.city)
	if err != nil {
		log.Printf("⚠️  [DISCOVER] tournament list fetch failed: %v", err)
		return nil
	}

	cutoff := time.Now().AddDate(0, 0, -d.recencyDays)
	var recent []models.Tournament
	for _, t := range list {
		if t.ID == "" {
			continue
		}
		switch {
		case t.EndGameTime > 0:
			if time.Unix(t.EndGameTime, 0).After(cutoff) {
				recent = append(recent, t)
			}
		case t.StartDate != "":
			if start, err := time.Parse("2006-01-02", t.StartDate); err == nil && start.After(cutoff) {
				recent = append(recent, t)
			}
		}
	}

	log.Printf("✅ [DISCOVER] %d of %d tournaments within the last %d days", len(recent), len(list), d.recencyDays)
	return recent
}
