package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/store"

	"github.com/go-co-op/gocron/v2"
)

// SyncService orchestrates one incremental cycle:
// LOGIN -> DISCOVER -> per-tournament per-kind CHECK -> HARVEST -> MERGE ->
// PERSIST. It is the store's only writer.
type SyncService struct {
	auth      *AuthService
	discovery *DiscoveryService
	harvester *HarvesterService
	store     *store.Store

	// pause between a tournament's ranking and match harvests; politeness
	// toward the upstream, shortened in tests.
	pause time.Duration

	// onPersist runs after a successful persist (cache invalidation,
	// snapshot publishing).
	onPersist func()
}

func NewSyncService(auth *AuthService, discovery *DiscoveryService, harvester *HarvesterService, st *store.Store) *SyncService {
	return &SyncService{
		auth:      auth,
		discovery: discovery,
		harvester: harvester,
		store:     st,
		pause:     time.Second,
	}
}

// OnPersist registers a hook invoked after every successful persist.
func (s *SyncService) OnPersist(fn func()) { s.onPersist = fn }

// RunCycle executes one full sync. Only two failure classes escape: a
// rejected login (nothing persisted this cycle) and a persistence failure.
// Discovery and harvesting errors degrade to "no new records".
func (s *SyncService) RunCycle(ctx context.Context) error {
	log.Printf("📅 [SYNC] >>> cycle started <<<")

	if err := s.auth.Login(ctx); err != nil {
		return fmt.Errorf("sync cycle aborted: %w", err)
	}

	games := s.discovery.ListRecentTournaments(ctx)

	rankedIDs := s.store.RankedRaceIDs()
	matchedIDs := s.store.MatchedRaceIDs()
	log.Printf("📊 [SYNC] store has rankings for %d and matches for %d tournaments", len(rankedIDs), len(matchedIDs))

	var newRankings []models.Ranking
	var newMatches []models.Match

	for i, game := range games {
		_, hasRank := rankedIDs[game.RaceID()]
		_, hasMatch := matchedIDs[game.RaceID()]
		if hasRank && hasMatch {
			continue
		}

		log.Printf("⚙️  [SYNC] processing [%d/%d] %s", i+1, len(games), game.GameName)

		// Incrementality is per (tournament, record kind): a tournament with
		// rankings cached but matches missing is re-harvested for matches
		// only, and vice versa.
		if !hasRank {
			if ranks := s.harvester.HarvestRankings(ctx, game); len(ranks) > 0 {
				newRankings = append(newRankings, ranks...)
				log.Printf("   + %d ranking rows", len(ranks))
			}
			sleepCtx(ctx, s.pause)
		}
		if !hasMatch {
			if matches := s.harvester.HarvestMatches(ctx, game); len(matches) > 0 {
				newMatches = append(newMatches, matches...)
				log.Printf("   + %d match rows", len(matches))
			}
			sleepCtx(ctx, s.pause)
		}
	}

	// Merge is append-only: previously fetched records are never removed or
	// mutated, which keeps the cycle idempotent when upstream returns the
	// same tournament list again.
	mergedRankings := mergeRecords(s.store.Rankings().Data, newRankings)
	mergedMatches := mergeRecords(s.store.Matches().Data, newMatches)

	now := time.Now()
	if err := s.store.ReplaceRankings(mergedRankings, now); err != nil {
		log.Printf("❌ [SYNC] FAILED TO PERSIST RANKINGS SNAPSHOT: %v", err)
		return fmt.Errorf("persist rankings: %w", err)
	}
	if err := s.store.ReplaceMatches(mergedMatches, now); err != nil {
		log.Printf("❌ [SYNC] FAILED TO PERSIST MATCHES SNAPSHOT: %v", err)
		return fmt.Errorf("persist matches: %w", err)
	}

	if len(newRankings) == 0 && len(newMatches) == 0 {
		log.Println("✅ [SYNC] no new tournaments, timestamps refreshed")
	} else {
		log.Printf("🎉 [SYNC] cycle done: +%d rankings, +%d matches (totals %d/%d)",
			len(newRankings), len(newMatches), len(mergedRankings), len(mergedMatches))
	}

	if s.onPersist != nil {
		s.onPersist()
	}
	return nil
}

// mergeRecords concatenates into a fresh slice so snapshot readers never
// share a backing array with the next merge.
func mergeRecords[T any](existing, added []T) []T {
	merged := make([]T, 0, len(existing)+len(added))
	merged = append(merged, existing...)
	return append(merged, added...)
}

// NextRunAfter computes the next daily fire time at hourUTC strictly after
// now. Kept pure so the schedule math is testable apart from the timer.
func NextRunAfter(now time.Time, hourUTC int) time.Time {
	next := time.Date(now.UTC().Year(), now.UTC().Month(), now.UTC().Day(), hourUTC, 0, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// StartDailySchedule runs one cycle per day at the given UTC hour. The
// returned scheduler keeps firing regardless of individual cycle failures;
// the next scheduled login attempt is the recovery path.
func (s *SyncService) StartDailySchedule(hourUTC int) (gocron.Scheduler, error) {
	sched, err := gocron.NewScheduler(gocron.WithLocation(time.UTC))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	_, err = sched.NewJob(
		gocron.DailyJob(1, gocron.NewAtTimes(gocron.NewAtTime(uint(hourUTC), 0, 0))),
		gocron.NewTask(func() {
			if err := s.RunCycle(context.Background()); err != nil {
				log.Printf("⛔ [SYNC] scheduled cycle failed: %v", err)
			}
			log.Printf("⏰ [SYNC] next run at %s", NextRunAfter(time.Now(), hourUTC).Format(time.RFC3339))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to register daily job: %w", err)
	}

	sched.Start()
	log.Printf("⏰ [SYNC] daily schedule armed, first run at %s", NextRunAfter(time.Now(), hourUTC).Format(time.RFC3339))
	return sched, nil
}

func sleepCtx(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	select {
	case <-time.After(d):
	case <-ctx.Done():
	}
}
