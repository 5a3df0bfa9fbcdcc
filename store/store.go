package store

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"badminton-data-system/models"
)

const (
	rankingsFile = "daily_rankings.json"
	matchesFile  = "daily_matches.json"
	authFile     = "auth_config.json"
)

// Store owns the persisted snapshots and their in-memory mirror. The sync
// engine is the only writer; the query engine and any number of HTTP readers
// consume point-in-time copies. Writes go through a temp file and an atomic
// rename so a concurrent reader of the raw files never sees a torn snapshot.
type Store struct {
	dataDir string
	city    string

	mu       sync.RWMutex
	rankings models.RankingSnapshot
	matches  models.MatchSnapshot
	cred     *models.Credential
}

func New(dataDir, city string) *Store {
	return &Store{dataDir: dataDir, city: city}
}

// Init ensures the data dir exists, loads whatever survived a restart, and
// writes placeholder snapshots for anything missing so downstream readers
// always find well-formed files.
func (s *Store) Init() error {
	if err := os.MkdirAll(s.dataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data dir %s: %w", s.dataDir, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	placeholder := models.SnapshotMeta{
		DateString: "初始化中",
		City:       s.city,
		Status:     models.SnapshotInitializing,
	}

	s.rankings = models.RankingSnapshot{SnapshotMeta: placeholder, Data: []models.Ranking{}}
	if err := loadJSON(s.rankingsPath(), &s.rankings); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️  [STORE] unreadable %s, rewriting placeholder: %v", rankingsFile, err)
		}
		s.rankings = models.RankingSnapshot{SnapshotMeta: placeholder, Data: []models.Ranking{}}
		if err := writeAtomic(s.rankingsPath(), s.rankings); err != nil {
			return err
		}
	}

	s.matches = models.MatchSnapshot{SnapshotMeta: placeholder, Data: []models.Match{}}
	if err := loadJSON(s.matchesPath(), &s.matches); err != nil {
		if !os.IsNotExist(err) {
			log.Printf("⚠️  [STORE] unreadable %s, rewriting placeholder: %v", matchesFile, err)
		}
		s.matches = models.MatchSnapshot{SnapshotMeta: placeholder, Data: []models.Match{}}
		if err := writeAtomic(s.matchesPath(), s.matches); err != nil {
			return err
		}
	}

	var cred models.Credential
	if err := loadJSON(s.authPath(), &cred); err == nil && cred.Token != "" {
		s.cred = &cred
	}

	return nil
}

// Rankings returns the current snapshot. The data slice is shared; callers
// must treat it as read-only.
func (s *Store) Rankings() models.RankingSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankings
}

func (s *Store) Matches() models.MatchSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matches
}

// Initializing reports whether the rankings snapshot has never been produced
// by a completed sync cycle. Covers the case where the data files were wiped
// while the credential file survived.
func (s *Store) Initializing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rankings.Status == models.SnapshotInitializing
}

// RankedRaceIDs returns the distinct tournament ids present in the rankings
// collection. Incrementality is keyed per (tournament, record kind), so the
// two sets are computed independently.
func (s *Store) RankedRaceIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.rankings.Data))
	for _, r := range s.rankings.Data {
		ids[r.RaceID] = struct{}{}
	}
	return ids
}

func (s *Store) MatchedRaceIDs() map[string]struct{} {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make(map[string]struct{}, len(s.matches.Data))
	for _, m := range s.matches.Data {
		ids[m.RaceID] = struct{}{}
	}
	return ids
}

// ReplaceRankings refreshes the in-memory mirror and persists a full-replace
// snapshot. Even a no-op sync calls this so updatedAt advances. The mirror is
// updated before the disk write: a failed write leaves memory as the source
// of truth for this run and the next cycle retries persistence.
func (s *Store) ReplaceRankings(data []models.Ranking, now time.Time) error {
	snap := models.RankingSnapshot{SnapshotMeta: s.meta(now, len(data)), Data: data}
	s.mu.Lock()
	s.rankings = snap
	s.mu.Unlock()
	return writeAtomic(s.rankingsPath(), snap)
}

func (s *Store) ReplaceMatches(data []models.Match, now time.Time) error {
	snap := models.MatchSnapshot{SnapshotMeta: s.meta(now, len(data)), Data: data}
	s.mu.Lock()
	s.matches = snap
	s.mu.Unlock()
	return writeAtomic(s.matchesPath(), snap)
}

func (s *Store) meta(now time.Time, count int) models.SnapshotMeta {
	return models.SnapshotMeta{
		UpdatedAt:  now.UnixMilli(),
		DateString: now.Format("2006-01-02 15:04:05"),
		Count:      count,
		City:       s.city,
		Status:     models.SnapshotActive,
	}
}

// SaveCredential replaces the credential slot. A failed login never reaches
// this point, so the prior credential survives rejected refresh attempts.
func (s *Store) SaveCredential(cred models.Credential) error {
	if err := writeAtomic(s.authPath(), cred); err != nil {
		return err
	}
	s.mu.Lock()
	s.cred = &cred
	s.mu.Unlock()
	return nil
}

func (s *Store) Credential() (models.Credential, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.cred == nil {
		return models.Credential{}, false
	}
	return *s.cred, true
}

func (s *Store) DataDir() string      { return s.dataDir }
func (s *Store) rankingsPath() string { return filepath.Join(s.dataDir, rankingsFile) }
func (s *Store) matchesPath() string  { return filepath.Join(s.dataDir, matchesFile) }
func (s *Store) authPath() string     { return filepath.Join(s.dataDir, authFile) }
func (s *Store) RankingsPath() string { return s.rankingsPath() }
func (s *Store) MatchesPath() string  { return s.matchesPath() }

func loadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

// writeAtomic marshals v to a temp file in the target dir and renames it over
// the destination. Readers of the raw file see either the old or the new
// snapshot, never a partial write.
func writeAtomic(path string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", filepath.Base(path), err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", path, err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write %s: %w", tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}
