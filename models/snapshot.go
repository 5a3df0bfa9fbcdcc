package models

const (
	// SnapshotInitializing marks a placeholder snapshot written at first boot,
	// before any sync cycle has completed.
	SnapshotInitializing = "initializing"
	// SnapshotActive marks a snapshot produced by a completed sync cycle.
	SnapshotActive = "active"
)

// SnapshotMeta is the envelope shared by both snapshot files. UpdatedAt is a
// unix millisecond timestamp; 0 means stale/never written.
type SnapshotMeta struct {
	UpdatedAt  int64  `json:"updatedAt"`
	DateString string `json:"dateString"`
	Count      int    `json:"count"`
	City       string `json:"city"`
	Status     string `json:"status"`
}

// RankingSnapshot is the on-disk shape of daily_rankings.json.
type RankingSnapshot struct {
	SnapshotMeta
	Data []Ranking `json:"data"`
}

// MatchSnapshot is the on-disk shape of daily_matches.json.
type MatchSnapshot struct {
	SnapshotMeta
	Data []Match `json:"data"`
}
