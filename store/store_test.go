package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"badminton-data-system/models"

	"github.com/stretchr/testify/require"
)

func TestInitWritesPlaceholders(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "广州市")
	require.NoError(t, s.Init())

	snap := s.Rankings()
	require.Equal(t, models.SnapshotInitializing, snap.Status)
	require.Equal(t, "初始化中", snap.DateString)
	require.Equal(t, "广州市", snap.City)
	require.Empty(t, snap.Data)
	require.True(t, s.Initializing())

	// The placeholder must exist on disk as well-formed JSON so raw-file
	// consumers never 404.
	for _, name := range []string{rankingsFile, matchesFile} {
		data, err := os.ReadFile(filepath.Join(dir, name))
		require.NoError(t, err)
		require.Contains(t, string(data), models.SnapshotInitializing)
	}
}

func TestInitRewritesCorruptSnapshot(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, rankingsFile), []byte("{not json"), 0o644))

	s := New(dir, "广州市")
	require.NoError(t, s.Init())
	require.Equal(t, models.SnapshotInitializing, s.Rankings().Status)

	data, err := os.ReadFile(filepath.Join(dir, rankingsFile))
	require.NoError(t, err)
	require.Contains(t, string(data), models.SnapshotInitializing)
}

func TestReplaceAndReload(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "广州市")
	require.NoError(t, s.Init())

	rows := []models.Ranking{
		{RaceID: "100", GameName: "2025广州青少年羽毛球赛", GroupName: "U8男子组 男单", Player: "张三", Rank: 1},
		{RaceID: "200", GameName: "荔湾区少儿赛", GroupName: "U9女子组 女单", Player: "李四", Rank: "并列第3"},
	}
	now := time.Now()
	require.NoError(t, s.ReplaceRankings(rows, now))

	snap := s.Rankings()
	require.Equal(t, models.SnapshotActive, snap.Status)
	require.Equal(t, now.UnixMilli(), snap.UpdatedAt)
	require.Equal(t, 2, snap.Count)
	require.False(t, s.Initializing())

	// A fresh store over the same dir must come back with the persisted data.
	reloaded := New(dir, "广州市")
	require.NoError(t, reloaded.Init())
	require.Equal(t, models.SnapshotActive, reloaded.Rankings().Status)
	require.Len(t, reloaded.Rankings().Data, 2)
	require.Equal(t, "张三", reloaded.Rankings().Data[0].Player)
	require.False(t, reloaded.Initializing())

	// No stray temp files after the rename.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestRaceIDSetsAreIndependent(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "广州市")
	require.NoError(t, s.Init())

	now := time.Now()
	require.NoError(t, s.ReplaceRankings([]models.Ranking{
		{RaceID: "100", Player: "张三"},
		{RaceID: "100", Player: "李四"},
		{RaceID: "200", Player: "王五"},
	}, now))
	require.NoError(t, s.ReplaceMatches([]models.Match{
		{RaceID: "200", MatchID: "m1"},
	}, now))

	ranked := s.RankedRaceIDs()
	require.Len(t, ranked, 2)
	require.Contains(t, ranked, "100")
	require.Contains(t, ranked, "200")

	matched := s.MatchedRaceIDs()
	require.Len(t, matched, 1)
	require.Contains(t, matched, "200")
}

func TestCredentialRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s := New(dir, "广州市")
	require.NoError(t, s.Init())

	_, ok := s.Credential()
	require.False(t, ok)

	cred := models.Credential{
		Token:       "tok-abc",
		SN:          "9cc07cfedc454229063eb32c3045c5ae",
		SNTime:      time.Now().UnixMilli(),
		Username:    "测试账号",
		UpdatedAt:   "2026-08-31 05:00:00",
		UpdatedAtTS: time.Now().UnixMilli(),
		Status:      models.SnapshotActive,
	}
	require.NoError(t, s.SaveCredential(cred))

	got, ok := s.Credential()
	require.True(t, ok)
	require.Equal(t, cred, got)

	// Survives a restart.
	reloaded := New(dir, "广州市")
	require.NoError(t, reloaded.Init())
	got, ok = reloaded.Credential()
	require.True(t, ok)
	require.Equal(t, cred.Token, got.Token)
	require.Equal(t, cred.Username, got.Username)
}
