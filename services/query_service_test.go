package services

import (
	"fmt"
	"testing"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/store"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/require"
)

func seededStore(t *testing.T, rankings []models.Ranking, matches []models.Match) *store.Store {
	t.Helper()
	st := store.New(t.TempDir(), "广州市")
	require.NoError(t, st.Init())
	require.NoError(t, st.ReplaceRankings(rankings, time.Now()))
	require.NoError(t, st.ReplaceMatches(matches, time.Now()))
	return st
}

func TestQueryRankingsAgeLevelUnion(t *testing.T) {
	st := seededStore(t, []models.Ranking{
		{RaceID: "1", GroupName: "U8男子组", ItemName: "男单", Player: "张三"},
		{RaceID: "1", GroupName: "小学甲组", ItemName: "女单", Player: "李四"},
		{RaceID: "1", GroupName: "U11男子组", ItemName: "男单", Player: "王五"},
	}, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	// Age tiers and level keywords broaden each other: a row passes on
	// either set when both are supplied.
	out := qs.QueryRankings(models.SearchCriteria{
		UKeywords:     []string{"U8"},
		LevelKeywords: []string{"小学"},
	})
	require.Len(t, out, 2)
	require.Equal(t, "张三", out[0].Player)
	require.Equal(t, "李四", out[1].Player)

	// Only the age set present: it gates alone.
	out = qs.QueryRankings(models.SearchCriteria{UKeywords: []string{"U8"}})
	require.Len(t, out, 1)
	require.Equal(t, "张三", out[0].Player)

	// Only level keywords present: all of them must hit.
	out = qs.QueryRankings(models.SearchCriteria{LevelKeywords: []string{"小学", "甲"}})
	require.Len(t, out, 1)
	require.Equal(t, "李四", out[0].Player)
	out = qs.QueryRankings(models.SearchCriteria{LevelKeywords: []string{"小学", "乙"}})
	require.Empty(t, out)
}

func TestQueryRankingsGenderGate(t *testing.T) {
	st := seededStore(t, []models.Ranking{
		{RaceID: "1", GroupName: "女子单打", Player: "李四"},
		{RaceID: "1", GroupName: "男子单打", Player: "张三"},
		{RaceID: "1", GroupName: "积分赛", Player: "王五"},
	}, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	out := qs.QueryRankings(models.SearchCriteria{Gender: "M"})
	require.Len(t, out, 2)
	require.Equal(t, "张三", out[0].Player)
	require.Equal(t, "王五", out[1].Player) // no gender cue passes both ways

	out = qs.QueryRankings(models.SearchCriteria{Gender: "F"})
	require.Len(t, out, 2)
	require.Equal(t, "李四", out[0].Player)
	require.Equal(t, "王五", out[1].Player)
}

func TestQueryRankingsWidthInsensitive(t *testing.T) {
	st := seededStore(t, []models.Ranking{
		{RaceID: "1", GroupName: "Ｕ８男子组", ItemName: "男单", Player: "张三"},
	}, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	out := qs.QueryRankings(models.SearchCriteria{UKeywords: []string{"u8"}})
	require.Len(t, out, 1)
}

func TestQueryRankingsEmptyCriteriaCapped(t *testing.T) {
	rows := make([]models.Ranking, 600)
	for i := range rows {
		rows[i] = models.Ranking{RaceID: "1", GroupName: "U8男子组", Player: fmt.Sprintf("选手%d", i)}
	}
	st := seededStore(t, rows, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	out := qs.QueryRankings(models.SearchCriteria{})
	require.Len(t, out, emptyQuerySampleCap)

	// Any gate at all lifts the cap.
	out = qs.QueryRankings(models.SearchCriteria{UKeywords: []string{"U8"}})
	require.Len(t, out, 600)
}

func TestQueryMatchesRequiresPlayer(t *testing.T) {
	st := seededStore(t, nil, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	_, err := qs.QueryMatches("", models.SearchCriteria{})
	require.Error(t, err)
	_, err = qs.QueryMatches("   ", models.SearchCriteria{})
	require.Error(t, err)
}

func TestQueryMatchesPlayerAndGender(t *testing.T) {
	st := seededStore(t, nil, []models.Match{
		{RaceID: "1", FullName: "U8 男单", PlayerA: "张三", PlayerB: "李雷", Score: "2:0"},
		{RaceID: "1", FullName: "U9 女单", PlayerA: "韩梅梅", PlayerB: "张三", Score: "0:2"},
		{RaceID: "1", FullName: "U8 男单", PlayerA: "李雷", PlayerB: "王五", Score: "2:1"},
	})
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	// The player gate holds on either side of the net.
	out, err := qs.QueryMatches("张三", models.SearchCriteria{})
	require.NoError(t, err)
	require.Len(t, out, 2)

	// Gender narrows it to the 男单 appearance only.
	out, err = qs.QueryMatches("张三", models.SearchCriteria{Gender: "M"})
	require.NoError(t, err)
	require.Len(t, out, 1)
	require.Equal(t, "2:0", out[0].Score)
}

func TestQueryRankingsRegionAndGameKeywords(t *testing.T) {
	st := seededStore(t, []models.Ranking{
		{RaceID: "1", GameName: "2025广州青少年羽毛球赛", GroupName: "U8男子组", Player: "张三", Province: "广东省", City: "广州市"},
		{RaceID: "2", GameName: "深圳少儿公开赛", GroupName: "U8男子组", Player: "李四", Province: "广东省", City: "深圳市"},
		{RaceID: "3", GameName: "佛山站", GroupName: "U8男子组", Player: "王五"},
	}, nil)
	qs := NewQueryService(st, clockwork.NewFakeClock(), nil)

	out := qs.QueryRankings(models.SearchCriteria{City: "广州市"})
	require.Len(t, out, 2) // a record without a city passes the city gate
	require.Equal(t, "张三", out[0].Player)
	require.Equal(t, "王五", out[1].Player)

	out = qs.QueryRankings(models.SearchCriteria{GameKeywords: []string{"广州", "佛山"}})
	require.Len(t, out, 2)
}

func TestQueryCacheExpiryAndInvalidation(t *testing.T) {
	st := seededStore(t, []models.Ranking{
		{RaceID: "1", GroupName: "U8男子组", Player: "张三"},
	}, nil)
	clock := clockwork.NewFakeClock()
	qs := NewQueryService(st, clock, nil)

	criteria := models.SearchCriteria{UKeywords: []string{"U8"}}
	require.Len(t, qs.QueryRankings(criteria), 1)

	// Grow the underlying snapshot; the cached result keeps serving until it
	// expires or is invalidated.
	require.NoError(t, st.ReplaceRankings([]models.Ranking{
		{RaceID: "1", GroupName: "U8男子组", Player: "张三"},
		{RaceID: "2", GroupName: "U8女子组", Player: "李四"},
	}, time.Now()))
	require.Len(t, qs.QueryRankings(criteria), 1)

	clock.Advance(queryCacheTTL + time.Second)
	require.Len(t, qs.QueryRankings(criteria), 2)

	require.NoError(t, st.ReplaceRankings([]models.Ranking{
		{RaceID: "1", GroupName: "U8男子组", Player: "张三"},
	}, time.Now()))
	qs.Invalidate()
	require.Len(t, qs.QueryRankings(criteria), 1)
}
