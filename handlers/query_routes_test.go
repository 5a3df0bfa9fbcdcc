package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/services"
	"badminton-data-system/store"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func testApp(t *testing.T) *fiber.App {
	t.Helper()

	st := store.New(t.TempDir(), "广州市")
	require.NoError(t, st.Init())
	now := time.Now()
	require.NoError(t, st.ReplaceRankings([]models.Ranking{
		{RaceID: "1", GameName: "2025广州青少年羽毛球赛", GroupName: "U8男子组", ItemName: "男单", Player: "张三", Rank: 1},
		{RaceID: "1", GameName: "2025广州青少年羽毛球赛", GroupName: "U9女子组", ItemName: "女单", Player: "李四", Rank: 2},
	}, now))
	require.NoError(t, st.ReplaceMatches([]models.Match{
		{RaceID: "1", FullName: "U8 男单", PlayerA: "张三", PlayerB: "李雷", Score: "2:0"},
	}, now))

	app := fiber.New()
	SetupQueryRoutes(app, services.NewQueryService(st, nil, nil))
	return app
}

func TestGetRankings(t *testing.T) {
	app := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rankings?uKeywords=U8&playerGender=M", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count  int             `json:"count"`
		Status string          `json:"status"`
		Data   []models.Ranking `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, models.SnapshotActive, body.Status)
	require.Equal(t, "张三", body.Data[0].Player)
}

func TestGetRankingsDerivesCriteriaFromAge(t *testing.T) {
	app := testApp(t)

	// An age alone derives the U-tier keyword; explicit keywords are absent.
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/rankings?playerAge=8", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int `json:"count"`
		Data  []models.Ranking `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "张三", body.Data[0].Player)
}

func TestGetMatchesRequiresPlayerName(t *testing.T) {
	app := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/matches", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/matches?playerName=张三", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Count int            `json:"count"`
		Data  []models.Match `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, 1, body.Count)
	require.Equal(t, "2:0", body.Data[0].Score)
}

func TestGetStatus(t *testing.T) {
	app := testApp(t)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/status", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		City     string `json:"city"`
		Rankings struct {
			Count  int    `json:"count"`
			Status string `json:"status"`
		} `json:"rankings"`
		Auth struct {
			Status string `json:"status"`
		} `json:"auth"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, "广州市", body.City)
	require.Equal(t, 2, body.Rankings.Count)
	require.Equal(t, models.SnapshotInitializing, body.Auth.Status)
}