package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/utils"

	"golang.org/x/time/rate"
)

// Error taxonomy. Auth and persistence failures are the only classes allowed
// to affect a sync cycle; everything upstream-shaped degrades to zero records
// at the harvester/discovery boundary.
var (
	ErrAuth          = errors.New("upstream rejected credentials")
	ErrUpstreamShape = errors.New("unexpected upstream response shape")
)

// Fixed handshake identity required by the login endpoint (captured from the
// platform's own web client). Data queries use a separate fixed sn nonce.
const (
	loginHandshakeToken = "DLFFG4-892b3448b953b5da525470ec2e5147d1202a126c"
	loginHandshakeSN    = "2b3467f4850c6743673871aa6c281f6a"
	dataQuerySN         = "9cc07cfedc454229063eb32c3045c5ae"

	loginClientID    = 1000
	loginIdentityTyp = 1
)

// UpstreamClient speaks the platform's dual-envelope protocol: every POST
// body is {"body": ..., "header": {token, sn, snTime, from}} and the bearer
// token rides inside the envelope, not in an Authorization header. That shape
// is an upstream contract quirk and must be preserved exactly.
type UpstreamClient struct {
	// Base URLs are split per upstream host so tests can point them at a
	// local server.
	UserBase  string
	ApplyBase string
	RaceBase  string

	http    *http.Client
	limiter *rate.Limiter

	mu    sync.RWMutex
	token string
}

func NewUpstreamClient() *UpstreamClient {
	return &UpstreamClient{
		UserBase:  "https://user.ymq.me",
		ApplyBase: "https://applyv3.ymq.me",
		RaceBase:  "https://race.ymq.me",
		http:      utils.HTTPClient,
		// ~100ms between data calls keeps us under the upstream rate limit.
		limiter: rate.NewLimiter(rate.Every(100*time.Millisecond), 1),
	}
}

// SetToken installs the session token used by all subsequent data queries.
func (u *UpstreamClient) SetToken(token string) {
	u.mu.Lock()
	u.token = token
	u.mu.Unlock()
}

func (u *UpstreamClient) currentToken() string {
	u.mu.RLock()
	defer u.mu.RUnlock()
	return u.token
}

type requestHeader struct {
	Token  string `json:"token"`
	SN     string `json:"sn"`
	SNTime int64  `json:"snTime"`
	From   string `json:"from"`
}

type envelope struct {
	Body   any           `json:"body"`
	Header requestHeader `json:"header"`
}

// --- Raw upstream shapes (duck-typed; normalized by the harvester) ---

type loginResponse struct {
	Code     int    `json:"code"`
	Message  string `json:"message"`
	UserInfo struct {
		Token    string `json:"token"`
		Nickname string `json:"nickname"`
	} `json:"userinfo"`
}

type gameListResponse struct {
	Data struct {
		List []models.Tournament `json:"list"`
	} `json:"data"`
}

type raceItem struct {
	ID        json.Number `json:"id"`
	GroupName string      `json:"groupName"`
	ItemName  string      `json:"itemName"`
	ItemType  string      `json:"itemType"`
}

type raceItemsResponse struct {
	Detail []raceItem `json:"detail"`
}

type rawRank struct {
	PlayerName string  `json:"playerName"`
	Rank       any     `json:"rank"`
	Score      float64 `json:"score"`
	Club       string  `json:"club"`
	TeamName   string  `json:"teamName"`
}

type rankResponse struct {
	Detail []rawRank `json:"detail"`
}

type rawPlayer struct {
	Name string `json:"name"`
}

type rawMatch struct {
	ID           json.Number `json:"id"`
	FullName     string      `json:"fullName"`
	GroupName    string      `json:"groupName"`
	MateOne      string      `json:"mateOne"`
	MateTwo      string      `json:"mateTwo"`
	PlayerOnes   []rawPlayer `json:"playerOnes"`
	PlayerTwos   []rawPlayer `json:"playerTwos"`
	ScoreOne     *float64    `json:"scoreOne"`
	ScoreTwo     *float64    `json:"scoreTwo"`
	Score        string      `json:"score"`
	RaceTimeName string      `json:"raceTimeName"`
	RoundName    string      `json:"roundName"`
	RulesName    string      `json:"rulesName"`
}

type matchPageResponse struct {
	Detail struct {
		Total int        `json:"total"`
		Rows  []rawMatch `json:"rows"`
	} `json:"detail"`
}

// --- Wire plumbing ---

func (u *UpstreamClient) browserHeaders(req *http.Request, referer string) {
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Origin", "https://sports.ymq.me")
	req.Header.Set("Referer", referer)
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36")
}

// postEnvelope sends one dual-envelope POST and decodes the response into
// out. Non-2xx and undecodable bodies surface as errors; the caller decides
// whether that means "abort" (login) or "zero records" (everything else).
func (u *UpstreamClient) postEnvelope(ctx context.Context, url, referer string, hdr requestHeader, body, out any) error {
	payload, err := json.Marshal(envelope{Body: body, Header: hdr})
	if err != nil {
		return fmt.Errorf("failed to marshal request for %s: %w", url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", url, err)
	}
	u.browserHeaders(req, referer)

	resp, err := u.http.Do(req)
	if err != nil {
		return fmt.Errorf("request to %s failed: %w", url, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%s returned %d: %s", url, resp.StatusCode, string(snippet))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrUpstreamShape, url, err)
	}
	return nil
}

func (u *UpstreamClient) dataHeader(from string) requestHeader {
	return requestHeader{
		Token:  u.currentToken(),
		SN:     dataQuerySN,
		SNTime: time.Now().UnixMilli(),
		From:   from,
	}
}

// --- Endpoint calls ---

// Login performs the credential handshake and returns the session token and
// the account's display name.
func (u *UpstreamClient) Login(ctx context.Context, username, password string) (token, nickname string, err error) {
	body := map[string]any{
		"identifier":    username,
		"credential":    password,
		"client_id":     loginClientID,
		"identity_type": loginIdentityTyp,
	}
	hdr := requestHeader{
		Token:  loginHandshakeToken,
		SN:     loginHandshakeSN,
		SNTime: time.Now().UnixMilli(),
		From:   "web",
	}

	url := fmt.Sprintf("%s/public/public/login?t=%d", u.UserBase, time.Now().UnixMilli())
	var parsed loginResponse
	if err := u.postEnvelope(ctx, url, "https://sports.ymq.me/", hdr, body, &parsed); err != nil {
		return "", "", err
	}
	if parsed.Code != 1 || parsed.UserInfo.Token == "" {
		return "", "", fmt.Errorf("%w: %s", ErrAuth, parsed.Message)
	}
	return parsed.UserInfo.Token, parsed.UserInfo.Nickname, nil
}

// GameList fetches one page of completed tournaments for a region.
func (u *UpstreamClient) GameList(ctx context.Context, sportsID int, province, city string) ([]models.Tournament, error) {
	body := map[string]any{
		"page_num":  1,
		"page_size": 100,
		"sports_id": sportsID,
		"statuss":   []int{10}, // completed
		"province":  []string{province},
		"city":      []string{city},
	}
	url := fmt.Sprintf("%s/public/public/getgamefulllist?t=%d", u.ApplyBase, time.Now().UnixMilli())
	var parsed gameListResponse
	if err := u.postEnvelope(ctx, url, "https://sports.ymq.me/", u.dataHeader("web"), body, &parsed); err != nil {
		return nil, err
	}
	return parsed.Data.List, nil
}

// AllItems lists a tournament's individual-event items.
func (u *UpstreamClient) AllItems(ctx context.Context, raceID string) ([]raceItem, error) {
	return u.raceItems(ctx, raceID, "/webservice/appWxRace/allItems.do")
}

// AllGroups lists a tournament's team/group events.
func (u *UpstreamClient) AllGroups(ctx context.Context, raceID string) ([]raceItem, error) {
	return u.raceItems(ctx, raceID, "/webservice/appWxRace/allGroups.do")
}

func (u *UpstreamClient) raceItems(ctx context.Context, raceID, path string) ([]raceItem, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	var parsed raceItemsResponse
	err := u.postEnvelope(ctx, u.RaceBase+path, "https://apply.ymq.me/",
		u.dataHeader("wx"), map[string]any{"raceId": raceID}, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed.Detail, nil
}

// RankScores fetches the ranked standings for one item or group. Exactly one
// of itemID/groupID is non-empty; the other is sent as null, which is what
// the endpoint expects.
func (u *UpstreamClient) RankScores(ctx context.Context, raceID, itemID, groupID string) ([]rawRank, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	body := map[string]any{"raceId": raceID, "itemId": nil, "groupId": nil}
	if itemID != "" {
		body["itemId"] = itemID
	}
	if groupID != "" {
		body["groupId"] = groupID
	}
	var parsed rankResponse
	err := u.postEnvelope(ctx, u.RaceBase+"/webservice/appWxRank/showRankScore.do",
		"https://apply.ymq.me/", u.dataHeader("wx"), body, &parsed)
	if err != nil {
		return nil, err
	}
	return parsed.Detail, nil
}

// MatchPage fetches one page of match scores.
func (u *UpstreamClient) MatchPage(ctx context.Context, raceID string, page, rows int) (int, []rawMatch, error) {
	if err := u.limiter.Wait(ctx); err != nil {
		return 0, nil, err
	}
	body := map[string]any{"raceId": raceID, "page": page, "rows": rows, "keyword": ""}
	url := fmt.Sprintf("%s/webservice/appWxMatch/matchesScore.do?t=%d", u.RaceBase, time.Now().UnixMilli())
	var parsed matchPageResponse
	if err := u.postEnvelope(ctx, url, "https://apply.ymq.me/", u.dataHeader("wx"), body, &parsed); err != nil {
		return 0, nil, err
	}
	return parsed.Detail.Total, parsed.Detail.Rows, nil
}
