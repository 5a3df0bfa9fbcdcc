package services

import (
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"badminton-data-system/models"
	"badminton-data-system/store"
	"badminton-data-system/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/jonboulle/clockwork"
)

// Results cap when a ranking query arrives with no gates at all; keeps an
// empty form from flooding the caller with the whole corpus.
const emptyQuerySampleCap = 500

const queryCacheTTL = 5 * time.Minute

// queryCache is a small TTL cache over filter results, keyed by the criteria
// string. The clock is injected so expiry is testable.
type queryCache struct {
	clock clockwork.Clock
	ttl   time.Duration

	mu      sync.Mutex
	entries map[string]cacheEntry
}

type cacheEntry struct {
	value any
	at    time.Time
}

func newQueryCache(clock clockwork.Clock, ttl time.Duration) *queryCache {
	return &queryCache{clock: clock, ttl: ttl, entries: make(map[string]cacheEntry)}
}

func (c *queryCache) get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.clock.Since(e.at) >= c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return e.value, true
}

func (c *queryCache) put(key string, v any) {
	c.mu.Lock()
	c.entries[key] = cacheEntry{value: v, at: c.clock.Now()}
	c.mu.Unlock()
}

func (c *queryCache) invalidate() {
	c.mu.Lock()
	c.entries = make(map[string]cacheEntry)
	c.mu.Unlock()
}

// QueryService evaluates multi-criteria filters over the store's snapshots.
// Record counts stay in the tens of thousands, so a linear scan with
// short-circuit predicates is the whole engine.
type QueryService struct {
	store  *store.Store
	cache  *queryCache
	levels models.LevelTable
}

func NewQueryService(st *store.Store, clock clockwork.Clock, levels models.LevelTable) *QueryService {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if levels == nil {
		levels = models.DefaultLevelTable
	}
	return &QueryService{store: st, cache: newQueryCache(clock, queryCacheTTL), levels: levels}
}

// Invalidate drops cached results. The sync engine calls this after every
// persist.
func (q *QueryService) Invalidate() { q.cache.invalidate() }

// QueryRankings returns all ranking rows matching the criteria, capped to a
// sample when no gate is set.
func (q *QueryService) QueryRankings(c models.SearchCriteria) []models.Ranking {
	key := fmt.Sprintf("rankings|%+v", c)
	if v, ok := q.cache.get(key); ok {
		return v.([]models.Ranking)
	}

	capped := c.Empty()
	var out []models.Ranking
	for _, r := range q.store.Rankings().Data {
		if rankingMatches(r, c) {
			out = append(out, r)
			if capped && len(out) >= emptyQuerySampleCap {
				break
			}
		}
	}

	q.cache.put(key, out)
	return out
}

// QueryMatches returns a player's match rows. The player-name predicate is
// mandatory and must hold against at least one of the two participant names.
func (q *QueryService) QueryMatches(player string, c models.SearchCriteria) ([]models.Match, error) {
	player = strings.TrimSpace(player)
	if player == "" {
		return nil, fmt.Errorf("playerName is required")
	}

	key := fmt.Sprintf("matches|%s|%+v", player, c)
	if v, ok := q.cache.get(key); ok {
		return v.([]models.Match), nil
	}

	var out []models.Match
	for _, m := range q.store.Matches().Data {
		if matchMatches(m, player, c) {
			out = append(out, m)
		}
	}

	q.cache.put(key, out)
	return out, nil
}

func rankingMatches(r models.Ranking, c models.SearchCriteria) bool {
	if !regionMatches(r.Province, r.City, c) {
		return false
	}
	if c.PlayerName != "" && !utils.ContainsFold(r.Player, c.PlayerName) {
		return false
	}
	if !anyKeyword(r.GameName, c.GameKeywords) {
		return false
	}

	label := r.GroupName + " " + r.ItemType + " " + r.ItemName
	if !genderMatches(label, c.Gender) {
		return false
	}
	if !anyKeyword(label, c.ItemKeywords) {
		return false
	}

	// Age-tier (OR within) and level (AND within) combine as a union when
	// both are present: "U8 or primary-school" should broaden, not
	// over-constrain. With only one set present, that set gates alone.
	uSet, levelSet := len(c.UKeywords) > 0, len(c.LevelKeywords) > 0
	switch {
	case uSet && levelSet:
		return anyContains(label, c.UKeywords) || allContain(label, c.LevelKeywords)
	case uSet:
		return anyContains(label, c.UKeywords)
	case levelSet:
		return allContain(label, c.LevelKeywords)
	}
	return true
}

func matchMatches(m models.Match, player string, c models.SearchCriteria) bool {
	if !utils.ContainsFold(m.PlayerA, player) && !utils.ContainsFold(m.PlayerB, player) {
		return false
	}
	if !regionMatches(m.Province, m.City, c) {
		return false
	}
	if !anyKeyword(m.GameName, c.GameKeywords) {
		return false
	}
	return genderMatches(m.FullName+" "+m.GroupName, c.Gender)
}

func regionMatches(province, city string, c models.SearchCriteria) bool {
	if c.Province != "" && province != "" && !utils.ContainsFold(province, c.Province) {
		return false
	}
	if c.City != "" && city != "" && !utils.ContainsFold(city, c.City) {
		return false
	}
	return true
}

// genderMatches is a pure substring gate on the composited label: a record
// whose label carries only the opposite gender token is excluded; a label
// with no gender cue passes either way.
func genderMatches(label, gender string) bool {
	var token, other string
	switch gender {
	case "M":
		token, other = "男", "女"
	case "F":
		token, other = "女", "男"
	default:
		return true
	}
	if strings.Contains(label, token) {
		return true
	}
	return !strings.Contains(label, other)
}

// anyKeyword is an OR gate that passes when the set is empty.
func anyKeyword(haystack string, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	return anyContains(haystack, keywords)
}

func anyContains(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if utils.ContainsFold(haystack, kw) {
			return true
		}
	}
	return false
}

func allContain(haystack string, keywords []string) bool {
	for _, kw := range keywords {
		if !utils.ContainsFold(haystack, kw) {
			return false
		}
	}
	return true
}

// --- HTTP handlers ---

func (q *QueryService) criteriaFromQuery(ctx *fiber.Ctx) models.SearchCriteria {
	gender := strings.ToUpper(strings.TrimSpace(ctx.Query("playerGender")))
	if gender != "M" && gender != "F" {
		gender = ""
	}
	c := models.SearchCriteria{
		Province:      strings.TrimSpace(ctx.Query("province")),
		City:          strings.TrimSpace(ctx.Query("city")),
		GameKeywords:  utils.SplitKeywords(ctx.Query("gameKeywords")),
		UKeywords:     utils.SplitKeywords(ctx.Query("uKeywords")),
		LevelKeywords: utils.SplitKeywords(ctx.Query("levelKeywords")),
		ItemKeywords:  utils.SplitKeywords(ctx.Query("itemKeywords")),
		PlayerName:    strings.TrimSpace(ctx.Query("targetPlayerName")),
		Gender:        gender,
	}

	// playerAge derives default age-tier and level keywords, but never
	// overrides explicitly supplied ones.
	if age, err := strconv.Atoi(ctx.Query("playerAge")); err == nil && age > 0 {
		if len(c.UKeywords) == 0 {
			c.UKeywords = []string{fmt.Sprintf("U%d", age)}
		}
		if len(c.LevelKeywords) == 0 {
			if kw := q.levels.KeywordFor(age); kw != "" {
				c.LevelKeywords = []string{kw}
			}
		}
	}
	return c
}

// GetRankings serves GET /api/rankings.
func (q *QueryService) GetRankings(ctx *fiber.Ctx) error {
	criteria := q.criteriaFromQuery(ctx)
	results := q.QueryRankings(criteria)
	log.Printf("🔍 [QUERY] rankings: %d rows", len(results))

	snap := q.store.Rankings()
	return ctx.JSON(fiber.Map{
		"updatedAt": snap.UpdatedAt,
		"count":     len(results),
		"status":    snap.Status,
		"data":      results,
	})
}

// GetMatches serves GET /api/matches. A missing playerName is a client
// error, not an empty result.
func (q *QueryService) GetMatches(ctx *fiber.Ctx) error {
	player := ctx.Query("playerName")
	results, err := q.QueryMatches(player, q.criteriaFromQuery(ctx))
	if err != nil {
		return ctx.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	log.Printf("🔍 [QUERY] matches for %q: %d rows", player, len(results))

	snap := q.store.Matches()
	return ctx.JSON(fiber.Map{
		"updatedAt": snap.UpdatedAt,
		"count":     len(results),
		"status":    snap.Status,
		"data":      results,
	})
}

// GetStatus serves GET /api/status: credential state plus snapshot freshness
// for the dashboard header.
func (q *QueryService) GetStatus(ctx *fiber.Ctx) error {
	rankings := q.store.Rankings()
	matches := q.store.Matches()

	status := fiber.Map{
		"rankings": fiber.Map{"updatedAt": rankings.UpdatedAt, "count": rankings.Count, "status": rankings.Status},
		"matches":  fiber.Map{"updatedAt": matches.UpdatedAt, "count": matches.Count, "status": matches.Status},
		"city":     rankings.City,
	}
	if cred, ok := q.store.Credential(); ok {
		status["auth"] = fiber.Map{
			"username":  cred.Username,
			"updatedAt": cred.UpdatedAt,
			"status":    cred.Status,
		}
	} else {
		status["auth"] = fiber.Map{"status": models.SnapshotInitializing}
	}
	return ctx.JSON(status)
}
