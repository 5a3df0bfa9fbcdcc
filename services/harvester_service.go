package services

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"badminton-data-system/models"

	"github.com/google/uuid"
)

const (
	matchPageSize = 50

	unknownGroupLabel = "未知组别"
	unknownPlayerA    = "未知选手A"
	unknownPlayerB    = "未知选手B"
)

// HarvesterService pulls a single tournament's standings and match records
// and normalizes the upstream's duck-typed rows into canonical records. Every
// sub-fetch fails soft: one broken item never aborts the tournament, and a
// broken tournament never aborts the sync cycle.
type HarvesterService struct {
	client   *UpstreamClient
	progress ProgressSink
}

func NewHarvesterService(client *UpstreamClient, progress ProgressSink) *HarvesterService {
	if progress == nil {
		progress = LogProgress
	}
	return &HarvesterService{client: client, progress: progress}
}

// HarvestRankings fetches the tournament's individual items and team groups
// concurrently, then pulls ranked standings per item/group. The per-call
// pacing lives in the upstream client's rate limiter, so the standings calls
// can fan out fully within one tournament.
func (h *HarvesterService) HarvestRankings(ctx context.Context, t models.Tournament) []models.Ranking {
	type sourceList struct {
		items   []raceItem
		isGroup bool
	}

	var wg sync.WaitGroup
	sources := make([]sourceList, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		items, err := h.client.AllItems(ctx, t.RaceID())
		if err != nil {
			log.Printf("⚠️  [HARVEST] [%s] item list failed: %v", t.GameName, err)
			return
		}
		sources[0] = sourceList{items: items}
	}()
	go func() {
		defer wg.Done()
		groups, err := h.client.AllGroups(ctx, t.RaceID())
		if err != nil {
			log.Printf("⚠️  [HARVEST] [%s] group list failed: %v", t.GameName, err)
			return
		}
		sources[1] = sourceList{items: groups, isGroup: true}
	}()
	wg.Wait()

	total := len(sources[0].items) + len(sources[1].items)
	if total == 0 {
		return nil
	}
	if len(sources[1].items) > 0 {
		log.Printf("ℹ️  [HARVEST] [%s] found %d team/group events", t.GameName, len(sources[1].items))
	}

	var (
		mu      sync.Mutex
		all     []models.Ranking
		done    int
		standWG sync.WaitGroup
	)

	for _, src := range sources {
		for _, item := range src.items {
			standWG.Add(1)
			go func(item raceItem, isGroup bool) {
				defer standWG.Done()

				itemID, groupID := item.ID.String(), ""
				if isGroup {
					itemID, groupID = "", item.ID.String()
				}
				ranks, err := h.client.RankScores(ctx, t.RaceID(), itemID, groupID)

				mu.Lock()
				defer mu.Unlock()
				done++
				if err != nil {
					// Skip and continue: partial failure must not abort the
					// tournament's harvest.
					log.Printf("⚠️  [HARVEST] [%s] standings for %s failed: %v", t.GameName, item.ID, err)
					return
				}
				label := compositeGroupLabel(item)
				for _, r := range ranks {
					all = append(all, models.Ranking{
						RaceID:    t.RaceID(),
						GameName:  t.GameName,
						GroupName: label,
						Player:    r.PlayerName,
						Rank:      r.Rank,
						Score:     int(r.Score),
						Club:      firstNonEmpty(r.Club, r.TeamName),
						ItemType:  item.ItemType,
						ItemName:  item.ItemName,
						Province:  t.Province,
						City:      t.City,
					})
				}
				h.progress.Progress(ProgressEvent{
					Percent: done * 100 / total,
					Message: fmt.Sprintf("[%s] 抓取组别排名 %d/%d", t.GameName, done, total),
				})
			}(item, src.isGroup)
		}
	}
	standWG.Wait()

	return all
}

// HarvestMatches pages through the match-score endpoint until an empty page
// or the reported total is reached.
func (h *HarvesterService) HarvestMatches(ctx context.Context, t models.Tournament) []models.Match {
	var all []models.Match
	for page := 1; ; page++ {
		total, rows, err := h.client.MatchPage(ctx, t.RaceID(), page, matchPageSize)
		if err != nil {
			log.Printf("⚠️  [HARVEST] [%s] match page %d failed: %v", t.GameName, page, err)
			break
		}
		if len(rows) == 0 {
			break
		}

		for _, m := range rows {
			all = append(all, normalizeMatch(t, m))
		}

		if total > 0 {
			h.progress.Progress(ProgressEvent{
				Percent: min(len(all)*100/total, 100),
				Message: fmt.Sprintf("[%s] 抓取比分 %d/%d", t.GameName, len(all), total),
			})
		}
		if len(rows) < matchPageSize || (total > 0 && len(all) >= total) {
			break
		}
	}
	return all
}

// compositeGroupLabel joins the group name with the item name (falling back
// to the item type) into the descriptive label the query engine matches
// against.
func compositeGroupLabel(item raceItem) string {
	label := strings.TrimSpace(item.GroupName + " " + firstNonEmpty(item.ItemName, item.ItemType))
	if label == "" {
		return unknownGroupLabel
	}
	return label
}

// normalizeMatch flattens one duck-typed upstream row into a canonical Match.
// Each logical field has an explicit ordered fallback list; see the
// participant and score chains below.
func normalizeMatch(t models.Tournament, m rawMatch) models.Match {
	// Doubles/team detection: the combined label carries a 双 (doubles) or 团
	// (team) marker.
	nameForLogic := firstNonEmpty(m.FullName, m.GroupName)
	isDoublesOrTeam := strings.ContainsAny(nameForLogic, "双团")

	var p1, p2 string
	if isDoublesOrTeam {
		// mateOne/mateTwo hold the pairing or team label, playerOnes/playerTwos
		// the individual players. Show "team (p1/p2)" when both exist and
		// differ; otherwise whichever is available.
		players1 := joinPlayerNames(m.PlayerOnes)
		players2 := joinPlayerNames(m.PlayerTwos)
		p1 = composeSideName(m.MateOne, players1)
		p2 = composeSideName(m.MateTwo, players2)
	} else {
		// Singles: direct opponent field first, then the head of the player
		// list.
		p1 = m.MateOne
		if p1 == "" && len(m.PlayerOnes) > 0 {
			p1 = m.PlayerOnes[0].Name
		}
		p2 = m.MateTwo
		if p2 == "" && len(m.PlayerTwos) > 0 {
			p2 = m.PlayerTwos[0].Name
		}
	}
	p1 = firstNonEmpty(p1, unknownPlayerA)
	p2 = firstNonEmpty(p2, unknownPlayerB)

	// Score chain: numeric pair, then raw string, then the not-started
	// default.
	score := "0:0"
	if m.ScoreOne != nil && m.ScoreTwo != nil {
		score = fmt.Sprintf("%d:%d", int(*m.ScoreOne), int(*m.ScoreTwo))
	} else if m.Score != "" {
		score = m.Score
	}

	matchID := m.ID.String()
	if matchID == "" {
		// Upstream occasionally omits the row id; synthesize one so the
		// (tournament, matchId) key stays usable.
		matchID = uuid.NewString()
	}

	return models.Match{
		RaceID:    t.RaceID(),
		GameName:  t.GameName,
		MatchID:   matchID,
		FullName:  firstNonEmpty(m.FullName, m.GroupName),
		GroupName: firstNonEmpty(m.GroupName, m.FullName),
		PlayerA:   p1,
		PlayerB:   p2,
		Score:     score,
		MatchTime: m.RaceTimeName,
		Round:     firstNonEmpty(m.RoundName, m.RulesName),
		Province:  t.Province,
		City:      t.City,
	}
}

func composeSideName(combo, players string) string {
	if combo != "" && players != "" && combo != players {
		return fmt.Sprintf("%s (%s)", combo, players)
	}
	return firstNonEmpty(combo, players)
}

func joinPlayerNames(players []rawPlayer) string {
	var names []string
	for _, p := range players {
		if p.Name != "" {
			names = append(names, p.Name)
		}
	}
	return strings.Join(names, "/")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
