package models

import (
	"sort"
	"strconv"
	"strings"
)

// SearchCriteria is the filter input of the query engine. Keyword slices are
// already split; empty slices and empty strings mean "no gate".
type SearchCriteria struct {
	Province string
	City     string

	GameKeywords  []string // tournament name, OR
	UKeywords     []string // age tier ("U8","U9"), OR
	LevelKeywords []string // level/school ("小学","乙"), AND
	ItemKeywords  []string // event type ("男单"), OR

	PlayerName string
	Gender     string // "M", "F" or empty
}

// Empty reports whether no gate at all is set. Used by the ranking query to
// decide whether to cap output to a sample.
func (c SearchCriteria) Empty() bool {
	return c.Province == "" && c.City == "" && c.PlayerName == "" && c.Gender == "" &&
		len(c.GameKeywords) == 0 && len(c.UKeywords) == 0 &&
		len(c.LevelKeywords) == 0 && len(c.ItemKeywords) == 0
}

// LevelRule maps a maximum age to a default level keyword.
type LevelRule struct {
	MaxAge  int
	Keyword string
}

// LevelTable is the configurable age→level mapping. The shipped defaults come
// from observed regional conventions and are not authoritative for every
// federation, which is exactly why the table is configuration rather than
// derived logic.
type LevelTable []LevelRule

// DefaultLevelTable mirrors the convention this region used historically.
var DefaultLevelTable = LevelTable{
	{MaxAge: 7, Keyword: "丙"},
	{MaxAge: 9, Keyword: "乙"},
	{MaxAge: 11, Keyword: "甲"},
}

// ParseLevelTable parses a spec like "7:丙,9:乙,11:甲". Malformed entries are
// dropped; an empty result falls back to DefaultLevelTable.
func ParseLevelTable(spec string) LevelTable {
	var table LevelTable
	for _, part := range strings.Split(spec, ",") {
		kv := strings.SplitN(strings.TrimSpace(part), ":", 2)
		if len(kv) != 2 {
			continue
		}
		age, err := strconv.Atoi(strings.TrimSpace(kv[0]))
		if err != nil || kv[1] == "" {
			continue
		}
		table = append(table, LevelRule{MaxAge: age, Keyword: kv[1]})
	}
	if len(table) == 0 {
		return DefaultLevelTable
	}
	sort.Slice(table, func(i, j int) bool { return table[i].MaxAge < table[j].MaxAge })
	return table
}

// KeywordFor returns the default level keyword for a player age, or "" when
// the age falls outside the table.
func (t LevelTable) KeywordFor(age int) string {
	for _, rule := range t {
		if age <= rule.MaxAge {
			return rule.Keyword
		}
	}
	return ""
}
