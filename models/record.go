package models

import "encoding/json"

// Tournament is a discovery-time record driving harvesting. It is never
// persisted on its own; only the id/name pair survives into Ranking and Match
// rows. The id is a json.Number because upstream sends both numeric and
// string ids depending on the endpoint version.
type Tournament struct {
	ID          json.Number `json:"id"`
	GameName    string      `json:"game_name"`
	StartDate   string      `json:"start_date,omitempty"`
	EndGameTime int64       `json:"end_game_time,omitempty"` // unix seconds
	Province    string      `json:"province,omitempty"`
	City        string      `json:"city,omitempty"`
}

// RaceID is the stable tournament identifier used to key harvested records.
func (t Tournament) RaceID() string { return t.ID.String() }

// Ranking is one player's standing within one group of one tournament.
// Field names match the snapshot files the dashboard already consumes.
type Ranking struct {
	RaceID    string `json:"raceId"`
	GameName  string `json:"game_name"`
	GroupName string `json:"groupName"` // composite, e.g. "U8男子组 男单"
	Player    string `json:"playerName"`
	Rank      any    `json:"rank"` // upstream sends numbers and strings ("并列第3")
	Score     int    `json:"score,omitempty"`
	Club      string `json:"club,omitempty"`
	ItemType  string `json:"itemType,omitempty"`
	ItemName  string `json:"name,omitempty"`
	Province  string `json:"province,omitempty"`
	City      string `json:"city,omitempty"`
}

// Match is one head-to-head result within one group of one tournament.
type Match struct {
	RaceID    string `json:"raceId"`
	GameName  string `json:"game_name"`
	MatchID   string `json:"matchId"`
	FullName  string `json:"fullName,omitempty"`
	GroupName string `json:"groupName"`
	PlayerA   string `json:"playerA"`
	PlayerB   string `json:"playerB"`
	Score     string `json:"score"` // "A:B", "0:0" when not started
	MatchTime string `json:"matchTime,omitempty"`
	Round     string `json:"round,omitempty"`
	Province  string `json:"province,omitempty"`
	City      string `json:"city,omitempty"`
}
