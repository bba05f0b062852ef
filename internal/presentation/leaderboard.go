package presentation

import (
	"sort"
	"strconv"
)

const podiumSize = 3

// LeaderboardPlayer is one ranked row.
type LeaderboardPlayer struct {
	Rank              int    `json:"rank"`
	RankText          string `json:"rank_text"`
	Name              string `json:"name"`
	Avatar            string `json:"avatar,omitempty"`
	Podium            bool   `json:"podium"`
	Reported          bool   `json:"reported"`
	StartWeightText   string `json:"start_weight_text"`
	CurrentWeightText string `json:"current_weight_text"`
	DeltaWeightText   string `json:"delta_weight_text"`
	DeltaGramsText    string `json:"delta_grams_text"`
	DeltaClass        string `json:"delta_class"`

	delta *float64
}

// Leaderboard is the view for daily leaderboard cards.
type Leaderboard struct {
	Title       string              `json:"title"`
	Day         int                 `json:"day"`
	TotalDays   int                 `json:"total_days"`
	PlayerCount int                 `json:"player_count"`
	Players     []LeaderboardPlayer `json:"players"`
	Podium      []LeaderboardPlayer `json:"podium"`
	IsCompleted bool                `json:"is_completed"`
	ShowSummary bool                `json:"show_summary"`
}

// LeaderboardName is the name used for filenames: name, then "anon".
func LeaderboardName(body map[string]any) string {
	if n := str(body["name"]); n != "" {
		return n
	}
	return "anon"
}

// LeaderboardView ranks players by weight delta, biggest loss first.
// Players without a reported delta go last, unranked. Equal deltas share a rank.
func LeaderboardView(body map[string]any) Leaderboard {
	rows := list(first(body["players"], body["leaderboard"]))

	players := make([]LeaderboardPlayer, 0, len(rows))
	for _, p := range rows {
		stats, _ := p["stats"].(map[string]any)
		if stats == nil {
			stats = p
		}
		start := num(first(stats["start_weight"], p["start_weight"]))
		current := num(first(stats["current_weight"], p["current_weight"]))
		delta := num(first(stats["delta_weight"], p["delta_weight"]))
		if delta == nil && start != nil && current != nil {
			d := *current - *start
			delta = &d
		}

		players = append(players, LeaderboardPlayer{
			Name:              str(p["name"]),
			Avatar:            str(first(p["avatar"], p["avatar_url"])),
			Reported:          delta != nil,
			StartWeightText:   weightText(start),
			CurrentWeightText: weightText(current),
			DeltaWeightText:   kgDeltaText(delta),
			DeltaGramsText:    gramDeltaText(delta),
			DeltaClass:        deltaClass(delta),
			delta:             delta,
		})
	}

	sort.SliceStable(players, func(i, j int) bool {
		a, b := players[i].delta, players[j].delta
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})

	var podium []LeaderboardPlayer
	for i := range players {
		p := &players[i]
		if p.delta == nil {
			p.RankText = "-"
			continue
		}
		p.Rank = i + 1
		if i > 0 && players[i-1].delta != nil && *players[i-1].delta == *p.delta {
			p.Rank = players[i-1].Rank
		}
		p.RankText = strconv.Itoa(p.Rank)
		p.Podium = p.Rank <= podiumSize
		if p.Podium {
			podium = append(podium, *p)
		}
	}

	v := Leaderboard{
		Title:       str(first(body["title"], body["name"])),
		PlayerCount: len(players),
		Players:     players,
		Podium:      podium,
	}
	if d := num(first(path(body, "round_config", "current_day"), body["day"])); d != nil {
		v.Day = int(*d)
	}
	if t := num(path(body, "round_config", "total_days")); t != nil {
		v.TotalDays = int(*t)
	}
	v.IsCompleted = boolean(path(body, "round_config", "is_completed")) ||
		(v.TotalDays > 0 && v.Day >= v.TotalDays)
	v.ShowSummary = v.IsCompleted
	return v
}

