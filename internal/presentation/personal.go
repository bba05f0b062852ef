package presentation

import "strings"

// GridDay is one cell of the personal progress grid.
type GridDay struct {
	Day       int    `json:"day"`
	Status    string `json:"status"`
	Class     string `json:"class"`
	DeltaText string `json:"delta_text"`
	Reported  bool   `json:"reported"`
	IsToday   bool   `json:"is_today"`
	IsFinal   bool   `json:"is_final"`
}

// Personal is the view for personal progress cards.
type Personal struct {
	Name              string    `json:"name"`
	StartWeightText   string    `json:"start_weight_text"`
	CurrentWeightText string    `json:"current_weight_text"`
	DeltaWeightText   string    `json:"delta_weight_text"`
	DeltaClass        string    `json:"delta_class"`
	Grid              []GridDay `json:"grid"`
	FinalDay          int       `json:"final_day"`
	DaysReported      int       `json:"days_reported"`
	IsCompleted       bool      `json:"is_completed"`
	ShowSummary       bool      `json:"show_summary"`
}

// PersonalName is the player name used for filenames: player.name, then
// name, then "anon".
func PersonalName(body map[string]any) string {
	if n := str(path(body, "player", "name")); n != "" {
		return n
	}
	if n := str(body["name"]); n != "" {
		return n
	}
	return "anon"
}

// PersonalView builds the personal card view. A null delta means the day
// was not reported; a zero delta was reported as unchanged.
func PersonalView(body map[string]any) Personal {
	player, _ := body["player"].(map[string]any)
	if player == nil {
		player = map[string]any{}
	}
	stats, _ := first(player["stats"], body["stats"]).(map[string]any)
	if stats == nil {
		stats = map[string]any{}
	}

	start := num(stats["start_weight"])
	current := num(stats["current_weight"])
	delta := num(stats["delta_weight"])
	if delta == nil && start != nil && current != nil {
		d := *current - *start
		delta = &d
	}

	v := Personal{
		Name:              str(first(player["name"], body["name"])),
		StartWeightText:   weightText(start),
		CurrentWeightText: weightText(current),
		DeltaWeightText:   kgDeltaText(delta),
		DeltaClass:        deltaClass(delta),
	}

	maxDay := 0
	for i, cell := range list(first(player["grid"], body["grid"])) {
		day := i + 1
		if d := num(cell["day"]); d != nil {
			day = int(*d)
		}
		if day > maxDay {
			maxDay = day
		}

		status := strings.ToLower(str(cell["status"]))
		cellDelta := num(cell["delta_from_start"])

		g := GridDay{
			Day:     day,
			Status:  status,
			IsToday: boolean(cell["is_today"]),
		}
		switch {
		case status == "missed":
			g.Class = ClassMissed
			g.DeltaText = gramDeltaText(nil)
		case cellDelta == nil:
			g.Class = ClassEmpty
			g.DeltaText = gramDeltaText(nil)
		default:
			g.Class = deltaClass(cellDelta)
			g.DeltaText = gramDeltaText(cellDelta)
			g.Reported = true
			v.DaysReported++
		}
		v.Grid = append(v.Grid, g)
	}

	v.FinalDay = maxDay
	if total := num(first(path(body, "round_config", "total_days"), path(player, "round_config", "total_days"))); total != nil && *total > 0 {
		v.FinalDay = int(*total)
	}

	for i := range v.Grid {
		if v.Grid[i].Day == v.FinalDay {
			v.Grid[i].IsFinal = true
			v.IsCompleted = v.Grid[i].Reported
		}
	}
	v.ShowSummary = v.IsCompleted
	return v
}
