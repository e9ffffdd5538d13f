package statsgen

import (
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/kv"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// Extract walks a decoded schema (appId -> appData) and splits its stat
// definitions into achievements and stats, in schema order.
// Entries without the expected shape are skipped.
func Extract(root *kv.Map) ([]models.Achievement, []models.Stat) {
	var achievements []models.Achievement
	var stats []models.Stat

	for _, app := range root.Entries() {
		appData, ok := app.Value.(*kv.Map)
		if !ok {
			continue
		}
		statInfo, ok := appData.GetMap("stats")
		if !ok {
			continue
		}

		for _, entry := range statInfo.Entries() {
			statData, ok := entry.Value.(*kv.Map)
			if !ok {
				continue
			}
			typeValue, ok := statData.Get("type")
			if !ok {
				continue
			}

			statType := kv.Text(typeValue)
			if statType == models.StatTypeBits {
				bits, ok := statData.GetMap("bits")
				if !ok {
					continue
				}
				for _, bit := range bits.Entries() {
					if ach, ok := bit.Value.(*kv.Map); ok {
						achievements = append(achievements, extractAchievement(ach))
					}
				}
				continue
			}

			stats = append(stats, extractStat(statType, statData))
		}
	}

	return achievements, stats
}

func extractAchievement(ach *kv.Map) models.Achievement {
	var out models.Achievement

	display, _ := ach.GetMap("display")
	for _, e := range display.Entries() {
		switch strings.ToLower(e.Key) {
		case "name":
			out.DisplayName = localized(e.Value)
		case "desc":
			out.Description = localized(e.Value)
		case "hidden":
			out.Hidden = hiddenFlag(e.Value)
		default:
			switch e.Key {
			case "icon":
				out.Icon = kv.Text(e.Value)
			case "icon_gray":
				out.IconGray = kv.Text(e.Value)
			case "icongray":
				out.IconGrayAlt = kv.Text(e.Value)
			}
		}
	}

	if name, ok := ach.Get("name"); ok {
		out.Name = kv.Text(name)
	}
	if progress, ok := ach.GetMap("progress"); ok {
		out.Progress = progress
	}

	return out
}

func extractStat(statType string, stat *kv.Map) models.Stat {
	out := models.Stat{
		Default: "0",
		Global:  "0",
	}

	if name, ok := stat.Get("name"); ok {
		out.Name = kv.Text(name)
	}
	if minValue, ok := stat.Get("min"); ok {
		out.Min = kv.Text(minValue)
	}

	switch statType {
	case models.StatTypeInt:
		out.Type = "int"
	case models.StatTypeFloat:
		out.Type = "float"
	case models.StatTypeAvgRate:
		out.Type = "avgrate"
	}

	if v, ok := stat.Get("Default"); ok {
		out.Default = kv.Text(v)
	} else if v, ok := stat.Get("default"); ok {
		out.Default = kv.Text(v)
	}

	return out
}

// localized flattens a display name/desc value. A map becomes one pair per
// locale; anything else is taken as the english text.
func localized(v kv.Value) models.Localized {
	m, ok := v.(*kv.Map)
	if !ok {
		return models.Localized{{Locale: "english", Text: kv.Text(v)}}
	}

	out := make(models.Localized, 0, m.Len())
	for _, e := range m.Entries() {
		out = append(out, models.LocaleText{Locale: e.Key, Text: kv.Text(e.Value)})
	}
	return out
}

// hiddenFlag reads the display "hidden" value. Integer text and numbers are
// taken as-is (floats truncate); anything else counts as not hidden.
func hiddenFlag(v kv.Value) int {
	switch hv := v.(type) {
	case kv.String:
		n, err := strconv.ParseInt(string(hv), 10, 32)
		if err != nil {
			return 0
		}
		return int(n)
	case kv.Int32:
		return int(hv)
	case kv.Int64:
		return int(int32(hv))
	case kv.Uint64:
		return int(int32(hv))
	case kv.Float32:
		return truncateFloat(float32(hv))
	default:
		return 0
	}
}
