package statsgen

import (
	"errors"
	"math"
	"strconv"
	"strings"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/kv"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// Icon layout inside the output directory
const (
	IconDir             = "img"
	DefaultUnlockedIcon = "steam_default_icon_unlocked.jpg"
	DefaultLockedIcon   = "steam_default_icon_locked.jpg"
)

// NormalizeAchievements applies icon defaulting and gives absent display
// names and descriptions an empty locale map. The returned flags report
// whether any achievement fell back to the default unlocked/locked image.
func NormalizeAchievements(achievements []models.Achievement) (out []models.AchievementDescriptor, copyUnlocked, copyLocked bool) {
	out = make([]models.AchievementDescriptor, 0, len(achievements))

	for _, ach := range achievements {
		desc := models.AchievementDescriptor{
			Hidden:      ach.Hidden,
			DisplayName: ach.DisplayName,
			Description: ach.Description,
			Name:        ach.Name,
			IconGrayAlt: ach.IconGrayAlt,
		}
		if desc.DisplayName == nil {
			desc.DisplayName = models.Localized{}
		}
		if desc.Description == nil {
			desc.Description = models.Localized{}
		}

		if ach.Icon != "" {
			desc.Icon = IconDir + "/" + ach.Icon
		} else {
			desc.Icon = IconDir + "/" + DefaultUnlockedIcon
			copyUnlocked = true
		}

		if ach.IconGray != "" {
			desc.IconGray = IconDir + "/" + ach.IconGray
		} else {
			desc.IconGray = IconDir + "/" + DefaultLockedIcon
			copyLocked = true
		}

		out = append(out, desc)
	}

	return out, copyUnlocked, copyLocked
}

// NormalizeStats coerces default and global to the numeric text their type
// requires. Int stats try an integer parse, then a truncated float parse,
// then fall back to min (global becomes "0"). Float and avgrate stats must
// parse as floats. The first failure aborts with a *CoercionError.
func NormalizeStats(stats []models.Stat) ([]models.StatDescriptor, error) {
	out := make([]models.StatDescriptor, 0, len(stats))

	for _, st := range stats {
		statType := st.Type
		if statType == "" {
			statType = "int"
		}

		desc := models.StatDescriptor{Name: st.Name, Type: statType}

		var err error
		if strings.ToLower(statType) == "int" {
			desc.Default, desc.Global, err = coerceInt(st)
		} else {
			desc.Default, desc.Global, err = coerceFloat(st, statType)
		}
		if err != nil {
			return nil, err
		}

		out = append(out, desc)
	}

	return out, nil
}

func coerceInt(st models.Stat) (string, string, error) {
	d, errD := parseInt(st.Default)
	g, errG := parseInt(st.Global)
	if errD == nil && errG == nil {
		return strconv.Itoa(d), strconv.Itoa(g), nil
	}

	df, errD := parseFloat(st.Default)
	gf, errG := parseFloat(st.Global)
	if errD == nil && errG == nil {
		return strconv.Itoa(truncateFloat(df)), strconv.Itoa(truncateFloat(gf)), nil
	}

	if st.Min == "" {
		field, value := "default", st.Default
		if errD == nil {
			field, value = "global", st.Global
		}
		return "", "", &CoercionError{Stat: st.Name, Type: "int", Field: field, Value: value}
	}

	m, err := parseInt(st.Min)
	if err != nil {
		return "", "", &CoercionError{Stat: st.Name, Type: "int", Field: "min", Value: st.Min}
	}
	return strconv.Itoa(m), "0", nil
}

func coerceFloat(st models.Stat, statType string) (string, string, error) {
	d, err := parseFloat(st.Default)
	if err != nil {
		return "", "", &CoercionError{Stat: st.Name, Type: statType, Field: "default", Value: st.Default}
	}
	g, err := parseFloat(st.Global)
	if err != nil {
		return "", "", &CoercionError{Stat: st.Name, Type: statType, Field: "global", Value: st.Global}
	}
	return kv.FormatFloat32(d), kv.FormatFloat32(g), nil
}

var errNotNumber = errors.New("not a number")

// parseInt accepts an optional sign followed by decimal digits in int32 range
func parseInt(s string) (int, error) {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// parseFloat accepts the float literals schema tools emit: surrounding
// control/space characters, an f/F/d/D suffix, "NaN" and "Infinity".
func parseFloat(s string) (float32, error) {
	s = strings.TrimFunc(s, func(r rune) bool { return r <= ' ' })
	if s == "" || strings.ContainsRune(s, '_') {
		return 0, errNotNumber
	}

	body := strings.TrimLeft(s, "+-")
	if len(s)-len(body) > 1 {
		return 0, errNotNumber
	}
	switch lower := strings.ToLower(body); {
	case strings.HasPrefix(lower, "inf") || strings.HasPrefix(lower, "nan"):
		if body != "Infinity" && body != "NaN" {
			return 0, errNotNumber
		}
	default:
		if last := s[len(s)-1]; len(body) > 1 && strings.IndexByte("fFdD", last) >= 0 {
			s = s[:len(s)-1]
		}
	}

	f, err := strconv.ParseFloat(s, 32)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, err
	}
	return float32(f), nil
}

// truncateFloat converts toward zero, saturating at the int32 range; NaN is 0
func truncateFloat(f float32) int {
	switch {
	case math.IsNaN(float64(f)):
		return 0
	case f >= math.MaxInt32:
		return math.MaxInt32
	case f <= math.MinInt32:
		return math.MinInt32
	default:
		return int(int32(f))
	}
}
