package statsgen

import (
	"bytes"
	"strconv"
	"unicode/utf16"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

const hexDigits = "0123456789abcdef"

// MarshalAchievements renders achievements.json. Each object carries its
// fields in the order hidden, displayName, description, icon, icon_gray,
// name. displayName and description are always written, as an empty
// object when absent; empty icons are left out. Returns nil for an empty list.
func MarshalAchievements(achievements []models.AchievementDescriptor) []byte {
	if len(achievements) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, ach := range achievements {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  {\n")

		buf.WriteString(`    "hidden": `)
		buf.WriteString(strconv.Itoa(ach.Hidden))

		buf.WriteString(",\n")
		writeLocalized(&buf, "displayName", ach.DisplayName)
		buf.WriteString(",\n")
		writeLocalized(&buf, "description", ach.Description)
		if ach.Icon != "" {
			buf.WriteString(",\n")
			writeField(&buf, "icon", ach.Icon)
		}
		if ach.IconGray != "" {
			buf.WriteString(",\n")
			writeField(&buf, "icon_gray", ach.IconGray)
		}
		buf.WriteString(",\n")
		writeField(&buf, "name", ach.Name)

		buf.WriteString("\n  }")
	}
	buf.WriteString("\n]")
	return buf.Bytes()
}

// MarshalStats renders stats.json with fields in the order default, global,
// name, type. Returns nil for an empty list.
func MarshalStats(stats []models.StatDescriptor) []byte {
	if len(stats) == 0 {
		return nil
	}

	var buf bytes.Buffer
	buf.WriteString("[\n")
	for i, st := range stats {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString("  {\n")
		writeField(&buf, "default", st.Default)
		buf.WriteString(",\n")
		writeField(&buf, "global", st.Global)
		buf.WriteString(",\n")
		writeField(&buf, "name", st.Name)
		buf.WriteString(",\n")
		writeField(&buf, "type", st.Type)
		buf.WriteString("\n  }")
	}
	buf.WriteString("\n]")
	return buf.Bytes()
}

func writeField(buf *bytes.Buffer, key, value string) {
	buf.WriteString(`    "`)
	buf.WriteString(key)
	buf.WriteString(`": "`)
	writePlain(buf, value)
	buf.WriteByte('"')
}

func writeLocalized(buf *bytes.Buffer, key string, texts models.Localized) {
	buf.WriteString(`    "`)
	buf.WriteString(key)
	buf.WriteString("\": {\n")
	for i, lt := range texts {
		if i > 0 {
			buf.WriteString(",\n")
		}
		buf.WriteString(`      "`)
		writePlain(buf, lt.Locale)
		buf.WriteString(`": "`)
		writeEscaped(buf, lt.Text)
		buf.WriteByte('"')
	}
	buf.WriteString("\n    }")
}

// Escape returns s as it appears between the quotes of a descriptor file:
// every UTF-16 unit below 0x20 or above 0x7e becomes \uXXXX (lower-case
// hex), backslash and double quote are backslash-escaped.
func Escape(s string) string {
	var buf bytes.Buffer
	writeEscaped(&buf, s)
	return buf.String()
}

func writeEscaped(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch {
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '"':
			buf.WriteString(`\"`)
		case r < 0x20 || r > 0x7e:
			if r > 0xffff {
				hi, lo := utf16.EncodeRune(r)
				writeUnit(buf, hi)
				writeUnit(buf, lo)
			} else {
				writeUnit(buf, r)
			}
		default:
			buf.WriteRune(r)
		}
	}
}

// writePlain writes names, icon paths, stat values and locale keys. Only
// backslash, double quote and control characters are escaped; other text,
// non-ASCII included, is written as UTF-8.
func writePlain(buf *bytes.Buffer, s string) {
	for _, r := range s {
		switch {
		case r == '\\':
			buf.WriteString(`\\`)
		case r == '"':
			buf.WriteString(`\"`)
		case r < 0x20:
			writeUnit(buf, r)
		default:
			buf.WriteRune(r)
		}
	}
}

func writeUnit(buf *bytes.Buffer, u rune) {
	buf.WriteString(`\u`)
	buf.WriteByte(hexDigits[u>>12&0xf])
	buf.WriteByte(hexDigits[u>>8&0xf])
	buf.WriteByte(hexDigits[u>>4&0xf])
	buf.WriteByte(hexDigits[u&0xf])
}
