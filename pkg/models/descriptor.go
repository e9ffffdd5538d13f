package models

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/kv"
)

// Stat types as they appear in the schema's "type" field
const (
	StatTypeInt     = "1"
	StatTypeFloat   = "2"
	StatTypeAvgRate = "3"
	StatTypeBits    = "4" // achievement group
)

// LocaleText is one locale -> text pair of a localized string
type LocaleText struct {
	Locale string
	Text   string
}

// Localized is an ordered locale -> text mapping ("english" -> "Win a game").
// A nil Localized means the field was absent from the schema.
type Localized []LocaleText

// Get returns the text for locale
func (l Localized) Get(locale string) (string, bool) {
	for _, lt := range l {
		if lt.Locale == locale {
			return lt.Text, true
		}
	}
	return "", false
}

// MarshalJSON renders the pairs as a JSON object, keeping their order
func (l Localized) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, lt := range l {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := json.Marshal(lt.Locale)
		if err != nil {
			return nil, err
		}
		v, err := json.Marshal(lt.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON reads a JSON object of strings, keeping key order
func (l *Localized) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))

	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if tok == nil {
		*l = nil
		return nil
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("localized text: expected object, got %v", tok)
	}

	out := Localized{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, _ := keyTok.(string)

		var text string
		if err := dec.Decode(&text); err != nil {
			return fmt.Errorf("localized text %q: %w", key, err)
		}
		out = append(out, LocaleText{Locale: key, Text: text})
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*l = out
	return nil
}

// Achievement is one bit of an achievement group, as extracted from the schema
type Achievement struct {
	Name        string    `json:"name"`
	DisplayName Localized `json:"displayName,omitempty"`
	Description Localized `json:"description,omitempty"`
	Hidden      int       `json:"hidden"`
	Icon        string    `json:"icon,omitempty"`
	IconGray    string    `json:"icon_gray,omitempty"`
	// IconGrayAlt carries the "icongray" display key, a historical
	// spelling kept separate from "icon_gray"
	IconGrayAlt string  `json:"icongray,omitempty"`
	Progress    *kv.Map `json:"progress,omitempty"`
}

// Stat is one numeric counter, as extracted from the schema.
// Numbers stay text until normalization coerces them.
type Stat struct {
	Name    string `json:"name"`
	Type    string `json:"type,omitempty"` // int, float, avgrate; empty when unrecognized
	Default string `json:"default"`
	Global  string `json:"global"`
	Min     string `json:"min,omitempty"`
}

// ProcessingResult is what a compile hands back to the host
type ProcessingResult struct {
	Achievements           []Achievement  `json:"achievements"`
	Stats                  []Stat         `json:"stats"`
	CopyDefaultUnlockedImg bool           `json:"copy_default_unlocked_img"`
	CopyDefaultLockedImg   bool           `json:"copy_default_locked_img"`
	Diagnostics            kv.Diagnostics `json:"diagnostics"`
}

// AchievementDescriptor is one element of achievements.json
type AchievementDescriptor struct {
	Hidden      int       `json:"hidden"`
	DisplayName Localized `json:"displayName,omitempty"`
	Description Localized `json:"description,omitempty"`
	Icon        string    `json:"icon,omitempty"`
	IconGray    string    `json:"icon_gray,omitempty"`
	Name        string    `json:"name"`
	// IconGrayAlt is passed through from the schema but not written to the file
	IconGrayAlt string `json:"-"`
}

// StatDescriptor is one element of stats.json
type StatDescriptor struct {
	Default string `json:"default"`
	Global  string `json:"global"`
	Name    string `json:"name"`
	Type    string `json:"type"`
}
