package statsgen

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// ParseAchievements reads an achievements.json document back into
// descriptors, keeping locale order
func ParseAchievements(data []byte) ([]models.AchievementDescriptor, error) {
	var out []models.AchievementDescriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing achievements: %w", err)
	}
	return out, nil
}

// ParseStats reads a stats.json document back into descriptors
func ParseStats(data []byte) ([]models.StatDescriptor, error) {
	var out []models.StatDescriptor
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parsing stats: %w", err)
	}
	return out, nil
}

// ReadDescriptors loads both descriptor files from dir. A missing file
// yields an empty list.
func ReadDescriptors(dir string) ([]models.AchievementDescriptor, []models.StatDescriptor, error) {
	var achievements []models.AchievementDescriptor
	var stats []models.StatDescriptor

	data, err := readOptional(filepath.Join(dir, AchievementsFile))
	if err != nil {
		return nil, nil, err
	}
	if data != nil {
		if achievements, err = ParseAchievements(data); err != nil {
			return nil, nil, err
		}
	}

	data, err = readOptional(filepath.Join(dir, StatsFile))
	if err != nil {
		return nil, nil, err
	}
	if data != nil {
		if stats, err = ParseStats(data); err != nil {
			return nil, nil, err
		}
	}

	return achievements, stats, nil
}

func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	return data, nil
}
