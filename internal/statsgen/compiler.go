// Package statsgen compiles a decoded game stats schema into the
// achievements.json and stats.json descriptor files read by the local
// stats emulation layer.
package statsgen

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/kv"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// Descriptor file names inside the output directory
const (
	AchievementsFile = "achievements.json"
	StatsFile        = "stats.json"
)

// Compiler turns schema blobs into descriptor files. It keeps no state
// between calls and is safe for concurrent use.
type Compiler struct {
	logger *zap.Logger
}

// New creates a new compiler
func New(logger *zap.Logger) *Compiler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Compiler{logger: logger}
}

// Output is a compiled schema that has not been written anywhere yet
type Output struct {
	Result           *models.ProcessingResult
	Achievements     []models.AchievementDescriptor
	Stats            []models.StatDescriptor
	AchievementsJSON []byte // nil when there are no achievements
	StatsJSON        []byte // nil when there are no stats
}

// Build decodes, extracts, normalizes and serializes a schema in memory.
// Decode problems never fail the build; coercion failures do.
func (c *Compiler) Build(schema []byte) (*Output, error) {
	dec := kv.NewDecoder(schema)
	root := dec.Decode()
	diag := dec.Diagnostics()

	if diag.PrematureTerminations() > 0 {
		c.logger.Warn("schema decode stopped early",
			zap.Int("truncations", diag.Truncations),
			zap.Int("unknown_tags", diag.UnknownTags),
			zap.Int("depth_exceeded", diag.DepthExceeded),
			zap.Int("last_offset", diag.LastOffset),
			zap.Int("schema_bytes", len(schema)),
		)
	}

	achievements, stats := Extract(root)

	achDescs, copyUnlocked, copyLocked := NormalizeAchievements(achievements)
	statDescs, err := NormalizeStats(stats)
	if err != nil {
		return nil, err
	}

	c.logger.Debug("schema extracted",
		zap.Int("apps", root.Len()),
		zap.Int("achievements", len(achievements)),
		zap.Int("stats", len(stats)),
	)

	return &Output{
		Result: &models.ProcessingResult{
			Achievements:           achievements,
			Stats:                  stats,
			CopyDefaultUnlockedImg: copyUnlocked,
			CopyDefaultLockedImg:   copyLocked,
			Diagnostics:            diag,
		},
		Achievements:     achDescs,
		Stats:            statDescs,
		AchievementsJSON: MarshalAchievements(achDescs),
		StatsJSON:        MarshalStats(statDescs),
	}, nil
}

// WriteFiles creates dir if needed and replaces each descriptor file that
// has content. A file whose list is empty is not touched.
func (o *Output) WriteFiles(dir string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	if err := replaceFile(filepath.Join(dir, AchievementsFile), o.AchievementsJSON); err != nil {
		return err
	}
	return replaceFile(filepath.Join(dir, StatsFile), o.StatsJSON)
}

// Compile builds the schema and writes the descriptor files into dir.
// The returned result carries the raw records and the fallback icon flags;
// copying the fallback images is left to the caller.
func (c *Compiler) Compile(schema []byte, dir string) (*models.ProcessingResult, error) {
	out, err := c.Build(schema)
	if err != nil {
		return nil, err
	}
	if err := out.WriteFiles(dir); err != nil {
		return nil, err
	}

	c.logger.Info("descriptor files written",
		zap.String("dir", dir),
		zap.Int("achievements", len(out.Achievements)),
		zap.Int("stats", len(out.Stats)),
	)
	return out.Result, nil
}

func replaceFile(path string, data []byte) error {
	if data == nil {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing %s: %w", filepath.Base(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}
