package models

import (
	"errors"
	"time"
)

// ErrInvalidAppID is returned for app ids that are empty or unsafe as a directory name
var ErrInvalidAppID = errors.New("invalid app id")

// ValidateAppID checks that id is 1-64 characters of letters, digits, '-' or '_'
func ValidateAppID(id string) error {
	if id == "" || len(id) > 64 {
		return ErrInvalidAppID
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '-', r == '_':
		default:
			return ErrInvalidAppID
		}
	}
	return nil
}

// RunStatus represents the outcome of a compile run
type RunStatus string

const (
	RunStatusSucceeded RunStatus = "succeeded"
	RunStatusFailed    RunStatus = "failed"
)

// CompileRequest asks for one schema blob to be compiled for an app
type CompileRequest struct {
	AppID  string `json:"app_id"`
	Schema []byte `json:"schema"` // raw binary KeyValues blob
	Source string `json:"source"` // "http", "stream", "cli"
}

// CompiledSchema is the full outcome of a successful compile, handed to sinks
type CompiledSchema struct {
	RunID            string                  `json:"run_id"`
	AppID            string                  `json:"app_id"`
	OutputDir        string                  `json:"output_dir"`
	Result           *ProcessingResult       `json:"result"`
	Achievements     []AchievementDescriptor `json:"-"`
	Stats            []StatDescriptor        `json:"-"`
	AchievementsJSON []byte                  `json:"-"` // nil when no achievements
	StatsJSON        []byte                  `json:"-"` // nil when no stats
	CompiledAt       time.Time               `json:"compiled_at"`
	Duration         time.Duration           `json:"duration"`
}

// CompileRun is the persisted record of one compile attempt
type CompileRun struct {
	RunID                  string    `json:"run_id"`
	AppID                  string    `json:"app_id"`
	Source                 string    `json:"source"`
	Status                 RunStatus `json:"status"`
	AchievementCount       int       `json:"achievement_count"`
	StatCount              int       `json:"stat_count"`
	CopyDefaultUnlockedImg bool      `json:"copy_default_unlocked_img"`
	CopyDefaultLockedImg   bool      `json:"copy_default_locked_img"`
	PrematureTerminations  int       `json:"premature_terminations"`
	ErrorMessage           string    `json:"error_message,omitempty"`
	DurationMs             int64     `json:"duration_ms"`
	CompiledAt             time.Time `json:"compiled_at"`
}

// CompileEvent is published on the event stream and to websocket clients
type CompileEvent struct {
	RunID            string    `json:"run_id"`
	AppID            string    `json:"app_id"`
	Status           RunStatus `json:"status"`
	AchievementCount int       `json:"achievement_count"`
	StatCount        int       `json:"stat_count"`
	Error            string    `json:"error,omitempty"`
	CompiledAt       time.Time `json:"compiled_at"`
}

// NewCompileRun summarizes a compiled schema for the run log
func NewCompileRun(source string, compiled *CompiledSchema) CompileRun {
	run := CompileRun{
		RunID:      compiled.RunID,
		AppID:      compiled.AppID,
		Source:     source,
		Status:     RunStatusSucceeded,
		DurationMs: compiled.Duration.Milliseconds(),
		CompiledAt: compiled.CompiledAt,
	}
	if r := compiled.Result; r != nil {
		run.AchievementCount = len(r.Achievements)
		run.StatCount = len(r.Stats)
		run.CopyDefaultUnlockedImg = r.CopyDefaultUnlockedImg
		run.CopyDefaultLockedImg = r.CopyDefaultLockedImg
		run.PrematureTerminations = r.Diagnostics.PrematureTerminations()
	}
	return run
}

// Event converts a run into its broadcast form
func (r CompileRun) Event() CompileEvent {
	return CompileEvent{
		RunID:            r.RunID,
		AppID:            r.AppID,
		Status:           r.Status,
		AchievementCount: r.AchievementCount,
		StatCount:        r.StatCount,
		Error:            r.ErrorMessage,
		CompiledAt:       r.CompiledAt,
	}
}
