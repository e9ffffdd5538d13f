package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// TTL constants
const (
	DescriptorTTL = 30 * 24 * time.Hour
	MetaTTL       = 30 * 24 * time.Hour
)

// AppsKey is the set of app ids with at least one successful compile
const AppsKey = "schemas:apps"

// RedisWriter stores compiled descriptor documents per app so they can be
// read back for display without touching the output directory
type RedisWriter struct {
	client *redis.Client
}

// NewRedisWriter creates a new Redis writer
func NewRedisWriter(client *redis.Client) *RedisWriter {
	return &RedisWriter{
		client: client,
	}
}

func achievementsKey(appID string) string { return fmt.Sprintf("schema:%s:achievements", appID) }
func statsKey(appID string) string        { return fmt.Sprintf("schema:%s:stats", appID) }
func metaKey(appID string) string         { return fmt.Sprintf("schema:%s:meta", appID) }

// Name identifies the sink
func (w *RedisWriter) Name() string {
	return "redis_cache"
}

// HandleRun caches the descriptor documents of a successful run.
// Failed runs leave the cache as it was.
func (w *RedisWriter) HandleRun(ctx context.Context, run models.CompileRun, compiled *models.CompiledSchema) error {
	if compiled == nil {
		return nil
	}
	return w.WriteCompiled(ctx, run, compiled)
}

// WriteCompiled stores the exact descriptor file contents and the run
// summary. Like the files, an empty list leaves its previous entry alone.
func (w *RedisWriter) WriteCompiled(ctx context.Context, run models.CompileRun, compiled *models.CompiledSchema) error {
	meta, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("marshaling run meta: %w", err)
	}

	pipe := w.client.TxPipeline()
	if compiled.AchievementsJSON != nil {
		pipe.Set(ctx, achievementsKey(compiled.AppID), compiled.AchievementsJSON, DescriptorTTL)
	}
	if compiled.StatsJSON != nil {
		pipe.Set(ctx, statsKey(compiled.AppID), compiled.StatsJSON, DescriptorTTL)
	}
	pipe.Set(ctx, metaKey(compiled.AppID), meta, MetaTTL)
	pipe.SAdd(ctx, AppsKey, compiled.AppID)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("caching compiled schema: %w", err)
	}
	return nil
}

// ReadAchievementsRaw returns the cached achievements.json document.
// Returns redis.Nil if nothing is cached.
func (w *RedisWriter) ReadAchievementsRaw(ctx context.Context, appID string) ([]byte, error) {
	return w.client.Get(ctx, achievementsKey(appID)).Bytes()
}

// ReadStatsRaw returns the cached stats.json document
func (w *RedisWriter) ReadStatsRaw(ctx context.Context, appID string) ([]byte, error) {
	return w.client.Get(ctx, statsKey(appID)).Bytes()
}

// ReadAchievements retrieves and parses the cached achievements
func (w *RedisWriter) ReadAchievements(ctx context.Context, appID string) ([]models.AchievementDescriptor, error) {
	data, err := w.ReadAchievementsRaw(ctx, appID)
	if err != nil {
		return nil, err
	}
	return statsgen.ParseAchievements(data)
}

// ReadStats retrieves and parses the cached stats
func (w *RedisWriter) ReadStats(ctx context.Context, appID string) ([]models.StatDescriptor, error) {
	data, err := w.ReadStatsRaw(ctx, appID)
	if err != nil {
		return nil, err
	}
	return statsgen.ParseStats(data)
}

// ReadMeta retrieves the summary of the last successful run for an app
func (w *RedisWriter) ReadMeta(ctx context.Context, appID string) (*models.CompileRun, error) {
	data, err := w.client.Get(ctx, metaKey(appID)).Bytes()
	if err != nil {
		return nil, err
	}

	var run models.CompileRun
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("unmarshaling run meta: %w", err)
	}
	return &run, nil
}

// ListApps returns every cached app id, sorted
func (w *RedisWriter) ListApps(ctx context.Context) ([]string, error) {
	apps, err := w.client.SMembers(ctx, AppsKey).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(apps)
	return apps, nil
}

// Ping checks the Redis connection
func (w *RedisWriter) Ping(ctx context.Context) error {
	return w.client.Ping(ctx).Err()
}
