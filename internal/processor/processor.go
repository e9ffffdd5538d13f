package processor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/assets"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/consumer"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// MessageSource is the subset of the stream consumer the processor needs
type MessageSource interface {
	ConsumeStream(ctx context.Context, streamKey string) (<-chan consumer.Message, <-chan error)
	AckMessage(ctx context.Context, streamKey, messageID string) error
}

// Processor runs compile jobs end-to-end and fans each run out to sinks
type Processor struct {
	compiler   *statsgen.Compiler
	outputRoot string
	iconDir    string
	sinks      []contracts.CompileSink
	logger     *zap.Logger

	// Metrics
	processedCount int64
	errorCount     int64
	sinkErrors     int64
	lastRunAt      time.Time
	mu             sync.Mutex
}

// NewProcessor creates a new processor writing under outputRoot/<app_id>
func NewProcessor(compiler *statsgen.Compiler, outputRoot string, logger *zap.Logger) *Processor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Processor{
		compiler:   compiler,
		outputRoot: outputRoot,
		logger:     logger,
	}
}

// SetIconDir enables copying the fallback icons from dir after each compile
func (p *Processor) SetIconDir(dir string) {
	p.iconDir = dir
}

// AddSink registers a sink. Sinks are called in registration order.
func (p *Processor) AddSink(sink contracts.CompileSink) {
	p.sinks = append(p.sinks, sink)
}

// Process compiles one request, writes its descriptor files and notifies
// every sink. Failed compiles are reported to sinks with a nil schema.
func (p *Processor) Process(ctx context.Context, req models.CompileRequest) (*models.CompiledSchema, error) {
	if err := models.ValidateAppID(req.AppID); err != nil {
		p.incrementErrorCount()
		return nil, err
	}

	start := time.Now()
	runID := uuid.NewString()
	logger := p.logger.With(zap.String("run_id", runID), zap.String("app_id", req.AppID))

	out, err := p.compiler.Build(req.Schema)
	if err != nil {
		p.fail(ctx, logger, req, runID, start, err)
		return nil, err
	}

	dir := filepath.Join(p.outputRoot, req.AppID)
	if err := out.WriteFiles(dir); err != nil {
		p.fail(ctx, logger, req, runID, start, err)
		return nil, err
	}

	if p.iconDir != "" {
		written, err := assets.CopyDefaultIcons(p.iconDir, dir, out.Result)
		if err != nil {
			logger.Warn("fallback icon copy failed", zap.String("icon_dir", p.iconDir), zap.Error(err))
		} else if len(written) > 0 {
			logger.Debug("fallback icons copied", zap.Strings("paths", written))
		}
	}

	compiled := &models.CompiledSchema{
		RunID:            runID,
		AppID:            req.AppID,
		OutputDir:        dir,
		Result:           out.Result,
		Achievements:     out.Achievements,
		Stats:            out.Stats,
		AchievementsJSON: out.AchievementsJSON,
		StatsJSON:        out.StatsJSON,
		CompiledAt:       time.Now().UTC(),
		Duration:         time.Since(start),
	}
	run := models.NewCompileRun(req.Source, compiled)

	logger.Info("schema compiled",
		zap.String("source", req.Source),
		zap.Int("achievements", run.AchievementCount),
		zap.Int("stats", run.StatCount),
		zap.Int64("duration_ms", run.DurationMs),
	)

	p.dispatch(ctx, logger, run, compiled)
	p.incrementProcessedCount()
	return compiled, nil
}

// Start consumes compile requests from streamKey until ctx is done.
// Every message is acknowledged after processing, successful or not.
func (p *Processor) Start(ctx context.Context, source MessageSource, streamKey string) {
	p.logger.Info("processing stream", zap.String("stream", streamKey))

	messageCh, errorCh := source.ConsumeStream(ctx, streamKey)

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-errorCh:
			if !ok {
				errorCh = nil
				continue
			}
			p.logger.Error("stream error", zap.String("stream", streamKey), zap.Error(err))

		case msg, ok := <-messageCh:
			if !ok {
				return
			}

			if _, err := p.Process(ctx, msg.Request); err != nil {
				p.logger.Warn("compile request failed",
					zap.String("message_id", msg.ID),
					zap.String("app_id", msg.Request.AppID),
					zap.Error(err),
				)
			}

			if err := source.AckMessage(ctx, msg.StreamKey, msg.ID); err != nil {
				p.logger.Error("ack failed", zap.String("message_id", msg.ID), zap.Error(err))
			}
		}
	}
}

// GetMetrics returns processor metrics
func (p *Processor) GetMetrics() map[string]interface{} {
	p.mu.Lock()
	defer p.mu.Unlock()

	sinks := make([]string, 0, len(p.sinks))
	for _, s := range p.sinks {
		sinks = append(sinks, s.Name())
	}

	metrics := map[string]interface{}{
		"processed_count": p.processedCount,
		"error_count":     p.errorCount,
		"sink_errors":     p.sinkErrors,
		"sinks":           sinks,
	}
	if !p.lastRunAt.IsZero() {
		metrics["last_run_at"] = p.lastRunAt
	}
	return metrics
}

func (p *Processor) fail(ctx context.Context, logger *zap.Logger, req models.CompileRequest, runID string, start time.Time, err error) {
	logger.Warn("schema compile failed", zap.String("source", req.Source), zap.Error(err))

	run := models.CompileRun{
		RunID:        runID,
		AppID:        req.AppID,
		Source:       req.Source,
		Status:       models.RunStatusFailed,
		ErrorMessage: err.Error(),
		DurationMs:   time.Since(start).Milliseconds(),
		CompiledAt:   time.Now().UTC(),
	}
	p.dispatch(ctx, logger, run, nil)
	p.incrementErrorCount()
}

func (p *Processor) dispatch(ctx context.Context, logger *zap.Logger, run models.CompileRun, compiled *models.CompiledSchema) {
	for _, sink := range p.sinks {
		if err := sink.HandleRun(ctx, run, compiled); err != nil {
			p.mu.Lock()
			p.sinkErrors++
			p.mu.Unlock()
			logger.Error("sink failed", zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func (p *Processor) incrementProcessedCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.processedCount++
	p.lastRunAt = time.Now()
}

func (p *Processor) incrementErrorCount() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.errorCount++
	p.lastRunAt = time.Now()
}
