package contracts

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// CompileSink is the pluggable interface for anything that wants to hear
// about compile runs (cache, run log, event stream, websocket clients)
type CompileSink interface {
	// Name identifies the sink in logs and metrics
	Name() string

	// HandleRun is called once per run, successful or not.
	// compiled is nil when the run failed.
	HandleRun(ctx context.Context, run models.CompileRun, compiled *models.CompiledSchema) error
}
