package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/client"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/hub"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/statsgen"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/internal/store"
	"github.com/XavierBriggs/fortuna/services/schema-compiler/pkg/models"
)

// SchemaCompiler runs a compile job end-to-end
type SchemaCompiler interface {
	Process(ctx context.Context, req models.CompileRequest) (*models.CompiledSchema, error)
	GetMetrics() map[string]interface{}
}

// DescriptorReader reads compiled descriptor documents back from the cache
type DescriptorReader interface {
	ReadAchievementsRaw(ctx context.Context, appID string) ([]byte, error)
	ReadStatsRaw(ctx context.Context, appID string) ([]byte, error)
	ReadMeta(ctx context.Context, appID string) (*models.CompileRun, error)
	ListApps(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// RunReader reads the compile run log
type RunReader interface {
	LatestRun(ctx context.Context, appID string) (*models.CompileRun, error)
	Ping(ctx context.Context) error
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// origins are enforced by the CORS layer for browser clients
		return true
	},
}

// Handler contains dependencies for HTTP handlers
type Handler struct {
	compiler       SchemaCompiler
	descriptors    DescriptorReader
	runs           RunReader // nil when the run log is disabled
	hub            *hub.Hub
	maxSchemaBytes int64
	ctx            context.Context
	logger         *zap.Logger
}

// NewHandler creates a new handler. runs may be nil.
// ctx bounds the lifetime of websocket connections.
func NewHandler(ctx context.Context, compiler SchemaCompiler, descriptors DescriptorReader, runs RunReader, h *hub.Hub, maxSchemaBytes int64, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		compiler:       compiler,
		descriptors:    descriptors,
		runs:           runs,
		hub:            h,
		maxSchemaBytes: maxSchemaBytes,
		ctx:            ctx,
		logger:         logger,
	}
}

// CompileSchema compiles the raw schema blob in the request body for an app
// POST /api/v1/apps/{app_id}/schema
func (h *Handler) CompileSchema(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 30*time.Second)
	defer cancel()

	appID := chi.URLParam(r, "app_id")
	if err := models.ValidateAppID(appID); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid app_id", nil)
		return
	}

	body := http.MaxBytesReader(w, r.Body, h.maxSchemaBytes)
	schema, err := io.ReadAll(body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			h.respondError(w, http.StatusRequestEntityTooLarge, "schema exceeds size limit", nil)
			return
		}
		h.respondError(w, http.StatusBadRequest, "failed to read request body", err)
		return
	}
	if len(schema) == 0 {
		h.respondError(w, http.StatusBadRequest, "schema body is empty", nil)
		return
	}

	compiled, err := h.compiler.Process(ctx, models.CompileRequest{
		AppID:  appID,
		Schema: schema,
		Source: "http",
	})
	if err != nil {
		if errors.Is(err, statsgen.ErrCoercion) {
			h.respondError(w, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		h.respondError(w, http.StatusInternalServerError, "failed to compile schema", err)
		return
	}

	respondJSON(w, http.StatusOK, models.NewCompileRun("http", compiled))
}

// ListApps returns every app with cached descriptors
func (h *Handler) ListApps(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	apps, err := h.descriptors.ListApps(ctx)
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to list apps", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"apps":  apps,
		"count": len(apps),
	})
}

// GetAchievements returns the cached achievements.json document unchanged
func (h *Handler) GetAchievements(w http.ResponseWriter, r *http.Request) {
	h.serveDescriptor(w, r, "achievements", h.descriptors.ReadAchievementsRaw)
}

// GetStats returns the cached stats.json document unchanged
func (h *Handler) GetStats(w http.ResponseWriter, r *http.Request) {
	h.serveDescriptor(w, r, "stats", h.descriptors.ReadStatsRaw)
}

func (h *Handler) serveDescriptor(w http.ResponseWriter, r *http.Request, kind string, read func(context.Context, string) ([]byte, error)) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appID := chi.URLParam(r, "app_id")
	if err := models.ValidateAppID(appID); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid app_id", nil)
		return
	}

	data, err := read(ctx, appID)
	if errors.Is(err, redis.Nil) {
		h.respondError(w, http.StatusNotFound, kind+" not found", nil)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to read "+kind, err)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// GetLatestRun returns the most recent compile run for an app. Without a
// run log only the last successful run, kept in the cache, is known.
func (h *Handler) GetLatestRun(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	appID := chi.URLParam(r, "app_id")
	if err := models.ValidateAppID(appID); err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid app_id", nil)
		return
	}

	var run *models.CompileRun
	var err error
	if h.runs != nil {
		run, err = h.runs.LatestRun(ctx, appID)
	} else {
		run, err = h.descriptors.ReadMeta(ctx, appID)
	}
	if errors.Is(err, store.ErrRunNotFound) || errors.Is(err, redis.Nil) {
		h.respondError(w, http.StatusNotFound, "no runs for app", nil)
		return
	}
	if err != nil {
		h.respondError(w, http.StatusInternalServerError, "failed to retrieve run", err)
		return
	}

	respondJSON(w, http.StatusOK, run)
}

// HandleWebSocket upgrades HTTP connections to WebSocket
func (h *Handler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	clientID := uuid.New().String()
	c := client.NewClient(clientID, conn, h.hub, h.logger)

	h.hub.Register(c)

	// pumps outlive the request
	go c.WritePump(h.ctx)
	go c.ReadPump(h.ctx)
}

// HealthCheck returns the health status of the service
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	if err := h.descriptors.Ping(ctx); err != nil {
		h.respondError(w, http.StatusServiceUnavailable, "redis unhealthy", err)
		return
	}
	if h.runs != nil {
		if err := h.runs.Ping(ctx); err != nil {
			h.respondError(w, http.StatusServiceUnavailable, "database unhealthy", err)
			return
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":         "healthy",
		"timestamp":      time.Now().UTC(),
		"service":        "schema-compiler",
		"run_log":        h.runs != nil,
		"active_clients": h.hub.GetClientCount(),
	})
}

// HandleMetrics returns processor and hub metrics
func (h *Handler) HandleMetrics(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"processor": h.compiler.GetMetrics(),
		"hub":       h.hub.GetMetrics(),
	})
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) respondError(w http.ResponseWriter, status int, message string, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err != nil {
		h.logger.Error(message, zap.Int("status", status), zap.Error(err))
	}

	json.NewEncoder(w).Encode(models.ErrorResponse{
		Error:   http.StatusText(status),
		Message: message,
		Code:    status,
	})
}
