package observability

import (
	"context"
	"io"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks reports pipeline and cache events as debug log lines.
type LogHooks struct {
	logger *log.Logger
}

// NewLogHooks returns hooks writing to logger. A nil logger discards.
func NewLogHooks(logger *log.Logger) *LogHooks {
	if logger == nil {
		logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return &LogHooks{logger: logger}
}

func (h *LogHooks) OnLoadStart(_ context.Context, layerID, kind string) {
	h.logger.Debug("loading layer", "layer", layerID, "kind", kind)
}

func (h *LogHooks) OnLoadComplete(_ context.Context, layerID string, vertices int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("layer failed", "layer", layerID, "err", err)
		return
	}
	h.logger.Debug("layer loaded", "layer", layerID, "vertices", vertices, "duration", d)
}

func (h *LogHooks) OnResolveStart(_ context.Context, knotID string) {
	h.logger.Debug("resolving knot", "knot", knotID)
}

func (h *LogHooks) OnResolveComplete(_ context.Context, knotID string, values int, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("knot failed", "knot", knotID, "err", err)
		return
	}
	h.logger.Debug("knot resolved", "knot", knotID, "values", values, "duration", d)
}

func (h *LogHooks) OnRenderStart(_ context.Context, formats []string) {
	h.logger.Debug("rendering", "formats", formats)
}

func (h *LogHooks) OnRenderComplete(_ context.Context, formats []string, d time.Duration, err error) {
	h.logger.Debug("rendered", "formats", formats, "duration", d, "err", err)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.logger.Debug("cache set", "type", keyType, "bytes", size)
}

var (
	_ PipelineHooks = (*LogHooks)(nil)
	_ CacheHooks    = (*LogHooks)(nil)
)
