package observability

import (
	"context"
	"time"

	"github.com/charmbracelet/log"
)

// LogHooks writes every event to a logger at debug level. The CLI installs
// it when --verbose is set.
type LogHooks struct {
	Logger *log.Logger
}

// NewLogHooks returns hooks logging to l (log.Default() when nil).
func NewLogHooks(l *log.Logger) *LogHooks {
	if l == nil {
		l = log.Default()
	}
	return &LogHooks{Logger: l}
}

func (h *LogHooks) OnInstallStart(_ context.Context, moduleID string) {
	h.Logger.Debug("install started", "module", moduleID)
}

func (h *LogHooks) OnInstallComplete(_ context.Context, moduleID string, d time.Duration, err error) {
	h.Logger.Debug("install finished", "module", moduleID, "duration", d.Round(time.Millisecond), "err", err)
}

func (h *LogHooks) OnUpdateStart(_ context.Context, moduleID string) {
	h.Logger.Debug("update started", "module", moduleID)
}

func (h *LogHooks) OnUpdateComplete(_ context.Context, moduleID string, d time.Duration, err error) {
	h.Logger.Debug("update finished", "module", moduleID, "duration", d.Round(time.Millisecond), "err", err)
}

func (h *LogHooks) OnCacheHit(_ context.Context, keyType string) {
	h.Logger.Debug("cache hit", "type", keyType)
}

func (h *LogHooks) OnCacheMiss(_ context.Context, keyType string) {
	h.Logger.Debug("cache miss", "type", keyType)
}

func (h *LogHooks) OnCacheSet(_ context.Context, keyType string, size int) {
	h.Logger.Debug("cache set", "type", keyType, "bytes", size)
}

func (h *LogHooks) OnRequest(_ context.Context, method, host, path string) {
	h.Logger.Debug("http request", "method", method, "host", host, "path", path)
}

func (h *LogHooks) OnResponse(_ context.Context, method, host, path string, status int, d time.Duration) {
	h.Logger.Debug("http response", "method", method, "host", host, "path", path,
		"status", status, "duration", d.Round(time.Millisecond))
}

func (h *LogHooks) OnError(_ context.Context, method, host, path string, err error) {
	h.Logger.Debug("http error", "method", method, "host", host, "path", path, "err", err)
}

var (
	_ InstallHooks = (*LogHooks)(nil)
	_ CacheHooks   = (*LogHooks)(nil)
	_ HTTPHooks    = (*LogHooks)(nil)
)
