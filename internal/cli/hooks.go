package cli

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/govend/pkg/errors"
	"github.com/matzehuels/govend/pkg/observability"
)

// logHooks reports resolve and install events through the CLI logger.
type logHooks struct {
	logger *log.Logger
}

func newLogHooks(l *log.Logger) *logHooks { return &logHooks{logger: l} }

func (h *logHooks) OnResolveStart(ctx context.Context, name string) {
	h.logger.Debug("resolving", "name", name)
}

func (h *logHooks) OnResolveComplete(ctx context.Context, name, revision string, d time.Duration, err error) {
	if err != nil {
		h.logger.Debug("resolve failed", "name", name, "error", errors.UserMessage(err))
		return
	}
	h.logger.Debug("resolve done", "name", name, "revision", revision, "took", d.Round(time.Millisecond))
}

func (h *logHooks) OnInstallStart(ctx context.Context, name string) {}

func (h *logHooks) OnInstallComplete(ctx context.Context, name string, d time.Duration, err error) {
	if err != nil {
		h.logger.Error("install failed", "name", name, "error", errors.UserMessage(err))
		return
	}
	h.logger.Debug("install done", "name", name, "took", d.Round(time.Millisecond))
}

func (h *logHooks) OnInstallSkipped(ctx context.Context, name string) {}

func (h *logHooks) OnOrphanRemoved(ctx context.Context, path string) {
	h.logger.Info("removed", "path", path)
}

// httpLogHooks traces module proxy traffic at debug level.
type httpLogHooks struct {
	logger *log.Logger
}

func newHTTPLogHooks(l *log.Logger) *httpLogHooks { return &httpLogHooks{logger: l} }

func (h *httpLogHooks) OnRequest(ctx context.Context, method, host, path string) {}

func (h *httpLogHooks) OnResponse(ctx context.Context, method, host, path string, status int, d time.Duration) {
	h.logger.Debug("http", "method", method, "host", host, "path", path, "status", status, "took", d.Round(time.Millisecond))
}

func (h *httpLogHooks) OnError(ctx context.Context, method, host, path string, err error) {
	h.logger.Warn("http request failed", "host", host, "path", path, "error", err)
}

var (
	_ observability.VendorHooks = (*logHooks)(nil)
	_ observability.HTTPHooks   = (*httpLogHooks)(nil)
)
