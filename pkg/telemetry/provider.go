package telemetry

import (
	"github.com/go-logr/zapr"
	"go.uber.org/zap"

	"go.opentelemetry.io/otel"
)

// SetErrorHandler adapts the process-wide zap logger to logr.Logger via
// zapr — the one piece of this otel wiring that expects the logr
// interface instead of taking zap or the standard library logger
// directly — and installs it as otel's internal error handler so SDK
// export failures land in the same structured log stream as everything
// else instead of going to otel's default stderr writer.
func SetErrorHandler(base *zap.SugaredLogger) {
	otel.SetLogger(zapr.NewLogger(base.Desugar()))
}
