package tracer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"

	"github.com/urbanestate/listing-service/internal/platform/logger"
)

func TestInitTracer_WithoutExporter(t *testing.T) {
	tp := InitTracer(Config{ServiceName: "listing-service"}, logger.NewNop())
	require.NotNil(t, tp)
	assert.Contains(t, otel.GetTextMapPropagator().Fields(), "traceparent")
	Shutdown(tp, time.Second, logger.NewNop())
}

func TestShutdown_NilProvider(t *testing.T) {
	assert.NotPanics(t, func() { Shutdown(nil, time.Second, logger.NewNop()) })
}
