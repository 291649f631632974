package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestSetup_ExportsSpans(t *testing.T) {
	exp := tracetest.NewInMemoryExporter()

	tp, shutdown, err := Setup(context.Background(), WithExporter(exp), WithServiceVersion("test"), func(o *Options) { o.SetGlobal = false })
	require.NoError(t, err)

	_, span := tp.Tracer("test").Start(context.Background(), "reactmesh.run")
	span.End()

	require.NoError(t, tp.ForceFlush(context.Background()))

	spans := exp.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "reactmesh.run", spans[0].Name)

	require.NoError(t, shutdown(context.Background()))
	assert.Empty(t, exp.GetSpans(), "shutdown resets the exporter")
}

func TestSetup_NoExporter(t *testing.T) {
	tp, shutdown, err := Setup(context.Background(), WithSampleRatio(0), func(o *Options) { o.SetGlobal = false })
	require.NoError(t, err)
	require.NotNil(t, tp)

	_, span := tp.Tracer("test").Start(context.Background(), "noop")
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestEndpointOptions(t *testing.T) {
	assert.Len(t, endpointOptions("localhost:4318"), 2)
	assert.Len(t, endpointOptions("http://collector:4318"), 2)
	assert.Len(t, endpointOptions("https://collector"), 1)
}
