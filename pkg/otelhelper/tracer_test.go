package otelhelper_test

import (
	"context"
	"errors"
	"testing"

	"github.com/dukex/flowgraph/pkg/otelhelper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestNewTracer_Disabled(t *testing.T) {
	t.Parallel()

	tracer, shutdown, err := otelhelper.NewTracer(context.Background(), "flowgraph-test", false)
	require.NoError(t, err)
	require.NotNil(t, tracer)

	_, span := otelhelper.StartSpan(context.Background(), tracer, "noop")
	span.End()

	require.NoError(t, shutdown(context.Background()))
}

func TestSetError(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	tracer := provider.Tracer("test")

	_, span := otelhelper.StartSpan(context.Background(), tracer, "workflow.node",
		attribute.String(otelhelper.NodeIDKey, "n1"))
	otelhelper.SetError(span, errors.New("boom"), attribute.String(otelhelper.NodeTypeKey, "decision"))
	span.End()

	ended := recorder.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "workflow.node", ended[0].Name())
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, "boom", ended[0].Status().Description)
	assert.NotEmpty(t, ended[0].Events())
}
