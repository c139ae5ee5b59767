package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestConfig_Defaults(t *testing.T) {
	c := Config{SampleRate: 3}
	c.applyDefaults()

	assert.Equal(t, "florens", c.ServiceName)
	assert.Equal(t, "0.0.0", c.ServiceVersion)
	assert.Equal(t, "development", c.Environment)
	assert.Equal(t, 1.0, c.SampleRate)
}

func TestSetup_WithoutEndpoint(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	p, err := Setup(context.Background(), Config{ServiceName: "florens-test"}, sdktrace.WithSpanProcessor(sr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := p.Tracer(InstrumentationName).Start(context.Background(), "odontogram.create_version")
	span.End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "odontogram.create_version", spans[0].Name())

	var service string
	for _, kv := range spans[0].Resource().Attributes() {
		if kv.Key == "service.name" {
			service = kv.Value.AsString()
		}
	}
	assert.Equal(t, "florens-test", service)
}

func TestSetup_RegistersGlobalProvider(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	p, err := Setup(context.Background(), Config{}, sdktrace.WithSpanProcessor(sr))
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Shutdown(context.Background()) })

	_, span := Tracer("global").Start(context.Background(), "from-global")
	span.End()

	assert.Len(t, sr.Ended(), 1)
}
