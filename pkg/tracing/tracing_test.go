package tracing

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
)

func TestInitWithoutEndpointInstallsProvider(t *testing.T) {
	tp, err := Init(context.Background(), Config{ServiceName: "booking-test"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := otel.Tracer("test").Start(context.Background(), "probe")
	defer span.End()
	assert.True(t, span.SpanContext().IsValid(), "expected a recording span from the sdk provider")
}

func TestSampleRateClamp(t *testing.T) {
	assert.Equal(t, 1.0, sampleRate(0))
	assert.Equal(t, 1.0, sampleRate(3))
	assert.Equal(t, 0.25, sampleRate(0.25))
}

func TestServiceNameDefault(t *testing.T) {
	assert.Equal(t, "clinic-booking", serviceName(" "))
	assert.Equal(t, "api", serviceName("api"))
}
