package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

// TestPurpose: Validates that Fail records the error and marks the span failed, and ignores nil.
// Scope: Unit Test
// Security: Storage failures behind uniform 401s stay visible in traces
// Expected: Error status with one exception event for a non-nil error; unset status for nil.
// Test Case ID: TRC-01
func TestFail(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus codes.Code
		wantEvents int
	}{
		{name: "StoreError", err: errors.New("connection refused"), wantStatus: codes.Error, wantEvents: 1},
		{name: "NilError", err: nil, wantStatus: codes.Unset, wantEvents: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			recorder := tracetest.NewSpanRecorder()
			provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))

			_, span := provider.Tracer("test").Start(context.Background(), "apitoken.Validate")
			Fail(span, tt.err)
			span.End()

			ended := recorder.Ended()
			require.Len(t, ended, 1)
			assert.Equal(t, tt.wantStatus, ended[0].Status().Code)
			assert.Len(t, ended[0].Events(), tt.wantEvents)
		})
	}
}
