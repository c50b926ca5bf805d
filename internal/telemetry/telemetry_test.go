package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.False(t, cfg.Enabled)
	assert.Equal(t, "dittopad", cfg.ServiceName)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)

	p := DefaultProfilingConfig()
	assert.False(t, p.Enabled)
	assert.Contains(t, p.ProfileTypes, "cpu")
}

func TestInitDisabled(t *testing.T) {
	shutdown, err := Init(t.Context(), DefaultConfig())
	require.NoError(t, err)
	assert.False(t, IsEnabled())
	assert.NoError(t, shutdown(t.Context()))

	ctx, span := StartCommandSpan(t.Context(), "SAVE")
	defer span.End()
	assert.False(t, span.SpanContext().IsValid())
	assert.Empty(t, TraceID(ctx))
	assert.Empty(t, SpanID(ctx))
}

// recordSpans installs a recording tracer until the test ends.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	shutdown, err := InitWithProcessor(t.Context(), DefaultConfig(), rec)
	require.NoError(t, err)
	t.Cleanup(func() { _ = shutdown(context.Background()) })
	return rec
}

func attrMap(kvs []attribute.KeyValue) map[string]string {
	m := make(map[string]string, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}

func TestCommandSpan(t *testing.T) {
	rec := recordSpans(t)
	assert.True(t, IsEnabled())

	ctx, span := StartCommandSpan(t.Context(), "LOAD", Filename("a.txt"), Username("alice"))
	assert.NotEmpty(t, TraceID(ctx))
	assert.NotEmpty(t, SpanID(ctx))
	SetAttributes(ctx, Bytes(42))
	RecordError(ctx, errors.New("boom"))
	span.End()

	ended := rec.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, "notepad.LOAD", s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)
	assert.Equal(t, "boom", s.Status().Description)

	attrs := attrMap(s.Attributes())
	assert.Equal(t, "notepad", attrs[AttrProtocol])
	assert.Equal(t, "LOAD", attrs[AttrCommand])
	assert.Equal(t, "a.txt", attrs[AttrFilename])
	assert.Equal(t, "alice", attrs[AttrUsername])
	assert.Equal(t, "42", attrs[AttrBytes])
}

func TestStoreSpanIsChild(t *testing.T) {
	rec := recordSpans(t)

	ctx, parent := StartCommandSpan(t.Context(), "SAVE")
	_, child := StartStoreSpan(ctx, "write", "s3", Bucket("notes"), StorageKey("alice/a.txt"))
	child.End()
	parent.End()

	ended := rec.Ended()
	require.Len(t, ended, 2)
	assert.Equal(t, "store.write", ended[0].Name())
	assert.Equal(t, ended[1].SpanContext().SpanID(), ended[0].Parent().SpanID())
	assert.Equal(t, "s3", attrMap(ended[0].Attributes())[AttrStoreType])
}

func TestRecordErrorNil(t *testing.T) {
	rec := recordSpans(t)

	ctx, span := StartSpan(t.Context(), "x")
	RecordError(ctx, nil)
	span.End()

	require.Len(t, rec.Ended(), 1)
	assert.Equal(t, codes.Unset, rec.Ended()[0].Status().Code)
}

func TestSampler(t *testing.T) {
	assert.Equal(t, "AlwaysOnSampler", sampler(1).Description())
	assert.Equal(t, "AlwaysOffSampler", sampler(0).Description())
	assert.Contains(t, sampler(0.5).Description(), "TraceIDRatioBased")
}

func TestProfiling(t *testing.T) {
	stop, err := InitProfiling(DefaultProfilingConfig())
	require.NoError(t, err)
	assert.False(t, IsProfilingEnabled())
	assert.NoError(t, stop())

	cfg := DefaultProfilingConfig()
	cfg.Enabled = true
	cfg.ProfileTypes = []string{"cpu", "heap"}
	_, err = InitProfiling(cfg)
	assert.ErrorContains(t, err, `"heap"`)

	assert.True(t, ValidProfileType("goroutines"))
	assert.False(t, ValidProfileType("heap"))
}
