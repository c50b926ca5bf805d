package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys. Generic keys follow OpenTelemetry semantic conventions
// where one exists.
const (
	AttrClientAddr = "client.address"
	AttrProtocol   = "protocol.name"
	AttrSessionID  = "session.id"
	AttrUsername   = "user.name"

	AttrCommand  = "notepad.command"
	AttrFilename = "notepad.filename"
	AttrBytes    = "notepad.bytes"
	AttrEntries  = "notepad.entries"
	AttrOutcome  = "notepad.outcome"

	AttrStoreType = "store.type"
	AttrBucket    = "storage.bucket"
	AttrKey       = "storage.key"
)

// Span names.
const (
	SpanSession    = "notepad.session"
	SpanRegister   = "notepad.register"
	spanCommandPfx = "notepad."
	spanStorePfx   = "store."
)

func ClientAddr(addr string) attribute.KeyValue { return attribute.String(AttrClientAddr, addr) }

func Protocol(name string) attribute.KeyValue { return attribute.String(AttrProtocol, name) }

func SessionID(id string) attribute.KeyValue { return attribute.String(AttrSessionID, id) }

func Username(name string) attribute.KeyValue { return attribute.String(AttrUsername, name) }

func Command(name string) attribute.KeyValue { return attribute.String(AttrCommand, name) }

func Filename(name string) attribute.KeyValue { return attribute.String(AttrFilename, name) }

func Bytes(n int) attribute.KeyValue { return attribute.Int(AttrBytes, n) }

func Entries(n int) attribute.KeyValue { return attribute.Int(AttrEntries, n) }

// Outcome records the client-visible result of a command, such as
// "not_found" or "usage".
func Outcome(o string) attribute.KeyValue { return attribute.String(AttrOutcome, o) }

func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStoreType, t) }

func Bucket(name string) attribute.KeyValue { return attribute.String(AttrBucket, name) }

func StorageKey(key string) attribute.KeyValue { return attribute.String(AttrKey, key) }

// StartCommandSpan starts a span named "notepad.<COMMAND>".
func StartCommandSpan(ctx context.Context, command string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Protocol("notepad"), Command(command)}, attrs...)
	return StartSpan(ctx, spanCommandPfx+command, trace.WithAttributes(all...))
}

// StartStoreSpan starts a span named "store.<operation>" for a storage
// backend call.
func StartStoreSpan(ctx context.Context, operation, storeType string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{StoreType(storeType)}, attrs...)
	return StartSpan(ctx, spanStorePfx+operation, trace.WithAttributes(all...), trace.WithSpanKind(trace.SpanKindClient))
}
