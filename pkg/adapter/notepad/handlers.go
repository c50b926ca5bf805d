package notepad

import (
	"context"
	"errors"
	"unicode/utf8"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/internal/protocol/notepad"
	"github.com/marmos91/dittopad/internal/telemetry"
	"github.com/marmos91/dittopad/pkg/metrics"
	"github.com/marmos91/dittopad/pkg/store"
)

// handleSave writes the buffer and clears it. A store failure is returned
// and ends the connection.
func (c *Connection) handleSave(ctx context.Context, cmd notepad.Save) error {
	telemetry.SetAttributes(ctx, telemetry.Filename(cmd.Filename), telemetry.Bytes(c.buffer.Len()))

	sctx, span := telemetry.StartStoreSpan(ctx, "write", c.adapter.store.Type(), telemetry.Filename(cmd.Filename))
	err := c.adapter.store.WriteFile(sctx, c.username, cmd.Filename, c.buffer.Bytes())
	telemetry.RecordError(sctx, err)
	span.End()
	if err != nil {
		logger.WarnCtx(ctx, "Failed to save file", logger.Filename(cmd.Filename), logger.Err(err))
		return &CommandError{Command: notepad.NameSave, Err: err}
	}

	if m := c.adapter.metrics; m != nil {
		m.RecordBytesSaved(c.buffer.Len())
	}
	logger.DebugCtx(ctx, "File saved", logger.Filename(cmd.Filename), logger.KeyBytesWritten, c.buffer.Len())

	c.buffer.Reset()
	return c.write(notepad.FileSaved)
}

// handleLoad replaces the buffer with a file's content. Failures leave the
// buffer untouched and are reported to the client.
func (c *Connection) handleLoad(ctx context.Context, cmd notepad.Load) error {
	if cmd.Filename == "" {
		telemetry.SetAttributes(ctx, telemetry.Outcome("usage"))
		return c.write(notepad.LoadUsage)
	}
	telemetry.SetAttributes(ctx, telemetry.Filename(cmd.Filename))

	sctx, span := telemetry.StartStoreSpan(ctx, "read", c.adapter.store.Type(), telemetry.Filename(cmd.Filename))
	data, err := c.adapter.store.ReadFile(sctx, c.username, cmd.Filename)
	if err == nil && !utf8.Valid(data) {
		err = errNotText
	}
	telemetry.RecordError(sctx, err)
	span.End()

	if err != nil {
		return c.reportFailure(ctx, &CommandError{Command: notepad.NameLoad, Err: err})
	}

	c.buffer.Reset()
	c.buffer.Write(data)

	if m := c.adapter.metrics; m != nil {
		m.RecordBytesLoaded(len(data))
	}
	telemetry.SetAttributes(ctx, telemetry.Bytes(len(data)))
	logger.DebugCtx(ctx, "File loaded", logger.Filename(cmd.Filename), logger.KeyBytesRead, len(data))

	return c.write(notepad.FileLoaded(cmd.Filename))
}

// handleList writes one line per entry in the user's namespace.
func (c *Connection) handleList(ctx context.Context) error {
	sctx, span := telemetry.StartStoreSpan(ctx, "list", c.adapter.store.Type())
	names, err := c.adapter.store.ListDir(sctx, c.username)
	telemetry.RecordError(sctx, err)
	span.End()

	if err != nil {
		return c.reportFailure(ctx, &CommandError{Command: notepad.NameList, Err: err})
	}

	telemetry.SetAttributes(ctx, telemetry.Entries(len(names)))
	logger.DebugCtx(ctx, "Files listed", logger.KeyEntries, len(names))
	return c.write(notepad.Listing(names))
}

// reportFailure sends the client message for a failed LOAD or LS. Missing
// files are routine; other store errors are logged at warn.
func (c *Connection) reportFailure(ctx context.Context, cmdErr *CommandError) error {
	pe := MapError(cmdErr)
	if pe == nil {
		return cmdErr
	}

	telemetry.SetAttributes(ctx, telemetry.Outcome(outcomeFor(pe.Code())))
	if !errors.Is(cmdErr, store.ErrNotFound) {
		logger.WarnCtx(ctx, "Storage request failed", logger.KeyStatus, pe.Code(), logger.Err(cmdErr.Err))
	}
	return c.write(pe.Message())
}

func outcomeFor(code uint32) string {
	switch code {
	case CodeNotFound:
		return "not_found"
	case CodeBadRequest:
		return "rejected"
	case CodeUnavailable:
		return "unavailable"
	default:
		return "store_error"
	}
}

// handleExit releases the username. Nothing is written back.
func (c *Connection) handleExit(ctx context.Context) {
	c.release(ctx, metrics.ReleaseExit)
}

// handleAppend adds a line to the buffer and redraws it.
func (c *Connection) handleAppend(cmd notepad.Append) error {
	c.buffer.WriteString(cmd.Text)
	c.buffer.WriteByte('\n')

	c.out.Reset()
	notepad.AppendFrame(c.out, c.buffer.String())
	return c.writeBytes(c.out.Bytes())
}
