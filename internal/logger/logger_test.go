package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// captureOutput redirects logger output to a buffer with colors disabled.
// It restores the previous output, level and format on cleanup.
func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	buf := new(bytes.Buffer)

	mu.Lock()
	origOutput, origColor := output, useColor
	output, useColor = buf, false
	mu.Unlock()

	origLevel := GetLevel()
	origFormat, _ := currentFormat.Load().(string)
	reconfigure()

	t.Cleanup(func() {
		mu.Lock()
		output, useColor = origOutput, origColor
		mu.Unlock()
		SetLevel(origLevel.String())
		SetFormat(origFormat)
		reconfigure()
	})
	return buf
}

func TestLevelFiltering(t *testing.T) {
	t.Run("DebugShowsEverything", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		Debug("debug message")
		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		for _, s := range []string{"[DEBUG]", "[INFO]", "[WARN]", "[ERROR]", "debug message", "error message"} {
			assert.Contains(t, out, s)
		}
	})

	t.Run("InfoFiltersDebug", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("INFO")

		Debug("debug message")
		Info("info message")

		out := buf.String()
		assert.NotContains(t, out, "debug message")
		assert.Contains(t, out, "info message")
	})

	t.Run("ErrorShowsOnlyErrors", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("ERROR")

		Info("info message")
		Warn("warn message")
		Error("error message")

		out := buf.String()
		assert.NotContains(t, out, "info message")
		assert.NotContains(t, out, "warn message")
		assert.Contains(t, out, "error message")
	})

	t.Run("UnknownLevelIsIgnored", func(t *testing.T) {
		captureOutput(t)
		SetLevel("WARN")
		SetLevel("verbose")
		assert.Equal(t, LevelWarn, GetLevel())
	})

	t.Run("LevelIsCaseInsensitive", func(t *testing.T) {
		captureOutput(t)
		SetLevel("debug")
		assert.Equal(t, LevelDebug, GetLevel())
	})
}

func TestTextFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("text")

	Info("client connected", KeyUsername, "alice", KeyBytesRead, 12, "note", "two words")

	line := strings.TrimSpace(buf.String())
	assert.Regexp(t, `^\[\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}\] \[INFO\] client connected`, line)
	assert.Contains(t, line, "username=alice")
	assert.Contains(t, line, "bytes_read=12")
	assert.Contains(t, line, `note="two words"`)
	assert.NotContains(t, line, "\033[")
}

func TestTextFormatGroupsAndAttrs(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")

	l := With(KeyProtocol, "notepad").WithGroup("store")
	l.Info("saved", slog.String("type", "fs"), slog.Group("file", slog.String("name", "a.txt")))

	line := buf.String()
	assert.Contains(t, line, "protocol=notepad")
	assert.Contains(t, line, "store.type=fs")
	assert.Contains(t, line, "store.file.name=a.txt")
}

func TestJSONFormat(t *testing.T) {
	buf := captureOutput(t)
	SetLevel("INFO")
	SetFormat("json")

	Info("file saved", KeyFilename, "notepad.txt")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "file saved", entry["msg"])
	assert.Equal(t, "INFO", entry["level"])
	assert.Equal(t, "notepad.txt", entry[KeyFilename])
}

func TestContextLogging(t *testing.T) {
	t.Run("FieldsFromLogContext", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		lc := NewLogContext("sess-1", "10.0.0.1").WithUsername("bob").WithCommand("SAVE")
		ctx := WithContext(context.Background(), lc)

		InfoCtx(ctx, "command handled", KeyFilename, "notes.txt")

		out := buf.String()
		assert.Contains(t, out, "session_id=sess-1")
		assert.Contains(t, out, "username=bob")
		assert.Contains(t, out, "command=SAVE")
		assert.Contains(t, out, "client_ip=10.0.0.1")
		assert.Contains(t, out, "filename=notes.txt")
	})

	t.Run("NoLogContext", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("DEBUG")

		DebugCtx(context.Background(), "plain")
		assert.Contains(t, buf.String(), "plain")
		assert.NotContains(t, buf.String(), "session_id")
	})

	t.Run("CtxVariantsRespectLevel", func(t *testing.T) {
		buf := captureOutput(t)
		SetLevel("ERROR")

		ctx := WithContext(context.Background(), NewLogContext("s", "ip"))
		DebugCtx(ctx, "d")
		InfoCtx(ctx, "i")
		WarnCtx(ctx, "w")
		ErrorCtx(ctx, "e")

		out := buf.String()
		assert.Equal(t, 1, strings.Count(out, "\n"))
		assert.Contains(t, out, "[ERROR] e")
	})
}

func TestLogContextCopies(t *testing.T) {
	base := NewLogContext("sess", "127.0.0.1")
	named := base.WithUsername("carol")
	cmd := named.WithCommand("LOAD")
	traced := cmd.WithTrace("trace", "span")

	assert.Empty(t, base.Username)
	assert.Equal(t, "carol", named.Username)
	assert.Empty(t, named.Command)
	assert.Equal(t, "LOAD", cmd.Command)
	assert.Equal(t, "trace", traced.TraceID)
	assert.Empty(t, cmd.TraceID)
	assert.GreaterOrEqual(t, cmd.DurationMs(), 0.0)

	var nilCtx *LogContext
	assert.Nil(t, nilCtx.Clone())
	assert.Nil(t, nilCtx.WithUsername("x"))
	assert.Zero(t, nilCtx.DurationMs())
	assert.Nil(t, FromContext(context.Background()))
}

func TestErrAttr(t *testing.T) {
	assert.True(t, Err(nil).Equal(slog.Attr{}))

	a := Err(errors.New("disk full"))
	assert.Equal(t, KeyError, a.Key)
	assert.Equal(t, "disk full", a.Value.String())

	buf := captureOutput(t)
	SetLevel("INFO")
	Info("no error", Err(nil))
	assert.NotContains(t, buf.String(), "error=")
}

func TestInitToFile(t *testing.T) {
	captureOutput(t)
	path := filepath.Join(t.TempDir(), "dittopad.log")

	require.NoError(t, Init(Config{Level: "INFO", Format: "text", Output: path}))
	Info("written to file")

	t.Cleanup(func() {
		mu.Lock()
		if logFile != nil {
			_ = logFile.Close()
			logFile = nil
		}
		mu.Unlock()
	})

	mu.RLock()
	f := logFile
	mu.RUnlock()
	require.NotNil(t, f)
	require.NoError(t, f.Sync())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestInitBadPath(t *testing.T) {
	captureOutput(t)
	err := Init(Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "x.log")})
	assert.Error(t, err)
}
