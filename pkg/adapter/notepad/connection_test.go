package notepad

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittopad/internal/protocol/notepad"
	"github.com/marmos91/dittopad/pkg/registry"
	"github.com/marmos91/dittopad/pkg/store"
	"github.com/marmos91/dittopad/pkg/store/fs"
)

// =============================================================================
// Test helpers
// =============================================================================

type metricsSnapshot struct {
	registrations  map[bool]int
	releases       map[string]int
	commands       map[string]int
	activeSessions int
	bytesSaved     int
	bytesLoaded    int
}

type fakeMetrics struct {
	mu sync.Mutex
	metricsSnapshot
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{metricsSnapshot: metricsSnapshot{
		registrations: map[bool]int{},
		releases:      map[string]int{},
		commands:      map[string]int{},
	}}
}

func (m *fakeMetrics) RecordConnectionAccepted()    {}
func (m *fakeMetrics) RecordConnectionClosed()      {}
func (m *fakeMetrics) RecordConnectionForceClosed() {}
func (m *fakeMetrics) SetActiveConnections(int32)   {}

func (m *fakeMetrics) RecordRegistration(granted bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations[granted]++
}

func (m *fakeMetrics) RecordRelease(reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.releases[reason]++
}

func (m *fakeMetrics) SetActiveSessions(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.activeSessions = n
}

func (m *fakeMetrics) RecordCommand(command, status string, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands[command+"/"+status]++
}

func (m *fakeMetrics) RecordBytesSaved(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesSaved += n
}

func (m *fakeMetrics) RecordBytesLoaded(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bytesLoaded += n
}

func (m *fakeMetrics) snapshot() metricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()
	return metricsSnapshot{
		registrations:  copyMap(m.registrations),
		releases:       copyMap(m.releases),
		commands:       copyMap(m.commands),
		activeSessions: m.activeSessions,
		bytesSaved:     m.bytesSaved,
		bytesLoaded:    m.bytesLoaded,
	}
}

func copyMap[K comparable](in map[K]int) map[K]int {
	out := make(map[K]int, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

type testEnv struct {
	adapter  *Adapter
	registry *registry.Registry
	store    store.Store
	metrics  *fakeMetrics
}

func newTestEnv(t *testing.T, cfg Config, st store.Store) *testEnv {
	t.Helper()
	if st == nil {
		st = fs.NewMemory()
	}
	env := &testEnv{registry: registry.New(), store: st, metrics: newFakeMetrics()}
	a, err := New(cfg, env.registry, st, env.metrics)
	require.NoError(t, err)
	env.adapter = a
	return env
}

type session struct {
	t    *testing.T
	conn net.Conn
	done chan error
}

// open runs a connection handler on one end of a pipe and returns the
// client end.
func (e *testEnv) open(t *testing.T) *session {
	t.Helper()
	server, client := net.Pipe()
	s := &session{t: t, conn: client, done: make(chan error, 1)}

	go func() {
		err := e.adapter.NewConnection(server).Serve(context.Background())
		_ = server.Close()
		s.done <- err
	}()
	t.Cleanup(func() { _ = client.Close() })
	return s
}

func (s *session) expect(want string) {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	got := make([]byte, len(want))
	_, err := io.ReadFull(s.conn, got)
	require.NoError(s.t, err)
	assert.Equal(s.t, want, string(got))
}

func (s *session) send(msg string) {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetWriteDeadline(time.Now().Add(2*time.Second)))
	_, err := s.conn.Write([]byte(msg))
	require.NoError(s.t, err)
}

func (s *session) login(username string) {
	s.t.Helper()
	s.expect(notepad.PromptUsername)
	s.send(username)
	s.expect(notepad.Welcome)
}

// typeLine appends a line and checks the redraw.
func (s *session) typeLine(text, wantBuffer string) {
	s.t.Helper()
	s.send(text)
	s.expect(notepad.Frame(wantBuffer))
}

func (s *session) expectClosed() {
	s.t.Helper()
	require.NoError(s.t, s.conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, err := s.conn.Read(make([]byte, 1))
	assert.ErrorIs(s.t, err, io.EOF)
}

func (s *session) wait() error {
	s.t.Helper()
	select {
	case err := <-s.done:
		return err
	case <-time.After(3 * time.Second):
		s.t.Fatal("connection handler did not return")
		return nil
	}
}

// failingStore wraps a store and fails selected operations.
type failingStore struct {
	store.Store
	readErr error
	listErr error
}

func (f *failingStore) ReadFile(ctx context.Context, u, name string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.Store.ReadFile(ctx, u, name)
}

func (f *failingStore) ListDir(ctx context.Context, u string) ([]string, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.Store.ListDir(ctx, u)
}

// =============================================================================
// Session lifecycle
// =============================================================================

func TestLoginAndExit(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)

	s.login("alice")
	assert.True(t, env.registry.IsActive("alice"))

	s.send("EXIT")
	s.expectClosed()
	require.NoError(t, s.wait())

	assert.False(t, env.registry.IsActive("alice"))
	m := env.metrics.snapshot()
	assert.Equal(t, 1, m.registrations[true])
	assert.Equal(t, 1, m.releases["exit"])
	assert.Equal(t, 0, m.activeSessions)
	assert.Equal(t, 1, m.commands["EXIT/ok"])
}

func TestUsernameIsTrimmed(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)

	s.login("  bob \r\n")
	assert.True(t, env.registry.IsActive("bob"))
}

func TestUsernameTaken(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	require.True(t, env.registry.TryRegister("alice"))

	s := env.open(t)
	s.expect(notepad.PromptUsername)
	s.send("alice")
	s.expect(notepad.UsernameTaken)
	s.expectClosed()
	require.NoError(t, s.wait())

	// The existing holder keeps the name.
	assert.True(t, env.registry.IsActive("alice"))
	assert.Equal(t, 1, env.registry.Count())
	assert.Equal(t, 1, env.metrics.snapshot().registrations[false])
}

func TestDisconnectBeforeUsername(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)

	s.expect(notepad.PromptUsername)
	require.NoError(t, s.conn.Close())
	require.NoError(t, s.wait())
	assert.Zero(t, env.registry.Count())
}

func TestAbruptDisconnectKeepsUsername(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)

	s.login("alice")
	require.NoError(t, s.conn.Close())
	require.NoError(t, s.wait())

	assert.True(t, env.registry.IsActive("alice"))

	again := env.open(t)
	again.expect(notepad.PromptUsername)
	again.send("alice")
	again.expect(notepad.UsernameTaken)
}

func TestReleaseOnDisconnect(t *testing.T) {
	env := newTestEnv(t, Config{ReleaseOnDisconnect: true}, nil)

	s := env.open(t)
	s.login("alice")
	require.NoError(t, s.conn.Close())
	require.NoError(t, s.wait())
	assert.False(t, env.registry.IsActive("alice"))
	assert.Equal(t, 1, env.metrics.snapshot().releases["disconnect"])

	// EXIT releases once; the deferred disconnect release is a no-op.
	s = env.open(t)
	s.login("alice")
	s.send("EXIT")
	require.NoError(t, s.wait())
	m := env.metrics.snapshot()
	assert.Equal(t, 1, m.releases["exit"])
	assert.Equal(t, 1, m.releases["disconnect"])
}

func TestIdleTimeout(t *testing.T) {
	env := newTestEnv(t, Config{IdleTimeout: 50 * time.Millisecond}, nil)
	s := env.open(t)

	s.login("alice")
	err := s.wait()
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrDeadlineExceeded)

	// A timeout is a socket error: the name stays held by default.
	assert.True(t, env.registry.IsActive("alice"))
}

// =============================================================================
// Commands
// =============================================================================

func TestSaveLoadRoundTrip(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.typeLine("a", "a\n")
	s.typeLine("b", "a\nb\n")

	s.send("SAVE notes.txt")
	s.expect(notepad.FileSaved)

	s.send("LOAD notes.txt")
	s.expect(notepad.FileLoaded("notes.txt"))

	// The buffer now holds exactly the saved content.
	s.typeLine("c", "a\nb\nc\n")

	data, err := env.store.ReadFile(context.Background(), "alice", "notes.txt")
	require.NoError(t, err)
	assert.Equal(t, "a\nb\n", string(data))

	m := env.metrics.snapshot()
	assert.Equal(t, 4, m.bytesSaved)
	assert.Equal(t, 4, m.bytesLoaded)
	assert.Equal(t, 3, m.commands["APPEND/ok"])
	assert.Equal(t, 1, m.commands["SAVE/ok"])
	assert.Equal(t, 1, m.commands["LOAD/ok"])
}

func TestSaveClearsBuffer(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.typeLine("draft", "draft\n")
	s.send("SAVE")
	s.expect(notepad.FileSaved)
	s.typeLine("next", "next\n")

	data, err := env.store.ReadFile(context.Background(), "alice", store.DefaultFilename)
	require.NoError(t, err)
	assert.Equal(t, "draft\n", string(data))
}

func TestSaveEmptyBuffer(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("SAVE empty.txt")
	s.expect(notepad.FileSaved)

	data, err := env.store.ReadFile(context.Background(), "alice", "empty.txt")
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestSaveIgnoresExtraTokens(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.typeLine("x", "x\n")
	s.send("SAVE a.txt b.txt")
	s.expect(notepad.FileSaved)

	names, err := env.store.ListDir(context.Background(), "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"a.txt"}, names)
}

func TestLoadMissingLeavesBuffer(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.typeLine("keep", "keep\n")
	s.send("LOAD missing.txt")
	s.expect(notepad.FileNotFound)
	s.typeLine("more", "keep\nmore\n")

	assert.Equal(t, 1, env.metrics.snapshot().commands["LOAD/ok"])
}

func TestLoadUsage(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("LOAD")
	s.expect(notepad.LoadUsage)
	s.typeLine("still here", "still here\n")
}

func TestLoadRejectsInvalidText(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	ctx := context.Background()
	require.NoError(t, env.store.EnsureDir(ctx, "alice"))
	require.NoError(t, env.store.WriteFile(ctx, "alice", "bin.dat", []byte{0xff, 0xfe, 'a'}))

	s := env.open(t)
	s.login("alice")
	s.send("LOAD bin.dat")
	s.expect(notepad.FileNotFound)
}

func TestLoadRejectsTraversal(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("LOAD ../bob/notepad.txt")
	s.expect(notepad.FileNotFound)
}

func TestLoadStoreErrorIsReported(t *testing.T) {
	st := &failingStore{Store: fs.NewMemory(), readErr: errors.New("backend down")}
	env := newTestEnv(t, Config{}, st)
	s := env.open(t)
	s.login("alice")

	s.send("LOAD notes.txt")
	s.expect(notepad.FileNotFound)
	s.typeLine("x", "x\n")
}

func TestList(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("SAVE x.txt")
	s.expect(notepad.FileSaved)
	s.send("SAVE y.txt")
	s.expect(notepad.FileSaved)

	s.send("LS")
	s.expect("x.txt\ny.txt\n")
}

func TestListShowsEverySavedName(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("SAVE .notepad-keep.txt")
	s.expect(notepad.FileSaved)

	s.send("LS")
	s.expect(".notepad-keep.txt\n")
}

func TestListEmptyWritesNothing(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("LS")
	// No listing output: the next reply is the redraw.
	s.typeLine("after", "after\n")
}

func TestListFailure(t *testing.T) {
	st := &failingStore{Store: fs.NewMemory(), listErr: errors.New("permission denied")}
	env := newTestEnv(t, Config{}, st)
	s := env.open(t)
	s.login("alice")

	s.typeLine("a", "a\n")
	s.send("LS")
	s.expect(notepad.ListFailed)
	s.typeLine("b", "a\nb\n")
}

func TestListIsolatesUsers(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)

	bob := env.open(t)
	bob.login("bob")
	bob.send("SAVE bob.txt")
	bob.expect(notepad.FileSaved)

	alice := env.open(t)
	alice.login("alice")
	alice.send("SAVE alice.txt")
	alice.expect(notepad.FileSaved)
	alice.send("LS")
	alice.expect("alice.txt\n")
}

func TestCommandsAreCaseSensitive(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.typeLine("save", "save\n")
	s.typeLine("exit", "save\nexit\n")
	assert.True(t, env.registry.IsActive("alice"))
}

func TestSaveFailureClosesConnection(t *testing.T) {
	base := afero.NewMemMapFs()
	require.NoError(t, base.MkdirAll("/alice", 0755))
	st := fs.NewWithFs(afero.NewReadOnlyFs(base), fs.DefaultConfig("/"))

	env := newTestEnv(t, Config{}, st)
	s := env.open(t)
	s.login("alice")
	s.typeLine("text", "text\n")

	s.send("SAVE notes.txt")
	s.expectClosed()

	err := s.wait()
	var cmdErr *CommandError
	require.ErrorAs(t, err, &cmdErr)
	assert.Equal(t, notepad.NameSave, cmdErr.Command)
	assert.Nil(t, MapError(err))

	// Not released: the session ended on an error path.
	assert.True(t, env.registry.IsActive("alice"))
	assert.Equal(t, 1, env.metrics.snapshot().commands["SAVE/error"])
}

func TestEnsureDirFailureClosesConnection(t *testing.T) {
	st := fs.NewWithFs(afero.NewReadOnlyFs(afero.NewMemMapFs()), fs.DefaultConfig("/"))
	env := newTestEnv(t, Config{}, st)

	s := env.open(t)
	s.expect(notepad.PromptUsername)
	s.send("alice")
	s.expectClosed()
	assert.Error(t, s.wait())
}

func TestInvalidUTF8Input(t *testing.T) {
	env := newTestEnv(t, Config{}, nil)
	s := env.open(t)
	s.login("alice")

	s.send("caf\xe9")
	s.expect(notepad.Frame("caf\uFFFD\n"))
	s.send("x\xff\xfey")
	s.expect(notepad.Frame("caf\uFFFD\nx\uFFFD\uFFFDy\n"))
}
