package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nohands.dev/go/nohands/internal/config"
	"nohands.dev/go/nohands/internal/logging"
)

// runRoot executes the root command with args and returns its stdout
func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetArgs(args)
	RootCmd.SetOut(&out)
	t.Cleanup(func() {
		RootCmd.SetArgs(nil)
		RootCmd.SetOut(nil)
	})
	err := RootCmd.Execute()
	return out.String(), err
}

// The binary links the shortcut package, so subcommands must start on a
// machine with no display at all.
func TestVersionRunsWithoutDisplay(t *testing.T) {
	t.Setenv("DISPLAY", "")
	t.Setenv("WAYLAND_DISPLAY", "")
	t.Cleanup(func() { versionJSON, versionFull = false, false })

	out, err := runRoot(t, "version", "--json")
	require.NoError(t, err)

	var v versionInfo
	require.NoError(t, json.Unmarshal([]byte(out), &v))
	assert.Equal(t, version, v.Version)
	assert.Equal(t, config.DefaultMode, v.Mode)
	assert.Empty(t, v.Go)
}

func TestBuildVersionFull(t *testing.T) {
	v := buildVersion(true)
	assert.NotEmpty(t, v.Go)
	assert.Contains(t, v.Platform, "/")
	assert.NotEmpty(t, v.Commit)

	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, v, false))
	assert.Contains(t, buf.String(), "Platform:")
	assert.Contains(t, buf.String(), v.Mode+" build")
}

func TestWriteVersionShort(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeVersion(&buf, versionInfo{Version: "1.2.3", Mode: "production"}, false))
	assert.Equal(t, "nohands 1.2.3 (production build)\n", buf.String())
}

func TestConfigInitWritesLoadableDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.toml")

	require.NoError(t, initConfig(path, false))
	cfg, err := config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, config.Default(), cfg)

	err = initConfig(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, os.WriteFile(path, []byte("[app]\nid = \"other\"\n"), 0o600))
	require.NoError(t, initConfig(path, true))
	cfg, err = config.LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, "nohands", cfg.App.ID)
}

func TestConfigShowPrintsEffectiveConfig(t *testing.T) {
	cfgFile = filepath.Join(t.TempDir(), "config.toml")
	t.Cleanup(func() { cfgFile = "" })
	require.NoError(t, os.WriteFile(cfgFile, []byte("[app]\nid = \"nohands-test\"\n"), 0o600))

	out, err := runRoot(t, "config", "show", "--config", cfgFile)
	require.NoError(t, err)
	assert.Contains(t, out, `id = "nohands-test"`)
	assert.Contains(t, out, `listen = "127.0.0.1:0"`)
}

// logSource serves a growing list of entries and records the queries
type logSource struct {
	mu      sync.Mutex
	entries []logging.Entry
	queries []logging.Query
}

func (s *logSource) add(msg string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, logging.Entry{Timestamp: at, Level: "INFO", Message: msg})
}

func (s *logSource) fetch(ctx context.Context, q logging.Query) ([]logging.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, q)

	var out []logging.Entry
	for _, e := range s.entries {
		if q.Since.IsZero() || !e.Timestamp.Before(q.Since) {
			out = append(out, e)
		}
	}
	return out, nil
}

func TestFollowLogsPrintsOnlyNewEntries(t *testing.T) {
	base := time.Now()
	src := &logSource{}
	src.add("one", base)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var mu sync.Mutex
	var seen []string
	show := func(e logging.Entry) error {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, e.Message)
		if len(seen) == 3 {
			cancel()
		}
		return nil
	}

	done := make(chan error, 1)
	go func() { done <- followLogs(ctx, src.fetch, logging.Query{Limit: 10}, 10*time.Millisecond, show) }()

	assert.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 1
	}, time.Second, 5*time.Millisecond)

	src.add("two", base.Add(time.Millisecond))
	src.add("three", base.Add(2*time.Millisecond))

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("followLogs did not stop")
	}

	assert.Equal(t, []string{"one", "two", "three"}, seen)

	src.mu.Lock()
	defer src.mu.Unlock()
	require.Greater(t, len(src.queries), 1)
	assert.Equal(t, 10, src.queries[0].Limit)
	assert.Zero(t, src.queries[len(src.queries)-1].Limit)
}

func TestFollowLogsReturnsFetchError(t *testing.T) {
	fetch := func(context.Context, logging.Query) ([]logging.Entry, error) {
		return nil, errors.New("connection refused")
	}
	err := followLogs(context.Background(), fetch, logging.Query{}, time.Millisecond, func(logging.Entry) error { return nil })
	assert.EqualError(t, err, "connection refused")
}

func updateLogs(t *testing.T, m logsModel, msg tea.Msg) logsModel {
	t.Helper()
	next, _ := m.Update(msg)
	lm, ok := next.(logsModel)
	require.True(t, ok)
	return lm
}

func TestLogsModelMergesWithoutDuplicates(t *testing.T) {
	base := time.Now()
	e1 := logging.Entry{Timestamp: base, Level: "INFO", Message: "one"}
	e2 := logging.Entry{Timestamp: base.Add(time.Second), Level: "INFO", Message: "two"}

	m := newLogsModel(nil, logging.Query{})
	m = updateLogs(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updateLogs(t, m, logsLoadedMsg{reset: true, entries: []logging.Entry{e1, e2}})
	m = updateLogs(t, m, logsLoadedMsg{entries: []logging.Entry{e2}})

	require.Len(t, m.entries, 2)
	assert.Equal(t, e2.Timestamp, m.last)
	assert.Contains(t, m.View(), "(2 entries)")
}

func TestLogsModelLevelKeyReloads(t *testing.T) {
	m := newLogsModel(nil, logging.Query{})
	m = updateLogs(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})

	m = updateLogs(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("3")})
	assert.Equal(t, "info", m.query.Level)
	assert.Equal(t, 1, m.gen)
	assert.Contains(t, m.View(), "Level: [INFO]")

	// a load started before the level change is dropped
	stale := logsLoadedMsg{gen: 0, reset: true, entries: []logging.Entry{{Timestamp: time.Now(), Message: "debug noise"}}}
	m = updateLogs(t, m, stale)
	assert.Empty(t, m.entries)
}

func TestLogsModelShowsFetchError(t *testing.T) {
	m := newLogsModel(nil, logging.Query{})
	m = updateLogs(t, m, tea.WindowSizeMsg{Width: 80, Height: 24})
	m = updateLogs(t, m, logsLoadedMsg{err: errors.New("instance gone")})
	assert.Contains(t, m.View(), "instance gone")
}
