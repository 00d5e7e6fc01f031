package cli

import (
	"bufio"
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/arbor/internal/config"
	"github.com/aretw0/arbor/internal/logging"
	"github.com/aretw0/arbor/internal/testutils"
	"github.com/aretw0/arbor/pkg/domain"
	"github.com/aretw0/arbor/pkg/ports"
)

func seed(t *testing.T, repo ports.ContentRepository) {
	t.Helper()
	testutils.SeedLibrary(t, repo)
}

func testConfig(t *testing.T, content, progress string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Library = dir
	cfg.Storage.Content = content
	cfg.Storage.Progress = progress
	cfg.Storage.SessionsDir = filepath.Join(dir, "sessions")
	cfg.SQLite.Path = filepath.Join(dir, "arbor.db")
	return cfg
}

func newStack(t *testing.T, cfg *config.Config) *Stack {
	t.Helper()
	st, err := NewEngine(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	seed(t, st.Engine.Repository())
	return st
}

func play(t *testing.T, st *Stack, opts PlayOptions, input string) string {
	t.Helper()
	var out bytes.Buffer
	require.NoError(t, Play(context.Background(), st.Engine, opts, strings.NewReader(input), &out))
	return out.String()
}

func TestPlay_FileBackends(t *testing.T) {
	cfg := testConfig(t, config.BackendFile, config.BackendFile)
	st := newStack(t, cfg)

	out := play(t, st, PlayOptions{StoryID: "tale", SessionID: "s1", ReaderID: "ann", Headless: true}, "\n\n\n1\n")
	assert.Contains(t, out, "A long hall.")
	assert.Contains(t, out, "guard: Halt!")
	assert.Contains(t, out, "1) Fight")
	assert.Contains(t, out, "-- Hero (GOOD) --")

	p, err := st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, p.Status)
	assert.Equal(t, 1.0, p.Variables["courage"])
	assert.FileExists(t, filepath.Join(cfg.Storage.SessionsDir, "s1.json"))
}

func TestPlay_ResumeAndFresh(t *testing.T) {
	st := newStack(t, testConfig(t, config.BackendMemory, config.BackendMemory))
	opts := PlayOptions{StoryID: "tale", SessionID: "s1", Headless: true}

	play(t, st, opts, "\n\n")
	p, err := st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "hall", p.NodeID)

	opts.Headless = false
	opts.JSON = true
	out := play(t, st, opts, "\n2\n")
	assert.Contains(t, out, `"Halt!"`)
	assert.Contains(t, out, `"BAD"`)

	opts.Fresh = true
	out = play(t, st, opts, "")
	assert.NotContains(t, out, "Halt!")
	p, err = st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPresentingContent, p.Status)
}

func TestPlay_JSONFrames(t *testing.T) {
	st := newStack(t, testConfig(t, config.BackendSQLite, config.BackendSQLite))

	out := play(t, st, PlayOptions{UnitID: "ep1", JSON: true}, "\n\n\n\"1\"\n")

	var types []string
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		var frame map[string]any
		require.NoError(t, json.Unmarshal(sc.Bytes(), &frame), sc.Text())
		types = append(types, frame["type"].(string))
	}
	require.NotEmpty(t, types)
	assert.Equal(t, string(domain.EventSceneChanged), types[0])
	assert.Contains(t, types, string(domain.EventChoicesAvailable))
	assert.Equal(t, string(domain.EventEnded), types[len(types)-1])
}

func TestPlay_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := testConfig(t, config.BackendRedis, config.BackendRedis)
	cfg.Redis.Addr = mr.Addr()
	cfg.Redis.Lock = true
	st := newStack(t, cfg)

	play(t, st, PlayOptions{StoryID: "tale", SessionID: "s1", Headless: true}, "\n\n\n1\n")

	assert.NotEmpty(t, mr.Keys())
	p, err := st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, domain.StatusEnded, p.Status)
}

func TestPlay_EncryptsAndMasksProgress(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory, config.BackendFile)
	cfg.Security.ProgressKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	cfg.Security.MaskVariables = []string{"^courage$"}
	st := newStack(t, cfg)

	play(t, st, PlayOptions{StoryID: "tale", SessionID: "s1", Headless: true}, "\n\n\n1\n")

	raw, err := os.ReadFile(filepath.Join(cfg.Storage.SessionsDir, "s1.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "__encrypted__")
	assert.NotContains(t, string(raw), "courage")

	p, err := st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "***", p.Variables["courage"])
}

func TestPlay_Errors(t *testing.T) {
	st := newStack(t, testConfig(t, config.BackendMemory, config.BackendMemory))
	var out bytes.Buffer

	err := Play(context.Background(), st.Engine, PlayOptions{}, strings.NewReader(""), &out)
	assert.Error(t, err)

	err = Play(context.Background(), st.Engine, PlayOptions{StoryID: "tale", Variables: "{oops"}, strings.NewReader(""), &out)
	assert.ErrorContains(t, err, "--vars")

	err = Play(context.Background(), st.Engine, PlayOptions{StoryID: "missing", Headless: true}, strings.NewReader(""), &out)
	assert.ErrorIs(t, err, domain.ErrStoryNotFound)
}

func TestPlay_SeedsVariables(t *testing.T) {
	st := newStack(t, testConfig(t, config.BackendMemory, config.BackendMemory))
	play(t, st, PlayOptions{StoryID: "tale", SessionID: "s1", Headless: true, Variables: `{"courage": 5}`}, "\n\n\n1\n")

	p, err := st.Engine.Sessions().Load(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 6.0, p.Variables["courage"])
}

func TestNewEngine_BadKey(t *testing.T) {
	cfg := testConfig(t, config.BackendMemory, config.BackendMemory)
	cfg.Security.ProgressKey = "c2hvcnQ="
	_, err := NewEngine(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "error", "boom")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"err":"boom"`)

	_, err = NewLogger(&buf, config.LogConfig{Level: "loud"}, false)
	assert.Error(t, err)
}

func TestHandleExecutionError(t *testing.T) {
	assert.NoError(t, handleExecutionError(nil))
	assert.NoError(t, handleExecutionError(context.Canceled))
	assert.Error(t, handleExecutionError(assert.AnError))
}
