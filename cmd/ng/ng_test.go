package main

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/scott-cotton/cli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/signadot/nodegraph/debug"
	"github.com/signadot/nodegraph/metrics"
)

const scenarioYAML = `
nodes:
- name: data
  kind: Data
  primaryKey: [name]
  values: {name: data}
steps:
- name: first write
  ops:
  - {op: set, node: data, key: key, value: value0}
`

const wantTrace = `# step 1: first write
txn COMMIT_BEGIN
Data[name=data] VALUE_CHANGED(key) null -> "value0"
Data[name=data] MODIFIED
Data[name=data] NODE_CHANGED
txn COMMIT_SUCCESS
txn COMMIT_END
# state
data: Data[key=value0,name=data] modified keys=key
`

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func quietLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
}

func TestMainCommand(t *testing.T) {
	cmd := MainCommand()
	require.NotNil(t, cmd)
}

func TestRunTrace(t *testing.T) {
	path := writeFile(t, "s.yaml", scenarioYAML)
	cfg := &TraceConfig{MainConfig: &MainConfig{}}
	var out bytes.Buffer
	match, err := runTrace(cfg, &out, path, quietLog(), nil)
	require.NoError(t, err)
	assert.True(t, match)
	assert.Equal(t, wantTrace, out.String())
}

func TestRunTraceExpect(t *testing.T) {
	path := writeFile(t, "s.yaml", scenarioYAML)

	cfg := &TraceConfig{MainConfig: &MainConfig{}, Expect: writeFile(t, "want", wantTrace)}
	var out bytes.Buffer
	match, err := runTrace(cfg, &out, path, quietLog(), nil)
	require.NoError(t, err)
	assert.True(t, match)
	assert.Empty(t, out.String())

	stale := bytes.Replace([]byte(wantTrace), []byte("value0"), []byte("value1"), -1)
	cfg.Expect = writeFile(t, "stale", string(stale))
	out.Reset()
	match, err = runTrace(cfg, &out, path, quietLog(), nil)
	require.NoError(t, err)
	assert.False(t, match)
	assert.Contains(t, out.String(), `- Data[name=data] VALUE_CHANGED(key) null -> "value1"`)
	assert.Contains(t, out.String(), `+ Data[name=data] VALUE_CHANGED(key) null -> "value0"`)
}

func TestRunTraceErrors(t *testing.T) {
	cfg := &TraceConfig{MainConfig: &MainConfig{}}
	_, err := runTrace(cfg, &bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.yaml"), quietLog(), nil)
	require.Error(t, err)

	bad := writeFile(t, "bad.yaml", "steps: [{ops: [{op: frob}]}]")
	_, err = runTrace(cfg, &bytes.Buffer{}, bad, quietLog(), nil)
	require.Error(t, err)
}

func TestWriteMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	require.NoError(t, err)
	path := writeFile(t, "s.yaml", scenarioYAML)
	cfg := &TraceConfig{MainConfig: &MainConfig{}}
	_, err = runTrace(cfg, &bytes.Buffer{}, path, quietLog(), m)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, writeMetrics(&out, reg))
	assert.Contains(t, out.String(), `nodegraph_commits_total{result="success"} 1`)
}

func TestDiffFiles(t *testing.T) {
	a := writeFile(t, "a", "x\ny\n")
	b := writeFile(t, "b", "x\nz\n")

	var out bytes.Buffer
	differs, err := diffFiles(&out, a, a)
	require.NoError(t, err)
	assert.False(t, differs)
	assert.Empty(t, out.String())

	differs, err = diffFiles(&out, a, b)
	require.NoError(t, err)
	assert.True(t, differs)
	assert.Equal(t, "  x\n- y\n+ z\n", out.String())

	_, err = diffFiles(&out, a, filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "ng.yaml", "logLevel: debug\ncolor: false\nsetPrefix: item/\ndebug: [modified]\n")
	fc, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", fc.LogLevel)
	require.NotNil(t, fc.Color)
	assert.False(t, *fc.Color)
	assert.Equal(t, "item/", fc.SetPrefix)
	assert.Equal(t, []string{"modified"}, fc.Debug)

	_, err = LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorContains(t, err, "failed to read config file")

	fc = DefaultConfig()
	assert.Equal(t, "warn", fc.LogLevel)
	assert.Nil(t, fc.Color)
}

func TestSetup(t *testing.T) {
	t.Cleanup(func() { _ = debug.Set("modified", false) })

	cfg := &MainConfig{
		Config:   writeFile(t, "ng.yaml", "logLevel: info\nsetPrefix: item/\n"),
		LogLevel: "error",
		Debug:    "modified",
	}
	require.NoError(t, cfg.setup())
	assert.Equal(t, "error", cfg.File.LogLevel)
	assert.Equal(t, "item/", cfg.setPrefix())
	assert.True(t, debug.Modified())

	log, err := cfg.logger(&bytes.Buffer{})
	require.NoError(t, err)
	assert.False(t, log.Enabled(t.Context(), slog.LevelWarn))
	assert.True(t, log.Enabled(t.Context(), slog.LevelError))

	bad := &MainConfig{Debug: "nosuch"}
	assert.ErrorIs(t, bad.setup(), cli.ErrUsage)

	bad = &MainConfig{LogLevel: "loud"}
	require.NoError(t, bad.setup())
	_, err = bad.logger(&bytes.Buffer{})
	assert.ErrorIs(t, err, cli.ErrUsage)
}

func TestColors(t *testing.T) {
	var buf bytes.Buffer
	assert.Nil(t, (&MainConfig{}).colors(&buf))
	assert.NotNil(t, (&MainConfig{Color: true}).colors(&buf))

	on := true
	assert.NotNil(t, (&MainConfig{File: &Config{Color: &on}}).colors(&buf))
}
