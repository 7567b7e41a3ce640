package cmd

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	_ "github.com/rubiojr/bolt/modules/str"
)

func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := New("test")
	var stdout, stderr bytes.Buffer
	root.Writer = &stdout
	root.ErrWriter = &stderr
	err := root.Run(context.Background(), append([]string{"bolt"}, args...))
	return stdout.String(), stderr.String(), err
}

func project(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for name, src := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(src), 0o644))
	}
	return dir
}

var greetProject = map[string]string{
	"main.bolt":      "import \"lib/greet\"\nprint(greet.hello(\"ada\"))\noutput 40 + 2\n",
	"lib/greet.bolt": "import \"str\"\ndef hello(n)\n  return \"hello, \" + str.upper(n)\nend\n",
}

func TestRunPrintsOutput(t *testing.T) {
	dir := project(t, greetProject)
	stdout, stderr, err := runCLI(t, "--dir", dir, "--no-cache", "run", "-p", filepath.Join(dir, "main.bolt"))
	require.NoError(t, err, stderr)
	assert.Equal(t, "hello, ADA\n42\n", stdout)
}

func TestRunShorthand(t *testing.T) {
	dir := project(t, greetProject)
	stdout, _, err := runCLI(t, "--dir", dir, "--no-cache", filepath.Join(dir, "main.bolt"))
	require.NoError(t, err)
	assert.Equal(t, "hello, ADA\n", stdout)
}

func TestRunLocation(t *testing.T) {
	dir := project(t, greetProject)
	stdout, _, err := runCLI(t, "-C", dir, "--no-cache", "run", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello, ADA\n", stdout)
}

func TestRunReportsRuntimeError(t *testing.T) {
	dir := project(t, map[string]string{
		"bad.bolt": "x = 1\ny = x / 0\n",
	})
	_, stderr, err := runCLI(t, "--dir", dir, "--no-cache", "run", "bad")
	assert.ErrorIs(t, err, errReported)
	assert.Contains(t, stderr, "division by zero")
	assert.Contains(t, stderr, "   2 | y = x / 0\n")
}

func TestRunMissingModule(t *testing.T) {
	dir := project(t, nil)
	_, _, err := runCLI(t, "--dir", dir, "--no-cache", "run", "nowhere")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errReported)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRunInvalidLocation(t *testing.T) {
	dir := project(t, nil)
	_, _, err := runCLI(t, "--dir", dir, "--no-cache", "run", "../up")
	assert.ErrorContains(t, err, `invalid module location "../up"`)
}

func TestEmit(t *testing.T) {
	dir := project(t, greetProject)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "empty.bolt"), nil, 0o644))
	stdout, _, err := runCLI(t, "--dir", dir, "--no-cache", "emit", "empty")
	require.NoError(t, err)
	assert.Equal(t, "; empty has no executable statements\n", stdout)

	stdout, _, err = runCLI(t, "--dir", dir, "--no-cache", "emit", "main")
	require.NoError(t, err)
	assert.Contains(t, stdout, "== <module> (")
}

func TestCheck(t *testing.T) {
	dir := project(t, map[string]string{
		"good.bolt":      "output 1\n",
		"lib/bad.bolt":   "def f()\n",
		".hidden/x.bolt": "this is not bolt\n",
	})
	stdout, stderr, err := runCLI(t, "--dir", dir, "--no-cache", "check")
	assert.ErrorIs(t, err, errReported)
	assert.Equal(t, "2 modules checked, 1 with errors\n", stdout)
	assert.Contains(t, stderr, "syntax error: ")
	assert.Contains(t, stderr, "bad.bolt")

	stdout, _, err = runCLI(t, "--dir", dir, "--no-cache", "check", "good")
	require.NoError(t, err)
	assert.Equal(t, "1 modules checked, 0 with errors\n", stdout)
}

func TestCheckEmptyProject(t *testing.T) {
	dir := project(t, nil)
	_, _, err := runCLI(t, "--dir", dir, "--no-cache", "check")
	assert.ErrorContains(t, err, "no .bolt files found")
}

func TestCacheAcrossRuns(t *testing.T) {
	dir := project(t, greetProject)
	cacheDir := t.TempDir()
	t.Setenv("BOLT_CACHE", "file")
	t.Setenv("BOLT_CACHE_DIR", cacheDir)

	for i := 0; i < 2; i++ {
		stdout, stderr, err := runCLI(t, "--dir", dir, "run", "main")
		require.NoError(t, err, stderr)
		assert.Equal(t, "hello, ADA\n", stdout)
	}
	entries, err := filepath.Glob(filepath.Join(cacheDir, "*.bolc"))
	require.NoError(t, err)
	assert.Len(t, entries, 2)

	stdout, _, err := runCLI(t, "--dir", dir, "cache", "clear")
	require.NoError(t, err)
	assert.Equal(t, "module cache cleared\n", stdout)
	entries, err = filepath.Glob(filepath.Join(cacheDir, "*.bolc"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCacheClearWhenDisabled(t *testing.T) {
	dir := project(t, nil)
	stdout, _, err := runCLI(t, "--dir", dir, "--no-cache", "cache", "clear")
	require.NoError(t, err)
	assert.Equal(t, "module cache is disabled\n", stdout)
}

func TestUnknownCacheBackendFallsBack(t *testing.T) {
	dir := project(t, greetProject)
	t.Setenv("BOLT_CACHE", "floppy")
	stdout, stderr, err := runCLI(t, "--dir", dir, "run", "main")
	require.NoError(t, err)
	assert.Equal(t, "hello, ADA\n", stdout)
	assert.Contains(t, stderr, "module cache unavailable")
}
