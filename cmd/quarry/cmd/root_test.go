package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeTestConfig points the CLI at a temp data directory with the
// static embedding provider.
func writeTestConfig(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "config.yaml")
	cfg := `data_dir: ` + filepath.Join(dir, "data") + `
embeddings:
  provider: static
`
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))
	return cfgPath
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd()
	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestCLI_CreateListDestroy(t *testing.T) {
	cfg := writeTestConfig(t)

	out, err := execute(t, "--config", cfg, "create", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, `Created index "docs"`)

	out, err = execute(t, "--config", cfg, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "docs")

	_, err = execute(t, "--config", cfg, "destroy", "docs")
	require.Error(t, err, "destroy without --force must refuse")

	out, err = execute(t, "--config", cfg, "destroy", "docs", "--force")
	require.NoError(t, err)
	assert.Contains(t, out, `Destroyed index "docs"`)
}

func TestCLI_IngestAndQuery(t *testing.T) {
	cfg := writeTestConfig(t)

	docDir := t.TempDir()
	md := filepath.Join(docDir, "guide.md")
	require.NoError(t, os.WriteFile(md, []byte("# Guide\n\n## Deploy\n\nUse the rollout script for staging.\n"), 0o644))

	_, err := execute(t, "--config", cfg, "create", "docs")
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "ingest", "docs", docDir)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 1 documents")

	out, err = execute(t, "--config", cfg, "query", "docs", "how to deploy staging")
	require.NoError(t, err)
	assert.Contains(t, out, "rollout script")
	assert.Contains(t, out, "guide.md")
}

func TestCLI_InfoShowsCounts(t *testing.T) {
	cfg := writeTestConfig(t)

	docDir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(docDir, "a.md"),
		[]byte("# One\n\nfirst\n\n# Two\n\nsecond\n"), 0o644))

	_, err := execute(t, "--config", cfg, "create", "docs")
	require.NoError(t, err)
	_, err = execute(t, "--config", cfg, "ingest", "docs", docDir)
	require.NoError(t, err)

	out, err := execute(t, "--config", cfg, "info", "docs")
	require.NoError(t, err)
	assert.Contains(t, out, `Index "docs"`)
	assert.Contains(t, out, "chunks")
}

func TestCLI_UnknownIndexFails(t *testing.T) {
	cfg := writeTestConfig(t)

	_, err := execute(t, "--config", cfg, "query", "ghost", "anything")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestCLI_Version(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "quarry")
}
