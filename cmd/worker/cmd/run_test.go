package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphauslabs/verticalbuilder/internal/receipt"
)

// fakeGenerator renders content/index.md into public/index.html.
const fakeGenerator = `#!/bin/sh
mkdir -p public && cp content/index.md public/index.html
`

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

// setupLocalEnv points the worker at an all-local stack under a temp dir.
func setupLocalEnv(t *testing.T) string {
	t.Helper()
	root := t.TempDir()

	generator := filepath.Join(root, "bin", "fake-hugo")
	writeTree(t, root, map[string]string{
		"themes/gymnastics/layouts/index.html": "<html></html>",
		"config/base-config.yaml":              "title: Acme\n",
		"bin/fake-hugo":                        fakeGenerator,
	})
	require.NoError(t, os.Chmod(generator, 0o755))

	for k, v := range map[string]string{
		"ENV":                        "prod",
		"HOSTING_PROJECT":            "sites-prod",
		"DB_PROVIDER":                "memory",
		"STORAGE_PROVIDER":           "local",
		"STORAGE_LOCAL_ROOT":         filepath.Join(root, "buckets"),
		"EXPORT_BUCKET":              "vertical-sites-prod",
		"VERTICAL_THEMES_ROOT":       filepath.Join(root, "themes"),
		"VERTICAL_BASE_CONFIG":       filepath.Join(root, "config", "base-config.yaml"),
		"VERTICAL_WORKSPACE_ROOT":    filepath.Join(root, "workspaces"),
		"VERTICAL_LOCAL_OUTPUT_ROOT": filepath.Join(root, "local_output"),
		"GENERATOR_BIN":              generator,
		"LOG_LEVEL":                  "error",
	} {
		t.Setenv(k, v)
	}
	return root
}

func writeJob(t *testing.T, root string) string {
	t.Helper()
	payload := map[string]any{
		"jobId":       "job-42",
		"env":         "prod",
		"orgId":       "acme",
		"verticalKey": "gym",
		"templateKey": "gymnastics",
		"exportId":    "exp-7",
		"buildTarget": map[string]any{"hostingProject": "sites-prod", "site": "local"},
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	path := filepath.Join(root, "job.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func writeExport(t *testing.T, root string) {
	t.Helper()
	manifest, err := json.Marshal(map[string]any{
		"exportId":        "exp-7",
		"orgId":           "acme",
		"verticalKey":     "gym",
		"templateKey":     "gymnastics",
		"env":             "prod",
		"generatedAt":     "2026-03-01T00:00:00Z",
		"sourceUpdatedAt": "2026-02-28T00:00:00Z",
		"contentHash":     "c0ffee",
		"assetHash":       "beef",
		"files":           map[string]any{"markdownCount": 1, "assetCount": 1},
	})
	require.NoError(t, err)

	prefix := filepath.Join(root, "buckets", "vertical-sites-prod", "orgs", "acme", "verticals", "gym", "exports", "exp-7")
	writeTree(t, prefix, map[string]string{
		"manifest.json":    string(manifest),
		"content/index.md": "# Acme Gym",
		"data/site.json":   `{"name":"Acme"}`,
		"static/logo.svg":  "<svg/>",
	})
}

func execute(t *testing.T, root string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&bytes.Buffer{})
	rootCmd.SetArgs(append([]string{"--env-file", filepath.Join(root, "missing.env")}, args...))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRunCommand_LocalBuild(t *testing.T) {
	root := setupLocalEnv(t)
	writeExport(t, root)

	out, err := execute(t, root, "run", writeJob(t, root))
	require.NoError(t, err)

	var rec receipt.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, receipt.StatusDeployed, rec.Status)
	assert.Equal(t, receipt.StatusDeployed, rec.Result)
	assert.Nil(t, rec.Error)
	assert.NotNil(t, rec.DeployedAt)

	site, err := os.ReadFile(filepath.Join(root, "local_output", "job-42", "index.html"))
	require.NoError(t, err)
	assert.Equal(t, "# Acme Gym", string(site))
}

func TestRunCommand_MissingExportFails(t *testing.T) {
	root := setupLocalEnv(t)

	out, err := execute(t, root, "run", writeJob(t, root))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "No snapshot files found")

	var rec receipt.Receipt
	require.NoError(t, json.Unmarshal([]byte(out), &rec))
	assert.Equal(t, receipt.StatusFailed, rec.Status)
	require.NotNil(t, rec.Error)
	assert.Contains(t, *rec.Error, "file://vertical-sites-prod/orgs/acme/verticals/gym/exports/exp-7")
}

func TestSplitOrigins(t *testing.T) {
	assert.Equal(t, []string{"https://a.example.com", "http://localhost:5173"},
		splitOrigins(" https://a.example.com, ,http://localhost:5173 "))
	assert.Nil(t, splitOrigins(""))
}
