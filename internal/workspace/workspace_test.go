package workspace

import (
	"io/fs"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
)

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		p := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func readTree(t *testing.T, root string) map[string]string {
	t.Helper()
	out := map[string]string{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, _ := filepath.Rel(root, p)
		if d.IsDir() {
			out[filepath.ToSlash(rel)+"/"] = ""
			return nil
		}
		data, err := os.ReadFile(p)
		require.NoError(t, err)
		out[filepath.ToSlash(rel)] = string(data)
		return nil
	})
	require.NoError(t, err)
	return out
}

type fixture struct {
	snapshot  string
	assembler *Assembler
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	base := t.TempDir()
	snapshot := filepath.Join(base, "snapshot")
	writeTree(t, snapshot, map[string]string{
		"content/index.md":     "# home",
		"content/blog/post.md": "post",
		"data/site.json":       `{"name":"acme"}`,
		"manifest.json":        "{}",
	})
	themes := filepath.Join(base, "themes")
	writeTree(t, themes, map[string]string{
		"gymnastics/layouts/index.html": "<html></html>",
		"gymnastics/theme.toml":         `name = "gymnastics"`,
	})
	baseConfig := filepath.Join(base, "base-config.yaml")
	require.NoError(t, os.WriteFile(baseConfig, []byte("title: Acme\n"), 0o644))

	return fixture{
		snapshot:  snapshot,
		assembler: &Assembler{ThemesRoot: themes, BaseConfigPath: baseConfig},
	}
}

func gymJob() *job.Description {
	return &job.Description{JobID: "j1", TemplateKey: "gymnastics"}
}

func TestAssemble_Layout(t *testing.T) {
	f := newFixture(t)
	ws := filepath.Join(t.TempDir(), "workspace")

	require.NoError(t, f.assembler.Assemble(gymJob(), f.snapshot, ws))

	tree := readTree(t, ws)
	assert.Equal(t, "# home", tree["content/index.md"])
	assert.Equal(t, "post", tree["content/blog/post.md"])
	assert.Equal(t, `{"name":"acme"}`, tree["data/site.json"])
	assert.Contains(t, tree, "static/")
	assert.Equal(t, "<html></html>", tree["themes/gymnastics/layouts/index.html"])
	assert.Equal(t, "title: Acme\n", tree[ConfigFile])
	assert.NotContains(t, tree, "manifest.json")
}

func TestAssemble_Idempotent(t *testing.T) {
	f := newFixture(t)
	ws := filepath.Join(t.TempDir(), "workspace")

	require.NoError(t, f.assembler.Assemble(gymJob(), f.snapshot, ws))
	first := readTree(t, ws)

	require.NoError(t, os.RemoveAll(ws))
	require.NoError(t, f.assembler.Assemble(gymJob(), f.snapshot, ws))
	assert.Equal(t, first, readTree(t, ws))
}

func TestAssemble_UnsupportedTemplate(t *testing.T) {
	f := newFixture(t)
	ws := filepath.Join(t.TempDir(), "workspace")

	d := gymJob()
	d.TemplateKey = "ballet"
	err := f.assembler.Assemble(d, f.snapshot, ws)
	require.Error(t, err)
	assert.Equal(t, berrors.CategoryUnsupported, berrors.CategoryOf(err))
	assert.True(t, berrors.IsInvalidInput(err))
	assert.NoDirExists(t, ws)
}

func TestResolveTemplate_NotInstalled(t *testing.T) {
	_, err := ResolveTemplate(t.TempDir(), "gymnastics")
	require.Error(t, err)
	assert.Equal(t, berrors.CategoryUnsupported, berrors.CategoryOf(err))
	assert.Equal(t, []string{"gymnastics"}, KnownTemplates())
}
