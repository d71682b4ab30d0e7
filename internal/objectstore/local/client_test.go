package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alphauslabs/verticalbuilder/internal/objectstore"
)

func TestProvider_ListAndDownload(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, "bucket", "orgs", "acme", "exports", "e1")
	require.NoError(t, os.MkdirAll(filepath.Join(base, "content"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(base, "empty"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(base, "content", "a.md"), []byte("# a"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bucket", "other.txt"), []byte("x"), 0o644))

	p, err := objectstore.NewProvider(context.Background(), objectstore.ProviderConfig{Provider: "local", LocalRoot: root})
	require.NoError(t, err)
	defer p.Close()

	names, err := p.List(context.Background(), "bucket", "orgs/acme/exports/e1/")
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		"orgs/acme/exports/e1/content/a.md",
		"orgs/acme/exports/e1/empty/",
	}, names)

	dest := filepath.Join(t.TempDir(), "a.md")
	require.NoError(t, p.Download(context.Background(), "bucket", "orgs/acme/exports/e1/content/a.md", dest))
	data, err := os.ReadFile(dest)
	require.NoError(t, err)
	assert.Equal(t, "# a", string(data))
}

func TestProvider_MissingBucketListsNothing(t *testing.T) {
	p := &Provider{Root: t.TempDir()}
	names, err := p.List(context.Background(), "nope", "x/")
	require.NoError(t, err)
	assert.Empty(t, names)
}

func TestNewProvider_Unregistered(t *testing.T) {
	_, err := objectstore.NewProvider(context.Background(), objectstore.ProviderConfig{Provider: "azure"})
	assert.Error(t, err)
	assert.Contains(t, objectstore.Registered(), "local")
}
