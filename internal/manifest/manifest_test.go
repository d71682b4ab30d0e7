package manifest

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
)

func validManifest() Manifest {
	return Manifest{
		"exportId":        "e1",
		"orgId":           "acme",
		"verticalKey":     "gym",
		"templateKey":     "gymnastics",
		"env":             "prod",
		"generatedAt":     "2026-01-01T00:00:00Z",
		"sourceUpdatedAt": "2026-01-01T00:00:00Z",
		"contentHash":     "abc",
		"assetHash":       "def",
		"files":           map[string]any{"markdownCount": 3.0, "assetCount": 1.0},
	}
}

func testJob() *job.Description {
	return &job.Description{
		JobID:       "j1",
		Env:         "prod",
		OrgID:       "acme",
		VerticalKey: "gym",
		TemplateKey: "gymnastics",
		ExportID:    "e1",
		BuildTarget: job.BuildTarget{HostingProject: "p", Site: "acme-gym"},
	}
}

func TestLoad(t *testing.T) {
	root := t.TempDir()
	_, err := Load(root)
	assert.True(t, berrors.IsNotFound(err))

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`[1,2]`), 0o644))
	_, err = Load(root)
	assert.True(t, berrors.IsInvalidInput(err))

	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), []byte(`null`), 0o644))
	_, err = Load(root)
	assert.True(t, berrors.IsInvalidInput(err))

	data, err := json.Marshal(validManifest())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(root, FileName), data, 0o644))
	m, err := Load(root)
	require.NoError(t, err)
	assert.Equal(t, "acme", m.String("orgId"))
}

func TestValidate_Matches(t *testing.T) {
	assert.NoError(t, Validate(validManifest(), testJob()))
}

func TestValidate_IdentityMismatch(t *testing.T) {
	tests := []struct {
		field string
		value string
	}{
		{"orgId", "other"},
		{"verticalKey", "dance"},
		{"templateKey", "classic"},
		{"exportId", "e2"},
	}
	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			m := validManifest()
			m[tt.field] = tt.value
			err := Validate(m, testJob())
			require.Error(t, err)
			assert.Equal(t, berrors.CategoryMismatch, berrors.CategoryOf(err))
			assert.Contains(t, err.Error(), "mismatch for "+tt.field)
			assert.Contains(t, err.Error(), "manifest="+tt.value)
		})
	}
}

func TestValidate_EnvOverride(t *testing.T) {
	staging := testJob()
	staging.Env = "staging"
	staging.BuildTarget = job.BuildTarget{HostingProject: "p", Site: job.LocalSite, AllowEnvOverride: true}
	assert.NoError(t, Validate(validManifest(), staging))

	staging.BuildTarget.AllowEnvOverride = false
	err := Validate(validManifest(), staging)
	require.Error(t, err)
	assert.Equal(t, "manifest.json mismatch for env: manifest=prod payload=staging", err.Error())

	remote := testJob()
	remote.Env = "staging"
	remote.BuildTarget.AllowEnvOverride = true
	assert.Error(t, Validate(validManifest(), remote))
}

func TestValidate_RequiredFields(t *testing.T) {
	m := validManifest()
	delete(m, "contentHash")
	delete(m, "assetHash")
	err := Validate(m, testJob())
	require.Error(t, err)
	assert.Equal(t, "manifest.json missing fields: contentHash, assetHash", err.Error())

	m = validManifest()
	m["files"] = "many"
	assert.ErrorContains(t, Validate(m, testJob()), "files must be an object")

	m = validManifest()
	m["files"] = map[string]any{"markdownCount": 1.0}
	assert.ErrorContains(t, Validate(m, testJob()), "files.assetCount")
}
