// Package manifest loads an export's manifest.json and cross-checks it
// against the job that requested the build.
package manifest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
)

// FileName is the manifest's name at the snapshot root.
const FileName = "manifest.json"

// RequiredFields must be present at the top level of every manifest.
var RequiredFields = []string{
	"exportId",
	"orgId",
	"verticalKey",
	"templateKey",
	"env",
	"generatedAt",
	"sourceUpdatedAt",
	"contentHash",
	"assetHash",
	"files",
}

// RequiredFileCounts must be present in the files summary.
var RequiredFileCounts = []string{"markdownCount", "assetCount"}

// Manifest is the decoded manifest document. Fields beyond the required ones
// are preserved but not interpreted.
type Manifest map[string]any

// Load reads and parses root/manifest.json.
func Load(root string) (Manifest, error) {
	data, err := os.ReadFile(filepath.Join(root, FileName))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, berrors.NotFound("manifest.json not found in snapshot")
	}
	if err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryInternal, "failed to read manifest.json").Build()
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil || m == nil {
		return nil, berrors.NewError(berrors.CategoryInvalid, "manifest.json must be an object").
			WithContext("parse_error", fmt.Sprint(err)).
			Build()
	}
	return m, nil
}

// String returns the field rendered as text, the way it is compared.
func (m Manifest) String(field string) string {
	v, ok := m[field]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Validate checks presence of the required fields and compares the identity
// fields with d. Environment may differ only for a local build target that
// carries the override flag.
func Validate(m Manifest, d *job.Description) error {
	var missing []string
	for _, field := range RequiredFields {
		if _, ok := m[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return berrors.Invalid("manifest.json missing fields: %s", strings.Join(missing, ", "))
	}

	files, ok := m["files"].(map[string]any)
	if !ok {
		return berrors.Invalid("manifest.json field files must be an object")
	}
	for _, key := range RequiredFileCounts {
		if _, ok := files[key]; !ok {
			return berrors.Invalid("manifest.json missing files.%s", key)
		}
	}

	identity := []struct{ field, want string }{
		{"orgId", d.OrgID},
		{"verticalKey", d.VerticalKey},
		{"templateKey", d.TemplateKey},
		{"exportId", d.ExportID},
	}
	for _, f := range identity {
		if got := m.String(f.field); got != f.want {
			return berrors.Mismatch(f.field, got, f.want)
		}
	}

	if env := m.String("env"); env != d.Env && !d.BuildTarget.AllowsEnvOverride() {
		return berrors.Mismatch("env", env, d.Env)
	}
	return nil
}
