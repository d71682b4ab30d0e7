// Package job defines the build request accepted by the worker.
package job

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
)

// LocalSite is the build target site that exports locally instead of publishing.
const LocalSite = "local"

// RequiredFields lists the payload fields intake insists on.
var RequiredFields = []string{
	"jobId",
	"env",
	"orgId",
	"verticalKey",
	"templateKey",
	"exportId",
	"buildTarget",
}

// BuildTarget is the destination of a build.
type BuildTarget struct {
	HostingProject   string `json:"hostingProject"`
	Site             string `json:"site"`
	AllowEnvOverride bool   `json:"allowEnvOverride,omitempty"`
}

// IsLocal reports whether the target is the local export destination.
func (t BuildTarget) IsLocal() bool { return t.Site == LocalSite }

// AllowsEnvOverride reports whether an environment mismatch is tolerated:
// only for local destinations that explicitly carry the override flag.
func (t BuildTarget) AllowsEnvOverride() bool { return t.IsLocal() && t.AllowEnvOverride }

// Description is one accepted build request. It is immutable once accepted.
type Description struct {
	JobID       string      `json:"jobId"`
	Env         string      `json:"env"`
	OrgID       string      `json:"orgId"`
	VerticalKey string      `json:"verticalKey"`
	TemplateKey string      `json:"templateKey"`
	ExportID    string      `json:"exportId"`
	BuildTarget BuildTarget `json:"buildTarget"`
}

// LockKey identifies the (organization, vertical) pair the job serializes on.
func (d *Description) LockKey() string {
	return d.OrgID + "/" + d.VerticalKey
}

// Decode parses a JSON payload into a Description, checking that every
// required field is present and that buildTarget is an object.
func Decode(data []byte) (*Description, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, berrors.WrapError(err, berrors.CategoryInvalid, "Payload must decode to an object").Build()
	}

	var missing []string
	for _, field := range RequiredFields {
		if _, ok := raw[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, berrors.Invalid("Missing required fields: %s", strings.Join(missing, ", "))
	}
	if bt := bytes.TrimSpace(raw["buildTarget"]); len(bt) == 0 || bt[0] != '{' {
		return nil, berrors.Invalid("buildTarget must be an object")
	}

	var d Description
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, berrors.Invalid("payload fields have the wrong type: %v", err)
	}
	return &d, nil
}

// Intake holds the runtime values a job is checked against at acceptance.
type Intake struct {
	Env            string
	HostingProject string
}

// Validate performs the acceptance checks. A job that fails here never
// reaches the orchestrator.
func (in Intake) Validate(d *Description) error {
	fields := []struct{ name, value string }{
		{"jobId", d.JobID},
		{"env", d.Env},
		{"orgId", d.OrgID},
		{"verticalKey", d.VerticalKey},
		{"templateKey", d.TemplateKey},
		{"exportId", d.ExportID},
	}
	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return berrors.Invalid("%s must not be empty", f.name)
		}
	}
	// These become document path segments, object prefixes and directory
	// names.
	for _, f := range []struct{ name, value string }{
		{"jobId", d.JobID},
		{"orgId", d.OrgID},
		{"verticalKey", d.VerticalKey},
		{"exportId", d.ExportID},
	} {
		if !validSegment(f.value) {
			return berrors.Invalid("%s %q is not a valid path segment", f.name, f.value)
		}
	}

	bt := d.BuildTarget
	if d.Env != in.Env && !bt.AllowsEnvOverride() {
		return berrors.Invalid("Environment mismatch: payload env=%s runtime env=%s", d.Env, in.Env)
	}
	if bt.HostingProject == "" {
		return berrors.Invalid("buildTarget must include hostingProject")
	}
	if bt.Site == "" {
		return berrors.Invalid("buildTarget must include site")
	}
	if !bt.IsLocal() && bt.HostingProject != in.HostingProject {
		return berrors.Invalid("buildTarget.hostingProject must match runtime hosting project for non-local deploys")
	}
	return nil
}

func validSegment(s string) bool {
	return !strings.ContainsAny(s, `/\`) && s != "." && s != ".."
}

// String renders the identifying fields for logs.
func (d *Description) String() string {
	return fmt.Sprintf("job=%s org=%s vertical=%s template=%s export=%s site=%s",
		d.JobID, d.OrgID, d.VerticalKey, d.TemplateKey, d.ExportID, d.BuildTarget.Site)
}
