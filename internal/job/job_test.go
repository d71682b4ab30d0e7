package job

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
)

const validPayload = `{
	"jobId": "j1",
	"env": "staging",
	"orgId": "acme",
	"verticalKey": "gym",
	"templateKey": "gymnastics",
	"exportId": "e1",
	"buildTarget": {"hostingProject": "sites-staging", "site": "acme-gym"}
}`

var intake = Intake{Env: "staging", HostingProject: "sites-staging"}

func TestDecode_Valid(t *testing.T) {
	d, err := Decode([]byte(validPayload))
	require.NoError(t, err)

	assert.Equal(t, "j1", d.JobID)
	assert.Equal(t, "acme/gym", d.LockKey())
	assert.Equal(t, "acme-gym", d.BuildTarget.Site)
	assert.False(t, d.BuildTarget.IsLocal())
	assert.NoError(t, intake.Validate(d))
}

func TestDecode_MissingFields(t *testing.T) {
	_, err := Decode([]byte(`{"jobId": "j1", "env": "staging"}`))
	require.Error(t, err)
	assert.True(t, berrors.IsInvalidInput(err))
	assert.Contains(t, err.Error(), "orgId, verticalKey, templateKey, exportId, buildTarget")
}

func TestDecode_BuildTargetNotObject(t *testing.T) {
	_, err := Decode([]byte(`{"jobId":"j","env":"e","orgId":"o","verticalKey":"v","templateKey":"t","exportId":"x","buildTarget":"local"}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "buildTarget must be an object")
}

func TestDecode_NotAnObject(t *testing.T) {
	_, err := Decode([]byte(`[1,2]`))
	require.Error(t, err)
	assert.True(t, berrors.IsInvalidInput(err))
}

func TestIntakeValidate(t *testing.T) {
	base := func() *Description {
		d, err := Decode([]byte(validPayload))
		require.NoError(t, err)
		return d
	}

	tests := []struct {
		name    string
		mutate  func(*Description)
		wantErr string
	}{
		{"env mismatch", func(d *Description) { d.Env = "prod" }, "Environment mismatch"},
		{"env override needs local", func(d *Description) {
			d.Env = "prod"
			d.BuildTarget.AllowEnvOverride = true
		}, "Environment mismatch"},
		{"missing hosting project", func(d *Description) { d.BuildTarget.HostingProject = "" }, "hostingProject"},
		{"missing site", func(d *Description) { d.BuildTarget.Site = "" }, "must include site"},
		{"foreign project", func(d *Description) { d.BuildTarget.HostingProject = "other" }, "must match runtime hosting project"},
		{"empty org", func(d *Description) { d.OrgID = " " }, "orgId must not be empty"},
		{"job id with slash", func(d *Description) { d.JobID = "../x" }, `jobId "../x" is not a valid path segment`},
		{"org id with slash", func(d *Description) { d.OrgID = "acme/verticalBuildLocks" }, `orgId "acme/verticalBuildLocks" is not a valid path segment`},
		{"vertical key with backslash", func(d *Description) { d.VerticalKey = `gym\x` }, "verticalKey"},
		{"vertical key dot-dot", func(d *Description) { d.VerticalKey = ".." }, `verticalKey ".." is not a valid path segment`},
		{"export id with slash", func(d *Description) { d.ExportID = "e1/../e2" }, "exportId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base()
			tt.mutate(d)
			err := intake.Validate(d)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestIntakeValidate_LocalOverride(t *testing.T) {
	d, err := Decode([]byte(validPayload))
	require.NoError(t, err)
	d.Env = "prod"
	d.BuildTarget = BuildTarget{HostingProject: "anything", Site: LocalSite, AllowEnvOverride: true}

	assert.NoError(t, intake.Validate(d))
	assert.True(t, d.BuildTarget.AllowsEnvOverride())
}
