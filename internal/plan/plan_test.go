package plan

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alphauslabs/verticalbuilder/internal/config"
	berrors "github.com/alphauslabs/verticalbuilder/internal/errors"
	"github.com/alphauslabs/verticalbuilder/internal/job"
)

func testConfig(root string) *config.Config {
	return &config.Config{
		Env:             "prod",
		HostingProject:  "sites-prod",
		ExportBucket:    "vertical-sites-prod",
		WorkspaceRoot:   filepath.Join(root, "workspaces"),
		LocalOutputRoot: filepath.Join(root, "local_output"),
		ObjectStore:     config.ObjectStoreConfig{Provider: "gcs"},
	}
}

func testJob(site, project string) *job.Description {
	return &job.Description{
		JobID:       "j1",
		Env:         "prod",
		OrgID:       "acme",
		VerticalKey: "gym",
		TemplateKey: "gymnastics",
		ExportID:    "e1",
		BuildTarget: job.BuildTarget{HostingProject: project, Site: site},
	}
}

// ─── Resolve() ──────────────────────────────────────────────────────────────

func TestResolve_Hosting(t *testing.T) {
	cfg := testConfig("/srv")
	p, err := Resolve(testJob("acme-gym", "sites-prod"), cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if p.Destination != DestinationHosting {
		t.Errorf("destination: got %s, want HOSTING", p.Destination)
	}
	if got, want := p.Snapshot.String(), "gs://vertical-sites-prod/orgs/acme/verticals/gym/exports/e1"; got != want {
		t.Errorf("snapshot: got %q, want %q", got, want)
	}
	if got, want := p.SnapshotDir, filepath.Join("/srv", "workspaces", "j1", "snapshot"); got != want {
		t.Errorf("SnapshotDir: got %q, want %q", got, want)
	}
	if got, want := p.WorkspaceDir, filepath.Join("/srv", "workspaces", "j1", "workspace"); got != want {
		t.Errorf("WorkspaceDir: got %q, want %q", got, want)
	}
	if p.ExportDir != "" {
		t.Errorf("ExportDir must be empty for hosting destinations, got %q", p.ExportDir)
	}
	if !strings.Contains(p.Summary, "destination=HOSTING") {
		t.Errorf("Summary missing destination: %q", p.Summary)
	}
}

func TestResolve_LocalAllowsForeignProject(t *testing.T) {
	cfg := testConfig("/srv")
	cfg.ObjectStore.Provider = "minio"
	p, err := Resolve(testJob(job.LocalSite, "someone-else"), cfg)
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	if p.Destination != DestinationLocal {
		t.Errorf("destination: got %s, want LOCAL", p.Destination)
	}
	if got, want := p.ExportDir, filepath.Join("/srv", "local_output", "j1"); got != want {
		t.Errorf("ExportDir: got %q, want %q", got, want)
	}
	if p.Snapshot.Scheme != "s3" {
		t.Errorf("scheme: got %q, want s3", p.Snapshot.Scheme)
	}
}

func TestResolve_BuildTargetErrors(t *testing.T) {
	tests := []struct {
		name     string
		site     string
		project  string
		category berrors.Category
		contains string
	}{
		{"foreign project", "acme-gym", "other-project", berrors.CategoryMismatch, "buildTarget.hostingProject"},
		{"missing project", "acme-gym", "", berrors.CategoryInvalid, "hostingProject"},
		{"missing site", "", "sites-prod", berrors.CategoryInvalid, "site"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Resolve(testJob(tt.site, tt.project), testConfig("/srv"))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := berrors.CategoryOf(err); got != tt.category {
				t.Errorf("category: got %s, want %s", got, tt.category)
			}
			if !strings.Contains(err.Error(), tt.contains) {
				t.Errorf("error %q does not mention %q", err, tt.contains)
			}
		})
	}
}

// ─── Prepare() ──────────────────────────────────────────────────────────────

func TestPrepare_ClearsPreviousAttempt(t *testing.T) {
	p, err := Resolve(testJob("acme-gym", "sites-prod"), testConfig(t.TempDir()))
	if err != nil {
		t.Fatalf("Resolve() error: %v", err)
	}
	stale := filepath.Join(p.WorkspaceDir, "public", "old.html")
	if err := os.MkdirAll(filepath.Dir(stale), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(stale, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}

	if err := p.Prepare(); err != nil {
		t.Fatalf("Prepare() error: %v", err)
	}
	if _, err := os.Stat(stale); !os.IsNotExist(err) {
		t.Errorf("stale output survived Prepare: %v", err)
	}
	for _, dir := range []string{p.SnapshotDir, p.WorkspaceDir} {
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			t.Errorf("%s not created: %v", dir, err)
		}
	}
}
