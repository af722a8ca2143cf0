package policystore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/costgov/costgov/internal/pkg/logger"
)

func writePolicy(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

const validTagging = `
name: require-owner
kind: tagging
enabled: true
tagging:
  enforcement: audit
  required:
    - key: Owner
`

func TestLoader_Load(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "tagging.yaml", validTagging)
	writePolicy(t, dir, "multi.yml", `
name: office-hours
kind: shutdown
enabled: true
shutdown:
  schedule:
    timezone: UTC
    weekday:
      shutdown_time: "19:00"
      startup_time: "07:00"
---
name: stale-volumes
kind: cleanup
enabled: true
cleanup:
  require_unattached: true
  age_threshold: 720h
`)
	writePolicy(t, dir, "notes.txt", "not a policy")

	store, rejected, err := NewLoader(dir, logger.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rejected) != 0 {
		t.Fatalf("rejected = %v, want none", rejected)
	}
	if store.Len() != 3 {
		t.Errorf("Len = %d, want 3", store.Len())
	}
}

func TestLoader_BadDocumentDoesNotBlockOthers(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "good.yaml", validTagging)
	writePolicy(t, dir, "bad.yaml", `
name: broken
kind: nonsense
`)

	store, rejected, err := NewLoader(dir, logger.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rejected) != 1 {
		t.Fatalf("rejected = %v, want 1", rejected)
	}
	if store.Len() != 1 || store.Policies()[0].Name != "require-owner" {
		t.Errorf("valid policy must still load, got %d policies", store.Len())
	}
}

func TestLoader_DuplicateNamesRejected(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "a.yaml", validTagging)
	writePolicy(t, dir, "b.yaml", validTagging)

	store, rejected, err := NewLoader(dir, logger.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1 (second definition rejected)", store.Len())
	}
	if len(rejected) != 1 {
		t.Errorf("rejected = %v, want the duplicate", rejected)
	}
}

func TestLoader_EmptyDocumentsSkipped(t *testing.T) {
	dir := t.TempDir()
	writePolicy(t, dir, "sparse.yaml", "---\n"+validTagging+"\n---\n")

	store, rejected, err := NewLoader(dir, logger.Nop()).Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(rejected) != 0 || store.Len() != 1 {
		t.Errorf("got %d policies, %v rejected; want 1, none", store.Len(), rejected)
	}
}

func TestLoader_MissingDirectoryIsFatal(t *testing.T) {
	_, _, err := NewLoader(filepath.Join(t.TempDir(), "absent"), logger.Nop()).Load()
	if err == nil {
		t.Fatal("expected an error for an unreadable directory")
	}
}
