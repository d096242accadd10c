package catalog

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"plannerd/pkg/goap"
)

const sampleCatalogue = `
version: 1
actions:
  - id: read_file
    agent_role: coder
    description: Read the target file
    preconditions:
      file_known: false
    effects:
      file_known: true
    cost: 1.0
    duration_estimate: "2s"
  - id: edit_file
    agent_role: coder
    description: Edit the target file
    preconditions:
      file_known: true
    effects:
      file_edited: true
`

func TestParseCatalogue(t *testing.T) {
	actions, err := Parse([]byte(sampleCatalogue))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(actions) != 2 {
		t.Fatalf("got %d actions, want 2", len(actions))
	}

	read := actions[0]
	if read.ID != "read_file" || read.AgentRole != "coder" {
		t.Errorf("unexpected identity: %q role %q", read.ID, read.AgentRole)
	}
	if !read.Preconditions["file_known"].Equal(goap.Bool(false)) {
		t.Errorf("precondition not typed as bool: %v", read.Preconditions["file_known"])
	}
	if read.Cost != 1.0 {
		t.Errorf("cost = %v, want 1.0", read.Cost)
	}
	if read.DurationEstimate != "2s" {
		t.Errorf("duration = %q", read.DurationEstimate)
	}

	// edit_file omits cost entirely and must pick up the 1.0 default.
	if actions[1].Cost != 1.0 {
		t.Errorf("defaulted cost = %v, want 1.0", actions[1].Cost)
	}
}

func TestParseCatalogueRejects(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			"duplicate id",
			"actions:\n  - id: a\n  - id: a\n",
			"duplicate action id",
		},
		{
			"missing id",
			"actions:\n  - agent_role: coder\n",
			"missing id",
		},
		{
			"negative cost",
			"actions:\n  - id: a\n    cost: -1\n",
			"non-negative",
		},
		{
			"fractional fact value",
			"actions:\n  - id: a\n    effects:\n      progress: 0.5\n",
			"fractional",
		},
		{
			"nested fact value",
			"actions:\n  - id: a\n    preconditions:\n      nested:\n        x: 1\n",
			"string, int, or bool",
		},
		{
			"not yaml",
			"{{{{",
			"parse catalogue",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected error, got none")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error %q does not mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestParseCatalogueZeroCost(t *testing.T) {
	actions, err := Parse([]byte("actions:\n  - id: free\n    cost: 0\n"))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if actions[0].Cost != 0 {
		t.Errorf("explicit zero cost = %v, want 0", actions[0].Cost)
	}
}

func TestLoadDirOrdersLexically(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) {
		t.Helper()
		if err := os.WriteFile(filepath.Join(dir, name), []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("20-later.yaml", "actions:\n  - id: beta\n")
	write("10-first.yaml", "actions:\n  - id: alpha\n")
	write("notes.txt", "not a catalogue")

	actions, err := LoadDir(dir)
	if err != nil {
		t.Fatalf("LoadDir failed: %v", err)
	}
	if len(actions) != 2 || actions[0].ID != "alpha" || actions[1].ID != "beta" {
		ids := make([]string, len(actions))
		for i, a := range actions {
			ids[i] = a.ID
		}
		t.Fatalf("order = %v, want [alpha beta]", ids)
	}
}

func TestLoadDirCrossFileDuplicate(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte("actions:\n  - id: dup\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte("actions:\n  - id: dup\n"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadDir(dir); err == nil || !strings.Contains(err.Error(), "already defined") {
		t.Fatalf("cross-file duplicate not rejected: %v", err)
	}
}
