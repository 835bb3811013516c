package subagent_test

import (
	"context"
	"os"
	"testing"

	"github.com/package-register/deepagent-go/dagent/middleware/subagent"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/tool"
)

const sampleManifest = `
- name: researcher
  description: finds facts on the web
  prompt: you are a researcher
  tools: [search]
  model: fast
- name: writer
  description: drafts prose from notes
  prompt: you are a writer
`

func TestLoadManifestResolvesToolsAndModel(t *testing.T) {
	searchTool := tool.NewFunctionTool("search", "search the web",
		func(ctx context.Context, req *struct{ Query string }) (*struct{ Result string }, error) {
			return &struct{ Result string }{Result: "ok"}, nil
		})
	resolver := subagent.Resolver{
		Tools:  map[string]tool.Tool{"search": searchTool},
		Models: map[string]model.Model{"fast": &scriptedModel{}},
	}

	defs, err := subagent.LoadManifest([]byte(sampleManifest), resolver)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("defs = %d, want 2", len(defs))
	}

	r := defs[0]
	if r.Name != "researcher" || r.Description != "finds facts on the web" || r.Prompt != "you are a researcher" {
		t.Fatalf("researcher def = %+v", r)
	}
	if len(r.ExtraTools) != 1 || r.ExtraTools[0].Declaration().Name != "search" {
		t.Fatalf("researcher ExtraTools = %+v", r.ExtraTools)
	}
	if r.Model == nil {
		t.Fatalf("researcher Model not resolved")
	}

	w := defs[1]
	if w.Name != "writer" || w.Model != nil || len(w.ExtraTools) != 0 {
		t.Fatalf("writer def = %+v", w)
	}
}

func TestLoadManifestUnknownToolIsError(t *testing.T) {
	manifest := `
- name: researcher
  prompt: p
  tools: [nonexistent]
`
	_, err := subagent.LoadManifest([]byte(manifest), subagent.Resolver{})
	if err == nil {
		t.Fatalf("expected an error for an unresolvable tool name")
	}
}

func TestLoadManifestMissingNameIsError(t *testing.T) {
	manifest := `
- prompt: p
`
	_, err := subagent.LoadManifest([]byte(manifest), subagent.Resolver{})
	if err == nil {
		t.Fatalf("expected an error for a manifest entry without a name")
	}
}

func TestLoadManifestFileReadsFromDisk(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/subagents.yaml"
	if err := os.WriteFile(path, []byte("- name: solo\n  prompt: p\n"), 0o644); err != nil {
		t.Fatalf("seed manifest: %v", err)
	}
	defs, err := subagent.LoadManifestFile(path, subagent.Resolver{})
	if err != nil {
		t.Fatalf("LoadManifestFile: %v", err)
	}
	if len(defs) != 1 || defs[0].Name != "solo" {
		t.Fatalf("defs = %+v", defs)
	}
}
