// Manifest loading (§4.E [ADD]): the sub-agent registry also accepts
// Definitions declared in a YAML file, sugar over the programmatic
// Definition{} literal rather than a replacement for it.
//
// Grounded on pipeline/frontmatter.go's Frontmatter struct (Name,
// Description, Tools, Model fields, `yaml:"..."` tags) and its
// LoadPrompt/ParsePrompt split between reading a file and parsing its
// bytes; adapted from one frontmatter block per pipeline step to a
// top-level YAML list of entries, since a sub-agent manifest names
// several independent sub-agents in one file rather than one step's
// metadata per file.
package subagent

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/package-register/deepagent-go/dagent/dagerr"
	"github.com/package-register/deepagent-go/dagent/model"
	"github.com/package-register/deepagent-go/dagent/tool"
)

// manifestEntry is one sub-agent's declarative form. Tools and Model name
// runtime objects a YAML file cannot construct directly; a Resolver
// supplies the actual instances those names refer to.
type manifestEntry struct {
	Name        string   `yaml:"name"`
	Description string   `yaml:"description"`
	Prompt      string   `yaml:"prompt"`
	Tools       []string `yaml:"tools"`
	Model       string   `yaml:"model"`
}

// Resolver supplies the runtime objects a YAML manifest can only name by
// string. Both maps are optional; a manifest entry naming something absent
// from them is a load error rather than a silently incomplete Definition.
type Resolver struct {
	Tools  map[string]tool.Tool
	Models map[string]model.Model
}

// LoadManifestFile reads path and parses it as a sub-agent manifest.
func LoadManifestFile(path string, resolver Resolver) ([]Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, dagerr.Wrap(dagerr.KindSubAgent, dagerr.CodeBadArguments, fmt.Errorf("read manifest %s: %w", path, err))
	}
	return LoadManifest(data, resolver)
}

// LoadManifest parses a YAML sub-agent manifest: a top-level list of
// entries, each with name/description/prompt/tools/model (§4.E). The
// programmatic Definition{} literal remains the primary construction
// path; this is declarative sugar over it for registries that want their
// sub-agents configured rather than compiled in.
func LoadManifest(data []byte, resolver Resolver) ([]Definition, error) {
	var entries []manifestEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, dagerr.Wrap(dagerr.KindSubAgent, dagerr.CodeBadArguments, fmt.Errorf("parse manifest: %w", err))
	}

	defs := make([]Definition, 0, len(entries))
	for _, e := range entries {
		if e.Name == "" {
			return nil, dagerr.New(dagerr.KindSubAgent, dagerr.CodeBadArguments, "manifest entry missing name")
		}
		def := Definition{
			Name:        e.Name,
			Description: e.Description,
			Prompt:      e.Prompt,
		}

		if e.Model != "" {
			m, ok := resolver.Models[e.Model]
			if !ok {
				return nil, dagerr.New(dagerr.KindSubAgent, dagerr.CodeBadArguments, "manifest %q: unknown model %q", e.Name, e.Model)
			}
			def.Model = m
		}

		for _, toolName := range e.Tools {
			t, ok := resolver.Tools[toolName]
			if !ok {
				return nil, dagerr.New(dagerr.KindSubAgent, dagerr.CodeBadArguments, "manifest %q: unknown tool %q", e.Name, toolName)
			}
			def.ExtraTools = append(def.ExtraTools, t)
		}

		defs = append(defs, def)
	}
	return defs, nil
}
