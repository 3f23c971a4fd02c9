package sources

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/xeipuuv/gojsonschema"
)

// sourcesSchema validates the shape of a sources file before decoding.
// Cross-field rules (selector adapters requiring item/title) are checked in
// SourceDefinition.Validate after decoding.
const sourcesSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "array",
  "items": {
    "type": "object",
    "required": ["id", "name", "base_url", "adapter"],
    "properties": {
      "id": {"type": "string", "minLength": 1},
      "name": {"type": "string", "minLength": 1},
      "base_url": {"type": "string", "minLength": 1},
      "company": {"type": "string"},
      "adapter": {"type": "string", "enum": ["selector", "workday", "greenhouse", "lever"]},
      "rules": {
        "type": "object",
        "properties": {
          "item": {"type": "string"},
          "title": {"type": "string"},
          "location": {"type": "string"},
          "description": {"type": "string"},
          "link": {"type": "string"},
          "posted_date": {"type": "string"}
        }
      },
      "enabled": {"type": "boolean"},
      "use_browser": {"type": "boolean"},
      "politeness_seconds": {"type": "integer", "minimum": 0}
    }
  }
}`

// SchemaError reports a sources file that failed schema validation.
type SchemaError struct {
	Path   string
	Issues []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("sources file %s failed validation: %v", e.Path, e.Issues)
}

// Registry holds the loaded source definitions. Reload swaps the whole set
// atomically; readers always see a consistent snapshot, and in-flight
// scrapes keep the definitions they started with.
type Registry struct {
	mu   sync.RWMutex
	defs map[string]SourceDefinition
	path string
}

// NewRegistry returns an empty registry. Use Load to populate it.
func NewRegistry() *Registry {
	return &Registry{defs: make(map[string]SourceDefinition)}
}

// Load reads, validates, and installs the definitions from a JSON file.
// On any error the previous set stays installed.
func (r *Registry) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read sources file %s: %w", path, err)
	}
	defs, err := parseDefinitions(path, data)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.defs = defs
	r.path = path
	r.mu.Unlock()
	return nil
}

// Reload re-reads the file from the last Load. New definitions apply to the
// next scheduling cycle; in-flight scrapes are unaffected.
func (r *Registry) Reload() error {
	r.mu.RLock()
	path := r.path
	r.mu.RUnlock()
	if path == "" {
		return fmt.Errorf("registry has no sources file to reload")
	}
	return r.Load(path)
}

func parseDefinitions(path string, data []byte) (map[string]SourceDefinition, error) {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(sourcesSchema),
		gojsonschema.NewBytesLoader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to validate sources file %s: %w", path, err)
	}
	if !result.Valid() {
		issues := make([]string, 0, len(result.Errors()))
		for _, desc := range result.Errors() {
			issues = append(issues, desc.String())
		}
		return nil, &SchemaError{Path: path, Issues: issues}
	}

	var list []SourceDefinition
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse sources file %s: %w", path, err)
	}

	defs := make(map[string]SourceDefinition, len(list))
	for _, def := range list {
		if err := def.Validate(); err != nil {
			return nil, err
		}
		if _, dup := defs[def.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q in %s", def.ID, path)
		}
		defs[def.ID] = def
	}
	return defs, nil
}

// Get returns the definition for an id, if present.
func (r *Registry) Get(id string) (SourceDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	def, ok := r.defs[id]
	return def, ok
}

// Enabled returns a snapshot of the enabled definitions, sorted by id so
// scheduling order is stable.
func (r *Registry) Enabled() []SourceDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceDefinition, 0, len(r.defs))
	for _, def := range r.defs {
		if def.Enabled {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Select returns the enabled definitions matching the given ids, or all
// enabled definitions when ids is empty.
func (r *Registry) Select(ids []string) []SourceDefinition {
	if len(ids) == 0 {
		return r.Enabled()
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]SourceDefinition, 0, len(ids))
	for _, id := range ids {
		if def, ok := r.defs[id]; ok && def.Enabled {
			out = append(out, def)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
