package voicebank

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/iancoleman/orderedmap"

	"github.com/kokotools/kokoctl/pkg/torchpt"
)

// Registry is the voice registry document: an ordered mapping from voice
// id to its embedding as nested float arrays. Serialization is compact
// JSON with keys in insertion order, matching what downstream consumers
// of data/voices.json expect.
type Registry struct {
	doc *orderedmap.OrderedMap
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{doc: orderedmap.New()}
}

// Add stores a decoded embedding under the voice id. An existing entry is
// replaced.
func (r *Registry) Add(voice string, t *torchpt.Tensor) {
	r.doc.Set(voice, t.Nested())
}

// Voices returns the voice ids in insertion order.
func (r *Registry) Voices() []string {
	return r.doc.Keys()
}

// Len returns the number of voices in the registry.
func (r *Registry) Len() int {
	return len(r.doc.Keys())
}

// Embedding returns the nested-array embedding for a voice.
func (r *Registry) Embedding(voice string) (any, bool) {
	return r.doc.Get(voice)
}

// Shape returns the nested-array shape of a voice's embedding, or nil if
// the voice is absent.
func (r *Registry) Shape(voice string) []int {
	v, ok := r.doc.Get(voice)
	if !ok {
		return nil
	}
	return shapeOf(v)
}

func shapeOf(v any) []int {
	switch x := v.(type) {
	case []any:
		if len(x) == 0 {
			return []int{0}
		}
		return append([]int{len(x)}, shapeOf(x[0])...)
	case []float32:
		return []int{len(x)}
	default:
		return nil
	}
}

// MarshalJSON serializes the registry as one compact JSON object.
func (r *Registry) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.doc)
}

// UnmarshalJSON parses a registry document, preserving key order.
func (r *Registry) UnmarshalJSON(data []byte) error {
	om := orderedmap.New()
	if err := json.Unmarshal(data, om); err != nil {
		return err
	}
	r.doc = om
	return nil
}

// WriteFile writes the registry to path as compact JSON. The parent
// directory is created if absent and an existing file is overwritten. The
// document is staged in a temp file and renamed so a failed run never
// leaves a truncated registry behind.
func (r *Registry) WriteFile(path string) error {
	data, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal registry: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".voices-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("write registry: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace %s: %w", path, err)
	}
	return nil
}

// ReadFile loads a registry document written by WriteFile.
func ReadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry: %w", err)
	}
	reg := NewRegistry()
	if err := json.Unmarshal(data, reg); err != nil {
		return nil, fmt.Errorf("parse registry %s: %w", path, err)
	}
	return reg, nil
}
