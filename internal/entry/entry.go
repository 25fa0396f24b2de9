// Package entry implements incrementally re-rendered entries: an input
// asset, a template and an output file, kept in sync as the project changes.
package entry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/repository"
)

// Variant describes one kind of entry input. Variants are registered
// explicitly; an entry names its variant by Kind.
type Variant struct {
	// Kind is the identifier stored in settings.
	Kind string
	// Slot is the name the input is exposed under in templates.
	Slot string
	// Changes is the default subscription of new entries.
	Changes asset.ChangeType
	// Decode turns the loaded input asset into a template value.
	Decode func(res *repository.Resource) (interface{}, error)
}

var (
	variantsMu sync.RWMutex
	variants   = map[string]Variant{}
)

// RegisterVariant adds v to the process-wide variant table.
func RegisterVariant(v Variant) error {
	if v.Kind == "" || v.Slot == "" || v.Decode == nil {
		return fmt.Errorf("variant needs a kind, a slot and a decoder")
	}
	variantsMu.Lock()
	defer variantsMu.Unlock()
	if _, ok := variants[v.Kind]; ok {
		return fmt.Errorf("variant %q is already registered", v.Kind)
	}
	variants[v.Kind] = v
	return nil
}

// LookupVariant returns the registered variant called kind.
func LookupVariant(kind string) (Variant, bool) {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	v, ok := variants[kind]
	return v, ok
}

// Variants lists the registered variant kinds, sorted.
func Variants() []string {
	variantsMu.RLock()
	defer variantsMu.RUnlock()
	kinds := make([]string, 0, len(variants))
	for k := range variants {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)
	return kinds
}

func init() {
	for _, v := range []Variant{
		{
			Kind:    "text",
			Slot:    "variable",
			Changes: asset.ChangeAll,
			Decode: func(res *repository.Resource) (interface{}, error) {
				return string(res.Content), nil
			},
		},
		{
			Kind:    "data",
			Slot:    "data",
			Changes: asset.ChangeAll,
			Decode: func(res *repository.Resource) (interface{}, error) {
				var v map[string]interface{}
				if err := yaml.Unmarshal(res.Content, &v); err != nil {
					return nil, fmt.Errorf("failed to decode %s: %w", res.Path, err)
				}
				if v == nil {
					v = map[string]interface{}{}
				}
				return v, nil
			},
		},
	} {
		if err := RegisterVariant(v); err != nil {
			panic(err)
		}
	}
}

// Input is the single input slot of an entry.
type Input struct {
	Variant string `yaml:"variant" validate:"required,variant"`
	Ref     string `yaml:"ref" validate:"required"`
}

// Entry renders Template with Input into OutputDir/Filename.
type Entry struct {
	ID        string           `yaml:"id" validate:"required,uuid"`
	Template  string           `yaml:"template" validate:"required"`
	OutputDir string           `yaml:"output_dir" validate:"required"`
	Filename  string           `yaml:"filename" validate:"required,filename"`
	Input     Input            `yaml:"input"`
	Changes   asset.ChangeType `yaml:"changes"`
	Deferred  bool             `yaml:"deferred,omitempty"`
}

// New creates an entry with a fresh id, subscribed to the variant defaults.
func New(templateRef, outputDirRef, filename string, input Input) *Entry {
	e := &Entry{
		ID:        uuid.NewString(),
		Template:  templateRef,
		OutputDir: outputDirRef,
		Filename:  filename,
		Input:     input,
	}
	if v, ok := LookupVariant(input.Variant); ok {
		e.Changes = v.Changes
	}
	return e
}

// Clone returns a copy of e.
func (e *Entry) Clone() *Entry {
	c := *e
	return &c
}

// Collection is the ordered list of configured entries.
type Collection struct {
	items []*Entry
}

// NewCollection creates a collection.
func NewCollection(items ...*Entry) *Collection {
	return &Collection{items: items}
}

// All returns the entries in configuration order.
func (c *Collection) All() []*Entry {
	return append([]*Entry(nil), c.items...)
}

// Len returns the number of entries.
func (c *Collection) Len() int { return len(c.items) }

// Get finds an entry by id. A unique id prefix of at least four characters
// also matches.
func (c *Collection) Get(id string) (*Entry, bool) {
	for _, e := range c.items {
		if e.ID == id {
			return e, true
		}
	}
	if len(id) < 4 {
		return nil, false
	}
	var found *Entry
	for _, e := range c.items {
		if strings.HasPrefix(e.ID, id) {
			if found != nil {
				return nil, false
			}
			found = e
		}
	}
	return found, found != nil
}

// Add appends e.
func (c *Collection) Add(e *Entry) { c.items = append(c.items, e) }

// Replace swaps the entry with e.ID for e.
func (c *Collection) Replace(e *Entry) bool {
	for i, cur := range c.items {
		if cur.ID == e.ID {
			c.items[i] = e
			return true
		}
	}
	return false
}

// Remove drops the entry with id.
func (c *Collection) Remove(id string) bool {
	for i, e := range c.items {
		if e.ID == id {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// MarshalYAML implements yaml.Marshaler.
func (c *Collection) MarshalYAML() (interface{}, error) {
	if c == nil {
		return []*Entry{}, nil
	}
	return c.items, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Collection) UnmarshalYAML(value *yaml.Node) error {
	var items []*Entry
	if err := value.Decode(&items); err != nil {
		return err
	}
	c.items = items
	return nil
}
