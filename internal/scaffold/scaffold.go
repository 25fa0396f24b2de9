package scaffold

import (
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/conneroisu/stencil/internal/asset"
	"github.com/conneroisu/stencil/internal/prompt"
)

// InputField is one entry of a scaffold's default-input schema.
type InputField struct {
	Name        string `yaml:"name"`
	Label       string `yaml:"label,omitempty"`
	Default     string `yaml:"default,omitempty"`
	Description string `yaml:"description,omitempty"`
	Required    bool   `yaml:"required,omitempty"`
}

// Scaffold is a named tree that materializes into directories and files.
type Scaffold struct {
	Name string
	Root *Node

	// Schema lists the input values collected interactively when a
	// generation is requested without input. Nil means no schema.
	Schema []InputField

	// Dynamic scaffolds replace Root with the tree rendered from
	// StructureTemplate before every validation.
	Dynamic           bool
	StructureTemplate string

	Enabled     bool
	disabledFor []string
}

// New creates an enabled scaffold with an empty tree.
func New(name string) *Scaffold {
	return &Scaffold{Name: name, Root: NewRoot(), Enabled: true}
}

// HasSchema reports whether a default-input schema is configured.
func (s *Scaffold) HasSchema() bool {
	return len(s.Schema) > 0
}

// Fields converts the schema to form fields.
func (s *Scaffold) Fields() []prompt.Field {
	fields := make([]prompt.Field, len(s.Schema))
	for i, f := range s.Schema {
		label := f.Label
		if label == "" {
			label = f.Name
		}
		fields[i] = prompt.Field{
			Name:        f.Name,
			Label:       label,
			Default:     f.Default,
			Description: f.Description,
			Required:    f.Required,
		}
	}
	return fields
}

// DefaultInput builds an input value from the schema defaults.
func (s *Scaffold) DefaultInput() map[string]interface{} {
	input := make(map[string]interface{}, len(s.Schema))
	for _, f := range s.Schema {
		input[f.Name] = f.Default
	}
	return input
}

// EnabledFor reports whether the scaffold is offered for selection.
func (s *Scaffold) EnabledFor(selection string) bool {
	if !s.Enabled {
		return false
	}
	for _, d := range s.disabledFor {
		if asset.SamePath(d, selection) {
			return false
		}
	}
	return true
}

// DisableForSelection hides the scaffold for selection and reports whether
// anything changed.
func (s *Scaffold) DisableForSelection(selection string) bool {
	if selection == "" {
		return false
	}
	for _, d := range s.disabledFor {
		if asset.SamePath(d, selection) {
			return false
		}
	}
	s.disabledFor = append(s.disabledFor, selection)
	return true
}

// EnableForSelection undoes DisableForSelection.
func (s *Scaffold) EnableForSelection(selection string) bool {
	for i, d := range s.disabledFor {
		if asset.SamePath(d, selection) {
			s.disabledFor = append(s.disabledFor[:i], s.disabledFor[i+1:]...)
			return true
		}
	}
	return false
}

// DisabledFor returns the selections the scaffold is hidden for.
func (s *Scaffold) DisabledFor() []string {
	return append([]string(nil), s.disabledFor...)
}

type scaffoldDoc struct {
	Name              string       `yaml:"name"`
	Dynamic           bool         `yaml:"dynamic,omitempty"`
	StructureTemplate string       `yaml:"structure_template,omitempty"`
	Enabled           *bool        `yaml:"enabled,omitempty"`
	DisabledFor       []string     `yaml:"disabled_for,omitempty"`
	Schema            []InputField `yaml:"schema,omitempty"`
	Tree              []nodeDoc    `yaml:"tree,omitempty"`
}

// MarshalYAML implements yaml.Marshaler.
func (s *Scaffold) MarshalYAML() (interface{}, error) {
	doc := scaffoldDoc{
		Name:              s.Name,
		Dynamic:           s.Dynamic,
		StructureTemplate: s.StructureTemplate,
		DisabledFor:       s.disabledFor,
		Schema:            s.Schema,
	}
	if !s.Enabled {
		disabled := false
		doc.Enabled = &disabled
	}
	// A dynamic tree is rendered per validation and never saved.
	if s.Root != nil && !s.Dynamic {
		tree, err := encodeChildren(s.Root)
		if err != nil {
			return nil, err
		}
		doc.Tree = tree
	}
	return doc, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (s *Scaffold) UnmarshalYAML(value *yaml.Node) error {
	var doc scaffoldDoc
	if err := value.Decode(&doc); err != nil {
		return err
	}
	root := NewRoot()
	if err := decodeChildren(root, doc.Tree, doc.Name); err != nil {
		return err
	}

	*s = Scaffold{
		Name:              doc.Name,
		Root:              root,
		Schema:            doc.Schema,
		Dynamic:           doc.Dynamic,
		StructureTemplate: doc.StructureTemplate,
		Enabled:           doc.Enabled == nil || *doc.Enabled,
		disabledFor:       doc.DisabledFor,
	}
	return nil
}

// Collection is the ordered set of configured scaffolds.
type Collection struct {
	items []*Scaffold
}

// NewCollection creates a collection of scaffolds.
func NewCollection(items ...*Scaffold) *Collection {
	return &Collection{items: items}
}

// All returns the scaffolds in configuration order.
func (c *Collection) All() []*Scaffold {
	return append([]*Scaffold(nil), c.items...)
}

// Get finds a scaffold by name, ignoring case.
func (c *Collection) Get(name string) (*Scaffold, bool) {
	for _, s := range c.items {
		if strings.EqualFold(s.Name, name) {
			return s, true
		}
	}
	return nil, false
}

// Add appends s.
func (c *Collection) Add(s *Scaffold) {
	c.items = append(c.items, s)
}

// Remove drops the scaffold called name.
func (c *Collection) Remove(name string) bool {
	for i, s := range c.items {
		if strings.EqualFold(s.Name, name) {
			c.items = append(c.items[:i], c.items[i+1:]...)
			return true
		}
	}
	return false
}

// Available returns the names of the scaffolds enabled for selection, sorted.
func (c *Collection) Available(selection string) []string {
	var names []string
	for _, s := range c.items {
		if s.EnabledFor(selection) {
			names = append(names, s.Name)
		}
	}
	sort.Strings(names)
	return names
}

// MarshalYAML implements yaml.Marshaler.
func (c *Collection) MarshalYAML() (interface{}, error) {
	if c == nil {
		return []*Scaffold{}, nil
	}
	return c.items, nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (c *Collection) UnmarshalYAML(value *yaml.Node) error {
	var items []*Scaffold
	if err := value.Decode(&items); err != nil {
		return err
	}
	c.items = items
	return nil
}
