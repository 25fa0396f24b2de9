package scaffold

import (
	"bytes"
	"fmt"

	"gopkg.in/yaml.v3"
)

// nodeDoc is the YAML form of one node. Exactly one of Directory and File is
// set.
type nodeDoc struct {
	Directory *string           `yaml:"directory,omitempty"`
	File      *string           `yaml:"file,omitempty"`
	Template  string            `yaml:"template,omitempty"`
	Inputs    map[string]string `yaml:"inputs,omitempty,flow"`
	Children  []nodeDoc         `yaml:"children,omitempty"`
}

// MarshalTree encodes the children of root as a YAML list of maps.
func MarshalTree(root *Node) ([]byte, error) {
	if root == nil {
		return nil, ErrNilNode
	}
	docs, err := encodeChildren(root)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(docs); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode tree: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeChildren(n *Node) ([]nodeDoc, error) {
	docs := make([]nodeDoc, 0, len(n.children))
	for _, c := range n.children {
		name := c.name
		doc := nodeDoc{}
		switch c.kind {
		case KindDirectory:
			doc.Directory = &name
			children, err := encodeChildren(c)
			if err != nil {
				return nil, err
			}
			doc.Children = children
		case KindFile:
			doc.File = &name
			doc.Template = c.template
			if len(c.inputs) > 0 {
				doc.Inputs = c.Inputs()
			}
		default:
			return nil, fmt.Errorf("unexpected %s node below the root", c.kind)
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// UnmarshalTree decodes a YAML list of maps into a new tree and returns its
// root. An empty document yields an empty root.
func UnmarshalTree(data []byte) (*Node, error) {
	root := NewRoot()
	if len(bytes.TrimSpace(data)) == 0 {
		return root, nil
	}

	var docs []nodeDoc
	if err := yaml.Unmarshal(data, &docs); err != nil {
		return nil, fmt.Errorf("failed to parse tree: %w", err)
	}
	if err := decodeChildren(root, docs, ""); err != nil {
		return nil, err
	}
	return root, nil
}

func decodeChildren(parent *Node, docs []nodeDoc, at string) error {
	for i, doc := range docs {
		where := fmt.Sprintf("%s[%d]", at, i)

		var child *Node
		switch {
		case doc.Directory != nil && doc.File != nil:
			return fmt.Errorf("%s: node cannot be both a directory and a file", where)
		case doc.Directory != nil:
			if doc.Template != "" || len(doc.Inputs) > 0 {
				return fmt.Errorf("%s: directory %q cannot have a template or inputs", where, *doc.Directory)
			}
			child = NewDirectory(*doc.Directory)
		case doc.File != nil:
			if len(doc.Children) > 0 {
				return fmt.Errorf("%s: file %q cannot have children", where, *doc.File)
			}
			child = NewFile(*doc.File, doc.Template)
			for k, v := range doc.Inputs {
				child.SetInput(k, v)
			}
		default:
			return fmt.Errorf("%s: node needs a directory or file key", where)
		}

		if err := parent.AddChild(child); err != nil {
			return fmt.Errorf("%s: %w", where, err)
		}
		if child.kind == KindDirectory {
			if err := decodeChildren(child, doc.Children, where+".children"); err != nil {
				return err
			}
		}
	}
	return nil
}
