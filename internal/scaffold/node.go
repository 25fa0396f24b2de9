package scaffold

import (
	"errors"
	"fmt"
	"path"
	"sort"
	"strings"

	"github.com/conneroisu/stencil/internal/validation"
)

// NodeKind distinguishes the three node variants.
type NodeKind int

const (
	KindRoot NodeKind = iota
	KindDirectory
	KindFile
)

// String returns the lower-case name of the kind.
func (k NodeKind) String() string {
	switch k {
	case KindRoot:
		return "root"
	case KindDirectory:
		return "directory"
	case KindFile:
		return "file"
	default:
		return "unknown"
	}
}

// Structural errors returned by tree mutations.
var (
	ErrFileContainer = errors.New("a file cannot have children")
	ErrRootChild     = errors.New("the root cannot be a child")
	ErrRootImmutable = errors.New("the root cannot be cloned or removed")
	ErrCycle         = errors.New("a node cannot be moved below itself")
	ErrNilNode       = errors.New("node is nil")
)

// Node is one element of a scaffold tree. Children are owned by their parent;
// the parent pointer is a back-reference used for path queries only.
type Node struct {
	kind     NodeKind
	name     string
	rendered string
	parent   *Node
	children []*Node

	template string            // file only: stable template reference
	inputs   map[string]string // file only: extra input name -> reference
	body     string            // file only: cached rendered body
}

// NewRoot creates the root of a new tree.
func NewRoot() *Node {
	return &Node{kind: KindRoot}
}

// NewDirectory creates a detached directory node.
func NewDirectory(name string) *Node {
	return &Node{kind: KindDirectory, name: name}
}

// NewFile creates a detached file node rendered from templateRef.
func NewFile(name, templateRef string) *Node {
	return &Node{kind: KindFile, name: name, template: templateRef}
}

// Kind returns the node variant.
func (n *Node) Kind() NodeKind { return n.kind }

// IsRoot reports whether n is a tree root.
func (n *Node) IsRoot() bool { return n.kind == KindRoot }

// IsFile reports whether n is a file.
func (n *Node) IsFile() bool { return n.kind == KindFile }

// IsDirectory reports whether n is a directory.
func (n *Node) IsDirectory() bool { return n.kind == KindDirectory }

// Name returns the raw (template) name.
func (n *Node) Name() string { return n.name }

// SetName replaces the raw name.
func (n *Node) SetName(name string) { n.name = name }

// RenderedName returns the name produced by the last validation run.
func (n *Node) RenderedName() string { return n.rendered }

// Parent returns the containing node or nil.
func (n *Node) Parent() *Node { return n.parent }

// Children returns a copy of the ordered child list.
func (n *Node) Children() []*Node {
	out := make([]*Node, len(n.children))
	copy(out, n.children)
	return out
}

// ChildCount returns the number of children.
func (n *Node) ChildCount() int { return len(n.children) }

// Template returns the template reference of a file node.
func (n *Node) Template() string { return n.template }

// SetTemplate replaces the template reference.
func (n *Node) SetTemplate(ref string) { n.template = ref }

// Inputs returns a copy of the extra named inputs.
func (n *Node) Inputs() map[string]string {
	out := make(map[string]string, len(n.inputs))
	for k, v := range n.inputs {
		out[k] = v
	}
	return out
}

// InputNames returns the extra input names in sorted order.
func (n *Node) InputNames() []string {
	names := make([]string, 0, len(n.inputs))
	for k := range n.inputs {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// SetInput binds an extra template input to a reference.
func (n *Node) SetInput(name, ref string) {
	if n.inputs == nil {
		n.inputs = make(map[string]string)
	}
	n.inputs[name] = ref
}

// RemoveInput drops an extra input.
func (n *Node) RemoveInput(name string) {
	delete(n.inputs, name)
}

// Body returns the cached rendered body of a file node.
func (n *Node) Body() string { return n.body }

// Root walks the parent chain to the top.
func (n *Node) Root() *Node {
	cur := n
	for cur.parent != nil {
		cur = cur.parent
	}
	return cur
}

// Path joins the raw names from below the root down to n.
func (n *Node) Path() string {
	if n.kind == KindRoot {
		return ""
	}
	var parts []string
	for cur := n; cur != nil && cur.kind != KindRoot; cur = cur.parent {
		parts = append([]string{cur.name}, parts...)
	}
	return path.Join(parts...)
}

// IndexOf returns the position of child or -1.
func (n *Node) IndexOf(child *Node) int {
	for i, c := range n.children {
		if c == child {
			return i
		}
	}
	return -1
}

// isAncestorOf reports whether n is other or one of its ancestors.
func (n *Node) isAncestorOf(other *Node) bool {
	for cur := other; cur != nil; cur = cur.parent {
		if cur == n {
			return true
		}
	}
	return false
}

func (n *Node) checkAttach(child *Node) error {
	switch {
	case child == nil:
		return ErrNilNode
	case n.kind == KindFile:
		return ErrFileContainer
	case child.kind == KindRoot:
		return ErrRootChild
	case child.isAncestorOf(n):
		return ErrCycle
	}
	return nil
}

func (n *Node) detach() {
	if n.parent == nil {
		return
	}
	p := n.parent
	if i := p.IndexOf(n); i >= 0 {
		p.children = append(p.children[:i], p.children[i+1:]...)
	}
	n.parent = nil
}

// AddChild appends child, detaching it from its previous parent first.
func (n *Node) AddChild(child *Node) error {
	if err := n.checkAttach(child); err != nil {
		return err
	}
	child.detach()
	child.parent = n
	n.children = append(n.children, child)
	return nil
}

// InsertChildrenRange moves nodes under n starting at index. Every node is
// checked before any is moved, so the operation either applies fully or not
// at all. For nodes already under n and positioned before index, the index
// is shifted so the batch lands where the caller pointed in the original
// ordering.
func (n *Node) InsertChildrenRange(index int, nodes []*Node) error {
	if index < 0 || index > len(n.children) {
		return fmt.Errorf("insert index %d out of range [0,%d]", index, len(n.children))
	}
	seen := make(map[*Node]bool, len(nodes))
	for _, c := range nodes {
		if err := n.checkAttach(c); err != nil {
			return err
		}
		if seen[c] {
			return fmt.Errorf("node %q listed twice", c.name)
		}
		seen[c] = true
	}

	adjusted := index
	for _, c := range nodes {
		if c.parent == n && n.IndexOf(c) < index {
			adjusted--
		}
	}

	for _, c := range nodes {
		c.detach()
	}

	tail := append([]*Node(nil), n.children[adjusted:]...)
	n.children = append(n.children[:adjusted], nodes...)
	n.children = append(n.children, tail...)
	for _, c := range nodes {
		c.parent = n
	}
	return nil
}

// RemoveChild detaches child and reports whether it was a child of n. The
// detached subtree keeps its own descendants.
func (n *Node) RemoveChild(child *Node) bool {
	if child == nil || child.parent != n {
		return false
	}
	child.detach()
	return true
}

// Clone returns a deep, detached copy of n.
func (n *Node) Clone() (*Node, error) {
	if n.kind == KindRoot {
		return nil, ErrRootImmutable
	}
	return n.clone(), nil
}

func (n *Node) clone() *Node {
	c := &Node{
		kind:     n.kind,
		name:     n.name,
		template: n.template,
	}
	if len(n.inputs) > 0 {
		c.inputs = n.Inputs()
	}
	for _, child := range n.children {
		cc := child.clone()
		cc.parent = c
		c.children = append(c.children, cc)
	}
	return c
}

// IsValid reports structural validity: a legal own name, unique raw sibling
// names, and valid children. Empty directories are allowed here.
func (n *Node) IsValid() bool {
	if n.kind != KindRoot && validation.ValidateFilename(literalName(n.name)) != nil {
		return false
	}
	names := make(map[string]bool, len(n.children))
	for _, c := range n.children {
		if names[c.name] {
			return false
		}
		names[c.name] = true
		if !c.IsValid() {
			return false
		}
	}
	return true
}

// literalName replaces each {{...}} action with a placeholder so only the
// literal text of a name is held to filename rules.
func literalName(name string) string {
	var b strings.Builder
	for {
		i := strings.Index(name, "{{")
		if i < 0 {
			break
		}
		j := strings.Index(name[i:], "}}")
		if j < 0 {
			break
		}
		b.WriteString(name[:i])
		b.WriteString("_")
		name = name[i+j+2:]
	}
	b.WriteString(name)
	return b.String()
}

// Walk visits n and its descendants depth-first, pre-order. Returning an
// error from fn stops the walk.
func (n *Node) Walk(fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.children {
		if err := c.Walk(fn); err != nil {
			return err
		}
	}
	return nil
}

// Find returns the first descendant whose raw path equals p.
func (n *Node) Find(p string) *Node {
	var found *Node
	_ = n.Walk(func(c *Node) error {
		if c.kind != KindRoot && c.Path() == p {
			found = c
			return errStop
		}
		return nil
	})
	return found
}

var errStop = errors.New("stop")
