package scaffold

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(nodes []*Node) []string {
	out := make([]string, len(nodes))
	for i, n := range nodes {
		out[i] = n.Name()
	}
	return out
}

func TestAddChild(t *testing.T) {
	root := NewRoot()
	dir := NewDirectory("src")
	file := NewFile("main.go", "ref")

	require.NoError(t, root.AddChild(dir))
	require.NoError(t, dir.AddChild(file))

	assert.Equal(t, root, dir.Parent())
	assert.Equal(t, "src/main.go", file.Path())

	t.Run("file cannot contain", func(t *testing.T) {
		assert.ErrorIs(t, file.AddChild(NewDirectory("x")), ErrFileContainer)
	})
	t.Run("root cannot be a child", func(t *testing.T) {
		assert.ErrorIs(t, dir.AddChild(NewRoot()), ErrRootChild)
	})
	t.Run("no cycles", func(t *testing.T) {
		inner := NewDirectory("inner")
		require.NoError(t, dir.AddChild(inner))
		assert.ErrorIs(t, inner.AddChild(dir), ErrCycle)
		assert.ErrorIs(t, dir.AddChild(dir), ErrCycle)
	})
	t.Run("reparent detaches", func(t *testing.T) {
		other := NewDirectory("other")
		require.NoError(t, root.AddChild(other))
		require.NoError(t, other.AddChild(file))
		assert.Equal(t, -1, dir.IndexOf(file))
		assert.Equal(t, other, file.Parent())
	})
}

func TestInsertChildrenRange(t *testing.T) {
	build := func() (*Node, []*Node) {
		root := NewRoot()
		var kids []*Node
		for _, n := range []string{"a", "b", "c", "d"} {
			d := NewDirectory(n)
			require.NoError(t, root.AddChild(d))
			kids = append(kids, d)
		}
		return root, kids
	}

	t.Run("move forward within parent", func(t *testing.T) {
		root, kids := build()
		// Insert a and b before d: index 3 in the original ordering.
		require.NoError(t, root.InsertChildrenRange(3, []*Node{kids[0], kids[1]}))
		assert.Equal(t, []string{"c", "a", "b", "d"}, names(root.Children()))
	})

	t.Run("move backward within parent", func(t *testing.T) {
		root, kids := build()
		require.NoError(t, root.InsertChildrenRange(0, []*Node{kids[3]}))
		assert.Equal(t, []string{"d", "a", "b", "c"}, names(root.Children()))
	})

	t.Run("append at end", func(t *testing.T) {
		root, kids := build()
		require.NoError(t, root.InsertChildrenRange(4, []*Node{kids[0]}))
		assert.Equal(t, []string{"b", "c", "d", "a"}, names(root.Children()))
	})

	t.Run("from another parent", func(t *testing.T) {
		root, kids := build()
		f := NewFile("x.txt", "ref")
		require.NoError(t, kids[0].AddChild(f))
		require.NoError(t, kids[1].InsertChildrenRange(0, []*Node{f}))
		assert.Equal(t, 0, kids[0].ChildCount())
		assert.Equal(t, kids[1], f.Parent())
		assert.Equal(t, 4, root.ChildCount())
	})

	t.Run("atomic on failure", func(t *testing.T) {
		root, kids := build()
		err := root.InsertChildrenRange(0, []*Node{kids[3], NewRoot()})
		assert.ErrorIs(t, err, ErrRootChild)
		assert.Equal(t, []string{"a", "b", "c", "d"}, names(root.Children()))
	})

	t.Run("index out of range", func(t *testing.T) {
		root, kids := build()
		assert.Error(t, root.InsertChildrenRange(9, []*Node{kids[0]}))
	})
}

func TestRemoveChild(t *testing.T) {
	root := NewRoot()
	dir := NewDirectory("dir")
	file := NewFile("f", "ref")
	require.NoError(t, root.AddChild(dir))
	require.NoError(t, dir.AddChild(file))

	assert.False(t, root.RemoveChild(file))
	assert.True(t, root.RemoveChild(dir))

	assert.Nil(t, dir.Parent())
	assert.Equal(t, 0, root.ChildCount())
	// The detached subtree keeps its descendants.
	assert.Equal(t, dir, file.Parent())
	assert.Equal(t, "dir/f", file.Path())
}

func TestClone(t *testing.T) {
	root := NewRoot()
	_, err := root.Clone()
	assert.ErrorIs(t, err, ErrRootImmutable)

	dir := NewDirectory("dir")
	file := NewFile("f", "ref")
	file.SetInput("license", "lic-ref")
	require.NoError(t, root.AddChild(dir))
	require.NoError(t, dir.AddChild(file))

	clone, err := dir.Clone()
	require.NoError(t, err)

	assert.Nil(t, clone.Parent())
	require.Equal(t, 1, clone.ChildCount())
	cf := clone.Children()[0]
	assert.NotSame(t, file, cf)
	assert.Equal(t, "f", cf.Name())
	assert.Equal(t, "ref", cf.Template())
	assert.Equal(t, map[string]string{"license": "lic-ref"}, cf.Inputs())

	cf.SetInput("license", "changed")
	assert.Equal(t, "lic-ref", file.Inputs()["license"])
}

func TestIsValid(t *testing.T) {
	tests := []struct {
		name  string
		build func() *Node
		valid bool
	}{
		{
			name:  "empty root",
			build: NewRoot,
			valid: true,
		},
		{
			name: "empty directory is structurally valid",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewDirectory("empty"))
				return r
			},
			valid: true,
		},
		{
			name: "template names are legal",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewDirectory("Dir{{Input.name}}"))
				return r
			},
			valid: true,
		},
		{
			name: "pipelines and string literals inside actions",
			build: func() *Node {
				r := NewRoot()
				d := NewDirectory("{{Input.name | upper}}")
				_ = r.AddChild(d)
				_ = d.AddChild(NewFile(`{{printf "%s.txt" Input.name}}`, "ref"))
				return r
			},
			valid: true,
		},
		{
			name: "illegal text outside an action",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewFile("{{Input.name}}|x", "ref"))
				return r
			},
			valid: false,
		},
		{
			name: "unclosed action is checked literally",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewFile("{{Input.name | upper", "ref"))
				return r
			},
			valid: false,
		},
		{
			name: "illegal name",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewFile("a|b", "ref"))
				return r
			},
			valid: false,
		},
		{
			name: "duplicate sibling names",
			build: func() *Node {
				r := NewRoot()
				_ = r.AddChild(NewFile("same", "ref"))
				_ = r.AddChild(NewDirectory("same"))
				return r
			},
			valid: false,
		},
		{
			name: "invalid grandchild",
			build: func() *Node {
				r := NewRoot()
				d := NewDirectory("d")
				_ = r.AddChild(d)
				_ = d.AddChild(NewFile("", "ref"))
				return r
			},
			valid: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.valid, tt.build().IsValid())
		})
	}
}

func TestFindAndWalk(t *testing.T) {
	root := NewRoot()
	a := NewDirectory("a")
	b := NewFile("b", "ref")
	require.NoError(t, root.AddChild(a))
	require.NoError(t, a.AddChild(b))

	var visited []string
	require.NoError(t, root.Walk(func(n *Node) error {
		visited = append(visited, n.Kind().String()+":"+n.Path())
		return nil
	}))
	assert.Equal(t, []string{"root:", "directory:a", "file:a/b"}, visited)

	assert.Same(t, b, root.Find("a/b"))
	assert.Nil(t, root.Find("missing"))
}
