// Package asset models file events in the managed content repository: the
// change kinds an entry can subscribe to, single changes, the batch delivered
// per notification round, and the id set used for cross-reload flags.
package asset

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ChangeType is a bitmask of the change kinds an entry subscribes to.
type ChangeType uint8

const (
	ChangeImport ChangeType = 1 << iota
	ChangeMove
	ChangeDelete

	ChangeNone ChangeType = 0
	ChangeAll             = ChangeImport | ChangeMove | ChangeDelete
)

// Has reports whether every bit of other is set in t.
func (t ChangeType) Has(other ChangeType) bool {
	return other != 0 && t&other == other
}

// String returns a "|"-joined list of the set change kinds.
func (t ChangeType) String() string {
	if t == ChangeNone {
		return "none"
	}
	var parts []string
	if t.Has(ChangeImport) {
		parts = append(parts, "import")
	}
	if t.Has(ChangeMove) {
		parts = append(parts, "move")
	}
	if t.Has(ChangeDelete) {
		parts = append(parts, "delete")
	}
	return strings.Join(parts, "|")
}

// ParseChangeTypes converts names such as "import" or "move" into a mask.
// Unknown names are reported through ok=false.
func ParseChangeTypes(names []string) (mask ChangeType, ok bool) {
	ok = true
	for _, name := range names {
		switch strings.ToLower(strings.TrimSpace(name)) {
		case "import":
			mask |= ChangeImport
		case "move":
			mask |= ChangeMove
		case "delete":
			mask |= ChangeDelete
		case "all":
			mask |= ChangeAll
		default:
			ok = false
		}
	}
	return mask, ok
}

// Names is the inverse of ParseChangeTypes.
func (t ChangeType) Names() []string {
	var names []string
	if t.Has(ChangeImport) {
		names = append(names, "import")
	}
	if t.Has(ChangeMove) {
		names = append(names, "move")
	}
	if t.Has(ChangeDelete) {
		names = append(names, "delete")
	}
	return names
}

// MarshalYAML writes the mask as a list of names.
func (t ChangeType) MarshalYAML() (interface{}, error) {
	names := t.Names()
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// UnmarshalYAML accepts a list of names or a single name.
func (t *ChangeType) UnmarshalYAML(value *yaml.Node) error {
	var names []string
	switch value.Kind {
	case yaml.ScalarNode:
		names = strings.Split(value.Value, ",")
	default:
		if err := value.Decode(&names); err != nil {
			return err
		}
	}
	mask, ok := ParseChangeTypes(names)
	if !ok {
		return fmt.Errorf("unknown change type in %v", names)
	}
	*t = mask
	return nil
}

// AssetChange is a single change relevant to one path.
type AssetChange struct {
	Type         ChangeType
	Path         string
	PreviousPath string // Move only
}

// MovedPath is a from/to pair reported by a move.
type MovedPath struct {
	From string
	To   string
}

// ChangeBatch groups the changes of one notification round.
type ChangeBatch struct {
	Imported []string
	Deleted  []string
	Moved    []MovedPath
}

// Empty reports whether the batch carries no changes.
func (b ChangeBatch) Empty() bool {
	return len(b.Imported) == 0 && len(b.Deleted) == 0 && len(b.Moved) == 0
}

// Touches reports whether any path of the batch equals path.
func (b ChangeBatch) Touches(path string) bool {
	if path == "" {
		return false
	}
	for _, p := range b.Imported {
		if SamePath(p, path) {
			return true
		}
	}
	for _, p := range b.Deleted {
		if SamePath(p, path) {
			return true
		}
	}
	for _, m := range b.Moved {
		if SamePath(m.From, path) || SamePath(m.To, path) {
			return true
		}
	}
	return false
}

// ChangesFor decomposes the batch into the changes that concern path,
// keeping only the kinds present in mask. A move matches when either end
// equals path.
func (b ChangeBatch) ChangesFor(path string, mask ChangeType) []AssetChange {
	if path == "" {
		return nil
	}

	var changes []AssetChange
	if mask.Has(ChangeImport) {
		for _, p := range b.Imported {
			if SamePath(p, path) {
				changes = append(changes, AssetChange{Type: ChangeImport, Path: p})
			}
		}
	}
	if mask.Has(ChangeDelete) {
		for _, p := range b.Deleted {
			if SamePath(p, path) {
				changes = append(changes, AssetChange{Type: ChangeDelete, Path: p})
			}
		}
	}
	if mask.Has(ChangeMove) {
		for _, m := range b.Moved {
			if SamePath(m.From, path) || SamePath(m.To, path) {
				changes = append(changes, AssetChange{Type: ChangeMove, Path: m.To, PreviousPath: m.From})
			}
		}
	}
	return changes
}
