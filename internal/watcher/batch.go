package watcher

import (
	"github.com/conneroisu/stencil/internal/asset"
)

type pathState int

const (
	stateImported pathState = iota
	stateDeleted
	stateMoveSource
	stateMoveTarget
	stateGone
)

type batchBuilder struct {
	last    map[string]pathState
	moves   []asset.MovedPath
	movedTo map[string]int
	sourced map[string]int
}

// BuildBatch folds a debounce window of events into one change batch.
//
// A rename followed later in the window by a create is reported as a move,
// pairing them first in first out, and chained moves collapse into one.
// Renames left unpaired are deletions. Each path is reported once, by the
// last thing that happened to it.
func BuildBatch(events []ChangeEvent) asset.ChangeBatch {
	b := &batchBuilder{
		last:    make(map[string]pathState),
		movedTo: make(map[string]int),
		sourced: make(map[string]int),
	}
	var renamed []string

	for _, ev := range events {
		switch ev.Type {
		case EventTypeCreated:
			if len(renamed) > 0 {
				from := renamed[0]
				renamed = renamed[1:]
				if from != ev.Path && b.link(from, ev.Path) {
					continue
				}
			}
			b.last[ev.Path] = stateImported
		case EventTypeModified:
			if b.last[ev.Path] == stateMoveTarget {
				continue
			}
			b.last[ev.Path] = stateImported
		case EventTypeDeleted:
			b.last[ev.Path] = stateDeleted
		case EventTypeRenamed:
			renamed = append(renamed, ev.Path)
			b.last[ev.Path] = stateDeleted
		}
	}

	return b.finish(events)
}

// link records from being renamed to to. It reports false when the pair
// cannot be a move and to should count as a plain import.
func (b *batchBuilder) link(from, to string) bool {
	if i, ok := b.movedTo[from]; ok {
		delete(b.movedTo, from)
		b.last[from] = stateGone
		if b.moves[i].From == to {
			// moved back where it started
			delete(b.sourced, to)
			b.last[to] = stateImported
			return true
		}
		b.moves[i].To = to
		b.movedTo[to] = i
		b.last[to] = stateMoveTarget
		return true
	}
	if _, ok := b.sourced[from]; ok {
		return false
	}

	b.sourced[from] = len(b.moves)
	b.movedTo[to] = len(b.moves)
	b.moves = append(b.moves, asset.MovedPath{From: from, To: to})
	b.last[from] = stateMoveSource
	b.last[to] = stateMoveTarget
	return true
}

func (b *batchBuilder) finish(events []ChangeEvent) asset.ChangeBatch {
	var batch asset.ChangeBatch
	for i, m := range b.moves {
		j, sourced := b.sourced[m.From]
		source := sourced && j == i && b.last[m.From] == stateMoveSource
		k, targeted := b.movedTo[m.To]
		target := targeted && k == i && b.last[m.To] == stateMoveTarget
		switch {
		case source && target:
			batch.Moved = append(batch.Moved, m)
		case source:
			b.last[m.From] = stateDeleted
		case target:
			b.last[m.To] = stateImported
		}
	}

	seen := make(map[string]bool)
	report := func(p string) {
		if seen[p] {
			return
		}
		seen[p] = true
		switch b.last[p] {
		case stateImported:
			batch.Imported = append(batch.Imported, p)
		case stateDeleted:
			batch.Deleted = append(batch.Deleted, p)
		}
	}
	for _, ev := range events {
		report(ev.Path)
	}
	return batch
}
