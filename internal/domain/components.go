package domain

import (
	"fmt"
	"reflect"

	"github.com/samber/lo"
)

// Components is the ordered component sequence of a document.
// Every edit returns a new slice; nodes and their maps are never mutated in
// place, so older snapshots held by the history engine stay valid and can
// share untouched nodes with newer ones.
type Components []ComponentNode

// Len returns the number of nodes.
func (c Components) Len() int { return len(c) }

// IndexOf returns the position of the node with the given id, or -1.
func (c Components) IndexOf(id string) int {
	_, idx, ok := lo.FindIndexOf(c, func(n ComponentNode) bool { return n.ID == id })
	if !ok {
		return -1
	}
	return idx
}

// Find returns the node with the given id.
func (c Components) Find(id string) (ComponentNode, bool) {
	return lo.Find(c, func(n ComponentNode) bool { return n.ID == id })
}

// IDs returns node ids in display order.
func (c Components) IDs() []string {
	return lo.Map(c, func(n ComponentNode, _ int) string { return n.ID })
}

// Equal reports whether two sequences hold the same nodes in the same order.
func (c Components) Equal(other Components) bool {
	if len(c) != len(other) {
		return false
	}
	if len(c) == 0 {
		return true
	}
	return reflect.DeepEqual(c, other)
}

// Clone returns a deep copy of the sequence. Never nil.
func (c Components) Clone() Components {
	out := make(Components, len(c))
	for i, n := range c {
		out[i] = n.Clone()
	}
	return out
}

// Validate checks every node plus id uniqueness across the sequence.
func (c Components) Validate() error {
	seen := make(map[string]struct{}, len(c))
	for _, n := range c {
		if err := n.Validate(); err != nil {
			return err
		}
		if _, dup := seen[n.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateComponentID, n.ID)
		}
		seen[n.ID] = struct{}{}
	}
	return nil
}

// Insert places node at index, clamped to [0, len]. An invalid node leaves
// the sequence unchanged and returns the validation error.
func (c Components) Insert(node ComponentNode, index int) (Components, error) {
	if err := node.Validate(); err != nil {
		return c, err
	}
	if c.IndexOf(node.ID) >= 0 {
		return c, fmt.Errorf("%w: %s", ErrDuplicateComponentID, node.ID)
	}
	index = clamp(index, 0, len(c))
	out := make(Components, 0, len(c)+1)
	out = append(out, c[:index]...)
	out = append(out, node.Clone())
	out = append(out, c[index:]...)
	return out, nil
}

// Remove drops the node with the given id. Unknown ids are a no-op.
func (c Components) Remove(id string) Components {
	idx := c.IndexOf(id)
	if idx < 0 {
		return c
	}
	out := make(Components, 0, len(c)-1)
	out = append(out, c[:idx]...)
	return append(out, c[idx+1:]...)
}

// Update replaces the props and/or styles of a node. A nil map leaves that
// side untouched. Unknown ids are a no-op.
func (c Components) Update(id string, props, styles map[string]any) (Components, error) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return c, nil
	}
	next := c[idx]
	if props != nil {
		next.Props = cloneMap(props)
	}
	if styles != nil {
		next.Styles = cloneMap(styles)
	}
	return c.replaceAt(idx, next)
}

// SetProp sets a single prop on a node, keeping the rest of its props.
func (c Components) SetProp(id, key string, value any) (Components, error) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return c, nil
	}
	next := c[idx]
	next.Props = mergeMap(next.Props, map[string]any{key: cloneValue(value)})
	return c.replaceAt(idx, next)
}

// SetStyle sets a single style entry on a node.
func (c Components) SetStyle(id, key string, value any) (Components, error) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return c, nil
	}
	next := c[idx]
	next.Styles = mergeMap(next.Styles, map[string]any{key: cloneValue(value)})
	return c.replaceAt(idx, next)
}

func (c Components) replaceAt(idx int, next ComponentNode) (Components, error) {
	if err := next.Validate(); err != nil {
		return c, err
	}
	out := make(Components, len(c))
	copy(out, c)
	out[idx] = next
	return out, nil
}

// Move relocates the node at from to position to. An out-of-range from is a
// no-op; to is clamped to the valid range.
func (c Components) Move(from, to int) Components {
	if from < 0 || from >= len(c) {
		return c
	}
	to = clamp(to, 0, len(c)-1)
	if from == to {
		return c
	}
	node := c[from]
	out := make(Components, 0, len(c))
	out = append(out, c[:from]...)
	out = append(out, c[from+1:]...)
	rest := append(Components{node}, out[to:]...)
	return append(out[:to], rest...)
}

// Reorder arranges nodes to follow ids. ids must be a permutation of the
// current ids; anything else leaves the sequence unchanged.
func (c Components) Reorder(ids []string) Components {
	if len(ids) != len(c) {
		return c
	}
	byID := lo.KeyBy(c, func(n ComponentNode) string { return n.ID })
	if len(byID) != len(c) || len(lo.Uniq(ids)) != len(ids) {
		return c
	}
	out := make(Components, 0, len(c))
	for _, id := range ids {
		n, ok := byID[id]
		if !ok {
			return c
		}
		out = append(out, n)
	}
	return out
}

// Resequence writes the current position into every node's Order field.
func (c Components) Resequence() Components {
	out := make(Components, len(c))
	for i, n := range c {
		pos := i
		n.Order = &pos
		out[i] = n
	}
	return out
}

// Duplicate inserts a deep copy of the node with id right after it, under
// newID. Unknown ids are a no-op.
func (c Components) Duplicate(id, newID string) (Components, error) {
	idx := c.IndexOf(id)
	if idx < 0 {
		return c, nil
	}
	cp := c[idx].Clone()
	cp.ID = newID
	cp.Order = nil
	return c.Insert(cp, idx+1)
}

func clamp(v, low, high int) int {
	return max(low, min(v, high))
}
