package engine

import (
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

// Store wraps the live scene with the primitive mutations the interaction
// layer builds on. It performs no locking and takes no history snapshots;
// Engine does both.
type Store struct {
	scene *document.Scene
}

func NewStore(scene *document.Scene) *Store {
	if scene == nil {
		scene = document.NewScene()
	}
	return &Store{scene: scene}
}

// Scene returns the live scene. Callers must not retain it across mutations.
func (s *Store) Scene() *document.Scene { return s.scene }

// Replace swaps in a new scene wholesale (undo, workflow load).
func (s *Store) Replace(scene *document.Scene) {
	if scene == nil {
		scene = document.NewScene()
	}
	s.scene = scene
}

func (s *Store) nodeIndex(id string) int {
	return slices.IndexFunc(s.scene.Nodes, func(n document.Node) bool { return n.ID == id })
}

func (s *Store) groupIndex(id string) int {
	return slices.IndexFunc(s.scene.Groups, func(g document.Group) bool { return g.ID == id })
}

// Node returns a pointer into the live node slice, or nil.
func (s *Store) Node(id string) *document.Node {
	if i := s.nodeIndex(id); i >= 0 {
		return &s.scene.Nodes[i]
	}
	return nil
}

// Group returns a pointer into the live group slice, or nil.
func (s *Store) Group(id string) *document.Group {
	if i := s.groupIndex(id); i >= 0 {
		return &s.scene.Groups[i]
	}
	return nil
}

func (s *Store) AddNode(n document.Node) {
	if n.Inputs == nil {
		n.Inputs = []string{}
	}
	s.scene.Nodes = append(s.scene.Nodes, n)
}

func (s *Store) AddGroup(g document.Group) {
	s.scene.Groups = append(s.scene.Groups, g)
}

// MoveNode sets a node's top-left position. Non-finite positions are ignored.
func (s *Store) MoveNode(id string, x, y float64) bool {
	n := s.Node(id)
	if n == nil || !finite(x) || !finite(y) {
		return false
	}
	n.X, n.Y = x, y
	return true
}

// ResizeNode sets explicit dimensions on a node.
func (s *Store) ResizeNode(id string, w, h float64) bool {
	n := s.Node(id)
	if n == nil || !finite(w) || !finite(h) {
		return false
	}
	n.Width = document.Float(w)
	n.Height = document.Float(h)
	return true
}

// DeleteNodes removes the nodes, every connection touching them, and their
// ids from all remaining inputs. Returns the number of nodes removed.
func (s *Store) DeleteNodes(ids []string) int {
	if len(ids) == 0 {
		return 0
	}
	doomed := make(map[string]bool, len(ids))
	for _, id := range ids {
		doomed[id] = true
	}

	before := len(s.scene.Nodes)
	s.scene.Nodes = slices.DeleteFunc(s.scene.Nodes, func(n document.Node) bool { return doomed[n.ID] })
	removed := before - len(s.scene.Nodes)

	for i := range s.scene.Nodes {
		n := &s.scene.Nodes[i]
		n.Inputs = slices.DeleteFunc(n.Inputs, func(in string) bool { return doomed[in] })
		if n.Data.SortedInputIDs != nil {
			n.Data.SortedInputIDs = slices.DeleteFunc(n.Data.SortedInputIDs, func(in string) bool { return doomed[in] })
		}
	}
	s.scene.Connections = slices.DeleteFunc(s.scene.Connections, func(c document.Connection) bool {
		return doomed[c.From] || doomed[c.To]
	})
	return removed
}

// DeleteGroup removes only the group rectangle.
func (s *Store) DeleteGroup(id string) bool {
	before := len(s.scene.Groups)
	s.scene.Groups = slices.DeleteFunc(s.scene.Groups, func(g document.Group) bool { return g.ID == id })
	return len(s.scene.Groups) != before
}

// HasConnection reports whether the exact (from, to) edge exists.
func (s *Store) HasConnection(from, to string) bool {
	return slices.Contains(s.scene.Connections, document.Connection{From: from, To: to})
}

// Connect appends the edge and records from in the target's inputs.
func (s *Store) Connect(from, to string) {
	s.scene.Connections = append(s.scene.Connections, document.Connection{From: from, To: to})
	if n := s.Node(to); n != nil && !slices.Contains(n.Inputs, from) {
		n.Inputs = append(n.Inputs, from)
	}
}

// Disconnect removes the edge and the matching input reference.
func (s *Store) Disconnect(from, to string) bool {
	before := len(s.scene.Connections)
	s.scene.Connections = slices.DeleteFunc(s.scene.Connections, func(c document.Connection) bool {
		return c.From == from && c.To == to
	})
	if len(s.scene.Connections) == before {
		return false
	}
	if n := s.Node(to); n != nil {
		n.Inputs = slices.DeleteFunc(n.Inputs, func(in string) bool { return in == from })
		if n.Data.SortedInputIDs != nil {
			n.Data.SortedInputIDs = slices.DeleteFunc(n.Data.SortedInputIDs, func(in string) bool { return in == from })
		}
	}
	return true
}

// ResolveInputs returns the live nodes feeding id, in input order. Dangling ids
// are skipped.
func (s *Store) ResolveInputs(id string) []document.Node {
	n := s.Node(id)
	if n == nil {
		return nil
	}
	out := make([]document.Node, 0, len(n.Inputs))
	for _, in := range n.Inputs {
		if src := s.Node(in); src != nil {
			out = append(out, src.Clone())
		}
	}
	return out
}
