package engine

import (
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

// PortKind identifies which side of a node a connection drag touches.
type PortKind string

const (
	PortInput  PortKind = "input"
	PortOutput PortKind = "output"
)

func (p PortKind) Valid() bool { return p == PortInput || p == PortOutput }

// CompatibleDownstream lists the node types that usefully consume the output of
// t. The tables drive suggestions only; they never block a connection.
func CompatibleDownstream(t document.NodeType) []document.NodeType {
	switch t {
	case document.NodeStoryStudio:
		return []document.NodeType{document.NodeCharacterReference, document.NodeSceneReference, document.NodeStoryboardShot}
	case document.NodeCharacterReference, document.NodeSceneReference:
		return []document.NodeType{document.NodeStoryboardShot}
	case document.NodeMultiAngleCamera:
		return []document.NodeType{document.NodeImageGenerator, document.NodeVideoGenerator}
	case document.NodeImageGenerator, document.NodeImageEditor:
		return []document.NodeType{document.NodeVideoGenerator, document.NodeImageEditor, document.NodeVideoAnalyzer, document.NodeMultiAngleCamera}
	case document.NodeVideoGenerator:
		return []document.NodeType{document.NodeVideoAnalyzer}
	case document.NodePromptInput:
		return []document.NodeType{document.NodeImageGenerator, document.NodeVideoGenerator, document.NodeAudioGenerator}
	case document.NodeVideoAnalyzer, document.NodeAudioGenerator, document.NodeStoryboardShot, document.NodeGridSplitter:
		return nil
	}
	return nil
}

// CompatibleUpstream lists the node types that usefully feed t.
func CompatibleUpstream(t document.NodeType) []document.NodeType {
	switch t {
	case document.NodeVideoGenerator:
		return []document.NodeType{document.NodePromptInput, document.NodeImageGenerator, document.NodeImageEditor}
	case document.NodeImageGenerator, document.NodeAudioGenerator:
		return []document.NodeType{document.NodePromptInput}
	case document.NodeVideoAnalyzer:
		return []document.NodeType{document.NodeVideoGenerator, document.NodeImageGenerator, document.NodeImageEditor}
	case document.NodeImageEditor, document.NodeMultiAngleCamera:
		return []document.NodeType{document.NodeImageGenerator, document.NodeImageEditor}
	case document.NodeCharacterReference, document.NodeSceneReference:
		return []document.NodeType{document.NodeStoryStudio}
	case document.NodeStoryboardShot:
		return []document.NodeType{document.NodeStoryStudio, document.NodeCharacterReference, document.NodeSceneReference}
	case document.NodePromptInput, document.NodeStoryStudio, document.NodeGridSplitter:
		return nil
	}
	return nil
}

// CompatibleFrom returns the suggestion list for a drag that started on port
// of a node of type t.
func CompatibleFrom(t document.NodeType, port PortKind) []document.NodeType {
	if port == PortInput {
		return CompatibleUpstream(t)
	}
	return CompatibleDownstream(t)
}

// NormalizeConnection turns a port-to-port gesture into a directed edge.
// Exactly one side must be an output; that side becomes From.
func NormalizeConnection(a string, portA PortKind, b string, portB PortKind) (document.Connection, error) {
	if a == "" || b == "" || a == b {
		return document.Connection{}, ErrInvalidConnection
	}
	switch {
	case portA == PortOutput && portB == PortInput:
		return document.Connection{From: a, To: b}, nil
	case portA == PortInput && portB == PortOutput:
		return document.Connection{From: b, To: a}, nil
	}
	return document.Connection{}, ErrInvalidConnection
}

// validateConnection checks an edge against the store: both ends exist and
// the pair is new. Type compatibility is not consulted.
func (s *Store) validateConnection(c document.Connection) error {
	if s.Node(c.From) == nil || s.Node(c.To) == nil {
		return ErrNodeNotFound
	}
	if s.HasConnection(c.From, c.To) {
		return ErrDuplicateConnection
	}
	return nil
}

// ReorderInputs replaces a node's input order. order must be a permutation of
// the current inputs.
func (s *Store) ReorderInputs(id string, order []string) error {
	n := s.Node(id)
	if n == nil {
		return ErrNodeNotFound
	}
	if len(order) != len(n.Inputs) {
		return ErrInvalidInputOrdering
	}
	a, b := slices.Clone(order), slices.Clone(n.Inputs)
	slices.Sort(a)
	slices.Sort(b)
	if !slices.Equal(a, b) || len(slices.Compact(a)) != len(order) {
		return ErrInvalidInputOrdering
	}
	n.Inputs = slices.Clone(order)
	n.Data.SortedInputIDs = slices.Clone(order)
	return nil
}

// --- Engine operations ---

// Connect joins two ports. Exactly one of them must be an output; the edge
// always runs from the output side.
func (e *Engine) Connect(a string, portA PortKind, b string, portB PortKind) (document.Connection, error) {
	c, err := NormalizeConnection(a, portA, b, portB)
	if err != nil {
		return c, err
	}
	e.mutate(func() bool {
		if err = e.store.validateConnection(c); err != nil {
			return false
		}
		e.snapshot()
		e.store.Connect(c.From, c.To)
		return true
	})
	return c, err
}

// Disconnect removes one edge and the matching input reference.
func (e *Engine) Disconnect(from, to string) error {
	err := ErrInvalidConnection
	e.mutate(func() bool {
		if !e.store.HasConnection(from, to) {
			return false
		}
		e.snapshot()
		e.store.Disconnect(from, to)
		err = nil
		return true
	})
	return err
}

// SmartConnect creates a node of type t at a world point and wires it to the
// port the user dragged from: an output feeds the new node, an input is fed
// by it.
func (e *Engine) SmartConnect(sourceID string, port PortKind, t document.NodeType, at Point) (string, error) {
	var id string
	var err error
	e.mutate(func() bool {
		id, err = e.smartConnect(sourceID, port, t, at)
		return err == nil
	})
	return id, err
}

// smartConnect is SmartConnect with e.mu held.
func (e *Engine) smartConnect(sourceID string, port PortKind, t document.NodeType, at Point) (string, error) {
	if !t.Valid() {
		return "", ErrUnknownNodeType
	}
	if !port.Valid() {
		return "", ErrInvalidConnection
	}
	if e.store.Node(sourceID) == nil {
		return "", ErrNodeNotFound
	}
	if !finite(at.X) || !finite(at.Y) {
		at = Point{X: 100, Y: 100}
	}
	e.snapshot()
	n := e.newNode(t, at.X, at.Y, document.NodeData{})
	e.store.AddNode(n)
	if port == PortOutput {
		e.store.Connect(sourceID, n.ID)
	} else {
		e.store.Connect(n.ID, sourceID)
	}
	return n.ID, nil
}

// ChooseMenuType completes the viewer's open smart-connect menu with type t
// and closes it.
func (v *Viewer) ChooseMenuType(t document.NodeType) (string, error) {
	var id string
	err := ErrNoMenu
	v.e.mutate(func() bool {
		if v.menu == nil {
			return false
		}
		id, err = v.e.smartConnect(v.menu.SourceID, v.menu.Port, t, v.menu.World)
		if err != nil {
			return false
		}
		v.menu = nil
		return true
	})
	return id, err
}

// ReorderInputs changes the order in which a node consumes its inputs.
func (e *Engine) ReorderInputs(id string, order []string) error {
	var err error
	e.mutate(func() bool {
		err = e.store.ReorderInputs(id, order)
		return err == nil
	})
	return err
}
