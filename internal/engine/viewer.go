package engine

import (
	"encoding/json"
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

// Viewer is one person's view of a shared canvas: viewport, screen size,
// selection, clipboard, the pointer interaction in progress and the
// smart-connect menu. Pointer events are interpreted against the viewer's own
// viewport, so two people dragging at once never steer each other. Methods
// lock the owning Engine.
type Viewer struct {
	e  *Engine
	id string

	viewport      Viewport
	screenW       float64
	screenH       float64
	selection     []string
	selectedGroup string
	interaction   Interaction
	menu          *SmartConnectMenu
	clipboard     *document.Node
}

// Join returns the viewer with the given id, creating it on first use.
func (e *Engine) Join(id string) *Viewer {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.join(id)
}

func (e *Engine) join(id string) *Viewer {
	if v, ok := e.viewers[id]; ok {
		return v
	}
	v := &Viewer{e: e, id: id, viewport: NewViewport(), screenW: e.defaultW, screenH: e.defaultH}
	e.viewers[id] = v
	return v
}

// Leave drops a viewer. An interaction it left unfinished is abandoned where
// the last move put it. The engine's own viewer cannot leave.
func (e *Engine) Leave(id string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if v, ok := e.viewers[id]; ok && v != e.Viewer {
		delete(e.viewers, id)
	}
}

// ID returns the id the viewer joined with.
func (v *Viewer) ID() string { return v.id }

// reset clears everything tied to the current scene. Callers hold e.mu.
func (v *Viewer) reset() {
	v.selection = nil
	v.selectedGroup = ""
	v.interaction = nil
	v.menu = nil
}

// prune drops references to nodes and groups that no longer exist, ending
// any interaction that was working on one. Callers hold e.mu.
func (v *Viewer) prune() {
	s := v.e.store
	gone := func(id string) bool { return s.Node(id) == nil }

	v.selection = slices.DeleteFunc(v.selection, gone)
	if v.selectedGroup != "" && s.Group(v.selectedGroup) == nil {
		v.selectedGroup = ""
	}
	switch it := v.interaction.(type) {
	case *NodeDrag:
		if gone(it.NodeID) {
			v.interaction = nil
		}
	case *ResizeDrag:
		if gone(it.NodeID) {
			v.interaction = nil
		}
	case *ConnectionDrag:
		if gone(it.NodeID) {
			v.interaction = nil
		}
	case *GroupDrag:
		if s.Group(it.GroupID) == nil {
			v.interaction = nil
		}
	}
	if v.menu != nil && gone(v.menu.SourceID) {
		v.menu = nil
	}
}

func (v *Viewer) isSelected(id string) bool {
	return slices.Contains(v.selection, id)
}

// viewportCenter returns the world point at the centre of the screen.
func (v *Viewer) viewportCenter() Point {
	return v.viewport.ScreenToWorld(Point{X: v.screenW / 2, Y: v.screenH / 2})
}

// --- Queries ---

// Bounds returns the effective bounds of a node as this viewer sees it.
func (v *Viewer) Bounds(id string) (Rect, bool) {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	n := v.e.store.Node(id)
	if n == nil {
		return Rect{}, false
	}
	return v.bounds(n), true
}

func (v *Viewer) Viewport() Viewport {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.viewport
}

func (v *Viewer) Selection() []string {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return slices.Clone(v.selection)
}

func (v *Viewer) SelectedGroup() string {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.selectedGroup
}

// Interaction returns the current pointer interaction, or nil when idle.
func (v *Viewer) Interaction() Interaction {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return cloneInteraction(v.interaction)
}

// Menu returns the pending smart-connect menu, if one is open.
func (v *Viewer) Menu() *SmartConnectMenu {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	return v.cloneMenu()
}

func (v *Viewer) cloneMenu() *SmartConnectMenu {
	if v.menu == nil {
		return nil
	}
	m := *v.menu
	m.Types = slices.Clone(v.menu.Types)
	return &m
}

// State is the full view a canvas host needs to draw one frame.
type State struct {
	Version       uint64                `json:"version"`
	Scene         *document.Scene       `json:"scene"`
	Viewport      Viewport              `json:"viewport"`
	Selection     []string              `json:"selection"`
	SelectedGroup string                `json:"selectedGroup,omitempty"`
	Overlay       *Overlay              `json:"overlay,omitempty"`
	Menu          *SmartConnectMenu     `json:"menu,omitempty"`
	CanUndo       bool                  `json:"canUndo"`
	CanRedo       bool                  `json:"canRedo"`
	Workflows     []WorkflowSummary     `json:"workflows"`
	Assets        []document.AssetEntry `json:"assets"`
}

// WorkflowSummary lists a saved workflow without its contents.
type WorkflowSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	Thumbnail string `json:"thumbnail"`
	NodeCount int    `json:"nodeCount"`
}

// Snapshot returns a consistent copy of the shared canvas as this viewer
// sees it.
func (v *Viewer) Snapshot() State {
	e := v.e
	e.mu.Lock()
	defer e.mu.Unlock()
	st := State{
		Version:       e.version,
		Scene:         e.store.scene.Clone(),
		Viewport:      v.viewport,
		Selection:     slices.Clone(v.selection),
		SelectedGroup: v.selectedGroup,
		Overlay:       v.overlay(),
		Menu:          v.cloneMenu(),
		CanUndo:       e.history.CanUndo(),
		CanRedo:       e.history.CanRedo(),
		Workflows:     make([]WorkflowSummary, 0, len(e.workflows)),
		Assets:        slices.Clone(e.assets),
	}
	if st.Selection == nil {
		st.Selection = []string{}
	}
	if st.Assets == nil {
		st.Assets = []document.AssetEntry{}
	}
	for _, wf := range e.workflows {
		st.Workflows = append(st.Workflows, WorkflowSummary{ID: wf.ID, Title: wf.Title, Thumbnail: wf.Thumbnail, NodeCount: len(wf.Nodes)})
	}
	return st
}

// StateJSON returns Snapshot serialized for a JS or websocket host.
func (v *Viewer) StateJSON() string {
	data, err := json.Marshal(v.Snapshot())
	if err != nil {
		return "{}"
	}
	return string(data)
}

// --- Viewport ---

// SetViewportSize records the host's screen size, used by FitView and to
// place nodes added without a position.
func (v *Viewer) SetViewportSize(w, h float64) {
	v.e.mutate(func() bool {
		if !finite(w) || !finite(h) || w <= 0 || h <= 0 {
			return false
		}
		v.screenW, v.screenH = w, h
		return true
	})
}

// ZoomAt rescales around a screen point.
func (v *Viewer) ZoomAt(screen Point, scale float64) {
	v.e.mutate(func() bool {
		before := v.viewport
		v.viewport.ZoomAt(screen, scale)
		return before != v.viewport
	})
}

// Wheel applies a wheel event: shift pans, otherwise zoom at the cursor.
func (v *Viewer) Wheel(screen Point, deltaX, deltaY float64, shift bool) {
	v.e.mutate(func() bool {
		before := v.viewport
		v.viewport.Wheel(screen, deltaX, deltaY, shift)
		return before != v.viewport
	})
}

// FitView frames every node. An empty scene resets the viewport.
func (v *Viewer) FitView() {
	v.e.mutate(func() bool {
		nodes := v.e.store.scene.Nodes
		var content Rect
		found := false
		for i := range nodes {
			b := v.bounds(&nodes[i])
			if !b.Finite() {
				continue
			}
			if !found {
				content, found = b, true
				continue
			}
			content = content.Union(b)
		}
		if !found {
			v.viewport = NewViewport()
			return true
		}
		v.viewport.Fit(content, v.screenW, v.screenH)
		return true
	})
}
