package engine

import (
	"slices"
	"strings"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	// New nodes without an explicit position are centred on the viewport by
	// offsetting their top-left by this much.
	placementOffsetX = DefaultNodeWidth / 2
	placementOffsetY = 180.0

	pasteOffset = 50.0

	dropColumns  = 3
	dropGap      = 40.0
	dropRowPitch = 450.0
)

// newNode builds a node of type t with catalog defaults overlaid by data.
func (e *Engine) newNode(t document.NodeType, x, y float64, data document.NodeData) document.Node {
	return document.Node{
		ID:     e.ids.Node(),
		Type:   t,
		X:      x,
		Y:      y,
		Width:  document.Float(DefaultNodeWidth),
		Title:  t.Title(),
		Status: document.StatusIdle,
		Data:   document.MergeData(t.DefaultData(), data),
		Inputs: []string{},
	}
}

// AddNode creates a node of type t. With at nil the node is centred on the
// current view; non-finite coordinates fall back to (100, 100).
func (v *Viewer) AddNode(t document.NodeType, at *Point, data document.NodeData) (string, error) {
	if !t.Valid() {
		return "", ErrUnknownNodeType
	}
	var id string
	v.e.mutate(func() bool {
		var x, y float64
		if at != nil {
			x, y = at.X, at.Y
		} else {
			c := v.viewportCenter()
			x, y = c.X-placementOffsetX, c.Y-placementOffsetY
		}
		if !finite(x) {
			x = 100
		}
		if !finite(y) {
			y = 100
		}
		v.e.snapshot()
		n := v.e.newNode(t, x, y, data)
		v.e.store.AddNode(n)
		id = n.ID
		return true
	})
	return id, nil
}

// NodeUpdate is a partial update of a node. Data is a JSON merge patch over
// the existing data; keys it leaves out are kept.
type NodeUpdate struct {
	Data   document.DataPatch  `json:"data,omitempty"`
	Title  string              `json:"title,omitempty"`
	Width  *float64            `json:"width,omitempty"`
	Height *float64            `json:"height,omitempty"`
	Status document.NodeStatus `json:"status,omitempty"`
}

// UpdateNode applies u to a node. New image, video or audio results are added
// to the asset history. A data patch that does not fit the node's data leaves
// the node untouched.
func (e *Engine) UpdateNode(id string, u NodeUpdate) error {
	err := ErrNodeNotFound
	e.mutate(func() bool {
		n := e.store.Node(id)
		if n == nil {
			return false
		}
		err = e.applyUpdate(n, u)
		return err == nil
	})
	return err
}

// applyUpdate merges u into n. Callers hold e.mu.
func (e *Engine) applyUpdate(n *document.Node, u NodeUpdate) error {
	data, err := n.Data.Apply(u.Data)
	if err != nil {
		return err
	}
	if u.Title != "" {
		n.Title = u.Title
	}
	if u.Width != nil && finite(*u.Width) && *u.Width > 0 {
		n.Width = document.Float(*u.Width)
	}
	if u.Height != nil && finite(*u.Height) && *u.Height > 0 {
		n.Height = document.Float(*u.Height)
	}
	if u.Status != "" {
		n.Status = u.Status
	}
	if len(u.Data) > 0 {
		n.Data = data
		e.recordMedia(n.Title, u.Data, data)
	}
	return nil
}

// recordMedia feeds any media written by patch into the asset history.
func (e *Engine) recordMedia(title string, patch document.DataPatch, data document.NodeData) {
	if patch.Has("image") && data.Image != "" {
		e.recordAsset(document.AssetImage, data.Image, title)
	}
	if patch.Has("videoUri") && data.VideoURI != "" {
		e.recordAsset(document.AssetVideo, data.VideoURI, title)
	}
	if patch.Has("audioUri") && data.AudioURI != "" {
		e.recordAsset(document.AssetAudio, data.AudioURI, title)
	}
}

// DeleteNodes removes nodes along with every connection and input reference
// that points at them.
func (e *Engine) DeleteNodes(ids []string) int {
	var removed int
	e.mutate(func() bool {
		if !slices.ContainsFunc(ids, func(id string) bool { return e.store.Node(id) != nil }) {
			return false
		}
		e.snapshot()
		removed = e.deleteNodes(ids)
		return true
	})
	return removed
}

func (e *Engine) deleteNodes(ids []string) int {
	removed := e.store.DeleteNodes(ids)
	e.forgetMissing()
	return removed
}

// MoveNode places a node's top-left corner at (x, y).
func (e *Engine) MoveNode(id string, x, y float64) error {
	err := ErrNodeNotFound
	e.mutate(func() bool {
		if e.store.Node(id) == nil {
			return false
		}
		err = nil
		if !finite(x) || !finite(y) {
			return false
		}
		e.snapshot()
		return e.store.MoveNode(id, x, y)
	})
	return err
}

// ResizeNode sets a node's explicit size, clamped to the resize minimums.
func (e *Engine) ResizeNode(id string, w, h float64) error {
	err := ErrNodeNotFound
	e.mutate(func() bool {
		if e.store.Node(id) == nil {
			return false
		}
		err = nil
		if !finite(w) || !finite(h) {
			return false
		}
		e.snapshot()
		return e.store.ResizeNode(id, max(MinNodeWidth, w), max(MinNodeHeight, h))
	})
	return err
}

// --- Selection ---

// SetSelection replaces the selection, ignoring unknown ids.
func (v *Viewer) SetSelection(ids []string) {
	v.e.mutate(func() bool {
		v.selection = slices.DeleteFunc(slices.Clone(ids), func(id string) bool { return v.e.store.Node(id) == nil })
		return true
	})
}

// ToggleSelection adds or removes one node from the selection.
func (v *Viewer) ToggleSelection(id string) {
	v.e.mutate(func() bool {
		if v.e.store.Node(id) == nil {
			return false
		}
		if i := slices.Index(v.selection, id); i >= 0 {
			v.selection = slices.Delete(v.selection, i, i+1)
		} else {
			v.selection = append(v.selection, id)
		}
		return true
	})
}

// SelectAll selects every node.
func (v *Viewer) SelectAll() {
	v.e.mutate(func() bool {
		v.selection = make([]string, 0, len(v.e.store.scene.Nodes))
		for _, n := range v.e.store.scene.Nodes {
			v.selection = append(v.selection, n.ID)
		}
		return true
	})
}

// --- Clipboard ---

// Copy stores a copy of the most recently selected node.
func (v *Viewer) Copy() bool {
	v.e.mu.Lock()
	defer v.e.mu.Unlock()
	if len(v.selection) == 0 {
		return false
	}
	n := v.e.store.Node(v.selection[len(v.selection)-1])
	if n == nil {
		return false
	}
	c := n.Clone()
	v.clipboard = &c
	return true
}

// Paste adds a copy of the clipboard node offset down and right, idle and
// unconnected, and selects it.
func (v *Viewer) Paste() (string, bool) {
	var id string
	ok := v.e.mutate(func() bool {
		if v.clipboard == nil {
			return false
		}
		v.e.snapshot()
		n := v.clipboard.Clone()
		n.ID = v.e.ids.Node()
		n.X += pasteOffset
		n.Y += pasteOffset
		n.Status = document.StatusIdle
		n.Inputs = []string{}
		n.Data.SortedInputIDs = nil
		v.e.store.AddNode(n)
		v.selection = []string{n.ID}
		id = n.ID
		return true
	})
	return id, ok
}

// --- Keyboard ---

// KeyDown handles the canvas shortcuts. mod is Ctrl or Cmd. It reports
// whether the key was consumed.
func (v *Viewer) KeyDown(key string, mod, shift bool) bool {
	k := strings.ToLower(key)
	if mod {
		switch {
		case k == "a":
			v.SelectAll()
			return true
		case k == "z" && shift, k == "y":
			v.e.Redo()
			return true
		case k == "z":
			v.e.Undo()
			return true
		case k == "c":
			return v.Copy()
		case k == "v":
			_, ok := v.Paste()
			return ok
		}
		return false
	}

	switch key {
	case "Delete", "Backspace":
		if g := v.SelectedGroup(); g != "" {
			return v.DeleteGroup(g) == nil
		}
		sel := v.Selection()
		if len(sel) == 0 {
			return false
		}
		return v.e.DeleteNodes(sel) > 0
	case "Escape":
		v.CancelInteraction()
		v.CloseMenu()
		return true
	}
	return false
}

// --- Asset drops ---

// DroppedAsset is a media item dropped on the canvas.
type DroppedAsset struct {
	Type  document.AssetType `json:"type"`
	Src   string             `json:"src"`
	Title string             `json:"title"`
}

// DropAssets creates one generator node per image or video, laid out in a
// three-column grid whose first cell is centred under the drop point. Audio
// items are ignored.
func (e *Engine) DropAssets(at Point, assets []DroppedAsset) []string {
	if !finite(at.X) || !finite(at.Y) {
		return nil
	}
	var ids []string
	e.mutate(func() bool {
		var usable []DroppedAsset
		for _, a := range assets {
			if (a.Type == document.AssetImage || a.Type == document.AssetVideo) && a.Src != "" {
				usable = append(usable, a)
			}
		}
		if len(usable) == 0 {
			return false
		}
		e.snapshot()
		startX, startY := at.X-placementOffsetX, at.Y-placementOffsetY
		for i, a := range usable {
			x := startX + float64(i%dropColumns)*(DefaultNodeWidth+dropGap)
			y := startY + float64(i/dropColumns)*dropRowPitch
			var n document.Node
			if a.Type == document.AssetImage {
				n = e.newNode(document.NodeImageGenerator, x, y, document.NodeData{Image: a.Src, Prompt: a.Title})
			} else {
				n = e.newNode(document.NodeVideoGenerator, x, y, document.NodeData{VideoURI: a.Src, Prompt: a.Title})
			}
			e.store.AddNode(n)
			ids = append(ids, n.ID)
		}
		return true
	})
	return ids
}
