package engine

import (
	"fmt"
	"math"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const (
	storyboardColumns  = 3
	storyboardGap      = 40.0
	storyboardOffsetX  = 150.0
	storyboardPadding  = 30.0
	storyboardGroupTag = "Storyboard"
)

// BeginAction marks a node WORKING and returns a copy of it with its live
// inputs. Refusing a second action on the same node is up to the caller, since
// undo can restore a stale WORKING status.
func (e *Engine) BeginAction(id string) (document.Node, []document.Node, error) {
	var node document.Node
	var inputs []document.Node
	var err error
	e.mutate(func() bool {
		n := e.store.Node(id)
		if n == nil {
			err = ErrNodeNotFound
			return false
		}
		n.Status = document.StatusWorking
		n.Data.Error = ""
		node = n.Clone()
		inputs = e.store.ResolveInputs(id)
		return true
	})
	return node, inputs, err
}

// CompleteAction applies a finished action's result. A result may carry a
// non-fatal notice in its Error field. It reports false when the node no
// longer exists, in which case the result is dropped.
func (e *Engine) CompleteAction(id string, result document.NodeData) bool {
	return e.mutate(func() bool {
		n := e.store.Node(id)
		if n == nil {
			return false
		}
		n.Data.Error = ""
		n.Data.Progress = ""
		n.Data = document.MergeData(n.Data, result)
		n.Status = document.StatusSuccess
		e.recordMedia(n.Title, document.PatchOf(result), n.Data)
		return true
	})
}

// FailAction records an action error on the node. Deleted nodes are ignored.
func (e *Engine) FailAction(id string, cause error) bool {
	return e.mutate(func() bool {
		n := e.store.Node(id)
		if n == nil {
			return false
		}
		n.Status = document.StatusError
		n.Data.Error = cause.Error()
		return true
	})
}

// SetProgress updates the progress text of a running node.
func (e *Engine) SetProgress(id, progress string) bool {
	return e.mutate(func() bool {
		n := e.store.Node(id)
		if n == nil {
			return false
		}
		n.Data.Progress = progress
		return true
	})
}

// ExpandStoryboard spawns one image node per shot in a three-column grid to
// the right of parent, wires parent into each, wraps them in a group and marks
// the parent done. The children start WORKING. Returns copies of the children.
func (e *Engine) ExpandStoryboard(parentID string, shots []string) ([]document.Node, error) {
	var children []document.Node
	err := ErrNodeNotFound
	e.mutate(func() bool {
		live := e.store.Node(parentID)
		if live == nil || len(shots) == 0 {
			return false
		}
		err = nil
		parent := live.Clone()

		width := NodeWidth(&parent)
		ratio := parent.Data.AspectRatio
		if ratio == "" {
			ratio = defaultAspectRatio
		}
		rw, rh := ParseAspectRatio(ratio)
		height := width * rh / rw
		startX := parent.X + width + storyboardOffsetX
		startY := parent.Y

		e.snapshot()
		for i, shot := range shots {
			data := parent.Data.Clone()
			data.AspectRatio = ratio
			data.Prompt = shot
			data.Image = ""
			data.Images = nil
			data.ImageCount = 1
			data.Error = ""
			data.SortedInputIDs = nil

			col, row := i%storyboardColumns, i/storyboardColumns
			child := document.Node{
				ID:     e.ids.Node(),
				Type:   document.NodeImageGenerator,
				X:      startX + float64(col)*(width+storyboardGap),
				Y:      startY + float64(row)*(height+storyboardGap),
				Width:  document.Float(width),
				Height: document.Float(height),
				Title:  fmt.Sprintf("Shot %d", i+1),
				Status: document.StatusWorking,
				Data:   data,
				Inputs: []string{parentID},
			}
			e.store.AddNode(child)
			e.store.scene.Connections = append(e.store.scene.Connections, document.Connection{From: parentID, To: child.ID})
			children = append(children, child.Clone())
		}

		cols := float64(min(len(shots), storyboardColumns))
		rows := math.Ceil(float64(len(shots)) / storyboardColumns)
		e.store.AddGroup(document.Group{
			ID:     e.ids.Group(),
			Title:  storyboardGroupTag,
			X:      startX - storyboardPadding,
			Y:      startY - storyboardPadding,
			Width:  cols*width + (cols-1)*storyboardGap + storyboardPadding*2,
			Height: rows*height + (rows-1)*storyboardGap + storyboardPadding*2,
		})

		// AddNode may have reallocated the node slice
		if p := e.store.Node(parentID); p != nil {
			p.Status = document.StatusSuccess
		}
		return true
	})
	return children, err
}
