package collab

import (
	"context"
	"errors"
	"fmt"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/engine"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrMissingField   = errors.New("missing command field")
)

// Command names.
const (
	CmdAddNode             = "add"
	CmdUpdateNode          = "update"
	CmdDelete              = "delete"
	CmdMove                = "move"
	CmdResize              = "resize"
	CmdConnect             = "connect"
	CmdDisconnect          = "disconnect"
	CmdSmartConnect        = "smartConnect"
	CmdChooseMenuType      = "chooseMenuType"
	CmdReorderInputs       = "reorderInputs"
	CmdSelect              = "select"
	CmdCopy                = "copy"
	CmdPaste               = "paste"
	CmdCreateGroup         = "createGroup"
	CmdArrange             = "arrange"
	CmdDeleteGroup         = "deleteGroup"
	CmdRenameGroup         = "renameGroup"
	CmdSelectGroup         = "selectGroup"
	CmdUndo                = "undo"
	CmdRedo                = "redo"
	CmdFitView             = "fitView"
	CmdZoom                = "zoom"
	CmdViewportSize        = "viewportSize"
	CmdExecute             = "execute"
	CmdSaveWorkflow        = "saveWorkflow"
	CmdSaveGroupAsWorkflow = "saveGroupAsWorkflow"
	CmdLoadWorkflow        = "loadWorkflow"
	CmdInstantiateWorkflow = "instantiateWorkflow"
	CmdRenameWorkflow      = "renameWorkflow"
	CmdDeleteWorkflow      = "deleteWorkflow"
	CmdDropAssets          = "dropAssets"
	CmdChat                = "chat"
)

// point returns the command's (x, y), or nil when either is missing.
func (c Command) point() *engine.Point {
	if c.X == nil || c.Y == nil {
		return nil
	}
	return &engine.Point{X: *c.X, Y: *c.Y}
}

func (c Command) require(fields ...string) error {
	for _, f := range fields {
		var missing bool
		switch f {
		case "nodeId":
			missing = c.NodeID == ""
		case "groupId":
			missing = c.GroupID == ""
		case "workflowId":
			missing = c.WorkflowID == ""
		case "nodeType":
			missing = c.NodeType == ""
		case "point":
			missing = c.point() == nil
		case "size":
			missing = c.Width == nil || c.Height == nil
		case "update":
			missing = c.Update == nil
		}
		if missing {
			return fmt.Errorf("%w: %s", ErrMissingField, f)
		}
	}
	return nil
}

// apply runs one command against the room's canvas on behalf of view and
// returns what it created, if anything. Selection, clipboard, viewport and
// menu commands act on view alone.
func (r *Room) apply(ctx context.Context, view *engine.Viewer, c Command) (any, error) {
	e := r.engine
	switch c.Name {
	case CmdAddNode:
		if err := c.require("nodeType"); err != nil {
			return nil, err
		}
		var data document.NodeData
		if c.Update != nil {
			var err error
			if data, err = data.Apply(c.Update.Data); err != nil {
				return nil, err
			}
		}
		return view.AddNode(c.NodeType, c.point(), data)

	case CmdUpdateNode:
		if err := c.require("nodeId", "update"); err != nil {
			return nil, err
		}
		return nil, e.UpdateNode(c.NodeID, *c.Update)

	case CmdDelete:
		ids := c.NodeIDs
		if c.NodeID != "" {
			ids = append(ids, c.NodeID)
		}
		return e.DeleteNodes(ids), nil

	case CmdMove:
		if err := c.require("nodeId", "point"); err != nil {
			return nil, err
		}
		return nil, e.MoveNode(c.NodeID, *c.X, *c.Y)

	case CmdResize:
		if err := c.require("nodeId", "size"); err != nil {
			return nil, err
		}
		return nil, e.ResizeNode(c.NodeID, *c.Width, *c.Height)

	case CmdConnect:
		return e.Connect(c.From, c.FromPort, c.To, c.ToPort)

	case CmdDisconnect:
		return nil, e.Disconnect(c.From, c.To)

	case CmdSmartConnect:
		if err := c.require("nodeType", "point"); err != nil {
			return nil, err
		}
		return e.SmartConnect(c.From, c.FromPort, c.NodeType, *c.point())

	case CmdChooseMenuType:
		if err := c.require("nodeType"); err != nil {
			return nil, err
		}
		return view.ChooseMenuType(c.NodeType)

	case CmdReorderInputs:
		if err := c.require("nodeId"); err != nil {
			return nil, err
		}
		return nil, e.ReorderInputs(c.NodeID, c.Order)

	case CmdSelect:
		view.SetSelection(c.NodeIDs)
		return nil, nil

	case CmdCopy:
		return view.Copy(), nil

	case CmdPaste:
		id, _ := view.Paste()
		return id, nil

	case CmdCreateGroup:
		return view.CreateGroup(c.Title, c.NodeIDs)

	case CmdArrange:
		if err := c.require("groupId"); err != nil {
			return nil, err
		}
		return nil, view.ArrangeGroup(c.GroupID)

	case CmdDeleteGroup:
		if err := c.require("groupId"); err != nil {
			return nil, err
		}
		return nil, view.DeleteGroup(c.GroupID)

	case CmdRenameGroup:
		if err := c.require("groupId"); err != nil {
			return nil, err
		}
		return nil, e.RenameGroup(c.GroupID, c.Title)

	case CmdSelectGroup:
		view.SelectGroup(c.GroupID)
		return nil, nil

	case CmdUndo:
		return e.Undo(), nil

	case CmdRedo:
		return e.Redo(), nil

	case CmdFitView:
		view.FitView()
		return nil, nil

	case CmdZoom:
		if err := c.require("point"); err != nil {
			return nil, err
		}
		view.ZoomAt(*c.point(), c.Scale)
		return nil, nil

	case CmdViewportSize:
		if err := c.require("size"); err != nil {
			return nil, err
		}
		view.SetViewportSize(*c.Width, *c.Height)
		return nil, nil

	case CmdExecute:
		if err := c.require("nodeId"); err != nil {
			return nil, err
		}
		return nil, r.dispatcher.Execute(ctx, c.NodeID, c.Prompt)

	case CmdSaveWorkflow:
		return e.SaveWorkflow(c.Title), nil

	case CmdSaveGroupAsWorkflow:
		if err := c.require("groupId"); err != nil {
			return nil, err
		}
		return view.SaveGroupAsWorkflow(c.GroupID)

	case CmdLoadWorkflow:
		if err := c.require("workflowId"); err != nil {
			return nil, err
		}
		return nil, e.LoadWorkflow(c.WorkflowID)

	case CmdInstantiateWorkflow:
		if err := c.require("workflowId", "point"); err != nil {
			return nil, err
		}
		return view.InstantiateWorkflow(c.WorkflowID, *c.point())

	case CmdRenameWorkflow:
		if err := c.require("workflowId"); err != nil {
			return nil, err
		}
		return nil, e.RenameWorkflow(c.WorkflowID, c.Title)

	case CmdDeleteWorkflow:
		if err := c.require("workflowId"); err != nil {
			return nil, err
		}
		return nil, e.DeleteWorkflow(c.WorkflowID)

	case CmdDropAssets:
		if err := c.require("point"); err != nil {
			return nil, err
		}
		return e.DropAssets(*c.point(), c.Assets), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownCommand, c.Name)
}
