package engine

import (
	"slices"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
)

const defaultWorkflowTitle = "Untitled Workflow"

func thumbnailOf(nodes []document.Node) string {
	for _, n := range nodes {
		if n.Data.Image != "" {
			return n.Data.Image
		}
	}
	return ""
}

func (e *Engine) workflowIndex(id string) int {
	return slices.IndexFunc(e.workflows, func(w document.Workflow) bool { return w.ID == id })
}

// Workflows returns deep copies of the saved workflows, newest first.
func (e *Engine) Workflows() []document.Workflow {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]document.Workflow, 0, len(e.workflows))
	for _, wf := range e.workflows {
		out = append(out, wf.Clone())
	}
	return out
}

// SaveWorkflow stores the whole scene as a named template.
func (e *Engine) SaveWorkflow(title string) string {
	var id string
	e.mutate(func() bool {
		if title == "" {
			title = "Workflow " + e.now().Format("2006-01-02")
		}
		sc := e.store.scene.Clone()
		wf := document.Workflow{
			ID:          e.ids.Workflow(),
			Title:       title,
			Thumbnail:   thumbnailOf(sc.Nodes),
			Nodes:       sc.Nodes,
			Connections: sc.Connections,
			Groups:      sc.Groups,
		}
		e.workflows = slices.Insert(e.workflows, 0, wf)
		id = wf.ID
		return true
	})
	return id
}

// SaveGroupAsWorkflow stores a group, its current members and the connections
// between them as a template.
func (v *Viewer) SaveGroupAsWorkflow(groupID string) (string, error) {
	var id string
	err := ErrGroupNotFound
	v.e.mutate(func() bool {
		g := v.e.store.Group(groupID)
		if g == nil {
			return false
		}
		members := v.membersOf(*g)
		wf := document.Workflow{
			ID:          v.e.ids.Workflow(),
			Title:       g.Title,
			Nodes:       []document.Node{},
			Connections: []document.Connection{},
			Groups:      []document.Group{*g},
		}
		if wf.Title == "" {
			wf.Title = defaultWorkflowTitle
		}
		for _, m := range members {
			wf.Nodes = append(wf.Nodes, v.e.store.Node(m).Clone())
		}
		for _, c := range v.e.store.scene.Connections {
			if slices.Contains(members, c.From) && slices.Contains(members, c.To) {
				wf.Connections = append(wf.Connections, c)
			}
		}
		wf.Thumbnail = thumbnailOf(wf.Nodes)
		v.e.workflows = slices.Insert(v.e.workflows, 0, wf)
		id, err = wf.ID, nil
		return true
	})
	return id, err
}

// LoadWorkflow replaces the scene with a copy of the workflow.
func (e *Engine) LoadWorkflow(id string) error {
	err := ErrWorkflowNotFound
	e.mutate(func() bool {
		i := e.workflowIndex(id)
		if i < 0 {
			return false
		}
		wf := e.workflows[i].Clone()
		e.snapshot()
		e.store.Replace(&document.Scene{Nodes: wf.Nodes, Connections: wf.Connections, Groups: wf.Groups})
		e.activeWorkflow = id
		for _, v := range e.viewers {
			v.interaction = nil
			v.menu = nil
			v.prune()
		}
		err = nil
		return true
	})
	return err
}

// InstantiateWorkflow adds a fresh copy of the workflow centred on a world
// point. Every node and group gets a new id; connections and inputs are
// remapped through the new ids and references to nodes outside the workflow
// are dropped. Copies start idle.
func (v *Viewer) InstantiateWorkflow(id string, at Point) ([]string, error) {
	var ids []string
	err := ErrWorkflowNotFound
	v.e.mutate(func() bool {
		i := v.e.workflowIndex(id)
		if i < 0 {
			return false
		}
		err = nil
		wf := v.e.workflows[i].Clone()
		if len(wf.Nodes) == 0 {
			return false
		}
		if !finite(at.X) || !finite(at.Y) {
			at = v.viewportCenter()
		}

		extent := NodeBounds(&wf.Nodes[0], false)
		for j := range wf.Nodes[1:] {
			extent = extent.Union(NodeBounds(&wf.Nodes[j+1], false))
		}
		cx, cy := extent.Center()
		dx, dy := at.X-cx, at.Y-cy

		idMap := make(map[string]string, len(wf.Nodes))
		for _, n := range wf.Nodes {
			idMap[n.ID] = v.e.ids.Node()
		}
		remap := func(old []string) []string {
			out := make([]string, 0, len(old))
			for _, o := range old {
				if nid, ok := idMap[o]; ok {
					out = append(out, nid)
				}
			}
			return out
		}

		v.e.snapshot()
		for _, n := range wf.Nodes {
			n.ID = idMap[n.ID]
			n.X += dx
			n.Y += dy
			n.Status = document.StatusIdle
			n.Inputs = remap(n.Inputs)
			if n.Data.SortedInputIDs != nil {
				n.Data.SortedInputIDs = remap(n.Data.SortedInputIDs)
			}
			v.e.store.AddNode(n)
			ids = append(ids, n.ID)
		}
		for _, c := range wf.Connections {
			from, okF := idMap[c.From]
			to, okT := idMap[c.To]
			if okF && okT {
				v.e.store.scene.Connections = append(v.e.store.scene.Connections, document.Connection{From: from, To: to})
			}
		}
		for _, g := range wf.Groups {
			g.ID = v.e.ids.Group()
			g.X += dx
			g.Y += dy
			v.e.store.AddGroup(g)
		}
		v.selection = slices.Clone(ids)
		return true
	})
	return ids, err
}

// DeleteWorkflow removes a saved workflow.
func (e *Engine) DeleteWorkflow(id string) error {
	err := ErrWorkflowNotFound
	e.mutate(func() bool {
		i := e.workflowIndex(id)
		if i < 0 {
			return false
		}
		e.workflows = slices.Delete(e.workflows, i, i+1)
		if e.activeWorkflow == id {
			e.activeWorkflow = ""
		}
		err = nil
		return true
	})
	return err
}

// RenameWorkflow sets a saved workflow's title.
func (e *Engine) RenameWorkflow(id, title string) error {
	err := ErrWorkflowNotFound
	e.mutate(func() bool {
		i := e.workflowIndex(id)
		if i < 0 {
			return false
		}
		e.workflows[i].Title = title
		err = nil
		return true
	})
	return err
}

// --- Asset history ---

// Assets returns the asset history, newest first.
func (e *Engine) Assets() []document.AssetEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return slices.Clone(e.assets)
}

// RecordAsset adds media to the asset history unless its src is already known.
func (e *Engine) RecordAsset(t document.AssetType, src, title string) bool {
	return e.mutate(func() bool {
		return e.recordAsset(t, src, title)
	})
}

func (e *Engine) recordAsset(t document.AssetType, src, title string) bool {
	if src == "" || slices.ContainsFunc(e.assets, func(a document.AssetEntry) bool { return a.Src == src }) {
		return false
	}
	e.assets = slices.Insert(e.assets, 0, document.AssetEntry{
		ID:        e.ids.Asset(),
		Type:      t,
		Src:       src,
		Title:     title,
		Timestamp: e.now().UnixMilli(),
	})
	return true
}
