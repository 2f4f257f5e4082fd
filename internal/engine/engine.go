package engine

import (
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/sunstudio/sunstudio/backend-go/internal/document"
	"github.com/sunstudio/sunstudio/backend-go/internal/typeid"
)

// IDSource mints ids for new scene objects.
type IDSource interface {
	Node() string
	Group() string
	Workflow() string
	Asset() string
}

type typeIDs struct{}

func (typeIDs) Node() string     { return typeid.NewNodeID() }
func (typeIDs) Group() string    { return typeid.NewGroupID() }
func (typeIDs) Workflow() string { return typeid.NewWorkflowID() }
func (typeIDs) Asset() string    { return typeid.NewAssetID() }

// Options configures a new Engine. Zero values pick defaults.
type Options struct {
	HistoryLimit   int
	ViewportWidth  float64
	ViewportHeight float64
	IDs            IDSource
	Now            func() time.Time
	Logger         *slog.Logger
}

// Engine owns one canvas: the scene, its history, saved workflows and the
// asset history. Per-person state lives in Viewers; the embedded Viewer is
// the engine's own, used by single-user hosts. All methods are safe for
// concurrent use; generation results from background actions are written
// through the same lock as pointer input.
type Engine struct {
	mu sync.Mutex

	*Viewer
	viewers map[string]*Viewer

	store          *Store
	history        *History
	workflows      []document.Workflow
	assets         []document.AssetEntry
	activeWorkflow string

	defaultW float64
	defaultH float64

	version  uint64
	onChange func()

	ids    IDSource
	now    func() time.Time
	logger *slog.Logger
}

// New creates an engine with an empty scene.
func New(opts Options) *Engine {
	if opts.ViewportWidth <= 0 {
		opts.ViewportWidth = 1920
	}
	if opts.ViewportHeight <= 0 {
		opts.ViewportHeight = 1080
	}
	if opts.IDs == nil {
		opts.IDs = typeIDs{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	e := &Engine{
		viewers:  make(map[string]*Viewer),
		store:    NewStore(nil),
		history:  NewHistory(opts.HistoryLimit),
		defaultW: opts.ViewportWidth,
		defaultH: opts.ViewportHeight,
		ids:      opts.IDs,
		now:      opts.Now,
		logger:   opts.Logger,
	}
	e.Viewer = e.join("")
	return e
}

// OnChange registers fn to run after every state change. It is called without
// the engine lock held.
func (e *Engine) OnChange(fn func()) {
	e.mu.Lock()
	e.onChange = fn
	e.mu.Unlock()
}

// mutate runs fn under the lock. When fn reports a change the version is
// bumped and the change hook fires after unlocking.
func (e *Engine) mutate(fn func() bool) bool {
	e.mu.Lock()
	changed := fn()
	if changed {
		e.version++
	}
	hook := e.onChange
	e.mu.Unlock()

	if changed && hook != nil {
		hook()
	}
	return changed
}

// snapshot records the live scene for undo. Callers hold e.mu.
func (e *Engine) snapshot() {
	e.history.Push(e.store.scene)
}

// --- Loading ---

// Load replaces the whole workspace. History is cleared, as is every viewer's
// selection and in-progress interaction. Nodes of unknown type are dropped.
func (e *Engine) Load(ws document.Workspace) {
	e.mutate(func() bool {
		scene := document.NewScene()
		if ws.Scene != nil {
			scene = ws.Scene.Clone()
		}
		scene.Nodes = slices.DeleteFunc(scene.Nodes, func(n document.Node) bool {
			if !n.Type.Valid() {
				e.logger.Debug("dropping node of unknown type", "node", n.ID, "type", n.Type)
				return true
			}
			return false
		})
		e.store.Replace(scene)
		e.history = NewHistory(e.history.limit)
		e.workflows = make([]document.Workflow, 0, len(ws.Workflows))
		for _, wf := range ws.Workflows {
			e.workflows = append(e.workflows, wf.Clone())
		}
		e.assets = slices.Clone(ws.Assets)
		for _, v := range e.viewers {
			v.reset()
		}
		e.activeWorkflow = ""
		return true
	})
}

// LoadSample replaces the workspace with the built-in sample pipeline.
func (e *Engine) LoadSample() {
	e.Load(document.Workspace{Scene: document.NewSampleScene()})
}

// Workspace returns a deep copy of everything that is persisted.
func (e *Engine) Workspace() document.Workspace {
	e.mu.Lock()
	defer e.mu.Unlock()
	ws := document.Workspace{
		Scene:     e.store.scene.Clone(),
		Workflows: make([]document.Workflow, 0, len(e.workflows)),
		Assets:    slices.Clone(e.assets),
	}
	for _, wf := range e.workflows {
		ws.Workflows = append(ws.Workflows, wf.Clone())
	}
	if ws.Assets == nil {
		ws.Assets = []document.AssetEntry{}
	}
	return ws
}

// --- Queries ---

// Scene returns a deep copy of the live scene.
func (e *Engine) Scene() *document.Scene {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.store.scene.Clone()
}

// Node returns a copy of the node with the given id.
func (e *Engine) Node(id string) (document.Node, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := e.store.Node(id)
	if n == nil {
		return document.Node{}, false
	}
	return n.Clone(), true
}

func (e *Engine) Version() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.version
}

// HistoryLen returns the number of retained undo entries.
func (e *Engine) HistoryLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.history.Len()
}

// --- History ---

// Undo restores the previous snapshot. Returns false when there is none.
func (e *Engine) Undo() bool {
	return e.mutate(func() bool {
		prev, ok := e.history.Undo(e.store.scene)
		if !ok {
			return false
		}
		e.store.Replace(prev)
		e.forgetMissing()
		return true
	})
}

// Redo re-applies the snapshot that the last Undo stepped back from.
func (e *Engine) Redo() bool {
	return e.mutate(func() bool {
		next, ok := e.history.Redo()
		if !ok {
			return false
		}
		e.store.Replace(next)
		e.forgetMissing()
		return true
	})
}

// forgetMissing drops every viewer's references to nodes and groups that no
// longer exist. Callers hold e.mu.
func (e *Engine) forgetMissing() {
	for _, v := range e.viewers {
		v.prune()
	}
}
