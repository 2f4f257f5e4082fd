package engine

import "github.com/sunstudio/sunstudio/backend-go/internal/document"

// DefaultHistoryLimit caps the undo stack.
const DefaultHistoryLimit = 50

// History is a bounded stack of scene snapshots. Snapshots are pushed before a
// mutation. Entries past the cursor form the redo branch and survive until the
// next Push.
type History struct {
	limit   int
	entries []*document.Scene
	cursor  int // number of entries that can be undone to
}

func NewHistory(limit int) *History {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	return &History{limit: limit}
}

// Push records a deep copy of scene, discarding any redo branch and evicting
// the oldest entries beyond the limit.
func (h *History) Push(scene *document.Scene) {
	h.entries = append(h.entries[:h.cursor], scene.Clone())
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append([]*document.Scene(nil), h.entries[over:]...)
	}
	h.cursor = len(h.entries)
}

// Undo returns the scene to restore, given the live scene. The first undo after
// a push keeps the live scene as the redo tip, evicting the oldest entry when
// the stack is full. Returns false when there is nothing to undo.
func (h *History) Undo(current *document.Scene) (*document.Scene, bool) {
	if h.cursor <= 0 {
		return nil, false
	}
	if h.cursor == len(h.entries) {
		h.entries = append(h.entries, current.Clone())
		if over := len(h.entries) - h.limit; over > 0 {
			h.entries = append([]*document.Scene(nil), h.entries[over:]...)
			h.cursor -= over
		}
	}
	if h.cursor <= 0 {
		return nil, false
	}
	h.cursor--
	return h.entries[h.cursor].Clone(), true
}

// Redo steps forward along the retained redo branch.
func (h *History) Redo() (*document.Scene, bool) {
	if h.cursor+1 >= len(h.entries) {
		return nil, false
	}
	h.cursor++
	return h.entries[h.cursor].Clone(), true
}

// Len returns the number of retained entries.
func (h *History) Len() int { return len(h.entries) }

// CanUndo reports whether Undo would change anything.
func (h *History) CanUndo() bool { return h.cursor > 0 }

// CanRedo reports whether Redo would change anything.
func (h *History) CanRedo() bool { return h.cursor+1 < len(h.entries) }

// Entry returns a copy of the i-th retained snapshot, oldest first.
func (h *History) Entry(i int) (*document.Scene, bool) {
	if i < 0 || i >= len(h.entries) {
		return nil, false
	}
	return h.entries[i].Clone(), true
}
