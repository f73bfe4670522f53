package action

type Status struct {
	HasUndo bool `json:"has_undo"`
	HasRedo bool `json:"has_redo"`
}

// History is a linear undo stack with a cursor between done and undone actions.
// limit <= 0 keeps everything.
type History struct {
	actions []Undoable
	cursor  int
	limit   int
}

func NewHistory(limit int) *History {
	return &History{limit: limit}
}

func isEmpty(a Undoable) bool {
	if a == nil {
		return true
	}
	if e, ok := a.(interface{ Empty() bool }); ok {
		return e.Empty()
	}
	return false
}

// Push applies a, drops the redo tail and records a.
func (h *History) Push(a Undoable) error {
	if isEmpty(a) {
		return ErrEmptyAction
	}
	a.Apply()
	for i := h.cursor; i < len(h.actions); i++ {
		h.actions[i] = nil
	}
	h.actions = append(h.actions[:h.cursor], a)
	if h.limit > 0 && len(h.actions) > h.limit {
		drop := len(h.actions) - h.limit
		copy(h.actions, h.actions[drop:])
		for i := h.limit; i < len(h.actions); i++ {
			h.actions[i] = nil
		}
		h.actions = h.actions[:h.limit]
	}
	h.cursor = len(h.actions)
	return nil
}

// Undo reverts the action before the cursor. It returns nil when there is nothing to undo.
func (h *History) Undo() Undoable {
	if h.cursor == 0 {
		return nil
	}
	h.cursor--
	a := h.actions[h.cursor]
	a.Revert()
	return a
}

// Redo re-applies the action at the cursor. It returns nil when there is nothing to redo.
func (h *History) Redo() Undoable {
	if h.cursor == len(h.actions) {
		return nil
	}
	a := h.actions[h.cursor]
	a.Apply()
	h.cursor++
	return a
}

func (h *History) Status() Status {
	return Status{HasUndo: h.cursor > 0, HasRedo: h.cursor < len(h.actions)}
}

func (h *History) Len() int { return len(h.actions) }

func (h *History) Clear() {
	h.actions = nil
	h.cursor = 0
}
