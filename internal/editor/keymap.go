package editor

import "strings"

// Action is what a key press resolves to.
type Action int

const (
	ActionNone Action = iota
	ActionUndo
	ActionRedo
)

func (a Action) String() string {
	switch a {
	case ActionUndo:
		return "undo"
	case ActionRedo:
		return "redo"
	default:
		return "none"
	}
}

// KeyEvent is a key press as reported by the host UI.
type KeyEvent struct {
	Key   string `json:"key"`
	Ctrl  bool   `json:"ctrlKey"`
	Meta  bool   `json:"metaKey"`
	Shift bool   `json:"shiftKey"`
	Alt   bool   `json:"altKey"`
	// Target is the tag name of the focused element, e.g. "INPUT".
	Target string `json:"target"`
	// Editable is set when the focused element is contenteditable.
	Editable bool `json:"editable"`
}

var textInputTargets = map[string]bool{
	"input":    true,
	"textarea": true,
	"select":   true,
}

// InTextInput reports whether focus is inside a text-input-like control.
func (e KeyEvent) InTextInput() bool {
	return e.Editable || textInputTargets[strings.ToLower(e.Target)]
}

// ResolveShortcut maps a key press to an undo or redo action.
// Ctrl/Cmd+Z undoes, Ctrl/Cmd+Shift+Z and Ctrl+Y redo. Presses while a text
// input has focus are left to the input.
func ResolveShortcut(e KeyEvent) Action {
	if e.InTextInput() || e.Alt {
		return ActionNone
	}
	mod := e.Ctrl || e.Meta
	if !mod {
		return ActionNone
	}
	switch strings.ToLower(e.Key) {
	case "z":
		if e.Shift {
			return ActionRedo
		}
		return ActionUndo
	case "y":
		if e.Ctrl && !e.Shift {
			return ActionRedo
		}
	}
	return ActionNone
}
