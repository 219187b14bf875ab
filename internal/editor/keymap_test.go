package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveShortcut(t *testing.T) {
	tests := []struct {
		name string
		ev   KeyEvent
		want Action
	}{
		{"ctrl z", KeyEvent{Key: "z", Ctrl: true}, ActionUndo},
		{"cmd z", KeyEvent{Key: "Z", Meta: true}, ActionUndo},
		{"ctrl shift z", KeyEvent{Key: "Z", Ctrl: true, Shift: true}, ActionRedo},
		{"cmd shift z", KeyEvent{Key: "z", Meta: true, Shift: true}, ActionRedo},
		{"ctrl y", KeyEvent{Key: "y", Ctrl: true}, ActionRedo},
		{"cmd y is not bound", KeyEvent{Key: "y", Meta: true}, ActionNone},
		{"plain z", KeyEvent{Key: "z"}, ActionNone},
		{"alt ctrl z", KeyEvent{Key: "z", Ctrl: true, Alt: true}, ActionNone},
		{"in input", KeyEvent{Key: "z", Ctrl: true, Target: "INPUT"}, ActionNone},
		{"in textarea", KeyEvent{Key: "z", Meta: true, Target: "textarea"}, ActionNone},
		{"in select", KeyEvent{Key: "y", Ctrl: true, Target: "SELECT"}, ActionNone},
		{"contenteditable", KeyEvent{Key: "z", Ctrl: true, Target: "DIV", Editable: true}, ActionNone},
		{"on a div", KeyEvent{Key: "z", Ctrl: true, Target: "DIV"}, ActionUndo},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveShortcut(tt.ev))
		})
	}
}

func TestActionString(t *testing.T) {
	assert.Equal(t, "undo", ActionUndo.String())
	assert.Equal(t, "redo", ActionRedo.String())
	assert.Equal(t, "none", ActionNone.String())
}
