package editor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pagebuilder/internal/domain"
)

func TestDefaultRegistry_CoversEveryKind(t *testing.T) {
	r := DefaultRegistry()
	var seen []domain.ComponentType
	r.ForEach(func(p ComponentPlugin) {
		seen = append(seen, p.Type())
		n, err := r.NewNode("id-"+string(p.Type()), p.Type(), nil)
		require.NoError(t, err)
		assert.NoError(t, r.Validate(n), "defaults of %s must validate", p.Type())
	})
	assert.Equal(t, domain.ComponentTypes(), seen)
}

func TestRegistry_DefaultsAreFresh(t *testing.T) {
	r := DefaultRegistry()
	a, _ := r.NewNode("a", domain.ComponentForm, nil)
	b, _ := r.NewNode("b", domain.ComponentForm, nil)
	a.Props["submitText"] = "Send"
	assert.Equal(t, "Submit", b.Props["submitText"])
}

func TestRegistry_Validate(t *testing.T) {
	r := DefaultRegistry()
	tests := []struct {
		name    string
		node    domain.ComponentNode
		wantErr bool
	}{
		{"image without src", domain.ComponentNode{ID: "i", Type: domain.ComponentImage, Props: map[string]any{}}, true},
		{"image with src", domain.ComponentNode{ID: "i", Type: domain.ComponentImage, Props: map[string]any{"src": "a.png"}}, false},
		{"button text not a string", domain.ComponentNode{ID: "b", Type: domain.ComponentButton, Props: map[string]any{"text": 3}}, true},
		{"faq items not a list", domain.ComponentNode{ID: "f", Type: domain.ComponentFAQ, Props: map[string]any{"items": "x"}}, true},
		{"gallery strings list", domain.ComponentNode{ID: "g", Type: domain.ComponentGallery, Props: map[string]any{"images": []string{"a"}}}, false},
		{"unknown kind", domain.ComponentNode{ID: "u", Type: "slider"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.node)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_RegisterPanics(t *testing.T) {
	r := DefaultRegistry()
	assert.Panics(t, func() { r.Register(basicPlugin{typ: domain.ComponentHero}) })
	assert.Panics(t, func() { NewRegistry().Register(basicPlugin{typ: "slider"}) })
}

func TestRegistry_EmptyRegistryOnlyChecksStructure(t *testing.T) {
	r := NewRegistry()
	n, err := r.NewNode("x", domain.ComponentImage, nil)
	require.NoError(t, err)
	assert.NoError(t, r.Validate(n))

	_, err = r.NewNode("x", "slider", nil)
	assert.ErrorIs(t, err, domain.ErrUnknownComponentType)
}
