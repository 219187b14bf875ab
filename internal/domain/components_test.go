package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func node(id string, t ComponentType) ComponentNode {
	return ComponentNode{ID: id, Type: t, Props: map[string]any{"title": id}}
}

func seq(t *testing.T, nodes ...ComponentNode) Components {
	t.Helper()
	var c Components
	for i, n := range nodes {
		var err error
		c, err = c.Insert(n, i)
		require.NoError(t, err)
	}
	return c
}

func TestParseComponentType(t *testing.T) {
	got, err := ParseComponentType("hero")
	require.NoError(t, err)
	assert.Equal(t, ComponentHero, got)

	_, err = ParseComponentType("carousel3d")
	assert.True(t, errors.Is(err, ErrUnknownComponentType))
}

func TestInsert_ClampsIndex(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText))

	front, err := c.Insert(node("x", ComponentButton), -5)
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "a", "b"}, front.IDs())

	back, err := c.Insert(node("y", ComponentFooter), 99)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "y"}, back.IDs())

	// the receiver is untouched
	assert.Equal(t, []string{"a", "b"}, c.IDs())
}

func TestInsert_RejectsInvalidNodes(t *testing.T) {
	c := seq(t, node("a", ComponentHero))

	tests := []struct {
		name string
		node ComponentNode
		want error
	}{
		{"unknown type", ComponentNode{ID: "z", Type: "marquee"}, ErrUnknownComponentType},
		{"empty id", ComponentNode{Type: ComponentText}, ErrInvalidComponent},
		{"duplicate id", node("a", ComponentText), ErrDuplicateComponentID},
		{"non-json prop", ComponentNode{ID: "f", Type: ComponentText, Props: map[string]any{"fn": func() {}}}, ErrInvalidComponent},
		{"non-json style", ComponentNode{ID: "g", Type: ComponentText, Styles: map[string]any{"c": make(chan int)}}, ErrInvalidComponent},
		{"NaN prop", ComponentNode{ID: "h", Type: ComponentText, Props: map[string]any{"n": math.NaN()}}, ErrInvalidComponent},
		{"infinite style", ComponentNode{ID: "i", Type: ComponentText, Styles: map[string]any{"w": math.Inf(1)}}, ErrInvalidComponent},
		{"nested -Inf", ComponentNode{ID: "j", Type: ComponentText, Props: map[string]any{"xs": []any{1.0, float32(math.Inf(-1))}}}, ErrInvalidComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := c.Insert(tt.node, 0)
			assert.ErrorIs(t, err, tt.want)
			assert.Equal(t, c.IDs(), out.IDs())
		})
	}
}

func TestRemove_UnknownIDIsNoop(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText))
	assert.Equal(t, []string{"a", "b"}, c.Remove("missing").IDs())
	assert.Equal(t, []string{"b"}, c.Remove("a").IDs())
	assert.Equal(t, []string{"a", "b"}, c.IDs())
}

func TestUpdate_CopyOnWrite(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText))

	next, err := c.Update("a", map[string]any{"title": "Welcome"}, map[string]any{"color": "#fff"})
	require.NoError(t, err)

	assert.Equal(t, "a", c[0].Props["title"], "previous snapshot must not change")
	assert.Nil(t, c[0].Styles)
	assert.Equal(t, "Welcome", next[0].Props["title"])
	assert.Equal(t, "#fff", next[0].Styles["color"])

	same, err := c.Update("missing", map[string]any{"x": 1}, nil)
	require.NoError(t, err)
	assert.True(t, same.Equal(c))
}

func TestUpdate_RejectsMalformedProps(t *testing.T) {
	c := seq(t, node("a", ComponentHero))
	out, err := c.Update("a", map[string]any{"bad": struct{}{}}, nil)
	assert.ErrorIs(t, err, ErrInvalidComponent)
	assert.True(t, out.Equal(c))
}

func TestSetProp_MergesIntoCopy(t *testing.T) {
	c := seq(t, node("a", ComponentHero))
	next, err := c.SetProp("a", "subtitle", "Grow faster")
	require.NoError(t, err)

	assert.Equal(t, "a", next[0].Props["title"])
	assert.Equal(t, "Grow faster", next[0].Props["subtitle"])
	_, leaked := c[0].Props["subtitle"]
	assert.False(t, leaked)

	styled, err := next.SetStyle("a", "padding", "24px")
	require.NoError(t, err)
	assert.Equal(t, "24px", styled[0].Styles["padding"])
}

func TestMove(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText), node("c", ComponentFooter))

	assert.Equal(t, []string{"b", "c", "a"}, c.Move(0, 2).IDs())
	assert.Equal(t, []string{"c", "a", "b"}, c.Move(2, 0).IDs())
	assert.Equal(t, []string{"b", "c", "a"}, c.Move(0, 50).IDs(), "target clamps")
	assert.Equal(t, []string{"a", "b", "c"}, c.Move(7, 0).IDs(), "source out of range is a no-op")
	assert.Equal(t, []string{"a", "b", "c"}, c.Move(-1, 0).IDs())
	assert.Equal(t, []string{"a", "b", "c"}, c.IDs())
}

func TestReorder(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText), node("c", ComponentFooter))

	assert.Equal(t, []string{"c", "a", "b"}, c.Reorder([]string{"c", "a", "b"}).IDs())
	assert.Equal(t, []string{"a", "b", "c"}, c.Reorder([]string{"c", "a"}).IDs())
	assert.Equal(t, []string{"a", "b", "c"}, c.Reorder([]string{"c", "c", "a"}).IDs())
	assert.Equal(t, []string{"a", "b", "c"}, c.Reorder([]string{"c", "a", "zz"}).IDs())
}

func TestResequence_SliceOrderStaysAuthoritative(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText))
	r := c.Move(1, 0).Resequence()

	require.NotNil(t, r[0].Order)
	assert.Equal(t, "b", r[0].ID)
	assert.Equal(t, 0, *r[0].Order)
	assert.Equal(t, 1, *r[1].Order)
	assert.Nil(t, c[0].Order)
}

func TestDuplicate(t *testing.T) {
	c := seq(t, node("a", ComponentHero), node("b", ComponentText))
	next, err := c.Duplicate("a", "a2")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "a2", "b"}, next.IDs())
	assert.Equal(t, next[0].Props, next[1].Props)

	next[1].Props["title"] = "changed"
	assert.Equal(t, "a", next[0].Props["title"], "duplicate must be a deep copy")

	_, err = c.Duplicate("a", "b")
	assert.ErrorIs(t, err, ErrDuplicateComponentID)
}

func TestValidate_DetectsDuplicateIDs(t *testing.T) {
	c := Components{node("a", ComponentHero), node("a", ComponentText)}
	assert.ErrorIs(t, c.Validate(), ErrDuplicateComponentID)
}

func TestClone_IsDeep(t *testing.T) {
	c := seq(t, ComponentNode{
		ID:    "a",
		Type:  ComponentFeatures,
		Props: map[string]any{"items": []any{map[string]any{"title": "Fast"}}},
	})
	cp := c.Clone()
	cp[0].Props["items"].([]any)[0].(map[string]any)["title"] = "Slow"
	assert.Equal(t, "Fast", c[0].Props["items"].([]any)[0].(map[string]any)["title"])
	assert.True(t, Components{}.Equal(nil))
}

func TestSetProp_RejectsNonFiniteNumbers(t *testing.T) {
	c := seq(t, node("a", ComponentText))

	out, err := c.SetProp("a", "size", math.NaN())
	require.ErrorIs(t, err, ErrInvalidComponent)
	assert.Equal(t, c, out)

	_, err = c.SetStyle("a", "width", math.Inf(1))
	require.ErrorIs(t, err, ErrInvalidComponent)

	_, err = c.SetProp("a", "size", 1.5)
	require.NoError(t, err)
}

func TestPageSettings_Validate(t *testing.T) {
	require.NoError(t, PageSettings{Extra: map[string]any{"ratio": 0.5}}.Validate())
	require.ErrorIs(t, PageSettings{Extra: map[string]any{"ratio": math.NaN()}}.Validate(), ErrInvalidSettings)
}
