package domain

import (
	"fmt"
	"maps"
	"math"
	"reflect"
	"slices"
)

// ComponentType is the kind of a landing-page component. The set is closed:
// anything not listed here is rejected when a node is inserted.
type ComponentType string

const (
	ComponentHero         ComponentType = "hero"
	ComponentHeader       ComponentType = "header"
	ComponentText         ComponentType = "text"
	ComponentImage        ComponentType = "image"
	ComponentVideo        ComponentType = "video"
	ComponentButton       ComponentType = "button"
	ComponentForm         ComponentType = "form"
	ComponentFeatures     ComponentType = "features"
	ComponentTestimonials ComponentType = "testimonials"
	ComponentPricing      ComponentType = "pricing"
	ComponentFAQ          ComponentType = "faq"
	ComponentCTA          ComponentType = "cta"
	ComponentCountdown    ComponentType = "countdown"
	ComponentGallery      ComponentType = "gallery"
	ComponentDivider      ComponentType = "divider"
	ComponentSpacer       ComponentType = "spacer"
	ComponentFooter       ComponentType = "footer"
	ComponentHTML         ComponentType = "html"
)

var componentTypes = []ComponentType{
	ComponentHero, ComponentHeader, ComponentText, ComponentImage, ComponentVideo,
	ComponentButton, ComponentForm, ComponentFeatures, ComponentTestimonials,
	ComponentPricing, ComponentFAQ, ComponentCTA, ComponentCountdown, ComponentGallery,
	ComponentDivider, ComponentSpacer, ComponentFooter, ComponentHTML,
}

// ComponentTypes returns every known component kind in palette order.
func ComponentTypes() []ComponentType {
	return slices.Clone(componentTypes)
}

// Valid reports whether t is one of the known component kinds.
func (t ComponentType) Valid() bool {
	return slices.Contains(componentTypes, t)
}

// ParseComponentType converts a raw kind name, rejecting unknown kinds.
func ParseComponentType(s string) (ComponentType, error) {
	t := ComponentType(s)
	if !t.Valid() {
		return "", fmt.Errorf("%w: %q", ErrUnknownComponentType, s)
	}
	return t, nil
}

// ComponentNode is one typed element of a landing page.
// Order is only used for explicit resequencing; slice position in
// Components is always the authoritative display order.
type ComponentNode struct {
	ID     string         `json:"id"`
	Type   ComponentType  `json:"type"`
	Order  *int           `json:"order,omitempty"`
	Props  map[string]any `json:"props"`
	Styles map[string]any `json:"styles,omitempty"`
}

// Validate checks the structural invariants of a single node.
func (n ComponentNode) Validate() error {
	if n.ID == "" {
		return fmt.Errorf("%w: empty id", ErrInvalidComponent)
	}
	if !n.Type.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownComponentType, n.Type)
	}
	if err := validateJSONMap(n.Props); err != nil {
		return fmt.Errorf("%w: props of %s: %v", ErrInvalidComponent, n.ID, err)
	}
	if err := validateJSONMap(n.Styles); err != nil {
		return fmt.Errorf("%w: styles of %s: %v", ErrInvalidComponent, n.ID, err)
	}
	return nil
}

// Clone returns a deep copy of the node.
func (n ComponentNode) Clone() ComponentNode {
	out := n
	if n.Order != nil {
		o := *n.Order
		out.Order = &o
	}
	out.Props = cloneMap(n.Props)
	out.Styles = cloneMap(n.Styles)
	return out
}

// Equal reports deep equality of two nodes.
func (n ComponentNode) Equal(other ComponentNode) bool {
	return reflect.DeepEqual(n, other)
}

// validateJSONMap accepts only values that survive a JSON round trip.
func validateJSONMap(m map[string]any) error {
	for k, v := range m {
		if err := validateJSONValue(v); err != nil {
			return fmt.Errorf("key %q: %w", k, err)
		}
	}
	return nil
}

func validateJSONValue(v any) error {
	switch val := v.(type) {
	case nil, bool, string, int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64:
		return nil
	case float64:
		return validateFloat(val)
	case float32:
		return validateFloat(float64(val))
	case []any:
		for i, item := range val {
			if err := validateJSONValue(item); err != nil {
				return fmt.Errorf("index %d: %w", i, err)
			}
		}
		return nil
	case []string:
		return nil
	case map[string]any:
		return validateJSONMap(val)
	default:
		return fmt.Errorf("unsupported value of type %T", v)
	}
}

// JSON has no encoding for NaN or the infinities.
func validateFloat(f float64) error {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("non-finite number %v", f)
	}
	return nil
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return cloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = cloneValue(item)
		}
		return out
	case []string:
		return slices.Clone(val)
	default:
		return v
	}
}

// mergeMap returns a copy of base with patch applied on top.
func mergeMap(base, patch map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(patch))
	maps.Copy(out, base)
	maps.Copy(out, patch)
	return out
}
