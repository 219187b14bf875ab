package editor

import (
	"fmt"
	"sort"
	"sync"

	"pagebuilder/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Component registry: per-kind defaults and prop checks
// ─────────────────────────────────────────────────────────────

// ComponentPlugin describes one component kind to the editor.
type ComponentPlugin interface {
	// Type returns the kind this plugin handles.
	Type() domain.ComponentType
	// Label is the palette name shown to users.
	Label() string
	// DefaultProps returns a fresh props map for a newly added node.
	DefaultProps() map[string]any
	// Validate checks props before they are committed.
	Validate(props map[string]any) error
}

// Registry manages the registered component plugins.
type Registry struct {
	mu      sync.RWMutex
	plugins map[domain.ComponentType]ComponentPlugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[domain.ComponentType]ComponentPlugin)}
}

// DefaultRegistry returns a registry holding the built-in plugin for every
// known component kind.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	for _, p := range builtinPlugins() {
		r.Register(p)
	}
	return r
}

// Register adds a plugin. Panics on duplicate registration or on a kind
// outside the closed set.
func (r *Registry) Register(p ComponentPlugin) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := p.Type()
	if !t.Valid() {
		panic(fmt.Sprintf("component registry: unknown component type %q", t))
	}
	if _, exists := r.plugins[t]; exists {
		panic(fmt.Sprintf("component registry: duplicate registration for component type %q", t))
	}
	r.plugins[t] = p
}

// Lookup returns the plugin for t.
func (r *Registry) Lookup(t domain.ComponentType) (ComponentPlugin, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.plugins[t]
	return p, ok
}

// ForEach iterates registered plugins in palette order.
func (r *Registry) ForEach(fn func(ComponentPlugin)) {
	r.mu.RLock()
	list := make([]ComponentPlugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		list = append(list, p)
	}
	r.mu.RUnlock()

	order := make(map[domain.ComponentType]int)
	for i, t := range domain.ComponentTypes() {
		order[t] = i
	}
	sort.Slice(list, func(i, j int) bool { return order[list[i].Type()] < order[list[j].Type()] })
	for _, p := range list {
		fn(p)
	}
}

// NewNode builds a node of kind t with the plugin defaults overlaid by props.
func (r *Registry) NewNode(id string, t domain.ComponentType, props map[string]any) (domain.ComponentNode, error) {
	if !t.Valid() {
		return domain.ComponentNode{}, fmt.Errorf("%w: %q", domain.ErrUnknownComponentType, t)
	}
	merged := map[string]any{}
	if p, ok := r.Lookup(t); ok {
		merged = p.DefaultProps()
	}
	for k, v := range props {
		merged[k] = v
	}
	return domain.ComponentNode{ID: id, Type: t, Props: merged}, nil
}

// Validate checks a node against its structural invariants and, when a
// plugin is registered for its kind, the plugin's prop rules.
func (r *Registry) Validate(n domain.ComponentNode) error {
	if err := n.Validate(); err != nil {
		return err
	}
	p, ok := r.Lookup(n.Type)
	if !ok {
		return nil
	}
	if err := p.Validate(n.Props); err != nil {
		return fmt.Errorf("%w: %s %s: %v", domain.ErrInvalidComponent, n.Type, n.ID, err)
	}
	return nil
}

// ── Built-in plugins ────────────────────────────────────────

type basicPlugin struct {
	typ      domain.ComponentType
	label    string
	defaults func() map[string]any
	required []string // props that must be non-empty strings
	lists    []string // props that must be arrays when present
}

func (p basicPlugin) Type() domain.ComponentType { return p.typ }
func (p basicPlugin) Label() string              { return p.label }

func (p basicPlugin) DefaultProps() map[string]any {
	if p.defaults == nil {
		return map[string]any{}
	}
	return p.defaults()
}

func (p basicPlugin) Validate(props map[string]any) error {
	for _, key := range p.required {
		s, ok := props[key].(string)
		if !ok || s == "" {
			return fmt.Errorf("prop %q must be a non-empty string", key)
		}
	}
	for _, key := range p.lists {
		v, present := props[key]
		if !present || v == nil {
			continue
		}
		switch v.(type) {
		case []any, []string:
		default:
			return fmt.Errorf("prop %q must be a list", key)
		}
	}
	return nil
}

func builtinPlugins() []ComponentPlugin {
	return []ComponentPlugin{
		basicPlugin{typ: domain.ComponentHero, label: "Hero",
			defaults: func() map[string]any {
				return map[string]any{"title": "Your headline here", "subtitle": "", "ctaText": "Get started", "ctaUrl": "#"}
			},
			required: []string{"title"}},
		basicPlugin{typ: domain.ComponentHeader, label: "Header",
			defaults: func() map[string]any { return map[string]any{"logo": "", "links": []any{}} },
			lists:    []string{"links"}},
		basicPlugin{typ: domain.ComponentText, label: "Text",
			defaults: func() map[string]any { return map[string]any{"content": "Write something..."} }},
		basicPlugin{typ: domain.ComponentImage, label: "Image",
			defaults: func() map[string]any { return map[string]any{"src": "https://placehold.co/1200x600", "alt": ""} },
			required: []string{"src"}},
		basicPlugin{typ: domain.ComponentVideo, label: "Video",
			defaults: func() map[string]any { return map[string]any{"url": "https://www.youtube.com/embed/", "autoplay": false} },
			required: []string{"url"}},
		basicPlugin{typ: domain.ComponentButton, label: "Button",
			defaults: func() map[string]any { return map[string]any{"text": "Click here", "url": "#", "variant": "primary"} },
			required: []string{"text"}},
		basicPlugin{typ: domain.ComponentForm, label: "Form",
			defaults: func() map[string]any {
				return map[string]any{
					"fields": []any{
						map[string]any{"name": "name", "label": "Name", "type": "text", "required": true},
						map[string]any{"name": "email", "label": "Email", "type": "email", "required": true},
					},
					"submitText": "Submit",
				}
			},
			lists: []string{"fields"}},
		basicPlugin{typ: domain.ComponentFeatures, label: "Features",
			defaults: func() map[string]any { return map[string]any{"title": "Features", "items": []any{}} },
			lists:    []string{"items"}},
		basicPlugin{typ: domain.ComponentTestimonials, label: "Testimonials",
			defaults: func() map[string]any { return map[string]any{"title": "What people say", "items": []any{}} },
			lists:    []string{"items"}},
		basicPlugin{typ: domain.ComponentPricing, label: "Pricing",
			defaults: func() map[string]any { return map[string]any{"title": "Pricing", "plans": []any{}} },
			lists:    []string{"plans"}},
		basicPlugin{typ: domain.ComponentFAQ, label: "FAQ",
			defaults: func() map[string]any { return map[string]any{"title": "Frequently asked questions", "items": []any{}} },
			lists:    []string{"items"}},
		basicPlugin{typ: domain.ComponentCTA, label: "Call to action",
			defaults: func() map[string]any {
				return map[string]any{"title": "Ready to start?", "buttonText": "Sign up", "buttonUrl": "#"}
			},
			required: []string{"buttonText"}},
		basicPlugin{typ: domain.ComponentCountdown, label: "Countdown",
			defaults: func() map[string]any { return map[string]any{"targetDate": "", "expiredText": "Offer ended"} }},
		basicPlugin{typ: domain.ComponentGallery, label: "Gallery",
			defaults: func() map[string]any { return map[string]any{"images": []any{}, "columns": 3} },
			lists:    []string{"images"}},
		basicPlugin{typ: domain.ComponentDivider, label: "Divider",
			defaults: func() map[string]any { return map[string]any{"style": "solid"} }},
		basicPlugin{typ: domain.ComponentSpacer, label: "Spacer",
			defaults: func() map[string]any { return map[string]any{"height": 40} }},
		basicPlugin{typ: domain.ComponentFooter, label: "Footer",
			defaults: func() map[string]any { return map[string]any{"text": "", "links": []any{}} },
			lists:    []string{"links"}},
		basicPlugin{typ: domain.ComponentHTML, label: "Custom HTML",
			defaults: func() map[string]any { return map[string]any{"html": ""} }},
	}
}
