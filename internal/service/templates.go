package service

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Templates: built-in starting points for new pages
// ─────────────────────────────────────────────────────────────

// Template is a ready-made page layout.
type Template struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    domain.Category `json:"category"`
	components  func() domain.Components
}

// Components returns a fresh copy of the template layout with new component
// ids, so two pages created from one template never share ids.
func (t Template) Components() domain.Components {
	if t.components == nil {
		return domain.Components{}
	}
	return lo.Map(t.components(), func(n domain.ComponentNode, _ int) domain.ComponentNode {
		n = n.Clone()
		n.ID = uuid.NewString()
		return n
	})
}

func node(t domain.ComponentType, props map[string]any) domain.ComponentNode {
	return domain.ComponentNode{Type: t, Props: props}
}

var templates = []Template{
	{
		ID:          "blank",
		Name:        "Blank page",
		Description: "Start from an empty canvas",
		Category:    domain.CategoryOther,
	},
	{
		ID:          "lead-capture",
		Name:        "Lead capture",
		Description: "Headline, benefits and a sign-up form",
		Category:    domain.CategoryLeadCapture,
		components: func() domain.Components {
			return domain.Components{
				node(domain.ComponentHero, map[string]any{"title": "Get the free guide", "subtitle": "Everything you need in one PDF", "ctaText": "Download now", "ctaUrl": "#form"}),
				node(domain.ComponentFeatures, map[string]any{"title": "What you will learn", "items": []any{}}),
				node(domain.ComponentForm, map[string]any{
					"fields": []any{
						map[string]any{"name": "name", "label": "Name", "type": "text", "required": true},
						map[string]any{"name": "email", "label": "Email", "type": "email", "required": true},
					},
					"submitText": "Send me the guide",
				}),
				node(domain.ComponentFooter, map[string]any{"text": "", "links": []any{}}),
			}
		},
	},
	{
		ID:          "webinar",
		Name:        "Webinar registration",
		Description: "Countdown to the event with a registration form",
		Category:    domain.CategoryWebinar,
		components: func() domain.Components {
			return domain.Components{
				node(domain.ComponentHero, map[string]any{"title": "Live webinar", "subtitle": "Save your seat", "ctaText": "Register", "ctaUrl": "#form"}),
				node(domain.ComponentCountdown, map[string]any{"targetDate": "", "expiredText": "The webinar has started"}),
				node(domain.ComponentText, map[string]any{"content": "About the session"}),
				node(domain.ComponentForm, map[string]any{
					"fields":     []any{map[string]any{"name": "email", "label": "Email", "type": "email", "required": true}},
					"submitText": "Register",
				}),
				node(domain.ComponentFooter, map[string]any{"text": "", "links": []any{}}),
			}
		},
	},
	{
		ID:          "product-launch",
		Name:        "Product launch",
		Description: "Hero, features, pricing, testimonials and FAQ",
		Category:    domain.CategoryProduct,
		components: func() domain.Components {
			return domain.Components{
				node(domain.ComponentHeader, map[string]any{"logo": "", "links": []any{}}),
				node(domain.ComponentHero, map[string]any{"title": "Meet the new product", "subtitle": "", "ctaText": "Buy now", "ctaUrl": "#pricing"}),
				node(domain.ComponentFeatures, map[string]any{"title": "Features", "items": []any{}}),
				node(domain.ComponentPricing, map[string]any{"title": "Pricing", "plans": []any{}}),
				node(domain.ComponentTestimonials, map[string]any{"title": "What people say", "items": []any{}}),
				node(domain.ComponentFAQ, map[string]any{"title": "Frequently asked questions", "items": []any{}}),
				node(domain.ComponentCTA, map[string]any{"title": "Ready to start?", "buttonText": "Buy now", "buttonUrl": "#pricing"}),
				node(domain.ComponentFooter, map[string]any{"text": "", "links": []any{}}),
			}
		},
	},
}

// ListTemplates returns the built-in templates.
func ListTemplates() []Template {
	return append([]Template(nil), templates...)
}

// LookupTemplate finds a template by id.
func LookupTemplate(id string) (Template, error) {
	t, ok := lo.Find(templates, func(t Template) bool { return t.ID == id })
	if !ok {
		return Template{}, fmt.Errorf("unknown template %q", id)
	}
	return t, nil
}
