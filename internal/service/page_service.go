package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"pagebuilder/internal/domain"
)

// ─────────────────────────────────────────────────────────────
// Page Service: page lifecycle outside of an editing session
// ─────────────────────────────────────────────────────────────

// PageSummary is the listing form of a page.
type PageSummary struct {
	ID         string          `json:"id"`
	Name       string          `json:"name"`
	Category   domain.Category `json:"category"`
	Components int             `json:"components"`
	Published  bool            `json:"published"`
	Open       bool            `json:"open"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

// PageService creates, lists and deletes pages.
type PageService struct {
	store   domain.DocumentStore
	editors *EditorService
	emitter EventEmitter
	log     *zap.Logger
}

// NewPageService creates a PageService. editors may be nil when no
// sessions are ever opened, e.g. from the CLI.
func NewPageService(store domain.DocumentStore, editors *EditorService, emitter EventEmitter, log *zap.Logger) *PageService {
	if log == nil {
		log = zap.NewNop()
	}
	if emitter == nil {
		emitter = LogEmitter{Log: log}
	}
	return &PageService{store: store, editors: editors, emitter: emitter, log: log}
}

// ListPages returns page summaries, most recently updated first.
func (s *PageService) ListPages(ctx context.Context) ([]PageSummary, error) {
	docs, err := s.store.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	out := lo.Map(docs, func(d domain.Document, _ int) PageSummary {
		return PageSummary{
			ID:         d.ID,
			Name:       d.Name,
			Category:   d.Category,
			Components: d.Components.Len(),
			Published:  d.Settings.Published,
			Open:       s.editors != nil && s.editors.IsOpen(d.ID),
			UpdatedAt:  d.UpdatedAt,
		}
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

// GetPage returns the durable copy of a page. When a session is open the
// live state is returned instead.
func (s *PageService) GetPage(ctx context.Context, id string) (*domain.Document, error) {
	if s.editors != nil {
		if sess, err := s.editors.Session(id); err == nil {
			doc := sess.Document()
			return &doc, nil
		}
	}
	return s.store.GetDocument(ctx, id)
}

// CreatePage creates an empty page.
func (s *PageService) CreatePage(ctx context.Context, name, category string) (*domain.Document, error) {
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return nil, err
	}
	return s.create(ctx, name, cat, domain.Components{}, domain.PageSettings{})
}

// CreateFromTemplate creates a page from a built-in template. An empty name
// uses the template name.
func (s *PageService) CreateFromTemplate(ctx context.Context, templateID, name string) (*domain.Document, error) {
	t, err := LookupTemplate(templateID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = t.Name
	}
	return s.create(ctx, name, t.Category, t.Components(), domain.PageSettings{Title: name})
}

// DuplicatePage copies the durable state of a page under a new id.
func (s *PageService) DuplicatePage(ctx context.Context, id, name string) (*domain.Document, error) {
	src, err := s.store.GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(name) == "" {
		name = src.Name + " (copy)"
	}
	components := lo.Map(src.Components, func(n domain.ComponentNode, _ int) domain.ComponentNode {
		n = n.Clone()
		n.ID = uuid.NewString()
		return n
	})
	settings := src.Settings.Clone()
	settings.Slug = ""
	settings.Published = false
	return s.create(ctx, name, src.Category, components, settings)
}

func (s *PageService) create(ctx context.Context, name string, cat domain.Category, components domain.Components, settings domain.PageSettings) (*domain.Document, error) {
	if strings.TrimSpace(name) == "" {
		name = "Untitled page"
	}
	doc := &domain.Document{
		ID:         uuid.NewString(),
		Name:       name,
		Category:   cat,
		Components: components,
		Settings:   settings,
	}
	if err := s.store.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}
	s.log.Info("page created", zap.String("page_id", doc.ID), zap.String("name", doc.Name))
	s.emitter.Emit(ctx, EventPageCreated, PageSummary{
		ID: doc.ID, Name: doc.Name, Category: doc.Category,
		Components: doc.Components.Len(), UpdatedAt: doc.UpdatedAt,
	})
	return doc, nil
}

// RenamePage changes the page name.
func (s *PageService) RenamePage(ctx context.Context, id, name string) error {
	if strings.TrimSpace(name) == "" {
		return errors.New("page name is required")
	}
	return s.updateMeta(ctx, id, func(d *domain.Document) { d.Name = name })
}

// UpdateCategory changes the page category.
func (s *PageService) UpdateCategory(ctx context.Context, id, category string) error {
	cat, err := domain.ParseCategory(category)
	if err != nil {
		return err
	}
	return s.updateMeta(ctx, id, func(d *domain.Document) { d.Category = cat })
}

// updateMeta changes page metadata in place. Components and settings stay
// as stored; an open session keeps writing its own.
func (s *PageService) updateMeta(ctx context.Context, id string, fn func(*domain.Document)) error {
	doc, err := s.store.UpdateMeta(ctx, id, fn)
	if err != nil {
		return err
	}
	s.log.Info("page updated", zap.String("page_id", id), zap.String("name", doc.Name), zap.String("category", string(doc.Category)))
	return nil
}

// DeletePage removes a page together with its version list. An open session
// on the page is closed without saving first so no late autosave recreates
// it.
func (s *PageService) DeletePage(ctx context.Context, id string) error {
	if s.editors != nil && s.editors.IsOpen(id) {
		if err := s.editors.Close(ctx, id, false); err != nil {
			return err
		}
	}
	if err := s.store.DeleteDocument(ctx, id); err != nil {
		return err
	}
	s.log.Info("page deleted", zap.String("page_id", id))
	s.emitter.Emit(ctx, EventPageDeleted, id)
	return nil
}

// ListVersions returns the stored versions of a page, most recent first.
func (s *PageService) ListVersions(ctx context.Context, id string) ([]domain.VersionRecord, error) {
	return s.store.ListVersions(ctx, id)
}

// ListTemplates returns the template catalog.
func (s *PageService) ListTemplates() []Template {
	return ListTemplates()
}
