package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"

	"pagebuilder/internal/domain"
)

const (
	pagesKey          = "landing_pages"
	versionsKeyPrefix = "landing_page_versions:"

	// DefaultMaxVersions is how many version records are kept per page.
	DefaultMaxVersions = 50

	untitledPageName = "Untitled page"
)

func versionsKey(id string) string { return versionsKeyPrefix + id }

// PageStore implements domain.DocumentStore on top of a Backend. The whole
// page collection lives under one key and is always read and written whole.
type PageStore struct {
	backend     Backend
	maxVersions int
	now         func() time.Time
}

var _ domain.DocumentStore = (*PageStore)(nil)

// PageStoreOption configures a PageStore.
type PageStoreOption func(*PageStore)

// WithMaxVersions sets the per-page version cap. n <= 0 keeps the default.
func WithMaxVersions(n int) PageStoreOption {
	return func(s *PageStore) {
		if n > 0 {
			s.maxVersions = n
		}
	}
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) PageStoreOption {
	return func(s *PageStore) { s.now = now }
}

func NewPageStore(backend Backend, opts ...PageStoreOption) *PageStore {
	s := &PageStore{
		backend:     backend,
		maxVersions: DefaultMaxVersions,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// MaxVersions returns the per-page version cap.
func (s *PageStore) MaxVersions() int { return s.maxVersions }

// ── Documents ───────────────────────────────────────────────

func (s *PageStore) ListDocuments(ctx context.Context) ([]domain.Document, error) {
	raw, err := s.backend.Get(ctx, pagesKey)
	if err != nil {
		return nil, fmt.Errorf("load pages: %w", err)
	}
	return decodeDocuments(raw)
}

func (s *PageStore) GetDocument(ctx context.Context, id string) (*domain.Document, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	doc, ok := lo.Find(docs, func(d domain.Document) bool { return d.ID == id })
	if !ok {
		return nil, fmt.Errorf("get page %s: %w", id, domain.ErrDocumentNotFound)
	}
	return &doc, nil
}

// CreateDocument appends doc to the collection, stamping CreatedAt and
// UpdatedAt.
func (s *PageStore) CreateDocument(ctx context.Context, doc *domain.Document) error {
	if err := doc.Components.Validate(); err != nil {
		return err
	}
	now := s.now().UTC()
	doc.CreatedAt = now
	doc.UpdatedAt = now
	if doc.Components == nil {
		doc.Components = domain.Components{}
	}
	return s.updateDocuments(ctx, func(docs []domain.Document) ([]domain.Document, error) {
		if lo.ContainsBy(docs, func(d domain.Document) bool { return d.ID == doc.ID }) {
			return nil, fmt.Errorf("create page %s: id already exists", doc.ID)
		}
		return append(docs, doc.Clone()), nil
	})
}

// UpdateMeta applies fn to the stored page inside one atomic update and
// returns the result. fn may change Name and Category; components, settings
// and timestamps are restored from the stored copy so a concurrent save is
// never rolled back.
func (s *PageStore) UpdateMeta(ctx context.Context, id string, fn func(*domain.Document)) (*domain.Document, error) {
	var updated domain.Document
	err := s.updateDocuments(ctx, func(docs []domain.Document) ([]domain.Document, error) {
		_, idx, ok := lo.FindIndexOf(docs, func(d domain.Document) bool { return d.ID == id })
		if !ok {
			return nil, fmt.Errorf("update page %s: %w", id, domain.ErrDocumentNotFound)
		}
		stored := docs[idx]
		next := stored.Clone()
		fn(&next)
		stored.Name = next.Name
		stored.Category = next.Category
		stored.UpdatedAt = s.now().UTC()
		docs[idx] = stored
		updated = stored.Clone()
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return &updated, nil
}

// SaveSnapshot writes components and settings into the page with the given
// id, appending a new page when none exists, and bumps UpdatedAt. The whole
// collection is rewritten in one atomic backend update.
func (s *PageStore) SaveSnapshot(ctx context.Context, id string, components domain.Components, settings domain.PageSettings) (*domain.Document, error) {
	var saved domain.Document
	err := s.updateDocuments(ctx, func(docs []domain.Document) ([]domain.Document, error) {
		docs, saved = s.applySnapshot(docs, id, components, settings)
		return docs, nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

// CommitSnapshot is SaveSnapshot plus a version record of the same state,
// written in one atomic update over both keys. On error neither the page
// nor its version list changes.
func (s *PageStore) CommitSnapshot(ctx context.Context, id string, components domain.Components, settings domain.PageSettings) (*domain.Document, error) {
	var saved domain.Document
	keys := []string{pagesKey, versionsKey(id)}
	err := s.backend.UpdateMany(ctx, keys, func(current [][]byte) ([][]byte, error) {
		docs, err := decodeDocuments(current[0])
		if err != nil {
			return nil, err
		}
		versions, err := decodeVersions(current[1])
		if err != nil {
			return nil, err
		}
		docs, saved = s.applySnapshot(docs, id, components, settings)
		versions = s.pushVersion(versions, domain.VersionRecord{
			Timestamp:  saved.UpdatedAt,
			Components: saved.Components,
			Settings:   saved.Settings,
		})

		rawDocs, err := json.Marshal(docs)
		if err != nil {
			return nil, fmt.Errorf("encode pages: %w", err)
		}
		rawVersions, err := json.Marshal(versions)
		if err != nil {
			return nil, fmt.Errorf("encode versions: %w", err)
		}
		return [][]byte{rawDocs, rawVersions}, nil
	})
	if err != nil {
		return nil, err
	}
	return &saved, nil
}

func (s *PageStore) applySnapshot(docs []domain.Document, id string, components domain.Components, settings domain.PageSettings) ([]domain.Document, domain.Document) {
	now := s.now().UTC()
	_, idx, ok := lo.FindIndexOf(docs, func(d domain.Document) bool { return d.ID == id })
	if !ok {
		docs = append(docs, domain.Document{
			ID:        id,
			Name:      untitledPageName,
			Category:  domain.CategoryOther,
			CreatedAt: now,
		})
		idx = len(docs) - 1
	}
	docs[idx].Components = components.Clone()
	docs[idx].Settings = settings.Clone()
	docs[idx].UpdatedAt = now
	return docs, docs[idx].Clone()
}

// DeleteDocument removes the page and its version list.
func (s *PageStore) DeleteDocument(ctx context.Context, id string) error {
	err := s.updateDocuments(ctx, func(docs []domain.Document) ([]domain.Document, error) {
		kept := lo.Reject(docs, func(d domain.Document, _ int) bool { return d.ID == id })
		if len(kept) == len(docs) {
			return nil, fmt.Errorf("delete page %s: %w", id, domain.ErrDocumentNotFound)
		}
		return kept, nil
	})
	if err != nil {
		return err
	}
	return s.backend.Delete(ctx, versionsKey(id))
}

func (s *PageStore) updateDocuments(ctx context.Context, fn func([]domain.Document) ([]domain.Document, error)) error {
	return s.backend.Update(ctx, pagesKey, func(current []byte) ([]byte, error) {
		docs, err := decodeDocuments(current)
		if err != nil {
			return nil, err
		}
		docs, err = fn(docs)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(docs)
		if err != nil {
			return nil, fmt.Errorf("encode pages: %w", err)
		}
		return out, nil
	})
}

func decodeDocuments(raw []byte) ([]domain.Document, error) {
	docs := []domain.Document{}
	if len(raw) == 0 {
		return docs, nil
	}
	if err := json.Unmarshal(raw, &docs); err != nil {
		return nil, fmt.Errorf("decode pages: %w", err)
	}
	return docs, nil
}

// ── Versions ────────────────────────────────────────────────

// ListVersions returns the version list of a page, most recent first.
func (s *PageStore) ListVersions(ctx context.Context, id string) ([]domain.VersionRecord, error) {
	raw, err := s.backend.Get(ctx, versionsKey(id))
	if err != nil {
		return nil, fmt.Errorf("load versions of %s: %w", id, err)
	}
	return decodeVersions(raw)
}

// GetVersion returns the version at index, where 0 is the most recent.
func (s *PageStore) GetVersion(ctx context.Context, id string, index int) (*domain.VersionRecord, error) {
	versions, err := s.ListVersions(ctx, id)
	if err != nil {
		return nil, err
	}
	if index < 0 || index >= len(versions) {
		return nil, fmt.Errorf("version %d of %s: %w", index, id, domain.ErrVersionNotFound)
	}
	return &versions[index], nil
}

// AppendVersion prepends rec to the page's version list and truncates it to
// the most recent MaxVersions entries.
func (s *PageStore) AppendVersion(ctx context.Context, id string, rec domain.VersionRecord) error {
	rec.Components = rec.Components.Clone()
	rec.Settings = rec.Settings.Clone()
	if rec.Timestamp.IsZero() {
		rec.Timestamp = s.now().UTC()
	}
	return s.backend.Update(ctx, versionsKey(id), func(current []byte) ([]byte, error) {
		versions, err := decodeVersions(current)
		if err != nil {
			return nil, err
		}
		out, err := json.Marshal(s.pushVersion(versions, rec))
		if err != nil {
			return nil, fmt.Errorf("encode versions: %w", err)
		}
		return out, nil
	})
}

// pushVersion prepends rec and truncates to the version cap.
func (s *PageStore) pushVersion(versions []domain.VersionRecord, rec domain.VersionRecord) []domain.VersionRecord {
	versions = append([]domain.VersionRecord{rec}, versions...)
	if len(versions) > s.maxVersions {
		versions = versions[:s.maxVersions]
	}
	return versions
}

// PruneOrphanVersions deletes version lists whose page no longer exists and
// returns the ids it removed.
func (s *PageStore) PruneOrphanVersions(ctx context.Context) ([]string, error) {
	docs, err := s.ListDocuments(ctx)
	if err != nil {
		return nil, err
	}
	live := lo.SliceToMap(docs, func(d domain.Document) (string, struct{}) { return d.ID, struct{}{} })

	keys, err := s.backend.Keys(ctx, versionsKeyPrefix)
	if err != nil {
		return nil, err
	}
	var pruned []string
	for _, k := range keys {
		id := strings.TrimPrefix(k, versionsKeyPrefix)
		if _, ok := live[id]; ok {
			continue
		}
		if err := s.backend.Delete(ctx, k); err != nil {
			return pruned, err
		}
		pruned = append(pruned, id)
	}
	return pruned, nil
}

func decodeVersions(raw []byte) ([]domain.VersionRecord, error) {
	versions := []domain.VersionRecord{}
	if len(raw) == 0 {
		return versions, nil
	}
	if err := json.Unmarshal(raw, &versions); err != nil {
		return nil, fmt.Errorf("decode versions: %w", err)
	}
	return versions, nil
}
