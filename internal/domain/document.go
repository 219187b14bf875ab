package domain

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// Category classifies a landing page by campaign purpose.
type Category string

const (
	CategoryLeadCapture Category = "lead-capture"
	CategorySales       Category = "sales"
	CategoryWebinar     Category = "webinar"
	CategoryProduct     Category = "product"
	CategoryEvent       Category = "event"
	CategoryOther       Category = "other"
)

var categories = []Category{
	CategoryLeadCapture, CategorySales, CategoryWebinar, CategoryProduct, CategoryEvent, CategoryOther,
}

func (c Category) Valid() bool { return slices.Contains(categories, c) }

// ParseCategory maps an empty value to CategoryOther and rejects unknown ones.
func ParseCategory(s string) (Category, error) {
	if s == "" {
		return CategoryOther, nil
	}
	c := Category(s)
	if !c.Valid() {
		return "", fmt.Errorf("unknown category %q", s)
	}
	return c, nil
}

// PageSettings holds page-level metadata that is not part of the component
// sequence.
type PageSettings struct {
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Slug         string         `json:"slug"`
	FaviconURL   string         `json:"faviconUrl,omitempty"`
	PrimaryColor string         `json:"primaryColor,omitempty"`
	FontFamily   string         `json:"fontFamily,omitempty"`
	CustomCSS    string         `json:"customCss,omitempty"`
	Published    bool           `json:"published"`
	Extra        map[string]any `json:"extra,omitempty"`
}

// Validate checks that Extra holds only JSON-encodable values.
func (s PageSettings) Validate() error {
	if err := validateJSONMap(s.Extra); err != nil {
		return fmt.Errorf("%w: extra: %v", ErrInvalidSettings, err)
	}
	return nil
}

// Clone returns a deep copy of the settings.
func (s PageSettings) Clone() PageSettings {
	out := s
	out.Extra = cloneMap(s.Extra)
	return out
}

// Document is a full editable landing page.
type Document struct {
	ID         string       `json:"id"`
	Name       string       `json:"name"`
	Category   Category     `json:"category"`
	Components Components   `json:"components"`
	Settings   PageSettings `json:"settings"`
	CreatedAt  time.Time    `json:"createdAt"`
	UpdatedAt  time.Time    `json:"updatedAt"`
}

// Clone returns a deep copy of the document.
func (d Document) Clone() Document {
	out := d
	out.Components = d.Components.Clone()
	out.Settings = d.Settings.Clone()
	return out
}

// VersionRecord is an immutable, timestamped durable snapshot of a document.
// Version lists are kept most recent first.
type VersionRecord struct {
	Timestamp  time.Time    `json:"timestamp"`
	Components Components   `json:"components"`
	Settings   PageSettings `json:"settings"`
}

// DocumentStore is the durable collection of documents and their version
// lists. Only the autosave scheduler and the manual save path write
// snapshots through it.
type DocumentStore interface {
	ListDocuments(ctx context.Context) ([]Document, error)
	GetDocument(ctx context.Context, id string) (*Document, error)
	CreateDocument(ctx context.Context, doc *Document) error
	UpdateMeta(ctx context.Context, id string, fn func(*Document)) (*Document, error)
	SaveSnapshot(ctx context.Context, id string, components Components, settings PageSettings) (*Document, error)
	CommitSnapshot(ctx context.Context, id string, components Components, settings PageSettings) (*Document, error)
	DeleteDocument(ctx context.Context, id string) error

	ListVersions(ctx context.Context, id string) ([]VersionRecord, error)
	GetVersion(ctx context.Context, id string, index int) (*VersionRecord, error)
	AppendVersion(ctx context.Context, id string, rec VersionRecord) error
}
