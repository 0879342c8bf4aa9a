package model

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a document or category does not exist
	ErrNotFound = errors.New("not found")

	// ErrCategoryInUse is returned when removing a category that documents still reference
	ErrCategoryInUse = errors.New("category is referenced by documents")

	// ErrUnknownCategory is returned when a document references a category that does not exist
	ErrUnknownCategory = errors.New("referenced category does not exist")
)

// Entity is anything whose write can invalidate a search representation.
type Entity interface {
	EntityID() int64
	EntityKind() string
}

const (
	KindDocument = "document"
	KindCategory = "category"
)

// Category groups documents. Its name contributes to every dependent
// document's search representation.
type Category struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`

	// PreviousName is the name before the most recent save. Repositories
	// fill it in so the propagator can skip cascades for no-op renames.
	PreviousName *string `json:"-"`
}

func (c *Category) EntityID() int64    { return c.ID }
func (c *Category) EntityKind() string { return KindCategory }

// NameChanged reports whether the last save changed the category name.
// An unknown previous name counts as a change.
func (c *Category) NameChanged() bool {
	if c.PreviousName == nil {
		return true
	}
	return *c.PreviousName != c.Name
}

// Document is a searchable text entity. CategoryID is the only link to
// its category; categories hold no back-references.
type Document struct {
	ID         int64     `json:"id"`
	Name       string    `json:"name"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	CategoryID *int64    `json:"category_id"`
	Category   *Category `json:"category,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func (d *Document) EntityID() int64    { return d.ID }
func (d *Document) EntityKind() string { return KindDocument }

// Page selects a window of a listing
type Page struct {
	Limit  int
	Offset int
}

// DocumentRepository is the CRUD capability the index core consumes.
type DocumentRepository interface {
	FindByID(ctx context.Context, id int64) (*Document, error)
	FindAll(ctx context.Context, page Page) ([]*Document, int64, error)
	Save(ctx context.Context, doc *Document) error
	Remove(ctx context.Context, id int64) error

	// FindReferencing lists the ids of documents currently pointing at the
	// category. It must read current state, never a cached list.
	FindReferencing(ctx context.Context, categoryID int64) ([]int64, error)
}

// CategoryRepository is the CRUD capability for categories
type CategoryRepository interface {
	FindByID(ctx context.Context, id int64) (*Category, error)
	FindAll(ctx context.Context) ([]*Category, error)
	Save(ctx context.Context, category *Category) error
	Remove(ctx context.Context, id int64) error
}

// SaveHook is invoked by repositories after a write commits.
type SaveHook interface {
	OnEntitySaved(ctx context.Context, entity Entity) error
}

// SaveHookFunc adapts a function to SaveHook
type SaveHookFunc func(ctx context.Context, entity Entity) error

func (f SaveHookFunc) OnEntitySaved(ctx context.Context, entity Entity) error {
	return f(ctx, entity)
}

// IndexError reports that a write committed but the post-commit hook
// failed. The entity is durable; its search representation may be stale.
type IndexError struct {
	Kind string
	ID   int64
	Err  error
}

func (e *IndexError) Error() string {
	return "indexing " + e.Kind + " failed after commit: " + e.Err.Error()
}

func (e *IndexError) Unwrap() error { return e.Err }
