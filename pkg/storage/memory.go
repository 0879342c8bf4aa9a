package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/kensaku/pkg/model"
	"github.com/platinummonkey/kensaku/pkg/search"
)

// Memory is an in-process store for documents, categories and search
// representations. It is safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	documents  map[int64]*model.Document
	categories map[int64]*model.Category
	reps       map[int64]search.Representation
	nextDocID  int64
	nextCatID  int64
	hook       model.SaveHook
	now        func() time.Time
}

// NewMemory creates an empty store with no hook
func NewMemory() *Memory {
	return &Memory{
		documents:  make(map[int64]*model.Document),
		categories: make(map[int64]*model.Category),
		reps:       make(map[int64]search.Representation),
		now:        time.Now,
	}
}

// SetHook installs the post-commit hook. Call it before serving writes.
func (m *Memory) SetHook(hook model.SaveHook) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hook = hook
}

// Documents returns the document repository view
func (m *Memory) Documents() *MemoryDocuments {
	return &MemoryDocuments{m: m}
}

// Categories returns the category repository view
func (m *Memory) Categories() *MemoryCategories {
	return &MemoryCategories{m: m}
}

// afterCommit runs the hook outside the lock; the hook reads back through
// the repositories.
func (m *Memory) afterCommit(ctx context.Context, entity model.Entity) error {
	m.mu.RLock()
	hook := m.hook
	m.mu.RUnlock()

	if hook == nil {
		return nil
	}
	if err := hook.OnEntitySaved(ctx, entity); err != nil {
		return &model.IndexError{Kind: entity.EntityKind(), ID: entity.EntityID(), Err: err}
	}
	return nil
}

// UpdateSearchRepresentation implements search.RepresentationStore
func (m *Memory) UpdateSearchRepresentation(_ context.Context, documentID int64, rep search.Representation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.documents[documentID]; !ok {
		return model.ErrNotFound
	}
	m.reps[documentID] = append(search.Representation(nil), rep...)
	return nil
}

// SearchRepresentation returns the stored representation of a document
func (m *Memory) SearchRepresentation(_ context.Context, documentID int64) (search.Representation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.documents[documentID]; !ok {
		return nil, model.ErrNotFound
	}
	return append(search.Representation{}, m.reps[documentID]...), nil
}

// MatchRepresentations implements search.RepresentationStore
func (m *Memory) MatchRepresentations(_ context.Context, q search.Query, opts search.MatchOptions) ([]search.Hit, int64, error) {
	type candidate struct {
		hit     search.Hit
		created time.Time
	}

	m.mu.RLock()
	var matches []candidate
	for id, rep := range m.reps {
		if !q.Match(rep) {
			continue
		}
		matches = append(matches, candidate{
			hit:     search.Hit{ID: id, Rank: q.Rank(rep, opts.NormalizeRank)},
			created: m.documents[id].CreatedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.hit.Rank != b.hit.Rank {
			return a.hit.Rank > b.hit.Rank
		}
		if opts.SecondaryKey == search.SortID {
			return a.hit.ID < b.hit.ID
		}
		if !a.created.Equal(b.created) {
			return a.created.After(b.created)
		}
		return a.hit.ID > b.hit.ID
	})

	total := int64(len(matches))
	hits := make([]search.Hit, 0, opts.Limit)
	for i := opts.Offset; i < len(matches) && (opts.Limit <= 0 || len(hits) < opts.Limit); i++ {
		hits = append(hits, matches[i].hit)
	}
	return hits, total, nil
}

// MemoryDocuments implements model.DocumentRepository on a Memory store
type MemoryDocuments struct {
	m *Memory
}

func (r *MemoryDocuments) FindByID(_ context.Context, id int64) (*model.Document, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	doc, ok := r.m.documents[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	return r.m.withCategory(doc), nil
}

// FindAll returns documents newest first
func (r *MemoryDocuments) FindAll(_ context.Context, page model.Page) ([]*model.Document, int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	all := make([]*model.Document, 0, len(r.m.documents))
	for _, doc := range r.m.documents {
		all = append(all, doc)
	}
	sort.Slice(all, func(i, j int) bool {
		if !all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].CreatedAt.After(all[j].CreatedAt)
		}
		return all[i].ID > all[j].ID
	})

	total := int64(len(all))
	docs := make([]*model.Document, 0)
	for i := page.Offset; i < len(all) && (page.Limit <= 0 || len(docs) < page.Limit); i++ {
		docs = append(docs, r.m.withCategory(all[i]))
	}
	return docs, total, nil
}

// Save creates the document when ID is zero, otherwise replaces it. The
// hook runs after the write is visible.
func (r *MemoryDocuments) Save(ctx context.Context, doc *model.Document) error {
	r.m.mu.Lock()

	if doc.CategoryID != nil {
		if _, ok := r.m.categories[*doc.CategoryID]; !ok {
			r.m.mu.Unlock()
			return fmt.Errorf("category %d: %w", *doc.CategoryID, model.ErrUnknownCategory)
		}
	}

	if doc.ID == 0 {
		r.m.nextDocID++
		doc.ID = r.m.nextDocID
		doc.CreatedAt = r.m.now()
	} else {
		existing, ok := r.m.documents[doc.ID]
		if !ok {
			r.m.mu.Unlock()
			return model.ErrNotFound
		}
		doc.CreatedAt = existing.CreatedAt
	}

	stored := *doc
	stored.Category = nil
	stored.CategoryID = copyID(doc.CategoryID)
	r.m.documents[doc.ID] = &stored
	r.m.mu.Unlock()

	return r.m.afterCommit(ctx, doc)
}

// Remove deletes the document together with its representation
func (r *MemoryDocuments) Remove(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.documents[id]; !ok {
		return model.ErrNotFound
	}
	delete(r.m.documents, id)
	delete(r.m.reps, id)
	return nil
}

func (r *MemoryDocuments) FindReferencing(_ context.Context, categoryID int64) ([]int64, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	ids := make([]int64, 0)
	for id, doc := range r.m.documents {
		if doc.CategoryID != nil && *doc.CategoryID == categoryID {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

// MemoryCategories implements model.CategoryRepository on a Memory store
type MemoryCategories struct {
	m *Memory
}

func (r *MemoryCategories) FindByID(_ context.Context, id int64) (*model.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	cat, ok := r.m.categories[id]
	if !ok {
		return nil, model.ErrNotFound
	}
	c := *cat
	return &c, nil
}

func (r *MemoryCategories) FindAll(_ context.Context) ([]*model.Category, error) {
	r.m.mu.RLock()
	defer r.m.mu.RUnlock()

	cats := make([]*model.Category, 0, len(r.m.categories))
	for _, cat := range r.m.categories {
		c := *cat
		cats = append(cats, &c)
	}
	sort.Slice(cats, func(i, j int) bool { return cats[i].ID < cats[j].ID })
	return cats, nil
}

// Save creates the category when ID is zero, otherwise renames it.
// PreviousName is filled in before the hook runs.
func (r *MemoryCategories) Save(ctx context.Context, category *model.Category) error {
	r.m.mu.Lock()

	if category.ID == 0 {
		r.m.nextCatID++
		category.ID = r.m.nextCatID
		// Nothing can reference a category that did not exist
		name := category.Name
		category.PreviousName = &name
	} else {
		existing, ok := r.m.categories[category.ID]
		if !ok {
			r.m.mu.Unlock()
			return model.ErrNotFound
		}
		prev := existing.Name
		category.PreviousName = &prev
	}

	r.m.categories[category.ID] = &model.Category{ID: category.ID, Name: category.Name}
	r.m.mu.Unlock()

	return r.m.afterCommit(ctx, category)
}

// Remove deletes the category unless a document still references it
func (r *MemoryCategories) Remove(_ context.Context, id int64) error {
	r.m.mu.Lock()
	defer r.m.mu.Unlock()

	if _, ok := r.m.categories[id]; !ok {
		return model.ErrNotFound
	}
	for _, doc := range r.m.documents {
		if doc.CategoryID != nil && *doc.CategoryID == id {
			return model.ErrCategoryInUse
		}
	}
	delete(r.m.categories, id)
	return nil
}

// withCategory copies doc and attaches its category. Callers hold the lock.
func (m *Memory) withCategory(doc *model.Document) *model.Document {
	d := *doc
	d.CategoryID = copyID(doc.CategoryID)
	if d.CategoryID != nil {
		if cat, ok := m.categories[*d.CategoryID]; ok {
			c := *cat
			d.Category = &c
		}
	}
	return &d
}

func copyID(id *int64) *int64 {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}
