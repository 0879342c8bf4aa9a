package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/kensaku/pkg/model"
)

// Documents implements model.DocumentRepository
type Documents struct {
	s *Store
}

const documentColumns = `d.id, d.name, d.title, d.content, d.category_id, d.created_at, c.name`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDocument(row rowScanner) (*model.Document, error) {
	var (
		doc          model.Document
		categoryID   sql.NullInt64
		categoryName sql.NullString
	)
	if err := row.Scan(&doc.ID, &doc.Name, &doc.Title, &doc.Content, &categoryID, &doc.CreatedAt, &categoryName); err != nil {
		return nil, err
	}
	if categoryID.Valid {
		id := categoryID.Int64
		doc.CategoryID = &id
		if categoryName.Valid {
			doc.Category = &model.Category{ID: id, Name: categoryName.String}
		}
	}
	return &doc, nil
}

// FindByID reads from the primary so a rebuild right after a write sees it
func (r *Documents) FindByID(ctx context.Context, id int64) (doc *model.Document, err error) {
	start := time.Now()
	defer func() { r.s.observe("document_get", start, err) }()

	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		LEFT JOIN categories c ON c.id = d.category_id
		WHERE d.id = $1
	`

	doc, err = scanDocument(r.s.conns.Primary().QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// FindAll lists documents newest first
func (r *Documents) FindAll(ctx context.Context, page model.Page) (docs []*model.Document, total int64, err error) {
	start := time.Now()
	defer func() { r.s.observe("document_list", start, err) }()

	db := r.s.conns.Replica()

	if err = db.QueryRowContext(ctx, "SELECT COUNT(*) FROM documents").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count documents: %w", err)
	}

	limit := page.Limit
	if limit <= 0 {
		limit = int(total)
	}

	query := `
		SELECT ` + documentColumns + `
		FROM documents d
		LEFT JOIN categories c ON c.id = d.category_id
		ORDER BY d.created_at DESC, d.id DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := db.QueryContext(ctx, query, limit, page.Offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs = make([]*model.Document, 0)
	for rows.Next() {
		doc, scanErr := scanDocument(rows)
		if scanErr != nil {
			err = fmt.Errorf("failed to scan document: %w", scanErr)
			return nil, 0, err
		}
		docs = append(docs, doc)
	}
	if err = rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate documents: %w", err)
	}

	return docs, total, nil
}

// Save inserts the document when ID is zero, otherwise updates it, then
// runs the post-commit hook.
func (r *Documents) Save(ctx context.Context, doc *model.Document) error {
	if err := r.write(ctx, doc); err != nil {
		return err
	}
	return r.s.afterCommit(ctx, doc)
}

func (r *Documents) write(ctx context.Context, doc *model.Document) (err error) {
	start := time.Now()
	op := "document_update"
	if doc.ID == 0 {
		op = "document_insert"
	}
	defer func() { r.s.observe(op, start, err) }()

	var categoryID sql.NullInt64
	if doc.CategoryID != nil {
		categoryID = sql.NullInt64{Int64: *doc.CategoryID, Valid: true}
	}

	db := r.s.conns.Primary()
	if doc.ID == 0 {
		query := `
			INSERT INTO documents (name, title, content, category_id)
			VALUES ($1, $2, $3, $4)
			RETURNING id, created_at
		`
		err = db.QueryRowContext(ctx, query, doc.Name, doc.Title, doc.Content, categoryID).
			Scan(&doc.ID, &doc.CreatedAt)
	} else {
		query := `
			UPDATE documents
			SET name = $1, title = $2, content = $3, category_id = $4
			WHERE id = $5
			RETURNING created_at
		`
		err = db.QueryRowContext(ctx, query, doc.Name, doc.Title, doc.Content, categoryID, doc.ID).
			Scan(&doc.CreatedAt)
	}

	switch {
	case err == sql.ErrNoRows:
		return model.ErrNotFound
	case isForeignKeyViolation(err):
		return fmt.Errorf("category %d: %w", categoryID.Int64, model.ErrUnknownCategory)
	case err != nil:
		return fmt.Errorf("failed to save document: %w", err)
	}
	return nil
}

// Remove deletes the document row, representation included
func (r *Documents) Remove(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { r.s.observe("document_delete", start, err) }()

	res, err := r.s.conns.Primary().ExecContext(ctx, "DELETE FROM documents WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}

// FindReferencing reads current foreign keys from the primary
func (r *Documents) FindReferencing(ctx context.Context, categoryID int64) (ids []int64, err error) {
	start := time.Now()
	defer func() { r.s.observe("document_referencing", start, err) }()

	rows, err := r.s.conns.Primary().QueryContext(ctx,
		"SELECT id FROM documents WHERE category_id = $1 ORDER BY id", categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to list referencing documents: %w", err)
	}
	defer rows.Close()

	ids = make([]int64, 0)
	for rows.Next() {
		var id int64
		if err = rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan document id: %w", err)
		}
		ids = append(ids, id)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate referencing documents: %w", err)
	}
	return ids, nil
}
