package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/platinummonkey/kensaku/pkg/model"
)

// Categories implements model.CategoryRepository
type Categories struct {
	s *Store
}

func (r *Categories) FindByID(ctx context.Context, id int64) (cat *model.Category, err error) {
	start := time.Now()
	defer func() { r.s.observe("category_get", start, err) }()

	var c model.Category
	err = r.s.conns.Primary().QueryRowContext(ctx,
		"SELECT id, name FROM categories WHERE id = $1", id).Scan(&c.ID, &c.Name)
	if err == sql.ErrNoRows {
		return nil, model.ErrNotFound
	} else if err != nil {
		return nil, fmt.Errorf("failed to get category: %w", err)
	}
	return &c, nil
}

func (r *Categories) FindAll(ctx context.Context) (cats []*model.Category, err error) {
	start := time.Now()
	defer func() { r.s.observe("category_list", start, err) }()

	rows, err := r.s.conns.Replica().QueryContext(ctx, "SELECT id, name FROM categories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	cats = make([]*model.Category, 0)
	for rows.Next() {
		var c model.Category
		if err = rows.Scan(&c.ID, &c.Name); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		cats = append(cats, &c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate categories: %w", err)
	}
	return cats, nil
}

// Save inserts or renames the category and records the previous name
// before running the post-commit hook.
func (r *Categories) Save(ctx context.Context, category *model.Category) error {
	if err := r.write(ctx, category); err != nil {
		return err
	}
	return r.s.afterCommit(ctx, category)
}

func (r *Categories) write(ctx context.Context, category *model.Category) (err error) {
	start := time.Now()
	op := "category_update"
	if category.ID == 0 {
		op = "category_insert"
	}
	defer func() { r.s.observe(op, start, err) }()

	db := r.s.conns.Primary()

	if category.ID == 0 {
		err = db.QueryRowContext(ctx,
			"INSERT INTO categories (name) VALUES ($1) RETURNING id", category.Name).Scan(&category.ID)
		if err != nil {
			return fmt.Errorf("failed to create category: %w", err)
		}
		// Nothing can reference a category that did not exist
		name := category.Name
		category.PreviousName = &name
		return nil
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	var previous string
	err = tx.QueryRowContext(ctx,
		"SELECT name FROM categories WHERE id = $1 FOR UPDATE", category.ID).Scan(&previous)
	if err == sql.ErrNoRows {
		return model.ErrNotFound
	} else if err != nil {
		return fmt.Errorf("failed to lock category: %w", err)
	}

	if _, err = tx.ExecContext(ctx,
		"UPDATE categories SET name = $1 WHERE id = $2", category.Name, category.ID); err != nil {
		return fmt.Errorf("failed to update category: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit category: %w", err)
	}

	category.PreviousName = &previous
	return nil
}

// Remove deletes the category. The foreign key refuses the delete while
// documents still reference it.
func (r *Categories) Remove(ctx context.Context, id int64) (err error) {
	start := time.Now()
	defer func() { r.s.observe("category_delete", start, err) }()

	res, err := r.s.conns.Primary().ExecContext(ctx, "DELETE FROM categories WHERE id = $1", id)
	if isForeignKeyViolation(err) {
		return model.ErrCategoryInUse
	} else if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete category: %w", err)
	}
	if n == 0 {
		return model.ErrNotFound
	}
	return nil
}
