package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

const productColumns = `id, category_id, name, description, sale_price, purchase_price, quantity, reference, image_path`

func (s *PostgresStore) ListCategories(ctx context.Context) ([]CategoryRow, error) {
	out := []CategoryRow{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT id, name, created_at, updated_at FROM categories ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, name string) (CategoryRow, error) {
	var c CategoryRow
	err := s.DB.GetContext(ctx, &c,
		`INSERT INTO categories (name) VALUES ($1) RETURNING id, name, created_at, updated_at`,
		name,
	)
	if err != nil {
		return CategoryRow{}, fmt.Errorf("create category: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) UpdateCategory(ctx context.Context, id int64, name string) (CategoryRow, error) {
	var c CategoryRow
	err := s.DB.GetContext(ctx, &c,
		`UPDATE categories SET name = $1, updated_at = NOW() WHERE id = $2 RETURNING id, name, created_at, updated_at`,
		name, id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return CategoryRow{}, ErrNotFound
	}
	if err != nil {
		return CategoryRow{}, fmt.Errorf("update category %d: %w", id, err)
	}
	return c, nil
}

func (s *PostgresStore) DeleteCategory(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "categories", id)
}

func (s *PostgresStore) ListProducts(ctx context.Context) ([]ProductRow, error) {
	out := []ProductRow{}
	if err := s.DB.SelectContext(ctx, &out, `SELECT `+productColumns+` FROM products ORDER BY id`); err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) GetProduct(ctx context.Context, id int64) (ProductRow, error) {
	var p ProductRow
	err := s.DB.GetContext(ctx, &p, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ProductRow{}, ErrNotFound
	}
	if err != nil {
		return ProductRow{}, fmt.Errorf("get product %d: %w", id, err)
	}
	return p, nil
}

func (s *PostgresStore) CreateProduct(ctx context.Context, p ProductRow) (ProductRow, error) {
	var out ProductRow
	err := s.DB.GetContext(ctx, &out, `
		INSERT INTO products (category_id, name, description, sale_price, purchase_price, quantity, reference, image_path)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+productColumns,
		p.CategoryID, p.Name, p.Description, p.SalePrice, p.PurchasePrice, p.Quantity, p.Reference, p.ImagePath,
	)
	if isForeignKeyViolation(err) {
		return ProductRow{}, ErrMissingReference
	}
	if err != nil {
		return ProductRow{}, fmt.Errorf("create product: %w", invalidValue(err))
	}
	return out, nil
}

func (s *PostgresStore) UpdateProduct(ctx context.Context, p ProductRow) (ProductRow, error) {
	var out ProductRow
	err := s.DB.GetContext(ctx, &out, `
		UPDATE products
		SET category_id = $1, name = $2, description = $3, sale_price = $4,
			purchase_price = $5, quantity = $6, reference = $7, image_path = $8
		WHERE id = $9
		RETURNING `+productColumns,
		p.CategoryID, p.Name, p.Description, p.SalePrice, p.PurchasePrice, p.Quantity, p.Reference, p.ImagePath, p.ID,
	)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ProductRow{}, ErrNotFound
	case isForeignKeyViolation(err):
		return ProductRow{}, ErrMissingReference
	case err != nil:
		return ProductRow{}, fmt.Errorf("update product %d: %w", p.ID, invalidValue(err))
	}
	return out, nil
}

func (s *PostgresStore) DeleteProduct(ctx context.Context, id int64) error {
	return s.deleteByID(ctx, "products", id)
}

// deleteByID is restrict-delete: a foreign key violation surfaces as
// ErrReferenced and nothing is cascaded.
func (s *PostgresStore) deleteByID(ctx context.Context, table string, id int64) error {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM `+table+` WHERE id = $1`, id)
	if isForeignKeyViolation(err) {
		return ErrReferenced
	}
	if err != nil {
		return fmt.Errorf("delete from %s %d: %w", table, id, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrNotFound
	}
	return nil
}
