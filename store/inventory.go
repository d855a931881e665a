package store

import (
	"context"
	"fmt"

	"github.com/lib/pq"
)

// LockProducts takes row locks in ascending id order so that concurrent
// invoices touching the same products cannot deadlock each other.
func (t *pgTx) LockProducts(ctx context.Context, ids []int64) (map[int64]ProductRow, error) {
	var rows []ProductRow
	err := t.tx.SelectContext(ctx, &rows,
		`SELECT `+productColumns+` FROM products WHERE id = ANY($1) ORDER BY id FOR UPDATE`,
		pq.Array(ids),
	)
	if err != nil {
		return nil, fmt.Errorf("lock products: %w", err)
	}

	out := make(map[int64]ProductRow, len(rows))
	for _, p := range rows {
		out[p.ID] = p
	}
	return out, nil
}

// DecrementStock only succeeds while the product still holds qty units.
func (t *pgTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	res, err := t.tx.ExecContext(ctx,
		`UPDATE products SET quantity = quantity - $1 WHERE id = $2 AND quantity >= $1`,
		qty, productID,
	)
	if err != nil {
		return fmt.Errorf("decrement stock of product %d: %w", productID, err)
	}
	ra, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if ra == 0 {
		return ErrInsufficientStock
	}
	return nil
}
