package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

const invoiceItemsQuery = `
	SELECT
		i.id AS invoice_id,
		i.client_name,
		i.total_price,
		i.created_at,
		ii.product_id,
		p.name AS product_name,
		ii.quantity,
		ii.unit_price
	FROM invoices i
	LEFT JOIN invoice_items ii ON ii.invoice_id = i.id
	LEFT JOIN products p ON p.id = ii.product_id`

func (s *PostgresStore) ListInvoiceItems(ctx context.Context) ([]InvoiceItemRow, error) {
	out := []InvoiceItemRow{}
	if err := s.DB.SelectContext(ctx, &out, invoiceItemsQuery+` ORDER BY i.id, ii.product_id`); err != nil {
		return nil, fmt.Errorf("list invoices: %w", err)
	}
	return out, nil
}

// GetInvoiceItems returns no rows when the invoice does not exist.
func (s *PostgresStore) GetInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItemRow, error) {
	out := []InvoiceItemRow{}
	if err := s.DB.SelectContext(ctx, &out, invoiceItemsQuery+` WHERE i.id = $1 ORDER BY ii.product_id`, invoiceID); err != nil {
		return nil, fmt.Errorf("get invoice %d: %w", invoiceID, err)
	}
	return out, nil
}

func (t *pgTx) InsertInvoice(ctx context.Context, clientName string, total decimal.Decimal) (InvoiceRow, error) {
	var inv InvoiceRow
	err := t.tx.GetContext(ctx, &inv,
		`INSERT INTO invoices (client_name, total_price) VALUES ($1, $2) RETURNING id, client_name, total_price, created_at`,
		clientName, total,
	)
	if err != nil {
		return InvoiceRow{}, fmt.Errorf("insert invoice: %w", invalidValue(err))
	}
	return inv, nil
}

func (t *pgTx) InsertLineItems(ctx context.Context, invoiceID int64, items []LineItemRow) error {
	stmt, err := t.tx.PreparexContext(ctx,
		`INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
	)
	if err != nil {
		return fmt.Errorf("prepare line items: %w", err)
	}
	defer stmt.Close()

	for _, it := range items {
		if _, err := stmt.ExecContext(ctx, invoiceID, it.ProductID, it.Quantity, it.UnitPrice); err != nil {
			return fmt.Errorf("insert line item for product %d: %w", it.ProductID, invalidValue(err))
		}
	}
	return nil
}

func (t *pgTx) LockInvoice(ctx context.Context, invoiceID int64) (InvoiceRow, error) {
	var inv InvoiceRow
	err := t.tx.GetContext(ctx, &inv,
		`SELECT id, client_name, total_price, created_at FROM invoices WHERE id = $1 FOR UPDATE`,
		invoiceID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return InvoiceRow{}, ErrNotFound
	}
	if err != nil {
		return InvoiceRow{}, fmt.Errorf("lock invoice %d: %w", invoiceID, err)
	}
	return inv, nil
}

// UpsertLineItem overwrites the quantity of an existing line and keeps its
// unit price; a new line takes item.UnitPrice.
func (t *pgTx) UpsertLineItem(ctx context.Context, item LineItemRow) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO invoice_items (invoice_id, product_id, quantity, unit_price)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (invoice_id, product_id)
		DO UPDATE SET quantity = EXCLUDED.quantity`,
		item.InvoiceID, item.ProductID, item.Quantity, item.UnitPrice,
	)
	if err != nil {
		return fmt.Errorf("upsert line item %d/%d: %w", item.InvoiceID, item.ProductID, invalidValue(err))
	}
	return nil
}

// DeleteInvoice removes the invoice; its line items go with it (ON DELETE CASCADE).
func (t *pgTx) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	res, err := t.tx.ExecContext(ctx, `DELETE FROM invoices WHERE id = $1`, invoiceID)
	if err != nil {
		return fmt.Errorf("delete invoice %d: %w", invoiceID, err)
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
