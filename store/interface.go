package store

import (
	"context"

	"github.com/shopspring/decimal"
)

// Store is the data-access surface used by the service layer. Methods
// outside WithTx are single statements.
type Store interface {
	ListCategories(ctx context.Context) ([]CategoryRow, error)
	CreateCategory(ctx context.Context, name string) (CategoryRow, error)
	UpdateCategory(ctx context.Context, id int64, name string) (CategoryRow, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]ProductRow, error)
	GetProduct(ctx context.Context, id int64) (ProductRow, error)
	CreateProduct(ctx context.Context, p ProductRow) (ProductRow, error)
	UpdateProduct(ctx context.Context, p ProductRow) (ProductRow, error)
	DeleteProduct(ctx context.Context, id int64) error

	ListInvoiceItems(ctx context.Context) ([]InvoiceItemRow, error)
	GetInvoiceItems(ctx context.Context, invoiceID int64) ([]InvoiceItemRow, error)

	// WithTx runs fn in one transaction: committed when fn returns nil,
	// rolled back otherwise. The connection is always released.
	WithTx(ctx context.Context, fn func(tx Tx) error) error

	Close() error
}

// Tx holds the statements that must run inside a transaction.
type Tx interface {
	// LockProducts locks the given product rows (ascending id order) and
	// returns the ones that exist, keyed by id.
	LockProducts(ctx context.Context, ids []int64) (map[int64]ProductRow, error)
	// DecrementStock returns ErrInsufficientStock when the product holds
	// fewer than qty units.
	DecrementStock(ctx context.Context, productID int64, qty int) error

	InsertInvoice(ctx context.Context, clientName string, total decimal.Decimal) (InvoiceRow, error)
	InsertLineItems(ctx context.Context, invoiceID int64, items []LineItemRow) error
	LockInvoice(ctx context.Context, invoiceID int64) (InvoiceRow, error)
	UpsertLineItem(ctx context.Context, item LineItemRow) error
	DeleteInvoice(ctx context.Context, invoiceID int64) error

	SaveOutboxEvent(ctx context.Context, ev OutboxEventRow) error
	PendingEvents(ctx context.Context, maxAttempts, limit int) ([]OutboxEventRow, error)
	MarkEventPublished(ctx context.Context, id int64) error
	MarkEventFailed(ctx context.Context, id int64, reason string) error
}
