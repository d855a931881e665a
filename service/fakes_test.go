package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

var errUnexpectedCall = errors.New("unexpected store call")

// ---- fakeStore implementing store.Store for tests ----
type fakeStore struct {
	calls int

	ListCategoriesFn   func(ctx context.Context) ([]store.CategoryRow, error)
	CreateCategoryFn   func(ctx context.Context, name string) (store.CategoryRow, error)
	UpdateCategoryFn   func(ctx context.Context, id int64, name string) (store.CategoryRow, error)
	DeleteCategoryFn   func(ctx context.Context, id int64) error
	ListProductsFn     func(ctx context.Context) ([]store.ProductRow, error)
	GetProductFn       func(ctx context.Context, id int64) (store.ProductRow, error)
	CreateProductFn    func(ctx context.Context, p store.ProductRow) (store.ProductRow, error)
	UpdateProductFn    func(ctx context.Context, p store.ProductRow) (store.ProductRow, error)
	DeleteProductFn    func(ctx context.Context, id int64) error
	ListInvoiceItemsFn func(ctx context.Context) ([]store.InvoiceItemRow, error)
	GetInvoiceItemsFn  func(ctx context.Context, invoiceID int64) ([]store.InvoiceItemRow, error)

	tx         *fakeTx
	committed  bool
	rolledBack bool
}

func (f *fakeStore) ListCategories(ctx context.Context) ([]store.CategoryRow, error) {
	f.calls++
	if f.ListCategoriesFn == nil {
		return nil, errUnexpectedCall
	}
	return f.ListCategoriesFn(ctx)
}

func (f *fakeStore) CreateCategory(ctx context.Context, name string) (store.CategoryRow, error) {
	f.calls++
	if f.CreateCategoryFn == nil {
		return store.CategoryRow{}, errUnexpectedCall
	}
	return f.CreateCategoryFn(ctx, name)
}

func (f *fakeStore) UpdateCategory(ctx context.Context, id int64, name string) (store.CategoryRow, error) {
	f.calls++
	if f.UpdateCategoryFn == nil {
		return store.CategoryRow{}, errUnexpectedCall
	}
	return f.UpdateCategoryFn(ctx, id, name)
}

func (f *fakeStore) DeleteCategory(ctx context.Context, id int64) error {
	f.calls++
	if f.DeleteCategoryFn == nil {
		return errUnexpectedCall
	}
	return f.DeleteCategoryFn(ctx, id)
}

func (f *fakeStore) ListProducts(ctx context.Context) ([]store.ProductRow, error) {
	f.calls++
	if f.ListProductsFn == nil {
		return nil, errUnexpectedCall
	}
	return f.ListProductsFn(ctx)
}

func (f *fakeStore) GetProduct(ctx context.Context, id int64) (store.ProductRow, error) {
	f.calls++
	if f.GetProductFn == nil {
		return store.ProductRow{}, errUnexpectedCall
	}
	return f.GetProductFn(ctx, id)
}

func (f *fakeStore) CreateProduct(ctx context.Context, p store.ProductRow) (store.ProductRow, error) {
	f.calls++
	if f.CreateProductFn == nil {
		return store.ProductRow{}, errUnexpectedCall
	}
	return f.CreateProductFn(ctx, p)
}

func (f *fakeStore) UpdateProduct(ctx context.Context, p store.ProductRow) (store.ProductRow, error) {
	f.calls++
	if f.UpdateProductFn == nil {
		return store.ProductRow{}, errUnexpectedCall
	}
	return f.UpdateProductFn(ctx, p)
}

func (f *fakeStore) DeleteProduct(ctx context.Context, id int64) error {
	f.calls++
	if f.DeleteProductFn == nil {
		return errUnexpectedCall
	}
	return f.DeleteProductFn(ctx, id)
}

func (f *fakeStore) ListInvoiceItems(ctx context.Context) ([]store.InvoiceItemRow, error) {
	f.calls++
	if f.ListInvoiceItemsFn == nil {
		return nil, errUnexpectedCall
	}
	return f.ListInvoiceItemsFn(ctx)
}

func (f *fakeStore) GetInvoiceItems(ctx context.Context, invoiceID int64) ([]store.InvoiceItemRow, error) {
	f.calls++
	if f.GetInvoiceItemsFn == nil {
		return nil, errUnexpectedCall
	}
	return f.GetInvoiceItemsFn(ctx, invoiceID)
}

// WithTx runs fn against f.tx and records whether the unit would commit.
func (f *fakeStore) WithTx(ctx context.Context, fn func(tx store.Tx) error) error {
	f.calls++
	if f.tx == nil {
		return errUnexpectedCall
	}
	if err := fn(f.tx); err != nil {
		f.rolledBack = true
		return err
	}
	f.committed = true
	return nil
}

func (f *fakeStore) Close() error { return nil }

// ---- fakeTx: an in-memory product table plus call recording ----
type fakeTx struct {
	products map[int64]store.ProductRow
	invoices map[int64]store.InvoiceRow
	lines    map[[2]int64]store.LineItemRow
	events   []store.OutboxEventRow
	nextID   int64

	lockedIDs  [][]int64
	decrements []int64

	// DecrementStockErr, when set, is returned by DecrementStock for that product.
	DecrementStockErr map[int64]error
	InsertInvoiceErr  error
}

func newFakeTx(products ...store.ProductRow) *fakeTx {
	tx := &fakeTx{
		products: map[int64]store.ProductRow{},
		invoices: map[int64]store.InvoiceRow{},
		lines:    map[[2]int64]store.LineItemRow{},
		nextID:   1,
	}
	for _, p := range products {
		tx.products[p.ID] = p
	}
	return tx
}

func (t *fakeTx) LockProducts(ctx context.Context, ids []int64) (map[int64]store.ProductRow, error) {
	t.lockedIDs = append(t.lockedIDs, append([]int64(nil), ids...))
	out := map[int64]store.ProductRow{}
	for _, id := range ids {
		if p, ok := t.products[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (t *fakeTx) DecrementStock(ctx context.Context, productID int64, qty int) error {
	t.decrements = append(t.decrements, productID)
	if err := t.DecrementStockErr[productID]; err != nil {
		return err
	}
	p := t.products[productID]
	if p.Quantity < qty {
		return store.ErrInsufficientStock
	}
	p.Quantity -= qty
	t.products[productID] = p
	return nil
}

func (t *fakeTx) InsertInvoice(ctx context.Context, clientName string, total decimal.Decimal) (store.InvoiceRow, error) {
	if t.InsertInvoiceErr != nil {
		return store.InvoiceRow{}, t.InsertInvoiceErr
	}
	inv := store.InvoiceRow{ID: t.nextID, ClientName: clientName, TotalPrice: total}
	t.nextID++
	t.invoices[inv.ID] = inv
	return inv, nil
}

func (t *fakeTx) InsertLineItems(ctx context.Context, invoiceID int64, items []store.LineItemRow) error {
	for _, it := range items {
		it.InvoiceID = invoiceID
		t.lines[[2]int64{invoiceID, it.ProductID}] = it
	}
	return nil
}

func (t *fakeTx) LockInvoice(ctx context.Context, invoiceID int64) (store.InvoiceRow, error) {
	inv, ok := t.invoices[invoiceID]
	if !ok {
		return store.InvoiceRow{}, store.ErrNotFound
	}
	return inv, nil
}

func (t *fakeTx) UpsertLineItem(ctx context.Context, item store.LineItemRow) error {
	key := [2]int64{item.InvoiceID, item.ProductID}
	if existing, ok := t.lines[key]; ok {
		existing.Quantity = item.Quantity
		t.lines[key] = existing
		return nil
	}
	t.lines[key] = item
	return nil
}

func (t *fakeTx) DeleteInvoice(ctx context.Context, invoiceID int64) error {
	if _, ok := t.invoices[invoiceID]; !ok {
		return store.ErrNotFound
	}
	delete(t.invoices, invoiceID)
	for k := range t.lines {
		if k[0] == invoiceID {
			delete(t.lines, k)
		}
	}
	return nil
}

func (t *fakeTx) SaveOutboxEvent(ctx context.Context, ev store.OutboxEventRow) error {
	t.events = append(t.events, ev)
	return nil
}

func (t *fakeTx) PendingEvents(ctx context.Context, maxAttempts, limit int) ([]store.OutboxEventRow, error) {
	return nil, errUnexpectedCall
}

func (t *fakeTx) MarkEventPublished(ctx context.Context, id int64) error { return errUnexpectedCall }

func (t *fakeTx) MarkEventFailed(ctx context.Context, id int64, reason string) error {
	return errUnexpectedCall
}
