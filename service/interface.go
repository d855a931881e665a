package service

import (
	"context"

	"github.com/Ameur-sidahmed/Stocks-backend/model"
)

// ServiceInterface is what the HTTP layer and the cache decorator depend on.
// Every error it returns is a *model.Error.
type ServiceInterface interface {
	ListCategories(ctx context.Context) ([]CategoryDTO, error)
	CreateCategory(ctx context.Context, name string) (CategoryDTO, error)
	UpdateCategory(ctx context.Context, id int64, name string) (CategoryDTO, error)
	DeleteCategory(ctx context.Context, id int64) error

	ListProducts(ctx context.Context) ([]ProductDTO, error)
	GetProduct(ctx context.Context, id int64) (ProductDTO, error)
	CreateProduct(ctx context.Context, in model.ProductInput) (ProductDTO, error)
	UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (ProductDTO, error)
	DeleteProduct(ctx context.Context, id int64) error

	CreateInvoice(ctx context.Context, clientName string, items []model.LineRequest) (InvoiceDTO, error)
	UpdateInvoiceItems(ctx context.Context, invoiceID int64, items []model.LineRequest) error
	ListInvoicesWithItems(ctx context.Context) ([]InvoiceDTO, error)
	GetInvoice(ctx context.Context, id int64) (InvoiceDTO, error)
	DeleteInvoice(ctx context.Context, id int64) error
}
