package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

type Service struct {
	store  store.Store
	logger *zap.Logger
	tracer trace.Tracer
	// eventsTopic is stamped on every outbox event written by invoice operations.
	eventsTopic string
}

func NewService(s store.Store, logger *zap.Logger, eventsTopic string) *Service {
	return &Service{
		store:       s,
		logger:      logger,
		tracer:      otel.Tracer("service"),
		eventsTopic: eventsTopic,
	}
}

func (s *Service) ListCategories(ctx context.Context) ([]CategoryDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListCategories")
	defer span.End()

	rows, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "list categories", err)
	}
	out := make([]CategoryDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, categoryDTO(r))
	}
	return out, nil
}

func (s *Service) CreateCategory(ctx context.Context, name string) (CategoryDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateCategory")
	defer span.End()

	name = strings.TrimSpace(name)
	if name == "" {
		return CategoryDTO{}, model.Validation("invalid category", map[string]string{"name": "is required"})
	}

	c, err := s.store.CreateCategory(ctx, name)
	if err != nil {
		return CategoryDTO{}, s.fail(ctx, span, "create category", err)
	}
	applog.Info(ctx, s.logger, "category created", zap.Int64("category_id", c.ID))
	return categoryDTO(c), nil
}

func (s *Service) UpdateCategory(ctx context.Context, id int64, name string) (CategoryDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.UpdateCategory")
	defer span.End()
	span.SetAttributes(attribute.Int64("category_id", id))

	name = strings.TrimSpace(name)
	if name == "" {
		return CategoryDTO{}, model.Validation("invalid category", map[string]string{"name": "is required"})
	}

	c, err := s.store.UpdateCategory(ctx, id, name)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return CategoryDTO{}, model.NotFound("category %d not found", id)
	case err != nil:
		return CategoryDTO{}, s.fail(ctx, span, "update category", err)
	}
	return categoryDTO(c), nil
}

func (s *Service) DeleteCategory(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "Service.DeleteCategory")
	defer span.End()
	span.SetAttributes(attribute.Int64("category_id", id))

	err := s.store.DeleteCategory(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return model.NotFound("category %d not found", id)
	case errors.Is(err, store.ErrReferenced):
		return model.Conflict("category %d still has products", id)
	case err != nil:
		return s.fail(ctx, span, "delete category", err)
	}
	applog.Info(ctx, s.logger, "category deleted", zap.Int64("category_id", id))
	return nil
}

func (s *Service) ListProducts(ctx context.Context) ([]ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListProducts")
	defer span.End()

	rows, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "list products", err)
	}
	out := make([]ProductDTO, 0, len(rows))
	for _, r := range rows {
		out = append(out, productDTO(r))
	}
	return out, nil
}

func (s *Service) GetProduct(ctx context.Context, id int64) (ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GetProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", id))

	p, err := s.store.GetProduct(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ProductDTO{}, model.NotFound("product %d not found", id)
	case err != nil:
		return ProductDTO{}, s.fail(ctx, span, "get product", err)
	}
	return productDTO(p), nil
}

func (s *Service) CreateProduct(ctx context.Context, in model.ProductInput) (ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateProduct")
	defer span.End()

	if verr := validateProduct(in); verr != nil {
		return ProductDTO{}, verr
	}

	p, err := s.store.CreateProduct(ctx, productRow(0, in))
	switch {
	case errors.Is(err, store.ErrMissingReference):
		return ProductDTO{}, model.NotFound("category %d not found", in.CategoryID)
	case err != nil:
		return ProductDTO{}, s.fail(ctx, span, "create product", err)
	}
	applog.Info(ctx, s.logger, "product created", zap.Int64("product_id", p.ID))
	return productDTO(p), nil
}

func (s *Service) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (ProductDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.UpdateProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", id))

	if verr := validateProduct(in); verr != nil {
		return ProductDTO{}, verr
	}

	p, err := s.store.UpdateProduct(ctx, productRow(id, in))
	switch {
	case errors.Is(err, store.ErrNotFound):
		return ProductDTO{}, model.NotFound("product %d not found", id)
	case errors.Is(err, store.ErrMissingReference):
		return ProductDTO{}, model.NotFound("category %d not found", in.CategoryID)
	case err != nil:
		return ProductDTO{}, s.fail(ctx, span, "update product", err)
	}
	return productDTO(p), nil
}

func (s *Service) DeleteProduct(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "Service.DeleteProduct")
	defer span.End()
	span.SetAttributes(attribute.Int64("product_id", id))

	err := s.store.DeleteProduct(ctx, id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		return model.NotFound("product %d not found", id)
	case errors.Is(err, store.ErrReferenced):
		return model.Conflict("product %d appears on invoices", id)
	case err != nil:
		return s.fail(ctx, span, "delete product", err)
	}
	applog.Info(ctx, s.logger, "product deleted", zap.Int64("product_id", id))
	return nil
}

func validateProduct(in model.ProductInput) *model.Error {
	details := map[string]string{}
	if in.CategoryID <= 0 {
		details["category_id"] = "is required"
	}
	if strings.TrimSpace(in.Name) == "" {
		details["name"] = "is required"
	}
	if strings.TrimSpace(in.Reference) == "" {
		details["reference"] = "is required"
	}
	if msg := checkPrice(in.SalePrice); msg != "" {
		details["sale_price"] = msg
	}
	if msg := checkPrice(in.PurchasePrice); msg != "" {
		details["purchase_price"] = msg
	}
	switch {
	case in.Quantity < 0:
		details["quantity"] = "must not be negative"
	case in.Quantity > model.MaxQuantity:
		details["quantity"] = fmt.Sprintf("must be at most %d", model.MaxQuantity)
	}
	if len(details) > 0 {
		return model.Validation("invalid product", details)
	}
	return nil
}

func checkPrice(p decimal.Decimal) string {
	switch {
	case p.IsNegative():
		return "must not be negative"
	case p.GreaterThan(model.MaxPrice):
		return "must be at most " + model.MaxPrice.String()
	case !p.Equal(p.Round(model.PriceScale)):
		return fmt.Sprintf("must have at most %d decimals", model.PriceScale)
	}
	return ""
}

func productRow(id int64, in model.ProductInput) store.ProductRow {
	img := strings.TrimSpace(in.ImagePath)
	if img == "" {
		img = model.DefaultImagePath
	}
	desc := strings.TrimSpace(in.Description)
	return store.ProductRow{
		ID:            id,
		CategoryID:    in.CategoryID,
		Name:          strings.TrimSpace(in.Name),
		Description:   sql.NullString{String: desc, Valid: desc != ""},
		SalePrice:     in.SalePrice,
		PurchasePrice: in.PurchasePrice,
		Quantity:      in.Quantity,
		Reference:     strings.TrimSpace(in.Reference),
		ImagePath:     img,
	}
}

// DTOs
type CategoryDTO struct {
	ID        int64      `json:"id"`
	Name      string     `json:"name"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

type ProductDTO struct {
	ID            int64           `json:"id"`
	CategoryID    int64           `json:"category_id"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Quantity      int             `json:"quantity"`
	Reference     string          `json:"reference"`
	ImagePath     string          `json:"image_path"`
}

type LineItemDTO struct {
	ProductID   int64           `json:"product_id"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	LineTotal   decimal.Decimal `json:"line_total"`
}

type InvoiceDTO struct {
	ID         int64           `json:"id"`
	ClientName string          `json:"client_name"`
	TotalPrice decimal.Decimal `json:"total_price"`
	CreatedAt  time.Time       `json:"created_at"`
	Items      []LineItemDTO   `json:"items"`
}

func categoryDTO(r store.CategoryRow) CategoryDTO {
	c := CategoryDTO{ID: r.ID, Name: r.Name, CreatedAt: r.CreatedAt}
	if r.UpdatedAt.Valid {
		t := r.UpdatedAt.Time
		c.UpdatedAt = &t
	}
	return c
}

func productDTO(r store.ProductRow) ProductDTO {
	p := ProductDTO{
		ID:            r.ID,
		CategoryID:    r.CategoryID,
		Name:          r.Name,
		SalePrice:     r.SalePrice,
		PurchasePrice: r.PurchasePrice,
		Quantity:      r.Quantity,
		Reference:     r.Reference,
		ImagePath:     r.ImagePath,
	}
	if r.Description.Valid {
		p.Description = r.Description.String
	}
	return p
}
