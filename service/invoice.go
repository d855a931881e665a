package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/outbox"
	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

// CreateInvoice sells the requested quantities to clientName. Stock checks,
// stock decrements and the invoice rows commit together or not at all.
func (s *Service) CreateInvoice(ctx context.Context, clientName string, items []model.LineRequest) (InvoiceDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.CreateInvoice")
	defer span.End()

	clientName = strings.TrimSpace(clientName)
	details := map[string]string{}
	if clientName == "" {
		details["client_name"] = "is required"
	}
	lines := validateLines(items, details)
	if len(details) == 0 {
		lines = mergeLines(lines, details)
	}
	if len(details) > 0 {
		return InvoiceDTO{}, model.Validation("invalid invoice", details)
	}
	span.SetAttributes(attribute.Int("invoice.lines", len(lines)))

	var out InvoiceDTO
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		products, err := tx.LockProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}

		total := decimal.Zero
		rows := make([]store.LineItemRow, 0, len(lines))
		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return model.NotFound("product %d not found", l.ProductID)
			}
			if p.Quantity < l.Quantity {
				return model.InsufficientStock(p.ID, p.Name, p.Quantity, l.Quantity)
			}
			rows = append(rows, store.LineItemRow{ProductID: p.ID, Quantity: l.Quantity, UnitPrice: p.SalePrice})
			total = total.Add(p.SalePrice.Mul(decimal.NewFromInt(int64(l.Quantity))))
		}

		for _, l := range lines {
			err := tx.DecrementStock(ctx, l.ProductID, l.Quantity)
			if errors.Is(err, store.ErrInsufficientStock) {
				p := products[l.ProductID]
				return model.InsufficientStock(p.ID, p.Name, p.Quantity, l.Quantity)
			}
			if err != nil {
				return err
			}
		}

		inv, err := tx.InsertInvoice(ctx, clientName, total.Round(2))
		if err != nil {
			return err
		}
		if err := tx.InsertLineItems(ctx, inv.ID, rows); err != nil {
			return err
		}

		out = InvoiceDTO{
			ID:         inv.ID,
			ClientName: inv.ClientName,
			TotalPrice: inv.TotalPrice,
			CreatedAt:  inv.CreatedAt,
			Items:      make([]LineItemDTO, 0, len(rows)),
		}
		for _, r := range rows {
			out.Items = append(out.Items, lineItem(r.ProductID, products[r.ProductID].Name, r.Quantity, r.UnitPrice))
		}

		ev, err := outbox.NewInvoiceEvent(outbox.InvoiceCreated, s.eventsTopic, inv.ID, out)
		if err != nil {
			return err
		}
		return tx.SaveOutboxEvent(ctx, ev)
	})
	if err != nil {
		return InvoiceDTO{}, s.fail(ctx, span, "create invoice", err)
	}

	span.SetAttributes(attribute.Int64("invoice.id", out.ID))
	applog.Info(ctx, s.logger, "invoice created",
		zap.Int64("invoice_id", out.ID),
		zap.String("total_price", out.TotalPrice.StringFixed(2)),
		zap.Int("lines", len(out.Items)),
	)
	return out, nil
}

// UpdateInvoiceItems overwrites the quantity of existing lines and adds the
// missing ones at the product's current sale price. The invoice total and
// product stock are left as they are.
func (s *Service) UpdateInvoiceItems(ctx context.Context, invoiceID int64, items []model.LineRequest) error {
	ctx, span := s.tracer.Start(ctx, "Service.UpdateInvoiceItems")
	defer span.End()
	span.SetAttributes(attribute.Int64("invoice.id", invoiceID))

	details := map[string]string{}
	lines := validateLines(items, details)
	if len(details) > 0 {
		return model.Validation("invalid invoice items", details)
	}

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.LockInvoice(ctx, invoiceID)
		if errors.Is(err, store.ErrNotFound) {
			return model.NotFound("invoice %d not found", invoiceID)
		}
		if err != nil {
			return err
		}

		products, err := tx.LockProducts(ctx, productIDs(lines))
		if err != nil {
			return err
		}

		for _, l := range lines {
			p, ok := products[l.ProductID]
			if !ok {
				return model.NotFound("product %d not found", l.ProductID)
			}
			err := tx.UpsertLineItem(ctx, store.LineItemRow{
				InvoiceID: invoiceID,
				ProductID: l.ProductID,
				Quantity:  l.Quantity,
				UnitPrice: p.SalePrice,
			})
			if err != nil {
				return err
			}
		}

		ev, err := outbox.NewInvoiceEvent(outbox.InvoiceItemsUpdated, s.eventsTopic, invoiceID, itemsUpdatedEvent{
			InvoiceID: invoiceID,
			Items:     lines,
		})
		if err != nil {
			return err
		}
		return tx.SaveOutboxEvent(ctx, ev)
	})
	if err != nil {
		return s.fail(ctx, span, "update invoice items", err)
	}

	applog.Info(ctx, s.logger, "invoice items updated",
		zap.Int64("invoice_id", invoiceID), zap.Int("lines", len(lines)))
	return nil
}

// DeleteInvoice removes the invoice and its line items. Sold stock is not
// returned to the products.
func (s *Service) DeleteInvoice(ctx context.Context, id int64) error {
	ctx, span := s.tracer.Start(ctx, "Service.DeleteInvoice")
	defer span.End()
	span.SetAttributes(attribute.Int64("invoice.id", id))

	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		err := tx.DeleteInvoice(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return model.NotFound("invoice %d not found", id)
		}
		if err != nil {
			return err
		}

		ev, err := outbox.NewInvoiceEvent(outbox.InvoiceDeleted, s.eventsTopic, id, map[string]int64{"invoice_id": id})
		if err != nil {
			return err
		}
		return tx.SaveOutboxEvent(ctx, ev)
	})
	if err != nil {
		return s.fail(ctx, span, "delete invoice", err)
	}

	applog.Info(ctx, s.logger, "invoice deleted", zap.Int64("invoice_id", id))
	return nil
}

func (s *Service) ListInvoicesWithItems(ctx context.Context) ([]InvoiceDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.ListInvoicesWithItems")
	defer span.End()

	rows, err := s.store.ListInvoiceItems(ctx)
	if err != nil {
		return nil, s.fail(ctx, span, "list invoices", err)
	}
	return assembleInvoices(rows), nil
}

func (s *Service) GetInvoice(ctx context.Context, id int64) (InvoiceDTO, error) {
	ctx, span := s.tracer.Start(ctx, "Service.GetInvoice")
	defer span.End()
	span.SetAttributes(attribute.Int64("invoice.id", id))

	rows, err := s.store.GetInvoiceItems(ctx, id)
	if err != nil {
		return InvoiceDTO{}, s.fail(ctx, span, "get invoice", err)
	}
	invoices := assembleInvoices(rows)
	if len(invoices) == 0 {
		return InvoiceDTO{}, model.NotFound("invoice %d not found", id)
	}
	return invoices[0], nil
}

type itemsUpdatedEvent struct {
	InvoiceID int64               `json:"invoice_id"`
	Items     []model.LineRequest `json:"items"`
}

// validateLines records problems in details, keyed by item position, and
// returns the items unchanged.
func validateLines(items []model.LineRequest, details map[string]string) []model.LineRequest {
	if len(items) == 0 {
		details["items"] = "at least one item is required"
		return nil
	}
	for i, it := range items {
		if it.ProductID <= 0 {
			details[fmt.Sprintf("items[%d].product_id", i)] = "is required"
		}
		switch {
		case it.Quantity <= 0:
			details[fmt.Sprintf("items[%d].quantity", i)] = "must be greater than 0"
		case it.Quantity > model.MaxQuantity:
			details[fmt.Sprintf("items[%d].quantity", i)] = fmt.Sprintf("must be at most %d", model.MaxQuantity)
		}
	}
	return items
}

// mergeLines folds repeated product ids into the first occurrence. Items
// must already be within 1..MaxQuantity; a merged total above MaxQuantity is
// recorded in details against the item that pushed it over.
func mergeLines(items []model.LineRequest, details map[string]string) []model.LineRequest {
	pos := make(map[int64]int, len(items))
	out := make([]model.LineRequest, 0, len(items))
	for n, it := range items {
		if i, ok := pos[it.ProductID]; ok {
			if out[i].Quantity > model.MaxQuantity-it.Quantity {
				details[fmt.Sprintf("items[%d].quantity", n)] = fmt.Sprintf("total for product %d must be at most %d", it.ProductID, model.MaxQuantity)
				continue
			}
			out[i].Quantity += it.Quantity
			continue
		}
		pos[it.ProductID] = len(out)
		out = append(out, it)
	}
	return out
}

// productIDs returns the distinct ids in ascending order, the order rows
// are locked in.
func productIDs(items []model.LineRequest) []int64 {
	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	slices.Sort(ids)
	return slices.Compact(ids)
}
