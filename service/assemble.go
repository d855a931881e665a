package service

import (
	"github.com/shopspring/decimal"

	"github.com/Ameur-sidahmed/Stocks-backend/store"
)

// assembleInvoices groups joined invoice/item rows by invoice, keeping the
// order in which invoices first appear. An invoice whose item side is NULL
// gets an empty item list.
func assembleInvoices(rows []store.InvoiceItemRow) []InvoiceDTO {
	out := []InvoiceDTO{}
	index := make(map[int64]int)

	for _, r := range rows {
		i, ok := index[r.InvoiceID]
		if !ok {
			out = append(out, InvoiceDTO{
				ID:         r.InvoiceID,
				ClientName: r.ClientName,
				TotalPrice: r.TotalPrice,
				CreatedAt:  r.CreatedAt,
				Items:      []LineItemDTO{},
			})
			i = len(out) - 1
			index[r.InvoiceID] = i
		}

		if !r.ProductID.Valid {
			continue
		}
		out[i].Items = append(out[i].Items,
			lineItem(r.ProductID.Int64, r.ProductName.String, int(r.Quantity.Int64), r.UnitPrice.Decimal))
	}
	return out
}

func lineItem(productID int64, name string, qty int, unit decimal.Decimal) LineItemDTO {
	return LineItemDTO{
		ProductID:   productID,
		ProductName: name,
		Quantity:    qty,
		UnitPrice:   unit,
		LineTotal:   unit.Mul(decimal.NewFromInt(int64(qty))).Round(2),
	}
}
