package model

import (
	"math"

	"github.com/shopspring/decimal"
)

// DefaultImagePath is used for products created without an image.
const DefaultImagePath = "/uploads/default.png"

// MaxQuantity is the largest stock or line quantity the INTEGER columns hold.
const MaxQuantity = math.MaxInt32

// PriceScale is the number of decimals prices are stored with.
const PriceScale = 2

// MaxPrice is the largest price a NUMERIC(12, 2) column holds.
var MaxPrice = decimal.RequireFromString("9999999999.99")

// LineRequest is one requested (product, quantity) pair of an invoice.
type LineRequest struct {
	ProductID int64 `json:"product_id"`
	Quantity  int   `json:"quantity"`
}

// ProductInput carries the writable fields of a product.
type ProductInput struct {
	CategoryID    int64
	Name          string
	Description   string
	SalePrice     decimal.Decimal
	PurchasePrice decimal.Decimal
	Quantity      int
	Reference     string
	ImagePath     string
}
