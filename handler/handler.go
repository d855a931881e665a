package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/service"
)

const maxBodyBytes = 1 << 20

// Handler is the HTTP layer that talks to service.ServiceInterface
type Handler struct {
	svc      service.ServiceInterface
	validate *validator.Validate
	logger   *zap.Logger
	timeout  time.Duration
}

// NewHandler returns a Handler whose requests are bounded by timeout.
func NewHandler(s service.ServiceInterface, logger *zap.Logger, timeout time.Duration) *Handler {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &Handler{svc: s, validate: v, logger: logger, timeout: timeout}
}

// Router wraps the routes with CORS for the given origins.
func (h *Handler) Router(allowedOrigins []string) http.Handler {
	r := mux.NewRouter()
	r.Use(h.requestTimeout)
	h.RegisterRoutes(r)

	return cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type"},
		MaxAge:         300,
	})(r)
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/health", h.Health).Methods("GET")

	// Categories
	r.HandleFunc("/categories", h.ListCategories).Methods("GET")
	r.HandleFunc("/categories", h.CreateCategory).Methods("POST")
	r.HandleFunc("/categories/{id}", h.UpdateCategory).Methods("PUT")
	r.HandleFunc("/categories/{id}", h.DeleteCategory).Methods("DELETE")

	// Products
	r.HandleFunc("/products", h.ListProducts).Methods("GET")
	r.HandleFunc("/products", h.CreateProduct).Methods("POST")
	r.HandleFunc("/products/{id}", h.GetProduct).Methods("GET")
	r.HandleFunc("/products/{id}", h.UpdateProduct).Methods("PUT")
	r.HandleFunc("/products/{id}", h.DeleteProduct).Methods("DELETE")

	// Invoices
	r.HandleFunc("/invoices", h.ListInvoices).Methods("GET")
	r.HandleFunc("/invoices", h.CreateInvoice).Methods("POST")
	r.HandleFunc("/invoices/{id}", h.GetInvoice).Methods("GET")
	r.HandleFunc("/invoices/{id}", h.DeleteInvoice).Methods("DELETE")
	r.HandleFunc("/invoices/{id}/items", h.UpdateInvoiceItems).Methods("PUT")
}

// --- request / response shapes ---
type categoryReq struct {
	Name string `json:"name" validate:"required,max=255"`
}

type productReq struct {
	CategoryID    int64           `json:"category_id" validate:"required,gt=0"`
	Name          string          `json:"name" validate:"required,max=255"`
	Description   string          `json:"description" validate:"max=2000"`
	SalePrice     decimal.Decimal `json:"sale_price"`
	PurchasePrice decimal.Decimal `json:"purchase_price"`
	Quantity      int             `json:"quantity" validate:"gte=0,max=2147483647"`
	Reference     string          `json:"reference" validate:"required,max=100"`
	ImagePath     string          `json:"image_path" validate:"max=500"`
}

func (p productReq) input() model.ProductInput {
	return model.ProductInput{
		CategoryID:    p.CategoryID,
		Name:          p.Name,
		Description:   p.Description,
		SalePrice:     p.SalePrice,
		PurchasePrice: p.PurchasePrice,
		Quantity:      p.Quantity,
		Reference:     p.Reference,
		ImagePath:     p.ImagePath,
	}
}

type lineReq struct {
	ProductID int64 `json:"product_id" validate:"required,gt=0"`
	Quantity  int   `json:"quantity" validate:"required,gt=0,max=2147483647"`
}

type invoiceReq struct {
	ClientName string    `json:"client_name" validate:"required,max=255"`
	Items      []lineReq `json:"items" validate:"required,min=1,dive"`
}

type invoiceItemsReq struct {
	Items []lineReq `json:"items" validate:"required,min=1,dive"`
}

func lineRequests(in []lineReq) []model.LineRequest {
	out := make([]model.LineRequest, 0, len(in))
	for _, l := range in {
		out = append(out, model.LineRequest{ProductID: l.ProductID, Quantity: l.Quantity})
	}
	return out
}

type envelope struct {
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

type errorBody struct {
	Error   string            `json:"error"`
	Kind    model.ErrorKind   `json:"kind"`
	Details map[string]string `json:"details,omitempty"`
}

// --- helpers ---
func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, kind model.ErrorKind, msg string, details map[string]string) {
	writeJSON(w, code, errorBody{Error: msg, Kind: kind, Details: details})
}

func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindValidation:
		return http.StatusBadRequest
	case model.KindNotFound:
		return http.StatusNotFound
	case model.KindInsufficientStock, model.KindConflict:
		return http.StatusConflict
	case model.KindTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceErr maps a service failure to its status code. Untyped errors
// never reach the client verbatim.
func (h *Handler) writeServiceErr(w http.ResponseWriter, r *http.Request, err error) {
	var merr *model.Error
	if !errors.As(err, &merr) {
		applog.Error(r.Context(), h.logger, "untyped service error", zap.Error(err))
		merr = model.Internal(err)
	}
	if merr.Kind == model.KindTransient {
		w.Header().Set("Retry-After", "1")
	}
	writeErr(w, statusFor(merr.Kind), merr.Kind, merr.Error(), merr.Details)
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeErr(w, http.StatusBadRequest, model.KindValidation, "invalid json", nil)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			writeErr(w, http.StatusBadRequest, model.KindValidation, "invalid request", nil)
			return false
		}
		writeErr(w, http.StatusBadRequest, model.KindValidation, "invalid request", validationDetails(verrs))
		return false
	}
	return true
}

// validationDetails keys each failure by its JSON path, e.g. items[0].quantity.
func validationDetails(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		field := fe.Namespace()
		if i := strings.Index(field, "."); i >= 0 {
			field = field[i+1:]
		}

		switch fe.Tag() {
		case "required":
			out[field] = "is required"
		case "min":
			out[field] = fmt.Sprintf("must have at least %s element(s)", fe.Param())
		case "max":
			if fe.Kind() == reflect.String {
				out[field] = fmt.Sprintf("must be at most %s characters", fe.Param())
			} else {
				out[field] = fmt.Sprintf("must be at most %s", fe.Param())
			}
		case "gt":
			out[field] = fmt.Sprintf("must be greater than %s", fe.Param())
		case "gte":
			out[field] = fmt.Sprintf("must be greater than or equal to %s", fe.Param())
		default:
			out[field] = "is invalid"
		}
	}
	return out
}

func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		writeErr(w, http.StatusBadRequest, model.KindValidation, "invalid id", nil)
		return 0, false
	}
	return id, true
}

func (h *Handler) requestTimeout(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
		defer cancel()
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// --- Handler ---

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListCategories handles GET /categories
func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCategories(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: cs})
}

// CreateCategory handles POST /categories
// body: { "name": "..." }
func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryReq
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: c, Message: "category created"})
}

// UpdateCategory handles PUT /categories/{id}
func (h *Handler) UpdateCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req categoryReq
	if !h.decode(w, r, &req) {
		return
	}
	c, err := h.svc.UpdateCategory(r.Context(), id, req.Name)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: c, Message: "category updated"})
}

// DeleteCategory handles DELETE /categories/{id}
func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteCategory(r.Context(), id); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "category deleted"})
}

// ListProducts handles GET /products
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: ps})
}

// GetProduct handles GET /products/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	p, err := h.svc.GetProduct(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: p})
}

// CreateProduct handles POST /products
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), req.input())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: p, Message: "product created"})
}

// UpdateProduct handles PUT /products/{id}
func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req productReq
	if !h.decode(w, r, &req) {
		return
	}
	p, err := h.svc.UpdateProduct(r.Context(), id, req.input())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: p, Message: "product updated"})
}

// DeleteProduct handles DELETE /products/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteProduct(r.Context(), id); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "product deleted"})
}

// ListInvoices handles GET /invoices
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	invs, err := h.svc.ListInvoicesWithItems(r.Context())
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: invs})
}

// GetInvoice handles GET /invoices/{id}
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	inv, err := h.svc.GetInvoice(r.Context(), id)
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Data: inv})
}

// CreateInvoice handles POST /invoices
// body: { "client_name": "...", "items": [{ "product_id": 1, "quantity": 2 }] }
func (h *Handler) CreateInvoice(w http.ResponseWriter, r *http.Request) {
	var req invoiceReq
	if !h.decode(w, r, &req) {
		return
	}
	inv, err := h.svc.CreateInvoice(r.Context(), req.ClientName, lineRequests(req.Items))
	if err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, envelope{Data: inv, Message: "invoice created"})
}

// UpdateInvoiceItems handles PUT /invoices/{id}/items
// body: { "items": [{ "product_id": 1, "quantity": 4 }] }
func (h *Handler) UpdateInvoiceItems(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	var req invoiceItemsReq
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.svc.UpdateInvoiceItems(r.Context(), id, lineRequests(req.Items)); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "invoice items updated"})
}

// DeleteInvoice handles DELETE /invoices/{id}
func (h *Handler) DeleteInvoice(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}
	if err := h.svc.DeleteInvoice(r.Context(), id); err != nil {
		h.writeServiceErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Message: "invoice deleted"})
}
