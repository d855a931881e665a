package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/service"
)

var errStale = errors.New("cache generation moved")

const (
	keyProducts = "products:all"
	keyInvoices = "invoices:all"
)

// genKey holds a counter bumped by every invalidation of key. A listing
// read from the service is only stored if the counter has not moved since
// the read started.
func genKey(key string) string { return key + ":gen" }

// cachedService reads product and invoice listings through redis. Redis is
// best effort: any redis failure falls back to next.
type cachedService struct {
	next   service.ServiceInterface
	client *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func New(next service.ServiceInterface, client *redis.Client, ttl time.Duration, logger *zap.Logger) service.ServiceInterface {
	return &cachedService{next: next, client: client, ttl: ttl, logger: logger}
}

func (s *cachedService) ListCategories(ctx context.Context) ([]service.CategoryDTO, error) {
	return s.next.ListCategories(ctx)
}

func (s *cachedService) CreateCategory(ctx context.Context, name string) (service.CategoryDTO, error) {
	return s.next.CreateCategory(ctx, name)
}

func (s *cachedService) UpdateCategory(ctx context.Context, id int64, name string) (service.CategoryDTO, error) {
	return s.next.UpdateCategory(ctx, id, name)
}

func (s *cachedService) DeleteCategory(ctx context.Context, id int64) error {
	return s.next.DeleteCategory(ctx, id)
}

func (s *cachedService) ListProducts(ctx context.Context) ([]service.ProductDTO, error) {
	var cached []service.ProductDTO
	if s.get(ctx, keyProducts, &cached) {
		return cached, nil
	}

	gen, ok := s.generation(ctx, keyProducts)
	out, err := s.next.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.set(ctx, keyProducts, gen, out)
	}
	return out, nil
}

func (s *cachedService) GetProduct(ctx context.Context, id int64) (service.ProductDTO, error) {
	return s.next.GetProduct(ctx, id)
}

func (s *cachedService) CreateProduct(ctx context.Context, in model.ProductInput) (service.ProductDTO, error) {
	defer s.drop(ctx, keyProducts)
	return s.next.CreateProduct(ctx, in)
}

// UpdateProduct also drops the invoice listing, which shows product names.
func (s *cachedService) UpdateProduct(ctx context.Context, id int64, in model.ProductInput) (service.ProductDTO, error) {
	defer s.drop(ctx, keyProducts, keyInvoices)
	return s.next.UpdateProduct(ctx, id, in)
}

func (s *cachedService) DeleteProduct(ctx context.Context, id int64) error {
	defer s.drop(ctx, keyProducts)
	return s.next.DeleteProduct(ctx, id)
}

// CreateInvoice changes stock, so the product listing goes too.
func (s *cachedService) CreateInvoice(ctx context.Context, clientName string, items []model.LineRequest) (service.InvoiceDTO, error) {
	defer s.drop(ctx, keyProducts, keyInvoices)
	return s.next.CreateInvoice(ctx, clientName, items)
}

func (s *cachedService) UpdateInvoiceItems(ctx context.Context, invoiceID int64, items []model.LineRequest) error {
	defer s.drop(ctx, keyInvoices)
	return s.next.UpdateInvoiceItems(ctx, invoiceID, items)
}

func (s *cachedService) ListInvoicesWithItems(ctx context.Context) ([]service.InvoiceDTO, error) {
	var cached []service.InvoiceDTO
	if s.get(ctx, keyInvoices, &cached) {
		return cached, nil
	}

	gen, ok := s.generation(ctx, keyInvoices)
	out, err := s.next.ListInvoicesWithItems(ctx)
	if err != nil {
		return nil, err
	}
	if ok {
		s.set(ctx, keyInvoices, gen, out)
	}
	return out, nil
}

func (s *cachedService) GetInvoice(ctx context.Context, id int64) (service.InvoiceDTO, error) {
	return s.next.GetInvoice(ctx, id)
}

func (s *cachedService) DeleteInvoice(ctx context.Context, id int64) error {
	defer s.drop(ctx, keyInvoices)
	return s.next.DeleteInvoice(ctx, id)
}

func (s *cachedService) get(ctx context.Context, key string, dst any) bool {
	val, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false
	}
	if err != nil {
		applog.Warn(ctx, s.logger, "cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	if err := json.Unmarshal(val, dst); err != nil {
		applog.Warn(ctx, s.logger, "cache entry is corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (s *cachedService) generation(ctx context.Context, key string) (int64, bool) {
	gen, err := s.client.Get(ctx, genKey(key)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, true
	}
	if err != nil {
		applog.Warn(ctx, s.logger, "cache generation read failed", zap.String("key", key), zap.Error(err))
		return 0, false
	}
	return gen, true
}

// set stores v under key unless an invalidation ran after gen was read.
func (s *cachedService) set(ctx context.Context, key string, gen int64, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		applog.Warn(ctx, s.logger, "cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	err = s.client.Watch(ctx, func(tx *redis.Tx) error {
		cur, err := tx.Get(ctx, genKey(key)).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if cur != gen {
			return errStale
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}, genKey(key))

	switch {
	case err == nil:
	case errors.Is(err, errStale), errors.Is(err, redis.TxFailedErr):
		applog.Debug(ctx, s.logger, "cache fill skipped, listing changed", zap.String("key", key))
	default:
		applog.Warn(ctx, s.logger, "cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// drop runs after every write attempt: a failed commit may still have applied.
func (s *cachedService) drop(ctx context.Context, keys ...string) {
	ctx = context.WithoutCancel(ctx)
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, key := range keys {
			pipe.Incr(ctx, genKey(key))
			pipe.Del(ctx, key)
		}
		return nil
	})
	if err != nil {
		applog.Warn(ctx, s.logger, "cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
