//go:build integration

package cache

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/model"
	"github.com/Ameur-sidahmed/Stocks-backend/service"
)

type RedisTestSuite struct {
	suite.Suite
	Container *tcredis.RedisContainer
	Client    *redis.Client
	Ctx       context.Context
}

func TestRedisSuite(t *testing.T) {
	suite.Run(t, new(RedisTestSuite))
}

func (s *RedisTestSuite) SetupSuite() {
	s.Ctx = context.Background()

	var err error
	s.Container, err = tcredis.Run(s.Ctx, "redis:7-alpine")
	s.Require().NoError(err)

	uri, err := s.Container.ConnectionString(s.Ctx)
	s.Require().NoError(err)

	opts, err := redis.ParseURL(uri)
	s.Require().NoError(err)
	s.Client = redis.NewClient(opts)
	s.Require().NoError(s.Client.Ping(s.Ctx).Err())
}

func (s *RedisTestSuite) TearDownSuite() {
	if s.Client != nil {
		_ = s.Client.Close()
	}
	if s.Container != nil {
		if err := s.Container.Terminate(s.Ctx); err != nil {
			s.T().Fatalf("failed to terminate redis container: %v", err)
		}
	}
}

func (s *RedisTestSuite) SetupTest() {
	s.Require().NoError(s.Client.FlushAll(s.Ctx).Err())
}

func (s *RedisTestSuite) TestListingsAreServedFromCache() {
	next := &countingService{}
	svc := New(next, s.Client, time.Minute, zap.NewNop())

	first, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)
	second, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)

	s.Equal(1, next.listProducts)
	s.Require().Len(second, 1)
	s.Equal(first[0].Name, second[0].Name)
	s.Equal(first[0].Quantity, second[0].Quantity)

	_, err = svc.ListInvoicesWithItems(s.Ctx)
	s.Require().NoError(err)
	invoices, err := svc.ListInvoicesWithItems(s.Ctx)
	s.Require().NoError(err)
	s.Equal(1, next.listInvoices)
	s.Equal([]service.InvoiceDTO{}, invoices)
}

func (s *RedisTestSuite) TestCreateInvoiceDropsListings() {
	next := &countingService{}
	svc := New(next, s.Client, time.Minute, zap.NewNop())

	_, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)
	_, err = svc.ListInvoicesWithItems(s.Ctx)
	s.Require().NoError(err)

	_, err = svc.CreateInvoice(s.Ctx, "Alice", []model.LineRequest{{ProductID: 1, Quantity: 1}})
	s.Require().NoError(err)

	n, err := s.Client.Exists(s.Ctx, keyProducts, keyInvoices).Result()
	s.Require().NoError(err)
	s.Zero(n)

	_, err = svc.ListProducts(s.Ctx)
	s.Require().NoError(err)
	s.Equal(2, next.listProducts)
}

func (s *RedisTestSuite) TestEntriesExpire() {
	next := &countingService{}
	svc := New(next, s.Client, time.Minute, zap.NewNop())

	_, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)

	ttl, err := s.Client.TTL(s.Ctx, keyProducts).Result()
	s.Require().NoError(err)
	s.Greater(ttl, time.Duration(0))
	s.LessOrEqual(ttl, time.Minute)
}

func (s *RedisTestSuite) TestCorruptEntryFallsBack() {
	s.Require().NoError(s.Client.Set(s.Ctx, keyProducts, "not json", time.Minute).Err())

	next := &countingService{}
	svc := New(next, s.Client, time.Minute, zap.NewNop())

	products, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)
	s.Len(products, 1)
	s.Equal(1, next.listProducts)
}

func (s *RedisTestSuite) TestFillRacingAnInvalidationIsDiscarded() {
	next := &countingService{}
	svc := New(next, s.Client, time.Minute, zap.NewNop())

	next.duringList = func() {
		_, err := svc.CreateInvoice(s.Ctx, "Alice", []model.LineRequest{{ProductID: 1, Quantity: 1}})
		s.Require().NoError(err)
	}

	_, err := svc.ListProducts(s.Ctx)
	s.Require().NoError(err)

	n, err := s.Client.Exists(s.Ctx, keyProducts).Result()
	s.Require().NoError(err)
	s.Zero(n, "a listing read before the invalidation must not be cached")

	_, err = svc.ListProducts(s.Ctx)
	s.Require().NoError(err)
	n, err = s.Client.Exists(s.Ctx, keyProducts).Result()
	s.Require().NoError(err)
	s.Equal(int64(1), n)
	s.Equal(2, next.listProducts)
}
