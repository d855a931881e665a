package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/Ameur-sidahmed/Stocks-backend/applog"
	"github.com/Ameur-sidahmed/Stocks-backend/config"

	_ "github.com/lib/pq"
)

// Row types mirror table columns.
type CategoryRow struct {
	ID        int64        `db:"id"`
	Name      string       `db:"name"`
	CreatedAt time.Time    `db:"created_at"`
	UpdatedAt sql.NullTime `db:"updated_at"`
}

type ProductRow struct {
	ID            int64           `db:"id"`
	CategoryID    int64           `db:"category_id"`
	Name          string          `db:"name"`
	Description   sql.NullString  `db:"description"`
	SalePrice     decimal.Decimal `db:"sale_price"`
	PurchasePrice decimal.Decimal `db:"purchase_price"`
	Quantity      int             `db:"quantity"`
	Reference     string          `db:"reference"`
	ImagePath     string          `db:"image_path"`
}

type InvoiceRow struct {
	ID         int64           `db:"id"`
	ClientName string          `db:"client_name"`
	TotalPrice decimal.Decimal `db:"total_price"`
	CreatedAt  time.Time       `db:"created_at"`
}

type LineItemRow struct {
	InvoiceID int64           `db:"invoice_id"`
	ProductID int64           `db:"product_id"`
	Quantity  int             `db:"quantity"`
	UnitPrice decimal.Decimal `db:"unit_price"`
}

// InvoiceItemRow is one row of the invoices/items/products outer join.
// The item side is NULL for invoices without line items.
type InvoiceItemRow struct {
	InvoiceID   int64               `db:"invoice_id"`
	ClientName  string              `db:"client_name"`
	TotalPrice  decimal.Decimal     `db:"total_price"`
	CreatedAt   time.Time           `db:"created_at"`
	ProductID   sql.NullInt64       `db:"product_id"`
	ProductName sql.NullString      `db:"product_name"`
	Quantity    sql.NullInt64       `db:"quantity"`
	UnitPrice   decimal.NullDecimal `db:"unit_price"`
}

type OutboxEventRow struct {
	ID            int64     `db:"id"`
	AggregateType string    `db:"aggregate_type"`
	AggregateID   string    `db:"aggregate_id"`
	EventType     string    `db:"event_type"`
	Topic         string    `db:"topic"`
	Payload       []byte    `db:"payload"`
	CreatedAt     time.Time `db:"created_at"`
	Attempts      int       `db:"attempts"`
}

// PostgresStore is a Store backed by Postgres. Stock consistency relies on
// row locks and conditional updates, never on in-process locks.
type PostgresStore struct {
	DB     *sqlx.DB
	logger *zap.Logger
}

func New(db *sqlx.DB, logger *zap.Logger) *PostgresStore {
	return &PostgresStore{DB: db, logger: logger}
}

// Open connects to Postgres with the configured pool limits and pings it.
func Open(ctx context.Context, cfg config.Postgres, logger *zap.Logger) (*PostgresStore, error) {
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return New(db, logger), nil
}

func (s *PostgresStore) Close() error { return s.DB.Close() }

func (s *PostgresStore) WithTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	sqlTx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	// rollback on every non-commit exit, panics included
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
		if err == nil {
			return
		}
		if rbErr := sqlTx.Rollback(); rbErr != nil && rbErr != sql.ErrTxDone {
			applog.Warn(ctx, s.logger, "rollback failed", zap.Error(rbErr))
		}
	}()

	if err = fn(&pgTx{tx: sqlTx}); err != nil {
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type pgTx struct {
	tx *sqlx.Tx
}
