package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const orderColumns = `id, created_at, number, buyer_id, total_coins, idempotency_key`

type OrderRepository struct {
	db uow.DBTX
}

func NewOrderRepository(db uow.DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает заказ вместе с позициями. Уникальный индекс по idempotency_key
// превращает конкурентный повтор в domain.ErrDuplicateKey.
func (o *OrderRepository) Create(ctx context.Context, args repoargs.OrderCreate) (*domain.Order, error) {
	row := o.db.QueryRow(ctx, `
		INSERT INTO orders (number, buyer_id, total_coins, idempotency_key)
		VALUES ($1, $2, $3, $4)
		RETURNING `+orderColumns,
		args.Number, args.BuyerID, args.TotalCoins, args.IdempotencyKey)

	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "creating order `%s`", args.Number)
	}

	batch := new(pgx.Batch)
	for _, item := range args.Items {
		batch.Queue(`
			INSERT INTO order_items (order_id, product_id, vendor_id, quantity, unit_coin_price)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, order_id, product_id, vendor_id, quantity, unit_coin_price`,
			order.ID, item.ProductID, item.VendorID, item.Quantity, item.UnitCoinPrice)
	}

	results := o.db.SendBatch(ctx, batch)
	defer results.Close()

	order.Items = make([]domain.OrderItem, 0, len(args.Items))
	for range args.Items {
		var item domain.OrderItem
		scanErr := results.QueryRow().Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.VendorID, &item.Quantity, &item.UnitCoinPrice,
		)
		if scanErr != nil {
			return nil, convertErr(scanErr, "creating order item for order `%s`", args.Number)
		}
		order.Items = append(order.Items, item)
	}

	return order, nil
}

func (o *OrderRepository) FindByIdempotencyKey(ctx context.Context, key string) (*domain.Order, error) {
	row := o.db.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE idempotency_key = $1`, key)
	order, err := scanOrder(row)
	if err != nil {
		return nil, convertErr(err, "finding order by idempotency key")
	}
	if itemsErr := o.loadItems(ctx, order); itemsErr != nil {
		return nil, itemsErr
	}
	return order, nil
}

func (o *OrderRepository) GetByBuyer(ctx context.Context, buyerID int64) ([]domain.Order, error) {
	rows, err := o.db.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE buyer_id = $1 ORDER BY created_at DESC`, buyerID)
	if err != nil {
		return nil, convertErr(err, "getting orders for buyer %d", buyerID)
	}
	defer rows.Close()

	var orders []domain.Order
	for rows.Next() {
		order, scanErr := scanOrder(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning order row")
		}
		orders = append(orders, *order)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting orders for buyer %d", buyerID)
	}
	return orders, nil
}

func (o *OrderRepository) loadItems(ctx context.Context, order *domain.Order) error {
	rows, err := o.db.Query(ctx, `
		SELECT id, order_id, product_id, vendor_id, quantity, unit_coin_price
		FROM order_items WHERE order_id = $1 ORDER BY id`,
		order.ID)
	if err != nil {
		return convertErr(err, "loading items for order %d", order.ID)
	}
	defer rows.Close()

	for rows.Next() {
		var item domain.OrderItem
		scanErr := rows.Scan(
			&item.ID, &item.OrderID, &item.ProductID, &item.VendorID, &item.Quantity, &item.UnitCoinPrice,
		)
		if scanErr != nil {
			return convertErr(scanErr, "scanning order item row")
		}
		order.Items = append(order.Items, item)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return convertErr(rowsErr, "loading items for order %d", order.ID)
	}
	return nil
}

func scanOrder(row pgx.Row) (*domain.Order, error) {
	var m domain.Order
	err := row.Scan(&m.ID, &m.CreatedAt, &m.Number, &m.BuyerID, &m.TotalCoins, &m.IdempotencyKey)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
