package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const productColumns = `id, created_at, updated_at, vendor_id, title, unit_coin_price,
stock, images_count, is_published, current_subscription_id`

type ProductRepository struct {
	db uow.DBTX
}

func NewProductRepository(db uow.DBTX) *ProductRepository {
	return &ProductRepository{db: db}
}

func (p *ProductRepository) Create(ctx context.Context, args repoargs.ProductCreate) (*domain.Product, error) {
	row := p.db.QueryRow(ctx, `
		INSERT INTO products (vendor_id, title, unit_coin_price, stock, images_count)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING `+productColumns,
		args.VendorID, args.Title, args.UnitCoinPrice, args.Stock, args.ImagesCount)

	product, err := scanProduct(row)
	if err != nil {
		return nil, convertErr(err, "creating product `%s`", args.Title)
	}
	return product, nil
}

func (p *ProductRepository) FindByID(ctx context.Context, id int64) (*domain.Product, error) {
	row := p.db.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	product, err := scanProduct(row)
	if err != nil {
		return nil, convertErr(err, "finding product by id %d", id)
	}
	return product, nil
}

func (p *ProductRepository) ListPublished(ctx context.Context, limit uint) ([]domain.Product, error) {
	safeLimit, limitErr := safeConvertUintToInt32(limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}

	rows, err := p.db.Query(ctx,
		`SELECT `+productColumns+` FROM products WHERE is_published ORDER BY created_at DESC LIMIT $1`,
		safeLimit)
	if err != nil {
		return nil, convertErr(err, "listing published products")
	}
	defer rows.Close()

	var products []domain.Product
	for rows.Next() {
		product, scanErr := scanProduct(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning product row")
		}
		products = append(products, *product)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "listing published products")
	}
	return products, nil
}

// DecrementStock условно уменьшает остаток. Ноль затронутых строк означает,
// что остатка не хватает (или товара нет) - возвращается domain.ErrStockExceeded.
func (p *ProductRepository) DecrementStock(ctx context.Context, productID int64, qty int32) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE products
		SET stock = stock - $2, updated_at = now()
		WHERE id = $1 AND stock >= $2`,
		productID, qty)
	if err != nil {
		return convertErr(err, "decrementing stock for product %d", productID)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrStockExceeded
	}
	return nil
}

// SetPublication переключает публичную видимость товара и ссылку на текущую подписку.
func (p *ProductRepository) SetPublication(
	ctx context.Context,
	productID int64,
	published bool,
	currentSubscriptionID *int64,
) error {
	tag, err := p.db.Exec(ctx, `
		UPDATE products
		SET is_published = $2, current_subscription_id = $3, updated_at = now()
		WHERE id = $1`,
		productID, published, currentSubscriptionID)
	if err != nil {
		return convertErr(err, "setting publication for product %d", productID)
	}
	if tag.RowsAffected() == 0 {
		return convertErr(pgx.ErrNoRows, "setting publication for product %d", productID)
	}
	return nil
}

func scanProduct(row pgx.Row) (*domain.Product, error) {
	var m domain.Product
	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.UpdatedAt, &m.VendorID, &m.Title, &m.UnitCoinPrice,
		&m.Stock, &m.ImagesCount, &m.IsPublished, &m.CurrentSubscriptionID,
	)
	if err != nil {
		return nil, err
	}
	return &m, nil
}
