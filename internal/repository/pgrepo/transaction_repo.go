package pgrepo

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const transactionColumns = `id, created_at, account_id, kind, amount, description,
video_id, watch_seconds, counterparty_id, order_number`

// TransactionRepository - append-only журнал операций. Записи только создаются,
// методов обновления и удаления у репозитория нет.
type TransactionRepository struct {
	db uow.DBTX
}

func NewTransactionRepository(db uow.DBTX) *TransactionRepository {
	return &TransactionRepository{db: db}
}

func (t *TransactionRepository) Create(
	ctx context.Context,
	args repoargs.TransactionCreate,
) (*domain.Transaction, error) {
	row := t.db.QueryRow(ctx, `
		INSERT INTO transactions
			(account_id, kind, amount, description, video_id, watch_seconds, counterparty_id, order_number)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING `+transactionColumns,
		args.AccountID, string(args.Kind), args.Amount, args.Description,
		args.VideoID, args.WatchSeconds, args.CounterpartyID, args.OrderNumber)

	transaction, err := scanTransaction(row)
	if err != nil {
		return nil, convertErr(err, "creating transaction for account %d", args.AccountID)
	}
	return transaction, nil
}

// GetByAccountID возвращает записи журнала по счету, новые первыми.
func (t *TransactionRepository) GetByAccountID(
	ctx context.Context,
	accountID int64,
	limit uint,
) ([]domain.Transaction, error) {
	safeLimit, limitErr := safeConvertUintToInt32(limit)
	if limitErr != nil {
		return nil, convertErr(limitErr, "converting limit to int32")
	}

	rows, err := t.db.Query(ctx, `
		SELECT `+transactionColumns+`
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2`,
		accountID, safeLimit)
	if err != nil {
		return nil, convertErr(err, "getting transactions for account %d", accountID)
	}
	defer rows.Close()

	var transactions []domain.Transaction
	for rows.Next() {
		transaction, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning transaction row")
		}
		transactions = append(transactions, *transaction)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "getting transactions for account %d", accountID)
	}
	return transactions, nil
}

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var m domain.Transaction
	var kind string

	err := row.Scan(
		&m.ID, &m.CreatedAt, &m.AccountID, &kind, &m.Amount, &m.Description,
		&m.VideoID, &m.WatchSeconds, &m.CounterpartyID, &m.OrderNumber,
	)
	if err != nil {
		return nil, err
	}
	m.Kind = domain.TransactionKind(kind)
	return &m, nil
}
