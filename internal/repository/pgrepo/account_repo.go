package pgrepo

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"github.com/vidmarket/coinledger/internal/domain"
	"github.com/vidmarket/coinledger/internal/repository/repoargs"
	"github.com/vidmarket/coinledger/pkg/uow"
)

const accountColumns = `id, created_at, updated_at, email, password, role,
coins_balance, wallet_balance, send_blocked, receive_blocked`

type AccountRepository struct {
	db uow.DBTX
}

func NewAccountRepository(db uow.DBTX) *AccountRepository {
	return &AccountRepository{db: db}
}

func (a *AccountRepository) Create(
	ctx context.Context,
	args repoargs.CreateAccount,
) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `
		INSERT INTO accounts (email, password, role)
		VALUES ($1, $2, $3)
		RETURNING `+accountColumns,
		args.Email, args.Password, string(args.Role))

	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "creating account `%s`", args.Email)
	}
	return account, nil
}

func (a *AccountRepository) FindByID(ctx context.Context, id int64) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE id = $1`, id)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "finding account by id %d", id)
	}
	return account, nil
}

func (a *AccountRepository) FindByEmail(ctx context.Context, email string) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE email = $1`, email)
	account, err := scanAccount(row)
	if err != nil {
		return nil, convertErr(err, "finding account by email `%s`", email)
	}
	return account, nil
}

func (a *AccountRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.Account, error) {
	rows, err := a.db.Query(ctx,
		`SELECT `+accountColumns+` FROM accounts WHERE role = $1 ORDER BY id`, string(role))
	if err != nil {
		return nil, convertErr(err, "listing accounts by role `%s`", role)
	}
	defer rows.Close()

	var accounts []domain.Account
	for rows.Next() {
		account, scanErr := scanAccount(rows)
		if scanErr != nil {
			return nil, convertErr(scanErr, "scanning account row")
		}
		accounts = append(accounts, *account)
	}
	if rowsErr := rows.Err(); rowsErr != nil {
		return nil, convertErr(rowsErr, "listing accounts by role `%s`", role)
	}
	return accounts, nil
}

// AdjustCoins атомарно изменяет баланс монет на delta одним условным UPDATE.
// Условие `coins_balance + delta >= 0` проверяется на стороне БД, так что
// конкурентные изменения одного счета сериализуются блокировкой строки и
// read-modify-write гонка невозможна. Ноль затронутых строк означает либо
// нехватку средств, либо отсутствие счета - различаем дополнительной выборкой.
func (a *AccountRepository) AdjustCoins(ctx context.Context, accountID int64, delta int64) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `
		UPDATE accounts
		SET coins_balance = coins_balance + $2, updated_at = now()
		WHERE id = $1 AND coins_balance + $2 >= 0
		RETURNING `+accountColumns,
		accountID, delta)

	account, err := scanAccount(row)
	if err == nil {
		return account, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, convertErr(err, "adjusting coins for account %d", accountID)
	}

	if _, findErr := a.FindByID(ctx, accountID); findErr != nil {
		if errors.Is(findErr, domain.ErrRecordNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, findErr
	}
	return nil, domain.ErrInsufficientFunds
}

// SetTransferOverride выставляет флаги блокировки переводов.
func (a *AccountRepository) SetTransferOverride(
	ctx context.Context,
	accountID int64,
	sendBlocked, receiveBlocked bool,
) (*domain.Account, error) {
	row := a.db.QueryRow(ctx, `
		UPDATE accounts
		SET send_blocked = $2, receive_blocked = $3, updated_at = now()
		WHERE id = $1
		RETURNING `+accountColumns,
		accountID, sendBlocked, receiveBlocked)

	account, err := scanAccount(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, convertErr(err, "setting transfer override for account %d", accountID)
	}
	return account, nil
}

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var m domain.Account
	var role string
	var createdAt, updatedAt time.Time
	var wallet decimal.Decimal

	err := row.Scan(
		&m.ID, &createdAt, &updatedAt, &m.Email, &m.Password, &role,
		&m.CoinsBalance, &wallet, &m.SendBlocked, &m.ReceiveBlocked,
	)
	if err != nil {
		return nil, err
	}
	m.CreatedAt = createdAt
	m.UpdatedAt = updatedAt
	m.Role = domain.Role(role)
	m.WalletBalance = wallet
	return &m, nil
}
