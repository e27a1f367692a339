package repoargs

import "github.com/vidmarket/coinledger/internal/domain"

type CreateAccount struct {
	Email    string
	Password string
	Role     domain.Role
}

type TransactionCreate struct {
	AccountID   int64
	Kind        domain.TransactionKind
	Amount      int64
	Description string

	VideoID        *int64
	WatchSeconds   *int32
	CounterpartyID *int64
	OrderNumber    *string
}
