package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account представляет счет участника площадки (клиент, вендор, админ или субадмин).
// CoinsBalance меняется только через леджер (LedgerService), напрямую поле не мутируется.
type Account struct {
	ID            int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	Email         string
	Password      string
	Role          Role
	CoinsBalance  int64
	WalletBalance decimal.Decimal
	// SendBlocked и ReceiveBlocked блокируют исходящие/входящие переводы между счетами,
	// независимо от баланса.
	SendBlocked    bool
	ReceiveBlocked bool
}

// Transaction - неизменяемая запись журнала операций. Amount со знаком:
// положительное значение - зачисление, отрицательное - списание.
// Записи никогда не редактируются и не удаляются.
type Transaction struct {
	ID          int64
	CreatedAt   time.Time
	AccountID   int64
	Kind        TransactionKind
	Amount      int64
	Description string

	// Полиморфные метаданные, заполняются в зависимости от Kind.
	VideoID        *int64
	WatchSeconds   *int32
	CounterpartyID *int64
	OrderNumber    *string
}

// RewardPolicy - политика начисления монет за просмотр видео. Снимок политики
// замораживается в VideoWatchRecord при первом просмотре, чтобы последующие правки
// видео не пересчитывали награду задним числом.
type RewardPolicy struct {
	TimeBased        bool
	DurationSeconds  int32
	CoinsReward      int64
	CoinsPerInterval int64
	IntervalSeconds  int32
}

// TotalEarnable возвращает максимум монет, который можно заработать на видео.
func (p RewardPolicy) TotalEarnable() int64 {
	if !p.TimeBased {
		return p.CoinsReward
	}
	if p.IntervalSeconds <= 0 {
		return 0
	}
	intervals := int64(p.DurationSeconds) / int64(p.IntervalSeconds)
	if int64(p.DurationSeconds)%int64(p.IntervalSeconds) != 0 {
		intervals++
	}
	return intervals * p.CoinsPerInterval
}

// Earnable возвращает кол-во монет, заработанное к моменту watchedSeconds накопленного
// времени просмотра. Функция чистая и монотонная по watchedSeconds.
func (p RewardPolicy) Earnable(watchedSeconds int32) int64 {
	if watchedSeconds <= 0 {
		return 0
	}
	if !p.TimeBased {
		// фиксированная награда выдается целиком по достижению полного просмотра.
		if watchedSeconds >= p.DurationSeconds {
			return p.CoinsReward
		}
		return 0
	}
	if p.IntervalSeconds <= 0 {
		return 0
	}
	earned := int64(watchedSeconds) / int64(p.IntervalSeconds) * p.CoinsPerInterval
	if total := p.TotalEarnable(); earned > total {
		return total
	}
	return earned
}

type Video struct {
	ID        int64
	CreatedAt time.Time
	UpdatedAt time.Time
	Title     string
	Policy    RewardPolicy
}

// VideoWatchRecord - прогресс просмотра видео юзером. На пару (аккаунт, видео)
// существует максимум одна запись (уникальный индекс). WatchSeconds и CoinsEarned
// только растут.
type VideoWatchRecord struct {
	ID            int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
	AccountID     int64
	VideoID       int64
	WatchSeconds  int32
	CoinsEarned   int64
	Completed     bool
	LastWatchedAt time.Time
	Policy        RewardPolicy
}

type Product struct {
	ID                    int64
	CreatedAt             time.Time
	UpdatedAt             time.Time
	VendorID              int64
	Title                 string
	UnitCoinPrice         int64
	Stock                 int32
	ImagesCount           int32
	IsPublished           bool
	CurrentSubscriptionID *int64
}

// ProductSubscription - оплаченное временное окно, в течение которого товар вендора
// виден публично. Жизненный цикл: pending -> active -> expired|cancelled.
// Истекшая подписка не реанимируется: продление создает новую запись со ссылкой
// PreviousSubscriptionID.
type ProductSubscription struct {
	ID                     int64
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ProductID              int64
	VendorID               int64
	StartDate              time.Time
	EndDate                time.Time
	Status                 SubscriptionStatus
	PaymentStatus          PaymentStatus
	TotalAmount            decimal.Decimal
	ExpiryNotificationSent bool
	PreviousSubscriptionID *int64
	RenewalCount           int32
	IsDeleted              bool
}

type Order struct {
	ID             int64
	CreatedAt      time.Time
	Number         string
	BuyerID        int64
	TotalCoins     int64
	IdempotencyKey string
	Items          []OrderItem
}

type OrderItem struct {
	ID            int64
	OrderID       int64
	ProductID     int64
	VendorID      int64
	Quantity      int32
	UnitCoinPrice int64
}
