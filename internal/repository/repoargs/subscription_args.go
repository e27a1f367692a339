package repoargs

import (
	"time"

	"github.com/shopspring/decimal"
)

type SubscriptionCreate struct {
	ProductID              int64
	VendorID               int64
	StartDate              time.Time
	EndDate                time.Time
	TotalAmount            decimal.Decimal
	PreviousSubscriptionID *int64
	RenewalCount           int32
}
