package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
	"golang.org/x/text/currency"
)

type BillingInterval string

var (
	Day   BillingInterval = "day"
	Week  BillingInterval = "week"
	Month BillingInterval = "month"
	Year  BillingInterval = "year"
)

func (i BillingInterval) Valid() bool {
	switch i {
	case Day, Week, Month, Year:
		return true
	default:
		return false
	}
}

// Price is a recurring price in minor currency units.
type Price struct {
	ID              snowflake.ID    `json:"id" gorm:"primaryKey"`
	ProductID       snowflake.ID    `json:"product_id" gorm:"column:product_id;not null;index"`
	ProviderPriceID string          `json:"provider_price_id" gorm:"column:provider_price_id;not null;uniqueIndex"`
	UnitAmount      int64           `json:"unit_amount" gorm:"column:unit_amount;not null"`
	Currency        string          `json:"currency" gorm:"type:char(3);not null"`
	Interval        BillingInterval `json:"interval" gorm:"column:billing_interval;not null"`
	CreatedAt       time.Time       `json:"created_at"`
}

func (Price) TableName() string { return "prices" }

// DisplayAmount renders UnitAmount in major units using the currency's
// standard number of decimals, e.g. 1999 USD -> "19.99", 500 JPY -> "500".
func (p Price) DisplayAmount() string {
	scale := int32(2)
	if unit, err := currency.ParseISO(p.Currency); err == nil {
		s, _ := currency.Standard.Rounding(unit)
		scale = int32(s)
	}
	return decimal.New(p.UnitAmount, -scale).StringFixed(scale)
}
