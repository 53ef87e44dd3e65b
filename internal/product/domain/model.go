package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

type Product struct {
	ID                snowflake.ID `json:"id" gorm:"primaryKey"`
	Code              string       `json:"code" gorm:"type:text;not null;uniqueIndex"`
	Name              string       `json:"name" gorm:"type:text;not null"`
	Description       string       `json:"description" gorm:"type:text"`
	ProviderProductID string       `json:"provider_product_id" gorm:"type:text;not null;uniqueIndex"`
	CreatedAt         time.Time    `json:"created_at" gorm:"not null;default:CURRENT_TIMESTAMP"`
}

func (Product) TableName() string { return "products" }
