package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	Get(ctx context.Context, id snowflake.ID) (*Price, error)
	GetByProviderPriceID(ctx context.Context, providerPriceID string) (*Price, error)
	// ResolvePrice returns the price a subscription to productID is created with.
	ResolvePrice(ctx context.Context, productID snowflake.ID) (*Price, error)
}

type CreateRequest struct {
	ProductID       string `json:"product_id"`
	ProviderPriceID string `json:"provider_price_id"`
	UnitAmount      int64  `json:"unit_amount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval"`
}

type Response struct {
	ID              string `json:"id"`
	ProductID       string `json:"product_id"`
	ProviderPriceID string `json:"provider_price_id"`
	UnitAmount      int64  `json:"unit_amount"`
	Amount          string `json:"amount"`
	Currency        string `json:"currency"`
	Interval        string `json:"interval"`
}

func ToResponse(p *Price) Response {
	return Response{
		ID:              p.ID.String(),
		ProductID:       p.ProductID.String(),
		ProviderPriceID: p.ProviderPriceID,
		UnitAmount:      p.UnitAmount,
		Amount:          p.DisplayAmount(),
		Currency:        p.Currency,
		Interval:        string(p.Interval),
	}
}

var (
	ErrNotFound          = errors.New("price_not_found")
	ErrInvalidProduct    = errors.New("invalid_product")
	ErrInvalidProviderID = errors.New("invalid_provider_price_id")
	ErrInvalidUnitAmount = errors.New("invalid_unit_amount")
	ErrInvalidCurrency   = errors.New("invalid_currency")
	ErrInvalidInterval   = errors.New("invalid_interval")
	ErrDuplicatePrice    = errors.New("duplicate_price")
)
