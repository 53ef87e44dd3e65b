package domain

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
)

type Service interface {
	Create(ctx context.Context, req CreateRequest) (*Response, error)
	List(ctx context.Context) ([]Response, error)
	Get(ctx context.Context, id string) (*Response, error)
	// ResolveRefs maps product ids or codes to product ids. Unknown refs are skipped.
	ResolveRefs(ctx context.Context, refs []string) ([]snowflake.ID, error)
}

type CreateRequest struct {
	Code              string `json:"code"`
	Name              string `json:"name"`
	Description       string `json:"description"`
	ProviderProductID string `json:"provider_product_id"`
}

type Response struct {
	ID                string                 `json:"id"`
	Code              string                 `json:"code"`
	Name              string                 `json:"name"`
	Description       string                 `json:"description,omitempty"`
	ProviderProductID string                 `json:"provider_product_id"`
	Prices            []pricedomain.Response `json:"prices"`
	CreatedAt         time.Time              `json:"created_at"`
}

var (
	ErrInvalidCode       = errors.New("invalid_code")
	ErrInvalidName       = errors.New("invalid_name")
	ErrInvalidProviderID = errors.New("invalid_provider_product_id")
	ErrDuplicateProduct  = errors.New("duplicate_product")
	ErrNotFound          = errors.New("product_not_found")
	ErrInvalidID         = errors.New("invalid_id")
)
