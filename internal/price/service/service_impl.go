package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/pkg/db"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/text/currency"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB          *gorm.DB
	Log         *zap.Logger
	GenID       *snowflake.Node
	Repo        pricedomain.Repository
	ProductRepo productdomain.Repository
}

type Service struct {
	db          *gorm.DB
	log         *zap.Logger
	genID       *snowflake.Node
	repo        pricedomain.Repository
	productRepo productdomain.Repository
}

func New(p Params) pricedomain.Service {
	return &Service{
		db:          p.DB,
		log:         p.Log.Named("price.service"),
		genID:       p.GenID,
		repo:        p.Repo,
		productRepo: p.ProductRepo,
	}
}

func (s *Service) Create(ctx context.Context, req pricedomain.CreateRequest) (*pricedomain.Response, error) {
	productID, err := parseID(req.ProductID)
	if err != nil {
		return nil, pricedomain.ErrInvalidProduct
	}

	providerPriceID := strings.TrimSpace(req.ProviderPriceID)
	if providerPriceID == "" {
		return nil, pricedomain.ErrInvalidProviderID
	}

	if req.UnitAmount < 0 {
		return nil, pricedomain.ErrInvalidUnitAmount
	}

	code, err := parseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	interval := pricedomain.BillingInterval(strings.ToLower(strings.TrimSpace(req.Interval)))
	if !interval.Valid() {
		return nil, pricedomain.ErrInvalidInterval
	}

	product, err := s.productRepo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if product == nil {
		return nil, pricedomain.ErrInvalidProduct
	}

	entity := &pricedomain.Price{
		ID:              s.genID.Generate(),
		ProductID:       productID,
		ProviderPriceID: providerPriceID,
		UnitAmount:      req.UnitAmount,
		Currency:        code,
		Interval:        interval,
		CreatedAt:       time.Now().UTC(),
	}
	if err := s.repo.Insert(ctx, s.db, entity); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, pricedomain.ErrDuplicatePrice
		}
		return nil, err
	}

	resp := pricedomain.ToResponse(entity)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id snowflake.ID) (*pricedomain.Price, error) {
	if id == 0 {
		return nil, pricedomain.ErrNotFound
	}
	entity, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, pricedomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) GetByProviderPriceID(ctx context.Context, providerPriceID string) (*pricedomain.Price, error) {
	providerPriceID = strings.TrimSpace(providerPriceID)
	if providerPriceID == "" {
		return nil, pricedomain.ErrNotFound
	}
	entity, err := s.repo.FindByProviderPriceID(ctx, s.db, providerPriceID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, pricedomain.ErrNotFound
	}
	return entity, nil
}

func (s *Service) ResolvePrice(ctx context.Context, productID snowflake.ID) (*pricedomain.Price, error) {
	if productID == 0 {
		return nil, pricedomain.ErrNotFound
	}
	entity, err := s.repo.FindDefaultForProduct(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if entity == nil {
		return nil, pricedomain.ErrNotFound
	}
	return entity, nil
}

func parseID(value string) (snowflake.ID, error) {
	return snowflake.ParseString(strings.TrimSpace(value))
}

// parseCurrency accepts ISO-4217 codes in any case and returns the upper-case code.
func parseCurrency(value string) (string, error) {
	value = strings.TrimSpace(value)
	if len(value) != 3 {
		return "", pricedomain.ErrInvalidCurrency
	}
	unit, err := currency.ParseISO(value)
	if err != nil {
		return "", pricedomain.ErrInvalidCurrency
	}
	return unit.String(), nil
}
