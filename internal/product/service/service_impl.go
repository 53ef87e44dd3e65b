package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gosimple/slug"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	"github.com/smallbiznis/subsync/internal/product/domain"
	"github.com/smallbiznis/subsync/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Params struct {
	fx.In

	DB        *gorm.DB
	Log       *zap.Logger
	GenID     *snowflake.Node
	Repo      domain.Repository
	PriceRepo pricedomain.Repository
}

type Service struct {
	db        *gorm.DB
	log       *zap.Logger
	repo      domain.Repository
	priceRepo pricedomain.Repository
	genID     *snowflake.Node
}

func New(p Params) domain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("product.service"),
		repo:      p.Repo,
		priceRepo: p.PriceRepo,
		genID:     p.GenID,
	}
}

func (s *Service) List(ctx context.Context) ([]domain.Response, error) {
	items, err := s.repo.FindAll(ctx, s.db)
	if err != nil {
		return nil, err
	}

	ids := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}
	prices, err := s.priceRepo.ListByProducts(ctx, s.db, ids)
	if err != nil {
		return nil, err
	}
	byProduct := make(map[snowflake.ID][]pricedomain.Response, len(items))
	for i := range prices {
		byProduct[prices[i].ProductID] = append(byProduct[prices[i].ProductID], pricedomain.ToResponse(&prices[i]))
	}

	resp := make([]domain.Response, 0, len(items))
	for i := range items {
		resp = append(resp, s.toResponse(&items[i], byProduct[items[i].ID]))
	}
	return resp, nil
}

func (s *Service) Create(ctx context.Context, req domain.CreateRequest) (*domain.Response, error) {
	name := strings.TrimSpace(req.Name)
	if name == "" {
		return nil, domain.ErrInvalidName
	}

	code := strings.TrimSpace(req.Code)
	if code == "" {
		code = name
	}
	code = slug.Make(code)
	if code == "" {
		return nil, domain.ErrInvalidCode
	}

	providerProductID := strings.TrimSpace(req.ProviderProductID)
	if providerProductID == "" {
		return nil, domain.ErrInvalidProviderID
	}

	p := &domain.Product{
		ID:                s.genID.Generate(),
		Code:              code,
		Name:              name,
		Description:       strings.TrimSpace(req.Description),
		ProviderProductID: providerProductID,
		CreatedAt:         time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, s.db, p); err != nil {
		if db.IsDuplicateKeyErr(err) {
			return nil, domain.ErrDuplicateProduct
		}
		return nil, err
	}
	resp := s.toResponse(p, nil)
	return &resp, nil
}

func (s *Service) Get(ctx context.Context, id string) (*domain.Response, error) {
	productID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil {
		return nil, domain.ErrInvalidID
	}

	item, err := s.repo.FindByID(ctx, s.db, productID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, domain.ErrNotFound
	}

	prices, err := s.priceRepo.ListByProducts(ctx, s.db, []snowflake.ID{item.ID})
	if err != nil {
		return nil, err
	}
	priceResp := make([]pricedomain.Response, 0, len(prices))
	for i := range prices {
		priceResp = append(priceResp, pricedomain.ToResponse(&prices[i]))
	}

	resp := s.toResponse(item, priceResp)
	return &resp, nil
}

func (s *Service) ResolveRefs(ctx context.Context, refs []string) ([]snowflake.ID, error) {
	var ids []snowflake.ID
	var codes []string
	for _, ref := range refs {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}
		if id, err := snowflake.ParseString(ref); err == nil {
			ids = append(ids, id)
		}
		if code := slug.Make(ref); code != "" {
			codes = append(codes, code)
		}
	}
	if len(ids) == 0 && len(codes) == 0 {
		return nil, nil
	}

	items, err := s.repo.FindByRefs(ctx, s.db, ids, codes)
	if err != nil {
		return nil, err
	}
	out := make([]snowflake.ID, 0, len(items))
	for _, item := range items {
		out = append(out, item.ID)
	}
	return out, nil
}

func (s *Service) toResponse(p *domain.Product, prices []pricedomain.Response) domain.Response {
	if prices == nil {
		prices = []pricedomain.Response{}
	}
	return domain.Response{
		ID:                p.ID.String(),
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		ProviderProductID: p.ProviderProductID,
		Prices:            prices,
		CreatedAt:         p.CreatedAt,
	}
}
