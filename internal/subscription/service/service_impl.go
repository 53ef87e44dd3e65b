package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/clock"
	"github.com/smallbiznis/subsync/internal/config"
	customerdomain "github.com/smallbiznis/subsync/internal/customer/domain"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	"github.com/smallbiznis/subsync/internal/lock"
	obsmetrics "github.com/smallbiznis/subsync/internal/observability/metrics"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Service is the reconciliation engine. It is the only writer of subscription
// status. Every read-modify-write for a user runs under that user's lock, and
// provider calls are made outside database transactions.
type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID   *snowflake.Node
	clock   clock.Clock
	repo    subscriptiondomain.Repository
	ledger  eventledgerdomain.Repository
	users   customerdomain.Repository
	locker  lock.Locker
	gateway providerdomain.Gateway
	holder  *config.ReconcileConfigHolder
	metrics *obsmetrics.Metrics

	customersvc customerdomain.Service
	pricesvc    pricedomain.Service
	productsvc  productdomain.Service
}

type ServiceParam struct {
	fx.In

	DB      *gorm.DB
	Log     *zap.Logger
	GenID   *snowflake.Node
	Clock   clock.Clock
	Repo    subscriptiondomain.Repository
	Ledger  eventledgerdomain.Repository
	Users   customerdomain.Repository
	Locker  lock.Locker
	Gateway providerdomain.Gateway
	Config  *config.ReconcileConfigHolder
	Metrics *obsmetrics.Metrics `optional:"true"`

	Customersvc customerdomain.Service
	Pricesvc    pricedomain.Service
	Productsvc  productdomain.Service
}

func NewService(p ServiceParam) subscriptiondomain.Service {
	return &Service{
		db:  p.DB,
		log: p.Log.Named("subscription.engine"),

		genID:   p.GenID,
		clock:   p.Clock,
		repo:    p.Repo,
		ledger:  p.Ledger,
		users:   p.Users,
		locker:  p.Locker,
		gateway: p.Gateway,
		holder:  p.Config,
		metrics: p.Metrics,

		customersvc: p.Customersvc,
		pricesvc:    p.Pricesvc,
		productsvc:  p.Productsvc,
	}
}

func (s *Service) GetSubscription(ctx context.Context, userID snowflake.ID) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}
	item, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if item == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	return *item, nil
}

func (s *Service) ListSubscriptions(ctx context.Context, userID snowflake.ID) ([]subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return nil, subscriptiondomain.ErrInvalidUser
	}
	items, err := s.repo.ListByUserID(ctx, s.db, userID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []subscriptiondomain.Subscription{}
	}
	return items, nil
}

func (s *Service) HasAccess(ctx context.Context, userID snowflake.ID, products []string) (bool, error) {
	if userID == 0 {
		return false, subscriptiondomain.ErrInvalidUser
	}
	item, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return false, err
	}
	if item == nil || !item.Status.GrantsAccess() || !item.WithinPaidPeriod(s.clock.Now()) {
		return false, nil
	}
	if len(products) == 0 {
		return true, nil
	}

	price, err := s.pricesvc.Get(ctx, item.PriceID)
	if err != nil {
		return false, err
	}
	productIDs, err := s.productsvc.ResolveRefs(ctx, products)
	if err != nil {
		return false, err
	}
	for _, id := range productIDs {
		if id == price.ProductID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Service) cfg() config.ReconcileConfig {
	return s.holder.Get()
}

// lockUser acquires the per-user lock, waiting at most LockWait.
func (s *Service) lockUser(ctx context.Context, userID snowflake.ID) (func(), error) {
	waitCtx, cancel := context.WithTimeout(ctx, s.cfg().LockWait)
	defer cancel()

	start := s.clock.Now()
	unlock, err := s.locker.Lock(waitCtx, lock.UserKey(userID))
	s.metrics.ObserveLockWait(ctx, s.clock.Now().Sub(start), err == nil)
	if err != nil {
		return nil, fmt.Errorf("lock user %s: %w", userID, err)
	}
	return unlock, nil
}

// callProvider runs fn with the configured provider timeout. A deadline hit is
// reported as ErrProviderUnavailable so callers can retry.
func (s *Service) callProvider(ctx context.Context, operation string, fn func(ctx context.Context) error) error {
	callCtx, cancel := context.WithTimeout(ctx, s.cfg().ProviderTimeout)
	defer cancel()

	start := s.clock.Now()
	err := fn(callCtx)
	s.metrics.ObserveProviderCall(ctx, operation, s.clock.Now().Sub(start), err != nil)
	if err == nil {
		return nil
	}
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, providerdomain.ErrProviderUnavailable) {
		err = fmt.Errorf("%s: %w: %w", operation, providerdomain.ErrProviderUnavailable, err)
	}
	s.metrics.RecordProviderFailure(ctx, operation, string(subscriptiondomain.KindOf(err)))
	return err
}

func (s *Service) inTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return s.db.WithContext(ctx).Transaction(fn)
}

func (s *Service) now() time.Time {
	return s.clock.Now().UTC()
}

// providerClockResolution is the precision of provider event timestamps.
const providerClockResolution = time.Second

// watermark is the last_event_at stamp for local writes. It is truncated to
// the provider's resolution so an event emitted later in the same second is
// not judged stale.
func (s *Service) watermark() time.Time {
	return s.now().Truncate(providerClockResolution)
}

func (s *Service) recordTransition(ctx context.Context, from, to subscriptiondomain.SubscriptionStatus, source string) {
	if from == to {
		return
	}
	s.metrics.RecordTransition(ctx, string(from), string(to), source)
}

func parseOptionalID(value string, invalidErr error) (snowflake.ID, bool, error) {
	if value == "" {
		return 0, false, nil
	}
	id, err := snowflake.ParseString(value)
	if err != nil || id == 0 {
		return 0, false, invalidErr
	}
	return id, true, nil
}
