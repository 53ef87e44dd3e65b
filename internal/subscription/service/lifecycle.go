package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/observability/logger"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	productdomain "github.com/smallbiznis/subsync/internal/product/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/smallbiznis/subsync/pkg/db"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sourceUser = "user"

func (s *Service) CreateSubscription(ctx context.Context, userID snowflake.ID, req subscriptiondomain.CreateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}
	methodID := strings.TrimSpace(req.PaymentMethodID)
	if methodID == "" {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidPaymentMethod
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	defer unlock()

	log := logger.WithContext(ctx, s.log).With(zap.String("user_id", userID.String()))

	user, err := s.customersvc.GetUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	price, err := s.resolvePrice(ctx, req.ProductID, req.PriceID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	current, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current != nil {
		if current.PriceID == price.ID {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrDuplicateSubscription
		}
		if current.Status == subscriptiondomain.StatusIncomplete {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionPending
		}
		log.Info("subscription exists with another price, changing price",
			zap.String("subscription_id", current.ID.String()),
			zap.String("price_id", price.ID.String()),
		)
		return s.changePrice(ctx, *current, price)
	}

	if err := s.callProvider(ctx, "ensure_customer", func(ctx context.Context) error {
		user, err = s.customersvc.EnsureCustomer(ctx, user)
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	if err := s.callProvider(ctx, "attach_payment_method", func(ctx context.Context) error {
		user, err = s.customersvc.AttachPaymentMethod(ctx, user, methodID)
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	// The row count makes the key stable across retries of this attempt and
	// fresh once a subscription has been stored. The provider rejects a key
	// reused with other parameters, so the payment method is part of it.
	count, err := s.repo.CountByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	var remote providerdomain.RemoteSubscription
	if err := s.callProvider(ctx, "create_subscription", func(ctx context.Context) error {
		remote, err = s.gateway.CreateSubscription(ctx, providerdomain.CreateSubscriptionParams{
			CustomerID:             user.CustomerID(),
			PriceID:                price.ProviderPriceID,
			DefaultPaymentMethodID: methodID,
			IdempotencyKey:         fmt.Sprintf("sub-create:%s:%s:%s:%d", userID, price.ID, methodID, count),
			Metadata: map[string]string{
				"user_id":  userID.String(),
				"price_id": price.ID.String(),
			},
		})
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	status := statusFromRemote(remote)
	if status == subscriptiondomain.StatusCancelled {
		return subscriptiondomain.Subscription{}, fmt.Errorf("%w: new subscription %s is %s",
			providerdomain.ErrProviderRejected, remote.ID, remote.Status)
	}
	if status == subscriptiondomain.StatusActiveUntilEnd {
		status = subscriptiondomain.StatusActive
	}

	now := s.now()
	mark := s.watermark()
	sub := subscriptiondomain.Subscription{
		ID:                     s.genID.Generate(),
		UserID:                 userID,
		ProviderSubscriptionID: remote.ID,
		PriceID:                price.ID,
		Status:                 status,
		LastEventAt:            &mark,
		Version:                1,
		CreatedAt:              now,
		UpdatedAt:              now,
	}

	err = s.inTx(ctx, func(tx *gorm.DB) error {
		existing, err := s.repo.FindOpenByUserIDForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		if existing != nil {
			return subscriptiondomain.ErrDuplicateSubscription
		}
		return s.repo.Insert(ctx, tx, &sub)
	})
	if err != nil {
		if db.IsDuplicateKeyErr(err) {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrDuplicateSubscription
		}
		log.Error("remote subscription created but local write failed",
			zap.String("provider_subscription_id", remote.ID),
			zap.Error(err),
		)
		return subscriptiondomain.Subscription{}, err
	}

	logger.WithSubscription(log, sub.ID.String(), sub.ProviderSubscriptionID).
		Info("subscription created", zap.String("status", string(sub.Status)))
	s.metrics.RecordTransition(ctx, "NONE", string(sub.Status), sourceUser)
	return sub, nil
}

func (s *Service) UpdateSubscription(ctx context.Context, userID snowflake.ID, req subscriptiondomain.UpdateSubscriptionRequest) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	defer unlock()

	price, err := s.resolvePrice(ctx, req.ProductID, req.PriceID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	current, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	if current.Status != subscriptiondomain.StatusActive {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}
	if current.PriceID == price.ID {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrPriceUnchanged
	}
	return s.changePrice(ctx, *current, price)
}

// changePrice swaps the remote item to price with proration and leaves the
// subscription Active. A pending cancellation is cleared. Caller holds the user lock.
func (s *Service) changePrice(ctx context.Context, current subscriptiondomain.Subscription, price *pricedomain.Price) (subscriptiondomain.Subscription, error) {
	if _, ok := nextStatus(triggerUpdate, current.Status); !ok {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}

	if err := s.callProvider(ctx, "update_subscription_item", func(ctx context.Context) error {
		_, err := s.gateway.UpdateSubscriptionItem(ctx, current.ProviderSubscriptionID, price.ProviderPriceID, true)
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	if current.Status == subscriptiondomain.StatusActiveUntilEnd {
		if err := s.callProvider(ctx, "set_cancel_at_period_end", func(ctx context.Context) error {
			_, err := s.gateway.SetCancelAtPeriodEnd(ctx, current.ProviderSubscriptionID, false)
			return err
		}); err != nil {
			return subscriptiondomain.Subscription{}, err
		}
	}

	return s.persistUserTransition(ctx, current.ProviderSubscriptionID, triggerUpdate, func(sub *subscriptiondomain.Subscription) {
		sub.PriceID = price.ID
		sub.PeriodEnd = nil
	})
}

func (s *Service) CancelSubscription(ctx context.Context, userID snowflake.ID) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	defer unlock()

	current, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	if current.Status == subscriptiondomain.StatusActiveUntilEnd {
		return *current, nil
	}
	if _, ok := nextStatus(triggerCancel, current.Status); !ok {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}

	var remote providerdomain.RemoteSubscription
	if err := s.callProvider(ctx, "set_cancel_at_period_end", func(ctx context.Context) error {
		remote, err = s.gateway.SetCancelAtPeriodEnd(ctx, current.ProviderSubscriptionID, true)
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if remote.PeriodEnd == nil {
		s.log.Warn("provider returned no period end for cancelled subscription",
			zap.String("provider_subscription_id", current.ProviderSubscriptionID))
	}

	return s.persistUserTransition(ctx, current.ProviderSubscriptionID, triggerCancel, func(sub *subscriptiondomain.Subscription) {
		sub.PeriodEnd = remote.PeriodEnd
	})
}

func (s *Service) RenewSubscription(ctx context.Context, userID snowflake.ID) (subscriptiondomain.Subscription, error) {
	if userID == 0 {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidUser
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	defer unlock()

	current, err := s.repo.FindOpenByUserID(ctx, s.db, userID)
	if err != nil {
		return subscriptiondomain.Subscription{}, err
	}
	if current == nil {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrSubscriptionNotFound
	}
	if current.Status == subscriptiondomain.StatusActive {
		return *current, nil
	}
	if _, ok := nextStatus(triggerRenew, current.Status); !ok {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrInvalidTransition
	}

	periodEnd := current.PeriodEnd
	if periodEnd == nil {
		var remote providerdomain.RemoteSubscription
		if err := s.callProvider(ctx, "retrieve_subscription", func(ctx context.Context) error {
			remote, err = s.gateway.RetrieveSubscription(ctx, current.ProviderSubscriptionID)
			return err
		}); err != nil {
			return subscriptiondomain.Subscription{}, err
		}
		if remote.IsCanceled() {
			return subscriptiondomain.Subscription{}, subscriptiondomain.ErrRenewalWindowClosed
		}
		periodEnd = remote.PeriodEnd
	}
	if periodEnd != nil && !s.now().Before(*periodEnd) {
		return subscriptiondomain.Subscription{}, subscriptiondomain.ErrRenewalWindowClosed
	}

	if err := s.callProvider(ctx, "set_cancel_at_period_end", func(ctx context.Context) error {
		_, err := s.gateway.SetCancelAtPeriodEnd(ctx, current.ProviderSubscriptionID, false)
		return err
	}); err != nil {
		return subscriptiondomain.Subscription{}, err
	}

	return s.persistUserTransition(ctx, current.ProviderSubscriptionID, triggerRenew, func(sub *subscriptiondomain.Subscription) {
		sub.PeriodEnd = nil
	})
}

// persistUserTransition re-reads the row inside a transaction, fires t and
// applies mutate. The row's last_event_at advances to now, at provider
// resolution, so older provider events cannot undo the action.
func (s *Service) persistUserTransition(
	ctx context.Context,
	providerSubscriptionID string,
	t trigger,
	mutate func(sub *subscriptiondomain.Subscription),
) (subscriptiondomain.Subscription, error) {
	var (
		out  subscriptiondomain.Subscription
		from subscriptiondomain.SubscriptionStatus
	)
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.FindByProviderIDForUpdate(ctx, tx, providerSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil || sub.Status.IsTerminal() {
			return subscriptiondomain.ErrSubscriptionNotFound
		}
		to, ok := nextStatus(t, sub.Status)
		if !ok {
			return subscriptiondomain.ErrInvalidTransition
		}

		from = sub.Status
		now := s.now()
		sub.Status = to
		mutate(sub)
		sub.AdvanceLastEvent(s.watermark())
		sub.UpdatedAt = now
		if err := s.repo.Update(ctx, tx, sub); err != nil {
			return err
		}
		out = *sub
		return nil
	})
	if err != nil {
		s.log.Error("remote change applied but local write failed",
			zap.String("provider_subscription_id", providerSubscriptionID),
			zap.String("trigger", string(t)),
			zap.Error(err),
		)
		return subscriptiondomain.Subscription{}, err
	}

	logger.WithSubscription(logger.WithContext(ctx, s.log), out.ID.String(), out.ProviderSubscriptionID).
		Info("subscription transitioned",
			zap.String("trigger", string(t)),
			zap.String("from", string(from)),
			zap.String("to", string(out.Status)),
		)
	s.recordTransition(ctx, from, out.Status, sourceUser)
	return out, nil
}

func (s *Service) resolvePrice(ctx context.Context, productRef, priceRef string) (*pricedomain.Price, error) {
	priceID, hasPrice, err := parseOptionalID(strings.TrimSpace(priceRef), subscriptiondomain.ErrInvalidPrice)
	if err != nil {
		return nil, err
	}
	if hasPrice {
		return s.pricesvc.Get(ctx, priceID)
	}

	productRef = strings.TrimSpace(productRef)
	if productRef == "" {
		return nil, subscriptiondomain.ErrInvalidPrice
	}
	productIDs, err := s.productsvc.ResolveRefs(ctx, []string{productRef})
	if err != nil {
		return nil, err
	}
	if len(productIDs) == 0 {
		return nil, fmt.Errorf("product %q: %w", productRef, productdomain.ErrNotFound)
	}
	return s.pricesvc.ResolvePrice(ctx, productIDs[0])
}
