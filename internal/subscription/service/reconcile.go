package service

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/subsync/internal/observability/logger"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const sourceSweep = "sweep"

func (s *Service) ListForSweep(ctx context.Context, limit int) ([]subscriptiondomain.Subscription, error) {
	cfg := s.cfg()
	if limit <= 0 {
		limit = cfg.SweepBatchSize
	}
	now := s.now()
	return s.repo.ListForSweep(ctx, s.db, now.Add(-cfg.SweepStaleAfter), now, limit)
}

// ReconcileSubscription fetches the provider's snapshot and applies it as if
// it were an event observed before the call. Any event processed while the
// call was in flight is newer and wins.
func (s *Service) ReconcileSubscription(ctx context.Context, id snowflake.ID) (subscriptiondomain.ReconcileResult, error) {
	sub, err := s.repo.FindByID(ctx, s.db, id)
	if err != nil {
		return "", err
	}
	if sub == nil {
		return "", subscriptiondomain.ErrSubscriptionNotFound
	}
	if sub.Status.IsTerminal() {
		return subscriptiondomain.ReconcileUnchanged, nil
	}

	log := logger.WithSubscription(logger.WithContext(ctx, s.log), sub.ID.String(), sub.ProviderSubscriptionID)
	observedAt := s.watermark()

	var (
		remote  providerdomain.RemoteSubscription
		missing bool
	)
	err = s.callProvider(ctx, "retrieve_subscription", func(ctx context.Context) error {
		remote, err = s.gateway.RetrieveSubscription(ctx, sub.ProviderSubscriptionID)
		return err
	})
	switch {
	case errors.Is(err, providerdomain.ErrRemoteNotFound):
		missing = true
		remote = providerdomain.RemoteSubscription{ID: sub.ProviderSubscriptionID, Status: providerdomain.RemoteStatusCanceled}
	case err != nil:
		return "", err
	}

	var adoptPriceID snowflake.ID
	if !missing && remote.PriceID != "" {
		price, err := s.pricesvc.GetByProviderPriceID(ctx, remote.PriceID)
		switch {
		case err == nil:
			adoptPriceID = price.ID
		case subscriptiondomain.KindOf(err) == subscriptiondomain.KindNotFound:
			log.Warn("provider price is not in the catalog, keeping current price",
				zap.String("provider_price_id", remote.PriceID))
		default:
			return "", err
		}
	}

	unlock, err := s.lockUser(ctx, sub.UserID)
	if err != nil {
		return "", err
	}
	defer unlock()

	result := subscriptiondomain.ReconcileUnchanged
	var from, to subscriptiondomain.SubscriptionStatus
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		row, err := s.repo.FindByProviderIDForUpdate(ctx, tx, sub.ProviderSubscriptionID)
		if err != nil {
			return err
		}
		if row == nil || row.Status.IsTerminal() || row.IsStale(observedAt) {
			return nil
		}

		before := *row
		from = row.Status
		to = statusFromRemote(remote)
		row.Status = to
		switch to {
		case subscriptiondomain.StatusCancelled:
			row.CancelledAt = &observedAt
		case subscriptiondomain.StatusActiveUntilEnd:
			if remote.PeriodEnd != nil {
				end := remote.PeriodEnd.UTC()
				row.PeriodEnd = &end
			}
		default:
			row.PeriodEnd = nil
		}
		if adoptPriceID != 0 {
			row.PriceID = adoptPriceID
		}
		row.AdvanceLastEvent(observedAt)
		row.UpdatedAt = s.now()

		if !sameState(before, *row) {
			result = subscriptiondomain.ReconcileUpdated
			if missing {
				result = subscriptiondomain.ReconcileMissing
			}
		}
		return s.repo.Update(ctx, tx, row)
	})
	if err != nil {
		return "", err
	}

	if result != subscriptiondomain.ReconcileUnchanged {
		log.Info("subscription reconciled from provider snapshot",
			zap.String("from", string(from)),
			zap.String("to", string(to)),
			zap.String("remote_status", remote.Status),
		)
		s.recordTransition(ctx, from, to, sourceSweep)
	}
	return result, nil
}
