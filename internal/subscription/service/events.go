package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	customerdomain "github.com/smallbiznis/subsync/internal/customer/domain"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	obscontext "github.com/smallbiznis/subsync/internal/observability/context"
	"github.com/smallbiznis/subsync/internal/observability/logger"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const sourceProvider = "provider"

// errDuplicateEvent rolls back side effects of a redelivered event.
var errDuplicateEvent = errors.New("duplicate_event")

// ApplyProviderEvent applies a verified provider event exactly once. The
// ledger row and any subscription change commit in one transaction; a
// redelivered event id is a successful no-op.
func (s *Service) ApplyProviderEvent(ctx context.Context, event providerdomain.Event) (subscriptiondomain.ApplyResult, error) {
	event.ID = strings.TrimSpace(event.ID)
	event.Provider = strings.TrimSpace(event.Provider)
	if event.ID == "" || event.Provider == "" || event.Type == "" {
		return subscriptiondomain.ApplyResult{}, subscriptiondomain.ErrInvalidEvent
	}
	if event.OccurredAt.IsZero() {
		event.OccurredAt = s.now()
	}

	ctx = obscontext.WithEventID(ctx, event.ID)
	log := logger.WithProviderEvent(logger.WithContext(ctx, s.log), event.Provider, string(event.Type))

	seen, err := s.ledger.Find(ctx, s.db, event.Provider, event.ID)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	if seen != nil {
		log.Debug("provider event already processed")
		return s.duplicate(ctx, event), nil
	}

	var result subscriptiondomain.ApplyResult
	switch event.Type {
	case providerdomain.EventInvoicePaymentSucceeded,
		providerdomain.EventInvoicePaymentFailed,
		providerdomain.EventSubscriptionCreated,
		providerdomain.EventSubscriptionUpdated,
		providerdomain.EventSubscriptionDeleted:
		result, err = s.applySubscriptionEvent(ctx, log, event)
	case providerdomain.EventCustomerCreated:
		result, err = s.applyCustomerCreated(ctx, log, event)
	case providerdomain.EventPaymentMethodAttached:
		result, err = s.applyPaymentMethodAttached(ctx, log, event)
	default:
		log.Info("unhandled provider event type")
		result, err = s.recordOnly(ctx, event, eventledgerdomain.OutcomeUnhandled)
	}
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}

	if !result.Duplicate {
		s.metrics.RecordProviderEvent(ctx, event.Provider, string(event.Type), string(result.Outcome))
	}
	return result, nil
}

func (s *Service) applySubscriptionEvent(ctx context.Context, log *zap.Logger, event providerdomain.Event) (subscriptiondomain.ApplyResult, error) {
	providerSubscriptionID := event.ProviderSubscriptionID()
	if providerSubscriptionID == "" {
		log.Info("provider event has no subscription reference")
		return s.recordOnly(ctx, event, eventledgerdomain.OutcomeIgnored)
	}
	log = log.With(zap.String("provider_subscription_id", providerSubscriptionID))

	userID, found, err := s.ownerOf(ctx, event, providerSubscriptionID)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	if !found {
		log.Warn("provider event for unknown customer and subscription",
			zap.String("provider_customer_id", event.ProviderCustomerID()))
		return s.recordOnly(ctx, event, eventledgerdomain.OutcomeIgnored)
	}

	// Resolved before the transaction so catalog reads do not hold it open.
	adoptPriceID, err := s.adoptablePrice(ctx, log, event)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}

	unlock, err := s.lockUser(ctx, userID)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	defer unlock()

	var (
		result subscriptiondomain.ApplyResult
		from   subscriptiondomain.SubscriptionStatus
	)
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		sub, err := s.repo.FindByProviderIDForUpdate(ctx, tx, providerSubscriptionID)
		if err != nil {
			return err
		}
		if sub == nil {
			// Either the creating request failed after the remote call or it
			// has not committed yet. Leave the event unrecorded so the
			// provider redelivers it.
			return subscriptiondomain.ErrUnmatchedEvent
		}
		from = sub.Status

		outcome, changed := s.decide(log, event, sub, adoptPriceID)
		inserted, err := s.record(ctx, tx, event, outcome)
		if err != nil {
			return err
		}
		if !inserted {
			result = s.duplicate(ctx, event)
			return nil
		}
		if changed {
			sub.UpdatedAt = s.now()
			if err := s.repo.Update(ctx, tx, sub); err != nil {
				return err
			}
		}
		result = subscriptiondomain.ApplyResult{
			Outcome:        outcome,
			SubscriptionID: sub.ID.String(),
			Status:         sub.Status,
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, subscriptiondomain.ErrUnmatchedEvent) {
			log.Warn("no local subscription for provider event yet, requesting redelivery")
		}
		return subscriptiondomain.ApplyResult{}, err
	}

	if result.Outcome == eventledgerdomain.OutcomeApplied {
		s.recordTransition(ctx, from, result.Status, sourceProvider)
		log.Info("provider event applied",
			zap.String("from", string(from)),
			zap.String("to", string(result.Status)),
		)
	}
	return result, nil
}

// ownerOf finds the user whose lock guards providerSubscriptionID, falling
// back to the event's customer when no row exists yet.
func (s *Service) ownerOf(ctx context.Context, event providerdomain.Event, providerSubscriptionID string) (snowflake.ID, bool, error) {
	sub, err := s.repo.FindByProviderID(ctx, s.db, providerSubscriptionID)
	if err != nil {
		return 0, false, err
	}
	if sub != nil {
		return sub.UserID, true, nil
	}

	customerID := event.ProviderCustomerID()
	if customerID == "" {
		return 0, false, nil
	}
	user, err := s.users.FindByProviderCustomerID(ctx, s.db, customerID)
	if err != nil {
		return 0, false, err
	}
	if user == nil {
		return 0, false, nil
	}
	return user.ID, true, nil
}

// adoptablePrice returns the local price an update event moves the
// subscription to, or 0 when there is none.
func (s *Service) adoptablePrice(ctx context.Context, log *zap.Logger, event providerdomain.Event) (snowflake.ID, error) {
	if event.Type != providerdomain.EventSubscriptionUpdated {
		return 0, nil
	}
	data, ok := event.Data.(providerdomain.SubscriptionData)
	if !ok || data.Subscription.CancelAtPeriodEnd || data.Subscription.PriceID == "" {
		return 0, nil
	}
	price, err := s.pricesvc.GetByProviderPriceID(ctx, data.Subscription.PriceID)
	if err != nil {
		if subscriptiondomain.KindOf(err) == subscriptiondomain.KindNotFound {
			log.Warn("provider price is not in the catalog, keeping current price",
				zap.String("provider_price_id", data.Subscription.PriceID))
			return 0, nil
		}
		return 0, err
	}
	return price.ID, nil
}

// decide mutates sub according to event and reports the ledger outcome and
// whether the row needs to be written.
func (s *Service) decide(
	log *zap.Logger,
	event providerdomain.Event,
	sub *subscriptiondomain.Subscription,
	adoptPriceID snowflake.ID,
) (eventledgerdomain.Outcome, bool) {
	if sub.Status.IsTerminal() {
		log.Info("provider event for cancelled subscription ignored")
		return eventledgerdomain.OutcomeNoop, false
	}
	occurredAt := event.OccurredAt.UTC()
	t, hasTrigger := triggerForEvent(event)

	// a remote deletion is final, nothing local can supersede it
	if t != triggerDeleted && sub.IsStale(occurredAt) {
		log.Info("stale provider event ignored",
			zap.Time("occurred_at", occurredAt),
			zap.Timep("last_event_at", sub.LastEventAt),
		)
		return eventledgerdomain.OutcomeIgnoredStale, false
	}
	if !hasTrigger {
		sub.AdvanceLastEvent(occurredAt)
		return eventledgerdomain.OutcomeNoop, true
	}
	to, ok := nextStatus(t, sub.Status)
	if !ok {
		log.Info("provider event does not apply to current status",
			zap.String("status", string(sub.Status)),
			zap.String("trigger", string(t)),
		)
		return eventledgerdomain.OutcomeIgnored, false
	}

	before := *sub
	sub.Status = to
	switch t {
	case triggerDeleted:
		sub.CancelledAt = &occurredAt
	case triggerCancelScheduled:
		if data, ok := event.Data.(providerdomain.SubscriptionData); ok && data.Subscription.PeriodEnd != nil {
			end := data.Subscription.PeriodEnd.UTC()
			sub.PeriodEnd = &end
		}
	case triggerCancelCleared:
		sub.PeriodEnd = nil
		if adoptPriceID != 0 {
			sub.PriceID = adoptPriceID
		}
	}
	if to != subscriptiondomain.StatusActiveUntilEnd && to != subscriptiondomain.StatusCancelled {
		sub.PeriodEnd = nil
	}
	sub.AdvanceLastEvent(occurredAt)

	if sameState(before, *sub) {
		return eventledgerdomain.OutcomeNoop, true
	}
	return eventledgerdomain.OutcomeApplied, true
}

func sameState(a, b subscriptiondomain.Subscription) bool {
	return a.Status == b.Status &&
		a.PriceID == b.PriceID &&
		timePtrEqual(a.PeriodEnd, b.PeriodEnd) &&
		timePtrEqual(a.CancelledAt, b.CancelledAt)
}

func timePtrEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(*b)
}

func (s *Service) applyCustomerCreated(ctx context.Context, log *zap.Logger, event providerdomain.Event) (subscriptiondomain.ApplyResult, error) {
	data, ok := event.Data.(providerdomain.CustomerData)
	if !ok || data.CustomerID == "" {
		return subscriptiondomain.ApplyResult{}, subscriptiondomain.ErrInvalidEvent
	}
	log = log.With(zap.String("provider_customer_id", data.CustomerID))

	email := strings.TrimSpace(data.Email)
	if email == "" {
		log.Info("customer event without email ignored")
		return s.recordOnly(ctx, event, eventledgerdomain.OutcomeIgnored)
	}
	user, err := s.users.FindByEmail(ctx, s.db, email)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	if user == nil {
		log.Info("no local user for provider customer")
		return s.recordOnly(ctx, event, eventledgerdomain.OutcomeIgnored)
	}

	unlock, err := s.lockUser(ctx, user.ID)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	defer unlock()

	var result subscriptiondomain.ApplyResult
	err = s.inTx(ctx, func(tx *gorm.DB) error {
		current, err := s.users.FindByID(ctx, tx, user.ID)
		if err != nil {
			return err
		}
		if current == nil {
			return customerdomain.ErrNotFound
		}

		outcome := eventledgerdomain.OutcomeNoop
		switch existing := current.CustomerID(); {
		case existing == data.CustomerID:
		case existing != "":
			log.Warn("user already linked to another provider customer, keeping existing link",
				zap.String("user_id", current.ID.String()),
				zap.String("existing_customer_id", existing),
			)
		default:
			linked, err := s.users.LinkProviderCustomer(ctx, tx, current.ID, data.CustomerID)
			if err != nil {
				return err
			}
			if linked {
				outcome = eventledgerdomain.OutcomeApplied
			}
		}

		inserted, err := s.record(ctx, tx, event, outcome)
		if err != nil {
			return err
		}
		if !inserted {
			// roll back the link; the first delivery already handled it
			result = s.duplicate(ctx, event)
			return errDuplicateEvent
		}
		result = subscriptiondomain.ApplyResult{Outcome: outcome}
		return nil
	})
	if err != nil && !errors.Is(err, errDuplicateEvent) {
		return subscriptiondomain.ApplyResult{}, err
	}
	return result, nil
}

func (s *Service) applyPaymentMethodAttached(ctx context.Context, log *zap.Logger, event providerdomain.Event) (subscriptiondomain.ApplyResult, error) {
	data, ok := event.Data.(providerdomain.PaymentMethodData)
	if !ok || data.PaymentMethodID == "" {
		return subscriptiondomain.ApplyResult{}, subscriptiondomain.ErrInvalidEvent
	}
	if data.CustomerID == "" {
		log.Info("payment method event without customer ignored")
		return s.recordOnly(ctx, event, eventledgerdomain.OutcomeIgnored)
	}

	var result subscriptiondomain.ApplyResult
	err := s.inTx(ctx, func(tx *gorm.DB) error {
		inserted, err := s.users.InsertPaymentMethod(ctx, tx, &customerdomain.PaymentMethod{
			ID:                      s.genID.Generate(),
			ProviderCustomerID:      data.CustomerID,
			ProviderPaymentMethodID: data.PaymentMethodID,
			CreatedAt:               s.now(),
		})
		if err != nil {
			return err
		}
		outcome := eventledgerdomain.OutcomeNoop
		if inserted {
			outcome = eventledgerdomain.OutcomeApplied
		}

		recorded, err := s.record(ctx, tx, event, outcome)
		if err != nil {
			return err
		}
		if !recorded {
			result = s.duplicate(ctx, event)
			return errDuplicateEvent
		}
		result = subscriptiondomain.ApplyResult{Outcome: outcome}
		return nil
	})
	if err != nil && !errors.Is(err, errDuplicateEvent) {
		return subscriptiondomain.ApplyResult{}, err
	}
	return result, nil
}

// recordOnly writes the ledger row for an event that changes nothing else.
func (s *Service) recordOnly(ctx context.Context, event providerdomain.Event, outcome eventledgerdomain.Outcome) (subscriptiondomain.ApplyResult, error) {
	inserted, err := s.record(ctx, s.db, event, outcome)
	if err != nil {
		return subscriptiondomain.ApplyResult{}, err
	}
	if !inserted {
		return s.duplicate(ctx, event), nil
	}
	return subscriptiondomain.ApplyResult{Outcome: outcome}, nil
}

func (s *Service) record(ctx context.Context, tx *gorm.DB, event providerdomain.Event, outcome eventledgerdomain.Outcome) (bool, error) {
	entry := &eventledgerdomain.ProcessedEvent{
		ID:          s.genID.Generate(),
		Provider:    event.Provider,
		EventID:     event.ID,
		EventType:   string(event.Type),
		Outcome:     outcome,
		OccurredAt:  event.OccurredAt.UTC(),
		ProcessedAt: s.now(),
	}
	if id := event.ProviderSubscriptionID(); id != "" {
		entry.ProviderSubscriptionID = &id
	}
	if len(event.Raw) > 0 {
		entry.Payload = datatypes.JSON(event.Raw)
	}
	return s.ledger.Record(ctx, tx, entry)
}

func (s *Service) duplicate(ctx context.Context, event providerdomain.Event) subscriptiondomain.ApplyResult {
	s.metrics.RecordProviderEvent(ctx, event.Provider, string(event.Type), "duplicate")
	return subscriptiondomain.ApplyResult{Outcome: eventledgerdomain.OutcomeNoop, Duplicate: true}
}
