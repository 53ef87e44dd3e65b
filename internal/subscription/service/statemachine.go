package service

import (
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
)

type trigger string

const (
	triggerUpdate           trigger = "update"
	triggerCancel           trigger = "cancel"
	triggerRenew            trigger = "renew"
	triggerPaymentSucceeded trigger = "payment_succeeded"
	triggerPaymentFailed    trigger = "payment_failed"
	triggerDeleted          trigger = "deleted"
	triggerCancelScheduled  trigger = "cancel_scheduled"
	triggerCancelCleared    trigger = "cancel_cleared"
	triggerRemoteActivated  trigger = "remote_activated"
)

const (
	active         = subscriptiondomain.StatusActive
	activeUntilEnd = subscriptiondomain.StatusActiveUntilEnd
	incomplete     = subscriptiondomain.StatusIncomplete
	cancelled      = subscriptiondomain.StatusCancelled
)

// transitions lists, per trigger, the statuses it may fire from and where it leads.
// A missing entry means the trigger does not apply to that status.
var transitions = map[trigger]map[subscriptiondomain.SubscriptionStatus]subscriptiondomain.SubscriptionStatus{
	triggerUpdate: {
		active:         active,
		activeUntilEnd: active,
	},
	triggerCancel: {
		active: activeUntilEnd,
	},
	triggerRenew: {
		activeUntilEnd: active,
	},
	triggerPaymentSucceeded: {
		active:         active,
		activeUntilEnd: active,
		incomplete:     active,
	},
	triggerPaymentFailed: {
		active:     incomplete,
		incomplete: incomplete,
	},
	triggerDeleted: {
		active:         cancelled,
		activeUntilEnd: cancelled,
		incomplete:     cancelled,
	},
	triggerCancelScheduled: {
		active:         activeUntilEnd,
		activeUntilEnd: activeUntilEnd,
	},
	triggerCancelCleared: {
		active:         active,
		activeUntilEnd: active,
	},
	triggerRemoteActivated: {
		incomplete: active,
	},
}

func nextStatus(t trigger, from subscriptiondomain.SubscriptionStatus) (subscriptiondomain.SubscriptionStatus, bool) {
	to, ok := transitions[t][from]
	return to, ok
}

// triggerForEvent maps a subscription-scoped provider event to its trigger.
// ok is false for events that carry no transition (e.g. a created event for
// a subscription that is not active remotely).
func triggerForEvent(event providerdomain.Event) (trigger, bool) {
	switch event.Type {
	case providerdomain.EventInvoicePaymentSucceeded:
		return triggerPaymentSucceeded, true
	case providerdomain.EventInvoicePaymentFailed:
		return triggerPaymentFailed, true
	case providerdomain.EventSubscriptionDeleted:
		return triggerDeleted, true
	case providerdomain.EventSubscriptionUpdated:
		data, ok := event.Data.(providerdomain.SubscriptionData)
		if !ok {
			return "", false
		}
		if data.Subscription.CancelAtPeriodEnd {
			return triggerCancelScheduled, true
		}
		return triggerCancelCleared, true
	case providerdomain.EventSubscriptionCreated:
		data, ok := event.Data.(providerdomain.SubscriptionData)
		if !ok || !data.Subscription.IsActive() {
			return "", false
		}
		return triggerRemoteActivated, true
	default:
		return "", false
	}
}

// statusFromRemote derives the local status a provider snapshot implies.
func statusFromRemote(remote providerdomain.RemoteSubscription) subscriptiondomain.SubscriptionStatus {
	switch {
	case remote.IsCanceled():
		return cancelled
	case remote.IsPaymentFailing():
		return incomplete
	case remote.CancelAtPeriodEnd:
		return activeUntilEnd
	default:
		return active
	}
}
