package stripe

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/smallbiznis/subsync/internal/provider/domain"
	stripego "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/webhook"
)

// VerifyWebhookSignature checks the Stripe-Signature header and decodes the event envelope.
func (g *Gateway) VerifyWebhookSignature(payload []byte, signatureHeader, secret string) (domain.Event, error) {
	return VerifyAndParse(payload, signatureHeader, secret)
}

// VerifyAndParse is the client-independent webhook decoder.
func VerifyAndParse(payload []byte, signatureHeader, secret string) (domain.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return domain.Event{}, domain.ErrNotConfigured
	}
	if strings.TrimSpace(signatureHeader) == "" {
		return domain.Event{}, domain.ErrInvalidSignature
	}

	evt, err := webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidSignature, err)
		}
		return domain.Event{}, fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return parseEvent(evt, payload)
}

func isSignatureError(err error) bool {
	return errors.Is(err, webhook.ErrNotSigned) ||
		errors.Is(err, webhook.ErrInvalidHeader) ||
		errors.Is(err, webhook.ErrNoValidSignature) ||
		errors.Is(err, webhook.ErrTooOld)
}

type expandableID string

// UnmarshalJSON accepts either a bare id or an expanded object carrying an id.
func (e *expandableID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*e = ""
		return nil
	}
	if data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		*e = expandableID(id)
		return nil
	}
	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = expandableID(obj.ID)
	return nil
}

type stripeInvoice struct {
	ID           string       `json:"id"`
	Customer     expandableID `json:"customer"`
	Subscription expandableID `json:"subscription"`
}

type stripeSubscription struct {
	ID                string       `json:"id"`
	Customer          expandableID `json:"customer"`
	Status            string       `json:"status"`
	CancelAtPeriodEnd bool         `json:"cancel_at_period_end"`
	CurrentPeriodEnd  int64        `json:"current_period_end"`
	Items             struct {
		Data []struct {
			ID    string `json:"id"`
			Price struct {
				ID string `json:"id"`
			} `json:"price"`
		} `json:"data"`
	} `json:"items"`
}

type stripeCustomer struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type stripePaymentMethod struct {
	ID       string       `json:"id"`
	Customer expandableID `json:"customer"`
}

func parseEvent(evt stripego.Event, raw []byte) (domain.Event, error) {
	if strings.TrimSpace(evt.ID) == "" {
		return domain.Event{}, fmt.Errorf("%w: missing event id", domain.ErrInvalidPayload)
	}

	out := domain.Event{
		ID:         evt.ID,
		Provider:   ProviderName,
		Type:       domain.EventType(evt.Type),
		OccurredAt: time.Unix(evt.Created, 0).UTC(),
		Raw:        raw,
	}

	var object json.RawMessage
	if evt.Data != nil {
		object = evt.Data.Raw
	}

	switch out.Type {
	case domain.EventInvoicePaymentSucceeded, domain.EventInvoicePaymentFailed:
		var inv stripeInvoice
		if err := decodeObject(object, &inv); err != nil {
			return domain.Event{}, err
		}
		out.Data = domain.InvoiceData{
			InvoiceID:      inv.ID,
			CustomerID:     string(inv.Customer),
			SubscriptionID: string(inv.Subscription),
		}
	case domain.EventSubscriptionCreated, domain.EventSubscriptionUpdated, domain.EventSubscriptionDeleted:
		var sub stripeSubscription
		if err := decodeObject(object, &sub); err != nil {
			return domain.Event{}, err
		}
		if sub.ID == "" {
			return domain.Event{}, fmt.Errorf("%w: subscription id missing", domain.ErrInvalidPayload)
		}
		remote := domain.RemoteSubscription{
			ID:                sub.ID,
			CustomerID:        string(sub.Customer),
			Status:            sub.Status,
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
			PeriodEnd:         unixTime(sub.CurrentPeriodEnd),
		}
		if len(sub.Items.Data) > 0 {
			remote.ItemID = sub.Items.Data[0].ID
			remote.PriceID = sub.Items.Data[0].Price.ID
		}
		out.Data = domain.SubscriptionData{Subscription: remote}
	case domain.EventCustomerCreated:
		var cus stripeCustomer
		if err := decodeObject(object, &cus); err != nil {
			return domain.Event{}, err
		}
		out.Data = domain.CustomerData{CustomerID: cus.ID, Email: cus.Email}
	case domain.EventPaymentMethodAttached:
		var pm stripePaymentMethod
		if err := decodeObject(object, &pm); err != nil {
			return domain.Event{}, err
		}
		out.Data = domain.PaymentMethodData{PaymentMethodID: pm.ID, CustomerID: string(pm.Customer)}
	default:
		out.Data = domain.UnhandledData{}
	}

	return out, nil
}

func decodeObject(raw json.RawMessage, target any) error {
	if len(raw) == 0 {
		return fmt.Errorf("%w: event object missing", domain.ErrInvalidPayload)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidPayload, err)
	}
	return nil
}
