package domain

import "time"

type EventType string

const (
	EventInvoicePaymentSucceeded EventType = "invoice.payment_succeeded"
	EventInvoicePaymentFailed    EventType = "invoice.payment_failed"
	EventSubscriptionCreated     EventType = "customer.subscription.created"
	EventSubscriptionUpdated     EventType = "customer.subscription.updated"
	EventSubscriptionDeleted     EventType = "customer.subscription.deleted"
	EventCustomerCreated         EventType = "customer.created"
	EventPaymentMethodAttached   EventType = "payment_method.attached"
)

// Event is a verified provider notification. Data holds one of the *Data
// payload types below, selected by Type.
type Event struct {
	ID         string
	Provider   string
	Type       EventType
	OccurredAt time.Time
	Data       EventData
	Raw        []byte
}

type EventData interface {
	eventData()
}

type InvoiceData struct {
	InvoiceID      string
	CustomerID     string
	SubscriptionID string
}

type SubscriptionData struct {
	Subscription RemoteSubscription
}

type CustomerData struct {
	CustomerID string
	Email      string
}

type PaymentMethodData struct {
	PaymentMethodID string
	CustomerID      string
}

// UnhandledData marks event types the engine does not act on.
type UnhandledData struct{}

func (InvoiceData) eventData()       {}
func (SubscriptionData) eventData()  {}
func (CustomerData) eventData()      {}
func (PaymentMethodData) eventData() {}
func (UnhandledData) eventData()     {}

// ProviderSubscriptionID returns the subscription the event refers to, if any.
func (e Event) ProviderSubscriptionID() string {
	switch data := e.Data.(type) {
	case InvoiceData:
		return data.SubscriptionID
	case SubscriptionData:
		return data.Subscription.ID
	default:
		return ""
	}
}

// ProviderCustomerID returns the customer the event refers to, if any.
func (e Event) ProviderCustomerID() string {
	switch data := e.Data.(type) {
	case InvoiceData:
		return data.CustomerID
	case SubscriptionData:
		return data.Subscription.CustomerID
	case CustomerData:
		return data.CustomerID
	case PaymentMethodData:
		return data.CustomerID
	default:
		return ""
	}
}
