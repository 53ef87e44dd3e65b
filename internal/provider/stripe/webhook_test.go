package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"testing"
	"time"

	"github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "whsec_test"

func buildStripeSignatureHeader(secret string, payload []byte, ts time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(fmt.Sprintf("%d.%s", ts.Unix(), payload)))
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func eventPayload(id, eventType string, created int64, object string) []byte {
	return []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"created":%d,"api_version":"2020-08-27","data":{"object":%s}}`,
		id, eventType, created, object))
}

func TestVerifyAndParseSubscriptionUpdated(t *testing.T) {
	payload := eventPayload("evt_1", "customer.subscription.updated", 1700000000, `{
		"id":"sub_1","object":"subscription","customer":"cus_1","status":"active",
		"cancel_at_period_end":true,"current_period_end":1702592000,
		"items":{"object":"list","data":[{"id":"si_1","price":{"id":"price_yearly"}}]}
	}`)

	evt, err := VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	require.NoError(t, err)

	assert.Equal(t, "evt_1", evt.ID)
	assert.Equal(t, ProviderName, evt.Provider)
	assert.Equal(t, domain.EventSubscriptionUpdated, evt.Type)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), evt.OccurredAt)

	data, ok := evt.Data.(domain.SubscriptionData)
	require.True(t, ok)
	assert.Equal(t, "sub_1", data.Subscription.ID)
	assert.Equal(t, "cus_1", data.Subscription.CustomerID)
	assert.Equal(t, "price_yearly", data.Subscription.PriceID)
	assert.Equal(t, "si_1", data.Subscription.ItemID)
	assert.True(t, data.Subscription.CancelAtPeriodEnd)
	require.NotNil(t, data.Subscription.PeriodEnd)
	assert.Equal(t, int64(1702592000), data.Subscription.PeriodEnd.Unix())
}

func TestVerifyAndParseInvoiceWithExpandedCustomer(t *testing.T) {
	payload := eventPayload("evt_2", "invoice.payment_failed", 1700000000,
		`{"id":"in_1","object":"invoice","customer":{"id":"cus_9","object":"customer"},"subscription":"sub_9"}`)

	evt, err := VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	require.NoError(t, err)

	data, ok := evt.Data.(domain.InvoiceData)
	require.True(t, ok)
	assert.Equal(t, "cus_9", data.CustomerID)
	assert.Equal(t, "sub_9", data.SubscriptionID)
}

func TestVerifyAndParseCustomerAndPaymentMethod(t *testing.T) {
	payload := eventPayload("evt_3", "customer.created", 1700000000, `{"id":"cus_3","object":"customer","email":"ana@example.com"}`)
	evt, err := VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, domain.CustomerData{CustomerID: "cus_3", Email: "ana@example.com"}, evt.Data)

	payload = eventPayload("evt_4", "payment_method.attached", 1700000000, `{"id":"pm_4","object":"payment_method","customer":"cus_3"}`)
	evt, err = VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentMethodData{PaymentMethodID: "pm_4", CustomerID: "cus_3"}, evt.Data)
}

func TestVerifyAndParseUnhandledType(t *testing.T) {
	payload := eventPayload("evt_5", "charge.refunded", 1700000000, `{"id":"ch_1","object":"charge"}`)
	evt, err := VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	require.NoError(t, err)
	assert.Equal(t, domain.UnhandledData{}, evt.Data)
}

func TestVerifyAndParseRejectsBadSignature(t *testing.T) {
	payload := eventPayload("evt_6", "customer.created", 1700000000, `{"id":"cus_6"}`)

	_, err := VerifyAndParse(payload, buildStripeSignatureHeader("whsec_other", payload, time.Now()), testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = VerifyAndParse(payload, "", testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)

	_, err = VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now().Add(-time.Hour)), testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidSignature)
}

func TestVerifyAndParseRejectsMalformedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_7","type":"customer.subscription.updated","created":1700000000,"data":{"object":{"object":"subscription"}}}`)
	_, err := VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)

	payload = []byte(`not json`)
	_, err = VerifyAndParse(payload, buildStripeSignatureHeader(testSecret, payload, time.Now()), testSecret)
	assert.ErrorIs(t, err, domain.ErrInvalidPayload)
}

func TestVerifyAndParseRequiresSecret(t *testing.T) {
	_, err := VerifyAndParse([]byte(`{}`), "t=1,v1=abc", "")
	assert.ErrorIs(t, err, domain.ErrNotConfigured)
}
