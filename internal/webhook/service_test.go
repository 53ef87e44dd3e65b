package webhook

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	eventledgerdomain "github.com/smallbiznis/subsync/internal/eventledger/domain"
	"github.com/smallbiznis/subsync/internal/provider"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/smallbiznis/subsync/internal/provider/fake"
	subscriptiondomain "github.com/smallbiznis/subsync/internal/subscription/domain"
	"github.com/smallbiznis/subsync/internal/subscription/domain/mocks"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	testSecret = "whsec_test"
	sigHeader  = "X-Fake-Signature"
)

func newTestService(t *testing.T) (*Service, *mocks.MockService) {
	t.Helper()
	ctrl := gomock.NewController(t)
	engine := mocks.NewMockService(ctrl)
	registry := provider.NewRegistry(provider.Endpoint{
		Name:            fake.ProviderName,
		Gateway:         fake.New(nil),
		WebhookSecret:   testSecret,
		SignatureHeader: sigHeader,
	})
	return NewService(Params{Log: zap.NewNop(), Registry: registry, Engine: engine}), engine
}

func deletedPayload(t *testing.T) []byte {
	t.Helper()
	payload, err := json.Marshal(map[string]any{
		"id":      "evt_1",
		"type":    "customer.subscription.deleted",
		"created": time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC).Unix(),
		"object": map[string]any{
			"id":       "sub_1",
			"customer": "cus_1",
			"status":   "canceled",
		},
	})
	require.NoError(t, err)
	return payload
}

func signed(value string) http.Header {
	h := http.Header{}
	h.Set(sigHeader, value)
	return h
}

func TestIngestAppliesVerifiedEvent(t *testing.T) {
	svc, engine := newTestService(t)

	engine.EXPECT().ApplyProviderEvent(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, event providerdomain.Event) (subscriptiondomain.ApplyResult, error) {
			assert.Equal(t, "evt_1", event.ID)
			assert.Equal(t, fake.ProviderName, event.Provider)
			assert.Equal(t, providerdomain.EventSubscriptionDeleted, event.Type)
			assert.Equal(t, "sub_1", event.ProviderSubscriptionID())
			return subscriptiondomain.ApplyResult{Outcome: eventledgerdomain.OutcomeApplied}, nil
		})

	result, err := svc.Ingest(context.Background(), "FAKE", deletedPayload(t), signed(testSecret))
	require.NoError(t, err)
	assert.Equal(t, eventledgerdomain.OutcomeApplied, result.Outcome)
}

func TestIngestRejectsBadSignatureWithoutTouchingEngine(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), "fake", deletedPayload(t), signed("forged"))
	require.ErrorIs(t, err, providerdomain.ErrInvalidSignature)
	assert.Equal(t, subscriptiondomain.KindSignatureInvalid, subscriptiondomain.KindOf(err))

	_, err = svc.Ingest(context.Background(), "fake", deletedPayload(t), http.Header{})
	assert.ErrorIs(t, err, providerdomain.ErrInvalidSignature)
}

func TestIngestMalformedPayload(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), "fake", []byte(`{not json`), signed(testSecret))
	assert.ErrorIs(t, err, providerdomain.ErrInvalidPayload)

	_, err = svc.Ingest(context.Background(), "fake", nil, signed(testSecret))
	assert.ErrorIs(t, err, providerdomain.ErrInvalidPayload)
}

func TestIngestUnknownProvider(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.Ingest(context.Background(), "paddle", deletedPayload(t), signed(testSecret))
	assert.ErrorIs(t, err, providerdomain.ErrUnknownProvider)
	assert.Equal(t, subscriptiondomain.KindNotFound, subscriptiondomain.KindOf(err))
}

func TestIngestPropagatesEngineErrors(t *testing.T) {
	svc, engine := newTestService(t)
	engine.EXPECT().ApplyProviderEvent(gomock.Any(), gomock.Any()).
		Return(subscriptiondomain.ApplyResult{}, subscriptiondomain.ErrUnmatchedEvent)

	_, err := svc.Ingest(context.Background(), "fake", deletedPayload(t), signed(testSecret))
	assert.ErrorIs(t, err, subscriptiondomain.ErrUnmatchedEvent)
}
