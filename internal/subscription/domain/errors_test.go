package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"

	customerdomain "github.com/smallbiznis/subsync/internal/customer/domain"
	"github.com/smallbiznis/subsync/internal/lock"
	pricedomain "github.com/smallbiznis/subsync/internal/price/domain"
	providerdomain "github.com/smallbiznis/subsync/internal/provider/domain"
	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{customerdomain.ErrNotFound, KindNotFound},
		{fmt.Errorf("resolve: %w", pricedomain.ErrNotFound), KindNotFound},
		{ErrDuplicateSubscription, KindConflict},
		{lock.ErrLockTimeout, KindConflict},
		{fmt.Errorf("create: %w", providerdomain.ErrProviderUnavailable), KindProviderUnavailable},
		{context.DeadlineExceeded, KindProviderUnavailable},
		{providerdomain.ErrInvalidSignature, KindSignatureInvalid},
		{providerdomain.ErrProviderRejected, KindInvalid},
		{errors.New("disk on fire"), KindInternal},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
	assert.True(t, KindProviderUnavailable.Retryable())
	assert.False(t, KindConflict.Retryable())
}
