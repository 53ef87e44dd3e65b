package lock

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrLockTimeout = errors.New("lock_timeout")
	ErrEmptyKey    = errors.New("lock_key_empty")
)

// Locker serializes work on a key. Unlock must be called exactly once.
type Locker interface {
	Lock(ctx context.Context, key string) (unlock func(), err error)
}

// UserKey is the lock key guarding a user's subscription state.
func UserKey(userID fmt.Stringer) string {
	return "subsync:user:" + userID.String()
}
