// Package storage holds the durable key/value backends that persist the
// client session across restarts.
package storage

import (
	"context"
	"errors"
)

// Keys persisted for a session. Each key is independent and may be absent.
const (
	KeyToken        = "token"
	KeyUser         = "user"
	KeyPendingEmail = "pendingVerifyEmail"
	KeySchema       = "sessionSchema"
)

// SessionKeys lists every key a session owns, in the order they are cleared.
var SessionKeys = []string{KeyToken, KeyUser, KeyPendingEmail, KeySchema}

// ErrUnavailable reports a backend that cannot be reached or written to.
var ErrUnavailable = errors.New("session storage unavailable")

// Store persists string values by key. Get returns ok=false for a missing key
// without an error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, key string) error
}

// Pinger is implemented by stores backed by a network service.
type Pinger interface {
	Ping(ctx context.Context) error
}
