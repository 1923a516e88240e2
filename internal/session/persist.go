package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/congo-pay/vtu_client/internal/gateway"
	"github.com/congo-pay/vtu_client/internal/storage"
)

// schemaVersion tags the persisted user layout. A stored session with a
// different tag hydrates as logged out.
const schemaVersion = "1"

type persisted struct {
	token   string
	user    gateway.UserRecord
	pending string
}

// load reads the persisted session. Any read failure or unusable value is
// treated as absent.
func (m *Manager) load(ctx context.Context) persisted {
	var p persisted

	p.pending = m.read(ctx, storage.KeyPendingEmail)

	if schema := m.read(ctx, storage.KeySchema); schema != "" && schema != schemaVersion {
		m.logger.Warn("session.hydrate schema mismatch", slog.String("stored", schema), slog.String("want", schemaVersion))
		return p
	}

	token := m.read(ctx, storage.KeyToken)
	if token != "" && tokenExpired(token, m.now()) {
		m.logger.Info("session.hydrate stored token expired")
		token = ""
	}

	var user gateway.UserRecord
	if raw := m.read(ctx, storage.KeyUser); raw != "" {
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			m.logger.Warn("session.hydrate malformed user record", slog.Any("error", err))
			user = nil
		}
	}

	if token != "" && user != nil {
		p.token, p.user = token, user
	}
	return p
}

func (m *Manager) read(ctx context.Context, key string) string {
	v, ok, err := m.store.Get(ctx, key)
	if err != nil {
		m.logger.Warn("session storage read failed", slog.String("key", key), slog.Any("error", err))
		return ""
	}
	if !ok {
		return ""
	}
	return v
}

// Writes below swallow storage errors: the in-memory session stays valid and
// only persistence across a restart is lost.

func (m *Manager) persistAuth(ctx context.Context, token string, user gateway.UserRecord) {
	m.write(ctx, storage.KeyToken, token)
	m.persistUser(ctx, user)
	m.remove(ctx, storage.KeyPendingEmail)
}

func (m *Manager) persistUser(ctx context.Context, user gateway.UserRecord) {
	raw, err := json.Marshal(user)
	if err != nil {
		m.logger.Warn("session encode user failed", slog.Any("error", err))
		return
	}
	m.write(ctx, storage.KeyUser, string(raw))
	m.write(ctx, storage.KeySchema, schemaVersion)
}

func (m *Manager) persistPending(ctx context.Context, email string) {
	m.write(ctx, storage.KeyPendingEmail, email)
}

func (m *Manager) clearPersisted(ctx context.Context) {
	for _, key := range storage.SessionKeys {
		m.remove(ctx, key)
	}
}

func (m *Manager) write(ctx context.Context, key, value string) {
	if err := m.store.Set(ctx, key, value); err != nil {
		m.logger.Warn("session storage write failed", slog.String("key", key), slog.Any("error", err))
	}
}

func (m *Manager) remove(ctx context.Context, key string) {
	if err := m.store.Delete(ctx, key); err != nil {
		m.logger.Warn("session storage delete failed", slog.String("key", key), slog.Any("error", err))
	}
}

// tokenExpired reports whether token is a JWT whose exp claim has passed.
// Opaque tokens never expire client side.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !exp.After(now)
}
