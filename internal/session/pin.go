package session

import (
	"context"
	"log/slog"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/vtu_client/internal/notification"
)

// Lock puts an authenticated session that has a transaction PIN behind the
// PIN gate, e.g. when the app returns from the background. It reports
// whether the session is now locked.
func (m *Manager) Lock() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.authenticatedLocked() || !m.user.HasTransactionPin() {
		return false
	}
	m.pinLocked = true
	return true
}

// ConfirmPin re-confirms the transaction PIN and lifts the gate. A PIN
// already verified by the backend in this process is checked against its
// bcrypt digest without a network call; otherwise the backend decides.
func (m *Manager) ConfirmPin(ctx context.Context, pin string) bool {
	seq := m.begin(false)
	defer m.end()

	m.mu.Lock()
	token := m.token
	authed := m.authenticatedLocked()
	digest := m.pinDigest
	m.mu.Unlock()

	if !authed {
		m.fail(ctx, seq, "confirm_pin", msgNotAuthenticated, nil)
		return false
	}

	if len(digest) > 0 && bcrypt.CompareHashAndPassword(digest, []byte(pin)) == nil {
		m.unlock(token, nil)
		m.logger.Info("session.confirm_pin succeeded", slog.Bool("offline", true))
		return true
	}

	env, err := m.gw.VerifyTransactionPin(ctx, token, pin)
	if err != nil {
		m.fail(ctx, seq, "confirm_pin", failureMessage(err, msgConfirmPinFailed), err)
		return false
	}
	if !isSuccessStatus(env.Status) {
		m.fail(ctx, seq, "confirm_pin", messageOr(env.Message, msgConfirmPinFailed), nil)
		return false
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(pin), m.pinCost)
	if err != nil {
		m.logger.Warn("session.confirm_pin digest failed", slog.Any("error", err))
		hash = nil
	}
	m.unlock(token, hash)
	m.logger.Info("session.confirm_pin succeeded", slog.Bool("offline", false))
	m.notify(ctx, notification.KindPinConfirmed, "", messageOr(env.Message, "PIN confirmed"))
	return true
}

// unlock lifts the gate if the session still belongs to token. A non-nil
// digest replaces the cached one.
func (m *Manager) unlock(token string, digest []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.token != token {
		return
	}
	m.pinLocked = false
	if digest != nil {
		m.pinDigest = digest
	}
}
