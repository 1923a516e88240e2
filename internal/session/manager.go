// Package session implements the client-side authentication lifecycle:
// registration, OTP verification, transaction PIN provisioning, login, the
// PIN re-confirmation gate and logout, backed by a persisted store.
//
// Operations may run concurrently. They are not serialized: each one calls
// the gateway without holding the lock and then applies its outcome under
// the lock, so the response applied last wins. WithStaleResponseDiscard
// changes that to drop responses overtaken by a newer operation.
package session

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/congo-pay/vtu_client/internal/gateway"
	"github.com/congo-pay/vtu_client/internal/notification"
	"github.com/congo-pay/vtu_client/internal/storage"
)

const (
	msgLoginFailed        = "Login failed"
	msgRegisterFailed     = "Registration failed"
	msgVerifyFailed       = "OTP verification failed"
	msgResendFailed       = "Failed to resend verification email"
	msgSetPinFailed       = "Failed to set transaction PIN"
	msgConfirmPinFailed   = "Invalid transaction PIN"
	msgNotAuthenticated   = "You are not logged in"
	msgSuperseded         = "Request superseded by a newer one"
	msgRegistered         = "Registration successful"
	msgVerificationNeeded = "Registration successful. Check your email for the verification code"
)

// Manager owns the session state. Construct with NewManager and call
// Hydrate once before serving consumers.
type Manager struct {
	store        storage.Store
	gw           Gateway
	logger       *slog.Logger
	notifier     notification.Notifier
	now          func() time.Time
	lockOnResume bool
	discardStale bool
	pinCost      int

	mu           sync.Mutex
	token        string
	user         gateway.UserRecord
	pendingEmail string
	errMsg       string
	inflight     int
	pinLocked    bool
	pinDigest    []byte
	issued       uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// WithNotifier sets the collaborator that renders user-facing notices.
func WithNotifier(n notification.Notifier) Option {
	return func(m *Manager) { m.notifier = n }
}

// WithClock overrides time.Now, used for token expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// WithLockOnResume makes Hydrate start a session with a PIN in the locked
// phase, so the PIN has to be confirmed after every restart.
func WithLockOnResume(enabled bool) Option {
	return func(m *Manager) { m.lockOnResume = enabled }
}

// WithStaleResponseDiscard drops the outcome of an operation when another
// mutating operation was issued after it started.
func WithStaleResponseDiscard() Option {
	return func(m *Manager) { m.discardStale = true }
}

// WithPinCost sets the bcrypt cost used for the in-memory PIN digest.
func WithPinCost(cost int) Option {
	return func(m *Manager) { m.pinCost = cost }
}

// NewManager builds a session manager over the given store and gateway.
func NewManager(store storage.Store, gw Gateway, opts ...Option) *Manager {
	m := &Manager{
		store:    store,
		gw:       gw,
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		notifier: notification.Nop{},
		now:      time.Now,
		pinCost:  bcrypt.DefaultCost,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// State returns a snapshot of the session.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.snapshotLocked()
}

func (m *Manager) snapshotLocked() State {
	authed := m.authenticatedLocked()
	var user gateway.UserRecord
	if m.user != nil {
		user = make(gateway.UserRecord, len(m.user))
		for k, v := range m.user {
			user[k] = v
		}
	}
	return State{
		User:               user,
		Token:              m.token,
		IsAuthenticated:    authed,
		PendingVerifyEmail: m.pendingEmail,
		IsLoading:          m.inflight > 0,
		Error:              m.errMsg,
		PinLocked:          authed && m.pinLocked,
		Phase:              derivePhase(authed, m.user, m.pendingEmail, m.pinLocked),
	}
}

func (m *Manager) authenticatedLocked() bool {
	return m.token != "" && m.user != nil
}

// Hydrate restores the session from storage. It never fails: unreadable or
// inconsistent data leaves the session anonymous. It does not write storage.
func (m *Manager) Hydrate(ctx context.Context) {
	p := m.load(ctx)

	m.mu.Lock()
	defer m.mu.Unlock()
	m.token, m.user = p.token, p.user
	m.pendingEmail = ""
	if !m.authenticatedLocked() {
		m.pendingEmail = p.pending
	}
	m.errMsg = ""
	m.pinDigest = nil
	m.pinLocked = m.lockOnResume && m.authenticatedLocked() && m.user.HasTransactionPin()

	m.logger.Info("session.hydrate", slog.String("phase", string(derivePhase(m.authenticatedLocked(), m.user, m.pendingEmail, m.pinLocked))))
}

// Register creates an account. The backend either logs the user in right
// away or asks for email verification, which leaves the session pending.
func (m *Manager) Register(ctx context.Context, p gateway.RegisterPayload) Result {
	seq := m.begin(true)
	defer m.end()

	env, err := m.gw.Register(ctx, p)
	if err != nil {
		msg := failureMessage(err, msgRegisterFailed)
		m.fail(ctx, seq, "register", msg, err)
		return Result{Message: msg}
	}

	if token, user := dataSession(env); token != "" {
		if !m.apply(seq, func() { m.authenticateLocked(ctx, token, user) }) {
			return Result{Message: msgSuperseded}
		}
		m.logger.Info("session.register logged in", slog.String("email", p.Email))
		m.notify(ctx, notification.KindRegistered, p.Email, messageOr(env.Message, msgRegistered))
		return Result{Success: true, Message: messageOr(env.Message, msgRegistered)}
	}

	if isSuccessStatus(env.Status) {
		if !m.apply(seq, func() {
			// a pending registration never coexists with a logged in session
			if m.token != "" || m.user != nil {
				m.token, m.user = "", nil
				m.pinLocked, m.pinDigest = false, nil
				m.remove(ctx, storage.KeyToken)
				m.remove(ctx, storage.KeyUser)
				m.remove(ctx, storage.KeySchema)
			}
			m.pendingEmail = p.Email
			m.persistPending(ctx, p.Email)
		}) {
			return Result{Message: msgSuperseded}
		}
		msg := messageOr(env.Message, msgVerificationNeeded)
		m.logger.Info("session.register pending verification", slog.String("email", p.Email))
		m.notify(ctx, notification.KindVerificationRequired, p.Email, msg)
		return Result{Success: true, Message: msg}
	}

	msg := messageOr(env.Message, msgRegisterFailed)
	m.fail(ctx, seq, "register", msg, nil)
	return Result{Message: msg}
}

// VerifyRegistrationOtp confirms the emailed code. On success the pending
// flag is cleared; the session is authenticated only if the backend also
// returned a token and user.
func (m *Manager) VerifyRegistrationOtp(ctx context.Context, email string, otp int) bool {
	seq := m.begin(true)
	defer m.end()

	env, err := m.gw.VerifyOtp(ctx, email, otp)
	if err != nil {
		m.fail(ctx, seq, "verify_otp", failureMessage(err, msgVerifyFailed), err)
		return false
	}
	if !isSuccessStatus(env.Status) {
		m.fail(ctx, seq, "verify_otp", messageOr(env.Message, msgVerifyFailed), nil)
		return false
	}

	token, user := dataSession(env)
	if !m.apply(seq, func() {
		if token != "" {
			m.authenticateLocked(ctx, token, user)
			return
		}
		m.pendingEmail = ""
		m.remove(ctx, storage.KeyPendingEmail)
	}) {
		return false
	}

	m.logger.Info("session.verify_otp succeeded", slog.String("email", email), slog.Bool("logged_in", token != ""))
	m.notify(ctx, notification.KindEmailVerified, email, messageOr(env.Message, "Email verified"))
	return true
}

// ResendVerificationEmail asks the backend to send a new code. No persisted
// field changes.
func (m *Manager) ResendVerificationEmail(ctx context.Context, email string) bool {
	seq := m.begin(false)
	defer m.end()

	env, err := m.gw.ResendOtp(ctx, email)
	if err != nil {
		m.fail(ctx, seq, "resend_otp", failureMessage(err, msgResendFailed), err)
		return false
	}
	if !isSuccessStatus(env.Status) {
		m.fail(ctx, seq, "resend_otp", messageOr(env.Message, msgResendFailed), nil)
		return false
	}
	m.notify(ctx, notification.KindVerificationResent, email, messageOr(env.Message, "Verification code sent"))
	return true
}

// Login authenticates with email and password.
func (m *Manager) Login(ctx context.Context, p gateway.LoginPayload) bool {
	seq := m.begin(true)
	defer m.end()

	env, err := m.gw.Login(ctx, p)
	if err != nil {
		m.fail(ctx, seq, "login", failureMessage(err, msgLoginFailed), err)
		return false
	}

	token, strategy := extractToken(env.Body)
	user := extractUser(env.Body)
	if token == "" || user == nil {
		m.fail(ctx, seq, "login", messageOr(env.Message, msgLoginFailed), nil)
		return false
	}

	if !m.apply(seq, func() { m.authenticateLocked(ctx, token, user) }) {
		return false
	}
	m.logger.Info("session.login succeeded", slog.String("email", p.Email), slog.String("token_source", strategy))
	m.notify(ctx, notification.KindLoggedIn, p.Email, messageOr(env.Message, "Login successful"))
	return true
}

// SetTransactionPin provisions the transaction PIN. A backend answer that
// the PIN already exists counts as success.
func (m *Manager) SetTransactionPin(ctx context.Context, newPin, confirmPin string) bool {
	seq := m.begin(true)
	defer m.end()

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()
	if token == "" {
		m.fail(ctx, seq, "set_pin", msgNotAuthenticated, nil)
		return false
	}

	env, err := m.gw.SetTransactionPin(ctx, token, newPin, confirmPin)
	ok := err == nil && (isSuccessStatus(env.Status) || pinAlreadySet(env.Message))
	if err != nil && pinAlreadySet(failureMessage(err, "")) {
		ok = true
	}
	if !ok {
		msg := messageOr(env.Message, msgSetPinFailed)
		if err != nil {
			msg = failureMessage(err, msgSetPinFailed)
		}
		m.fail(ctx, seq, "set_pin", msg, err)
		return false
	}

	if !m.apply(seq, func() {
		// the session may have changed hands while the call was in flight
		if m.token != token || m.user == nil {
			return
		}
		m.user = m.user.WithTransactionPin()
		m.errMsg = ""
		m.persistUser(ctx, m.user)
	}) {
		return false
	}
	m.logger.Info("session.set_pin succeeded")
	m.notify(ctx, notification.KindPinSet, "", messageOr(env.Message, "Transaction PIN set"))
	return true
}

// Logout revokes the token server side on a best-effort basis and always
// resets the local session, whatever the network outcome.
func (m *Manager) Logout(ctx context.Context) {
	m.begin(true)
	defer m.end()

	m.mu.Lock()
	token := m.token
	m.mu.Unlock()

	if token != "" {
		if err := m.gw.Logout(ctx, token); err != nil {
			m.logger.Warn("session.logout remote call failed", slog.Any("error", err))
		}
	}

	m.mu.Lock()
	m.resetLocked(ctx)
	m.mu.Unlock()

	m.logger.Info("session.logout")
	m.notify(ctx, notification.KindLoggedOut, "", "Logged out")
}

// ResetState clears the session from memory and storage.
func (m *Manager) ResetState(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.issued++
	m.resetLocked(ctx)
}

// ClearError drops the last error message.
func (m *Manager) ClearError() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errMsg = ""
}

func (m *Manager) resetLocked(ctx context.Context) {
	m.token = ""
	m.user = nil
	m.pendingEmail = ""
	m.errMsg = ""
	m.pinLocked = false
	m.pinDigest = nil
	m.clearPersisted(ctx)
}

// authenticateLocked installs a fresh authenticated session and mirrors it
// to storage. Caller holds mu.
func (m *Manager) authenticateLocked(ctx context.Context, token string, user gateway.UserRecord) {
	m.token = token
	m.user = user
	m.pendingEmail = ""
	m.errMsg = ""
	m.pinLocked = false
	m.pinDigest = nil
	m.persistAuth(ctx, token, user)
}

// begin marks an operation in flight and clears the previous error. Mutating
// operations get a sequence number for stale response detection.
func (m *Manager) begin(mutating bool) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight++
	m.errMsg = ""
	if mutating {
		m.issued++
		return m.issued
	}
	return 0
}

func (m *Manager) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inflight--
}

// apply runs fn under the lock unless the response is stale.
func (m *Manager) apply(seq uint64, fn func()) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.discardStale && seq != 0 && seq != m.issued {
		m.logger.Debug("session response discarded as stale", slog.Uint64("seq", seq), slog.Uint64("latest", m.issued))
		return false
	}
	fn()
	return true
}

func (m *Manager) fail(ctx context.Context, seq uint64, op, msg string, err error) {
	if err != nil {
		m.logger.Error("session."+op+" failed", slog.String("message", msg), slog.Any("error", err))
	} else {
		m.logger.Info("session."+op+" rejected", slog.String("message", msg))
	}
	if !m.apply(seq, func() { m.errMsg = msg }) {
		return
	}
	m.notify(ctx, notification.KindFailure, op, msg)
}

func (m *Manager) notify(ctx context.Context, kind, dest, body string) {
	if err := m.notifier.Send(ctx, notification.Message{Kind: kind, Destination: dest, Body: body}); err != nil {
		m.logger.Debug("notification failed", slog.String("kind", kind), slog.Any("error", err))
	}
}
