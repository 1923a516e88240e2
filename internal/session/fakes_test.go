package session

import (
	"context"
	"errors"
	"sync"

	"github.com/congo-pay/vtu_client/internal/gateway"
	"github.com/congo-pay/vtu_client/internal/notification"
)

// fakeGateway answers with canned envelopes. Unset funcs fail the call.
type fakeGateway struct {
	register  func(gateway.RegisterPayload) (gateway.Envelope, error)
	verifyOtp func(email string, otp int) (gateway.Envelope, error)
	resendOtp func(email string) (gateway.Envelope, error)
	login     func(gateway.LoginPayload) (gateway.Envelope, error)
	setPin    func(token, newPin, confirmPin string) (gateway.Envelope, error)
	verifyPin func(token, pin string) (gateway.Envelope, error)
	logout    func(token string) error

	mu    sync.Mutex
	calls map[string]int
}

var errNotStubbed = errors.New("not stubbed")

func (g *fakeGateway) record(op string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.calls == nil {
		g.calls = make(map[string]int)
	}
	g.calls[op]++
}

func (g *fakeGateway) count(op string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[op]
}

func (g *fakeGateway) Register(_ context.Context, p gateway.RegisterPayload) (gateway.Envelope, error) {
	g.record("register")
	if g.register == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.register(p)
}

func (g *fakeGateway) VerifyOtp(_ context.Context, email string, otp int) (gateway.Envelope, error) {
	g.record("verify_otp")
	if g.verifyOtp == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.verifyOtp(email, otp)
}

func (g *fakeGateway) ResendOtp(_ context.Context, email string) (gateway.Envelope, error) {
	g.record("resend_otp")
	if g.resendOtp == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.resendOtp(email)
}

func (g *fakeGateway) Login(_ context.Context, p gateway.LoginPayload) (gateway.Envelope, error) {
	g.record("login")
	if g.login == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.login(p)
}

func (g *fakeGateway) SetTransactionPin(_ context.Context, token, newPin, confirmPin string) (gateway.Envelope, error) {
	g.record("set_pin")
	if g.setPin == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.setPin(token, newPin, confirmPin)
}

func (g *fakeGateway) VerifyTransactionPin(_ context.Context, token, pin string) (gateway.Envelope, error) {
	g.record("verify_pin")
	if g.verifyPin == nil {
		return gateway.Envelope{}, errNotStubbed
	}
	return g.verifyPin(token, pin)
}

func (g *fakeGateway) Logout(_ context.Context, token string) error {
	g.record("logout")
	if g.logout == nil {
		return nil
	}
	return g.logout(token)
}

// envelope builds an Envelope the way the gateway decodes one.
func envelope(body map[string]any) gateway.Envelope {
	env := gateway.Envelope{Body: body}
	env.Status, _ = body["status"].(string)
	env.Message, _ = body["message"].(string)
	env.Data, _ = body["data"].(map[string]any)
	return env
}

// brokenStore fails every call, like disabled or full browser storage.
type brokenStore struct{}

var errStorage = errors.New("storage disabled")

func (brokenStore) Get(context.Context, string) (string, bool, error) { return "", false, errStorage }
func (brokenStore) Set(context.Context, string, string) error         { return errStorage }
func (brokenStore) Delete(context.Context, string) error              { return errStorage }

// recordingNotifier keeps every message sent.
type recordingNotifier struct {
	mu       sync.Mutex
	messages []notification.Message
}

func (n *recordingNotifier) Send(_ context.Context, msg notification.Message) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = append(n.messages, msg)
	return nil
}

func (n *recordingNotifier) kinds() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.messages))
	for _, m := range n.messages {
		out = append(out, m.Kind)
	}
	return out
}
