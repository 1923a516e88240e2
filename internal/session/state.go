package session

import (
	"context"

	"github.com/congo-pay/vtu_client/internal/gateway"
)

// Phase names the onboarding/authentication stage derived from the session
// fields. It is never stored.
type Phase string

const (
	PhaseAnonymous           Phase = "anonymous"
	PhasePendingVerification Phase = "pending_verification"
	PhaseAwaitingPin         Phase = "awaiting_pin"
	PhaseAuthenticated       Phase = "authenticated"
	PhasePinLocked           Phase = "pin_locked"
)

// State is a point-in-time copy of the session as consumers see it.
type State struct {
	User               gateway.UserRecord `json:"user"`
	Token              string             `json:"token,omitempty"`
	IsAuthenticated    bool               `json:"is_authenticated"`
	PendingVerifyEmail string             `json:"pending_verify_email,omitempty"`
	IsLoading          bool               `json:"is_loading"`
	Error              string             `json:"error,omitempty"`
	PinLocked          bool               `json:"pin_locked"`
	Phase              Phase              `json:"phase"`
}

// Result is returned by operations that report a message alongside success.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// Gateway is the subset of the backend API the session drives.
type Gateway interface {
	Register(ctx context.Context, p gateway.RegisterPayload) (gateway.Envelope, error)
	VerifyOtp(ctx context.Context, email string, otp int) (gateway.Envelope, error)
	ResendOtp(ctx context.Context, email string) (gateway.Envelope, error)
	Login(ctx context.Context, p gateway.LoginPayload) (gateway.Envelope, error)
	SetTransactionPin(ctx context.Context, token, newPin, confirmPin string) (gateway.Envelope, error)
	VerifyTransactionPin(ctx context.Context, token, pin string) (gateway.Envelope, error)
	Logout(ctx context.Context, token string) error
}

func derivePhase(authenticated bool, user gateway.UserRecord, pending string, locked bool) Phase {
	switch {
	case authenticated && locked:
		return PhasePinLocked
	case authenticated && user.HasTransactionPin():
		return PhaseAuthenticated
	case authenticated:
		return PhaseAwaitingPin
	case pending != "":
		return PhasePendingVerification
	default:
		return PhaseAnonymous
	}
}
