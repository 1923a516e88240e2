package gateway

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrMalformedResponse is returned when a 2xx body is not a JSON object.
var ErrMalformedResponse = errors.New("malformed backend response")

// RegisterPayload is the sign-up form as sent to the backend.
type RegisterPayload struct {
	Fullname string `json:"fullname"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Password string `json:"password"`
	Referral string `json:"referral,omitempty"`
}

// LoginPayload carries login credentials.
type LoginPayload struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type verifyOtpRequest struct {
	Email string `json:"email"`
	Otp   int    `json:"otp"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type setPinRequest struct {
	NewPin     string `json:"new_transaction_pin"`
	ConfirmPin string `json:"new_transaction_pin_confirmation"`
}

type verifyPinRequest struct {
	Pin string `json:"transaction_pin"`
}

// Envelope is a backend response normalized to {status, message, data}.
// Body keeps the whole decoded object for callers that probe alternate shapes.
type Envelope struct {
	Status  string
	Message string
	Data    map[string]any
	Body    map[string]any
}

// APIError is returned for non-2xx responses. Message carries the backend's
// own wording when it sent one.
type APIError struct {
	StatusCode int
	Message    string
	Envelope   Envelope
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("backend returned %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("backend returned %d", e.StatusCode)
}

// UserRecord is the profile snapshot returned by the backend. Only
// has_transaction_pin is interpreted; every other field round-trips as is.
type UserRecord map[string]any

// HasTransactionPin reports the has_transaction_pin flag, accepting the bool,
// 0/1 and string encodings the backend has been seen to use.
func (u UserRecord) HasTransactionPin() bool {
	switch v := u["has_transaction_pin"].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int:
		return v != 0
	case string:
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		return err == nil && b
	default:
		return false
	}
}

// WithTransactionPin returns a copy with has_transaction_pin set to true.
func (u UserRecord) WithTransactionPin() UserRecord {
	out := make(UserRecord, len(u)+1)
	for k, v := range u {
		out[k] = v
	}
	out["has_transaction_pin"] = true
	return out
}

// Email returns the email field when present.
func (u UserRecord) Email() string {
	s, _ := u["email"].(string)
	return s
}

// DisplayName returns fullname, falling back to name then username.
func (u UserRecord) DisplayName() string {
	for _, k := range []string{"fullname", "name", "username"} {
		if s, ok := u[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}
