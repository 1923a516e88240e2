package session

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/congo-pay/vtu_client/internal/gateway"
)

// Handler exposes the session manager to UI consumers over HTTP.
type Handler struct {
	m *Manager
}

func NewHandler(m *Manager) *Handler {
	return &Handler{m: m}
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Session State  `json:"session"`
}

func (h *Handler) reply(c *fiber.Ctx, ok bool, message string) error {
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	st := h.m.State()
	if !ok && message == "" {
		message = st.Error
	}
	return c.Status(status).JSON(response{Success: ok, Message: message, Session: st})
}

// State returns the current session snapshot.
func (h *Handler) State(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(response{Success: true, Session: h.m.State()})
}

// Register creates an account.
func (h *Handler) Register(c *fiber.Ctx) error {
	var req gateway.RegisterPayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := required(map[string]string{
		"fullname": req.Fullname,
		"username": req.Username,
		"email":    req.Email,
		"phone":    req.Phone,
		"password": req.Password,
	}); err != nil {
		return err
	}
	res := h.m.Register(c.UserContext(), req)
	return h.reply(c, res.Success, res.Message)
}

// otpCode accepts the code as a JSON number or a numeric string.
type otpCode int

func (o *otpCode) UnmarshalJSON(b []byte) error {
	b = bytes.Trim(b, `"`)
	n, err := strconv.Atoi(string(b))
	if err != nil {
		return fmt.Errorf("otp must be numeric")
	}
	*o = otpCode(n)
	return nil
}

type verifyOtpRequest struct {
	Email string  `json:"email"`
	Otp   otpCode `json:"otp"`
}

// VerifyOtp confirms the emailed code. The email defaults to the pending one.
func (h *Handler) VerifyOtp(c *fiber.Ctx) error {
	var req verifyOtpRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	email := h.emailOrPending(req.Email)
	if email == "" {
		return fiber.NewError(http.StatusBadRequest, "email is required")
	}
	if req.Otp <= 0 {
		return fiber.NewError(http.StatusBadRequest, "otp is required")
	}
	ok := h.m.VerifyRegistrationOtp(c.UserContext(), email, int(req.Otp))
	msg := ""
	if ok {
		msg = "Email verified"
		if !h.m.State().IsAuthenticated {
			msg = "Email verified. Please log in"
		}
	}
	return h.reply(c, ok, msg)
}

type emailRequest struct {
	Email string `json:"email"`
}

// ResendOtp asks the backend for a fresh verification code.
func (h *Handler) ResendOtp(c *fiber.Ctx) error {
	var req emailRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return fiber.NewError(http.StatusBadRequest, err.Error())
		}
	}
	email := h.emailOrPending(req.Email)
	if email == "" {
		return fiber.NewError(http.StatusBadRequest, "email is required")
	}
	ok := h.m.ResendVerificationEmail(c.UserContext(), email)
	return h.reply(c, ok, okMessage(ok, "Verification code sent"))
}

// Login authenticates with email and password.
func (h *Handler) Login(c *fiber.Ctx) error {
	var req gateway.LoginPayload
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	req.Email = strings.TrimSpace(req.Email)
	if err := required(map[string]string{"email": req.Email, "password": req.Password}); err != nil {
		return err
	}
	ok := h.m.Login(c.UserContext(), req)
	return h.reply(c, ok, okMessage(ok, "Login successful"))
}

type setPinRequest struct {
	Pin        string `json:"pin"`
	ConfirmPin string `json:"confirm_pin"`
}

// SetPin provisions the transaction PIN for the current session.
func (h *Handler) SetPin(c *fiber.Ctx) error {
	var req setPinRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := required(map[string]string{"pin": req.Pin, "confirm_pin": req.ConfirmPin}); err != nil {
		return err
	}
	if req.Pin != req.ConfirmPin {
		return fiber.NewError(http.StatusBadRequest, "PIN confirmation does not match")
	}
	ok := h.m.SetTransactionPin(c.UserContext(), req.Pin, req.ConfirmPin)
	return h.reply(c, ok, okMessage(ok, "Transaction PIN set"))
}

// Lock puts the session behind the PIN gate.
func (h *Handler) Lock(c *fiber.Ctx) error {
	if !h.m.Lock() {
		return h.reply(c, false, "No transaction PIN to lock with")
	}
	return h.reply(c, true, "Session locked")
}

type unlockRequest struct {
	Pin string `json:"pin"`
}

// Unlock re-confirms the transaction PIN.
func (h *Handler) Unlock(c *fiber.Ctx) error {
	var req unlockRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(http.StatusBadRequest, err.Error())
	}
	if err := required(map[string]string{"pin": req.Pin}); err != nil {
		return err
	}
	ok := h.m.ConfirmPin(c.UserContext(), req.Pin)
	return h.reply(c, ok, okMessage(ok, "Session unlocked"))
}

// Logout ends the session. It always succeeds locally.
func (h *Handler) Logout(c *fiber.Ctx) error {
	h.m.Logout(c.UserContext())
	return h.reply(c, true, "Logged out")
}

// Reset clears the session without contacting the backend.
func (h *Handler) Reset(c *fiber.Ctx) error {
	h.m.ResetState(c.UserContext())
	return h.reply(c, true, "Session reset")
}

// ClearError drops the last error message.
func (h *Handler) ClearError(c *fiber.Ctx) error {
	h.m.ClearError()
	return h.reply(c, true, "")
}

func (h *Handler) emailOrPending(email string) string {
	if email = strings.TrimSpace(email); email != "" {
		return email
	}
	return h.m.State().PendingVerifyEmail
}

// required fails with 400 naming the first empty field in sorted order.
func required(fields map[string]string) error {
	var missing []string
	for name, v := range fields {
		if strings.TrimSpace(v) == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	return fiber.NewError(http.StatusBadRequest, missing[0]+" is required")
}

func okMessage(ok bool, msg string) string {
	if ok {
		return msg
	}
	return ""
}

// MarshalJSON leaves the bearer token out of HTTP responses.
func (r response) MarshalJSON() ([]byte, error) {
	type alias response
	r.Session.Token = ""
	return json.Marshal(alias(r))
}
