package session

import (
	"errors"
	"strings"

	"github.com/congo-pay/vtu_client/internal/gateway"
)

// isSuccessStatus reports whether the envelope status marks success.
func isSuccessStatus(status string) bool {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "success", "successful":
		return true
	default:
		return false
	}
}

// pinAlreadySet matches the backend's wording for a PIN that exists
// already. Setting an existing PIN counts as success.
// TODO: switch to a dedicated status code once the backend exposes one.
func pinAlreadySet(message string) bool {
	m := strings.ToLower(message)
	return strings.Contains(m, "already set") || strings.Contains(m, "already exists")
}

// failureMessage returns the backend's message for err when it carries one,
// otherwise fallback. Transport details are never shown to the user.
func failureMessage(err error, fallback string) string {
	var apiErr *gateway.APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}

func messageOr(message, fallback string) string {
	if strings.TrimSpace(message) == "" {
		return fallback
	}
	return message
}
