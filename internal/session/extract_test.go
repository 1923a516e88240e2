package session

import (
	"context"
	"testing"

	"github.com/congo-pay/vtu_client/internal/gateway"
	"github.com/congo-pay/vtu_client/internal/storage"
)

func TestExtractTokenShapes(t *testing.T) {
	user := map[string]any{"email": "a@x.com"}
	cases := []struct {
		name     string
		body     map[string]any
		strategy string
	}{
		{"data.token", map[string]any{"data": map[string]any{"token": "t", "user": user}}, "data.token"},
		{"data.access_token", map[string]any{"data": map[string]any{"access_token": "t", "user": user}}, "data.access_token"},
		{"data.accessToken", map[string]any{"data": map[string]any{"accessToken": "t", "user": user}}, "data.accessToken"},
		{"result.token", map[string]any{"result": map[string]any{"token": "t", "user": user}}, "result.token"},
		{"result.accessToken", map[string]any{"result": map[string]any{"accessToken": "t", "user": user}}, "result.accessToken"},
		{"payload.access_token", map[string]any{"payload": map[string]any{"access_token": "t", "user": user}}, "payload.access_token"},
		{"top level token", map[string]any{"token": "t", "user": user}, "token"},
		{"top level access_token", map[string]any{"access_token": "t", "user": user}, "access_token"},
		{"top level accessToken", map[string]any{"accessToken": "t", "user": user}, "accessToken"},
		{"token nested in data.user", map[string]any{"data": map[string]any{"user": map[string]any{"email": "a@x.com", "token": "t"}}}, "data.user.token"},
		{"token nested in user", map[string]any{"user": map[string]any{"email": "a@x.com", "token": "t"}}, "user.token"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			token, strategy := extractToken(tc.body)
			if token != "t" || strategy != tc.strategy {
				t.Fatalf("expected t via %s, got %q via %q", tc.strategy, token, strategy)
			}
			if extractUser(tc.body) == nil {
				t.Fatalf("expected a user record")
			}
		})
	}
}

func TestExtractTokenOrder(t *testing.T) {
	body := map[string]any{
		"token": "top",
		"data":  map[string]any{"token": "nested"},
	}
	if token, _ := extractToken(body); token != "nested" {
		t.Fatalf("data.token must win over top level, got %q", token)
	}

	body = map[string]any{
		"data":  map[string]any{"token": ""},
		"token": 42,
		"user":  map[string]any{"token": "from-user"},
	}
	if token, _ := extractToken(body); token != "from-user" {
		t.Fatalf("empty and non-string candidates must be skipped, got %q", token)
	}
}

func TestExtractNothing(t *testing.T) {
	if token, strategy := extractToken(map[string]any{"message": "Invalid credentials"}); token != "" || strategy != "" {
		t.Fatalf("expected no token, got %q via %q", token, strategy)
	}
	if extractUser(map[string]any{"user": "not an object"}) != nil {
		t.Fatalf("a non-object user is not a user record")
	}
	if token, user := dataSession(gateway.Envelope{Data: map[string]any{"token": "t"}}); token != "" || user != nil {
		t.Fatalf("dataSession needs both token and user")
	}
}

func TestLoginAcceptsEveryTokenShape(t *testing.T) {
	bodies := []map[string]any{
		{"result": map[string]any{"access_token": "tok", "user": testUser()}},
		{"payload": map[string]any{"accessToken": "tok"}, "user": testUser()},
		{"data": map[string]any{"user": map[string]any{"email": "a@x.com", "token": "tok"}}},
	}
	for i, body := range bodies {
		gw := &fakeGateway{login: func(gateway.LoginPayload) (gateway.Envelope, error) {
			return envelope(body), nil
		}}
		m := newTestManager(storage.NewMemoryStore(), gw)
		if !m.Login(context.Background(), gateway.LoginPayload{}) {
			t.Fatalf("body %d: expected success, error=%q", i, m.State().Error)
		}
		if m.State().Token != "tok" {
			t.Fatalf("body %d: expected tok, got %q", i, m.State().Token)
		}
	}
}

func TestPredicates(t *testing.T) {
	for _, s := range []string{"success", "Successful", " SUCCESS "} {
		if !isSuccessStatus(s) {
			t.Fatalf("expected %q to be success", s)
		}
	}
	for _, s := range []string{"", "error", "failed"} {
		if isSuccessStatus(s) {
			t.Fatalf("expected %q not to be success", s)
		}
	}
	if !pinAlreadySet("Transaction PIN already set") || !pinAlreadySet("PIN Already Exists") {
		t.Fatalf("expected already-set wording to match")
	}
	if pinAlreadySet("PIN must be 4 digits") {
		t.Fatalf("unexpected match")
	}
}
