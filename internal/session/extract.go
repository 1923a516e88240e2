package session

import "github.com/congo-pay/vtu_client/internal/gateway"

// The login endpoint has answered with the token in several places over
// time. The strategies below are tried in order and the first non-empty
// string wins. This mirrors an unversioned API contract; drop entries once
// the backend settles on data.token.
type tokenStrategy struct {
	name string
	path []string
}

var tokenStrategies = []tokenStrategy{
	{"data.token", []string{"data", "token"}},
	{"data.access_token", []string{"data", "access_token"}},
	{"data.accessToken", []string{"data", "accessToken"}},
	{"result.token", []string{"result", "token"}},
	{"result.access_token", []string{"result", "access_token"}},
	{"result.accessToken", []string{"result", "accessToken"}},
	{"payload.token", []string{"payload", "token"}},
	{"payload.access_token", []string{"payload", "access_token"}},
	{"payload.accessToken", []string{"payload", "accessToken"}},
	{"token", []string{"token"}},
	{"access_token", []string{"access_token"}},
	{"accessToken", []string{"accessToken"}},
	{"data.user.token", []string{"data", "user", "token"}},
	{"user.token", []string{"user", "token"}},
}

var userPaths = [][]string{
	{"data", "user"},
	{"result", "user"},
	{"payload", "user"},
	{"user"},
}

// extractToken returns the first token found and the strategy that found it.
func extractToken(body map[string]any) (token, strategy string) {
	for _, s := range tokenStrategies {
		if v, ok := lookup(body, s.path).(string); ok && v != "" {
			return v, s.name
		}
	}
	return "", ""
}

// extractUser returns the first user object found.
func extractUser(body map[string]any) gateway.UserRecord {
	for _, p := range userPaths {
		if u, ok := lookup(body, p).(map[string]any); ok {
			return gateway.UserRecord(u)
		}
	}
	return nil
}

// dataSession reads the data.token + data.user pair used by the register
// and OTP endpoints.
func dataSession(env gateway.Envelope) (string, gateway.UserRecord) {
	token, _ := env.Data["token"].(string)
	user, ok := env.Data["user"].(map[string]any)
	if token == "" || !ok {
		return "", nil
	}
	return token, gateway.UserRecord(user)
}

func lookup(body map[string]any, path []string) any {
	var cur any = body
	for _, key := range path {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		cur = m[key]
	}
	return cur
}
