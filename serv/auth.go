package serv

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/hbcbh1999/subzero-go/core/internal/apperr"
	"github.com/hbcbh1999/subzero-go/core/internal/schema"
)

// Authenticator decodes the Authorization bearer token and resolves the
// active role, one-to-one with postgrest.rs's `handle` JWT section:
// missing/absent secret or header means anonymous; an expired token (1
// second of clock skew tolerated) or malformed token is rejected
// outright; a validly-signed token without the configured role-claim
// key resolves to the anonymous role. Only the role is returned; no
// separate authenticated flag is reported.
type Authenticator struct {
	secret       []byte
	roleClaimKey string
	anonRole     schema.Role
}

// NewAuthenticator builds an Authenticator. An empty secret disables
// JWT decoding entirely — every request resolves to anonRole.
func NewAuthenticator(secret, roleClaimKey string, anonRole string) *Authenticator {
	return &Authenticator{secret: []byte(secret), roleClaimKey: roleClaimKey, anonRole: schema.Role(anonRole)}
}

// Authenticate resolves the role for one request's Authorization header
// value (empty string if absent).
func (a *Authenticator) Authenticate(authorizationHeader string) (schema.Role, error) {
	if len(a.secret) == 0 {
		return a.anonRole, nil
	}

	token, ok := bearerToken(authorizationHeader)
	if !ok {
		if a.anonRole == "" {
			return "", apperr.JwtTokenInvalid("unauthenticated requests not allowed")
		}
		return a.anonRole, nil
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	_, err := parser.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	})
	if err != nil {
		return "", apperr.JwtTokenInvalid(err.Error())
	}

	if exp, ok := claims["exp"]; ok {
		expUnix, ok := toUnix(exp)
		if ok && expUnix < time.Now().Unix()-1 {
			return "", apperr.JwtTokenInvalid("JWT expired")
		}
	}

	if role, ok := claims[strings.TrimPrefix(a.roleClaimKey, "$.")].(string); ok && role != "" {
		return schema.Role(role), nil
	}
	return a.anonRole, nil
}

func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

func toUnix(v interface{}) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case int64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return int64(f), err == nil
	default:
		return 0, false
	}
}
