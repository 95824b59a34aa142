// Package consent defines the access gate the agent sits behind. The
// vault core never validates tokens itself; callers present a token and a
// scope, and a ConsentGate decides whether that pairing may proceed and
// which user identity it maps to. Token issuance and cryptography belong
// to the host system, so this package ships only the interface and a
// static gate suitable for single-user deployments.
package consent

import "strings"

// Claims carries the identity a validated token resolves to.
type Claims struct {
	UserID string `json:"user_id"`
}

// Decision is the outcome of a gate check. Reason is empty when OK is true.
type Decision struct {
	OK     bool   `json:"ok"`
	Reason string `json:"reason,omitempty"`
	Claims Claims `json:"claims"`
}

// Gate validates a consent token against the scope an operation requires.
type Gate interface {
	Validate(token, expectedScope string) Decision
}

// StaticGate is a fixed-token, fixed-user gate. It grants every scope in
// its allow list to the single configured user and rejects everything
// else. An empty scope list grants all scopes.
type StaticGate struct {
	token  string
	userID string
	scopes map[string]struct{}
}

// NewStaticGate creates a gate for one (token, user) pair. scopes lists
// the scope labels the token is allowed; leave it empty to allow all.
func NewStaticGate(token, userID string, scopes ...string) *StaticGate {
	g := &StaticGate{token: token, userID: userID}
	if len(scopes) > 0 {
		g.scopes = make(map[string]struct{}, len(scopes))
		for _, s := range scopes {
			g.scopes[strings.TrimSpace(s)] = struct{}{}
		}
	}
	return g
}

// Validate checks the token and scope. A gate constructed with an empty
// token refuses everything, so an unconfigured deployment fails closed.
func (g *StaticGate) Validate(token, expectedScope string) Decision {
	if g.token == "" {
		return Decision{Reason: "consent gate not configured"}
	}
	if token != g.token {
		return Decision{Reason: "invalid consent token"}
	}
	if g.scopes != nil {
		if _, ok := g.scopes[expectedScope]; !ok {
			return Decision{Reason: "scope not granted: " + expectedScope}
		}
	}
	return Decision{OK: true, Claims: Claims{UserID: g.userID}}
}

// AllowAll returns a gate that accepts any token and resolves to userID.
// Used in development mode where no consent token is configured.
func AllowAll(userID string) Gate {
	return allowAllGate{userID: userID}
}

type allowAllGate struct {
	userID string
}

func (g allowAllGate) Validate(string, string) Decision {
	return Decision{OK: true, Claims: Claims{UserID: g.userID}}
}
