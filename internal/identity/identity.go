// Package identity decodes the caller's role and email from a session token.
//
// Decoding reads the JWT payload without verifying the signature. The result
// only drives which controls the client offers; the API enforces access.
package identity

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

// Role is the closed set of roles a token may carry.
type Role int

const (
	RoleUnknown Role = iota
	RoleAdmin
	RoleTeamManager
	RoleTeamMember
)

// Wire values used by registration and token claims.
var roleNames = map[Role]string{
	RoleAdmin:       "admin",
	RoleTeamManager: "user",
	RoleTeamMember:  "moderator",
}

// ParseRole maps a claim value onto a Role, ignoring case and surrounding
// space. Anything unrecognized is RoleUnknown.
func ParseRole(s string) Role {
	s = strings.ToLower(strings.TrimSpace(s))
	for r, name := range roleNames {
		if name == s {
			return r
		}
	}
	return RoleUnknown
}

// String returns the wire value, or "unknown".
func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Label is the human readable name shown by the client.
func (r Role) Label() string {
	switch r {
	case RoleAdmin:
		return "Admin"
	case RoleTeamManager:
		return "Team Manager"
	case RoleTeamMember:
		return "Team Member"
	default:
		return "Unknown"
	}
}

// Identity is what the client knows about the signed-in user.
type Identity struct {
	Role  Role
	Email string
}

// CanManageCases reports whether create and edit controls should be offered.
func (i Identity) CanManageCases() bool { return i.Role == RoleAdmin }

// Claims is the token payload shared with the API server.
type Claims struct {
	jwt.RegisteredClaims
	Role  string `json:"role"`
	Email string `json:"email"`
}

var ErrMalformed = errors.New("malformed token")

// Decode parses token's payload. It does not check the signature or expiry.
func Decode(token string) (Identity, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Identity{}, ErrMalformed
	}
	var claims Claims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return Identity{Role: ParseRole(claims.Role), Email: claims.Email}, nil
}
