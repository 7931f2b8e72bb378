package auth

import "github.com/golang-jwt/jwt/v5"

type TokenType string

const (
	TokenTypeAccess  TokenType = "access"
	TokenTypeRefresh TokenType = "refresh"
)

// Claims is the JWT payload accepted by the API.
// Name is recorded verbatim as actorName on audit events, so it must be the display name.
type Claims struct {
	jwt.RegisteredClaims

	UserID    string    `json:"user_id"`
	Name      string    `json:"name"`
	Roles     []string  `json:"roles,omitempty"`
	TokenType TokenType `json:"token_type"`

	// Studies scopes the token to these study ids. Absent means every study.
	Studies []int64 `json:"studies,omitempty"`
}

// Identity is the authenticated principal carried on request contexts.
type Identity struct {
	UserID  string
	Name    string
	Roles   []string
	Studies []int64
}

// HasRole reports whether the identity holds role.
func (i Identity) HasRole(role string) bool {
	for _, r := range i.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// CanAccessStudy reports whether the identity may read or act on studyID.
// An identity without a study list is not study-scoped.
func (i Identity) CanAccessStudy(studyID int64) bool {
	if len(i.Studies) == 0 {
		return true
	}
	for _, s := range i.Studies {
		if s == studyID {
			return true
		}
	}
	return false
}
