// Package common contains shared constants and sentinel errors used across
// the storefront server components.
package common

const (
	// AccessTokenCookieName carries the short-lived JWT for browser sessions.
	AccessTokenCookieName = "access_token"

	// RefreshTokenCookieName carries the opaque refresh token.
	RefreshTokenCookieName = "refresh_token"
)

// Roles stored in the user profile. The stored value is the only source of
// truth for authorization decisions.
const (
	RoleNormal = "normal"
	RoleAdmin  = "admin"
)
