package auth

import "github.com/golang-jwt/jwt/v5"

// Claims is the only supported JWT claims shape for the signaling gateway.
// Tokens are issued by the Thesis-Sync identity service; this service only
// verifies them and trusts the embedded user identity.
type Claims struct {
	jwt.RegisteredClaims

	UserID string `json:"user_id"`
}
