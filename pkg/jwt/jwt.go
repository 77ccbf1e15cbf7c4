package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	RoleGuest     = "guest"
	RoleOrganizer = "organizer"
)

const TokenExpiryOrganizer = 7 * 24 * time.Hour

// Claims identify either a guest session (Subject is the session ID) or an
// organizer (Subject is the organizer ID).
type Claims struct {
	Role    string `json:"role"`
	EventID string `json:"event_id,omitempty"`
	jwt.RegisteredClaims
}

type Issuer struct {
	secret []byte
	issuer string
}

func NewIssuer(secret, issuer string) *Issuer {
	return &Issuer{secret: []byte(secret), issuer: issuer}
}

// GuestToken binds a participant session to its event until expiresAt.
func (i *Issuer) GuestToken(sessionID, eventID string, now, expiresAt time.Time) (string, error) {
	return i.sign(Claims{
		Role:    RoleGuest,
		EventID: eventID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   sessionID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	})
}

// OrganizerToken is normally minted by the account service; it lives here so
// local tooling and tests share the same signing rules.
func (i *Issuer) OrganizerToken(organizerID string, now time.Time) (string, error) {
	return i.sign(Claims{
		Role: RoleOrganizer,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   organizerID,
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(TokenExpiryOrganizer)),
		},
	})
}

func (i *Issuer) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

func (i *Issuer) Parse(tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.secret, nil
	}, jwt.WithIssuer(i.issuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}
