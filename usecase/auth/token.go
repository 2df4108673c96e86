package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"

	"github.com/fastygo/sellerdesk/domain"
)

// Claims is the signed content of the session cookie.
type Claims struct {
	SessionID string `json:"sid"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// Tokens signs and verifies session cookies with HS256.
type Tokens struct {
	secret []byte
	issuer string
}

func NewTokens(secret, issuer string) *Tokens {
	return &Tokens{secret: []byte(secret), issuer: issuer}
}

func (t *Tokens) Issue(session *domain.Session) (string, error) {
	claims := Claims{
		SessionID: session.ID,
		UserID:    session.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    t.issuer,
			Subject:   session.UserID,
			IssuedAt:  jwt.NewNumericDate(session.CreatedAt),
			ExpiresAt: jwt.NewNumericDate(session.ExpiresAt),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Parse returns the claims of a valid, unexpired token issued by this service.
func (t *Tokens) Parse(token string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(tok *jwt.Token) (interface{}, error) {
		if _, ok := tok.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tok.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, domain.WrapError(domain.ErrCodeUnauthenticated, "invalid session token", err)
	}
	if t.issuer != "" && claims.Issuer != t.issuer {
		return nil, domain.NewError(domain.ErrCodeUnauthenticated, "invalid session token")
	}
	if claims.SessionID == "" {
		return nil, domain.NewError(domain.ErrCodeUnauthenticated, "invalid session token")
	}
	return claims, nil
}

// TTL is the remaining lifetime of a session, used for the cookie max-age.
func TTL(session *domain.Session, now time.Time) time.Duration {
	if session == nil {
		return 0
	}
	return session.ExpiresAt.Sub(now)
}
