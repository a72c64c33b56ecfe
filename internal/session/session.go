package session

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for malformed, tampered or expired tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Claims identifies the logged-in collector.
type Claims struct {
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// UserID returns the subject of the token.
func (c *Claims) UserID() string {
	return c.Subject
}

// Manager issues and validates HS256 session tokens.
type Manager struct {
	secret []byte
	ttl    time.Duration
	issuer string
	now    func() time.Time
}

// NewManager creates a Manager. ttl <= 0 defaults to 24 hours.
func NewManager(secret string, ttl time.Duration) *Manager {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Manager{secret: []byte(secret), ttl: ttl, issuer: "cardvault", now: time.Now}
}

// Issue creates a signed token for the user and returns it with its expiry.
func (m *Manager) Issue(userID, username string) (string, time.Time, error) {
	now := m.now().UTC()
	expires := now.Add(m.ttl)

	claims := Claims{
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    m.issuer,
			ExpiresAt: jwt.NewNumericDate(expires),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Parse verifies signature, issuer and expiry and returns the claims.
func (m *Manager) Parse(token string) (*Claims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithTimeFunc(m.now),
	)

	parsed, err := parser.ParseWithClaims(token, &Claims{}, func(*jwt.Token) (interface{}, error) {
		return m.secret, nil
	})
	if err != nil {
		return nil, errors.Join(ErrInvalidToken, err)
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
