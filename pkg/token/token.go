// Package token signs and verifies the two token kinds the service hands
// out: login session tokens and share references. Both are HMAC-SHA256
// JWTs; a share reference is only a capability to be redeemed, it grants
// nothing by itself.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	kindSession  = "session"
	kindShareRef = "share"

	// ShareRefTTL bounds how long an issued share reference can be redeemed.
	ShareRefTTL = 7 * 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

type Manager struct {
	secret     []byte
	sessionTTL time.Duration
	now        func() time.Time
}

func NewManager(secret string, sessionTTL time.Duration, now func() time.Time) *Manager {
	if sessionTTL <= 0 {
		sessionTTL = 24 * time.Hour
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{secret: []byte(secret), sessionTTL: sessionTTL, now: now}
}

type claims struct {
	Kind    string `json:"kind"`
	Creator string `json:"creator,omitempty"`
	jwt.RegisteredClaims
}

// IssueSession returns a session token whose subject is the openid.
func (m *Manager) IssueSession(openid string) (string, error) {
	return m.issue(kindSession, openid, "", m.sessionTTL)
}

// ParseSession returns the openid carried by a valid session token.
func (m *Manager) ParseSession(tokenString string) (string, error) {
	c, err := m.parse(tokenString, kindSession)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

// IssueShareRef returns a share reference whose subject is the reminder id.
func (m *Manager) IssueShareRef(reminderID, creator string) (string, error) {
	return m.issue(kindShareRef, reminderID, creator, ShareRefTTL)
}

// ParseShareRef returns the reminder id referenced by a valid share token.
func (m *Manager) ParseShareRef(tokenString string) (reminderID string, err error) {
	c, err := m.parse(tokenString, kindShareRef)
	if err != nil {
		return "", err
	}
	return c.Subject, nil
}

func (m *Manager) issue(kind, subject, creator string, ttl time.Duration) (string, error) {
	now := m.now()
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Kind:    kind,
		Creator: creator,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	})
	return t.SignedString(m.secret)
}

func (m *Manager) parse(tokenString, kind string) (*claims, error) {
	var c claims
	t, err := jwt.ParseWithClaims(tokenString, &c, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return m.secret, nil
	}, jwt.WithTimeFunc(m.now))
	if err != nil || !t.Valid {
		return nil, ErrInvalidToken
	}
	if c.Kind != kind || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return &c, nil
}
