package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	// ErrInvalidTicket is returned when a download key is malformed or forged
	ErrInvalidTicket = errors.New("invalid download key")
	// ErrExpiredTicket is returned when a download key has expired
	ErrExpiredTicket = errors.New("download key has expired")
)

// DefaultTicketExpiry matches the lifetime of the hidden download frame
const DefaultTicketExpiry = 60 * time.Second

// TicketClaims are the claims of a backup download key
type TicketClaims struct {
	jwt.RegisteredClaims
	Backup string `json:"backup"`
}

// SessionID returns the console session the key was issued to
func (c *TicketClaims) SessionID() string {
	return c.Subject
}

// TicketConfig holds configuration for download key signing
type TicketConfig struct {
	Secret        string
	Expiry        time.Duration
	Issuer        string
	SigningMethod jwt.SigningMethod
}

// DefaultTicketConfig returns a default ticket configuration
func DefaultTicketConfig(secret string) *TicketConfig {
	return &TicketConfig{
		Secret:        secret,
		Expiry:        DefaultTicketExpiry,
		Issuer:        "endee-console",
		SigningMethod: jwt.SigningMethodHS256,
	}
}

// TicketManager signs and verifies short-lived backup download keys. A key
// names one backup and one session, so it can travel in a URL without
// exposing the backend token.
type TicketManager struct {
	config *TicketConfig
}

// NewTicketManager creates a new ticket manager with the given configuration
func NewTicketManager(config *TicketConfig) *TicketManager {
	if config.SigningMethod == nil {
		config.SigningMethod = jwt.SigningMethodHS256
	}
	if config.Expiry <= 0 {
		config.Expiry = DefaultTicketExpiry
	}
	return &TicketManager{config: config}
}

// Issue signs a key for downloading backup within sessionID
func (m *TicketManager) Issue(sessionID, backup string) (string, error) {
	now := time.Now()
	claims := &TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    m.config.Issuer,
			Subject:   sessionID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.config.Expiry)),
			NotBefore: jwt.NewNumericDate(now),
		},
		Backup: backup,
	}

	token := jwt.NewWithClaims(m.config.SigningMethod, claims)
	return token.SignedString([]byte(m.config.Secret))
}

// Verify validates a key and returns its claims
func (m *TicketManager) Verify(key string) (*TicketClaims, error) {
	token, err := jwt.ParseWithClaims(key, &TicketClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != m.config.SigningMethod.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(m.config.Secret), nil
	}, jwt.WithIssuer(m.config.Issuer))

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredTicket
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidTicket, err)
	}

	claims, ok := token.Claims.(*TicketClaims)
	if !ok || !token.Valid || claims.Backup == "" {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}

// VerifyFor validates a key and checks that it names backup and sessionID
func (m *TicketManager) VerifyFor(key, sessionID, backup string) error {
	claims, err := m.Verify(key)
	if err != nil {
		return err
	}
	if claims.Backup != backup || claims.SessionID() != sessionID {
		return ErrInvalidTicket
	}
	return nil
}

// ForSession returns an issuer bound to one session
func (m *TicketManager) ForSession(sessionID string) *SessionTickets {
	return &SessionTickets{manager: m, sessionID: sessionID}
}

// SessionTickets issues keys on behalf of a single session
type SessionTickets struct {
	manager   *TicketManager
	sessionID string
}

// Issue signs a key for backup and reports how long it stays valid
func (t *SessionTickets) Issue(backup string) (string, time.Duration, error) {
	key, err := t.manager.Issue(t.sessionID, backup)
	if err != nil {
		return "", 0, err
	}
	return key, t.manager.config.Expiry, nil
}
