package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTicket_RoundTrip(t *testing.T) {
	m := NewTicketManager(DefaultTicketConfig("secret"))

	key, err := m.Issue("session-1", "nightly")
	require.NoError(t, err)

	claims, err := m.Verify(key)
	require.NoError(t, err)
	assert.Equal(t, "nightly", claims.Backup)
	assert.Equal(t, "session-1", claims.SessionID())

	assert.NoError(t, m.VerifyFor(key, "session-1", "nightly"))
	assert.ErrorIs(t, m.VerifyFor(key, "session-1", "other"), ErrInvalidTicket)
	assert.ErrorIs(t, m.VerifyFor(key, "session-2", "nightly"), ErrInvalidTicket)
}

func TestTicket_Expired(t *testing.T) {
	cfg := DefaultTicketConfig("secret")
	m := NewTicketManager(cfg)

	claims := &TicketClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    cfg.Issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		},
		Backup: "nightly",
	}
	key, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = m.Verify(key)
	assert.ErrorIs(t, err, ErrExpiredTicket)
}

func TestTicket_Forged(t *testing.T) {
	m := NewTicketManager(DefaultTicketConfig("secret"))
	other := NewTicketManager(DefaultTicketConfig("another-secret"))

	key, err := other.Issue("s", "nightly")
	require.NoError(t, err)

	_, err = m.Verify(key)
	assert.ErrorIs(t, err, ErrInvalidTicket)

	_, err = m.Verify("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidTicket)
}

func TestSessionTickets(t *testing.T) {
	m := NewTicketManager(&TicketConfig{Secret: "secret", Issuer: "endee-console"})

	key, ttl, err := m.ForSession("s1").Issue("nightly")
	require.NoError(t, err)
	assert.Equal(t, DefaultTicketExpiry, ttl)
	assert.NoError(t, m.VerifyFor(key, "s1", "nightly"))
}

func TestTokenFromRequest(t *testing.T) {
	tests := []struct {
		name   string
		header string
		cookie string
		want   string
	}{
		{"raw header", "abc", "", "abc"},
		{"bearer header", "Bearer abc", "", "abc"},
		{"header wins", "abc", "cookie-token", "abc"},
		{"cookie", "", "cookie-token", "cookie-token"},
		{"none", "", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				r.Header.Set(AuthorizationHeader, tt.header)
			}
			if tt.cookie != "" {
				r.AddCookie(&http.Cookie{Name: TokenCookie, Value: tt.cookie})
			}
			assert.Equal(t, tt.want, TokenFromRequest(r))
		})
	}
}

func TestMiddleware(t *testing.T) {
	var got string
	var ok bool
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok = TokenFromContext(r.Context())
	}))

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(AuthorizationHeader, "tok")
	h.ServeHTTP(httptest.NewRecorder(), r)
	assert.True(t, ok)
	assert.Equal(t, "tok", got)

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	assert.False(t, ok)
}
