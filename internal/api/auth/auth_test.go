package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPassword(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)

	assert.NotEqual(t, "correct horse", hash)
	assert.True(t, CheckPassword(hash, "correct horse"))
	assert.False(t, CheckPassword(hash, "battery staple"))
	assert.False(t, CheckPassword("not-a-hash", "correct horse"))
}

func TestTokenManager(t *testing.T) {
	const userID = "2f7f0d8e-52c5-4c55-a7cf-6d7b5fb3a0e1"
	issuedAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	m := NewTokenManager("secret", 7*24*time.Hour)
	m.now = func() time.Time { return issuedAt }

	token, err := m.Issue(userID)
	require.NoError(t, err)

	tests := []struct {
		name    string
		manager func() *TokenManager
		token   string
		wantErr bool
	}{
		{
			name:    "valid",
			manager: func() *TokenManager { return m },
			token:   token,
		},
		{
			name: "expired",
			manager: func() *TokenManager {
				later := NewTokenManager("secret", time.Hour)
				later.now = func() time.Time { return issuedAt.Add(8 * 24 * time.Hour) }
				return later
			},
			token:   token,
			wantErr: true,
		},
		{
			name: "wrong secret",
			manager: func() *TokenManager {
				other := NewTokenManager("other", time.Hour)
				other.now = m.now
				return other
			},
			token:   token,
			wantErr: true,
		},
		{
			name:    "garbage",
			manager: func() *TokenManager { return m },
			token:   "not.a.token",
			wantErr: true,
		},
		{
			name:    "unsigned",
			manager: func() *TokenManager { return m },
			token: func() string {
				s, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
					Subject:   userID,
					ExpiresAt: jwt.NewNumericDate(issuedAt.Add(time.Hour)),
				}).SignedString(jwt.UnsafeAllowNoneSignatureType)
				return s
			}(),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, err := tt.manager().Verify(tt.token)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidToken)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, subject)
		})
	}
}
