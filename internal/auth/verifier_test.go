package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func signHS256(t *testing.T, secret []byte, claims map[string]any) string {
	t.Helper()
	hdr, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	require.NoError(t, err)
	body, err := json.Marshal(claims)
	require.NoError(t, err)

	unsigned := base64.RawURLEncoding.EncodeToString(hdr) + "." +
		base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	return unsigned + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerify(t *testing.T) {
	secret := []byte("unit-secret")
	v := NewHS256Verifier(secret)

	t.Run("valid token yields subject", func(t *testing.T) {
		tok := signHS256(t, secret, map[string]any{
			"sub": "user-42",
			"exp": time.Now().Add(time.Hour).Unix(),
		})
		id, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-42", id)
	})

	t.Run("no expiry claim is accepted", func(t *testing.T) {
		tok := signHS256(t, secret, map[string]any{"sub": "user-42"})
		id, err := v.Verify(tok)
		require.NoError(t, err)
		assert.Equal(t, "user-42", id)
	})

	t.Run("expired token", func(t *testing.T) {
		tok := signHS256(t, secret, map[string]any{
			"sub": "user-42",
			"exp": time.Now().Add(-time.Minute).Unix(),
		})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("wrong secret", func(t *testing.T) {
		tok := signHS256(t, []byte("other-secret"), map[string]any{"sub": "user-42"})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("missing subject", func(t *testing.T) {
		tok := signHS256(t, secret, map[string]any{"exp": time.Now().Add(time.Hour).Unix()})
		_, err := v.Verify(tok)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("garbage input", func(t *testing.T) {
		for _, tok := range []string{"", "abc", "a.b", "a.b.c.d", "!!.!!.!!"} {
			_, err := v.Verify(tok)
			assert.Error(t, err, tok)
		}
	})
}
