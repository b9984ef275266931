package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateToken(t *testing.T) {
	t.Run("generates 64 character hex string", func(t *testing.T) {
		token, err := GenerateToken()
		require.NoError(t, err)
		assert.Len(t, token, 64)
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		token1, _ := GenerateToken()
		token2, _ := GenerateToken()
		assert.NotEqual(t, token1, token2)
	})

	t.Run("generates valid hex", func(t *testing.T) {
		token, _ := GenerateToken()
		for _, c := range token {
			assert.True(t, (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f'))
		}
	})
}

func TestHmacSHA256(t *testing.T) {
	t.Run("same inputs produce same result", func(t *testing.T) {
		assert.Equal(t, HmacSHA256("secret", "data"), HmacSHA256("secret", "data"))
	})

	t.Run("different secret produces different result", func(t *testing.T) {
		assert.NotEqual(t, HmacSHA256("secret1", "data"), HmacSHA256("secret2", "data"))
	})

	t.Run("produces expected HMAC", func(t *testing.T) {
		result := HmacSHA256("key", "The quick brown fox jumps over the lazy dog")
		assert.Equal(t, "f7bc83f430538424b13298e6aa6fb143ef4d59a14946175997479dbc2d1a3cd8", result)
	})
}

func TestConstantTimeEqual(t *testing.T) {
	assert.True(t, ConstantTimeEqual("abc", "abc"))
	assert.False(t, ConstantTimeEqual("abc", "def"))
	assert.False(t, ConstantTimeEqual("abc", "abcd"))
	assert.True(t, ConstantTimeEqual("", ""))
}

func TestPasswordHash(t *testing.T) {
	hash, err := HashPassword("correct horse")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(hash, "$2a$12$"))

	assert.True(t, CheckPasswordHash("correct horse", hash))
	assert.False(t, CheckPasswordHash("wrong", hash))
	assert.False(t, CheckPasswordHash("correct horse", "not-a-hash"))
}

func TestMaskAccessCode(t *testing.T) {
	tests := []struct {
		code     string
		expected string
	}{
		{"", "****"},
		{"AB12", "****"},
		{"ABC123", "AB****"},
		{"ÄÖÜ12345", "ÄÖ******"},
	}

	for _, tc := range tests {
		t.Run(tc.code, func(t *testing.T) {
			assert.Equal(t, tc.expected, MaskAccessCode(tc.code))
		})
	}
}
