package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHasher_DefaultCost(t *testing.T) {
	h := NewHasher(0)
	assert.Equal(t, DefaultCost, h.Cost())

	digest, err := h.Hash("secret1")
	require.NoError(t, err)

	cost, err := bcrypt.Cost([]byte(digest))
	require.NoError(t, err)
	assert.Equal(t, 10, cost)
}

func TestHasher_CostClamped(t *testing.T) {
	assert.Equal(t, bcrypt.MinCost, NewHasher(1).Cost())
	assert.Equal(t, bcrypt.MaxCost, NewHasher(99).Cost())
}

func TestHasher_VerifyRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	passwords := []string{"abcd", "P@ssw0rd!", "多語言密碼", "12345678901234567890"}
	for _, p := range passwords {
		digest, err := h.Hash(p)
		require.NoError(t, err)

		assert.NotEqual(t, p, digest)
		assert.True(t, h.Verify(p, digest), "password %q must verify", p)
		assert.False(t, h.Verify(p+"x", digest), "altered password %q must not verify", p)
	}
}

func TestHasher_Salted(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)

	a, err := h.Hash("same-password")
	require.NoError(t, err)
	b, err := h.Hash("same-password")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestHasher_VerifyMalformedDigest(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	assert.False(t, h.Verify("secret", "not-a-bcrypt-hash"))
	assert.False(t, h.Verify("secret", ""))
}
