package oauth

import (
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChallenge(t *testing.T) {
	// RFC 7636 appendix B.
	assert.Equal(t, "E9Melhoa2OwvFrEMTJguCHaoeK1t8URWbuGJSstw-cM", Challenge("dBjftJeZ4CVP-mB92K27uhbUJU1p1r_wW1gFWFOEjXk"))
}

func TestVerifyPKCE(t *testing.T) {
	v := "some-verifier-value"

	assert.True(t, VerifyPKCE(v, Challenge(v)))
	assert.False(t, VerifyPKCE(v, Challenge(v+"x")))
	assert.False(t, VerifyPKCE(v, v), "plain challenges are not accepted")
	assert.False(t, VerifyPKCE(v, ""))
	assert.False(t, VerifyPKCE(v, Challenge(v)+"="), "padding is not accepted")
}

func TestGenerateID(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		id, err := GenerateID()
		require.NoError(t, err)
		require.Len(t, id, 64)
		_, err = hex.DecodeString(id)
		require.NoError(t, err)
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}
