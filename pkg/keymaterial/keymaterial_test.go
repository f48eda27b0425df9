package keymaterial_test

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ssbking/personal-digital-authority/pkg/keymaterial"
)

func TestSecret_StringPanics(t *testing.T) {
	s := keymaterial.NewSecret([]byte("do-not-print-me"))
	assert.Panics(t, func() { _ = s.String() })
}

func TestSecret_BytesReturnsWrappedValue(t *testing.T) {
	s := keymaterial.NewSecret([]byte("master-key"))
	assert.Equal(t, []byte("master-key"), s.Bytes())
}

func TestDeriveSubkey_DeterministicForSameMasterAndDomain(t *testing.T) {
	master := keymaterial.NewSecret([]byte("master-key-material"))

	k1, err := keymaterial.DeriveSubkey(master, "lease-signing", 32)
	require.NoError(t, err)
	k2, err := keymaterial.DeriveSubkey(master, "lease-signing", 32)
	require.NoError(t, err)

	assert.Equal(t, k1, k2)
	assert.Len(t, k1, 32)
}

func TestDeriveSubkey_DiffersAcrossDomains(t *testing.T) {
	master := keymaterial.NewSecret([]byte("master-key-material"))

	k1, err := keymaterial.DeriveSubkey(master, "lease-signing", 32)
	require.NoError(t, err)
	k2, err := keymaterial.DeriveSubkey(master, "result-signing", 32)
	require.NoError(t, err)

	assert.NotEqual(t, k1, k2)
}

func TestHMACSignAndVerify(t *testing.T) {
	secret := keymaterial.NewSecret([]byte("hmac-secret"))
	msg := []byte("sign this message")

	sig := keymaterial.HMACSign(secret, msg)
	assert.True(t, keymaterial.HMACVerify(secret, msg, sig))
	assert.False(t, keymaterial.HMACVerify(secret, []byte("a different message"), sig))
}

func TestHMACVerify_RejectsWrongSecret(t *testing.T) {
	msg := []byte("sign this message")
	sig := keymaterial.HMACSign(keymaterial.NewSecret([]byte("secret-a")), msg)

	assert.False(t, keymaterial.HMACVerify(keymaterial.NewSecret([]byte("secret-b")), msg, sig))
}

func TestEd25519KeyPair_SignAndVerify(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	kp := keymaterial.NewEd25519KeyPair(pub, priv)
	msg := []byte("lease payload")
	sig := kp.Sign(msg)

	assert.True(t, kp.Verify(msg, sig))
	assert.False(t, kp.Verify([]byte("tampered payload"), sig))
}
