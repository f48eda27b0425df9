// Package keymaterial wraps the kernel's signing-key material (spec
// §5, §9: "the only process-wide state is the kernel's signing-key
// material and the static configuration... both read-only for the
// lifetime of the process"). Secret bytes are taint-tracked so an
// accidental Printf/log call panics instead of leaking key material,
// adapted from the teacher's secret.Handle/IDFactory pair.
package keymaterial

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"fmt"
	"hash"

	"golang.org/x/crypto/blake2b"
	"golang.org/x/crypto/hkdf"
)

// Secret wraps raw key bytes with taint tracking: String() panics so
// the value can never be accidentally logged.
type Secret struct {
	value []byte
}

// NewSecret wraps raw bytes as a taint-tracked Secret.
func NewSecret(value []byte) Secret {
	cp := make([]byte, len(value))
	copy(cp, value)
	return Secret{value: cp}
}

// String implements fmt.Stringer but always panics — secret key
// material must never reach a log line or format string.
func (s Secret) String() string {
	panic("attempted to print kernel signing-key material")
}

// Bytes returns the raw secret bytes. Only lease/result signing code
// should call this.
func (s Secret) Bytes() []byte { return s.value }

func newBlake2b256() hash.Hash {
	h, err := blake2b.New256(nil)
	if err != nil {
		panic(fmt.Sprintf("blake2b.New256 must not fail with a nil key: %v", err))
	}
	return h
}

// DeriveSubkey derives a domain-separated sub-key from a master secret
// via HKDF over BLAKE2b-256, the same construction the teacher's
// planfmt.NewPlanIDFactory uses to derive per-plan display-ID keys from
// a plan digest. Here the derivation is fixed per deployment (master
// secret + a constant domain string, loaded once at startup), not
// per-call, so it stays deterministic: identical master secret and
// domain always yield the identical sub-key.
func DeriveSubkey(master Secret, domain string, size int) ([]byte, error) {
	r := hkdf.New(newBlake2b256, master.value, nil, []byte(domain))
	out := make([]byte, size)
	if _, err := r.Read(out); err != nil {
		return nil, fmt.Errorf("keymaterial: derive subkey: %w", err)
	}
	return out, nil
}

// HMACSign signs message with secret under HMAC-SHA-256 — the
// executor-result signing counterpart to the lease manager's own HMAC
// scheme, for self-contained deployments where the executor shares the
// kernel's trust domain (spec §9 "Cryptographic primitives").
func HMACSign(secret Secret, message []byte) []byte {
	mac := hmac.New(sha256.New, secret.Bytes())
	mac.Write(message)
	return mac.Sum(nil)
}

// HMACVerify checks sig against message under the same construction.
func HMACVerify(secret Secret, message, sig []byte) bool {
	return hmac.Equal(HMACSign(secret, message), sig)
}

// Ed25519KeyPair holds the kernel's asymmetric signing key material
// for the separate-trust-domain lease/result signing variant (spec
// §4.3, §9).
type Ed25519KeyPair struct {
	Public  ed25519.PublicKey
	private Secret
}

// NewEd25519KeyPair wraps a generated or loaded key pair.
func NewEd25519KeyPair(public ed25519.PublicKey, private ed25519.PrivateKey) Ed25519KeyPair {
	return Ed25519KeyPair{Public: public, private: NewSecret(private)}
}

// Sign signs message with the wrapped private key.
func (k Ed25519KeyPair) Sign(message []byte) []byte {
	return ed25519.Sign(ed25519.PrivateKey(k.private.Bytes()), message)
}

// Verify checks sig against message using the public key.
func (k Ed25519KeyPair) Verify(message, sig []byte) bool {
	return ed25519.Verify(k.Public, message, sig)
}
