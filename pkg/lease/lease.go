// Package lease implements the lease manager (spec §4.3): a pure
// evaluate(manifest, trust_snapshot, now, hrc_token?) function that
// grants or denies a time-bounded, cryptographically verifiable
// execution authority over exactly one manifest.
package lease

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"time"

	"github.com/ssbking/personal-digital-authority/pkg/keymaterial"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
	"github.com/ssbking/personal-digital-authority/pkg/trust"
)

// Token is the product of a granted lease (spec §3 LeaseToken).
// Binds to exactly one manifest via TaskID; outside [IssuedAt,
// ExpiresAt) the lease is inert regardless of signature validity.
type Token struct {
	TaskID    string
	IssuedAt  int64 // epoch milliseconds
	ExpiresAt int64 // epoch milliseconds
	Signature []byte
}

// Scheme selects how lease signatures are produced and verified. Fixed
// per deployment (spec §9): HMAC for self-contained deployments where
// the kernel also runs the executor, Ed25519 when the executor runs in
// a separate trust domain and must verify with a public key only.
type Scheme int

const (
	SchemeHMAC Scheme = iota
	SchemeEd25519
)

// Manager grants leases against a fixed signing scheme, duration, and
// key material. Stateless beyond that configuration: evaluate is pure
// in its (manifest, snapshot, now, hrc) arguments.
type Manager struct {
	scheme     Scheme
	duration   time.Duration
	hmacKey    keymaterial.Secret
	ed25519Key keymaterial.Ed25519KeyPair
}

// NewHMACManager builds a Manager that signs leases with HMAC-SHA-256.
func NewHMACManager(key keymaterial.Secret, duration time.Duration) *Manager {
	return &Manager{scheme: SchemeHMAC, hmacKey: key, duration: duration}
}

// NewEd25519Manager builds a Manager that signs leases with Ed25519.
func NewEd25519Manager(kp keymaterial.Ed25519KeyPair, duration time.Duration) *Manager {
	return &Manager{scheme: SchemeEd25519, ed25519Key: kp, duration: duration}
}

// message builds the fixed, length-prefixed binary encoding that is
// signed: concat(task_id, issued_at, expires_at). Length-prefixing each
// field avoids any ambiguity a delimiter-based concatenation could
// introduce (spec §4.3 requires a fixed encoding with no nonces).
func message(taskID string, issuedAt, expiresAt int64) []byte {
	buf := make([]byte, 0, 4+len(taskID)+8+8)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(taskID)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, taskID...)

	var tsBuf [8]byte
	binary.BigEndian.PutUint64(tsBuf[:], uint64(issuedAt))
	buf = append(buf, tsBuf[:]...)
	binary.BigEndian.PutUint64(tsBuf[:], uint64(expiresAt))
	buf = append(buf, tsBuf[:]...)
	return buf
}

func (m *Manager) sign(taskID string, issuedAt, expiresAt int64) []byte {
	msg := message(taskID, issuedAt, expiresAt)
	switch m.scheme {
	case SchemeEd25519:
		return m.ed25519Key.Sign(msg)
	default:
		mac := hmac.New(sha256.New, m.hmacKey.Bytes())
		mac.Write(msg)
		return mac.Sum(nil)
	}
}

// Verify checks a Token's signature against this Manager's key
// material. Used by executors that share a trust domain with the
// kernel (HMAC); separate-trust-domain executors verify independently
// against the public key only (see hostadapter.LeaseVerifier).
func (m *Manager) Verify(tok Token) bool {
	expected := m.sign(tok.TaskID, tok.IssuedAt, tok.ExpiresAt)
	return hmac.Equal(expected, tok.Signature) || constantTimeEqual(expected, tok.Signature)
}

func constantTimeEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	var v byte
	for i := range a {
		v |= a[i] ^ b[i]
	}
	return v == 0
}

// Result is the Granted(lease) | Denied(error) outcome of Evaluate.
type Result struct {
	Lease *Token
	Err   *kernelerrors.Error
}

// Granted reports whether the lease was issued.
func (r Result) Granted() bool { return r.Err == nil }

// Evaluate runs the §4.3 pipeline in fixed order: manifest integrity,
// time window, trust threshold, HRC gate, revocation check. now is
// injected by the caller so Evaluate stays a pure function of its
// arguments (no wall-clock read inside the kernel). expectedExpiry is
// the optional caller-supplied expiry upper bound spec §4.3 step 2
// allows the caller to assert against before a new lease is minted
// (e.g. a policy ceiling on how far out any lease may run); nil skips
// the check.
func (m *Manager) Evaluate(man manifest.TaskManifest, snapshot trust.Snapshot, now time.Time, expectedExpiry *time.Time, hrc *trust.HRCToken, revocation trust.RevocationView) Result {
	if man.TaskID == "" || man.CapabilityID == "" {
		return Result{Err: kernelerrors.New(kernelerrors.InvalidManifest, "manifest is missing required fields")}
	}

	if expectedExpiry != nil && !now.Before(*expectedExpiry) {
		return Result{Err: kernelerrors.New(kernelerrors.LeaseExpired, "now is at or past the caller-supplied expiry bound")}
	}

	if !snapshot.Meets() {
		return Result{Err: kernelerrors.Newf(kernelerrors.InsufficientTrust,
			"trust score %.4f below required minimum %.4f", snapshot.TrustScore, snapshot.MinimumRequired)}
	}

	if man.Constraints.HRCRequired {
		if hrc == nil || !hrc.Confirmed {
			return Result{Err: kernelerrors.New(kernelerrors.HRCRequired, "hardware-rooted confirmation required and not present")}
		}
	}

	if revocation != nil && revocation.IsRevoked(man.TaskID) {
		return Result{Err: kernelerrors.New(kernelerrors.LeaseRevoked, "task_id has been revoked")}
	}

	issuedAt := now.UnixMilli()
	expiresAt := issuedAt + m.duration.Milliseconds()

	return Result{Lease: &Token{
		TaskID:    man.TaskID,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
		Signature: m.sign(man.TaskID, issuedAt, expiresAt),
	}}
}

// Live reports whether t is within its validity window at instant now,
// independent of signature validity (spec §3: "outside that window the
// lease is inert regardless of signature validity").
func (t Token) Live(now time.Time) bool {
	ms := now.UnixMilli()
	return ms >= t.IssuedAt && ms < t.ExpiresAt
}
