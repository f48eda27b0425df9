// Package executor defines the Executor contract (spec §4.4): the
// pre-execution gate, the shared ExecutionResult type and its signed-
// result discipline, and the idempotency-cache contract every
// reference executor in this module is built against.
package executor

import (
	"context"
	"encoding/binary"
	"time"

	"github.com/ssbking/personal-digital-authority/pkg/canonical"
	"github.com/ssbking/personal-digital-authority/pkg/kernelerrors"
	"github.com/ssbking/personal-digital-authority/pkg/lease"
	"github.com/ssbking/personal-digital-authority/pkg/manifest"
)

// Status is the closed ExecutionResult outcome.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailure Status = "FAILURE"
)

// ExecutionError is the structured error carried by a FAILURE result.
type ExecutionError struct {
	Code    kernelerrors.Code
	Message string
}

// Result is the product of an executor (spec §3 ExecutionResult).
// Output and Error are mutually exclusive on presence.
type Result struct {
	TaskID       string
	CapabilityID string
	Status       Status
	Output       map[string]interface{} // present iff Status == StatusSuccess
	Error        *ExecutionError        // present iff Status == StatusFailure
	Signature    []byte
}

// Signer produces a detached signature over an arbitrary message.
type Signer interface {
	Sign(message []byte) []byte
}

// Verifier checks a detached signature over an arbitrary message.
type Verifier interface {
	Verify(message, sig []byte) bool
}

func lengthPrefixed(parts ...[]byte) []byte {
	var out []byte
	var lenBuf [4]byte
	for _, p := range parts {
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(p)))
		out = append(out, lenBuf[:]...)
		out = append(out, p...)
	}
	return out
}

// signingMessage builds task_id‖capability_id‖status‖canonical(payload)
// as a fixed, length-prefixed binary encoding (spec §4.4 "Result
// signing"), mirroring the lease manager's message construction.
func signingMessage(taskID, capabilityID string, status Status, payload map[string]interface{}) ([]byte, error) {
	canonPayload, err := canonical.Encode(payload)
	if err != nil {
		return nil, err
	}
	return lengthPrefixed([]byte(taskID), []byte(capabilityID), []byte(status), canonPayload), nil
}

// Success builds and signs a SUCCESS result.
func Success(signer Signer, taskID, capabilityID string, output map[string]interface{}) (Result, error) {
	msg, err := signingMessage(taskID, capabilityID, StatusSuccess, output)
	if err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:       taskID,
		CapabilityID: capabilityID,
		Status:       StatusSuccess,
		Output:       output,
		Signature:    signer.Sign(msg),
	}, nil
}

// Failure builds and signs a FAILURE result.
func Failure(signer Signer, taskID, capabilityID string, code kernelerrors.Code, message string) (Result, error) {
	errPayload := map[string]interface{}{"error_code": string(code), "message": message}
	msg, err := signingMessage(taskID, capabilityID, StatusFailure, errPayload)
	if err != nil {
		return Result{}, err
	}
	return Result{
		TaskID:       taskID,
		CapabilityID: capabilityID,
		Status:       StatusFailure,
		Error:        &ExecutionError{Code: code, Message: message},
		Signature:    signer.Sign(msg),
	}, nil
}

// VerifyResult checks a Result's signature, rebuilding the same
// payload the signer used.
func VerifyResult(verifier Verifier, r Result) bool {
	var payload map[string]interface{}
	if r.Status == StatusSuccess {
		payload = r.Output
	} else {
		payload = map[string]interface{}{"error_code": string(r.Error.Code), "message": r.Error.Message}
	}
	msg, err := signingMessage(r.TaskID, r.CapabilityID, r.Status, payload)
	if err != nil {
		return false
	}
	return verifier.Verify(msg, r.Signature)
}

// IdempotencyCache is the opaque, task_id-keyed store of prior signed
// results every executor consults before performing a side effect
// (spec §4.4 "Idempotency", §6 "Persisted state"). Implementations
// live outside the core (internal/idempotency).
type IdempotencyCache interface {
	Get(taskID string) (Result, bool)
	Put(taskID string, result Result)
}

// Gate runs the shared pre-execution checks every executor family must
// apply before touching its capability-specific input schema (spec
// §4.4 steps 1-4; step 5 is capability-specific and lives in each
// family's package).
type Gate struct {
	LeaseVerifier         func(lease.Token) bool
	SupportedCapabilities map[string]bool
}

// Check runs steps 1-4 in order, returning the first failing
// kernelerrors.Code, or nil if the gate passes.
func (g Gate) Check(man manifest.TaskManifest, tok lease.Token, now time.Time) *kernelerrors.Error {
	if g.LeaseVerifier == nil || !g.LeaseVerifier(tok) {
		return kernelerrors.New(kernelerrors.InvalidLease, "lease signature verification failed")
	}

	if tok.TaskID != man.TaskID {
		return kernelerrors.New(kernelerrors.InvalidLease, "lease task_id does not match manifest task_id")
	}

	if !now.Before(time.UnixMilli(tok.ExpiresAt)) {
		return kernelerrors.New(kernelerrors.LeaseExpired, "lease has expired")
	}

	if !g.SupportedCapabilities[man.CapabilityID] {
		return kernelerrors.Newf(kernelerrors.UnsupportedCapability, "capability %s is not supported by this executor", man.CapabilityID)
	}

	return nil
}

// Executor is implemented by each reference family (FILE, MEDIA,
// APP_LAUNCH, NAVIGATION, SEARCH). Execute is synchronous and must be
// idempotent on manifest.TaskID.
type Executor interface {
	SupportedCapabilities() []string
	Execute(ctx context.Context, man manifest.TaskManifest, tok lease.Token) Result
}
